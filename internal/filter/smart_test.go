package filter_test

import (
	"testing"

	"shadowpipe/internal/filter"
	"shadowpipe/internal/logger"
)

func newSmart(t *testing.T, threshold float64, minSamples int) *filter.SmartFilter {
	t.Helper()
	base, err := filter.NewCaptureFilter(nil, filter.Options{}, logger.NewNop())
	if err != nil {
		t.Fatalf("NewCaptureFilter() error = %v", err)
	}
	return filter.NewSmartFilter(base, threshold, minSamples)
}

func TestIsNoiseBelowMinSamples(t *testing.T) {
	f := newSmart(t, 0.5, 10)
	it := interaction("GET", "/api/poll")

	// 占比 100% 但样本不足，不判定为噪声
	for i := 0; i < 10; i++ {
		f.RecordInteraction(&it)
	}
	if f.IsNoise(&it) {
		t.Error("IsNoise() = true below min samples, want false")
	}
}

func TestIsNoiseAboveThreshold(t *testing.T) {
	f := newSmart(t, 0.5, 10)
	noisy := interaction("GET", "/api/poll")
	rare := interaction("GET", "/api/checkout")

	for i := 0; i < 30; i++ {
		f.RecordInteraction(&noisy)
	}
	for i := 0; i < 5; i++ {
		f.RecordInteraction(&rare)
	}

	if !f.IsNoise(&noisy) {
		t.Error("IsNoise(noisy) = false, want true")
	}
	if f.IsNoise(&rare) {
		t.Error("IsNoise(rare) = true, want false")
	}
	if f.ShouldCapture(&noisy) {
		t.Error("ShouldCapture(noisy) = true, want false")
	}
	if !f.ShouldCapture(&rare) {
		t.Error("ShouldCapture(rare) = false, want true")
	}
}

func TestNoiseScoreMonotonic(t *testing.T) {
	f := newSmart(t, 0.5, 10)
	it := interaction("GET", "/api/poll")
	other := interaction("GET", "/api/other")
	f.RecordInteraction(&other)

	// 连续观测同一端点，其噪声占比单调不减
	prev := f.NoiseScore(it.Endpoint())
	for i := 0; i < 20; i++ {
		f.RecordInteraction(&it)
		score := f.NoiseScore(it.Endpoint())
		if score < prev {
			t.Fatalf("NoiseScore decreased: %f → %f at observation %d", prev, score, i)
		}
		prev = score
	}
}

func TestClearFrequency(t *testing.T) {
	f := newSmart(t, 0.5, 5)
	it := interaction("GET", "/api/poll")
	for i := 0; i < 20; i++ {
		f.RecordInteraction(&it)
	}
	if !f.IsNoise(&it) {
		t.Fatal("IsNoise() = false before clear, want true")
	}

	f.ClearFrequency()
	if f.IsNoise(&it) {
		t.Error("IsNoise() = true after ClearFrequency(), want false")
	}
	if got := f.NoiseScore(it.Endpoint()); got != 0 {
		t.Errorf("NoiseScore() after clear = %f, want 0", got)
	}
}

func TestGetStatistics(t *testing.T) {
	f := newSmart(t, 0.5, 10)
	a := interaction("GET", "/api/a")
	b := interaction("GET", "/api/b")
	c := interaction("GET", "/api/c")
	for i := 0; i < 5; i++ {
		f.RecordInteraction(&a)
	}
	for i := 0; i < 3; i++ {
		f.RecordInteraction(&b)
	}
	f.RecordInteraction(&c)

	stats := f.GetStatistics(2)
	if stats.TotalInteractions != 9 {
		t.Errorf("TotalInteractions = %d, want 9", stats.TotalInteractions)
	}
	if stats.UniqueEndpoints != 3 {
		t.Errorf("UniqueEndpoints = %d, want 3", stats.UniqueEndpoints)
	}
	if len(stats.TopEndpoints) != 2 {
		t.Fatalf("TopEndpoints len = %d, want 2", len(stats.TopEndpoints))
	}
	if stats.TopEndpoints[0].Endpoint != "GET /api/a" || stats.TopEndpoints[0].Count != 5 {
		t.Errorf("TopEndpoints[0] = %+v, want GET /api/a ×5", stats.TopEndpoints[0])
	}
	if stats.TopEndpoints[1].Endpoint != "GET /api/b" {
		t.Errorf("TopEndpoints[1] = %+v, want GET /api/b", stats.TopEndpoints[1])
	}
}
