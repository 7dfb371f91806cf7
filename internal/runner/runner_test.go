package runner_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"shadowpipe/internal/campaign"
	"shadowpipe/internal/filter"
	"shadowpipe/internal/interceptor"
	"shadowpipe/internal/logger"
	"shadowpipe/internal/recorder"
	"shadowpipe/internal/runner"
	"shadowpipe/internal/sanitizer"
	"shadowpipe/pkg/domain"
	"shadowpipe/pkg/errx"
)

func newRunner(t *testing.T) *runner.ShadowRunner {
	t.Helper()
	return newRunnerOpts(t, runner.Options{
		Campaign: campaign.Options{Concurrency: 2, CallTimeout: time.Second},
	})
}

func newRunnerOpts(t *testing.T, opts runner.Options) *runner.ShadowRunner {
	t.Helper()
	base, err := filter.NewCaptureFilter(nil, filter.DefaultOptions(), logger.NewNop())
	if err != nil {
		t.Fatalf("NewCaptureFilter() error = %v", err)
	}
	smart := filter.NewSmartFilter(base, 0.5, 10)

	san, err := sanitizer.New([]byte("test-key"), nil, logger.NewNop())
	if err != nil {
		t.Fatalf("sanitizer.New() error = %v", err)
	}

	ic := interceptor.New(time.Minute, logger.NewNop())
	rec := recorder.New(logger.NewNop())
	r := runner.New(ic, smart, san, rec, opts, logger.NewNop())
	t.Cleanup(r.Close)
	return r
}

func sampleCapture() *domain.CapturedTraffic {
	capture := domain.NewCapturedTraffic("http://upstream")
	capture.Metadata["env"] = "staging"
	capture.Requests = []domain.TrafficRequest{
		{
			Method:      "POST",
			Path:        "/api/orders",
			Headers:     map[string]string{"Content-Type": "application/json"},
			Body:        `{"item":"widget"}`,
			QueryParams: map[string]string{"dry": "false"},
			StatusCode:  201,
			Response:    &domain.CapturedResponse{StatusCode: 201, Body: `{"id":"o-1"}`, ResponseTimeMS: 12.5},
		},
	}
	return capture
}

func TestSaveLoadRoundTrip(t *testing.T) {
	r := newRunner(t)
	capture := sampleCapture()
	path := filepath.Join(t.TempDir(), "capture.json")

	if err := r.SaveCapture(capture, path); err != nil {
		t.Fatalf("SaveCapture() error = %v", err)
	}
	got, err := r.LoadCapture(path)
	if err != nil {
		t.Fatalf("LoadCapture() error = %v", err)
	}

	// 往返无损（按序列化形态比较，避开 time.Time 单调时钟差异）
	want, _ := json.Marshal(capture)
	have, _ := json.Marshal(got)
	if string(have) != string(want) {
		t.Errorf("round trip mismatch:\n got %s\nwant %s", have, want)
	}
}

func TestLoadCaptureNotFound(t *testing.T) {
	r := newRunner(t)

	_, err := r.LoadCapture(filepath.Join(t.TempDir(), "missing.json"))
	if !errx.Is(err, errx.CodeResourceNotFound) {
		t.Errorf("error = %v, want CodeResourceNotFound", err)
	}
	if !errors.Is(err, domain.ErrCaptureNotFound) {
		t.Errorf("error chain should include ErrCaptureNotFound, got %v", err)
	}
}

func TestLoadCaptureValidation(t *testing.T) {
	r := newRunner(t)
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
	}{
		{"非法JSON", `{"capture_id": `},
		{"缺失capture_id", `{"capture_time":"2026-01-01T00:00:00Z","requests":[]}`},
		{"缺失requests", `{"capture_id":"c-1","capture_time":"2026-01-01T00:00:00Z"}`},
		{"请求缺失method", `{"capture_id":"c-1","capture_time":"2026-01-01T00:00:00Z","requests":[{"path":"/x"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, strings.ReplaceAll(tt.name, "/", "_")+".json")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := r.LoadCapture(path); !errx.Is(err, errx.CodeValidation) {
				t.Errorf("error = %v, want CodeValidation", err)
			}
		})
	}
}

func TestHarvestCapturePipeline(t *testing.T) {
	r := newRunner(t)
	ic := r.Interceptor()

	if err := ic.StartRecording(); err != nil {
		t.Fatalf("StartRecording() error = %v", err)
	}

	// 业务请求含 PII；健康检查请求应被过滤
	id1, _ := ic.CaptureRequest(domain.CapturedRequest{
		Method: "POST", Path: "/api/users",
		Body: `{"email":"alice@example.com"}`,
	})
	ic.CaptureResponse(id1, domain.CapturedResponse{StatusCode: 201, Body: `{"id":7}`})

	id2, _ := ic.CaptureRequest(domain.CapturedRequest{Method: "GET", Path: "/health"})
	ic.CaptureResponse(id2, domain.CapturedResponse{StatusCode: 200})

	capture, err := r.HarvestCapture(context.Background(), "http://upstream")
	if err != nil {
		t.Fatalf("HarvestCapture() error = %v", err)
	}

	if len(capture.Requests) != 1 {
		t.Fatalf("kept %d requests, want 1 (health check filtered)", len(capture.Requests))
	}
	req := capture.Requests[0]
	if req.Path != "/api/users" || req.StatusCode != 201 {
		t.Errorf("request = %+v", req)
	}
	// 物化前已脱敏
	if strings.Contains(req.Body, "alice@example.com") {
		t.Errorf("body still contains PII: %s", req.Body)
	}
	if !strings.Contains(req.Body, "[REDACTED-EMAIL]") {
		t.Errorf("body = %s, want redaction token", req.Body)
	}
	// 物化后缓冲清空
	if got := len(ic.GetCapturedInteractions()); got != 0 {
		t.Errorf("buffer after harvest = %d, want 0", got)
	}
}

func TestHarvestCaptureFeedsLiveSession(t *testing.T) {
	r := newRunner(t)
	ic := r.Interceptor()

	sid := r.StartLiveSession("alice", map[string]string{"env": "staging"})
	if err := ic.StartRecording(); err != nil {
		t.Fatalf("StartRecording() error = %v", err)
	}

	// 两条业务请求与一条会被过滤的健康检查
	id1, _ := ic.CaptureRequest(domain.CapturedRequest{Method: "POST", Path: "/api/users", Body: `{"email":"alice@example.com"}`})
	ic.CaptureResponse(id1, domain.CapturedResponse{StatusCode: 201})
	id2, _ := ic.CaptureRequest(domain.CapturedRequest{Method: "GET", Path: "/health"})
	ic.CaptureResponse(id2, domain.CapturedResponse{StatusCode: 200})
	id3, _ := ic.CaptureRequest(domain.CapturedRequest{Method: "GET", Path: "/api/users/7"})
	ic.CaptureResponse(id3, domain.CapturedResponse{StatusCode: 200})

	if _, err := r.HarvestCapture(context.Background(), "http://upstream"); err != nil {
		t.Fatalf("HarvestCapture() error = %v", err)
	}

	// 物化的交互按到达顺序进入会话，且已脱敏
	sess, ok := r.Recorder().GetSession(sid)
	if !ok {
		t.Fatal("live session not found")
	}
	if len(sess.Interactions) != 2 {
		t.Fatalf("session interactions = %d, want 2 (health check filtered)", len(sess.Interactions))
	}
	if sess.Interactions[0].Request.Path != "/api/users" || sess.Interactions[1].Request.Path != "/api/users/7" {
		t.Errorf("session order = %s, %s", sess.Interactions[0].Request.Path, sess.Interactions[1].Request.Path)
	}
	if strings.Contains(sess.Interactions[0].Request.Body, "alice@example.com") {
		t.Errorf("session interaction retains PII: %s", sess.Interactions[0].Request.Body)
	}
	if stats := r.Recorder().GetSessionStatistics(); stats.TotalInteractions != 2 {
		t.Errorf("TotalInteractions = %d, want 2", stats.TotalInteractions)
	}

	if err := r.EndLiveSession(); err != nil {
		t.Fatalf("EndLiveSession() error = %v", err)
	}
	// 解绑后再次结束应报会话未找到
	if err := r.EndLiveSession(); !errx.Is(err, errx.CodeSessionNotFound) {
		t.Errorf("second EndLiveSession() error = %v, want CodeSessionNotFound", err)
	}
}

func TestHarvestCaptureSkipSanitize(t *testing.T) {
	r := newRunnerOpts(t, runner.Options{SkipSanitize: true})
	ic := r.Interceptor()

	if err := ic.StartRecording(); err != nil {
		t.Fatalf("StartRecording() error = %v", err)
	}
	id, _ := ic.CaptureRequest(domain.CapturedRequest{Method: "POST", Path: "/api/users", Body: `{"email":"alice@example.com"}`})
	ic.CaptureResponse(id, domain.CapturedResponse{StatusCode: 201})

	capture, err := r.HarvestCapture(context.Background(), "http://upstream")
	if err != nil {
		t.Fatalf("HarvestCapture() error = %v", err)
	}
	if len(capture.Requests) != 1 {
		t.Fatalf("kept %d requests, want 1", len(capture.Requests))
	}
	// 关闭脱敏时原始载荷保持不变
	if !strings.Contains(capture.Requests[0].Body, "alice@example.com") {
		t.Errorf("body = %s, want raw payload retained", capture.Requests[0].Body)
	}
}

func TestLoadCaptureInvalidSchemaError(t *testing.T) {
	r := newRunner(t)
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte(`{"capture_time":"2026-01-01T00:00:00Z","requests":[]}`), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := r.LoadCapture(path)
	if !errx.Is(err, errx.CodeValidation) {
		t.Errorf("error = %v, want CodeValidation", err)
	}
	if !errors.Is(err, domain.ErrInvalidCapture) {
		t.Errorf("error chain should include ErrInvalidCapture, got %v", err)
	}
}

func TestSanitizeCaptureIdempotent(t *testing.T) {
	r := newRunner(t)
	capture := sampleCapture()
	capture.Requests[0].Body = `{"email":"bob@test.org"}`

	once := r.SanitizeCapture(capture)
	twice := r.SanitizeCapture(once)

	a, _ := json.Marshal(once)
	b, _ := json.Marshal(twice)
	if string(a) != string(b) {
		t.Errorf("sanitize not idempotent:\n once: %s\ntwice: %s", a, b)
	}
	// 原捕获不被修改
	if !strings.Contains(capture.Requests[0].Body, "bob@test.org") {
		t.Error("original capture was mutated")
	}
}

func TestGenerateFuzzingCampaign(t *testing.T) {
	r := newRunner(t)
	capture := sampleCapture()

	camp, err := r.GenerateFuzzingCampaign(capture, "http://target", domain.FuzzingConfig{
		Strategy:            domain.StrategyIntelligent,
		MutationsPerRequest: 5,
	})
	if err != nil {
		t.Fatalf("GenerateFuzzingCampaign() error = %v", err)
	}
	if camp.Status != domain.CampaignReady {
		t.Errorf("Status = %s, want ready", camp.Status)
	}
	if camp.SourceCapture != capture.CaptureID {
		t.Errorf("SourceCapture = %s, want %s", camp.SourceCapture, capture.CaptureID)
	}

	// 未知策略在创建时即失败
	if _, err := r.GenerateFuzzingCampaign(capture, "http://target", domain.FuzzingConfig{Strategy: "quantum"}); !errx.Is(err, errx.CodeValidation) {
		t.Errorf("unknown strategy error = %v, want CodeValidation", err)
	}
}

func TestRunFuzzingCampaignEndToEnd(t *testing.T) {
	r := newRunner(t)
	capture := sampleCapture()
	capture.Requests = append(capture.Requests, capture.Requests[0], capture.Requests[0])

	camp, err := r.GenerateFuzzingCampaign(capture, "http://target", domain.FuzzingConfig{
		Strategy:            domain.StrategyIntelligent,
		MutationsPerRequest: 5,
	})
	if err != nil {
		t.Fatalf("GenerateFuzzingCampaign() error = %v", err)
	}

	exec := func(ctx context.Context, original, mutated domain.TrafficRequest) (campaign.CallResult, error) {
		return campaign.CallResult{StatusCode: 200, Body: "ok"}, nil
	}
	if err := r.RunFuzzingCampaign(context.Background(), camp, capture, exec); err != nil {
		t.Fatalf("RunFuzzingCampaign() error = %v", err)
	}

	// 3 个请求 × 每个 5 个变异 = 15
	if camp.TotalMutations != 15 {
		t.Errorf("TotalMutations = %d, want 15", camp.TotalMutations)
	}
	if camp.SuccessfulMutations != 15 {
		t.Errorf("SuccessfulMutations = %d, want 15", camp.SuccessfulMutations)
	}
	if camp.Status != domain.CampaignCompleted {
		t.Errorf("Status = %s, want completed", camp.Status)
	}
}

func TestReplayTraffic(t *testing.T) {
	r := newRunner(t)
	capture := sampleCapture()
	capture.Requests = append(capture.Requests,
		domain.TrafficRequest{Method: "GET", Path: "/api/fail"},
		domain.TrafficRequest{Method: "GET", Path: "/api/ok"},
	)

	var order []string
	summary, err := r.ReplayTraffic(context.Background(), capture, func(ctx context.Context, req *domain.TrafficRequest) (int, error) {
		order = append(order, req.Path)
		if req.Path == "/api/fail" {
			return 0, errors.New("connection refused")
		}
		return 200, nil
	})
	if err != nil {
		t.Fatalf("ReplayTraffic() error = %v", err)
	}

	if summary.Total != 3 || summary.Succeeded != 2 || summary.Failed != 1 {
		t.Errorf("summary = %d/%d/%d, want 3/2/1", summary.Total, summary.Succeeded, summary.Failed)
	}
	// 严格按捕获顺序回放，失败不中止
	want := []string{"/api/orders", "/api/fail", "/api/ok"}
	if !reflect.DeepEqual(order, want) {
		t.Errorf("replay order = %v, want %v", order, want)
	}
}
