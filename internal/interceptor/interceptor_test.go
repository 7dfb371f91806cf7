package interceptor_test

import (
	"errors"
	"testing"
	"time"

	"shadowpipe/internal/interceptor"
	"shadowpipe/internal/logger"
	"shadowpipe/pkg/domain"
)

func newInterceptor(t *testing.T) *interceptor.Interceptor {
	t.Helper()
	ic := interceptor.New(time.Minute, logger.NewNop())
	t.Cleanup(ic.Close)
	return ic
}

func TestStartRecordingTwice(t *testing.T) {
	ic := newInterceptor(t)

	if err := ic.StartRecording(); err != nil {
		t.Fatalf("StartRecording() error = %v", err)
	}
	// 录制中重复开启应显式失败，原窗口不受影响
	if err := ic.StartRecording(); !errors.Is(err, domain.ErrRecordingActive) {
		t.Errorf("second StartRecording() error = %v, want ErrRecordingActive", err)
	}
	if !ic.Recording() {
		t.Error("Recording() = false, want true")
	}
}

func TestCaptureOutsideRecordingWindow(t *testing.T) {
	ic := newInterceptor(t)

	// 未开启录制时请求不被缓冲
	if _, ok := ic.CaptureRequest(domain.CapturedRequest{Method: "GET", Path: "/api"}); ok {
		t.Error("CaptureRequest() outside recording window should return false")
	}
}

func TestPairing(t *testing.T) {
	ic := newInterceptor(t)

	if err := ic.StartRecording(); err != nil {
		t.Fatalf("StartRecording() error = %v", err)
	}

	id, ok := ic.CaptureRequest(domain.CapturedRequest{Method: "POST", Path: "/api/orders", Body: `{"item":"a"}`})
	if !ok {
		t.Fatal("CaptureRequest() returned false")
	}
	if !ic.CaptureResponse(id, domain.CapturedResponse{StatusCode: 201}) {
		t.Fatal("CaptureResponse() returned false")
	}

	got := ic.GetCapturedInteractions()
	if len(got) != 1 {
		t.Fatalf("captured %d interactions, want 1", len(got))
	}
	if got[0].Request.Path != "/api/orders" || got[0].Response.StatusCode != 201 {
		t.Errorf("interaction = %+v, pairing mismatch", got[0])
	}
}

func TestResponseWithoutRequest(t *testing.T) {
	ic := newInterceptor(t)

	if err := ic.StartRecording(); err != nil {
		t.Fatalf("StartRecording() error = %v", err)
	}
	// 无对应请求的响应不会物化交互
	if ic.CaptureResponse("unknown-id", domain.CapturedResponse{StatusCode: 200}) {
		t.Error("CaptureResponse() with unknown id should return false")
	}
	if got := len(ic.GetCapturedInteractions()); got != 0 {
		t.Errorf("captured %d interactions, want 0", got)
	}
}

func TestStopRecordingDropsUnpaired(t *testing.T) {
	ic := newInterceptor(t)

	if err := ic.StartRecording(); err != nil {
		t.Fatalf("StartRecording() error = %v", err)
	}

	// 一条配对完成，一条只有请求
	id1, _ := ic.CaptureRequest(domain.CapturedRequest{Method: "GET", Path: "/api/a"})
	ic.CaptureResponse(id1, domain.CapturedResponse{StatusCode: 200})
	id2, _ := ic.CaptureRequest(domain.CapturedRequest{Method: "GET", Path: "/api/b"})

	got := ic.StopRecording()
	if len(got) != 1 {
		t.Fatalf("StopRecording() returned %d interactions, want 1", len(got))
	}
	if got[0].Request.Path != "/api/a" {
		t.Errorf("kept interaction path = %s, want /api/a", got[0].Request.Path)
	}
	// 停止后未配对请求已被丢弃
	if ic.PendingCount() != 0 {
		t.Errorf("PendingCount() = %d, want 0", ic.PendingCount())
	}
	// 停止后迟到的响应不再物化
	if ic.CaptureResponse(id2, domain.CapturedResponse{StatusCode: 200}) {
		t.Error("CaptureResponse() after stop should return false")
	}
}

func TestRestartRecordingKeepsBuffer(t *testing.T) {
	ic := newInterceptor(t)

	_ = ic.StartRecording()
	id, _ := ic.CaptureRequest(domain.CapturedRequest{Method: "GET", Path: "/api/a"})
	ic.CaptureResponse(id, domain.CapturedResponse{StatusCode: 200})
	ic.StopRecording()

	// 重新开启录制不清空缓冲，ClearCaptured 才清空
	if err := ic.StartRecording(); err != nil {
		t.Fatalf("restart StartRecording() error = %v", err)
	}
	if got := len(ic.GetCapturedInteractions()); got != 1 {
		t.Errorf("buffer after restart = %d, want 1", got)
	}
	ic.ClearCaptured()
	if got := len(ic.GetCapturedInteractions()); got != 0 {
		t.Errorf("buffer after ClearCaptured() = %d, want 0", got)
	}
}
