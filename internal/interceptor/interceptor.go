// Package interceptor 实现原始流量捕获原语：请求与响应的配对缓冲
package interceptor

import (
	"sync"
	"time"

	"shadowpipe/internal/logger"
	"shadowpipe/internal/tracker"
	"shadowpipe/pkg/domain"
)

// Interceptor 流量拦截器，负责录制窗口内请求/响应的配对与缓冲
// 每个实例同一时刻只允许一个录制窗口；录制中再次 StartRecording 显式失败
type Interceptor struct {
	mu        sync.Mutex
	recording bool
	buffer    []domain.CapturedInteraction
	pending   *tracker.Tracker
	log       logger.Logger
}

// New 创建流量拦截器
func New(pairTimeout time.Duration, l logger.Logger) *Interceptor {
	if l == nil {
		l = logger.NewNop()
	}
	return &Interceptor{
		buffer:  []domain.CapturedInteraction{},
		pending: tracker.New(pairTimeout, l),
		log:     l,
	}
}

// StartRecording 开启录制窗口，不清除已有缓冲
// 已在录制中时返回 domain.ErrRecordingActive，原窗口不受影响
func (i *Interceptor) StartRecording() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.recording {
		return domain.ErrRecordingActive
	}
	i.recording = true
	i.log.Info("开始录制流量")
	return nil
}

// CaptureRequest 缓冲一个请求并返回其关联ID
// 仅在录制中生效；非录制状态返回 ok=false
func (i *Interceptor) CaptureRequest(req domain.CapturedRequest) (domain.CorrelationID, bool) {
	i.mu.Lock()
	recording := i.recording
	i.mu.Unlock()
	if !recording {
		return "", false
	}

	id := domain.NewCorrelationID()
	i.pending.Track(id, req)
	i.log.Debug("请求已缓冲待配对", "correlationID", id, "method", req.Method, "path", req.Path)
	return id, true
}

// CaptureResponse 按关联ID配对响应，录制中时追加完整交互
// 找不到对应请求（已超时清理或录制已停止）时返回 false
func (i *Interceptor) CaptureResponse(id domain.CorrelationID, res domain.CapturedResponse) bool {
	req, ok := i.pending.Claim(id)
	if !ok {
		i.log.Debug("响应未找到可配对的请求", "correlationID", id)
		return false
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	if !i.recording {
		return false
	}
	i.buffer = append(i.buffer, domain.CapturedInteraction{
		Request:   req,
		Response:  res,
		Timestamp: time.Now(),
	})
	i.log.Debug("交互已入缓冲", "correlationID", id, "statusCode", res.StatusCode, "buffered", len(i.buffer))
	return true
}

// StopRecording 关闭录制窗口并返回累计交互
// 未配对的请求直接丢弃：流截断是预期边界情况，不算错误
func (i *Interceptor) StopRecording() []domain.CapturedInteraction {
	i.mu.Lock()
	i.recording = false
	out := make([]domain.CapturedInteraction, len(i.buffer))
	copy(out, i.buffer)
	i.mu.Unlock()

	if dropped := i.pending.Drain(); dropped > 0 {
		i.log.Info("丢弃未配对请求", "dropped", dropped)
	}
	i.log.Info("停止录制流量", "captured", len(out))
	return out
}

// GetCapturedInteractions 返回当前缓冲的交互快照
func (i *Interceptor) GetCapturedInteractions() []domain.CapturedInteraction {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := make([]domain.CapturedInteraction, len(i.buffer))
	copy(out, i.buffer)
	return out
}

// ClearCaptured 清空交互缓冲
func (i *Interceptor) ClearCaptured() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.buffer = i.buffer[:0]
}

// Recording 返回是否处于录制中
func (i *Interceptor) Recording() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.recording
}

// PendingCount 返回等待配对的请求数量
func (i *Interceptor) PendingCount() int {
	return i.pending.Len()
}

// Close 释放拦截器持有的后台资源
func (i *Interceptor) Close() {
	i.pending.Stop()
}
