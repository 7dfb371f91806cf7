// Package tracker 管理等待响应配对的请求上下文
package tracker

import (
	"sync"
	"time"

	"shadowpipe/internal/logger"
	"shadowpipe/pkg/domain"
)

// entry 待配对条目
type entry struct {
	id        domain.CorrelationID
	request   domain.CapturedRequest
	startTime time.Time
}

// Tracker 关联追踪器，按显式关联ID暂存尚未收到响应的请求
// 配对不依赖到达顺序，并发路径下同一关联ID的请求与响应总是正确配对
type Tracker struct {
	pool    sync.Map
	timeout time.Duration
	log     logger.Logger
	done    chan struct{}
	once    sync.Once
}

// New 创建一个新的关联追踪器
func New(timeout time.Duration, l logger.Logger) *Tracker {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if l == nil {
		l = logger.NewNop()
	}
	t := &Tracker{
		timeout: timeout,
		log:     l,
		done:    make(chan struct{}),
	}
	go t.cleanupLoop()
	return t
}

// Track 暂存等待配对的请求
func (t *Tracker) Track(id domain.CorrelationID, req domain.CapturedRequest) {
	t.pool.Store(id, &entry{
		id:        id,
		request:   req,
		startTime: time.Now(),
	})
}

// Claim 取出并移除待配对请求
func (t *Tracker) Claim(id domain.CorrelationID) (domain.CapturedRequest, bool) {
	val, ok := t.pool.LoadAndDelete(id)
	if !ok {
		return domain.CapturedRequest{}, false
	}
	return val.(*entry).request, true
}

// Discard 手动丢弃待配对请求
func (t *Tracker) Discard(id domain.CorrelationID) {
	t.pool.Delete(id)
}

// Drain 清空全部待配对请求，返回被丢弃的数量
// 录制停止时调用：未配对的请求按规范直接丢弃，不算错误
func (t *Tracker) Drain() int {
	dropped := 0
	t.pool.Range(func(key, _ any) bool {
		t.pool.Delete(key)
		dropped++
		return true
	})
	return dropped
}

// Len 返回当前待配对数量
func (t *Tracker) Len() int {
	n := 0
	t.pool.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Stop 停止追踪器，释放资源
func (t *Tracker) Stop() {
	t.once.Do(func() { close(t.done) })
}

// cleanupLoop 定期清理超时未配对请求的后台协程
func (t *Tracker) cleanupLoop() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
			now := time.Now()
			t.pool.Range(func(key, value any) bool {
				e := value.(*entry)
				if now.Sub(e.startTime) > t.timeout {
					t.pool.Delete(key)
					t.log.Debug("清理超时未配对请求", "correlationID", e.id, "method", e.request.Method, "path", e.request.Path)
				}
				return true
			})
		}
	}
}
