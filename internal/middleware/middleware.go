// Package middleware 将标准 net/http 服务接入影子流量捕获
package middleware

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"shadowpipe/internal/filter"
	"shadowpipe/internal/interceptor"
	"shadowpipe/internal/logger"
	"shadowpipe/pkg/domain"
)

// 捕获的请求/响应体大小上限，超出部分截断
const maxBodyBytes = 1 << 20

// Capture 影子捕获中间件
// 旁路观察真实流量：请求进入时缓冲，响应写出后按关联ID配对。
// 捕获失败绝不影响被包裹服务的正常处理
type Capture struct {
	interceptor *interceptor.Interceptor
	smart       *filter.SmartFilter
	log         logger.Logger
}

// NewCapture 创建影子捕获中间件
// smart 可为 nil，此时不做频率观测
func NewCapture(ic *interceptor.Interceptor, smart *filter.SmartFilter, l logger.Logger) *Capture {
	if l == nil {
		l = logger.NewNop()
	}
	return &Capture{interceptor: ic, smart: smart, log: l}
}

// Wrap 包裹下游处理器，返回带影子捕获的处理器
func (c *Capture) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !c.interceptor.Recording() {
			next.ServeHTTP(w, r)
			return
		}

		captured := c.captureRequest(r)
		id, ok := c.interceptor.CaptureRequest(captured)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		elapsed := time.Since(start)

		response := domain.CapturedResponse{
			StatusCode:     rec.status,
			Headers:        flattenHeader(rec.Header()),
			Body:           rec.body.String(),
			ResponseTimeMS: float64(elapsed.Nanoseconds()) / 1e6,
		}
		c.interceptor.CaptureResponse(id, response)

		if c.smart != nil {
			it := domain.CapturedInteraction{Request: captured, Response: response}
			c.smart.RecordInteraction(&it)
		}
	})
}

// captureRequest 物化请求副本，Body 读取后原样回填
func (c *Capture) captureRequest(r *http.Request) domain.CapturedRequest {
	var body string
	if r.Body != nil {
		data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			c.log.Warn("读取请求体失败", "path", r.URL.Path, "error", err)
		} else {
			body = string(data)
			// 下游处理器仍需要完整的 Body
			r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(data), r.Body))
		}
	}

	query := make(map[string]string)
	for k, vs := range r.URL.Query() {
		if len(vs) > 0 {
			query[k] = vs[0]
		}
	}

	return domain.CapturedRequest{
		Method:      r.Method,
		Path:        r.URL.Path,
		Headers:     flattenHeader(r.Header),
		Body:        body,
		QueryParams: query,
		Timestamp:   time.Now(),
	}
}

// responseRecorder 镜像响应写入，同时保留原始写出路径
type responseRecorder struct {
	http.ResponseWriter
	status      int
	body        bytes.Buffer
	wroteHeader bool
}

func (r *responseRecorder) WriteHeader(status int) {
	if !r.wroteHeader {
		r.status = status
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(status)
}

// Flush 透传流式刷新，录制不能阻断上游的分块响应
func (r *responseRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *responseRecorder) Write(data []byte) (int, error) {
	if r.body.Len() < maxBodyBytes {
		remain := maxBodyBytes - r.body.Len()
		if remain > len(data) {
			remain = len(data)
		}
		r.body.Write(data[:remain])
	}
	return r.ResponseWriter.Write(data)
}

// flattenHeader 取每个头的首值，展平为简单映射
func flattenHeader(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, vs := range h {
		if len(vs) > 0 {
			out[k] = vs[0]
		}
	}
	return out
}
