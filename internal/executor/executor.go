// Package executor 负责将捕获请求实际发送到目标服务
package executor

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"shadowpipe/internal/logger"
	"shadowpipe/pkg/domain"
)

// 响应体读取上限，超出部分截断
const maxResponseBytes = 1 << 20

// Executor 请求执行器，将捕获条目重放到目标服务
type Executor struct {
	client *http.Client
	log    logger.Logger
}

// New 创建请求执行器
// timeout<=0 时默认 10 秒；重放不跟随重定向，保留原始状态码
func New(timeout time.Duration, l logger.Logger) *Executor {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if l == nil {
		l = logger.NewNop()
	}
	return &Executor{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		log: l,
	}
}

// Do 将捕获条目发送到目标服务，返回状态码与响应体
func (e *Executor) Do(ctx context.Context, targetURL string, req *domain.TrafficRequest) (int, string, error) {
	u, err := buildURL(targetURL, req)
	if err != nil {
		return 0, "", err
	}

	var body io.Reader
	if req.Body != "" {
		body = strings.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u, body)
	if err != nil {
		return 0, "", err
	}
	for k, v := range req.Headers {
		if strings.EqualFold(k, "host") || strings.EqualFold(k, "content-length") {
			continue
		}
		httpReq.Header.Set(k, v)
	}

	res, err := e.client.Do(httpReq)
	if err != nil {
		return 0, "", err
	}
	defer res.Body.Close()

	data, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		return res.StatusCode, "", err
	}
	e.log.Debug("请求已发送", "method", req.Method, "url", u, "statusCode", res.StatusCode)
	return res.StatusCode, string(data), nil
}

// buildURL 由目标基址与捕获条目拼接完整 URL
func buildURL(targetURL string, req *domain.TrafficRequest) (string, error) {
	base, err := url.Parse(strings.TrimRight(targetURL, "/"))
	if err != nil {
		return "", err
	}
	base.Path = req.Path

	if len(req.QueryParams) > 0 {
		q := url.Values{}
		for k, v := range req.QueryParams {
			q.Set(k, v)
		}
		base.RawQuery = q.Encode()
	}
	return base.String(), nil
}
