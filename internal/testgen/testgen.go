// Package testgen 从捕获流量推导可回放的测试定义
package testgen

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"shadowpipe/pkg/domain"
)

// Generator 测试生成器
type Generator struct {
	// MaxResponseKeys 限制每个测试从响应体提取的断言键数量
	MaxResponseKeys int
}

// NewGenerator 创建测试生成器
func NewGenerator() *Generator {
	return &Generator{MaxResponseKeys: 5}
}

// Generate 为捕获中的每个请求生成一个测试定义
// 断言来自实际观测到的响应：状态码断言加响应体顶层键断言
func (g *Generator) Generate(capture *domain.CapturedTraffic) *domain.TestGenerationResult {
	result := &domain.TestGenerationResult{
		CaptureID: capture.CaptureID,
		Tests:     make([]domain.GeneratedTest, 0, len(capture.Requests)),
	}
	for i := range capture.Requests {
		req := &capture.Requests[i]
		result.Tests = append(result.Tests, g.generateOne(capture, req, i))
	}
	return result
}

// generateOne 为单个请求生成测试定义及负向变体
func (g *Generator) generateOne(capture *domain.CapturedTraffic, req *domain.TrafficRequest, index int) domain.GeneratedTest {
	test := domain.GeneratedTest{
		Name:        testName(req, index),
		Method:      req.Method,
		URL:         strings.TrimRight(capture.SourceURL, "/") + req.Path,
		Path:        req.Path,
		Headers:     req.Headers,
		QueryParams: req.QueryParams,
		Body:        req.Body,
	}

	status := req.StatusCode
	if status == 0 && req.Response != nil {
		status = req.Response.StatusCode
	}
	if status != 0 {
		test.Assertions = append(test.Assertions, domain.TestAssertion{Type: "status_code", Expected: status})
	}

	if req.Response != nil && gjson.Valid(req.Response.Body) {
		parsed := gjson.Parse(req.Response.Body)
		if parsed.IsObject() {
			count := 0
			parsed.ForEach(func(key, _ gjson.Result) bool {
				if count >= g.MaxResponseKeys {
					return false
				}
				test.Assertions = append(test.Assertions, domain.TestAssertion{Type: "response_key", Expected: key.String()})
				count++
				return true
			})
		}
	}

	test.NegativeTests = g.negativeVariants(req)
	return test
}

// negativeVariants 生成负向测试变体
// 有 JSON Body 的请求生成畸形 Body 变体，带认证头的请求生成缺失认证变体
func (g *Generator) negativeVariants(req *domain.TrafficRequest) []domain.NegativeTest {
	var variants []domain.NegativeTest

	if strings.TrimSpace(req.Body) != "" && gjson.Valid(req.Body) {
		variants = append(variants, domain.NegativeTest{
			Name:           "invalid_body",
			Description:    "请求体结构不合法时应被拒绝",
			Body:           `{"__invalid__": true}`,
			ExpectedStatus: []int{400, 422},
		})
	}

	for k := range req.Headers {
		lower := strings.ToLower(k)
		if lower == "authorization" || lower == "x-api-key" || lower == "x-auth-token" {
			variants = append(variants, domain.NegativeTest{
				Name:           "missing_" + strings.ReplaceAll(lower, "-", "_"),
				Description:    "缺失认证头时应被拒绝",
				RemoveHeader:   k,
				ExpectedStatus: []int{401, 403},
			})
		}
	}
	return variants
}

// testName 按方法与路径生成稳定可读的测试名
func testName(req *domain.TrafficRequest, index int) string {
	path := strings.Trim(req.Path, "/")
	path = strings.NewReplacer("/", "_", "-", "_", ".", "_").Replace(path)
	if path == "" {
		path = "root"
	}
	return fmt.Sprintf("test_%s_%s_%d", strings.ToLower(req.Method), path, index)
}

// ExportJSON 将测试生成结果序列化为缩进 JSON
func ExportJSON(result *domain.TestGenerationResult) ([]byte, error) {
	return json.MarshalIndent(result, "", "  ")
}
