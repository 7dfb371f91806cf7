// Package compliance 对捕获数据做留存合规检查
package compliance

import (
	"fmt"
	"strings"

	"shadowpipe/internal/regexutil"
	"shadowpipe/pkg/domain"
)

// 合规扫描使用的 PII 特征，命中即视为脱敏遗漏
var piiPatterns = []struct {
	name    string
	pattern string
}{
	{"email", `\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`},
	{"ssn", `\b\d{3}-\d{2}-\d{4}\b`},
	{"credit_card", `\b\d{4}[- ]?\d{4}[- ]?\d{4}[- ]?\d{4}\b`},
	{"ip_address", `\b(?:\d{1,3}\.){3}\d{1,3}\b`},
}

// 不允许以明文形式留存的请求头（小写）
var plaintextForbiddenHeaders = []string{
	"authorization",
	"proxy-authorization",
	"cookie",
	"set-cookie",
	"x-api-key",
	"x-auth-token",
	"api-key",
}

// Checker 留存合规检查器
// 对已脱敏数据执行独立的二次扫描：脱敏器遗漏的 PII 在此暴露
type Checker struct {
	cache *regexutil.Cache
}

// NewChecker 创建合规检查器
func NewChecker() *Checker {
	return &Checker{cache: regexutil.NewCache()}
}

// CheckInteraction 扫描单条交互，返回违规描述列表
func (c *Checker) CheckInteraction(it *domain.CapturedInteraction) []string {
	var violations []string
	violations = append(violations, c.checkHeaders("request", it.Request.Headers)...)
	violations = append(violations, c.checkHeaders("response", it.Response.Headers)...)
	violations = append(violations, c.checkText("request body", it.Request.Body)...)
	violations = append(violations, c.checkText("response body", it.Response.Body)...)
	for k, v := range it.Request.QueryParams {
		violations = append(violations, c.checkText("query param "+k, v)...)
	}
	return violations
}

// SessionReport 会话合规报告
type SessionReport struct {
	SessionID  domain.SessionID `json:"session_id"`
	Checked    int              `json:"checked"`
	Compliant  bool             `json:"compliant"`
	Violations []string         `json:"violations,omitempty"`
}

// CheckSession 扫描整个会话并汇总报告
func (c *Checker) CheckSession(sess *domain.UserSession) SessionReport {
	report := SessionReport{SessionID: sess.SessionID}
	for i := range sess.Interactions {
		it := &sess.Interactions[i]
		for _, v := range c.CheckInteraction(it) {
			report.Violations = append(report.Violations, fmt.Sprintf("interaction %d (%s): %s", i, it.Endpoint(), v))
		}
		report.Checked++
	}
	report.Compliant = len(report.Violations) == 0
	return report
}

// checkHeaders 检查头部映射：禁止明文留存的头与残留 PII
func (c *Checker) checkHeaders(where string, headers map[string]string) []string {
	var violations []string
	for k, v := range headers {
		lower := strings.ToLower(k)
		for _, forbidden := range plaintextForbiddenHeaders {
			if lower == forbidden && v != "" && !strings.HasPrefix(v, "[PII:") {
				violations = append(violations, fmt.Sprintf("%s header %s retained in plaintext", where, k))
			}
		}
		violations = append(violations, c.checkText(where+" header "+k, v)...)
	}
	return violations
}

// checkText 扫描文本中的 PII 残留
func (c *Checker) checkText(where, text string) []string {
	if text == "" {
		return nil
	}
	var violations []string
	for _, p := range piiPatterns {
		if c.cache.MatchString(p.pattern, text) {
			violations = append(violations, fmt.Sprintf("%s contains unredacted %s", where, p.name))
		}
	}
	return violations
}
