// Package sanitizer 在持久化前对捕获载荷执行 PII 脱敏
package sanitizer

import (
	"crypto/hmac"
	"crypto/sha256"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"shadowpipe/internal/logger"
	"shadowpipe/internal/regexutil"
	"shadowpipe/pkg/domain"
	"shadowpipe/pkg/filterspec"
)

// 自定义规则的统一编译路径，多实例共享编译结果
var patternCache = regexutil.NewCache()

// builtinRule 内置 PII 规则
type builtinRule struct {
	name  string
	re    *regexp.Regexp
	token string
}

// 内置 PII 模式，先于用户自定义规则应用
// 替换标记不含数字与 @，保证不会再次命中任何 PII 模式（幂等性前提）
var builtinRules = []builtinRule{
	{"email", regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`), "[REDACTED-EMAIL]"},
	{"phone", regexp.MustCompile(`\b\+?\d{1,2}?[-. ]?\(?\d{3}\)?[-. ]?\d{3}[-. ]?\d{4}\b`), "[REDACTED-PHONE]"},
	{"ssn", regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`), "[REDACTED-SSN]"},
	{"credit_card", regexp.MustCompile(`\b\d{4}[- ]?\d{4}[- ]?\d{4}[- ]?\d{4}\b`), "[REDACTED-CC]"},
	{"ip", regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`), "[REDACTED-IP]"},
}

// 无条件整值脱敏的敏感请求头（小写）
var sensitiveHeaders = map[string]struct{}{
	"authorization":       {},
	"proxy-authorization": {},
	"cookie":              {},
	"set-cookie":          {},
	"x-api-key":           {},
	"x-auth-token":        {},
	"api-key":             {},
}

// compiledCustom 预编译的自定义脱敏规则
type compiledCustom struct {
	spec filterspec.SanitizationRule
	re   *regexp.Regexp
}

// Sanitizer 隐私脱敏器
// 所有 Sanitize* 方法返回新对象，原始捕获保持不变以便前后对比审计
type Sanitizer struct {
	custom  []compiledCustom
	hmacKey []byte
	log     logger.Logger
}

// New 创建脱敏器，自定义规则的模式在此统一编译
// key 用于敏感值的不可逆带密钥哈希：同值同标记、不可还原
func New(key []byte, custom []filterspec.SanitizationRule, l logger.Logger) (*Sanitizer, error) {
	if l == nil {
		l = logger.NewNop()
	}
	s := &Sanitizer{
		custom:  make([]compiledCustom, 0, len(custom)),
		hmacKey: key,
		log:     l,
	}
	for _, rule := range custom {
		re, err := patternCache.Get(rule.Pattern)
		if err != nil {
			return nil, fmt.Errorf("sanitization rule %q: %w", rule.Name, err)
		}
		s.custom = append(s.custom, compiledCustom{spec: rule, re: re})
	}
	return s, nil
}

// SanitizeInteraction 返回请求与响应均已脱敏的新交互
func (s *Sanitizer) SanitizeInteraction(it *domain.CapturedInteraction) domain.CapturedInteraction {
	return domain.CapturedInteraction{
		Request:   s.SanitizeRequest(&it.Request),
		Response:  s.SanitizeResponse(&it.Response),
		Timestamp: it.Timestamp,
	}
}

// SanitizeRequest 返回脱敏后的新请求对象
func (s *Sanitizer) SanitizeRequest(req *domain.CapturedRequest) domain.CapturedRequest {
	out := *req
	out.Headers = s.sanitizeHeaders(req.Headers)
	out.QueryParams = s.sanitizeValues(req.QueryParams)
	out.Body = s.SanitizeBody(req.Body)
	return out
}

// SanitizeResponse 返回脱敏后的新响应对象
func (s *Sanitizer) SanitizeResponse(res *domain.CapturedResponse) domain.CapturedResponse {
	out := *res
	out.Headers = s.sanitizeHeaders(res.Headers)
	out.Body = s.SanitizeBody(res.Body)
	return out
}

// SanitizeTrafficRequest 返回脱敏后的捕获文件条目
func (s *Sanitizer) SanitizeTrafficRequest(req *domain.TrafficRequest) domain.TrafficRequest {
	out := *req
	out.Headers = s.sanitizeHeaders(req.Headers)
	out.QueryParams = s.sanitizeValues(req.QueryParams)
	out.Body = s.SanitizeBody(req.Body)
	if req.Response != nil {
		res := s.SanitizeResponse(req.Response)
		out.Response = &res
	}
	return out
}

// SanitizeBody 对载荷执行脱敏
// 合法 JSON 按字符串叶子值逐个处理；非法 JSON 不报错，整体按不透明文本处理
func (s *Sanitizer) SanitizeBody(body string) string {
	if body == "" {
		return body
	}
	trimmed := strings.TrimSpace(body)
	if (strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[")) && gjson.Valid(body) {
		return s.sanitizeJSON(body)
	}
	return s.SanitizeText(body)
}

// sanitizeJSON 遍历 JSON 字符串叶子值并原位重写
func (s *Sanitizer) sanitizeJSON(body string) string {
	out := body
	var walk func(prefix string, value gjson.Result)
	walk = func(prefix string, value gjson.Result) {
		value.ForEach(func(key, v gjson.Result) bool {
			path := escapeKey(key.String())
			if prefix != "" {
				path = prefix + "." + path
			}
			switch {
			case v.IsObject() || v.IsArray():
				walk(path, v)
			case v.Type == gjson.String:
				clean := s.SanitizeText(v.String())
				if clean != v.String() {
					out, _ = sjson.Set(out, path, clean)
				}
			}
			return true
		})
	}
	walk("", gjson.Parse(body))
	return out
}

// span 文本中的一次匹配
type span struct {
	start       int
	end         int
	order       int    // 规则应用顺序：内置在前，自定义在后
	replacement string // 空表示使用哈希策略
	hash        bool
	ruleName    string
}

// SanitizeText 对不透明文本应用全部脱敏规则
// 重叠匹配时起始位置最早者生效；同起点取最长匹配
func (s *Sanitizer) SanitizeText(text string) string {
	if text == "" {
		return text
	}

	var spans []span
	order := 0
	for _, rule := range builtinRules {
		for _, loc := range rule.re.FindAllStringIndex(text, -1) {
			spans = append(spans, span{start: loc[0], end: loc[1], order: order, replacement: rule.token, ruleName: rule.name})
		}
		order++
	}
	for _, rule := range s.custom {
		for _, loc := range rule.re.FindAllStringIndex(text, -1) {
			sp := span{start: loc[0], end: loc[1], order: order, ruleName: rule.spec.Name}
			if rule.spec.Strategy == filterspec.ReplaceHash {
				sp.hash = true
			} else {
				sp.replacement = rule.spec.Token
				if sp.replacement == "" {
					sp.replacement = "[REDACTED]"
				}
			}
			spans = append(spans, sp)
		}
		order++
	}
	if len(spans) == 0 {
		return text
	}

	sort.Slice(spans, func(i, j int) bool {
		if spans[i].start != spans[j].start {
			return spans[i].start < spans[j].start
		}
		if spans[i].end != spans[j].end {
			return spans[i].end > spans[j].end
		}
		return spans[i].order < spans[j].order
	})

	var b strings.Builder
	pos := 0
	for _, sp := range spans {
		if sp.start < pos {
			continue // 与已采纳的更早匹配重叠，丢弃
		}
		b.WriteString(text[pos:sp.start])
		if sp.hash {
			b.WriteString(s.HashToken(text[sp.start:sp.end]))
		} else {
			b.WriteString(sp.replacement)
		}
		pos = sp.end
	}
	b.WriteString(text[pos:])
	return b.String()
}

// sanitizeHeaders 返回脱敏后的新头部映射
// 敏感头无条件整值替换为哈希标记，其余头按文本规则处理
func (s *Sanitizer) sanitizeHeaders(headers map[string]string) map[string]string {
	if headers == nil {
		return nil
	}
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		if _, sensitive := sensitiveHeaders[strings.ToLower(k)]; sensitive {
			out[k] = s.HashToken(v)
			continue
		}
		out[k] = s.SanitizeText(v)
	}
	return out
}

// sanitizeValues 返回脱敏后的新键值映射
func (s *Sanitizer) sanitizeValues(values map[string]string) map[string]string {
	if values == nil {
		return nil
	}
	out := make(map[string]string, len(values))
	for k, v := range values {
		out[k] = s.SanitizeText(v)
	}
	return out
}

// HashToken 生成值的不可逆带密钥哈希标记
// 摘要编码为纯字母（每个半字节映射到 a..p），确保标记不会命中任何内置 PII 模式
func (s *Sanitizer) HashToken(value string) string {
	if strings.HasPrefix(value, "[PII:") && strings.HasSuffix(value, "]") {
		return value // 已是哈希标记，保持幂等
	}
	mac := hmac.New(sha256.New, s.hmacKey)
	mac.Write([]byte(value))
	sum := mac.Sum(nil)[:8]

	letters := make([]byte, len(sum)*2)
	for i, b := range sum {
		letters[i*2] = 'a' + (b >> 4)
		letters[i*2+1] = 'a' + (b & 0x0f)
	}
	return "[PII:" + string(letters) + "]"
}

// escapeKey 转义 gjson/sjson 路径中的特殊字符
func escapeKey(key string) string {
	replacer := strings.NewReplacer(
		`\`, `\\`,
		`.`, `\.`,
		`*`, `\*`,
		`?`, `\?`,
		`|`, `\|`,
	)
	return replacer.Replace(key)
}
