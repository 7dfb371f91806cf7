package campaign

import (
	"strconv"
	"strings"
)

// 错误信息泄露特征，出现在响应体中即视为漏洞信号
var disclosureMarkers = []string{
	"traceback (most recent call last)",
	"stack trace",
	"stacktrace",
	"exception in",
	"unhandled exception",
	"syntax error",
	"sql syntax",
	"sqlstate",
	"ora-",
	"panic:",
	"runtime error",
	"at java.",
	"internal server error",
	"undefined index",
	"fatal error",
}

// Classification 漏洞分类结果
type Classification struct {
	Vulnerable bool
	Type       string // server_error / error_disclosure
	Evidence   string
}

// classify 按状态码与响应体特征判定漏洞信号
// 5xx 状态码或响应体中的错误泄露特征均视为命中
func classify(statusCode int, body string) Classification {
	if statusCode >= 500 && statusCode < 600 {
		return Classification{Vulnerable: true, Type: "server_error", Evidence: "http status " + strconv.Itoa(statusCode)}
	}
	lower := strings.ToLower(body)
	for _, marker := range disclosureMarkers {
		if strings.Contains(lower, marker) {
			return Classification{Vulnerable: true, Type: "error_disclosure", Evidence: marker}
		}
	}
	return Classification{}
}
