// Package filter 实现捕获过滤决策：规则过滤与自适应噪声识别
package filter

import (
	"fmt"
	"strings"

	"shadowpipe/internal/logger"
	"shadowpipe/internal/regexutil"
	"shadowpipe/pkg/domain"
	"shadowpipe/pkg/filterspec"
)

// 内置健康检查路径排除
var healthCheckPatterns = regexutil.MustCompileSet([]string{
	`^/health$`,
	`^/healthz$`,
	`^/health/live$`,
	`^/health/ready$`,
	`^/ping$`,
	`^/ready$`,
	`^/livez$`,
	`^/metrics$`,
	`^/status$`,
})

// 内置静态资源扩展名排除
var staticExtensions = []string{
	".css", ".js", ".map",
	".png", ".jpg", ".jpeg", ".gif", ".svg", ".ico", ".webp",
	".woff", ".woff2", ".ttf", ".eot",
}

// Filter 捕获过滤决策接口
type Filter interface {
	// ShouldCapture 判断交互是否应被持久化
	ShouldCapture(it *domain.CapturedInteraction) bool
}

// compiledRule 预编译路径模式的规则
type compiledRule struct {
	spec     filterspec.FilterRule
	patterns *regexutil.PatternSet
	methods  map[string]struct{}
}

// CaptureFilter 规则驱动的捕获过滤器
// 规则按给定顺序评估，第一条启用且命中的规则的动作生效；
// 无规则命中时默认保留，除非命中内置健康检查/静态资源排除
type CaptureFilter struct {
	rules        []compiledRule
	filterHealth bool
	filterStatic bool
	log          logger.Logger
}

// Options 过滤器选项
type Options struct {
	FilterHealth bool // 启用内置健康检查路径排除
	FilterStatic bool // 启用内置静态资源排除
}

// DefaultOptions 返回启用全部内置排除的选项
func DefaultOptions() Options {
	return Options{FilterHealth: true, FilterStatic: true}
}

// NewCaptureFilter 创建捕获过滤器，规则中的路径模式在此统一编译
func NewCaptureFilter(rules []filterspec.FilterRule, opts Options, l logger.Logger) (*CaptureFilter, error) {
	if l == nil {
		l = logger.NewNop()
	}
	f := &CaptureFilter{
		rules:        make([]compiledRule, 0, len(rules)),
		filterHealth: opts.FilterHealth,
		filterStatic: opts.FilterStatic,
		log:          l,
	}
	for i := range rules {
		r := rules[i]
		set, err := regexutil.CompileSet(r.PathPatterns)
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", r.Name, err)
		}
		methods := make(map[string]struct{}, len(r.Methods))
		for _, m := range r.Methods {
			methods[strings.ToUpper(m)] = struct{}{}
		}
		f.rules = append(f.rules, compiledRule{spec: r, patterns: set, methods: methods})
	}
	return f, nil
}

// ShouldCapture 判断交互是否应被持久化
func (f *CaptureFilter) ShouldCapture(it *domain.CapturedInteraction) bool {
	for i := range f.rules {
		r := &f.rules[i]
		if !r.spec.Enabled {
			continue
		}
		if !r.matches(&it.Request) {
			continue
		}
		keep := r.spec.Action == filterspec.ActionInclude
		f.log.Debug("过滤规则命中", "rule", r.spec.Name, "action", r.spec.Action, "endpoint", it.Endpoint())
		return keep
	}

	if f.filterHealth && healthCheckPatterns.MatchAny(it.Request.Path) {
		f.log.Debug("内置健康检查排除命中", "path", it.Request.Path)
		return false
	}
	if f.filterStatic && hasStaticExtension(it.Request.Path) {
		f.log.Debug("内置静态资源排除命中", "path", it.Request.Path)
		return false
	}
	return true
}

// matches 判断规则是否命中请求
func (r *compiledRule) matches(req *domain.CapturedRequest) bool {
	if len(r.methods) > 0 {
		if _, ok := r.methods[strings.ToUpper(req.Method)]; !ok {
			return false
		}
	}
	if r.patterns.Len() == 0 {
		return true
	}
	return r.patterns.MatchAny(req.Path)
}

// hasStaticExtension 判断路径是否以静态资源扩展名结尾
func hasStaticExtension(path string) bool {
	lower := strings.ToLower(path)
	for _, ext := range staticExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// FilterInteractions 对列表应用过滤决策，保序返回保留子集
func FilterInteractions(f Filter, list []domain.CapturedInteraction) []domain.CapturedInteraction {
	kept := make([]domain.CapturedInteraction, 0, len(list))
	for i := range list {
		if f.ShouldCapture(&list[i]) {
			kept = append(kept, list[i])
		}
	}
	return kept
}
