// Package fuzzer 实现策略多态的请求变异生成
package fuzzer

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"shadowpipe/internal/logger"
	"shadowpipe/pkg/domain"
)

// Strategy 变异策略接口
// 策略在战役创建时一次性选定，而不是每次调用按字符串分派
type Strategy interface {
	// Name 返回策略标识
	Name() domain.FuzzStrategy

	// FuzzRequest 为请求生成变异列表
	// 无可变异字段时返回空列表，否则数量等于配置的 mutations_per_request
	FuzzRequest(req *domain.TrafficRequest) []domain.Mutation
}

// New 按配置构造具体策略
func New(cfg domain.FuzzingConfig, client ModelClient, l logger.Logger) (Strategy, error) {
	if l == nil {
		l = logger.NewNop()
	}
	switch cfg.Strategy {
	case domain.StrategyRandom:
		return NewRandom(cfg.MutationsPerRequest, 0), nil
	case domain.StrategyIntelligent:
		return NewIntelligent(cfg.MutationsPerRequest), nil
	case domain.StrategyCoverageGuided:
		return NewCoverageGuided(cfg.MutationsPerRequest), nil
	case domain.StrategyAIPowered:
		return NewAIPowered(cfg.MutationsPerRequest, client, l), nil
	default:
		return nil, fmt.Errorf("unknown fuzz strategy %q", cfg.Strategy)
	}
}

// target 可变异位置
type target struct {
	kind  domain.MutationTarget
	key   string
	value string
}

// enumerateTargets 枚举请求的可变异位置
// JSON Body 的字符串/数值叶子字段、查询参数与请求头值均可作为目标
func enumerateTargets(req *domain.TrafficRequest) []target {
	var targets []target

	body := strings.TrimSpace(req.Body)
	if body != "" && (strings.HasPrefix(body, "{") || strings.HasPrefix(body, "[")) && gjson.Valid(req.Body) {
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
				case v.Type == gjson.String || v.Type == gjson.Number || v.Type == gjson.True || v.Type == gjson.False:
					targets = append(targets, target{kind: domain.TargetBodyField, key: path, value: v.String()})
				}
				return true
			})
		}
		walk("", gjson.Parse(req.Body))
	} else if req.Body != "" {
		targets = append(targets, target{kind: domain.TargetRawBody, key: "", value: req.Body})
	}

	for k, v := range req.QueryParams {
		targets = append(targets, target{kind: domain.TargetQuery, key: k, value: v})
	}
	for k, v := range req.Headers {
		if strings.EqualFold(k, "host") || strings.EqualFold(k, "content-length") {
			continue
		}
		targets = append(targets, target{kind: domain.TargetHeader, key: k, value: v})
	}
	return targets
}

// ApplyMutation 将变异应用到请求，返回新的请求副本
func ApplyMutation(req *domain.TrafficRequest, m *domain.Mutation) domain.TrafficRequest {
	out := *req
	switch m.Target {
	case domain.TargetBodyField:
		if newBody, err := sjson.Set(req.Body, m.TargetKey, m.MutatedValue); err == nil {
			out.Body = newBody
		}
	case domain.TargetRawBody:
		out.Body = m.MutatedValue
	case domain.TargetQuery:
		out.QueryParams = copyMap(req.QueryParams)
		out.QueryParams[m.TargetKey] = m.MutatedValue
	case domain.TargetHeader:
		out.Headers = copyMap(req.Headers)
		out.Headers[m.TargetKey] = m.MutatedValue
	}
	return out
}

// copyMap 复制字符串映射
func copyMap(src map[string]string) map[string]string {
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

// escapeKey 转义 gjson/sjson 路径中的特殊字符
// 键名本身含 "." 等字符时，不转义会定位到错误的字段
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
