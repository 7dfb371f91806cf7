// Package filterspec 定义捕获过滤与脱敏规则的类型规范
package filterspec

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// 配置版本常量
const (
	DefaultConfigVersion = "1.0" // 默认配置版本
)

// FilterAction 过滤规则动作
type FilterAction string

const (
	ActionInclude FilterAction = "include" // 保留交互
	ActionExclude FilterAction = "exclude" // 丢弃交互
)

// FilterRule 过滤规则定义
// 规则按外部给定的固定顺序评估，第一条启用且命中的规则的动作生效
type FilterRule struct {
	ID           string       `json:"id"`                     // 规则唯一标识符
	Name         string       `json:"name"`                   // 规则名称
	Description  string       `json:"description,omitempty"`  // 规则描述
	PathPatterns []string     `json:"path_patterns"`          // 路径正则集合
	Methods      []string     `json:"methods,omitempty"`      // HTTP 方法集合，空表示全部
	Action       FilterAction `json:"action"`                 // 命中后的动作
	Enabled      bool         `json:"enabled"`                // 是否启用
}

// NewFilterRule 创建一个新的过滤规则（带 UUID）
func NewFilterRule(name string, action FilterAction) FilterRule {
	return FilterRule{
		ID:      uuid.New().String(),
		Name:    name,
		Action:  action,
		Enabled: true,
	}
}

// ReplacementStrategy 脱敏替换策略
type ReplacementStrategy string

const (
	ReplaceLiteral ReplacementStrategy = "literal" // 固定字面量标记
	ReplaceHash    ReplacementStrategy = "hash"    // 不可逆带密钥哈希
)

// SanitizationRule 脱敏规则定义
type SanitizationRule struct {
	Name        string              `json:"name"`                  // 规则名称
	Description string              `json:"description,omitempty"` // 规则描述
	Pattern     string              `json:"pattern"`               // 匹配正则
	Strategy    ReplacementStrategy `json:"strategy"`              // 替换策略
	Token       string              `json:"token,omitempty"`       // literal 策略使用的标记
}

// Config 过滤配置根结构
type Config struct {
	ID             string             `json:"id"`                        // 配置唯一标识符
	Name           string             `json:"name"`                      // 配置名称
	Version        string             `json:"version"`                   // 配置格式版本
	Rules          []FilterRule       `json:"rules"`                     // 过滤规则列表（顺序即评估顺序）
	Sanitization   []SanitizationRule `json:"sanitization,omitempty"`    // 自定义脱敏规则
	NoiseThreshold float64            `json:"noise_threshold,omitempty"` // 噪声占比阈值
	MinSamples     int                `json:"min_samples,omitempty"`     // 噪声判定最小样本数
}

// NewConfig 创建一个新的空配置（带 UUID）
func NewConfig(name string) *Config {
	return &Config{
		ID:      uuid.New().String(),
		Name:    name,
		Version: DefaultConfigVersion,
		Rules:   []FilterRule{},
	}
}

// Parse 解析并校验 JSON 配置
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse filter config: %w", err)
	}
	if cfg.Version == "" {
		cfg.Version = DefaultConfigVersion
	}
	for i := range cfg.Rules {
		r := &cfg.Rules[i]
		if r.Action != ActionInclude && r.Action != ActionExclude {
			return nil, fmt.Errorf("rule %q: invalid action %q", r.Name, r.Action)
		}
	}
	for i := range cfg.Sanitization {
		s := &cfg.Sanitization[i]
		if s.Pattern == "" {
			return nil, fmt.Errorf("sanitization rule %q: pattern is required", s.Name)
		}
		if s.Strategy == "" {
			s.Strategy = ReplaceLiteral
		}
	}
	return &cfg, nil
}
