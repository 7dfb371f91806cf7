// Package config 提供管道的配置结构与加载
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config 配置文件结构体
type Config struct {
	Version string `yaml:"version"`
	Sqlite  struct {
		Db     string `yaml:"db"`
		Prefix string `yaml:"prefix"`
	} `yaml:"sqlite"`
	Log struct {
		Level  string   `yaml:"level"`
		Writer []string `yaml:"writer"`
	} `yaml:"log"`
	Capture struct {
		NoiseThreshold float64 `yaml:"noiseThreshold"` // 噪声占比阈值
		MinSamples     int     `yaml:"minSamples"`     // 噪声判定最小样本数
		FilterHealth   bool    `yaml:"filterHealth"`   // 启用健康检查路径排除
		FilterStatic   bool    `yaml:"filterStatic"`   // 启用静态资源排除
		Sanitize       bool    `yaml:"sanitize"`       // 持久化前脱敏
	} `yaml:"capture"`
	Fuzz struct {
		Concurrency   int `yaml:"concurrency"`   // 战役执行并发数
		CallTimeoutMS int `yaml:"callTimeoutMS"` // 单次执行超时
		QueueCapacity int `yaml:"queueCapacity"` // 工作池队列容量
	} `yaml:"fuzz"`
}

// NewConfig 创建默认配置
func NewConfig() *Config {
	cfg := &Config{Version: "1.0.0"}
	cfg.Sqlite.Db = "shadowpipe.db"
	cfg.Sqlite.Prefix = "shadowpipe_"
	cfg.Log.Level = "info"
	cfg.Log.Writer = []string{"file", "console"}
	cfg.Capture.NoiseThreshold = 0.5
	cfg.Capture.MinSamples = 10
	cfg.Capture.FilterHealth = true
	cfg.Capture.FilterStatic = true
	cfg.Capture.Sanitize = true
	cfg.Fuzz.Concurrency = 4
	cfg.Fuzz.CallTimeoutMS = 5000
	cfg.Fuzz.QueueCapacity = 0
	return cfg
}

// Load 从 YAML 文件加载配置，文件不存在时返回默认配置
func Load(path string) (*Config, error) {
	cfg := NewConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
