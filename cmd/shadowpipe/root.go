// shadowpipe 命令行入口：捕获、分析、脱敏、模糊测试、测试生成与回放
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"shadowpipe/internal/campaign"
	"shadowpipe/internal/config"
	"shadowpipe/internal/filter"
	"shadowpipe/internal/interceptor"
	"shadowpipe/internal/logger"
	"shadowpipe/internal/recorder"
	"shadowpipe/internal/runner"
	"shadowpipe/internal/sanitizer"
	"shadowpipe/internal/storage/db"
	"shadowpipe/internal/storage/model"
	"shadowpipe/internal/storage/repo"
	"shadowpipe/pkg/filterspec"
)

var (
	configPath  string
	filtersPath string
	hmacKey     string
	archive     bool
)

var rootCmd = &cobra.Command{
	Use:   "shadowpipe",
	Short: "影子流量管道：捕获生产流量并转化为测试资产",
	Long: "shadowpipe 旁路捕获真实服务流量，经过滤与隐私脱敏后物化为捕获文件，\n" +
		"并在此之上提供统计分析、模糊测试战役、测试用例生成与顺序回放。",
}

// Execute 运行命令行入口
func Execute() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "配置文件路径（YAML）")
	rootCmd.PersistentFlags().StringVar(&filtersPath, "filters", "", "过滤与脱敏规则文件路径（JSON）")
	rootCmd.PersistentFlags().StringVar(&hmacKey, "hmac-key", "", "敏感值哈希密钥（默认取 SHADOWPIPE_HMAC_KEY 环境变量）")
	rootCmd.PersistentFlags().BoolVar(&archive, "archive", false, "将捕获与战役归档到 SQLite")

	rootCmd.AddCommand(captureCmd())
	rootCmd.AddCommand(analyzeCmd())
	rootCmd.AddCommand(sanitizeCmd())
	rootCmd.AddCommand(fuzzCmd())
	rootCmd.AddCommand(generateCmd())
	rootCmd.AddCommand(replayCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app 一次命令执行所需的全部组件
type app struct {
	cfg    *config.Config
	log    logger.Logger
	runner *runner.ShadowRunner
	store  *repo.Store
}

// buildApp 按配置与规则文件装配管道
func buildApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	log := logger.NewZeroLogger(cfg)

	spec := filterspec.NewConfig("default")
	if filtersPath != "" {
		data, err := os.ReadFile(filtersPath)
		if err != nil {
			return nil, fmt.Errorf("read filters file: %w", err)
		}
		spec, err = filterspec.Parse(data)
		if err != nil {
			return nil, fmt.Errorf("parse filters file: %w", err)
		}
	}

	// 规则文件中的噪声参数优先于全局配置
	noiseThreshold := cfg.Capture.NoiseThreshold
	if spec.NoiseThreshold > 0 {
		noiseThreshold = spec.NoiseThreshold
	}
	minSamples := cfg.Capture.MinSamples
	if spec.MinSamples > 0 {
		minSamples = spec.MinSamples
	}

	base, err := filter.NewCaptureFilter(spec.Rules, filter.Options{
		FilterHealth: cfg.Capture.FilterHealth,
		FilterStatic: cfg.Capture.FilterStatic,
	}, log)
	if err != nil {
		return nil, err
	}
	smart := filter.NewSmartFilter(base, noiseThreshold, minSamples)

	key := hmacKey
	if key == "" {
		key = os.Getenv("SHADOWPIPE_HMAC_KEY")
	}
	san, err := sanitizer.New([]byte(key), spec.Sanitization, log)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: log}

	opts := runner.Options{
		PairTimeout:  time.Minute,
		SkipSanitize: !cfg.Capture.Sanitize,
		Campaign: campaign.Options{
			Concurrency: cfg.Fuzz.Concurrency,
			CallTimeout: time.Duration(cfg.Fuzz.CallTimeoutMS) * time.Millisecond,
			QueueCap:    cfg.Fuzz.QueueCapacity,
		},
	}
	if archive {
		store, err := openStore(cfg, log)
		if err != nil {
			return nil, err
		}
		a.store = store
		opts.Archiver = store
	}

	ic := interceptor.New(opts.PairTimeout, log)
	rec := recorder.New(log)
	a.runner = runner.New(ic, smart, san, rec, opts, log)
	return a, nil
}

// openStore 打开 SQLite 归档并执行迁移
func openStore(cfg *config.Config, log logger.Logger) (*repo.Store, error) {
	conn, err := db.New(db.Options{
		Name:   cfg.Sqlite.Db,
		Prefix: cfg.Sqlite.Prefix,
		Logger: db.NewLogger(log),
	})
	if err != nil {
		return nil, fmt.Errorf("open archive db: %w", err)
	}
	if err := db.Migrate(conn, &model.CaptureRecord{}, &model.InteractionRecord{}, &model.CampaignRecord{}); err != nil {
		return nil, fmt.Errorf("migrate archive db: %w", err)
	}
	return repo.NewStore(conn), nil
}

// close 释放组件资源
func (a *app) close() {
	a.runner.Close()
	if a.store != nil {
		a.store.Close()
	}
}
