// Package runner 组装影子流量管道各组件并暴露统一操作入口
package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"shadowpipe/internal/analyzer"
	"shadowpipe/internal/campaign"
	"shadowpipe/internal/filter"
	"shadowpipe/internal/fuzzer"
	"shadowpipe/internal/interceptor"
	"shadowpipe/internal/logger"
	"shadowpipe/internal/recorder"
	"shadowpipe/internal/sanitizer"
	"shadowpipe/internal/testgen"
	"shadowpipe/pkg/domain"
	"shadowpipe/pkg/errx"
)

// Archiver 捕获与战役的持久化归档接口
type Archiver interface {
	ArchiveCapture(ctx context.Context, capture *domain.CapturedTraffic) error
	ArchiveCampaign(ctx context.Context, camp *domain.FuzzingCampaign) error
}

// Options 管道装配选项
type Options struct {
	PairTimeout  time.Duration      // 请求/响应配对超时
	Campaign     campaign.Options   // 战役执行选项
	ModelClient  fuzzer.ModelClient // ai_powered 策略的外部模型客户端，可为 nil
	Archiver     Archiver           // 持久化归档，可为 nil
	SkipSanitize bool               // 物化时跳过脱敏（仅调试场景，默认脱敏）
}

// ShadowRunner 管道编排器，持有全部组件并负责操作编排
// 组件通过构造注入，编排器自身不做业务判断
type ShadowRunner struct {
	interceptor *interceptor.Interceptor
	filter      *filter.SmartFilter
	sanitizer   *sanitizer.Sanitizer
	recorder    *recorder.Recorder
	opts        Options
	log         logger.Logger

	mu          sync.Mutex
	liveSession domain.SessionID // 实时路径绑定的会话，空表示未绑定
}

// New 装配影子流量管道
func New(ic *interceptor.Interceptor, f *filter.SmartFilter, s *sanitizer.Sanitizer, rec *recorder.Recorder, opts Options, l logger.Logger) *ShadowRunner {
	if l == nil {
		l = logger.NewNop()
	}
	return &ShadowRunner{
		interceptor: ic,
		filter:      f,
		sanitizer:   s,
		recorder:    rec,
		opts:        opts,
		log:         l,
	}
}

// Interceptor 返回底层流量拦截器
func (r *ShadowRunner) Interceptor() *interceptor.Interceptor { return r.interceptor }

// Filter 返回底层自适应过滤器
func (r *ShadowRunner) Filter() *filter.SmartFilter { return r.filter }

// Sanitizer 返回底层脱敏器
func (r *ShadowRunner) Sanitizer() *sanitizer.Sanitizer { return r.sanitizer }

// Recorder 返回底层会话记录器
func (r *ShadowRunner) Recorder() *recorder.Recorder { return r.recorder }

// StartLiveSession 开启实时会话并绑定到捕获路径
// 此后 HarvestCapture 物化的交互会按到达顺序追加到该会话
func (r *ShadowRunner) StartLiveSession(userID string, metadata map[string]string) domain.SessionID {
	id := r.recorder.StartSession(userID, metadata)
	r.mu.Lock()
	r.liveSession = id
	r.mu.Unlock()
	return id
}

// EndLiveSession 解绑并结束当前实时会话
func (r *ShadowRunner) EndLiveSession() error {
	r.mu.Lock()
	id := r.liveSession
	r.liveSession = ""
	r.mu.Unlock()

	if id == "" {
		return errx.Wrap(errx.CodeSessionNotFound, domain.ErrSessionNotFound, "no live session bound")
	}
	if err := r.recorder.EndSession(id); err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return errx.Wrap(errx.CodeSessionNotFound, err, fmt.Sprintf("session %s", id))
		}
		return err
	}
	return nil
}

// boundSession 返回当前绑定的实时会话ID
func (r *ShadowRunner) boundSession() domain.SessionID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.liveSession
}

// HarvestCapture 结束当前录制窗口并物化捕获文件
// 缓冲交互依次经过过滤与脱敏，原始缓冲随之清空
func (r *ShadowRunner) HarvestCapture(ctx context.Context, sourceURL string) (*domain.CapturedTraffic, error) {
	raw := r.interceptor.StopRecording()
	kept := filter.FilterInteractions(r.filter, raw)
	live := r.boundSession()

	capture := domain.NewCapturedTraffic(sourceURL)
	for i := range kept {
		clean := kept[i]
		if !r.opts.SkipSanitize {
			clean = r.sanitizer.SanitizeInteraction(&kept[i])
		}
		if live != "" {
			if err := r.recorder.AddInteraction(live, clean); err != nil {
				r.log.Warn("实时会话追加交互失败", "sessionID", live, "error", err)
			}
		}
		capture.Requests = append(capture.Requests, domain.TrafficRequest{
			Method:      clean.Request.Method,
			Path:        clean.Request.Path,
			Headers:     clean.Request.Headers,
			Body:        clean.Request.Body,
			QueryParams: clean.Request.QueryParams,
			StatusCode:  clean.Response.StatusCode,
			Response:    &clean.Response,
		})
	}
	r.interceptor.ClearCaptured()
	r.log.Info("捕获文件物化完成", "captureID", capture.CaptureID, "raw", len(raw), "kept", len(kept))

	if r.opts.Archiver != nil {
		if err := r.opts.Archiver.ArchiveCapture(ctx, capture); err != nil {
			r.log.Warn("捕获归档失败", "captureID", capture.CaptureID, "error", err)
		}
	}
	return capture, nil
}

// SanitizeCapture 返回对捕获文件再次脱敏后的新对象
// 脱敏幂等：对已脱敏的捕获重复调用不改变内容
func (r *ShadowRunner) SanitizeCapture(capture *domain.CapturedTraffic) *domain.CapturedTraffic {
	out := *capture
	out.Requests = make([]domain.TrafficRequest, len(capture.Requests))
	for i := range capture.Requests {
		out.Requests[i] = r.sanitizer.SanitizeTrafficRequest(&capture.Requests[i])
	}
	return &out
}

// SaveCapture 将捕获文件以缩进 JSON 写入磁盘
func (r *ShadowRunner) SaveCapture(capture *domain.CapturedTraffic, path string) error {
	data, err := json.MarshalIndent(capture, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal capture: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write capture file: %w", err)
	}
	r.log.Info("捕获文件已保存", "captureID", capture.CaptureID, "path", path, "requests", len(capture.Requests))
	return nil
}

// LoadCapture 从磁盘读取捕获文件并校验结构
// 文件缺失与结构非法以错误码区分，便于上层分别处理
func (r *ShadowRunner) LoadCapture(path string) (*domain.CapturedTraffic, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, errx.Wrap(errx.CodeResourceNotFound, domain.ErrCaptureNotFound, fmt.Sprintf("capture file %s", path))
		}
		return nil, fmt.Errorf("read capture file: %w", err)
	}

	var capture domain.CapturedTraffic
	if err := json.Unmarshal(data, &capture); err != nil {
		return nil, errx.Wrap(errx.CodeValidation, err, fmt.Sprintf("capture file %s is not valid JSON", path))
	}
	if err := validateCapture(&capture); err != nil {
		return nil, errx.Wrap(errx.CodeValidation, err, fmt.Sprintf("capture file %s failed schema validation", path))
	}
	r.log.Info("捕获文件已载入", "captureID", capture.CaptureID, "path", path, "requests", len(capture.Requests))
	return &capture, nil
}

// validateCapture 校验捕获文件必备字段
func validateCapture(capture *domain.CapturedTraffic) error {
	if capture.CaptureID == "" {
		return fmt.Errorf("%w: missing capture_id", domain.ErrInvalidCapture)
	}
	if capture.Requests == nil {
		return fmt.Errorf("%w: missing requests list", domain.ErrInvalidCapture)
	}
	for i := range capture.Requests {
		req := &capture.Requests[i]
		if req.Method == "" {
			return fmt.Errorf("%w: request %d missing method", domain.ErrInvalidCapture, i)
		}
		if req.Path == "" {
			return fmt.Errorf("%w: request %d missing path", domain.ErrInvalidCapture, i)
		}
	}
	return nil
}

// AnalyzeCapture 返回捕获流量的统计分析
func (r *ShadowRunner) AnalyzeCapture(capture *domain.CapturedTraffic) *domain.TrafficAnalysis {
	return analyzer.Analyze(capture)
}

// GenerateFuzzingCampaign 基于捕获创建处于 ready 状态的战役
// 策略在此一次性校验并选定，未知策略立即失败而不是执行期才暴露
func (r *ShadowRunner) GenerateFuzzingCampaign(capture *domain.CapturedTraffic, targetURL string, cfg domain.FuzzingConfig) (*domain.FuzzingCampaign, error) {
	if cfg.MutationsPerRequest <= 0 {
		cfg.MutationsPerRequest = 5
	}
	if _, err := fuzzer.New(cfg, r.opts.ModelClient, r.log); err != nil {
		return nil, errx.Wrap(errx.CodeValidation, err, "fuzzing config")
	}
	camp := domain.NewFuzzingCampaign(capture.CaptureID, targetURL, cfg)
	r.log.Info("战役已创建", "campaignID", camp.CampaignID, "strategy", cfg.Strategy, "sourceCapture", capture.CaptureID)
	return camp, nil
}

// RunFuzzingCampaign 执行战役：生成变异并（可选）并发执行
// exec 为 nil 时仅生成变异；取消时保留已完成结果并标记 Partial
func (r *ShadowRunner) RunFuzzingCampaign(ctx context.Context, camp *domain.FuzzingCampaign, capture *domain.CapturedTraffic, exec campaign.ExecuteFunc) error {
	strategy, err := fuzzer.New(camp.Config, r.opts.ModelClient, r.log)
	if err != nil {
		return errx.Wrap(errx.CodeValidation, err, "fuzzing config")
	}

	cr := campaign.NewRunner(strategy, r.opts.Campaign, r.log)
	if err := cr.Run(ctx, camp, capture, exec); err != nil {
		return err
	}

	if r.opts.Archiver != nil {
		if err := r.opts.Archiver.ArchiveCampaign(ctx, camp); err != nil {
			r.log.Warn("战役归档失败", "campaignID", camp.CampaignID, "error", err)
		}
	}
	return nil
}

// GenerateTests 从捕获推导测试定义
func (r *ShadowRunner) GenerateTests(capture *domain.CapturedTraffic) *domain.TestGenerationResult {
	return testgen.NewGenerator().Generate(capture)
}

// ReplayFunc 回放执行回调
type ReplayFunc func(ctx context.Context, req *domain.TrafficRequest) (int, error)

// ReplayTraffic 按捕获顺序严格串行回放请求
// 单条失败只计数不中止，保证有状态依赖的请求序不被打乱
func (r *ShadowRunner) ReplayTraffic(ctx context.Context, capture *domain.CapturedTraffic, replay ReplayFunc) (*domain.ReplaySummary, error) {
	summary := &domain.ReplaySummary{
		Entries: make([]domain.ReplayEntry, 0, len(capture.Requests)),
	}
	for i := range capture.Requests {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		req := &capture.Requests[i]
		entry := domain.ReplayEntry{Endpoint: req.Endpoint()}

		status, err := replay(ctx, req)
		summary.Total++
		if err != nil {
			entry.Err = err.Error()
			summary.Failed++
			r.log.Warn("回放请求失败", "endpoint", entry.Endpoint, "error", err)
		} else {
			entry.StatusCode = status
			entry.Success = true
			summary.Succeeded++
		}
		summary.Entries = append(summary.Entries, entry)
	}
	r.log.Info("流量回放完成", "total", summary.Total, "succeeded", summary.Succeeded, "failed", summary.Failed)
	return summary, nil
}

// Close 释放管道持有的后台资源
func (r *ShadowRunner) Close() {
	r.interceptor.Close()
}
