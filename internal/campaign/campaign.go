// Package campaign 实现模糊测试战役的执行与状态机
package campaign

import (
	"context"
	"fmt"
	"sync"
	"time"

	"shadowpipe/internal/fuzzer"
	"shadowpipe/internal/logger"
	"shadowpipe/internal/pool"
	"shadowpipe/pkg/domain"
	"shadowpipe/pkg/errx"
)

// CallResult 执行回调返回的结果，管道只检视状态码与响应体
type CallResult struct {
	StatusCode int
	Body       string
}

// ExecuteFunc 变异执行回调，由调用方提供，管道视其为不透明实现
type ExecuteFunc func(ctx context.Context, original domain.TrafficRequest, mutated domain.TrafficRequest) (CallResult, error)

// Options 战役执行选项
type Options struct {
	Concurrency int           // 工作池并发数
	CallTimeout time.Duration // 单次执行超时
	QueueCap    int           // 工作池队列容量
}

// DefaultOptions 返回默认执行选项
func DefaultOptions() Options {
	return Options{
		Concurrency: 4,
		CallTimeout: 5 * time.Second,
	}
}

// Runner 战役执行器
// 状态单向推进 ready → running → completed；取消只标记 Partial，已完成结果保留
type Runner struct {
	strategy fuzzer.Strategy
	opts     Options
	log      logger.Logger
}

// NewRunner 创建战役执行器，策略在此一次性选定
func NewRunner(strategy fuzzer.Strategy, opts Options, l logger.Logger) *Runner {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultOptions().Concurrency
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = DefaultOptions().CallTimeout
	}
	if l == nil {
		l = logger.NewNop()
	}
	return &Runner{strategy: strategy, opts: opts, log: l}
}

// Run 对捕获中的每个请求生成并执行变异
// exec 为 nil 时仅生成变异不执行；回调异常按变异粒度记录，绝不中止战役
func (r *Runner) Run(ctx context.Context, camp *domain.FuzzingCampaign, capture *domain.CapturedTraffic, exec ExecuteFunc) error {
	if camp.Status != domain.CampaignReady {
		return errx.Wrap(errx.CodeCampaignState, domain.ErrCampaignNotReady, fmt.Sprintf("campaign %s is %s", camp.CampaignID, camp.Status))
	}

	started := time.Now()
	camp.Status = domain.CampaignRunning
	camp.StartedAt = &started
	r.log.Info("战役开始执行", "campaignID", camp.CampaignID, "strategy", r.strategy.Name(), "requests", len(capture.Requests))

	// 生成阶段：为全部请求预先生成变异，执行阶段不再改动结果切片结构
	camp.Results = make([]domain.FuzzingResult, len(capture.Requests))
	for i := range capture.Requests {
		req := capture.Requests[i]
		mutations := r.strategy.FuzzRequest(&req)
		camp.Results[i] = domain.FuzzingResult{
			OriginalRequest:  req,
			Mutations:        mutations,
			ExecutionResults: make([]domain.ExecutionResult, len(mutations)),
		}
		camp.TotalMutations += len(mutations)
	}

	if exec != nil {
		r.execute(ctx, camp, exec)
	}

	completed := time.Now()
	camp.Status = domain.CampaignCompleted
	camp.CompletedAt = &completed
	r.log.Info("战役执行完成", "campaignID", camp.CampaignID,
		"totalMutations", camp.TotalMutations,
		"successful", camp.SuccessfulMutations,
		"failed", camp.FailedMutations,
		"vulnerabilities", len(camp.Vulnerabilities),
		"partial", camp.Partial)
	return nil
}

// execute 有界并发地执行全部变异
func (r *Runner) execute(ctx context.Context, camp *domain.FuzzingCampaign, exec ExecuteFunc) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := pool.New(r.opts.Concurrency, r.opts.QueueCap)
	p.SetLogger(r.log)
	p.Start(runCtx)
	defer p.Stop()

	var wg sync.WaitGroup
	var mu sync.Mutex

dispatch:
	for i := range camp.Results {
		result := &camp.Results[i]
		for j := range result.Mutations {
			if runCtx.Err() != nil {
				camp.Partial = true
				break dispatch
			}
			wg.Add(1)
			i, j := i, j
			task := func() {
				defer wg.Done()
				r.runMutation(runCtx, camp, &mu, i, j, exec)
			}
			if err := p.SubmitWait(runCtx, task); err != nil {
				wg.Done()
				camp.Partial = true
				break dispatch
			}
		}
	}
	wg.Wait()
}

// runMutation 执行单个变异并分类结果
func (r *Runner) runMutation(ctx context.Context, camp *domain.FuzzingCampaign, mu *sync.Mutex, i, j int, exec ExecuteFunc) {
	result := &camp.Results[i]
	m := result.Mutations[j]

	defer func() {
		if rec := recover(); rec != nil {
			mu.Lock()
			result.ErrorsDetected = append(result.ErrorsDetected, fmt.Sprintf("execute panic: %v", rec))
			result.ExecutionResults[j] = domain.ExecutionResult{Mutation: m, Err: fmt.Sprintf("panic: %v", rec)}
			camp.FailedMutations++
			mu.Unlock()
			r.log.Error("执行回调 panic", "campaignID", camp.CampaignID, "mutation", m.MutationType, "panic", rec)
		}
	}()

	mutated := fuzzer.ApplyMutation(&result.OriginalRequest, &m)

	callCtx, cancel := context.WithTimeout(ctx, r.opts.CallTimeout)
	defer cancel()

	res, err := exec(callCtx, result.OriginalRequest, mutated)

	mu.Lock()
	defer mu.Unlock()

	if err != nil {
		result.ErrorsDetected = append(result.ErrorsDetected, err.Error())
		result.ExecutionResults[j] = domain.ExecutionResult{Mutation: m, Err: err.Error()}
		camp.FailedMutations++
		return
	}

	cls := classify(res.StatusCode, res.Body)
	result.ExecutionResults[j] = domain.ExecutionResult{
		Mutation:   m,
		StatusCode: res.StatusCode,
		Body:       res.Body,
		Vulnerable: cls.Vulnerable,
		Evidence:   cls.Evidence,
	}
	camp.SuccessfulMutations++
	if cls.Vulnerable {
		camp.Vulnerabilities = append(camp.Vulnerabilities, domain.Vulnerability{
			Type:     cls.Type,
			Endpoint: result.OriginalRequest.Endpoint(),
			Mutation: m,
			Evidence: cls.Evidence,
		})
	}
}
