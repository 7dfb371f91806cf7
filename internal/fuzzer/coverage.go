package fuzzer

import (
	"shadowpipe/pkg/domain"
)

// CoverageSignal 执行器上报的覆盖率信号
type CoverageSignal struct {
	Edges  int    `json:"edges"`
	Source string `json:"source"`
}

// CoverageGuidedFuzzer 覆盖率引导策略
// 变异池与启发式策略一致；覆盖率反馈是显式的未插桩占位，而非假装已引导
type CoverageGuidedFuzzer struct {
	inner *IntelligentFuzzer
}

// NewCoverageGuided 创建覆盖率引导策略
func NewCoverageGuided(mutationsPerRequest int) *CoverageGuidedFuzzer {
	return &CoverageGuidedFuzzer{inner: NewIntelligent(mutationsPerRequest)}
}

// Name 返回策略标识
func (f *CoverageGuidedFuzzer) Name() domain.FuzzStrategy {
	return domain.StrategyCoverageGuided
}

// FuzzRequest 为请求生成变异，当前复用启发式变异池
func (f *CoverageGuidedFuzzer) FuzzRequest(req *domain.TrafficRequest) []domain.Mutation {
	return f.inner.FuzzRequest(req)
}

// CoverageSource 获取覆盖率信号源
// 在真实插桩接入前始终返回 domain.ErrCoverageNotInstrumented
func (f *CoverageGuidedFuzzer) CoverageSource() (CoverageSignal, error) {
	return CoverageSignal{}, domain.ErrCoverageNotInstrumented
}
