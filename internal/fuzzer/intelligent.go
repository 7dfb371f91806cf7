package fuzzer

import (
	"shadowpipe/pkg/domain"
)

// IntelligentFuzzer 启发式变异策略
// 按字段名/类型启发式把变异偏向已知漏洞类别：注入载荷与边界值
type IntelligentFuzzer struct {
	mutationsPerRequest int
}

// NewIntelligent 创建启发式变异策略
func NewIntelligent(mutationsPerRequest int) *IntelligentFuzzer {
	return &IntelligentFuzzer{mutationsPerRequest: mutationsPerRequest}
}

// Name 返回策略标识
func (f *IntelligentFuzzer) Name() domain.FuzzStrategy {
	return domain.StrategyIntelligent
}

// FuzzRequest 为请求生成启发式变异
// 对每个目标按其偏向载荷池轮转取值，保证确定性与数量精确
func (f *IntelligentFuzzer) FuzzRequest(req *domain.TrafficRequest) []domain.Mutation {
	targets := enumerateTargets(req)
	if len(targets) == 0 || f.mutationsPerRequest <= 0 {
		return nil
	}

	mutations := make([]domain.Mutation, 0, f.mutationsPerRequest)
	for n := 0; n < f.mutationsPerRequest; n++ {
		t := targets[n%len(targets)]
		pool := payloadsForField(t.key)
		payload := pool[(n/len(targets))%len(pool)]
		mutations = append(mutations, domain.Mutation{
			MutationType:  "injection_heuristic",
			OriginalValue: t.value,
			MutatedValue:  payload,
			Target:        t.kind,
			TargetKey:     t.key,
		})
	}
	return mutations
}
