package fuzzer

import (
	"math/rand"
	"strconv"
	"strings"
	"sync"

	"shadowpipe/pkg/domain"
)

// RandomFuzzer 随机变异策略
// 对可变异位置做类型感知的均匀随机替换
type RandomFuzzer struct {
	mutationsPerRequest int
	mu                  sync.Mutex
	rng                 *rand.Rand
}

// NewRandom 创建随机变异策略
// seed 为 0 时使用非确定性种子；测试可传入固定种子
func NewRandom(mutationsPerRequest int, seed int64) *RandomFuzzer {
	var rng *rand.Rand
	if seed == 0 {
		rng = rand.New(rand.NewSource(rand.Int63()))
	} else {
		rng = rand.New(rand.NewSource(seed))
	}
	return &RandomFuzzer{
		mutationsPerRequest: mutationsPerRequest,
		rng:                 rng,
	}
}

// Name 返回策略标识
func (f *RandomFuzzer) Name() domain.FuzzStrategy {
	return domain.StrategyRandom
}

// FuzzRequest 为请求生成随机变异
func (f *RandomFuzzer) FuzzRequest(req *domain.TrafficRequest) []domain.Mutation {
	targets := enumerateTargets(req)
	if len(targets) == 0 || f.mutationsPerRequest <= 0 {
		return nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	mutations := make([]domain.Mutation, 0, f.mutationsPerRequest)
	for n := 0; n < f.mutationsPerRequest; n++ {
		t := targets[f.rng.Intn(len(targets))]
		mutType, mutated := f.randomValue(t.value)
		mutations = append(mutations, domain.Mutation{
			MutationType:  mutType,
			OriginalValue: t.value,
			MutatedValue:  mutated,
			Target:        t.kind,
			TargetKey:     t.key,
		})
	}
	return mutations
}

// randomValue 类型感知的随机替换值
func (f *RandomFuzzer) randomValue(original string) (string, string) {
	isNumeric := false
	if _, err := strconv.ParseFloat(original, 64); err == nil && original != "" {
		isNumeric = true
	}

	if isNumeric {
		switch f.rng.Intn(4) {
		case 0:
			return "numeric_overflow", "9223372036854775808"
		case 1:
			return "numeric_negative", "-1"
		case 2:
			return "type_confusion", `"` + original + `"`
		default:
			return "empty_value", ""
		}
	}

	switch f.rng.Intn(4) {
	case 0:
		return "empty_value", ""
	case 1:
		return "oversized_string", strings.Repeat("A", 10000)
	case 2:
		return "type_confusion", strconv.Itoa(f.rng.Intn(1 << 30))
	default:
		return "boundary_value", boundaryPayloads[f.rng.Intn(len(boundaryPayloads))]
	}
}
