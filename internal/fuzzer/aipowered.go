package fuzzer

import (
	"context"
	"time"

	"shadowpipe/internal/logger"
	"shadowpipe/pkg/domain"
)

// ModelClient 外部模型客户端接口
type ModelClient interface {
	// GenerateMutations 让模型为请求合成 n 个变异
	GenerateMutations(ctx context.Context, req *domain.TrafficRequest, n int) ([]domain.Mutation, error)
}

// AIPoweredFuzzer 模型驱动策略
// 变异合成委托给外部模型客户端，客户端不可用或出错时降级为启发式策略
type AIPoweredFuzzer struct {
	mutationsPerRequest int
	client              ModelClient
	fallback            *IntelligentFuzzer
	log                 logger.Logger
}

// NewAIPowered 创建模型驱动策略
func NewAIPowered(mutationsPerRequest int, client ModelClient, l logger.Logger) *AIPoweredFuzzer {
	if l == nil {
		l = logger.NewNop()
	}
	return &AIPoweredFuzzer{
		mutationsPerRequest: mutationsPerRequest,
		client:              client,
		fallback:            NewIntelligent(mutationsPerRequest),
		log:                 l,
	}
}

// Name 返回策略标识
func (f *AIPoweredFuzzer) Name() domain.FuzzStrategy {
	return domain.StrategyAIPowered
}

// FuzzRequest 为请求生成变异，失败时降级为启发式
func (f *AIPoweredFuzzer) FuzzRequest(req *domain.TrafficRequest) []domain.Mutation {
	if f.client == nil {
		f.log.Debug("模型客户端未配置，降级为启发式策略", "endpoint", req.Endpoint())
		return f.fallback.FuzzRequest(req)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	mutations, err := f.client.GenerateMutations(ctx, req, f.mutationsPerRequest)
	if err != nil {
		f.log.Warn("模型变异合成失败，降级为启发式策略", "endpoint", req.Endpoint(), "error", err)
		return f.fallback.FuzzRequest(req)
	}
	if len(mutations) == 0 {
		return f.fallback.FuzzRequest(req)
	}
	return mutations
}
