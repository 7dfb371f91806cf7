package filter

import (
	"sort"
	"sync"

	"shadowpipe/pkg/domain"
)

// 噪声判定默认参数
const (
	DefaultNoiseThreshold = 0.5 // 端点占全部观测的比例阈值
	DefaultMinSamples     = 10  // 低于该绝对次数不判定为噪声
)

// SmartFilter 频率自适应过滤器
// 在静态规则过滤之上叠加噪声识别：某端点占比超过阈值且样本充足时判定为噪声
type SmartFilter struct {
	*CaptureFilter

	mu             sync.RWMutex
	freq           map[string]int64 // "METHOD PATH" → 观测次数
	total          int64
	noiseThreshold float64
	minSamples     int64
}

// NewSmartFilter 创建频率自适应过滤器
// threshold<=0 或 minSamples<=0 时使用默认值
func NewSmartFilter(base *CaptureFilter, threshold float64, minSamples int) *SmartFilter {
	if threshold <= 0 {
		threshold = DefaultNoiseThreshold
	}
	if minSamples <= 0 {
		minSamples = DefaultMinSamples
	}
	return &SmartFilter{
		CaptureFilter:  base,
		freq:           make(map[string]int64),
		noiseThreshold: threshold,
		minSamples:     int64(minSamples),
	}
}

// RecordInteraction 记录一次端点观测
// 计数在录制会话内单调不减，仅 ClearFrequency 可重置
func (f *SmartFilter) RecordInteraction(it *domain.CapturedInteraction) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.freq[it.Endpoint()]++
	f.total++
}

// IsNoise 判断交互是否为噪声
// 端点占比超过阈值且绝对次数超过最小样本数时为真，避免单次早期观测被误判
func (f *SmartFilter) IsNoise(it *domain.CapturedInteraction) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.total == 0 {
		return false
	}
	count := f.freq[it.Endpoint()]
	if count <= f.minSamples {
		return false
	}
	return float64(count)/float64(f.total) > f.noiseThreshold
}

// NoiseScore 返回端点当前的噪声占比
func (f *SmartFilter) NoiseScore(endpoint string) float64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.total == 0 {
		return 0
	}
	return float64(f.freq[endpoint]) / float64(f.total)
}

// ShouldCapture 静态过滤决策与"非噪声"的逻辑与
func (f *SmartFilter) ShouldCapture(it *domain.CapturedInteraction) bool {
	if !f.CaptureFilter.ShouldCapture(it) {
		return false
	}
	return !f.IsNoise(it)
}

// ClearFrequency 显式重置频率状态
func (f *SmartFilter) ClearFrequency() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.freq = make(map[string]int64)
	f.total = 0
}

// EndpointCount 频率表条目
type EndpointCount struct {
	Endpoint string `json:"endpoint"`
	Count    int64  `json:"count"`
}

// Statistics 过滤统计信息
type Statistics struct {
	TotalInteractions int64           `json:"total_interactions"`
	UniqueEndpoints   int             `json:"unique_endpoints"`
	TopEndpoints      []EndpointCount `json:"top_endpoints"`
}

// GetStatistics 返回观测统计与 Top-N 频率表
func (f *SmartFilter) GetStatistics(topN int) Statistics {
	f.mu.RLock()
	defer f.mu.RUnlock()

	counts := make([]EndpointCount, 0, len(f.freq))
	for ep, c := range f.freq {
		counts = append(counts, EndpointCount{Endpoint: ep, Count: c})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Endpoint < counts[j].Endpoint
	})
	if topN > 0 && len(counts) > topN {
		counts = counts[:topN]
	}

	return Statistics{
		TotalInteractions: f.total,
		UniqueEndpoints:   len(f.freq),
		TopEndpoints:      counts,
	}
}
