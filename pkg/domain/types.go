// Package domain 定义影子流量管道的核心领域模型
package domain

import (
	"time"

	"github.com/google/uuid"
)

// CaptureID 捕获ID
type CaptureID string

// SessionID 会话ID
type SessionID string

// CampaignID 模糊测试战役ID
type CampaignID string

// CorrelationID 请求/响应配对的关联ID
type CorrelationID string

// NewCorrelationID 生成新的关联ID
func NewCorrelationID() CorrelationID {
	return CorrelationID(uuid.New().String())
}

// CapturedRequest 捕获的请求（构造后不可变）
type CapturedRequest struct {
	Method      string            `json:"method"`
	Path        string            `json:"path"`
	Headers     map[string]string `json:"headers,omitempty"`
	Body        string            `json:"body,omitempty"`
	QueryParams map[string]string `json:"query_params,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
}

// CapturedResponse 捕获的响应（构造后不可变）
type CapturedResponse struct {
	StatusCode     int               `json:"status_code"`
	Headers        map[string]string `json:"headers,omitempty"`
	Body           string            `json:"body,omitempty"`
	ResponseTimeMS float64           `json:"response_time_ms"`
}

// CapturedInteraction 一次完整交互（请求与响应必须同时存在才会物化）
type CapturedInteraction struct {
	Request   CapturedRequest  `json:"request"`
	Response  CapturedResponse `json:"response"`
	Timestamp time.Time        `json:"timestamp"`
}

// Endpoint 返回 "METHOD PATH" 形式的端点标识
func (i *CapturedInteraction) Endpoint() string {
	return i.Request.Method + " " + i.Request.Path
}

// UserSession 用户会话，按时间顺序聚合交互
// 仅允许 SessionRecorder 修改；EndTime 置位后只读
type UserSession struct {
	SessionID    SessionID             `json:"session_id"`
	UserID       string                `json:"user_id,omitempty"`
	Interactions []CapturedInteraction `json:"interactions"`
	StartTime    time.Time             `json:"start_time"`
	EndTime      *time.Time            `json:"end_time,omitempty"`
	Metadata     map[string]string     `json:"metadata,omitempty"`
}

// Active 判断会话是否仍在进行中
func (s *UserSession) Active() bool {
	return s.EndTime == nil
}

// TrafficRequest 捕获文件中的扩展请求条目
type TrafficRequest struct {
	Method         string            `json:"method"`
	Path           string            `json:"path"`
	Headers        map[string]string `json:"headers,omitempty"`
	Body           string            `json:"body,omitempty"`
	QueryParams    map[string]string `json:"query_params,omitempty"`
	StatusCode     int               `json:"status_code,omitempty"`
	MatchedService string            `json:"matched_service,omitempty"`
	Response       *CapturedResponse `json:"response,omitempty"`
}

// Endpoint 返回 "METHOD PATH" 形式的端点标识
func (r *TrafficRequest) Endpoint() string {
	return r.Method + " " + r.Path
}

// CapturedTraffic 捕获文件的根结构（外部 JSON 接口，需无损往返）
type CapturedTraffic struct {
	CaptureID   CaptureID         `json:"capture_id"`
	CaptureTime time.Time         `json:"capture_time"`
	SourceURL   string            `json:"source_url"`
	Requests    []TrafficRequest  `json:"requests"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// NewCapturedTraffic 创建一个空的捕获描述符（带 UUID）
func NewCapturedTraffic(sourceURL string) *CapturedTraffic {
	return &CapturedTraffic{
		CaptureID:   CaptureID(uuid.New().String()),
		CaptureTime: time.Now(),
		SourceURL:   sourceURL,
		Requests:    []TrafficRequest{},
		Metadata:    map[string]string{},
	}
}

// TrafficAnalysis 捕获流量的统计分析结果
type TrafficAnalysis struct {
	TotalRequests   int                 `json:"total_requests"`
	UniqueEndpoints int                 `json:"unique_endpoints"`
	Methods         map[string]int      `json:"methods"`
	StatusCodes     map[int]int         `json:"status_codes"`
	Services        map[string][]string `json:"services"`
}

// FuzzStrategy 模糊测试策略
type FuzzStrategy string

const (
	StrategyRandom         FuzzStrategy = "random"          // 随机变异
	StrategyIntelligent    FuzzStrategy = "intelligent"     // 漏洞类别启发式变异
	StrategyCoverageGuided FuzzStrategy = "coverage_guided" // 覆盖率引导（未接入插桩时为显式占位）
	StrategyAIPowered      FuzzStrategy = "ai_powered"      // 外部模型生成，不可用时降级为启发式
)

// FuzzingConfig 模糊测试配置
type FuzzingConfig struct {
	Strategy            FuzzStrategy `json:"strategy"`
	MutationsPerRequest int          `json:"mutations_per_request"`
	Model               string       `json:"model,omitempty"` // 仅 ai_powered 使用
}

// MutationTarget 变异目标位置
type MutationTarget string

const (
	TargetBodyField MutationTarget = "field"  // JSON Body 字段
	TargetHeader    MutationTarget = "header" // 请求头
	TargetQuery     MutationTarget = "query"  // 查询参数
	TargetRawBody   MutationTarget = "body"   // 非 JSON 的原始 Body
)

// Mutation 单次变异
type Mutation struct {
	MutationType  string         `json:"mutation_type"`
	OriginalValue string         `json:"original_value"`
	MutatedValue  string         `json:"mutated_value"`
	Target        MutationTarget `json:"target"`
	TargetKey     string         `json:"target_key"`
}

// ExecutionResult 单次变异的执行结果
type ExecutionResult struct {
	Mutation   Mutation `json:"mutation"`
	StatusCode int      `json:"status_code"`
	Body       string   `json:"body,omitempty"`
	Err        string   `json:"error,omitempty"`
	Vulnerable bool     `json:"vulnerable"`
	Evidence   string   `json:"evidence,omitempty"`
}

// FuzzingResult 单个源请求的模糊测试结果
type FuzzingResult struct {
	OriginalRequest  TrafficRequest    `json:"original_request"`
	Mutations        []Mutation        `json:"mutations"`
	ExecutionResults []ExecutionResult `json:"execution_results,omitempty"`
	ErrorsDetected   []string          `json:"errors_detected,omitempty"`
}

// Vulnerability 识别出的漏洞信号
type Vulnerability struct {
	Type     string   `json:"type"` // server_error / error_disclosure
	Endpoint string   `json:"endpoint"`
	Mutation Mutation `json:"mutation"`
	Evidence string   `json:"evidence,omitempty"`
}

// CampaignStatus 战役状态，单向推进：ready → running → completed
type CampaignStatus string

const (
	CampaignReady     CampaignStatus = "ready"
	CampaignRunning   CampaignStatus = "running"
	CampaignCompleted CampaignStatus = "completed"
)

// FuzzingCampaign 模糊测试战役
type FuzzingCampaign struct {
	CampaignID          CampaignID      `json:"campaign_id"`
	SourceCapture       CaptureID       `json:"source_capture"`
	TargetURL           string          `json:"target_url"`
	Config              FuzzingConfig   `json:"config"`
	Results             []FuzzingResult `json:"results"`
	TotalMutations      int             `json:"total_mutations"`
	SuccessfulMutations int             `json:"successful_mutations"`
	FailedMutations     int             `json:"failed_mutations"`
	Vulnerabilities     []Vulnerability `json:"vulnerabilities_found"`
	Status              CampaignStatus  `json:"status"`
	Partial             bool            `json:"partial,omitempty"` // 取消/截止导致的部分结果
	StartedAt           *time.Time      `json:"started_at,omitempty"`
	CompletedAt         *time.Time      `json:"completed_at,omitempty"`
}

// NewFuzzingCampaign 创建处于 ready 状态的战役（带 UUID）
func NewFuzzingCampaign(source CaptureID, targetURL string, cfg FuzzingConfig) *FuzzingCampaign {
	return &FuzzingCampaign{
		CampaignID:    CampaignID(uuid.New().String()),
		SourceCapture: source,
		TargetURL:     targetURL,
		Config:        cfg,
		Results:       []FuzzingResult{},
		Status:        CampaignReady,
	}
}

// TestAssertion 生成测试中的断言
type TestAssertion struct {
	Type     string `json:"type"` // status_code / response_key
	Expected any    `json:"expected"`
}

// NegativeTest 负向测试变体
type NegativeTest struct {
	Name           string `json:"name"`
	Description    string `json:"description"`
	Body           string `json:"body,omitempty"`
	RemoveHeader   string `json:"remove_header,omitempty"`
	ExpectedStatus []int  `json:"expected_status"`
}

// GeneratedTest 由捕获推导出的测试定义
type GeneratedTest struct {
	Name          string            `json:"name"`
	Method        string            `json:"method"`
	URL           string            `json:"url"`
	Path          string            `json:"path"`
	Headers       map[string]string `json:"headers,omitempty"`
	QueryParams   map[string]string `json:"query_params,omitempty"`
	Body          string            `json:"body,omitempty"`
	Assertions    []TestAssertion   `json:"assertions"`
	NegativeTests []NegativeTest    `json:"negative_tests,omitempty"`
}

// TestGenerationResult 测试生成结果
type TestGenerationResult struct {
	CaptureID CaptureID       `json:"capture_id"`
	Tests     []GeneratedTest `json:"tests"`
}

// ReplayEntry 单条回放记录
type ReplayEntry struct {
	Endpoint   string `json:"endpoint"`
	StatusCode int    `json:"status_code,omitempty"`
	Err        string `json:"error,omitempty"`
	Success    bool   `json:"success"`
}

// ReplaySummary 回放汇总
type ReplaySummary struct {
	Total     int           `json:"total"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Entries   []ReplayEntry `json:"entries"`
}
