// Package model 定义持久化归档的数据库表结构
package model

import (
	"time"
)

// CaptureRecord 捕获归档表（每次捕获物化一条）
type CaptureRecord struct {
	ID           uint      `gorm:"primaryKey" json:"id"`                  // 数据库主键（内部使用）
	CaptureID    string    `gorm:"uniqueIndex;not null" json:"captureId"` // 捕获业务ID（唯一索引）
	SourceURL    string    `json:"sourceUrl"`                             // 捕获来源
	RequestCount int       `json:"requestCount"`                          // 捕获内请求条数
	CaptureJSON  string    `gorm:"type:text" json:"captureJson"`          // 完整捕获文件 JSON（已脱敏）
	CaptureTime  time.Time `gorm:"index" json:"captureTime"`              // 捕获时间
	CreatedAt    time.Time `json:"createdAt"`                             // 归档时间
}

// InteractionRecord 交互归档表（逐条存储捕获内的请求/响应对）
type InteractionRecord struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	CaptureID    string    `gorm:"index" json:"captureId"`
	Method       string    `json:"method"`
	Path         string    `json:"path"`
	StatusCode   int       `json:"statusCode"`
	RequestJSON  string    `gorm:"type:text" json:"requestJson"`  // 请求信息 JSON（已脱敏）
	ResponseJSON string    `gorm:"type:text" json:"responseJson"` // 响应信息 JSON（已脱敏）
	Timestamp    int64     `gorm:"index" json:"timestamp"`
	CreatedAt    time.Time `json:"createdAt"`
}

// CampaignRecord 战役归档表（战役完成后写入汇总）
type CampaignRecord struct {
	ID                  uint      `gorm:"primaryKey" json:"id"`
	CampaignID          string    `gorm:"uniqueIndex;not null" json:"campaignId"`
	SourceCapture       string    `gorm:"index" json:"sourceCapture"`
	TargetURL           string    `json:"targetUrl"`
	Strategy            string    `json:"strategy"`
	Status              string    `gorm:"index" json:"status"` // ready / running / completed
	TotalMutations      int       `json:"totalMutations"`
	SuccessfulMutations int       `json:"successfulMutations"`
	FailedMutations     int       `json:"failedMutations"`
	VulnerabilityCount  int       `json:"vulnerabilityCount"`
	Partial             bool      `json:"partial"`                       // 是否为取消后的部分结果
	CampaignJSON        string    `gorm:"type:text" json:"campaignJson"` // 完整战役 JSON
	CreatedAt           time.Time `json:"createdAt"`
}
