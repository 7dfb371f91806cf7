package repo

import (
	"context"

	"gorm.io/gorm"

	"shadowpipe/pkg/domain"
)

// Store 归档仓库聚合，作为管道的统一持久化入口
type Store struct {
	Captures  *CaptureRepo
	Campaigns *CampaignRepo
}

// NewStore 创建归档仓库聚合
func NewStore(conn *gorm.DB) *Store {
	return &Store{
		Captures:  NewCaptureRepo(conn),
		Campaigns: NewCampaignRepo(conn),
	}
}

// ArchiveCapture 归档捕获文件
func (s *Store) ArchiveCapture(ctx context.Context, capture *domain.CapturedTraffic) error {
	return s.Captures.ArchiveCapture(ctx, capture)
}

// ArchiveCampaign 归档战役
func (s *Store) ArchiveCampaign(ctx context.Context, camp *domain.FuzzingCampaign) error {
	return s.Campaigns.ArchiveCampaign(ctx, camp)
}

// Close 停止后台写入协程
func (s *Store) Close() {
	s.Captures.Stop()
}
