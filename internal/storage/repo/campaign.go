package repo

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/gorm"

	dbmodel "shadowpipe/internal/storage/model"
	"shadowpipe/pkg/domain"
)

// CampaignRepo 战役归档仓库
type CampaignRepo struct {
	BaseRepository[dbmodel.CampaignRecord]
}

// NewCampaignRepo 创建战役归档仓库实例
func NewCampaignRepo(conn *gorm.DB) *CampaignRepo {
	return &CampaignRepo{
		BaseRepository: *NewBaseRepository[dbmodel.CampaignRecord](conn),
	}
}

// ArchiveCampaign 归档战役执行汇总与完整结果
func (r *CampaignRepo) ArchiveCampaign(ctx context.Context, camp *domain.FuzzingCampaign) error {
	campaignJSON, err := json.Marshal(camp)
	if err != nil {
		return err
	}

	record := dbmodel.CampaignRecord{
		CampaignID:          string(camp.CampaignID),
		SourceCapture:       string(camp.SourceCapture),
		TargetURL:           camp.TargetURL,
		Strategy:            string(camp.Config.Strategy),
		Status:              string(camp.Status),
		TotalMutations:      camp.TotalMutations,
		SuccessfulMutations: camp.SuccessfulMutations,
		FailedMutations:     camp.FailedMutations,
		VulnerabilityCount:  len(camp.Vulnerabilities),
		Partial:             camp.Partial,
		CampaignJSON:        string(campaignJSON),
		CreatedAt:           time.Now(),
	}
	return r.Create(ctx, &record)
}

// campaignByID 按战役业务ID筛选
type campaignByID struct{ id string }

func (f campaignByID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("campaign_id = ?", f.id)
}

// campaignBySource 按来源捕获筛选
type campaignBySource struct{ captureID string }

func (f campaignBySource) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("source_capture = ?", f.captureID)
}

// GetCampaign 按战役ID读取归档并还原为战役对象
func (r *CampaignRepo) GetCampaign(ctx context.Context, campaignID domain.CampaignID) (*domain.FuzzingCampaign, error) {
	record, err := r.FindOne(ctx, campaignByID{id: string(campaignID)})
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, nil
	}
	var camp domain.FuzzingCampaign
	if err := json.Unmarshal([]byte(record.CampaignJSON), &camp); err != nil {
		return nil, err
	}
	return &camp, nil
}

// ListBySource 列出某捕获派生的全部战役归档
func (r *CampaignRepo) ListBySource(ctx context.Context, captureID domain.CaptureID) ([]*dbmodel.CampaignRecord, error) {
	return r.FindAll(ctx, campaignBySource{captureID: string(captureID)}, nil, Orders{{Field: "created_at", Sort: "DESC"}})
}
