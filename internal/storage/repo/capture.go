package repo

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"gorm.io/gorm"

	dbmodel "shadowpipe/internal/storage/model"
	"shadowpipe/pkg/domain"
)

// CaptureRepo 捕获归档仓库
// 捕获汇总同步写入；逐条交互走异步批量写入，避免阻塞捕获热路径
type CaptureRepo struct {
	BaseRepository[dbmodel.CaptureRecord]
	interactions *BaseRepository[dbmodel.InteractionRecord]

	buffer    []dbmodel.InteractionRecord
	bufferMu  sync.Mutex
	batchSize int
	flushCh   chan struct{}
	stopCh    chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

// NewCaptureRepo 创建捕获归档仓库实例
func NewCaptureRepo(conn *gorm.DB) *CaptureRepo {
	r := &CaptureRepo{
		BaseRepository: *NewBaseRepository[dbmodel.CaptureRecord](conn),
		interactions:   NewBaseRepository[dbmodel.InteractionRecord](conn),
		buffer:         make([]dbmodel.InteractionRecord, 0, 100),
		batchSize:      50,
		flushCh:        make(chan struct{}, 1),
		stopCh:         make(chan struct{}),
	}
	r.wg.Add(1)
	go r.asyncWriter()
	return r
}

// asyncWriter 异步批量写入协程
func (r *CaptureRepo) asyncWriter() {
	defer r.wg.Done()
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			// 停止前刷新剩余数据
			r.flush()
			return
		case <-ticker.C:
			r.flush()
		case <-r.flushCh:
			r.flush()
		}
	}
}

// flush 刷新交互缓冲区到数据库
func (r *CaptureRepo) flush() {
	r.bufferMu.Lock()
	if len(r.buffer) == 0 {
		r.bufferMu.Unlock()
		return
	}
	toWrite := r.buffer
	r.buffer = make([]dbmodel.InteractionRecord, 0, 100)
	r.bufferMu.Unlock()

	// 写入失败不阻塞捕获路径
	_ = r.interactions.CreateBatch(context.Background(), toWrite, 100)
}

// Stop 停止异步写入
func (r *CaptureRepo) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
	r.wg.Wait()
}

// ArchiveCapture 归档整个捕获文件：汇总行加逐条交互
func (r *CaptureRepo) ArchiveCapture(ctx context.Context, capture *domain.CapturedTraffic) error {
	captureJSON, err := json.Marshal(capture)
	if err != nil {
		return err
	}

	record := dbmodel.CaptureRecord{
		CaptureID:    string(capture.CaptureID),
		SourceURL:    capture.SourceURL,
		RequestCount: len(capture.Requests),
		CaptureJSON:  string(captureJSON),
		CaptureTime:  capture.CaptureTime,
		CreatedAt:    time.Now(),
	}
	if err := r.Create(ctx, &record); err != nil {
		return err
	}

	for i := range capture.Requests {
		r.RecordInteraction(string(capture.CaptureID), &capture.Requests[i])
	}
	return nil
}

// RecordInteraction 异步记录单条交互
func (r *CaptureRepo) RecordInteraction(captureID string, req *domain.TrafficRequest) {
	requestJSON, _ := json.Marshal(req)
	var responseJSON []byte
	if req.Response != nil {
		responseJSON, _ = json.Marshal(req.Response)
	}

	record := dbmodel.InteractionRecord{
		CaptureID:    captureID,
		Method:       req.Method,
		Path:         req.Path,
		StatusCode:   req.StatusCode,
		RequestJSON:  string(requestJSON),
		ResponseJSON: string(responseJSON),
		Timestamp:    time.Now().UnixMilli(),
		CreatedAt:    time.Now(),
	}

	r.bufferMu.Lock()
	r.buffer = append(r.buffer, record)
	needFlush := len(r.buffer) >= r.batchSize
	r.bufferMu.Unlock()

	if needFlush {
		select {
		case r.flushCh <- struct{}{}:
		default:
		}
	}
}

// captureByID 按捕获业务ID筛选
type captureByID struct{ id string }

func (f captureByID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("capture_id = ?", f.id)
}

// GetCapture 按捕获ID读取归档并还原为捕获文件
func (r *CaptureRepo) GetCapture(ctx context.Context, captureID domain.CaptureID) (*domain.CapturedTraffic, error) {
	record, err := r.FindOne(ctx, captureByID{id: string(captureID)})
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, domain.ErrCaptureNotFound
	}
	var capture domain.CapturedTraffic
	if err := json.Unmarshal([]byte(record.CaptureJSON), &capture); err != nil {
		return nil, err
	}
	return &capture, nil
}

// ListCaptures 按捕获时间倒序分页列出归档
func (r *CaptureRepo) ListCaptures(ctx context.Context, page, limit int) ([]*dbmodel.CaptureRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	return r.FindAll(ctx, nil, &Pagination{Page: page, Limit: limit}, Orders{{Field: "capture_time", Sort: "DESC"}})
}

// DeleteCapture 删除捕获归档及其全部交互
func (r *CaptureRepo) DeleteCapture(ctx context.Context, captureID domain.CaptureID) error {
	if _, err := r.interactions.Delete(ctx, captureByID{id: string(captureID)}); err != nil {
		return err
	}
	_, err := r.Delete(ctx, captureByID{id: string(captureID)})
	return err
}

// CleanupOldCaptures 按保留天数清理旧归档
func (r *CaptureRepo) CleanupOldCaptures(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		retentionDays = 7
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	if _, err := r.interactions.Delete(ctx, olderThan{cutoff: cutoff.UnixMilli(), field: "timestamp"}); err != nil {
		return 0, err
	}
	return r.Delete(ctx, olderThanTime{cutoff: cutoff, field: "capture_time"})
}

// olderThan 按毫秒时间戳筛选早于截止点的记录
type olderThan struct {
	cutoff int64
	field  string
}

func (f olderThan) Apply(db *gorm.DB) *gorm.DB {
	return db.Where(f.field+" < ?", f.cutoff)
}

// olderThanTime 按时间列筛选早于截止点的记录
type olderThanTime struct {
	cutoff time.Time
	field  string
}

func (f olderThanTime) Apply(db *gorm.DB) *gorm.DB {
	return db.Where(f.field+" < ?", f.cutoff)
}
