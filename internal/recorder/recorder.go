// Package recorder 将脱敏后的交互按时间归组为可回放的用户会话
package recorder

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"shadowpipe/internal/logger"
	"shadowpipe/pkg/domain"
)

// Recorder 会话记录器，独占管理全部 UserSession 的可变状态
type Recorder struct {
	mu       sync.RWMutex
	sessions map[domain.SessionID]*domain.UserSession
	log      logger.Logger
}

// New 创建会话记录器
func New(l logger.Logger) *Recorder {
	if l == nil {
		l = logger.NewNop()
	}
	return &Recorder{
		sessions: make(map[domain.SessionID]*domain.UserSession),
		log:      l,
	}
}

// StartSession 创建一个活跃会话并返回其ID
func (r *Recorder) StartSession(userID string, metadata map[string]string) domain.SessionID {
	id := domain.SessionID(uuid.New().String())
	r.mu.Lock()
	r.sessions[id] = &domain.UserSession{
		SessionID:    id,
		UserID:       userID,
		Interactions: []domain.CapturedInteraction{},
		StartTime:    time.Now(),
		Metadata:     metadata,
	}
	r.mu.Unlock()
	r.log.Info("创建用户会话", "sessionID", id, "userID", userID)
	return id
}

// AddInteraction 按到达顺序向会话追加交互
// 会话不存在或已结束时为带日志的空操作，返回对应错误供调用方判别
func (r *Recorder) AddInteraction(id domain.SessionID, it domain.CapturedInteraction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[id]
	if !ok {
		r.log.Warn("向不存在的会话追加交互", "sessionID", id)
		return domain.ErrSessionNotFound
	}
	if !sess.Active() {
		r.log.Warn("向已结束的会话追加交互", "sessionID", id, "endpoint", it.Endpoint())
		return domain.ErrSessionEnded
	}
	sess.Interactions = append(sess.Interactions, it)
	return nil
}

// EndSession 结束会话，此后会话只读
func (r *Recorder) EndSession(id domain.SessionID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[id]
	if !ok {
		return domain.ErrSessionNotFound
	}
	if !sess.Active() {
		return domain.ErrSessionEnded
	}
	now := time.Now()
	sess.EndTime = &now
	r.log.Info("结束用户会话", "sessionID", id, "interactions", len(sess.Interactions))
	return nil
}

// GetSession 返回会话快照（交互列表为副本，外部修改不影响存储）
func (r *Recorder) GetSession(id domain.SessionID) (domain.UserSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sess, ok := r.sessions[id]
	if !ok {
		return domain.UserSession{}, false
	}
	out := *sess
	out.Interactions = make([]domain.CapturedInteraction, len(sess.Interactions))
	copy(out.Interactions, sess.Interactions)
	return out, true
}

// ReplayResult 回放单条交互的结果
type ReplayResult struct {
	Interaction domain.CapturedInteraction
	Result      any
	Err         error
}

// ReplayCallback 回放回调
type ReplayCallback func(it *domain.CapturedInteraction) (any, error)

// ReplaySession 按原始顺序严格串行回放会话交互
// 顺序回放保证有状态依赖（先创建后读取）不被打乱；回放不修改存储的会话
func (r *Recorder) ReplaySession(id domain.SessionID, cb ReplayCallback) ([]ReplayResult, error) {
	sess, ok := r.GetSession(id)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}

	results := make([]ReplayResult, 0, len(sess.Interactions))
	for idx := range sess.Interactions {
		it := sess.Interactions[idx]
		res, err := cb(&it)
		if err != nil {
			r.log.Warn("回放交互失败", "sessionID", id, "endpoint", it.Endpoint(), "error", err)
		}
		results = append(results, ReplayResult{Interaction: it, Result: res, Err: err})
	}
	return results, nil
}

// Statistics 会话统计信息
type Statistics struct {
	ActiveSessions    int `json:"active_sessions"`
	EndedSessions     int `json:"ended_sessions"`
	TotalInteractions int `json:"total_interactions"`
}

// GetSessionStatistics 聚合活跃/已结束会话数与交互总量
func (r *Recorder) GetSessionStatistics() Statistics {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var stats Statistics
	for _, sess := range r.sessions {
		if sess.Active() {
			stats.ActiveSessions++
		} else {
			stats.EndedSessions++
		}
		stats.TotalInteractions += len(sess.Interactions)
	}
	return stats
}
