// Package pool 提供有界并发工作池
package pool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"shadowpipe/internal/logger"
)

// Pool 并发工作池，固定数量 worker 消费任务队列
// 实时捕获路径使用非阻塞 Submit（队列满则丢弃），
// 战役执行路径使用 SubmitWait（阻塞直到入队或上下文取消）
type Pool struct {
	workers     int
	queue       chan func()
	queueCap    int
	log         logger.Logger
	totalSubmit int64
	totalDrop   int64
	mu          sync.Mutex
	stopMonitor chan struct{}
	stopOnce    sync.Once
}

// New 创建工作池实例
// size: 最大并发协程数；queueCap: 队列容量（0 时默认为 size * 8）
func New(size int, queueCap int) *Pool {
	if size <= 0 {
		return &Pool{}
	}
	if queueCap <= 0 {
		queueCap = size * 8
	}
	return &Pool{
		workers:  size,
		queue:    make(chan func(), queueCap),
		queueCap: queueCap,
	}
}

// SetLogger 设置日志记录器
func (p *Pool) SetLogger(l logger.Logger) {
	p.log = l
}

// Start 启动固定数量的 worker 协程并开启状态监控
func (p *Pool) Start(ctx context.Context) {
	if p.queue == nil {
		return
	}
	p.stopMonitor = make(chan struct{})
	for i := 0; i < p.workers; i++ {
		go p.worker()
	}
	go p.monitor(ctx)
}

// Stop 停止 worker 与监控协程
// worker 退出前会清空已入队任务，已提交的任务不会被悄悄丢弃
func (p *Pool) Stop() {
	if p.stopMonitor != nil {
		p.stopOnce.Do(func() { close(p.stopMonitor) })
	}
}

// worker 工作协程，从队列中取任务并执行
// 只在 Stop 后退出，退出前清空已入队任务，保证提交方不会无限等待
func (p *Pool) worker() {
	for {
		select {
		case <-p.stopMonitor:
			for {
				select {
				case fn := <-p.queue:
					if fn != nil {
						fn()
					}
				default:
					return
				}
			}
		case fn := <-p.queue:
			if fn != nil {
				fn()
			}
		}
	}
}

// monitor 定期输出工作池状态监控日志
func (p *Pool) monitor(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopMonitor:
			return
		case <-ticker.C:
			qLen, qCap, submit, drop := p.Stats()
			if p.log != nil && submit > 0 {
				usage := float64(qLen) / float64(qCap) * 100
				p.log.Info("工作池状态监控", "queueLen", qLen, "queueCap", qCap, "usage", fmt.Sprintf("%.1f%%", usage), "totalSubmit", submit, "totalDrop", drop)
			}
		}
	}
}

// Submit 非阻塞提交任务
// 未启用并发限制时直接起新协程；队列满时丢弃并返回 false
func (p *Pool) Submit(fn func()) bool {
	if p.queue == nil {
		go fn()
		return true
	}
	p.mu.Lock()
	p.totalSubmit++
	p.mu.Unlock()
	select {
	case p.queue <- fn:
		return true
	default:
		p.mu.Lock()
		p.totalDrop++
		drop := p.totalDrop
		submit := p.totalSubmit
		p.mu.Unlock()
		if p.log != nil {
			p.log.Warn("工作池队列已满，任务被丢弃", "queueCap", p.queueCap, "totalSubmit", submit, "totalDrop", drop)
		}
		return false
	}
}

// SubmitWait 阻塞提交任务，直到入队成功或上下文取消
// 战役执行使用该入口：变异任务不允许被静默丢弃
func (p *Pool) SubmitWait(ctx context.Context, fn func()) error {
	if p.queue == nil {
		go fn()
		return nil
	}
	p.mu.Lock()
	p.totalSubmit++
	p.mu.Unlock()
	select {
	case p.queue <- fn:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats 返回工作池统计信息
func (p *Pool) Stats() (queueLen, queueCap, totalSubmit, totalDrop int64) {
	if p.queue == nil {
		return 0, 0, 0, 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return int64(len(p.queue)), int64(p.queueCap), p.totalSubmit, p.totalDrop
}

// IsEnabled 检查工作池是否启用了并发限制
func (p *Pool) IsEnabled() bool {
	return p.queue != nil
}
