package pool_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"shadowpipe/internal/pool"
)

func TestSubmitRunsTasks(t *testing.T) {
	p := pool.New(2, 8)
	p.Start(context.Background())
	defer p.Stop()

	var ran int64
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		ok := p.Submit(func() {
			atomic.AddInt64(&ran, 1)
			wg.Done()
		})
		if !ok {
			wg.Done()
		}
	}
	wg.Wait()

	if got := atomic.LoadInt64(&ran); got == 0 {
		t.Error("no tasks ran")
	}
}

func TestSubmitDropsWhenQueueFull(t *testing.T) {
	// 单 worker 被占住，队列容量 1，后续提交应被丢弃
	p := pool.New(1, 1)
	p.Start(context.Background())
	defer p.Stop()

	block := make(chan struct{})
	release := make(chan struct{})
	p.Submit(func() {
		close(block)
		<-release
	})
	<-block

	// 填满队列
	p.Submit(func() {})

	dropped := false
	for i := 0; i < 20; i++ {
		if !p.Submit(func() {}) {
			dropped = true
			break
		}
	}
	close(release)

	if !dropped {
		t.Error("Submit should drop when queue is full")
	}
	_, _, submit, drop := p.Stats()
	if submit == 0 || drop == 0 {
		t.Errorf("stats submit=%d drop=%d, want both > 0", submit, drop)
	}
}

func TestSubmitWaitBlocksUntilCancel(t *testing.T) {
	p := pool.New(1, 1)
	p.Start(context.Background())
	defer p.Stop()

	block := make(chan struct{})
	release := make(chan struct{})
	defer close(release)
	p.Submit(func() {
		close(block)
		<-release
	})
	<-block
	p.Submit(func() {})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := p.SubmitWait(ctx, func() {}); err == nil {
		t.Error("SubmitWait should fail when context expires with full queue")
	}
}

func TestStopDrainsQueue(t *testing.T) {
	p := pool.New(1, 16)
	p.Start(context.Background())

	var ran int64
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		if err := p.SubmitWait(context.Background(), func() {
			atomic.AddInt64(&ran, 1)
			wg.Done()
		}); err != nil {
			t.Fatalf("SubmitWait() error = %v", err)
		}
	}
	// Stop 后 worker 清空队列，已入队任务全部执行
	p.Stop()
	wg.Wait()

	if got := atomic.LoadInt64(&ran); got != 8 {
		t.Errorf("ran = %d, want 8", got)
	}
}

func TestUnboundedFallback(t *testing.T) {
	p := pool.New(0, 0)
	if p.IsEnabled() {
		t.Error("size 0 pool should not enable limiting")
	}

	done := make(chan struct{})
	p.Submit(func() { close(done) })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Error("task did not run on unbounded pool")
	}
}
