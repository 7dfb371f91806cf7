package regexutil_test

import (
	"sync"
	"testing"

	"shadowpipe/internal/regexutil"
)

// TestCacheHit 验证缓存命中：相同模式返回同一个编译对象
func TestCacheHit(t *testing.T) {
	c := regexutil.NewCache()
	pattern := `^https?://.*`

	re1, err := c.Get(pattern)
	if err != nil {
		t.Fatalf("第一次获取失败: %v", err)
	}
	re2, err := c.Get(pattern)
	if err != nil {
		t.Fatalf("第二次获取失败: %v", err)
	}
	if re1 != re2 {
		t.Error("缓存失效：两次获取相同模式返回了不同的对象指针")
	}
}

// TestCacheInvalidRegex 验证非法正则的处理
func TestCacheInvalidRegex(t *testing.T) {
	c := regexutil.NewCache()
	if _, err := c.Get(`[`); err == nil {
		t.Error("期望非法正则返回错误，但实际未返回")
	}
}

// TestCacheMatchString 验证匹配封装：非法模式视为不匹配
func TestCacheMatchString(t *testing.T) {
	c := regexutil.NewCache()
	if !c.MatchString(`\d+`, "order-42") {
		t.Error("MatchString 应命中数字")
	}
	if c.MatchString(`[`, "anything") {
		t.Error("非法模式应视为不匹配")
	}
}

// TestCacheConcurrency 验证并发安全性
func TestCacheConcurrency(t *testing.T) {
	c := regexutil.NewCache()
	pattern := `[a-z]+`

	const numGoroutines = 100
	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			if _, err := c.Get(pattern); err != nil {
				t.Errorf("并发获取失败: %v", err)
			}
		}()
	}
	wg.Wait()
}

// TestPatternSet 验证模式集合的编译与匹配
func TestPatternSet(t *testing.T) {
	set, err := regexutil.CompileSet([]string{`^/health`, `\.js$`})
	if err != nil {
		t.Fatalf("CompileSet() error = %v", err)
	}
	if set.Len() != 2 {
		t.Errorf("Len() = %d, want 2", set.Len())
	}
	if !set.MatchAny("/health/live") {
		t.Error("应命中健康检查路径")
	}
	if set.MatchAny("/api/orders") {
		t.Error("不应命中业务路径")
	}

	if _, err := regexutil.CompileSet([]string{`[`}); err == nil {
		t.Error("非法模式应使集合编译失败")
	}
}
