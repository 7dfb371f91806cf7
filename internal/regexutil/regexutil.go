// Package regexutil 提供带并发安全缓存的正则编译工具与模式集合匹配
package regexutil

import (
	"fmt"
	"regexp"
	"sync"
)

// Cache 正则表达式编译缓存
// 内部使用 sync.Map 优化读多写少的并发场景
type Cache struct {
	cache sync.Map
}

// NewCache 创建一个新的正则缓存实例
func NewCache() *Cache {
	return &Cache{}
}

// Get 获取编译后的正则表达式对象
// 缓存命中时直接返回，否则编译后存入缓存
func (c *Cache) Get(p string) (*regexp.Regexp, error) {
	if val, ok := c.cache.Load(p); ok {
		return val.(*regexp.Regexp), nil
	}

	compiled, err := regexp.Compile(p)
	if err != nil {
		return nil, err
	}

	c.cache.Store(p, compiled)
	return compiled, nil
}

// MatchString 使用缓存的正则进行匹配，模式非法时视为不匹配
func (c *Cache) MatchString(pattern, s string) bool {
	re, err := c.Get(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(s)
}

// PatternSet 预编译的正则模式集合
type PatternSet struct {
	patterns []*regexp.Regexp
}

// CompileSet 编译模式集合，任一模式非法时返回错误
func CompileSet(patterns []string) (*PatternSet, error) {
	set := &PatternSet{patterns: make([]*regexp.Regexp, 0, len(patterns))}
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compile pattern %q: %w", p, err)
		}
		set.patterns = append(set.patterns, re)
	}
	return set, nil
}

// MustCompileSet 编译模式集合，非法模式直接 panic（仅用于内置模式）
func MustCompileSet(patterns []string) *PatternSet {
	set, err := CompileSet(patterns)
	if err != nil {
		panic(err)
	}
	return set
}

// MatchAny 判断字符串是否命中集合中任一模式
func (s *PatternSet) MatchAny(str string) bool {
	for _, re := range s.patterns {
		if re.MatchString(str) {
			return true
		}
	}
	return false
}

// Len 返回集合中的模式数量
func (s *PatternSet) Len() int {
	return len(s.patterns)
}
