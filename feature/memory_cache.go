package feature

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rushteam/inferkit/core"
	"github.com/rushteam/inferkit/pipeline"
)

// CachedProvider 在 FeatureProvider 前加一层内存缓存，采用 TTL + LRU 策略。
// 摄像头循环每秒会为同一会话请求多次特征，缓存减少对远程特征库的访问。
//
// 缓存键为 "<modality>:<entity>"，实体取自 Params[EntityParam]，缺省时使用 SessionID；
// 两者都没有时不缓存。provider 返回错误或空特征时不写入缓存。
type CachedProvider struct {
	Provider    pipeline.FeatureProvider
	EntityParam string

	mu      sync.Mutex
	entries map[string]*cacheEntry
	maxSize int
	ttl     time.Duration
	now     func() time.Time
}

type cacheEntry struct {
	features   []float64
	expireTime time.Time
	accessTime time.Time
}

// NewCachedProvider 创建带缓存的 provider。maxSize <= 0 时为 1024，ttl <= 0 时为 1 秒。
func NewCachedProvider(p pipeline.FeatureProvider, maxSize int, ttl time.Duration) *CachedProvider {
	if maxSize <= 0 {
		maxSize = 1024
	}
	if ttl <= 0 {
		ttl = time.Second
	}
	return &CachedProvider{
		Provider: p,
		entries:  make(map[string]*cacheEntry),
		maxSize:  maxSize,
		ttl:      ttl,
		now:      time.Now,
	}
}

func (c *CachedProvider) Name() string {
	return fmt.Sprintf("cached(%s)", c.Provider.Name())
}

func (c *CachedProvider) key(ictx *core.InferenceContext) string {
	if ictx == nil {
		return ""
	}
	param := c.EntityParam
	if param == "" {
		param = "entity_id"
	}
	entity := ictx.Param(param)
	if entity == nil && ictx.SessionID != "" {
		entity = ictx.SessionID
	}
	if entity == nil {
		return ""
	}
	return fmt.Sprintf("%s:%v", ictx.Modality, entity)
}

func (c *CachedProvider) Features(ctx context.Context, ictx *core.InferenceContext) ([]float64, error) {
	key := c.key(ictx)
	if key == "" {
		return c.Provider.Features(ctx, ictx)
	}

	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		now := c.now()
		if now.Before(e.expireTime) {
			e.accessTime = now
			out := append([]float64(nil), e.features...)
			c.mu.Unlock()
			return out, nil
		}
		delete(c.entries, key)
	}
	c.mu.Unlock()

	feats, err := c.Provider.Features(ctx, ictx)
	if err != nil || len(feats) == 0 {
		return feats, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if _, ok := c.entries[key]; !ok && len(c.entries) >= c.maxSize {
		c.evict(now)
	}
	c.entries[key] = &cacheEntry{
		features:   append([]float64(nil), feats...),
		expireTime: now.Add(c.ttl),
		accessTime: now,
	}
	return feats, nil
}

// evict 先清理过期条目，仍然满时删除最久未访问的条目。调用方持有锁。
func (c *CachedProvider) evict(now time.Time) {
	for k, e := range c.entries {
		if !now.Before(e.expireTime) {
			delete(c.entries, k)
		}
	}
	if len(c.entries) < c.maxSize {
		return
	}
	var (
		oldestKey  string
		oldestTime time.Time
		first      = true
	)
	for k, e := range c.entries {
		if first || e.accessTime.Before(oldestTime) {
			oldestKey = k
			oldestTime = e.accessTime
			first = false
		}
	}
	if !first {
		delete(c.entries, oldestKey)
	}
}

// Len 返回缓存条目数（含尚未清理的过期条目）。
func (c *CachedProvider) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Invalidate 删除某个会话/实体的缓存。
func (c *CachedProvider) Invalidate(ictx *core.InferenceContext) {
	key := c.key(ictx)
	if key == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

var _ pipeline.FeatureProvider = (*CachedProvider)(nil)
