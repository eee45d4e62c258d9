package service

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/medipredict/internal/metrics"
	"github.com/medipredict/internal/risk"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// ErrEstimatorNotFound 表示句柄不存在、已过期或不属于当前用户
var ErrEstimatorNotFound = errors.New("estimator handle not found")

// populationOwner 为全体用户模型的所有者标识，任何已登录会话均可查询
const populationOwner uint = 0

type cacheKey struct {
	owner     uint
	logLength int
}

type cacheEntry struct {
	handle     string
	key        cacheKey
	estimator  *risk.Estimator
	evaluation *risk.Evaluation
	lastUsed   time.Time
}

// EstimatorCache 按 (用户, 记录条数) 缓存已训练的模型。
// 训练是确定性的，同样的记录得到同样的模型，所以缓存不影响 Predict 结果。
// 记录条数变化后会生成新条目，旧句柄在闲置超过 ttl 后由定时任务清理。
type EstimatorCache struct {
	mu       sync.Mutex
	byKey    map[cacheKey]*cacheEntry
	byHandle map[string]*cacheEntry
	ttl      time.Duration
	now      func() time.Time
	metrics  *metrics.Metrics
}

// NewEstimatorCache 构造缓存，m 可以为 nil
func NewEstimatorCache(ttl time.Duration, m *metrics.Metrics) *EstimatorCache {
	return &EstimatorCache{
		byKey:    make(map[cacheKey]*cacheEntry),
		byHandle: make(map[string]*cacheEntry),
		ttl:      ttl,
		now:      time.Now,
		metrics:  m,
	}
}

func (c *EstimatorCache) lookup(key cacheKey) (*cacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.byKey[key]
	c.metrics.RecordCacheLookup(ok)
	if ok {
		entry.lastUsed = c.now()
	}
	return entry, ok
}

// store 写入新模型。并发训练同一 key 时以先写入者为准，返回已有条目，
// 保证已经返回给调用方的句柄仍然有效。旧的记录条数对应的条目留给定时清理。
func (c *EstimatorCache) store(key cacheKey, estimator *risk.Estimator, evaluation *risk.Evaluation) *cacheEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.byKey[key]; ok {
		existing.lastUsed = c.now()
		return existing
	}

	entry := &cacheEntry{
		handle:     uuid.NewString(),
		key:        key,
		estimator:  estimator,
		evaluation: evaluation,
		lastUsed:   c.now(),
	}
	c.byKey[key] = entry
	c.byHandle[entry.handle] = entry
	c.metrics.SetCachedModels(len(c.byHandle))
	return entry
}

// resolve 根据句柄查找模型，并校验归属
func (c *EstimatorCache) resolve(handle string, userID uint) (*cacheEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.byHandle[handle]
	if !ok || (entry.key.owner != populationOwner && entry.key.owner != userID) {
		return nil, ErrEstimatorNotFound
	}
	entry.lastUsed = c.now()
	return entry, nil
}

// Evict 清理闲置超过 ttl 的条目，返回清理数量
func (c *EstimatorCache) Evict() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := c.now().Add(-c.ttl)
	removed := 0
	for handle, entry := range c.byHandle {
		if entry.lastUsed.Before(cutoff) {
			delete(c.byHandle, handle)
			delete(c.byKey, entry.key)
			removed++
		}
	}
	c.metrics.SetCachedModels(len(c.byHandle))
	return removed
}

// Len 返回当前缓存条目数
func (c *EstimatorCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.byHandle)
}

// Schedule 在 cron 调度器上注册定期清理任务
func (c *EstimatorCache) Schedule(scheduler *cron.Cron, interval time.Duration, logger *zap.Logger) (cron.EntryID, error) {
	if interval <= 0 {
		return 0, fmt.Errorf("sweep interval must be positive")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return scheduler.AddFunc("@every "+interval.String(), func() {
		if removed := c.Evict(); removed > 0 {
			logger.Debug("evicted idle estimators", zap.Int("removed", removed), zap.Int("remaining", c.Len()))
		}
	})
}
