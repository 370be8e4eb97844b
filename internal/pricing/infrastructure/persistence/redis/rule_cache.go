// Package redis 提供价格规则快照的 Redis 读穿缓存
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/wyfcoding/ecommerce/internal/pricing/domain"
	"github.com/wyfcoding/ecommerce/pkg/cache"
	"github.com/wyfcoding/ecommerce/pkg/logger"
)

const activeRulesKeyPrefix = "pricing:rules:active:"

// CachedRuleRepository 包装底层规则仓储，缓存每个子类目的启用规则快照
// 写入规则时删除对应子类目的快照；缓存故障时回落到底层仓储
type CachedRuleRepository struct {
	next  domain.RuleRepository
	cache *cache.RedisCache
	ttl   time.Duration
}

// NewCachedRuleRepository 创建带缓存的规则仓储
func NewCachedRuleRepository(next domain.RuleRepository, c *cache.RedisCache, ttl time.Duration) *CachedRuleRepository {
	return &CachedRuleRepository{next: next, cache: c, ttl: ttl}
}

func activeRulesKey(subcategoryID uint) string {
	return fmt.Sprintf("%s%d", activeRulesKeyPrefix, subcategoryID)
}

func (r *CachedRuleRepository) Save(ctx context.Context, rule *domain.PriceRule) error {
	if err := r.next.Save(ctx, rule); err != nil {
		return err
	}
	if err := r.cache.Delete(ctx, activeRulesKey(rule.SubcategoryID)); err != nil {
		logger.Warn(ctx, "failed to invalidate rule snapshot", "subcategory_id", rule.SubcategoryID, "error", err)
	}
	return nil
}

func (r *CachedRuleRepository) ListActiveBySubcategory(ctx context.Context, subcategoryID uint) ([]*domain.PriceRule, error) {
	key := activeRulesKey(subcategoryID)

	var cached []*domain.PriceRule
	found, err := r.cache.GetJSON(ctx, key, &cached)
	if err != nil {
		logger.Warn(ctx, "rule snapshot cache read failed", "key", key, "error", err)
	}
	if found {
		return cached, nil
	}

	rules, err := r.next.ListActiveBySubcategory(ctx, subcategoryID)
	if err != nil {
		return nil, err
	}
	if err := r.cache.SetJSON(ctx, key, rules, r.ttl); err != nil {
		logger.Warn(ctx, "rule snapshot cache write failed", "key", key, "error", err)
	}
	return rules, nil
}

func (r *CachedRuleRepository) ListBySubcategory(ctx context.Context, subcategoryID uint) ([]*domain.PriceRule, error) {
	return r.next.ListBySubcategory(ctx, subcategoryID)
}
