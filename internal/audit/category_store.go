package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/tscore/backend/internal/contracts"
	"github.com/wonny/tscore/backend/pkg/logger"
	"github.com/wonny/tscore/backend/pkg/redis"
)

// previousLoader is the durable side of the category store
type previousLoader interface {
	LoadPreviousCategories(ctx context.Context, before time.Time) (contracts.CategoryMap, error)
}

// cachedCategories is the Redis payload for a committed category map
type cachedCategories struct {
	AsOf       time.Time             `json:"as_of"`
	Categories contracts.CategoryMap `json:"categories"`
}

// CategoryStore threads categories between cycles: Redis first, Postgres behind it.
// Either side may be absent; with neither, every cycle starts without history.
type CategoryStore struct {
	durable previousLoader
	cache   *redis.Cache
	logger  *logger.Logger
}

var _ contracts.CategoryStore = (*CategoryStore)(nil)

// NewCategoryStore creates a category store.
// repo may be nil (file-only runs); cache may wrap a disabled client.
func NewCategoryStore(repo *Repository, cache *redis.Cache, log *logger.Logger) *CategoryStore {
	s := &CategoryStore{cache: cache, logger: log}
	if repo != nil {
		s.durable = repo
	}
	if s.logger == nil {
		s.logger = logger.Nop()
	}
	return s
}

// Previous returns the latest committed category map strictly before the given time
func (s *CategoryStore) Previous(ctx context.Context, before time.Time) (contracts.CategoryMap, error) {
	if s.cache != nil {
		var latest cachedCategories
		found, err := s.cache.Get(ctx, redis.LatestCategoriesKey(), &latest)
		if err != nil {
			// 캐시 장애는 DB 조회로 대체
			s.logger.WithError(err).Warn("Category cache read failed")
		}
		if found && latest.AsOf.Before(before) {
			return latest.Categories, nil
		}
	}

	if s.durable == nil {
		return contracts.CategoryMap{}, nil
	}

	categories, err := s.durable.LoadPreviousCategories(ctx, before)
	if err != nil {
		return nil, fmt.Errorf("load previous categories: %w", err)
	}
	return categories, nil
}

// Remember caches a committed cycle's categories.
// The Postgres copy is written with the cycle itself (Repository.SaveCycle).
func (s *CategoryStore) Remember(ctx context.Context, asOf time.Time, categories contracts.CategoryMap) error {
	if s.cache == nil {
		return nil
	}

	payload := cachedCategories{AsOf: asOf, Categories: categories}

	if err := s.cache.Set(ctx, redis.CategoriesKey(asOf), payload, redis.TTLWeek); err != nil {
		return fmt.Errorf("cache categories: %w", err)
	}

	// 과거 날짜 재실행이 최신 포인터를 덮어쓰지 않도록
	var latest cachedCategories
	found, err := s.cache.Get(ctx, redis.LatestCategoriesKey(), &latest)
	if err != nil {
		return fmt.Errorf("read latest categories: %w", err)
	}
	if found && latest.AsOf.After(asOf) {
		return nil
	}

	if err := s.cache.Set(ctx, redis.LatestCategoriesKey(), payload, redis.TTLWeek); err != nil {
		return fmt.Errorf("cache latest categories: %w", err)
	}
	return nil
}
