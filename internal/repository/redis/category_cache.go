package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/utafrali/servicehub/internal/domain"
	"github.com/utafrali/servicehub/internal/repository"
)

const categoriesKey = "catalog:categories"

// CategoryCache implements repository.CategoryCache using Redis.
type CategoryCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCategoryCache creates a Redis-backed category cache whose entries
// expire after ttl.
func NewCategoryCache(client *redis.Client, ttl time.Duration) *CategoryCache {
	return &CategoryCache{
		client: client,
		ttl:    ttl,
	}
}

var _ repository.CategoryCache = (*CategoryCache)(nil)

// GetCategories returns the cached category list.
func (c *CategoryCache) GetCategories(ctx context.Context) ([]domain.Category, bool, error) {
	data, err := c.client.Get(ctx, categoriesKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get categories: %w", err)
	}

	var categories []domain.Category
	if err := json.Unmarshal(data, &categories); err != nil {
		return nil, false, fmt.Errorf("unmarshal categories: %w", err)
	}

	return categories, true, nil
}

// SetCategories stores the category list with the configured TTL.
func (c *CategoryCache) SetCategories(ctx context.Context, categories []domain.Category) error {
	data, err := json.Marshal(categories)
	if err != nil {
		return fmt.Errorf("marshal categories: %w", err)
	}

	if err := c.client.Set(ctx, categoriesKey, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set categories: %w", err)
	}

	return nil
}
