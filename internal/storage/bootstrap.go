package storage

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/hyperjump/shiryo/internal/models"
)

// CategoryBootstrapper seeds the category taxonomy once per process. Concurrent callers share a
// single in-flight attempt; a failed attempt is retried by the next caller.
type CategoryBootstrapper struct {
	store      Storage
	categories []models.Category
	group      singleflight.Group
	done       atomic.Bool
}

// NewCategoryBootstrapper returns a bootstrapper for categories. A nil slice uses the defaults.
func NewCategoryBootstrapper(store Storage, categories []models.Category) *CategoryBootstrapper {
	if categories == nil {
		categories = models.DefaultCategories
	}
	return &CategoryBootstrapper{store: store, categories: categories}
}

// Ensure seeds the categories unless a previous call succeeded.
func (b *CategoryBootstrapper) Ensure(ctx context.Context) error {
	if b.done.Load() {
		return nil
	}
	_, err, _ := b.group.Do("categories", func() (any, error) {
		if b.done.Load() {
			return nil, nil
		}
		if err := b.store.EnsureCategories(ctx, b.categories); err != nil {
			return nil, err
		}
		b.done.Store(true)
		return nil, nil
	})
	return err
}
