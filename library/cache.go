package library

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CachedRepository keeps recently read entities of an inner Repository in an LRU
// cache. Writes go to the inner repository first and then refresh or drop the
// cached entry, so a failed write never leaves a stale value behind.
//
// A read fills the cache only when no write to the same id started or finished
// while the read was in flight.
type CachedRepository[T record[T]] struct {
	inner Repository[T]
	cache *lru.Cache[int64, T]

	mu  sync.Mutex
	gen map[int64]uint64
}

// NewCachedRepository wraps inner with a cache holding up to size entities.
func NewCachedRepository[T record[T]](inner Repository[T], size int) (*CachedRepository[T], error) {
	cache, err := lru.New[int64, T](size)
	if err != nil {
		return nil, err
	}
	return &CachedRepository[T]{inner: inner, cache: cache, gen: make(map[int64]uint64)}, nil
}

func (r *CachedRepository[T]) GetAll(ctx context.Context) ([]T, error) {
	return r.inner.GetAll(ctx)
}

func (r *CachedRepository[T]) GetByID(ctx context.Context, id int64) (T, error) {
	if v, ok := r.cache.Get(id); ok {
		return v.clone(), nil
	}
	r.mu.Lock()
	seen := r.gen[id]
	r.mu.Unlock()

	v, err := r.inner.GetByID(ctx, id)
	if err != nil {
		return v, err
	}

	r.mu.Lock()
	if r.gen[id] == seen {
		r.cache.Add(id, v.clone())
	}
	r.mu.Unlock()
	return v, nil
}

func (r *CachedRepository[T]) Add(ctx context.Context, entity T) (T, error) {
	added, err := r.inner.Add(ctx, entity)
	if err != nil {
		return added, err
	}
	r.mu.Lock()
	r.gen[added.key()]++
	r.cache.Add(added.key(), added.clone())
	r.mu.Unlock()
	return added, nil
}

func (r *CachedRepository[T]) Update(ctx context.Context, entity T) error {
	id := entity.key()
	r.invalidate(id)
	err := r.inner.Update(ctx, entity)
	r.invalidate(id)
	return err
}

func (r *CachedRepository[T]) Delete(ctx context.Context, id int64) error {
	r.invalidate(id)
	err := r.inner.Delete(ctx, id)
	r.invalidate(id)
	return err
}

// invalidate drops id from the cache and fences off reads already in flight.
func (r *CachedRepository[T]) invalidate(id int64) {
	r.mu.Lock()
	r.gen[id]++
	r.cache.Remove(id)
	r.mu.Unlock()
}

// Len reports how many entities are cached.
func (r *CachedRepository[T]) Len() int { return r.cache.Len() }
