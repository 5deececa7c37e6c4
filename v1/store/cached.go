package store

import (
	"context"
	"strconv"
	"time"

	"github.com/dgraph-io/ristretto"
	"golang.org/x/sync/singleflight"
)

const defaultCacheTTL = 30 * time.Second

// CachedStore decorates an EvaluationStore with a ristretto read cache.
// Concurrent loads of the same evaluation are coalesced into one storage
// round trip; writes invalidate the cached entry.
type CachedStore struct {
	inner EvaluationStore
	cache *ristretto.Cache
	group singleflight.Group
	ttl   time.Duration
}

// CachedOption configures a CachedStore.
type CachedOption func(*CachedStore)

// WithCacheTTL sets how long a loaded evaluation stays cached.
func WithCacheTTL(d time.Duration) CachedOption {
	return func(c *CachedStore) { c.ttl = d }
}

// NewCached wraps inner with a read cache.
func NewCached(inner EvaluationStore, opts ...CachedOption) *CachedStore {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e4,
		MaxCost:     1 << 20,
		BufferItems: 64,
	})
	if err != nil {
		panic(err)
	}
	c := &CachedStore{inner: inner, cache: cache, ttl: defaultCacheTTL}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type loadResult struct {
	eval  *Evaluation
	found bool
}

// Load implements EvaluationStore.Load.
func (c *CachedStore) Load(ctx context.Context, id int64) (*Evaluation, bool, error) {
	key := strconv.FormatInt(id, 10)
	if v, ok := c.cache.Get(key); ok {
		e := v.(Evaluation)
		return &e, true, nil
	}
	v, err, _ := c.group.Do(key, func() (any, error) {
		e, found, err := c.inner.Load(ctx, id)
		if err != nil {
			return nil, err
		}
		if found {
			c.cache.SetWithTTL(key, *e, 1, c.ttl)
		}
		return loadResult{eval: e, found: found}, nil
	})
	if err != nil {
		return nil, false, err
	}
	res := v.(loadResult)
	if !res.found {
		return nil, false, nil
	}
	cp := *res.eval
	return &cp, true, nil
}

// Save implements EvaluationStore.Save, invalidating the cached entry.
func (c *CachedStore) Save(ctx context.Context, e *Evaluation) error {
	if err := c.inner.Save(ctx, e); err != nil {
		return err
	}
	c.cache.Del(strconv.FormatInt(e.ID, 10))
	return nil
}

// Delete implements EvaluationStore.Delete, invalidating the cached entry.
func (c *CachedStore) Delete(ctx context.Context, id int64) error {
	if err := c.inner.Delete(ctx, id); err != nil {
		return err
	}
	c.cache.Del(strconv.FormatInt(id, 10))
	return nil
}

// All implements EvaluationStore.All, bypassing the cache.
func (c *CachedStore) All(ctx context.Context) ([]*Evaluation, error) {
	return c.inner.All(ctx)
}
