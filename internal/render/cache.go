package render

import (
	"context"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/kikiluvv/ved/internal/frame"
	"github.com/kikiluvv/ved/internal/timeline"
	"github.com/kikiluvv/ved/pkg/util"
)

type cacheKey struct {
	tl *timeline.Timeline
	t  util.Rational
}

// CachedCompositor memoises composited frames for preview scrubbing.
// Timelines are immutable, so a (timeline, time) pair always maps to the
// same pixels. Failed frames are not cached.
type CachedCompositor struct {
	next   Compositor
	cache  *lru.Cache[cacheKey, *frame.Buffer]
	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewCachedCompositor keeps up to capacity frames from next.
func NewCachedCompositor(next Compositor, capacity int) *CachedCompositor {
	cache, _ := lru.New[cacheKey, *frame.Buffer](max(capacity, 1))
	return &CachedCompositor{next: next, cache: cache}
}

func (c *CachedCompositor) Composite(ctx context.Context, tl *timeline.Timeline, t util.Rational) (*frame.Buffer, error) {
	key := cacheKey{tl: tl, t: util.NewRational(t.Num, max(t.Den, 1))}

	if cached, ok := c.cache.Get(key); ok {
		c.hits.Add(1)
		return cached.Clone(), nil
	}
	c.misses.Add(1)

	buf, err := c.next.Composite(ctx, tl, t)
	if err != nil {
		return nil, err
	}
	c.cache.ContainsOrAdd(key, buf.Clone())
	return buf, nil
}

// Stats returns hit and miss counts.
func (c *CachedCompositor) Stats() (hits, misses uint64) {
	return c.hits.Load(), c.misses.Load()
}

// Len returns the number of cached frames.
func (c *CachedCompositor) Len() int { return c.cache.Len() }

// Purge drops every cached frame.
func (c *CachedCompositor) Purge() { c.cache.Purge() }
