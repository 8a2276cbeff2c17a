package decode

import (
	"context"
	"errors"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/kikiluvv/ved/internal/frame"
)

// ErrPoolClosed is returned by a Pool after Close.
var ErrPoolClosed = errors.New("decode pool closed")

type poolKey struct {
	locator string
	index   int64
}

// PoolStats counts cache activity.
type PoolStats struct {
	Hits    uint64
	Misses  uint64
	Entries int
}

// Pool is a bounded cache of decoded frames shared by the clips of one
// render pass. It is passed by reference and closed when the pass ends.
// Callers always receive their own copy of a cached frame.
type Pool struct {
	next  Decoder
	cache *lru.Cache[poolKey, *frame.Buffer] // nil when caching is off

	mu     sync.Mutex
	closed bool
	stats  PoolStats
}

// NewPool caches up to capacity frames decoded by next. A capacity of
// zero or less disables caching but still enforces Close.
func NewPool(next Decoder, capacity int) *Pool {
	p := &Pool{next: next}
	if capacity > 0 {
		// lru.New only fails for a non-positive size.
		p.cache, _ = lru.New[poolKey, *frame.Buffer](capacity)
	}
	return p
}

func (p *Pool) DecodeFrame(ctx context.Context, locator string, index int64) (*frame.Buffer, error) {
	key := poolKey{locator, index}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}
	if p.cache != nil {
		if cached, ok := p.cache.Get(key); ok {
			p.stats.Hits++
			p.mu.Unlock()
			return cached.Clone(), nil
		}
	}
	p.stats.Misses++
	p.mu.Unlock()

	buf, err := p.next.DecodeFrame(ctx, locator, index)
	if err != nil {
		return nil, err
	}
	if p.cache == nil {
		return buf, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.cache.ContainsOrAdd(key, buf.Clone())
	}
	return buf, nil
}

// Stats returns a snapshot of cache counters.
func (p *Pool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.stats
	if p.cache != nil {
		s.Entries = p.cache.Len()
	}
	return s
}

// Close drops every cached frame. Later decodes fail with ErrPoolClosed.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	if p.cache != nil {
		p.cache.Purge()
	}
	return nil
}
