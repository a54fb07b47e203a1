package core

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// DefaultIdempotencyCapacity bounds each action's LRU bucket.
const DefaultIdempotencyCapacity = 4096

type cacheState uint8

const (
	stateInFlight cacheState = iota
	stateCompleted
)

type cacheEntry struct {
	state  cacheState
	result interface{}
}

// IdempotencyCache is the at-most-once request cache (§4.5): a key maps to
// a completed result, with bounded per-action capacity; calls still in
// flight are tracked by singleflight rather than stored. Concurrent callers supplying the same (action, key) collapse
// into a single producer invocation via singleflight; only the leader
// actually builds and broadcasts a transaction.
type IdempotencyCache struct {
	mu       sync.Mutex
	buckets  map[string]*lru.Cache[string, cacheEntry]
	capacity int
	group    singleflight.Group
	logger   *logrus.Logger
}

// NewIdempotencyCache returns a cache whose per-action buckets each hold up
// to capacity entries (DefaultIdempotencyCapacity if capacity <= 0).
func NewIdempotencyCache(capacity int, lg *logrus.Logger) *IdempotencyCache {
	if capacity <= 0 {
		capacity = DefaultIdempotencyCapacity
	}
	if lg == nil {
		lg = logrus.StandardLogger()
	}
	return &IdempotencyCache{
		buckets:  make(map[string]*lru.Cache[string, cacheEntry]),
		capacity: capacity,
		logger:   lg,
	}
}

// NewIdempotencyKey mints an opaque key for a caller that didn't supply one,
// so batch run bookkeeping and logs always have something to correlate on.
func NewIdempotencyKey() string { return uuid.NewString() }

func (c *IdempotencyCache) bucket(action string) *lru.Cache[string, cacheEntry] {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.buckets[action]
	if !ok {
		// capacity is fixed and positive; lru.New only errors on size <= 0.
		b, _ = lru.New[string, cacheEntry](c.capacity)
		c.buckets[action] = b
	}
	return b
}

// WithCache runs producer under at-most-once semantics for (action, key). An
// empty key opts out of caching entirely (every call runs producer). A key
// that already completed returns its cached result without calling producer
// again; concurrent callers racing on the same uncompleted key block on the
// same producer invocation rather than running it twice (§8: "only the
// first actually builds a transaction").
func (c *IdempotencyCache) WithCache(action, key string, producer func() (interface{}, error)) (result interface{}, fromCache bool, err error) {
	if key == "" {
		result, err = producer()
		return result, false, err
	}

	b := c.bucket(action)
	if entry, ok := b.Get(key); ok && entry.state == stateCompleted {
		return entry.result, true, nil
	}

	v, err, shared := c.group.Do(action+"\x00"+key, func() (interface{}, error) {
		if entry, ok := b.Get(key); ok && entry.state == stateCompleted {
			return entry.result, nil
		}
		res, perr := producer()
		if perr != nil {
			return nil, perr
		}
		b.Add(key, cacheEntry{state: stateCompleted, result: res})
		c.logger.WithField("action", action).WithField("key", key).Debug("idempotency cache: completed")
		return res, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v, shared, nil
}

// Put installs a completed result for (action, key) directly, without
// running a producer. Used when a single batch operation completes several
// logically distinct keys at once (e.g. one REVEAL_ALL transaction
// satisfies several names' individual reveal entries) (§4.5).
func (c *IdempotencyCache) Put(action, key string, result interface{}) {
	if key == "" {
		return
	}
	c.bucket(action).Add(key, cacheEntry{state: stateCompleted, result: result})
}

// ClearCache evicts every key cached for action, the administrative
// "clear_cache(name)" operation (§4.5, §6).
func (c *IdempotencyCache) ClearCache(action string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.buckets, action)
}

// ClearCacheKey evicts a single key within action's bucket
// ("clear_cache(name, key)").
func (c *IdempotencyCache) ClearCacheKey(action, key string) {
	b := c.bucket(action)
	b.Remove(key)
}
