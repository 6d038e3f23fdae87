package agentcache

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/MrEthical07/estateAuth/store"
)

const (
	// DefaultChannel is the Redis pub/sub channel invalidations are published on.
	DefaultChannel = "estate:agentcache:invalidate"

	purgeAll = "*"
)

// Loader fetches an agent profile on a cache miss.
type Loader interface {
	LoadAgent(ctx context.Context, id string) (*store.Agent, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, id string) (*store.Agent, error)

func (f LoaderFunc) LoadAgent(ctx context.Context, id string) (*store.Agent, error) {
	return f(ctx, id)
}

// Options configures a Cache.
type Options struct {
	Size int
	TTL  time.Duration

	// Redis enables cross-process invalidation. Nil keeps invalidation local.
	Redis   redis.UniversalClient
	Channel string

	Logger *zap.Logger

	// OnLookup observes every Get with whether it was served from memory.
	OnLookup func(hit bool)
}

// Stats is a point-in-time view of cache counters.
type Stats struct {
	Hits          uint64
	Misses        uint64
	Evictions     uint64
	Invalidations uint64
	Len           int
}

// Cache is safe for concurrent use.
type Cache struct {
	lru      *expirable.LRU[string, *store.Agent]
	loader   Loader
	rdb      redis.UniversalClient
	channel  string
	instance string
	logger   *zap.Logger
	onLookup func(bool)

	hookMu sync.RWMutex
	hooks  []func(id string)

	// fillMu orders cache fills against drops; generation counts drops.
	fillMu     sync.Mutex
	generation uint64

	hits          atomic.Uint64
	misses        atomic.Uint64
	evictions     atomic.Uint64
	invalidations atomic.Uint64

	readyOnce sync.Once
	ready     chan struct{}
}

// New builds a cache in front of loader.
func New(loader Loader, opts Options) (*Cache, error) {
	if loader == nil {
		return nil, errors.New("agentcache: loader is required")
	}
	if opts.Size <= 0 {
		return nil, errors.New("agentcache: size must be > 0")
	}
	if opts.TTL <= 0 {
		return nil, errors.New("agentcache: ttl must be > 0")
	}
	if opts.Channel == "" {
		opts.Channel = DefaultChannel
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return &Cache{
		lru:      expirable.NewLRU[string, *store.Agent](opts.Size, nil, opts.TTL),
		loader:   loader,
		rdb:      opts.Redis,
		channel:  opts.Channel,
		instance: uuid.NewString(),
		logger:   opts.Logger,
		onLookup: opts.OnLookup,
		ready:    make(chan struct{}),
	}, nil
}

// Get returns the profile for id, loading it on a miss. Loader errors are returned as-is
// and nothing is cached. A load that overlaps an invalidation is returned to its caller but
// not cached.
func (c *Cache) Get(ctx context.Context, id string) (*store.Agent, error) {
	if a, ok := c.lru.Get(id); ok {
		c.hits.Add(1)
		c.observe(true)
		return clone(a), nil
	}

	c.misses.Add(1)
	c.observe(false)

	c.fillMu.Lock()
	gen := c.generation
	c.fillMu.Unlock()

	a, err := c.loader.LoadAgent(ctx, id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, store.ErrNotFound
	}

	c.fillMu.Lock()
	if c.generation == gen {
		if evicted := c.lru.Add(id, clone(a)); evicted {
			c.evictions.Add(1)
		}
	}
	c.fillMu.Unlock()
	return clone(a), nil
}

// Invalidate drops id locally, runs hooks, and publishes to peers. The local drop happens
// even when publishing fails.
func (c *Cache) Invalidate(ctx context.Context, id string) error {
	c.drop(id)
	return c.publish(ctx, id)
}

// Purge drops every entry locally and on peers. Hooks receive an empty id.
func (c *Cache) Purge(ctx context.Context) error {
	c.drop(purgeAll)
	return c.publish(ctx, purgeAll)
}

// OnInvalidate registers fn to run after every local or remote invalidation.
func (c *Cache) OnInvalidate(fn func(id string)) {
	if fn == nil {
		return
	}
	c.hookMu.Lock()
	c.hooks = append(c.hooks, fn)
	c.hookMu.Unlock()
}

// Stats returns the current counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:          c.hits.Load(),
		Misses:        c.misses.Load(),
		Evictions:     c.evictions.Load(),
		Invalidations: c.invalidations.Load(),
		Len:           c.lru.Len(),
	}
}

// Ready is closed once Run has subscribed, or immediately by Run when fan-out is disabled.
func (c *Cache) Ready() <-chan struct{} {
	return c.ready
}

// Run consumes peer invalidations until ctx is done. Without a Redis client it returns
// immediately.
func (c *Cache) Run(ctx context.Context) error {
	if c.rdb == nil {
		c.markReady()
		return nil
	}

	sub := c.rdb.Subscribe(ctx, c.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("agentcache: subscribe %s: %w", c.channel, err)
	}
	c.markReady()

	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			c.handle(msg.Payload)
		}
	}
}

func (c *Cache) handle(payload string) {
	origin, id, ok := strings.Cut(payload, "|")
	if !ok || id == "" {
		c.logger.Warn("agentcache: ignoring malformed invalidation", zap.String("payload", payload))
		return
	}
	if origin == c.instance {
		return
	}
	c.drop(id)
}

func (c *Cache) drop(id string) {
	c.fillMu.Lock()
	c.generation++
	if id == purgeAll {
		c.lru.Purge()
		id = ""
	} else {
		c.lru.Remove(id)
	}
	c.fillMu.Unlock()
	c.invalidations.Add(1)

	c.hookMu.RLock()
	hooks := slices.Clone(c.hooks)
	c.hookMu.RUnlock()
	for _, fn := range hooks {
		fn(id)
	}
}

func (c *Cache) publish(ctx context.Context, id string) error {
	if c.rdb == nil {
		return nil
	}
	if err := c.rdb.Publish(ctx, c.channel, c.instance+"|"+id).Err(); err != nil {
		c.logger.Warn("agentcache: publish invalidation failed", zap.String("agent_id", id), zap.Error(err))
		return fmt.Errorf("agentcache: publish invalidation: %w", err)
	}
	return nil
}

func (c *Cache) observe(hit bool) {
	if c.onLookup != nil {
		c.onLookup(hit)
	}
}

func (c *Cache) markReady() {
	c.readyOnce.Do(func() { close(c.ready) })
}

func clone(a *store.Agent) *store.Agent {
	cp := *a
	return &cp
}
