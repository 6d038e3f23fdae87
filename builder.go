package estateAuth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/MrEthical07/estateAuth/agentcache"
	"github.com/MrEthical07/estateAuth/internal/rate"
	"github.com/MrEthical07/estateAuth/password"
	"github.com/MrEthical07/estateAuth/permission"
	"github.com/MrEthical07/estateAuth/session"
	"github.com/MrEthical07/estateAuth/store"
)

// Builder assembles an Engine. A Builder is single-use.
type Builder struct {
	config    Config
	db        *bun.DB
	redis     redis.UniversalClient
	logger    *zap.Logger
	auditSink AuditSink
	policy    *permission.Policy

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithDB sets the database. Required.
func (b *Builder) WithDB(db *bun.DB) *Builder {
	b.db = db
	return b
}

// WithRedis enables login throttling and cross-process cache invalidation.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithPolicy replaces permission.DefaultPolicy.
func (b *Builder) WithPolicy(p *permission.Policy) *Builder {
	b.policy = p
	return b
}

// Build validates the configuration, migrates the schema when AutoMigrate is set, and
// starts the cache invalidation subscriber when Redis is configured.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.db == nil {
		return nil, errors.New("database required")
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("estateauth")

	if cfg.Database.AutoMigrate {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := store.Migrate(ctx, b.db)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}

	// -------- SESSION --------
	var codec session.Codec = session.NewPlainCodec()
	if cfg.Session.Signed() {
		signed, err := session.NewSignedCodec([]byte(cfg.Session.SigningKey), cfg.Session.Issuer)
		if err != nil {
			return nil, err
		}
		codec = signed
	} else {
		logger.Warn("session cookies are unsigned and can be forged by clients")
	}

	sameSite, _ := session.ParseSameSite(cfg.Session.SameSite)
	reader := session.NewReader(cfg.Session.CookieName, codec, session.WithMaxAge(cfg.Session.MaxAge))
	writer := session.NewWriter(codec, session.CookieOptions{
		Name:     cfg.Session.CookieName,
		Path:     cfg.Session.CookiePath,
		Domain:   cfg.Session.CookieDomain,
		MaxAge:   cfg.Session.MaxAge,
		Secure:   cfg.Session.Secure,
		SameSite: sameSite,
	})

	policy := b.policy
	if policy == nil {
		policy = permission.DefaultPolicy()
	}

	hasher, err := password.NewHasher(cfg.Password.hasherConfig())
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:   cfg,
		logger:   logger,
		db:       b.db,
		redis:    b.redis,
		codec:    codec,
		reader:   reader,
		writer:   writer,
		policy:   policy,
		users:    store.NewUserRepository(b.db),
		agents:   store.NewAgentRepository(b.db),
		listings: store.NewListingRepository(b.db),
		hasher:   hasher,
		metrics:  NewMetrics(cfg.Metrics),
		now:      time.Now,
	}
	engine.audit = newAuditDispatcher(cfg.Audit, b.auditSink, logger)

	// -------- AGENT CACHE --------
	cache, err := agentcache.New(engine.agents, agentcache.Options{
		Size:    cfg.Cache.Size,
		TTL:     cfg.Cache.TTL,
		Redis:   b.redis,
		Channel: cfg.Cache.Channel,
		Logger:  logger,
		OnLookup: func(hit bool) {
			if hit {
				engine.metricInc(MetricAgentCacheHit)
			} else {
				engine.metricInc(MetricAgentCacheMiss)
			}
		},
	})
	if err != nil {
		engine.audit.Close()
		return nil, err
	}
	cache.OnInvalidate(func(string) {
		engine.metricInc(MetricAgentCacheInvalidated)
	})
	engine.cache = cache

	// -------- THROTTLING --------
	if b.redis != nil {
		engine.limiter = rate.New(b.redis, rate.Config{
			MaxLoginAttempts:      cfg.RateLimit.MaxLoginAttempts,
			LoginWindow:           cfg.RateLimit.LoginWindow,
			IPThrottle:            cfg.RateLimit.IPThrottle,
			MaxRegistrationsPerIP: cfg.RateLimit.MaxRegistrationsPerIP,
			RegistrationWindow:    cfg.RateLimit.RegistrationWindow,
		})
		engine.startCacheSubscriber()
	} else {
		logger.Info("redis not configured; login throttling and cross-process cache invalidation disabled")
	}

	b.built = true

	return engine, nil
}
