package estateAuth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
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

// Engine is the assembled service. Build one with New().Build(); it is safe for concurrent
// use and must be closed.
type Engine struct {
	config Config
	logger *zap.Logger

	db    *bun.DB
	redis redis.UniversalClient

	codec  session.Codec
	reader *session.Reader
	writer *session.Writer
	policy *permission.Policy

	users    *store.UserRepository
	agents   *store.AgentRepository
	listings *store.ListingRepository
	cache    *agentcache.Cache
	limiter  *rate.Limiter
	hasher   *password.Hasher

	audit   *auditDispatcher
	metrics *Metrics
	now     func() time.Time

	runCancel context.CancelFunc
	runWG     sync.WaitGroup
	closeOnce sync.Once
}

func (e *Engine) startCacheSubscriber() {
	ctx, cancel := context.WithCancel(context.Background())
	e.runCancel = cancel
	e.runWG.Add(1)
	go func() {
		defer e.runWG.Done()
		for {
			err := e.cache.Run(ctx)
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				e.logger.Warn("agent cache subscriber stopped; retrying", zap.Error(err))
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
		}
	}()
}

// Close stops the cache subscriber and flushes audit events. The database and Redis clients
// belong to the caller and stay open.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.closeOnce.Do(func() {
		if e.runCancel != nil {
			e.runCancel()
		}
		e.runWG.Wait()
		e.audit.Close()
	})
}

// Config returns the configuration the engine was built with.
func (e *Engine) Config() Config {
	return e.config
}

// Logger returns the engine's named logger.
func (e *Engine) Logger() *zap.Logger {
	if e == nil || e.logger == nil {
		return zap.NewNop()
	}
	return e.logger
}

// CacheReady is closed once cross-process invalidation is subscribed. Without Redis it never
// closes.
func (e *Engine) CacheReady() <-chan struct{} {
	return e.cache.Ready()
}

func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot copies the engine's counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// CacheStats reports the agent cache counters.
func (e *Engine) CacheStats() agentcache.Stats {
	return e.cache.Stats()
}

// Ping checks the database and, when configured, Redis.
func (e *Engine) Ping(ctx context.Context) error {
	if e == nil || e.db == nil {
		return ErrEngineNotReady
	}
	if err := e.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: database: %v", ErrBackendUnavailable, err)
	}
	if e.redis != nil {
		if err := e.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("%w: redis: %v", ErrBackendUnavailable, err)
		}
	}
	return nil
}

/*
====================================
SESSIONS
====================================
*/

// SessionFromRequest reads the request's session cookie. A missing or unreadable cookie
// reports false and the caller proceeds as anonymous.
func (e *Engine) SessionFromRequest(r *http.Request) (*session.Session, bool) {
	if e == nil || e.reader == nil {
		return nil, false
	}

	s, err := e.reader.Inspect(r)
	switch {
	case err == nil:
		e.metricInc(MetricSessionValid)
		return s, true
	case errors.Is(err, session.ErrAbsent):
		e.metricInc(MetricSessionAbsent)
	case errors.Is(err, session.ErrInvalidSession):
		e.metricInc(MetricSessionInvalid)
		e.rejectSession(r, err)
	default:
		e.metricInc(MetricSessionMalformed)
		e.rejectSession(r, err)
	}
	return nil, false
}

func (e *Engine) rejectSession(r *http.Request, err error) {
	e.logger.Debug("session cookie rejected", zap.Error(err))
	e.emitAudit(r.Context(), auditEventSessionRejected, false, auditActor{}, "", err, nil)
}

// CookieName is the session cookie key.
func (e *Engine) CookieName() string {
	return e.reader.CookieName()
}

// SessionCookie encodes s as the session cookie without writing it.
func (e *Engine) SessionCookie(s *session.Session) (*http.Cookie, error) {
	if e == nil || e.writer == nil {
		return nil, ErrEngineNotReady
	}
	return e.writer.Cookie(s)
}

// SetSessionCookie writes s to the response.
func (e *Engine) SetSessionCookie(w http.ResponseWriter, s *session.Session) error {
	if e == nil || e.writer == nil {
		return ErrEngineNotReady
	}
	return e.writer.Set(w, s)
}

// Filter returns the query restriction for s performing action. A nil session may only read,
// and only published records.
func (e *Engine) Filter(s *session.Session, action permission.Action) permission.Filter {
	if s == nil {
		if action == permission.ActionRead {
			return permission.PublicFilter()
		}
		return permission.DenyAll()
	}
	return e.policy.BuildFilter(s.Role, action, s.UserID)
}

// Allows reports whether the session's role may attempt action at all.
func (e *Engine) Allows(s *session.Session, action permission.Action) bool {
	if s == nil {
		return action == permission.ActionRead
	}
	return e.policy.Allows(s.Role, action)
}

func storeError(err error, notFound error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return notFound
	case errors.Is(err, store.ErrDuplicate):
		return ErrAccountExists
	case errors.Is(err, store.ErrInvalid):
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
}
