package rate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "estate:rl:"

// Config holds limiter budgets. A zero attempt budget disables that counter.
type Config struct {
	MaxLoginAttempts      int
	LoginWindow           time.Duration
	IPThrottle            bool
	MaxRegistrationsPerIP int
	RegistrationWindow    time.Duration
}

// Limiter is safe for concurrent use.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New returns a limiter over redisClient.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

// CheckLogin fails with ErrRateLimited once the account or IP has used its failure budget.
func (l *Limiter) CheckLogin(ctx context.Context, email, ip string) error {
	if l.config.MaxLoginAttempts <= 0 {
		return nil
	}
	for _, key := range l.loginKeys(email, ip) {
		if err := l.checkCounter(ctx, key, l.config.MaxLoginAttempts); err != nil {
			return err
		}
	}
	return nil
}

// RecordLoginFailure counts one failed login for the account and IP.
func (l *Limiter) RecordLoginFailure(ctx context.Context, email, ip string) error {
	if l.config.MaxLoginAttempts <= 0 {
		return nil
	}
	for _, key := range l.loginKeys(email, ip) {
		if _, err := l.incrementWithTTL(ctx, key, l.config.LoginWindow); err != nil {
			return err
		}
	}
	return nil
}

// ResetLogin clears the account counter after a successful login. The IP counter keeps
// running so one valid account cannot launder attempts against others.
func (l *Limiter) ResetLogin(ctx context.Context, email string) error {
	if l.config.MaxLoginAttempts <= 0 {
		return nil
	}
	if err := l.redis.Del(ctx, loginAccountKey(email)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// LoginAttempts returns the failure count recorded for email.
func (l *Limiter) LoginAttempts(ctx context.Context, email string) (int, error) {
	count, err := l.redis.Get(ctx, loginAccountKey(email)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return int(count), nil
}

// AllowRegistration counts a registration from ip and fails once the window budget is
// spent.
func (l *Limiter) AllowRegistration(ctx context.Context, ip string) error {
	if l.config.MaxRegistrationsPerIP <= 0 || ip == "" {
		return nil
	}
	count, err := l.incrementWithTTL(ctx, registerIPKey(ip), l.config.RegistrationWindow)
	if err != nil {
		return err
	}
	if count > int64(l.config.MaxRegistrationsPerIP) {
		return ErrRateLimited
	}
	return nil
}

func (l *Limiter) loginKeys(email, ip string) []string {
	keys := []string{loginAccountKey(email)}
	if l.config.IPThrottle && ip != "" {
		keys = append(keys, loginIPKey(ip))
	}
	return keys
}

func (l *Limiter) checkCounter(ctx context.Context, key string, maxAttempts int) error {
	count, err := l.redis.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count >= int64(maxAttempts) {
		return ErrRateLimited
	}
	return nil
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count == 1 {
		if err := l.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}
	return count, nil
}

func loginAccountKey(email string) string {
	return keyPrefix + "login:acct:" + strings.ToLower(strings.TrimSpace(email))
}

func loginIPKey(ip string) string {
	return keyPrefix + "login:ip:" + ip
}

func registerIPKey(ip string) string {
	return keyPrefix + "register:ip:" + ip
}
