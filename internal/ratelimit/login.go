package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrRateLimited = errors.New("too many attempts")

// LoginLimiter throttles failed login attempts per identifier and per IP
// using fixed-window Redis counters. A nil *LoginLimiter is a no-op, so
// deployments without Redis skip throttling entirely.
type LoginLimiter struct {
	redis       redis.UniversalClient
	maxAttempts int
	cooldown    time.Duration
}

func NewLoginLimiter(client redis.UniversalClient, maxAttempts int, cooldown time.Duration) *LoginLimiter {
	return &LoginLimiter{
		redis:       client,
		maxAttempts: maxAttempts,
		cooldown:    cooldown,
	}
}

// Check reports whether the email+IP pair is still within budget.
func (l *LoginLimiter) Check(ctx context.Context, email, ip string) error {
	if l == nil {
		return nil
	}
	if err := l.checkCounter(ctx, emailKey(email)); err != nil {
		return err
	}
	if ip != "" {
		if err := l.checkCounter(ctx, ipKey(ip)); err != nil {
			return err
		}
	}
	return nil
}

// RecordFailure counts a failed attempt against both keys.
func (l *LoginLimiter) RecordFailure(ctx context.Context, email, ip string) error {
	if l == nil {
		return nil
	}
	if err := l.increment(ctx, emailKey(email)); err != nil {
		return err
	}
	if ip != "" {
		return l.increment(ctx, ipKey(ip))
	}
	return nil
}

// Reset clears the email counter after a successful login.
func (l *LoginLimiter) Reset(ctx context.Context, email string) error {
	if l == nil {
		return nil
	}
	return l.redis.Del(ctx, emailKey(email)).Err()
}

func (l *LoginLimiter) checkCounter(ctx context.Context, key string) error {
	count, err := l.redis.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return err
	}
	if count >= int64(l.maxAttempts) {
		return ErrRateLimited
	}
	return nil
}

func (l *LoginLimiter) increment(ctx context.Context, key string) error {
	pipe := l.redis.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, l.cooldown)
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}
	if incr.Val() > int64(l.maxAttempts) {
		return ErrRateLimited
	}
	return nil
}

func emailKey(email string) string {
	return fmt.Sprintf("login:fail:email:%s", email)
}

func ipKey(ip string) string {
	return fmt.Sprintf("login:fail:ip:%s", ip)
}
