// Package ratelimit paces requests to the drive backend.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/jneless/bkp-drive/internal/logging"
)

// warnInterval limits how often a slow-down warning is logged.
const warnInterval = 10 * time.Second

// Limiter is a token bucket shared by every call of one API client.
// A server-requested cooldown (429 Retry-After) pauses all callers.
type Limiter struct {
	lim    *rate.Limiter
	logger *logging.Logger

	mu            sync.Mutex
	cooldownUntil time.Time
	lastWarn      time.Time
}

// New creates a limiter allowing perSecond requests with the given burst.
// perSecond <= 0 disables pacing.
func New(perSecond float64, burst int, logger *logging.Logger) *Limiter {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		lim:    rate.NewLimiter(limit, burst),
		logger: logging.OrNop(logger),
	}
}

// Wait blocks until a request may be sent or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := l.waitCooldown(ctx); err != nil {
		return err
	}

	r := l.lim.Reserve()
	if !r.OK() {
		return l.lim.Wait(ctx)
	}
	delay := r.Delay()
	if delay == 0 {
		return nil
	}
	l.warn(delay)

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		r.Cancel()
		return ctx.Err()
	}
}

// Cooldown pauses all callers for d, e.g. after a 429 with Retry-After.
// A shorter cooldown never cuts an active one short.
func (l *Limiter) Cooldown(d time.Duration) {
	if d <= 0 {
		return
	}
	until := time.Now().Add(d)
	l.mu.Lock()
	if until.After(l.cooldownUntil) {
		l.cooldownUntil = until
	}
	l.mu.Unlock()
	l.logger.Warn().Dur("cooldown", d).Msg("server throttled requests, pausing")
}

// Limit returns the configured rate in requests per second.
func (l *Limiter) Limit() rate.Limit {
	return l.lim.Limit()
}

func (l *Limiter) waitCooldown(ctx context.Context) error {
	l.mu.Lock()
	wait := time.Until(l.cooldownUntil)
	l.mu.Unlock()
	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Limiter) warn(delay time.Duration) {
	if delay < time.Second {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if time.Since(l.lastWarn) < warnInterval {
		return
	}
	l.lastWarn = time.Now()
	l.logger.Warn().Dur("delay", delay).Msg("request rate limit reached, slowing down")
}
