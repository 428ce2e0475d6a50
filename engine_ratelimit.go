package goGuard

import (
	"context"
	"errors"

	"github.com/MrEthical07/goGuard/ratelimit"
)

// CheckRateLimit reports whether clientKey has exhausted its attempts in
// the current window. It never records an attempt. With rate limiting
// disabled it always reports false.
func (e *Engine) CheckRateLimit(ctx context.Context, clientKey string) (bool, error) {
	if !e.ready() {
		return false, ErrEngineNotReady
	}
	if e.limiter == nil {
		return false, nil
	}
	limited, err := e.limiter.IsLimited(ctx, clientKey)
	if err != nil {
		return false, e.limiterErr(ctx, "check_rate_limit", err)
	}
	if limited {
		info, err := e.limiter.Info(ctx, clientKey)
		if err != nil {
			_ = e.limiterErr(ctx, "rate_limit_info", err)
		}
		e.emitRateLimit(ctx, clientKey, info.Attempts)
	}
	return limited, nil
}

// RecordAttempt records the outcome of an authentication attempt. A
// success clears the key's window.
func (e *Engine) RecordAttempt(ctx context.Context, clientKey string, success bool) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if e.limiter == nil {
		return nil
	}
	if err := e.limiter.RecordAttempt(ctx, clientKey, success); err != nil {
		return e.limiterErr(ctx, "record_attempt", err)
	}
	if success {
		e.metricInc(MetricAttemptSucceeded)
	} else {
		e.metricInc(MetricAttemptFailed)
	}
	return nil
}

// RateLimitInfo describes the current window of clientKey.
func (e *Engine) RateLimitInfo(ctx context.Context, clientKey string) (ratelimit.Info, error) {
	if !e.ready() {
		return ratelimit.Info{}, ErrEngineNotReady
	}
	if e.limiter == nil {
		return ratelimit.Info{Remaining: e.config.RateLimit.MaxAttempts}, nil
	}
	info, err := e.limiter.Info(ctx, clientKey)
	if err != nil {
		return ratelimit.Info{}, e.limiterErr(ctx, "rate_limit_info", err)
	}
	return info, nil
}

// limiterErr logs every limiter failure. Backend outages are logged by
// backendErr; anything else is logged here.
func (e *Engine) limiterErr(ctx context.Context, op string, err error) error {
	err = e.backendErr(ctx, op, err)
	if !errors.Is(err, ErrRedisUnavailable) {
		e.logger.Error().Err(err).Str("op", op).Msg("rate limiter failed")
	}
	return err
}
