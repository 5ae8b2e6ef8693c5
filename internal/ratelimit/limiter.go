package ratelimit

import (
	"context"
	"time"
)

// Limiter defines the rate limiting interface.
type Limiter interface {
	Wait(ctx context.Context) error
	Allow() bool
	Reserve() time.Duration
	RetryAfter(attempt int) time.Duration
	Reset()
}

// Strategy defines the rate limiting strategy.
type Strategy string

const (
	StrategyTokenBucket Strategy = "token_bucket"
	StrategyFixedWindow Strategy = "fixed_window"
	StrategyFixedDelay  Strategy = "fixed_delay"
	// StrategyNone disables pacing, for self-hosted services. Retries still
	// back off.
	StrategyNone Strategy = "none"
)

// NewLimiter creates a rate limiter based on config.
func NewLimiter(cfg Config) Limiter {
	cfg = applyDefaults(cfg)
	switch cfg.Strategy {
	case StrategyFixedWindow:
		return NewFixedWindow(cfg)
	case StrategyFixedDelay:
		return NewFixedDelayLimiter(cfg)
	case StrategyNone:
		return unlimited{config: cfg}
	default:
		return NewTokenBucket(cfg)
	}
}

type unlimited struct {
	config Config
}

func (u unlimited) Wait(ctx context.Context) error { return ctx.Err() }
func (unlimited) Allow() bool                      { return true }
func (unlimited) Reserve() time.Duration           { return 0 }
func (u unlimited) RetryAfter(attempt int) time.Duration {
	return CalculateBackoff(attempt, u.config)
}
func (unlimited) Reset() {}
