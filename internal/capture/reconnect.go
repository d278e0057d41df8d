package capture

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// ReconnectConfig controls exponential backoff between connection attempts.
type ReconnectConfig struct {
	MaxRetries    int           // attempts before giving up (default 5)
	RetryDelay    time.Duration // first delay (default 1s)
	MaxRetryDelay time.Duration // delay cap (default 30s)
}

// DefaultReconnectConfig returns 5 retries, 1s initial delay, 30s cap.
func DefaultReconnectConfig() ReconnectConfig {
	return ReconnectConfig{
		MaxRetries:    5,
		RetryDelay:    1 * time.Second,
		MaxRetryDelay: 30 * time.Second,
	}
}

// ConnectFunc runs one connection until it fails (non-nil error) or shuts
// down cleanly (nil).
type ConnectFunc func(ctx context.Context) error

// RunWithReconnect calls connect until it returns nil, ctx ends or retries
// are exhausted. The retry budget resets after a connection that stayed up
// longer than MaxRetryDelay.
//
// Backoff: RetryDelay * 2^(attempt-1), capped at MaxRetryDelay.
func RunWithReconnect(ctx context.Context, name string, connect ConnectFunc, cfg ReconnectConfig, reconnects *atomic.Uint32) error {
	retries := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		started := time.Now()
		err := connect(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if time.Since(started) > cfg.MaxRetryDelay {
			retries = 0
		}
		retries++
		reconnects.Add(1)

		slog.Error("capture: connection failed", "source", name, "error", err)

		if retries > cfg.MaxRetries {
			return fmt.Errorf("capture: %s: max retries exceeded (%d attempts): %w", name, cfg.MaxRetries, err)
		}

		delay := Backoff(retries, cfg)
		slog.Warn("capture: retrying connection",
			"source", name,
			"attempt", retries,
			"max_retries", cfg.MaxRetries,
			"delay", delay,
		)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Backoff returns the delay before attempt (1-based).
func Backoff(attempt int, cfg ReconnectConfig) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 30 {
		return cfg.MaxRetryDelay
	}
	delay := cfg.RetryDelay * time.Duration(1<<uint(attempt-1))
	if delay > cfg.MaxRetryDelay {
		delay = cfg.MaxRetryDelay
	}
	return delay
}
