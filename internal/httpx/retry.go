// Package httpx provides a tiny bounded-retry wrapper shared by the
// device-client and push engine:
// network errors and 5xx responses get a small exponential backoff
// before surfacing to the caller; 4xx never retries.
package httpx

import (
	"context"
	"time"

	"github.com/pingidentity/davincikit/capability"
)

// RetryConfig bounds the retry loop. Zero (or negative) fields fall back
// to the defaults applied by clamp: 3 attempts, 100ms base delay.
type RetryConfig struct {
	MaxAttempts int           // total attempts including the first; default 3
	BaseDelay   time.Duration // delay before the second attempt; default 100ms
}

func (c RetryConfig) clamp() RetryConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = 100 * time.Millisecond
	}
	return c
}

// Send calls http.Send, retrying only on transport errors and 5xx
// responses, with exponential backoff (base, 2*base, 4*base, ...).
// 4xx responses are returned immediately without retry.
func Send(ctx context.Context, http capability.HTTP, req capability.Request, cfg RetryConfig) (capability.Response, error) {
	cfg = cfg.clamp()

	var lastErr error
	var lastResp capability.Response
	delay := cfg.BaseDelay
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		resp, err := http.Send(ctx, req)
		if err == nil && resp.StatusCode < 500 {
			return resp, nil
		}
		lastErr = err
		lastResp = resp

		if attempt == cfg.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return capability.Response{}, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return lastResp, lastErr
}
