// Package retry wraps idempotent remote calls (object listing and retrieval)
// with exponential backoff. Bulk copies are never retried here: a partially
// streamed COPY must restart from the beginning of its file.
package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/seedsync/pkg/errors"
	"github.com/ajitpratap0/seedsync/pkg/logger"
)

// Policy defines retry behavior
type Policy struct {
	MaxAttempts     int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	Multiplier      float64
	RandomizeFactor float64
}

// NewPolicy creates a new retry policy with exponential backoff
func NewPolicy(maxAttempts int, initialDelay time.Duration) *Policy {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Policy{
		MaxAttempts:     maxAttempts,
		InitialDelay:    initialDelay,
		MaxDelay:        time.Minute,
		Multiplier:      2.0,
		RandomizeFactor: 0.25,
	}
}

// Once is a policy that makes a single attempt.
func Once() *Policy {
	return NewPolicy(1, 0)
}

// Do runs fn until it succeeds, returns an error that is not retryable
// (see errors.IsRetryable), the attempts are exhausted or ctx is done.
// op names the operation in logs.
func (p *Policy) Do(ctx context.Context, op string, fn func() error) error {
	return p.DoIf(ctx, op, fn, errors.IsRetryable)
}

// DoIf is Do with a caller supplied retry condition.
func (p *Policy) DoIf(ctx context.Context, op string, fn func() error, shouldRetry func(error) bool) error {
	var lastErr error

	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !shouldRetry(err) {
			return err
		}

		// Don't wait after the last attempt
		if attempt == p.MaxAttempts-1 {
			break
		}

		delay := p.delay(attempt)
		logger.WithContext(ctx).Warn("retrying",
			zap.String("operation", op),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-timer.C:
		}
	}

	if p.MaxAttempts == 1 {
		return lastErr
	}
	return fmt.Errorf("all %d attempts failed: %w", p.MaxAttempts, lastErr)
}

// delay calculates the delay for a given attempt
func (p *Policy) delay(attempt int) time.Duration {
	d := float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(attempt))

	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}

	// jitter
	if p.RandomizeFactor > 0 {
		delta := d * p.RandomizeFactor
		d = d - delta + rand.Float64()*(2*delta) //nolint:gosec // jitter does not need crypto randomness
	}

	return time.Duration(d)
}
