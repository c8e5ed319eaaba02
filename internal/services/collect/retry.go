package collect

import (
	"context"
	"errors"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
)

// RetryPolicy defines per-item retry behavior with exponential backoff.
// Only transient fetch errors are retried; the decision is a kind check on
// the typed error, never error-text matching.
type RetryPolicy struct {
	MaxRetries        int
	InitialBackoff    time.Duration
	BackoffMultiplier float64
}

// NewRetryPolicy creates a retry policy from worker configuration
func NewRetryPolicy(config *common.WorkersConfig) *RetryPolicy {
	return &RetryPolicy{
		MaxRetries:        config.MaxRetries,
		InitialBackoff:    config.RetryBackoff,
		BackoffMultiplier: 2.0,
	}
}

// ShouldRetry reports whether a failed attempt warrants another try.
// attempt is zero-based; MaxRetries bounds the extra attempts after the
// first.
func (p *RetryPolicy) ShouldRetry(attempt int, err error) bool {
	if attempt >= p.MaxRetries {
		return false
	}

	var fetchErr *interfaces.FetchError
	if errors.As(err, &fetchErr) {
		return fetchErr.Kind == interfaces.FetchTransient
	}
	return false
}

// Backoff returns the delay before the given zero-based retry attempt
func (p *RetryPolicy) Backoff(attempt int) time.Duration {
	backoff := float64(p.InitialBackoff)
	for i := 0; i < attempt; i++ {
		backoff *= p.BackoffMultiplier
	}
	return time.Duration(backoff)
}

// Execute runs fn with the retry loop, sleeping the backoff between
// transient failures and honoring context cancellation during the sleep.
func (p *RetryPolicy) Execute(ctx context.Context, logger arbor.ILogger, fn func() ([]models.Record, error)) ([]models.Record, error) {
	var lastErr error

	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		records, err := fn()
		if err == nil {
			return records, nil
		}
		lastErr = err

		if !p.ShouldRetry(attempt, err) {
			logger.Debug().
				Int("attempt", attempt+1).
				Err(err).
				Msg("Non-retryable fetch error, failing immediately")
			return nil, err
		}

		backoff := p.Backoff(attempt)
		logger.Debug().
			Int("attempt", attempt+1).
			Dur("backoff", backoff).
			Err(err).
			Msg("Transient fetch error, retrying after backoff")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}

	logger.Warn().
		Int("max_retries", p.MaxRetries).
		Err(lastErr).
		Msg("All retry attempts exhausted")
	return nil, lastErr
}
