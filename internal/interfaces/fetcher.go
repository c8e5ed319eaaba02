package interfaces

import (
	"context"
	"fmt"

	"github.com/ternarybob/colligo/internal/models"
)

// FetchErrorKind classifies fetch failures for retry decisions
type FetchErrorKind int

const (
	// FetchTransient covers connection and session style failures worth
	// retrying with backoff (browser disconnects, timeouts, dropped sessions)
	FetchTransient FetchErrorKind = iota
	// FetchPermanent covers failures that will not improve on retry
	// (malformed queries, blocked accounts, missing pages)
	FetchPermanent
)

// FetchError is a classified failure from a source fetcher. The executor's
// retry policy checks Kind rather than matching error text.
type FetchError struct {
	Kind FetchErrorKind
	Op   string
	Err  error
}

func (e *FetchError) Error() string {
	kind := "permanent"
	if e.Kind == FetchTransient {
		kind = "transient"
	}
	return fmt.Sprintf("%s: %s fetch error: %v", e.Op, kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// NewTransientError wraps err as a retryable fetch failure
func NewTransientError(op string, err error) *FetchError {
	return &FetchError{Kind: FetchTransient, Op: op, Err: err}
}

// NewPermanentError wraps err as a non-retryable fetch failure
func NewPermanentError(op string, err error) *FetchError {
	return &FetchError{Kind: FetchPermanent, Op: op, Err: err}
}

// Fetcher retrieves records matching a search query. Limit is a soft cap:
// returning fewer is acceptable and callers truncate any excess. Cancellation
// flows through the context; implementations should check it at their own
// suspension points.
type Fetcher interface {
	Fetch(ctx context.Context, query string, limit int) ([]models.Record, error)

	// Name identifies the source in logs and progress messages
	Name() string
}
