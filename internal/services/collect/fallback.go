package collect

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/interfaces"
)

// Fallback tops up a below-target accumulator from a secondary source.
// It never fails a job: per-variation errors are logged and skipped, and
// an unmet target after exhausting all variations is a reported outcome,
// not an error.
type Fallback struct {
	fetcher interfaces.Fetcher
	config  *common.FallbackConfig
	logger  arbor.ILogger
}

// NewFallback creates a fallback sourcing policy
func NewFallback(fetcher interfaces.Fetcher, config *common.FallbackConfig, logger arbor.ILogger) *Fallback {
	return &Fallback{
		fetcher: fetcher,
		config:  config,
		logger:  logger,
	}
}

// TopUp iterates variations against the secondary source until the target
// is met or the list is exhausted, whichever comes first. Returns the
// number of records added.
func (f *Fallback) TopUp(ctx context.Context, variations []string, target int, acc *Accumulator, cancelled func() bool) int {
	if cancelled == nil {
		cancelled = func() bool { return false }
	}

	startCount := acc.Count()

	for i, variation := range variations {
		if cancelled() || ctx.Err() != nil {
			break
		}

		shortfall := target - acc.Count()
		if shortfall <= 0 {
			break
		}

		amount := shortfall + f.config.Buffer
		if amount > f.config.PerQueryCap {
			amount = f.config.PerQueryCap
		}

		records, err := f.fetcher.Fetch(ctx, variation, amount)
		if err != nil {
			f.logger.Warn().
				Err(err).
				Str("variation", variation).
				Str("source", f.fetcher.Name()).
				Msg("Secondary source query failed, continuing with next variation")
		} else {
			if len(records) > amount {
				records = records[:amount]
			}
			added := acc.Merge(records)
			f.logger.Debug().
				Str("variation", variation).
				Int("fetched", len(records)).
				Int("added", added).
				Int("unique_total", acc.Count()).
				Msg("Secondary source query complete")
		}

		// Pause between queries to avoid bursty request patterns
		if i < len(variations)-1 && acc.Count() < target && f.config.QueryDelay > 0 {
			select {
			case <-ctx.Done():
				return acc.Count() - startCount
			case <-time.After(f.config.QueryDelay):
			}
		}
	}

	return acc.Count() - startCount
}
