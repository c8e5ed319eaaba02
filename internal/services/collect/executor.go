package collect

import (
	"context"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
)

// Per-item quota bounds. Fetched batches carry a large duplicate fraction,
// so each item asks for a multiple of the remaining need, clamped to keep
// requests away from degenerate extremes.
const (
	minItemQuota     = 30
	maxItemQuota     = 200
	dedupMultiplier  = 2.5
	unlimitedPerItem = 200
)

// ExecutorParams configures one executor run
type ExecutorParams struct {
	Fetcher     interfaces.Fetcher
	Accumulator *Accumulator
	Retry       *RetryPolicy
	Logger      arbor.ILogger

	// Target is the requested unique-record count. Zero disables the cap
	// and each item fetches a fixed per-item amount instead.
	Target int

	Workers         int
	StaggerDelay    time.Duration
	CheckpointEvery int

	// Cancelled is polled before every submission and at every item start
	Cancelled func() bool

	// OnProgress is called after every item completion or failure
	OnProgress func(processed, total, unique int)

	// OnCheckpoint is called every CheckpointEvery completions with the
	// max-seen completed ordinal watermark
	OnCheckpoint func(maxCompletedIndex int)
}

// Result summarizes an executor run
type Result struct {
	Processed    int
	Failed       int
	EarlyStopped bool
	Cancelled    bool
}

// Executor runs work items through a fixed-size worker pool with staggered
// launch, typed-error retry, early stop on target, cooperative cancellation
// and periodic checkpointing.
type Executor struct {
	params ExecutorParams
	state  *runState
}

// runState is the shared mutable state of one run. Workers query and
// mutate it under its own mutex, independent of the accumulator lock, so
// progress reporting does not contend with record merging.
type runState struct {
	mu              sync.Mutex
	total           int
	processed       int
	failed          int
	maxSeenIndex    int
	sinceCheckpoint int
}

func (s *runState) remainingItems() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	remaining := s.total - s.processed - s.failed
	if remaining < 1 {
		return 1
	}
	return remaining
}

// recordDone marks one item finished and reports whether a checkpoint is
// due. The watermark advances monotonically to the highest ordinal seen.
func (s *runState) recordDone(index int, failed bool, checkpointEvery int) (processed int, watermark int, checkpointDue bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if failed {
		s.failed++
	} else {
		s.processed++
	}
	if index > s.maxSeenIndex {
		s.maxSeenIndex = index
	}

	s.sinceCheckpoint++
	if checkpointEvery > 0 && s.sinceCheckpoint >= checkpointEvery {
		s.sinceCheckpoint = 0
		checkpointDue = true
	}
	return s.processed + s.failed, s.maxSeenIndex, checkpointDue
}

func (s *runState) counts() (processed, failed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processed, s.failed
}

// NewExecutor creates an executor for one run
func NewExecutor(params ExecutorParams) *Executor {
	if params.Workers < 1 {
		params.Workers = 1
	}
	if params.Cancelled == nil {
		params.Cancelled = func() bool { return false }
	}
	return &Executor{
		params: params,
		state:  &runState{},
	}
}

// Run executes the given work items and returns once all are processed,
// the target is reached, or cancellation is observed. Items are expected
// to already exclude anything below the resume offset.
func (e *Executor) Run(ctx context.Context, items []models.WorkItem) Result {
	p := e.params
	e.state.total = len(items)

	if len(items) == 0 {
		return Result{}
	}

	workers := p.Workers
	if workers > len(items) {
		workers = len(items)
	}

	itemCh := make(chan models.WorkItem)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go e.worker(ctx, itemCh, &wg)
	}

	result := Result{}
	launched := 0

dispatch:
	for _, item := range items {
		if p.Cancelled() || ctx.Err() != nil {
			result.Cancelled = true
			break
		}
		if p.Target > 0 && p.Accumulator.Count() >= p.Target {
			result.EarlyStopped = true
			break
		}

		// Space out the initial submissions so concurrent activity ramps
		// up instead of bursting
		if launched > 0 && launched < workers && p.StaggerDelay > 0 {
			select {
			case <-ctx.Done():
				result.Cancelled = true
				break dispatch
			case <-time.After(p.StaggerDelay):
			}
		}

		select {
		case itemCh <- item:
			launched++
		case <-ctx.Done():
			result.Cancelled = true
			break dispatch
		}
	}

	close(itemCh)
	wg.Wait()

	result.Processed, result.Failed = e.state.counts()
	if p.Target > 0 && p.Accumulator.Count() >= p.Target {
		result.EarlyStopped = true
	}
	return result
}

func (e *Executor) worker(ctx context.Context, items <-chan models.WorkItem, wg *sync.WaitGroup) {
	defer wg.Done()

	p := e.params
	for item := range items {
		// Drain instead of returning so the dispatcher is never left
		// blocked on a send with no receiver
		if p.Cancelled() || ctx.Err() != nil {
			continue
		}

		quota := e.itemQuota()
		if quota == 0 {
			// Target already reached; nothing left to request
			e.finishItem(item, false)
			continue
		}

		query := item.Query()
		records, err := p.Retry.Execute(ctx, p.Logger, func() ([]models.Record, error) {
			return p.Fetcher.Fetch(ctx, query, quota)
		})
		if err != nil {
			p.Logger.Warn().
				Err(err).
				Int("item", item.Index).
				Str("query", query).
				Msg("Work item failed after retries")
			e.finishItem(item, true)
			continue
		}

		if len(records) > quota {
			records = records[:quota]
		}
		added := p.Accumulator.Merge(records)

		p.Logger.Debug().
			Int("item", item.Index).
			Int("fetched", len(records)).
			Int("added", added).
			Int("unique_total", p.Accumulator.Count()).
			Msg("Work item complete")

		e.finishItem(item, false)
	}
}

// itemQuota computes the fetch amount for the next item from the remaining
// need and remaining item count, with a floor against degenerate near-zero
// requests as the target is approached.
func (e *Executor) itemQuota() int {
	p := e.params
	if p.Target <= 0 {
		return unlimitedPerItem
	}

	remaining := p.Target - p.Accumulator.Count()
	if remaining <= 0 {
		return 0
	}

	quota := int(float64(remaining) * dedupMultiplier / float64(e.state.remainingItems()))
	if quota < minItemQuota {
		quota = minItemQuota
	}
	if quota > maxItemQuota {
		quota = maxItemQuota
	}
	return quota
}

func (e *Executor) finishItem(item models.WorkItem, failed bool) {
	p := e.params

	done, watermark, checkpointDue := e.state.recordDone(item.Index, failed, p.CheckpointEvery)

	if p.OnProgress != nil {
		p.OnProgress(done, e.state.total, p.Accumulator.Count())
	}
	if checkpointDue && p.OnCheckpoint != nil {
		p.OnCheckpoint(watermark)
	}
}
