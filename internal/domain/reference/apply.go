package reference

import (
	"context"
	goerrors "errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/yoshidumi/attendance-ledger/internal/domain/errors"
)

// FailedDelta identifies one counter mutation that did not apply, with
// enough information for the caller to retry just that mutation.
type FailedDelta struct {
	Kind  Kind
	ID    string
	Delta decimal.Decimal
	Err   error
}

// PartialFailureError reports that the ledger mutation succeeded but
// one or more counter-delta applications failed. Deltas that did apply
// stay applied.
type PartialFailureError struct {
	Failed []FailedDelta
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("PARTIAL_FAILURE: %d counter delta(s) did not apply", len(e.Failed))
}

// ApplyDeltas fans a delta set out to the store with at most
// maxConcurrency increments in flight. Every delta is attempted even
// when earlier ones fail, so the set of inconsistent entities never
// depends on iteration order. A worker id the store does not know is
// skipped, not failed: placeholder workers are legal in the ledger.
func ApplyDeltas(ctx context.Context, store Store, set DeltaSet, maxConcurrency int, logger *slog.Logger) error {
	deltas := set.Deltas()
	if len(deltas) == 0 {
		return nil
	}
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}

	var (
		mu     sync.Mutex
		failed []FailedDelta
		wg     sync.WaitGroup
	)
	sem := make(chan struct{}, maxConcurrency)

	for _, d := range deltas {
		wg.Add(1)
		sem <- struct{}{}
		go func(d Delta) {
			defer wg.Done()
			defer func() { <-sem }()

			err := store.IncrementCounter(ctx, d.Kind, d.ID, d.Value)
			if err == nil {
				return
			}
			if d.Kind == KindWorker && goerrors.Is(err, errors.NewNotFoundError("")) {
				logger.Debug("skipping counter delta for unknown worker", "workerId", d.ID, "delta", d.Value)
				return
			}
			mu.Lock()
			failed = append(failed, FailedDelta{Kind: d.Kind, ID: d.ID, Delta: d.Value, Err: err})
			mu.Unlock()
		}(d)
	}
	wg.Wait()

	if len(failed) > 0 {
		return &PartialFailureError{Failed: failed}
	}
	return nil
}
