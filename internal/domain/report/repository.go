package report

import (
	"context"
	"fmt"
)

// Filter selects ledger records. Date and DateFrom/DateTo are mutually
// exclusive; TeamIDIn further restricts either query.
type Filter struct {
	Date     string
	DateFrom string
	DateTo   string
	TeamIDIn []string
}

// RecordRef addresses one persisted report for deletion. Date rides
// along because it is the store's partition key.
type RecordRef struct {
	ID   string
	Date string
}

// Mutation is one ledger-store write: exactly one of Put or Delete is
// set. The repository groups mutations into size-bounded atomic chunks;
// there is no atomicity, and no rollback, across chunks.
type Mutation struct {
	Put    *DailyReport
	Delete *RecordRef
}

// ChunkError reports the first failing chunk of a chunked execution.
// Chunks before Index are committed and stay committed.
type ChunkError struct {
	Index int
	Err   error
}

func (e *ChunkError) Error() string {
	return fmt.Sprintf("chunk %d failed: %v", e.Index, e.Err)
}

func (e *ChunkError) Unwrap() error { return e.Err }

// Repository is the ledger-store contract. Implementations persist
// reports in a document store that offers atomic writes only within a
// bounded chunk.
type Repository interface {
	// GetByID retrieves one report, or a NOT_FOUND AppError.
	GetByID(ctx context.Context, id string) (*DailyReport, error)

	// Query returns every report matching the filter.
	Query(ctx context.Context, f Filter) ([]DailyReport, error)

	// InsertMany persists new reports in chunks and returns their
	// assigned ids, in input order.
	InsertMany(ctx context.Context, reports []*DailyReport) ([]string, error)

	// UpdateByID replaces one persisted report in full.
	UpdateByID(ctx context.Context, r *DailyReport) error

	// ApplyMutations executes puts and deletes in size-bounded atomic
	// chunks. On failure it returns a *ChunkError; prior chunks remain
	// committed. Put mutations without an id are assigned one in place.
	ApplyMutations(ctx context.Context, muts []Mutation) error
}
