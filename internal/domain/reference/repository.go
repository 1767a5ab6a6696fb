package reference

import (
	"context"

	"github.com/shopspring/decimal"
)

// Store is the narrow contract the ledger subsystem consumes from the
// reference collections. Everything beyond counter maintenance (CRUD on
// workers, teams, sites, companies) lives elsewhere and is treated as
// read-only reference data here.
type Store interface {
	// GetByID retrieves one reference entity, or a NOT_FOUND AppError.
	GetByID(ctx context.Context, kind Kind, id string) (*Entity, error)

	// List returns every entity of one kind.
	List(ctx context.Context, kind Kind) ([]Entity, error)

	// ResolveOwningCompany returns the id of the company currently
	// owning the team, or "" when the team is unknown or unowned.
	ResolveOwningCompany(ctx context.Context, teamID string) (string, error)

	// IncrementCounter applies a signed delta to the entity's
	// cumulative work-unit counter using the store's atomic numeric
	// increment. Returns a NOT_FOUND AppError when the entity does not
	// exist; the counter is never created as a side effect.
	IncrementCounter(ctx context.Context, kind Kind, id string, delta decimal.Decimal) error

	// SetCounter overwrites the counter with an absolute value. Only
	// the recompute maintenance path may use this.
	SetCounter(ctx context.Context, kind Kind, id string, value decimal.Decimal) error
}
