package report

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/yoshidumi/attendance-ledger/internal/domain/errors"
)

// DailyReport is one ledger entry: one team's work at one site on one
// date, listing which workers participated and their work-units.
type DailyReport struct {
	ID             string          `json:"id,omitempty"`
	Date           string          `json:"date"`             // YYYY-MM-DD
	TeamID         string          `json:"teamId,omitempty"` // empty = unassigned team
	SiteID         string          `json:"siteId"`
	WorkerEntries  []WorkerEntry   `json:"workerEntries"`
	TotalWorkUnits decimal.Decimal `json:"totalWorkUnits"`
	TotalAmount    decimal.Decimal `json:"totalAmount"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// WorkerEntry is one worker's line in a daily report. WorkerID may
// reference a worker the reference store does not know (a placeholder
// for someone not yet registered); reconciliation tolerates that.
type WorkerEntry struct {
	WorkerID  string          `json:"workerId"`
	WorkUnits decimal.Decimal `json:"workUnits"` // fractional days, >= 0
	UnitRate  decimal.Decimal `json:"unitRate"`
	RoleTag   string          `json:"roleTag,omitempty"`
	Note      string          `json:"note,omitempty"`
}

// RecomputeTotals rederives TotalWorkUnits and TotalAmount from the
// worker entries. The stored totals are never trusted independently:
// every path that touches WorkerEntries calls this before persisting.
func (r *DailyReport) RecomputeTotals() {
	r.TotalWorkUnits = SumWorkUnits(r.WorkerEntries)
	total := decimal.Zero
	for _, e := range r.WorkerEntries {
		total = total.Add(e.WorkUnits.Mul(e.UnitRate))
	}
	r.TotalAmount = total
}

// Validate rejects malformed reports before any store I/O.
func (r *DailyReport) Validate() error {
	if r.Date == "" {
		return errors.NewValidationError("report date is required")
	}
	if _, err := time.Parse("2006-01-02", r.Date); err != nil {
		return errors.NewValidationError("report date must be in YYYY-MM-DD format")
	}
	if r.SiteID == "" {
		return errors.NewValidationError("report siteId is required")
	}
	for _, e := range r.WorkerEntries {
		if e.WorkerID == "" {
			return errors.NewValidationError("worker entry workerId is required")
		}
		if e.WorkUnits.IsNegative() {
			return errors.NewValidationError("worker entry workUnits must not be negative")
		}
	}
	return nil
}

// SumWorkUnits totals the work-units of a set of entries.
func SumWorkUnits(entries []WorkerEntry) decimal.Decimal {
	sum := decimal.Zero
	for _, e := range entries {
		sum = sum.Add(e.WorkUnits)
	}
	return sum
}
