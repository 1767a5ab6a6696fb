package report

import (
	"context"

	"github.com/google/uuid"

	"github.com/yoshidumi/attendance-ledger/internal/domain/reference"
)

// RecomputeFromLedger rebuilds every reference counter from the ledger
// itself: it sums work-units per entity over the entire ledger and
// overwrites the counters with absolute values. This is the one path
// allowed to bypass delta application, and the recovery story for both
// counter staleness after a partial failure and company-ownership
// drift. Counters are lifetime cumulatives, so the rebuild always
// scans the whole ledger; a date-bounded sum would overwrite them with
// a partial total.
func (s *Service) RecomputeFromLedger(ctx context.Context) error {
	opID := uuid.NewString()
	reports, err := s.repo.Query(ctx, Filter{})
	if err != nil {
		return err
	}

	teams := make([]string, 0, len(reports))
	for i := range reports {
		teams = append(teams, reports[i].TeamID)
	}
	companies, err := s.resolveCompanies(ctx, teams)
	if err != nil {
		return err
	}

	totals := reference.NewDeltaSet()
	for i := range reports {
		r := &reports[i]
		totals.Merge(Reconcile(nil, r.WorkerEntries, r.TeamID, r.SiteID, companies[r.TeamID]))
	}

	// Only registered entities get their counter set; placeholder ids
	// (e.g. unregistered workers) have no counter. Entities not touched
	// by any report in range reset to zero.
	var failed []reference.FailedDelta
	applied := 0
	for _, kind := range reference.Kinds {
		entities, err := s.refs.List(ctx, kind)
		if err != nil {
			return err
		}
		for _, e := range entities {
			value := totals.Get(kind, e.ID)
			if err := s.refs.SetCounter(ctx, kind, e.ID, value); err != nil {
				failed = append(failed, reference.FailedDelta{Kind: kind, ID: e.ID, Delta: value, Err: err})
				continue
			}
			applied++
		}
	}
	s.logger.Info("counters recomputed", "operationId", opID,
		"reports", len(reports), "applied", applied, "failed", len(failed))

	if len(failed) > 0 {
		return &reference.PartialFailureError{Failed: failed}
	}
	return nil
}
