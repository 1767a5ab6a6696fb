package report

import (
	"github.com/yoshidumi/attendance-ledger/internal/domain/reference"
)

// Reconcile computes the signed counter deltas implied by replacing a
// report's worker entries with a new set. It is pure: no I/O, no store
// lookups. companyID is the id of the company owning teamID at call
// time; callers resolve it once per operation.
//
// Per-worker deltas diff the two entry sets over the union of worker
// ids. The team, site and company deltas are the single scalar
// sum(new) - sum(old), since a report belongs to one team and one site.
// Zero deltas are dropped so no counter write is issued for them. An
// empty teamID skips both the team and the company delta: there is no
// owning team to credit.
func Reconcile(oldEntries, newEntries []WorkerEntry, teamID, siteID, companyID string) reference.DeltaSet {
	set := reference.NewDeltaSet()

	for _, e := range oldEntries {
		set.Add(reference.KindWorker, e.WorkerID, e.WorkUnits.Neg())
	}
	for _, e := range newEntries {
		set.Add(reference.KindWorker, e.WorkerID, e.WorkUnits)
	}

	scalar := SumWorkUnits(newEntries).Sub(SumWorkUnits(oldEntries))
	if teamID != "" {
		set.Add(reference.KindTeam, teamID, scalar)
		set.Add(reference.KindCompany, companyID, scalar)
	}
	set.Add(reference.KindSite, siteID, scalar)

	set.Compact()
	return set
}
