package report

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/yoshidumi/attendance-ledger/internal/domain/errors"
	"github.com/yoshidumi/attendance-ledger/internal/domain/reference"
)

// Service owns the ledger write operations. Every operation follows the
// same ordering: validate, resolve owning companies (read-only), commit
// the ledger mutation in chunks, then apply counter deltas as a
// best-effort follow-up. A crash between the last two steps leaves the
// ledger correct and the counters stale, never the reverse; the ledger
// is the source of truth and counters are recoverable via recompute.
type Service struct {
	repo           Repository
	refs           reference.Store
	maxConcurrency int
	logger         *slog.Logger
}

// NewService creates a new ledger service. maxConcurrency bounds how
// many counter increments run in flight per operation.
func NewService(repo Repository, refs reference.Store, maxConcurrency int, logger *slog.Logger) *Service {
	return &Service{
		repo:           repo,
		refs:           refs,
		maxConcurrency: maxConcurrency,
		logger:         logger,
	}
}

// CreateReportRequest carries the data for one new daily report.
type CreateReportRequest struct {
	Date          string        `json:"date"`
	TeamID        string        `json:"teamId,omitempty"`
	SiteID        string        `json:"siteId"`
	WorkerEntries []WorkerEntry `json:"workerEntries"`
}

func (req *CreateReportRequest) toReport(now time.Time) *DailyReport {
	r := &DailyReport{
		Date:          req.Date,
		TeamID:        req.TeamID,
		SiteID:        req.SiteID,
		WorkerEntries: req.WorkerEntries,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	r.RecomputeTotals()
	return r
}

// Create persists one new report, then credits the worker, team, site
// and owning-company counters with its work-units. A returned
// *reference.PartialFailureError means the report itself is persisted.
func (s *Service) Create(ctx context.Context, req *CreateReportRequest) (*DailyReport, error) {
	opID := uuid.NewString()
	r := req.toReport(time.Now().UTC())
	if err := r.Validate(); err != nil {
		return nil, err
	}

	companies, err := s.resolveCompanies(ctx, []string{r.TeamID})
	if err != nil {
		return nil, err
	}

	ids, err := s.repo.InsertMany(ctx, []*DailyReport{r})
	if err != nil {
		return nil, err
	}
	r.ID = ids[0]
	s.logger.Info("report created", "operationId", opID, "reportId", r.ID, "date", r.Date)

	set := Reconcile(nil, r.WorkerEntries, r.TeamID, r.SiteID, companies[r.TeamID])
	return r, s.applyDeltas(ctx, opID, set)
}

// Update replaces the worker entries of an existing report and nets the
// counter difference between the old and new entry sets.
func (s *Service) Update(ctx context.Context, id string, newEntries []WorkerEntry) (*DailyReport, error) {
	opID := uuid.NewString()
	r, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	oldEntries := r.WorkerEntries
	r.WorkerEntries = newEntries
	r.RecomputeTotals()
	r.UpdatedAt = time.Now().UTC()
	if err := r.Validate(); err != nil {
		return nil, err
	}

	companies, err := s.resolveCompanies(ctx, []string{r.TeamID})
	if err != nil {
		return nil, err
	}

	if err := s.repo.UpdateByID(ctx, r); err != nil {
		return nil, err
	}
	s.logger.Info("report updated", "operationId", opID, "reportId", r.ID)

	set := Reconcile(oldEntries, newEntries, r.TeamID, r.SiteID, companies[r.TeamID])
	return r, s.applyDeltas(ctx, opID, set)
}

// CreateBatch persists reports in size-bounded atomic chunks, then
// applies one merged delta set: a single counter mutation per distinct
// entity across the whole batch, not one per report.
func (s *Service) CreateBatch(ctx context.Context, reqs []*CreateReportRequest) ([]*DailyReport, error) {
	opID := uuid.NewString()
	now := time.Now().UTC()

	reports := make([]*DailyReport, 0, len(reqs))
	teams := make([]string, 0, len(reqs))
	for _, req := range reqs {
		r := req.toReport(now)
		if err := r.Validate(); err != nil {
			return nil, err
		}
		reports = append(reports, r)
		teams = append(teams, r.TeamID)
	}

	companies, err := s.resolveCompanies(ctx, teams)
	if err != nil {
		return nil, err
	}

	if _, err := s.repo.InsertMany(ctx, reports); err != nil {
		return nil, err
	}
	s.logger.Info("report batch created", "operationId", opID, "count", len(reports))

	set := reference.NewDeltaSet()
	for _, r := range reports {
		set.Merge(Reconcile(nil, r.WorkerEntries, r.TeamID, r.SiteID, companies[r.TeamID]))
	}
	return reports, s.applyDeltas(ctx, opID, set)
}

// OverwriteForDateAndTeams replaces every report on one date belonging
// to the given teams with the supplied set. Counter updates use a net
// delta per entity: sum of inserted work-units minus sum of deleted
// work-units, zeros dropped. Resubmitting the same payload is therefore
// idempotent on the counters; the second call deletes exactly what the
// first inserted and nets to zero.
//
// Every record's team must appear in teamIDs: a record inserted outside
// the delete scope could never be removed by a repeat call.
func (s *Service) OverwriteForDateAndTeams(ctx context.Context, date string, reqs []*CreateReportRequest, teamIDs []string) ([]*DailyReport, error) {
	opID := uuid.NewString()
	if date == "" {
		return nil, errors.NewValidationError("overwrite date is required")
	}
	now := time.Now().UTC()

	inScope := make(map[string]bool, len(teamIDs))
	for _, id := range teamIDs {
		inScope[id] = true
	}

	reports := make([]*DailyReport, 0, len(reqs))
	teams := append([]string(nil), teamIDs...)
	for _, req := range reqs {
		r := req.toReport(now)
		r.Date = date
		if err := r.Validate(); err != nil {
			return nil, err
		}
		if !inScope[r.TeamID] {
			return nil, errors.NewValidationError("record team is outside the overwrite team scope")
		}
		reports = append(reports, r)
	}

	existing, err := s.repo.Query(ctx, Filter{Date: date})
	if err != nil {
		return nil, err
	}
	var toDelete []DailyReport
	for _, r := range existing {
		if inScope[r.TeamID] {
			toDelete = append(toDelete, r)
		}
	}

	companies, err := s.resolveCompanies(ctx, teams)
	if err != nil {
		return nil, err
	}

	muts := make([]Mutation, 0, len(toDelete)+len(reports))
	for i := range toDelete {
		muts = append(muts, Mutation{Delete: &RecordRef{ID: toDelete[i].ID, Date: toDelete[i].Date}})
	}
	for _, r := range reports {
		muts = append(muts, Mutation{Put: r})
	}
	if err := s.repo.ApplyMutations(ctx, muts); err != nil {
		return nil, err
	}
	s.logger.Info("date overwritten", "operationId", opID, "date", date,
		"deleted", len(toDelete), "inserted", len(reports))

	set := reference.NewDeltaSet()
	for i := range toDelete {
		d := &toDelete[i]
		set.Merge(Reconcile(d.WorkerEntries, nil, d.TeamID, d.SiteID, companies[d.TeamID]))
	}
	for _, r := range reports {
		set.Merge(Reconcile(nil, r.WorkerEntries, r.TeamID, r.SiteID, companies[r.TeamID]))
	}
	return reports, s.applyDeltas(ctx, opID, set)
}

// RemoveWorkerFromReport drops one worker's entry from a report and
// debits the counters by that entry's work-units.
func (s *Service) RemoveWorkerFromReport(ctx context.Context, reportID, workerID string) (*DailyReport, error) {
	opID := uuid.NewString()
	r, err := s.repo.GetByID(ctx, reportID)
	if err != nil {
		return nil, err
	}

	oldEntries := r.WorkerEntries
	newEntries := make([]WorkerEntry, 0, len(oldEntries))
	for _, e := range oldEntries {
		if e.WorkerID != workerID {
			newEntries = append(newEntries, e)
		}
	}
	if len(newEntries) == len(oldEntries) {
		return nil, errors.NewNotFoundError("worker entry not found in report")
	}

	companies, err := s.resolveCompanies(ctx, []string{r.TeamID})
	if err != nil {
		return nil, err
	}

	r.WorkerEntries = newEntries
	r.RecomputeTotals()
	r.UpdatedAt = time.Now().UTC()
	if err := s.repo.UpdateByID(ctx, r); err != nil {
		return nil, err
	}
	s.logger.Info("worker removed from report", "operationId", opID, "reportId", r.ID, "workerId", workerID)

	set := Reconcile(oldEntries, newEntries, r.TeamID, r.SiteID, companies[r.TeamID])
	return r, s.applyDeltas(ctx, opID, set)
}

// UpsertWorkerInReport adds or replaces one worker's entry in the
// report identified by (date, team, site). A missing report is created,
// not treated as an error.
func (s *Service) UpsertWorkerInReport(ctx context.Context, date, teamID, siteID string, entry WorkerEntry) (*DailyReport, error) {
	existing, err := s.repo.Query(ctx, Filter{Date: date})
	if err != nil {
		return nil, err
	}
	var target *DailyReport
	for i := range existing {
		if existing[i].TeamID == teamID && existing[i].SiteID == siteID {
			target = &existing[i]
			break
		}
	}
	if target == nil {
		return s.Create(ctx, &CreateReportRequest{
			Date:          date,
			TeamID:        teamID,
			SiteID:        siteID,
			WorkerEntries: []WorkerEntry{entry},
		})
	}

	newEntries := make([]WorkerEntry, 0, len(target.WorkerEntries)+1)
	replaced := false
	for _, e := range target.WorkerEntries {
		if e.WorkerID == entry.WorkerID {
			newEntries = append(newEntries, entry)
			replaced = true
		} else {
			newEntries = append(newEntries, e)
		}
	}
	if !replaced {
		newEntries = append(newEntries, entry)
	}
	return s.Update(ctx, target.ID, newEntries)
}

// resolveCompanies maps each distinct non-empty team id to its current
// owning company, resolved once per operation. Ownership is looked up
// at reconciliation time, not stored on the report; if a team moves
// between companies across writes to the same report, old and new
// owner counters can drift until the next recompute.
func (s *Service) resolveCompanies(ctx context.Context, teamIDs []string) (map[string]string, error) {
	out := make(map[string]string, len(teamIDs))
	for _, id := range teamIDs {
		if id == "" {
			continue
		}
		if _, done := out[id]; done {
			continue
		}
		companyID, err := s.refs.ResolveOwningCompany(ctx, id)
		if err != nil {
			return nil, err
		}
		out[id] = companyID
	}
	return out, nil
}

// applyDeltas is the counter follow-up shared by every write path.
// Failures surface as *reference.PartialFailureError so the caller can
// retry exactly the listed deltas; the ledger write already committed.
func (s *Service) applyDeltas(ctx context.Context, opID string, set reference.DeltaSet) error {
	err := reference.ApplyDeltas(ctx, s.refs, set, s.maxConcurrency, s.logger)
	if err != nil {
		s.logger.Warn("counter deltas incomplete", "operationId", opID, "error", err)
		return err
	}
	return nil
}
