package report

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yoshidumi/attendance-ledger/internal/domain/errors"
	"github.com/yoshidumi/attendance-ledger/internal/domain/reference"
)

// fakeLedger is an in-memory report.Repository.
type fakeLedger struct {
	reports map[string]*DailyReport
	seq     int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{reports: make(map[string]*DailyReport)}
}

func (l *fakeLedger) GetByID(ctx context.Context, id string) (*DailyReport, error) {
	r, ok := l.reports[id]
	if !ok {
		return nil, errors.NewNotFoundError("report not found")
	}
	clone := *r
	clone.WorkerEntries = append([]WorkerEntry(nil), r.WorkerEntries...)
	return &clone, nil
}

func (l *fakeLedger) Query(ctx context.Context, f Filter) ([]DailyReport, error) {
	var out []DailyReport
	for _, r := range l.reports {
		if f.Date != "" && r.Date != f.Date {
			continue
		}
		if f.DateFrom != "" && r.Date < f.DateFrom {
			continue
		}
		if f.DateTo != "" && r.Date > f.DateTo {
			continue
		}
		if len(f.TeamIDIn) > 0 {
			match := false
			for _, id := range f.TeamIDIn {
				if r.TeamID == id {
					match = true
				}
			}
			if !match {
				continue
			}
		}
		clone := *r
		clone.WorkerEntries = append([]WorkerEntry(nil), r.WorkerEntries...)
		out = append(out, clone)
	}
	return out, nil
}

func (l *fakeLedger) InsertMany(ctx context.Context, reports []*DailyReport) ([]string, error) {
	muts := make([]Mutation, 0, len(reports))
	for _, r := range reports {
		muts = append(muts, Mutation{Put: r})
	}
	if err := l.ApplyMutations(ctx, muts); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(reports))
	for _, r := range reports {
		ids = append(ids, r.ID)
	}
	return ids, nil
}

func (l *fakeLedger) UpdateByID(ctx context.Context, r *DailyReport) error {
	if _, ok := l.reports[r.ID]; !ok {
		return errors.NewNotFoundError("report not found")
	}
	clone := *r
	clone.WorkerEntries = append([]WorkerEntry(nil), r.WorkerEntries...)
	l.reports[r.ID] = &clone
	return nil
}

func (l *fakeLedger) ApplyMutations(ctx context.Context, muts []Mutation) error {
	for i := range muts {
		m := &muts[i]
		switch {
		case m.Put != nil:
			if m.Put.ID == "" {
				l.seq++
				m.Put.ID = fmt.Sprintf("r%d", l.seq)
			}
			clone := *m.Put
			clone.WorkerEntries = append([]WorkerEntry(nil), m.Put.WorkerEntries...)
			l.reports[clone.ID] = &clone
		case m.Delete != nil:
			delete(l.reports, m.Delete.ID)
		}
	}
	return nil
}

// fakeRefStore is an in-memory reference.Store with failure injection.
type fakeRefStore struct {
	mu         sync.Mutex
	counters   map[string]decimal.Decimal
	known      map[string]bool
	owners     map[string]string
	failure    map[string]error
	increments int
}

func newFakeRefStore() *fakeRefStore {
	return &fakeRefStore{
		counters: make(map[string]decimal.Decimal),
		known:    make(map[string]bool),
		owners:   make(map[string]string),
		failure:  make(map[string]error),
	}
}

func refKey(kind reference.Kind, id string) string { return string(kind) + "#" + id }

// register makes an entity known with a zero counter.
func (s *fakeRefStore) register(kind reference.Kind, ids ...string) {
	for _, id := range ids {
		s.known[refKey(kind, id)] = true
	}
}

func (s *fakeRefStore) counter(kind reference.Kind, id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters[refKey(kind, id)].String()
}

func (s *fakeRefStore) GetByID(ctx context.Context, kind reference.Kind, id string) (*reference.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := refKey(kind, id)
	if !s.known[k] {
		return nil, errors.NewNotFoundError("entity not found")
	}
	return &reference.Entity{Kind: kind, ID: id, CumulativeWorkUnits: s.counters[k], CompanyID: s.owners[id]}, nil
}

func (s *fakeRefStore) List(ctx context.Context, kind reference.Kind) ([]reference.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prefix := string(kind) + "#"
	var out []reference.Entity
	for k := range s.known {
		if len(k) > len(prefix) && k[:len(prefix)] == prefix {
			id := k[len(prefix):]
			out = append(out, reference.Entity{Kind: kind, ID: id, CumulativeWorkUnits: s.counters[k]})
		}
	}
	return out, nil
}

func (s *fakeRefStore) ResolveOwningCompany(ctx context.Context, teamID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.owners[teamID], nil
}

func (s *fakeRefStore) IncrementCounter(ctx context.Context, kind reference.Kind, id string, delta decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := refKey(kind, id)
	if err := s.failure[k]; err != nil {
		return err
	}
	if !s.known[k] {
		return errors.NewNotFoundError("entity not found")
	}
	s.increments++
	s.counters[k] = s.counters[k].Add(delta)
	return nil
}

func (s *fakeRefStore) SetCounter(ctx context.Context, kind reference.Kind, id string, value decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := refKey(kind, id)
	if !s.known[k] {
		return errors.NewNotFoundError("entity not found")
	}
	s.counters[k] = value
	return nil
}

func newTestService() (*Service, *fakeLedger, *fakeRefStore) {
	ledger := newFakeLedger()
	refs := newFakeRefStore()
	refs.register(reference.KindWorker, "W1", "W2")
	refs.register(reference.KindTeam, "T1", "T2")
	refs.register(reference.KindSite, "S1", "S2")
	refs.register(reference.KindCompany, "C1", "C2")
	refs.owners["T1"] = "C1"
	refs.owners["T2"] = "C2"
	svc := NewService(ledger, refs, 2, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return svc, ledger, refs
}

func baseRequest() *CreateReportRequest {
	return &CreateReportRequest{
		Date:   "2025-01-10",
		TeamID: "T1",
		SiteID: "S1",
		WorkerEntries: []WorkerEntry{
			{WorkerID: "W1", WorkUnits: units("1")},
		},
	}
}

func TestCreateCreditsAllFourCounters(t *testing.T) {
	svc, ledger, refs := newTestService()

	r, err := svc.Create(context.Background(), baseRequest())

	require.NoError(t, err)
	assert.NotEmpty(t, r.ID)
	assert.Equal(t, "1", r.TotalWorkUnits.String())
	assert.Len(t, ledger.reports, 1)
	assert.Equal(t, "1", refs.counter(reference.KindWorker, "W1"))
	assert.Equal(t, "1", refs.counter(reference.KindTeam, "T1"))
	assert.Equal(t, "1", refs.counter(reference.KindSite, "S1"))
	assert.Equal(t, "1", refs.counter(reference.KindCompany, "C1"))
}

func TestCreateRejectsInvalidInputBeforeIO(t *testing.T) {
	svc, ledger, refs := newTestService()

	tests := []struct {
		name   string
		mutate func(*CreateReportRequest)
	}{
		{"missing date", func(r *CreateReportRequest) { r.Date = "" }},
		{"missing site", func(r *CreateReportRequest) { r.SiteID = "" }},
		{"negative units", func(r *CreateReportRequest) {
			r.WorkerEntries[0].WorkUnits = decimal.NewFromInt(-1)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := baseRequest()
			tt.mutate(req)

			_, err := svc.Create(context.Background(), req)

			assert.ErrorIs(t, err, errors.NewValidationError(""))
			assert.Empty(t, ledger.reports)
			assert.Zero(t, refs.increments)
		})
	}
}

func TestCreateDerivesTotalsFromEntries(t *testing.T) {
	svc, _, _ := newTestService()
	req := baseRequest()
	req.WorkerEntries = []WorkerEntry{
		{WorkerID: "W1", WorkUnits: units("1"), UnitRate: units("18000")},
		{WorkerID: "W2", WorkUnits: units("0.5"), UnitRate: units("20000")},
	}

	r, err := svc.Create(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, "1.5", r.TotalWorkUnits.String())
	assert.Equal(t, "28000", r.TotalAmount.String())
}

func TestUpdateNetsCounterDifference(t *testing.T) {
	svc, _, refs := newTestService()
	r, err := svc.Create(context.Background(), baseRequest())
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), r.ID, []WorkerEntry{
		{WorkerID: "W1", WorkUnits: units("0.5")},
	})

	require.NoError(t, err)
	assert.Equal(t, "0.5", refs.counter(reference.KindWorker, "W1"))
	assert.Equal(t, "0.5", refs.counter(reference.KindTeam, "T1"))
	assert.Equal(t, "0.5", refs.counter(reference.KindSite, "S1"))
	assert.Equal(t, "0.5", refs.counter(reference.KindCompany, "C1"))
}

func TestUpdateWithIdenticalEntriesIssuesNoCounterWrites(t *testing.T) {
	svc, _, refs := newTestService()
	r, err := svc.Create(context.Background(), baseRequest())
	require.NoError(t, err)
	before := refs.increments

	_, err = svc.Update(context.Background(), r.ID, []WorkerEntry{
		{WorkerID: "W1", WorkUnits: units("1")},
	})

	require.NoError(t, err)
	assert.Equal(t, before, refs.increments)
}

func TestUpdateMissingReport(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.Update(context.Background(), "nope", nil)

	assert.ErrorIs(t, err, errors.NewNotFoundError(""))
}

func TestCreateToleratesUnknownWorker(t *testing.T) {
	svc, _, refs := newTestService()
	req := baseRequest()
	req.WorkerEntries = []WorkerEntry{
		{WorkerID: "not-registered-yet", WorkUnits: units("1")},
	}

	_, err := svc.Create(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, "1", refs.counter(reference.KindTeam, "T1"))
	assert.Equal(t, "1", refs.counter(reference.KindSite, "S1"))
	assert.Equal(t, "1", refs.counter(reference.KindCompany, "C1"))
}

func TestCreateReportsPartialFailure(t *testing.T) {
	svc, ledger, refs := newTestService()
	cause := errors.NewStoreError("throttled", nil)
	refs.failure[refKey(reference.KindTeam, "T1")] = cause

	r, err := svc.Create(context.Background(), baseRequest())

	var partial *reference.PartialFailureError
	require.ErrorAs(t, err, &partial)
	require.Len(t, partial.Failed, 1)
	assert.Equal(t, reference.KindTeam, partial.Failed[0].Kind)
	assert.Equal(t, "T1", partial.Failed[0].ID)
	assert.Equal(t, "1", partial.Failed[0].Delta.String())
	// The ledger write itself succeeded and stays committed.
	require.NotNil(t, r)
	assert.Len(t, ledger.reports, 1)
	// The deltas that could apply, applied.
	assert.Equal(t, "1", refs.counter(reference.KindWorker, "W1"))
	assert.Equal(t, "1", refs.counter(reference.KindCompany, "C1"))
}

func TestCreateBatchMergesDeltas(t *testing.T) {
	svc, ledger, refs := newTestService()
	reqs := []*CreateReportRequest{
		{
			Date: "2025-01-10", TeamID: "T1", SiteID: "S1",
			WorkerEntries: []WorkerEntry{{WorkerID: "W1", WorkUnits: units("1")}},
		},
		{
			Date: "2025-01-10", TeamID: "T1", SiteID: "S2",
			WorkerEntries: []WorkerEntry{{WorkerID: "W1", WorkUnits: units("0.5")}},
		},
	}

	reports, err := svc.CreateBatch(context.Background(), reqs)

	require.NoError(t, err)
	assert.Len(t, reports, 2)
	assert.Len(t, ledger.reports, 2)
	assert.Equal(t, "1.5", refs.counter(reference.KindWorker, "W1"))
	assert.Equal(t, "1.5", refs.counter(reference.KindTeam, "T1"))
	assert.Equal(t, "1", refs.counter(reference.KindSite, "S1"))
	assert.Equal(t, "0.5", refs.counter(reference.KindSite, "S2"))
	assert.Equal(t, "1.5", refs.counter(reference.KindCompany, "C1"))
	// One counter mutation per distinct entity: W1, T1, S1, S2, C1.
	assert.Equal(t, 5, refs.increments)
}

func TestCreateBatchRejectsWholeBatchOnInvalidRecord(t *testing.T) {
	svc, ledger, refs := newTestService()
	reqs := []*CreateReportRequest{
		baseRequest(),
		{Date: "2025-01-10", SiteID: "", TeamID: "T1"},
	}

	_, err := svc.CreateBatch(context.Background(), reqs)

	assert.ErrorIs(t, err, errors.NewValidationError(""))
	assert.Empty(t, ledger.reports)
	assert.Zero(t, refs.increments)
}

func TestOverwriteWithEmptyRecordsRestoresBaseline(t *testing.T) {
	svc, ledger, refs := newTestService()
	_, err := svc.Create(context.Background(), baseRequest())
	require.NoError(t, err)

	_, err = svc.OverwriteForDateAndTeams(context.Background(), "2025-01-10", nil, []string{"T1"})

	require.NoError(t, err)
	assert.Empty(t, ledger.reports)
	assert.Equal(t, "0", refs.counter(reference.KindWorker, "W1"))
	assert.Equal(t, "0", refs.counter(reference.KindTeam, "T1"))
	assert.Equal(t, "0", refs.counter(reference.KindSite, "S1"))
	assert.Equal(t, "0", refs.counter(reference.KindCompany, "C1"))
}

func TestOverwriteLeavesOtherTeamsUntouched(t *testing.T) {
	svc, ledger, refs := newTestService()
	_, err := svc.Create(context.Background(), baseRequest())
	require.NoError(t, err)
	other := &CreateReportRequest{
		Date: "2025-01-10", TeamID: "T2", SiteID: "S2",
		WorkerEntries: []WorkerEntry{{WorkerID: "W2", WorkUnits: units("1")}},
	}
	_, err = svc.Create(context.Background(), other)
	require.NoError(t, err)

	_, err = svc.OverwriteForDateAndTeams(context.Background(), "2025-01-10", nil, []string{"T1"})

	require.NoError(t, err)
	assert.Len(t, ledger.reports, 1)
	assert.Equal(t, "1", refs.counter(reference.KindTeam, "T2"))
	assert.Equal(t, "0", refs.counter(reference.KindTeam, "T1"))
}

func TestOverwriteIsIdempotentOnCounters(t *testing.T) {
	svc, _, refs := newTestService()
	payload := func() []*CreateReportRequest {
		return []*CreateReportRequest{
			{
				Date: "2025-01-10", TeamID: "T1", SiteID: "S1",
				WorkerEntries: []WorkerEntry{
					{WorkerID: "W1", WorkUnits: units("1")},
					{WorkerID: "W2", WorkUnits: units("0.5")},
				},
			},
		}
	}

	_, err := svc.OverwriteForDateAndTeams(context.Background(), "2025-01-10", payload(), []string{"T1"})
	require.NoError(t, err)
	firstIncrements := refs.increments

	_, err = svc.OverwriteForDateAndTeams(context.Background(), "2025-01-10", payload(), []string{"T1"})
	require.NoError(t, err)

	// The second call's delete removed exactly what the first inserted:
	// net delta zero, no counter writes at all.
	assert.Equal(t, firstIncrements, refs.increments)
	assert.Equal(t, "1", refs.counter(reference.KindWorker, "W1"))
	assert.Equal(t, "0.5", refs.counter(reference.KindWorker, "W2"))
	assert.Equal(t, "1.5", refs.counter(reference.KindTeam, "T1"))
	assert.Equal(t, "1.5", refs.counter(reference.KindCompany, "C1"))
}

func TestOverwriteRejectsRecordOutsideTeamScope(t *testing.T) {
	// A record inserted outside the delete scope could never be removed
	// by a repeat call: resubmitting the same payload would duplicate
	// the report and double-count every counter.
	svc, ledger, refs := newTestService()
	outside := &CreateReportRequest{
		Date: "2025-01-10", TeamID: "T2", SiteID: "S2",
		WorkerEntries: []WorkerEntry{{WorkerID: "W2", WorkUnits: units("1")}},
	}

	_, err := svc.OverwriteForDateAndTeams(context.Background(), "2025-01-10", []*CreateReportRequest{outside}, []string{"T1"})

	assert.ErrorIs(t, err, errors.NewValidationError(""))
	assert.Empty(t, ledger.reports)
	assert.Zero(t, refs.increments)
}

func TestOverwriteRejectsUnassignedTeamOutsideScope(t *testing.T) {
	svc, _, _ := newTestService()
	unassigned := &CreateReportRequest{
		Date: "2025-01-10", SiteID: "S1",
		WorkerEntries: []WorkerEntry{{WorkerID: "W1", WorkUnits: units("1")}},
	}

	_, err := svc.OverwriteForDateAndTeams(context.Background(), "2025-01-10", []*CreateReportRequest{unassigned}, []string{"T1"})
	assert.ErrorIs(t, err, errors.NewValidationError(""))

	// The empty team is a valid scope member when listed explicitly.
	reports, err := svc.OverwriteForDateAndTeams(context.Background(), "2025-01-10", []*CreateReportRequest{unassigned}, []string{"T1", ""})
	require.NoError(t, err)
	assert.Len(t, reports, 1)
}

func TestOverwriteNetMatchesNaiveDecrementIncrement(t *testing.T) {
	// The diff-and-net path must be observably equivalent to deleting
	// via decrement and inserting via increment as two separate steps.
	svc, _, refs := newTestService()
	_, err := svc.Create(context.Background(), baseRequest())
	require.NoError(t, err)

	newEntries := []WorkerEntry{
		{WorkerID: "W1", WorkUnits: units("0.5")},
		{WorkerID: "W2", WorkUnits: units("2")},
	}

	// Naive two-step path on an independent store.
	naive := newFakeRefStore()
	naive.register(reference.KindWorker, "W1", "W2")
	naive.register(reference.KindTeam, "T1")
	naive.register(reference.KindSite, "S1")
	naive.register(reference.KindCompany, "C1")
	naive.owners["T1"] = "C1"
	seed := Reconcile(nil, baseRequest().WorkerEntries, "T1", "S1", "C1")
	require.NoError(t, reference.ApplyDeltas(context.Background(), naive, seed, 1, slog.New(slog.NewTextHandler(io.Discard, nil))))
	dec := Reconcile(baseRequest().WorkerEntries, nil, "T1", "S1", "C1")
	require.NoError(t, reference.ApplyDeltas(context.Background(), naive, dec, 1, slog.New(slog.NewTextHandler(io.Discard, nil))))
	inc := Reconcile(nil, newEntries, "T1", "S1", "C1")
	require.NoError(t, reference.ApplyDeltas(context.Background(), naive, inc, 1, slog.New(slog.NewTextHandler(io.Discard, nil))))

	_, err = svc.OverwriteForDateAndTeams(context.Background(), "2025-01-10", []*CreateReportRequest{
		{Date: "2025-01-10", TeamID: "T1", SiteID: "S1", WorkerEntries: newEntries},
	}, []string{"T1"})
	require.NoError(t, err)

	for _, kind := range reference.Kinds {
		for _, id := range []string{"W1", "W2", "T1", "S1", "C1"} {
			assert.Equal(t, naive.counter(kind, id), refs.counter(kind, id),
				"counter mismatch for %s %s", kind, id)
		}
	}
}

func TestOverwriteForcesRecordDate(t *testing.T) {
	svc, ledger, _ := newTestService()
	req := baseRequest()
	req.Date = "2024-12-31" // payload date differs from the overwrite date

	_, err := svc.OverwriteForDateAndTeams(context.Background(), "2025-01-10", []*CreateReportRequest{req}, []string{"T1"})

	require.NoError(t, err)
	for _, r := range ledger.reports {
		assert.Equal(t, "2025-01-10", r.Date)
	}
}

func TestOverwriteRequiresDate(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.OverwriteForDateAndTeams(context.Background(), "", nil, []string{"T1"})

	assert.ErrorIs(t, err, errors.NewValidationError(""))
}

func TestRemoveWorkerFromReport(t *testing.T) {
	svc, _, refs := newTestService()
	req := baseRequest()
	req.WorkerEntries = []WorkerEntry{
		{WorkerID: "W1", WorkUnits: units("1")},
		{WorkerID: "W2", WorkUnits: units("0.5")},
	}
	r, err := svc.Create(context.Background(), req)
	require.NoError(t, err)

	updated, err := svc.RemoveWorkerFromReport(context.Background(), r.ID, "W2")

	require.NoError(t, err)
	assert.Len(t, updated.WorkerEntries, 1)
	assert.Equal(t, "1", updated.TotalWorkUnits.String())
	assert.Equal(t, "0", refs.counter(reference.KindWorker, "W2"))
	assert.Equal(t, "1", refs.counter(reference.KindTeam, "T1"))
}

func TestRemoveWorkerNotInReport(t *testing.T) {
	svc, _, _ := newTestService()
	r, err := svc.Create(context.Background(), baseRequest())
	require.NoError(t, err)

	_, err = svc.RemoveWorkerFromReport(context.Background(), r.ID, "W2")

	assert.ErrorIs(t, err, errors.NewNotFoundError(""))
}

func TestUpsertWorkerCreatesMissingReport(t *testing.T) {
	svc, ledger, refs := newTestService()

	r, err := svc.UpsertWorkerInReport(context.Background(), "2025-01-10", "T1", "S1",
		WorkerEntry{WorkerID: "W1", WorkUnits: units("1")})

	require.NoError(t, err)
	assert.NotEmpty(t, r.ID)
	assert.Len(t, ledger.reports, 1)
	assert.Equal(t, "1", refs.counter(reference.KindTeam, "T1"))
}

func TestUpsertWorkerReplacesExistingEntry(t *testing.T) {
	svc, ledger, refs := newTestService()
	_, err := svc.Create(context.Background(), baseRequest())
	require.NoError(t, err)

	r, err := svc.UpsertWorkerInReport(context.Background(), "2025-01-10", "T1", "S1",
		WorkerEntry{WorkerID: "W1", WorkUnits: units("0.5")})

	require.NoError(t, err)
	assert.Len(t, ledger.reports, 1)
	assert.Len(t, r.WorkerEntries, 1)
	assert.Equal(t, "0.5", refs.counter(reference.KindWorker, "W1"))
	assert.Equal(t, "0.5", refs.counter(reference.KindTeam, "T1"))
}

func TestUpsertWorkerAppendsNewEntry(t *testing.T) {
	svc, _, refs := newTestService()
	_, err := svc.Create(context.Background(), baseRequest())
	require.NoError(t, err)

	r, err := svc.UpsertWorkerInReport(context.Background(), "2025-01-10", "T1", "S1",
		WorkerEntry{WorkerID: "W2", WorkUnits: units("0.5")})

	require.NoError(t, err)
	assert.Len(t, r.WorkerEntries, 2)
	assert.Equal(t, "1.5", r.TotalWorkUnits.String())
	assert.Equal(t, "0.5", refs.counter(reference.KindWorker, "W2"))
	assert.Equal(t, "1.5", refs.counter(reference.KindTeam, "T1"))
}

func TestRecomputeFromLedgerRepairsDrift(t *testing.T) {
	svc, _, refs := newTestService()
	_, err := svc.Create(context.Background(), baseRequest())
	require.NoError(t, err)

	// Simulate drifted counters.
	refs.mu.Lock()
	refs.counters[refKey(reference.KindTeam, "T1")] = units("42")
	refs.counters[refKey(reference.KindCompany, "C2")] = units("7")
	refs.mu.Unlock()

	err = svc.RecomputeFromLedger(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "1", refs.counter(reference.KindTeam, "T1"))
	assert.Equal(t, "1", refs.counter(reference.KindWorker, "W1"))
	// Untouched entities reset to their true value: zero.
	assert.Equal(t, "0", refs.counter(reference.KindCompany, "C2"))
	assert.Equal(t, "0", refs.counter(reference.KindWorker, "W2"))
}

func TestRecomputeSumsWholeLedger(t *testing.T) {
	// Counters are lifetime cumulatives: reports from every date must
	// contribute, not just a recent window.
	svc, _, refs := newTestService()
	_, err := svc.Create(context.Background(), baseRequest())
	require.NoError(t, err)
	later := baseRequest()
	later.Date = "2025-02-10"
	_, err = svc.Create(context.Background(), later)
	require.NoError(t, err)

	refs.mu.Lock()
	refs.counters[refKey(reference.KindWorker, "W1")] = units("99")
	refs.mu.Unlock()

	err = svc.RecomputeFromLedger(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "2", refs.counter(reference.KindWorker, "W1"))
	assert.Equal(t, "2", refs.counter(reference.KindTeam, "T1"))
	assert.Equal(t, "2", refs.counter(reference.KindCompany, "C1"))
}
