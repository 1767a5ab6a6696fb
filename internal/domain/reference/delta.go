package reference

import "github.com/shopspring/decimal"

// Delta is one signed counter change for one reference entity.
type Delta struct {
	Kind  Kind
	ID    string
	Value decimal.Decimal
}

// DeltaSet maps entity ids to signed counter changes, one bucket per
// kind. It is the output of reconciliation: applying every delta in a
// set brings the counters in line with the ledger mutation that
// produced it.
type DeltaSet struct {
	Workers   map[string]decimal.Decimal
	Teams     map[string]decimal.Decimal
	Sites     map[string]decimal.Decimal
	Companies map[string]decimal.Decimal
}

// NewDeltaSet returns an empty delta set.
func NewDeltaSet() DeltaSet {
	return DeltaSet{
		Workers:   make(map[string]decimal.Decimal),
		Teams:     make(map[string]decimal.Decimal),
		Sites:     make(map[string]decimal.Decimal),
		Companies: make(map[string]decimal.Decimal),
	}
}

func (s DeltaSet) bucket(kind Kind) map[string]decimal.Decimal {
	switch kind {
	case KindWorker:
		return s.Workers
	case KindTeam:
		return s.Teams
	case KindSite:
		return s.Sites
	case KindCompany:
		return s.Companies
	}
	return nil
}

// Add accumulates a signed delta for one entity. Empty ids are ignored.
func (s DeltaSet) Add(kind Kind, id string, value decimal.Decimal) {
	if id == "" {
		return
	}
	b := s.bucket(kind)
	b[id] = b[id].Add(value)
}

// Merge folds another delta set into this one, summing per entity id.
func (s DeltaSet) Merge(other DeltaSet) {
	for _, kind := range Kinds {
		for id, v := range other.bucket(kind) {
			s.Add(kind, id, v)
		}
	}
}

// Compact removes zero deltas so that no-op counter writes are never
// issued.
func (s DeltaSet) Compact() {
	for _, kind := range Kinds {
		b := s.bucket(kind)
		for id, v := range b {
			if v.IsZero() {
				delete(b, id)
			}
		}
	}
}

// Get returns the accumulated delta for one entity, zero when absent.
func (s DeltaSet) Get(kind Kind, id string) decimal.Decimal {
	return s.bucket(kind)[id]
}

// Len returns the number of nonzero-or-not deltas held.
func (s DeltaSet) Len() int {
	n := 0
	for _, kind := range Kinds {
		n += len(s.bucket(kind))
	}
	return n
}

// Deltas flattens the set into a slice, compacting first.
func (s DeltaSet) Deltas() []Delta {
	s.Compact()
	out := make([]Delta, 0, s.Len())
	for _, kind := range Kinds {
		for id, v := range s.bucket(kind) {
			out = append(out, Delta{Kind: kind, ID: id, Value: v})
		}
	}
	return out
}
