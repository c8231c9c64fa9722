package migrator

import (
	"context"
	"sort"
	"time"

	"github.com/pthm/schemaward/pkg/schema"
)

// UnitState is the tracking state of one version.
type UnitState string

const (
	// StateApplied means the version is recorded and registered.
	StateApplied UnitState = "applied"
	// StatePending means the unit is registered but not recorded.
	StatePending UnitState = "pending"
	// StateMissing means the version is recorded but no unit is registered
	// for it, e.g. a database migrated by a newer build.
	StateMissing UnitState = "missing"
)

// UnitStatus is one row of Status.
type UnitStatus struct {
	Version      Version
	Name         string
	State        UnitState
	AppliedAt    time.Time
	Irreversible bool
}

// Status is the tracking state of every known version.
type Status struct {
	// TrackingTable is false when the tracking table does not exist yet.
	TrackingTable bool
	Units         []UnitStatus
}

// Count returns the number of versions in state.
func (s *Status) Count(state UnitState) int {
	n := 0
	for _, u := range s.Units {
		if u.State == state {
			n++
		}
	}
	return n
}

// UpToDate reports whether nothing is pending.
func (s *Status) UpToDate() bool {
	return s.Count(StatePending) == 0
}

// Status compares the registered sequence with the tracking table.
func (r *Runner) Status(ctx context.Context) (*Status, error) {
	store, err := r.Store(ctx)
	if err != nil {
		return nil, err
	}

	exists, err := store.Exists(ctx, r.db)
	if err != nil {
		return nil, err
	}
	applied, err := store.Applied(ctx, r.db)
	if err != nil {
		return nil, err
	}

	recorded := make(map[Version]Record, len(applied))
	for _, rec := range applied {
		recorded[rec.Version] = rec
	}

	st := &Status{TrackingTable: exists}
	for _, u := range r.seq.Units() {
		us := UnitStatus{Version: u.Version, Name: u.Name, State: StatePending, Irreversible: !u.Reversible()}
		if rec, ok := recorded[u.Version]; ok {
			us.State = StateApplied
			us.AppliedAt = rec.AppliedAt
			delete(recorded, u.Version)
		}
		st.Units = append(st.Units, us)
	}
	for _, rec := range recorded {
		st.Units = append(st.Units, UnitStatus{
			Version:   rec.Version,
			Name:      rec.Name,
			State:     StateMissing,
			AppliedAt: rec.AppliedAt,
		})
	}
	sort.Slice(st.Units, func(i, j int) bool { return st.Units[i].Version < st.Units[j].Version })
	return st, nil
}

// PlanEntry is the assessed state of one pending unit.
type PlanEntry struct {
	Unit    *Unit
	Objects []schema.Assessment
	// Imperative is true when the unit also runs code the plan cannot
	// assess.
	Imperative bool
}

// Plan assesses every pending unit's transitions against the current
// schema without changing anything. Each unit is assessed as if it ran
// now, so later units do not see the effect of earlier pending ones.
func (r *Runner) Plan(ctx context.Context) ([]PlanEntry, error) {
	caps, err := r.Capabilities(ctx)
	if err != nil {
		return nil, err
	}

	store := NewStore(r.table, caps.Dialect)
	applied, err := store.Applied(ctx, r.db)
	if err != nil {
		return nil, err
	}

	s, err := newSession(r.db, caps, r.log, true)
	if err != nil {
		return nil, err
	}

	var plan []PlanEntry
	for _, u := range r.pending(applied, 0) {
		objects, err := schema.Assess(ctx, s, u.Transitions...)
		if err != nil {
			return nil, &UnitError{Version: u.Version, Name: u.Name, Direction: DirectionUp, Err: err}
		}
		plan = append(plan, PlanEntry{Unit: u, Objects: objects, Imperative: u.Up != nil})
	}
	return plan, nil
}
