package migrator

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/pthm/schemaward/pkg/schema"
)

// UnitFunc is imperative unit code run inside the unit's transaction.
type UnitFunc func(ctx context.Context, s *Session) error

// Unit is one forward-only schema change.
//
// Up is Transitions followed by Up; either may be empty but not both. Both
// must be safe to run against a schema in any state an earlier unit may
// have left, including none at all.
//
// A unit whose reversal would lose data sets Irreversible to the reason and
// leaves Down nil. Reverting it runs no DDL and only forgets that the unit
// was applied; re-applying it later is safe because Up is idempotent.
type Unit struct {
	Version     Version
	Name        string
	Transitions []schema.Transition
	Up          UnitFunc
	Down        UnitFunc

	// Irreversible documents why Down is a no-op.
	Irreversible string
}

// ID returns "<version>_<name>".
func (u *Unit) ID() string {
	return u.Version.String() + "_" + u.Name
}

// Reversible reports whether the unit has a Down action.
func (u *Unit) Reversible() bool {
	return u.Down != nil
}

func (u *Unit) validate() error {
	if err := u.Version.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(u.Name) == "" {
		return fmt.Errorf("%w: %s has no name", ErrInvalidUnit, u.Version)
	}
	if u.Up == nil && len(u.Transitions) == 0 {
		return fmt.Errorf("%w: %s has nothing to apply", ErrInvalidUnit, u.ID())
	}
	if u.Down == nil && strings.TrimSpace(u.Irreversible) == "" {
		return fmt.Errorf("%w: %s has no Down and does not document why", ErrInvalidUnit, u.ID())
	}
	if u.Down != nil && u.Irreversible != "" {
		return fmt.Errorf("%w: %s has a Down but is marked irreversible", ErrInvalidUnit, u.ID())
	}
	return nil
}

// Sequence is the ordered, append-only registry of units. The zero value
// is an empty sequence.
type Sequence struct {
	units map[Version]*Unit
}

// NewSequence returns a sequence holding units. It fails on the first
// invalid or duplicate unit.
func NewSequence(units ...*Unit) (*Sequence, error) {
	s := &Sequence{units: make(map[Version]*Unit, len(units))}
	for _, u := range units {
		if err := s.Register(u); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Register adds a unit to the sequence.
func (s *Sequence) Register(u *Unit) error {
	if u == nil {
		return fmt.Errorf("%w: nil unit", ErrInvalidUnit)
	}
	if err := u.validate(); err != nil {
		return err
	}
	if s.units == nil {
		s.units = make(map[Version]*Unit)
	}
	if prev, ok := s.units[u.Version]; ok {
		return fmt.Errorf("%w: %s and %s", ErrDuplicateVersion, prev.ID(), u.ID())
	}
	s.units[u.Version] = u
	return nil
}

// MustRegister is Register for package-level sequences; it panics on error.
func (s *Sequence) MustRegister(units ...*Unit) *Sequence {
	for _, u := range units {
		if err := s.Register(u); err != nil {
			panic(err)
		}
	}
	return s
}

// Units returns every unit in version order.
func (s *Sequence) Units() []*Unit {
	out := make([]*Unit, 0, len(s.units))
	for _, u := range s.units {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out
}

// Lookup returns the unit registered for v.
func (s *Sequence) Lookup(v Version) (*Unit, bool) {
	u, ok := s.units[v]
	return u, ok
}

// Len returns the number of registered units.
func (s *Sequence) Len() int {
	return len(s.units)
}
