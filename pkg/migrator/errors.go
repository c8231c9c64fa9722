package migrator

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateVersion is returned when two units share a version.
	ErrDuplicateVersion = errors.New("schemaward/migrator: duplicate unit version")

	// ErrInvalidUnit is returned for units without a valid version, a name,
	// or anything to apply.
	ErrInvalidUnit = errors.New("schemaward/migrator: invalid unit")

	// ErrIrreversible is returned by a strict Down that reaches a unit whose
	// reversal is a documented no-op.
	ErrIrreversible = errors.New("schemaward/migrator: unit is irreversible")

	// ErrUnknownVersion is returned when a recorded version has no
	// registered unit and the operation needs one.
	ErrUnknownVersion = errors.New("schemaward/migrator: no unit registered for version")

	// ErrReadOnly is returned when a plan session is asked to execute DDL.
	ErrReadOnly = errors.New("schemaward/migrator: session is read-only")

	// ErrSingleConnectionPool is returned when an advisory lock is requested
	// on a pool capped at one connection. The lock pins that connection and
	// the unit transaction would wait for it forever.
	ErrSingleConnectionPool = errors.New("schemaward/migrator: advisory lock needs a pool of at least two connections")
)

// Direction is the way a unit is being applied.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// UnitError reports the unit that aborted a run. The run stops at the first
// failing unit; earlier units stay applied and the failing unit's
// transaction is rolled back.
type UnitError struct {
	Version   Version
	Name      string
	Direction Direction
	Err       error
}

func (e *UnitError) Error() string {
	return fmt.Sprintf("migration %s_%s %s: %v", e.Version, e.Name, e.Direction, e.Err)
}

func (e *UnitError) Unwrap() error {
	return e.Err
}

// IsIrreversibleErr returns true if err is or wraps ErrIrreversible.
func IsIrreversibleErr(err error) bool {
	return errors.Is(err, ErrIrreversible)
}

// AsUnitError returns the UnitError in err's chain, if any.
func AsUnitError(err error) (*UnitError, bool) {
	var ue *UnitError
	if errors.As(err, &ue) {
		return ue, true
	}
	return nil, false
}
