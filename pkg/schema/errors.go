package schema

import "errors"

var (
	// ErrUnsupported is returned when the engine cannot express or enforce
	// a schema requirement. Building blocks skip such operations; invariant
	// checks report them so callers can downgrade the result to a warning.
	ErrUnsupported = errors.New("schemaward/schema: not supported by this engine")

	// ErrMissingTable is returned when an operation needs a table that a
	// preceding transition should have created.
	ErrMissingTable = errors.New("schemaward/schema: table does not exist")

	// ErrMissingColumn is returned when an operation needs a column that a
	// preceding transition should have created.
	ErrMissingColumn = errors.New("schemaward/schema: column does not exist")

	// ErrInvariantViolated is returned by invariant checks that find the
	// schema out of its intended shape.
	ErrInvariantViolated = errors.New("schemaward/schema: invariant violated")
)

// IsUnsupportedErr returns true if err is or wraps ErrUnsupported.
func IsUnsupportedErr(err error) bool {
	return errors.Is(err, ErrUnsupported)
}

// IsInvariantViolatedErr returns true if err is or wraps ErrInvariantViolated.
func IsInvariantViolatedErr(err error) bool {
	return errors.Is(err, ErrInvariantViolated)
}
