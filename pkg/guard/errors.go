package guard

import "errors"

var (
	// ErrViolations is wrapped by Report.Err when any rule matched.
	ErrViolations = errors.New("schemaward/guard: migration guard found violations")

	// ErrInvalidRule is returned for rules that cannot be compiled.
	ErrInvalidRule = errors.New("schemaward/guard: invalid rule")
)

// IsViolationsErr returns true if err is or wraps ErrViolations.
func IsViolationsErr(err error) bool {
	return errors.Is(err, ErrViolations)
}
