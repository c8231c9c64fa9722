package migrator

import (
	"fmt"
	"strconv"
	"time"
)

// versionLayout is the timestamp format of unit versions.
const versionLayout = "20060102150405"

// Version identifies a migration unit. It is a UTC timestamp written as
// YYYYMMDDhhmmss, so numeric order is authoring order.
type Version int64

// ParseVersion parses and validates a YYYYMMDDhhmmss version.
func ParseVersion(s string) (Version, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: version %q is not a number", ErrInvalidUnit, s)
	}
	v := Version(n)
	if err := v.Validate(); err != nil {
		return 0, err
	}
	return v, nil
}

// Validate reports whether v is a well-formed timestamp.
func (v Version) Validate() error {
	if _, err := time.Parse(versionLayout, v.String()); err != nil {
		return fmt.Errorf("%w: version %d is not a YYYYMMDDhhmmss timestamp", ErrInvalidUnit, int64(v))
	}
	return nil
}

// Time returns the timestamp the version encodes.
func (v Version) Time() time.Time {
	t, _ := time.Parse(versionLayout, v.String())
	return t
}

func (v Version) String() string {
	return strconv.FormatInt(int64(v), 10)
}
