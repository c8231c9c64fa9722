package catalog

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Capabilities describes which DDL forms the target engine accepts.
// Migration units consult it to skip operations the lesser engine cannot
// express instead of failing.
type Capabilities struct {
	Dialect Dialect

	// Version is the engine's human-readable version string.
	Version string
	// VersionNum is server_version_num for PostgreSQL (e.g. 160002) and
	// MAJOR*1000000 + MINOR*1000 + PATCH for SQLite (e.g. 3046000).
	VersionNum int

	PartialIndexes       bool
	ExpressionIndexes    bool
	AddColumnIfNotExists bool
	// AlterColumn covers SET/DROP DEFAULT and SET NOT NULL on existing columns.
	AlterColumn   bool
	AddConstraint bool
	RenameColumn  bool

	// NativeUUID means gen_random_uuid() is built in.
	NativeUUID bool
	// UUIDExtension means gen_random_uuid() needs the pgcrypto extension.
	UUIDExtension bool

	TransactionalDDL bool
	AdvisoryLocks    bool
}

// UUIDDefaults reports whether a column default can generate UUIDs.
func (c Capabilities) UUIDDefaults() bool {
	return c.NativeUUID || c.UUIDExtension
}

func (c Capabilities) String() string {
	return fmt.Sprintf("%s %s", c.Dialect, c.Version)
}

// DetectCapabilities identifies the engine behind q by asking it for its
// version. PostgreSQL is tried first so that a failed probe never aborts a
// PostgreSQL transaction; SQLite does not mind a failed statement.
func DetectCapabilities(ctx context.Context, q Querier) (Capabilities, error) {
	var num string
	if err := q.QueryRowContext(ctx, `SELECT current_setting('server_version_num')`).Scan(&num); err == nil {
		n, err := strconv.Atoi(strings.TrimSpace(num))
		if err != nil {
			return Capabilities{}, fmt.Errorf("parsing server_version_num %q: %w", num, err)
		}
		var version string
		if err := q.QueryRowContext(ctx, `SHOW server_version`).Scan(&version); err != nil {
			return Capabilities{}, fmt.Errorf("reading server_version: %w", err)
		}
		return PostgresCapabilities(n, version), nil
	}

	var version string
	if err := q.QueryRowContext(ctx, `SELECT sqlite_version()`).Scan(&version); err == nil {
		n, err := parseSQLiteVersion(version)
		if err != nil {
			return Capabilities{}, err
		}
		return SQLiteCapabilities(n, version), nil
	}

	return Capabilities{}, ErrUnknownEngine
}

// PostgresCapabilities returns the feature set of a PostgreSQL server with
// the given server_version_num.
func PostgresCapabilities(versionNum int, version string) Capabilities {
	return Capabilities{
		Dialect:              Postgres,
		Version:              version,
		VersionNum:           versionNum,
		PartialIndexes:       true,
		ExpressionIndexes:    true,
		AddColumnIfNotExists: versionNum >= 90600,
		AlterColumn:          true,
		AddConstraint:        true,
		RenameColumn:         true,
		NativeUUID:           versionNum >= 130000,
		UUIDExtension:        versionNum < 130000,
		TransactionalDDL:     true,
		AdvisoryLocks:        true,
	}
}

// SQLiteCapabilities returns the feature set of an SQLite library with the
// given encoded version number.
func SQLiteCapabilities(versionNum int, version string) Capabilities {
	return Capabilities{
		Dialect:           SQLite,
		Version:           version,
		VersionNum:        versionNum,
		PartialIndexes:    versionNum >= 3008000,
		ExpressionIndexes: versionNum >= 3009000,
		RenameColumn:      versionNum >= 3025000,
		TransactionalDDL:  true,
	}
}

func parseSQLiteVersion(v string) (int, error) {
	parts := strings.Split(strings.TrimSpace(v), ".")
	if len(parts) < 2 {
		return 0, fmt.Errorf("parsing sqlite version %q", v)
	}
	n := 0
	for i := 0; i < 3; i++ {
		part := 0
		if i < len(parts) {
			p, err := strconv.Atoi(parts[i])
			if err != nil {
				return 0, fmt.Errorf("parsing sqlite version %q: %w", v, err)
			}
			part = p
		}
		n = n*1000 + part
	}
	return n, nil
}
