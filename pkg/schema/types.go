package schema

import (
	"fmt"

	"github.com/pthm/schemaward/pkg/catalog"
)

type typeKind int

const (
	kindText typeKind = iota
	kindUUID
	kindVarchar
	kindInteger
	kindBigInt
	kindBoolean
	kindTimestamp
	kindJSON
	kindNumeric
)

// Type is a logical column type rendered per dialect.
type Type struct {
	kind      typeKind
	length    int
	precision int
	scale     int
}

// Logical column types.
var (
	UUID      = Type{kind: kindUUID}
	Text      = Type{kind: kindText}
	Integer   = Type{kind: kindInteger}
	BigInt    = Type{kind: kindBigInt}
	Boolean   = Type{kind: kindBoolean}
	Timestamp = Type{kind: kindTimestamp}
	JSON      = Type{kind: kindJSON}
)

// Varchar returns a length-limited character type.
func Varchar(n int) Type {
	return Type{kind: kindVarchar, length: n}
}

// Numeric returns a fixed-point decimal type.
func Numeric(precision, scale int) Type {
	return Type{kind: kindNumeric, precision: precision, scale: scale}
}

// SQL renders the type for dialect d.
func (t Type) SQL(d catalog.Dialect) string {
	pg := d == catalog.Postgres
	switch t.kind {
	case kindUUID:
		if pg {
			return "uuid"
		}
		return "TEXT"
	case kindVarchar:
		if pg {
			return fmt.Sprintf("varchar(%d)", t.length)
		}
		return fmt.Sprintf("VARCHAR(%d)", t.length)
	case kindInteger:
		if pg {
			return "integer"
		}
		return "INTEGER"
	case kindBigInt:
		if pg {
			return "bigint"
		}
		return "INTEGER"
	case kindBoolean:
		if pg {
			return "boolean"
		}
		return "BOOLEAN"
	case kindTimestamp:
		if pg {
			return "timestamptz"
		}
		return "TIMESTAMP"
	case kindJSON:
		if pg {
			return "jsonb"
		}
		return "TEXT"
	case kindNumeric:
		if pg {
			return fmt.Sprintf("numeric(%d,%d)", t.precision, t.scale)
		}
		return fmt.Sprintf("NUMERIC(%d,%d)", t.precision, t.scale)
	default:
		if pg {
			return "text"
		}
		return "TEXT"
	}
}

type defaultKind int

const (
	defaultNone defaultKind = iota
	defaultUUID
	defaultNow
	defaultLiteral
	defaultExpr
)

// Default is a logical column default. The zero value means no default.
type Default struct {
	kind  defaultKind
	value string
}

// Logical defaults.
var (
	NoDefault   = Default{}
	DefaultUUID = Default{kind: defaultUUID}
	DefaultNow  = Default{kind: defaultNow}
)

// DefaultLiteral is a string constant default, quoted when rendered.
func DefaultLiteral(v string) Default {
	return Default{kind: defaultLiteral, value: v}
}

// DefaultExpr is a raw SQL default expression valid on every dialect,
// such as false or 0.
func DefaultExpr(expr string) Default {
	return Default{kind: defaultExpr, value: expr}
}

// IsZero reports whether d is NoDefault.
func (d Default) IsZero() bool {
	return d.kind == defaultNone
}

// SQL renders the default expression. The boolean is false when the engine
// cannot express it, in which case the column is declared without a default.
func (d Default) SQL(caps catalog.Capabilities) (string, bool) {
	switch d.kind {
	case defaultUUID:
		if !caps.UUIDDefaults() {
			return "", false
		}
		return "gen_random_uuid()", true
	case defaultNow:
		return "CURRENT_TIMESTAMP", true
	case defaultLiteral:
		return catalog.Literal(d.value), true
	case defaultExpr:
		return d.value, true
	default:
		return "", false
	}
}
