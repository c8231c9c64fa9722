package guard

import (
	"fmt"
	"regexp"
	"strings"
)

// Rule is a named pattern that must never appear in a migration file.
// Rules are data: adding one means adding a row, not a code path.
type Rule struct {
	// ID is stable across runs and used in reports.
	ID string
	// Pattern is matched against the full text of each file.
	Pattern *regexp.Regexp
	Message string
}

// NewRule compiles a rule from configuration.
func NewRule(id, pattern, message string) (Rule, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Rule{}, fmt.Errorf("%w: empty id", ErrInvalidRule)
	}
	if pattern == "" {
		return Rule{}, fmt.Errorf("%w: %s has an empty pattern", ErrInvalidRule, id)
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return Rule{}, fmt.Errorf("%w: %s: %w", ErrInvalidRule, id, err)
	}
	if message == "" {
		message = "matches forbidden pattern " + pattern
	}
	return Rule{ID: id, Pattern: re, Message: message}, nil
}

func mustRule(id, pattern, message string) Rule {
	r, err := NewRule(id, pattern, message)
	if err != nil {
		panic(err)
	}
	return r
}

// Built-in rule identifiers.
const (
	RuleFKPluralTenants            = "FK_PLURAL_TENANTS"
	RuleBillingAnchorUnquotedCheck = "BILLING_ANCHOR_UNQUOTED_CHECK"
	RuleMergeConflictMarker        = "MERGE_CONFLICT_MARKER"
)

var defaultRules = []Rule{
	mustRule(RuleFKPluralTenants,
		`referencedTableName\s*:\s*['"`+"`"+`]tenants['"`+"`"+`]`,
		`foreign key references table "tenants"; the table is "tenant"`),
	mustRule(RuleBillingAnchorUnquotedCheck,
		`(^|\W)billingAnchor\s+IN\s*\(\s*\\?'(EOM|DOM)\\?'\s*,\s*\\?'(EOM|DOM)\\?'\s*\)`,
		`CHECK on billingAnchor must quote the column ("billingAnchor"); unquoted it folds to billinganchor`),
	mustRule(RuleMergeConflictMarker,
		`(?m)^(<{7}|>{7})(\s|$)`,
		`unresolved merge-conflict marker`),
}

// DefaultRules returns the built-in rule table.
func DefaultRules() []Rule {
	out := make([]Rule, len(defaultRules))
	copy(out, defaultRules)
	return out
}
