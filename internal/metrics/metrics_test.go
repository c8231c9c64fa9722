package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm/schemaward/pkg/guard"
)

func TestObserveGuard(t *testing.T) {
	r := New()
	rules := guard.DefaultRules()

	r.ObserveGuard(rules, &guard.Report{
		Files: 3,
		Violations: []guard.Violation{
			{File: "a.ts", Line: 1, RuleID: guard.RuleFKPluralTenants},
			{File: "b.ts", Line: 4, RuleID: guard.RuleFKPluralTenants},
		},
	})

	assert.InDelta(t, 3, promtestutil.ToFloat64(r.guardFiles), 0)
	assert.InDelta(t, 2, promtestutil.ToFloat64(r.guardViolations.WithLabelValues(guard.RuleFKPluralTenants)), 0)
	assert.InDelta(t, 0, promtestutil.ToFloat64(r.guardViolations.WithLabelValues(guard.RuleMergeConflictMarker)), 0)

	r.ObserveGuard(rules, &guard.Report{Files: 3})
	assert.InDelta(t, 0, promtestutil.ToFloat64(r.guardViolations.WithLabelValues(guard.RuleFKPluralTenants)), 0)
}

func TestWriteTextfile(t *testing.T) {
	r := New()
	r.MarkRun("guard", nil)
	r.MarkRun("migrate", errors.New("boom"))
	require.NotNil(t, r.Migrator())

	path := filepath.Join(t.TempDir(), "schemaward.prom")
	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, `schemaward_last_run_timestamp_seconds{command="guard",outcome="success"}`)
	assert.Contains(t, out, `schemaward_last_run_timestamp_seconds{command="migrate",outcome="failure"}`)
	assert.Contains(t, out, "schemaward_guard_files_checked 0")

	err = r.WriteTextfile(filepath.Join(t.TempDir(), "missing", "x.prom"))
	assert.Error(t, err)
}
