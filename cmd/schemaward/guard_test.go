package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/pthm/schemaward/internal/cli"
	"github.com/pthm/schemaward/pkg/guard"
)

var guardTestdata = filepath.Join("..", "..", "pkg", "guard", "testdata")

// runGuardCommand executes the guard command against dir with captured
// output streams and restores the package globals afterwards.
func runGuardCommand(t *testing.T, dir string, quietMode bool) (stdout, stderr string, err error) {
	t.Helper()

	prevCfg, prevDir, prevLog, prevQuiet := cfg, guardDir, log, quiet
	t.Cleanup(func() {
		cfg, guardDir, log, quiet = prevCfg, prevDir, prevLog, prevQuiet
		guardCmd.SetOut(nil)
		guardCmd.SetErr(nil)
	})
	cfg = &cli.Config{}
	guardDir = dir
	log = zaptest.NewLogger(t)
	quiet = quietMode

	var out, errOut bytes.Buffer
	guardCmd.SetOut(&out)
	guardCmd.SetErr(&errOut)

	err = guardCmd.RunE(guardCmd, nil)
	return out.String(), errOut.String(), err
}

func TestGuardCommand_Violations(t *testing.T) {
	dir := filepath.Join(guardTestdata, "dirty")
	stdout, stderr, err := runGuardCommand(t, dir, false)

	var exitErr *cli.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, cli.ExitGeneral, exitErr.Code)
	assert.Empty(t, exitErr.Message)

	assert.Empty(t, stdout)
	for _, want := range []string{
		filepath.Join(dir, "1684000000001-AddTenantFk.ts") + ":9: [" + guard.RuleFKPluralTenants + "]",
		filepath.Join(dir, "1684000000002-BillingAnchor.js") + ":4: [" + guard.RuleBillingAnchorUnquotedCheck + "]",
		filepath.Join(dir, "nested", "both.ts") + ":1: [" + guard.RuleFKPluralTenants + "]",
		filepath.Join(dir, "nested", "both.ts") + ":3: [" + guard.RuleBillingAnchorUnquotedCheck + "]",
		filepath.Join(dir, "nested", "publiccode.sql") + ":1: [" + guard.RuleMergeConflictMarker + "]",
		"Migration guard failed: 5 violation(s) in 4 files checked.",
	} {
		assert.Contains(t, stderr, want)
	}
}

func TestGuardCommand_Clean(t *testing.T) {
	stdout, stderr, err := runGuardCommand(t, filepath.Join(guardTestdata, "clean"), false)
	require.NoError(t, err)

	assert.Equal(t, "Migration guard passed: 2 files checked, no violations.\n", stdout)
	assert.Empty(t, stderr)
}

func TestGuardCommand_QuietClean(t *testing.T) {
	stdout, stderr, err := runGuardCommand(t, filepath.Join(guardTestdata, "clean"), true)
	require.NoError(t, err)

	assert.Empty(t, stdout)
	assert.Empty(t, stderr)
}

func TestGuardCommand_QuietStillReportsViolations(t *testing.T) {
	stdout, stderr, err := runGuardCommand(t, filepath.Join(guardTestdata, "dirty"), true)

	var exitErr *cli.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, cli.ExitGeneral, exitErr.Code)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "Migration guard failed: 5 violation(s) in 4 files checked.")
}

func TestGuardCommand_MissingDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "absent")
	_, err := os.Stat(dir)
	require.ErrorIs(t, err, os.ErrNotExist)

	stdout, stderr, err := runGuardCommand(t, dir, false)

	var exitErr *cli.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, cli.ExitConfig, exitErr.Code)
	assert.Empty(t, stdout)
	assert.Empty(t, stderr)
}
