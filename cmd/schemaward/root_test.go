package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pthm/schemaward/internal/cli"
	"github.com/pthm/schemaward/pkg/migrator"
)

func TestResolve(t *testing.T) {
	assert.Equal(t, "flag", resolveString("flag", "config"))
	assert.Equal(t, "config", resolveString("", "config"))
	assert.Empty(t, resolveString("", ""))

	assert.True(t, resolveBool(false, true))
	assert.False(t, resolveBool(false, false))

	assert.Equal(t, []string{"ts"}, resolveStrings(nil, []string{"ts"}, []string{"sql"}))
	assert.Nil(t, resolveStrings(nil, []string{}))
}

func TestMigrationError(t *testing.T) {
	unitErr := &migrator.UnitError{
		Version:   migrator.Version(20230611093000),
		Name:      "rescue_product_orders_tenant",
		Direction: migrator.DirectionUp,
		Err:       assert.AnError,
	}

	err := migrationError("migration failed", unitErr)
	var exitErr *cli.ExitError
	assert.ErrorAs(t, err, &exitErr)
	assert.Equal(t, cli.ExitMigration, exitErr.Code)
	assert.Contains(t, exitErr.Message, "20230611093000_rescue_product_orders_tenant")
	assert.ErrorIs(t, err, assert.AnError)

	connErr := cli.DBConnectError("connecting to database", assert.AnError)
	assert.Same(t, connErr, migrationError("migration failed", connErr))

	err = migrationError("migration failed", assert.AnError)
	assert.ErrorAs(t, err, &exitErr)
	assert.Equal(t, cli.ExitMigration, exitErr.Code)
}

func TestCommandTree(t *testing.T) {
	for _, path := range [][]string{
		{"guard"},
		{"migrate"},
		{"migrate", "up"},
		{"migrate", "down"},
		{"status"},
		{"plan"},
		{"doctor"},
		{"maintenance", "on"},
		{"maintenance", "off"},
		{"maintenance", "status"},
		{"config", "show"},
		{"version"},
	} {
		cmd, _, err := rootCmd.Find(path)
		assert.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}
