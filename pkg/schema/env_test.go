package schema

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	_ "modernc.org/sqlite"

	"github.com/pthm/schemaward/pkg/catalog"
)

// testEnv is a minimal Env over a single SQLite connection.
type testEnv struct {
	db   *sql.DB
	cat  *catalog.Catalog
	caps catalog.Capabilities
	log  *zap.Logger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "schema.db"))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	caps, err := catalog.DetectCapabilities(ctx, db)
	require.NoError(t, err)
	require.Equal(t, catalog.SQLite, caps.Dialect)

	cat, err := catalog.New(catalog.SQLite, db)
	require.NoError(t, err)

	return &testEnv{db: db, cat: cat, caps: caps, log: zaptest.NewLogger(t)}
}

func (e *testEnv) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return e.db.QueryContext(ctx, query, args...)
}

func (e *testEnv) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return e.db.QueryRowContext(ctx, query, args...)
}

func (e *testEnv) Exec(ctx context.Context, query string, args ...any) error {
	_, err := e.db.ExecContext(ctx, query, args...)
	return err
}

func (e *testEnv) ExecOptional(ctx context.Context, query string) error {
	if err := e.Exec(ctx, query); err != nil && !catalog.IsMissingObject(err) {
		return err
	}
	return nil
}

func (e *testEnv) Catalog() catalog.Prober            { return e.cat }
func (e *testEnv) Capabilities() catalog.Capabilities { return e.caps }
func (e *testEnv) Logger() *zap.Logger                { return e.log }

func (e *testEnv) mustExec(t *testing.T, query string, args ...any) {
	t.Helper()
	require.NoError(t, e.Exec(context.Background(), query, args...))
}
