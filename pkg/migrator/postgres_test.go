package migrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/pthm/schemaward/internal/testutil"
	"github.com/pthm/schemaward/pkg/catalog"
)

func TestRunner_Postgres(t *testing.T) {
	db := testutil.PostgresDB(t)
	ctx := context.Background()
	r, _ := newTestRunner(t, db, createItems(), addItemsCode(), seedItems())

	caps, err := r.Capabilities(ctx)
	require.NoError(t, err)
	require.Equal(t, catalog.Postgres, caps.Dialect)

	res, err := r.Up(ctx, UpOptions{})
	require.NoError(t, err)
	assert.Len(t, res.Applied, 3)

	res, err = r.Up(ctx, UpOptions{})
	require.NoError(t, err)
	assert.Empty(t, res.Applied)

	st, err := r.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, st.Count(StateApplied))
	assert.WithinDuration(t, time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC), st.Units[0].AppliedAt, time.Second)
}

func TestSession_ExecOptional_PostgresKeepsTransaction(t *testing.T) {
	db := testutil.PostgresDB(t)
	ctx := context.Background()

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	defer func() { _ = tx.Rollback() }()

	s, err := newSession(tx, catalog.PostgresCapabilities(180000, "18.0"), zaptest.NewLogger(t), false)
	require.NoError(t, err)

	require.NoError(t, s.Exec(ctx, `CREATE TABLE "kept" ("id" integer)`))
	// Without IF EXISTS the drop fails with undefined_object; the savepoint
	// keeps the transaction usable.
	require.NoError(t, s.ExecOptional(ctx, `DROP INDEX "never_created"`))
	require.NoError(t, s.Exec(ctx, `INSERT INTO "kept" VALUES (1)`))
	require.NoError(t, tx.Commit())

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM "kept"`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestPostgresLock_Serialises(t *testing.T) {
	db := testutil.PostgresDB(t)
	ctx := context.Background()
	lock := NewPostgresLock(db)

	release, err := lock.Acquire(ctx, "schemaward:test")
	require.NoError(t, err)

	var (
		mu    sync.Mutex
		order []string
		wg    sync.WaitGroup
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		rel, err := lock.Acquire(ctx, "schemaward:test")
		if !assert.NoError(t, err) {
			return
		}
		mu.Lock()
		order = append(order, "second")
		mu.Unlock()
		rel()
	}()

	time.Sleep(200 * time.Millisecond)
	mu.Lock()
	order = append(order, "first")
	mu.Unlock()
	release()

	wg.Wait()
	assert.Equal(t, []string{"first", "second"}, order)

	waitCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	release, err = lock.Acquire(ctx, "schemaward:test")
	require.NoError(t, err)
	_, err = lock.Acquire(waitCtx, "schemaward:test")
	assert.Error(t, err, "a held lock blocks until the context expires")
	release()
}

func TestPostgresLock_SingleConnectionPool(t *testing.T) {
	db := testutil.PostgresDB(t)
	db.SetMaxOpenConns(1)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := NewPostgresLock(db).Acquire(ctx, "schemaward:test")
	require.ErrorIs(t, err, ErrSingleConnectionPool)

	r, _ := newTestRunner(t, db, createItems())
	_, err = r.Up(ctx, UpOptions{})
	require.ErrorIs(t, err, ErrSingleConnectionPool, "Up fails instead of waiting on its own lock connection")

	db.SetMaxOpenConns(2)
	res, err := r.Up(ctx, UpOptions{})
	require.NoError(t, err)
	assert.Len(t, res.Applied, 1)
}
