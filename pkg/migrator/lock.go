package migrator

import (
	"context"
	"database/sql"
	"fmt"
	"hash/fnv"
)

// Locker provides mutual exclusion for migration runs across processes.
type Locker interface {
	// Acquire blocks until the lock for key is held or ctx is done. The
	// returned release function must be called to release the lock.
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// PostgresLock implements Locker with a session-level PostgreSQL advisory
// lock. The lock is taken on a dedicated connection pinned for the whole
// run, because advisory locks belong to the session that took them.
//
// Units run in transactions on a second connection while the lock is held,
// so the pool must allow at least two open connections. Acquire fails with
// ErrSingleConnectionPool when db is limited to one.
type PostgresLock struct {
	db *sql.DB
}

// NewPostgresLock creates a new PostgresLock.
func NewPostgresLock(db *sql.DB) *PostgresLock {
	return &PostgresLock{db: db}
}

// Acquire obtains a PostgreSQL advisory lock keyed by a hash of key.
func (l *PostgresLock) Acquire(ctx context.Context, key string) (func(), error) {
	if l.db.Stats().MaxOpenConnections == 1 {
		return nil, ErrSingleConnectionPool
	}
	lockID := hashLockKey(key)

	conn, err := l.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("pinning connection for advisory lock: %w", err)
	}

	if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_lock($1)`, lockID); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("pg_advisory_lock(%d): %w", lockID, err)
	}

	release := func() {
		_, _ = conn.ExecContext(context.Background(), `SELECT pg_advisory_unlock($1)`, lockID)
		_ = conn.Close()
	}
	return release, nil
}

// MutexLock implements Locker with a process-local lock. SQLite serialises
// writers through its file lock, so a process-local lock is enough to keep
// two runs in one process from interleaving.
type MutexLock struct {
	sem chan struct{}
}

// NewMutexLock creates a new MutexLock.
func NewMutexLock() *MutexLock {
	return &MutexLock{sem: make(chan struct{}, 1)}
}

// Acquire obtains the lock, giving up when ctx is done.
func (l *MutexLock) Acquire(ctx context.Context, _ string) (func(), error) {
	select {
	case l.sem <- struct{}{}:
		return func() { <-l.sem }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("acquire migration lock: %w", ctx.Err())
	}
}

// hashLockKey produces a stable non-negative int64 from key for use with
// pg_advisory_lock.
func hashLockKey(key string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return int64(h.Sum64() & 0x7FFFFFFFFFFFFFFF) //nolint:gosec // intentional truncation for advisory lock key
}
