package migrator

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pthm/schemaward/pkg/catalog"
)

// processLock serialises runs against SQLite databases within this process.
var processLock = NewMutexLock()

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger. The default discards everything.
func WithLogger(log *zap.Logger) Option {
	return func(r *Runner) {
		if log != nil {
			r.log = log
		}
	}
}

// WithTable sets the tracking table name.
func WithTable(name string) Option {
	return func(r *Runner) {
		if name != "" {
			r.table = name
		}
	}
}

// WithLocker overrides the lock chosen from the engine capabilities.
func WithLocker(l Locker) Option {
	return func(r *Runner) { r.locker = l }
}

// WithMetrics records unit outcomes in m.
func WithMetrics(m *Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithClock sets the clock used for applied_at.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// Runner applies a Sequence to one database.
//
// Units are applied strictly one at a time in version order, each in its
// own transaction together with its tracking record. A failing unit rolls
// back and aborts the run; nothing is retried. The whole run holds a lock
// so that concurrent deploys do not interleave.
type Runner struct {
	db      *sql.DB
	seq     *Sequence
	log     *zap.Logger
	table   string
	locker  Locker
	metrics *Metrics
	now     func() time.Time

	capsOnce sync.Once
	caps     catalog.Capabilities
	capsErr  error
}

// NewRunner creates a runner for seq against db.
//
// On PostgreSQL, Up and Down hold an advisory lock on one pooled connection
// and apply each unit in a transaction on another, so db must allow at
// least two open connections. SQLite pools may be capped at one.
func NewRunner(db *sql.DB, seq *Sequence, opts ...Option) *Runner {
	r := &Runner{
		db:    db,
		seq:   seq,
		log:   zap.NewNop(),
		table: DefaultTable,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Capabilities detects the target engine once and caches the result.
func (r *Runner) Capabilities(ctx context.Context) (catalog.Capabilities, error) {
	r.capsOnce.Do(func() {
		r.caps, r.capsErr = catalog.DetectCapabilities(ctx, r.db)
		if r.capsErr == nil {
			r.log.Debug("detected engine", zap.Stringer("engine", r.caps))
		}
	})
	return r.caps, r.capsErr
}

// Store returns the tracking store for the target dialect.
func (r *Runner) Store(ctx context.Context) (*Store, error) {
	caps, err := r.Capabilities(ctx)
	if err != nil {
		return nil, err
	}
	return NewStore(r.table, caps.Dialect), nil
}

func (r *Runner) acquire(ctx context.Context, caps catalog.Capabilities) (func(), error) {
	locker := r.locker
	if locker == nil {
		if caps.AdvisoryLocks {
			locker = NewPostgresLock(r.db)
		} else {
			locker = processLock
		}
	}

	key := "schemaward:" + r.table
	r.log.Debug("acquiring migration lock", zap.String("key", key))
	release, err := locker.Acquire(ctx, key)
	if err != nil {
		return nil, err
	}
	return release, nil
}

// UpOptions controls Up.
type UpOptions struct {
	// Target stops after this version. Zero applies everything.
	Target Version
	// DryRun reports the pending units without applying them.
	DryRun bool
}

// UpResult lists what Up did.
type UpResult struct {
	Applied []*Unit
	// Pending is filled by a dry run.
	Pending []*Unit
}

// Up applies pending units in version order.
func (r *Runner) Up(ctx context.Context, opts UpOptions) (*UpResult, error) {
	caps, err := r.Capabilities(ctx)
	if err != nil {
		return nil, err
	}

	release, err := r.acquire(ctx, caps)
	if err != nil {
		return nil, err
	}
	defer release()

	store := NewStore(r.table, caps.Dialect)
	if !opts.DryRun {
		if err := store.Ensure(ctx, r.db); err != nil {
			return nil, err
		}
	}

	applied, err := store.Applied(ctx, r.db)
	if err != nil {
		return nil, err
	}
	pending := r.pending(applied, opts.Target)

	res := &UpResult{}
	if opts.DryRun {
		res.Pending = pending
		return res, nil
	}

	if len(pending) == 0 {
		r.log.Info("schema is up to date", zap.Int("applied", len(applied)))
		return res, nil
	}

	for _, u := range pending {
		if err := r.up(ctx, caps, store, u); err != nil {
			return res, err
		}
		res.Applied = append(res.Applied, u)
	}
	return res, nil
}

// pending returns unapplied units up to target. A unit older than the
// newest applied one is still pending: histories diverge across
// environments and every unit tolerates running late.
func (r *Runner) pending(applied []Record, target Version) []*Unit {
	done := make(map[Version]bool, len(applied))
	var newest Version
	for _, rec := range applied {
		done[rec.Version] = true
		if rec.Version > newest {
			newest = rec.Version
		}
	}

	var out []*Unit
	for _, u := range r.seq.Units() {
		if done[u.Version] {
			continue
		}
		if target != 0 && u.Version > target {
			break
		}
		if u.Version < newest {
			r.log.Warn("unit is older than the newest applied unit; applying out of order",
				zap.String("unit", u.ID()), zap.Stringer("newest", newest))
		}
		out = append(out, u)
	}
	return out
}

func (r *Runner) up(ctx context.Context, caps catalog.Capabilities, store *Store, u *Unit) error {
	log := r.log.With(zap.String("unit", u.ID()))
	log.Info("applying")

	started := time.Now()
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		s, err := newSession(tx, caps, log, false)
		if err != nil {
			return err
		}
		if len(u.Transitions) > 0 {
			if err := s.Apply(ctx, u.Transitions...); err != nil {
				return err
			}
		}
		if u.Up != nil {
			if err := u.Up(ctx, s); err != nil {
				return err
			}
		}
		return store.Record(ctx, tx, u, r.now())
	})
	r.metrics.observe(DirectionUp, started, err)

	if err != nil {
		log.Error("unit failed; run aborted", zap.Error(err))
		return &UnitError{Version: u.Version, Name: u.Name, Direction: DirectionUp, Err: err}
	}
	log.Info("applied", zap.Duration("took", time.Since(started)))
	return nil
}

// DownOptions controls Down.
type DownOptions struct {
	// Steps is how many of the most recently applied units to revert.
	// Zero means one.
	Steps int
	// Strict fails on an irreversible unit instead of unrecording it.
	Strict bool
}

// DownResult lists what Down did.
type DownResult struct {
	Reverted []*Unit
	// Unrecorded holds irreversible units that were forgotten without
	// running any DDL.
	Unrecorded []*Unit
}

// Down reverts the most recently applied units, newest first.
func (r *Runner) Down(ctx context.Context, opts DownOptions) (*DownResult, error) {
	steps := opts.Steps
	if steps <= 0 {
		steps = 1
	}

	caps, err := r.Capabilities(ctx)
	if err != nil {
		return nil, err
	}

	release, err := r.acquire(ctx, caps)
	if err != nil {
		return nil, err
	}
	defer release()

	store := NewStore(r.table, caps.Dialect)
	applied, err := store.Applied(ctx, r.db)
	if err != nil {
		return nil, err
	}

	res := &DownResult{}
	for i := len(applied) - 1; i >= 0 && steps > 0; i, steps = i-1, steps-1 {
		rec := applied[i]
		u, ok := r.seq.Lookup(rec.Version)
		if !ok {
			return res, &UnitError{Version: rec.Version, Name: rec.Name, Direction: DirectionDown, Err: ErrUnknownVersion}
		}

		if !u.Reversible() {
			if opts.Strict {
				return res, &UnitError{
					Version:   u.Version,
					Name:      u.Name,
					Direction: DirectionDown,
					Err:       fmt.Errorf("%w: %s", ErrIrreversible, u.Irreversible),
				}
			}
			if err := r.unrecord(ctx, store, u); err != nil {
				return res, err
			}
			res.Unrecorded = append(res.Unrecorded, u)
			continue
		}

		if err := r.down(ctx, caps, store, u); err != nil {
			return res, err
		}
		res.Reverted = append(res.Reverted, u)
	}
	return res, nil
}

func (r *Runner) down(ctx context.Context, caps catalog.Capabilities, store *Store, u *Unit) error {
	log := r.log.With(zap.String("unit", u.ID()))
	log.Info("reverting")

	started := time.Now()
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		s, err := newSession(tx, caps, log, false)
		if err != nil {
			return err
		}
		if err := u.Down(ctx, s); err != nil {
			return err
		}
		return store.Remove(ctx, tx, u.Version)
	})
	r.metrics.observe(DirectionDown, started, err)

	if err != nil {
		log.Error("revert failed; run aborted", zap.Error(err))
		return &UnitError{Version: u.Version, Name: u.Name, Direction: DirectionDown, Err: err}
	}
	log.Info("reverted", zap.Duration("took", time.Since(started)))
	return nil
}

// unrecord forgets an irreversible unit. Its Up is idempotent, so the next
// Up re-applies it harmlessly.
func (r *Runner) unrecord(ctx context.Context, store *Store, u *Unit) error {
	r.log.Warn("unit is irreversible; removing its record without reverting",
		zap.String("unit", u.ID()),
		zap.String("reason", u.Irreversible))

	started := time.Now()
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		return store.Remove(ctx, tx, u.Version)
	})
	r.metrics.observe(DirectionDown, started, err)
	if err != nil {
		return &UnitError{Version: u.Version, Name: u.Name, Direction: DirectionDown, Err: err}
	}
	return nil
}

func (r *Runner) inTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing: %w", err)
	}
	return nil
}
