// Package settings persists platform-wide settings such as maintenance
// mode in the platform_settings table.
package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/pthm/schemaward/pkg/catalog"
)

const (
	// Table holds one row per setting.
	Table = "platform_settings"

	// MaintenanceKey is the key of the maintenance-mode flag.
	MaintenanceKey = "maintenance_mode"
)

var (
	// ErrNotFound is returned by Get for an unknown key.
	ErrNotFound = errors.New("schemaward/settings: setting not found")

	// ErrNotInstalled is returned when the settings table does not exist,
	// usually because migrations have not been applied.
	ErrNotInstalled = errors.New("schemaward/settings: settings table does not exist")
)

// IsNotFoundErr returns true if err is or wraps ErrNotFound.
func IsNotFoundErr(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsNotInstalledErr returns true if err is or wraps ErrNotInstalled.
func IsNotInstalledErr(err error) bool {
	return errors.Is(err, ErrNotInstalled)
}

// DB is the database handle the store needs. *sql.DB and *sql.Tx
// implement it.
type DB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Setting is one persisted key/value pair.
type Setting struct {
	Key       string
	Value     string
	UpdatedAt time.Time
}

// Store reads and writes settings.
type Store struct {
	db      DB
	dialect catalog.Dialect
	log     *zap.Logger
	now     func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *Store) {
		if log != nil {
			s.log = log
		}
	}
}

// WithClock overrides the time source used for updatedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New returns a store over db.
func New(db DB, d catalog.Dialect, opts ...Option) *Store {
	s := &Store{db: db, dialect: d, log: zap.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the setting stored under key.
func (s *Store) Get(ctx context.Context, key string) (Setting, error) {
	query, args, err := s.dialect.Builder().
		Select("key", "value", `"updatedAt"`).
		From(catalog.Quote(Table)).
		Where("key = ?", key).
		ToSql()
	if err != nil {
		return Setting{}, err
	}

	var st Setting
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&st.Key, &st.Value, &st.UpdatedAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return Setting{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	case err != nil:
		return Setting{}, s.wrap("reading "+key, err)
	}
	return st, nil
}

// All returns every setting ordered by key.
func (s *Store) All(ctx context.Context) ([]Setting, error) {
	query, args, err := s.dialect.Builder().
		Select("key", "value", `"updatedAt"`).
		From(catalog.Quote(Table)).
		OrderBy("key").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, s.wrap("listing settings", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Setting
	for rows.Next() {
		var st Setting
		if err := rows.Scan(&st.Key, &st.Value, &st.UpdatedAt); err != nil {
			return nil, fmt.Errorf("listing settings: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// Set stores value under key, replacing any previous value.
func (s *Store) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return errors.New("schemaward/settings: empty key")
	}
	query, args, err := s.dialect.Builder().
		Insert(catalog.Quote(Table)).
		Columns("key", "value", `"updatedAt"`).
		Values(key, value, s.now().UTC()).
		Suffix(`ON CONFLICT (key) DO UPDATE SET value = excluded.value, "updatedAt" = excluded."updatedAt"`).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return s.wrap("writing "+key, err)
	}
	s.log.Info("setting updated", zap.String("key", key), zap.String("value", value))
	return nil
}

// Maintenance reports whether maintenance mode is on. An unset flag is off.
func (s *Store) Maintenance(ctx context.Context) (bool, error) {
	st, err := s.Get(ctx, MaintenanceKey)
	if IsNotFoundErr(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	on, err := strconv.ParseBool(st.Value)
	if err != nil {
		return false, fmt.Errorf("schemaward/settings: %s has non-boolean value %q", MaintenanceKey, st.Value)
	}
	return on, nil
}

// SetMaintenance turns maintenance mode on or off.
func (s *Store) SetMaintenance(ctx context.Context, on bool) error {
	return s.Set(ctx, MaintenanceKey, strconv.FormatBool(on))
}

func (s *Store) wrap(op string, err error) error {
	if catalog.IsMissingObject(err) {
		return fmt.Errorf("%w: %s", ErrNotInstalled, op)
	}
	return fmt.Errorf("%s: %w", op, err)
}
