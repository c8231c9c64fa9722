// Package doctor provides health checks for a schemaward-managed database.
//
// The doctor command validates that migration sources pass the guard, that
// the tracking table agrees with the registered sequence, and that the
// schema's end-state invariants hold.
//
// Example usage:
//
//	d := doctor.New(db, migrations.Sequence(),
//		doctor.WithGuardDir("migrations"),
//		doctor.WithInvariants(migrations.Invariants()))
//	report, err := d.Run(ctx)
//	if err != nil {
//		log.Fatal(err)
//	}
//	report.Print(os.Stdout, true) // verbose=true
package doctor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/pthm/schemaward/pkg/catalog"
	"github.com/pthm/schemaward/pkg/guard"
	"github.com/pthm/schemaward/pkg/migrator"
	"github.com/pthm/schemaward/pkg/schema"
	"github.com/pthm/schemaward/pkg/settings"
)

// Status represents the result of a health check.
type Status int

const (
	// StatusPass indicates the check passed.
	StatusPass Status = iota
	// StatusWarn indicates a non-critical issue.
	StatusWarn
	// StatusFail indicates a critical issue that will cause failures.
	StatusFail
)

func (s Status) String() string {
	switch s {
	case StatusPass:
		return "pass"
	case StatusWarn:
		return "warn"
	case StatusFail:
		return "fail"
	default:
		return "unknown"
	}
}

var (
	passStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	headingStyle = lipgloss.NewStyle().Bold(true)
	hintStyle    = lipgloss.NewStyle().Faint(true)
)

// Symbol returns a status indicator symbol for terminal output.
func (s Status) Symbol() string {
	switch s {
	case StatusPass:
		return passStyle.Render("✓")
	case StatusWarn:
		return warnStyle.Render("⚠")
	case StatusFail:
		return failStyle.Render("✗")
	default:
		return "?"
	}
}

// CheckResult represents the outcome of a single health check.
type CheckResult struct {
	// Category groups related checks (e.g., "Migration Guard", "Schema Invariants").
	Category string

	// Name is a short identifier for the check.
	Name string

	// Status is the check outcome.
	Status Status

	// Message is a human-readable description of the result.
	Message string

	// Details provides additional information for verbose output.
	Details string

	// FixHint suggests how to resolve issues.
	FixHint string
}

// Report contains all health check results.
type Report struct {
	Checks []CheckResult

	// Summary counts.
	Passed   int
	Warnings int
	Errors   int
}

// AddCheck adds a check result and updates summary counts.
func (r *Report) AddCheck(check CheckResult) {
	r.Checks = append(r.Checks, check)
	switch check.Status {
	case StatusPass:
		r.Passed++
	case StatusWarn:
		r.Warnings++
	case StatusFail:
		r.Errors++
	}
}

// Check returns the first check with the given category and name.
func (r *Report) Check(category, name string) (CheckResult, bool) {
	for _, c := range r.Checks {
		if c.Category == category && c.Name == name {
			return c, true
		}
	}
	return CheckResult{}, false
}

// Print writes the report to the given writer.
func (r *Report) Print(w io.Writer, verbose bool) {
	// Group checks by category
	categories := make(map[string][]CheckResult)
	var categoryOrder []string
	for _, check := range r.Checks {
		if _, exists := categories[check.Category]; !exists {
			categoryOrder = append(categoryOrder, check.Category)
		}
		categories[check.Category] = append(categories[check.Category], check)
	}

	for _, cat := range categoryOrder {
		_, _ = fmt.Fprintf(w, "\n%s\n", headingStyle.Render(cat))
		for _, check := range categories[cat] {
			_, _ = fmt.Fprintf(w, "  %s %s\n", check.Status.Symbol(), check.Message)
			if verbose && check.Details != "" {
				for _, line := range strings.Split(check.Details, "\n") {
					_, _ = fmt.Fprintf(w, "      %s\n", line)
				}
			}
			if check.Status != StatusPass && check.FixHint != "" {
				_, _ = fmt.Fprintf(w, "      %s\n", hintStyle.Render("Fix: "+check.FixHint))
			}
		}
	}

	_, _ = fmt.Fprintf(w, "\nSummary: %d passed, %d warnings, %d errors\n",
		r.Passed, r.Warnings, r.Errors)
}

// HasErrors returns true if any check failed.
func (r *Report) HasErrors() bool {
	return r.Errors > 0
}

// Check categories.
const (
	CategoryGuard      = "Migration Guard"
	CategoryDatabase   = "Database"
	CategoryMigrations = "Migration State"
	CategoryInvariants = "Schema Invariants"
	CategorySettings   = "Platform Settings"
)

// Option configures a Doctor.
type Option func(*Doctor)

// WithGuardDir sets the migration source directory to lint. An empty dir
// skips the guard checks.
func WithGuardDir(dir string) Option {
	return func(d *Doctor) { d.guardDir = dir }
}

// WithGuard sets the guard used to lint the migration sources.
func WithGuard(g *guard.Guard) Option {
	return func(d *Doctor) {
		if g != nil {
			d.guard = g
		}
	}
}

// WithInvariants sets the end-state invariants to verify.
func WithInvariants(invs []schema.Invariant) Option {
	return func(d *Doctor) { d.invariants = invs }
}

// WithTable sets the tracking table name.
func WithTable(table string) Option {
	return func(d *Doctor) {
		if table != "" {
			d.table = table
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(d *Doctor) {
		if log != nil {
			d.log = log
		}
	}
}

// Doctor performs health checks on a migrated database.
type Doctor struct {
	db         *sql.DB
	seq        *migrator.Sequence
	guard      *guard.Guard
	guardDir   string
	invariants []schema.Invariant
	table      string
	log        *zap.Logger

	// Cached data from checks (populated during Run)
	caps catalog.Capabilities
}

// New creates a new Doctor instance.
func New(db *sql.DB, seq *migrator.Sequence, opts ...Option) *Doctor {
	d := &Doctor{
		db:    db,
		seq:   seq,
		guard: guard.New(),
		table: migrator.DefaultTable,
		log:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run executes all health checks and returns a report. Probe errors are
// returned rather than reported: the database could not be inspected.
func (d *Doctor) Run(ctx context.Context) (*Report, error) {
	report := &Report{}

	d.checkGuard(report)

	if err := d.checkDatabase(ctx, report); err != nil {
		return nil, fmt.Errorf("checking database: %w", err)
	}
	if err := d.checkMigrationState(ctx, report); err != nil {
		return nil, fmt.Errorf("checking migration state: %w", err)
	}
	if err := d.checkInvariants(ctx, report); err != nil {
		return nil, fmt.Errorf("checking invariants: %w", err)
	}
	if err := d.checkSettings(ctx, report); err != nil {
		return nil, fmt.Errorf("checking settings: %w", err)
	}

	return report, nil
}

// checkGuard lints the migration sources.
func (d *Doctor) checkGuard(report *Report) {
	if d.guardDir == "" {
		return
	}

	rep, err := d.guard.Scan(d.guardDir)
	if errors.Is(err, fs.ErrNotExist) {
		report.AddCheck(CheckResult{
			Category: CategoryGuard,
			Name:     "sources",
			Status:   StatusWarn,
			Message:  fmt.Sprintf("Migration directory %s not found", d.guardDir),
			FixHint:  "Set guard.dir in schemaward.yaml",
		})
		return
	}
	if err != nil {
		report.AddCheck(CheckResult{
			Category: CategoryGuard,
			Name:     "sources",
			Status:   StatusFail,
			Message:  "Migration sources could not be read",
			Details:  err.Error(),
		})
		return
	}

	if rep.OK() {
		report.AddCheck(CheckResult{
			Category: CategoryGuard,
			Name:     "violations",
			Status:   StatusPass,
			Message:  fmt.Sprintf("%d files checked, no violations", rep.Files),
		})
		return
	}

	lines := make([]string, len(rep.Violations))
	for i, v := range rep.Violations {
		lines[i] = v.Error()
	}
	report.AddCheck(CheckResult{
		Category: CategoryGuard,
		Name:     "violations",
		Status:   StatusFail,
		Message:  fmt.Sprintf("%d violation(s) in %d files checked", len(rep.Violations), rep.Files),
		Details:  strings.Join(lines, "\n"),
		FixHint:  "Run 'schemaward guard' and fix every listed file",
	})
}

// checkDatabase detects the engine and reports what it cannot express.
func (d *Doctor) checkDatabase(ctx context.Context, report *Report) error {
	caps, err := catalog.DetectCapabilities(ctx, d.db)
	if err != nil {
		return err
	}
	d.caps = caps

	report.AddCheck(CheckResult{
		Category: CategoryDatabase,
		Name:     "engine",
		Status:   StatusPass,
		Message:  fmt.Sprintf("Connected to %s", caps),
	})

	var missing []string
	if !caps.AlterColumn {
		missing = append(missing, "ALTER COLUMN (NOT NULL and defaults are skipped)")
	}
	if !caps.AddConstraint {
		missing = append(missing, "ADD CONSTRAINT (checks exist only on tables created with them)")
	}
	if !caps.UUIDDefaults() {
		missing = append(missing, "UUID defaults (ids must be supplied by the application)")
	}
	if !caps.PartialIndexes {
		missing = append(missing, "partial indexes")
	}
	if len(missing) > 0 {
		report.AddCheck(CheckResult{
			Category: CategoryDatabase,
			Name:     "capabilities",
			Status:   StatusWarn,
			Message:  fmt.Sprintf("Engine lacks %d feature(s) some units skip", len(missing)),
			Details:  strings.Join(missing, "\n"),
			FixHint:  "Use PostgreSQL for any environment that serves traffic",
		})
	}
	return nil
}

// checkMigrationState compares the tracking table with the sequence.
func (d *Doctor) checkMigrationState(ctx context.Context, report *Report) error {
	st, err := migrator.NewRunner(d.db, d.seq, migrator.WithTable(d.table), migrator.WithLogger(d.log)).Status(ctx)
	if err != nil {
		return err
	}

	applied := st.Count(migrator.StateApplied)
	if applied == 0 && st.Count(migrator.StateMissing) == 0 {
		report.AddCheck(CheckResult{
			Category: CategoryMigrations,
			Name:     "tracking",
			Status:   StatusFail,
			Message:  fmt.Sprintf("No units recorded in %s", d.table),
			FixHint:  "Run 'schemaward migrate'",
		})
	} else {
		report.AddCheck(CheckResult{
			Category: CategoryMigrations,
			Name:     "tracking",
			Status:   StatusPass,
			Message:  fmt.Sprintf("%d of %d units applied", applied, d.seq.Len()),
		})
	}

	if pending := unitsIn(st, migrator.StatePending); len(pending) > 0 {
		report.AddCheck(CheckResult{
			Category: CategoryMigrations,
			Name:     "pending",
			Status:   StatusWarn,
			Message:  fmt.Sprintf("%d unit(s) pending", len(pending)),
			Details:  strings.Join(pending, "\n"),
			FixHint:  "Run 'schemaward migrate'",
		})
	} else if applied > 0 {
		report.AddCheck(CheckResult{
			Category: CategoryMigrations,
			Name:     "pending",
			Status:   StatusPass,
			Message:  "Schema is up to date",
		})
	}

	if missing := unitsIn(st, migrator.StateMissing); len(missing) > 0 {
		report.AddCheck(CheckResult{
			Category: CategoryMigrations,
			Name:     "missing",
			Status:   StatusWarn,
			Message:  fmt.Sprintf("%d recorded unit(s) are not in this build", len(missing)),
			Details:  strings.Join(missing, "\n"),
			FixHint:  "Deploy a build that includes them; history is append-only",
		})
	}
	return nil
}

func unitsIn(st *migrator.Status, state migrator.UnitState) []string {
	var out []string
	for _, u := range st.Units {
		if u.State == state {
			out = append(out, u.Version.String()+"_"+u.Name)
		}
	}
	return out
}

// checkInvariants verifies the schema end state.
func (d *Doctor) checkInvariants(ctx context.Context, report *Report) error {
	if len(d.invariants) == 0 {
		return nil
	}

	cat, err := catalog.New(d.caps.Dialect, d.db)
	if err != nil {
		return err
	}
	results, err := schema.CheckAll(ctx, cat, d.caps, d.invariants)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(d.invariants))
	descriptions := make(map[string]string, len(d.invariants))
	for _, inv := range d.invariants {
		names = append(names, inv.Name)
		descriptions[inv.Name] = inv.Description
	}
	sort.Strings(names)

	for _, name := range names {
		res := results[name]
		check := CheckResult{
			Category: CategoryInvariants,
			Name:     name,
			Message:  name,
			Details:  descriptions[name],
		}
		switch {
		case res == nil:
			check.Status = StatusPass
		case schema.IsUnsupportedErr(res):
			check.Status = StatusWarn
			check.Details = res.Error()
			check.FixHint = "Not enforceable on " + d.caps.String()
		default:
			check.Status = StatusFail
			check.Details = res.Error()
			check.FixHint = "Run 'schemaward migrate'; if it is up to date, run 'schemaward plan' to see which object diverged"
		}
		report.AddCheck(check)
	}
	return nil
}

// checkSettings reports the persisted maintenance flag.
func (d *Doctor) checkSettings(ctx context.Context, report *Report) error {
	on, err := settings.New(d.db, d.caps.Dialect, settings.WithLogger(d.log)).Maintenance(ctx)
	switch {
	case settings.IsNotInstalledErr(err):
		report.AddCheck(CheckResult{
			Category: CategorySettings,
			Name:     "table",
			Status:   StatusWarn,
			Message:  fmt.Sprintf("%s does not exist", settings.Table),
			FixHint:  "Run 'schemaward migrate'",
		})
		return nil
	case err != nil:
		return err
	case on:
		report.AddCheck(CheckResult{
			Category: CategorySettings,
			Name:     "maintenance",
			Status:   StatusWarn,
			Message:  "Maintenance mode is ON",
			FixHint:  "Run 'schemaward maintenance off' when the window is over",
		})
	default:
		report.AddCheck(CheckResult{
			Category: CategorySettings,
			Name:     "maintenance",
			Status:   StatusPass,
			Message:  "Maintenance mode is off",
		})
	}
	return nil
}

