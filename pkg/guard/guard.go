// Package guard is a static linter for migration source files.
//
// Every file under a directory whose extension is scanned is tested
// against every rule. All violations are collected; the caller decides
// to fail the build when the report is not clean.
//
//	report, err := guard.New().Scan("migrations")
//	if err != nil {
//		return err
//	}
//	if err := report.Err(); err != nil {
//		report.Print(os.Stderr)
//		os.Exit(1)
//	}
package guard

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// DefaultExtensions are the file extensions scanned by default.
var DefaultExtensions = []string{".ts", ".js", ".sql", ".go"}

// skipDirs are never descended into.
var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
}

// Guard scans migration files against a rule table.
type Guard struct {
	rules      []Rule
	extensions map[string]bool
	log        *zap.Logger
}

// Option configures a Guard.
type Option func(*Guard)

// WithRules appends rules to the table.
func WithRules(rules ...Rule) Option {
	return func(g *Guard) { g.rules = append(g.rules, rules...) }
}

// WithExtensions replaces the scanned extensions. Extensions may be given
// with or without the leading dot.
func WithExtensions(exts ...string) Option {
	return func(g *Guard) {
		if len(exts) == 0 {
			return
		}
		g.extensions = extensionSet(exts)
	}
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(g *Guard) {
		if log != nil {
			g.log = log
		}
	}
}

// New returns a guard with the built-in rules and default extensions.
func New(opts ...Option) *Guard {
	g := &Guard{
		rules:      DefaultRules(),
		extensions: extensionSet(DefaultExtensions),
		log:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func extensionSet(exts []string) map[string]bool {
	set := make(map[string]bool, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		set[e] = true
	}
	return set
}

// Rules returns the rule table in evaluation order.
func (g *Guard) Rules() []Rule {
	out := make([]Rule, len(g.rules))
	copy(out, g.rules)
	return out
}

// Matches reports whether path has a scanned extension.
func (g *Guard) Matches(path string) bool {
	return g.extensions[strings.ToLower(filepath.Ext(path))]
}

// Files lists the files under dir that would be scanned, in lexical order.
func (g *Guard) Files(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() && g.Matches(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing migration files in %s: %w", dir, err)
	}
	return files, nil
}

// Scan checks every matching file under dir against every rule.
// The error is non-nil only when files cannot be read; violations are
// reported through the Report.
func (g *Guard) Scan(dir string) (*Report, error) {
	files, err := g.Files(dir)
	if err != nil {
		return nil, err
	}

	report := &Report{Dir: dir}
	for _, path := range files {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		report.Files++
		vs := g.Check(path, content)
		if len(vs) > 0 {
			g.log.Debug("violations found", zap.String("file", path), zap.Int("count", len(vs)))
		}
		report.Violations = append(report.Violations, vs...)
	}

	g.log.Debug("scan complete",
		zap.String("dir", dir),
		zap.Int("files", report.Files),
		zap.Int("violations", len(report.Violations)))
	return report, nil
}

// Check tests content against every rule. Each rule is reported at most
// once per file, at the line of its first match.
func (g *Guard) Check(file string, content []byte) []Violation {
	var out []Violation
	for _, r := range g.rules {
		loc := r.Pattern.FindIndex(content)
		if loc == nil {
			continue
		}
		out = append(out, Violation{
			File:    file,
			Line:    lineAt(content, loc[0]),
			RuleID:  r.ID,
			Message: r.Message,
		})
	}
	return out
}

// lineAt returns the 1-based line of offset, skipping a leading newline
// that a pattern consumed as context.
func lineAt(content []byte, offset int) int {
	if offset < len(content) && content[offset] == '\n' {
		offset++
	}
	line := 1
	for _, b := range content[:offset] {
		if b == '\n' {
			line++
		}
	}
	return line
}
