package guard

import (
	"fmt"
	"io"

	"github.com/hashicorp/go-multierror"
)

// Violation is one rule matching one file.
type Violation struct {
	File    string
	Line    int
	RuleID  string
	Message string
}

func (v Violation) Error() string {
	return fmt.Sprintf("%s:%d: [%s] %s", v.File, v.Line, v.RuleID, v.Message)
}

// Report is the outcome of a scan.
type Report struct {
	Dir        string
	Files      int
	Violations []Violation
}

// OK reports whether no rule matched.
func (r *Report) OK() bool {
	return len(r.Violations) == 0
}

// Err aggregates every violation into one error wrapping ErrViolations,
// or returns nil for a clean report.
func (r *Report) Err() error {
	if r.OK() {
		return nil
	}
	var merr *multierror.Error
	for _, v := range r.Violations {
		merr = multierror.Append(merr, v)
	}
	merr.ErrorFormat = func(errs []error) string {
		return fmt.Sprintf("%d violation(s) in %d file(s) checked", len(errs), r.Files)
	}
	return fmt.Errorf("%w: %w", ErrViolations, merr)
}

// Confirmation is the message printed for a clean report.
func (r *Report) Confirmation() string {
	return fmt.Sprintf("Migration guard passed: %d files checked, no violations.", r.Files)
}

// Print writes every violation, one per line, followed by a summary; or
// the confirmation when the report is clean.
func (r *Report) Print(w io.Writer) {
	if r.OK() {
		_, _ = fmt.Fprintln(w, r.Confirmation())
		return
	}
	for _, v := range r.Violations {
		_, _ = fmt.Fprintln(w, v.Error())
	}
	_, _ = fmt.Fprintf(w, "Migration guard failed: %d violation(s) in %d files checked.\n", len(r.Violations), r.Files)
}

// ByRule groups violations by rule id.
func (r *Report) ByRule() map[string][]Violation {
	out := make(map[string][]Violation)
	for _, v := range r.Violations {
		out[v.RuleID] = append(out[v.RuleID], v)
	}
	return out
}
