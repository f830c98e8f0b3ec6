// Package diag is the error reporter (C10): it formats parse/run
// diagnostics with source location, tallies fatals, and prints the
// end-of-run summary described in spec.md §7.
package diag

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"golang.org/x/xerrors"
)

type Severity int

const (
	Info Severity = iota
	Warning
	Fatal
)

func (s Severity) String() string {
	switch s {
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Fatal:
		return "error"
	}
	return "?"
}

// Pos is a source location: file name plus line number.
type Pos struct {
	File string
	Line int
}

func (p Pos) String() string {
	if p.File == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d: ", p.File, p.Line)
}

// Diagnostic is one reported condition. Err, when present, is wrapped with
// golang.org/x/xerrors so %+v prints a frame trail — grounded in
// distr1-distri's wrapped-error style (SPEC_FULL.md §7).
type Diagnostic struct {
	Severity Severity
	Pos      Pos
	Msg      string
	Err      error
}

func Wrap(msg string, cause error) error {
	if cause == nil {
		return xerrors.New(msg)
	}
	return xerrors.Errorf("%s: %w", msg, cause)
}

// ansi color codes, carried over from the teacher's ansiTerm* constants
// (lenticularis39-mk/mk.go) but only emitted when stdout is a terminal.
const (
	ansiReset  = "\033[0m"
	ansiRed    = "\033[31m"
	ansiYellow = "\033[33m"
	ansiBright = "\033[1m"
)

// Reporter accumulates diagnostics for one run and renders the final
// summary (spec §7 "User-visible failure behavior").
type Reporter struct {
	out              io.Writer
	err              io.Writer
	color            bool
	fatals           int
	warnings         int
	warningsAsErrors bool
	reportedOnce     map[string]bool
}

func NewReporter(out, errw io.Writer, warningsAsErrors bool) *Reporter {
	color := false
	if f, ok := errw.(*os.File); ok {
		color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &Reporter{out: out, err: errw, color: color, warningsAsErrors: warningsAsErrors, reportedOnce: make(map[string]bool)}
}

func (r *Reporter) Report(d Diagnostic) {
	prefix := ""
	suffix := ""
	if r.color {
		switch d.Severity {
		case Fatal:
			prefix, suffix = ansiBright+ansiRed, ansiReset
		case Warning:
			prefix, suffix = ansiYellow, ansiReset
		}
	}
	msg := d.Msg
	if d.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, d.Err)
	}
	fmt.Fprintf(r.err, "%s%s%s: %s%s\n", prefix, d.Pos, d.Severity, msg, suffix)

	switch d.Severity {
	case Fatal:
		r.fatals++
	case Warning:
		r.warnings++
		if r.warningsAsErrors {
			r.fatals++
		}
	}
}

// ReportOnce reports a diagnostic keyed by key at most once per run — used
// for per-node error reporting (spec §7: "A node's error is reported at
// most once.").
func (r *Reporter) ReportOnce(key string, d Diagnostic) {
	if r.reportedOnce[key] {
		return
	}
	r.reportedOnce[key] = true
	r.Report(d)
}

func (r *Reporter) Fatals() int   { return r.fatals }
func (r *Reporter) Warnings() int { return r.warnings }

// ExitCode implements spec §6: 0 success, 1 any fatal parse error or job
// failure, 2 reserved for the external CLI's own usage errors.
func (r *Reporter) ExitCode() int {
	if r.fatals > 0 {
		return 1
	}
	return 0
}

// TargetOutcome is the per-top-level-target status line spec §7 requires at
// end of run.
type TargetOutcome int

const (
	OutcomeUpToDate TargetOutcome = iota
	OutcomeMade
	OutcomeErrored
	OutcomeMissingPrereq
)

func (r *Reporter) ReportOutcome(name string, o TargetOutcome) {
	switch o {
	case OutcomeUpToDate:
		fmt.Fprintf(r.out, "`%s' is up to date.\n", name)
	case OutcomeMade:
		fmt.Fprintf(r.out, "`%s' is made.\n", name)
	case OutcomeErrored:
		fmt.Fprintf(r.out, "`%s' not made due to error.\n", name)
	case OutcomeMissingPrereq:
		fmt.Fprintf(r.out, "`%s' not made due to missing prerequisite.\n", name)
	}
}

// CycleError formats a traversed-cycle report the way bmake's make.c does —
// the full chain, not just the repeated name (SPEC_FULL.md §9).
type CycleError struct {
	Chain []string
}

func (e *CycleError) Error() string {
	s := ""
	for i, n := range e.Chain {
		if i > 0 {
			s += " -> "
		}
		s += n
	}
	return "cycle in dependency graph: " + s
}
