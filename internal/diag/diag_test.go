package diag

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func newTestReporter(warnAsErrors bool) (*Reporter, *bytes.Buffer, *bytes.Buffer) {
	var out, errw bytes.Buffer
	return NewReporter(&out, &errw, warnAsErrors), &out, &errw
}

func TestReportTalliesFatalsAndWarnings(t *testing.T) {
	r, _, _ := newTestReporter(false)
	r.Report(Diagnostic{Severity: Fatal, Msg: "boom"})
	r.Report(Diagnostic{Severity: Warning, Msg: "careful"})

	if r.Fatals() != 1 {
		t.Fatalf("Fatals() = %d, want 1", r.Fatals())
	}
	if r.Warnings() != 1 {
		t.Fatalf("Warnings() = %d, want 1", r.Warnings())
	}
}

func TestWarningsAsErrorsPromotesToFatal(t *testing.T) {
	r, _, _ := newTestReporter(true)
	r.Report(Diagnostic{Severity: Warning, Msg: "careful"})
	if r.Fatals() != 1 {
		t.Fatalf("Fatals() = %d, want 1 with --warnings-as-errors", r.Fatals())
	}
}

func TestExitCodeReflectsFatals(t *testing.T) {
	r, _, _ := newTestReporter(false)
	if r.ExitCode() != 0 {
		t.Fatalf("ExitCode() = %d, want 0 with no diagnostics", r.ExitCode())
	}
	r.Report(Diagnostic{Severity: Fatal, Msg: "boom"})
	if r.ExitCode() != 1 {
		t.Fatalf("ExitCode() = %d, want 1 after a fatal", r.ExitCode())
	}
}

func TestReportOnceSuppressesDuplicateKey(t *testing.T) {
	r, _, errw := newTestReporter(false)
	r.ReportOnce("node:foo", Diagnostic{Severity: Fatal, Msg: "failed to make foo"})
	r.ReportOnce("node:foo", Diagnostic{Severity: Fatal, Msg: "failed to make foo"})

	if r.Fatals() != 1 {
		t.Fatalf("Fatals() = %d, want 1 (duplicate key must not double-count)", r.Fatals())
	}
	if strings.Count(errw.String(), "failed to make foo") != 1 {
		t.Fatalf("expected exactly one printed line, got: %s", errw.String())
	}
}

func TestWrapNilCauseProducesPlainError(t *testing.T) {
	err := Wrap("something went wrong", nil)
	if err.Error() != "something went wrong" {
		t.Fatalf("Wrap(nil) = %q, want plain message", err.Error())
	}
}

func TestWrapPreservesCauseInMessage(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap("write failed", cause)
	if !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("Wrap error = %q, want it to mention the cause", err.Error())
	}
	if !errors.Is(err, cause) {
		t.Fatalf("Wrap should produce an error chain unwrapping to cause")
	}
}

func TestCycleErrorFormatsFullChain(t *testing.T) {
	e := &CycleError{Chain: []string{"a", "b", "c", "a"}}
	want := "cycle in dependency graph: a -> b -> c -> a"
	if e.Error() != want {
		t.Fatalf("CycleError.Error() = %q, want %q", e.Error(), want)
	}
}

func TestReportOutcomeFormatsEachKind(t *testing.T) {
	r, out, _ := newTestReporter(false)
	r.ReportOutcome("foo", OutcomeUpToDate)
	if !strings.Contains(out.String(), "`foo' is up to date.") {
		t.Fatalf("missing up-to-date line: %s", out.String())
	}
}
