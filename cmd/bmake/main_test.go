package main

import (
	"os"
	"path/filepath"
	"testing"
)

// end-to-end scenario: a two-level dependency graph parsed from a real
// makefile, built through the whole parse -> expand -> sched pipeline.
func TestRunBuildsOutOfDateTarget(t *testing.T) {
	dir := t.TempDir()
	oldWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(oldWd)

	src := filepath.Join(dir, "src.txt")
	if err := os.WriteFile(src, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	makefile := "out.txt: src.txt\n\tcp src.txt out.txt\n"
	if err := os.WriteFile(filepath.Join(dir, "Makefile"), []byte(makefile), 0o644); err != nil {
		t.Fatal(err)
	}

	code := run([]string{"out.txt"})
	if code != 0 {
		t.Fatalf("run() exit code = %d, want 0", code)
	}

	got, err := os.ReadFile(filepath.Join(dir, "out.txt"))
	if err != nil {
		t.Fatalf("out.txt was not produced: %v", err)
	}
	if string(got) != "hello" {
		t.Fatalf("out.txt = %q, want %q", got, "hello")
	}
}

func TestRunMissingMakefileFails(t *testing.T) {
	dir := t.TempDir()
	oldWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(oldWd)

	code := run([]string{"anything"})
	if code == 0 {
		t.Fatalf("run() exit code = 0, want nonzero for missing Makefile")
	}
}

// scenario 3: `::` cohorts. Each rule block for the same target runs its
// own recipe independently; the target as a whole only finishes once both
// cohorts have completed.
func TestDoubleColonCohortsBothRunIndependently(t *testing.T) {
	dir := t.TempDir()
	oldWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(oldWd)

	makefile := "all: lib.a\n\techo done\n" +
		"lib.a:: a.o\n\ttouch lib.a\n\ttouch first.stamp\n" +
		"lib.a:: b.o\n\ttouch second.stamp\n" +
		"a.o:\n\ttouch a.o\n" +
		"b.o:\n\ttouch b.o\n"
	if err := os.WriteFile(filepath.Join(dir, "Makefile"), []byte(makefile), 0o644); err != nil {
		t.Fatal(err)
	}

	code := run([]string{"all"})
	if code != 0 {
		t.Fatalf("run() exit code = %d, want 0", code)
	}

	for _, name := range []string{"a.o", "b.o", "lib.a", "first.stamp", "second.stamp"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("cohort output %q was not produced: %v", name, err)
		}
	}
}

// scenario 4: `.WAIT` blocks dispatch of what follows it until everything
// before it on the same dependency line has completed, even when the job
// pool has enough capacity (-j 2) to run both sides at once.
func TestWaitBarrierOrdersDispatchUnderParallelism(t *testing.T) {
	dir := t.TempDir()
	oldWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(oldWd)

	makefile := "all: before .WAIT after\n" +
		"before:\n\techo before >> order.log\nafter:\n\techo after >> order.log\n"
	if err := os.WriteFile(filepath.Join(dir, "Makefile"), []byte(makefile), 0o644); err != nil {
		t.Fatal(err)
	}

	code := run([]string{"-j", "2", "all"})
	if code != 0 {
		t.Fatalf("run() exit code = %d, want 0", code)
	}

	got, err := os.ReadFile(filepath.Join(dir, "order.log"))
	if err != nil {
		t.Fatalf("order.log was not produced: %v", err)
	}
	if string(got) != "before\nafter\n" {
		t.Fatalf("order.log = %q, want %q (.WAIT must gate after behind before)", got, "before\nafter\n")
	}
}

func TestQuestionModeReportsOutOfDateWithoutRunning(t *testing.T) {
	dir := t.TempDir()
	oldWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(oldWd)

	if err := os.WriteFile(filepath.Join(dir, "src.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	makefile := "out.txt: src.txt\n\tcp src.txt out.txt\n"
	if err := os.WriteFile(filepath.Join(dir, "Makefile"), []byte(makefile), 0o644); err != nil {
		t.Fatal(err)
	}

	code := run([]string{"-q", "out.txt"})
	if code != 1 {
		t.Fatalf("run() exit code = %d, want 1 (out of date)", code)
	}
	if _, err := os.Stat(filepath.Join(dir, "out.txt")); err == nil {
		t.Fatalf("-q must not produce out.txt")
	}
}
