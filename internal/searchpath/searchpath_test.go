package searchpath

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolvePrefersPlainOverSuffix(t *testing.T) {
	plainDir := t.TempDir()
	suffixDir := t.TempDir()

	if err := os.WriteFile(filepath.Join(plainDir, "foo.c"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(suffixDir, "foo.c"), nil, 0o644); err != nil {
		t.Fatal(err)
	}

	p := New()
	p.AddSuffix(".c", suffixDir)
	p.Add(plainDir)

	got, ok := p.Resolve("foo.c", ".c")
	if !ok {
		t.Fatalf("Resolve did not find foo.c")
	}
	want := plainDir + "/foo.c"
	if got != want {
		t.Fatalf("Resolve = %q, want %q (plain path must win)", got, want)
	}
}

func TestResolveFallsBackToSuffixPath(t *testing.T) {
	suffixDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(suffixDir, "only.c"), nil, 0o644); err != nil {
		t.Fatal(err)
	}

	p := New()
	p.Add(t.TempDir()) // plain dir exists but doesn't have the file
	p.AddSuffix(".c", suffixDir)

	got, ok := p.Resolve("only.c", ".c")
	if !ok {
		t.Fatalf("Resolve did not fall back to the suffix path")
	}
	if got != suffixDir+"/only.c" {
		t.Fatalf("Resolve = %q, want suffix dir match", got)
	}
}

func TestResolveMissingReturnsFalse(t *testing.T) {
	p := New()
	p.Add(t.TempDir())
	if _, ok := p.Resolve("nope.c", ".c"); ok {
		t.Fatalf("Resolve found a file that does not exist")
	}
}

func TestClearEmptiesBothLists(t *testing.T) {
	p := New()
	p.Add("/some/dir")
	p.AddSuffix(".c", "/other/dir")
	p.Clear()

	if len(p.Plain) != 0 {
		t.Fatalf("Plain = %v after Clear, want empty", p.Plain)
	}
	if len(p.BySuffix) != 0 {
		t.Fatalf("BySuffix = %v after Clear, want empty", p.BySuffix)
	}
}
