package oracle

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bmake-go/bmake/internal/graph"
)

func newTestNode(store *graph.Store, name string) graph.Handle {
	h := store.Get(name)
	store.Node(h).SetOperator(graph.Depends)
	return h
}

func TestIsOodatePhonyAlwaysTrue(t *testing.T) {
	store := graph.NewStore()
	h := newTestNode(store, "clean")
	store.Node(h).Kind |= graph.Phony
	o := New(store)
	if !o.IsOodate(h) {
		t.Fatalf("phony target should always be out of date")
	}
}

func TestIsOodateUseNeverBuilds(t *testing.T) {
	store := graph.NewStore()
	h := newTestNode(store, ".helper")
	store.Node(h).Kind |= graph.Use
	o := New(store)
	if o.IsOodate(h) {
		t.Fatalf(".USE template should never be directly out of date")
	}
}

func TestIsOodateOlderThanCmgn(t *testing.T) {
	dir := t.TempDir()
	outPath := filepath.Join(dir, "out")
	inPath := filepath.Join(dir, "in")
	writeFileAt(t, outPath, time.Now().Add(-time.Hour))
	writeFileAt(t, inPath, time.Now())

	store := graph.NewStore()
	parent := newTestNode(store, "out")
	child := newTestNode(store, "in")
	store.Node(parent).Path = outPath
	store.Node(child).Path = inPath
	store.AddChild(parent, child)
	store.UpdateCmgn(parent, child)

	o := New(store)
	o.IsOodate(child) // probes child's mtime, the value cmgn comparison relies on
	if !o.IsOodate(parent) {
		t.Fatalf("target older than its youngest child should be out of date")
	}
}

func writeFileAt(t *testing.T, path string, mtime time.Time) {
	t.Helper()
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatalf("chtimes %s: %v", path, err)
	}
}

func TestIsOodateNoChildrenNoFile(t *testing.T) {
	store := graph.NewStore()
	h := newTestNode(store, "missing")
	o := New(store)
	if !o.IsOodate(h) {
		t.Fatalf("nonexistent file with no cmgn should be out of date")
	}
}

func TestIsOodateOptionalMissingIsFine(t *testing.T) {
	store := graph.NewStore()
	h := newTestNode(store, "missing-optional")
	store.Node(h).Kind |= graph.Optional
	o := New(store)
	if o.IsOodate(h) {
		t.Fatalf("optional nonexistent target should not force a rebuild")
	}
}

// the classic `dir/file: FORCE` idiom, where FORCE is a missing
// always-made source: ForceFlag (rule 7) must still win even though the
// parent is newer than its cmgn (rule 5 is not a match, not a veto).
func TestIsOodateForceFlagSurvivesNotOlderThanCmgn(t *testing.T) {
	dir := t.TempDir()
	outPath := filepath.Join(dir, "out")
	writeFileAt(t, outPath, time.Now())

	store := graph.NewStore()
	parent := newTestNode(store, "out")
	child := newTestNode(store, "FORCE")
	store.Node(parent).Path = outPath
	store.AddChild(parent, child)
	store.UpdateCmgn(parent, child) // child's mtime is zero, parent is newer
	store.Node(parent).State |= graph.ForceFlag

	o := New(store)
	if !o.IsOodate(parent) {
		t.Fatalf("ForceFlag must win even when the parent is not older than its cmgn")
	}
}
