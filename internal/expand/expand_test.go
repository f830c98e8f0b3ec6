package expand

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/bmake-go/bmake/internal/graph"
	"github.com/bmake-go/bmake/internal/searchpath"
	"github.com/bmake-go/bmake/internal/vars"
)

func TestRunInsertsSyntheticMain(t *testing.T) {
	store := graph.NewStore()
	a := store.Get("a")
	b := store.Get("b")
	store.Node(a).SetOperator(graph.Depends)
	store.Node(b).SetOperator(graph.Depends)

	e := New(store, vars.NewScope(nil), searchpath.New())
	main := e.Run([]graph.Handle{a, b})

	mn := store.Node(main)
	if mn.Name != ".MAIN" {
		t.Fatalf("root name = %q, want .MAIN", mn.Name)
	}
	if len(mn.Children) != 2 {
		t.Fatalf("root has %d children, want 2", len(mn.Children))
	}
	if !mn.State.Has(graph.Remake) {
		t.Fatalf(".MAIN not marked remake")
	}
	if !store.Node(a).State.Has(graph.Remake) || !store.Node(b).State.Has(graph.Remake) {
		t.Fatalf("roots not marked remake")
	}
}

func TestRunFoldsUseTemplate(t *testing.T) {
	store := graph.NewStore()
	target := store.Get("out")
	store.Node(target).SetOperator(graph.Depends)

	tmpl := store.Get(".helper")
	store.Node(tmpl).Kind |= graph.Use
	store.Node(tmpl).Commands = []string{"echo helper"}
	store.AddChild(target, tmpl)

	e := New(store, vars.NewScope(nil), searchpath.New())
	e.Run([]graph.Handle{target})

	tn := store.Node(target)
	if len(tn.Commands) != 1 || tn.Commands[0] != "echo helper" {
		t.Fatalf("commands not folded in: %v", tn.Commands)
	}
	for _, c := range tn.Children {
		if c == tmpl {
			t.Fatalf("template edge not removed")
		}
	}
}

func TestRunWiresWaitBarrier(t *testing.T) {
	store := graph.NewStore()
	parent := store.Get("all")
	store.Node(parent).SetOperator(graph.Depends)

	first := store.Get("first")
	store.Node(first).SetOperator(graph.Depends)
	second := store.Get("second")
	store.Node(second).SetOperator(graph.Depends)

	store.AddChild(parent, first)
	wait := store.NewInternal(".WAIT")
	store.Node(wait).Kind |= graph.Wait | graph.Phony
	parentNode := store.Node(parent)
	parentNode.Children = append(parentNode.Children, wait)
	store.AddChild(parent, second)

	e := New(store, vars.NewScope(nil), searchpath.New())
	e.Run([]graph.Handle{parent})

	wn := store.Node(wait)
	if len(wn.Children) != 1 || wn.Children[0] != first {
		t.Fatalf(".WAIT children = %v, want [first]", wn.Children)
	}
}

// a second Run over roots already marked Remake must be a no-op: the
// breadth-first walk's visited check (step 1) should skip every node
// rather than re-folding .USE templates or re-probing mtimes.
func TestRunOverAlreadyExpandedRootsIsIdempotent(t *testing.T) {
	store := graph.NewStore()
	target := store.Get("out")
	store.Node(target).SetOperator(graph.Depends)

	tmpl := store.Get(".helper")
	store.Node(tmpl).Kind |= graph.Use
	store.Node(tmpl).Commands = []string{"echo helper"}
	store.AddChild(target, tmpl)

	e := New(store, vars.NewScope(nil), searchpath.New())
	e.Run([]graph.Handle{target})

	before := snapshotNode(store, target)

	e.Run([]graph.Handle{target})
	after := snapshotNode(store, target)

	if diff := cmp.Diff(before, after); diff != "" {
		t.Fatalf("second Run() changed target's shape (-before +after):\n%s", diff)
	}
}

type nodeSnapshot struct {
	Name     string
	Commands []string
	Children []string
}

func snapshotNode(store *graph.Store, h graph.Handle) nodeSnapshot {
	n := store.Node(h)
	names := make([]string, len(n.Children))
	for i, c := range n.Children {
		names[i] = store.Node(c).Name
	}
	commands := append([]string(nil), n.Commands...)
	return nodeSnapshot{Name: n.Name, Commands: commands, Children: names}
}
