// Package expand implements the graph expansion pre-run pass (C6): it
// walks the initial target set breadth-first, folds `.USE`/`.USEBEFORE`
// templates into their consumers, converts `.WAIT` markers into real
// edges, probes filesystem mtimes, and inserts the synthetic `.MAIN`
// root above the user's target list (spec.md §4.6). The traversal shape
// — a visited-set BFS/DFS over a rule graph built from a small set of
// roots — follows lenticularis39-mk's buildgraph/applyrules in graph.go,
// generalized from "recurse into rule matches" to "walk already-built
// graph edges".
package expand

import (
	"os"
	"strings"
	"time"

	"github.com/bmake-go/bmake/internal/graph"
	"github.com/bmake-go/bmake/internal/searchpath"
	"github.com/bmake-go/bmake/internal/vars"
)

// ImplicitFinder is the out-of-core suffix/implicit-rule collaborator
// hook (spec §1 places the real suffix engine out of scope; step 6 of
// §4.6 just needs somewhere to call). It returns additional children to
// attach to n, or nil if it has nothing to offer.
type ImplicitFinder func(store *graph.Store, sp *searchpath.Path, n *graph.Node) []graph.Handle

// Expander runs the pre-run expansion pass over one graph.Store.
type Expander struct {
	Store      *graph.Store
	Global     *vars.Scope
	SearchPath *searchpath.Path
	Implicit   ImplicitFinder
}

func New(store *graph.Store, global *vars.Scope, sp *searchpath.Path) *Expander {
	return &Expander{Store: store, Global: global, SearchPath: sp}
}

// Run inserts the synthetic `.MAIN` parent above roots and performs the
// breadth-first expansion pass followed by the `.WAIT`-to-edges pass
// (spec §4.6). It returns the `.MAIN` handle, the common ancestor every
// scheduling run recurses from.
func (e *Expander) Run(roots []graph.Handle) graph.Handle {
	main := e.Store.NewInternal(".MAIN")
	mn := e.Store.Node(main)
	mn.Kind |= graph.Special | graph.NotMain | graph.Phony
	mn.Name, mn.UName = ".MAIN", ".MAIN"
	for _, r := range roots {
		e.Store.AddChild(main, r)
	}

	queue := []graph.Handle{main}
	for len(queue) > 0 {
		h := queue[0]
		queue = queue[1:]
		n := e.Store.Node(h)

		// step 1: already-visited nodes are skipped.
		if n.State.Has(graph.Remake) {
			continue
		}
		n.State |= graph.Remake

		// step 2: doubledep nodes enqueue their cohorts too.
		if n.Kind.Has(graph.Doubledep) {
			queue = append(queue, n.Cohorts...)
		}

		// step 3: archive references set .ARCHIVE/.MEMBER.
		if n.Kind.Has(graph.Archive) {
			e.setArchiveVars(n)
		}

		// step 4: probe mtime, set .TARGET.
		e.probeMtime(n)
		n.LocalScope(e.Global).Set(".TARGET", n.Name)

		// step 5: fold .USE/.USEBEFORE templates into n.
		e.applyUseChildren(n)

		// step 6: ask the implicit-rule collaborator, unless n already
		// carries a recorded result (`made`-attributed).
		if !n.Kind.Has(graph.Made) && e.Implicit != nil {
			for _, extra := range e.Implicit(e.Store, e.SearchPath, n) {
				e.Store.AddChild(h, extra)
				en := e.Store.Node(extra)
				en.ImplicitParents = append(en.ImplicitParents, h)
			}
		}

		// step 7: enqueue children not yet visited and not themselves a
		// .USE/.USEBEFORE template (those are consumed by their parent,
		// never scheduled on their own).
		for _, c := range n.Children {
			cn := e.Store.Node(c)
			if cn.State.Has(graph.Remake) || cn.Kind.Has(graph.Use) || cn.Kind.Has(graph.UseBefore) {
				continue
			}
			queue = append(queue, c)
		}
	}

	e.wireWaitBarriers(main)
	return main
}

func (e *Expander) probeMtime(n *graph.Node) {
	path := n.Path
	if path == "" {
		path = n.Name
	}
	info, err := os.Stat(path)
	if err != nil {
		n.Mtime = time.Time{}
		return
	}
	n.Mtime = info.ModTime()
	n.Path = path
}

// setArchiveVars parses the `lib(member)` form out of n.UName and sets
// .ARCHIVE/.MEMBER on n's local scope (spec §4.5, §4.6 step 3).
func (e *Expander) setArchiveVars(n *graph.Node) {
	open := strings.IndexByte(n.UName, '(')
	shut := strings.LastIndexByte(n.UName, ')')
	if open < 0 || shut < open {
		return
	}
	lib := n.UName[:open]
	member := n.UName[open+1 : shut]
	scope := n.LocalScope(e.Global)
	scope.Set(".ARCHIVE", lib)
	scope.Set(".MEMBER", member)
}

// applyUseChildren folds every `.USE`/`.USEBEFORE` child of n into n
// itself: commands, children (names expanded against n's local scope),
// and propagatable kind bits, then removes the template edge (spec §4.6
// step 5). A per-call `applied` set stands in for the single `mark` bit
// spec.md describes, preventing the same template child from being
// folded twice into the same n if it happens to appear twice in n's
// child list; a template shared by several distinct parents is still
// applied once per parent, as each fold only touches that parent's
// Children/Commands.
func (e *Expander) applyUseChildren(n *graph.Node) {
	h := n.Handle()
	applied := make(map[graph.Handle]bool)
	var templates []graph.Handle

	for _, c := range n.Children {
		cn := e.Store.Node(c)
		if !cn.Kind.Has(graph.Use) && !cn.Kind.Has(graph.UseBefore) {
			continue
		}
		if applied[c] {
			continue
		}
		applied[c] = true
		templates = append(templates, c)

		if cn.Kind.Has(graph.UseBefore) {
			n.Commands = append(append([]string{}, cn.Commands...), n.Commands...)
		} else if len(n.Commands) == 0 {
			n.Commands = append(n.Commands, cn.Commands...)
		}

		scope := n.LocalScope(e.Global)
		for _, gc := range cn.Children {
			gcn := e.Store.Node(gc)
			name := scope.Subst(gcn.Name)
			target := gc
			if name != gcn.Name {
				target = e.Store.Get(name)
			}
			e.Store.AddChild(h, target)
		}

		n.Kind |= cn.Kind.Propagatable()
	}

	for _, t := range templates {
		e.Store.RemoveChild(h, t)
	}
}

// wireWaitBarriers implements spec §4.6's second pass: within each
// parent's child list, every `.WAIT` child depends on all preceding
// non-`.WAIT` children back to the previous `.WAIT` (or the start of the
// list). The walk covers every node reached by the first pass, since
// `.WAIT` barriers can appear at any depth, not only under `.MAIN`.
func (e *Expander) wireWaitBarriers(main graph.Handle) {
	seen := make(map[graph.Handle]bool)
	var walk func(h graph.Handle)
	walk = func(h graph.Handle) {
		if seen[h] {
			return
		}
		seen[h] = true
		n := e.Store.Node(h)
		e.wireWaitsFor(n)
		for _, c := range n.Children {
			walk(c)
		}
		for _, c := range n.Cohorts {
			walk(c)
		}
	}
	walk(main)
}

func (e *Expander) wireWaitsFor(n *graph.Node) {
	var pending []graph.Handle
	for _, c := range n.Children {
		cn := e.Store.Node(c)
		if cn.Kind.Has(graph.Wait) {
			for _, p := range pending {
				e.Store.AddChild(c, p)
			}
			pending = pending[:0]
			continue
		}
		pending = append(pending, c)
	}
}
