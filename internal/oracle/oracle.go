// Package oracle implements the out-of-date oracle (C7): a pure
// function over a node and its already-computed child state that
// decides whether the node needs to be remade (spec.md §4.7). The
// eight rules are checked in order and the first match wins.
package oracle

import (
	"os"
	"time"

	"github.com/bmake-go/bmake/internal/archive"
	"github.com/bmake-go/bmake/internal/graph"
)

// ArchiveOodate is the archive-out-of-date collaborator rule 2 delegates
// to (spec §4.7 rule 2). The default implementation compares the node's
// own recorded mtime against the matching `ar` member's mtime.
type ArchiveOodate func(store *graph.Store, n *graph.Node) bool

// DefaultArchiveOodate is grounded in internal/archive.StatMember, the
// minimal `ar`-format reader this repository carries for `lib(member)`
// targets (spec §1 places the full archive engine out of scope).
func DefaultArchiveOodate(store *graph.Store, n *graph.Node) bool {
	var archivePath, member string
	if n.Locals != nil {
		archivePath, _ = n.Locals.Get(".ARCHIVE")
		member, _ = n.Locals.Get(".MEMBER")
	}
	if archivePath == "" {
		return n.Mtime.IsZero()
	}
	m, found, err := archive.StatMember(archivePath, member)
	if err != nil || !found {
		return true
	}
	return n.Mtime.Before(m.Mtime)
}

// Oracle evaluates is_oodate for a graph.Store.
type Oracle struct {
	Store   *graph.Store
	Archive ArchiveOodate
}

func New(store *graph.Store) *Oracle {
	return &Oracle{Store: store, Archive: DefaultArchiveOodate}
}

// IsOodate implements spec §4.7. As a side effect it (re-)probes h's
// filesystem mtime — bmake refreshes mtimes at the point a node is
// actually evaluated rather than trusting the expansion-pass snapshot,
// since sibling jobs may have changed the filesystem since then — and,
// when the verdict is "not out of date", propagates h's mtime upward
// into every direct parent's cmgn (spec: "updates the parent's cmgn
// upward when the node is not out of date").
func (o *Oracle) IsOodate(h graph.Handle) bool {
	n := o.Store.Node(h)
	o.ProbeMtime(h)

	result := o.evaluate(n)
	if !result {
		for _, p := range n.Parents {
			o.Store.UpdateCmgn(p, h)
		}
	}
	return result
}

func (o *Oracle) evaluate(n *graph.Node) bool {
	// rule 1: templates are never directly built.
	if n.Kind.Has(graph.Use) || n.Kind.Has(graph.UseBefore) {
		return false
	}

	// rule 2: archive member targets delegate, combined with the
	// doubledep-with-no-children rule.
	if n.Kind.Has(graph.Lib) && (n.Mtime.IsZero() || o.looksLikeArchive(n)) {
		noChildren := n.Kind.Has(graph.Doubledep) && len(n.Children) == 0
		return o.Archive(o.Store, n) || noChildren
	}

	// rule 3: .JOIN targets are out of date iff a child actually rebuilt.
	if n.Kind.Has(graph.Join) {
		return n.State.Has(graph.ChildMade)
	}

	// rule 4: force/exec/phony targets always (re)build.
	if n.Kind.Has(graph.Force) || n.Kind.Has(graph.Exec) || n.Kind.Has(graph.Phony) {
		return true
	}

	// rule 5: older than its youngest child. Not-older falls through to
	// rules 6/7/8 rather than returning early — a FORCE-sourced target
	// (rule 7's ForceFlag) must still win even when mtime >= cmgn.
	if n.Cmgn != graph.Invalid {
		cmgn := o.Store.Node(n.Cmgn)
		if n.Mtime.Before(cmgn.Mtime) {
			return true
		}
	}

	// rule 6: no children recorded at all.
	if n.Cmgn == graph.Invalid && ((n.Mtime.IsZero() && !n.Kind.Has(graph.Optional)) || n.Kind.Has(graph.Doubledep)) {
		return true
	}

	// rule 7: propagated "a child was missing" flag.
	if n.State.Has(graph.ForceFlag) {
		return true
	}

	// rule 8.
	return false
}

// looksLikeArchive reports whether n's path parses as a well-formed `ar`
// archive, independent of whether any particular member is present.
func (o *Oracle) looksLikeArchive(n *graph.Node) bool {
	path := n.Path
	if path == "" {
		path = n.Name
	}
	_, _, err := archive.StatMember(path, "")
	return err == nil
}

// ProbeMtime refreshes h's recorded mtime from the filesystem. Exported
// so internal/sched's on_complete can refresh a just-finished node's
// mtime without re-running the full rule evaluation (spec §4.8
// on_complete step 2: "recompute its mtime via the filesystem").
func (o *Oracle) ProbeMtime(h graph.Handle) {
	n := o.Store.Node(h)
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
