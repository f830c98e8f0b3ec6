// Package sched implements the scheduler (C8): the ready-queue dispatch
// loop, job-token acquisition, completion propagation, cycle detection
// and final status, exactly as spec.md §4.8 describes. The scheduling
// model is single-threaded cooperative (spec §5): all graph mutation
// happens on the goroutine calling Run; the only cross-goroutine
// channel is internal/job.Runner's completion stream.
package sched

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bmake-go/bmake/internal/diag"
	"github.com/bmake-go/bmake/internal/graph"
	"github.com/bmake-go/bmake/internal/job"
	"github.com/bmake-go/bmake/internal/oracle"
	"github.com/bmake-go/bmake/internal/vars"
)

// Scheduler holds the state a single run's dispatch loop needs: the
// FIFO ready queue, the re-entry epoch, and the collaborators it
// consults (spec §9 "Global state": "checked epoch... model as a
// Scheduler context").
type Scheduler struct {
	Store    *graph.Store
	Oracle   *oracle.Oracle
	Runner   *job.Runner
	Reporter *diag.Reporter
	Global   *vars.Scope

	KeepGoing bool
	Query     bool

	toBeMade  []graph.Handle
	epoch     uint64
	heldToken bool
	aborting  bool
	stopped   bool
	queryHit  bool
	errors    int
}

func New(store *graph.Store, o *oracle.Oracle, runner *job.Runner, reporter *diag.Reporter, global *vars.Scope) *Scheduler {
	return &Scheduler{Store: store, Oracle: o, Runner: runner, Reporter: reporter, Global: global}
}

// RunError is returned by Run when one or more nodes ended in ERROR.
type RunError struct{ Count int }

func (e *RunError) Error() string { return fmt.Sprintf("%d target(s) failed", e.Count) }

// Run drives main (the synthetic `.MAIN` root produced by
// internal/expand) to completion. In query mode it returns (true, nil)
// as soon as it would have dispatched the first job, without actually
// running anything (spec §4.8 "Query mode").
func (s *Scheduler) Run(ctx context.Context, main graph.Handle) (bool, error) {
	// start at epoch 1 so a node's zero Checked stamp never matches it.
	s.epoch++
	mn := s.Store.Node(main)
	mn.Made = graph.Requested
	s.toBeMade = append(s.toBeMade, main)

	for !s.stopped {
		if !s.aborting || s.KeepGoing {
			s.startJobs(ctx)
		}
		if s.stopped {
			break
		}
		if len(s.toBeMade) == 0 && s.Runner.InFlight() == 0 {
			break
		}
		if s.Runner.InFlight() == 0 {
			// nothing left can ever become ready (e.g. every remaining
			// entry is blocked on a dependency that already failed).
			break
		}
		res := s.Runner.Drain()
		s.epoch++
		if res.Err != nil {
			s.handleFailure(res.Handle, res.Err)
			if !s.KeepGoing {
				s.aborting = true
			}
			continue
		}
		n := s.Store.Node(res.Handle)
		n.Made = graph.MadeStatusMade
		s.onComplete(res.Handle)
	}

	if s.Query {
		return s.queryHit, nil
	}
	if s.errors > 0 {
		return false, &RunError{Count: s.errors}
	}
	return false, nil
}

// RunHook executes the named hook pseudo-target (`.BEGIN`, `.END`,
// `.INTERRUPT`, `.ERROR`) synchronously if it was ever defined and
// carries commands, per SPEC_FULL.md §9's "hook dispatch order":
// `.BEGIN` before the first real target, `.END` only on a clean run,
// `.ERROR` in its place otherwise. `.INTERRUPT` runs only when a caller
// passes its name; no SIGINT handler is installed.
func (s *Scheduler) RunHook(ctx context.Context, name string) error {
	h, ok := s.Store.Find(name)
	if !ok {
		return nil
	}
	n := s.Store.Node(h)
	if len(n.Commands) == 0 {
		return nil
	}
	return s.Runner.RunSync(ctx, n)
}

// Failed reports whether Run ended with at least one ERROR node, the
// condition that selects `.ERROR` over `.END` as the closing hook.
func (s *Scheduler) Failed() bool { return s.errors > 0 }

// startJobs is spec §4.8's dispatch loop verbatim, modulo the explicit
// `heldToken` flag standing in for "if no token held" across loop
// iterations and across separate calls to startJobs between completion
// drains.
func (s *Scheduler) startJobs(ctx context.Context) {
	for len(s.toBeMade) > 0 {
		if !s.heldToken {
			if !s.Runner.TryAcquire() {
				return
			}
			s.heldToken = true
		}

		h := s.dequeue()
		n := s.Store.Node(h)
		if n.Made != graph.Requested {
			s.heldToken = false
			s.Runner.Release()
			continue
		}
		if n.Checked == s.epoch {
			n.Made = graph.Deferred
			continue
		}
		n.Checked = s.epoch

		if n.Unmade > 0 {
			n.Made = graph.Deferred
			for _, c := range n.Children {
				s.scheduleChild(c, true)
				cn := s.Store.Node(c)
				if cn.Kind.Has(graph.Wait) && cn.Unmade > 0 {
					break
				}
			}
			continue
		}

		n.Made = graph.BeingMade
		if s.Oracle.IsOodate(h) {
			s.setPreDispatchVars(h)
			if s.Query {
				s.queryHit = true
				s.stopped = true
				return
			}
			s.Runner.Dispatch(ctx, h, n)
			s.heldToken = false
		} else {
			n.Made = graph.UpToDate
			s.onComplete(h)
		}
	}
}

func (s *Scheduler) dequeue() graph.Handle {
	h := s.toBeMade[0]
	s.toBeMade = s.toBeMade[1:]
	return h
}

// scheduleChild implements spec §4.8's schedule_child rules.
func (s *Scheduler) scheduleChild(c graph.Handle, prepend bool) {
	n := s.Store.Node(c)
	if n.Made > graph.Deferred {
		return
	}
	if s.Store.OrderBlocks(c) {
		n.Made = graph.Deferred
		return
	}
	n.Made = graph.Requested
	if prepend {
		s.toBeMade = append([]graph.Handle{c}, s.toBeMade...)
	} else {
		s.toBeMade = append(s.toBeMade, c)
	}
	if n.UnmadeCohorts > 0 {
		for _, co := range n.Cohorts {
			s.scheduleChild(co, prepend)
		}
	}
}

// onComplete implements spec §4.8's on_complete, propagating a finished
// node's status up to its parents (or, for a cohort, up through its
// centurion — "All parent links live on the centurion").
func (s *Scheduler) onComplete(c graph.Handle) {
	s.epoch++
	cn := s.Store.Node(c)

	missing := false
	if cn.Made != graph.UpToDate {
		s.Oracle.ProbeMtime(c)
		if cn.Mtime.IsZero() && !cn.Kind.Has(graph.Wait) {
			missing = true
		}
	}

	subject := c
	if cn.Centurion != graph.Invalid {
		subject = cn.Centurion
		centurionNode := s.Store.Node(subject)
		centurionNode.UnmadeCohorts--
	}
	sn := s.Store.Node(subject)

	for _, succ := range sn.OrderSucc {
		s.scheduleChild(succ, false)
	}

	for _, p := range sn.Parents {
		pn := s.Store.Node(p)
		if !pn.State.Has(graph.Remake) || pn.Kind.Has(graph.Made) {
			continue
		}
		if missing {
			pn.State |= graph.ForceFlag
		}
		if !cn.Kind.Has(graph.Use) && !cn.Kind.Has(graph.UseBefore) && cn.Made == graph.MadeStatusMade {
			pn.State |= graph.ChildMade
			s.Store.UpdateCmgn(p, subject)
		}
		if sn.UnmadeCohorts > 0 || sn.Made < graph.MadeStatusMade {
			continue
		}

		pn.Unmade--
		if pn.Unmade < 0 {
			s.reportCycle(p)
			continue
		}
		if pn.Unmade > 0 && !cn.Kind.Has(graph.Wait) {
			continue
		}
		if pn.Made != graph.Deferred {
			continue
		}
		if s.Store.OrderBlocks(p) {
			continue
		}
		pn.Made = graph.Requested
		s.toBeMade = append(s.toBeMade, p)
	}

	for _, ip := range cn.ImplicitParents {
		scope := s.Store.Node(ip).LocalScope(s.Global)
		scope.Set(".IMPSRC", cn.Name)
		scope.Set(".PREFIX", prefixOf(cn.Name))
	}
}

// handleFailure marks c and every ancestor reachable from it (through
// the centurion for cohorts) as failed, without re-enqueuing any of
// them — spec §5: "its parents inherit failure without being
// dispatched."
func (s *Scheduler) handleFailure(c graph.Handle, jobErr error) {
	cn := s.Store.Node(c)
	cn.Made = graph.ErrorStatus
	s.errors++
	s.Reporter.ReportOnce(fmt.Sprintf("job:%d", c), diag.Diagnostic{
		Severity: diag.Fatal,
		Msg:      "failed to make " + cn.Name,
		Err:      jobErr,
	})

	subject := c
	if cn.Centurion != graph.Invalid {
		subject = cn.Centurion
	}
	s.abortAncestors(subject)
}

func (s *Scheduler) abortAncestors(h graph.Handle) {
	n := s.Store.Node(h)
	for _, p := range n.Parents {
		pn := s.Store.Node(p)
		if pn.Made == graph.Aborted || pn.Made == graph.ErrorStatus {
			continue
		}
		pn.Made = graph.Aborted
		s.abortAncestors(p)
	}
}

func (s *Scheduler) reportCycle(h graph.Handle) {
	chain := s.traceCycle(h)
	s.errors++
	s.Reporter.ReportOnce("cycle:"+s.Store.Node(h).Name, diag.Diagnostic{
		Severity: diag.Fatal,
		Err:      &diag.CycleError{Chain: chain},
	})
}

// traceCycle walks parent links from h back to the first repeated node,
// producing the full traversed chain (SPEC_FULL.md §9: bmake's make.c
// prints the whole chain, not just the repeated name).
func (s *Scheduler) traceCycle(h graph.Handle) []string {
	seen := make(map[graph.Handle]bool)
	var chain []string
	cur := h
	for {
		n := s.Store.Node(cur)
		chain = append(chain, n.Name)
		if seen[cur] || len(n.Parents) == 0 {
			break
		}
		seen[cur] = true
		cur = n.Parents[0]
	}
	return chain
}

func prefixOf(name string) string {
	base := filepath.Base(name)
	ext := filepath.Ext(base)
	return strings.TrimSuffix(base, ext)
}

// setPreDispatchVars implements spec §4.9: build `.ALLSRC`/`.OODATE`/
// `.TARGET` from h's children just before handing it to the job runner,
// then substitutes them (and any other defined variable) into h's
// recipe text — internal/vars is the substitution engine spec §1 treats
// as an external collaborator, so this is where the recipe actually
// gets to consult it.
func (s *Scheduler) setPreDispatchVars(h graph.Handle) {
	n := s.Store.Node(h)
	scope := n.LocalScope(s.Global)
	scope.Set(".TARGET", n.Name)

	var allsrc, oodate []string
	for _, c := range n.Children {
		cn := s.Store.Node(c)
		if cn.Kind.Has(graph.Exec) || cn.Kind.Has(graph.Use) || cn.Kind.Has(graph.UseBefore) || cn.Kind.Has(graph.Invisible) {
			continue
		}
		allsrc = append(allsrc, cn.Name)
		if !cn.Mtime.Before(n.Mtime) || cn.Made == graph.MadeStatusMade {
			oodate = append(oodate, cn.Name)
		}
	}
	scope.Set(".ALLSRC", strings.Join(allsrc, " "))
	scope.Set(".OODATE", strings.Join(oodate, " "))
	scope.SetLocalIfUnset(".IMPSRC", "")
	scope.SetLocalIfUnset(".PREFIX", prefixOf(n.Name))

	if n.Kind.Has(graph.Join) {
		scope.Set(".TARGET", strings.Join(allsrc, " "))
	}

	for i, c := range n.Commands {
		n.Commands[i] = scope.Subst(c)
	}
}
