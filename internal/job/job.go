// Package job is the job runner collaborator (C9): it launches shell
// commands for a node's recipe, reports completion back to
// internal/sched over a channel, and owns the concurrency token pool
// (spec.md §5 "Resource — job tokens"). Command execution follows
// lenticularis39-mk's subprocess (recipe.go): locate the shell on PATH,
// run it, stream stdout/stderr straight through rather than capturing.
package job

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/sync/semaphore"

	"github.com/bmake-go/bmake/internal/graph"
)

// Result reports one node's completion back to the scheduler.
type Result struct {
	Handle graph.Handle
	Err    error
}

// Runner executes recipes and hands back completions asynchronously.
// The token pool is a weighted semaphore sized to the parallelism
// flag — SPEC_FULL.md §5 grounds this choice in distr1-distri's build
// package, which bounds concurrent package builds the same way.
type Runner struct {
	Tokens *semaphore.Weighted

	DryRun        bool
	Silent        bool
	IgnoreErrors  bool
	DeleteOnError bool
	Touch         bool
	SingleShell   bool

	completions chan Result
	inFlight    int
}

func NewRunner(parallelism int) *Runner {
	if parallelism < 1 {
		parallelism = 1
	}
	return &Runner{
		Tokens:      semaphore.NewWeighted(int64(parallelism)),
		completions: make(chan Result, 64),
	}
}

// TryAcquire attempts to obtain one job token without blocking — the
// dispatch loop in internal/sched breaks out when this fails rather
// than busy-waiting (spec §5).
func (r *Runner) TryAcquire() bool {
	return r.Tokens.TryAcquire(1)
}

func (r *Runner) Release() { r.Tokens.Release(1) }

// Completions is the channel internal/sched drains between dispatch
// rounds (spec §5 "Suspension points").
func (r *Runner) Completions() <-chan Result { return r.completions }

func (r *Runner) InFlight() int { return r.inFlight }

// Dispatch hands n's recipe off to a goroutine. The token passed in was
// already acquired by the caller; Dispatch releases it once the last
// command finishes, per spec §5: "tokens are returned on dispatch
// (handed off with the job) and reclaimed on completion."
func (r *Runner) Dispatch(ctx context.Context, h graph.Handle, n *graph.Node) {
	r.inFlight++
	go func() {
		err := r.runCommands(ctx, n)
		r.Release()
		r.completions <- Result{Handle: h, Err: err}
	}()
}

// Drain receives the next completion, decrementing the in-flight count.
func (r *Runner) Drain() Result {
	res := <-r.completions
	r.inFlight--
	return res
}

// RunSync executes n's recipe directly on the calling goroutine, bypassing
// the token pool and completion channel — used for the `.BEGIN`/`.END`/
// `.INTERRUPT`/`.ERROR` hooks, which run outside normal scheduling
// (SPEC_FULL.md §9, `internal/sched.Scheduler.RunHook`).
func (r *Runner) RunSync(ctx context.Context, n *graph.Node) error {
	return r.runCommands(ctx, n)
}

func (r *Runner) runCommands(ctx context.Context, n *graph.Node) error {
	if len(n.Commands) == 0 {
		return nil
	}
	if r.DeleteOnError && n.Path != "" {
		return r.withDeleteOnError(n.Path, func() error {
			return r.runCommandList(ctx, n)
		})
	}
	return r.runCommandList(ctx, n)
}

func (r *Runner) runCommandList(ctx context.Context, n *graph.Node) error {
	// `.SINGLESHELL`: run every recipe line through one shell process
	// instead of spawning a fresh one per line, so `cd`/shell variables
	// carry across lines (spec.md §4.2.2).
	if r.SingleShell && len(n.Commands) > 1 {
		return r.runScript(ctx, n.Commands)
	}
	for _, raw := range n.Commands {
		if err := r.runOne(ctx, raw); err != nil {
			return err
		}
	}
	return nil
}

// runScript joins commands into a single shell invocation, `set -e` so a
// failing line still aborts the recipe the way runOne's per-line error
// check does; a `-` prefixed line gets its own `|| true` to opt back out.
func (r *Runner) runScript(ctx context.Context, commands []string) error {
	script := []string{"set -e"}
	for _, raw := range commands {
		line, silent, ignore, always := splitPrefixes(raw, r.Silent, r.IgnoreErrors)
		if r.DryRun && !always {
			fmt.Fprintln(os.Stdout, line)
			continue
		}
		if !silent {
			fmt.Fprintln(os.Stdout, line)
		}
		if ignore {
			line += " || true"
		}
		script = append(script, line)
	}
	if r.DryRun || r.Touch || len(script) == 1 {
		return nil
	}

	shellPath, err := exec.LookPath("sh")
	if err != nil {
		return err
	}
	cmd := exec.CommandContext(ctx, shellPath, "-c", strings.Join(script, "\n"))
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// splitPrefixes strips the leading `@`/`-`/`+` recipe-line prefixes
// (silent, ignore-errors, always-run — bmake's Compat_RunCommand, carried
// over from original_source/parse.c since spec.md's distillation never
// pins this down and it is not excluded by any Non-goal) and reports the
// resolved flags, defaulting silent/ignore to the runner-wide flags.
func splitPrefixes(raw string, defaultSilent, defaultIgnore bool) (line string, silent, ignore, always bool) {
	line = raw
	silent, ignore = defaultSilent, defaultIgnore
	for len(line) > 0 {
		switch line[0] {
		case '@':
			silent = true
		case '-':
			ignore = true
		case '+':
			always = true
		default:
			return strings.TrimLeft(line, " \t"), silent, ignore, always
		}
		line = line[1:]
	}
	return line, silent, ignore, always
}

// runOne executes a single recipe line through `sh -c`, honoring its
// resolved prefix flags.
func (r *Runner) runOne(ctx context.Context, raw string) error {
	line, silent, ignore, always := splitPrefixes(raw, r.Silent, r.IgnoreErrors)
	if r.DryRun && !always {
		fmt.Fprintln(os.Stdout, line)
		return nil
	}
	if !silent {
		fmt.Fprintln(os.Stdout, line)
	}
	if r.Touch {
		return nil
	}

	shellPath, err := exec.LookPath("sh")
	if err != nil {
		return err
	}
	cmd := exec.CommandContext(ctx, shellPath, "-c", line)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		if ignore {
			return nil
		}
		return err
	}
	return nil
}

// withDeleteOnError removes path if fn fails, matching `.DELETE_ON_ERROR`
// (spec §4.2.2's special-target table): the recipe writes path directly
// through the shell, so there is no intermediate artifact for this
// runner to stage or rename — only the remove-on-failure half applies.
func (r *Runner) withDeleteOnError(path string, fn func() error) error {
	runErr := fn()
	if runErr != nil {
		os.Remove(path)
	}
	return runErr
}
