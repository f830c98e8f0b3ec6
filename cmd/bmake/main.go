// Command bmake is the CLI surface (SPEC_FULL.md §6): it wires
// internal/parse, internal/expand, internal/oracle, internal/job and
// internal/sched together behind one github.com/spf13/cobra root
// command, following the single-root-command-with-pflag-backed-flags
// shape of cue-lang-cue/cmd/cue and jra3-linear-fuse/cmd.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/bmake-go/bmake/internal/config"
	"github.com/bmake-go/bmake/internal/diag"
	"github.com/bmake-go/bmake/internal/expand"
	"github.com/bmake-go/bmake/internal/graph"
	"github.com/bmake-go/bmake/internal/job"
	"github.com/bmake-go/bmake/internal/oracle"
	"github.com/bmake-go/bmake/internal/parse"
	"github.com/bmake-go/bmake/internal/sched"
	"github.com/bmake-go/bmake/internal/vars"
)

type options struct {
	file          string
	jobs          int
	keepGoing     bool
	dryRun        bool
	touch         bool
	question      bool
	ignoreErrors  bool
	silent        bool
	lint          bool
	debug         []string
	warnAsErrors  bool
	deleteOnError bool
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	var o options

	root := &cobra.Command{
		Use:           "bmake [targets...]",
		Short:         "a small bmake-lineage build engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, targets []string) error {
			return execute(cmd.Context(), o, targets)
		},
	}

	flags := root.Flags()
	flags.StringVarP(&o.file, "file", "f", "Makefile", "input file path")
	flags.IntVarP(&o.jobs, "jobs", "j", 1, "parallelism limit")
	flags.BoolVarP(&o.keepGoing, "keep-going", "k", false, "keep going after errors")
	flags.BoolVarP(&o.dryRun, "dry-run", "n", false, "print commands without running them")
	flags.BoolVarP(&o.touch, "touch", "t", false, "touch targets instead of running recipes")
	flags.BoolVarP(&o.question, "question", "q", false, "query mode: exit nonzero if anything is out of date")
	flags.BoolVarP(&o.ignoreErrors, "ignore-errors", "i", false, "ignore recipe failures")
	flags.BoolVarP(&o.silent, "silent", "s", false, "do not echo recipe lines")
	flags.BoolVar(&o.lint, "lint", false, "emit extra lint warnings")
	flags.StringSliceVarP(&o.debug, "debug", "d", nil, "comma-separated debug subsystem mask")
	flags.BoolVar(&o.warnAsErrors, "warnings-as-errors", false, "promote warnings to fatal errors")
	flags.BoolVar(&o.deleteOnError, "delete-on-error", true, "remove partial targets that fail to build")

	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		if ue, ok := err.(*usageError); ok {
			fmt.Fprintln(os.Stderr, "bmake:", ue.Error())
			return 2
		}
		fmt.Fprintln(os.Stderr, "bmake:", err)
		return 1
	}
	return lastExit
}

// lastExit lets execute hand back spec §6's exact exit code (0/1/2)
// through cobra's RunE, which only distinguishes error/no-error.
var lastExit int

type usageError struct{ msg string }

func (e *usageError) Error() string { return e.msg }

func execute(ctx context.Context, o options, targets []string) error {
	start := time.Now()

	if cfgPath := ".bmakerc.yaml"; fileExists(cfgPath) {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			lastExit = 2
			return &usageError{msg: "reading .bmakerc.yaml: " + err.Error()}
		}
		if o.jobs == 1 && cfg.Jobs > 0 {
			o.jobs = cfg.Jobs
		}
		if len(o.debug) == 0 {
			o.debug = cfg.ResolveDebug()
		}
	}

	global := vars.FromEnviron()
	global.Set("MAKEFLAGS", vars.MakeFlags(vars.Options{
		Jobs: o.jobs, KeepGoing: o.keepGoing, DryRun: o.dryRun, IgnoreErrors: o.ignoreErrors,
		Silent: o.silent, Touch: o.touch, Query: o.question, Lint: o.lint, Debug: o.debug,
	}))

	rep := diag.NewReporter(os.Stdout, os.Stderr, o.warnAsErrors)

	store := graph.NewStore()
	p := parse.New(store, global, rep)
	if err := p.ParseFile(o.file); err != nil {
		lastExit = 1
		return err
	}
	if rep.Fatals() > 0 {
		lastExit = 1
		return fmt.Errorf("%d error(s) while parsing %s", rep.Fatals(), o.file)
	}

	if o.lint {
		lintGraph(store, rep)
	}

	roots := resolveRoots(store, p, targets)
	if len(roots) == 0 {
		lastExit = 2
		return &usageError{msg: "no targets and no .MAIN defined"}
	}

	e := expand.New(store, global, p.SearchPath())
	mainHandle := e.Run(roots)

	o.jobs = maxInt(o.jobs, 1)
	if p.NotParallel() {
		o.jobs = 1
	}
	runner := job.NewRunner(o.jobs)
	runner.DryRun = o.dryRun
	runner.Silent = o.silent
	runner.IgnoreErrors = o.ignoreErrors
	runner.Touch = o.touch
	runner.DeleteOnError = o.deleteOnError
	runner.SingleShell = p.SingleShell()

	oc := oracle.New(store)
	s := sched.New(store, oc, runner, rep, global)
	s.KeepGoing = o.keepGoing
	s.Query = o.question

	if err := s.RunHook(ctx, ".BEGIN"); err != nil {
		rep.Report(diag.Diagnostic{Severity: diag.Warning, Msg: ".BEGIN hook failed", Err: err})
	}

	queryHit, runErr := s.Run(ctx, mainHandle)

	if s.Failed() {
		s.RunHook(ctx, ".ERROR")
	} else {
		s.RunHook(ctx, ".END")
	}

	for _, name := range targets {
		h, ok := store.Find(name)
		if !ok {
			continue
		}
		reportOutcome(rep, store, h)
	}

	fmt.Fprintf(os.Stdout, "bmake: finished in %s\n", humanize.RelTime(start, time.Now(), "", ""))

	switch {
	case o.question:
		if queryHit {
			lastExit = 1
		} else {
			lastExit = 0
		}
		return nil
	case runErr != nil:
		lastExit = 1
		return runErr
	default:
		lastExit = 0
		return nil
	}
}

func reportOutcome(rep *diag.Reporter, store *graph.Store, h graph.Handle) {
	n := store.Node(h)
	switch n.Made {
	case graph.UpToDate:
		rep.ReportOutcome(n.Name, diag.OutcomeUpToDate)
	case graph.MadeStatusMade:
		rep.ReportOutcome(n.Name, diag.OutcomeMade)
	case graph.ErrorStatus:
		rep.ReportOutcome(n.Name, diag.OutcomeErrored)
	case graph.Aborted:
		rep.ReportOutcome(n.Name, diag.OutcomeMissingPrereq)
	}
}

// resolveRoots maps CLI positional args to graph handles, falling back
// to `.MAIN`'s RHS list (spec §6: "empty means use .MAIN").
func resolveRoots(store *graph.Store, p *parse.Parser, targets []string) []graph.Handle {
	names := targets
	if len(names) == 0 {
		names = p.MainRoot()
	}
	var roots []graph.Handle
	for _, name := range names {
		if h, ok := store.Find(name); ok {
			roots = append(roots, h)
		}
	}
	return roots
}

// lintGraph emits the extra warnings spec §4.8 item 5 reserves for lint
// mode: targets with neither commands nor children are usually typos.
func lintGraph(store *graph.Store, rep *diag.Reporter) {
	for _, h := range store.Targets() {
		n := store.Node(h)
		if strings.HasPrefix(n.Name, ".") {
			continue
		}
		if len(n.Commands) == 0 && len(n.Children) == 0 {
			rep.Report(diag.Diagnostic{
				Severity: diag.Warning,
				Msg:      fmt.Sprintf("target %q has no commands and no prerequisites", n.Name),
			})
		}
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
