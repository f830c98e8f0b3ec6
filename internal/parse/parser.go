// Package parse implements the parser (C5): it classifies each logical
// line into directive, variable assignment, dependency line, shell command,
// or include, and drives internal/graph via primitives as it goes
// (spec.md §4.2). The state-function shape (push tokens onto a buffer,
// dispatch on the line's decisive character) follows the approach in
// lenticularis39-mk/parse.go; here the buffer holds whole logical lines
// rather than lexer tokens, since bmake's grammar decides a line's kind
// from its first rune rather than needing a multi-token lookahead parse.
package parse

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/bmake-go/bmake/internal/cond"
	"github.com/bmake-go/bmake/internal/diag"
	"github.com/bmake-go/bmake/internal/graph"
	"github.com/bmake-go/bmake/internal/lex"
	"github.com/bmake-go/bmake/internal/searchpath"
	"github.com/bmake-go/bmake/internal/vars"
)

// Parser holds the global state a single run's parse needs: the include
// stack, the conditional nesting, the active variable scope, the graph
// being built, and the "current dependency group" that shell command lines
// attach to (spec §4.2: "Dependency group").
type Parser struct {
	Store    *graph.Store
	Vars     *vars.Scope
	Reporter *diag.Reporter
	Globals  Globals

	includes lex.Stack
	cond     cond.Stack
	searchPath *searchpath.Path

	group       []graph.Handle // current dependency group targets
	groupActive bool

	mainRoot    []string // `.MAIN`'s RHS, used when no CLI targets given
	singleShell bool
	notParallel bool

	curFile string // name of the frame currently being dispatched

	forLoop *forLoopState

	searchIncludeDirs []string // user include path for `.include <...>`
}

func New(store *graph.Store, sc *vars.Scope, rep *diag.Reporter) *Parser {
	return &Parser{Store: store, Vars: sc, Reporter: rep, searchPath: searchpath.New()}
}

// SingleShell reports whether `.SINGLESHELL` appeared.
func (p *Parser) SingleShell() bool { return p.singleShell }

// NotParallel reports whether `.NOTPARALLEL`/`.NO_PARALLEL` appeared.
func (p *Parser) NotParallel() bool { return p.notParallel }

// MainRoot returns `.MAIN`'s RHS target list, if any.
func (p *Parser) MainRoot() []string { return p.mainRoot }

// SearchPath exposes the accumulated `.PATH` configuration.
func (p *Parser) SearchPath() *searchpath.Path { return p.searchPath }

// ParseFile opens path, reads it whole, and parses it as a top-level
// mkfile.
func (p *Parser) ParseFile(path string) error {
	text, err := readFile(path)
	if err != nil {
		return diag.Wrap("reading "+path, err)
	}
	return p.parseText(path, path, text, false)
}

func (p *Parser) parseText(name, path, text string, fromFor bool) error {
	abs, _ := filepath.Abs(path)
	frame := &lex.Frame{
		Source:        lex.NewSource(name, text, lex.Normal),
		Name:          name,
		Path:          abs,
		CondDepthOpen: p.cond.Depth(),
		FromForLoop:   fromFor,
	}
	p.includes.Push(frame)
	p.setParseDirVars(frame)
	defer func() {
		popped := p.includes.Pop()
		if popped != nil && popped.CondDepthOpen != p.cond.Depth() {
			p.Reporter.Report(diag.Diagnostic{
				Severity: diag.Fatal,
				Pos:      diag.Pos{File: name},
				Msg:      "unbalanced if/endif across include boundary",
			})
		}
		if top := p.includes.Top(); top != nil {
			p.setParseDirVars(top)
		}
	}()

	for {
		ln, ok, err := frame.Source.Line()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		if err := p.dispatchLine(frame, ln); err != nil {
			return err
		}
	}
	// a trailing synthetic newline flushes any pending recipe group
	// (the parser has nothing left to look ahead at, so close now).
	p.closeGroup()
	return nil
}

func (p *Parser) setParseDirVars(f *lex.Frame) {
	p.Vars.Set(".PARSEFILE", filepath.Base(f.Path))
	p.Vars.Set(".PARSEDIR", filepath.Dir(f.Path))
	if parent := p.includedFromFrame(); parent != nil {
		p.Vars.Set(".INCLUDEDFROMFILE", filepath.Base(parent.Path))
		p.Vars.Set(".INCLUDEDFROMDIR", filepath.Dir(parent.Path))
	}
}

// includedFromFrame returns the nearest non-for-loop frame enclosing the
// current top frame, i.e. "the file that included the current file".
func (p *Parser) includedFromFrame() *lex.Frame {
	return p.includes.NearestRealFileBelowTop()
}

func (p *Parser) dispatchLine(f *lex.Frame, ln lex.Line) error {
	p.curFile = f.Name
	if p.forLoop != nil {
		return p.feedForLoop(f, ln)
	}

	trimmed := strings.TrimLeft(ln.Text, " \t")
	isDirective := strings.HasPrefix(trimmed, ".")

	// SKIP mode (spec C2): a false conditional branch returns only
	// directive lines to the parser; everything else is swallowed so
	// .if/.elif/.else/.endif nesting still tracks correctly.
	if !isDirective && !p.cond.Active() {
		return nil
	}

	switch {
	case ln.IsCommand:
		return p.parseCommandLine(ln)
	case isDirective:
		return p.parseDirective(f, ln, trimmed)
	case strings.TrimSpace(ln.Text) == "":
		return nil
	default:
		return p.parseAssignmentOrDependency(ln)
	}
}

// parseCommandLine implements spec §4.2 step 2: a TAB-led line attaches to
// every target in the current group.
func (p *Parser) parseCommandLine(ln lex.Line) error {
	if !p.groupActive {
		return diag.Wrap("command with no target", nil)
	}
	cmd := strings.TrimPrefix(ln.Text, "\t")
	for _, h := range p.group {
		n := p.Store.Node(h)
		n.Commands = append(n.Commands, cmd)
		n.Kind |= graph.HasCommands
	}
	return nil
}

func readFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	return string(data), err
}
