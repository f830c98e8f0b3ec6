package parse

import (
	"strings"

	"github.com/bmake-go/bmake/internal/lex"
	"github.com/bmake-go/bmake/internal/vars"
)

// forLoopState accumulates a `.for` loop body in RAW mode (no escape/
// comment processing — spec §4.1's RAW mode) until the matching `.endfor`,
// then the body is re-emitted once per iteration as a synthetic input
// frame, substituting the loop variables each time (spec §4.2 step 1).
type forLoopState struct {
	loopVars []string
	items    []string // flat list; len must be a multiple of len(loopVars)
	body     []string
	depth    int
}

// startForLoop parses "VAR [VAR...] in WORD WORD..." and begins RAW
// accumulation of the loop body.
func (p *Parser) startForLoop(arg string) error {
	inIdx := indexWord(arg, "in")
	if inIdx < 0 {
		return errForSyntax
	}
	loopVars := strings.Fields(arg[:inIdx])
	items := strings.Fields(arg[inIdx+2:])

	p.forLoop = &forLoopState{loopVars: loopVars, items: items, depth: 1}
	if top := p.includes.Top(); top != nil {
		top.Source.SetMode(lex.Raw)
	}
	return nil
}

func indexWord(s, word string) int {
	fields := strings.Fields(s)
	pos := 0
	for _, f := range fields {
		idx := strings.Index(s[pos:], f)
		start := pos + idx
		if f == word {
			return start
		}
		pos = start + len(f)
	}
	return -1
}

var errForSyntax = &forSyntaxError{}

type forSyntaxError struct{}

func (e *forSyntaxError) Error() string { return "malformed .for loop: expected 'VAR in LIST'" }

// feedForLoop accumulates or closes the loop body.
func (p *Parser) feedForLoop(f *lex.Frame, ln lex.Line) error {
	trimmed := strings.TrimLeft(ln.Text, " \t")
	switch {
	case strings.HasPrefix(trimmed, ".for "), trimmed == ".for":
		p.forLoop.depth++
	case strings.HasPrefix(trimmed, ".endfor"):
		p.forLoop.depth--
		if p.forLoop.depth == 0 {
			return p.finishForLoop(f)
		}
	}
	p.forLoop.body = append(p.forLoop.body, ln.Text)
	return nil
}

func (p *Parser) finishForLoop(f *lex.Frame) error {
	loop := p.forLoop
	p.forLoop = nil
	if top := p.includes.Top(); top != nil {
		top.Source.SetMode(lex.Normal)
	}

	n := len(loop.loopVars)
	if n == 0 || len(loop.items)%n != 0 {
		return errForSyntax
	}

	bodyText := strings.Join(loop.body, "\n")
	for start := 0; start < len(loop.items); start += n {
		scope := vars.NewScope(p.Vars)
		for i, name := range loop.loopVars {
			scope.Set(name, loop.items[start+i])
		}
		iteration := substituteLoopVars(bodyText, scope, loop.loopVars)

		saved := p.Vars
		p.Vars = scope
		if err := p.parseText(f.Name+":for", f.Path, iteration, true); err != nil {
			p.Vars = saved
			return err
		}
		p.Vars = saved
	}
	return nil
}

// substituteLoopVars replaces ${VAR}/$VAR occurrences of the loop
// variables only, leaving every other variable reference untouched so it
// is resolved normally when the iteration body is parsed.
func substituteLoopVars(body string, scope *vars.Scope, loopVars []string) string {
	out := body
	for _, v := range loopVars {
		val, _ := scope.Get(v)
		out = strings.ReplaceAll(out, "${"+v+"}", val)
		out = strings.ReplaceAll(out, "$"+v, val)
	}
	return out
}
