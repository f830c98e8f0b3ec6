package parse

import (
	"strings"

	"github.com/bmake-go/bmake/internal/cond"
	"github.com/bmake-go/bmake/internal/diag"
	"github.com/bmake-go/bmake/internal/lex"
)

// parseDirective implements spec §4.2 step 1: a line starting with '.' is
// classified, in priority order, as include / undef-export-unexport /
// info-warning-error / a conditional keyword / or (on INVALID) a `.for`
// loop opener. Any other dotted line containing ':', '!' or '=' is parsed
// as a dependency or assignment line (`.PHONY: clean`).
func (p *Parser) parseDirective(f *lex.Frame, ln lex.Line, trimmed string) error {
	rest := strings.TrimPrefix(trimmed, ".")
	word, arg := splitWord(rest)

	// inside a false branch only the conditional keywords are acted on.
	if !p.cond.Active() && !isCondKeyword(word) {
		return nil
	}

	switch word {
	case "include", "sinclude", "dinclude", "-include":
		return p.handleInclude(word, strings.TrimSpace(arg))

	case "undef":
		p.Vars.Set(strings.TrimSpace(arg), "")
		return nil
	case "export", "unexport":
		// delegated to the variable engine; nothing further for the core
		// graph/scheduler to do (spec §4.2 step 1).
		return nil

	case "info", "warning", "error":
		msg := p.Vars.Subst(strings.TrimSpace(arg))
		sev := diag.Info
		if word == "warning" {
			sev = diag.Warning
		} else if word == "error" {
			sev = diag.Fatal
		}
		p.Reporter.Report(diag.Diagnostic{Severity: sev, Pos: p.pos(f, ln), Msg: msg})
		if word == "error" {
			return &FatalTerminate{}
		}
		return nil
	}

	if isCondKeyword(word) {
		return p.handleConditional(f, ln, word, arg)
	}

	// not a recognized directive: try it as a `.for` loop opener.
	if word == "for" {
		return p.startForLoop(strings.TrimSpace(arg))
	}
	if word == "endfor" {
		return diag.Wrap("endfor without matching for", nil)
	}
	if strings.ContainsAny(rest, ":!=") {
		return p.parseAssignmentOrDependency(ln)
	}

	p.Reporter.Report(diag.Diagnostic{Severity: diag.Fatal, Pos: p.pos(f, ln), Msg: "unknown directive ." + word})
	return nil
}

func (p *Parser) pos(f *lex.Frame, ln lex.Line) diag.Pos {
	return diag.Pos{File: f.Name, Line: ln.FirstLine}
}

func splitWord(s string) (word, rest string) {
	s = strings.TrimLeft(s, " \t")
	i := 0
	for i < len(s) && s[i] != ' ' && s[i] != '\t' {
		i++
	}
	return s[:i], s[i:]
}

func isCondKeyword(w string) bool {
	switch w {
	case "if", "ifdef", "ifndef", "ifmake", "ifnmake", "elif", "elifdef", "elifndef", "else", "endif":
		return true
	}
	return false
}

// handleConditional evaluates the already-substituted condition (variable
// substitution and the make(1) conditional-expression grammar itself are
// the variable engine's job, out of core scope per spec §1) and feeds the
// PARSE/SKIP/INVALID decision back through cond.Stack.
func (p *Parser) handleConditional(f *lex.Frame, ln lex.Line, word, arg string) error {
	var value bool
	switch word {
	case "if", "elif":
		value = p.Vars.Subst(strings.TrimSpace(arg)) != "0" && strings.TrimSpace(arg) != ""
	case "ifdef", "elifdef":
		_, value = p.Vars.Get(strings.TrimSpace(arg))
	case "ifndef", "elifndef":
		_, ok := p.Vars.Get(strings.TrimSpace(arg))
		value = !ok
	case "ifmake", "ifnmake":
		// targets given on the command line; resolved by the CLI layer,
		// default to false in a standalone parse.
		value = word == "ifnmake"
	}

	condWord := word
	switch word {
	case "ifdef", "ifndef", "ifmake", "ifnmake":
		condWord = "if"
	case "elifdef", "elifndef":
		condWord = "elif"
	}

	result := p.cond.Eval(condWord, value)
	if result == cond.Invalid {
		p.Reporter.Report(diag.Diagnostic{Severity: diag.Fatal, Pos: p.pos(f, ln), Msg: "unbalanced ." + word})
	}
	return nil
}

// FatalTerminate signals `.error`'s "terminates the run" behavior
// (spec §4.2 step 1).
type FatalTerminate struct{}

func (e *FatalTerminate) Error() string { return "fatal .error directive" }
