package parse

import (
	"strings"

	"github.com/bmake-go/bmake/internal/lex"
)

// assignOp identifies which of the spec §4.2.1 table's six forms matched.
type assignOp int

const (
	opNone assignOp = iota
	opSet           // '='
	opAppend        // '+='
	opSetIfUnset    // '?='
	opSubstSet      // ':='
	opShell         // '!=' or ':sh='
)

// findAssignment scans line for a top-level assignment operator, respecting
// nesting of '(' and '{' so `$(X=Y)` inside a dependency line's expansion
// is never mistaken for an assignment (spec §4.2.1: "The search for the
// operator respects nesting of ( { so $(X=Y) is not confused for an
// assignment"). The first space/tab after the name tentatively ends the
// name, but a later operator character pulls the name end back — handled
// here by always re-deriving name from the operator's position, not from
// the first whitespace run.
func findAssignment(line string) (name string, op assignOp, rhs string, ok bool) {
	depth := 0
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '(', '{':
			depth++
		case ')', '}':
			if depth > 0 {
				depth--
			}
		case '=':
			if depth != 0 {
				continue
			}
			if left := strings.TrimRight(line[:i], " \t"); strings.HasSuffix(left, ":sh") {
				name = strings.TrimSpace(left[:len(left)-3])
				return name, opShell, strings.TrimSpace(line[i+1:]), true
			}
			opStart := i
			var o assignOp = opSet
			if i > 0 {
				switch line[i-1] {
				case '+':
					opStart, o = i-1, opAppend
				case '?':
					opStart, o = i-1, opSetIfUnset
				case ':':
					opStart, o = i-1, opSubstSet
				case '!':
					opStart, o = i-1, opShell
				}
			}
			name = strings.TrimSpace(line[:opStart])
			if name == "" || !isPlainName(name) {
				return "", opNone, "", false
			}
			return name, o, strings.TrimSpace(line[i+1:]), true
		}
	}
	return "", opNone, "", false
}

// isPlainName rejects matches where "name" actually contains a dependency
// colon (`foo: bar=baz`) or other punctuation that means this isn't really
// an assignment line.
func isPlainName(s string) bool {
	if strings.ContainsAny(s, ":\t\n") {
		return false
	}
	fields := strings.Fields(s)
	return len(fields) == 1
}

// parseAssignmentOrDependency implements spec §4.2 steps 3-4: try a
// variable assignment first (closing any open dependency group before
// evaluating it); otherwise it's a dependency line, parsed after full
// variable substitution.
func (p *Parser) parseAssignmentOrDependency(ln lex.Line) error {
	if name, op, rhs, ok := findAssignment(ln.Text); ok {
		p.closeGroup()
		return p.executeAssignment(name, op, rhs)
	}
	return p.parseDependencyLine(ln)
}

func (p *Parser) executeAssignment(name string, op assignOp, rhs string) error {
	switch op {
	case opSet:
		p.Vars.Set(name, p.Vars.Subst(rhs))
	case opAppend:
		p.Vars.Append(name, p.Vars.Subst(rhs))
	case opSetIfUnset:
		p.Vars.SetLocalIfUnset(name, p.Vars.Subst(rhs))
	case opSubstSet:
		p.Vars.Set(name, p.Vars.Subst(rhs))
	case opShell:
		if err := p.Vars.ShellSet(name, p.Vars.Subst(rhs)); err != nil {
			return err
		}
	}
	p.onAssignmentSideEffect(name)
	return nil
}

// onAssignmentSideEffect implements the handful of names spec §4.2.1 calls
// out as triggering side effects on assignment.
func (p *Parser) onAssignmentSideEffect(name string) {
	switch name {
	case ".CURDIR":
		// reinitialize the "current directory" cache: nothing else in
		// this core caches it, so this is a no-op hook point.
	case "MAKEFLAGS", "MFLAGS":
		// cmd/bmake composes MAKEFLAGS once, before parsing, via
		// internal/vars.MakeFlags; a later assignment is not re-exported.
	case "MAKE_JOB_PREFIX":
		// no job-prefix support: internal/job.Runner does not read it.
	case ".MAKE.EXPORTED":
		// exporting additional names is the variable engine's concern;
		// out of core scope (spec §1).
	}
}
