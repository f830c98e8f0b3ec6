package parse

import (
	"strings"

	"github.com/bmake-go/bmake/internal/diag"
	"github.com/bmake-go/bmake/internal/graph"
	"github.com/bmake-go/bmake/internal/lex"
)

// attrOnlySpecials maps a bare attribute-style special target (spec
// §4.2.2's table, the "sources receive the corresponding attribute bit"
// row) directly onto the Kind bit it sets on every source.
var attrOnlySpecials = map[string]graph.Kind{
	".PHONY":      graph.Phony,
	".NOPATH":     graph.NoPath,
	".NOTMAIN":    graph.NotMain,
	".OPTIONAL":   graph.Optional,
	".MAKE":       graph.Make,
	".MADE":       graph.Made,
	".META":       graph.Meta,
	".NOMETA":     graph.NoMeta,
	".NOMETA_CMP": graph.NoMetaCmp,
	".USE":        graph.Use,
	".USEBEFORE":  graph.UseBefore,
	".INVISIBLE":  graph.Invisible,
	".JOIN":       graph.Join,
	".EXEC":       graph.Exec,
}

// hookSpecials are pseudo-targets that become notmain+special hook nodes
// (spec §4.2.2's first table row).
var hookSpecials = map[string]bool{
	".BEGIN": true, ".END": true, ".INTERRUPT": true, ".STALE": true, ".ERROR": true,
}

func isSpecialTarget(name string) bool {
	if attrOnlySpecials[name] != 0 || hookSpecials[name] {
		return true
	}
	switch name {
	case ".DEFAULT", ".DELETE_ON_ERROR", ".IGNORE", ".SILENT", ".PRECIOUS",
		".MAIN", ".NOTPARALLEL", ".NO_PARALLEL", ".SINGLESHELL", ".SUFFIXES",
		".NULL", ".PATH", ".INCLUDES", ".LIBS", ".ORDER", ".WAIT",
		".OBJDIR", ".SHELL", ".POSIX", ".MAKEFLAGS", ".MFLAGS":
		return true
	}
	return strings.HasPrefix(name, ".PATH.")
}

// parseDependencyLine implements spec §4.2.2's grammar:
// `TARGETS OP [SOURCES] [; INLINE_CMD]`.
func (p *Parser) parseDependencyLine(ln lex.Line) error {
	text := p.Vars.Subst(ln.Text)

	opPos, opLen, op, err := findOperator(text)
	if err != nil {
		return err
	}

	targetWords := strings.Fields(text[:opPos])
	rest := text[opPos+opLen:]
	inline := ""
	if semi := strings.IndexByte(rest, ';'); semi >= 0 {
		inline = strings.TrimSpace(rest[semi+1:])
		rest = rest[:semi]
	}
	sourceWords := strings.Fields(rest)

	special := false
	mundane := false
	for _, t := range targetWords {
		if isSpecialTarget(t) {
			special = true
		} else {
			mundane = true
		}
	}
	if special && mundane {
		return diag.Wrap("special and mundane targets mixed on one line", nil)
	}
	if special {
		return p.applySpecial(targetWords, sourceWords)
	}

	return p.applyMundane(targetWords, op, sourceWords, inline, ln)
}

func findOperator(text string) (pos, length int, op graph.Kind, err error) {
	colonPos := strings.IndexByte(text, ':')
	bangPos := strings.IndexByte(text, '!')

	switch {
	case colonPos < 0 && bangPos < 0:
		return 0, 0, 0, diag.Wrap("expected ':' or '!' in dependency line", nil)
	case bangPos >= 0 && (colonPos < 0 || bangPos < colonPos):
		return bangPos, 1, graph.Force, nil
	default:
		if strings.HasPrefix(text[colonPos:], "::") {
			return colonPos, 2, graph.Doubledep, nil
		}
		return colonPos, 1, graph.Depends, nil
	}
}

func (p *Parser) applyMundane(targetWords []string, op graph.Kind, sourceWords []string, inline string, ln lex.Line) error {
	p.closeGroup()
	p.group = p.group[:0]

	children := p.resolveSources(sourceWords)

	for _, name := range targetWords {
		target, err := p.bindTarget(name, op, ln)
		if err != nil {
			return err
		}
		for _, c := range children {
			p.Store.AddChild(target, c)
		}
		p.group = append(p.group, target)
	}
	p.groupActive = len(p.group) > 0

	if inline != "" {
		for _, h := range p.group {
			n := p.Store.Node(h)
			n.Commands = append(n.Commands, inline)
			n.Kind |= graph.HasCommands
		}
	}
	return nil
}

// bindTarget resolves one target word to the graph.Handle that should
// actually receive children/commands for this line: the node itself for
// ':'/'!' lines, or a freshly minted cohort for every '::' line (spec
// §4.4: "each cohort holds children and commands").
func (p *Parser) bindTarget(name string, op graph.Kind, ln lex.Line) (graph.Handle, error) {
	h := p.Store.Get(name)
	n := p.Store.Node(h)
	if n.SourceFile == "" {
		n.SourceFile, n.SourceLine = p.curFile, ln.FirstLine
	}
	if err := n.SetOperator(op); err != nil {
		return h, err
	}
	if op == graph.Doubledep {
		return p.Store.NewCohort(h, op), nil
	}
	return h, nil
}

// resolveSources resolves each source word, materializing a fresh internal
// `.WAIT` barrier node for every literal ".WAIT" occurrence (spec §4.6:
// "each `.WAIT` child" — every occurrence is distinct, since two `.WAIT`s
// in the same list gate two different barriers).
func (p *Parser) resolveSources(words []string) []graph.Handle {
	out := make([]graph.Handle, 0, len(words))
	for _, w := range words {
		if w == ".WAIT" {
			h := p.Store.NewInternal(".WAIT")
			n := p.Store.Node(h)
			n.Kind |= graph.Wait | graph.Phony
			out = append(out, h)
			continue
		}
		out = append(out, p.Store.Get(w))
	}
	return out
}
