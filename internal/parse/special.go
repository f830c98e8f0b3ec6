package parse

import (
	"strings"

	"github.com/bmake-go/bmake/internal/diag"
	"github.com/bmake-go/bmake/internal/graph"
)

// Global flags a special-target line can set. These live on the Parser
// because they describe run-wide policy, not any one node (spec §4.2.2).
type Globals struct {
	DeleteOnError bool
	Ignore        bool
	Silent        bool
	MaxJobs       int // 0 means "unset"
	NullSuffix    string
	Suffixes      []string
}

// applySpecial implements spec §4.2.2's special-target table.
func (p *Parser) applySpecial(targetWords, sourceWords []string) error {
	p.closeGroup()
	p.group = p.group[:0]

	for _, name := range targetWords {
		if bit, ok := attrOnlySpecials[name]; ok {
			for _, src := range sourceWords {
				h := p.Store.Get(src)
				p.Store.Node(h).Kind |= bit
			}
			continue
		}
		if hookSpecials[name] {
			h := p.Store.Get(name)
			n := p.Store.Node(h)
			n.Kind |= graph.NotMain | graph.Special
			for _, src := range p.resolveSources(sourceWords) {
				p.Store.AddChild(h, src)
			}
			p.group = append(p.group, h)
			continue
		}
		if strings.HasPrefix(name, ".PATH.") {
			suffix := strings.TrimPrefix(name, ".PATH.")
			p.pathAddSuffix(suffix, sourceWords)
			continue
		}

		switch name {
		case ".DEFAULT":
			h := p.Store.Get(name)
			n := p.Store.Node(h)
			n.Kind |= graph.NotMain | graph.Transform
			n.Commands = nil
			p.group = append(p.group, h)

		case ".DELETE_ON_ERROR":
			p.Globals.DeleteOnError = true

		case ".IGNORE":
			if len(sourceWords) == 0 {
				p.Globals.Ignore = true
			} else {
				p.setAttrOnSources(sourceWords, graph.Ignore)
			}

		case ".SILENT":
			if len(sourceWords) == 0 {
				p.Globals.Silent = true
			} else {
				p.setAttrOnSources(sourceWords, graph.Silent)
			}

		case ".PRECIOUS":
			if len(sourceWords) == 0 {
				// global precious is modeled as an attribute applied to
				// every node known so far; nodes created after this
				// line do not get it.
				for _, h := range p.Store.Targets() {
					p.Store.Node(h).Kind |= graph.Precious
				}
			} else {
				p.setAttrOnSources(sourceWords, graph.Precious)
			}

		case ".MAIN":
			if len(p.mainRoot) == 0 {
				p.mainRoot = append([]string{}, sourceWords...)
			}

		case ".NOTPARALLEL", ".NO_PARALLEL":
			p.notParallel = true

		case ".SINGLESHELL":
			p.singleShell = true

		case ".SUFFIXES":
			if len(sourceWords) == 0 {
				p.Globals.Suffixes = nil
			} else {
				p.Globals.Suffixes = append(p.Globals.Suffixes, sourceWords...)
			}

		case ".NULL":
			if len(sourceWords) > 0 {
				p.Globals.NullSuffix = sourceWords[0]
			}

		case ".PATH":
			if len(sourceWords) == 0 {
				p.searchPath.Clear()
			} else {
				for _, d := range sourceWords {
					p.searchPath.Add(d)
				}
			}

		case ".INCLUDES", ".LIBS":
			// declares include/lib suffixes for the (out-of-core) suffix
			// search collaborator; nothing for the graph itself to do.

		case ".ORDER":
			chain := make([]graph.Handle, 0, len(sourceWords))
			for _, s := range sourceWords {
				chain = append(chain, p.Store.Get(s))
			}
			p.Store.OrderChain(chain)

		case ".WAIT":
			// `.WAIT` only has meaning as a source-list token (spec
			// §4.6); as a bare target line it is a no-op.

		case ".OBJDIR", ".SHELL", ".POSIX", ".MAKEFLAGS", ".MFLAGS":
			// configure external collaborators (object directory, shell
			// selection, POSIX mode, flag propagation) — out of core
			// scope per spec §1, intentionally a no-op here.

		default:
			return diag.Wrap("unhandled special target "+name, nil)
		}
	}
	return nil
}

func (p *Parser) setAttrOnSources(sources []string, bit graph.Kind) {
	for _, s := range sources {
		h := p.Store.Get(s)
		p.Store.Node(h).Kind |= bit
	}
}

func (p *Parser) pathAddSuffix(suffix string, dirs []string) {
	if len(dirs) == 0 {
		return
	}
	for _, d := range dirs {
		p.searchPath.AddSuffix(suffix, d)
	}
}

// closeGroup implements spec §4.2: closing the dependency group marks each
// target that received commands with HasCommands (already applied as
// commands are appended) and simply clears the active group.
func (p *Parser) closeGroup() {
	p.groupActive = false
}
