package parse

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/bmake-go/bmake/internal/diag"
)

// handleInclude implements spec §4.3: `include "FILE"` searches the
// including file's directory, then the user include path, then the
// dir-search path, then a suffix-specific path, in that order; `include
// <FILE>` searches only the system include path. `sinclude`/`dinclude`/
// `-include` are the silent variants (a missing file is not fatal).
func (p *Parser) handleInclude(word, arg string) error {
	silent := word == "sinclude" || word == "dinclude" || word == "-include"

	quoted := strings.HasPrefix(arg, "\"") && strings.HasSuffix(arg, "\"")
	angled := strings.HasPrefix(arg, "<") && strings.HasSuffix(arg, ">")
	name := arg
	if quoted || angled {
		name = arg[1 : len(arg)-1]
	}
	name = p.Vars.Subst(name)

	path, found := p.resolveInclude(name, angled)
	if !found {
		if silent {
			return nil
		}
		return diag.Wrap("cannot find include file "+name, nil)
	}

	text, err := readFile(path)
	if err != nil {
		if silent {
			return nil
		}
		return diag.Wrap("reading include "+path, err)
	}

	return p.parseText(name, path, text, false)
}

func (p *Parser) resolveInclude(name string, systemOnly bool) (string, bool) {
	if filepath.IsAbs(name) {
		if exists(name) {
			return name, true
		}
		return "", false
	}

	var dirs []string
	if !systemOnly {
		if top := p.includes.Top(); top != nil {
			dirs = append(dirs, filepath.Dir(top.Path))
		}
	}
	dirs = append(dirs, p.searchIncludeDirs...)

	for _, d := range dirs {
		candidate := filepath.Join(d, name)
		if exists(candidate) {
			return candidate, true
		}
	}
	if !systemOnly {
		if path, ok := p.searchPath.Resolve(name, strings.TrimPrefix(filepath.Ext(name), ".")); ok {
			return path, true
		}
	}
	return "", false
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
