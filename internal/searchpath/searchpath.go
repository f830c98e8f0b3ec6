// Package searchpath is a minimal directory/path-search collaborator
// backing `.PATH`/`.PATH.<suffix>`/`.NOPATH` (spec.md §1 places full
// suffix-rule/path search out of scope; SPEC_FULL.md §9 keeps a real but
// small version so `.PATH` parsing has somewhere to land).
package searchpath

import "os"

// Path holds the plain `.PATH` directories plus any `.PATH.<suffix>`
// overrides. bmake's make.c searches the plain list before any
// suffix-specific list (SPEC_FULL.md §9); Resolve preserves that order.
type Path struct {
	Plain    []string
	BySuffix map[string][]string
}

func New() *Path {
	return &Path{BySuffix: make(map[string][]string)}
}

func (p *Path) Add(dir string) { p.Plain = append(p.Plain, dir) }

func (p *Path) AddSuffix(suffix, dir string) {
	p.BySuffix[suffix] = append(p.BySuffix[suffix], dir)
}

// Clear empties every directory list — `.PATH` with no sources (spec
// §4.2.2's `.PATH` row: "empty sources = clear").
func (p *Path) Clear() {
	p.Plain = nil
	p.BySuffix = make(map[string][]string)
}

// Resolve finds name in the plain path, then in suffix's specific path.
func (p *Path) Resolve(name, suffix string) (string, bool) {
	for _, dir := range p.Plain {
		if candidate := dir + "/" + name; exists(candidate) {
			return candidate, true
		}
	}
	for _, dir := range p.BySuffix[suffix] {
		if candidate := dir + "/" + name; exists(candidate) {
			return candidate, true
		}
	}
	return "", false
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
