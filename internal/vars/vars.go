// Package vars implements the variable engine (C3): get/set/append/subst on
// scoped variable contexts. spec.md treats full substitution grammar as an
// external collaborator; this package gives it a real, if deliberately
// small, implementation: plain `$X`/`${X}` substitution plus the handful of
// operators internal/parse needs for assignment lines (spec §4.2.1).
package vars

import (
	"os"
	"os/exec"
	"strings"
)

// Scope is one level of variable bindings (global, target-local "ENV", or a
// per-node scope set up for ALLSRC/OODATE/TARGET/IMPSRC/PREFIX before
// dispatch — spec §4.9). Scopes chain to a parent for lookups that miss.
type Scope struct {
	parent *Scope
	vals   map[string]string
}

func NewScope(parent *Scope) *Scope {
	return &Scope{parent: parent, vals: make(map[string]string)}
}

func (s *Scope) Get(name string) (string, bool) {
	for sc := s; sc != nil; sc = sc.parent {
		if v, ok := sc.vals[name]; ok {
			return v, true
		}
	}
	return "", false
}

func (s *Scope) Set(name, value string) { s.vals[name] = value }

// SetLocalIfUnset sets only if undefined in THIS scope (used by `?=`).
func (s *Scope) SetLocalIfUnset(name, value string) {
	if _, ok := s.vals[name]; !ok {
		s.vals[name] = value
	}
}

// Append implements `+=`: a single-space-separated append, creating an
// empty value first if absent (spec §4.2.1 table).
func (s *Scope) Append(name, value string) {
	if cur, ok := s.vals[name]; ok && cur != "" {
		s.vals[name] = cur + " " + value
	} else {
		s.vals[name] = value
	}
}

// ShellSet implements `!=`/`:sh=`: execute value as a shell command and set
// the variable to its trimmed stdout.
func (s *Scope) ShellSet(name, shellCmd string) error {
	out, err := exec.Command("sh", "-c", shellCmd).Output()
	if err != nil {
		return err
	}
	s.vals[name] = strings.TrimRight(string(out), "\n")
	return nil
}

// Subst performs `${NAME}`/`$(NAME)` substitution and, as in make, `$X`
// for a one-character name X. Undefined variables are left as the literal
// `$X`/`${NAME}` text, so that `:=` assignments can
// be self-referential without erroring (spec §4.2.1, the `:=` row).
func (s *Scope) Subst(input string) string {
	var out strings.Builder
	for i := 0; i < len(input); {
		if input[i] != '$' || i+1 >= len(input) {
			out.WriteByte(input[i])
			i++
			continue
		}
		if input[i+1] == '$' {
			out.WriteByte('$')
			i += 2
			continue
		}
		if input[i+1] == '{' || input[i+1] == '(' {
			closeCh := byte('}')
			if input[i+1] == '(' {
				closeCh = ')'
			}
			end := strings.IndexByte(input[i+2:], closeCh)
			if end < 0 {
				out.WriteString(input[i:])
				break
			}
			name := input[i+2 : i+2+end]
			if v, ok := s.Get(name); ok {
				out.WriteString(v)
			} else {
				out.WriteString(input[i : i+2+end+1])
			}
			i += 2 + end + 1
			continue
		}
		j := i + 2
		if !isNameByte(input[i+1], true) {
			out.WriteByte('$')
			i++
			continue
		}
		name := input[i+1 : j]
		if v, ok := s.Get(name); ok {
			out.WriteString(v)
		} else {
			out.WriteString(input[i:j])
		}
		i = j
	}
	return out.String()
}

func isNameByte(c byte, first bool) bool {
	if c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
		return true
	}
	if !first && c >= '0' && c <= '9' {
		return true
	}
	return false
}

// FromEnviron populates a fresh top-level ENV scope from the process
// environment (spec §6 "Environment").
func FromEnviron() *Scope {
	s := NewScope(nil)
	for _, kv := range os.Environ() {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) == 2 {
			s.vals[parts[0]] = parts[1]
		}
	}
	return s
}

// Options mirrors the CLI flags that round-trip into MAKEFLAGS for
// recursive `submake` invocations (SPEC_FULL.md §9).
type Options struct {
	Jobs            int
	KeepGoing       bool
	DryRun          bool
	IgnoreErrors    bool
	Silent          bool
	Touch           bool
	Query           bool
	Lint            bool
	Debug           []string
}

// MakeFlags recomposes MAKEFLAGS from the active option set, the way
// bmake's make.c does for child processes (SPEC_FULL.md §9).
func MakeFlags(o Options) string {
	var parts []string
	if o.KeepGoing {
		parts = append(parts, "-k")
	}
	if o.DryRun {
		parts = append(parts, "-n")
	}
	if o.IgnoreErrors {
		parts = append(parts, "-i")
	}
	if o.Silent {
		parts = append(parts, "-s")
	}
	if o.Touch {
		parts = append(parts, "-t")
	}
	if o.Query {
		parts = append(parts, "-q")
	}
	if o.Lint {
		parts = append(parts, "--lint")
	}
	if len(o.Debug) > 0 {
		parts = append(parts, "-d"+strings.Join(o.Debug, ","))
	}
	return strings.Join(parts, " ")
}
