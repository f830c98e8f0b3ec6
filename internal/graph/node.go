package graph

import (
	"time"

	"github.com/google/uuid"

	"github.com/bmake-go/bmake/internal/vars"
)

// Handle is a stable reference to a Node, valid for the lifetime of the
// Store that produced it. Using handles instead of raw pointers means the
// graph is a single owned arena with no cross-referential cycle-freeing
// problem (spec.md §9, "Node identity and ownership").
type Handle int

// Invalid is the sentinel Handle meaning "no node": Store hands out real
// handles starting at index 0, so the sentinel must live outside that
// range rather than at it.
const Invalid Handle = -1

// Edge is a directed parent->child arc. order_pred/order_succ edges and
// implicit-parent links are stored as plain Handle slices on Node rather
// than as Edge values, since they never carry per-edge data.
type Edge struct {
	Child Handle
}

// Node is the central entity of the dependency graph (spec.md §3).
type Node struct {
	handle Handle

	Name  string // current (possibly expanded) name
	UName string // original literal name, pre-expansion (spec §9 open question)

	Kind  Kind
	State State
	Made  MadeStatus

	Children        []Handle
	Parents         []Handle
	ImplicitParents []Handle
	OrderPred       []Handle
	OrderSucc       []Handle

	// Cohorts: only meaningful when Kind.Has(Doubledep). The node holding
	// this slice is the centurion; cohorts are separate internal nodes.
	Cohorts       []Handle
	UnmadeCohorts int
	Centurion     Handle // Invalid unless this node IS a cohort

	Mtime time.Time
	Cmgn  Handle // child with the greatest mtime seen so far, or Invalid
	Path  string

	// Locals holds the per-node variable scope (.TARGET, .ALLSRC, .OODATE,
	// .ARCHIVE, .MEMBER, .IMPSRC, .PREFIX — spec §4.6, §4.9) chained to the
	// global scope so lookups that miss fall through to it. Populated lazily
	// by internal/expand; nil until then.
	Locals *vars.Scope

	Commands []string
	Checked  uint64 // epoch stamp, compared with internal/sched's epoch counter

	Unmade int // count of children with Made < MadeStatusMade

	SourceFile string
	SourceLine int

	// diagID is a human-opaque identifier (a uuid prefix) given to every
	// node at creation. Nothing in this module reads it; cohort "#001"
	// suffixes come from cohortSuffix.
	diagID string
}

func (n *Node) Handle() Handle { return n.handle }

// Store owns every Node for one run. Nodes are created on first reference
// and never destroyed (spec §3 "Lifecycle").
type Store struct {
	nodes []Node
	byName map[string]Handle
}

func NewStore() *Store {
	return &Store{byName: make(map[string]Handle)}
}

// Get finds or creates the node named name.
func (s *Store) Get(name string) Handle {
	if h, ok := s.byName[name]; ok {
		return h
	}
	return s.newAddressable(name)
}

// Find looks up name without creating it.
func (s *Store) Find(name string) (Handle, bool) {
	h, ok := s.byName[name]
	return h, ok
}

func (s *Store) newAddressable(name string) Handle {
	h := s.alloc(name)
	s.byName[name] = h
	return h
}

// NewInternal allocates a node that is not addressable by name — used for
// cohorts and synthetic .WAIT/.MAIN nodes (spec §4.4).
func (s *Store) NewInternal(diagLabel string) Handle {
	h := s.alloc(diagLabel)
	s.nodes[h].State |= Internal
	return h
}

func (s *Store) alloc(name string) Handle {
	h := Handle(len(s.nodes))
	s.nodes = append(s.nodes, Node{
		handle:    h,
		Name:      name,
		UName:     name,
		Cmgn:      Invalid,
		Centurion: Invalid,
		diagID:    uuid.NewString()[:8],
	})
	return h
}

func (s *Store) Node(h Handle) *Node { return &s.nodes[h] }

// LocalScope returns n's per-node variable scope, creating it chained to
// global on first use.
func (n *Node) LocalScope(global *vars.Scope) *vars.Scope {
	if n.Locals == nil {
		n.Locals = vars.NewScope(global)
	}
	return n.Locals
}

// Targets returns every addressable (non-internal) node handle.
func (s *Store) Targets() []Handle {
	out := make([]Handle, 0, len(s.byName))
	for _, h := range s.byName {
		out = append(out, h)
	}
	return out
}

func (s *Store) Len() int { return len(s.nodes) }

// AddChild records parent->child and, unless parent is a Special
// pseudo-target, the reciprocal child->parent link (spec §3 invariant 1).
func (s *Store) AddChild(parent, child Handle) {
	p := s.Node(parent)
	p.Children = append(p.Children, child)
	p.Unmade++
	if !p.Kind.Has(Special) {
		c := s.Node(child)
		c.Parents = append(c.Parents, parent)
	}
}

// RemoveChild undoes one parent->child edge (and its reciprocal), used by
// internal/expand when a `.USE`/`.USEBEFORE` template has been folded into
// its consumer and the template edge no longer belongs in the graph
// (spec §4.6 step 5: "Remove the edge N → U. Decrement N.unmade.").
func (s *Store) RemoveChild(parent, child Handle) {
	p := s.Node(parent)
	for i, ch := range p.Children {
		if ch == child {
			p.Children = append(p.Children[:i], p.Children[i+1:]...)
			break
		}
	}
	p.Unmade--
	if !p.Kind.Has(Special) {
		c := s.Node(child)
		for i, ph := range c.Parents {
			if ph == parent {
				c.Parents = append(c.Parents[:i], c.Parents[i+1:]...)
				break
			}
		}
	}
}

// NewCohort creates a fresh internal node sharing every propagatable bit
// with centurion, linked back via Centurion, per spec §4.4.
func (s *Store) NewCohort(centurion Handle, op Kind) Handle {
	c := s.Node(centurion)
	seq := len(c.Cohorts) + 1
	label := c.Name + cohortSuffix(seq)
	h := s.NewInternal(label)
	cohort := s.Node(h)
	cohort.Kind = c.Kind.Propagatable() | op | Invisible
	cohort.Centurion = centurion
	cohort.Name = label
	cohort.UName = label
	c.Cohorts = append(c.Cohorts, h)
	c.UnmadeCohorts++
	return h
}

func cohortSuffix(seq int) string {
	const digits = "0123456789"
	b := [3]byte{'0', '0', '0'}
	for i := 2; i >= 0 && seq > 0; i-- {
		b[i] = digits[seq%10]
		seq /= 10
	}
	return "#" + string(b[:])
}

// SetOperator OR's op into n's operator class, enforcing spec §3's
// invariant that the class is set at most once and later lines must
// match or be Doubledep.
func (n *Node) SetOperator(op Kind) error {
	existing := n.Kind & OperatorMask
	if existing == 0 {
		n.Kind |= op
		return nil
	}
	if existing == op || op == Doubledep || existing == Doubledep {
		n.Kind |= op
		return nil
	}
	return &OperatorConflictError{Name: n.Name, Existing: existing, New: op}
}

type OperatorConflictError struct {
	Name             string
	Existing, New    Kind
}

func (e *OperatorConflictError) Error() string {
	return "inconsistent operator for target " + e.Name
}

// UpdateCmgn replaces Cmgn only when candidate's mtime strictly exceeds the
// current one (spec §3 invariant: "cmgn is monotonically updated").
func (s *Store) UpdateCmgn(parent, candidate Handle) {
	p := s.Node(parent)
	cand := s.Node(candidate)
	if p.Cmgn == Invalid {
		p.Cmgn = candidate
		return
	}
	if cand.Mtime.After(s.Node(p.Cmgn).Mtime) {
		p.Cmgn = candidate
	}
}
