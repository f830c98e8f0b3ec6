// Package graph implements the dependency graph store (C4): nodes, edges,
// cohorts, order predicates and the name index. It owns every node for the
// lifetime of a run; nodes are never freed mid-run, only ever appended to.
package graph

// Kind is the set of orthogonal attribute bits a node can carry. The first
// three (Depends, Force, Doubledep) are mutually exclusive and form the
// node's "operator class" — set at most once, see Node.SetOperator.
type Kind uint64

const (
	Depends Kind = 1 << iota // ':'
	Force                    // '!'
	Doubledep                // '::'

	Optional
	Use
	UseBefore
	Exec
	Ignore
	Precious
	Silent
	Make
	Join
	Made
	Special
	Invisible
	NotMain
	Phony
	NoPath
	Wait
	NoMeta
	Meta
	NoMetaCmp
	SubMake
	Transform
	Member
	Lib
	Archive
	HasCommands
	SaveCmds
	DepsFound
	Mark
)

// OperatorMask isolates the mutually exclusive operator-class bits.
const OperatorMask = Depends | Force | Doubledep

// propagatableMask is every bit except the operator class and the
// use/usebefore/transform template markers — the set of bits .USE expansion
// OR's into the node it is applied to (spec §4.6 step 5).
const propagatableMask = ^(OperatorMask | Use | UseBefore | Transform)

func (k Kind) Has(bit Kind) bool { return k&bit != 0 }

// Propagatable returns the subset of k that .USE/.USEBEFORE expansion
// copies onto the consuming node.
func (k Kind) Propagatable() Kind { return k & propagatableMask }

// State holds the per-run, mutation-heavy flag bits (distinct from the more
// static Kind bits).
type State uint32

const (
	Remake State = 1 << iota
	ChildMade
	ForceFlag
	DoneWait
	DoneOrder
	FromDepend
	DoneAllSrc
	Cycle
	DoneCycle
	Internal
)

func (s State) Has(bit State) bool { return s&bit != 0 }

// MadeStatus is the total order a node's completion state advances through
// within a single run. Comparisons (">=", "< DEFERRED", etc.) rely on the
// numeric ordering below, which must not be reordered.
type MadeStatus int

const (
	Unmade MadeStatus = iota
	Deferred
	Requested
	BeingMade
	MadeStatusMade
	UpToDate
	ErrorStatus
	Aborted
)

func (m MadeStatus) String() string {
	switch m {
	case Unmade:
		return "UNMADE"
	case Deferred:
		return "DEFERRED"
	case Requested:
		return "REQUESTED"
	case BeingMade:
		return "BEINGMADE"
	case MadeStatusMade:
		return "MADE"
	case UpToDate:
		return "UPTODATE"
	case ErrorStatus:
		return "ERROR"
	case Aborted:
		return "ABORTED"
	}
	return "UNKNOWN"
}

// AtLeastMade reports whether m has reached MADE or UPTODATE — the two
// "successfully finished" terminal states that out-of-date propagation and
// .ORDER gating treat as equivalent "done" states.
func (m MadeStatus) AtLeastMade() bool { return m >= MadeStatusMade && m != ErrorStatus && m != Aborted }
