package graph

import "golang.org/x/exp/slices"

// AddOrder records a non-structural `.ORDER pred succ` constraint: succ must
// not be scheduled while pred still needs building (spec §4.2.2, §8).
// Duplicate edges are ignored so repeated `.ORDER` chains stay idempotent.
func (s *Store) AddOrder(pred, succ Handle) {
	p := s.Node(pred)
	if !slices.Contains(p.OrderSucc, succ) {
		p.OrderSucc = append(p.OrderSucc, succ)
	}
	c := s.Node(succ)
	if !slices.Contains(c.OrderPred, pred) {
		c.OrderPred = append(c.OrderPred, pred)
	}
}

// OrderChain wires a linear `.ORDER a b c` sequence as a -> b -> c
// (spec §4.2.2's ".ORDER" row: "sources form a linear chain of order-edges").
func (s *Store) OrderChain(handles []Handle) {
	for i := 0; i+1 < len(handles); i++ {
		s.AddOrder(handles[i], handles[i+1])
	}
}

// OrderBlocks reports whether any predecessor of succ still needs building
// and has not reached MADE — the gating condition used both by
// schedule_child and by the .ORDER testable property in spec §8.
func (s *Store) OrderBlocks(succ Handle) bool {
	n := s.Node(succ)
	for _, pred := range n.OrderPred {
		p := s.Node(pred)
		if p.State.Has(Remake) && !p.Made.AtLeastMade() {
			return true
		}
	}
	return false
}
