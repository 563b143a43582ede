package grammar

import (
	"fmt"

	"github.com/bits-and-blooms/bitset"

	"github.com/cmunell/featurespace/data"
	"github.com/cmunell/featurespace/featureset"
)

// ExpanderState is the persisted form of an Expander. Child generators are
// persisted with the feature set they were added to.
type ExpanderState struct {
	Primitive int         `json:"primitive"`
	Threshold float64     `json:"threshold"`
	Expanded  []uint      `json:"expanded,omitempty"`
	Nodes     []Node      `json:"nodes,omitempty"`
	Graph     *GraphState `json:"graph"`
	Rules     []Spec      `json:"rules,omitempty"`
}

// State returns the expander's persisted form.
func (x *Expander) State() *ExpanderState {
	s := &ExpanderState{
		Primitive: x.primitive,
		Threshold: x.threshold,
		Nodes:     x.Nodes(),
		Graph:     x.graph.State(),
		Expanded:  make([]uint, 0, x.expanded.Count()),
	}
	for i, ok := x.expanded.NextSet(0); ok; i, ok = x.expanded.NextSet(i + 1) {
		s.Expanded = append(s.Expanded, i)
	}
	for _, r := range x.rules {
		s.Rules = append(s.Rules, SpecOf(r))
	}
	return s
}

// RestoreExpander rebuilds an expander over a restored feature set. Rules are
// created through reg (the default registry if nil). init may be nil if no
// further expansion is intended.
func RestoreExpander(s *ExpanderState, fs *featureset.FeatureSet, reg *Registry, init *data.Dataset, opts ...Option) (*Expander, error) {
	if s == nil {
		return nil, fmt.Errorf("grammar: nil expander state")
	}
	if reg == nil {
		reg = DefaultRegistry(nil)
	}
	rules := make([]Rule, 0, len(s.Rules))
	for _, spec := range s.Rules {
		r, err := reg.FromSpec(spec)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	if s.Primitive > fs.Size() {
		return nil, fmt.Errorf("grammar: primitive size %d exceeds feature set size %d", s.Primitive, fs.Size())
	}

	x := NewExpander(fs, rules, init, s.Threshold, opts...)
	x.primitive = s.Primitive
	if s.Graph != nil {
		g, err := RestoreGraph(s.Graph)
		if err != nil {
			return nil, err
		}
		if g.PrimitiveSize() != s.Primitive {
			return nil, fmt.Errorf("grammar: graph primitive size %d, want %d", g.PrimitiveSize(), s.Primitive)
		}
		x.graph = g
	} else {
		x.graph = NewGraph(s.Primitive)
	}
	x.expanded = bitset.New(uint(fs.Size()))
	for _, i := range s.Expanded {
		x.expanded.Set(i)
	}
	for _, n := range s.Nodes {
		r, ok := fs.Range(n.Child)
		if !ok || r != n.Range {
			return nil, fmt.Errorf("grammar: node child %q missing or moved", n.Child)
		}
	}
	x.nodes = append([]Node(nil), s.Nodes...)
	return x, nil
}
