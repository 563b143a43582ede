package grammar

import (
	"fmt"
	"slices"

	"github.com/RoaringBitmap/roaring/v2"
)

// Graph is the derivation DAG over global feature indices. Indices below the
// primitive size are never children.
type Graph struct {
	primitive int
	children  map[uint32]*roaring.Bitmap
	parents   map[uint32]*roaring.Bitmap
}

// NewGraph creates an empty graph over a space whose first primitive indices are primitive.
func NewGraph(primitive int) *Graph {
	return &Graph{
		primitive: primitive,
		children:  make(map[uint32]*roaring.Bitmap),
		parents:   make(map[uint32]*roaring.Bitmap),
	}
}

// PrimitiveSize returns the number of primitive indices.
func (g *Graph) PrimitiveSize() int { return g.primitive }

// AddEdge records parent -> child. It fails with ErrPrimitiveChild if child is
// primitive and with ErrCycle if child already reaches parent. Adding an
// existing edge is a no-op.
func (g *Graph) AddEdge(parent, child int) error {
	if parent < 0 || child < 0 {
		return fmt.Errorf("%w: edge %d -> %d", ErrIndexOutOfRange, parent, child)
	}
	if child < g.primitive {
		return fmt.Errorf("%w: %d", ErrPrimitiveChild, child)
	}
	if parent == child || g.Reachable(child, parent) {
		return fmt.Errorf("%w: %d -> %d", ErrCycle, parent, child)
	}
	p, c := uint32(parent), uint32(child)
	bitmapFor(g.children, p).Add(c)
	bitmapFor(g.parents, c).Add(p)
	return nil
}

func bitmapFor(m map[uint32]*roaring.Bitmap, k uint32) *roaring.Bitmap {
	b, ok := m[k]
	if !ok {
		b = roaring.New()
		m[k] = b
	}
	return b
}

// HasEdge reports whether parent -> child is recorded.
func (g *Graph) HasEdge(parent, child int) bool {
	b, ok := g.children[uint32(parent)]
	return ok && child >= 0 && b.Contains(uint32(child))
}

// Children returns the children of i in ascending order.
func (g *Graph) Children(i int) []int { return toInts(g.children[uint32(i)]) }

// Parents returns the parents of i in ascending order.
func (g *Graph) Parents(i int) []int { return toInts(g.parents[uint32(i)]) }

// NumChildren returns the number of children of i.
func (g *Graph) NumChildren(i int) int {
	if b, ok := g.children[uint32(i)]; ok {
		return int(b.GetCardinality())
	}
	return 0
}

// IsDerived reports whether i has at least one parent.
func (g *Graph) IsDerived(i int) bool {
	b, ok := g.parents[uint32(i)]
	return ok && !b.IsEmpty()
}

func toInts(b *roaring.Bitmap) []int {
	if b == nil {
		return nil
	}
	out := make([]int, 0, b.GetCardinality())
	it := b.Iterator()
	for it.HasNext() {
		out = append(out, int(it.Next()))
	}
	return out
}

// Reachable reports whether to can be reached from from along child edges.
func (g *Graph) Reachable(from, to int) bool {
	if from == to {
		return true
	}
	visited := roaring.New()
	stack := []uint32{uint32(from)}
	target := uint32(to)
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !visited.CheckedAdd(n) {
			continue
		}
		b, ok := g.children[n]
		if !ok {
			continue
		}
		if b.Contains(target) {
			return true
		}
		it := b.Iterator()
		for it.HasNext() {
			if c := it.Next(); !visited.Contains(c) {
				stack = append(stack, c)
			}
		}
	}
	return false
}

// Nodes returns every index incident to an edge in ascending order.
func (g *Graph) Nodes() []int {
	all := roaring.New()
	for k, b := range g.children {
		all.Add(k)
		all.Or(b)
	}
	return toInts(all)
}

// Edges returns all edges sorted by parent then child.
func (g *Graph) Edges() [][2]int {
	parents := make([]uint32, 0, len(g.children))
	for k := range g.children {
		parents = append(parents, k)
	}
	slices.Sort(parents)
	var out [][2]int
	for _, p := range parents {
		for _, c := range toInts(g.children[p]) {
			out = append(out, [2]int{int(p), c})
		}
	}
	return out
}

// Visitation colors for depth-first traversal.
const (
	white = iota
	gray
	black
)

// HasCycle reports whether the graph contains a directed cycle.
func (g *Graph) HasCycle() bool {
	_, err := g.TopologicalOrder()
	return err != nil
}

// TopologicalOrder returns the nodes ordered so every parent precedes its
// children. It fails with ErrCycle if the graph is not acyclic.
func (g *Graph) TopologicalOrder() ([]int, error) {
	nodes := g.Nodes()
	state := make(map[uint32]int, len(nodes))
	order := make([]int, 0, len(nodes))

	var visit func(n uint32) error
	visit = func(n uint32) error {
		switch state[n] {
		case gray:
			return fmt.Errorf("%w: through %d", ErrCycle, n)
		case black:
			return nil
		}
		state[n] = gray
		if b, ok := g.children[n]; ok {
			it := b.Iterator()
			for it.HasNext() {
				if err := visit(it.Next()); err != nil {
					return err
				}
			}
		}
		state[n] = black
		order = append(order, int(n))
		return nil
	}

	// visit in descending order so the reversed post-order lists lower
	// indices first among independent nodes
	for k := len(nodes) - 1; k >= 0; k-- {
		if err := visit(uint32(nodes[k])); err != nil {
			return nil, err
		}
	}
	slices.Reverse(order)
	return order, nil
}

// GraphState is the persisted form of a Graph.
type GraphState struct {
	Primitive int                 `json:"primitive"`
	Children  map[uint32][]uint32 `json:"children,omitempty"`
}

// State returns the graph as child id lists.
func (g *Graph) State() *GraphState {
	s := &GraphState{Primitive: g.primitive, Children: make(map[uint32][]uint32, len(g.children))}
	for k, b := range g.children {
		s.Children[k] = b.ToArray()
	}
	return s
}

// RestoreGraph rebuilds a graph, re-validating every edge.
func RestoreGraph(s *GraphState) (*Graph, error) {
	if s == nil {
		return nil, fmt.Errorf("grammar: nil graph state")
	}
	g := NewGraph(s.Primitive)
	for _, e := range s.edges() {
		if err := g.AddEdge(e[0], e[1]); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func (s *GraphState) edges() [][2]int {
	parents := make([]uint32, 0, len(s.Children))
	for k := range s.Children {
		parents = append(parents, k)
	}
	slices.Sort(parents)
	var out [][2]int
	for _, p := range parents {
		for _, c := range s.Children[p] {
			out = append(out, [2]int{int(p), int(c)})
		}
	}
	return out
}
