package instgraph

import "sort"

// Graph is a directed def→use graph over instructions, keyed by
// cubin-relative PC. It is built once during parse and read-only afterwards.
type Graph struct {
	nodes    map[uint32]*Instruction
	incoming map[uint32]map[uint32]struct{}
	outgoing map[uint32]map[uint32]struct{}
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{
		nodes:    make(map[uint32]*Instruction),
		incoming: make(map[uint32]map[uint32]struct{}),
		outgoing: make(map[uint32]map[uint32]struct{}),
	}
}

// AddNode inserts inst keyed by its PC, replacing any previous node.
func (g *Graph) AddNode(inst *Instruction) {
	g.nodes[inst.PC] = inst
}

// AddEdge records a def→use edge from the instruction at from to the one at to.
func (g *Graph) AddEdge(from, to uint32) {
	in := g.incoming[to]
	if in == nil {
		in = make(map[uint32]struct{})
		g.incoming[to] = in
	}
	in[from] = struct{}{}

	out := g.outgoing[from]
	if out == nil {
		out = make(map[uint32]struct{})
		g.outgoing[from] = out
	}
	out[to] = struct{}{}
}

// Node returns the instruction at pc, or nil.
func (g *Graph) Node(pc uint32) *Instruction {
	return g.nodes[pc]
}

// HasNode reports whether an instruction exists at pc.
func (g *Graph) HasNode(pc uint32) bool {
	_, ok := g.nodes[pc]
	return ok
}

// Size returns the number of instructions in the graph.
func (g *Graph) Size() int {
	return len(g.nodes)
}

// PCs returns every instruction PC in ascending order.
func (g *Graph) PCs() []uint32 {
	pcs := make([]uint32, 0, len(g.nodes))
	for pc := range g.nodes {
		pcs = append(pcs, pc)
	}
	sort.Slice(pcs, func(i, j int) bool { return pcs[i] < pcs[j] })
	return pcs
}

// Incoming returns the PCs of definitions flowing into pc.
func (g *Graph) Incoming(pc uint32) map[uint32]struct{} {
	return g.incoming[pc]
}

// Outgoing returns the PCs of uses flowing out of pc.
func (g *Graph) Outgoing(pc uint32) map[uint32]struct{} {
	return g.outgoing[pc]
}
