package instgraph

import "sort"

// LoadDataType infers the access kind of the load at pc by walking the uses
// of its destination registers breadth-first and taking the first concrete
// kind found. Returns the zero AccessKind when nothing downstream is typed.
func LoadDataType(pc uint32, g *Graph) AccessKind {
	return walkDataType(pc, g, g.Outgoing)
}

// StoreDataType infers the access kind of the store at pc by walking the
// definitions of its source registers breadth-first.
func StoreDataType(pc uint32, g *Graph) AccessKind {
	return walkDataType(pc, g, g.Incoming)
}

// walkDataType is a BFS from pc over next-edges. Neighbors are visited in
// ascending PC order so inference is deterministic.
func walkDataType(pc uint32, g *Graph, next func(uint32) map[uint32]struct{}) AccessKind {
	visited := map[uint32]struct{}{pc: {}}
	frontier := []uint32{pc}

	for len(frontier) > 0 {
		var level []uint32
		for _, cur := range frontier {
			for n := range next(cur) {
				if _, seen := visited[n]; seen {
					continue
				}
				visited[n] = struct{}{}
				level = append(level, n)
			}
		}
		sort.Slice(level, func(i, j int) bool { return level[i] < level[j] })

		for _, n := range level {
			inst := g.Node(n)
			if inst != nil && inst.Access != nil && !inst.Access.Unknown() {
				return *inst.Access
			}
		}
		frontier = level
	}

	return AccessKind{}
}
