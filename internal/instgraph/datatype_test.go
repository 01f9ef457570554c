package instgraph

import (
	"testing"

	"redlens/internal/canon"
)

func kindF32() *AccessKind {
	return &AccessKind{DataType: canon.TypeFloat, VecSize: 32, UnitSize: 32}
}

func kindS32() *AccessKind {
	return &AccessKind{DataType: canon.TypeInteger, VecSize: 32, UnitSize: 32}
}

func addInst(g *Graph, pc uint32, op string, access *AccessKind) {
	g.AddNode(&Instruction{PC: pc, Op: op, Predicate: -1, Access: access})
}

func TestLoadDataType_DirectUser(t *testing.T) {
	// LDG → STG.E.F32: the load's user is typed.
	g := NewGraph()
	addInst(g, 0x00, "LDG.E", nil)
	addInst(g, 0x10, "STG.E.F32", kindF32())
	g.AddEdge(0x00, 0x10)

	got := LoadDataType(0x00, g)
	if got.DataType != canon.TypeFloat {
		t.Errorf("data type = %v, want FLOAT", got.DataType)
	}
}

func TestLoadDataType_Transitive(t *testing.T) {
	// LDG → IMAD → STG.S32: type two hops away.
	g := NewGraph()
	addInst(g, 0x00, "LDG.E", nil)
	addInst(g, 0x10, "IMAD", nil)
	addInst(g, 0x20, "STG.E.S32", kindS32())
	g.AddEdge(0x00, 0x10)
	g.AddEdge(0x10, 0x20)

	got := LoadDataType(0x00, g)
	if got.DataType != canon.TypeInteger {
		t.Errorf("data type = %v, want INTEGER", got.DataType)
	}
}

func TestLoadDataType_BFSPrefersNearest(t *testing.T) {
	// A one-hop integer user wins over a two-hop float user.
	g := NewGraph()
	addInst(g, 0x00, "LDG.E", nil)
	addInst(g, 0x10, "MOV", nil)
	addInst(g, 0x20, "STG.E.S32", kindS32())
	addInst(g, 0x30, "STG.E.F32", kindF32())
	g.AddEdge(0x00, 0x10)
	g.AddEdge(0x00, 0x20)
	g.AddEdge(0x10, 0x30)

	got := LoadDataType(0x00, g)
	if got.DataType != canon.TypeInteger {
		t.Errorf("data type = %v, want INTEGER (nearest)", got.DataType)
	}
}

func TestLoadDataType_TieBreakAscendingPC(t *testing.T) {
	// Two typed users at the same depth: lowest PC wins.
	g := NewGraph()
	addInst(g, 0x00, "LDG.E", nil)
	addInst(g, 0x10, "STG.E.S32", kindS32())
	addInst(g, 0x20, "STG.E.F32", kindF32())
	g.AddEdge(0x00, 0x10)
	g.AddEdge(0x00, 0x20)

	got := LoadDataType(0x00, g)
	if got.DataType != canon.TypeInteger {
		t.Errorf("data type = %v, want INTEGER (pc 0x10 before 0x20)", got.DataType)
	}
}

func TestStoreDataType_WalksDefinitions(t *testing.T) {
	// LDG.E.F32-loaded value, moved by MOV, stored by an untyped STG.
	g := NewGraph()
	addInst(g, 0x00, "LDG.E.F32", kindF32())
	addInst(g, 0x10, "MOV", nil)
	addInst(g, 0x20, "STG.E", nil)
	g.AddEdge(0x00, 0x10)
	g.AddEdge(0x10, 0x20)

	got := StoreDataType(0x20, g)
	if got.DataType != canon.TypeFloat {
		t.Errorf("data type = %v, want FLOAT", got.DataType)
	}
}

func TestWalkDataType_Cycle(t *testing.T) {
	// Cyclic def/use (loop-carried) must terminate and report Unknown.
	g := NewGraph()
	addInst(g, 0x00, "LDG.E", nil)
	addInst(g, 0x10, "IMAD", nil)
	g.AddEdge(0x00, 0x10)
	g.AddEdge(0x10, 0x00)

	got := LoadDataType(0x00, g)
	if !got.Unknown() {
		t.Errorf("kind = %v, want Unknown", got)
	}
}

func TestWalkDataType_NoEdges(t *testing.T) {
	g := NewGraph()
	addInst(g, 0x00, "LDG.E", nil)
	if got := LoadDataType(0x00, g); !got.Unknown() {
		t.Errorf("kind = %v, want Unknown", got)
	}
}
