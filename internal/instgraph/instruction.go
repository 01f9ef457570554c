// Package instgraph models the pre-parsed instruction listing of a GPU code
// binary as a def/use graph and infers the data type of memory accesses from
// it.
package instgraph

import (
	"fmt"

	"redlens/internal/canon"
)

// AccessKind describes how an instruction touches memory: the element type,
// the total access width, and the width of one element.
type AccessKind struct {
	DataType canon.DataType
	VecSize  uint32 // total bits: 8, 16, 32, 64, 128
	UnitSize uint32 // element bits: 8, 16, 32, 64
}

// Unknown reports whether the kind carries no type information.
func (k AccessKind) Unknown() bool {
	return k.DataType == canon.TypeUnknown
}

func (k AccessKind) String() string {
	return fmt.Sprintf("{%s, v: %d, u: %d}", k.DataType, k.VecSize, k.UnitSize)
}

// Instruction is one line of the instruction listing. PCs are cubin-relative.
type Instruction struct {
	PC        uint32
	Op        string
	Predicate int // P0-P6, -1 when unpredicated
	Dsts      []int
	Srcs      []int
	// AssignPCs holds reaching definitions: for each source register, the
	// PCs of the instructions that may have defined it.
	AssignPCs map[int][]uint32
	// Access is nil for non-memory instructions and for memory instructions
	// whose listing carries no type annotation.
	Access *AccessKind
}
