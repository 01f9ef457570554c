package instgraph

import (
	"strconv"
	"strings"

	"redlens/internal/canon"
)

// memOpPrefixes are the opcode mnemonics that touch memory. An opcode's
// mnemonic (the text before its first '.') must equal one of them exactly.
var memOpPrefixes = []string{
	"LDG", "LDS", "LDL", "LDC", "LD",
	"STG", "STS", "STL", "ST",
	"ATOMS", "ATOMG", "ATOM", "RED",
}

// IsMemoryOp reports whether op names a memory instruction.
func IsMemoryOp(op string) bool {
	mnemonic, _, _ := strings.Cut(op, ".")
	for _, p := range memOpPrefixes {
		if mnemonic == p {
			return true
		}
	}
	return false
}

// decodeAccessKind derives an AccessKind from opcode modifiers, e.g.
// LDG.E.F32, STS.128, ATOM.E.ADD.F64. Returns nil for non-memory opcodes
// and for memory opcodes without a type modifier; those are resolved later
// through the def/use walk.
func decodeAccessKind(op string) *AccessKind {
	if !IsMemoryOp(op) {
		return nil
	}

	kind := AccessKind{}
	for _, mod := range strings.Split(op, ".")[1:] {
		switch {
		case mod == "F16" || mod == "F32" || mod == "F64":
			kind.DataType = canon.TypeFloat
			kind.UnitSize = widthOf(mod[1:])
		case len(mod) > 1 && (mod[0] == 'S' || mod[0] == 'U') && isWidth(mod[1:]):
			kind.DataType = canon.TypeInteger
			kind.UnitSize = widthOf(mod[1:])
		case isWidth(mod):
			kind.VecSize = widthOf(mod)
		}
	}

	if kind.DataType == canon.TypeUnknown {
		return nil
	}
	if kind.VecSize == 0 {
		kind.VecSize = kind.UnitSize
	}
	if kind.VecSize < kind.UnitSize {
		kind.VecSize = kind.UnitSize
	}
	return &kind
}

func isWidth(s string) bool {
	switch s {
	case "8", "16", "32", "64", "128":
		return true
	}
	return false
}

func widthOf(s string) uint32 {
	n, _ := strconv.Atoi(s)
	return uint32(n)
}
