package binary

import (
	"sort"

	"redlens/internal/instgraph"
)

// TransformPC resolves a runtime PC against a symbol table sorted by runtime
// PC. The owning symbol is the one with the largest runtime PC ≤ pc.
// Returns ErrNotExistEntry when pc falls below every symbol.
func TransformPC(symbols []instgraph.Symbol, pc uint64) (functionIndex uint32, cubinOffset, pcOffset uint64, err error) {
	i := sort.Search(len(symbols), func(i int) bool { return symbols[i].PC > pc })
	if i == 0 {
		return 0, 0, 0, ErrNotExistEntry
	}
	sym := symbols[i-1]
	pcOffset = pc - sym.PC
	cubinOffset = sym.CubinOffset + pcOffset
	return sym.Index, cubinOffset, pcOffset, nil
}
