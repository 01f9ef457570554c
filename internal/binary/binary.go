// Package binary tracks registered GPU code binaries: their symbol tables,
// their instruction graphs, and a lazy cache of binaries that have been
// announced but not yet parsed.
package binary

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"redlens/internal/instgraph"
)

var (
	ErrNoSuchFile     = errors.New("binary: no such instruction file")
	ErrFailedAnalyze  = errors.New("binary: failed to analyze instruction file")
	ErrNotExistEntry  = errors.New("binary: entry does not exist")
	ErrDuplicateEntry = errors.New("binary: duplicate entry")
)

// Binary is a registered code binary. Published Binary values are immutable;
// readers hold them across an analysis step without locking.
type Binary struct {
	CubinID uint32
	Path    string
	Symbols []instgraph.Symbol // sorted by runtime PC
	Graph   *instgraph.Graph
}

// CacheEntry defers parsing of a binary until it is first resolved.
type CacheEntry struct {
	CubinID   uint32
	SymbolPCs []uint64
	Path      string
}

// Registry is the two-tier binary store: a hot map of parsed binaries and a
// cold map of deferred registrations, each under its own lock.
type Registry struct {
	mu       sync.Mutex
	binaries map[uint32]*Binary

	cacheMu sync.Mutex
	cache   map[uint32]*CacheEntry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		binaries: make(map[uint32]*Binary),
		cache:    make(map[uint32]*CacheEntry),
	}
}

// InstPath derives the companion instruction-listing path for a binary at
// path: <dir(dir(path))>/structs/nvidia/<base(path)>.inst.
func InstPath(path string) string {
	dir := filepath.Dir(filepath.Dir(path))
	return filepath.Join(dir, "structs", "nvidia", filepath.Base(path)+".inst")
}

// Register parses the binary's companion instruction listing and publishes
// it under cubinID. A missing listing still registers the binary with an
// empty graph and reports ErrNoSuchFile; a listing that fails to parse
// registers nothing and reports ErrFailedAnalyze. The i-th symbol PC applies
// to function index i.
func (r *Registry) Register(cubinID uint32, symbolPCs []uint64, path string) error {
	instPath := InstPath(path)

	var symbols []instgraph.Symbol
	graph := instgraph.NewGraph()
	missing := false

	if _, err := os.Stat(instPath); err != nil {
		missing = true
	} else {
		parsed, g, err := instgraph.ParseFile(instPath)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrFailedAnalyze, err)
		}
		symbols = parsed
		graph = g
	}

	if missing {
		// The instrumentation layer still needs PC resolution for this
		// binary, so synthesize one symbol per announced function.
		symbols = make([]instgraph.Symbol, len(symbolPCs))
		for i := range symbols {
			symbols[i].Index = uint32(i)
		}
	}

	for i := range symbols {
		if idx := int(symbols[i].Index); idx < len(symbolPCs) {
			symbols[i].PC = symbolPCs[idx]
		}
	}
	sort.Slice(symbols, func(i, j int) bool { return symbols[i].PC < symbols[j].PC })

	bin := &Binary{
		CubinID: cubinID,
		Path:    path,
		Symbols: symbols,
		Graph:   graph,
	}

	r.mu.Lock()
	_, dup := r.binaries[cubinID]
	if !dup {
		r.binaries[cubinID] = bin
	}
	r.mu.Unlock()

	if dup {
		return ErrDuplicateEntry
	}
	if missing {
		return ErrNoSuchFile
	}
	return nil
}

// RegisterCache records a deferred registration to be promoted on first use.
func (r *Registry) RegisterCache(cubinID uint32, symbolPCs []uint64, path string) error {
	entry := &CacheEntry{
		CubinID:   cubinID,
		SymbolPCs: append([]uint64(nil), symbolPCs...),
		Path:      path,
	}

	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()
	if _, ok := r.cache[cubinID]; ok {
		return ErrDuplicateEntry
	}
	r.cache[cubinID] = entry
	return nil
}

// Unregister drops the binary for cubinID. In-flight readers keep their
// Binary reference until their analysis step completes.
func (r *Registry) Unregister(cubinID uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.binaries[cubinID]; !ok {
		return ErrNotExistEntry
	}
	delete(r.binaries, cubinID)
	return nil
}

// Resolve returns the binary for cubinID, promoting it from the deferred
// cache on a miss and retrying once.
func (r *Registry) Resolve(cubinID uint32) (*Binary, error) {
	if bin := r.lookup(cubinID); bin != nil {
		return bin, nil
	}

	r.cacheMu.Lock()
	entry := r.cache[cubinID]
	r.cacheMu.Unlock()
	if entry == nil {
		return nil, ErrNotExistEntry
	}

	// A missing listing or a concurrent promote still ends with the binary
	// published; only a parse failure is fatal.
	err := r.Register(entry.CubinID, entry.SymbolPCs, entry.Path)
	if err != nil && !errors.Is(err, ErrNoSuchFile) && !errors.Is(err, ErrDuplicateEntry) {
		return nil, err
	}

	if bin := r.lookup(cubinID); bin != nil {
		return bin, nil
	}
	return nil, ErrNotExistEntry
}

func (r *Registry) lookup(cubinID uint32) *Binary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.binaries[cubinID]
}
