package redlens

import "redlens/internal/instgraph"

// threadID identifies one GPU thread by its flat block and thread indices.
type threadID struct {
	flatBlockID  uint32
	flatThreadID uint32
}

// pcValue is the last (pc, value) a thread observed at an address.
type pcValue struct {
	pc    uint64
	value uint64
}

// valueKind keys a canonical value together with its access kind.
type valueKind struct {
	value uint64
	kind  instgraph.AccessKind
}

// spatialKey groups spatial counts by owning allocation and access kind.
type spatialKey struct {
	memoryOpID uint64
	kind       instgraph.AccessKind
}

// spatialTrace counts, per allocation and kind, how often each value was
// seen at each PC: {(memory_op_id, kind): {pc: {value: count}}}.
type spatialTrace map[spatialKey]map[uint64]map[uint64]uint64

// temporalTrace holds each thread's last access per address:
// {thread: {address: (pc, value)}}.
type temporalTrace map[threadID]map[uint64]pcValue

// pcPairs counts temporal hits between a defining and a re-accessing PC:
// {source_pc: {sink_pc: {(value, kind): count}}}.
type pcPairs map[uint64]map[uint64]map[valueKind]uint64

// kernelState accumulates traces for one (cpu_thread, kernel_id) shard. It
// is mutated only by its owning CPU thread.
type kernelState struct {
	kernelID      uint64
	cubinID       uint32
	functionIndex uint32
	functionAddr  uint64

	readSpatial  spatialTrace
	writeSpatial spatialTrace

	readTemporal temporalTrace
	readPairs    pcPairs

	writeTemporal temporalTrace
	writePairs    pcPairs
}

func newKernelState(kernelID uint64, cubinID uint32) *kernelState {
	return &kernelState{
		kernelID:      kernelID,
		cubinID:       cubinID,
		readSpatial:   make(spatialTrace),
		writeSpatial:  make(spatialTrace),
		readTemporal:  make(temporalTrace),
		readPairs:     make(pcPairs),
		writeTemporal: make(temporalTrace),
		writePairs:    make(pcPairs),
	}
}
