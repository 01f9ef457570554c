package redlens

import "redlens/internal/instgraph"

// observeSpatial counts one canonical value at one PC against its owning
// allocation.
func observeSpatial(pc, value, memoryOpID uint64, kind instgraph.AccessKind, tr spatialTrace) {
	key := spatialKey{memoryOpID: memoryOpID, kind: kind}
	pcs := tr[key]
	if pcs == nil {
		pcs = make(map[uint64]map[uint64]uint64)
		tr[key] = pcs
	}
	values := pcs[pc]
	if values == nil {
		values = make(map[uint64]uint64)
		pcs[pc] = values
	}
	values[value]++
}

// observeTemporal records the access as the thread's latest at addr and, when
// the previous access there carried the same value, counts a redundant pair
// from the previous PC to this one.
func observeTemporal(pc uint64, tid threadID, addr, value uint64, kind instgraph.AccessKind,
	tr temporalTrace, pairs pcPairs) {
	addrs := tr[tid]
	if addrs == nil {
		addrs = make(map[uint64]pcValue)
		tr[tid] = addrs
	}

	prev, seen := addrs[addr]
	addrs[addr] = pcValue{pc: pc, value: value}
	if !seen || prev.value != value {
		return
	}

	sinks := pairs[prev.pc]
	if sinks == nil {
		sinks = make(map[uint64]map[valueKind]uint64)
		pairs[prev.pc] = sinks
	}
	counts := sinks[pc]
	if counts == nil {
		counts = make(map[valueKind]uint64)
		sinks[pc] = counts
	}
	counts[valueKind{value: value, kind: kind}]++
}

// eraseThread drops a thread's temporal state; called when its block exits.
func eraseThread(tid threadID, traces ...temporalTrace) {
	for _, tr := range traces {
		delete(tr, tid)
	}
}
