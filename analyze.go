package redlens

import (
	"encoding/binary"

	binreg "redlens/internal/binary"
	"redlens/internal/canon"
	"redlens/internal/instgraph"
	"redlens/internal/memory"
	"redlens/internal/trace"
)

// Analyze runs the redundancy detectors over one trace buffer produced for
// (cubinID, kernelID) at logical time hostOpID by cpuThread. The buffer is
// processed in order; per-lane resolution misses are skipped silently. The
// call fails only when the binary itself cannot be resolved, or with
// ErrNotRegisteredCallback when no log callback is set (the buffer is still
// analyzed in full).
func (a *Analyzer) Analyze(cpuThread, cubinID uint32, kernelID, hostOpID uint64, buf *trace.Buffer) error {
	bin, err := a.registry.Resolve(cubinID)
	if err != nil {
		return err
	}

	cfg := a.snapshotConfig()
	k := a.kernelFor(cpuThread, kernelID, cubinID)

	var tally trace.Tally

	n := int(buf.HeadIndex)
	if n > len(buf.Records) {
		n = len(buf.Records)
	}
	for i := 0; i < n; i++ {
		a.analyzeRecord(&buf.Records[i], bin, hostOpID, cfg, k, &tally)
	}

	a.noteHostOpID(cpuThread, hostOpID)

	if cfg.logFn == nil {
		return ErrNotRegisteredCallback
	}
	cfg.logFn(kernelID, buf, tally)
	return nil
}

func (a *Analyzer) analyzeRecord(rec *trace.Record, bin *binreg.Binary, hostOpID uint64,
	cfg analysisConfig, k *kernelState, tally *trace.Tally) {
	if rec.Size == 0 {
		// No active lane.
		return
	}

	if rec.Flags&trace.FlagBlockEnter != 0 {
		return
	}
	if rec.Flags&trace.FlagBlockExit != 0 {
		// Per-thread temporal state is scoped to a block.
		for j := 0; j < trace.WarpSize; j++ {
			if !rec.LaneActive(j) {
				continue
			}
			tid := laneThreadID(rec, j)
			eraseThread(tid, k.readTemporal, k.writeTemporal)
		}
		return
	}

	// PC resolution failure is non-fatal; the record then runs with an
	// unresolved cubin offset and the fallback kind.
	_, cubinOffset, _, pcErr := binreg.TransformPC(bin.Symbols, rec.PC)

	kind := accessKindFor(rec, bin.Graph, cubinOffset, pcErr == nil)

	for j := 0; j < trace.WarpSize; j++ {
		if !rec.LaneActive(j) {
			continue
		}
		tid := laneThreadID(rec, j)
		addr := rec.Address[j]

		memoryOpID := uint64(0)
		if alloc, ok := a.snapshots.Lookup(addr, hostOpID); ok {
			memoryOpID = alloc.MemoryOpID
		}
		if memoryOpID == 0 {
			switch {
			case rec.Flags&trace.FlagLocal != 0:
				memoryOpID = memory.OpIDLocal
			case rec.Flags&trace.FlagShared != 0:
				memoryOpID = memory.OpIDShared
			default:
				// Unknown allocation; skip the lane.
				continue
			}
		}

		numUnits := kind.VecSize / kind.UnitSize
		unitKind := kind
		unitKind.VecSize = unitKind.UnitSize
		byteSize := int(unitKind.UnitSize / 8)

		for m := 0; m < int(numUnits); m++ {
			lo := m * byteSize
			if lo+byteSize > len(rec.Value[j]) {
				break
			}
			value := readValue(rec.Value[j][lo : lo+byteSize])
			value = canon.Canonicalize(value, unitKind.DataType, unitKind.UnitSize, cfg.degF32, cfg.degF64)

			read := rec.Flags&trace.FlagRead != 0
			if read {
				tally.ReadUnits++
			} else {
				tally.WriteUnits++
			}

			if cfg.spatial {
				if read {
					observeSpatial(rec.PC, value, memoryOpID, unitKind, k.readSpatial)
				} else {
					observeSpatial(rec.PC, value, memoryOpID, unitKind, k.writeSpatial)
				}
			}
			if cfg.temporal {
				if read {
					observeTemporal(rec.PC, tid, addr, value, unitKind, k.readTemporal, k.readPairs)
				} else {
					observeTemporal(rec.PC, tid, addr, value, unitKind, k.writeTemporal, k.writePairs)
				}
			}
		}
	}
}

// laneThreadID maps lane j of a warp record to its flat thread id.
// FlatThreadID is lane 0's id; the lane id replaces the low five bits.
func laneThreadID(rec *trace.Record, j int) threadID {
	return threadID{
		flatBlockID:  rec.FlatBlockID,
		flatThreadID: rec.FlatThreadID/trace.WarpSize*trace.WarpSize + uint32(j),
	}
}

// accessKindFor infers the record's access kind from the instruction graph,
// falling back to the default kind when the graph has no answer.
func accessKindFor(rec *trace.Record, g *instgraph.Graph, cubinOffset uint64, resolved bool) instgraph.AccessKind {
	var kind instgraph.AccessKind

	if resolved && g.Size() != 0 {
		if inst := g.Node(uint32(cubinOffset)); inst != nil {
			switch {
			case inst.Access != nil && !inst.Access.Unknown():
				kind = *inst.Access
			case rec.Flags&trace.FlagRead != 0:
				kind = instgraph.LoadDataType(inst.PC, g)
			case rec.Flags&trace.FlagWrite != 0:
				kind = instgraph.StoreDataType(inst.PC, g)
			}
		}
	}

	if kind.Unknown() || kind.UnitSize == 0 {
		// Default mode: treat the access as float data. The unit-size
		// formula is inherited verbatim from the instrumentation toolchain;
		// the extra ×8 on an already-bit-valued vec size is untrusted.
		kind.DataType = canon.TypeFloat
		kind.VecSize = rec.Size * 8
		kind.UnitSize = min(trace.WarpSize, kind.VecSize*8)
	}
	return kind
}

// readValue assembles a little-endian value of up to 8 bytes.
func readValue(b []byte) uint64 {
	var raw [8]byte
	copy(raw[:], b)
	return binary.LittleEndian.Uint64(raw[:])
}
