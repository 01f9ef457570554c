package redlens

import (
	"sort"

	binreg "redlens/internal/binary"
	"redlens/internal/output"
)

// FlushEntry is one delivered record in the on-disk flush dump.
type FlushEntry struct {
	CubinID  uint32      `json:"cubin_id"`
	KernelID uint64      `json:"kernel_id"`
	Data     *RecordData `json:"data"`
}

// Flush reduces every kernel state owned by cpuThread, delivers the top
// views through the record callback, and drops the thread's state. Kernels
// whose binary has been unregistered are dropped without a callback. With an
// output directory configured, the delivered records are also written to
// <dir>/flush_thread<id>.json.
func (a *Analyzer) Flush(cpuThread uint32) error {
	a.configMu.Lock()
	recordFn := a.recordFn
	topK := a.pcViewsLimit
	memViews := a.memViewsLimit
	outputPath := a.outputPath
	_, spatial := a.enabled[AnalysisSpatialRedundancy]
	_, temporal := a.enabled[AnalysisTemporalRedundancy]
	a.configMu.Unlock()

	if recordFn == nil {
		return ErrNotRegisteredCallback
	}

	var dump []FlushEntry
	deliver := recordFn
	if outputPath != "" {
		deliver = func(cubinID uint32, kernelID uint64, data *RecordData) {
			dumpData := data
			if memViews > 0 && len(data.Views) > memViews {
				trimmed := *data
				trimmed.Views = data.Views[:memViews]
				dumpData = &trimmed
			}
			dump = append(dump, FlushEntry{CubinID: cubinID, KernelID: kernelID, Data: dumpData})
			recordFn(cubinID, kernelID, data)
		}
	}

	kernels := a.detachKernels(cpuThread)

	ids := make([]uint64, 0, len(kernels))
	for id := range kernels {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		k := kernels[id]
		bin, err := a.registry.Resolve(k.cubinID)
		if err != nil {
			continue
		}

		if spatial {
			emit(deliver, bin, k, AnalysisSpatialRedundancy, AccessRead,
				reduceSpatial(k.readSpatial, topK))
			emit(deliver, bin, k, AnalysisSpatialRedundancy, AccessWrite,
				reduceSpatial(k.writeSpatial, topK))
		}
		if temporal {
			emit(deliver, bin, k, AnalysisTemporalRedundancy, AccessRead,
				reduceTemporal(k.readPairs, topK))
			emit(deliver, bin, k, AnalysisTemporalRedundancy, AccessWrite,
				reduceTemporal(k.writePairs, topK))
		}
	}

	if outputPath != "" {
		return output.WriteFlushJSON(outputPath, cpuThread, dump)
	}
	return nil
}

// emit translates the views' runtime PCs into (function_index, pc_offset)
// pairs and invokes the record callback. Untranslatable PCs keep their raw
// runtime value.
func emit(recordFn RecordFunc, bin *binreg.Binary, k *kernelState,
	analysis AnalysisType, access AccessType, views []RecordView) {
	for i := range views {
		if idx, _, off, err := binreg.TransformPC(bin.Symbols, views[i].PCOffset); err == nil {
			views[i].FunctionIndex = idx
			views[i].PCOffset = off
		}
		if analysis == AnalysisTemporalRedundancy {
			if idx, _, off, err := binreg.TransformPC(bin.Symbols, views[i].SourcePCOffset); err == nil {
				views[i].SourceFunctionIndex = idx
				views[i].SourcePCOffset = off
			}
		}
	}

	recordFn(k.cubinID, k.kernelID, &RecordData{
		Analysis: analysis,
		Access:   access,
		Views:    views,
	})
}
