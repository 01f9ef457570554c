package redlens

import (
	"container/heap"
	"sort"

	"redlens/internal/instgraph"
)

// RecordView is one reduced redundancy finding. PCs are runtime PCs until
// flush translates them to (function_index, pc_offset) pairs. Temporal views
// also carry the source endpoint of the redundant pair.
type RecordView struct {
	FunctionIndex uint32 `json:"function_index"`
	PCOffset      uint64 `json:"pc_offset"`

	SourceFunctionIndex uint32 `json:"source_function_index,omitempty"`
	SourcePCOffset      uint64 `json:"source_pc_offset,omitempty"`

	MemoryOpID uint64               `json:"memory_op_id,omitempty"`
	Value      uint64               `json:"value"`
	Kind       instgraph.AccessKind `json:"kind"`
	// Count is the redundant accesses sharing the value; Total is every
	// access at the PC (spatial only).
	Count uint64 `json:"count"`
	Total uint64 `json:"total,omitempty"`
}

// RecordData is the payload handed to the record callback: the top views of
// one detector side for one kernel.
type RecordData struct {
	Analysis AnalysisType `json:"analysis"`
	Access   AccessType   `json:"access"`
	Views    []RecordView `json:"views"`
}

// viewBetter orders views by descending count; ties break on ascending
// (pc, source pc, value) so reduction is deterministic.
func viewBetter(a, b RecordView) bool {
	if a.Count != b.Count {
		return a.Count > b.Count
	}
	if a.PCOffset != b.PCOffset {
		return a.PCOffset < b.PCOffset
	}
	if a.SourcePCOffset != b.SourcePCOffset {
		return a.SourcePCOffset < b.SourcePCOffset
	}
	return a.Value < b.Value
}

// topViews is a bounded min-heap keeping the best k views.
type topViews struct {
	views []RecordView
	k     int
}

func (h *topViews) Len() int           { return len(h.views) }
func (h *topViews) Less(i, j int) bool { return viewBetter(h.views[j], h.views[i]) }
func (h *topViews) Swap(i, j int)      { h.views[i], h.views[j] = h.views[j], h.views[i] }
func (h *topViews) Push(x any)         { h.views = append(h.views, x.(RecordView)) }
func (h *topViews) Pop() any {
	v := h.views[len(h.views)-1]
	h.views = h.views[:len(h.views)-1]
	return v
}

func (h *topViews) offer(v RecordView) {
	if h.k <= 0 {
		return
	}
	if len(h.views) < h.k {
		heap.Push(h, v)
		return
	}
	if viewBetter(v, h.views[0]) {
		h.views[0] = v
		heap.Fix(h, 0)
	}
}

// sorted drains the heap into best-first order.
func (h *topViews) sorted() []RecordView {
	out := make([]RecordView, len(h.views))
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(h).(RecordView)
	}
	return out
}

// reduceSpatial selects, per allocation and PC, the dominant value share:
// how many of the PC's accesses carried the single most common value.
func reduceSpatial(tr spatialTrace, topK int) []RecordView {
	top := &topViews{k: topK}

	for _, key := range sortedSpatialKeys(tr) {
		pcs := tr[key]
		for _, pc := range sortedPCs(pcs) {
			values := pcs[pc]
			var total, dominant uint64
			dominantValue := ^uint64(0)
			for _, value := range sortedValues(values) {
				count := values[value]
				total += count
				if count > dominant {
					dominant = count
					dominantValue = value
				}
			}
			top.offer(RecordView{
				PCOffset:   pc,
				MemoryOpID: key.memoryOpID,
				Value:      dominantValue,
				Kind:       key.kind,
				Count:      dominant,
				Total:      total,
			})
		}
	}

	return top.sorted()
}

// reduceTemporal selects the most frequent redundant (source_pc, sink_pc,
// value) pairs.
func reduceTemporal(pairs pcPairs, topK int) []RecordView {
	top := &topViews{k: topK}

	for _, src := range sortedPCs(pairs) {
		sinks := pairs[src]
		for _, sink := range sortedPCs(sinks) {
			counts := sinks[sink]
			keys := make([]valueKind, 0, len(counts))
			for vk := range counts {
				keys = append(keys, vk)
			}
			sort.Slice(keys, func(i, j int) bool { return lessValueKind(keys[i], keys[j]) })
			for _, vk := range keys {
				top.offer(RecordView{
					PCOffset:       sink,
					SourcePCOffset: src,
					Value:          vk.value,
					Kind:           vk.kind,
					Count:          counts[vk],
				})
			}
		}
	}

	return top.sorted()
}

func lessValueKind(a, b valueKind) bool {
	if a.value != b.value {
		return a.value < b.value
	}
	if a.kind.VecSize != b.kind.VecSize {
		return a.kind.VecSize < b.kind.VecSize
	}
	if a.kind.UnitSize != b.kind.UnitSize {
		return a.kind.UnitSize < b.kind.UnitSize
	}
	return a.kind.DataType < b.kind.DataType
}

func sortedSpatialKeys(tr spatialTrace) []spatialKey {
	keys := make([]spatialKey, 0, len(tr))
	for k := range tr {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].memoryOpID != keys[j].memoryOpID {
			return keys[i].memoryOpID < keys[j].memoryOpID
		}
		return lessValueKind(valueKind{kind: keys[i].kind}, valueKind{kind: keys[j].kind})
	})
	return keys
}

func sortedPCs[V any](m map[uint64]V) []uint64 {
	pcs := make([]uint64, 0, len(m))
	for pc := range m {
		pcs = append(pcs, pc)
	}
	sort.Slice(pcs, func(i, j int) bool { return pcs[i] < pcs[j] })
	return pcs
}

func sortedValues(m map[uint64]uint64) []uint64 {
	return sortedPCs(m)
}
