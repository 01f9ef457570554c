package report

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"redlens"
)

func temporalData(views ...redlens.RecordView) *redlens.RecordData {
	return &redlens.RecordData{
		Analysis: redlens.AnalysisTemporalRedundancy,
		Access:   redlens.AccessRead,
		Views:    views,
	}
}

func spatialData(views ...redlens.RecordView) *redlens.RecordData {
	return &redlens.RecordData{
		Analysis: redlens.AnalysisSpatialRedundancy,
		Access:   redlens.AccessWrite,
		Views:    views,
	}
}

func TestPairGraph(t *testing.T) {
	data := []*redlens.RecordData{
		temporalData(
			redlens.RecordView{SourceFunctionIndex: 0, SourcePCOffset: 0x0, FunctionIndex: 0, PCOffset: 0x10, Count: 3},
			redlens.RecordView{SourceFunctionIndex: 0, SourcePCOffset: 0x0, FunctionIndex: 0, PCOffset: 0x10, Count: 1},
			redlens.RecordView{SourceFunctionIndex: 1, SourcePCOffset: 0x8, FunctionIndex: 0, PCOffset: 0x10, Count: 2},
		),
		// Spatial data contributes nothing to the pair graph.
		spatialData(redlens.RecordView{FunctionIndex: 0, PCOffset: 0x20, Count: 5, Total: 5}),
	}

	g := PairGraph(data)
	if len(g.Nodes) != 3 {
		t.Errorf("nodes = %v, want 3 distinct", g.Nodes)
	}
	if len(g.Edges) != 2 {
		t.Errorf("edges = %v, want 2 after dedup", g.Edges)
	}
}

func TestWriteDOT(t *testing.T) {
	g := PairGraph([]*redlens.RecordData{
		temporalData(redlens.RecordView{SourcePCOffset: 0x0, PCOffset: 0x10, Count: 1}),
	})
	var b bytes.Buffer
	if err := WriteDOT(&b, g); err != nil {
		t.Fatalf("WriteDOT: %v", err)
	}
	out := b.String()
	if !strings.HasPrefix(out, "digraph redundancy {") || !strings.HasSuffix(strings.TrimSpace(out), "}") {
		t.Errorf("malformed DOT:\n%s", out)
	}
	if !strings.Contains(out, `"f0+0x0" -> "f0+0x10"`) {
		t.Errorf("missing edge in DOT:\n%s", out)
	}
}

func TestSummary(t *testing.T) {
	data := []*redlens.RecordData{
		spatialData(
			redlens.RecordView{Count: 10, Total: 10}, // rate 1.0
			redlens.RecordView{Count: 5, Total: 10},  // rate 0.5
			redlens.RecordView{Count: 0, Total: 0},   // skipped
		),
		temporalData(redlens.RecordView{Count: 99}), // skipped, wrong analysis
	}

	s := Summary(data)
	if s.Views != 2 {
		t.Fatalf("views = %d, want 2", s.Views)
	}
	if math.Abs(s.Mean-0.75) > 1e-9 {
		t.Errorf("mean = %f, want 0.75", s.Mean)
	}
	if s.Median < 0.5 || s.Median > 1.0 {
		t.Errorf("median = %f out of range", s.Median)
	}
}

func TestSummary_Empty(t *testing.T) {
	s := Summary(nil)
	if s.Views != 0 || s.Mean != 0 {
		t.Errorf("empty summary = %+v", s)
	}
}

func TestWriteText(t *testing.T) {
	var b bytes.Buffer
	WriteText(&b, 7, 42, spatialData(redlens.RecordView{
		FunctionIndex: 0, PCOffset: 0x10, MemoryOpID: 100, Value: 0x3f800000, Count: 4, Total: 8,
	}))
	out := b.String()
	if !strings.Contains(out, "cubin 7 kernel 42 spatial write") {
		t.Errorf("missing header:\n%s", out)
	}
	if !strings.Contains(out, "f0+0x10") || !strings.Contains(out, "count=4/8") {
		t.Errorf("missing view line:\n%s", out)
	}
}
