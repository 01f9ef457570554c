// Package report renders reduced redundancy views: pc-pair graphs for
// visualization and distribution summaries for quick triage.
package report

import (
	"fmt"
	"io"
	"sort"

	"github.com/zboralski/lattice"
	"gonum.org/v1/gonum/stat"

	"redlens"
)

// PCLabel formats a translated view endpoint for graph nodes and tables.
func PCLabel(functionIndex uint32, pcOffset uint64) string {
	return fmt.Sprintf("f%d+0x%x", functionIndex, pcOffset)
}

// PairGraph builds a graph of temporal redundancy flow: one node per PC, one
// edge from the PC that produced a value to the PC that redundantly
// re-accessed it.
func PairGraph(data []*redlens.RecordData) *lattice.Graph {
	g := &lattice.Graph{}
	for _, d := range data {
		if d.Analysis != redlens.AnalysisTemporalRedundancy {
			continue
		}
		for _, v := range d.Views {
			src := PCLabel(v.SourceFunctionIndex, v.SourcePCOffset)
			sink := PCLabel(v.FunctionIndex, v.PCOffset)
			g.Nodes = append(g.Nodes, src, sink)
			g.Edges = append(g.Edges, lattice.Edge{Caller: src, Callee: sink})
		}
	}
	g.Dedup()
	return g
}

// WriteDOT renders a pair graph in Graphviz format.
func WriteDOT(w io.Writer, g *lattice.Graph) error {
	if _, err := fmt.Fprintln(w, "digraph redundancy {"); err != nil {
		return err
	}
	fmt.Fprintln(w, "  node [shape=box, fontname=\"monospace\"];")
	for _, n := range g.Nodes {
		fmt.Fprintf(w, "  %q;\n", n)
	}
	for _, e := range g.Edges {
		fmt.Fprintf(w, "  %q -> %q;\n", e.Caller, e.Callee)
	}
	_, err := fmt.Fprintln(w, "}")
	return err
}

// Stats summarizes the redundancy-rate distribution of a set of spatial
// views: for each view, the fraction of the PC's accesses that carried the
// dominant value.
type Stats struct {
	Views  int
	Mean   float64
	StdDev float64
	Q25    float64
	Median float64
	Q75    float64
}

// Summary computes Stats over the spatial views in data. Views with a zero
// access total are ignored.
func Summary(data []*redlens.RecordData) Stats {
	var rates []float64
	for _, d := range data {
		if d.Analysis != redlens.AnalysisSpatialRedundancy {
			continue
		}
		for _, v := range d.Views {
			if v.Total == 0 {
				continue
			}
			rates = append(rates, float64(v.Count)/float64(v.Total))
		}
	}
	if len(rates) == 0 {
		return Stats{}
	}

	sort.Float64s(rates)
	return Stats{
		Views:  len(rates),
		Mean:   stat.Mean(rates, nil),
		StdDev: stat.StdDev(rates, nil),
		Q25:    stat.Quantile(0.25, stat.Empirical, rates, nil),
		Median: stat.Quantile(0.5, stat.Empirical, rates, nil),
		Q75:    stat.Quantile(0.75, stat.Empirical, rates, nil),
	}
}

// WriteText renders record data as a table, one view per line.
func WriteText(w io.Writer, cubinID uint32, kernelID uint64, d *redlens.RecordData) {
	fmt.Fprintf(w, "cubin %d kernel %d %s %s: %d views\n",
		cubinID, kernelID, d.Analysis, d.Access, len(d.Views))
	for _, v := range d.Views {
		switch d.Analysis {
		case redlens.AnalysisTemporalRedundancy:
			fmt.Fprintf(w, "  %s -> %s value=%#x %s count=%d\n",
				PCLabel(v.SourceFunctionIndex, v.SourcePCOffset),
				PCLabel(v.FunctionIndex, v.PCOffset),
				v.Value, v.Kind, v.Count)
		default:
			fmt.Fprintf(w, "  %s mem=%d value=%#x %s count=%d/%d\n",
				PCLabel(v.FunctionIndex, v.PCOffset),
				v.MemoryOpID, v.Value, v.Kind, v.Count, v.Total)
		}
	}
}
