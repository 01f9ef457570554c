package main

import (
	"flag"
	"fmt"
	"os"
	"sort"

	"redlens"
	"redlens/internal/canon"
	"redlens/internal/trace"
	"redlens/report"
)

var precisionLevels = map[string]canon.Level{
	"none": canon.LevelNone,
	"min":  canon.LevelMin,
	"low":  canon.LevelLow,
	"mid":  canon.LevelMid,
	"high": canon.LevelHigh,
	"max":  canon.LevelMax,
}

// collectedRecord is one record-callback delivery.
type collectedRecord struct {
	cubinID  uint32
	kernelID uint64
	data     *redlens.RecordData
}

// replayCapture decodes a capture and drives it through a fresh analyzer,
// returning the collected record data per (cubin, kernel).
func replayCapture(path string, level canon.Level, topK int) ([]collectedRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	events, err := trace.DecodeCapture(f)
	if err != nil {
		return nil, err
	}

	a := redlens.New()
	a.Enable(redlens.AnalysisSpatialRedundancy)
	a.Enable(redlens.AnalysisTemporalRedundancy)
	if err := a.SetPrecision(level); err != nil {
		return nil, err
	}

	var collected []collectedRecord
	a.SetLogCallback(func(kernelID uint64, buf *trace.Buffer, tally trace.Tally) {
		fmt.Fprintf(os.Stderr, "kernel %d: %d records, %d read units, %d write units\n",
			kernelID, buf.HeadIndex, tally.ReadUnits, tally.WriteUnits)
	})
	a.SetRecordCallback(func(cubinID uint32, kernelID uint64, data *redlens.RecordData) {
		collected = append(collected, collectedRecord{cubinID, kernelID, data})
	}, topK, topK)

	threads := make(map[uint32]struct{})
	for _, ev := range events {
		switch ev.Kind {
		case trace.EventBinary:
			if err := a.RegisterBinary(ev.CubinID, ev.SymbolPCs, ev.Path); err != nil {
				fmt.Fprintf(os.Stderr, "warning: register binary %d: %v\n", ev.CubinID, err)
			}
		case trace.EventMemoryRegister:
			if err := a.RegisterMemory(ev.Start, ev.End, ev.HostOpID, ev.MemoryID); err != nil {
				fmt.Fprintf(os.Stderr, "warning: register memory %#x: %v\n", ev.Start, err)
			}
		case trace.EventMemoryUnregister:
			if err := a.UnregisterMemory(ev.Start, ev.End, ev.HostOpID); err != nil {
				fmt.Fprintf(os.Stderr, "warning: unregister memory %#x: %v\n", ev.Start, err)
			}
		case trace.EventKernel:
			threads[ev.CPUThread] = struct{}{}
			if err := a.Analyze(ev.CPUThread, ev.CubinID, ev.KernelID, ev.HostOpID, ev.Buffer); err != nil {
				fmt.Fprintf(os.Stderr, "warning: analyze kernel %d: %v\n", ev.KernelID, err)
			}
		}
	}

	ids := make([]uint32, 0, len(threads))
	for id := range threads {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		if err := a.Flush(id); err != nil {
			return nil, fmt.Errorf("flush thread %d: %w", id, err)
		}
	}

	return collected, nil
}

func cmdReplay(args []string) error {
	fs := flag.NewFlagSet("replay", flag.ExitOnError)
	capture := fs.String("capture", "", "path to trace capture")
	precision := fs.String("precision", "none", "canonicalization level: none|min|low|mid|high|max")
	topK := fs.Int("top", 10, "views per detector side")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *capture == "" {
		return fmt.Errorf("--capture is required")
	}
	level, ok := precisionLevels[*precision]
	if !ok {
		return fmt.Errorf("unknown precision %q", *precision)
	}

	collected, err := replayCapture(*capture, level, *topK)
	if err != nil {
		return err
	}

	all := make([]*redlens.RecordData, 0, len(collected))
	for _, r := range collected {
		report.WriteText(os.Stdout, r.cubinID, r.kernelID, r.data)
		all = append(all, r.data)
	}

	stats := report.Summary(all)
	if stats.Views > 0 {
		fmt.Printf("spatial redundancy rate: mean=%.3f std=%.3f q25=%.3f median=%.3f q75=%.3f (%d views)\n",
			stats.Mean, stats.StdDev, stats.Q25, stats.Median, stats.Q75, stats.Views)
	}
	return nil
}
