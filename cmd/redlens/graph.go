package main

import (
	"flag"
	"fmt"
	"os"

	"redlens"
	"redlens/internal/canon"
	"redlens/report"
)

func cmdGraph(args []string) error {
	fs := flag.NewFlagSet("graph", flag.ExitOnError)
	capture := fs.String("capture", "", "path to trace capture")
	out := fs.String("out", "", "output DOT file (default stdout)")
	topK := fs.Int("top", 50, "pairs per detector side")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *capture == "" {
		return fmt.Errorf("--capture is required")
	}

	collected, err := replayCapture(*capture, canon.LevelNone, *topK)
	if err != nil {
		return err
	}

	all := make([]*redlens.RecordData, 0, len(collected))
	for _, r := range collected {
		all = append(all, r.data)
	}
	g := report.PairGraph(all)
	if len(g.Edges) == 0 {
		fmt.Fprintln(os.Stderr, "no temporal redundancy pairs found")
	}

	w := os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			return fmt.Errorf("create: %w", err)
		}
		defer f.Close()
		w = f
	}
	return report.WriteDOT(w, g)
}
