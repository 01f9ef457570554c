package main

import (
	"flag"
	"fmt"
	"os"
	"sort"

	"redlens/internal/instgraph"
)

func cmdInspect(args []string) error {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	instFile := fs.String("inst", "", "path to instruction listing")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *instFile == "" {
		return fmt.Errorf("--inst is required")
	}

	symbols, g, err := instgraph.ParseFile(*instFile)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "symbols: %d, instructions: %d\n", len(symbols), g.Size())
	for _, sym := range symbols {
		fmt.Printf("sym %d cubin_offset=0x%x\n", sym.Index, sym.CubinOffset)
	}

	for _, pc := range g.PCs() {
		inst := g.Node(pc)
		fmt.Printf("0x%04x %-16s", pc, inst.Op)
		if inst.Access != nil {
			fmt.Printf(" kind=%s", inst.Access)
		} else if instgraph.IsMemoryOp(inst.Op) {
			load := instgraph.LoadDataType(pc, g)
			store := instgraph.StoreDataType(pc, g)
			fmt.Printf(" inferred(load=%s store=%s)", load, store)
		}
		if out := g.Outgoing(pc); len(out) > 0 {
			uses := make([]uint32, 0, len(out))
			for u := range out {
				uses = append(uses, u)
			}
			sort.Slice(uses, func(i, j int) bool { return uses[i] < uses[j] })
			fmt.Printf(" uses=")
			for i, u := range uses {
				if i > 0 {
					fmt.Printf(",")
				}
				fmt.Printf("0x%x", u)
			}
		}
		fmt.Println()
	}
	return nil
}
