package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "inspect":
		err = cmdInspect(os.Args[2:])
	case "replay":
		err = cmdReplay(os.Args[2:])
	case "graph":
		err = cmdGraph(os.Args[2:])
	case "help", "-h", "--help":
		usage()
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `redlens — GPU kernel trace redundancy analyzer

Usage:
  redlens inspect --inst <file>                     Parse an instruction listing and dump its graph
  redlens replay  --capture <file> [--precision <level>] [--top <k>]   Replay a capture through the analyzer
  redlens graph   --capture <file> [--out <file>]   Export the temporal pc-pair graph as DOT
`)
}
