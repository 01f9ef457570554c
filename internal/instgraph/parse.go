package instgraph

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

var ErrParse = errors.New("instgraph: malformed instruction listing")

// Symbol ties a function in the listing to its offset within the binary and,
// after registration, to its runtime PC.
type Symbol struct {
	Index       uint32
	CubinOffset uint64
	PC          uint64 // runtime PC, assigned at registration time
}

// Parse reads an instruction listing. The format is line-oriented:
//
//	# comment
//	sym <function_index> <cubin_offset_hex>
//	<pc_hex> <op> [pred=P<n>] [dst=R1,R2] [src=R3] [asn=R3:0x10|0x20]
//
// Each asn entry lists the defining PCs of a source register and contributes
// one def→use edge per defining PC. Instruction PCs must be unique.
func Parse(r io.Reader) ([]Symbol, *Graph, error) {
	var symbols []Symbol
	graph := NewGraph()

	type pendingEdge struct {
		from, to uint32
	}
	var edges []pendingEdge

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineno := 0
	for sc.Scan() {
		lineno++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if fields[0] == "sym" {
			if len(fields) != 3 {
				return nil, nil, fmt.Errorf("%w: line %d: sym wants 2 operands", ErrParse, lineno)
			}
			index, err := strconv.ParseUint(fields[1], 10, 32)
			if err != nil {
				return nil, nil, fmt.Errorf("%w: line %d: %v", ErrParse, lineno, err)
			}
			offset, err := parseHex(fields[2])
			if err != nil {
				return nil, nil, fmt.Errorf("%w: line %d: %v", ErrParse, lineno, err)
			}
			symbols = append(symbols, Symbol{Index: uint32(index), CubinOffset: offset})
			continue
		}

		if len(fields) < 2 {
			return nil, nil, fmt.Errorf("%w: line %d: instruction wants pc and op", ErrParse, lineno)
		}
		pc64, err := parseHex(fields[0])
		if err != nil {
			return nil, nil, fmt.Errorf("%w: line %d: %v", ErrParse, lineno, err)
		}
		pc := uint32(pc64)
		if graph.HasNode(pc) {
			return nil, nil, fmt.Errorf("%w: line %d: duplicate pc 0x%x", ErrParse, lineno, pc)
		}

		inst := &Instruction{
			PC:        pc,
			Op:        fields[1],
			Predicate: -1,
			AssignPCs: make(map[int][]uint32),
		}
		inst.Access = decodeAccessKind(inst.Op)

		for _, field := range fields[2:] {
			key, val, ok := strings.Cut(field, "=")
			if !ok {
				return nil, nil, fmt.Errorf("%w: line %d: bad field %q", ErrParse, lineno, field)
			}
			switch key {
			case "pred":
				p, err := parseReg(val, 'P')
				if err != nil {
					return nil, nil, fmt.Errorf("%w: line %d: %v", ErrParse, lineno, err)
				}
				inst.Predicate = p
			case "dst":
				regs, err := parseRegList(val)
				if err != nil {
					return nil, nil, fmt.Errorf("%w: line %d: %v", ErrParse, lineno, err)
				}
				inst.Dsts = regs
			case "src":
				regs, err := parseRegList(val)
				if err != nil {
					return nil, nil, fmt.Errorf("%w: line %d: %v", ErrParse, lineno, err)
				}
				inst.Srcs = regs
			case "asn":
				for _, entry := range strings.Split(val, ",") {
					regStr, pcsStr, ok := strings.Cut(entry, ":")
					if !ok {
						return nil, nil, fmt.Errorf("%w: line %d: bad asn entry %q", ErrParse, lineno, entry)
					}
					reg, err := parseReg(regStr, 'R')
					if err != nil {
						return nil, nil, fmt.Errorf("%w: line %d: %v", ErrParse, lineno, err)
					}
					for _, pcStr := range strings.Split(pcsStr, "|") {
						def64, err := parseHex(pcStr)
						if err != nil {
							return nil, nil, fmt.Errorf("%w: line %d: %v", ErrParse, lineno, err)
						}
						def := uint32(def64)
						inst.AssignPCs[reg] = append(inst.AssignPCs[reg], def)
						edges = append(edges, pendingEdge{from: def, to: pc})
					}
				}
			default:
				return nil, nil, fmt.Errorf("%w: line %d: unknown field %q", ErrParse, lineno, key)
			}
		}

		graph.AddNode(inst)
	}
	if err := sc.Err(); err != nil {
		return nil, nil, fmt.Errorf("instgraph: read: %w", err)
	}

	// Edges may reference PCs parsed after the using instruction; resolve
	// them once all nodes exist. Dangling definitions are dropped so every
	// edge endpoint is a node.
	for _, e := range edges {
		if graph.HasNode(e.from) && graph.HasNode(e.to) {
			graph.AddEdge(e.from, e.to)
		}
	}

	return symbols, graph, nil
}

// ParseFile parses the listing at path.
func ParseFile(path string) ([]Symbol, *Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("instgraph: open: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

func parseHex(s string) (uint64, error) {
	return strconv.ParseUint(strings.TrimPrefix(s, "0x"), 16, 64)
}

func parseReg(s string, prefix byte) (int, error) {
	if len(s) < 2 || s[0] != prefix {
		return 0, fmt.Errorf("bad register %q", s)
	}
	n, err := strconv.Atoi(s[1:])
	if err != nil || n < 0 {
		return 0, fmt.Errorf("bad register %q", s)
	}
	return n, nil
}

func parseRegList(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	regs := make([]int, 0, len(parts))
	for _, p := range parts {
		r, err := parseReg(p, 'R')
		if err != nil {
			return nil, err
		}
		regs = append(regs, r)
	}
	return regs, nil
}
