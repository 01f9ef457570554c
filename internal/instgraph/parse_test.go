package instgraph

import (
	"errors"
	"strings"
	"testing"

	"redlens/internal/canon"
)

const sampleListing = `
# kernel: saxpy
sym 0 0x0
0x00 IMAD pred=P0 dst=R2 src=R0,R1
0x10 LDG.E.F32 dst=R4 src=R2 asn=R2:0x00
0x20 FFMA dst=R5 src=R4,R3 asn=R4:0x10
0x30 STG.E dst=R2 src=R5 asn=R5:0x20,R2:0x00
`

func TestParse_Sample(t *testing.T) {
	symbols, g, err := Parse(strings.NewReader(sampleListing))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(symbols) != 1 {
		t.Fatalf("symbols = %d, want 1", len(symbols))
	}
	if symbols[0].Index != 0 || symbols[0].CubinOffset != 0 {
		t.Errorf("symbol = %+v", symbols[0])
	}
	if g.Size() != 4 {
		t.Fatalf("nodes = %d, want 4", g.Size())
	}

	ld := g.Node(0x10)
	if ld == nil || ld.Op != "LDG.E.F32" {
		t.Fatalf("node 0x10 = %+v", ld)
	}
	if ld.Access == nil || ld.Access.DataType != canon.TypeFloat || ld.Access.UnitSize != 32 {
		t.Errorf("LDG.E.F32 access = %+v", ld.Access)
	}

	st := g.Node(0x30)
	if st.Access != nil {
		t.Errorf("untyped STG.E access = %+v, want nil", st.Access)
	}
	if st.Predicate != -1 {
		t.Errorf("predicate = %d, want -1", st.Predicate)
	}

	// asn edges: 0x00→0x10, 0x10→0x20, 0x20→0x30, 0x00→0x30.
	if _, ok := g.Outgoing(0x00)[0x10]; !ok {
		t.Error("missing edge 0x00→0x10")
	}
	if _, ok := g.Outgoing(0x00)[0x30]; !ok {
		t.Error("missing edge 0x00→0x30")
	}
	if _, ok := g.Incoming(0x30)[0x20]; !ok {
		t.Error("missing edge 0x20→0x30")
	}
}

func TestParse_DuplicatePC(t *testing.T) {
	in := "0x10 LDG.E dst=R0\n0x10 STG.E src=R0\n"
	_, _, err := Parse(strings.NewReader(in))
	if !errors.Is(err, ErrParse) {
		t.Fatalf("err = %v, want ErrParse", err)
	}
}

func TestParse_BadField(t *testing.T) {
	for _, in := range []string{
		"zz LDG.E\n",
		"0x10 LDG.E bogus\n",
		"0x10 LDG.E dst=X9\n",
		"0x10 LDG.E asn=R2\n",
		"sym 0\n",
	} {
		if _, _, err := Parse(strings.NewReader(in)); !errors.Is(err, ErrParse) {
			t.Errorf("Parse(%q) err = %v, want ErrParse", in, err)
		}
	}
}

func TestParse_ForwardEdgeAndDangling(t *testing.T) {
	// The use at 0x00 references a definition parsed later (0x20) and one
	// that does not exist (0x40).
	in := "0x00 STG.E src=R1 asn=R1:0x20|0x40\n0x20 FADD dst=R1\n"
	_, g, err := Parse(strings.NewReader(in))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, ok := g.Incoming(0x00)[0x20]; !ok {
		t.Error("missing forward edge 0x20→0x00")
	}
	if _, ok := g.Incoming(0x00)[0x40]; ok {
		t.Error("dangling edge 0x40→0x00 should be dropped")
	}
}

func TestDecodeAccessKind(t *testing.T) {
	tests := []struct {
		op   string
		want *AccessKind
	}{
		{"LDG.E.F32", &AccessKind{canon.TypeFloat, 32, 32}},
		{"LDG.E.128", nil}, // width but no type
		{"LDG.E.F32.128", &AccessKind{canon.TypeFloat, 128, 32}},
		{"STS.U8", &AccessKind{canon.TypeInteger, 8, 8}},
		{"ATOM.E.ADD.F64", &AccessKind{canon.TypeFloat, 64, 64}},
		{"LD.S16", &AccessKind{canon.TypeInteger, 16, 16}},
		{"FFMA", nil},
		{"STG.E", nil},
	}
	for _, tt := range tests {
		got := decodeAccessKind(tt.op)
		if (got == nil) != (tt.want == nil) {
			t.Errorf("decodeAccessKind(%q) = %v, want %v", tt.op, got, tt.want)
			continue
		}
		if got != nil && *got != *tt.want {
			t.Errorf("decodeAccessKind(%q) = %v, want %v", tt.op, *got, *tt.want)
		}
	}
}
