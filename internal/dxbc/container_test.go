// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package dxbc

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/pkg/errors"
)

func TestFourCC(t *testing.T) {
	for _, s := range [...]string{"DXBC", "RDEF", "SHEX", "RTS0"} {
		if x := MakeFourCC(s).String(); x != s {
			t.Fatalf("FourCC.String:\nhave %s\nwant %s", x, s)
		}
	}
	if x := binary.LittleEndian.Uint32([]byte("DXIL")); FourCC(x) != DXIL {
		t.Fatalf("DXIL:\nhave %#x\nwant %#x", uint32(DXIL), x)
	}
}

func TestAssemble(t *testing.T) {
	parts := []Part{
		{FourCC: RDEF, Data: []byte{1, 2, 3, 4}},
		{FourCC: STAT, Data: nil},
		{FourCC: SHEX, Data: bytes.Repeat([]byte{0xab}, 40)},
	}
	b := Assemble(parts)
	if !Verify(b) {
		t.Fatal("Assemble: Verify failed")
	}
	c, err := Parse(b)
	if err != nil {
		t.Fatalf("Parse:\nhave %v\nwant nil", err)
	}
	if n := len(c.Parts()); n != len(parts) {
		t.Fatalf("Container.Parts: len:\nhave %d\nwant %d", n, len(parts))
	}
	for i, p := range c.Parts() {
		if p.FourCC != parts[i].FourCC {
			t.Fatalf("Part.FourCC:\nhave %s\nwant %s", p.FourCC, parts[i].FourCC)
		}
		if !bytes.Equal(p.Data, parts[i].Data) {
			t.Fatalf("Part.Data:\nhave %v\nwant %v", p.Data, parts[i].Data)
		}
		if !bytes.Equal(b[p.Offset:p.Offset+len(p.Data)], p.Data) {
			t.Fatalf("Part.Offset: %d does not locate the data", p.Offset)
		}
	}
	if c.IsDXIL() {
		t.Fatal("Container.IsDXIL:\nhave true\nwant false")
	}
	if p, ok := c.Program(); !ok || p.FourCC != SHEX {
		t.Fatalf("Container.Program:\nhave %s, %t\nwant SHEX, true", p.FourCC, ok)
	}
	if _, ok := c.Part(RTS0); ok {
		t.Fatal("Container.Part(RTS0):\nhave true\nwant false")
	}
	b[len(b)-1] = 0
	if Verify(b) {
		t.Fatal("Verify: modified container passed")
	}
}

func TestParseError(t *testing.T) {
	good := Assemble([]Part{{FourCC: DXIL, Data: make([]byte, 12)}})
	if !IsDXIL(good) {
		t.Fatal("IsDXIL:\nhave false\nwant true")
	}
	for _, x := range [...]struct {
		name string
		mod  func([]byte) []byte
	}{
		{"short", func(b []byte) []byte { return b[:16] }},
		{"magic", func(b []byte) []byte { b[0] = 'X'; return b }},
		{"size", func(b []byte) []byte { return b[:len(b)-1] }},
		{"count", func(b []byte) []byte { binary.LittleEndian.PutUint32(b[countOff:], 1000); return b }},
		{"offset", func(b []byte) []byte { binary.LittleEndian.PutUint32(b[headerSize:], 2); return b }},
		{"part size", func(b []byte) []byte { binary.LittleEndian.PutUint32(b[headerSize+8:], 99); return b }},
	} {
		b := x.mod(append([]byte(nil), good...))
		_, err := Parse(b)
		if errors.Cause(err) != ErrFormat {
			t.Fatalf("Parse [%s]:\nhave %v\nwant %v", x.name, err, ErrFormat)
		}
		if IsDXIL(b) {
			t.Fatalf("IsDXIL [%s]:\nhave true\nwant false", x.name)
		}
	}
}

func TestProgramVersion(t *testing.T) {
	v := MakeProgramVersion(PixelShader, 5, 1)
	if v.Type() != PixelShader || v.Major() != 5 || v.Minor() != 1 {
		t.Fatalf("ProgramVersion:\nhave %d %d.%d\nwant %d 5.1", v.Type(), v.Major(), v.Minor(), PixelShader)
	}
	if v != 0x51 {
		t.Fatalf("ProgramVersion:\nhave %#x\nwant 0x51", uint32(v))
	}
	v = MakeProgramVersion(ComputeShader, 6, 0)
	if v != 0x50060 {
		t.Fatalf("ProgramVersion:\nhave %#x\nwant 0x50060", uint32(v))
	}
	d := make([]byte, 8)
	binary.LittleEndian.PutUint32(d, uint32(v))
	c, err := Parse(Assemble([]Part{{FourCC: SHEX, Data: d}}))
	if err != nil {
		t.Fatal(err)
	}
	if x, err := c.Version(); err != nil || x != v {
		t.Fatalf("Container.Version:\nhave %#x, %v\nwant %#x, nil", uint32(x), err, uint32(v))
	}
}

func TestSplitSubscript(t *testing.T) {
	for _, x := range [...]struct {
		name string
		base string
		elem uint32
		ok   bool
	}{
		{"tex[2]", "tex", 2, true},
		{"a[b][10]", "a[b]", 10, true},
		{"tex", "", 0, false},
		{"[3]", "", 0, false},
		{"tex[x]", "", 0, false},
	} {
		base, elem, ok := SplitSubscript(x.name)
		if base != x.base || elem != x.elem || ok != x.ok {
			t.Fatalf("SplitSubscript(%q):\nhave %q, %d, %t\nwant %q, %d, %t", x.name, base, elem, ok, x.base, x.elem, x.ok)
		}
	}
}
