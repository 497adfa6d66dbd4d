// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package dxbc

import (
	"encoding/binary"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ErrDXIL is returned when legacy bytecode is expected
// but the container holds DXIL.
var ErrDXIL = errors.New("dxbc: container holds DXIL")

// Target is the location a resource is moved to.
type Target struct {
	BindPoint uint32
	Space     uint32
}

// Lookup resolves the target of a named resource.
type Lookup func(name string, class Class) (Target, bool)

// UnboundError is returned by Remap when a resource of the
// shader cannot be resolved.
type UnboundError struct {
	Name  string
	Class Class
}

func (e *UnboundError) Error() string {
	return "dxbc: resource " + strconv.Quote(e.Name) + " (" + e.Class.String() + ") has no target"
}

type remapEntry struct {
	class    Class
	oldBP    uint32
	count    uint32 // 0 means unbounded
	id       uint32
	newBP    uint32
	newSpace uint32
}

// move translates a register of the entry's range.
func (e *remapEntry) move(reg uint32) uint32 {
	return e.newBP + (reg - e.oldBP)
}

type remapTable struct {
	entries []remapEntry
}

func (t *remapTable) byRegister(class Class, reg uint32) *remapEntry {
	for i := range t.entries {
		e := &t.entries[i]
		if e.class != class || reg < e.oldBP {
			continue
		}
		if e.count == 0 || reg-e.oldBP < e.count {
			return e
		}
	}
	return nil
}

func (t *remapTable) byID(class Class, id uint32) *remapEntry {
	for i := range t.entries {
		e := &t.entries[i]
		if e.class == class && e.id == id {
			return e
		}
	}
	return nil
}

// SplitSubscript splits an array element name of the form
// "name[n]" into "name" and n.
func SplitSubscript(name string) (string, uint32, bool) {
	if !strings.HasSuffix(name, "]") {
		return "", 0, false
	}
	i := strings.LastIndexByte(name, '[')
	if i <= 0 {
		return "", 0, false
	}
	n, err := strconv.ParseUint(name[i+1:len(name)-1], 10, 32)
	if err != nil {
		return "", 0, false
	}
	return name[:i], uint32(n), true
}

// resolve calls lookup with name and, failing that, with
// the array name of a subscripted element.
func resolve(lookup Lookup, name string, class Class) (Target, bool) {
	if t, ok := lookup(name, class); ok {
		return t, true
	}
	base, elem, ok := SplitSubscript(name)
	if !ok {
		return Target{}, false
	}
	t, ok := lookup(base, class)
	if !ok {
		return Target{}, false
	}
	t.BindPoint += elem
	return t, true
}

// Remap moves every resource of the legacy bytecode in code
// to the target that lookup resolves for it.
// Both RDEF and the program are rewritten and the checksum
// is recomputed. code is not modified.
// Shader model 5.0 code can only target space 0.
func Remap(code []byte, lookup Lookup) ([]byte, error) {
	c, err := Parse(code)
	if err != nil {
		return nil, err
	}
	if c.IsDXIL() {
		return nil, ErrDXIL
	}
	v, err := c.Version()
	if err != nil {
		return nil, err
	}
	sm51 := v.Major() > 5 || v.Major() == 5 && v.Minor() >= 1
	rp, ok := c.Part(RDEF)
	if !ok {
		return nil, errors.Wrap(ErrFormat, "no RDEF part")
	}
	r, err := parseRDEF(rp)
	if err != nil {
		return nil, err
	}

	out := append([]byte(nil), code...)
	table := &remapTable{entries: make([]remapEntry, 0, len(r.binds))}
	for i := range r.binds {
		b := &r.binds[i]
		class := b.Type.Class()
		t, ok := resolve(lookup, b.Name, class)
		if !ok {
			return nil, &UnboundError{Name: b.Name, Class: class}
		}
		if !sm51 && t.Space != 0 {
			return nil, errors.Errorf("dxbc: %q moved to space %d, which shader model %d.%d cannot address", b.Name, t.Space, v.Major(), v.Minor())
		}
		r.patch(out, i, t.BindPoint, t.Space)
		table.entries = append(table.entries, remapEntry{
			class:    class,
			oldBP:    b.BindPoint,
			count:    b.BindCount,
			id:       b.ID,
			newBP:    t.BindPoint,
			newSpace: t.Space,
		})
	}

	p, _ := c.Program()
	if len(p.Data) < 8 {
		return nil, errors.Wrap(ErrFormat, "short program")
	}
	ndw := int(binary.LittleEndian.Uint32(p.Data[4:]))
	if ndw > len(p.Data)/4 {
		return nil, errors.Wrapf(ErrFormat, "program length %d exceeds %s part", ndw, p.FourCC)
	}
	w := &rewriter{
		b:     out,
		base:  p.Offset,
		ndw:   ndw,
		sm51:  sm51,
		table: table,
	}
	if err := w.run(); err != nil {
		return nil, err
	}
	Sign(out)
	return out, nil
}
