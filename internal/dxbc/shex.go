// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package dxbc

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// Opcodes of interest.
const (
	opCustomData         = 53
	opDclResource        = 88
	opDclConstantBuffer  = 89
	opDclSampler         = 90
	opDclGlobalFlags     = 106
	opHSDecls            = 113
	opHSJoinPhase        = 116
	opInterfaceCall      = 120
	opDclStream          = 143
	opDclUAVTyped        = 156
	opDclUAVRaw          = 157
	opDclUAVStructured   = 158
	opDclResourceRaw     = 161
	opDclResourceStruct  = 162
	opDclGSInstanceCount = 206
)

// Operand types of interest.
const (
	operandImm32    = 4
	operandImm64    = 5
	operandSampler  = 6
	operandResource = 7
	operandCBuffer  = 8
	operandUAV      = 30
)

// Index representations.
const (
	indexImm32 = iota
	indexImm64
	indexRel
	indexImm32Rel
	indexImm64Rel
)

// operandClass returns the register class addressed by
// an operand type.
func operandClass(typ uint32) (Class, bool) {
	switch typ {
	case operandSampler:
		return ClassSampler, true
	case operandResource:
		return ClassSRV, true
	case operandCBuffer:
		return ClassCBuffer, true
	case operandUAV:
		return ClassUAV, true
	}
	return 0, false
}

func isResourceDecl(op uint32) bool {
	switch op {
	case opDclResource, opDclConstantBuffer, opDclSampler,
		opDclUAVTyped, opDclUAVRaw, opDclUAVStructured,
		opDclResourceRaw, opDclResourceStruct:
		return true
	}
	return false
}

func isDecl(op uint32) bool {
	return op >= opDclResource && op <= opDclGlobalFlags ||
		op >= opHSDecls && op <= opHSJoinPhase ||
		op >= opDclStream && op <= opDclResourceStruct ||
		op == opDclGSInstanceCount
}

// operand is a parsed resource operand.
// idx holds the DWORD position of each immediate index,
// or -1 when the index has no immediate part.
type operand struct {
	typ uint32
	dim int
	idx [3]int
}

// rewriter rewrites register indices in a program part.
type rewriter struct {
	b     []byte // whole container, patched in place
	base  int    // offset of the program part
	ndw   int
	sm51  bool
	table *remapTable
}

func (w *rewriter) dw(i int) uint32 {
	return binary.LittleEndian.Uint32(w.b[w.base+4*i:])
}

func (w *rewriter) put(i int, v uint32) {
	binary.LittleEndian.PutUint32(w.b[w.base+4*i:], v)
}

// operand parses the operand starting at DWORD i.
// It returns the position past the operand.
func (w *rewriter) operand(i, end int) (operand, int, error) {
	if i >= end {
		return operand{}, 0, errors.Wrap(ErrFormat, "truncated operand")
	}
	tok := w.dw(i)
	i++
	for ext := tok>>31 != 0; ext; i++ {
		if i >= end {
			return operand{}, 0, errors.Wrap(ErrFormat, "truncated extended operand")
		}
		ext = w.dw(i)>>31 != 0
	}
	op := operand{
		typ: tok >> 12 & 0xff,
		dim: int(tok >> 20 & 3),
		idx: [3]int{-1, -1, -1},
	}
	var ncomp int
	switch tok & 3 {
	case 1:
		ncomp = 1
	case 2:
		ncomp = 4
	case 3:
		return operand{}, 0, errors.Wrap(ErrFormat, "N-component operand")
	}
	switch op.typ {
	case operandImm32:
		i += ncomp
	case operandImm64:
		i += 2 * ncomp
	}
	for k := 0; k < op.dim; k++ {
		var err error
		switch tok >> (22 + 3*k) & 7 {
		case indexImm32:
			op.idx[k] = i
			i++
		case indexImm64:
			i += 2
		case indexRel:
			_, i, err = w.operand(i, end)
		case indexImm32Rel:
			op.idx[k] = i
			_, i, err = w.operand(i+1, end)
		case indexImm64Rel:
			_, i, err = w.operand(i+2, end)
		default:
			err = errors.Wrap(ErrFormat, "bad index representation")
		}
		if err != nil {
			return operand{}, 0, err
		}
	}
	if i > end {
		return operand{}, 0, errors.Wrap(ErrFormat, "operand overruns instruction")
	}
	return op, i, nil
}

// run walks every instruction of the program.
func (w *rewriter) run() error {
	if w.ndw < 2 {
		return errors.Wrap(ErrFormat, "short program")
	}
	for pos := 2; pos < w.ndw; {
		tok := w.dw(pos)
		op := tok & 0x7ff
		var n int
		if op == opCustomData {
			if pos+1 >= w.ndw {
				return errors.Wrap(ErrFormat, "truncated customdata")
			}
			n = int(w.dw(pos + 1))
		} else {
			n = int(tok >> 24 & 0x7f)
		}
		if n == 0 || pos+n > w.ndw {
			return errors.Wrapf(ErrFormat, "instruction at %d has length %d", pos, n)
		}
		end := pos + n
		if op != opCustomData {
			i := pos + 1
			for ext := tok>>31 != 0; ext; i++ {
				if i >= end {
					return errors.Wrap(ErrFormat, "truncated extended opcode")
				}
				ext = w.dw(i)>>31 != 0
			}
			var err error
			switch {
			case isResourceDecl(op):
				err = w.decl(i, end)
			case isDecl(op):
			case op == opInterfaceCall:
				err = w.operands(i+1, end)
			default:
				err = w.operands(i, end)
			}
			if err != nil {
				return errors.WithMessagef(err, "instruction %d at DWORD %d", op, pos)
			}
		}
		pos = end
	}
	return nil
}

// operands rewrites every resource operand of a regular
// instruction.
func (w *rewriter) operands(i, end int) error {
	for i < end {
		op, next, err := w.operand(i, end)
		if err != nil {
			return err
		}
		class, ok := operandClass(op.typ)
		if ok {
			if err := w.access(class, op); err != nil {
				return err
			}
		}
		i = next
	}
	return nil
}

// access rewrites an operand that accesses a resource.
func (w *rewriter) access(class Class, op operand) error {
	if !w.sm51 {
		if op.idx[0] < 0 {
			return errors.Errorf("%s register has no immediate index", class)
		}
		reg := w.dw(op.idx[0])
		e := w.table.byRegister(class, reg)
		if e == nil {
			return errors.Errorf("%s%d is not bound", class, reg)
		}
		w.put(op.idx[0], e.move(reg))
		return nil
	}
	if op.idx[0] < 0 {
		return errors.Errorf("%s range id is not immediate", class)
	}
	id := w.dw(op.idx[0])
	e := w.table.byID(class, id)
	if e == nil {
		return errors.Errorf("%s range %d is not declared", class, id)
	}
	if op.idx[1] < 0 {
		if e.newBP != e.oldBP {
			return errors.Errorf("%s range %d is indexed without base register", class, id)
		}
		return nil
	}
	w.put(op.idx[1], e.move(w.dw(op.idx[1])))
	return nil
}

// decl rewrites a resource declaration.
func (w *rewriter) decl(i, end int) error {
	op, _, err := w.operand(i, end)
	if err != nil {
		return err
	}
	class, ok := operandClass(op.typ)
	if !ok {
		return errors.Wrapf(ErrFormat, "declaration of operand type %d", op.typ)
	}
	if !w.sm51 {
		return w.access(class, op)
	}
	if op.dim != 3 || op.idx[0] < 0 || op.idx[1] < 0 || op.idx[2] < 0 {
		return errors.Wrap(ErrFormat, "range declaration without immediate bounds")
	}
	id := w.dw(op.idx[0])
	e := w.table.byID(class, id)
	if e == nil {
		return errors.Errorf("%s range %d has no binding", class, id)
	}
	w.put(op.idx[1], e.move(w.dw(op.idx[1])))
	if upper := w.dw(op.idx[2]); upper != ^uint32(0) {
		w.put(op.idx[2], e.move(upper))
	}
	w.put(end-1, e.newSpace)
	return nil
}
