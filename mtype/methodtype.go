package mtype

import (
	"strings"

	"github.com/wippyai/mh-runtime/errors"
)

// MethodType is an immutable, interned signature: parameter types and a
// return type. Two method types from the same Table are structurally
// equal exactly when they are the same pointer.
type MethodType struct {
	table  *Table
	basic  *MethodType
	erased *MethodType
	rtype  Type
	ptypes []Type
	desc   string
	slots  int
}

// Table returns the interning table that owns mt.
func (mt *MethodType) Table() *Table { return mt.table }

// Return returns the return type.
func (mt *MethodType) Return() Type { return mt.rtype }

// Param returns the i-th parameter type.
func (mt *MethodType) Param(i int) Type { return mt.ptypes[i] }

// Params returns a copy of the parameter types.
func (mt *MethodType) Params() []Type {
	return append([]Type(nil), mt.ptypes...)
}

// ParamCount returns the number of parameters.
func (mt *MethodType) ParamCount() int { return len(mt.ptypes) }

// SlotCount returns the number of parameter slots; long and double take two.
func (mt *MethodType) SlotCount() int { return mt.slots }

// Descriptor returns the descriptor string, e.g. (ILString;)J.
func (mt *MethodType) Descriptor() string { return mt.desc }

// BasicType returns the erasure of mt to basic types: every reference
// becomes Object and every sub-int primitive becomes int.
func (mt *MethodType) BasicType() *MethodType { return mt.basic }

// Erase returns mt with every reference type replaced by Object.
func (mt *MethodType) Erase() *MethodType { return mt.erased }

// IsBasic reports whether mt is its own basic type.
func (mt *MethodType) IsBasic() bool { return mt.basic == mt }

// IsErased reports whether mt is its own erasure.
func (mt *MethodType) IsErased() bool { return mt.erased == mt }

// IsGeneric reports whether every parameter and the return are Object.
func (mt *MethodType) IsGeneric() bool {
	if mt.rtype != Object {
		return false
	}
	for _, p := range mt.ptypes {
		if p != Object {
			return false
		}
	}
	return true
}

// Generic returns (Object^n)Object for n = ParamCount.
func (mt *MethodType) Generic() *MethodType {
	g, err := mt.table.GenericType(len(mt.ptypes))
	if err != nil {
		// Object params take one slot each, never more than mt itself.
		panic(err)
	}
	return g
}

// InvokerType returns mt with a leading Handle parameter: the type of an
// invoker that calls handles of type mt.
func (mt *MethodType) InvokerType() (*MethodType, error) {
	return mt.InsertParams(0, HandleType)
}

// InsertParams returns mt with types inserted before position pos.
func (mt *MethodType) InsertParams(pos int, types ...Type) (*MethodType, error) {
	if pos < 0 || pos > len(mt.ptypes) {
		return nil, mt.rangeError(pos, pos)
	}
	params := make([]Type, 0, len(mt.ptypes)+len(types))
	params = append(params, mt.ptypes[:pos]...)
	params = append(params, types...)
	params = append(params, mt.ptypes[pos:]...)
	return mt.table.Make(mt.rtype, params...)
}

// AppendParams returns mt with types appended.
func (mt *MethodType) AppendParams(types ...Type) (*MethodType, error) {
	return mt.InsertParams(len(mt.ptypes), types...)
}

// ReplaceParams returns mt with parameters [start, end) replaced by types.
func (mt *MethodType) ReplaceParams(start, end int, types ...Type) (*MethodType, error) {
	if start < 0 || end < start || end > len(mt.ptypes) {
		return nil, mt.rangeError(start, end)
	}
	params := make([]Type, 0, len(mt.ptypes)-(end-start)+len(types))
	params = append(params, mt.ptypes[:start]...)
	params = append(params, types...)
	params = append(params, mt.ptypes[end:]...)
	return mt.table.Make(mt.rtype, params...)
}

// DropParams returns mt without parameters [start, end).
func (mt *MethodType) DropParams(start, end int) (*MethodType, error) {
	return mt.ReplaceParams(start, end)
}

// ChangeParam returns mt with parameter i replaced by t.
func (mt *MethodType) ChangeParam(i int, t Type) (*MethodType, error) {
	return mt.ReplaceParams(i, i+1, t)
}

// ChangeReturn returns mt with return type t.
func (mt *MethodType) ChangeReturn(t Type) (*MethodType, error) {
	return mt.table.Make(t, mt.ptypes...)
}

// String renders mt as (int,String)long.
func (mt *MethodType) String() string {
	var b strings.Builder
	b.WriteByte('(')
	for i, p := range mt.ptypes {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(p.String())
	}
	b.WriteByte(')')
	b.WriteString(mt.rtype.String())
	return b.String()
}

// BasicSignature returns the short basic-type spelling, e.g. LII_I.
func (mt *MethodType) BasicSignature() string {
	var b strings.Builder
	for _, p := range mt.ptypes {
		b.WriteByte(byte(p.Basic()))
	}
	b.WriteByte('_')
	b.WriteByte(byte(mt.rtype.Basic()))
	return b.String()
}

func (mt *MethodType) rangeError(start, end int) error {
	return errors.New(errors.PhaseBuild, errors.KindInvalidInput).
		Actual(mt.desc).
		Detail("parameter range [%d,%d) out of bounds", start, end).
		Build()
}
