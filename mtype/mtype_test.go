package mtype

import (
	"errors"
	"sync"
	"testing"

	rterrors "github.com/wippyai/mh-runtime/errors"
)

func TestParseType(t *testing.T) {
	tests := []struct {
		desc    string
		kind    Kind
		basic   BasicType
		slots   int
		str     string
		wantErr bool
	}{
		{"I", KindInt, BasicI, 1, "int", false},
		{"Z", KindBoolean, BasicI, 1, "boolean", false},
		{"J", KindLong, BasicJ, 2, "long", false},
		{"D", KindDouble, BasicD, 2, "double", false},
		{"V", KindVoid, BasicV, 0, "void", false},
		{"LString;", KindReference, BasicL, 1, "String", false},
		{"[I", KindArray, BasicL, 1, "int[]", false},
		{"[[LObject;", KindArray, BasicL, 1, "Object[][]", false},
		{"[V", 0, 0, 0, "", true},
		{"L;", 0, 0, 0, "", true},
		{"Q", 0, 0, 0, "", true},
		{"II", 0, 0, 0, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			typ, err := ParseType(tt.desc)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.desc)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseType(%q): %v", tt.desc, err)
			}
			if typ.Kind() != tt.kind {
				t.Errorf("Kind = %v, want %v", typ.Kind(), tt.kind)
			}
			if typ.Basic() != tt.basic {
				t.Errorf("Basic = %v, want %v", typ.Basic(), tt.basic)
			}
			if typ.Slots() != tt.slots {
				t.Errorf("Slots = %d, want %d", typ.Slots(), tt.slots)
			}
			if typ.String() != tt.str {
				t.Errorf("String = %q, want %q", typ.String(), tt.str)
			}
		})
	}
}

func TestTable_Interning(t *testing.T) {
	tab := NewTable()
	a := tab.MustMake(Int, String, Long)
	b, err := tab.Parse("(LString;J)I")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if a != b {
		t.Fatal("structurally equal types must be identical")
	}
	if a.SlotCount() != 3 {
		t.Errorf("SlotCount = %d, want 3", a.SlotCount())
	}
	if a.String() != "(String,long)int" {
		t.Errorf("String = %q", a.String())
	}

	other := NewTable()
	if other.MustMake(Int, String, Long) == a {
		t.Error("types from different tables must not be identical")
	}
}

func TestTable_ConcurrentInterning(t *testing.T) {
	tab := NewTable()
	const n = 32
	results := make([]*MethodType, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = tab.MustMake(Boolean, String, Short)
		}(i)
	}
	wg.Wait()
	for i := 1; i < n; i++ {
		if results[i] != results[0] {
			t.Fatalf("goroutine %d observed a different instance", i)
		}
	}
}

func TestMethodType_Erasure(t *testing.T) {
	tab := NewTable()
	mt := tab.MustMake(Boolean, String, Short, Long)

	basic := mt.BasicType()
	if basic.Descriptor() != "(LObject;IJ)I" {
		t.Errorf("BasicType = %s", basic.Descriptor())
	}
	if !basic.IsBasic() || basic.BasicType() != basic {
		t.Error("basic type must be its own basic type")
	}

	erased := mt.Erase()
	if erased.Descriptor() != "(LObject;SJ)Z" {
		t.Errorf("Erase = %s", erased.Descriptor())
	}
	if erased.BasicType() != basic {
		t.Error("erasure and original must share the basic type")
	}
	if mt.IsErased() || mt.IsBasic() {
		t.Error("original is neither erased nor basic")
	}
	if mt.BasicSignature() != "LIJ_I" {
		t.Errorf("BasicSignature = %s", mt.BasicSignature())
	}
}

func TestMethodType_StructuralOps(t *testing.T) {
	tab := NewTable()
	mt := tab.MustMake(Int, Int, Int)

	inv, err := mt.InvokerType()
	if err != nil {
		t.Fatal(err)
	}
	if inv.Descriptor() != "(LHandle;II)I" {
		t.Errorf("InvokerType = %s", inv.Descriptor())
	}

	app, _ := mt.AppendParams(String)
	if app.Descriptor() != "(IILString;)I" {
		t.Errorf("AppendParams = %s", app.Descriptor())
	}

	rep, _ := mt.ReplaceParams(0, 2, ArrayOf(Int))
	if rep.Descriptor() != "([I)I" {
		t.Errorf("ReplaceParams = %s", rep.Descriptor())
	}

	drop, _ := mt.DropParams(0, 1)
	if drop.Descriptor() != "(I)I" {
		t.Errorf("DropParams = %s", drop.Descriptor())
	}

	ret, _ := mt.ChangeReturn(Void)
	if ret.Descriptor() != "(II)V" {
		t.Errorf("ChangeReturn = %s", ret.Descriptor())
	}

	_, err = mt.ReplaceParams(1, 5)
	var e *rterrors.Error
	if !errors.As(err, &e) || e.Kind != rterrors.KindInvalidInput {
		t.Fatalf("ReplaceParams(1, 5) error = %v, want invalid_input", err)
	}
	if e.Detail != "parameter range [1,5) out of bounds" || e.Actual != "(II)I" {
		t.Errorf("detail = %q, actual = %q", e.Detail, e.Actual)
	}

	g := mt.Generic()
	if !g.IsGeneric() || g.ParamCount() != 2 {
		t.Errorf("Generic = %s", g)
	}
}

func TestTable_ArityLimit(t *testing.T) {
	tab := NewTable()
	longs := make([]Type, 128)
	for i := range longs {
		longs[i] = Long
	}
	_, err := tab.Make(Void, longs...)
	if err == nil {
		t.Fatal("256 slots must be rejected")
	}
	if !errors.Is(err, rterrors.ErrArityLimit) {
		t.Errorf("expected arity limit error, got %v", err)
	}

	ints := make([]Type, MaxArity)
	for i := range ints {
		ints[i] = Int
	}
	if _, err := tab.Make(Void, ints...); err != nil {
		t.Errorf("255 slots must be accepted: %v", err)
	}
}

func TestTable_RejectsVoidParam(t *testing.T) {
	tab := NewTable()
	if _, err := tab.Make(Int, Void); err == nil {
		t.Error("void parameter must be rejected")
	}
	if _, err := tab.Parse("(V)V"); err == nil {
		t.Error("void parameter descriptor must be rejected")
	}
}

type point struct{}

func (point) ClassName() string { return "Point" }

func TestClasses(t *testing.T) {
	tests := []struct {
		name string
		v    any
		want Type
	}{
		{"int32", int32(1), IntegerClass},
		{"int64", int64(1), LongClass},
		{"string", "x", String},
		{"ints", []int32{1}, ArrayOf(Int)},
		{"objects", []any{1}, ObjectArray},
		{"classed", point{}, ClassType("Point")},
		{"unknown", struct{}{}, Object},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassOf(tt.v); got != tt.want {
				t.Errorf("ClassOf = %v, want %v", got, tt.want)
			}
		})
	}

	if !IsAssignable(Number, IntegerClass) {
		t.Error("Integer is a Number")
	}
	if IsAssignable(String, Object) {
		t.Error("Object is not a String")
	}
	if !IsAssignable(ArrayOf(Object), ArrayOf(String)) {
		t.Error("reference arrays are covariant")
	}
	if IsAssignable(ArrayOf(Object), ArrayOf(Int)) {
		t.Error("primitive arrays are not Object[]")
	}
	if !Conforms(Int, int32(3)) || Conforms(Int, 3) {
		t.Error("int values are int32")
	}
	if !Conforms(String, nil) {
		t.Error("nil conforms to every reference type")
	}
	if Zero(Long) != int64(0) || Zero(String) != nil {
		t.Error("unexpected zero values")
	}
}
