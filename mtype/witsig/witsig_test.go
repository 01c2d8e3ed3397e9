package witsig

import (
	"testing"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/mh-runtime/mtype"
)

func TestFieldType(t *testing.T) {
	name := "http-request"
	tests := []struct {
		name string
		in   wit.Type
		want mtype.Type
	}{
		{"bool", wit.Bool{}, mtype.Boolean},
		{"u8", wit.U8{}, mtype.Byte},
		{"s16", wit.S16{}, mtype.Short},
		{"u32", wit.U32{}, mtype.Int},
		{"s64", wit.S64{}, mtype.Long},
		{"f32", wit.F32{}, mtype.Float},
		{"f64", wit.F64{}, mtype.Double},
		{"char", wit.Char{}, mtype.Char},
		{"string", wit.String{}, mtype.String},
		{"list", &wit.TypeDef{Kind: &wit.List{Type: wit.U32{}}}, mtype.ArrayOf(mtype.Int)},
		{"named record", &wit.TypeDef{Name: &name, Kind: &wit.Record{}}, mtype.ClassType("HttpRequest")},
		{"anonymous tuple", &wit.TypeDef{Kind: &wit.Tuple{Types: []wit.Type{wit.U32{}}}}, mtype.Object},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FieldType(tt.in)
			if err != nil {
				t.Fatalf("FieldType: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMethodType(t *testing.T) {
	tab := mtype.NewTable()

	mt, err := MethodType(tab, []wit.Type{wit.U32{}, wit.String{}}, []wit.Type{wit.U64{}})
	if err != nil {
		t.Fatal(err)
	}
	if mt.Descriptor() != "(ILString;)J" {
		t.Errorf("descriptor = %s", mt.Descriptor())
	}

	void, _ := MethodType(tab, nil, nil)
	if void.Descriptor() != "()V" {
		t.Errorf("descriptor = %s", void.Descriptor())
	}

	multi, _ := MethodType(tab, nil, []wit.Type{wit.U32{}, wit.U32{}})
	if multi.Return() != mtype.ObjectArray {
		t.Errorf("return = %v", multi.Return())
	}
}

func TestParse(t *testing.T) {
	tab := mtype.NewTable()
	mt, err := Parse(tab, []string{"u32", "list<u8>"}, []string{"string"})
	if err != nil {
		t.Fatal(err)
	}
	want := tab.MustMake(mtype.String, mtype.Int, mtype.ArrayOf(mtype.Byte))
	if mt != want {
		t.Errorf("got %v, want %v", mt, want)
	}

	if _, err := Parse(tab, []string{"not a type"}, nil); err == nil {
		t.Error("expected parse error")
	}
}

func TestParseType_Lists(t *testing.T) {
	tab := mtype.NewTable()
	tests := []struct {
		in   string
		want mtype.Type
	}{
		{"list<u8>", mtype.ArrayOf(mtype.Byte)},
		{" list<string> ", mtype.ArrayOf(mtype.String)},
		{"list<list<u64>>", mtype.ArrayOf(mtype.ArrayOf(mtype.Long))},
		{"list<list<list<f32>>>", mtype.ArrayOf(mtype.ArrayOf(mtype.ArrayOf(mtype.Float)))},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			wt, err := ParseType(tt.in)
			if err != nil {
				t.Fatal(err)
			}
			got, err := FieldType(wt)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("FieldType = %v, want %v", got, tt.want)
			}
		})
	}

	mt, err := Parse(tab, []string{"list<list<s32>>"}, []string{"list<char>"})
	if err != nil {
		t.Fatal(err)
	}
	if mt.Descriptor() != "([[I)[C" {
		t.Errorf("descriptor = %s, want ([[I)[C", mt.Descriptor())
	}

	for _, bad := range []string{"list<u8", "list<>", "list<nope>"} {
		if _, err := Parse(tab, []string{bad}, nil); err == nil {
			t.Errorf("Parse(%q): expected error", bad)
		}
	}
}
