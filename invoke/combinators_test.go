package invoke

import (
	"errors"
	"testing"

	rterrors "github.com/wippyai/mh-runtime/errors"
	"github.com/wippyai/mh-runtime/mtype"
)

func TestFilterArgument(t *testing.T) {
	r := newTestRegistry(t)
	tab := r.Types()
	add, _ := countingAdd(t, r)
	length := mustHandle(t, r, tab.MustMake(mtype.Int, mtype.String), func(args []any) (any, error) {
		return int32(len(args[0].(string))), nil
	})

	f, err := FilterArgument(add, 1, length)
	if err != nil {
		t.Fatal(err)
	}
	if f.Type() != tab.MustMake(mtype.Int, mtype.Int, mtype.String) {
		t.Fatalf("type = %s", f.Type())
	}
	got, err := f.InvokeBasic(int32(1), "abcd")
	if err != nil || got != int32(5) {
		t.Errorf("got %v, %v", got, err)
	}

	wide := mustHandle(t, r, tab.MustMake(mtype.Long, mtype.String), func([]any) (any, error) { return int64(0), nil })
	if _, err := FilterArgument(add, 0, wide); !errors.Is(err, rterrors.ErrSignatureMismatch) {
		t.Errorf("filter returning long accepted: %v", err)
	}
	if _, err := FilterArgument(add, 2, length); err == nil {
		t.Error("out of range position accepted")
	}
}

func TestInsertArguments(t *testing.T) {
	r := newTestRegistry(t)
	tab := r.Types()
	sub := mustHandle(t, r, tab.MustMake(mtype.Int, mtype.Int, mtype.Int), func(args []any) (any, error) {
		return args[0].(int32) - args[1].(int32), nil
	})

	tests := []struct {
		name string
		pos  int
		arg  int32
		want int32
	}{
		{"first", 0, 10, 7},
		{"last", 1, 10, -7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := InsertArguments(sub, tt.pos, tt.arg)
			if err != nil {
				t.Fatal(err)
			}
			if h.Type() != tab.MustMake(mtype.Int, mtype.Int) {
				t.Fatalf("type = %s", h.Type())
			}
			got, err := h.InvokeBasic(int32(3))
			if err != nil || got != tt.want {
				t.Errorf("got %v, %v; want %d", got, err, tt.want)
			}
		})
	}

	if _, err := InsertArguments(sub, 0, int64(1)); !errors.Is(err, rterrors.ErrInvalidValue) {
		t.Errorf("non-conforming value accepted: %v", err)
	}
	if _, err := InsertArguments(sub, 2, int32(1)); err == nil {
		t.Error("out of range position accepted")
	}
}

func TestBindTo(t *testing.T) {
	r := newTestRegistry(t)
	tab := r.Types()
	concat := mustHandle(t, r, tab.MustMake(mtype.String, mtype.String, mtype.String), func(args []any) (any, error) {
		return args[0].(string) + args[1].(string), nil
	})

	bound, err := concat.BindTo("a")
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := bound.InvokeBasic("b"); got != "ab" {
		t.Errorf("got %v", got)
	}

	add, _ := countingAdd(t, r)
	if _, err := add.BindTo(int32(1)); err == nil {
		t.Error("bindTo on a primitive parameter accepted")
	}
}

func TestConstantAndIdentity(t *testing.T) {
	r := newTestRegistry(t)

	c, err := r.Constant(mtype.String, "k")
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := c.InvokeBasic(); got != "k" {
		t.Errorf("constant = %v", got)
	}
	if _, err := r.Constant(mtype.Int, "x"); !errors.Is(err, rterrors.ErrInvalidValue) {
		t.Errorf("mistyped constant accepted: %v", err)
	}

	id, err := r.Identity(mtype.Long)
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := id.InvokeBasic(int64(9)); got != int64(9) {
		t.Errorf("identity = %v", got)
	}
	if id.String() != "identity(long)long" {
		t.Errorf("String = %q", id.String())
	}
}
