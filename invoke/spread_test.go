package invoke

import (
	"errors"
	"testing"

	rterrors "github.com/wippyai/mh-runtime/errors"
	"github.com/wippyai/mh-runtime/mtype"
)

func TestSpreadInvoker_RoundTrip(t *testing.T) {
	r := newTestRegistry(t)
	tab := r.Types()
	mt := tab.MustMake(mtype.Int, mtype.Object, mtype.Int, mtype.Int)
	target := mustHandle(t, r, mt, func(args []any) (any, error) {
		return args[1].(int32)*10 + args[2].(int32), nil
	})

	direct, err := target.InvokeBasic("ignored", int32(3), int32(4))
	if err != nil {
		t.Fatal(err)
	}

	spread, err := r.SpreadInvoker(mt, 1)
	if err != nil {
		t.Fatal(err)
	}
	want := tab.MustMake(mtype.Int, mtype.HandleType, mtype.Object, mtype.ArrayOf(mtype.Int))
	if spread.Type() != want {
		t.Fatalf("spread invoker type = %s, want %s", spread.Type(), want)
	}
	got, err := spread.InvokeBasic(target, "ignored", []int32{3, 4})
	if err != nil {
		t.Fatal(err)
	}
	if got != direct {
		t.Errorf("spread = %v, direct = %v", got, direct)
	}

	_, err = spread.InvokeBasic(target, "ignored", []int32{3})
	if !errors.Is(err, rterrors.ErrInvalidValue) {
		t.Errorf("short array: expected invalid value, got %v", err)
	}
}

func TestSpreadInvoker_Heterogeneous(t *testing.T) {
	r := newTestRegistry(t)
	mt := r.Types().MustMake(mtype.Int, mtype.Int, mtype.Long)

	h, err := r.SpreadInvoker(mt, 0)
	if h != nil || !errors.Is(err, rterrors.ErrHeterogeneousSpread) {
		t.Fatalf("expected heterogeneous spread error, got %v, %v", h, err)
	}

	if _, err := r.SpreadInvoker(mt, 1); err != nil {
		t.Errorf("homogeneous tail must succeed: %v", err)
	}
}

func TestImpliedRestargType(t *testing.T) {
	tab := mtype.NewTable()
	tests := []struct {
		name string
		mt   *mtype.MethodType
		from int
		want mtype.Type
	}{
		{"generic", tab.MustMake(mtype.Object, mtype.Object, mtype.Object), 0, mtype.ObjectArray},
		{"empty tail", tab.MustMake(mtype.Int, mtype.Int), 1, mtype.ObjectArray},
		{"ints", tab.MustMake(mtype.Int, mtype.String, mtype.Int, mtype.Int), 1, mtype.ArrayOf(mtype.Int)},
		{"objects", tab.MustMake(mtype.Int, mtype.Object, mtype.Object), 0, mtype.ObjectArray},
		{"strings", tab.MustMake(mtype.Void, mtype.String), 0, mtype.ArrayOf(mtype.String)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := impliedRestargType(tt.mt, tt.from)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSpreadInvoker_ArityOverflow(t *testing.T) {
	r := newTestRegistry(t)
	tab := r.Types()
	mt := tab.MustMake(mtype.Long, repeatType(mtype.Int, 254)...)
	if mt.SlotCount() <= mtype.MaxInvokerArity {
		t.Fatal("test type must exceed the invoker arity")
	}
	target := mustHandle(t, r, mt, func(args []any) (any, error) {
		var sum int64
		for _, a := range args {
			sum += int64(a.(int32))
		}
		return sum, nil
	})

	if _, err := r.GenericInvoker(mt); !errors.Is(err, rterrors.ErrArityLimit) {
		t.Fatalf("a direct generic invoker must not exist: %v", err)
	}

	spread, err := r.SpreadInvoker(mt, 0)
	if err != nil {
		t.Fatalf("SpreadInvoker: %v", err)
	}
	if want := tab.MustMake(mtype.Long, mtype.HandleType, mtype.ArrayOf(mtype.Int)); spread.Type() != want {
		t.Fatalf("type = %s, want %s", spread.Type(), want)
	}
	if spread.Program().Kind() != KindFilter {
		t.Errorf("expected a filtered two-stage invoker, got %s", spread.Program().Kind())
	}

	arr := make([]int32, 254)
	var want int64
	for i := range arr {
		arr[i] = int32(i)
		want += int64(i)
	}
	got, err := spread.InvokeBasic(target, arr)
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Errorf("got %v, want %d", got, want)
	}
}

func TestAsSpreader(t *testing.T) {
	r := newTestRegistry(t)
	tab := r.Types()
	target := mustHandle(t, r, tab.MustMake(mtype.Long, mtype.String, mtype.Long, mtype.Long), func(args []any) (any, error) {
		return args[1].(int64) - args[2].(int64), nil
	})

	sp, err := target.AsSpreader(mtype.ObjectArray, 2)
	if err != nil {
		t.Fatal(err)
	}
	if sp.Type() != tab.MustMake(mtype.Long, mtype.String, mtype.ObjectArray) {
		t.Fatalf("type = %s", sp.Type())
	}
	got, err := sp.InvokeBasic("s", []any{int64(10), int32(4)})
	if err != nil || got != int64(6) {
		t.Errorf("got %v, %v", got, err)
	}

	if _, err := target.AsSpreader(mtype.ArrayOf(mtype.String), 2); !errors.Is(err, rterrors.ErrSignatureMismatch) {
		t.Errorf("String[] cannot feed long parameters: %v", err)
	}
	if _, err := target.AsSpreader(mtype.Long, 1); err == nil {
		t.Error("non-array spread type must fail")
	}
}

func TestInvokeWithArguments(t *testing.T) {
	r := newTestRegistry(t)
	add, _ := countingAdd(t, r)

	got, err := add.InvokeWithArguments(int32(2), int32(40))
	if err != nil {
		t.Fatal(err)
	}
	if got != int32(42) {
		t.Errorf("got %v", got)
	}

	if _, err := add.InvokeWithArguments(int32(1)); !errors.Is(err, rterrors.ErrSignatureMismatch) {
		t.Errorf("wrong arity: %v", err)
	}
}
