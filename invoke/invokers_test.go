package invoke

import (
	"errors"
	"testing"

	"golang.org/x/sync/errgroup"

	rterrors "github.com/wippyai/mh-runtime/errors"
	"github.com/wippyai/mh-runtime/mtype"
)

func TestInvokers_IdempotentCaching(t *testing.T) {
	r := newTestRegistry(t)
	mt := r.Types().MustMake(mtype.Int, mtype.String, mtype.Int)

	getters := map[string]func() (*Handle, error){
		"exact":   func() (*Handle, error) { return r.ExactInvoker(mt) },
		"generic": func() (*Handle, error) { return r.GenericInvoker(mt) },
		"basic":   func() (*Handle, error) { return r.BasicInvoker(mt) },
		"spread":  func() (*Handle, error) { return r.SpreadInvoker(mt, 1) },
		"varhandle": func() (*Handle, error) {
			return r.VarHandleInvoker(mt, ModeGet)
		},
	}
	for name, get := range getters {
		t.Run(name, func(t *testing.T) {
			a, err := get()
			if err != nil {
				t.Fatal(err)
			}
			b, err := get()
			if err != nil {
				t.Fatal(err)
			}
			if a != b {
				t.Error("sequential requests returned different instances")
			}
		})
	}

	if r.Invokers(mt) != r.Invokers(mt) {
		t.Error("invoker cache must be unique per signature")
	}
}

func TestInvokers_ConcurrentPublication(t *testing.T) {
	const n = 64
	kinds := []InvokerKind{InvokerExact, InvokerGeneric, InvokerBasic, InvokerVarHandle, InvokerSpread}
	for _, kind := range kinds {
		t.Run(kind.String(), func(t *testing.T) {
			r := newTestRegistry(t)
			mt := r.Types().MustMake(mtype.Long, mtype.Object, mtype.Long)
			results := make([]*Handle, n)
			var g errgroup.Group
			for i := 0; i < n; i++ {
				g.Go(func() error {
					h, err := r.Warm(CachedInvoker{Type: mt, Kind: kind, Mode: ModeGet, Leading: 1})
					results[i] = h
					return err
				})
			}
			if err := g.Wait(); err != nil {
				t.Fatal(err)
			}
			for i := 1; i < n; i++ {
				if results[i] != results[0] {
					t.Fatalf("goroutine %d observed a different %s invoker", i, kind)
				}
			}
		})
	}
}

func TestInvokers_ConcurrentFormSharing(t *testing.T) {
	r := newTestRegistry(t)
	tab := r.Types()
	types := []*mtype.MethodType{
		tab.MustMake(mtype.Int, mtype.String),
		tab.MustMake(mtype.Boolean, mtype.Object),
		tab.MustMake(mtype.Short, mtype.Number),
	}
	results := make([]*Handle, 3*8)
	var g errgroup.Group
	for i := range results {
		g.Go(func() error {
			h, err := r.ExactInvoker(types[i%3])
			results[i] = h
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
	p := results[0].Program()
	for i, h := range results {
		if h.Program() != p {
			t.Fatalf("invoker %d does not share the erased program", i)
		}
	}
	if results[0] == results[1] {
		t.Error("distinct signatures must have distinct invokers")
	}
}

func TestBasicInvoker_ErasureSharing(t *testing.T) {
	r := newTestRegistry(t)
	mt := r.Types().MustMake(mtype.Boolean, mtype.String, mtype.Char)
	basic := mt.BasicType()
	if basic == mt {
		t.Fatal("test type must not be basic")
	}

	viaOriginal, err := r.BasicInvoker(mt)
	if err != nil {
		t.Fatal(err)
	}
	viaBasic, err := r.BasicInvoker(basic)
	if err != nil {
		t.Fatal(err)
	}
	if viaOriginal.Program() != viaBasic.Program() {
		t.Error("basic invokers must share one program")
	}
	if r.Invokers(mt) == r.Invokers(basic) {
		t.Error("signatures must keep distinct cache entries")
	}
	if r.Invokers(mt).cachedInvoker(InvokerBasic) == nil {
		t.Error("basic invoker must be cached under the original signature")
	}
	if viaBasic.Type() != r.Types().MustMake(mtype.Int, mtype.HandleType, mtype.Object, mtype.Int) {
		t.Errorf("basic invoker type = %s", viaBasic.Type())
	}

	target := mustHandle(t, r, mt, func(args []any) (any, error) {
		return args[0].(string) == string(rune(args[1].(uint16))), nil
	})
	got, err := viaOriginal.InvokeBasic(target, "x", uint16('x'))
	if err != nil || got != true {
		t.Errorf("got %v, %v", got, err)
	}
}

func TestExactInvoker_RejectsMismatch(t *testing.T) {
	r := newTestRegistry(t)
	tab := r.Types()
	intToInt := tab.MustMake(mtype.Int, mtype.Int)
	longToInt := tab.MustMake(mtype.Int, mtype.Long)

	calls := 0
	target := mustHandle(t, r, longToInt, func(args []any) (any, error) {
		calls++
		return int32(args[0].(int64)), nil
	})

	inv, err := r.ExactInvoker(intToInt)
	if err != nil {
		t.Fatal(err)
	}
	_, err = inv.InvokeBasic(target, int32(1))
	if !errors.Is(err, rterrors.ErrSignatureMismatch) {
		t.Fatalf("expected signature mismatch, got %v", err)
	}
	var rerr *rterrors.Error
	if !errors.As(err, &rerr) || rerr.Expected != "(int)int" || rerr.Actual != "(long)int" {
		t.Errorf("unexpected error detail: %v", err)
	}
	if calls != 0 {
		t.Errorf("target called %d times after a failed check", calls)
	}

	exact, err := r.ExactInvoker(longToInt)
	if err != nil {
		t.Fatal(err)
	}
	got, err := exact.InvokeBasic(target, int64(9))
	if err != nil || got != int32(9) {
		t.Errorf("got %v, %v", got, err)
	}
}

func TestGenericInvoker_Converts(t *testing.T) {
	r := newTestRegistry(t)
	tab := r.Types()
	callerType := tab.MustMake(mtype.Long, mtype.Int)
	target := mustHandle(t, r, tab.MustMake(mtype.Long, mtype.Long), func(args []any) (any, error) {
		return args[0].(int64) * 2, nil
	})

	inv, err := r.GenericInvoker(callerType)
	if err != nil {
		t.Fatal(err)
	}
	got, err := inv.InvokeBasic(target, int32(21))
	if err != nil {
		t.Fatal(err)
	}
	if got != int64(42) {
		t.Errorf("got %v (%T), want 42", got, got)
	}

	boxed := tab.MustMake(mtype.Object, mtype.Object)
	gen, err := r.GenericInvoker(boxed)
	if err != nil {
		t.Fatal(err)
	}
	got, err = gen.InvokeBasic(target, int64(5))
	if err != nil || got != int64(10) {
		t.Errorf("boxed call = %v, %v", got, err)
	}
	if _, err := gen.InvokeBasic(target, "five"); !errors.Is(err, rterrors.ErrClassCast) {
		t.Errorf("expected class cast, got %v", err)
	}
}

func TestInvokers_EagerCompile(t *testing.T) {
	tests := []struct {
		name   string
		limit  int
		params []mtype.Type
		want   bool
	}{
		{"erased small", DefaultEagerCompileArityLimit, []mtype.Type{mtype.Int, mtype.Object}, true},
		{"not erased", DefaultEagerCompileArityLimit, []mtype.Type{mtype.String}, false},
		{"too many params", DefaultEagerCompileArityLimit, repeatType(mtype.Int, 10), false},
		{"disabled", 0, []mtype.Type{mtype.Int}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRegistry(t, func(c *Config) { c.EagerCompileArityLimit = tt.limit })
			mt := r.Types().MustMake(mtype.Int, tt.params...)
			inv, err := r.GenericInvoker(mt)
			if err != nil {
				t.Fatal(err)
			}
			if got := inv.Program().IsCompiled(); got != tt.want {
				t.Errorf("compiled = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestInvokers_ArityLimitIsFatal(t *testing.T) {
	r := newTestRegistry(t)
	wide := r.Types().MustMake(mtype.Int, repeatType(mtype.Int, 254)...)

	for name, get := range map[string]func() (*Handle, error){
		"exact":   func() (*Handle, error) { return r.ExactInvoker(wide) },
		"generic": func() (*Handle, error) { return r.GenericInvoker(wide) },
	} {
		t.Run(name, func(t *testing.T) {
			h, err := get()
			if h != nil || !errors.Is(err, rterrors.ErrArityLimit) {
				t.Fatalf("expected arity limit, got %v, %v", h, err)
			}
			var rerr *rterrors.Error
			if !errors.As(err, &rerr) || !rerr.Fatal() {
				t.Error("arity limit must be fatal")
			}
			if r.Invokers(wide).cachedInvoker(InvokerExact) != nil || r.Invokers(wide).cachedInvoker(InvokerGeneric) != nil {
				t.Error("failed construction must not publish")
			}
		})
	}
}

func TestInvokers_ForeignTypeRejected(t *testing.T) {
	r := newTestRegistry(t)
	foreign := mtype.NewTable().MustMake(mtype.Int)
	if _, err := r.ExactInvoker(foreign); err == nil {
		t.Error("expected error for a type from another table")
	}
}

func TestInvokers_String(t *testing.T) {
	r := newTestRegistry(t)
	mt := r.Types().MustMake(mtype.Int, mtype.Int)
	if got := r.Invokers(mt).String(); got != "Invokers(int)int" {
		t.Errorf("String = %q", got)
	}
	inv, _ := r.ExactInvoker(mt)
	if got := inv.String(); got != "invokeExact(Handle,int)int" {
		t.Errorf("invoker String = %q", got)
	}
}

func TestRegistry_CachedAndWarm(t *testing.T) {
	r := newTestRegistry(t)
	mt := r.Types().MustMake(mtype.Int, mtype.Int)
	if _, err := r.ExactInvoker(mt); err != nil {
		t.Fatal(err)
	}
	if _, err := r.VarHandleExactInvoker(mt, ModeGetAndAdd); err != nil {
		t.Fatal(err)
	}

	cached := r.Cached()
	if len(cached) != 2 {
		t.Fatalf("cached = %v", cached)
	}

	fresh := NewRegistryWithTable(r.Types(), nil)
	for _, c := range cached {
		if _, err := fresh.Warm(c); err != nil {
			t.Fatalf("warm %v: %v", c, err)
		}
	}
	if got := len(fresh.Cached()); got != 2 {
		t.Errorf("warmed registry has %d invokers, want 2", got)
	}
}
