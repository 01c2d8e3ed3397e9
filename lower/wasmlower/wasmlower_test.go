package wasmlower

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"golang.org/x/sync/errgroup"

	rterrors "github.com/wippyai/mh-runtime/errors"
	"github.com/wippyai/mh-runtime/invoke"
	"github.com/wippyai/mh-runtime/mtype"
)

func TestEncodeULEB128(t *testing.T) {
	tests := []struct {
		v    uint32
		want []byte
	}{
		{0, []byte{0x00}},
		{127, []byte{0x7f}},
		{128, []byte{0x80, 0x01}},
		{624485, []byte{0xe5, 0x8e, 0x26}},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.v), func(t *testing.T) {
			got := encodeULEB128(tt.v)
			if !bytes.Equal(got, tt.want) {
				t.Fatalf("got %x, want %x", got, tt.want)
			}
			v, n := decodeULEB128(got)
			if v != tt.v || n != len(got) {
				t.Errorf("decode = %d, %d", v, n)
			}
		})
	}
}

func TestEncodeSLEB128(t *testing.T) {
	tests := []struct {
		v    int32
		want []byte
	}{
		{0, []byte{0x00}},
		{-1, []byte{0x7f}},
		{63, []byte{0x3f}},
		{64, []byte{0xc0, 0x00}},
		{-64, []byte{0x40}},
		{-123456, []byte{0xc0, 0xbb, 0x78}},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.v), func(t *testing.T) {
			if got := encodeSLEB128(tt.v); !bytes.Equal(got, tt.want) {
				t.Errorf("got %x, want %x", got, tt.want)
			}
		})
	}
}

func TestBuildRunModule(t *testing.T) {
	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	defer rt.Close(ctx)

	for _, k := range []moduleKey{{1, 2}, {3, 9}, {100, 400}} {
		t.Run(fmt.Sprintf("%d-%d", k.first, k.last), func(t *testing.T) {
			compiled, err := rt.CompileModule(ctx, buildRunModule(k))
			if err != nil {
				t.Fatalf("compile: %v", err)
			}
			defer compiled.Close(ctx)

			run, ok := compiled.ExportedFunctions()[runName]
			if !ok {
				t.Fatal("run not exported")
			}
			if !equalTypes(run.ParamTypes(), i32) || !equalTypes(run.ResultTypes(), i32) {
				t.Errorf("run type = %v -> %v", run.ParamTypes(), run.ResultTypes())
			}
			imports := compiled.ImportedFunctions()
			if len(imports) != 1 {
				t.Fatalf("imports = %d", len(imports))
			}
			mod, name, _ := imports[0].Import()
			if mod != hostModuleName || name != execName {
				t.Errorf("import = %s.%s", mod, name)
			}
		})
	}
}

func equalTypes(a, b []api.ValueType) bool {
	return bytes.Equal(a, b)
}

func TestFrameTable(t *testing.T) {
	ft := newFrameTable()
	a, b := &frameState{}, &frameState{}

	ha := ft.acquire(a)
	hb := ft.acquire(b)
	if ha != 1 || hb != 2 {
		t.Fatalf("handles = %d, %d", ha, hb)
	}
	if ft.get(ha) != a || ft.get(hb) != b {
		t.Error("get returned the wrong frame")
	}
	if ft.get(0) != nil || ft.get(99) != nil {
		t.Error("invalid handles must not resolve")
	}

	ft.release(ha)
	ft.release(ha)
	if ft.get(ha) != nil {
		t.Error("released handle still resolves")
	}
	if ft.live() != 1 {
		t.Errorf("live = %d", ft.live())
	}
	c := &frameState{}
	if h := ft.acquire(c); h != ha {
		t.Errorf("freed handle not reused: %d", h)
	}
}

func newTestLowerer(t *testing.T) *Lowerer {
	t.Helper()
	ctx := context.Background()
	l, err := New(ctx)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = l.Close(ctx) })
	return l
}

func newRegistry(l *Lowerer) *invoke.Registry {
	cfg := invoke.DefaultConfig()
	cfg.Lowerer = l
	cfg.DebugChecks = true
	return invoke.NewRegistry(&cfg)
}

func addHandle(t *testing.T, r *invoke.Registry) *invoke.Handle {
	t.Helper()
	mt := r.Types().MustMake(mtype.Int, mtype.Int, mtype.Int)
	h, err := r.FromFunc(mt, func(args []any) (any, error) {
		return args[0].(int32) + args[1].(int32), nil
	})
	if err != nil {
		t.Fatal(err)
	}
	return h
}

func TestLowerer_RunsInvokers(t *testing.T) {
	l := newTestLowerer(t)
	r := newRegistry(l)
	add := addHandle(t, r)

	inv, err := r.ExactInvoker(add.Type())
	if err != nil {
		t.Fatal(err)
	}
	if !inv.Program().IsCompiled() {
		t.Fatal("small erased invoker not lowered")
	}
	got, err := inv.InvokeBasic(add, int32(2), int32(3))
	if err != nil {
		t.Fatal(err)
	}
	if got != int32(5) {
		t.Errorf("got %v", got)
	}
	if l.Calls() == 0 {
		t.Error("call did not go through a run module")
	}
	if l.frames.live() != 0 {
		t.Errorf("%d frames leaked", l.frames.live())
	}
}

func TestLowerer_PropagatesErrors(t *testing.T) {
	l := newTestLowerer(t)
	r := newRegistry(l)
	add := addHandle(t, r)

	other, err := r.FromFunc(r.Types().MustMake(mtype.Int, mtype.Int, mtype.Long), func([]any) (any, error) {
		return int32(0), nil
	})
	if err != nil {
		t.Fatal(err)
	}
	inv, _ := r.ExactInvoker(add.Type())
	_, err = inv.InvokeBasic(other, int32(1), int32(2))
	if !errors.Is(err, rterrors.ErrSignatureMismatch) {
		t.Errorf("expected signature mismatch, got %v", err)
	}
	if l.frames.live() != 0 {
		t.Errorf("%d frames leaked", l.frames.live())
	}
}

func TestLowerer_NestedRuns(t *testing.T) {
	l := newTestLowerer(t)
	r := newRegistry(l)
	add := addHandle(t, r)
	inv, _ := r.ExactInvoker(add.Type())

	// The linker runs in one module and calls the lowered invoker, which
	// runs in another instance from inside exec.
	got, err := r.InvokeExact(inv, inv.Type(), add, int32(20), int32(22))
	if err != nil {
		t.Fatal(err)
	}
	if got != int32(42) {
		t.Errorf("got %v", got)
	}

	generic := r.Types().MustMake(mtype.Object, mtype.Object, mtype.Object)
	got, err = r.Invoke(add, generic, int32(1), int32(1))
	if err != nil || got != int32(2) {
		t.Errorf("generic: %v, %v", got, err)
	}
}

func TestLowerer_SharesModules(t *testing.T) {
	l := newTestLowerer(t)
	r := newRegistry(l)
	tab := r.Types()

	a, err := r.ExactInvoker(tab.MustMake(mtype.Int, mtype.Int, mtype.Int))
	if err != nil {
		t.Fatal(err)
	}
	before := l.Modules()
	b, err := r.ExactInvoker(tab.MustMake(mtype.Long, mtype.Long, mtype.Long))
	if err != nil {
		t.Fatal(err)
	}
	if a.Program() == b.Program() {
		t.Fatal("different basic types must not share a program")
	}
	if !b.Program().IsCompiled() || l.Modules() != before {
		t.Errorf("programs of one shape must share a module: %d -> %d", before, l.Modules())
	}
}

func TestLowerer_Concurrent(t *testing.T) {
	l := newTestLowerer(t)
	r := newRegistry(l)
	add := addHandle(t, r)
	inv, _ := r.ExactInvoker(add.Type())

	var g errgroup.Group
	for w := int32(0); w < 16; w++ {
		g.Go(func() error {
			for i := int32(0); i < 50; i++ {
				got, err := r.InvokeExact(inv, inv.Type(), add, w, i)
				if err != nil {
					return err
				}
				if got != w+i {
					return fmt.Errorf("got %v, want %d", got, w+i)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
	if l.frames.live() != 0 {
		t.Errorf("%d frames leaked", l.frames.live())
	}
}

func TestLowerer_Closed(t *testing.T) {
	ctx := context.Background()
	l, err := NewWithConfig(ctx, &Config{Interpreter: true, MaxIdleInstances: 1})
	if err != nil {
		t.Fatal(err)
	}
	r := newRegistry(l)
	add := addHandle(t, r)
	inv, _ := r.ExactInvoker(add.Type())
	if got, err := inv.InvokeBasic(add, int32(1), int32(1)); err != nil || got != int32(2) {
		t.Fatalf("interpreter: %v, %v", got, err)
	}

	if err := l.Close(ctx); err != nil {
		t.Fatal(err)
	}
	if err := l.Close(ctx); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if _, err := l.Lower(inv.Program()); err == nil {
		t.Error("Lower after Close succeeded")
	}
}
