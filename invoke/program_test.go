package invoke

import (
	"errors"
	"strings"
	"testing"

	rterrors "github.com/wippyai/mh-runtime/errors"
	"github.com/wippyai/mh-runtime/mtype"
)

func TestBuilder_Validation(t *testing.T) {
	r := newTestRegistry(t)

	tests := []struct {
		name  string
		build func(b *builder)
	}{
		{"forward reference", func(b *builder) {
			b.arg(mtype.BasicL)
			b.op(FuncConstant, mtype.BasicL, Ref(2))
			b.op(FuncConstant, mtype.BasicL, Const(1))
		}},
		{"self reference", func(b *builder) {
			b.arg(mtype.BasicL)
			b.op(FuncConstant, mtype.BasicL, Ref(1))
		}},
		{"argument after operation", func(b *builder) {
			b.arg(mtype.BasicL)
			b.op(FuncConstant, mtype.BasicL, Const(1))
			b.arg(mtype.BasicI)
		}},
		{"no operations", func(b *builder) {
			b.arg(mtype.BasicL)
		}},
		{"unknown operation", func(b *builder) {
			b.arg(mtype.BasicL)
			b.op(funcCount, mtype.BasicL)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBuilder(4)
			tt.build(b)
			_, err := b.build(r, KindDirectCall, "test")
			if err == nil {
				t.Fatal("expected internal error")
			}
			if !errors.Is(err, rterrors.ErrInternal) {
				t.Errorf("expected internal error, got %v", err)
			}
		})
	}
}

func TestProgram_RunInterpretedAndCompiled(t *testing.T) {
	r := newTestRegistry(t)
	b := newBuilder(4)
	a := b.arg(mtype.BasicI)
	c := b.op(FuncConstant, mtype.BasicI, Const(int32(7)))
	fn := Target(func(args []any) (any, error) {
		return args[0].(int32) * args[1].(int32), nil
	})
	b.op(FuncCallTarget, mtype.BasicI, Const(fn), Ref(a), Ref(c))
	p, err := b.build(r, KindDirectCall, "mul7")
	if err != nil {
		t.Fatal(err)
	}

	got, err := p.Run([]any{int32(6)})
	if err != nil || got != int32(42) {
		t.Fatalf("interpreted = %v, %v", got, err)
	}
	if p.IsCompiled() {
		t.Fatal("program must not be compiled yet")
	}

	if err := p.CompileToBytecode(); err != nil {
		t.Fatal(err)
	}
	if err := p.CompileToBytecode(); err != nil {
		t.Fatal(err)
	}
	if !p.IsCompiled() {
		t.Fatal("program must be compiled")
	}
	if got := r.Stats().Compiled; got != 1 {
		t.Errorf("compiled count = %d, want 1", got)
	}
	got, err = p.Run([]any{int32(3)})
	if err != nil || got != int32(21) {
		t.Fatalf("compiled = %v, %v", got, err)
	}

	if _, err := p.Run(nil); !errors.Is(err, rterrors.ErrInternal) {
		t.Errorf("arity mismatch: %v", err)
	}
}

type failingLowerer struct{}

func (failingLowerer) Lower(*Program) (Entry, error) {
	return nil, rterrors.Unsupported(rterrors.PhaseLower, "test")
}

func TestProgram_LoweringFailureFallsBack(t *testing.T) {
	r := newTestRegistry(t, func(c *Config) { c.Lowerer = failingLowerer{} })
	add, _ := countingAdd(t, r)

	inv, err := r.ExactInvoker(add.Type())
	if err != nil {
		t.Fatal(err)
	}
	if inv.Program().IsCompiled() {
		t.Error("failed lowering must leave the program interpreted")
	}
	got, err := inv.InvokeBasic(add, int32(2), int32(3))
	if err != nil || got != int32(5) {
		t.Fatalf("got %v, %v", got, err)
	}
}

func TestProgram_Dump(t *testing.T) {
	r := newTestRegistry(t)
	mt := r.Types().MustMake(mtype.Int, mtype.Int)
	p, err := r.invokeHandleForm(mt, false, KindExactInvoker)
	if err != nil {
		t.Fatal(err)
	}
	dump := p.Dump()
	for _, want := range []string{"invokeExact_MT_I_I", "checkExactType", "checkCustomized", "invokeBasic(a1,a2)", "boundValue(a0,0)"} {
		if !strings.Contains(dump, want) {
			t.Errorf("dump missing %q:\n%s", want, dump)
		}
	}
}
