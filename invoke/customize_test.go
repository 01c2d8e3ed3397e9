package invoke

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"golang.org/x/sync/errgroup"

	"github.com/wippyai/mh-runtime/mtype"
)

func TestCustomize_FiresOnceUnderContention(t *testing.T) {
	var hooks atomic.Int64
	r := newTestRegistry(t, func(c *Config) {
		c.CustomizeThreshold = 3
		c.OnCustomize = func(*Handle) { hooks.Add(1) }
	})
	add, calls := countingAdd(t, r)
	mt := add.Type()
	shared := add.Program()

	var g errgroup.Group
	for i := 0; i < 32; i++ {
		g.Go(func() error {
			for j := int32(0); j < 16; j++ {
				got, err := r.InvokeExact(add, mt, j, int32(1))
				if err != nil {
					return err
				}
				if got != j+1 {
					return fmt.Errorf("got %v, want %d", got, j+1)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}

	if n := hooks.Load(); n != 1 {
		t.Fatalf("customization hook fired %d times", n)
	}
	if !add.IsCustomized() {
		t.Fatal("handle not customized")
	}
	p := add.Program()
	if p == shared || p.Customized() != add {
		t.Errorf("handle program not specialized: %s", p.DebugName())
	}
	if shared.Customized() != nil {
		t.Error("shared program must stay generic")
	}
	if calls.Load() != 32*16 {
		t.Errorf("target called %d times", calls.Load())
	}
	if s := r.Stats(); s.Customized != 1 {
		t.Errorf("stats report %d customizations", s.Customized)
	}
}

func TestCustomize_Disabled(t *testing.T) {
	r := newTestRegistry(t, func(c *Config) { c.CustomizeThreshold = -1 })
	add, _ := countingAdd(t, r)

	l, err := r.MethodHandleInvokeLinker("invokeExact", add.Type())
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(l.Program.Dump(), "checkCustomized") {
		t.Errorf("linker counts calls with customization off:\n%s", l.Program.Dump())
	}
	for i := 0; i < 300; i++ {
		if _, err := r.InvokeExact(add, add.Type(), int32(i), int32(i)); err != nil {
			t.Fatal(err)
		}
	}
	if add.IsCustomized() || add.CustomizationCount() != 0 {
		t.Errorf("customized=%v count=%d", add.IsCustomized(), add.CustomizationCount())
	}
}

func TestCustomize_InvokerBakesInType(t *testing.T) {
	r := newTestRegistry(t, func(c *Config) { c.CustomizeThreshold = 0 })
	add, _ := countingAdd(t, r)
	mt := add.Type()

	inv, err := r.ExactInvoker(mt)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		got, err := r.InvokeExact(inv, inv.Type(), add, int32(2), int32(3))
		if err != nil {
			t.Fatal(err)
		}
		if got != int32(5) {
			t.Fatalf("got %v", got)
		}
	}

	if !inv.IsCustomized() || !add.IsCustomized() {
		t.Fatalf("invoker customized=%v target customized=%v", inv.IsCustomized(), add.IsCustomized())
	}
	p := inv.Program()
	if p.Customized() != inv || !strings.HasSuffix(p.DebugName(), "_customized") {
		t.Fatalf("unexpected program %s", p.DebugName())
	}
	var checked bool
	for i := p.Arity(); i < p.Len(); i++ {
		n := p.Name(i)
		switch n.Func() {
		case FuncBoundValue:
			t.Errorf("customized invoker still reads bound values:\n%s", p.Dump())
		case FuncCheckExactType:
			o := n.Operands()[1]
			checked = o.IsConst() && o.Value() == mt
		}
	}
	if !checked {
		t.Errorf("expected type is not a constant:\n%s", p.Dump())
	}

	form, err := r.invokeHandleForm(mt, false, KindExactInvoker)
	if err != nil {
		t.Fatal(err)
	}
	if form.Customized() != nil {
		t.Error("cached form was modified")
	}
}

func TestCustomize_FoldsBoundValues(t *testing.T) {
	r := newTestRegistry(t, func(c *Config) { c.CustomizeThreshold = 1 })
	add, _ := countingAdd(t, r)
	plus40, err := InsertArguments(add, 0, int32(40))
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		got, err := r.Invoke(plus40, plus40.Type(), int32(2))
		if err != nil {
			t.Fatal(err)
		}
		if got != int32(42) {
			t.Fatalf("call %d: got %v", i, got)
		}
	}
	if !plus40.IsCustomized() {
		t.Fatal("handle not customized")
	}
	p := plus40.Program()
	for i := p.Arity(); i < p.Len(); i++ {
		if p.Name(i).Func() == FuncBoundValue {
			t.Errorf("bound value not folded:\n%s", p.Dump())
		}
	}
}

func TestCustomize_FailureKeepsSharedProgram(t *testing.T) {
	var hooks atomic.Int32
	r := newTestRegistry(t, func(c *Config) {
		c.CustomizeThreshold = 0
		c.OnCustomize = func(*Handle) { hooks.Add(1) }
	})
	mt := r.Types().MustMake(mtype.Int, mtype.Int)

	// Reads a bound value the handle does not carry, so folding fails.
	b := newBuilder(3)
	this := b.arg(mtype.BasicL)
	b.arg(mtype.BasicI)
	b.op(FuncBoundValue, mtype.BasicI, Ref(this), Const(3))
	shared, err := b.build(r, KindDirectCall, "missingBound")
	if err != nil {
		t.Fatal(err)
	}
	h := newHandle(r, mt, shared)

	h.customize()
	if h.IsCustomized() {
		t.Error("IsCustomized after failed customization")
	}
	if h.Program() != shared || shared.Customized() != nil {
		t.Errorf("program replaced: %s", h.Program().DebugName())
	}
	if got := r.Stats().Customized; got != 0 {
		t.Errorf("Stats().Customized = %d, want 0", got)
	}
	if hooks.Load() != 0 {
		t.Error("OnCustomize fired for a failed customization")
	}

	h.checkCustomized()
	h.customize()
	if h.IsCustomized() || h.Program() != shared || h.CustomizationCount() != 0 {
		t.Errorf("retried: customized=%v count=%d", h.IsCustomized(), h.CustomizationCount())
	}
}

func TestConfig_Normalized(t *testing.T) {
	tests := []struct {
		name      string
		threshold int
		want      int
	}{
		{"default", DefaultCustomizeThreshold, DefaultCustomizeThreshold},
		{"clamped", 1000, MaxCustomizeThreshold},
		{"disabled", -5, -1},
		{"zero", 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry(&Config{CustomizeThreshold: tt.threshold})
			cfg := r.Config()
			if cfg.CustomizeThreshold != tt.want {
				t.Errorf("threshold = %d, want %d", cfg.CustomizeThreshold, tt.want)
			}
			if cfg.Lowerer == nil {
				t.Error("nil lowerer not defaulted")
			}
		})
	}

	if NewRegistry(nil).Config().CustomizeThreshold != DefaultCustomizeThreshold {
		t.Error("nil config must use defaults")
	}
}
