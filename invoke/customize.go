package invoke

import (
	"go.uber.org/zap"

	"github.com/wippyai/mh-runtime/errors"
	"github.com/wippyai/mh-runtime/mtype"
)

// checkCustomized counts an invoker call to h unless h is already
// customized or being customized.
func (h *Handle) checkCustomized() {
	if h.state.Load() != stateUncustomized || h.form.Load().Customized() != nil {
		return
	}
	h.maybeCustomize()
}

// maybeCustomize bumps the call counter, or customizes h once the counter
// has reached the threshold. Lost increments only delay customization.
func (h *Handle) maybeCustomize() {
	threshold := uint32(h.reg.cfg.CustomizeThreshold)
	c := h.count.Load()
	if c >= threshold {
		h.customize()
		return
	}
	h.count.CompareAndSwap(c, c+1)
}

// customize replaces h's program with one specialized for h. It runs at
// most once per handle; a failed rebuild leaves the shared program in
// place and is not retried.
func (h *Handle) customize() {
	if !h.state.CompareAndSwap(stateUncustomized, stateCustomizing) {
		return
	}

	p, err := h.reg.customizedForm(h)
	if err != nil {
		h.state.Store(stateCustomizeFailed)
		Logger().Warn("handle customization failed",
			zap.Stringer("handle", h),
			zap.Error(err))
		return
	}
	p.markCustomized(h)
	h.reg.compile(p)
	h.form.Store(p)
	h.state.Store(stateCustomized)
	h.reg.customized.Add(1)
	debugf("customized %s: %s", h, p.DebugName())

	if hook := h.reg.cfg.OnCustomize; hook != nil {
		hook(h)
	}
}

// customizedForm builds h's specialized program. Invokers rebuild their
// form with the expected type baked in; other handles get their bound
// values and target function folded into constants.
func (r *Registry) customizedForm(h *Handle) (*Program, error) {
	p := h.form.Load()
	switch p.kind {
	case KindExactInvoker, KindGenericInvoker:
		mt, ok := h.data[0].(*mtype.MethodType)
		if !ok {
			return nil, errors.Internal(errors.PhaseBuild, "invoker %s has no bound type", h)
		}
		return r.invokeHandleForm(mt, true, p.kind)
	default:
		return r.foldProgram(p, h)
	}
}

// foldProgram copies p, replacing reads of h's bound values and target
// function with constants.
func (r *Registry) foldProgram(p *Program, h *Handle) (*Program, error) {
	b := newBuilder(len(p.names))
	for i := range p.names {
		n := p.names[i]
		switch {
		case n.fn == FuncArgument:
			b.arg(n.typ)
		case n.fn == FuncBoundValue && n.args[0].ref == 0:
			idx := n.args[1].value.(int)
			if idx >= len(h.data) {
				return nil, errors.Internal(errors.PhaseBuild, "%s has no bound value %d", h, idx)
			}
			b.op(FuncConstant, n.typ, Const(h.data[idx]))
		case n.fn == FuncCallTarget && n.args[0].ref == 0 && h.fn != nil:
			args := append([]Operand{Const(h.fn)}, n.args[1:]...)
			b.op(FuncCallTarget, n.typ, args...)
		default:
			b.op(n.fn, n.typ, n.args...)
		}
	}
	return b.build(r, p.kind, p.debugName+"_customized")
}
