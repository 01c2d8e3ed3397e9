package invoke

import (
	"sync/atomic"

	"github.com/wippyai/mh-runtime/errors"
	"github.com/wippyai/mh-runtime/mtype"
)

// Target is the Go function behind a direct handle. It receives the
// handle's arguments and returns its result; void handles return nil.
type Target func(args []any) (any, error)

// Customization states.
const (
	stateUncustomized uint32 = iota
	stateCustomizing
	stateCustomized
	stateCustomizeFailed
)

// Handle is a typed callable value. Its behavior is its program, which
// may read values bound into the handle. Handles are immutable except
// for customization, which swaps in a specialized program once.
type Handle struct {
	reg    *Registry
	typ    *mtype.MethodType
	form   atomic.Pointer[Program]
	asType atomic.Pointer[Handle]
	fn     Target
	name   string
	data   []any
	count  atomic.Uint32
	state  atomic.Uint32
}

func newHandle(reg *Registry, typ *mtype.MethodType, form *Program, data ...any) *Handle {
	h := &Handle{reg: reg, typ: typ, data: data}
	h.form.Store(form)
	return h
}

// ClassName implements mtype.Classed.
func (h *Handle) ClassName() string { return "Handle" }

// Type returns the handle's method type.
func (h *Handle) Type() *mtype.MethodType { return h.typ }

// Program returns the handle's current program.
func (h *Handle) Program() *Program { return h.form.Load() }

// Registry returns the registry the handle belongs to.
func (h *Handle) Registry() *Registry { return h.reg }

// IsCustomized reports whether the handle runs a program specialized
// for it. A handle whose customization failed keeps its shared program
// and reports false.
func (h *Handle) IsCustomized() bool { return h.state.Load() == stateCustomized }

// CustomizationCount returns the number of counted invoker calls.
func (h *Handle) CustomizationCount() int { return int(h.count.Load()) }

// String returns the debug name and type, e.g. Handle(int,int)int.
func (h *Handle) String() string {
	name := h.name
	if name == "" {
		name = "Handle"
	}
	return name + h.typ.String()
}

func (h *Handle) withName(name string) *Handle {
	h.name = name
	return h
}

// InvokeBasic calls the handle with no type checks. Arguments must
// already conform to the handle's type.
func (h *Handle) InvokeBasic(args ...any) (any, error) {
	return h.invokeBasic(args)
}

func (h *Handle) invokeBasic(args []any) (any, error) {
	frame := make([]any, len(args)+1)
	frame[0] = h
	copy(frame[1:], args)
	return h.form.Load().Run(frame)
}

// InvokeWithArguments calls the handle through a generic spread invoker,
// converting arguments and result as Invoke does for an all-Object
// caller signature.
func (h *Handle) InvokeWithArguments(args ...any) (any, error) {
	gt, err := h.reg.types.GenericType(len(args))
	if err != nil {
		return nil, err
	}
	adapted, err := h.AsType(gt)
	if err != nil {
		return nil, err
	}
	spread, err := h.reg.SpreadInvoker(gt, 0)
	if err != nil {
		return nil, err
	}
	return spread.invokeBasic([]any{adapted, append([]any(nil), args...)})
}

// FromFunc returns a direct handle of type mt that calls fn.
func (r *Registry) FromFunc(mt *mtype.MethodType, fn Target) (*Handle, error) {
	if err := r.owns(mt); err != nil {
		return nil, err
	}
	if fn == nil {
		return nil, errors.InvalidInput(errors.PhaseBuild, "nil target function")
	}
	form, err := r.directForm(mt)
	if err != nil {
		return nil, err
	}
	h := newHandle(r, mt, form)
	h.fn = fn
	return h, nil
}

// Constant returns a handle of type ()t that returns v.
func (r *Registry) Constant(t mtype.Type, v any) (*Handle, error) {
	if t.IsVoid() || !mtype.Conforms(t, v) {
		return nil, errors.InvalidValue(errors.PhaseBuild, []string{"constant"}, v, t.String())
	}
	mt, err := r.types.Make(t)
	if err != nil {
		return nil, err
	}
	h, err := r.FromFunc(mt, func([]any) (any, error) { return v, nil })
	if err != nil {
		return nil, err
	}
	return h.withName("constant"), nil
}

// Identity returns a handle of type (t)t that returns its argument.
func (r *Registry) Identity(t mtype.Type) (*Handle, error) {
	mt, err := r.types.Make(t, t)
	if err != nil {
		return nil, err
	}
	h, err := r.FromFunc(mt, func(args []any) (any, error) { return args[0], nil })
	if err != nil {
		return nil, err
	}
	return h.withName("identity"), nil
}
