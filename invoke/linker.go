package invoke

import (
	"strconv"

	"github.com/wippyai/mh-runtime/errors"
	"github.com/wippyai/mh-runtime/mtype"
)

const (
	linkerExact = iota
	linkerGeneric
)

// Linkage is a linked call: the program to run and, when present, the
// appendix passed as its trailing argument.
type Linkage struct {
	Program     *Program
	Appendix    any
	HasAppendix bool
}

// Run executes the linkage with the leading arguments and the appendix.
func (l *Linkage) Run(args ...any) (any, error) {
	if l.HasAppendix {
		args = append(args, l.Appendix)
	}
	return l.Program.Run(args)
}

// MethodHandleInvokeLinker links a call of name ("invokeExact" or
// "invoke") with caller type mt. Signatures that leave room for the
// appendix use the shared linker with mt as appendix; wider ones use a
// customized linker with mt baked in.
func (r *Registry) MethodHandleInvokeLinker(name string, mt *mtype.MethodType) (*Linkage, error) {
	var which ProgramKind
	switch name {
	case "invokeExact":
		which = KindExactLinker
	case "invoke":
		which = KindGenericLinker
	default:
		return nil, errors.Internal(errors.PhaseLink, "not invoker: %s", name)
	}
	if err := r.owns(mt); err != nil {
		return nil, err
	}
	if mt.SlotCount() <= mtype.MaxHandleArity-1 {
		p, err := r.invokeHandleForm(mt, false, which)
		if err != nil {
			return nil, err
		}
		return &Linkage{Program: p, Appendix: mt, HasAppendix: true}, nil
	}
	p, err := r.invokeHandleForm(mt, true, which)
	if err != nil {
		return nil, err
	}
	return &Linkage{Program: p}, nil
}

// VarHandleInvokeLinker links a var handle call of mode with caller type
// mt. The appendix is the access descriptor.
func (r *Registry) VarHandleInvokeLinker(mode AccessMode, mt *mtype.MethodType) (*Linkage, error) {
	if err := r.owns(mt); err != nil {
		return nil, err
	}
	if !mode.Valid() {
		return nil, errors.InvalidInput(errors.PhaseLink, "invalid access mode "+mode.String())
	}
	if mt.SlotCount() > mtype.MaxHandleArity-1 {
		return nil, errors.ArityLimit(errors.PhaseLink, mt.Descriptor(), mt.SlotCount(), mtype.MaxHandleArity-1)
	}
	p, err := r.varHandleLinkerForm(mt)
	if err != nil {
		return nil, err
	}
	ad, err := newAccessDescriptor(mt, mode)
	if err != nil {
		return nil, err
	}
	return &Linkage{Program: p, Appendix: ad, HasAppendix: true}, nil
}

func (inv *Invokers) linkage(idx int) (*Linkage, error) {
	if l := inv.linkers[idx].Load(); l != nil {
		return l, nil
	}
	name := "invokeExact"
	if idx == linkerGeneric {
		name = "invoke"
	}
	l, err := inv.reg.MethodHandleInvokeLinker(name, inv.targetType)
	if err != nil {
		return nil, err
	}
	if inv.linkers[idx].CompareAndSwap(nil, l) {
		return l, nil
	}
	return inv.linkers[idx].Load(), nil
}

func (inv *Invokers) varHandleLinkage(mode AccessMode) (*Linkage, error) {
	inv.mu.Lock()
	l := inv.vhLinkers[mode]
	inv.mu.Unlock()
	if l != nil {
		return l, nil
	}
	l, err := inv.reg.VarHandleInvokeLinker(mode, inv.targetType)
	if err != nil {
		return nil, err
	}
	inv.mu.Lock()
	defer inv.mu.Unlock()
	if prev := inv.vhLinkers[mode]; prev != nil {
		return prev, nil
	}
	if inv.vhLinkers == nil {
		inv.vhLinkers = make(map[AccessMode]*Linkage)
	}
	inv.vhLinkers[mode] = l
	return l, nil
}

// validateArgs checks caller arguments against the caller type.
func validateArgs(mt *mtype.MethodType, args []any) error {
	if len(args) != mt.ParamCount() {
		return errors.New(errors.PhaseInvoke, errors.KindInvalidInput).
			Expected(mt.String()).
			Detail("want %d arguments, got %d", mt.ParamCount(), len(args)).
			Build()
	}
	for i, a := range args {
		if pt := mt.Param(i); !mtype.Conforms(pt, a) {
			return errors.InvalidValue(errors.PhaseInvoke, []string{"arg", strconv.Itoa(i)}, a, pt.String())
		}
	}
	return nil
}

func (r *Registry) invokeLinked(idx int, h *Handle, callerType *mtype.MethodType, args []any) (any, error) {
	if h == nil {
		return nil, errors.InvalidValue(errors.PhaseInvoke, []string{"handle"}, nil, mtype.HandleType.String())
	}
	if err := r.owns(callerType); err != nil {
		return nil, err
	}
	if err := validateArgs(callerType, args); err != nil {
		return nil, err
	}
	l, err := r.Invokers(callerType).linkage(idx)
	if err != nil {
		return nil, err
	}
	return l.Run(append([]any{h}, args...)...)
}

// InvokeExact calls h as a call site of callerType would: h must have
// exactly that type.
func (r *Registry) InvokeExact(h *Handle, callerType *mtype.MethodType, args ...any) (any, error) {
	return r.invokeLinked(linkerExact, h, callerType, args)
}

// Invoke calls h as a call site of callerType would, retyping h with
// AsType when its type differs.
func (r *Registry) Invoke(h *Handle, callerType *mtype.MethodType, args ...any) (any, error) {
	return r.invokeLinked(linkerGeneric, h, callerType, args)
}

// InvokeVarHandle performs mode on vh as a call site of callerType
// (coordinates and values, without the VarHandle) would.
func (r *Registry) InvokeVarHandle(vh *VarHandle, mode AccessMode, callerType *mtype.MethodType, args ...any) (any, error) {
	if vh == nil {
		return nil, errors.InvalidValue(errors.PhaseInvoke, []string{"varhandle"}, nil, mtype.VarHandleType.String())
	}
	if err := r.owns(callerType); err != nil {
		return nil, err
	}
	if err := validateArgs(callerType, args); err != nil {
		return nil, err
	}
	l, err := r.Invokers(callerType).varHandleLinkage(mode)
	if err != nil {
		return nil, err
	}
	return l.Run(append([]any{vh}, args...)...)
}

// InvokeCallSite calls the current target of site with args.
func (r *Registry) InvokeCallSite(site CallSite, args ...any) (any, error) {
	if isNilCallSite(site) {
		return nil, errors.InvalidValue(errors.PhaseInvoke, []string{"site"}, nil, mtype.CallSiteType.String())
	}
	mt := site.Type()
	if err := validateArgs(mt, args); err != nil {
		return nil, err
	}
	p, err := r.callSiteForm(mt, false)
	if err != nil {
		return nil, err
	}
	return p.Run(append(append([]any(nil), args...), site))
}

// InvokeTarget calls target through the linkToTargetMethod program of
// its type.
func (r *Registry) InvokeTarget(target *Handle, args ...any) (any, error) {
	if target == nil {
		return nil, errors.InvalidValue(errors.PhaseInvoke, []string{"target"}, nil, mtype.HandleType.String())
	}
	mt := target.typ
	if err := validateArgs(mt, args); err != nil {
		return nil, err
	}
	p, err := r.callSiteForm(mt, true)
	if err != nil {
		return nil, err
	}
	return p.Run(append(append([]any(nil), args...), target))
}
