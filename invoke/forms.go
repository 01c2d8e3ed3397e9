package invoke

import (
	"github.com/wippyai/mh-runtime/errors"
	"github.com/wippyai/mh-runtime/mtype"
)

func formName(kind ProgramKind, mt *mtype.MethodType) string {
	return kind.String() + "_" + mt.BasicSignature()
}

// argTypes appends one argument per parameter of mt and returns their indices.
func argTypes(b *builder, mt *mtype.MethodType) []int {
	args := make([]int, mt.ParamCount())
	for i := range args {
		args[i] = b.arg(mt.Param(i).Basic())
	}
	return args
}

// directForm returns the shared program of direct handles of mt's basic
// type: (this, a*) => callTarget(this, a*).
func (r *Registry) directForm(mt *mtype.MethodType) (*Program, error) {
	mt = mt.BasicType()
	key := formKey{kind: KindDirectCall}
	if p := r.cachedForm(mt, key); p != nil {
		return p, nil
	}
	b := newBuilder(mt.ParamCount() + 2)
	this := b.arg(mtype.BasicL)
	args := argTypes(b, mt)
	b.op(FuncCallTarget, mt.Return().Basic(), append([]Operand{Ref(this)}, refs(args...)...)...)
	p, err := b.build(r, KindDirectCall, formName(KindDirectCall, mt))
	if err != nil {
		return nil, err
	}
	return r.setCachedForm(mt, key, p)
}

// basicInvokerForm returns (this, mh, a*) => invokeBasic(mh, a*).
func (r *Registry) basicInvokerForm(mt *mtype.MethodType) (*Program, error) {
	mt = mt.BasicType()
	key := formKey{kind: KindBasicInvoker}
	if p := r.cachedForm(mt, key); p != nil {
		return p, nil
	}
	if mt.SlotCount() > mtype.MaxInvokerArity {
		return nil, errors.ArityLimit(errors.PhaseLink, mt.Descriptor(), mt.SlotCount(), mtype.MaxInvokerArity)
	}
	b := newBuilder(mt.ParamCount() + 3)
	b.arg(mtype.BasicL)
	callMH := b.arg(mtype.BasicL)
	args := argTypes(b, mt)
	b.op(FuncInvokeBasic, mt.Return().Basic(), append([]Operand{Ref(callMH)}, refs(args...)...)...)
	p, err := b.build(r, KindBasicInvoker, formName(KindBasicInvoker, mt))
	if err != nil {
		return nil, err
	}
	return r.setCachedForm(mt, key, p)
}

// invokeHandleForm builds the program behind exact and generic invokers
// and linkers.
//
// Invoker layout: (this, mh, a*) with the expected type read from this.
// Linker layout: (mh, a*, mtype) with the type as trailing appendix.
// Customized programs carry mt as a constant and have no type argument;
// they are not cached.
//
//	exact:   checkExactType(mh, mt); checkCustomized(mh); invokeBasic(mh, a*)
//	generic: t = checkGenericType(mh, mt); checkCustomized(t); invokeBasic(t, a*)
func (r *Registry) invokeHandleForm(mt *mtype.MethodType, customized bool, which ProgramKind) (*Program, error) {
	var isLinker, isGeneric bool
	switch which {
	case KindExactInvoker:
	case KindGenericInvoker:
		isGeneric = true
	case KindExactLinker:
		isLinker = true
	case KindGenericLinker:
		isLinker, isGeneric = true, true
	default:
		return nil, errors.Internal(errors.PhaseBuild, "not an invoker form: %s", which)
	}

	limit := mtype.MaxInvokerArity
	if isLinker && customized {
		limit = mtype.MaxHandleArity
	}
	if mt.SlotCount() > limit {
		return nil, errors.ArityLimit(errors.PhaseLink, mt.Descriptor(), mt.SlotCount(), limit)
	}

	key := formKey{kind: which}
	if !customized {
		mt = mt.BasicType()
		if p := r.cachedForm(mt, key); p != nil {
			return p, nil
		}
	}

	b := newBuilder(mt.ParamCount() + 6)
	thisMH := b.arg(mtype.BasicL)
	callMH := thisMH
	if !isLinker {
		callMH = b.arg(mtype.BasicL)
	}
	args := argTypes(b, mt)

	var mtypeArg Operand
	switch {
	case customized:
		mtypeArg = Const(mt)
	case isLinker:
		mtypeArg = Ref(b.arg(mtype.BasicL))
	default:
		mtypeArg = Ref(b.op(FuncBoundValue, mtype.BasicL, Ref(thisMH), Const(0)))
	}

	outArgs := append([]Operand{Ref(callMH)}, refs(args...)...)
	if !isGeneric {
		b.op(FuncCheckExactType, mtype.BasicV, Ref(callMH), mtypeArg)
	} else {
		outArgs[0] = Ref(b.op(FuncCheckGenericType, mtype.BasicL, Ref(callMH), mtypeArg))
	}
	if r.cfg.customizes() {
		b.op(FuncCheckCustomized, mtype.BasicV, outArgs[0])
	}
	b.op(FuncInvokeBasic, mt.Return().Basic(), outArgs...)

	name := formName(which, mt)
	if customized {
		name += "_customized"
	}
	p, err := b.build(r, which, name)
	if err != nil {
		return nil, err
	}
	if isLinker {
		r.compile(p)
	}
	if customized {
		return p, nil
	}
	return r.setCachedForm(mt, key, p)
}

// callSiteForm builds the linkage program of a call site:
// (a*, site) => invokeBasic(getCallSiteTarget(site), a*), or with
// skipCallSite, (a*, mh) => invokeBasic(mh, a*).
func (r *Registry) callSiteForm(mt *mtype.MethodType, skipCallSite bool) (*Program, error) {
	which := KindLinkToCallSite
	if skipCallSite {
		which = KindLinkToTarget
	}
	if mt.SlotCount() > mtype.MaxHandleArity {
		return nil, errors.ArityLimit(errors.PhaseLink, mt.Descriptor(), mt.SlotCount(), mtype.MaxHandleArity)
	}
	mt = mt.BasicType()
	key := formKey{kind: which}
	if p := r.cachedForm(mt, key); p != nil {
		return p, nil
	}

	b := newBuilder(mt.ParamCount() + 3)
	args := argTypes(b, mt)
	appendix := b.arg(mtype.BasicL)
	callMH := appendix
	if !skipCallSite {
		callMH = b.op(FuncGetCallSiteTarget, mtype.BasicL, Ref(appendix))
	}
	b.op(FuncInvokeBasic, mt.Return().Basic(), append([]Operand{Ref(callMH)}, refs(args...)...)...)

	p, err := b.build(r, which, formName(which, mt))
	if err != nil {
		return nil, err
	}
	r.compile(p)
	return r.setCachedForm(mt, key, p)
}

// dynamicInvokerForm returns
// (this, a*) => invokeBasic(getCallSiteTarget(boundValue(this, 0)), a*).
func (r *Registry) dynamicInvokerForm(mt *mtype.MethodType) (*Program, error) {
	mt = mt.BasicType()
	key := formKey{kind: KindDynamicInvoker}
	if p := r.cachedForm(mt, key); p != nil {
		return p, nil
	}
	b := newBuilder(mt.ParamCount() + 4)
	this := b.arg(mtype.BasicL)
	args := argTypes(b, mt)
	site := b.op(FuncBoundValue, mtype.BasicL, Ref(this), Const(0))
	callMH := b.op(FuncGetCallSiteTarget, mtype.BasicL, Ref(site))
	b.op(FuncInvokeBasic, mt.Return().Basic(), append([]Operand{Ref(callMH)}, refs(args...)...)...)
	p, err := b.build(r, KindDynamicInvoker, formName(KindDynamicInvoker, mt))
	if err != nil {
		return nil, err
	}
	return r.setCachedForm(mt, key, p)
}

// varHandleInvokerForm builds (this, vh, a*) =>
// invokeBasic(check(vh, boundValue(this, 0)), vh, a*) where check fetches
// the accessor named by the bound access descriptor.
func (r *Registry) varHandleInvokerForm(mt *mtype.MethodType, exact bool) (*Program, error) {
	which := KindVarHandleInvoker
	check := FuncCheckVarHandleGenericType
	if exact {
		which = KindVarHandleExactInvoker
		check = FuncCheckVarHandleExactType
	}
	if mt.SlotCount() > mtype.MaxInvokerArity {
		return nil, errors.ArityLimit(errors.PhaseLink, mt.Descriptor(), mt.SlotCount(), mtype.MaxInvokerArity)
	}
	mt = mt.BasicType()
	key := formKey{kind: which}
	if p := r.cachedForm(mt, key); p != nil {
		return p, nil
	}

	b := newBuilder(mt.ParamCount() + 5)
	thisVH := b.arg(mtype.BasicL)
	callVH := b.arg(mtype.BasicL)
	args := argTypes(b, mt)
	ad := b.op(FuncBoundValue, mtype.BasicL, Ref(thisVH), Const(0))
	checked := b.op(check, mtype.BasicL, Ref(callVH), Ref(ad))
	out := append([]Operand{Ref(checked), Ref(callVH)}, refs(args...)...)
	b.op(FuncInvokeBasic, mt.Return().Basic(), out...)

	p, err := b.build(r, which, formName(which, mt))
	if err != nil {
		return nil, err
	}
	return r.setCachedForm(mt, key, p)
}

// varHandleLinkerForm builds (vh, a*, ad) =>
// t = checkVarHandleGenericType(vh, ad); checkCustomized(t); invokeBasic(t, vh, a*).
func (r *Registry) varHandleLinkerForm(mt *mtype.MethodType) (*Program, error) {
	mt = mt.BasicType()
	key := formKey{kind: KindVarHandleLinker}
	if p := r.cachedForm(mt, key); p != nil {
		return p, nil
	}

	b := newBuilder(mt.ParamCount() + 5)
	thisVH := b.arg(mtype.BasicL)
	args := argTypes(b, mt)
	ad := b.arg(mtype.BasicL)
	checked := b.op(FuncCheckVarHandleGenericType, mtype.BasicL, Ref(thisVH), Ref(ad))
	if r.cfg.customizes() {
		b.op(FuncCheckCustomized, mtype.BasicV, Ref(checked))
	}
	out := append([]Operand{Ref(checked), Ref(thisVH)}, refs(args...)...)
	b.op(FuncInvokeBasic, mt.Return().Basic(), out...)

	p, err := b.build(r, KindVarHandleLinker, formName(KindVarHandleLinker, mt))
	if err != nil {
		return nil, err
	}
	r.compile(p)
	return r.setCachedForm(mt, key, p)
}
