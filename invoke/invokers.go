package invoke

import (
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/wippyai/mh-runtime/errors"
	"github.com/wippyai/mh-runtime/mtype"
)

// InvokerKind names a cached invoker slot.
type InvokerKind uint8

const (
	InvokerExact InvokerKind = iota
	InvokerGeneric
	InvokerBasic
	InvokerVarHandle
	InvokerVarHandleExact
	InvokerSpread

	invokerSlots = InvokerBasic + 1
)

var invokerKindNames = [...]string{"exact", "generic", "basic", "varhandle", "varhandle-exact", "spread"}

func (k InvokerKind) String() string {
	if int(k) < len(invokerKindNames) {
		return invokerKindNames[k]
	}
	return fmt.Sprintf("InvokerKind(%d)", k)
}

// ParseInvokerKind returns the kind spelled by String.
func ParseInvokerKind(s string) (InvokerKind, error) {
	for i, n := range invokerKindNames {
		if n == s {
			return InvokerKind(i), nil
		}
	}
	return 0, errors.NotFound(errors.PhaseParse, "invoker kind", s)
}

type vhKey struct {
	mode  AccessMode
	exact bool
}

// Invokers caches the invokers of one target signature. Each slot is
// written at most once; concurrent builders race and the first
// published invoker wins.
type Invokers struct {
	reg        *Registry
	targetType *mtype.MethodType
	slots      [invokerSlots]atomic.Pointer[Handle]
	linkers    [2]atomic.Pointer[Linkage]
	mu         sync.Mutex
	vh         map[vhKey]*Handle
	vhLinkers  map[AccessMode]*Linkage
	spread     map[int]*Handle
}

func newInvokers(reg *Registry, mt *mtype.MethodType) *Invokers {
	return &Invokers{reg: reg, targetType: mt}
}

// TargetType returns the signature the invokers call.
func (inv *Invokers) TargetType() *mtype.MethodType { return inv.targetType }

// ExactInvoker returns the invoker (Handle, a*)R that calls a handle of
// exactly the target type and rejects any other.
func (inv *Invokers) ExactInvoker() (*Handle, error) {
	if h := inv.cachedInvoker(InvokerExact); h != nil {
		return h, nil
	}
	h, err := inv.makeExactOrGenericInvoker(true)
	if err != nil {
		return nil, err
	}
	return inv.setCachedInvoker(InvokerExact, h), nil
}

// GenericInvoker returns the invoker (Handle, a*)R that retypes its
// handle to the target type before calling it.
func (inv *Invokers) GenericInvoker() (*Handle, error) {
	if h := inv.cachedInvoker(InvokerGeneric); h != nil {
		return h, nil
	}
	h, err := inv.makeExactOrGenericInvoker(false)
	if err != nil {
		return nil, err
	}
	return inv.setCachedInvoker(InvokerGeneric, h), nil
}

// BasicInvoker returns the unchecked invoker of the target's basic type.
// Signatures sharing a basic type share one invoker.
func (inv *Invokers) BasicInvoker() (*Handle, error) {
	if h := inv.cachedInvoker(InvokerBasic); h != nil {
		return h, nil
	}
	basic := inv.targetType.BasicType()
	if basic != inv.targetType {
		h, err := inv.reg.Invokers(basic).BasicInvoker()
		if err != nil {
			return nil, err
		}
		return inv.setCachedInvoker(InvokerBasic, h), nil
	}
	form, err := inv.reg.basicInvokerForm(basic)
	if err != nil {
		return nil, err
	}
	invokerType, err := basic.InvokerType()
	if err != nil {
		return nil, err
	}
	h := newHandle(inv.reg, invokerType, form).withName("invokeBasic")
	if err := inv.checkInvoker(h); err != nil {
		return nil, err
	}
	return inv.setCachedInvoker(InvokerBasic, h), nil
}

func (inv *Invokers) cachedInvoker(k InvokerKind) *Handle {
	return inv.slots[k].Load()
}

func (inv *Invokers) setCachedInvoker(k InvokerKind, h *Handle) *Handle {
	if inv.slots[k].CompareAndSwap(nil, h) {
		Logger().Debug("invoker published",
			zap.Stringer("type", inv.targetType),
			zap.Stringer("kind", k))
		return h
	}
	return inv.slots[k].Load()
}

func (inv *Invokers) makeExactOrGenericInvoker(exact bool) (*Handle, error) {
	mt := inv.targetType
	invokerType, err := mt.InvokerType()
	if err != nil {
		return nil, err
	}
	which, name := KindGenericInvoker, "invoke"
	if exact {
		which, name = KindExactInvoker, "invokeExact"
	}
	form, err := inv.reg.invokeHandleForm(mt, false, which)
	if err != nil {
		return nil, err
	}
	h := newHandle(inv.reg, invokerType, form, mt).withName(name)
	if err := inv.checkInvoker(h); err != nil {
		return nil, err
	}
	inv.maybeCompileToBytecode(h)
	return h, nil
}

// VarHandleInvoker returns the invoker (VarHandle, a*)R that performs
// mode on a var handle, retyping the accessor to the target type.
func (inv *Invokers) VarHandleInvoker(mode AccessMode) (*Handle, error) {
	return inv.varHandleInvoker(mode, false)
}

// VarHandleExactInvoker is like VarHandleInvoker but rejects accessors
// whose type differs from the target type.
func (inv *Invokers) VarHandleExactInvoker(mode AccessMode) (*Handle, error) {
	return inv.varHandleInvoker(mode, true)
}

func (inv *Invokers) varHandleInvoker(mode AccessMode, exact bool) (*Handle, error) {
	if !mode.Valid() {
		return nil, errors.InvalidInput(errors.PhaseLink, "invalid access mode "+mode.String())
	}
	key := vhKey{mode: mode, exact: exact}
	inv.mu.Lock()
	h := inv.vh[key]
	inv.mu.Unlock()
	if h != nil {
		return h, nil
	}

	h, err := inv.makeVarHandleInvoker(mode, exact)
	if err != nil {
		return nil, err
	}

	inv.mu.Lock()
	defer inv.mu.Unlock()
	if prev := inv.vh[key]; prev != nil {
		return prev, nil
	}
	if inv.vh == nil {
		inv.vh = make(map[vhKey]*Handle)
	}
	inv.vh[key] = h
	return h, nil
}

func (inv *Invokers) makeVarHandleInvoker(mode AccessMode, exact bool) (*Handle, error) {
	mt := inv.targetType
	invokerType, err := mt.InsertParams(0, mtype.VarHandleType)
	if err != nil {
		return nil, err
	}
	form, err := inv.reg.varHandleInvokerForm(mt, exact)
	if err != nil {
		return nil, err
	}
	ad, err := newAccessDescriptor(mt, mode)
	if err != nil {
		return nil, err
	}
	h := newHandle(inv.reg, invokerType, form, ad).withName(mode.String())
	if inv.reg.cfg.DebugChecks && h.typ != ad.Invoker {
		return nil, errors.Internal(errors.PhaseLink, "var handle invoker %s does not match %s", h, ad.Invoker)
	}
	inv.maybeCompileToBytecode(h)
	return h, nil
}

// checkInvoker verifies a constructed invoker when debug checks are on.
func (inv *Invokers) checkInvoker(h *Handle) error {
	if !inv.reg.cfg.DebugChecks {
		return nil
	}
	want, err := inv.targetType.InvokerType()
	if err != nil {
		return err
	}
	if h.Program().Kind() == KindBasicInvoker {
		want, err = inv.targetType.BasicType().InvokerType()
		if err != nil {
			return err
		}
	}
	if h.typ != want {
		return errors.Internal(errors.PhaseLink, "invoker %s does not have type %s", h, want)
	}
	return nil
}

// maybeCompileToBytecode lowers small erased invokers at construction.
func (inv *Invokers) maybeCompileToBytecode(h *Handle) {
	mt := inv.targetType
	if mt.IsErased() && mt.ParamCount() < inv.reg.cfg.EagerCompileArityLimit {
		inv.reg.compile(h.Program())
	}
}

// cached lists the populated invoker slots.
func (inv *Invokers) cached() []CachedInvoker {
	var out []CachedInvoker
	for k := InvokerKind(0); k < invokerSlots; k++ {
		if inv.slots[k].Load() != nil {
			out = append(out, CachedInvoker{Type: inv.targetType, Kind: k})
		}
	}
	inv.mu.Lock()
	defer inv.mu.Unlock()
	for key := range inv.vh {
		kind := InvokerVarHandle
		if key.exact {
			kind = InvokerVarHandleExact
		}
		out = append(out, CachedInvoker{Type: inv.targetType, Kind: kind, Mode: key.mode})
	}
	for leading := range inv.spread {
		out = append(out, CachedInvoker{Type: inv.targetType, Kind: InvokerSpread, Leading: leading})
	}
	return out
}

// String returns e.g. Invokers(int,int)int.
func (inv *Invokers) String() string {
	return "Invokers" + inv.targetType.String()
}
