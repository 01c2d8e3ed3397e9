package invoke

import (
	"sync/atomic"

	"github.com/wippyai/mh-runtime/errors"
	"github.com/wippyai/mh-runtime/mtype"
)

// CallSite holds the target handle of a dynamic call. Its type never
// changes; mutable sites may swap in targets of the same type.
type CallSite interface {
	Type() *mtype.MethodType
	Target() *Handle
	ClassName() string
}

// ConstantCallSite is a call site with a fixed target.
type ConstantCallSite struct {
	target *Handle
}

// NewConstantCallSite returns a call site permanently bound to target.
func NewConstantCallSite(target *Handle) *ConstantCallSite {
	return &ConstantCallSite{target: target}
}

func (s *ConstantCallSite) Type() *mtype.MethodType { return s.target.typ }
func (s *ConstantCallSite) Target() *Handle { return s.target }
func (s *ConstantCallSite) ClassName() string { return "CallSite" }

// MutableCallSite is a call site whose target can be replaced.
type MutableCallSite struct {
	typ    *mtype.MethodType
	target atomic.Pointer[Handle]
}

// NewMutableCallSite returns a call site bound to target.
func NewMutableCallSite(target *Handle) *MutableCallSite {
	s := &MutableCallSite{typ: target.typ}
	s.target.Store(target)
	return s
}

// NewUninitializedCallSite returns a mutable call site of type mt whose
// target fails until SetTarget is called.
func (r *Registry) NewUninitializedCallSite(mt *mtype.MethodType) (*MutableCallSite, error) {
	h, err := r.FromFunc(mt, func([]any) (any, error) {
		return nil, errors.Unsupported(errors.PhaseInvoke, "uninitialized call site "+mt.String())
	})
	if err != nil {
		return nil, err
	}
	return NewMutableCallSite(h.withName("uninitializedCallSite")), nil
}

func (s *MutableCallSite) Type() *mtype.MethodType { return s.typ }
func (s *MutableCallSite) Target() *Handle { return s.target.Load() }
func (s *MutableCallSite) ClassName() string { return "CallSite" }

// SetTarget replaces the target. The new target must have the site's type.
func (s *MutableCallSite) SetTarget(h *Handle) error {
	if h == nil || h.typ != s.typ {
		actual := "null"
		if h != nil {
			actual = h.typ.String()
		}
		return errors.SignatureMismatch(errors.PhaseLink, s.typ.String(), actual)
	}
	s.target.Store(h)
	return nil
}

// VolatileCallSite is a mutable call site whose target updates are
// immediately visible to all callers.
type VolatileCallSite struct {
	MutableCallSite
}

// NewVolatileCallSite returns a volatile call site bound to target.
func NewVolatileCallSite(target *Handle) *VolatileCallSite {
	s := &VolatileCallSite{MutableCallSite{typ: target.typ}}
	s.target.Store(target)
	return s
}

// DynamicInvoker returns a handle of the site's type that always calls
// the site's current target. A constant site returns its target.
func (r *Registry) DynamicInvoker(site CallSite) (*Handle, error) {
	if isNilCallSite(site) {
		return nil, errors.InvalidValue(errors.PhaseLink, []string{"site"}, nil, mtype.CallSiteType.String())
	}
	if c, ok := site.(*ConstantCallSite); ok {
		return c.target, nil
	}
	mt := site.Type()
	form, err := r.dynamicInvokerForm(mt)
	if err != nil {
		return nil, err
	}
	return newHandle(r, mt, form, site).withName("dynamicInvoker"), nil
}

// isNilCallSite reports whether site is nil or a nil pointer to one of
// the call site types.
func isNilCallSite(site CallSite) bool {
	switch s := site.(type) {
	case nil:
		return true
	case *ConstantCallSite:
		return s == nil
	case *MutableCallSite:
		return s == nil
	case *VolatileCallSite:
		return s == nil
	}
	return false
}
