package invoke

import (
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/wippyai/mh-runtime/errors"
	"github.com/wippyai/mh-runtime/mtype"
)

// AccessMode is a var handle access operation.
type AccessMode uint8

const (
	ModeGet AccessMode = iota
	ModeSet
	ModeGetVolatile
	ModeSetVolatile
	ModeGetAcquire
	ModeSetRelease
	ModeGetOpaque
	ModeSetOpaque
	ModeCompareAndSet
	ModeCompareAndExchange
	ModeGetAndSet
	ModeGetAndAdd

	numAccessModes
)

var accessModeNames = [...]string{
	"get", "set", "getVolatile", "setVolatile", "getAcquire", "setRelease",
	"getOpaque", "setOpaque", "compareAndSet", "compareAndExchange",
	"getAndSet", "getAndAdd",
}

func (m AccessMode) String() string {
	if m < numAccessModes {
		return accessModeNames[m]
	}
	return fmt.Sprintf("AccessMode(%d)", m)
}

// Valid reports whether m is a known access mode.
func (m AccessMode) Valid() bool { return m < numAccessModes }

// ParseAccessMode returns the access mode spelled by String.
func ParseAccessMode(s string) (AccessMode, error) {
	for i, n := range accessModeNames {
		if n == s {
			return AccessMode(i), nil
		}
	}
	return 0, errors.NotFound(errors.PhaseParse, "access mode", s)
}

// AccessType groups access modes by signature shape.
type AccessType uint8

const (
	AccessGet AccessType = iota
	AccessSet
	AccessCompareAndSet
	AccessCompareAndExchange
	AccessGetAndUpdate
)

// AccessType returns the signature shape of m.
func (m AccessMode) AccessType() AccessType {
	switch m {
	case ModeGet, ModeGetVolatile, ModeGetAcquire, ModeGetOpaque:
		return AccessGet
	case ModeSet, ModeSetVolatile, ModeSetRelease, ModeSetOpaque:
		return AccessSet
	case ModeCompareAndSet:
		return AccessCompareAndSet
	case ModeCompareAndExchange:
		return AccessCompareAndExchange
	default:
		return AccessGetAndUpdate
	}
}

// AccessDescriptor names the accessor a var handle invoker or linker
// fetches: the symbolic type the caller uses and the access mode.
type AccessDescriptor struct {
	// Erased is the erasure of Exact.
	Erased *mtype.MethodType
	// Exact is the caller's symbolic type, without the VarHandle.
	Exact *mtype.MethodType
	// Invoker is Exact with a leading VarHandle parameter.
	Invoker *mtype.MethodType
	Type    AccessType
	Mode    AccessMode
}

func newAccessDescriptor(mt *mtype.MethodType, mode AccessMode) (*AccessDescriptor, error) {
	inv, err := mt.InsertParams(0, mtype.VarHandleType)
	if err != nil {
		return nil, err
	}
	return &AccessDescriptor{
		Erased:  mt.Erase(),
		Exact:   mt,
		Invoker: inv,
		Type:    mode.AccessType(),
		Mode:    mode,
	}, nil
}

// ClassName implements mtype.Classed.
func (ad *AccessDescriptor) ClassName() string { return "AccessDescriptor" }

// varStore addresses the variable behind a var handle. Every access to
// a variable happens under the lock locker returns for its coordinates.
type varStore interface {
	locker(coords []any) sync.Locker
	load(coords []any) (any, error)
	store(coords []any, v any) error
}

// VarHandle is a typed reference to a variable, accessed through access
// modes. All modes are linearizable, also across handles that reach the
// same variable.
type VarHandle struct {
	reg      *Registry
	store    varStore
	varType  mtype.Type
	coords   []mtype.Type
	handles  [numAccessModes]atomic.Pointer[Handle]
	exact    bool
	typeName string
}

// ClassName implements mtype.Classed.
func (vh *VarHandle) ClassName() string { return "VarHandle" }

// VarType returns the type of the variable.
func (vh *VarHandle) VarType() mtype.Type { return vh.varType }

// Coordinates returns the coordinate types that locate the variable.
func (vh *VarHandle) Coordinates() []mtype.Type { return append([]mtype.Type(nil), vh.coords...) }

// HasInvokeExactBehavior reports whether generic invocation requires
// the exact access mode type.
func (vh *VarHandle) HasInvokeExactBehavior() bool { return vh.exact }

// WithInvokeExactBehavior returns a view of vh that rejects generic
// invocation with a symbolic type other than the access mode type.
func (vh *VarHandle) WithInvokeExactBehavior() *VarHandle {
	if vh.exact {
		return vh
	}
	return &VarHandle{
		reg:      vh.reg,
		store:    vh.store,
		varType:  vh.varType,
		coords:   vh.coords,
		exact:    true,
		typeName: vh.typeName,
	}
}

func (vh *VarHandle) String() string {
	return fmt.Sprintf("VarHandle[%s](%s)", vh.typeName, vh.varType)
}

// AccessModeType returns the symbolic type of mode: coordinates then
// values, without the VarHandle.
func (vh *VarHandle) AccessModeType(mode AccessMode) *mtype.MethodType {
	t := vh.varType
	params := append([]mtype.Type(nil), vh.coords...)
	tab := vh.reg.types
	switch mode.AccessType() {
	case AccessGet:
		return tab.MustMake(t, params...)
	case AccessSet:
		return tab.MustMake(mtype.Void, append(params, t)...)
	case AccessCompareAndSet:
		return tab.MustMake(mtype.Boolean, append(params, t, t)...)
	case AccessCompareAndExchange:
		return tab.MustMake(t, append(params, t, t)...)
	default:
		return tab.MustMake(t, append(params, t)...)
	}
}

// IsAccessModeSupported reports whether mode can be performed.
func (vh *VarHandle) IsAccessModeSupported(mode AccessMode) bool {
	if !mode.Valid() {
		return false
	}
	if mode == ModeGetAndAdd {
		k := vh.varType.Kind()
		return vh.varType.IsPrimitive() && k != mtype.KindBoolean
	}
	return true
}

// MethodHandle returns the accessor of mode: a handle of type
// (VarHandle, coordinates..., values...)R.
func (vh *VarHandle) MethodHandle(mode AccessMode) (*Handle, error) {
	if !vh.IsAccessModeSupported(mode) {
		return nil, errors.Unsupported(errors.PhaseLink, mode.String()+" on "+vh.String())
	}
	if h := vh.handles[mode].Load(); h != nil {
		return h, nil
	}
	mt, err := vh.AccessModeType(mode).InsertParams(0, mtype.VarHandleType)
	if err != nil {
		return nil, err
	}
	h, err := vh.reg.FromFunc(mt, func(args []any) (any, error) {
		self, ok := args[0].(*VarHandle)
		if !ok || self == nil {
			return nil, errors.ClassCast([]string{"varhandle"}, args[0], mtype.VarHandleType.String())
		}
		return self.access(mode, args[1:])
	})
	if err != nil {
		return nil, err
	}
	h.withName(mode.String())
	if vh.handles[mode].CompareAndSwap(nil, h) {
		return h, nil
	}
	return vh.handles[mode].Load(), nil
}

func (vh *VarHandle) access(mode AccessMode, args []any) (any, error) {
	nc := len(vh.coords)
	coords, vals := args[:nc], args[nc:]

	l := vh.store.locker(coords)
	l.Lock()
	defer l.Unlock()

	switch mode.AccessType() {
	case AccessGet:
		return vh.store.load(coords)
	case AccessSet:
		return nil, vh.store.store(coords, vals[0])
	}

	cur, err := vh.store.load(coords)
	if err != nil {
		return nil, err
	}
	switch mode {
	case ModeCompareAndSet:
		if !sameValue(cur, vals[0]) {
			return false, nil
		}
		return true, vh.store.store(coords, vals[1])
	case ModeCompareAndExchange:
		if sameValue(cur, vals[0]) {
			if err := vh.store.store(coords, vals[1]); err != nil {
				return nil, err
			}
		}
		return cur, nil
	case ModeGetAndSet:
		return cur, vh.store.store(coords, vals[0])
	case ModeGetAndAdd:
		sum, err := addValues(cur, vals[0])
		if err != nil {
			return nil, err
		}
		return cur, vh.store.store(coords, sum)
	default:
		return nil, errors.Unsupported(errors.PhaseInvoke, mode.String())
	}
}

// sameValue compares primitives by value and references by identity.
func sameValue(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta := reflect.TypeOf(a)
	if ta != reflect.TypeOf(b) {
		return false
	}
	if ta.Comparable() {
		return a == b
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	switch va.Kind() {
	case reflect.Slice:
		return va.Pointer() == vb.Pointer() && va.Len() == vb.Len()
	case reflect.Map, reflect.Func:
		return va.Pointer() == vb.Pointer()
	}
	return false
}

func addValues(a, b any) (any, error) {
	switch x := a.(type) {
	case int8:
		if y, ok := b.(int8); ok {
			return x + y, nil
		}
	case int16:
		if y, ok := b.(int16); ok {
			return x + y, nil
		}
	case uint16:
		if y, ok := b.(uint16); ok {
			return x + y, nil
		}
	case int32:
		if y, ok := b.(int32); ok {
			return x + y, nil
		}
	case int64:
		if y, ok := b.(int64); ok {
			return x + y, nil
		}
	case float32:
		if y, ok := b.(float32); ok {
			return x + y, nil
		}
	case float64:
		if y, ok := b.(float64); ok {
			return x + y, nil
		}
	}
	return nil, errors.ClassCast([]string{"delta"}, b, fmt.Sprintf("%T", a))
}

type cellStore struct {
	mu    sync.Mutex
	value any
}

func (s *cellStore) locker([]any) sync.Locker { return &s.mu }

func (s *cellStore) load([]any) (any, error) { return s.value, nil }

func (s *cellStore) store(_ []any, v any) error {
	s.value = v
	return nil
}

// NewStaticVarHandle returns a var handle for a single variable of type
// t with no coordinates.
func (r *Registry) NewStaticVarHandle(t mtype.Type, initial any) (*VarHandle, error) {
	if t.IsVoid() || !t.Valid() {
		return nil, errors.InvalidInput(errors.PhaseBuild, "invalid variable type")
	}
	if initial == nil {
		initial = mtype.Zero(t)
	}
	if !mtype.Conforms(t, initial) {
		return nil, errors.InvalidValue(errors.PhaseBuild, []string{"initial"}, initial, t.String())
	}
	return &VarHandle{
		reg:      r,
		store:    &cellStore{value: initial},
		varType:  t,
		typeName: "static",
	}, nil
}

// elementLocks guard array elements for every array var handle in the
// process, striped by element address.
var elementLocks [64]sync.Mutex

func elementLock(addr uintptr) *sync.Mutex {
	return &elementLocks[(uint64(addr)*0x9E3779B97F4A7C15)>>58]
}

type arrayStore struct{}

// locker returns the stripe of the addressed element. Invalid
// coordinates fail in load or store; they get any stripe.
func (s arrayStore) locker(coords []any) sync.Locker {
	slot, err := s.slot(coords)
	if err != nil {
		return &elementLocks[0]
	}
	return elementLock(slot.UnsafeAddr())
}

func (s arrayStore) slot(coords []any) (reflect.Value, error) {
	if coords[0] == nil {
		return reflect.Value{}, errors.InvalidValue(errors.PhaseInvoke, []string{"array"}, nil, "non-null array")
	}
	arr := reflect.ValueOf(coords[0])
	if arr.Kind() != reflect.Slice {
		return reflect.Value{}, errors.ClassCast([]string{"array"}, coords[0], "array")
	}
	i := int(coords[1].(int32))
	if i < 0 || i >= arr.Len() {
		return reflect.Value{}, errors.New(errors.PhaseInvoke, errors.KindInvalidValue).
			Path("index").
			Detail("index %d out of bounds for length %d", i, arr.Len()).
			Build()
	}
	return arr.Index(i), nil
}

func (s arrayStore) load(coords []any) (any, error) {
	v, err := s.slot(coords)
	if err != nil {
		return nil, err
	}
	return v.Interface(), nil
}

func (s arrayStore) store(coords []any, v any) error {
	slot, err := s.slot(coords)
	if err != nil {
		return err
	}
	if v == nil {
		slot.Set(reflect.Zero(slot.Type()))
		return nil
	}
	rv := reflect.ValueOf(v)
	if !rv.Type().AssignableTo(slot.Type()) {
		return errors.ClassCast([]string{"value"}, v, slot.Type().String())
	}
	slot.Set(rv)
	return nil
}

// NewArrayVarHandle returns a var handle for the elements of arrays of
// arrayType, with coordinates (array, int index). Arrays are Go slices
// in the runtime's value representation.
func (r *Registry) NewArrayVarHandle(arrayType mtype.Type) (*VarHandle, error) {
	if !arrayType.IsArray() {
		return nil, errors.InvalidInput(errors.PhaseBuild, "not an array type: "+arrayType.String())
	}
	return &VarHandle{
		reg:      r,
		store:    arrayStore{},
		varType:  arrayType.Elem(),
		coords:   []mtype.Type{arrayType, mtype.Int},
		typeName: "array",
	}, nil
}

func checkVarHandleExactType(vh *VarHandle, ad *AccessDescriptor) (*Handle, error) {
	mh, err := vh.MethodHandle(ad.Mode)
	if err != nil {
		return nil, err
	}
	if mh.typ != ad.Invoker {
		return nil, errors.SignatureMismatch(errors.PhaseInvoke, ad.Invoker.String(), mh.typ.String())
	}
	return mh, nil
}

func checkVarHandleGenericType(vh *VarHandle, ad *AccessDescriptor) (*Handle, error) {
	if vh.exact {
		if amt := vh.AccessModeType(ad.Mode); amt != ad.Exact {
			return nil, errors.SignatureMismatch(errors.PhaseInvoke, amt.String(), ad.Exact.String())
		}
	}
	mh, err := vh.MethodHandle(ad.Mode)
	if err != nil {
		return nil, err
	}
	return mh.AsType(ad.Invoker)
}
