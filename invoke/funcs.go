package invoke

import (
	"fmt"
	"reflect"
	"strconv"

	"github.com/wippyai/mh-runtime/errors"
	"github.com/wippyai/mh-runtime/mtype"
)

// Func is an operation a program name may apply.
type Func uint8

const (
	// FuncArgument marks an incoming argument.
	FuncArgument Func = iota
	// FuncCheckExactType(h, mt) fails unless h has type mt.
	FuncCheckExactType
	// FuncCheckGenericType(h, mt) returns h retyped to mt.
	FuncCheckGenericType
	// FuncCheckCustomized(h) counts a call to h towards customization.
	FuncCheckCustomized
	// FuncCheckVarHandleExactType(vh, ad) returns the accessor for ad's
	// mode, failing unless it has ad's invoker type.
	FuncCheckVarHandleExactType
	// FuncCheckVarHandleGenericType(vh, ad) returns the accessor for ad's
	// mode retyped to ad's invoker type.
	FuncCheckVarHandleGenericType
	// FuncGetCallSiteTarget(site) returns the current target of site.
	FuncGetCallSiteTarget
	// FuncInvokeBasic(h, args...) calls h without checks.
	FuncInvokeBasic
	// FuncBoundValue(h, i) returns the i-th bound value of h.
	FuncBoundValue
	// FuncCallTarget(h or fn, args...) calls the Go function of a direct handle.
	FuncCallTarget
	// FuncConstant(v) returns v.
	FuncConstant
	// FuncConvert(v, conv) applies a value conversion.
	FuncConvert
	// FuncCheckArrayLength(arr, n) fails unless arr has n elements.
	FuncCheckArrayLength
	// FuncArrayElement(arr, i) returns element i of arr.
	FuncArrayElement

	funcCount
)

var funcNames = [...]string{
	FuncArgument:                  "argument",
	FuncCheckExactType:            "checkExactType",
	FuncCheckGenericType:          "checkGenericType",
	FuncCheckCustomized:           "checkCustomized",
	FuncCheckVarHandleExactType:   "checkVarHandleExactType",
	FuncCheckVarHandleGenericType: "checkVarHandleGenericType",
	FuncGetCallSiteTarget:         "getCallSiteTarget",
	FuncInvokeBasic:               "invokeBasic",
	FuncBoundValue:                "boundValue",
	FuncCallTarget:                "callTarget",
	FuncConstant:                  "constant",
	FuncConvert:                   "convert",
	FuncCheckArrayLength:          "checkArrayLength",
	FuncArrayElement:              "arrayElement",
}

func (f Func) String() string {
	if int(f) < len(funcNames) {
		return funcNames[f]
	}
	return fmt.Sprintf("Func(%d)", f)
}

type funcImpl func(n *Name, vals []any) (any, error)

var funcs [funcCount]funcImpl

func init() {
	funcs = [funcCount]funcImpl{
		FuncArgument:                  execArgument,
		FuncCheckExactType:            execCheckExactType,
		FuncCheckGenericType:          execCheckGenericType,
		FuncCheckCustomized:           execCheckCustomized,
		FuncCheckVarHandleExactType:   execCheckVarHandleExactType,
		FuncCheckVarHandleGenericType: execCheckVarHandleGenericType,
		FuncGetCallSiteTarget:         execGetCallSiteTarget,
		FuncInvokeBasic:               execInvokeBasic,
		FuncBoundValue:                execBoundValue,
		FuncCallTarget:                execCallTarget,
		FuncConstant:                  execConstant,
		FuncConvert:                   execConvert,
		FuncCheckArrayLength:          execCheckArrayLength,
		FuncArrayElement:              execArrayElement,
	}
}

func execArgument(*Name, []any) (any, error) {
	return nil, errors.Internal(errors.PhaseInvoke, "argument evaluated as operation")
}

func asHandle(v any, path string) (*Handle, error) {
	h, ok := v.(*Handle)
	if !ok || h == nil {
		return nil, errors.ClassCast([]string{path}, v, mtype.HandleType.String())
	}
	return h, nil
}

func asMethodType(v any) (*mtype.MethodType, error) {
	mt, ok := v.(*mtype.MethodType)
	if !ok || mt == nil {
		return nil, errors.ClassCast([]string{"type"}, v, mtype.MethodTypeType.String())
	}
	return mt, nil
}

func execCheckExactType(_ *Name, vals []any) (any, error) {
	h, err := asHandle(vals[0], "handle")
	if err != nil {
		return nil, err
	}
	mt, err := asMethodType(vals[1])
	if err != nil {
		return nil, err
	}
	if h.typ != mt {
		return nil, errors.SignatureMismatch(errors.PhaseInvoke, mt.String(), h.typ.String())
	}
	return nil, nil
}

func execCheckGenericType(_ *Name, vals []any) (any, error) {
	h, err := asHandle(vals[0], "handle")
	if err != nil {
		return nil, err
	}
	mt, err := asMethodType(vals[1])
	if err != nil {
		return nil, err
	}
	return h.AsType(mt)
}

func execCheckCustomized(n *Name, vals []any) (any, error) {
	if n.args[0].IsConst() {
		return nil, nil
	}
	h, err := asHandle(vals[0], "handle")
	if err != nil {
		return nil, err
	}
	h.checkCustomized()
	return nil, nil
}

func varHandleArgs(vals []any) (*VarHandle, *AccessDescriptor, error) {
	vh, ok := vals[0].(*VarHandle)
	if !ok || vh == nil {
		return nil, nil, errors.ClassCast([]string{"varhandle"}, vals[0], mtype.VarHandleType.String())
	}
	ad, ok := vals[1].(*AccessDescriptor)
	if !ok || ad == nil {
		return nil, nil, errors.ClassCast([]string{"descriptor"}, vals[1], mtype.DescriptorType.String())
	}
	return vh, ad, nil
}

func execCheckVarHandleExactType(_ *Name, vals []any) (any, error) {
	vh, ad, err := varHandleArgs(vals)
	if err != nil {
		return nil, err
	}
	return checkVarHandleExactType(vh, ad)
}

func execCheckVarHandleGenericType(_ *Name, vals []any) (any, error) {
	vh, ad, err := varHandleArgs(vals)
	if err != nil {
		return nil, err
	}
	return checkVarHandleGenericType(vh, ad)
}

func execGetCallSiteTarget(_ *Name, vals []any) (any, error) {
	site, ok := vals[0].(CallSite)
	if !ok || site == nil {
		return nil, errors.ClassCast([]string{"site"}, vals[0], mtype.CallSiteType.String())
	}
	return site.Target(), nil
}

func execInvokeBasic(_ *Name, vals []any) (any, error) {
	h, err := asHandle(vals[0], "handle")
	if err != nil {
		return nil, err
	}
	return h.invokeBasic(vals[1:])
}

func execBoundValue(_ *Name, vals []any) (any, error) {
	h, err := asHandle(vals[0], "handle")
	if err != nil {
		return nil, err
	}
	i := vals[1].(int)
	if i >= len(h.data) {
		return nil, errors.Internal(errors.PhaseInvoke, "%s has no bound value %d", h, i)
	}
	return h.data[i], nil
}

func execCallTarget(_ *Name, vals []any) (any, error) {
	var fn Target
	switch t := vals[0].(type) {
	case Target:
		fn = t
	case *Handle:
		fn = t.fn
	}
	if fn == nil {
		return nil, errors.Internal(errors.PhaseInvoke, "callTarget on %T without a function", vals[0])
	}
	return fn(vals[1:])
}

func execConstant(_ *Name, vals []any) (any, error) {
	return vals[0], nil
}

func execConvert(_ *Name, vals []any) (any, error) {
	return vals[1].(*conversion).apply(vals[0])
}

func execCheckArrayLength(_ *Name, vals []any) (any, error) {
	want := vals[1].(int)
	got, err := arrayLength(vals[0])
	if err != nil {
		return nil, err
	}
	if got != want {
		return nil, errors.New(errors.PhaseInvoke, errors.KindInvalidValue).
			Path("array").
			Expected("length " + strconv.Itoa(want)).
			Actual("length " + strconv.Itoa(got)).
			Value(vals[0]).
			Build()
	}
	return nil, nil
}

func execArrayElement(_ *Name, vals []any) (any, error) {
	i := vals[1].(int)
	if arr, ok := vals[0].([]any); ok {
		return arr[i], nil
	}
	return reflect.ValueOf(vals[0]).Index(i).Interface(), nil
}

// arrayLength returns the length of an array value; nil counts as empty.
func arrayLength(v any) (int, error) {
	switch arr := v.(type) {
	case nil:
		return 0, nil
	case []any:
		return len(arr), nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return 0, errors.ClassCast([]string{"array"}, v, mtype.ObjectArray.String())
	}
	return rv.Len(), nil
}
