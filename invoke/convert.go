package invoke

import (
	"strconv"

	"github.com/wippyai/mh-runtime/errors"
	"github.com/wippyai/mh-runtime/mtype"
)

type convOp uint8

const (
	convNone   convOp = iota
	convWiden         // primitive to a wider primitive
	convBox           // primitive to reference; values are already boxed
	convUnbox         // reference to primitive, widening the boxed value
	convCast          // reference to reference, checked per call
	convZero          // void to a value
	convDrop          // value to void
)

var convNames = [...]string{"none", "widen", "box", "unbox", "cast", "zero", "drop"}

// conversion turns a value of type from into a value of type to.
type conversion struct {
	from mtype.Type
	to   mtype.Type
	op   convOp
}

func (c *conversion) String() string {
	return convNames[c.op] + "(" + c.from.String() + "->" + c.to.String() + ")"
}

// emits reports whether the conversion needs a program operation.
func (c *conversion) emits() bool {
	return c.op != convNone && c.op != convBox
}

func (c *conversion) apply(v any) (any, error) {
	switch c.op {
	case convWiden:
		return widenValue(v, c.from, c.to)
	case convUnbox:
		if v == nil {
			return nil, errors.New(errors.PhaseConvert, errors.KindClassCast).
				Expected(c.to.String()).
				Detail("cannot unbox null").
				Build()
		}
		src, ok := mtype.Unwrapped(mtype.ClassOf(v))
		if !ok || (src != c.to && !canWiden(src, c.to)) {
			return nil, errors.ClassCast(nil, v, mtype.Wrapper(c.to).String())
		}
		return widenValue(v, src, c.to)
	case convCast:
		if !mtype.IsInstance(c.to, v) {
			return nil, errors.ClassCast(nil, v, c.to.String())
		}
		return v, nil
	case convZero:
		return mtype.Zero(c.to), nil
	case convDrop:
		return nil, nil
	default:
		return v, nil
	}
}

// planConversion returns the conversion from one type to another, or
// false when asType does not allow it.
func planConversion(from, to mtype.Type) (conversion, bool) {
	c := conversion{from: from, to: to}
	switch {
	case from == to:
		c.op = convNone
	case to.IsVoid():
		c.op = convDrop
	case from.IsVoid():
		c.op = convZero
	case from.IsPrimitive() && to.IsPrimitive():
		if !canWiden(from, to) {
			return c, false
		}
		c.op = convWiden
	case from.IsPrimitive():
		if !mtype.IsAssignable(to, mtype.Wrapper(from)) {
			return c, false
		}
		c.op = convBox
	case to.IsPrimitive():
		if p, ok := mtype.Unwrapped(from); ok {
			if p != to && !canWiden(p, to) {
				return c, false
			}
		} else if from != mtype.Object && from != mtype.Number {
			return c, false
		}
		c.op = convUnbox
	default:
		if mtype.IsAssignable(to, from) {
			c.op = convNone
		} else {
			c.op = convCast
		}
	}
	return c, true
}

// canWiden reports whether a widening primitive conversion exists.
func canWiden(from, to mtype.Type) bool {
	rank := func(t mtype.Type) int {
		switch t.Kind() {
		case mtype.KindByte:
			return 1
		case mtype.KindShort, mtype.KindChar:
			return 2
		case mtype.KindInt:
			return 3
		case mtype.KindLong:
			return 4
		case mtype.KindFloat:
			return 5
		case mtype.KindDouble:
			return 6
		default:
			return 0
		}
	}
	fr, tr := rank(from), rank(to)
	if fr == 0 || tr == 0 || fr >= tr {
		return false
	}
	// byte widens to short but not to char; nothing widens to char.
	return to.Kind() != mtype.KindChar
}

func widenValue(v any, from, to mtype.Type) (any, error) {
	if from == to {
		return v, nil
	}
	switch x := v.(type) {
	case int8:
		return intAs(int64(x), to), nil
	case int16:
		return intAs(int64(x), to), nil
	case uint16:
		return intAs(int64(x), to), nil
	case int32:
		return intAs(int64(x), to), nil
	case int64:
		return intAs(x, to), nil
	case float32:
		if to.Kind() == mtype.KindDouble {
			return float64(x), nil
		}
	}
	return nil, errors.ClassCast(nil, v, to.String())
}

func intAs(i int64, to mtype.Type) any {
	switch to.Kind() {
	case mtype.KindShort:
		return int16(i)
	case mtype.KindInt:
		return int32(i)
	case mtype.KindLong:
		return i
	case mtype.KindFloat:
		return float32(i)
	case mtype.KindDouble:
		return float64(i)
	default:
		return i
	}
}

// AsType returns a handle of type mt that converts its arguments to the
// types h expects, calls h, and converts the result back. Primitive
// arguments widen, box and unbox; reference arguments are cast at call
// time. It fails with a signature mismatch when no conversion exists.
func (h *Handle) AsType(mt *mtype.MethodType) (*Handle, error) {
	if mt == h.typ {
		return h, nil
	}
	if c := h.asType.Load(); c != nil && c.typ == mt {
		return c, nil
	}
	a, err := h.reg.asTypeUncached(h, mt)
	if err != nil {
		return nil, err
	}
	h.asType.Store(a)
	return a, nil
}

func (r *Registry) asTypeUncached(h *Handle, mt *mtype.MethodType) (*Handle, error) {
	if err := r.owns(mt); err != nil {
		return nil, err
	}
	target := h.typ
	if mt.ParamCount() != target.ParamCount() {
		return nil, errors.SignatureMismatch(errors.PhaseConvert, mt.String(), target.String())
	}

	convs := make([]conversion, mt.ParamCount())
	for i := range convs {
		c, ok := planConversion(mt.Param(i), target.Param(i))
		if !ok {
			return nil, mismatch(mt, target, "param "+strconv.Itoa(i)+": cannot convert "+mt.Param(i).String()+" to "+target.Param(i).String())
		}
		convs[i] = c
	}
	rconv, ok := planConversion(target.Return(), mt.Return())
	if !ok {
		return nil, mismatch(mt, target, "return: cannot convert "+target.Return().String()+" to "+mt.Return().String())
	}

	b := newBuilder(2*mt.ParamCount() + 4)
	this := b.arg(mtype.BasicL)
	args := make([]int, mt.ParamCount())
	for i := range args {
		args[i] = b.arg(mt.Param(i).Basic())
	}
	callee := b.op(FuncBoundValue, mtype.BasicL, Ref(this), Const(0))
	out := []Operand{Ref(callee)}
	for i := range convs {
		c := &convs[i]
		if !c.emits() {
			out = append(out, Ref(args[i]))
			continue
		}
		out = append(out, Ref(b.op(FuncConvert, c.to.Basic(), Ref(args[i]), Const(c))))
	}
	call := b.op(FuncInvokeBasic, target.Return().Basic(), out...)
	if rconv.emits() {
		b.op(FuncConvert, mt.Return().Basic(), Ref(call), Const(&rconv))
	}

	p, err := b.build(r, KindAsType, KindAsType.String()+"_"+mt.BasicSignature())
	if err != nil {
		return nil, err
	}
	return newHandle(r, mt, p, h).withName("asType"), nil
}

func mismatch(expected, actual *mtype.MethodType, detail string) *errors.Error {
	e := errors.SignatureMismatch(errors.PhaseConvert, expected.String(), actual.String())
	e.Detail = detail
	return e
}
