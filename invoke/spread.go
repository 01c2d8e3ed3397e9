package invoke

import (
	"strconv"

	"github.com/wippyai/mh-runtime/errors"
	"github.com/wippyai/mh-runtime/mtype"
)

// AsSpreader returns a handle that takes its last n arguments as one
// array of arrayType and passes the elements to h. Elements are
// converted to h's parameter types; the array length is checked per call.
func (h *Handle) AsSpreader(arrayType mtype.Type, n int) (*Handle, error) {
	r := h.reg
	tt := h.typ
	if !arrayType.IsArray() {
		return nil, errors.InvalidInput(errors.PhaseBuild, "spread type is not an array: "+arrayType.String())
	}
	if n < 0 || n > tt.ParamCount() {
		return nil, errors.InvalidInput(errors.PhaseBuild, "bad spread array length "+strconv.Itoa(n)+" for "+tt.String())
	}
	pos := tt.ParamCount() - n
	elem := arrayType.Elem()
	convs := make([]conversion, n)
	for i := range convs {
		c, ok := planConversion(elem, tt.Param(pos+i))
		if !ok {
			return nil, errors.New(errors.PhaseBuild, errors.KindSignatureMismatch).
				Expected(tt.Param(pos + i).String()).
				Actual(arrayType.String()).
				Detail("array elements cannot be spread into parameter %d", pos+i).
				Build()
		}
		convs[i] = c
	}
	mt, err := tt.ReplaceParams(pos, tt.ParamCount(), arrayType)
	if err != nil {
		return nil, err
	}

	b := newBuilder(pos + 2*n + 5)
	this := b.arg(mtype.BasicL)
	lead := make([]int, pos)
	for i := range lead {
		lead[i] = b.arg(mt.Param(i).Basic())
	}
	arr := b.arg(mtype.BasicL)
	callee := b.op(FuncBoundValue, mtype.BasicL, Ref(this), Const(0))
	b.op(FuncCheckArrayLength, mtype.BasicV, Ref(arr), Const(n))
	out := append([]Operand{Ref(callee)}, refs(lead...)...)
	for i := range convs {
		c := &convs[i]
		e := b.op(FuncArrayElement, elem.Basic(), Ref(arr), Const(i))
		if c.emits() {
			e = b.op(FuncConvert, c.to.Basic(), Ref(e), Const(c))
		}
		out = append(out, Ref(e))
	}
	b.op(FuncInvokeBasic, tt.Return().Basic(), out...)

	p, err := b.build(r, KindSpreader, KindSpreader.String()+"_"+mt.BasicSignature())
	if err != nil {
		return nil, err
	}
	return newHandle(r, mt, p, h).withName("spreader"), nil
}

// impliedRestargType returns the array type that carries parameters
// [from, n) of mt. They must all have one type unless mt is generic.
func impliedRestargType(mt *mtype.MethodType, from int) (mtype.Type, error) {
	if mt.IsGeneric() || from >= mt.ParamCount() {
		return mtype.ObjectArray, nil
	}
	t := mt.Param(from)
	for i := from + 1; i < mt.ParamCount(); i++ {
		if mt.Param(i) != t {
			return mtype.Type{}, errors.HeterogeneousSpread(mt.String(), from)
		}
	}
	if t == mtype.Object {
		return mtype.ObjectArray, nil
	}
	return mtype.ArrayOf(t), nil
}

// SpreadInvoker returns an invoker of type (Handle, leading..., T[])R
// that calls a handle of the target type with the array elements as its
// trailing arguments. Signatures too wide for a direct generic invoker
// are split: the handle is first turned into a spreader, then invoked
// through a generic invoker of the narrower pre-spread type.
func (inv *Invokers) SpreadInvoker(leading int) (*Handle, error) {
	mt := inv.targetType
	if leading < 0 || leading > mt.ParamCount() {
		return nil, errors.InvalidInput(errors.PhaseBuild, "leading argument count "+strconv.Itoa(leading)+" out of range for "+mt.String())
	}
	inv.mu.Lock()
	h := inv.spread[leading]
	inv.mu.Unlock()
	if h != nil {
		return h, nil
	}

	h, err := inv.makeSpreadInvoker(leading)
	if err != nil {
		return nil, err
	}

	inv.mu.Lock()
	defer inv.mu.Unlock()
	if prev := inv.spread[leading]; prev != nil {
		return prev, nil
	}
	if inv.spread == nil {
		inv.spread = make(map[int]*Handle)
	}
	inv.spread[leading] = h
	return h, nil
}

func (inv *Invokers) makeSpreadInvoker(leading int) (*Handle, error) {
	mt := inv.targetType
	spreadCount := mt.ParamCount() - leading
	arrayType, err := impliedRestargType(mt, leading)
	if err != nil {
		return nil, err
	}
	if mt.SlotCount() <= mtype.MaxInvokerArity {
		gen, err := inv.GenericInvoker()
		if err != nil {
			return nil, err
		}
		return gen.AsSpreader(arrayType, spreadCount)
	}

	preSpread, err := mt.ReplaceParams(leading, mt.ParamCount(), arrayType)
	if err != nil {
		return nil, err
	}
	arrayInvoker, err := inv.reg.GenericInvoker(preSpread)
	if err != nil {
		return nil, err
	}
	factory, err := inv.reg.spreaderFactory()
	if err != nil {
		return nil, err
	}
	makeSpreader, err := InsertArguments(factory, 1, arrayType, int32(spreadCount))
	if err != nil {
		return nil, err
	}
	debugf("spread invoker for %s split at %d slots", mt, mt.SlotCount())
	return FilterArgument(arrayInvoker, 0, makeSpreader)
}

// spreaderFactory returns the handle (Handle, Object, int)Handle that
// calls AsSpreader on its first argument.
func (r *Registry) spreaderFactory() (*Handle, error) {
	r.spreaderOnce.Do(func() {
		mt, err := r.types.Make(mtype.HandleType, mtype.HandleType, mtype.Object, mtype.Int)
		if err != nil {
			r.spreaderErr = err
			return
		}
		h, err := r.FromFunc(mt, func(args []any) (any, error) {
			target, err := asHandle(args[0], "target")
			if err != nil {
				return nil, err
			}
			at, ok := args[1].(mtype.Type)
			if !ok {
				return nil, errors.ClassCast([]string{"arrayType"}, args[1], "array type")
			}
			return target.AsSpreader(at, int(args[2].(int32)))
		})
		if err != nil {
			r.spreaderErr = err
			return
		}
		r.spreader = h.withName("asSpreader")
	})
	return r.spreader, r.spreaderErr
}
