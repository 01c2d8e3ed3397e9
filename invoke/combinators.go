package invoke

import (
	"strconv"

	"github.com/wippyai/mh-runtime/errors"
	"github.com/wippyai/mh-runtime/mtype"
)

// FilterArgument returns a handle that applies filter to argument pos
// before calling target. The filter must take one argument and return
// exactly target's parameter type at pos.
func FilterArgument(target *Handle, pos int, filter *Handle) (*Handle, error) {
	r := target.reg
	tt, ft := target.typ, filter.typ
	if pos < 0 || pos >= tt.ParamCount() {
		return nil, errors.InvalidInput(errors.PhaseBuild, "filter position "+strconv.Itoa(pos)+" out of range for "+tt.String())
	}
	if ft.ParamCount() != 1 || ft.Return() != tt.Param(pos) {
		return nil, errors.SignatureMismatch(errors.PhaseBuild, "(T)"+tt.Param(pos).String(), ft.String())
	}
	mt, err := tt.ChangeParam(pos, ft.Param(0))
	if err != nil {
		return nil, err
	}

	b := newBuilder(mt.ParamCount() + 4)
	this := b.arg(mtype.BasicL)
	args := make([]int, mt.ParamCount())
	for i := range args {
		args[i] = b.arg(mt.Param(i).Basic())
	}
	t := b.op(FuncBoundValue, mtype.BasicL, Ref(this), Const(0))
	f := b.op(FuncBoundValue, mtype.BasicL, Ref(this), Const(1))
	filtered := b.op(FuncInvokeBasic, ft.Return().Basic(), Ref(f), Ref(args[pos]))
	out := append([]Operand{Ref(t)}, refs(args...)...)
	out[1+pos] = Ref(filtered)
	b.op(FuncInvokeBasic, tt.Return().Basic(), out...)

	p, err := b.build(r, KindFilter, KindFilter.String()+"_"+mt.BasicSignature())
	if err != nil {
		return nil, err
	}
	return newHandle(r, mt, p, target, filter).withName("filterArgument"), nil
}

// InsertArguments returns a handle that calls target with values
// inserted at pos. Each value must conform to the parameter it fills.
func InsertArguments(target *Handle, pos int, values ...any) (*Handle, error) {
	r := target.reg
	tt := target.typ
	if pos < 0 || pos+len(values) > tt.ParamCount() {
		return nil, errors.InvalidInput(errors.PhaseBuild, "insert position "+strconv.Itoa(pos)+" out of range for "+tt.String())
	}
	for i, v := range values {
		pt := tt.Param(pos + i)
		if !mtype.Conforms(pt, v) {
			return nil, errors.InvalidValue(errors.PhaseBuild, []string{"value", strconv.Itoa(i)}, v, pt.String())
		}
	}
	mt, err := tt.DropParams(pos, pos+len(values))
	if err != nil {
		return nil, err
	}

	b := newBuilder(mt.ParamCount() + len(values) + 3)
	this := b.arg(mtype.BasicL)
	args := make([]int, mt.ParamCount())
	for i := range args {
		args[i] = b.arg(mt.Param(i).Basic())
	}
	t := b.op(FuncBoundValue, mtype.BasicL, Ref(this), Const(0))
	out := make([]Operand, 0, tt.ParamCount()+1)
	out = append(out, Ref(t))
	out = append(out, refs(args[:pos]...)...)
	for i := range values {
		out = append(out, Ref(b.op(FuncBoundValue, tt.Param(pos+i).Basic(), Ref(this), Const(1+i))))
	}
	out = append(out, refs(args[pos:]...)...)
	b.op(FuncInvokeBasic, tt.Return().Basic(), out...)

	p, err := b.build(r, KindInsert, KindInsert.String()+"_"+mt.BasicSignature())
	if err != nil {
		return nil, err
	}
	data := append([]any{target}, values...)
	return newHandle(r, mt, p, data...).withName("insertArguments"), nil
}

// BindTo returns a handle that calls h with v as its first argument,
// which must be a reference.
func (h *Handle) BindTo(v any) (*Handle, error) {
	if h.typ.ParamCount() == 0 || !h.typ.Param(0).IsReference() {
		return nil, errors.InvalidInput(errors.PhaseBuild, "bindTo needs a leading reference parameter: "+h.typ.String())
	}
	return InsertArguments(h, 0, v)
}
