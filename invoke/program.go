package invoke

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/wippyai/mh-runtime/errors"
	"github.com/wippyai/mh-runtime/mtype"
)

// ProgramKind tags a program with the adapter it implements.
type ProgramKind uint8

const (
	KindDirectCall ProgramKind = iota
	KindBasicInvoker
	KindExactInvoker
	KindGenericInvoker
	KindExactLinker
	KindGenericLinker
	KindLinkToCallSite
	KindLinkToTarget
	KindDynamicInvoker
	KindVarHandleExactInvoker
	KindVarHandleInvoker
	KindVarHandleLinker
	KindAsType
	KindSpreader
	KindFilter
	KindInsert
)

var programKindNames = [...]string{
	KindDirectCall:            "directCall",
	KindBasicInvoker:          "invokeBasic",
	KindExactInvoker:          "invokeExact_MT",
	KindGenericInvoker:        "invoke_MT",
	KindExactLinker:           "invokeExact_linker",
	KindGenericLinker:         "invoke_linker",
	KindLinkToCallSite:        "linkToCallSite",
	KindLinkToTarget:          "linkToTargetMethod",
	KindDynamicInvoker:        "dynamicInvoker",
	KindVarHandleExactInvoker: "varHandleExactInvoker",
	KindVarHandleInvoker:      "varHandleInvoker",
	KindVarHandleLinker:       "varHandleLinker",
	KindAsType:                "asType",
	KindSpreader:              "spreader",
	KindFilter:                "filterArgument",
	KindInsert:                "insertArguments",
}

func (k ProgramKind) String() string {
	if int(k) < len(programKindNames) {
		return programKindNames[k]
	}
	return fmt.Sprintf("ProgramKind(%d)", k)
}

// Operand is an input of an operation: a reference to an earlier name
// or a constant.
type Operand struct {
	value any
	ref   int
}

// Ref returns an operand referring to name i.
func Ref(i int) Operand { return Operand{ref: i} }

// Const returns a constant operand.
func Const(v any) Operand { return Operand{ref: -1, value: v} }

// IsConst reports whether the operand is a constant.
func (o Operand) IsConst() bool { return o.ref < 0 }

// Index returns the referenced name index, or -1 for constants.
func (o Operand) Index() int { return o.ref }

// Value returns the constant value.
func (o Operand) Value() any { return o.value }

// Name is one entry of a program: an incoming argument or an operation.
type Name struct {
	args []Operand
	fn   Func
	typ  mtype.BasicType
}

// Func returns the operation, or FuncArgument.
func (n *Name) Func() Func { return n.fn }

// IsArgument reports whether the name is an incoming argument.
func (n *Name) IsArgument() bool { return n.fn == FuncArgument }

// Type returns the basic type of the value the name produces.
func (n *Name) Type() mtype.BasicType { return n.typ }

// Operands returns the operation inputs.
func (n *Name) Operands() []Operand { return n.args }

// Program is an immutable adapter program. Its names are ordered so that
// each operation only refers to earlier names; the last name is the
// result. The compiled entry and the customization marker are attached
// at most once.
type Program struct {
	reg        *Registry
	entry      atomic.Pointer[Entry]
	customized atomic.Pointer[Handle]
	debugName  string
	names      []Name
	arity      int
	kind       ProgramKind
}

// Kind returns the program kind.
func (p *Program) Kind() ProgramKind { return p.kind }

// DebugName returns the program's diagnostic name.
func (p *Program) DebugName() string { return p.debugName }

// Arity returns the number of incoming arguments.
func (p *Program) Arity() int { return p.arity }

// Len returns the number of names.
func (p *Program) Len() int { return len(p.names) }

// Name returns name i.
func (p *Program) Name(i int) *Name { return &p.names[i] }

// ResultType returns the basic type of the program result.
func (p *Program) ResultType() mtype.BasicType { return p.names[len(p.names)-1].typ }

// IsCompiled reports whether a lowered entry is attached.
func (p *Program) IsCompiled() bool { return p.entry.Load() != nil }

// Customized returns the handle this program was specialized for, or nil.
func (p *Program) Customized() *Handle { return p.customized.Load() }

// Run executes the program with the given incoming arguments.
func (p *Program) Run(args []any) (any, error) {
	if len(args) != p.arity {
		return nil, errors.Internal(errors.PhaseInvoke, "%s: want %d arguments, got %d", p.debugName, p.arity, len(args))
	}
	if e := p.entry.Load(); e != nil {
		return (*e)(args)
	}
	return p.interpret(args)
}

func (p *Program) interpret(args []any) (any, error) {
	frame := make([]any, len(p.names))
	copy(frame, args)
	for i := p.arity; i < len(p.names); i++ {
		if err := p.ExecOp(frame, i); err != nil {
			return nil, err
		}
	}
	return frame[len(frame)-1], nil
}

// ExecOp evaluates operation i against frame and stores its value in
// frame[i]. Names before i must already be evaluated.
func (p *Program) ExecOp(frame []any, i int) error {
	n := &p.names[i]
	vals := make([]any, len(n.args))
	for j, o := range n.args {
		if o.ref < 0 {
			vals[j] = o.value
		} else {
			vals[j] = frame[o.ref]
		}
	}
	v, err := funcs[n.fn](n, vals)
	if err != nil {
		return err
	}
	frame[i] = v
	return nil
}

// CompileToBytecode lowers the program with the registry's Lowerer and
// attaches the entry. It is idempotent; concurrent callers may lower
// twice but only the first entry is kept.
func (p *Program) CompileToBytecode() error {
	if p.entry.Load() != nil {
		return nil
	}
	e, err := p.reg.cfg.Lowerer.Lower(p)
	if err != nil {
		return errors.Wrap(errors.PhaseLower, errors.KindUnsupported, err, "lower "+p.debugName)
	}
	if p.entry.CompareAndSwap(nil, &e) {
		p.reg.compiled.Add(1)
	}
	return nil
}

func (p *Program) markCustomized(h *Handle) bool {
	return p.customized.CompareAndSwap(nil, h)
}

// Dump renders the program as a readable listing.
func (p *Program) Dump() string {
	var b strings.Builder
	b.WriteString(p.debugName)
	b.WriteString("=Lambda(")
	for i := 0; i < p.arity; i++ {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "a%d:%s", i, p.names[i].typ)
	}
	b.WriteString(")=>{\n")
	for i := p.arity; i < len(p.names); i++ {
		n := &p.names[i]
		fmt.Fprintf(&b, "    t%d:%s=%s(", i, n.typ, n.fn)
		for j, o := range n.args {
			if j > 0 {
				b.WriteByte(',')
			}
			if o.ref < 0 {
				b.WriteString(constString(o.value))
			} else if o.ref < p.arity {
				fmt.Fprintf(&b, "a%d", o.ref)
			} else {
				fmt.Fprintf(&b, "t%d", o.ref)
			}
		}
		b.WriteString(");\n")
	}
	fmt.Fprintf(&b, "    t%d}", len(p.names)-1)
	if p.Customized() != nil {
		b.WriteString(" customized")
	}
	if p.IsCompiled() {
		b.WriteString(" compiled")
	}
	return b.String()
}

func constString(v any) string {
	switch x := v.(type) {
	case *mtype.MethodType:
		return x.String()
	case *Handle:
		return x.String()
	case Target:
		return "fn"
	case *conversion:
		return x.String()
	case string:
		return fmt.Sprintf("%q", x)
	default:
		return fmt.Sprint(x)
	}
}

// builder assembles the names of a program. Arguments must be added
// before any operation.
type builder struct {
	names []Name
	arity int
}

func newBuilder(capacity int) *builder {
	return &builder{names: make([]Name, 0, capacity)}
}

func (b *builder) arg(t mtype.BasicType) int {
	b.names = append(b.names, Name{fn: FuncArgument, typ: t})
	b.arity++
	return len(b.names) - 1
}

func (b *builder) op(fn Func, t mtype.BasicType, args ...Operand) int {
	b.names = append(b.names, Name{fn: fn, typ: t, args: args})
	return len(b.names) - 1
}

func refs(idx ...int) []Operand {
	out := make([]Operand, len(idx))
	for i, x := range idx {
		out[i] = Ref(x)
	}
	return out
}

// build validates the names and returns the program. Arguments must
// precede operations and operands may only refer backwards.
func (b *builder) build(reg *Registry, kind ProgramKind, debugName string) (*Program, error) {
	if len(b.names) <= b.arity {
		return nil, errors.Internal(errors.PhaseBuild, "%s: program has no operations", debugName)
	}
	for i, n := range b.names {
		if n.fn == FuncArgument {
			if i >= b.arity {
				return nil, errors.Internal(errors.PhaseBuild, "%s: argument t%d after operations", debugName, i)
			}
			continue
		}
		if i < b.arity {
			return nil, errors.Internal(errors.PhaseBuild, "%s: operation t%d among arguments", debugName, i)
		}
		if n.fn >= funcCount {
			return nil, errors.Internal(errors.PhaseBuild, "%s: unknown operation %d", debugName, n.fn)
		}
		for _, o := range n.args {
			if o.ref >= i {
				return nil, errors.Internal(errors.PhaseBuild, "%s: t%d refers forward to t%d", debugName, i, o.ref)
			}
		}
	}
	return &Program{
		reg:       reg,
		kind:      kind,
		debugName: debugName,
		names:     b.names,
		arity:     b.arity,
	}, nil
}
