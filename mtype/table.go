package mtype

import (
	"strconv"
	"strings"
	"sync"

	"github.com/wippyai/mh-runtime/errors"
)

// Arity limits, in parameter slots.
const (
	// MaxArity is the largest slot count of any signature.
	MaxArity = 255
	// MaxHandleArity leaves room for the leading handle argument.
	MaxHandleArity = MaxArity - 1
	// MaxInvokerArity leaves room for the invoker and the handle it calls.
	MaxInvokerArity = MaxHandleArity - 1
)

// Table interns method types by structure. Types from different tables
// must not be mixed: identity comparison is the equality test.
// Table is safe for concurrent use.
type Table struct {
	mu    sync.RWMutex
	types map[string]*MethodType
}

// NewTable creates an empty interning table.
func NewTable() *Table {
	return &Table{types: make(map[string]*MethodType, 64)}
}

// Len returns the number of interned method types.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.types)
}

// Make returns the interned method type with the given return and
// parameter types.
func (t *Table) Make(ret Type, params ...Type) (*MethodType, error) {
	if !ret.Valid() {
		return nil, errors.InvalidInput(errors.PhaseBuild, "invalid return type")
	}
	slots := 0
	for i, p := range params {
		if !p.Valid() || p.IsVoid() {
			return nil, errors.New(errors.PhaseBuild, errors.KindInvalidInput).
				Path("param", strconv.Itoa(i)).
				Detail("parameter type must be a non-void value type").
				Build()
		}
		slots += p.Slots()
	}
	desc := descriptorOf(ret, params)
	if slots > MaxArity {
		return nil, errors.ArityLimit(errors.PhaseBuild, desc, slots, MaxArity)
	}
	return t.intern(desc, ret, params, slots), nil
}

// MustMake is like Make but panics on error.
func (t *Table) MustMake(ret Type, params ...Type) *MethodType {
	mt, err := t.Make(ret, params...)
	if err != nil {
		panic(err)
	}
	return mt
}

// Parse interns the method type spelled by a descriptor such as (ILString;)J.
func (t *Table) Parse(desc string) (*MethodType, error) {
	if len(desc) < 3 || desc[0] != '(' {
		return nil, descriptorError(desc, 0, "expected '('")
	}
	var params []Type
	pos := 1
	for pos < len(desc) && desc[pos] != ')' {
		p, next, err := parseField(desc, pos, false)
		if err != nil {
			return nil, err
		}
		params = append(params, p)
		pos = next
	}
	if pos >= len(desc) {
		return nil, descriptorError(desc, pos, "expected ')'")
	}
	ret, next, err := parseField(desc, pos+1, true)
	if err != nil {
		return nil, err
	}
	if next != len(desc) {
		return nil, descriptorError(desc, next, "trailing characters")
	}
	return t.Make(ret, params...)
}

// GenericType returns (Object^n)Object.
func (t *Table) GenericType(n int) (*MethodType, error) {
	params := make([]Type, n)
	for i := range params {
		params[i] = Object
	}
	return t.Make(Object, params...)
}

func (t *Table) lookup(desc string) *MethodType {
	t.mu.RLock()
	mt := t.types[desc]
	t.mu.RUnlock()
	return mt
}

func (t *Table) intern(desc string, ret Type, params []Type, slots int) *MethodType {
	if mt := t.lookup(desc); mt != nil {
		return mt
	}

	mt := &MethodType{
		table:  t,
		rtype:  ret,
		ptypes: append([]Type(nil), params...),
		desc:   desc,
		slots:  slots,
	}

	// Derived views are interned before publication so a published type
	// is never observed without them. Both recursions terminate because
	// erasure is idempotent.
	mt.erased = mt
	if ed := eraseDescriptor(ret, params, eraseRef); ed != desc {
		mt.erased = t.intern(ed, eraseRef(ret), mapTypes(params, eraseRef), slots)
	}
	mt.basic = mt
	if bd := eraseDescriptor(ret, params, eraseBasic); bd != desc {
		mt.basic = t.intern(bd, eraseBasic(ret), mapTypes(params, eraseBasic), slots)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if prev, ok := t.types[desc]; ok {
		return prev
	}
	t.types[desc] = mt
	return mt
}

func eraseRef(t Type) Type {
	if t.IsReference() {
		return Object
	}
	return t
}

func eraseBasic(t Type) Type {
	return t.Basic().Type()
}

func mapTypes(ts []Type, f func(Type) Type) []Type {
	out := make([]Type, len(ts))
	for i, t := range ts {
		out[i] = f(t)
	}
	return out
}

func eraseDescriptor(ret Type, params []Type, f func(Type) Type) string {
	return descriptorOf(f(ret), mapTypes(params, f))
}

func descriptorOf(ret Type, params []Type) string {
	var b strings.Builder
	b.WriteByte('(')
	for _, p := range params {
		b.WriteString(p.desc)
	}
	b.WriteByte(')')
	b.WriteString(ret.desc)
	return b.String()
}

func descriptorError(desc string, pos int, msg string) error {
	return errors.New(errors.PhaseParse, errors.KindInvalidData).
		Actual(desc).
		Detail("%s at offset %d", msg, pos).
		Build()
}
