package runtime

import (
	"fmt"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"github.com/wippyai/mh-runtime/errors"
	"github.com/wippyai/mh-runtime/invoke"
	"github.com/wippyai/mh-runtime/mtype"
)

// Host is the interface for struct-based host modules.
// All exported methods (except Namespace) are registered as handles.
type Host interface {
	// Namespace groups the host's handles, e.g. "math".
	Namespace() string
}

// ExplicitRegistrar allows hosts to provide exact function names
// when automatic PascalCase-to-kebab-case conversion doesn't apply.
type ExplicitRegistrar interface {
	Register() map[string]any
}

// HostRegistry holds named direct handles built from Go functions.
type HostRegistry struct {
	reg     *invoke.Registry
	handles map[string]map[string]*invoke.Handle
	mu      sync.RWMutex
}

func NewHostRegistry(reg *invoke.Registry) *HostRegistry {
	return &HostRegistry{
		reg:     reg,
		handles: make(map[string]map[string]*invoke.Handle),
	}
}

func (r *HostRegistry) RegisterHost(h Host) error {
	ns := h.Namespace()
	if ns == "" {
		return errors.InvalidInput(errors.PhaseBuild, "namespace cannot be empty")
	}

	funcs := make(map[string]any)
	if er, ok := h.(ExplicitRegistrar); ok {
		funcs = er.Register()
	} else {
		rv := reflect.ValueOf(h)
		rt := rv.Type()
		for i := 0; i < rt.NumMethod(); i++ {
			method := rt.Method(i)
			if !method.IsExported() || method.Name == "Namespace" {
				continue
			}
			funcs[toKebabCase(method.Name)] = rv.Method(i).Interface()
		}
	}

	handles := make(map[string]*invoke.Handle, len(funcs))
	for name, fn := range funcs {
		mh, err := r.funcHandle(fn)
		if err != nil {
			return withPath(err, ns, name)
		}
		handles[name] = mh
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.handles[ns] == nil {
		r.handles[ns] = make(map[string]*invoke.Handle)
	}
	for name, mh := range handles {
		r.handles[ns][name] = mh
	}
	return nil
}

func (r *HostRegistry) RegisterFunc(namespace, name string, fn any) error {
	mh, err := r.funcHandle(fn)
	if err != nil {
		return withPath(err, namespace, name)
	}
	return r.RegisterHandle(namespace, name, mh)
}

// RegisterHandle registers an existing handle under namespace and name.
func (r *HostRegistry) RegisterHandle(namespace, name string, mh *invoke.Handle) error {
	if namespace == "" {
		return errors.InvalidInput(errors.PhaseBuild, "namespace cannot be empty")
	}
	if name == "" {
		return errors.InvalidInput(errors.PhaseBuild, "function name cannot be empty")
	}
	if mh == nil {
		return errors.InvalidInput(errors.PhaseBuild, "nil handle")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.handles[namespace] == nil {
		r.handles[namespace] = make(map[string]*invoke.Handle)
	}
	r.handles[namespace][name] = mh
	return nil
}

// Lookup returns the handle registered under namespace and name.
func (r *HostRegistry) Lookup(namespace, name string) (*invoke.Handle, error) {
	r.mu.RLock()
	mh := r.handles[namespace][name]
	r.mu.RUnlock()
	if mh == nil {
		return nil, errors.NotFound(errors.PhaseLink, "handle", namespace+"#"+name)
	}
	return mh, nil
}

// Names lists registered handles as namespace#name, sorted.
func (r *HostRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for ns, funcs := range r.handles {
		for name := range funcs {
			out = append(out, ns+"#"+name)
		}
	}
	slices.Sort(out)
	return out
}

var errorType = reflect.TypeFor[error]()

// goTypes maps Go parameter and result types to field types.
var goTypes = map[reflect.Type]mtype.Type{
	reflect.TypeFor[bool]():              mtype.Boolean,
	reflect.TypeFor[int8]():              mtype.Byte,
	reflect.TypeFor[int16]():             mtype.Short,
	reflect.TypeFor[uint16]():            mtype.Char,
	reflect.TypeFor[int32]():             mtype.Int,
	reflect.TypeFor[int64]():             mtype.Long,
	reflect.TypeFor[float32]():           mtype.Float,
	reflect.TypeFor[float64]():           mtype.Double,
	reflect.TypeFor[string]():            mtype.String,
	reflect.TypeFor[any]():               mtype.Object,
	reflect.TypeFor[*invoke.Handle]():    mtype.HandleType,
	reflect.TypeFor[*invoke.VarHandle](): mtype.VarHandleType,
	reflect.TypeFor[[]bool]():            mtype.ArrayOf(mtype.Boolean),
	reflect.TypeFor[[]int8]():            mtype.ArrayOf(mtype.Byte),
	reflect.TypeFor[[]int16]():           mtype.ArrayOf(mtype.Short),
	reflect.TypeFor[[]uint16]():          mtype.ArrayOf(mtype.Char),
	reflect.TypeFor[[]int32]():           mtype.ArrayOf(mtype.Int),
	reflect.TypeFor[[]int64]():           mtype.ArrayOf(mtype.Long),
	reflect.TypeFor[[]float32]():         mtype.ArrayOf(mtype.Float),
	reflect.TypeFor[[]float64]():         mtype.ArrayOf(mtype.Double),
	reflect.TypeFor[[]string]():          mtype.ArrayOf(mtype.String),
	reflect.TypeFor[[]any]():             mtype.ObjectArray,
}

// funcHandle builds a direct handle calling fn. The handle's type follows
// fn's Go signature; a trailing error result becomes the call error.
func (r *HostRegistry) funcHandle(fn any) (*invoke.Handle, error) {
	rv := reflect.ValueOf(fn)
	if rv.Kind() != reflect.Func || rv.IsNil() {
		return nil, errors.New(errors.PhaseBuild, errors.KindInvalidInput).
			Actual(fmt.Sprintf("%T", fn)).
			Detail("handler must be a function").
			Build()
	}
	ft := rv.Type()
	if ft.IsVariadic() {
		return nil, errors.Unsupported(errors.PhaseBuild, "variadic function "+ft.String())
	}

	params := make([]mtype.Type, ft.NumIn())
	for i := range params {
		t, ok := goTypes[ft.In(i)]
		if !ok {
			return nil, unsupportedGoType(ft, ft.In(i))
		}
		params[i] = t
	}

	nout := ft.NumOut()
	hasErr := nout > 0 && ft.Out(nout-1) == errorType
	if hasErr {
		nout--
	}
	ret := mtype.Void
	switch nout {
	case 0:
	case 1:
		t, ok := goTypes[ft.Out(0)]
		if !ok {
			return nil, unsupportedGoType(ft, ft.Out(0))
		}
		ret = t
	default:
		return nil, errors.Unsupported(errors.PhaseBuild, "multiple results in "+ft.String())
	}

	mt, err := r.reg.Types().Make(ret, params...)
	if err != nil {
		return nil, err
	}

	target := func(args []any) (any, error) {
		in := make([]reflect.Value, len(args))
		for i, a := range args {
			pt := ft.In(i)
			if a == nil {
				in[i] = reflect.Zero(pt)
				continue
			}
			v := reflect.ValueOf(a)
			if !v.Type().AssignableTo(pt) {
				return nil, errors.ClassCast([]string{"arg", strconv.Itoa(i)}, a, pt.String())
			}
			in[i] = v
		}
		out := rv.Call(in)
		if hasErr {
			if e := out[len(out)-1]; !e.IsNil() {
				return nil, e.Interface().(error)
			}
		}
		if nout == 0 {
			return nil, nil
		}
		return out[0].Interface(), nil
	}
	return r.reg.FromFunc(mt, target)
}

func unsupportedGoType(ft, t reflect.Type) error {
	return errors.New(errors.PhaseBuild, errors.KindUnsupported).
		Actual(t.String()).
		Detail("no method type for Go type in %s", ft).
		Build()
}

func withPath(err error, namespace, name string) error {
	if e, ok := err.(*errors.Error); ok && len(e.Path) == 0 {
		e.Path = []string{namespace, name}
	}
	return err
}

// toKebabCase turns an exported method name into a handle name. A run of
// capitals stays one word; its last capital starts the next word when a
// lowercase letter follows: HTTPServer -> http-server, GetHTTPURL -> get-httpurl.
func toKebabCase(s string) string {
	runes := []rune(s)
	var b strings.Builder
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			afterUpper := unicode.IsUpper(runes[i-1])
			beforeLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if !afterUpper || beforeLower {
				b.WriteByte('-')
			}
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}
