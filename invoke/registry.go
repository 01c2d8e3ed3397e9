package invoke

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/wippyai/mh-runtime/errors"
	"github.com/wippyai/mh-runtime/mtype"
)

// formKey identifies a cached program of one basic type.
type formKey struct {
	kind ProgramKind
}

// formCache holds the shared programs of one basic type.
type formCache struct {
	mu    sync.Mutex
	forms map[formKey]*Program
}

// Registry owns the invocation caches. All methods are safe for
// concurrent use.
type Registry struct {
	types        *mtype.Table
	spreader     *Handle
	spreaderErr  error
	invokers     sync.Map // *mtype.MethodType -> *Invokers
	forms        sync.Map // basic *mtype.MethodType -> *formCache
	cfg          Config
	compiled     atomic.Uint64
	customized   atomic.Uint64
	spreaderOnce sync.Once
}

// NewRegistry creates a registry with its own method type table.
// A nil cfg uses DefaultConfig.
func NewRegistry(cfg *Config) *Registry {
	return NewRegistryWithTable(mtype.NewTable(), cfg)
}

// NewRegistryWithTable creates a registry over an existing type table.
func NewRegistryWithTable(tab *mtype.Table, cfg *Config) *Registry {
	c := DefaultConfig()
	if cfg != nil {
		c = *cfg
	}
	return &Registry{types: tab, cfg: c.normalized()}
}

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// Default returns the process-wide registry with the default configuration.
func Default() *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewRegistry(nil)
	})
	return defaultRegistry
}

// Types returns the registry's method type table.
func (r *Registry) Types() *mtype.Table { return r.types }

// Config returns the effective configuration.
func (r *Registry) Config() Config { return r.cfg }

func (r *Registry) owns(mt *mtype.MethodType) error {
	if mt == nil {
		return errors.InvalidInput(errors.PhaseLink, "nil method type")
	}
	if mt.Table() != r.types {
		return errors.InvalidInput(errors.PhaseLink, "method type "+mt.String()+" belongs to another table")
	}
	return nil
}

// Invokers returns the invoker cache of mt, which must come from the
// registry's table.
func (r *Registry) Invokers(mt *mtype.MethodType) *Invokers {
	if v, ok := r.invokers.Load(mt); ok {
		return v.(*Invokers)
	}
	v, _ := r.invokers.LoadOrStore(mt, newInvokers(r, mt))
	return v.(*Invokers)
}

// ExactInvoker returns the exact invoker of mt.
func (r *Registry) ExactInvoker(mt *mtype.MethodType) (*Handle, error) {
	if err := r.owns(mt); err != nil {
		return nil, err
	}
	return r.Invokers(mt).ExactInvoker()
}

// GenericInvoker returns the generic invoker of mt.
func (r *Registry) GenericInvoker(mt *mtype.MethodType) (*Handle, error) {
	if err := r.owns(mt); err != nil {
		return nil, err
	}
	return r.Invokers(mt).GenericInvoker()
}

// BasicInvoker returns the basic invoker of mt.
func (r *Registry) BasicInvoker(mt *mtype.MethodType) (*Handle, error) {
	if err := r.owns(mt); err != nil {
		return nil, err
	}
	return r.Invokers(mt).BasicInvoker()
}

// SpreadInvoker returns the spread invoker of mt after leading arguments.
func (r *Registry) SpreadInvoker(mt *mtype.MethodType, leading int) (*Handle, error) {
	if err := r.owns(mt); err != nil {
		return nil, err
	}
	return r.Invokers(mt).SpreadInvoker(leading)
}

// VarHandleInvoker returns the generic var handle invoker of mt for mode.
func (r *Registry) VarHandleInvoker(mt *mtype.MethodType, mode AccessMode) (*Handle, error) {
	if err := r.owns(mt); err != nil {
		return nil, err
	}
	return r.Invokers(mt).VarHandleInvoker(mode)
}

// VarHandleExactInvoker returns the exact var handle invoker of mt for mode.
func (r *Registry) VarHandleExactInvoker(mt *mtype.MethodType, mode AccessMode) (*Handle, error) {
	if err := r.owns(mt); err != nil {
		return nil, err
	}
	return r.Invokers(mt).VarHandleExactInvoker(mode)
}

func (r *Registry) formCacheOf(basic *mtype.MethodType) *formCache {
	if v, ok := r.forms.Load(basic); ok {
		return v.(*formCache)
	}
	v, _ := r.forms.LoadOrStore(basic, &formCache{forms: make(map[formKey]*Program, 4)})
	return v.(*formCache)
}

func (r *Registry) cachedForm(basic *mtype.MethodType, key formKey) *Program {
	fc := r.formCacheOf(basic)
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return fc.forms[key]
}

// setCachedForm publishes p unless another program already won the
// slot, in which case the winner is returned.
func (r *Registry) setCachedForm(basic *mtype.MethodType, key formKey, p *Program) (*Program, error) {
	if r.cfg.DebugChecks && !basic.IsBasic() {
		return nil, errors.Internal(errors.PhaseBuild, "program %s cached under non-basic type %s", p.debugName, basic)
	}
	fc := r.formCacheOf(basic)
	fc.mu.Lock()
	defer fc.mu.Unlock()
	if prev := fc.forms[key]; prev != nil {
		return prev, nil
	}
	fc.forms[key] = p
	return p, nil
}

// compile lowers p, falling back to interpretation on failure.
func (r *Registry) compile(p *Program) {
	if err := p.CompileToBytecode(); err != nil {
		Logger().Warn("program lowering failed, interpreting",
			zap.String("program", p.debugName),
			zap.Error(err))
	}
}

// CachedInvoker identifies one published invoker.
type CachedInvoker struct {
	Type    *mtype.MethodType
	Leading int
	Kind    InvokerKind
	Mode    AccessMode
}

// Cached lists every published invoker.
func (r *Registry) Cached() []CachedInvoker {
	var out []CachedInvoker
	r.invokers.Range(func(_, v any) bool {
		out = append(out, v.(*Invokers).cached()...)
		return true
	})
	return out
}

// Warm builds the invoker identified by c.
func (r *Registry) Warm(c CachedInvoker) (*Handle, error) {
	if err := r.owns(c.Type); err != nil {
		return nil, err
	}
	inv := r.Invokers(c.Type)
	switch c.Kind {
	case InvokerExact:
		return inv.ExactInvoker()
	case InvokerGeneric:
		return inv.GenericInvoker()
	case InvokerBasic:
		return inv.BasicInvoker()
	case InvokerVarHandle:
		return inv.VarHandleInvoker(c.Mode)
	case InvokerVarHandleExact:
		return inv.VarHandleExactInvoker(c.Mode)
	case InvokerSpread:
		return inv.SpreadInvoker(c.Leading)
	default:
		return nil, errors.InvalidInput(errors.PhaseLink, "unknown invoker kind "+c.Kind.String())
	}
}

// Stats summarizes registry contents.
type Stats struct {
	Types      int
	Invokers   int
	Forms      int
	Compiled   uint64
	Customized uint64
}

// Stats returns a snapshot of registry counters.
func (r *Registry) Stats() Stats {
	s := Stats{
		Types:      r.types.Len(),
		Compiled:   r.compiled.Load(),
		Customized: r.customized.Load(),
	}
	r.invokers.Range(func(_, _ any) bool {
		s.Invokers++
		return true
	})
	r.forms.Range(func(_, v any) bool {
		fc := v.(*formCache)
		fc.mu.Lock()
		s.Forms += len(fc.forms)
		fc.mu.Unlock()
		return true
	})
	return s
}
