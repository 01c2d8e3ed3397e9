package runtime

import (
	"context"
	stderrors "errors"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/wippyai/mh-runtime/archive"
	"github.com/wippyai/mh-runtime/config"
	"github.com/wippyai/mh-runtime/errors"
	"github.com/wippyai/mh-runtime/invoke"
	"github.com/wippyai/mh-runtime/lower/wasmlower"
	"github.com/wippyai/mh-runtime/mtype"
	"github.com/wippyai/mh-runtime/mtype/witsig"
)

// Options configures a Runtime. The zero value uses the defaults.
type Options struct {
	// Config is the loaded configuration. Nil means config.Default().
	Config *config.File

	// Logger receives runtime, registry and lowering logs. Nil disables
	// logging.
	Logger *zap.Logger

	// Types is the method type table. Nil creates a new table.
	Types *mtype.Table

	// OnCustomize is called once for every customized handle.
	OnCustomize func(h *invoke.Handle)
}

type Runtime struct {
	registry *invoke.Registry
	hosts    *HostRegistry
	lowerer  *wasmlower.Lowerer
	cfg      *config.File
	logger   *zap.Logger
	closed   atomic.Bool
}

// Stats combines registry and lowering counters.
type Stats struct {
	invoke.Stats
	Backend      string
	WasmModules  int
	LoweredCalls uint64
}

// New creates a runtime. A nil opts uses the defaults.
func New(ctx context.Context, opts *Options) (*Runtime, error) {
	if opts == nil {
		opts = &Options{}
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	invoke.SetLogger(logger.Named("invoke"))
	wasmlower.SetLogger(logger.Named("wasmlower"))

	icfg := cfg.InvokeConfig()
	icfg.OnCustomize = opts.OnCustomize

	r := &Runtime{cfg: cfg, logger: logger.Named("runtime")}
	if cfg.Lowering.Backend == config.BackendWasm {
		l, err := wasmlower.NewWithConfig(ctx, &wasmlower.Config{
			MaxIdleInstances: cfg.Lowering.MaxIdleInstances,
			Interpreter:      cfg.Lowering.Interpreter,
		})
		if err != nil {
			return nil, err
		}
		r.lowerer = l
		icfg.Lowerer = l
	}

	types := opts.Types
	if types == nil {
		types = mtype.NewTable()
	}
	r.registry = invoke.NewRegistryWithTable(types, &icfg)
	r.hosts = NewHostRegistry(r.registry)

	if err := r.warmStart(ctx); err != nil {
		_ = r.closeLowerer(ctx)
		return nil, err
	}

	r.logger.Debug("runtime created",
		zap.String("backend", cfg.Lowering.Backend),
		zap.Int("customize_threshold", icfg.CustomizeThreshold))
	return r, nil
}

// warmStart builds the configured invokers and loads the archive.
func (r *Runtime) warmStart(ctx context.Context) error {
	if len(r.cfg.Prewarm) > 0 {
		entries := make([]archive.Entry, len(r.cfg.Prewarm))
		for i, inv := range r.cfg.Prewarm {
			entries[i] = archive.Entry{
				Descriptor: inv.Descriptor,
				Kind:       inv.Kind,
				Mode:       inv.Mode,
				Leading:    inv.Leading,
			}
		}
		if _, err := r.Prewarm(ctx, archive.New(entries)); err != nil {
			return err
		}
	}
	if r.cfg.Archive.Load {
		if _, err := r.LoadArchive(ctx, r.cfg.Archive.Path); err != nil {
			if stderrors.Is(err, &errors.Error{Kind: errors.KindNotFound}) {
				r.logger.Debug("no invoker archive", zap.String("path", r.cfg.Archive.Path))
				return nil
			}
			return err
		}
	}
	return nil
}

// Close saves the invoker archive when configured and releases the
// lowering backend. Handles must not be invoked after Close.
func (r *Runtime) Close(ctx context.Context) error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	var errs []error
	if r.cfg.Archive.Save {
		if err := r.SaveArchive(r.cfg.Archive.Path); err != nil {
			errs = append(errs, err)
		}
	}
	if err := r.closeLowerer(ctx); err != nil {
		errs = append(errs, err)
	}
	return stderrors.Join(errs...)
}

func (r *Runtime) closeLowerer(ctx context.Context) error {
	if r.lowerer == nil {
		return nil
	}
	return r.lowerer.Close(ctx)
}

// Registry returns the invoker registry.
func (r *Runtime) Registry() *invoke.Registry {
	return r.registry
}

// Types returns the method type table.
func (r *Runtime) Types() *mtype.Table {
	return r.registry.Types()
}

// Config returns the configuration the runtime was created with.
func (r *Runtime) Config() *config.File {
	return r.cfg
}

func (r *Runtime) Hosts() *HostRegistry {
	return r.hosts
}

// MethodType parses a descriptor such as (ILString;)J.
func (r *Runtime) MethodType(desc string) (*mtype.MethodType, error) {
	return r.registry.Types().Parse(desc)
}

// BindWIT returns a direct handle calling fn, typed by WIT parameter and
// result types.
func (r *Runtime) BindWIT(params, results []string, fn invoke.Target) (*invoke.Handle, error) {
	mt, err := witsig.Parse(r.registry.Types(), params, results)
	if err != nil {
		return nil, err
	}
	return r.registry.FromFunc(mt, fn)
}

// RegisterHost registers all exported methods of h as handles.
// Method names are converted from PascalCase to kebab-case (GetValue -> get-value).
func (r *Runtime) RegisterHost(h Host) error {
	return r.hosts.RegisterHost(h)
}

func (r *Runtime) RegisterFunc(namespace, name string, fn any) error {
	return r.hosts.RegisterFunc(namespace, name, fn)
}

// Call invokes a registered handle with Object-typed arguments.
func (r *Runtime) Call(namespace, name string, args ...any) (any, error) {
	h, err := r.hosts.Lookup(namespace, name)
	if err != nil {
		return nil, err
	}
	return h.InvokeWithArguments(args...)
}

// Stats returns a snapshot of runtime counters.
func (r *Runtime) Stats() Stats {
	s := Stats{
		Stats:   r.registry.Stats(),
		Backend: r.cfg.Lowering.Backend,
	}
	if r.lowerer != nil {
		s.WasmModules = r.lowerer.Modules()
		s.LoweredCalls = r.lowerer.Calls()
	}
	return s
}
