package wasmlower

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/mh-runtime/errors"
	"github.com/wippyai/mh-runtime/invoke"
)

// DefaultMaxIdleInstances is the number of idle instances kept per module.
const DefaultMaxIdleInstances = 8

// Config holds configuration for Lowerer creation.
type Config struct {
	// MaxIdleInstances bounds the idle instances pooled per module.
	// 0 means DefaultMaxIdleInstances.
	MaxIdleInstances int

	// Interpreter runs modules in wazero's interpreter instead of
	// compiling them to machine code.
	Interpreter bool
}

// Lowerer implements invoke.Lowerer on wazero. It is safe for
// concurrent use and may be shared by several registries.
type Lowerer struct {
	runtime wazero.Runtime
	frames  *frameTable
	modules map[moduleKey]*modulePool
	mu      sync.Mutex
	maxIdle int
	calls   atomic.Uint64
	closed  atomic.Bool
}

// modulePool holds a compiled run module and its idle instances.
type modulePool struct {
	compiled wazero.CompiledModule
	idle     []api.Module
	mu       sync.Mutex
}

var _ invoke.Lowerer = (*Lowerer)(nil)

// New creates a Lowerer with the default configuration.
func New(ctx context.Context) (*Lowerer, error) {
	return NewWithConfig(ctx, nil)
}

// NewWithConfig creates a Lowerer. A nil cfg uses the defaults.
func NewWithConfig(ctx context.Context, cfg *Config) (*Lowerer, error) {
	runtimeCfg := wazero.NewRuntimeConfig()
	maxIdle := DefaultMaxIdleInstances
	if cfg != nil {
		if cfg.Interpreter {
			runtimeCfg = wazero.NewRuntimeConfigInterpreter()
		}
		if cfg.MaxIdleInstances > 0 {
			maxIdle = cfg.MaxIdleInstances
		}
	}

	rt := wazero.NewRuntimeWithConfig(ctx, runtimeCfg)
	l := &Lowerer{
		runtime: rt,
		frames:  newFrameTable(),
		modules: make(map[moduleKey]*modulePool),
		maxIdle: maxIdle,
	}

	_, err := rt.NewHostModuleBuilder(hostModuleName).
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(l.exec), execParams, i32).
		Export(execName).
		Instantiate(ctx)
	if err != nil {
		_ = rt.Close(ctx)
		return nil, errors.Wrap(errors.PhaseLower, errors.KindInternal, err, "instantiate host module")
	}
	return l, nil
}

// Lower returns an entry that runs p through a run module. The module
// is compiled here, so a program that cannot be lowered fails now
// rather than at call time.
func (l *Lowerer) Lower(p *invoke.Program) (invoke.Entry, error) {
	if l.closed.Load() {
		return nil, errors.Unsupported(errors.PhaseLower, "lowerer is closed")
	}
	k := moduleKey{first: uint32(p.Arity()), last: uint32(p.Len())}
	pool, err := l.pool(context.Background(), k)
	if err != nil {
		return nil, err
	}

	n := p.Len()
	return func(args []any) (any, error) {
		vals := make([]any, n)
		copy(vals, args)
		f := &frameState{prog: p, vals: vals}
		h := l.frames.acquire(f)
		defer l.frames.release(h)

		status, err := l.run(pool, h)
		if err != nil {
			return nil, err
		}
		switch status {
		case statusOK:
			return vals[n-1], nil
		case statusFailed:
			return nil, f.err
		default:
			return nil, errors.Internal(errors.PhaseLower, "%s: frame %d not found", p.DebugName(), h)
		}
	}, nil
}

// exec is the host function mh.exec(frame, op) -> status.
func (l *Lowerer) exec(_ context.Context, _ api.Module, stack []uint64) {
	f := l.frames.get(api.DecodeU32(stack[0]))
	op := int(api.DecodeU32(stack[1]))
	if f == nil || op < f.prog.Arity() || op >= f.prog.Len() {
		stack[0] = statusBadFrame
		return
	}
	if err := f.prog.ExecOp(f.vals, op); err != nil {
		f.err = err
		stack[0] = statusFailed
		return
	}
	stack[0] = statusOK
}

func (l *Lowerer) run(pool *modulePool, frame uint32) (uint32, error) {
	ctx := context.Background()
	mod, err := l.checkout(ctx, pool)
	if err != nil {
		return 0, err
	}
	res, err := mod.ExportedFunction(runName).Call(ctx, api.EncodeU32(frame))
	if err != nil {
		// A trapped instance is not reused.
		_ = mod.Close(ctx)
		return 0, errors.Wrap(errors.PhaseLower, errors.KindInternal, err, "run")
	}
	l.checkin(ctx, pool, mod)
	l.calls.Add(1)
	return api.DecodeU32(res[0]), nil
}

// pool returns the module pool of k, compiling the module on first use.
func (l *Lowerer) pool(ctx context.Context, k moduleKey) (*modulePool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if p := l.modules[k]; p != nil {
		return p, nil
	}
	compiled, err := l.runtime.CompileModule(ctx, buildRunModule(k))
	if err != nil {
		return nil, errors.Wrap(errors.PhaseLower, errors.KindInternal, err, "compile run module")
	}
	p := &modulePool{compiled: compiled}
	l.modules[k] = p
	Logger().Debug("compiled run module",
		zap.Uint32("first", k.first),
		zap.Uint32("last", k.last))
	return p, nil
}

// checkout takes an idle instance or instantiates a new one. Nested runs
// started from exec always get an instance of their own.
func (l *Lowerer) checkout(ctx context.Context, p *modulePool) (api.Module, error) {
	p.mu.Lock()
	if n := len(p.idle); n > 0 {
		mod := p.idle[n-1]
		p.idle = p.idle[:n-1]
		p.mu.Unlock()
		return mod, nil
	}
	p.mu.Unlock()

	cfg := wazero.NewModuleConfig().WithName("run-" + uuid.NewString())
	mod, err := l.runtime.InstantiateModule(ctx, p.compiled, cfg)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseLower, errors.KindInternal, err, "instantiate run module")
	}
	return mod, nil
}

func (l *Lowerer) checkin(ctx context.Context, p *modulePool, mod api.Module) {
	p.mu.Lock()
	if len(p.idle) < l.maxIdle {
		p.idle = append(p.idle, mod)
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()
	_ = mod.Close(ctx)
}

// Modules returns the number of compiled run modules.
func (l *Lowerer) Modules() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.modules)
}

// Calls returns the number of completed run calls.
func (l *Lowerer) Calls() uint64 { return l.calls.Load() }

// Close releases the wazero runtime. Entries returned earlier fail
// afterwards.
func (l *Lowerer) Close(ctx context.Context) error {
	if !l.closed.CompareAndSwap(false, true) {
		return nil
	}
	l.mu.Lock()
	l.modules = make(map[moduleKey]*modulePool)
	l.mu.Unlock()
	if err := l.runtime.Close(ctx); err != nil {
		return errors.Wrap(errors.PhaseLower, errors.KindInternal, err, "close runtime")
	}
	return nil
}
