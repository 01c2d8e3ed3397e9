package runtime

import (
	"context"
	stderrors "errors"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wippyai/mh-runtime/archive"
	"github.com/wippyai/mh-runtime/errors"
	"github.com/wippyai/mh-runtime/invoke"
)

// Snapshot returns an archive of every invoker the registry has built.
func (r *Runtime) Snapshot() *archive.Archive {
	cached := r.registry.Cached()
	entries := make([]archive.Entry, len(cached))
	for i, c := range cached {
		entries[i] = entryOf(c)
	}
	return archive.New(entries)
}

func entryOf(c invoke.CachedInvoker) archive.Entry {
	e := archive.Entry{
		Descriptor: c.Type.Descriptor(),
		Kind:       c.Kind.String(),
	}
	switch c.Kind {
	case invoke.InvokerVarHandle, invoke.InvokerVarHandleExact:
		e.Mode = c.Mode.String()
	case invoke.InvokerSpread:
		e.Leading = c.Leading
	}
	return e
}

// cachedOf resolves an archive entry against the runtime's type table.
func (r *Runtime) cachedOf(e archive.Entry) (invoke.CachedInvoker, error) {
	mt, err := r.MethodType(e.Descriptor)
	if err != nil {
		return invoke.CachedInvoker{}, err
	}
	kind, err := invoke.ParseInvokerKind(e.Kind)
	if err != nil {
		return invoke.CachedInvoker{}, err
	}
	c := invoke.CachedInvoker{Type: mt, Kind: kind, Leading: e.Leading}
	if kind == invoke.InvokerVarHandle || kind == invoke.InvokerVarHandleExact {
		if c.Mode, err = invoke.ParseAccessMode(e.Mode); err != nil {
			return invoke.CachedInvoker{}, err
		}
	}
	return c, nil
}

// Prewarm builds the invokers of a in parallel and returns how many were
// built. Entries that do not resolve against the type table, or whose
// invoker fails to build, are logged and skipped. An arity or internal
// error from the registry aborts prewarming.
func (r *Runtime) Prewarm(ctx context.Context, a *archive.Archive) (int, error) {
	if a == nil {
		return 0, errors.InvalidInput(errors.PhaseArchive, "nil archive")
	}

	var built atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.PrewarmParallelism())

	for _, entry := range a.Entries {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			c, err := r.cachedOf(entry)
			if err != nil {
				r.logger.Warn("skip unresolved archived invoker",
					zap.Stringer("entry", entry),
					zap.Error(err))
				return nil
			}
			if _, err := r.registry.Warm(c); err != nil {
				var e *errors.Error
				if stderrors.As(err, &e) && e.Fatal() {
					return err
				}
				r.logger.Warn("skip archived invoker",
					zap.Stringer("entry", entry),
					zap.Error(err))
				return nil
			}
			built.Add(1)
			return nil
		})
	}

	err := g.Wait()
	n := int(built.Load())
	r.logger.Debug("prewarmed invokers",
		zap.Int("built", n),
		zap.Int("entries", len(a.Entries)))
	return n, err
}

// LoadArchive prewarms from the archive file at path.
func (r *Runtime) LoadArchive(ctx context.Context, path string) (int, error) {
	a, err := archive.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return r.Prewarm(ctx, a)
}

// SaveArchive writes a snapshot of the registry to path.
func (r *Runtime) SaveArchive(path string) error {
	a := r.Snapshot()
	if err := archive.WriteFile(path, a); err != nil {
		return err
	}
	r.logger.Debug("saved invoker archive",
		zap.String("path", path),
		zap.Int("entries", len(a.Entries)))
	return nil
}
