package invoke

import (
	"sync/atomic"
	"testing"

	"github.com/wippyai/mh-runtime/mtype"
)

func newTestRegistry(t *testing.T, mutate ...func(*Config)) *Registry {
	t.Helper()
	cfg := DefaultConfig()
	cfg.DebugChecks = true
	for _, m := range mutate {
		m(&cfg)
	}
	return NewRegistry(&cfg)
}

// countingAdd returns a handle (int,int)int adding its arguments and a
// counter of its calls.
func countingAdd(t *testing.T, r *Registry) (*Handle, *atomic.Int64) {
	t.Helper()
	var calls atomic.Int64
	mt := r.Types().MustMake(mtype.Int, mtype.Int, mtype.Int)
	h, err := r.FromFunc(mt, func(args []any) (any, error) {
		calls.Add(1)
		return args[0].(int32) + args[1].(int32), nil
	})
	if err != nil {
		t.Fatalf("FromFunc: %v", err)
	}
	return h, &calls
}

func mustHandle(t *testing.T, r *Registry, mt *mtype.MethodType, fn Target) *Handle {
	t.Helper()
	h, err := r.FromFunc(mt, fn)
	if err != nil {
		t.Fatalf("FromFunc(%s): %v", mt, err)
	}
	return h
}

func repeatType(t mtype.Type, n int) []mtype.Type {
	out := make([]mtype.Type, n)
	for i := range out {
		out[i] = t
	}
	return out
}
