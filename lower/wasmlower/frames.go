package wasmlower

import (
	"sync"

	"github.com/wippyai/mh-runtime/invoke"
)

// frameState is the Go side of one run call: the program being
// executed, its value frame, and the error of the failed operation.
type frameState struct {
	prog *invoke.Program
	err  error
	vals []any
}

// frameTable maps the i32 frame handles seen by modules to frames.
// Handles are 1-based; 0 is never valid. Released handles are reused.
type frameTable struct {
	entries  []*frameState
	freeList []uint32
	mu       sync.RWMutex
}

func newFrameTable() *frameTable {
	return &frameTable{
		entries:  make([]*frameState, 0, 64),
		freeList: make([]uint32, 0, 16),
	}
}

// acquire stores f and returns its handle.
func (t *frameTable) acquire(f *frameState) uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()

	if n := len(t.freeList); n > 0 {
		h := t.freeList[n-1]
		t.freeList = t.freeList[:n-1]
		t.entries[h-1] = f
		return h
	}
	t.entries = append(t.entries, f)
	return uint32(len(t.entries))
}

// get returns the frame of handle h, or nil.
func (t *frameTable) get(h uint32) *frameState {
	if h == 0 {
		return nil
	}
	t.mu.RLock()
	defer t.mu.RUnlock()

	if int(h) > len(t.entries) {
		return nil
	}
	return t.entries[h-1]
}

// release frees handle h. Releasing an unknown handle is a no-op.
func (t *frameTable) release(h uint32) {
	if h == 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if int(h) > len(t.entries) || t.entries[h-1] == nil {
		return
	}
	t.entries[h-1] = nil
	t.freeList = append(t.freeList, h)
}

// live returns the number of frames in use.
func (t *frameTable) live() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries) - len(t.freeList)
}
