package native

import (
	"sync"

	"github.com/wippyai/nativecoll"
	"github.com/wippyai/nativecoll/resource"
)

// FuncRef names a registered callback. 0 means no callback.
type FuncRef uint32

// ReadFunc fills up to n bytes at buf and returns how many it wrote. It may
// return fewer than n with more to come; 0 is end of stream.
type ReadFunc func(baton resource.Handle, buf nativecoll.Ptr, n uint32) (uint32, Status)

// WriteFunc consumes n bytes at data and returns how many it took.
type WriteFunc func(baton resource.Handle, data nativecoll.Ptr, n uint32) (uint32, Status)

// CloseFunc releases whatever the baton refers to.
type CloseFunc func(baton resource.Handle) Status

type funcTable struct {
	mu     sync.RWMutex
	funcs  []any // index is FuncRef, slot 0 unused
	byName map[string]FuncRef
}

func (t *funcTable) init() {
	t.funcs = make([]any, 1, 16)
	t.byName = make(map[string]FuncRef)
}

func (t *funcTable) register(name string, fn any) FuncRef {
	t.mu.Lock()
	defer t.mu.Unlock()

	if ref, ok := t.byName[name]; ok {
		return ref
	}
	ref := FuncRef(len(t.funcs))
	t.funcs = append(t.funcs, fn)
	t.byName[name] = ref
	return ref
}

func (t *funcTable) get(ref FuncRef) any {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if ref == 0 || int(ref) >= len(t.funcs) {
		return nil
	}
	return t.funcs[ref]
}

// RegisterRead registers fn under name. Registering a name again returns the
// existing ref and ignores fn.
func (r *Runtime) RegisterRead(name string, fn ReadFunc) FuncRef {
	return r.funcs.register("read:"+name, fn)
}

// RegisterWrite registers a write callback; see RegisterRead.
func (r *Runtime) RegisterWrite(name string, fn WriteFunc) FuncRef {
	return r.funcs.register("write:"+name, fn)
}

// RegisterClose registers a close callback; see RegisterRead.
func (r *Runtime) RegisterClose(name string, fn CloseFunc) FuncRef {
	return r.funcs.register("close:"+name, fn)
}
