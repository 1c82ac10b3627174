package resource

import (
	"errors"
	"sync"
)

var (
	ErrClosed        = errors.New("resource table closed")
	ErrInvalidHandle = errors.New("invalid resource handle")
)

// Backend is slot storage with borrow tracking. Handles are reused once
// their value has been released.
type Backend struct {
	entries  []entry
	freeList []Handle
	mu       sync.RWMutex
	closed   bool
}

type entry struct {
	value   any
	typeID  TypeID
	borrows uint32
	valid   bool
	// doomed entries no longer resolve and are released on the last
	// returned borrow
	doomed bool
}

// NewBackend creates an empty backend.
func NewBackend() *Backend {
	return &Backend{
		entries:  make([]entry, 0, 16),
		freeList: make([]Handle, 0, 8),
	}
}

// Create stores value and returns its handle.
func (b *Backend) Create(typeID TypeID, value any) (Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0, ErrClosed
	}

	e := entry{typeID: typeID, value: value, valid: true}
	if n := len(b.freeList); n > 0 {
		h := b.freeList[n-1]
		b.freeList = b.freeList[:n-1]
		b.entries[h-1] = e
		return h, nil
	}

	b.entries = append(b.entries, e)
	return Handle(len(b.entries)), nil
}

// lookup returns the live, non-doomed entry for h. Callers hold mu.
func (b *Backend) lookup(h Handle) *entry {
	if h == 0 || int(h) > len(b.entries) {
		return nil
	}
	e := &b.entries[h-1]
	if !e.valid || e.doomed {
		return nil
	}
	return e
}

// Get returns the value and type stored under h.
func (b *Backend) Get(h Handle) (any, TypeID, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	e := b.lookup(h)
	if e == nil {
		return nil, TypeInvalid, false
	}
	return e.value, e.typeID, true
}

// Drop removes h. When h is borrowed the handle stops resolving but the
// value is kept until the last borrow returns, and released is false.
func (b *Backend) Drop(h Handle) (value any, typeID TypeID, released bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := b.lookup(h)
	if e == nil {
		return nil, TypeInvalid, false, ErrInvalidHandle
	}
	if e.borrows > 0 {
		e.doomed = true
		return e.value, e.typeID, false, nil
	}
	value, typeID = e.value, e.typeID
	b.release(h)
	return value, typeID, true, nil
}

// Borrow pins h until ReturnBorrow.
func (b *Backend) Borrow(h Handle) (any, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := b.lookup(h)
	if e == nil {
		return nil, false
	}
	e.borrows++
	return e.value, true
}

// ReturnBorrow unpins h. released reports that a deferred Drop completed
// and value must now be dropped by the caller.
func (b *Backend) ReturnBorrow(h Handle) (value any, typeID TypeID, released bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if h == 0 || int(h) > len(b.entries) {
		return nil, TypeInvalid, false, ErrInvalidHandle
	}
	e := &b.entries[h-1]
	if !e.valid || e.borrows == 0 {
		return nil, TypeInvalid, false, ErrInvalidHandle
	}
	e.borrows--
	value, typeID = e.value, e.typeID
	if e.borrows == 0 && e.doomed {
		b.release(h)
		return value, typeID, true, nil
	}
	return value, typeID, false, nil
}

func (b *Backend) release(h Handle) {
	b.entries[h-1] = entry{}
	b.freeList = append(b.freeList, h)
}

// Len returns the number of handles that still resolve.
func (b *Backend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n := 0
	for _, e := range b.entries {
		if e.valid && !e.doomed {
			n++
		}
	}
	return n
}

// Each calls fn for every resolvable handle until fn returns false.
func (b *Backend) Each(fn func(Handle, TypeID, any) bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for i, e := range b.entries {
		if e.valid && !e.doomed {
			if !fn(Handle(i+1), e.typeID, e.value) {
				return
			}
		}
	}
}

// Close drops every value still stored, borrowed or not.
func (b *Backend) Close() error {
	b.mu.Lock()
	entries := b.entries
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.entries = nil
	b.freeList = nil
	b.mu.Unlock()

	for _, e := range entries {
		if e.valid {
			if d, ok := e.value.(Dropper); ok {
				d.Drop()
			}
		}
	}
	return nil
}
