package resource

import "sync"

// Table stores Go values behind handles and notifies observers of their
// lifecycle.
type Table struct {
	backend   *Backend
	observers map[int]Observer
	nextObs   int
	obsMu     sync.RWMutex
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{
		backend:   NewBackend(),
		observers: make(map[int]Observer),
	}
}

// Insert stores value and returns its handle.
func (t *Table) Insert(typeID TypeID, value any) (Handle, error) {
	h, err := t.backend.Create(typeID, value)
	if err != nil {
		return 0, err
	}
	t.notify(Event{Type: EventCreated, Handle: h, TypeID: typeID, Value: value})
	return h, nil
}

// GetTyped returns the value under h only when it was inserted as typeID.
func (t *Table) GetTyped(h Handle, typeID TypeID) (any, bool) {
	v, actual, ok := t.backend.Get(h)
	if !ok || actual != typeID {
		return nil, false
	}
	return v, true
}

// Remove stops h from resolving. The value is dropped now, or when its last
// borrow returns.
func (t *Table) Remove(h Handle) error {
	v, typeID, released, err := t.backend.Drop(h)
	if err != nil {
		return err
	}
	if released {
		t.dropped(h, typeID, v)
	}
	return nil
}

// Borrow pins the value under h and returns it. Every successful Borrow
// must be paired with ReturnBorrow.
func (t *Table) Borrow(h Handle, typeID TypeID) (any, bool) {
	v, actual, ok := t.backend.Get(h)
	if !ok || actual != typeID {
		return nil, false
	}
	if v, ok = t.backend.Borrow(h); !ok {
		return nil, false
	}
	t.notify(Event{Type: EventBorrowed, Handle: h, TypeID: typeID, Value: v})
	return v, true
}

// ReturnBorrow releases a pin taken by Borrow.
func (t *Table) ReturnBorrow(h Handle) error {
	v, typeID, released, err := t.backend.ReturnBorrow(h)
	if err != nil {
		return err
	}
	t.notify(Event{Type: EventBorrowReturned, Handle: h, TypeID: typeID, Value: v})
	if released {
		t.dropped(h, typeID, v)
	}
	return nil
}

// Subscribe registers o and returns a function that unregisters it.
func (t *Table) Subscribe(o Observer) (unsubscribe func()) {
	t.obsMu.Lock()
	id := t.nextObs
	t.nextObs++
	t.observers[id] = o
	t.obsMu.Unlock()

	return func() {
		t.obsMu.Lock()
		delete(t.observers, id)
		t.obsMu.Unlock()
	}
}

// Len returns the number of handles that resolve.
func (t *Table) Len() int {
	return t.backend.Len()
}

// Clear removes every handle.
func (t *Table) Clear() {
	var handles []Handle
	t.backend.Each(func(h Handle, _ TypeID, _ any) bool {
		handles = append(handles, h)
		return true
	})
	for _, h := range handles {
		_ = t.Remove(h)
	}
}

// Close drops every value and rejects further inserts.
func (t *Table) Close() error {
	return t.backend.Close()
}

func (t *Table) dropped(h Handle, typeID TypeID, v any) {
	if d, ok := v.(Dropper); ok {
		d.Drop()
	}
	t.notify(Event{Type: EventDropped, Handle: h, TypeID: typeID, Value: v})
}

func (t *Table) notify(e Event) {
	t.obsMu.RLock()
	defer t.obsMu.RUnlock()
	for _, o := range t.observers {
		o.OnResourceEvent(e)
	}
}
