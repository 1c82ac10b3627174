package adapter

import (
	"github.com/wippyai/nativecoll/errors"
	"github.com/wippyai/nativecoll/native"
	"github.com/wippyai/nativecoll/pool"
)

// Ownership records whether an adapter created its pool.
type Ownership uint8

const (
	// Owned adapters destroy their pool on Close.
	Owned Ownership = iota
	// Borrowed adapters never destroy the pool they are attached to.
	Borrowed
)

func (o Ownership) String() string {
	if o == Owned {
		return "owned"
	}
	return "borrowed"
}

// Sequence is an indexable, resizable collection.
type Sequence[T any] interface {
	Len() int
	Get(i int) (T, error)
	Set(i int, v T) error
	AssignSlice(start, end int, items []T) error
}

// Mapping is a collection keyed by byte strings.
type Mapping[V any] interface {
	Len() int
	Get(key []byte) (V, error)
	Set(key []byte, v V) error
	Delete(key []byte) error
	Iterate() *Iterator[V]
}

var (
	_ Sequence[int32] = (*Array[int32])(nil)
	_ Mapping[int32]  = (*Hash[int32])(nil)
)

// region ties an adapter to the pool its native structure lives in.
type region struct {
	rt     *native.Runtime
	pool   *pool.Pool
	ref    pool.Ref
	own    Ownership
	closed bool
}

func newRegion(rt *native.Runtime, p *pool.Pool, own Ownership) region {
	return region{rt: rt, pool: p, ref: p.Ref(), own: own}
}

// ownedRegion creates a fresh top-level pool for an adapter.
func ownedRegion(rt *native.Runtime, phase errors.Phase, tag string) (region, error) {
	p, err := rt.Allocator().Create(nil, tag)
	if err != nil {
		return region{}, poolErr(phase, "create pool", err)
	}
	return newRegion(rt, p, Owned), nil
}

// check fails once the pool is gone or the adapter closed.
func (r *region) check(phase errors.Phase, op string) error {
	if r.closed {
		return errors.PoolDestroyed(phase, op, nil)
	}
	if err := r.rt.Allocator().Check(r.ref); err != nil {
		return errors.PoolDestroyed(phase, op, err)
	}
	return nil
}

// Alive reports whether the adapter can still reach its structure: it is
// not closed and its pool was neither destroyed nor cleared since.
func (r *region) Alive() bool {
	return !r.closed && r.rt.Allocator().Check(r.ref) == nil
}

// Pool returns the pool the adapter's structure lives in.
func (r *region) Pool() *pool.Pool { return r.pool }

// Ownership reports whether the adapter owns its pool.
func (r *region) Ownership() Ownership { return r.own }

// Runtime returns the native runtime the adapter calls into.
func (r *region) Runtime() *native.Runtime { return r.rt }

func (r *region) release() {
	if r.closed {
		return
	}
	r.closed = true
	if r.own == Owned {
		r.pool.Destroy()
	}
}

// statusErr converts a failed native status.
func statusErr(phase errors.Phase, op string, st native.Status) error {
	if st == native.StatusPoolDestroyed {
		return errors.PoolDestroyed(phase, op, nil)
	}
	return errors.NativeCall(phase, op, int(st), st.String())
}

// poolErr converts an allocator error.
func poolErr(phase errors.Phase, op string, err error) error {
	if errors.Is(err, pool.ErrDestroyed) {
		return errors.PoolDestroyed(phase, op, err)
	}
	st := native.StatusOf(err)
	return errors.New(phase, errors.KindNativeCall).
		Op(op).
		Status(int(st)).
		Detail("%s", st).
		Cause(err).
		Build()
}
