package adapter

import (
	"github.com/wippyai/nativecoll"
	"github.com/wippyai/nativecoll/errors"
	"github.com/wippyai/nativecoll/native"
	"github.com/wippyai/nativecoll/pool"
	"github.com/wippyai/nativecoll/transcoder"
)

// Hash is a mapping from byte-string keys to codec-encoded values over a
// native hash table.
type Hash[V any] struct {
	region
	codec transcoder.Codec[V]
	ht    nativecoll.Ptr
}

// Pair is one key and value for HashOfPairs.
type Pair[V any] struct {
	Key   []byte
	Value V
}

// NewHash creates an empty hash in a new pool.
func NewHash[V any](rt *native.Runtime, codec transcoder.Codec[V]) (*Hash[V], error) {
	reg, err := ownedRegion(rt, errors.PhaseHash, "hash")
	if err != nil {
		return nil, err
	}
	ht, st := rt.HashMake(reg.pool)
	if st != native.StatusOK {
		reg.release()
		return nil, statusErr(errors.PhaseHash, "hash_make", st)
	}
	return &Hash[V]{region: reg, codec: codec, ht: ht}, nil
}

// AttachHash wraps the native table at ht. Without duplicate the table is
// borrowed; with it, the table and every value are copied into a new pool.
func AttachHash[V any](rt *native.Runtime, codec transcoder.Codec[V], ht nativecoll.Ptr, duplicate bool) (*Hash[V], error) {
	id, st := rt.HashPool(ht)
	if st != native.StatusOK {
		return nil, statusErr(errors.PhaseHash, "attach", st)
	}
	p, ok := rt.Allocator().Lookup(id)
	if !ok {
		return nil, errors.PoolDestroyed(errors.PhaseHash, "attach", nil)
	}
	if duplicate {
		return duplicateHash(rt, codec, ht)
	}
	return &Hash[V]{region: newRegion(rt, p, Borrowed), codec: codec, ht: ht}, nil
}

// NewHashFrom wraps the same table as src. Without duplicate the result
// borrows src's table, so changes through either are visible in both; with
// it, the result is an independent copy.
func NewHashFrom[V any](src *Hash[V], duplicate bool) (*Hash[V], error) {
	if err := src.check(errors.PhaseHash, "attach"); err != nil {
		return nil, err
	}
	if duplicate {
		return duplicateHash(src.rt, src.codec, src.ht)
	}
	return &Hash[V]{region: newRegion(src.rt, src.pool, Borrowed), codec: src.codec, ht: src.ht}, nil
}

func duplicateHash[V any](rt *native.Runtime, codec transcoder.Codec[V], ht nativecoll.Ptr) (*Hash[V], error) {
	reg, err := ownedRegion(rt, errors.PhaseHash, "hash")
	if err != nil {
		return nil, err
	}
	h := &Hash[V]{region: reg, codec: codec}
	if err := h.copyFrom(ht); err != nil {
		reg.release()
		return nil, err
	}
	return h, nil
}

// copyFrom fills h with a deep copy of ht: the native copy duplicates the
// keys, then each value is re-allocated into h's pool.
func (h *Hash[V]) copyFrom(ht nativecoll.Ptr) error {
	dup, st := h.rt.HashCopy(h.pool, ht)
	if st != native.StatusOK {
		return statusErr(errors.PhaseHash, "hash_copy", st)
	}
	h.ht = dup

	type entry struct {
		key []byte
		val nativecoll.Ptr
	}
	var entries []entry
	err := pool.With(h.rt.Allocator(), h.pool, "hash-copy", func(p *pool.Pool) error {
		hi, st := h.rt.HashFirst(p, dup)
		for ; st == native.StatusOK && hi != nativecoll.Null; hi, st = h.rt.HashNext(hi) {
			key, val, st := h.rt.HashThis(hi)
			if st != native.StatusOK {
				return statusErr(errors.PhaseHash, "hash_this", st)
			}
			entries = append(entries, entry{key, val})
		}
		if st != native.StatusOK {
			return statusErr(errors.PhaseHash, "hash_next", st)
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, e := range entries {
		val, err := transcoder.Duplicate(h.codec, h.pool, h.rt.Memory(), e.val)
		if err != nil {
			return err
		}
		if st := h.rt.HashSet(dup, e.key, val); st != native.StatusOK {
			return statusErr(errors.PhaseHash, "hash_set", st)
		}
	}
	return nil
}

// HashOf creates a hash holding items.
func HashOf[V any](rt *native.Runtime, codec transcoder.Codec[V], items map[string]V) (*Hash[V], error) {
	pairs := make([]Pair[V], 0, len(items))
	for k, v := range items {
		pairs = append(pairs, Pair[V]{Key: []byte(k), Value: v})
	}
	return HashOfPairs(rt, codec, pairs)
}

// HashOfPairs creates a hash holding pairs. Later pairs win on duplicate
// keys.
func HashOfPairs[V any](rt *native.Runtime, codec transcoder.Codec[V], pairs []Pair[V]) (*Hash[V], error) {
	h, err := NewHash(rt, codec)
	if err != nil {
		return nil, err
	}
	for _, kv := range pairs {
		if err := h.Set(kv.Key, kv.Value); err != nil {
			h.Close()
			return nil, err
		}
	}
	return h, nil
}

// Get returns the value stored under key.
func (h *Hash[V]) Get(key []byte) (V, error) {
	var zero V
	if err := h.check(errors.PhaseHash, "get"); err != nil {
		return zero, err
	}
	val, st := h.rt.HashGet(h.ht, key)
	if st != native.StatusOK {
		return zero, statusErr(errors.PhaseHash, "hash_get", st)
	}
	if val == nativecoll.Null {
		return zero, errors.KeyNotFound(errors.PhaseHash, key)
	}
	return h.codec.Decode(h.rt.Memory(), val)
}

// Has reports whether key is present.
func (h *Hash[V]) Has(key []byte) bool {
	if h.check(errors.PhaseHash, "has") != nil {
		return false
	}
	val, st := h.rt.HashGet(h.ht, key)
	return st == native.StatusOK && val != nativecoll.Null
}

// Set stores v under key, encoding it into the table's pool. The key is
// stored byte for byte.
func (h *Hash[V]) Set(key []byte, v V) error {
	if err := h.check(errors.PhaseHash, "set"); err != nil {
		return err
	}
	val, err := h.codec.Encode(h.pool, v)
	if err != nil {
		return err
	}
	if val == nativecoll.Null {
		return errors.InvalidInput(errors.PhaseHash, "codec encoded a value as the null pointer")
	}
	if st := h.rt.HashSet(h.ht, key, val); st != native.StatusOK {
		return statusErr(errors.PhaseHash, "hash_set", st)
	}
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (h *Hash[V]) Delete(key []byte) error {
	if err := h.check(errors.PhaseHash, "delete"); err != nil {
		return err
	}
	if st := h.rt.HashSet(h.ht, key, nativecoll.Null); st != native.StatusOK {
		return statusErr(errors.PhaseHash, "hash_set", st)
	}
	return nil
}

// Len returns the entry count, or 0 once the pool is gone; see
// Alive.
func (h *Hash[V]) Len() int {
	if h.check(errors.PhaseHash, "len") != nil {
		return 0
	}
	n, st := h.rt.HashCount(h.ht)
	if st != native.StatusOK {
		return 0
	}
	return int(n)
}

// Clear removes every entry.
func (h *Hash[V]) Clear() error {
	if err := h.check(errors.PhaseHash, "clear"); err != nil {
		return err
	}
	if st := h.rt.HashClear(h.ht); st != native.StatusOK {
		return statusErr(errors.PhaseHash, "hash_clear", st)
	}
	return nil
}

// Keys returns every key in iteration order.
func (h *Hash[V]) Keys() ([][]byte, error) {
	var keys [][]byte
	it := h.Iterate()
	defer it.Close()
	for it.Next() {
		keys = append(keys, it.Key())
	}
	return keys, it.Err()
}

// Map decodes every entry into a Go map.
func (h *Hash[V]) Map() (map[string]V, error) {
	out := make(map[string]V, h.Len())
	it := h.Iterate()
	defer it.Close()
	for it.Next() {
		out[string(it.Key())] = it.Value()
	}
	return out, it.Err()
}

// Iterate returns a cursor over the entries. The cursor allocates from a
// scratch pool that is released when it is exhausted, fails or is closed.
func (h *Hash[V]) Iterate() *Iterator[V] {
	return &Iterator[V]{h: h}
}

// Handle returns the native table address. Callers using it take on the
// pool lifetime rules themselves.
func (h *Hash[V]) Handle() nativecoll.Ptr { return h.ht }

// Close destroys an owned hash's pool. A borrowed hash is only detached.
func (h *Hash[V]) Close() error {
	h.release()
	return nil
}

// Iterator walks a hash once. It cannot be restarted.
type Iterator[V any] struct {
	h       *Hash[V]
	scratch *pool.Pool
	hi      nativecoll.Ptr
	key     []byte
	val     V
	err     error
	started bool
	done    bool
}

// Next advances to the next entry and reports whether there is one.
func (it *Iterator[V]) Next() bool {
	if it.done {
		return false
	}
	h := it.h
	if err := h.check(errors.PhaseHash, "iterate"); err != nil {
		return it.fail(err)
	}

	var st native.Status
	if !it.started {
		it.started = true
		p, err := h.rt.Allocator().Create(h.pool, "hash-iter")
		if err != nil {
			return it.fail(poolErr(errors.PhaseHash, "iterate", err))
		}
		it.scratch = p
		it.hi, st = h.rt.HashFirst(p, h.ht)
	} else {
		it.hi, st = h.rt.HashNext(it.hi)
	}
	if st != native.StatusOK {
		return it.fail(statusErr(errors.PhaseHash, "hash_next", st))
	}
	if it.hi == nativecoll.Null {
		it.Close()
		return false
	}

	key, val, st := h.rt.HashThis(it.hi)
	if st != native.StatusOK {
		return it.fail(statusErr(errors.PhaseHash, "hash_this", st))
	}
	v, err := h.codec.Decode(h.rt.Memory(), val)
	if err != nil {
		return it.fail(err)
	}
	it.key, it.val = key, v
	return true
}

func (it *Iterator[V]) fail(err error) bool {
	it.err = err
	it.Close()
	return false
}

// Key returns the current key. It is a copy owned by the caller.
func (it *Iterator[V]) Key() []byte { return it.key }

// Value returns the current decoded value.
func (it *Iterator[V]) Value() V { return it.val }

// Err returns the error that ended iteration, if any.
func (it *Iterator[V]) Err() error { return it.err }

// Close releases the cursor. Safe to call more than once.
func (it *Iterator[V]) Close() {
	it.done = true
	it.key = nil
	var zero V
	it.val = zero
	if it.scratch != nil {
		it.scratch.Destroy()
		it.scratch = nil
	}
}
