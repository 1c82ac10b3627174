package adapter

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/nativecoll"
	"github.com/wippyai/nativecoll/errors"
	"github.com/wippyai/nativecoll/native"
	"github.com/wippyai/nativecoll/transcoder"
)

var int32Value = transcoder.Value(transcoder.Int32)

func newInt32Hash(t *testing.T, rt *native.Runtime) *Hash[int32] {
	t.Helper()
	h, err := NewHash(rt, int32Value)
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })
	return h
}

func TestHash_EmbeddedZeroKeys(t *testing.T) {
	rt := newRuntime(t)
	h := newInt32Hash(t, rt)

	require.NoError(t, h.Set([]byte("k1"), 100))
	require.NoError(t, h.Set([]byte("k\x00k2"), 200))
	assert.Equal(t, 2, h.Len())

	v, err := h.Get([]byte("k1"))
	require.NoError(t, err)
	assert.Equal(t, int32(100), v)

	v, err = h.Get([]byte("k\x00k2"))
	require.NoError(t, err)
	assert.Equal(t, int32(200), v)

	_, err = h.Get([]byte("k"))
	assert.ErrorIs(t, err, errors.ErrKeyNotFound, "a key is not truncated at its zero byte")
}

func TestHash_SetOverwrites(t *testing.T) {
	rt := newRuntime(t)
	h := newInt32Hash(t, rt)

	require.NoError(t, h.Set([]byte("a"), 1))
	require.NoError(t, h.Set([]byte("a"), 2))
	assert.Equal(t, 1, h.Len())
	v, _ := h.Get([]byte("a"))
	assert.Equal(t, int32(2), v)
}

func TestHash_EmptyKey(t *testing.T) {
	rt := newRuntime(t)
	h := newInt32Hash(t, rt)

	require.NoError(t, h.Set(nil, 7))
	assert.True(t, h.Has([]byte{}))
	v, err := h.Get([]byte{})
	require.NoError(t, err)
	assert.Equal(t, int32(7), v)
}

func TestHash_DeleteIsIdempotent(t *testing.T) {
	rt := newRuntime(t)
	h := newInt32Hash(t, rt)
	require.NoError(t, h.Set([]byte("a"), 1))

	require.NoError(t, h.Delete([]byte("a")))
	require.NoError(t, h.Delete([]byte("a")))
	require.NoError(t, h.Delete([]byte("never")))
	assert.Equal(t, 0, h.Len())
	assert.False(t, h.Has([]byte("a")))

	_, err := h.Get([]byte("a"))
	var e *errors.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, errors.KindKeyNotFound, e.Kind)
	assert.Equal(t, []byte("a"), e.Value)
}

func TestHash_ManyKeys(t *testing.T) {
	rt := newRuntime(t)
	h := newInt32Hash(t, rt)

	for i := range 500 {
		require.NoError(t, h.Set(fmt.Appendf(nil, "key-%d", i), int32(i)))
	}
	assert.Equal(t, 500, h.Len())
	for i := range 500 {
		v, err := h.Get(fmt.Appendf(nil, "key-%d", i))
		require.NoError(t, err)
		require.Equal(t, int32(i), v)
	}

	for i := 0; i < 500; i += 2 {
		require.NoError(t, h.Delete(fmt.Appendf(nil, "key-%d", i)))
	}
	assert.Equal(t, 250, h.Len())

	require.NoError(t, h.Clear())
	assert.Equal(t, 0, h.Len())
}

func TestHash_Iterate(t *testing.T) {
	rt := newRuntime(t)
	want := map[string]int32{"a": 1, "b": 2, "c\x00": 3}
	h, err := HashOf(rt, int32Value, want)
	require.NoError(t, err)
	defer h.Close()

	pools := livePools(rt)
	got := map[string]int32{}
	it := h.Iterate()
	for it.Next() {
		assert.Equal(t, pools+1, livePools(rt), "iteration uses one scratch pool")
		got[string(it.Key())] = it.Value()
	}
	require.NoError(t, it.Err())
	assert.Equal(t, want, got)
	assert.Equal(t, pools, livePools(rt), "scratch pool released on exhaustion")
	assert.False(t, it.Next(), "iterators cannot restart")

	m, err := h.Map()
	require.NoError(t, err)
	assert.Equal(t, want, m)

	keys, err := h.Keys()
	require.NoError(t, err)
	assert.Len(t, keys, 3)
}

func TestHash_IteratorCloseEarly(t *testing.T) {
	rt := newRuntime(t)
	h, err := HashOf(rt, int32Value, map[string]int32{"a": 1, "b": 2})
	require.NoError(t, err)
	defer h.Close()

	pools := livePools(rt)
	it := h.Iterate()
	require.True(t, it.Next())
	it.Close()
	it.Close()
	assert.Equal(t, pools, livePools(rt))
	assert.False(t, it.Next())
	assert.NoError(t, it.Err())
}

func TestHash_IteratorFailsAfterDestroy(t *testing.T) {
	rt := newRuntime(t)
	h, err := HashOf(rt, int32Value, map[string]int32{"a": 1, "b": 2})
	require.NoError(t, err)

	it := h.Iterate()
	require.True(t, it.Next())
	require.NoError(t, h.Close())
	assert.False(t, it.Next())
	assert.ErrorIs(t, it.Err(), errors.ErrPoolDestroyed)
}

func TestHash_EmptyIteration(t *testing.T) {
	rt := newRuntime(t)
	h := newInt32Hash(t, rt)

	pools := livePools(rt)
	it := h.Iterate()
	assert.False(t, it.Next())
	assert.NoError(t, it.Err())
	assert.Equal(t, pools, livePools(rt))
}

func TestHash_BorrowedSharesTable(t *testing.T) {
	rt := newRuntime(t)
	src := newInt32Hash(t, rt)
	require.NoError(t, src.Set([]byte("a"), 1))

	view, err := NewHashFrom(src, false)
	require.NoError(t, err)
	assert.Equal(t, Borrowed, view.Ownership())
	assert.Equal(t, src.Handle(), view.Handle())

	require.NoError(t, view.Set([]byte("b"), 2))
	v, err := src.Get([]byte("b"))
	require.NoError(t, err)
	assert.Equal(t, int32(2), v)

	require.NoError(t, view.Close())
	assert.True(t, src.Pool().Alive())
	assert.Equal(t, 2, src.Len())
}

func TestHash_DuplicateIsIndependent(t *testing.T) {
	rt := newRuntime(t)
	src, err := HashOf(rt, transcoder.String, map[string]string{"a": "alpha", "b": "beta"})
	require.NoError(t, err)

	dup, err := NewHashFrom(src, true)
	require.NoError(t, err)
	defer dup.Close()
	assert.Equal(t, Owned, dup.Ownership())
	assert.NotEqual(t, src.Handle(), dup.Handle())

	require.NoError(t, dup.Set([]byte("c"), "gamma"))
	require.NoError(t, src.Delete([]byte("a")))
	assert.False(t, src.Has([]byte("c")))
	assert.True(t, dup.Has([]byte("a")))

	// values were copied, so the duplicate survives its source
	require.NoError(t, src.Close())
	m, err := dup.Map()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "alpha", "b": "beta", "c": "gamma"}, m)
}

func TestHash_AttachNative(t *testing.T) {
	rt := newRuntime(t)
	p, err := rt.Allocator().Create(nil, "foreign")
	require.NoError(t, err)
	defer p.Destroy()

	ht, st := rt.HashMake(p)
	require.Equal(t, native.StatusOK, st)

	borrowed, err := AttachHash(rt, transcoder.Bytes, ht, false)
	require.NoError(t, err)
	require.NoError(t, borrowed.Set([]byte("k"), []byte("v\x00v")))
	assert.Same(t, p, borrowed.Pool())

	dup, err := AttachHash(rt, transcoder.Bytes, ht, true)
	require.NoError(t, err)
	defer dup.Close()

	require.NoError(t, borrowed.Close())
	p.Destroy()
	_, err = borrowed.Get([]byte("k"))
	assert.ErrorIs(t, err, errors.ErrPoolDestroyed)

	v, err := dup.Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v\x00v"), v)
}

func TestHash_PoolDestroyed(t *testing.T) {
	rt := newRuntime(t)

	h := newInt32Hash(t, rt)
	require.NoError(t, h.Set([]byte("a"), 1))
	require.NoError(t, h.Pool().Clear())

	_, err := h.Get([]byte("a"))
	assert.ErrorIs(t, err, errors.ErrPoolDestroyed)
	assert.ErrorIs(t, h.Set([]byte("a"), 2), errors.ErrPoolDestroyed)
	assert.ErrorIs(t, h.Delete([]byte("a")), errors.ErrPoolDestroyed)
	assert.False(t, h.Has([]byte("a")))
	assert.Equal(t, 0, h.Len())

	_, err = NewHashFrom(h, false)
	assert.ErrorIs(t, err, errors.ErrPoolDestroyed)
}

type record struct {
	Name string   `json:"name"`
	Tags []string `json:"tags"`
}

func TestHash_JSONValues(t *testing.T) {
	rt := newRuntime(t)
	h, err := NewHash(rt, transcoder.JSON[record]())
	require.NoError(t, err)
	defer h.Close()

	in := record{Name: "widget", Tags: []string{"a", "b"}}
	require.NoError(t, h.Set([]byte("w"), in))

	out, err := h.Get([]byte("w"))
	require.NoError(t, err)
	assert.Equal(t, in, out)

	dup, err := NewHashFrom(h, true)
	require.NoError(t, err)
	defer dup.Close()
	out, err = dup.Get([]byte("w"))
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestHash_PointerValues(t *testing.T) {
	rt := newRuntime(t)
	arr := int32Array(t, rt, 1, 2, 3)

	h, err := HashOfPairs(rt, transcoder.Pointer, []Pair[nativecoll.Ptr]{{Key: []byte("arr"), Value: arr.Handle()}})
	require.NoError(t, err)
	defer h.Close()

	ptr, err := h.Get([]byte("arr"))
	require.NoError(t, err)
	attached, err := AttachArray(rt, transcoder.Int32, ptr)
	require.NoError(t, err)
	assert.Equal(t, []int32{1, 2, 3}, values(t, attached))
}
