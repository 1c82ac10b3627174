package transcoder

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/wippyai/nativecoll"
	"github.com/wippyai/nativecoll/errors"
)

// Elem is the inline representation of a fixed-size value.
type Elem[T any] interface {
	// Size is the encoded width in bytes.
	Size() uint32
	// Name identifies the type in error messages.
	Name() string
	// Encode returns exactly Size bytes. It may allocate from a, so it
	// returns bytes rather than writing into native memory directly.
	Encode(a nativecoll.Allocator, v T) ([]byte, error)
	// Decode reads one value from src, which holds exactly Size bytes.
	Decode(mem nativecoll.Memory, src []byte) (T, error)
}

type fixed[T any] struct {
	name string
	size uint32
	put  func([]byte, T)
	get  func([]byte) T
}

func (f fixed[T]) Size() uint32 { return f.size }
func (f fixed[T]) Name() string { return f.name }

func (f fixed[T]) Encode(_ nativecoll.Allocator, v T) ([]byte, error) {
	b := make([]byte, f.size)
	f.put(b, v)
	return b, nil
}

func (f fixed[T]) Decode(_ nativecoll.Memory, src []byte) (T, error) {
	if err := checkWidth(f.name, f.size, src); err != nil {
		var zero T
		return zero, err
	}
	return f.get(src), nil
}

func checkWidth(name string, size uint32, src []byte) error {
	if uint32(len(src)) != size {
		return errors.New(errors.PhaseCodec, errors.KindInvalidInput).
			Op("decode " + name).
			Detail("expected %d bytes, got %d", size, len(src)).
			Build()
	}
	return nil
}

var (
	Int32 Elem[int32] = fixed[int32]{
		name: "int32", size: 4,
		put: func(b []byte, v int32) { binary.LittleEndian.PutUint32(b, uint32(v)) },
		get: func(b []byte) int32 { return int32(binary.LittleEndian.Uint32(b)) },
	}
	Uint32 Elem[uint32] = fixed[uint32]{
		name: "uint32", size: 4,
		put: binary.LittleEndian.PutUint32,
		get: binary.LittleEndian.Uint32,
	}
	Int64 Elem[int64] = fixed[int64]{
		name: "int64", size: 8,
		put: func(b []byte, v int64) { binary.LittleEndian.PutUint64(b, uint64(v)) },
		get: func(b []byte) int64 { return int64(binary.LittleEndian.Uint64(b)) },
	}
	Float64 Elem[float64] = fixed[float64]{
		name: "float64", size: 8,
		put: func(b []byte, v float64) { binary.LittleEndian.PutUint64(b, math.Float64bits(v)) },
		get: func(b []byte) float64 { return math.Float64frombits(binary.LittleEndian.Uint64(b)) },
	}
	// PointerElem stores a raw native pointer.
	PointerElem Elem[nativecoll.Ptr] = fixed[nativecoll.Ptr]{
		name: "pointer", size: 4,
		put: func(b []byte, v nativecoll.Ptr) { binary.LittleEndian.PutUint32(b, uint32(v)) },
		get: func(b []byte) nativecoll.Ptr { return nativecoll.Ptr(binary.LittleEndian.Uint32(b)) },
	}
)

type raw uint32

// Raw is an element of size opaque bytes. Encoding a value of a different
// length fails.
func Raw(size uint32) Elem[[]byte] { return raw(size) }

func (r raw) Size() uint32 { return uint32(r) }
func (r raw) Name() string { return "raw" }

func (r raw) Encode(_ nativecoll.Allocator, v []byte) ([]byte, error) {
	if uint32(len(v)) != uint32(r) {
		return nil, errors.New(errors.PhaseCodec, errors.KindInvalidInput).
			Op("encode raw").
			Detail("expected %d bytes, got %d", uint32(r), len(v)).
			Build()
	}
	return bytes.Clone(v), nil
}

func (r raw) Decode(_ nativecoll.Memory, src []byte) ([]byte, error) {
	if err := checkWidth("raw", uint32(r), src); err != nil {
		return nil, err
	}
	return bytes.Clone(src), nil
}

type indirect[V any] struct {
	codec Codec[V]
}

// Indirect is a pointer-sized element referring to a value encoded by
// codec. Encoding allocates the value from the allocator it is given.
func Indirect[V any](codec Codec[V]) Elem[V] {
	return indirect[V]{codec: codec}
}

func (in indirect[V]) Size() uint32 { return 4 }
func (in indirect[V]) Name() string { return "indirect" }

func (in indirect[V]) Encode(a nativecoll.Allocator, v V) ([]byte, error) {
	ptr, err := in.codec.Encode(a, v)
	if err != nil {
		return nil, err
	}
	return PointerElem.Encode(a, ptr)
}

func (in indirect[V]) Decode(mem nativecoll.Memory, src []byte) (V, error) {
	ptr, err := PointerElem.Decode(mem, src)
	if err != nil {
		var zero V
		return zero, err
	}
	return in.codec.Decode(mem, ptr)
}
