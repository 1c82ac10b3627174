package transcoder

import (
	"github.com/wippyai/nativecoll"
	"github.com/wippyai/nativecoll/errors"
	"github.com/wippyai/nativecoll/native"
)

// Codec stores values out of line. Encode allocates from a and returns the
// value's address; Decode reads it back.
type Codec[V any] interface {
	Encode(a nativecoll.Allocator, v V) (nativecoll.Ptr, error)
	Decode(mem nativecoll.Memory, p nativecoll.Ptr) (V, error)
}

// Duplicator is implemented by codecs that can copy an encoded value into
// another allocator without decoding it.
type Duplicator interface {
	Dup(a nativecoll.Allocator, p nativecoll.Ptr) (nativecoll.Ptr, error)
}

// Duplicate copies the value at p into a.
func Duplicate[V any](c Codec[V], a nativecoll.Allocator, mem nativecoll.Memory, p nativecoll.Ptr) (nativecoll.Ptr, error) {
	if d, ok := c.(Duplicator); ok {
		return d.Dup(a, p)
	}
	v, err := c.Decode(mem, p)
	if err != nil {
		return nativecoll.Null, err
	}
	return c.Encode(a, v)
}

func statusErr(op string, st native.Status) error {
	return errors.NativeCall(errors.PhaseCodec, op, int(st), st.String())
}

type bytesCodec struct{}

// Bytes stores byte slices as string records. Decoding returns exactly the
// recorded length, zero bytes included.
var Bytes Codec[[]byte] = bytesCodec{}

func (bytesCodec) Encode(a nativecoll.Allocator, v []byte) (nativecoll.Ptr, error) {
	rec, st := native.StringNCreate(a, v)
	if st != native.StatusOK {
		return nativecoll.Null, statusErr("string_ncreate", st)
	}
	return rec, nil
}

func (bytesCodec) Decode(mem nativecoll.Memory, p nativecoll.Ptr) ([]byte, error) {
	data, st := native.StringRead(mem, p)
	if st != native.StatusOK {
		return nil, statusErr("string_read", st)
	}
	return data, nil
}

func (bytesCodec) Dup(a nativecoll.Allocator, p nativecoll.Ptr) (nativecoll.Ptr, error) {
	rec, st := native.StringDup(a, p)
	if st != native.StatusOK {
		return nativecoll.Null, statusErr("string_dup", st)
	}
	return rec, nil
}

type stringCodec struct{}

// String is Bytes for Go strings.
var String Codec[string] = stringCodec{}

func (stringCodec) Encode(a nativecoll.Allocator, v string) (nativecoll.Ptr, error) {
	return bytesCodec{}.Encode(a, []byte(v))
}

func (stringCodec) Decode(mem nativecoll.Memory, p nativecoll.Ptr) (string, error) {
	b, err := bytesCodec{}.Decode(mem, p)
	return string(b), err
}

func (stringCodec) Dup(a nativecoll.Allocator, p nativecoll.Ptr) (nativecoll.Ptr, error) {
	return bytesCodec{}.Dup(a, p)
}

type valueCodec[T any] struct {
	elem Elem[T]
}

// Value stores each value as one element allocated on its own.
func Value[T any](elem Elem[T]) Codec[T] {
	return valueCodec[T]{elem: elem}
}

func (c valueCodec[T]) Encode(a nativecoll.Allocator, v T) (nativecoll.Ptr, error) {
	b, err := c.elem.Encode(a, v)
	if err != nil {
		return nativecoll.Null, err
	}
	p, err := a.Alloc(c.elem.Size(), 0)
	if err != nil {
		return nativecoll.Null, errors.New(errors.PhaseCodec, errors.KindNativeCall).
			Op("alloc " + c.elem.Name()).
			Cause(err).
			Build()
	}
	if err := a.Memory().Write(uint32(p), b); err != nil {
		return nativecoll.Null, err
	}
	return p, nil
}

func (c valueCodec[T]) Decode(mem nativecoll.Memory, p nativecoll.Ptr) (T, error) {
	var zero T
	if p == nativecoll.Null {
		return zero, errors.InvalidInput(errors.PhaseCodec, "decode "+c.elem.Name()+" from null pointer")
	}
	src, err := mem.Read(uint32(p), c.elem.Size())
	if err != nil {
		return zero, err
	}
	return c.elem.Decode(mem, src)
}

type pointerCodec struct{}

// Pointer passes native pointers through unchanged. Values stored with it
// are whatever the caller allocated, with whatever lifetime that has.
var Pointer Codec[nativecoll.Ptr] = pointerCodec{}

func (pointerCodec) Encode(_ nativecoll.Allocator, v nativecoll.Ptr) (nativecoll.Ptr, error) {
	return v, nil
}

func (pointerCodec) Decode(_ nativecoll.Memory, p nativecoll.Ptr) (nativecoll.Ptr, error) {
	return p, nil
}

// Dup returns p itself: the pointee is opaque and cannot be copied.
func (pointerCodec) Dup(_ nativecoll.Allocator, p nativecoll.Ptr) (nativecoll.Ptr, error) {
	return p, nil
}
