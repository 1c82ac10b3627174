package transcoder

import (
	"github.com/goccy/go-json"

	"github.com/wippyai/nativecoll"
	"github.com/wippyai/nativecoll/errors"
)

type jsonCodec[T any] struct{}

// JSON stores values as JSON documents in string records.
func JSON[T any]() Codec[T] {
	return jsonCodec[T]{}
}

func (jsonCodec[T]) Encode(a nativecoll.Allocator, v T) (nativecoll.Ptr, error) {
	doc, err := json.Marshal(v)
	if err != nil {
		return nativecoll.Null, errors.New(errors.PhaseCodec, errors.KindInvalidInput).
			Op("encode json").
			Cause(err).
			Build()
	}
	return Bytes.Encode(a, doc)
}

func (jsonCodec[T]) Decode(mem nativecoll.Memory, p nativecoll.Ptr) (T, error) {
	var v T
	doc, err := Bytes.Decode(mem, p)
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(doc, &v); err != nil {
		return v, errors.New(errors.PhaseCodec, errors.KindInvalidInput).
			Op("decode json").
			Cause(err).
			Build()
	}
	return v, nil
}

func (jsonCodec[T]) Dup(a nativecoll.Allocator, p nativecoll.Ptr) (nativecoll.Ptr, error) {
	return Bytes.(Duplicator).Dup(a, p)
}
