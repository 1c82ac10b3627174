// Package transcoder converts Go values to and from their native
// representations.
//
// Two shapes are covered:
//
//	Elem[T]   - a fixed-size value stored inline, such as an array element
//	Codec[V]  - a value stored out of line in a pool and referred to by pointer
//
// # Elements
//
// An Elem has a byte size and encodes to exactly that many bytes. Native
// arrays are untyped memory; the Elem given to an array adapter must have
// the array's element size.
//
//	Type              Size    Go type
//	─────────────────────────────────────────
//	Int32             4       int32
//	Uint32            4       uint32
//	Int64             8       int64
//	Float64           8       float64
//	PointerElem       4       nativecoll.Ptr
//	Raw(n)            n       []byte
//	Indirect(codec)   4       V (pointer to a codec value)
//
// # Codecs
//
// A Codec allocates a value in the pool it is handed and returns the
// pointer; decoding reads it back. Hash tables store codec pointers as
// their values.
//
//	Bytes      length-prefixed string record, byte exact
//	String     same record, as a Go string
//	JSON[T]()  goccy/go-json document in a string record
//	Value(e)   one Elem allocated on its own
//	Pointer    the pointer itself, for code managing native values by hand
//
// String records carry an explicit length, so embedded zero bytes survive
// the round trip.
//
// # Duplication
//
// Copying a hash into a new pool must move its values too, since they may
// point into the old pool. Duplicate uses a codec's Dup method when it has
// one and falls back to Decode followed by Encode.
package transcoder
