// Package native implements the fixed ABI the adapters are written against:
// growable arrays, byte-keyed hash tables, callback streams, string records
// and time conversion, all laid out in native linear memory and allocated
// from pools.
//
// Every primitive takes and returns raw nativecoll.Ptr values and reports
// failure through a Status code, never a Go error. Nothing here validates
// pool lifetimes on behalf of the caller: a pointer into a destroyed pool is
// just a number. Package adapter is the memory-safe layer on top.
//
// # Layouts
//
// All fields are little-endian uint32.
//
//	array header  pool elt_size nelts nalloc elts            (20 bytes)
//	hash table    pool buckets count max seed free           (24 bytes)
//	hash entry    next hash key klen val                     (20 bytes)
//	hash index    ht this next index                         (16 bytes)
//	stream        pool baton read write close                (20 bytes)
//	string        data len                                   (8 bytes)
//
// The pool field holds a pool.ID; primitives that grow a structure allocate
// from the pool it names.
//
// # Relocation
//
// Growing an array past its capacity moves its elements to a new address,
// and growing a hash table moves its bucket array. Any allocation may also
// grow the linear memory itself, which invalidates every []byte view
// previously returned by Memory.Read. Re-read the header after each call
// that can allocate.
//
// # Streams
//
// A stream records a resource.Handle (its baton) and up to three FuncRefs
// naming Go callbacks registered on the Runtime. Reading or writing a
// stream without the matching callback fails with StatusStreamNotSupported.
package native
