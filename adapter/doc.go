// Package adapter exposes native collections as memory-safe Go values.
//
// Array, Hash and Stream wrap native structures laid out by package native.
// Each adapter is tied to exactly one pool, and it validates that pool
// before every access to native memory. Once the pool is destroyed or
// cleared, operations fail with errors.ErrPoolDestroyed instead of reading
// freed memory.
//
// Len and Cap cannot fail, so they report 0 once the pool is gone. Use
// Alive to tell such an adapter from an empty one:
//
//	if arr.Len() == 0 && !arr.Alive() {
//	    return errors.ErrPoolDestroyed
//	}
//
// # Ownership
//
// An adapter either owns its pool or borrows it:
//
//	arr, _ := adapter.NewArray(rt, transcoder.Int32, 8) // Owned: new pool
//	view, _ := adapter.AttachArray(rt, transcoder.Int32, hdr) // Borrowed
//
// Close destroys an owned pool and everything allocated in it. Closing a
// borrowed adapter only detaches it; the structure stays alive for its real
// owner. Dropping an adapter without Close frees nothing: memory is
// released only when its pool is destroyed.
//
// # Arrays
//
// Array[T] is a resizable sequence of fixed-size elements. AssignSlice is
// the general splice every other mutation is built on:
//
//	arr.AssignSlice(1, 3, []int32{9}) // [1 2 3 4 5] → [1 9 4 5]
//	arr.AssignSlice(i, i, []int32{x}) // insert before i
//	arr.AssignSlice(i, i+1, nil)      // delete i
//
// Growth may relocate the elements; the adapter re-reads the header after
// every call that can allocate and never caches element addresses.
//
// # Hashes
//
// Hash[V] maps byte-string keys to values stored through a
// transcoder.Codec. Keys are length-explicit, so embedded zero bytes are
// part of the key. Iteration order is the native bucket order and is not
// stable across mutation:
//
//	it := h.Iterate()
//	defer it.Close()
//	for it.Next() {
//	    fmt.Println(it.Key(), it.Value())
//	}
//	if err := it.Err(); err != nil {
//	    ...
//	}
//
// Mutating a hash while iterating it is not allowed and not detected.
//
// # Streams
//
// Stream connects a native stream to an io.Reader or io.Writer. The native
// side calls back into Go through a baton stored in the runtime's resource
// table; the baton lives as long as the stream's pool. A callback that fails
// poisons the stream and surfaces as errors.ErrCallbackContract. When the
// baton is dropped, with Close or with the pool, an owned handle that is an
// io.Closer is closed if nothing closed it yet.
//
// Nothing in this package is safe for concurrent use.
package adapter
