// Package nativecoll exposes pool-managed native collections (growable
// arrays, byte-keyed hash tables, byte streams, dates and length-prefixed
// strings) to Go code through memory-safe adapters.
//
// Native memory is a WebAssembly linear memory hosted by wazero. All
// addresses are 32-bit offsets into that memory, and growing it may move the
// backing buffer, so host code never holds a Go slice into native memory
// across a call that can allocate.
//
// # Architecture Overview
//
//	nativecoll/          Root package with Ptr, Memory and Allocator interfaces
//	├── engine/          wazero runtime, linear memory, allocator and native runtime wiring
//	├── memory/          wazero api.Memory wrapper and memory-only module builder
//	├── pool/            region allocator: pools, sub-pools, cleanups, generations
//	├── native/          fixed ABI: array, hash, stream, string and time primitives
//	├── adapter/         Array, Hash, Stream and Date adapters
//	├── transcoder/      element and value codecs between Go and native memory
//	├── resource/        handle table boxing Go values referenced from native memory
//	├── config/          YAML configuration
//	└── errors/          structured error types
//
// # Quick Start
//
//	eng, err := engine.New(ctx, config.Default())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer eng.Close(ctx)
//
//	arr, err := adapter.ArrayOf(eng.Native(), transcoder.Int32, []int32{1, 2, 3, 4, 5})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer arr.Close()
//
//	_ = arr.AssignSlice(1, 3, []int32{9}) // [1 9 4 5]
//
// # Ownership
//
// Every adapter is bound to exactly one pool. An adapter that created its
// pool owns it and destroys it on Close. An adapter attached to an existing
// native structure borrows the structure's pool and never destroys it.
// Dropping an adapter without Close never frees native memory.
//
// # Thread Safety
//
// Nothing in this module is safe for concurrent mutation. Pools, array
// headers and hash tables are not synchronized; callers that share them
// across goroutines must lock externally. Iterating a Hash while mutating it
// is forbidden.
package nativecoll
