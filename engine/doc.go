// Package engine assembles the native runtime the adapters run on.
//
// An Engine owns one wazero runtime hosting a memory-only module. Its linear
// memory is the native heap: the pool allocator carves it into blocks and
// the native runtime lays arrays, hash tables and streams out in it.
//
//	┌──────────────────────────────────────────────────────┐
//	│ adapter  →  native.Runtime  →  pool.Allocator        │
//	│                                      ↓               │
//	│                     wazero linear memory (grows)     │
//	└──────────────────────────────────────────────────────┘
//
// # Usage
//
//	eng, err := engine.New(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer eng.Close(ctx)
//
//	arr, err := adapter.NewArray(eng.Native(), transcoder.Int32, 8)
//
// A nil configuration means config.Default().
//
// # Memory Limits
//
// memory.max_pages bounds both the declared maximum of the memory and the
// wazero runtime's memory limit. Allocation beyond it fails with an
// out-of-memory status.
//
// # Logging
//
// The engine logs through the logger passed with WithLogger, else through
// the one built from the log section of the configuration. When logging is
// disabled there, the package-level logger set with SetLogger is used.
//
// # Metrics
//
// With metrics.enabled the pool allocator's collectors are registered on
// the registerer passed with WithRegisterer, defaulting to
// prometheus.DefaultRegisterer.
package engine
