// Package memory provides the native memory backend for nativecoll.
//
// Native memory is a WebAssembly linear memory owned by a wazero module that
// exports nothing but its memory. This package builds that module and wraps
// the resulting api.Memory as a nativecoll.LinearMemory.
//
// # Memory Wrapper
//
//	mod, _ := rt.InstantiateWithConfig(ctx, memory.Module(1, 1024), wazero.NewModuleConfig())
//	mem := memory.WrapMemory(mod.ExportedMemory(memory.ExportName))
//
// # Relocation
//
// Grow may reallocate the buffer behind the memory. Read returns a view of
// that buffer, so a slice obtained before Grow must not be used after it.
// Copy and Fill work on a fresh view each call and are safe to use at any
// time.
package memory
