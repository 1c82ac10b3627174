// Package pool implements region-based allocation over native linear memory.
//
// An Allocator carves blocks out of a growable nativecoll.LinearMemory and
// hands them to pools. A Pool bump-allocates from its blocks and never frees
// individual allocations: everything a pool allocated is released together
// when the pool is cleared or destroyed.
//
// # Pool Lifecycle
//
//	alloc := pool.NewAllocator(mem)
//
//	p, _ := alloc.Create(nil, "request")
//	defer p.Destroy()
//
//	ptr, _ := p.Alloc(64, 8)
//	sub, _ := p.Child("scratch") // destroyed with p
//
// Destroying a pool destroys its children first, then runs its cleanups in
// reverse registration order, then returns its blocks to the allocator.
//
// # Generations
//
// Pools live in a slot table indexed by ID. Every slot carries a generation
// that changes when the pool is destroyed or cleared, so a Ref taken earlier
// stops validating:
//
//	ref := p.Ref()
//	p.Clear()
//	alloc.Valid(ref) // false
//
// Code that holds native pointers keeps the Ref of the pool they came from
// and checks it before every dereference.
//
// # Scoped Pools
//
// With creates a pool for the duration of a function and destroys it on
// every exit path:
//
//	err := pool.With(alloc, parent, "iter", func(p *pool.Pool) error {
//	    ...
//	})
//
// # Memory Growth
//
// When no free block fits, the allocator grows the linear memory. Growth may
// move the memory's backing buffer; see package memory.
//
// Nothing in this package is safe for concurrent use.
package pool
