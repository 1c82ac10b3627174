package pool

import (
	"errors"
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/eapache/queue"
	"go.uber.org/zap"

	"github.com/wippyai/nativecoll"
	"github.com/wippyai/nativecoll/internal/abi"
)

var (
	ErrDestroyed   = errors.New("pool destroyed")
	ErrOutOfMemory = errors.New("native memory exhausted")
	ErrBadAlign    = errors.New("alignment must be a power of two")
)

const (
	// BoundarySize is the granularity of allocator blocks.
	BoundarySize = 4096
	// DefaultMinBlockSize is the smallest block handed to a pool.
	DefaultMinBlockSize = 8192
	// DefaultAlign is the alignment of every pool allocation.
	DefaultAlign = 8

	// heapBase keeps the first bytes of memory unused so Null never aliases
	// an allocation.
	heapBase = 64
)

// ID identifies a pool slot in its allocator.
type ID uint32

// Ref is a generation-stamped reference to a pool.
type Ref struct {
	ID  ID
	Gen uint32
}

type block struct {
	start uint32
	size  uint32
}

type slot struct {
	pool *Pool
	gen  uint32
}

// Stats is a snapshot of allocator usage.
type Stats struct {
	LivePools  uint64
	HeapTop    uint32 // first never-allocated address
	MemorySize uint32
	FreeBytes  uint64 // bytes held in free blocks
	FreeBlocks int
}

// Allocator owns the linear memory and the pool slot table.
type Allocator struct {
	mem       nativecoll.LinearMemory
	log       *zap.Logger
	metrics   *Metrics
	free      map[uint32]*queue.Queue // block size -> free blocks
	live      *roaring.Bitmap
	slots     []slot
	freeIDs   []ID
	freeBytes uint64
	top       uint32
	minBlock  uint32
}

// Option configures an Allocator.
type Option func(*Allocator)

// WithMinBlockSize sets the smallest block a pool takes. Rounded up to BoundarySize.
func WithMinBlockSize(n uint32) Option {
	return func(a *Allocator) {
		if n > 0 {
			a.minBlock = abi.AlignTo(n, BoundarySize)
		}
	}
}

// WithLogger sets the allocator's logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *Allocator) {
		if l != nil {
			a.log = l
		}
	}
}

// WithMetrics attaches prometheus collectors.
func WithMetrics(m *Metrics) Option {
	return func(a *Allocator) {
		a.metrics = m
	}
}

// NewAllocator creates an allocator over mem. Addresses below an internal
// base are never handed out.
func NewAllocator(mem nativecoll.LinearMemory, opts ...Option) *Allocator {
	a := &Allocator{
		mem:      mem,
		log:      zap.NewNop(),
		free:     make(map[uint32]*queue.Queue),
		live:     roaring.New(),
		slots:    make([]slot, 1, 64), // ID 0 is never used
		top:      heapBase,
		minBlock: DefaultMinBlockSize,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Memory returns the linear memory pools allocate from.
func (a *Allocator) Memory() nativecoll.LinearMemory {
	return a.mem
}

// Create makes a new pool. A non-nil parent must be alive; the new pool is
// destroyed together with it.
func (a *Allocator) Create(parent *Pool, tag string) (*Pool, error) {
	if parent != nil {
		if parent.a != a {
			return nil, fmt.Errorf("create pool %q: parent belongs to another allocator", tag)
		}
		if !parent.Alive() {
			return nil, fmt.Errorf("create pool %q: parent: %w", tag, ErrDestroyed)
		}
	}

	var id ID
	if n := len(a.freeIDs); n > 0 {
		id = a.freeIDs[n-1]
		a.freeIDs = a.freeIDs[:n-1]
	} else {
		id = ID(len(a.slots))
		a.slots = append(a.slots, slot{})
	}

	p := &Pool{
		a:      a,
		id:     id,
		gen:    a.slots[id].gen,
		tag:    tag,
		parent: parent,
	}
	a.slots[id].pool = p
	a.live.Add(uint32(id))
	if parent != nil {
		parent.children = append(parent.children, p)
	}

	a.metrics.poolCreated()
	a.log.Debug("pool created", zap.Uint32("id", uint32(id)), zap.String("tag", tag))
	return p, nil
}

// Lookup resolves a pool ID recorded in native memory.
func (a *Allocator) Lookup(id ID) (*Pool, bool) {
	if !a.live.Contains(uint32(id)) || int(id) >= len(a.slots) {
		return nil, false
	}
	p := a.slots[id].pool
	return p, p != nil
}

// Valid reports whether ref still names a live, uncleared pool.
func (a *Allocator) Valid(ref Ref) bool {
	if ref.ID == 0 || int(ref.ID) >= len(a.slots) {
		return false
	}
	return a.live.Contains(uint32(ref.ID)) && a.slots[ref.ID].gen == ref.Gen
}

// Check is Valid as an error.
func (a *Allocator) Check(ref Ref) error {
	if !a.Valid(ref) {
		return fmt.Errorf("pool %d (gen %d): %w", ref.ID, ref.Gen, ErrDestroyed)
	}
	return nil
}

// Stats returns current usage.
func (a *Allocator) Stats() Stats {
	s := Stats{
		LivePools:  a.live.GetCardinality(),
		HeapTop:    a.top,
		MemorySize: a.mem.Size(),
		FreeBytes:  a.freeBytes,
	}
	for _, q := range a.free {
		s.FreeBlocks += q.Length()
	}
	return s
}

// Close destroys every live pool.
func (a *Allocator) Close() {
	for _, id := range a.live.ToArray() {
		p, ok := a.Lookup(ID(id))
		if ok && p.parent == nil {
			p.Destroy()
		}
	}
}

// takeBlock returns a block of at least need bytes, reusing a free block of
// the same size class or carving a new one from the top of the heap.
func (a *Allocator) takeBlock(need uint32) (block, error) {
	size := abi.AlignTo(need, BoundarySize)
	if size < need {
		return block{}, fmt.Errorf("block of %d bytes: %w", need, ErrOutOfMemory)
	}
	if size < a.minBlock {
		size = a.minBlock
	}

	if q, ok := a.free[size]; ok && q.Length() > 0 {
		b := q.Remove().(block)
		a.freeBytes -= uint64(b.size)
		a.metrics.setFree(a.freeBytes)
		return b, nil
	}

	end, ok := abi.SafeAddU32(a.top, size)
	if !ok {
		return block{}, fmt.Errorf("block of %d bytes: %w", size, ErrOutOfMemory)
	}
	if cur := a.mem.Size(); end > cur {
		deficit := uint64(end) - uint64(cur)
		pages := uint32((deficit + nativecoll.PageSize - 1) / nativecoll.PageSize)
		if _, err := a.mem.Grow(pages); err != nil {
			return block{}, fmt.Errorf("grow by %d pages: %w: %w", pages, ErrOutOfMemory, err)
		}
		a.metrics.memoryGrown(a.mem.Size())
		a.log.Debug("native memory grown",
			zap.Uint32("pages", pages),
			zap.Uint32("size", a.mem.Size()))
	}

	b := block{start: a.top, size: size}
	a.top = end
	a.metrics.setHeapTop(a.top)
	return b, nil
}

func (a *Allocator) releaseBlocks(blocks []block) {
	for _, b := range blocks {
		q, ok := a.free[b.size]
		if !ok {
			q = queue.New()
			a.free[b.size] = q
		}
		q.Add(b)
		a.freeBytes += uint64(b.size)
	}
	a.metrics.setFree(a.freeBytes)
}

// bump invalidates every Ref to id and returns the new generation.
func (a *Allocator) bump(id ID) uint32 {
	a.slots[id].gen++
	return a.slots[id].gen
}

func (a *Allocator) retire(p *Pool) {
	a.bump(p.id)
	a.slots[p.id].pool = nil
	a.live.Remove(uint32(p.id))
	a.freeIDs = append(a.freeIDs, p.id)
	a.metrics.poolDestroyed()
}
