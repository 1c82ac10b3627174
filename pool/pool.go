package pool

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/wippyai/nativecoll"
	"github.com/wippyai/nativecoll/internal/abi"
)

// Pool is a region of native memory. Allocations live until the pool is
// cleared or destroyed.
type Pool struct {
	a        *Allocator
	parent   *Pool
	tag      string
	children []*Pool
	blocks   []block
	cleanups []func()
	used     uint64
	id       ID
	gen      uint32
	cur      uint32
	end      uint32
	dying    bool
}

var _ nativecoll.Allocator = (*Pool)(nil)

// ID returns the pool's slot ID, as recorded in native structures.
func (p *Pool) ID() ID { return p.id }

// Ref returns a reference valid until the pool is cleared or destroyed.
func (p *Pool) Ref() Ref { return Ref{ID: p.id, Gen: p.gen} }

// Tag returns the debugging tag given at creation.
func (p *Pool) Tag() string { return p.tag }

// Parent returns the parent pool, or nil for a top-level pool.
func (p *Pool) Parent() *Pool { return p.parent }

// Allocator returns the allocator the pool draws from.
func (p *Pool) Allocator() *Allocator { return p.a }

// Memory returns the native memory the pool's allocations live in.
func (p *Pool) Memory() nativecoll.Memory { return p.a.mem }

// Used returns the bytes handed out since the last clear.
func (p *Pool) Used() uint64 { return p.used }

// Alive reports whether the pool has not been destroyed.
func (p *Pool) Alive() bool {
	return p.a.Valid(p.Ref())
}

// Alloc returns size bytes aligned to align (DefaultAlign when 0). The
// memory is not zeroed. A zero size still yields a distinct address.
func (p *Pool) Alloc(size, align uint32) (nativecoll.Ptr, error) {
	if !p.Alive() {
		return nativecoll.Null, fmt.Errorf("alloc %d bytes in pool %q: %w", size, p.tag, ErrDestroyed)
	}
	if align == 0 {
		align = DefaultAlign
	}
	if align&(align-1) != 0 {
		return nativecoll.Null, fmt.Errorf("alloc align %d: %w", align, ErrBadAlign)
	}

	n := abi.AlignTo(max(size, 1), DefaultAlign)
	if n < size {
		return nativecoll.Null, fmt.Errorf("alloc %d bytes: %w", size, ErrOutOfMemory)
	}

	start := abi.AlignTo(p.cur, align)
	if p.cur == 0 || uint64(start)+uint64(n) > uint64(p.end) {
		need, ok := abi.SafeAddU32(n, align)
		if !ok {
			return nativecoll.Null, fmt.Errorf("alloc %d bytes: %w", size, ErrOutOfMemory)
		}
		b, err := p.a.takeBlock(need)
		if err != nil {
			return nativecoll.Null, err
		}
		p.blocks = append(p.blocks, b)
		p.cur, p.end = b.start, b.start+b.size
		start = abi.AlignTo(p.cur, align)
	}

	p.cur = start + n
	p.used += uint64(n)
	p.a.metrics.allocated(n)
	return nativecoll.Ptr(start), nil
}

// Calloc is Alloc followed by zeroing the returned memory.
func (p *Pool) Calloc(size, align uint32) (nativecoll.Ptr, error) {
	ptr, err := p.Alloc(size, align)
	if err != nil {
		return nativecoll.Null, err
	}
	if size > 0 {
		if err := p.a.mem.Fill(uint32(ptr), size, 0); err != nil {
			return nativecoll.Null, err
		}
	}
	return ptr, nil
}

// Child creates a sub-pool destroyed together with p.
func (p *Pool) Child(tag string) (*Pool, error) {
	return p.a.Create(p, tag)
}

// OnCleanup registers fn to run when the pool is cleared or destroyed,
// before its memory is released. Cleanups run in reverse order.
func (p *Pool) OnCleanup(fn func()) {
	p.cleanups = append(p.cleanups, fn)
}

// Clear releases every allocation and child pool while keeping the pool
// itself. Refs taken before Clear stop validating.
func (p *Pool) Clear() error {
	if !p.Alive() {
		return fmt.Errorf("clear pool %q: %w", p.tag, ErrDestroyed)
	}
	p.destroyChildren()
	p.runCleanups()

	if len(p.blocks) > 0 {
		first := p.blocks[0]
		p.a.releaseBlocks(p.blocks[1:])
		p.blocks = p.blocks[:1]
		p.cur, p.end = first.start, first.start+first.size
	}
	p.used = 0
	p.gen = p.a.bump(p.id)

	p.a.log.Debug("pool cleared", zap.Uint32("id", uint32(p.id)), zap.String("tag", p.tag))
	return nil
}

// Destroy releases the pool, its children and all their memory. Destroying
// a dead pool is a no-op.
func (p *Pool) Destroy() {
	if p.dying || !p.Alive() {
		return
	}
	p.dying = true
	p.destroyChildren()
	p.runCleanups()

	p.a.releaseBlocks(p.blocks)
	p.blocks = nil
	p.cur, p.end = 0, 0

	if p.parent != nil {
		p.parent.removeChild(p)
	}
	p.a.retire(p)

	p.a.log.Debug("pool destroyed", zap.Uint32("id", uint32(p.id)), zap.String("tag", p.tag))
}

func (p *Pool) destroyChildren() {
	children := p.children
	p.children = nil
	for i := len(children) - 1; i >= 0; i-- {
		children[i].Destroy()
	}
}

func (p *Pool) removeChild(c *Pool) {
	for i, child := range p.children {
		if child == c {
			p.children = append(p.children[:i], p.children[i+1:]...)
			return
		}
	}
}

func (p *Pool) runCleanups() {
	for len(p.cleanups) > 0 {
		fn := p.cleanups[len(p.cleanups)-1]
		p.cleanups = p.cleanups[:len(p.cleanups)-1]
		p.runCleanup(fn)
	}
}

func (p *Pool) runCleanup(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			p.a.log.Warn("pool cleanup panicked",
				zap.Uint32("id", uint32(p.id)),
				zap.String("tag", p.tag),
				zap.Any("panic", r))
		}
	}()
	fn()
}

// With runs fn with a fresh pool (a child of parent when non-nil) and
// destroys the pool when fn returns or panics.
func With(a *Allocator, parent *Pool, tag string, fn func(*Pool) error) error {
	p, err := a.Create(parent, tag)
	if err != nil {
		return err
	}
	defer p.Destroy()
	return fn(p)
}
