package native

import (
	"encoding/binary"
	"time"

	"go.uber.org/zap"

	"github.com/wippyai/nativecoll"
	"github.com/wippyai/nativecoll/pool"
	"github.com/wippyai/nativecoll/resource"
)

// Runtime binds the primitives to one allocator. It owns the callback
// registry and the baton table shared by every stream it creates.
type Runtime struct {
	alloc  *pool.Allocator
	mem    nativecoll.LinearMemory
	log    *zap.Logger
	batons *resource.Table
	funcs  funcTable
	loc    *time.Location

	// callbacks of compressed streams
	zread, zwrite, zclose FuncRef
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithLogger sets the runtime's logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Runtime) {
		if l != nil {
			r.log = l
		}
	}
}

// WithLocation sets the zone used for human-readable dates.
func WithLocation(loc *time.Location) Option {
	return func(r *Runtime) {
		if loc != nil {
			r.loc = loc
		}
	}
}

// New creates a runtime over alloc.
func New(alloc *pool.Allocator, opts ...Option) *Runtime {
	r := &Runtime{
		alloc:  alloc,
		mem:    alloc.Memory(),
		log:    zap.NewNop(),
		batons: resource.NewTable(),
		loc:    time.Local,
	}
	r.funcs.init()
	for _, opt := range opts {
		opt(r)
	}
	r.registerBuiltins()
	r.batons.Subscribe(resource.ObserverFunc(r.traceBaton))
	return r
}

func (r *Runtime) traceBaton(e resource.Event) {
	switch e.Type {
	case resource.EventCreated:
		r.log.Debug("baton created", zap.Uint32("handle", uint32(e.Handle)), zap.Stringer("type", e.TypeID))
	case resource.EventDropped:
		r.log.Debug("baton dropped", zap.Uint32("handle", uint32(e.Handle)), zap.Stringer("type", e.TypeID))
	}
}

func (r *Runtime) Allocator() *pool.Allocator { return r.alloc }
func (r *Runtime) Memory() nativecoll.LinearMemory { return r.mem }
func (r *Runtime) Logger() *zap.Logger { return r.log }
func (r *Runtime) Location() *time.Location { return r.loc }

// Batons returns the table stream batons are stored in.
func (r *Runtime) Batons() *resource.Table { return r.batons }

// Close drops every baton still registered.
func (r *Runtime) Close() error {
	r.batons.Clear()
	return r.batons.Close()
}

// owner resolves the pool recorded in a native structure.
func (r *Runtime) owner(id uint32) (*pool.Pool, Status) {
	p, ok := r.alloc.Lookup(pool.ID(id))
	if !ok {
		return nil, StatusPoolDestroyed
	}
	return p, StatusOK
}

// readFields loads n consecutive uint32 fields starting at addr.
func readFields(mem nativecoll.Memory, addr nativecoll.Ptr, dst []uint32) Status {
	if addr == nativecoll.Null {
		return StatusBadArgument
	}
	buf, err := mem.Read(uint32(addr), uint32(len(dst))*4)
	if err != nil {
		return StatusFault
	}
	for i := range dst {
		dst[i] = binary.LittleEndian.Uint32(buf[i*4:])
	}
	return StatusOK
}

// writeFields stores consecutive uint32 fields starting at addr.
func writeFields(mem nativecoll.Memory, addr nativecoll.Ptr, src ...uint32) Status {
	if addr == nativecoll.Null {
		return StatusBadArgument
	}
	buf := make([]byte, len(src)*4)
	for i, v := range src {
		binary.LittleEndian.PutUint32(buf[i*4:], v)
	}
	if err := mem.Write(uint32(addr), buf); err != nil {
		return StatusFault
	}
	return StatusOK
}

func load32(mem nativecoll.Memory, addr nativecoll.Ptr) (uint32, Status) {
	v, err := mem.ReadU32(uint32(addr))
	if err != nil {
		return 0, StatusFault
	}
	return v, StatusOK
}

func store32(mem nativecoll.Memory, addr nativecoll.Ptr, v uint32) Status {
	if err := mem.WriteU32(uint32(addr), v); err != nil {
		return StatusFault
	}
	return StatusOK
}
