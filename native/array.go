package native

import (
	"go.uber.org/zap"

	"github.com/wippyai/nativecoll"
	"github.com/wippyai/nativecoll/internal/abi"
	"github.com/wippyai/nativecoll/pool"
)

// ArrayHeaderSize is the size of a native array header.
const ArrayHeaderSize = 20

// ArrayHeader is a decoded native array header.
type ArrayHeader struct {
	Pool    pool.ID
	EltSize uint32
	Nelts   uint32
	Nalloc  uint32
	Elts    nativecoll.Ptr
}

// Elem returns the address of element i. It does not check bounds.
func (h ArrayHeader) Elem(i uint32) nativecoll.Ptr {
	return h.Elts + nativecoll.Ptr(i*h.EltSize)
}

// ReadArrayHeader decodes the header at hdr.
func (r *Runtime) ReadArrayHeader(hdr nativecoll.Ptr) (ArrayHeader, Status) {
	var f [5]uint32
	if st := readFields(r.mem, hdr, f[:]); st != StatusOK {
		return ArrayHeader{}, st
	}
	h := ArrayHeader{
		Pool:    pool.ID(f[0]),
		EltSize: f[1],
		Nelts:   f[2],
		Nalloc:  f[3],
		Elts:    nativecoll.Ptr(f[4]),
	}
	if h.EltSize == 0 || h.Nelts > h.Nalloc {
		return ArrayHeader{}, StatusBadArgument
	}
	return h, StatusOK
}

func (r *Runtime) writeArrayHeader(hdr nativecoll.Ptr, h ArrayHeader) Status {
	return writeFields(r.mem, hdr, uint32(h.Pool), h.EltSize, h.Nelts, h.Nalloc, uint32(h.Elts))
}

// ArrayMake allocates an empty array in p with room for nalloc elements of
// eltSize bytes. Capacity is at least one element.
func (r *Runtime) ArrayMake(p *pool.Pool, nalloc, eltSize uint32) (nativecoll.Ptr, Status) {
	if eltSize == 0 {
		return nativecoll.Null, StatusBadArgument
	}
	nalloc = max(nalloc, 1)
	bytes, ok := abi.SafeMulU32(nalloc, eltSize)
	if !ok {
		return nativecoll.Null, StatusNoMemory
	}

	elts, err := p.Calloc(bytes, 0)
	if err != nil {
		return nativecoll.Null, StatusOf(err)
	}
	hdr, err := p.Alloc(ArrayHeaderSize, 0)
	if err != nil {
		return nativecoll.Null, StatusOf(err)
	}
	st := r.writeArrayHeader(hdr, ArrayHeader{
		Pool:    p.ID(),
		EltSize: eltSize,
		Nalloc:  nalloc,
		Elts:    elts,
	})
	if st != StatusOK {
		return nativecoll.Null, st
	}
	return hdr, StatusOK
}

// ArrayPush appends one zeroed element and returns its address.
func (r *Runtime) ArrayPush(hdr nativecoll.Ptr) (nativecoll.Ptr, Status) {
	return r.ArrayPushN(hdr, 1)
}

// ArrayPushN appends n zeroed elements in a single step and returns the
// address of the first. When capacity runs out the elements are moved to a
// new buffer of max(2*nalloc, nelts+n) elements allocated from the array's
// pool.
func (r *Runtime) ArrayPushN(hdr nativecoll.Ptr, n uint32) (nativecoll.Ptr, Status) {
	h, st := r.ReadArrayHeader(hdr)
	if st != StatusOK {
		return nativecoll.Null, st
	}
	need, ok := abi.SafeAddU32(h.Nelts, n)
	if !ok {
		return nativecoll.Null, StatusNoMemory
	}

	if need > h.Nalloc {
		if st := r.arrayGrow(hdr, &h, need); st != StatusOK {
			return nativecoll.Null, st
		}
	}

	first := h.Elem(h.Nelts)
	if n > 0 {
		if err := r.mem.Fill(uint32(first), n*h.EltSize, 0); err != nil {
			return nativecoll.Null, StatusFault
		}
	}
	h.Nelts = need
	if st := r.writeArrayHeader(hdr, h); st != StatusOK {
		return nativecoll.Null, st
	}
	return first, StatusOK
}

func (r *Runtime) arrayGrow(hdr nativecoll.Ptr, h *ArrayHeader, need uint32) Status {
	p, st := r.owner(uint32(h.Pool))
	if st != StatusOK {
		return st
	}

	nalloc := need
	if double, ok := abi.SafeMulU32(h.Nalloc, 2); ok && double > nalloc {
		nalloc = double
	}
	bytes, ok := abi.SafeMulU32(nalloc, h.EltSize)
	if !ok {
		return StatusNoMemory
	}
	elts, err := p.Alloc(bytes, 0)
	if err != nil {
		return StatusOf(err)
	}
	used := h.Nelts * h.EltSize
	if err := r.mem.Copy(uint32(elts), uint32(h.Elts), used); err != nil {
		return StatusFault
	}

	r.log.Debug("array relocated",
		zap.Uint32("header", uint32(hdr)),
		zap.Uint32("from", uint32(h.Elts)),
		zap.Uint32("to", uint32(elts)),
		zap.Uint32("nalloc", nalloc))

	h.Elts = elts
	h.Nalloc = nalloc
	return StatusOK
}

// ArrayPop removes the last element and returns its address, which stays
// readable until the next push. Popping an empty array returns Null.
func (r *Runtime) ArrayPop(hdr nativecoll.Ptr) (nativecoll.Ptr, Status) {
	h, st := r.ReadArrayHeader(hdr)
	if st != StatusOK {
		return nativecoll.Null, st
	}
	if h.Nelts == 0 {
		return nativecoll.Null, StatusOK
	}
	h.Nelts--
	if st := r.writeArrayHeader(hdr, h); st != StatusOK {
		return nativecoll.Null, st
	}
	return h.Elem(h.Nelts), StatusOK
}

// ArrayClear sets the element count to zero, keeping capacity.
func (r *Runtime) ArrayClear(hdr nativecoll.Ptr) Status {
	h, st := r.ReadArrayHeader(hdr)
	if st != StatusOK {
		return st
	}
	h.Nelts = 0
	return r.writeArrayHeader(hdr, h)
}

// ArrayCopy duplicates the array into p with the same capacity. Unused
// capacity in the copy is zeroed.
func (r *Runtime) ArrayCopy(p *pool.Pool, hdr nativecoll.Ptr) (nativecoll.Ptr, Status) {
	h, st := r.ReadArrayHeader(hdr)
	if st != StatusOK {
		return nativecoll.Null, st
	}
	dst, st := r.ArrayMake(p, h.Nalloc, h.EltSize)
	if st != StatusOK {
		return nativecoll.Null, st
	}
	c, st := r.ReadArrayHeader(dst)
	if st != StatusOK {
		return nativecoll.Null, st
	}
	if err := r.mem.Copy(uint32(c.Elts), uint32(h.Elts), h.Nelts*h.EltSize); err != nil {
		return nativecoll.Null, StatusFault
	}
	c.Nelts = h.Nelts
	if st := r.writeArrayHeader(dst, c); st != StatusOK {
		return nativecoll.Null, st
	}
	return dst, StatusOK
}
