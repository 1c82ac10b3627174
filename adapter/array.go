package adapter

import (
	"github.com/wippyai/nativecoll"
	"github.com/wippyai/nativecoll/errors"
	"github.com/wippyai/nativecoll/internal/abi"
	"github.com/wippyai/nativecoll/native"
	"github.com/wippyai/nativecoll/transcoder"
)

// Array is a resizable sequence over a native array of fixed-size elements.
type Array[T any] struct {
	region
	elem transcoder.Elem[T]
	hdr  nativecoll.Ptr
}

// NewArray creates an empty array with room for capacity elements in a new
// pool.
func NewArray[T any](rt *native.Runtime, elem transcoder.Elem[T], capacity int) (*Array[T], error) {
	n, ok := abi.ToU32(capacity)
	if !ok {
		return nil, errors.InvalidInput(errors.PhaseArray, "capacity out of range")
	}
	reg, err := ownedRegion(rt, errors.PhaseArray, "array")
	if err != nil {
		return nil, err
	}
	hdr, st := rt.ArrayMake(reg.pool, n, elem.Size())
	if st != native.StatusOK {
		reg.release()
		return nil, statusErr(errors.PhaseArray, "array_make", st)
	}
	return &Array[T]{region: reg, elem: elem, hdr: hdr}, nil
}

// AttachArray borrows the native array at hdr without copying it. The
// element size must match the array's.
func AttachArray[T any](rt *native.Runtime, elem transcoder.Elem[T], hdr nativecoll.Ptr) (*Array[T], error) {
	h, st := rt.ReadArrayHeader(hdr)
	if st != native.StatusOK {
		return nil, statusErr(errors.PhaseArray, "attach", st)
	}
	if h.EltSize != elem.Size() {
		return nil, errors.TypeConsistency(errors.PhaseArray, elem.Name(), elem.Size(), h.EltSize)
	}
	p, ok := rt.Allocator().Lookup(h.Pool)
	if !ok {
		return nil, errors.PoolDestroyed(errors.PhaseArray, "attach", nil)
	}
	return &Array[T]{region: newRegion(rt, p, Borrowed), elem: elem, hdr: hdr}, nil
}

// CopyArray copies src's backing storage into a new pool. The copy is
// independent of src. Elements that are pointers still point where the
// originals did.
func CopyArray[T any](src *Array[T]) (*Array[T], error) {
	if err := src.check(errors.PhaseArray, "copy"); err != nil {
		return nil, err
	}
	reg, err := ownedRegion(src.rt, errors.PhaseArray, "array")
	if err != nil {
		return nil, err
	}
	hdr, st := src.rt.ArrayCopy(reg.pool, src.hdr)
	if st != native.StatusOK {
		reg.release()
		return nil, statusErr(errors.PhaseArray, "array_copy", st)
	}
	return &Array[T]{region: reg, elem: src.elem, hdr: hdr}, nil
}

// ArrayOf creates an array holding items, sized to fit them exactly.
func ArrayOf[T any](rt *native.Runtime, elem transcoder.Elem[T], items []T) (*Array[T], error) {
	a, err := NewArray(rt, elem, len(items))
	if err != nil {
		return nil, err
	}
	if err := a.Append(items...); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *Array[T]) header(op string) (native.ArrayHeader, error) {
	if err := a.check(errors.PhaseArray, op); err != nil {
		return native.ArrayHeader{}, err
	}
	h, st := a.rt.ReadArrayHeader(a.hdr)
	if st != native.StatusOK {
		return native.ArrayHeader{}, statusErr(errors.PhaseArray, op, st)
	}
	return h, nil
}

// Len returns the element count, or 0 once the pool is gone; see
// Alive.
func (a *Array[T]) Len() int {
	h, err := a.header("len")
	if err != nil {
		return 0
	}
	return int(h.Nelts)
}

// Cap returns the number of elements the array holds before relocating.
func (a *Array[T]) Cap() int {
	h, err := a.header("cap")
	if err != nil {
		return 0
	}
	return int(h.Nalloc)
}

// Get returns element i.
func (a *Array[T]) Get(i int) (T, error) {
	var zero T
	h, err := a.header("get")
	if err != nil {
		return zero, err
	}
	if i < 0 || i >= int(h.Nelts) {
		return zero, errors.OutOfBounds(errors.PhaseArray, "get", i, int(h.Nelts))
	}
	src, err := a.rt.Memory().Read(uint32(h.Elem(uint32(i))), h.EltSize)
	if err != nil {
		return zero, errors.New(errors.PhaseArray, errors.KindNativeCall).Op("get").Cause(err).Build()
	}
	return a.elem.Decode(a.rt.Memory(), src)
}

// Set replaces element i.
func (a *Array[T]) Set(i int, v T) error {
	h, err := a.header("set")
	if err != nil {
		return err
	}
	if i < 0 || i >= int(h.Nelts) {
		return errors.OutOfBounds(errors.PhaseArray, "set", i, int(h.Nelts))
	}
	b, err := a.elem.Encode(a.pool, v)
	if err != nil {
		return err
	}
	// encoding may have allocated; the header address is stable but the
	// element buffer is re-read
	if h, err = a.header("set"); err != nil {
		return err
	}
	return a.write(h.Elem(uint32(i)), b, "set")
}

func (a *Array[T]) write(at nativecoll.Ptr, b []byte, op string) error {
	if err := a.rt.Memory().Write(uint32(at), b); err != nil {
		return errors.New(errors.PhaseArray, errors.KindNativeCall).Op(op).Cause(err).Build()
	}
	return nil
}

func (a *Array[T]) move(h native.ArrayHeader, dst, src, n uint32) error {
	if n == 0 || dst == src {
		return nil
	}
	err := a.rt.Memory().Copy(uint32(h.Elem(dst)), uint32(h.Elem(src)), n*h.EltSize)
	if err != nil {
		return errors.New(errors.PhaseArray, errors.KindNativeCall).Op("assign_slice").Cause(err).Build()
	}
	return nil
}

// AssignSlice replaces elements [start, end) with items, growing or
// shrinking the array as needed. Afterwards [start, start+len(items)) reads
// back as items and the length has changed by len(items)-(end-start).
//
// Growth reserves the extra elements in one native step and may relocate
// the array. Items are encoded before the array is touched, so a failed
// encoding leaves it unchanged.
func (a *Array[T]) AssignSlice(start, end int, items []T) error {
	h, err := a.header("assign_slice")
	if err != nil {
		return err
	}
	length := int(h.Nelts)
	if start < 0 || start > end || end > length {
		return errors.RegionOutOfBounds(errors.PhaseArray, "assign_slice", start, end, length)
	}

	size := int(h.EltSize)
	encoded := make([]byte, 0, len(items)*size)
	for _, v := range items {
		b, err := a.elem.Encode(a.pool, v)
		if err != nil {
			return err
		}
		encoded = append(encoded, b...)
	}

	diff := len(items) - (end - start)
	switch {
	case diff > 0:
		if _, st := a.rt.ArrayPushN(a.hdr, uint32(diff)); st != native.StatusOK {
			return statusErr(errors.PhaseArray, "array_push", st)
		}
		// the push may have relocated the elements
		if h, err = a.header("assign_slice"); err != nil {
			return err
		}
		from := max(end-diff, 0)
		if err := a.move(h, uint32(from+diff), uint32(from), uint32(length-from)); err != nil {
			return err
		}
	case diff < 0:
		if err := a.move(h, uint32(end+diff), uint32(end), uint32(length-end)); err != nil {
			return err
		}
		for i := 0; i < -diff; i++ {
			if _, st := a.rt.ArrayPop(a.hdr); st != native.StatusOK {
				return statusErr(errors.PhaseArray, "array_pop", st)
			}
		}
	}

	if len(encoded) == 0 {
		return nil
	}
	return a.write(h.Elem(uint32(start)), encoded, "assign_slice")
}

// Append adds items at the end.
func (a *Array[T]) Append(items ...T) error {
	n := a.Len()
	return a.AssignSlice(n, n, items)
}

// Insert places v before index i. i may equal Len.
func (a *Array[T]) Insert(i int, v T) error {
	return a.AssignSlice(i, i, []T{v})
}

// Delete removes element i.
func (a *Array[T]) Delete(i int) error {
	n := a.Len()
	if i < 0 || i >= n {
		if err := a.check(errors.PhaseArray, "delete"); err != nil {
			return err
		}
		return errors.OutOfBounds(errors.PhaseArray, "delete", i, n)
	}
	return a.AssignSlice(i, i+1, nil)
}

// Slice returns a copy of elements [start, end).
func (a *Array[T]) Slice(start, end int) ([]T, error) {
	h, err := a.header("slice")
	if err != nil {
		return nil, err
	}
	if start < 0 || start > end || end > int(h.Nelts) {
		return nil, errors.RegionOutOfBounds(errors.PhaseArray, "slice", start, end, int(h.Nelts))
	}
	out := make([]T, 0, end-start)
	if start == end {
		return out, nil
	}
	mem := a.rt.Memory()
	view, err := mem.Read(uint32(h.Elem(uint32(start))), uint32(end-start)*h.EltSize)
	if err != nil {
		return nil, errors.New(errors.PhaseArray, errors.KindNativeCall).Op("slice").Cause(err).Build()
	}
	for i := 0; i < end-start; i++ {
		v, err := a.elem.Decode(mem, view[i*int(h.EltSize):(i+1)*int(h.EltSize)])
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Values returns a copy of every element.
func (a *Array[T]) Values() ([]T, error) {
	return a.Slice(0, a.Len())
}

// Clear removes every element, keeping capacity.
func (a *Array[T]) Clear() error {
	if err := a.check(errors.PhaseArray, "clear"); err != nil {
		return err
	}
	if st := a.rt.ArrayClear(a.hdr); st != native.StatusOK {
		return statusErr(errors.PhaseArray, "array_clear", st)
	}
	return nil
}

// Handle returns the native header address. Callers using it take on the
// pool lifetime and relocation rules themselves.
func (a *Array[T]) Handle() nativecoll.Ptr { return a.hdr }

// Close destroys an owned array's pool. A borrowed array is only detached.
func (a *Array[T]) Close() error {
	a.release()
	return nil
}
