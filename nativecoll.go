package nativecoll

// Ptr is an address in native memory. Null (0) never refers to an allocation.
type Ptr uint32

// Null is the native NULL pointer.
const Null Ptr = 0

// PageSize is the granularity of native memory growth.
const PageSize = 65536

// Memory represents native memory.
//
// Slices returned by Read are views into the live backing buffer. They are
// invalidated by any growth of the memory and must not be retained across a
// call that may allocate.
type Memory interface {
	Read(offset uint32, length uint32) ([]byte, error)
	Write(offset uint32, data []byte) error
	ReadU8(offset uint32) (uint8, error)
	ReadU16(offset uint32) (uint16, error)
	ReadU32(offset uint32) (uint32, error)
	ReadU64(offset uint32) (uint64, error)
	WriteU8(offset uint32, value uint8) error
	WriteU16(offset uint32, value uint16) error
	WriteU32(offset uint32, value uint32) error
	WriteU64(offset uint32, value uint64) error

	// Copy moves length bytes from src to dst. Overlapping regions are
	// handled like memmove.
	Copy(dst, src, length uint32) error

	// Fill sets length bytes starting at offset to b.
	Fill(offset, length uint32, b byte) error
}

// MemorySizer provides the current size of native memory in bytes.
type MemorySizer interface {
	Size() uint32
}

// MemoryGrower extends native memory by whole pages. Growth may move the
// backing buffer; it returns the previous size in pages.
type MemoryGrower interface {
	Grow(deltaPages uint32) (uint32, error)
}

// LinearMemory is a growable native memory.
type LinearMemory interface {
	Memory
	MemorySizer
	MemoryGrower
}

// Allocator hands out native memory that stays valid until its owner is
// released. Individual allocations are never freed.
type Allocator interface {
	Alloc(size, align uint32) (Ptr, error)
	Memory() Memory
}
