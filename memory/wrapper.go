package memory

import (
	"fmt"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/nativecoll"
)

// ExportName is the export under which the memory-only module exposes its memory.
const ExportName = "memory"

// WrapMemory wraps a wazero api.Memory to implement nativecoll.LinearMemory.
func WrapMemory(mem api.Memory) *Wrapper {
	if mem == nil {
		return nil
	}
	return &Wrapper{Mem: mem}
}

// Wrapper adapts wazero api.Memory to the nativecoll memory interfaces.
type Wrapper struct {
	Mem api.Memory
}

var _ nativecoll.LinearMemory = (*Wrapper)(nil)

// Size returns the current memory size in bytes.
func (m *Wrapper) Size() uint32 {
	return m.Mem.Size()
}

// Grow extends the memory by deltaPages and returns the previous page count.
func (m *Wrapper) Grow(deltaPages uint32) (uint32, error) {
	prev, ok := m.Mem.Grow(deltaPages)
	if !ok {
		return 0, fmt.Errorf("memory grow failed: delta=%d pages, size=%d bytes", deltaPages, m.Mem.Size())
	}
	return prev, nil
}

// Read returns a view of length bytes at offset.
func (m *Wrapper) Read(offset uint32, length uint32) ([]byte, error) {
	data, ok := m.Mem.Read(offset, length)
	if !ok {
		return nil, fmt.Errorf("memory read out of bounds: offset=%d, length=%d", offset, length)
	}
	return data, nil
}

// Write writes bytes to memory.
func (m *Wrapper) Write(offset uint32, data []byte) error {
	if !m.Mem.Write(offset, data) {
		return fmt.Errorf("memory write out of bounds: offset=%d, length=%d", offset, len(data))
	}
	return nil
}

// Copy moves length bytes from src to dst with memmove semantics.
func (m *Wrapper) Copy(dst, src, length uint32) error {
	if length == 0 {
		return nil
	}
	lo, hi := src, dst
	if dst < src {
		lo, hi = dst, src
	}
	span := uint64(hi) - uint64(lo) + uint64(length)
	if span > uint64(m.Mem.Size()) {
		return fmt.Errorf("memory copy out of bounds: dst=%d, src=%d, length=%d", dst, src, length)
	}
	view, ok := m.Mem.Read(lo, uint32(span))
	if !ok {
		return fmt.Errorf("memory copy out of bounds: dst=%d, src=%d, length=%d", dst, src, length)
	}
	copy(view[dst-lo:dst-lo+length], view[src-lo:src-lo+length])
	return nil
}

// Fill sets length bytes at offset to b.
func (m *Wrapper) Fill(offset, length uint32, b byte) error {
	view, ok := m.Mem.Read(offset, length)
	if !ok {
		return fmt.Errorf("memory fill out of bounds: offset=%d, length=%d", offset, length)
	}
	if b == 0 {
		clear(view)
		return nil
	}
	for i := range view {
		view[i] = b
	}
	return nil
}

// ReadU8 reads an unsigned 8-bit value.
func (m *Wrapper) ReadU8(offset uint32) (uint8, error) {
	v, ok := m.Mem.ReadByte(offset)
	if !ok {
		return 0, fmt.Errorf("memory read out of bounds: offset=%d", offset)
	}
	return v, nil
}

// ReadU16 reads an unsigned 16-bit little-endian value.
func (m *Wrapper) ReadU16(offset uint32) (uint16, error) {
	v, ok := m.Mem.ReadUint16Le(offset)
	if !ok {
		return 0, fmt.Errorf("memory read out of bounds: offset=%d", offset)
	}
	return v, nil
}

// ReadU32 reads an unsigned 32-bit little-endian value.
func (m *Wrapper) ReadU32(offset uint32) (uint32, error) {
	v, ok := m.Mem.ReadUint32Le(offset)
	if !ok {
		return 0, fmt.Errorf("memory read out of bounds: offset=%d", offset)
	}
	return v, nil
}

// ReadU64 reads an unsigned 64-bit little-endian value.
func (m *Wrapper) ReadU64(offset uint32) (uint64, error) {
	v, ok := m.Mem.ReadUint64Le(offset)
	if !ok {
		return 0, fmt.Errorf("memory read out of bounds: offset=%d", offset)
	}
	return v, nil
}

// WriteU8 writes an unsigned 8-bit value.
func (m *Wrapper) WriteU8(offset uint32, value uint8) error {
	if !m.Mem.WriteByte(offset, value) {
		return fmt.Errorf("memory write out of bounds: offset=%d", offset)
	}
	return nil
}

// WriteU16 writes an unsigned 16-bit little-endian value.
func (m *Wrapper) WriteU16(offset uint32, value uint16) error {
	if !m.Mem.WriteUint16Le(offset, value) {
		return fmt.Errorf("memory write out of bounds: offset=%d", offset)
	}
	return nil
}

// WriteU32 writes an unsigned 32-bit little-endian value.
func (m *Wrapper) WriteU32(offset uint32, value uint32) error {
	if !m.Mem.WriteUint32Le(offset, value) {
		return fmt.Errorf("memory write out of bounds: offset=%d", offset)
	}
	return nil
}

// WriteU64 writes an unsigned 64-bit little-endian value.
func (m *Wrapper) WriteU64(offset uint32, value uint64) error {
	if !m.Mem.WriteUint64Le(offset, value) {
		return fmt.Errorf("memory write out of bounds: offset=%d", offset)
	}
	return nil
}
