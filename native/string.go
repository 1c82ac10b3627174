package native

import (
	"bytes"

	"github.com/wippyai/nativecoll"
)

// StringRecordSize is the size of a string record.
const StringRecordSize = 8

// StringNCreate allocates a string record holding an exact copy of data. The
// bytes are followed by a NUL that readers never consult, so data may
// contain zero bytes.
func StringNCreate(a nativecoll.Allocator, data []byte) (nativecoll.Ptr, Status) {
	n := uint32(len(data))
	if uint64(len(data)) != uint64(n) || n == ^uint32(0) {
		return nativecoll.Null, StatusNoMemory
	}
	buf, err := a.Alloc(n+1, 1)
	if err != nil {
		return nativecoll.Null, StatusOf(err)
	}
	mem := a.Memory()
	if err := mem.Write(uint32(buf), data); err != nil {
		return nativecoll.Null, StatusFault
	}
	if err := mem.WriteU8(uint32(buf)+n, 0); err != nil {
		return nativecoll.Null, StatusFault
	}

	rec, err := a.Alloc(StringRecordSize, 0)
	if err != nil {
		return nativecoll.Null, StatusOf(err)
	}
	if st := writeFields(mem, rec, uint32(buf), n); st != StatusOK {
		return nativecoll.Null, st
	}
	return rec, StatusOK
}

// StringRead returns a copy of exactly the record's length in bytes.
func StringRead(mem nativecoll.Memory, rec nativecoll.Ptr) ([]byte, Status) {
	var f [2]uint32
	if st := readFields(mem, rec, f[:]); st != StatusOK {
		return nil, st
	}
	if f[1] == 0 {
		return []byte{}, StatusOK
	}
	view, err := mem.Read(f[0], f[1])
	if err != nil {
		return nil, StatusFault
	}
	return bytes.Clone(view), StatusOK
}

// StringDup copies the record at rec into a.
func StringDup(a nativecoll.Allocator, rec nativecoll.Ptr) (nativecoll.Ptr, Status) {
	data, st := StringRead(a.Memory(), rec)
	if st != StatusOK {
		return nativecoll.Null, st
	}
	return StringNCreate(a, data)
}

// CStringCreate allocates s as a NUL-terminated string. s must not contain
// NUL.
func CStringCreate(a nativecoll.Allocator, s string) (nativecoll.Ptr, Status) {
	if bytes.IndexByte([]byte(s), 0) >= 0 {
		return nativecoll.Null, StatusBadArgument
	}
	n := uint32(len(s))
	ptr, err := a.Alloc(n+1, 1)
	if err != nil {
		return nativecoll.Null, StatusOf(err)
	}
	mem := a.Memory()
	if err := mem.Write(uint32(ptr), append([]byte(s), 0)); err != nil {
		return nativecoll.Null, StatusFault
	}
	return ptr, StatusOK
}

// CStringRead reads the NUL-terminated string at ptr.
func CStringRead(mem nativecoll.Memory, ptr nativecoll.Ptr) (string, Status) {
	if ptr == nativecoll.Null {
		return "", StatusBadArgument
	}
	sizer, ok := mem.(nativecoll.MemorySizer)
	if !ok {
		return "", StatusFault
	}
	size := sizer.Size()
	if uint32(ptr) >= size {
		return "", StatusFault
	}
	view, err := mem.Read(uint32(ptr), size-uint32(ptr))
	if err != nil {
		return "", StatusFault
	}
	end := bytes.IndexByte(view, 0)
	if end < 0 {
		return "", StatusFault
	}
	return string(view[:end]), StatusOK
}
