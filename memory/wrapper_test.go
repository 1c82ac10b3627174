package memory

import (
	"bytes"
	"context"
	"testing"

	"github.com/tetratelabs/wazero"
)

// memoryWASM is a minimal WASM module with 1 page of memory exported as "memory"
var memoryWASM = []byte{
	0x00, 0x61, 0x73, 0x6d, // magic
	0x01, 0x00, 0x00, 0x00, // version
	0x05, 0x03, 0x01, 0x00, 0x01, // memory section: 1 page, no max
	0x07, 0x0a, 0x01, // export section: 10 bytes, 1 export
	0x06, 0x6d, 0x65, 0x6d, 0x6f, 0x72, 0x79, // name: "memory" (6 bytes + string)
	0x02, 0x00, // kind: memory, index 0
}

func newWrapper(t *testing.T, wasm []byte) *Wrapper {
	t.Helper()
	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	t.Cleanup(func() { rt.Close(ctx) })

	mod, err := rt.InstantiateWithConfig(ctx, wasm, wazero.NewModuleConfig())
	if err != nil {
		t.Fatalf("failed to instantiate: %v", err)
	}

	mem := WrapMemory(mod.ExportedMemory(ExportName))
	if mem == nil {
		t.Fatal("expected non-nil wrapped memory")
	}
	return mem
}

func TestModule_MatchesHandAssembled(t *testing.T) {
	if got := Module(1, 0); !bytes.Equal(got, memoryWASM) {
		t.Fatalf("Module(1, 0) = %x, want %x", got, memoryWASM)
	}
}

func TestModule_WithMax(t *testing.T) {
	mem := newWrapper(t, Module(1, 2))

	if _, err := mem.Grow(1); err != nil {
		t.Fatalf("grow to max failed: %v", err)
	}
	if _, err := mem.Grow(1); err == nil {
		t.Fatal("expected grow past max to fail")
	}
	if mem.Size() != 2*65536 {
		t.Errorf("expected 2 pages, got %d bytes", mem.Size())
	}
}

func TestModule_LargeLimits(t *testing.T) {
	// 300 needs two LEB128 bytes
	mem := newWrapper(t, Module(300, 0))
	if mem.Size() != 300*65536 {
		t.Errorf("expected 300 pages, got %d bytes", mem.Size())
	}
}

func TestWrapMemory_Nil(t *testing.T) {
	if WrapMemory(nil) != nil {
		t.Error("expected nil for nil memory")
	}
}

func TestWrapper_ReadWrite(t *testing.T) {
	mem := newWrapper(t, memoryWASM)

	data := []byte{1, 2, 3, 4}
	if err := mem.Write(0, data); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	read, err := mem.Read(0, 4)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if !bytes.Equal(read, data) {
		t.Errorf("expected %v, got %v", data, read)
	}
}

func TestWrapper_OutOfBounds(t *testing.T) {
	mem := newWrapper(t, memoryWASM)

	if _, err := mem.Read(65536, 1); err == nil {
		t.Error("expected error for out of bounds read")
	}
	if err := mem.Write(65536, []byte{1}); err == nil {
		t.Error("expected error for out of bounds write")
	}
	if err := mem.Copy(65530, 0, 10); err == nil {
		t.Error("expected error for out of bounds copy")
	}
	if err := mem.Fill(65530, 10, 0); err == nil {
		t.Error("expected error for out of bounds fill")
	}
}

func TestWrapper_CopyOverlap(t *testing.T) {
	mem := newWrapper(t, memoryWASM)

	if err := mem.Write(100, []byte{1, 2, 3, 4, 5}); err != nil {
		t.Fatal(err)
	}

	// shift right by two
	if err := mem.Copy(102, 100, 5); err != nil {
		t.Fatalf("Copy failed: %v", err)
	}
	got, _ := mem.Read(100, 7)
	if want := []byte{1, 2, 1, 2, 3, 4, 5}; !bytes.Equal(got, want) {
		t.Fatalf("right shift: got %v, want %v", got, want)
	}

	// shift left by three
	if err := mem.Copy(100, 103, 4); err != nil {
		t.Fatalf("Copy failed: %v", err)
	}
	got, _ = mem.Read(100, 4)
	if want := []byte{2, 3, 4, 5}; !bytes.Equal(got, want) {
		t.Fatalf("left shift: got %v, want %v", got, want)
	}
}

func TestWrapper_Fill(t *testing.T) {
	mem := newWrapper(t, memoryWASM)

	if err := mem.Fill(10, 4, 0xAB); err != nil {
		t.Fatal(err)
	}
	got, _ := mem.Read(10, 4)
	if !bytes.Equal(got, []byte{0xAB, 0xAB, 0xAB, 0xAB}) {
		t.Fatalf("unexpected fill: %x", got)
	}
	if err := mem.Fill(10, 4, 0); err != nil {
		t.Fatal(err)
	}
	got, _ = mem.Read(10, 4)
	if !bytes.Equal(got, make([]byte, 4)) {
		t.Fatalf("unexpected clear: %x", got)
	}
}

func TestWrapper_GrowKeepsContents(t *testing.T) {
	mem := newWrapper(t, memoryWASM)

	if err := mem.WriteU32(60000, 0xCAFEBABE); err != nil {
		t.Fatal(err)
	}
	prev, err := mem.Grow(3)
	if err != nil {
		t.Fatalf("Grow failed: %v", err)
	}
	if prev != 1 {
		t.Errorf("expected previous size 1 page, got %d", prev)
	}
	v, err := mem.ReadU32(60000)
	if err != nil || v != 0xCAFEBABE {
		t.Fatalf("contents lost across grow: %x, %v", v, err)
	}
	if err := mem.WriteU8(4*65536-1, 7); err != nil {
		t.Fatalf("write into grown region failed: %v", err)
	}
}

func TestWrapper_IntegerReadWrite(t *testing.T) {
	mem := newWrapper(t, memoryWASM)

	if err := mem.WriteU8(0, 42); err != nil {
		t.Fatalf("WriteU8 failed: %v", err)
	}
	v8, err := mem.ReadU8(0)
	if err != nil || v8 != 42 {
		t.Errorf("ReadU8: expected 42, got %d (%v)", v8, err)
	}

	if err := mem.WriteU16(0, 0x1234); err != nil {
		t.Fatalf("WriteU16 failed: %v", err)
	}
	v16, err := mem.ReadU16(0)
	if err != nil || v16 != 0x1234 {
		t.Errorf("ReadU16: expected 0x1234, got 0x%x (%v)", v16, err)
	}

	if err := mem.WriteU32(0, 0x12345678); err != nil {
		t.Fatalf("WriteU32 failed: %v", err)
	}
	v32, err := mem.ReadU32(0)
	if err != nil || v32 != 0x12345678 {
		t.Errorf("ReadU32: expected 0x12345678, got 0x%x (%v)", v32, err)
	}

	if err := mem.WriteU64(0, 0x123456789ABCDEF0); err != nil {
		t.Fatalf("WriteU64 failed: %v", err)
	}
	v64, err := mem.ReadU64(0)
	if err != nil || v64 != 0x123456789ABCDEF0 {
		t.Errorf("ReadU64: expected 0x123456789ABCDEF0, got 0x%x (%v)", v64, err)
	}
}
