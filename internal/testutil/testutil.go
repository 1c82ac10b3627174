// Package testutil builds live native memory for tests.
package testutil

import (
	"context"
	"testing"

	"github.com/tetratelabs/wazero"

	"github.com/wippyai/nativecoll/memory"
)

// NewMemory instantiates a memory-only module and returns its wrapped memory.
// The wazero runtime is closed when the test ends.
func NewMemory(tb testing.TB, initialPages, maxPages uint32) *memory.Wrapper {
	tb.Helper()
	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	tb.Cleanup(func() { _ = rt.Close(ctx) })

	mod, err := rt.InstantiateWithConfig(ctx, memory.Module(initialPages, maxPages), wazero.NewModuleConfig())
	if err != nil {
		tb.Fatalf("failed to instantiate memory module: %v", err)
	}
	mem := memory.WrapMemory(mod.ExportedMemory(memory.ExportName))
	if mem == nil {
		tb.Fatal("memory module exports no memory")
	}
	return mem
}
