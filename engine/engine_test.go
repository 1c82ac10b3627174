package engine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wippyai/nativecoll"
	"github.com/wippyai/nativecoll/config"
	"github.com/wippyai/nativecoll/native"
	"github.com/wippyai/nativecoll/pool"
	"github.com/wippyai/nativecoll/resource"
)

func TestNew_Defaults(t *testing.T) {
	ctx := context.Background()
	eng, err := New(ctx, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer eng.Close(ctx)

	if eng.Memory().Size() != nativecoll.PageSize {
		t.Fatalf("expected one page, got %d bytes", eng.Memory().Size())
	}
	if eng.Native().Allocator() != eng.Allocator() {
		t.Fatal("native runtime uses another allocator")
	}

	p, err := eng.Allocator().Create(nil, "t")
	if err != nil {
		t.Fatal(err)
	}
	hdr, st := eng.Native().ArrayMake(p, 4, 4)
	if st != native.StatusOK || hdr == nativecoll.Null {
		t.Fatalf("ArrayMake = %d, %v", hdr, st)
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Memory.InitialPages = 0
	if _, err := New(context.Background(), cfg); err == nil {
		t.Fatal("expected invalid config to fail")
	}
}

func TestEngine_MemoryLimit(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.Memory.MaxPages = 4

	eng, err := New(ctx, cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer eng.Close(ctx)

	p, _ := eng.Allocator().Create(nil, "big")
	if _, err := p.Alloc(8*nativecoll.PageSize, 0); !errors.Is(err, pool.ErrOutOfMemory) {
		t.Fatalf("expected ErrOutOfMemory, got %v", err)
	}
}

func TestEngine_Metrics(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.Metrics.Enabled = true
	cfg.Metrics.Namespace = "enginetest"

	reg := prometheus.NewRegistry()
	eng, err := New(ctx, cfg, WithRegisterer(reg))
	if err != nil {
		t.Fatal(err)
	}
	defer eng.Close(ctx)

	if _, err := eng.Allocator().Create(nil, "p"); err != nil {
		t.Fatal(err)
	}
	n, err := testutil.GatherAndCount(reg, "enginetest_pool_live")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected the live pool gauge to be registered, got %d series", n)
	}

	if _, err := eng.Native().Batons().Insert(resource.TypeStreamBaton, "state"); err != nil {
		t.Fatal(err)
	}
	want := `
# HELP enginetest_baton_live Go values reachable from native callbacks, by kind.
# TYPE enginetest_baton_live gauge
enginetest_baton_live{type="stream-baton"} 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(want), "enginetest_baton_live"); err != nil {
		t.Fatal(err)
	}

	// a second engine on the same registry collides
	if _, err := New(ctx, cfg, WithRegisterer(reg)); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}
}

func TestEngine_Logger(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zap.DebugLevel)

	eng, err := New(ctx, nil, WithLogger(zap.New(core)))
	if err != nil {
		t.Fatal(err)
	}
	p, _ := eng.Allocator().Create(nil, "logged")
	p.Destroy()
	if err := eng.Close(ctx); err != nil {
		t.Fatal(err)
	}

	if logs.FilterMessage("engine started").Len() != 1 {
		t.Error("missing engine start log")
	}
	if logs.FilterMessage("pool destroyed").FilterField(zap.String("tag", "logged")).Len() != 1 {
		t.Error("missing pool log")
	}
	if logs.FilterLoggerName("pool").Len() == 0 {
		t.Error("pool logs not named")
	}
}

func TestSetLogger(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	SetLogger(zap.New(core))
	defer SetLogger(nil)

	ctx := context.Background()
	eng, err := New(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	eng.Close(ctx)

	if logs.FilterMessage("engine closed").Len() != 1 {
		t.Fatal("package logger not used")
	}
}

func TestEngine_CloseDestroysPools(t *testing.T) {
	ctx := context.Background()
	eng, err := New(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	p, _ := eng.Allocator().Create(nil, "p")

	if err := eng.Close(ctx); err != nil {
		t.Fatal(err)
	}
	if p.Alive() {
		t.Fatal("pool survived engine close")
	}
	if err := eng.Close(ctx); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
