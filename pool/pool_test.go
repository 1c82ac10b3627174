package pool

import (
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/wippyai/nativecoll"
	nctest "github.com/wippyai/nativecoll/internal/testutil"
	"github.com/wippyai/nativecoll/resource"
)

func newAllocator(t *testing.T, opts ...Option) *Allocator {
	t.Helper()
	return NewAllocator(nctest.NewMemory(t, 1, 256), opts...)
}

func TestPool_AllocAlignmentAndDistinct(t *testing.T) {
	a := newAllocator(t)
	p, err := a.Create(nil, "t")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	defer p.Destroy()

	seen := map[nativecoll.Ptr]bool{}
	for _, size := range []uint32{0, 1, 7, 8, 9, 100} {
		ptr, err := p.Alloc(size, 0)
		if err != nil {
			t.Fatalf("Alloc(%d) failed: %v", size, err)
		}
		if ptr == nativecoll.Null {
			t.Fatalf("Alloc(%d) returned Null", size)
		}
		if ptr%DefaultAlign != 0 {
			t.Errorf("Alloc(%d) = %d, not aligned", size, ptr)
		}
		if seen[ptr] {
			t.Errorf("Alloc(%d) reused address %d", size, ptr)
		}
		seen[ptr] = true
	}

	ptr, err := p.Alloc(3, 64)
	if err != nil {
		t.Fatalf("Alloc with align 64 failed: %v", err)
	}
	if ptr%64 != 0 {
		t.Errorf("expected 64-byte alignment, got %d", ptr)
	}

	if _, err := p.Alloc(8, 3); !errors.Is(err, ErrBadAlign) {
		t.Errorf("expected ErrBadAlign, got %v", err)
	}
}

func TestPool_CallocZeroes(t *testing.T) {
	a := newAllocator(t)
	p, _ := a.Create(nil, "t")
	defer p.Destroy()

	ptr, _ := p.Alloc(16, 0)
	if err := a.Memory().Fill(uint32(ptr), 16, 0xFF); err != nil {
		t.Fatal(err)
	}
	if err := p.Clear(); err != nil {
		t.Fatal(err)
	}

	// same block is reused after Clear
	ptr2, err := p.Calloc(16, 0)
	if err != nil {
		t.Fatalf("Calloc failed: %v", err)
	}
	data, _ := a.Memory().Read(uint32(ptr2), 16)
	for i, b := range data {
		if b != 0 {
			t.Fatalf("byte %d not zeroed: %x", i, b)
		}
	}
}

func TestPool_LargeAllocGrowsMemory(t *testing.T) {
	a := newAllocator(t)
	p, _ := a.Create(nil, "big")
	defer p.Destroy()

	before := a.Memory().Size()
	ptr, err := p.Alloc(3*nativecoll.PageSize, 0)
	if err != nil {
		t.Fatalf("Alloc failed: %v", err)
	}
	if a.Memory().Size() <= before {
		t.Fatalf("expected memory growth, size stayed %d", before)
	}
	if err := a.Memory().WriteU8(uint32(ptr)+3*nativecoll.PageSize-1, 1); err != nil {
		t.Fatalf("last byte of allocation not writable: %v", err)
	}
}

func TestPool_OutOfMemory(t *testing.T) {
	a := NewAllocator(nctest.NewMemory(t, 1, 2))
	p, _ := a.Create(nil, "oom")
	defer p.Destroy()

	if _, err := p.Alloc(4*nativecoll.PageSize, 0); !errors.Is(err, ErrOutOfMemory) {
		t.Fatalf("expected ErrOutOfMemory, got %v", err)
	}
}

func TestPool_DestroyInvalidatesRef(t *testing.T) {
	a := newAllocator(t)
	p, _ := a.Create(nil, "t")
	ref := p.Ref()

	if !a.Valid(ref) {
		t.Fatal("fresh ref must be valid")
	}
	p.Destroy()
	if a.Valid(ref) {
		t.Fatal("ref valid after destroy")
	}
	if p.Alive() {
		t.Fatal("pool alive after destroy")
	}
	if err := a.Check(ref); !errors.Is(err, ErrDestroyed) {
		t.Fatalf("expected ErrDestroyed, got %v", err)
	}
	if _, err := p.Alloc(8, 0); !errors.Is(err, ErrDestroyed) {
		t.Fatalf("expected ErrDestroyed from Alloc, got %v", err)
	}

	// destroying twice is harmless
	p.Destroy()

	// the slot is reused with a new generation
	q, _ := a.Create(nil, "t2")
	defer q.Destroy()
	if q.ID() != ref.ID {
		t.Fatalf("expected slot %d to be reused, got %d", ref.ID, q.ID())
	}
	if a.Valid(ref) {
		t.Fatal("stale ref validated against reused slot")
	}
}

func TestPool_ClearInvalidatesRef(t *testing.T) {
	a := newAllocator(t)
	p, _ := a.Create(nil, "t")
	defer p.Destroy()

	ref := p.Ref()
	if err := p.Clear(); err != nil {
		t.Fatal(err)
	}
	if a.Valid(ref) {
		t.Fatal("ref valid after clear")
	}
	if !p.Alive() {
		t.Fatal("pool must stay alive after clear")
	}
	if p.Used() != 0 {
		t.Fatalf("expected no usage after clear, got %d", p.Used())
	}
}

func TestPool_ChildrenAndCleanups(t *testing.T) {
	a := newAllocator(t)
	root, _ := a.Create(nil, "root")

	var order []string
	child, err := root.Child("child")
	if err != nil {
		t.Fatal(err)
	}
	grandchild, _ := child.Child("grandchild")

	root.OnCleanup(func() { order = append(order, "root-1") })
	root.OnCleanup(func() { order = append(order, "root-2") })
	child.OnCleanup(func() { order = append(order, "child") })
	grandchild.OnCleanup(func() { order = append(order, "grandchild") })
	child.OnCleanup(func() { panic("cleanup failure is contained") })

	root.Destroy()

	want := "grandchild,child,root-2,root-1"
	if got := strings.Join(order, ","); got != want {
		t.Fatalf("cleanup order %q, want %q", got, want)
	}
	if child.Alive() || grandchild.Alive() {
		t.Fatal("children survived parent destroy")
	}
	if n := a.Stats().LivePools; n != 0 {
		t.Fatalf("expected no live pools, got %d", n)
	}
}

func TestPool_ChildOfDeadParent(t *testing.T) {
	a := newAllocator(t)
	p, _ := a.Create(nil, "p")
	p.Destroy()

	if _, err := p.Child("c"); !errors.Is(err, ErrDestroyed) {
		t.Fatalf("expected ErrDestroyed, got %v", err)
	}
}

func TestAllocator_BlockReuse(t *testing.T) {
	a := newAllocator(t)

	p, _ := a.Create(nil, "a")
	if _, err := p.Alloc(100, 0); err != nil {
		t.Fatal(err)
	}
	top := a.Stats().HeapTop
	p.Destroy()

	st := a.Stats()
	if st.FreeBlocks != 1 || st.FreeBytes != DefaultMinBlockSize {
		t.Fatalf("expected one free %d-byte block, got %+v", DefaultMinBlockSize, st)
	}

	q, _ := a.Create(nil, "b")
	defer q.Destroy()
	if _, err := q.Alloc(100, 0); err != nil {
		t.Fatal(err)
	}
	if got := a.Stats().HeapTop; got != top {
		t.Fatalf("expected free block reuse, heap top moved %d -> %d", top, got)
	}
}

func TestAllocator_LookupAndClose(t *testing.T) {
	a := newAllocator(t)
	p, _ := a.Create(nil, "p")
	c, _ := p.Child("c")

	got, ok := a.Lookup(c.ID())
	if !ok || got != c {
		t.Fatal("Lookup failed for live child")
	}
	if _, ok := a.Lookup(0); ok {
		t.Fatal("ID 0 must never resolve")
	}

	a.Close()
	if p.Alive() || c.Alive() {
		t.Fatal("Close left pools alive")
	}
	if _, ok := a.Lookup(c.ID()); ok {
		t.Fatal("Lookup resolved destroyed pool")
	}
}

func TestWith_ReleasesOnError(t *testing.T) {
	a := newAllocator(t)
	boom := errors.New("boom")

	var scoped *Pool
	err := With(a, nil, "scoped", func(p *Pool) error {
		scoped = p
		if _, err := p.Alloc(32, 0); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if scoped.Alive() {
		t.Fatal("scoped pool survived")
	}
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics("test", reg)
	if err != nil {
		t.Fatalf("NewMetrics failed: %v", err)
	}
	a := newAllocator(t, WithMetrics(m))

	p, _ := a.Create(nil, "p")
	if _, err := p.Alloc(2*nativecoll.PageSize, 0); err != nil {
		t.Fatal(err)
	}

	if v := testutil.ToFloat64(m.livePools); v != 1 {
		t.Errorf("live pools = %v, want 1", v)
	}
	if v := testutil.ToFloat64(m.bytesAllocated); v != 2*nativecoll.PageSize {
		t.Errorf("allocated bytes = %v, want %d", v, 2*nativecoll.PageSize)
	}
	if v := testutil.ToFloat64(m.memoryGrows); v < 1 {
		t.Errorf("expected at least one memory growth, got %v", v)
	}

	p.Destroy()
	if v := testutil.ToFloat64(m.livePools); v != 0 {
		t.Errorf("live pools = %v, want 0", v)
	}
	if v := testutil.ToFloat64(m.freeBytes); v == 0 {
		t.Error("expected free bytes after destroy")
	}

	if _, err := NewMetrics("test", reg); err == nil {
		t.Error("expected duplicate registration to fail")
	}
}

func TestMetrics_LiveBatons(t *testing.T) {
	m, err := NewMetrics("batontest", prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("NewMetrics failed: %v", err)
	}
	table := resource.NewTable()
	table.Subscribe(m)

	a, _ := table.Insert(resource.TypeStreamBaton, 1)
	table.Insert(resource.TypeStreamBaton, 2)
	table.Insert(resource.TypeCompressedBaton, 3)

	streams := m.liveBatons.WithLabelValues(resource.TypeStreamBaton.String())
	if v := testutil.ToFloat64(streams); v != 2 {
		t.Errorf("live stream batons = %v, want 2", v)
	}

	if err := table.Remove(a); err != nil {
		t.Fatal(err)
	}
	if v := testutil.ToFloat64(streams); v != 1 {
		t.Errorf("live stream batons = %v, want 1", v)
	}
	compressed := m.liveBatons.WithLabelValues(resource.TypeCompressedBaton.String())
	if v := testutil.ToFloat64(compressed); v != 1 {
		t.Errorf("live compressed batons = %v, want 1", v)
	}

	var none *Metrics
	none.OnResourceEvent(resource.Event{Type: resource.EventCreated})
}
