package resource

import (
	"testing"
)

type testObserver struct {
	events []Event
}

func (o *testObserver) OnResourceEvent(e Event) {
	o.events = append(o.events, e)
}

func (o *testObserver) types() []EventType {
	out := make([]EventType, len(o.events))
	for i, e := range o.events {
		out[i] = e.Type
	}
	return out
}

func TestTable_Basic(t *testing.T) {
	table := NewTable()

	h, err := table.Insert(TypeStreamBaton, "baton")
	if err != nil || h == 0 {
		t.Fatalf("Insert = %d, %v", h, err)
	}

	if v, ok := table.GetTyped(h, TypeStreamBaton); !ok || v != "baton" {
		t.Fatalf("GetTyped = %v, %v", v, ok)
	}
	if _, ok := table.GetTyped(h, TypeCompressedBaton); ok {
		t.Fatal("GetTyped with wrong type should fail")
	}

	if err := table.Remove(h); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if table.Len() != 0 {
		t.Fatal("Expected Len() == 0 after Remove")
	}
	if err := table.Remove(h); err == nil {
		t.Fatal("second Remove should fail")
	}
}

func TestTable_ObserverAndDeferredDrop(t *testing.T) {
	table := NewTable()
	obs := &testObserver{}
	unsubscribe := table.Subscribe(obs)

	var drops int
	h, _ := table.Insert(TypeStreamBaton, dropCounter{&drops})

	if _, ok := table.Borrow(h, TypeCompressedBaton); ok {
		t.Fatal("Borrow with wrong type should fail")
	}
	if _, ok := table.Borrow(h, TypeStreamBaton); !ok {
		t.Fatal("Borrow failed")
	}
	if err := table.Remove(h); err != nil {
		t.Fatal(err)
	}
	if drops != 0 {
		t.Fatal("borrowed value dropped early")
	}
	if err := table.ReturnBorrow(h); err != nil {
		t.Fatal(err)
	}
	if drops != 1 {
		t.Fatalf("Expected 1 drop, got %d", drops)
	}

	want := []EventType{EventCreated, EventBorrowed, EventBorrowReturned, EventDropped}
	got := obs.types()
	if len(got) != len(want) {
		t.Fatalf("events %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events %v, want %v", got, want)
		}
	}

	unsubscribe()
	table.Insert(TypeStreamBaton, 1)
	if len(obs.events) != len(want) {
		t.Fatal("observer notified after unsubscribe")
	}
}

func TestTable_ObserverFunc(t *testing.T) {
	table := NewTable()
	var created int
	table.Subscribe(ObserverFunc(func(e Event) {
		if e.Type == EventCreated {
			created++
		}
	}))
	table.Insert(TypeStreamBaton, 1)
	table.Insert(TypeStreamBaton, 2)
	if created != 2 {
		t.Fatalf("Expected 2 created events, got %d", created)
	}
}

func TestTable_Clear(t *testing.T) {
	table := NewTable()
	var drops int
	for i := 0; i < 3; i++ {
		table.Insert(TypeStreamBaton, dropCounter{&drops})
	}
	table.Clear()
	if table.Len() != 0 {
		t.Fatalf("Expected empty table, got %d", table.Len())
	}
	if drops != 3 {
		t.Fatalf("Expected 3 drops, got %d", drops)
	}
}

func TestTable_Close(t *testing.T) {
	table := NewTable()
	table.Insert(TypeStreamBaton, 1)
	if err := table.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := table.Insert(TypeStreamBaton, 2); err == nil {
		t.Fatal("Insert after Close should fail")
	}
}

func TestTypeID_String(t *testing.T) {
	if TypeStreamBaton.String() != "stream-baton" {
		t.Fatal(TypeStreamBaton.String())
	}
	if TypeID(99).String() != "type(99)" {
		t.Fatal(TypeID(99).String())
	}
}
