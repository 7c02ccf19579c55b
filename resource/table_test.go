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

type dropCounter struct {
	drops int
}

func (d *dropCounter) Drop() { d.drops++ }

func TestTable_Basic(t *testing.T) {
	table := NewTable()

	h := table.Insert(KindFields, "test")
	if h == 0 {
		t.Fatal("Expected non-zero handle")
	}

	val, ok := table.Get(h)
	if !ok {
		t.Fatal("Get failed")
	}
	if val != "test" {
		t.Fatalf("Expected 'test', got %v", val)
	}

	if _, ok := table.GetTyped(h, KindFields); !ok {
		t.Fatal("GetTyped with correct kind failed")
	}
	if _, ok := table.GetTyped(h, KindInputStream); ok {
		t.Fatal("GetTyped with wrong kind should fail")
	}

	val, ok = table.Remove(h)
	if !ok {
		t.Fatal("Remove failed")
	}
	if val != "test" {
		t.Fatalf("Expected 'test', got %v", val)
	}
	if table.Len() != 0 {
		t.Fatal("Expected Len() == 0 after Remove")
	}
	if _, ok := table.Remove(h); ok {
		t.Fatal("second Remove should fail")
	}
}

func TestTable_ZeroHandleInvalid(t *testing.T) {
	table := NewTable()
	if _, ok := table.Get(0); ok {
		t.Fatal("handle 0 must never resolve")
	}
	if _, ok := table.Get(99); ok {
		t.Fatal("unknown handle must not resolve")
	}
}

func TestTable_ReusesFreedHandles(t *testing.T) {
	table := NewTable()
	h1 := table.Insert(KindFields, 1)
	h2 := table.Insert(KindFields, 2)
	if h1 == h2 {
		t.Fatal("live handles must differ")
	}

	table.Remove(h1)
	h3 := table.Insert(KindOutputStream, 3)
	if h3 != h1 {
		t.Fatalf("expected freed handle %d to be reused, got %d", h1, h3)
	}
	if _, ok := table.GetTyped(h3, KindFields); ok {
		t.Fatal("reused handle must not resolve under its old kind")
	}
}

func TestTable_RemoveTyped(t *testing.T) {
	table := NewTable()
	h := table.Insert(KindInputStream, "s")
	if _, ok := table.RemoveTyped(h, KindOutputStream); ok {
		t.Fatal("RemoveTyped with wrong kind should fail")
	}
	if _, ok := table.RemoveTyped(h, KindInputStream); !ok {
		t.Fatal("RemoveTyped with right kind should succeed")
	}
}

func TestTable_DropperCalled(t *testing.T) {
	table := NewTable()
	d := &dropCounter{}
	h := table.Insert(KindInputStream, d)
	table.Remove(h)
	if d.drops != 1 {
		t.Fatalf("expected 1 drop, got %d", d.drops)
	}
}

func TestTable_Observer(t *testing.T) {
	table := NewTable()
	obs := &testObserver{}
	table.Subscribe(obs)

	h := table.Insert(KindFields, "test")
	if len(obs.events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(obs.events))
	}
	if obs.events[0].Type != EventCreated || obs.events[0].Handle != h {
		t.Fatalf("unexpected event %+v", obs.events[0])
	}

	table.Remove(h)
	if len(obs.events) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(obs.events))
	}
	if obs.events[1].Type != EventDropped || obs.events[1].Kind != KindFields {
		t.Fatalf("unexpected event %+v", obs.events[1])
	}
}

func TestTable_Close(t *testing.T) {
	table := NewTable()
	d := &dropCounter{}
	table.Insert(KindInputStream, d)
	table.Insert(KindFields, "x")

	if err := table.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if d.drops != 1 {
		t.Fatalf("Close should drop live values, got %d drops", d.drops)
	}
	if table.Len() != 0 {
		t.Fatalf("Len after Close = %d", table.Len())
	}
	if h := table.Insert(KindFields, "y"); h != 0 {
		t.Fatalf("Insert after Close returned %d", h)
	}
	if err := table.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
