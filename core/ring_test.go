package core

import "testing"

func TestRingFullUsesEverySlot(t *testing.T) {
	r := NewRing[string](4)

	for _, v := range []string{"A", "B", "C", "D"} {
		if !r.Push(v) {
			t.Fatalf("Push(%s) failed on a ring with %d free slots", v, r.Free())
		}
	}
	if r.Push("E") {
		t.Fatal("Push(E) should fail on a full ring")
	}
	if r.Len() != 4 || r.Free() != 0 {
		t.Errorf("Expected len=4 free=0, got len=%d free=%d", r.Len(), r.Free())
	}

	v, ok := r.Pop()
	if !ok || v != "A" {
		t.Fatalf("Expected to pop A, got %q (ok=%v)", v, ok)
	}
	if !r.Push("E") {
		t.Fatal("Push(E) should succeed after a removal")
	}

	var order []string
	order = append(order, v)
	for {
		v, ok := r.Pop()
		if !ok {
			break
		}
		order = append(order, v)
	}
	want := []string{"A", "B", "C", "D", "E"}
	if len(order) != len(want) {
		t.Fatalf("Expected %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("Position %d: expected %s, got %s", i, want[i], order[i])
		}
	}
}

func TestRingOccupiedCount(t *testing.T) {
	r := NewRing[int](5)

	inserted, removed := 0, 0
	// Interleave inserts and removals across several wraparounds
	for round := 0; round < 7; round++ {
		for i := 0; i < 3; i++ {
			if r.Push(inserted) {
				inserted++
			}
		}
		for i := 0; i < 2; i++ {
			v, ok := r.Pop()
			if !ok {
				continue
			}
			if v != removed {
				t.Fatalf("Round %d: expected %d, got %d", round, removed, v)
			}
			removed++
		}
		if r.Len() != inserted-removed {
			t.Fatalf("Round %d: expected len %d, got %d", round, inserted-removed, r.Len())
		}
		if r.Len()+r.Free() != r.Cap() {
			t.Fatalf("Round %d: len %d + free %d != cap %d", round, r.Len(), r.Free(), r.Cap())
		}
	}
}

func TestRingSlotHandoff(t *testing.T) {
	type item struct{ a, b int }
	r := NewRing[item](2)

	slot, ok := r.InsertionSlot()
	if !ok {
		t.Fatal("InsertionSlot failed on an empty ring")
	}
	slot.a, slot.b = 1, 2

	// Not published yet
	if _, ok := r.ReadingSlot(); ok {
		t.Fatal("ReadingSlot must not see an uncommitted insertion")
	}
	r.CommitInsertion()

	got, ok := r.ReadingSlot()
	if !ok || got.a != 1 || got.b != 2 {
		t.Fatalf("Expected {1 2}, got %+v (ok=%v)", got, ok)
	}
	r.CommitRemoval()
	if !r.IsEmpty() {
		t.Error("Ring should be empty after CommitRemoval")
	}
}

func TestRingPeekAndReset(t *testing.T) {
	r := NewRing[int](3)
	r.Push(10)
	r.Push(20)

	if v, ok := r.Peek(1); !ok || *v != 20 {
		t.Errorf("Peek(1): expected 20, got %v (ok=%v)", v, ok)
	}
	if _, ok := r.Peek(2); ok {
		t.Error("Peek(2) should fail with two elements")
	}

	r.Reset()
	if r.Len() != 0 || r.Free() != 3 {
		t.Errorf("After reset expected len=0 free=3, got len=%d free=%d", r.Len(), r.Free())
	}
	if _, ok := r.Pop(); ok {
		t.Error("Pop after reset should fail")
	}
}
