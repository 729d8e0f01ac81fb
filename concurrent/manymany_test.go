package concurrent

import "testing"

func contains[T comparable](xs []T, x T) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

func TestManyManyInsertBothSidesMultiple(t *testing.T) {
	m := NewManyMany[string, int]()
	m.Insert("a", 1)
	m.Insert("a", 2)
	m.Insert("b", 1)

	vs := m.GetByKey("a")
	if len(vs) != 2 || !contains(vs, 1) || !contains(vs, 2) {
		t.Fatalf("GetByKey(a) = %v, want [1 2]", vs)
	}
	ks := m.GetByValue(1)
	if len(ks) != 2 || !contains(ks, "a") || !contains(ks, "b") {
		t.Fatalf("GetByValue(1) = %v, want [a b]", ks)
	}
}

func TestManyManyRemoveIsSymmetric(t *testing.T) {
	m := NewManyMany[string, int]()
	m.Insert("a", 1)
	m.Insert("a", 2)
	m.Remove("a", 1)

	if contains(m.GetByKey("a"), 1) {
		t.Fatal("(a,1) should be gone from the key side")
	}
	if contains(m.GetByValue(1), "a") {
		t.Fatal("(a,1) should be gone from the value side")
	}
	if !contains(m.GetByKey("a"), 2) {
		t.Fatal("(a,2) should survive removing (a,1)")
	}
}

func TestManyManyRemoveUnboundPairIsNoop(t *testing.T) {
	m := NewManyMany[string, int]()
	m.Insert("a", 1)
	m.Remove("a", 2)
	if len(m.GetByKey("a")) != 1 {
		t.Fatalf("unrelated Remove should not affect existing bindings")
	}
}

func TestManyManyRemoveByKeyClearsReverseIndex(t *testing.T) {
	m := NewManyMany[string, int]()
	m.Insert("a", 1)
	m.Insert("a", 2)
	m.Insert("b", 1)

	removed := m.RemoveByKey("a")
	if len(removed) != 2 || !contains(removed, 1) || !contains(removed, 2) {
		t.Fatalf("RemoveByKey(a) = %v, want [1 2]", removed)
	}
	if contains(m.GetByValue(1), "a") {
		t.Fatal("value-side index should no longer reference a")
	}
	if !contains(m.GetByValue(1), "b") {
		t.Fatal("b's binding to 1 should survive removing a")
	}
	if len(m.GetByKey("a")) != 0 {
		t.Fatal("a should have no bindings left")
	}
}

func TestManyManyRemoveByValueClearsReverseIndex(t *testing.T) {
	m := NewManyMany[string, int]()
	m.Insert("a", 1)
	m.Insert("b", 1)

	removed := m.RemoveByValue(1)
	if len(removed) != 2 || !contains(removed, "a") || !contains(removed, "b") {
		t.Fatalf("RemoveByValue(1) = %v, want [a b]", removed)
	}
	if len(m.GetByKey("a")) != 0 || len(m.GetByKey("b")) != 0 {
		t.Fatal("both keys should have no bindings left")
	}
}

func TestManyManyKeyCount(t *testing.T) {
	m := NewManyMany[string, int]()
	if m.KeyCount("a") != 0 {
		t.Fatalf("KeyCount on empty key = %d, want 0", m.KeyCount("a"))
	}
	m.Insert("a", 1)
	m.Insert("a", 2)
	if m.KeyCount("a") != 2 {
		t.Fatalf("KeyCount(a) = %d, want 2", m.KeyCount("a"))
	}
}
