package spio

import (
	"fmt"
	"testing"
)

// dmap tester
type dmapt struct {
	name string
}

func (s *dmapt) id() string {
	return s.name
}

func TestDmap(t *testing.T) {
	var slc []*dmapt
	m := newDmap[*dmapt, int]()

	for i := range 9 {
		d := &dmapt{name: fmt.Sprintf("%v", 8-i)}
		slc = append(slc, d)
		m.upsert(d, 8-i)
	}
	i := 0
	for pd, val := range all(m) {
		if val != i {
			t.Fatalf("expected val %v, got %v for pd='%#v'", i, val, pd)
		}
		i++
	}
	if m.Len() != 9 {
		t.Fatalf("Len() = %d, want 9", m.Len())
	}
}

func TestDmapDelete(t *testing.T) {
	m := newDmap[*dmapt, int]()
	a := &dmapt{name: "a"}
	b := &dmapt{name: "b"}
	m.upsert(a, 1)
	m.upsert(b, 2)

	if !m.delete(a) {
		t.Fatal("delete(a) should report true")
	}
	if m.delete(a) {
		t.Fatal("second delete(a) should report false")
	}
	if m.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", m.Len())
	}
	found := false
	for pd := range all(m) {
		if pd == b {
			found = true
		}
	}
	if !found {
		t.Fatal("b should still be present after deleting a")
	}
}
