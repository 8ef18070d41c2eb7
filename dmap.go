package spio

import (
	"iter"
	"sort"
)

// ided is implemented by anything a dmap can key on: pipes, endpoints,
// and any future registry entry that carries its own stable string id.
type ided interface {
	id() string
}

// dmap is a deterministic map: it can be range-iterated in a fixed order
// (ascending by key.id()) rather than Go's randomized map order. A
// Socket's pipe set is iterated during Socket.Close and during PipeStat
// enumeration (SPEC_FULL.md supplemental feature 2); a deterministic
// order there makes both production log output and tests reproducible.
type dmap[K ided, V any] struct {
	keys  []string
	vals  []V
	ideds []K
	// lazy index, can be made on demand so our zero value is useful
	// without an init.
	idx map[string]bool
}

func newDmap[K ided, V any]() *dmap[K, V] {
	return &dmap[K, V]{
		idx: make(map[string]bool),
	}
}

func (s *dmap[K, V]) upsert(k K, val V) {
	key := k.id()
	if s.idx == nil {
		s.idx = make(map[string]bool)
	} else if s.idx[key] {
		i := sort.Search(len(s.keys), func(i int) bool {
			return key <= s.keys[i]
		})
		s.vals[i] = val // updated value for key
		return
	}
	// not present already
	s.idx[key] = true

	i := sort.Search(len(s.keys), func(i int) bool {
		return key <= s.keys[i]
	})
	if i == len(s.keys) {
		// key is larger than everything else
		s.keys = append(s.keys, key)
		s.vals = append(s.vals, val)
		s.ideds = append(s.ideds, k)
		return
	}
	s.keys = append(s.keys[:i], append([]string{key}, s.keys[i:]...)...)
	s.vals = append(s.vals[:i], append([]V{val}, s.vals[i:]...)...)
	s.ideds = append(s.ideds[:i], append([]K{k}, s.ideds[i:]...)...)
}

// delete removes k's entry, if present. Reports whether anything was
// removed.
func (s *dmap[K, V]) delete(k K) bool {
	key := k.id()
	if s.idx == nil || !s.idx[key] {
		return false
	}
	i := sort.Search(len(s.keys), func(i int) bool {
		return key <= s.keys[i]
	})
	if i >= len(s.keys) || s.keys[i] != key {
		return false
	}
	s.keys = append(s.keys[:i], s.keys[i+1:]...)
	s.vals = append(s.vals[:i], s.vals[i+1:]...)
	s.ideds = append(s.ideds[:i], s.ideds[i+1:]...)
	delete(s.idx, key)
	return true
}

// Len reports the number of entries currently held. upsert/delete keep
// the backing slices sorted by key on insertion, so no sort.Interface
// is needed to keep all(m) in order.
func (s *dmap[K, V]) Len() int {
	return len(s.keys)
}

func all[K ided, V any](m *dmap[K, V]) iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for i := range m.keys {
			if !yield(m.ideds[i], m.vals[i]) {
				return
			}
		}
	}
}
