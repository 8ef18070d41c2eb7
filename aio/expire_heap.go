package aio

import (
	"container/heap"
	"time"
)

// expireItem is one AIO waiting on an expiration queue. It is grounded on
// the teacher's pq.go pqTimeItem: a heap.Interface element carrying a
// deadline and a back-pointer to its own index so it can be deleted in
// O(log n) when the AIO finishes before it expires.
type expireItem struct {
	aio      *AIO
	deadline time.Time
	index    int
}

// expireHeap is a min-heap on deadline: Pop always returns the AIO that
// expires soonest.
type expireHeap []*expireItem

func (h expireHeap) Len() int { return len(h) }

func (h expireHeap) Less(i, j int) bool { return h[i].deadline.Before(h[j].deadline) }

func (h expireHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *expireHeap) Push(x any) {
	item := x.(*expireItem)
	item.index = len(*h)
	*h = append(*h, item)
}

func (h *expireHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*h = old[:n-1]
	return item
}

// peekDeadline returns the soonest deadline in the heap, and ok=false if
// the heap is empty.
func (h expireHeap) peekDeadline() (d time.Time, ok bool) {
	if len(h) == 0 {
		return time.Time{}, false
	}
	return h[0].deadline, true
}

// add inserts item, maintaining heap order, and returns it for later
// removal via remove.
func (h *expireHeap) add(item *expireItem) {
	heap.Push(h, item)
}

// remove deletes item from the heap in O(log n), wherever it currently
// sits, not just from the top -- needed because an AIO usually finishes
// (via its provider) long before it would ever expire.
func (h *expireHeap) remove(item *expireItem) {
	if item.index < 0 || item.index >= len(*h) {
		return // already removed
	}
	heap.Remove(h, item.index)
}

// popExpired removes and returns up to max items whose deadline is not
// after now.
func (h *expireHeap) popExpired(now time.Time, max int) []*expireItem {
	var out []*expireItem
	for len(*h) > 0 && len(out) < max {
		d, _ := h.peekDeadline()
		if d.After(now) {
			break
		}
		out = append(out, heap.Pop(h).(*expireItem))
	}
	return out
}
