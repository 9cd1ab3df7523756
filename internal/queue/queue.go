// Package queue implements the bounded top-k queue used by search.
package queue

import "sort"

// Item is a candidate held by the queue.
// Value-based (no pointers) for cache locality and zero allocations.
type Item struct {
	Ref      uint32  // Ref is the record ordinal (insertion position).
	Distance float32 // Distance is the priority of the item in the queue.
}

// worse reports whether a is a worse candidate than b.
// Smaller distances win; on equal distance the earlier ordinal wins.
func worse(a, b Item) bool {
	if a.Distance != b.Distance {
		return a.Distance > b.Distance
	}
	return a.Ref > b.Ref
}

// TopK is a bounded max-heap keeping the k best candidates seen so far.
// The heap top is the worst retained candidate, so an incoming better
// item replaces it in O(log k).
// It does NOT implement container/heap to avoid interface overhead.
type TopK struct {
	k     int
	items []Item
}

// NewTopK creates a queue bounded to k items. k must be positive.
func NewTopK(k int) *TopK {
	return &TopK{
		k:     k,
		items: make([]Item, 0, k),
	}
}

// Len returns the number of retained candidates.
func (q *TopK) Len() int {
	return len(q.items)
}

// Top returns the worst retained candidate.
func (q *TopK) Top() (Item, bool) {
	if len(q.items) == 0 {
		return Item{}, false
	}
	return q.items[0], true
}

// Push offers an item to the queue.
// Returns the evicted item (if any) and whether the offered item was admitted.
func (q *TopK) Push(it Item) (evicted Item, evictedOK bool, admitted bool) {
	if len(q.items) < q.k {
		q.items = append(q.items, it)
		q.siftUp(len(q.items) - 1)
		return Item{}, false, true
	}

	// Full: admit only if better than the current worst.
	if !worse(it, q.items[0]) {
		evicted = q.items[0]
		q.items[0] = it
		q.siftDown(0)
		return evicted, true, true
	}

	return Item{}, false, false
}

// Sorted drains nothing; it returns the retained candidates ordered by
// ascending distance, ties broken by ascending ordinal (insertion order).
func (q *TopK) Sorted() []Item {
	out := make([]Item, len(q.items))
	copy(out, q.items)

	sort.Slice(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		return out[i].Ref < out[j].Ref
	})

	return out
}

func (q *TopK) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if !worse(q.items[i], q.items[parent]) {
			break
		}
		q.items[i], q.items[parent] = q.items[parent], q.items[i]
		i = parent
	}
}

func (q *TopK) siftDown(i int) {
	n := len(q.items)
	for {
		left := 2*i + 1
		right := 2*i + 2
		worst := i

		if left < n && worse(q.items[left], q.items[worst]) {
			worst = left
		}
		if right < n && worse(q.items[right], q.items[worst]) {
			worst = right
		}
		if worst == i {
			return
		}

		q.items[i], q.items[worst] = q.items[worst], q.items[i]
		i = worst
	}
}
