package collection

// IndexedSet is an insertion-deferred set with stable positional indices.
//
// Committed items live in a dense slice; removal leaves a tombstone and pushes
// the slot onto a free stack. Added items stay pending (invisible to At and
// IndexOf) until ApplyChanges materializes them, reusing freed slots first.
// A pending item removed before ApplyChanges never touches the dense slice.
//
// Single-goroutine access only. Mutation during Each is allowed.
type IndexedSet[T comparable] struct {
	dense []slot[T]
	index map[T]int
	free  []int

	pending      []pendingItem[T]
	pendingIndex map[T]uint64
	seq          uint64
}

// pendingItem is valid only while pendingIndex still maps item to seq.
type pendingItem[T comparable] struct {
	item T
	seq  uint64
}

type slot[T comparable] struct {
	item T
	live bool
}

func NewIndexedSet[T comparable](capacity int) *IndexedSet[T] {
	return &IndexedSet[T]{
		dense:        make([]slot[T], 0, capacity),
		index:        make(map[T]int, capacity),
		pendingIndex: make(map[T]uint64),
	}
}

// Add queues item for insertion. Returns false if it is already committed or pending.
func (s *IndexedSet[T]) Add(item T) bool {
	if _, ok := s.index[item]; ok {
		return false
	}
	if _, ok := s.pendingIndex[item]; ok {
		return false
	}
	s.seq++
	s.pendingIndex[item] = s.seq
	s.pending = append(s.pending, pendingItem[T]{item: item, seq: s.seq})
	return true
}

// Remove deletes a committed item (tombstoning its slot) or cancels a pending one.
func (s *IndexedSet[T]) Remove(item T) bool {
	if idx, ok := s.index[item]; ok {
		var zero T
		s.dense[idx] = slot[T]{item: zero}
		delete(s.index, item)
		s.free = append(s.free, idx)
		return true
	}
	if _, ok := s.pendingIndex[item]; ok {
		delete(s.pendingIndex, item)
		s.compactPending()
		return true
	}
	return false
}

// Contains reports whether item is committed or pending.
func (s *IndexedSet[T]) Contains(item T) bool {
	if _, ok := s.index[item]; ok {
		return true
	}
	_, ok := s.pendingIndex[item]
	return ok
}

// IsPending reports whether item was added but not yet applied.
func (s *IndexedSet[T]) IsPending(item T) bool {
	_, ok := s.pendingIndex[item]
	return ok
}

// ApplyChanges moves all pending items into the dense slice in insertion order.
func (s *IndexedSet[T]) ApplyChanges() {
	if len(s.pending) == 0 {
		return
	}
	for _, p := range s.pending {
		if !s.livePending(p) {
			continue // cancelled
		}
		item := p.item
		delete(s.pendingIndex, item)
		if n := len(s.free); n > 0 {
			idx := s.free[n-1]
			s.free = s.free[:n-1]
			s.dense[idx] = slot[T]{item: item, live: true}
			s.index[item] = idx
			continue
		}
		s.dense = append(s.dense, slot[T]{item: item, live: true})
		s.index[item] = len(s.dense) - 1
	}
	clear(s.pending)
	s.pending = s.pending[:0]
}

// IndexOf returns the committed slot of item.
func (s *IndexedSet[T]) IndexOf(item T) (int, bool) {
	idx, ok := s.index[item]
	return idx, ok
}

// At returns the committed item at slot i; false for tombstones and out of range.
func (s *IndexedSet[T]) At(i int) (T, bool) {
	if i < 0 || i >= len(s.dense) || !s.dense[i].live {
		var zero T
		return zero, false
	}
	return s.dense[i].item, true
}

// CountAll is the number of dense slots, tombstones included.
func (s *IndexedSet[T]) CountAll() int { return len(s.dense) }

// CountActive is the number of committed items.
func (s *IndexedSet[T]) CountActive() int { return len(s.index) }

// CountPending is the number of items waiting for ApplyChanges.
func (s *IndexedSet[T]) CountPending() int { return len(s.pendingIndex) }

// Len is the number of committed and pending items.
func (s *IndexedSet[T]) Len() int { return len(s.index) + len(s.pendingIndex) }

// Pending returns a snapshot of the pending items in insertion order.
func (s *IndexedSet[T]) Pending() []T {
	if len(s.pendingIndex) == 0 {
		return nil
	}
	out := make([]T, 0, len(s.pendingIndex))
	for _, p := range s.pending {
		if s.livePending(p) {
			out = append(out, p.item)
		}
	}
	return out
}

func (s *IndexedSet[T]) livePending(p pendingItem[T]) bool {
	seq, ok := s.pendingIndex[p.item]
	return ok && seq == p.seq
}

// compactPending drops cancelled entries once they outnumber live ones, so a
// set that is never applied does not grow without bound.
func (s *IndexedSet[T]) compactPending() {
	if len(s.pending) < 16 || len(s.pending) < 2*len(s.pendingIndex) {
		return
	}
	kept := s.pending[:0]
	for _, p := range s.pending {
		if s.livePending(p) {
			kept = append(kept, p)
		}
	}
	clear(s.pending[len(kept):])
	s.pending = kept
}

// Each yields committed items by slot, skipping tombstones, then a snapshot of
// whatever is pending once the dense pass ends. A snapshot item removed before
// it is reached is skipped. Returning false from fn stops the iteration.
//
// Items added while the dense pass runs are yielded at least once through the
// snapshot; items added after the snapshot is taken wait for the next pass.
func (s *IndexedSet[T]) Each(fn func(T) bool) {
	for i := 0; i < len(s.dense); i++ {
		sl := s.dense[i]
		if !sl.live {
			continue
		}
		if !fn(sl.item) {
			return
		}
	}
	for _, item := range s.Pending() {
		if !s.Contains(item) {
			continue
		}
		if !fn(item) {
			return
		}
	}
}

// Committed yields only the dense, applied items.
func (s *IndexedSet[T]) Committed(fn func(T) bool) {
	for i := 0; i < len(s.dense); i++ {
		sl := s.dense[i]
		if sl.live && !fn(sl.item) {
			return
		}
	}
}

// Items returns a copy of every committed and pending item.
func (s *IndexedSet[T]) Items() []T {
	out := make([]T, 0, s.Len())
	s.Each(func(item T) bool {
		out = append(out, item)
		return true
	})
	return out
}

// Clear drops every committed and pending item.
func (s *IndexedSet[T]) Clear() {
	clear(s.dense)
	s.dense = s.dense[:0]
	clear(s.index)
	s.free = s.free[:0]
	clear(s.pending)
	s.pending = s.pending[:0]
	clear(s.pendingIndex)
}
