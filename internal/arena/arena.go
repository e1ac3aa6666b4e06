package arena

import "sync"

// Handle identifies a value stored in a Table. The low 32 bits hold the slot
// index plus one, the high 32 bits the slot generation. The zero Handle is
// never issued, so it can be used as "no handle".
type Handle uint64

// Nil is the handle that never resolves.
const Nil Handle = 0

func makeHandle(index, generation uint32) Handle {
	return Handle(uint64(generation)<<32 | uint64(index+1))
}

func (h Handle) index() (uint32, bool) {
	low := uint32(h)
	if low == 0 {
		return 0, false
	}
	return low - 1, true
}

func (h Handle) generation() uint32 {
	return uint32(h >> 32)
}

type slot[T any] struct {
	generation uint32
	live       bool
	value      T
}

// Table is a generational arena. Removing a value bumps the slot generation so
// every handle issued for it stops resolving, even after the slot is reused.
type Table[T any] struct {
	mu    sync.RWMutex
	slots []slot[T]
	free  []uint32
	count int
}

// Insert stores value and returns its handle.
func (t *Table[T]) Insert(value T) Handle {
	t.mu.Lock()
	defer t.mu.Unlock()

	var index uint32
	if n := len(t.free); n > 0 {
		index = t.free[n-1]
		t.free = t.free[:n-1]
	} else {
		index = uint32(len(t.slots))
		t.slots = append(t.slots, slot[T]{})
	}

	s := &t.slots[index]
	s.generation++
	s.live = true
	s.value = value
	t.count++

	return makeHandle(index, s.generation)
}

// Get resolves a handle. ok is false for Nil, removed or stale handles.
func (t *Table[T]) Get(h Handle) (value T, ok bool) {
	index, valid := h.index()
	if !valid {
		return value, false
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	if int(index) >= len(t.slots) {
		return value, false
	}
	s := t.slots[index]
	if !s.live || s.generation != h.generation() {
		return value, false
	}

	return s.value, true
}

// Contains reports whether h still resolves.
func (t *Table[T]) Contains(h Handle) bool {
	_, ok := t.Get(h)
	return ok
}

// Remove releases the slot held by h and returns the stored value. Removing a
// stale handle is a no-op that returns ok == false.
func (t *Table[T]) Remove(h Handle) (value T, ok bool) {
	index, valid := h.index()
	if !valid {
		return value, false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if int(index) >= len(t.slots) {
		return value, false
	}
	s := &t.slots[index]
	if !s.live || s.generation != h.generation() {
		return value, false
	}

	value = s.value
	var zero T
	s.value = zero
	s.live = false
	t.free = append(t.free, index)
	t.count--

	return value, true
}

// Len returns the number of live values.
func (t *Table[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.count
}

// Values returns a snapshot of the live values in slot order. The snapshot can
// be iterated while other goroutines insert or remove.
func (t *Table[T]) Values() []T {
	t.mu.RLock()
	defer t.mu.RUnlock()

	values := make([]T, 0, t.count)
	for _, s := range t.slots {
		if s.live {
			values = append(values, s.value)
		}
	}
	return values
}
