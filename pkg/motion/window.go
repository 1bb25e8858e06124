package motion

// Window is a fixed-capacity ring of snapshots. Offsets are counted from the
// oldest buffered snapshot.
type Window struct {
	buf   []Snapshot
	write int
	count int
}

// NewWindow allocates a window holding capacity snapshots. Capacity is at
// least one.
func NewWindow(capacity int) *Window {
	if capacity < 1 {
		capacity = 1
	}
	return &Window{buf: make([]Snapshot, capacity)}
}

// CapacityFor returns the window size 2T+1 for a tolerance of T frames.
func CapacityFor(tolerance int) int {
	if tolerance < 0 {
		tolerance = 0
	}
	return 2*tolerance + 1
}

// Cap returns the window capacity.
func (w *Window) Cap() int { return len(w.buf) }

// Len returns the number of snapshots written since the last reset,
// saturating at Cap.
func (w *Window) Len() int { return w.count }

// Full reports whether the window holds Cap snapshots.
func (w *Window) Full() bool { return w.count == len(w.buf) }

// Push appends s at the write cursor, overwriting the oldest snapshot once
// the window is full.
func (w *Window) Push(s Snapshot) {
	w.buf[w.write] = s
	w.advance()
}

// Next returns the slot at the write cursor and advances past it. Callers
// fill the slot in place, which avoids copying a snapshot on every tick.
func (w *Window) Next() *Snapshot {
	slot := &w.buf[w.write]
	w.advance()
	return slot
}

func (w *Window) advance() {
	w.write = (w.write + 1) % len(w.buf)
	if w.count < len(w.buf) {
		w.count++
	}
}

// OldestIndex returns the ring index of the oldest snapshot.
func (w *Window) OldestIndex() int {
	n := len(w.buf)
	return ((w.write-w.count)%n + n) % n
}

// IndexFromOldest maps an offset in [0, Len) to a ring index.
func (w *Window) IndexFromOldest(offset int) int {
	return (w.OldestIndex() + offset) % len(w.buf)
}

// At returns the snapshot offset places after the oldest one. ok is false
// when offset is outside [0, Len).
func (w *Window) At(offset int) (*Snapshot, bool) {
	if offset < 0 || offset >= w.count {
		return nil, false
	}
	return &w.buf[w.IndexFromOldest(offset)], true
}

// Newest returns the most recently pushed snapshot.
func (w *Window) Newest() (*Snapshot, bool) {
	return w.At(w.count - 1)
}

// Reset empties the window without reallocating.
func (w *Window) Reset() {
	w.write = 0
	w.count = 0
}
