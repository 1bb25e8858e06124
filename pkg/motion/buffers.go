package motion

import "github.com/teslashibe/go-mimic/pkg/skeleton"

// Buffers holds the reference and player windows together with each stream's
// capturer. Both streams are captured on the same tick, so their write
// cursors stay synchronized.
type Buffers struct {
	Reference *Window
	Player    *Window

	tolerance  int
	refCapture Capturer
	plyCapture Capturer
}

// NewBuffers allocates windows sized for tolerance frames either side.
func NewBuffers(tolerance int) *Buffers {
	b := &Buffers{}
	b.Resize(tolerance)
	return b
}

// Tolerance returns the tolerance the windows were sized for.
func (b *Buffers) Tolerance() int { return b.tolerance }

// Resize reallocates both windows for a new tolerance and discards all
// buffered history, including the velocity caches. Do not call it while a
// scoring pass is reading the windows.
func (b *Buffers) Resize(tolerance int) {
	if tolerance < 0 {
		tolerance = 0
	}
	capacity := CapacityFor(tolerance)
	b.tolerance = tolerance
	b.Reference = NewWindow(capacity)
	b.Player = NewWindow(capacity)
	b.refCapture.Reset()
	b.plyCapture.Reset()
}

// Reset clears both windows and capturers, keeping capacity.
func (b *Buffers) Reset() {
	b.Reference.Reset()
	b.Player.Reset()
	b.refCapture.Reset()
	b.plyCapture.Reset()
}

// Capture snapshots both streams for this tick and pushes them.
func (b *Buffers) Capture(reference, player skeleton.PoseSource, dt float64) {
	b.refCapture.CaptureInto(b.Reference.Next(), reference, dt)
	b.plyCapture.CaptureInto(b.Player.Next(), player, dt)
}

// Full reports whether both windows are full.
func (b *Buffers) Full() bool {
	return b.Reference.Full() && b.Player.Full()
}
