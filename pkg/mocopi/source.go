package mocopi

import (
	"sync"
	"time"

	"github.com/teslashibe/go-mimic/pkg/skeleton"
)

// SourceConfig controls how frames are interpreted.
type SourceConfig struct {
	// WorldSpace treats bone transforms as already in world space instead
	// of relative to the parent bone.
	WorldSpace bool

	// MaxAge is how long the latest frame stays tracked without a newer
	// one. Zero keeps it until Reset.
	MaxAge time.Duration
}

// Source holds the latest frame received from a sensor and serves it as a
// pose source. Writers (listener, feed) and readers (the session tick)
// may run on different goroutines.
type Source struct {
	cfg SourceConfig
	now func() time.Time

	mu      sync.RWMutex
	parents [BoneCount]int
	rest    [BoneCount]skeleton.Transform
	hasRest [BoneCount]bool
	hasSkel bool

	world   [skeleton.JointCount]skeleton.Transform
	valid   [skeleton.JointCount]bool
	number  uint32
	stamp   uint32
	frames  uint64
	updated time.Time
}

// NewSource creates a source using the standard bone hierarchy.
func NewSource(cfg SourceConfig) *Source {
	s := &Source{cfg: cfg, now: time.Now}
	s.parents = StandardParents
	return s
}

// HandlePacket applies a decoded datagram.
func (s *Source) HandlePacket(p *Packet) {
	switch p.Kind {
	case KindSkeleton:
		s.ApplySkeleton(p.Bones)
	case KindFrame:
		s.ApplyFrame(p.Frame)
	}
}

// ApplySkeleton replaces the bone hierarchy and rest pose. Bones outside
// the standard set are ignored.
func (s *Source) ApplySkeleton(bones []SkeletonBone) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.parents = StandardParents
	s.hasRest = [BoneCount]bool{}
	for _, b := range bones {
		if int(b.ID) >= BoneCount {
			continue
		}
		parent := b.Parent
		if parent >= BoneCount {
			parent = NoParent
		}
		s.parents[b.ID] = parent
		if b.Rest != nil {
			s.rest[b.ID] = b.Rest.Skeleton()
			s.hasRest[b.ID] = true
		}
	}
	s.hasSkel = true
}

// ApplyFrame computes world transforms for f and makes it the latest frame.
// Bones missing from f fall back to the rest pose when one is known; a
// joint whose chain to the root is incomplete is reported as untracked.
func (s *Source) ApplyFrame(f Frame) {
	var (
		local      [BoneCount]skeleton.Transform
		localValid [BoneCount]bool
	)

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.cfg.WorldSpace {
		local = s.rest
		localValid = s.hasRest
	}
	for _, b := range f.Bones {
		if int(b.ID) >= BoneCount {
			continue
		}
		t := b.Trans.Skeleton()
		if !t.Finite() {
			continue
		}
		local[b.ID] = t
		localValid[b.ID] = true
	}

	var world [BoneCount]skeleton.Transform
	var worldValid [BoneCount]bool
	if s.cfg.WorldSpace {
		world, worldValid = local, localValid
	} else {
		world, worldValid = solve(s.parents, local, localValid)
	}

	for _, j := range skeleton.Joints() {
		b := boneJoints[j]
		s.world[j] = world[b]
		s.valid[j] = worldValid[b]
	}
	s.number = f.Number
	s.stamp = f.Time
	s.frames++
	s.updated = s.now()
}

// solve chains local transforms from the root outwards.
func solve(parents [BoneCount]int, local [BoneCount]skeleton.Transform, valid [BoneCount]bool) ([BoneCount]skeleton.Transform, [BoneCount]bool) {
	const (
		unvisited = iota
		visiting
		done
	)
	var (
		world [BoneCount]skeleton.Transform
		ok    [BoneCount]bool
		state [BoneCount]int
	)

	var visit func(i int) bool
	visit = func(i int) bool {
		switch state[i] {
		case done:
			return ok[i]
		case visiting:
			return false // cycle
		}
		state[i] = visiting
		defer func() { state[i] = done }()

		if !valid[i] {
			return false
		}
		p := parents[i]
		if p == NoParent {
			world[i], ok[i] = local[i], true
			return true
		}
		if !visit(p) {
			return false
		}
		pw := world[p]
		world[i] = skeleton.Transform{
			Position: pw.Position.Add(pw.Rotation.Rotate(local[i].Position)),
			Rotation: skeleton.UnitQuat(pw.Rotation.Mul(local[i].Rotation)),
		}
		ok[i] = true
		return true
	}

	for i := 0; i < BoneCount; i++ {
		visit(i)
	}
	return world, ok
}

// JointTransform implements skeleton.PoseSource on the latest frame.
func (s *Source) JointTransform(j skeleton.JointID) (skeleton.Transform, bool) {
	if !j.Valid() {
		return skeleton.Transform{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.expired() {
		return skeleton.Transform{}, false
	}
	return s.world[j], s.valid[j]
}

// PoseInto copies the latest frame into dst so a tick reads one
// consistent frame. dst is cleared first; a nil dst is allocated.
func (s *Source) PoseInto(dst skeleton.Pose) skeleton.Pose {
	if dst == nil {
		dst = make(skeleton.Pose, skeleton.JointCount)
	}
	clear(dst)

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.expired() {
		return dst
	}
	for i, ok := range s.valid {
		if ok {
			dst[skeleton.JointID(i)] = s.world[i]
		}
	}
	return dst
}

// Frame returns the number and sensor timestamp of the latest frame.
func (s *Source) Frame() (number, timestamp uint32) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.number, s.stamp
}

// Frames returns how many frames were applied since the last reset.
func (s *Source) Frames() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frames
}

// SkeletonReceived reports whether a skeleton definition was applied.
func (s *Source) SkeletonReceived() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hasSkel
}

// expired reports whether the latest frame is older than MaxAge. The caller
// holds mu.
func (s *Source) expired() bool {
	return s.cfg.MaxAge > 0 && s.now().Sub(s.updated) > s.cfg.MaxAge
}

// Stale reports whether no frame arrived within maxAge.
func (s *Source) Stale(maxAge time.Duration) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updated.IsZero() || s.now().Sub(s.updated) > maxAge
}

// Reset forgets the latest frame. The skeleton definition is kept.
func (s *Source) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.valid = [skeleton.JointCount]bool{}
	s.number, s.stamp, s.frames = 0, 0, 0
	s.updated = time.Time{}
}
