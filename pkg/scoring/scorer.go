package scoring

import "github.com/teslashibe/go-mimic/pkg/motion"

// Result is the outcome of one alignment search.
type Result struct {
	// Shift is the winning offset in frames. Positive means the player
	// lags the reference.
	Shift int `json:"shift"`

	// Combined is the fused score at Shift, in [0, 1].
	Combined float64 `json:"combined"`

	// Found is false when no shift had a usable sub-score.
	Found bool `json:"found"`

	Pose     SubScore `json:"pose"`
	Position SubScore `json:"position"`
	Rhythm   SubScore `json:"rhythm"`

	// Evaluated counts the shifts that were compared.
	Evaluated int `json:"evaluated"`
}

// Scorer runs alignment searches with a fixed configuration. It only reads
// the windows it is given.
type Scorer struct {
	cfg Config
}

// NewScorer validates cfg and returns a scorer.
func NewScorer(cfg Config) (*Scorer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Scorer{cfg: cfg}, nil
}

// Config returns the scorer's configuration.
func (s *Scorer) Config() Config { return s.cfg }

// Compare scores a single reference/candidate pair.
func (s *Scorer) Compare(ref, cand *motion.Snapshot) (combined float64, ok bool, pose, position, rhythm SubScore) {
	pose = PoseScore(ref, cand, s.cfg)
	position = PositionScore(ref, cand, s.cfg)
	rhythm = RhythmScore(ref, cand, s.cfg)
	combined, ok = Fuse(s.cfg, pose, position, rhythm)
	return combined, ok, pose, position, rhythm
}

// Align takes the reference snapshot at the temporal center of ref and
// compares it with every player snapshot within tolerance frames of the
// center, in ascending shift order. The first shift reaching the maximum
// wins. Both windows must hold 2*tolerance+1 snapshots; otherwise Align
// returns an empty result.
func (s *Scorer) Align(ref, player *motion.Window, tolerance int) Result {
	var best Result
	if tolerance < 0 || !ref.Full() || !player.Full() {
		return best
	}
	size := motion.CapacityFor(tolerance)
	if ref.Len() != size || player.Len() != size {
		return best
	}

	center, _ := ref.At(tolerance)

	for shift := -tolerance; shift <= tolerance; shift++ {
		cand, _ := player.At(tolerance + shift)
		best.Evaluated++

		combined, ok, pose, position, rhythm := s.Compare(center, cand)
		if !ok {
			continue
		}
		if !best.Found || combined > best.Combined {
			best.Shift = shift
			best.Combined = combined
			best.Found = true
			best.Pose = pose
			best.Position = position
			best.Rhythm = rhythm
		}
	}
	return best
}
