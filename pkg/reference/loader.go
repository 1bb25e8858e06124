package reference

import (
	"embed"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/teslashibe/go-mimic/pkg/skeleton"
)

//go:embed data/*.json
var embeddedClips embed.FS

// LoadEmbedded loads a built-in clip by name.
func LoadEmbedded(name string) (*Clip, error) {
	data, err := embeddedClips.ReadFile("data/" + name + ".json")
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return Parse(name, data)
}

// ListEmbedded returns the names of the built-in clips.
func ListEmbedded() ([]string, error) {
	entries, err := embeddedClips.ReadDir("data")
	if err != nil {
		return nil, fmt.Errorf("failed to list embedded clips: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".json") {
			names = append(names, strings.TrimSuffix(entry.Name(), ".json"))
		}
	}
	sort.Strings(names)
	return names, nil
}

// LoadFromFile loads a clip from a JSON file. The clip is named after
// the file.
func LoadFromFile(path string) (*Clip, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read clip file: %w", err)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return Parse(name, data)
}

// LoadFromDirectory loads every *.json clip in dir.
func LoadFromDirectory(dir string) ([]*Clip, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to list clip files: %w", err)
	}

	var clips []*Clip
	for _, file := range files {
		clip, err := LoadFromFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", file, err)
		}
		clips = append(clips, clip)
	}
	return clips, nil
}

// Parse decodes clip JSON.
func Parse(name string, data []byte) (*Clip, error) {
	var raw ClipData
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidClip, name, err)
	}
	return FromData(name, raw)
}

// FromData validates raw clip data and converts it to a Clip.
func FromData(name string, raw ClipData) (*Clip, error) {
	if len(raw.Frames) == 0 {
		return nil, fmt.Errorf("%w: %q has no keyframes", ErrInvalidClip, name)
	}

	times := raw.Time
	if len(times) == 0 {
		if raw.FrameRate <= 0 {
			return nil, fmt.Errorf("%w: %q has neither timestamps nor a frame rate", ErrInvalidClip, name)
		}
		times = make([]float64, len(raw.Frames))
		for i := range times {
			times[i] = float64(i) / raw.FrameRate
		}
	}
	if len(times) != len(raw.Frames) {
		return nil, fmt.Errorf("%w: %q has %d timestamps for %d keyframes",
			ErrInvalidClip, name, len(times), len(raw.Frames))
	}
	for i, t := range times {
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return nil, fmt.Errorf("%w: %q timestamp %d is not finite", ErrInvalidClip, name, i)
		}
		if i > 0 && t < times[i-1] {
			return nil, fmt.Errorf("%w: %q timestamps decrease at %d", ErrInvalidClip, name, i)
		}
	}

	poses := make([]skeleton.Pose, len(raw.Frames))
	for i, f := range raw.Frames {
		p := make(skeleton.Pose, len(f.Joints))
		for jname, s := range f.Joints {
			j, ok := skeleton.ParseJoint(jname)
			if !ok {
				return nil, fmt.Errorf("%w: %q keyframe %d has unknown joint %q", ErrInvalidClip, name, i, jname)
			}
			p[j] = skeleton.Transform{
				Position: mgl64.Vec3{s.Pos[0], s.Pos[1], s.Pos[2]},
				Rotation: skeleton.UnitQuat(mgl64.Quat{W: s.Rot[3], V: mgl64.Vec3{s.Rot[0], s.Rot[1], s.Rot[2]}}),
			}
		}
		poses[i] = p
	}

	ts := make([]float64, len(times))
	copy(ts, times)
	duration := ts[len(ts)-1] - ts[0]

	return &Clip{
		Name:        name,
		Description: raw.Description,
		FrameRate:   raw.FrameRate,
		Duration:    time.Duration(duration * float64(time.Second)),
		Timestamps:  ts,
		Poses:       poses,
	}, nil
}

// Data converts a clip back to its JSON structure.
func (c *Clip) Data() ClipData {
	raw := ClipData{
		Description: c.Description,
		FrameRate:   c.FrameRate,
		Time:        append([]float64(nil), c.Timestamps...),
		Frames:      make([]Frame, len(c.Poses)),
	}
	for i, p := range c.Poses {
		f := Frame{Joints: make(map[string]JointSample, len(p))}
		for j, t := range p {
			f.Joints[j.String()] = JointSample{
				Rot: [4]float64{t.Rotation.V[0], t.Rotation.V[1], t.Rotation.V[2], t.Rotation.W},
				Pos: [3]float64{t.Position[0], t.Position[1], t.Position[2]},
			}
		}
		raw.Frames[i] = f
	}
	return raw
}

// Save writes the clip as indented JSON.
func Save(path string, c *Clip) error {
	data, err := json.MarshalIndent(c.Data(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode clip: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write clip file: %w", err)
	}
	return nil
}
