package store

import (
	"errors"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/teslashibe/go-mimic/pkg/report"
)

// Summary is the aggregate play record kept in the stats file.
type Summary struct {
	PlaySeconds float64                     `json:"playtime"`
	Sessions    int64                       `json:"sessions"`
	References  map[string]ReferenceSummary `json:"references"`
}

// ReferenceSummary aggregates the sessions against one reference.
type ReferenceSummary struct {
	Count int64        `json:"count"`
	Best  float64      `json:"best"`
	Last  float64      `json:"last"`
	Grade report.Grade `json:"grade"`
}

// StatsFile keeps a small JSON summary next to the database:
//
//	{"playtime":12.5,"sessions":3,"references":{"sway":{"count":2,"best":91.2,"last":88,"grade":"Good"}}}
//
// Unknown keys in the file are preserved.
type StatsFile struct {
	mu   sync.Mutex
	path string
}

// NewStatsFile returns a stats file at path. The file is created on the
// first Record.
func NewStatsFile(path string) *StatsFile {
	return &StatsFile{path: path}
}

// Path returns the file location.
func (s *StatsFile) Path() string { return s.path }

func (s *StatsFile) read() ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && len(data) == 0) {
		return []byte(`{}`), nil
	}
	return data, err
}

// Record adds an ended report to the summary.
func (s *StatsFile) Record(r report.Report) error {
	if !r.Ended {
		return ErrNotEnded
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.read()
	if err != nil {
		return err
	}

	play := gjson.GetBytes(data, "playtime").Float()
	play = round2(play + r.Duration().Seconds())
	if data, err = sjson.SetBytes(data, "playtime", play); err != nil {
		return err
	}
	if data, err = sjson.SetBytes(data, "sessions", gjson.GetBytes(data, "sessions").Int()+1); err != nil {
		return err
	}

	base := "references." + escapeKey(r.Reference)
	count := gjson.GetBytes(data, base+".count").Int()
	best := gjson.GetBytes(data, base+".best")
	final := round2(r.Final)

	if data, err = sjson.SetBytes(data, base+".count", count+1); err != nil {
		return err
	}
	if !best.Exists() || final > best.Float() {
		if data, err = sjson.SetBytes(data, base+".best", final); err != nil {
			return err
		}
	}
	if data, err = sjson.SetBytes(data, base+".last", final); err != nil {
		return err
	}
	if data, err = sjson.SetBytes(data, base+".grade", string(r.Grade)); err != nil {
		return err
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(s.path, data, 0o644)
}

// Load reads the summary. A missing file yields an empty summary.
func (s *StatsFile) Load() (Summary, error) {
	s.mu.Lock()
	data, err := s.read()
	s.mu.Unlock()
	if err != nil {
		return Summary{}, err
	}
	if !gjson.ValidBytes(data) {
		return Summary{}, errors.New("stats file is not valid JSON")
	}

	doc := gjson.ParseBytes(data)
	sum := Summary{
		PlaySeconds: doc.Get("playtime").Float(),
		Sessions:    doc.Get("sessions").Int(),
		References:  make(map[string]ReferenceSummary),
	}
	doc.Get("references").ForEach(func(key, v gjson.Result) bool {
		sum.References[key.String()] = ReferenceSummary{
			Count: v.Get("count").Int(),
			Best:  v.Get("best").Float(),
			Last:  v.Get("last").Float(),
			Grade: report.Grade(v.Get("grade").String()),
		}
		return true
	})
	return sum, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// escapeKey quotes path metacharacters so a reference name is one key.
func escapeKey(k string) string {
	var out []byte
	for i := 0; i < len(k); i++ {
		switch k[i] {
		case '.', '*', '?', '|', '#', '@', '\\':
			out = append(out, '\\')
		}
		out = append(out, k[i])
	}
	return string(out)
}
