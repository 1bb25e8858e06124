package reference

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Library is a named collection of clips. It is safe for concurrent use.
type Library struct {
	mu    sync.RWMutex
	clips map[string]*Clip
}

// NewLibrary creates an empty library.
func NewLibrary() *Library {
	return &Library{clips: make(map[string]*Clip)}
}

// LoadBuiltIn registers every embedded clip.
func (l *Library) LoadBuiltIn() error {
	names, err := ListEmbedded()
	if err != nil {
		return err
	}
	for _, name := range names {
		clip, err := LoadEmbedded(name)
		if err != nil {
			return fmt.Errorf("failed to load clip %q: %w", name, err)
		}
		l.Register(clip)
	}
	return nil
}

// LoadDir registers every clip in dir, replacing clips of the same name.
func (l *Library) LoadDir(dir string) error {
	clips, err := LoadFromDirectory(dir)
	if err != nil {
		return err
	}
	for _, clip := range clips {
		l.Register(clip)
	}
	return nil
}

// Register adds or replaces a clip.
func (l *Library) Register(clip *Clip) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.clips[clip.Name] = clip
}

// Unregister removes a clip.
func (l *Library) Unregister(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.clips, name)
}

// Get returns the named clip.
func (l *Library) Get(name string) (*Clip, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	clip, ok := l.clips[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return clip, nil
}

// List returns all clip names, sorted.
func (l *Library) List() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	names := make([]string, 0, len(l.clips))
	for name := range l.clips {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Info summarizes a clip for listings.
type Info struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Duration    float64 `json:"duration"` // seconds
	Keyframes   int     `json:"keyframes"`
	Joints      int     `json:"joints"`
}

// Infos returns a summary of every clip, sorted by name.
func (l *Library) Infos() []Info {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Info, 0, len(l.clips))
	for _, c := range l.clips {
		out = append(out, Info{
			Name:        c.Name,
			Description: c.Description,
			Duration:    c.Duration.Seconds(),
			Keyframes:   c.Len(),
			Joints:      len(c.Joints()),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Count returns the number of clips.
func (l *Library) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.clips)
}

// Search returns the names of clips whose name or description contains
// query, ignoring case.
func (l *Library) Search(query string) []string {
	q := strings.ToLower(query)

	l.mu.RLock()
	defer l.mu.RUnlock()

	var matches []string
	for name, c := range l.clips {
		if strings.Contains(strings.ToLower(name), q) || strings.Contains(strings.ToLower(c.Description), q) {
			matches = append(matches, name)
		}
	}
	sort.Strings(matches)
	return matches
}

// Categories groups clip names by their name without trailing digits,
// e.g. "wave2" goes under "wave".
func (l *Library) Categories() map[string][]string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	categories := make(map[string][]string)
	for name := range l.clips {
		cat := category(name)
		categories[cat] = append(categories[cat], name)
	}
	for cat := range categories {
		sort.Strings(categories[cat])
	}
	return categories
}

func category(name string) string {
	i := len(name)
	for i > 0 && name[i-1] >= '0' && name[i-1] <= '9' {
		i--
	}
	if i == 0 {
		return name
	}
	return name[:i]
}
