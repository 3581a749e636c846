// Package snapshot records response bodies and compares later envelopes
// against them.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"

	"github.com/abdul-hamid-achik/hitfetch/packages/http"
)

const (
	// DefaultDir is the directory snapshots are stored in
	DefaultDir = "__snapshots__"
	// DefaultFile is the snapshot file name inside DefaultDir
	DefaultFile = "hitfetch.snap.json"
)

// Store holds named snapshots in one JSON file.
type Store struct {
	path   string
	update bool
	ignore []string

	mu    sync.Mutex
	cache map[string]any
}

type Option func(*Store)

// WithUpdate makes Compare record the actual value on a missing snapshot
// or a mismatch instead of failing.
func WithUpdate(update bool) Option {
	return func(s *Store) {
		s.update = update
	}
}

// WithIgnore removes the dotted paths (e.g. "meta.requestId") from both
// sides before comparing.
func WithIgnore(paths ...string) Option {
	return func(s *Store) {
		s.ignore = append(s.ignore, paths...)
	}
}

// NewStore returns a store backed by path, or DefaultDir/DefaultFile when
// path is empty.
func NewStore(path string, opts ...Option) *Store {
	if path == "" {
		path = filepath.Join(DefaultDir, DefaultFile)
	}
	s := &Store{path: path}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the snapshot file.
func (s *Store) Path() string {
	return s.path
}

// Result is the outcome of one comparison.
type Result struct {
	Name       string
	Passed     bool
	Message    string
	Expected   any
	Actual     any
	IsNew      bool
	WasUpdated bool
}

// Compare checks actual against the snapshot called name.
func (s *Store) Compare(name string, actual any) *Result {
	actual = s.strip(normalize(actual))
	result := &Result{Name: name, Actual: actual}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshots, err := s.load()
	if err != nil {
		result.Message = fmt.Sprintf("failed to load snapshots: %v", err)
		return result
	}

	expected, exists := snapshots[name]
	if exists {
		expected = s.strip(expected)
		result.Expected = expected
		if reflect.DeepEqual(expected, actual) {
			result.Passed = true
			return result
		}
	}

	if !s.update {
		if exists {
			result.Message = "snapshot mismatch"
		} else {
			result.Message = "snapshot does not exist (run with --update-snapshots to create)"
		}
		return result
	}

	snapshots[name] = actual
	if err := s.save(snapshots); err != nil {
		result.Message = fmt.Sprintf("failed to save snapshot: %v", err)
		return result
	}
	result.Passed = true
	result.Expected = actual
	if exists {
		result.WasUpdated = true
		result.Message = "snapshot updated"
	} else {
		result.IsNew = true
		result.Message = "new snapshot created"
	}
	return result
}

// CompareEnvelope compares the parsed body of env. An empty name keys the
// snapshot by method and URL.
func (s *Store) CompareEnvelope(name string, env *http.Envelope) *Result {
	if name == "" {
		name = Key(env)
	}
	return s.Compare(name, env.Data)
}

// Monitor compares every successful envelope and hands the result to
// report. A failed comparison is returned as the monitor's error.
func (s *Store) Monitor(name string, report func(*Result)) http.Monitor {
	return func(_ context.Context, env *http.Envelope) error {
		if !env.OK {
			return nil
		}
		res := s.CompareEnvelope(name, env)
		if report != nil {
			report(res)
		}
		if !res.Passed {
			return fmt.Errorf("snapshot %q: %s", res.Name, res.Message)
		}
		return nil
	}
}

// Key is the default snapshot name for env.
func Key(env *http.Envelope) string {
	return env.Method() + " " + env.URL
}

func (s *Store) load() (map[string]any, error) {
	if s.cache != nil {
		return s.cache, nil
	}
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		s.cache = make(map[string]any)
		return s.cache, nil
	}
	if err != nil {
		return nil, err
	}
	snapshots := make(map[string]any)
	if err := json.Unmarshal(data, &snapshots); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", s.path, err)
	}
	s.cache = snapshots
	return snapshots, nil
}

func (s *Store) save(snapshots map[string]any) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(snapshots, "", "  ")
	if err != nil {
		return err
	}
	s.cache = snapshots
	return os.WriteFile(s.path, append(data, '\n'), 0o644)
}

// normalize round-trips v through JSON so numbers and nested types compare
// the same way they will after a reload.
func normalize(v any) any {
	raw, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return v
	}
	return out
}

// strip returns a copy of v without the ignored paths.
func (s *Store) strip(v any) any {
	if len(s.ignore) == 0 {
		return v
	}
	v = deepCopy(v)
	for _, path := range s.ignore {
		deletePath(v, strings.Split(path, "."))
	}
	return v
}

func deepCopy(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = deepCopy(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = deepCopy(item)
		}
		return out
	}
	return v
}

// deletePath removes the key at parts. A "*" segment matches every
// element of an array or every key of an object.
func deletePath(v any, parts []string) {
	if len(parts) == 0 {
		return
	}
	switch val := v.(type) {
	case map[string]any:
		if parts[0] == "*" {
			for _, item := range val {
				deletePath(item, parts[1:])
			}
			return
		}
		if len(parts) == 1 {
			delete(val, parts[0])
			return
		}
		deletePath(val[parts[0]], parts[1:])
	case []any:
		if parts[0] != "*" {
			return
		}
		for _, item := range val {
			deletePath(item, parts[1:])
		}
	}
}
