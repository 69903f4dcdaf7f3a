// Package dirty tracks which source files changed since the previous run.
// Each tracked file carries its content hash and the classes it declared when
// it was last analyzed, so a caller can invalidate exactly those classes even
// after the file is deleted.
package dirty

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// DefaultCacheDir is the default directory for storing dirty state.
const DefaultCacheDir = ".jflow/cache"

// DefaultCacheFile is the default filename for dirty state.
const DefaultCacheFile = "dirty.json"

const stateVersion = 2

type fileState struct {
	Path     string   `json:"path"`
	Hash     string   `json:"hash"`
	Classes  []string `json:"classes,omitempty"`
	IsDirty  bool     `json:"is_dirty"`
	LastSeen int64    `json:"last_seen"` // Unix timestamp
}

type dirtyData struct {
	Version int         `json:"version"`
	Files   []fileState `json:"files"`
}

// Tracker tracks dirty files based on content hashing.
type Tracker struct {
	mu        sync.RWMutex
	files     map[string]fileState
	cacheDir  string
	cacheFile string
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithCacheDir sets the cache directory.
func WithCacheDir(dir string) Option {
	return func(t *Tracker) {
		t.cacheDir = dir
	}
}

// WithCacheFile sets the cache filename.
func WithCacheFile(file string) Option {
	return func(t *Tracker) {
		t.cacheFile = file
	}
}

// New creates a Tracker.
func New(opts ...Option) *Tracker {
	t := &Tracker{
		files:     make(map[string]fileState),
		cacheDir:  DefaultCacheDir,
		cacheFile: DefaultCacheFile,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Open creates a Tracker and loads its persisted state.
func Open(opts ...Option) (*Tracker, error) {
	t := New(opts...)
	if err := t.Load(); err != nil {
		return nil, err
	}
	return t, nil
}

func computeHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file %s: %w", path, err)
	}
	defer f.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return "", fmt.Errorf("failed to hash file %s: %w", path, err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// CheckAndMark hashes path and marks it dirty when it is new or its content
// changed. An unchanged file has its dirty flag cleared. It reports whether
// the file was marked dirty.
func (t *Tracker) CheckAndMark(path string) (bool, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false, fmt.Errorf("failed to get absolute path: %w", err)
	}

	hash, err := computeHash(absPath)
	if err != nil {
		return false, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	existing, exists := t.files[absPath]
	if exists && existing.Hash == hash {
		existing.IsDirty = false
		t.files[absPath] = existing
		return false, nil
	}

	t.files[absPath] = fileState{
		Path:     absPath,
		Hash:     hash,
		Classes:  existing.Classes,
		IsDirty:  true,
		LastSeen: time.Now().Unix(),
	}
	return true, nil
}

// Sweep marks every tracked file that no longer exists on disk as dirty and
// returns those paths. Their class lists are kept until Forget.
func (t *Tracker) Sweep() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var gone []string
	for p, state := range t.files {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			state.IsDirty = true
			t.files[p] = state
			gone = append(gone, p)
		}
	}
	sort.Strings(gone)
	return gone
}

// IsDirty checks if a file is currently marked as dirty.
func (t *Tracker) IsDirty(path string) bool {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	state, exists := t.files[absPath]
	return exists && state.IsDirty
}

// DirtyFiles returns the sorted paths currently marked dirty.
func (t *Tracker) DirtyFiles() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make([]string, 0, len(t.files))
	for _, state := range t.files {
		if state.IsDirty {
			result = append(result, state.Path)
		}
	}
	sort.Strings(result)
	return result
}

// SetClasses records the classes declared by path at its last analysis.
func (t *Tracker) SetClasses(path string, classes []string) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	state, exists := t.files[absPath]
	if !exists {
		state = fileState{Path: absPath, LastSeen: time.Now().Unix()}
	}
	state.Classes = append([]string(nil), classes...)
	sort.Strings(state.Classes)
	t.files[absPath] = state
}

// Classes returns the classes recorded for path.
func (t *Tracker) Classes(path string) []string {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]string(nil), t.files[absPath].Classes...)
}

// DirtyClasses returns the sorted, de-duplicated classes of every dirty file.
func (t *Tracker) DirtyClasses() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	seen := make(map[string]bool)
	var out []string
	for _, state := range t.files {
		if !state.IsDirty {
			continue
		}
		for _, c := range state.Classes {
			if !seen[c] {
				seen[c] = true
				out = append(out, c)
			}
		}
	}
	sort.Strings(out)
	return out
}

// ClearDirty clears the dirty flag for the given files, or for every file
// when none are given.
func (t *Tracker) ClearDirty(files ...string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(files) == 0 {
		for p, state := range t.files {
			state.IsDirty = false
			t.files[p] = state
		}
		return
	}

	for _, path := range files {
		absPath, err := filepath.Abs(path)
		if err != nil {
			continue
		}
		if state, exists := t.files[absPath]; exists {
			state.IsDirty = false
			t.files[absPath] = state
		}
	}
}

// Count returns the number of dirty files.
func (t *Tracker) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	count := 0
	for _, state := range t.files {
		if state.IsDirty {
			count++
		}
	}
	return count
}

// TotalCount returns the total number of tracked files.
func (t *Tracker) TotalCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.files)
}

// Hash returns the recorded hash of a tracked file.
func (t *Tracker) Hash(path string) (string, bool) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", false
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	state, exists := t.files[absPath]
	return state.Hash, exists
}

// Forget removes a file from tracking.
func (t *Tracker) Forget(path string) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.files, absPath)
}

// Clear removes all tracked files.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.files = make(map[string]fileState)
}

// Path returns the full path of the state file.
func (t *Tracker) Path() string {
	return filepath.Join(t.cacheDir, t.cacheFile)
}

// Save persists the state through a temporary file renamed into place.
func (t *Tracker) Save() error {
	if err := os.MkdirAll(t.cacheDir, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(t.cacheDir, t.cacheFile+".*")
	if err != nil {
		return fmt.Errorf("failed to create cache file: %w", err)
	}
	if err := t.Encode(tmp); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), t.Path()); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace cache file: %w", err)
	}
	return nil
}

// Load restores the state from the cache file. A missing file is not an
// error; a file of another version is ignored so every source reads as new.
func (t *Tracker) Load() error {
	f, err := os.Open(t.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open cache file: %w", err)
	}
	defer f.Close()
	return t.Decode(f)
}

// Encode writes the state as indented JSON.
func (t *Tracker) Encode(w io.Writer) error {
	t.mu.RLock()
	files := make([]fileState, 0, len(t.files))
	for _, state := range t.files {
		files = append(files, state)
	}
	t.mu.RUnlock()
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(dirtyData{Version: stateVersion, Files: files}); err != nil {
		return fmt.Errorf("failed to encode dirty data: %w", err)
	}
	return nil
}

// Decode replaces the state with the JSON read from r.
func (t *Tracker) Decode(r io.Reader) error {
	var data dirtyData
	if err := json.NewDecoder(r).Decode(&data); err != nil {
		return fmt.Errorf("failed to decode dirty data: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.files = make(map[string]fileState, len(data.Files))
	if data.Version != stateVersion {
		return nil
	}
	for _, state := range data.Files {
		t.files[state.Path] = state
	}
	return nil
}
