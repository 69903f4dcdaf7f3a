package cache

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
)

// FormatVersion is the on-disk layout version of the bytecode cache.
const FormatVersion = 2

var (
	// ErrObsoleteFormat is returned for a cache file written by another layout version.
	ErrObsoleteFormat = errors.New("obsolete bytecode cache format")
	// ErrMalformedRecord is returned for a structurally invalid cache file or record.
	ErrMalformedRecord = errors.New("malformed bytecode cache record")
)

// FatalError wraps the cache conditions that must stop the process.
type FatalError struct {
	Path string
	Err  error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("bytecode cache %s: %v; delete the file and run again", e.Path, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether err carries a FatalError.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}

// Record types.
const (
	TypeClass  = "class"
	TypeMethod = "method"
	TypeField  = "field"
)

// Record attribute keys.
const (
	AttrType        = "type"
	AttrName        = "name"
	AttrClass       = "class"
	AttrSignature   = "signature"
	AttrModifiers   = "modifiers"
	AttrReturn      = "return"
	AttrKind        = "kind"
	AttrSuperclass  = "superclass"
	AttrInterfaces  = "interfaces"
	AttrMethods     = "methods"
	AttrFields      = "fields"
	AttrParams      = "params"
	AttrThrows      = "throws"
	AttrConstructor = "constructor"
	AttrDefs        = "defs"
	AttrUses        = "uses"
	AttrAccessed    = "accessed"
	AttrVerdict     = "verdict"
	AttrUnknown     = "unknown"
)

// Record is one flat key/value attribute record.
type Record map[string]string

func (r Record) clone() Record {
	c := make(Record, len(r))
	for k, v := range r {
		c[k] = v
	}
	return c
}

func (r Record) equal(o Record) bool {
	if len(r) != len(o) {
		return false
	}
	for k, v := range r {
		if ov, ok := o[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// Validate checks the record's structure.
func (r Record) Validate() error {
	typ := r[AttrType]
	if r[AttrName] == "" {
		return fmt.Errorf("%w: missing %s", ErrMalformedRecord, AttrName)
	}
	switch typ {
	case TypeClass:
	case TypeMethod:
		if r[AttrClass] == "" || r[AttrSignature] == "" {
			return fmt.Errorf("%w: method %s lacks class or signature", ErrMalformedRecord, r[AttrName])
		}
	case TypeField:
		if r[AttrClass] == "" {
			return fmt.Errorf("%w: field %s lacks class", ErrMalformedRecord, r[AttrName])
		}
	default:
		return fmt.Errorf("%w: unknown record type %q", ErrMalformedRecord, typ)
	}
	if m, ok := r[AttrModifiers]; ok && m != "" {
		if _, err := strconv.Atoi(m); err != nil {
			return fmt.Errorf("%w: modifiers %q", ErrMalformedRecord, m)
		}
	}
	for _, key := range []string{AttrDefs, AttrUses} {
		if _, err := DecodeFields(r[key]); err != nil {
			return err
		}
	}
	switch r[AttrVerdict] {
	case "", "YES", "NO", "MAYBE":
	default:
		return fmt.Errorf("%w: verdict %q", ErrMalformedRecord, r[AttrVerdict])
	}
	return nil
}

// FieldEntry is one class.field;isPrimitive;modifier triple.
type FieldEntry struct {
	Name      string
	Primitive bool
	Modifiers int
}

func (e FieldEntry) String() string {
	return e.Name + ";" + strconv.FormatBool(e.Primitive) + ";" + strconv.Itoa(e.Modifiers)
}

// EncodeFields joins triples with commas.
func EncodeFields(entries []FieldEntry) string {
	parts := make([]string, len(entries))
	for i, e := range entries {
		parts[i] = e.String()
	}
	return strings.Join(parts, ",")
}

// DecodeFields parses a comma-joined triple list.
func DecodeFields(s string) ([]FieldEntry, error) {
	if s == "" {
		return nil, nil
	}
	var out []FieldEntry
	for _, part := range strings.Split(s, ",") {
		fields := strings.Split(part, ";")
		if len(fields) != 3 || fields[0] == "" {
			return nil, fmt.Errorf("%w: field triple %q", ErrMalformedRecord, part)
		}
		prim, err := strconv.ParseBool(fields[1])
		if err != nil {
			return nil, fmt.Errorf("%w: field triple %q", ErrMalformedRecord, part)
		}
		mod, err := strconv.Atoi(fields[2])
		if err != nil {
			return nil, fmt.Errorf("%w: field triple %q", ErrMalformedRecord, part)
		}
		out = append(out, FieldEntry{Name: fields[0], Primitive: prim, Modifiers: mod})
	}
	return out, nil
}

// JoinList joins names (which may contain commas, as in signatures) with '|'.
func JoinList(names []string) string {
	return strings.Join(names, "|")
}

// SplitList reverses JoinList.
func SplitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "|")
}

type bytecodeFile struct {
	Version int               `msgpack:"version"`
	Records map[string]Record `msgpack:"records"`
}

// BytecodeCache holds flat attribute records about external classes, methods
// and fields, persisted in one msgpack file per project.
type BytecodeCache struct {
	mu      sync.Mutex
	path    string
	records map[string]Record
	dirty   bool
}

// NewBytecodeCache creates an empty cache bound to path.
func NewBytecodeCache(path string) *BytecodeCache {
	return &BytecodeCache{path: path, records: make(map[string]Record)}
}

// Path returns the backing file.
func (c *BytecodeCache) Path() string {
	return c.path
}

// Get returns a copy of the record stored under key.
func (c *BytecodeCache) Get(key string) (Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.records[key]
	if !ok {
		return nil, false
	}
	return r.clone(), true
}

// Put stores a copy of r under key.
func (c *BytecodeCache) Put(key string, r Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if old, ok := c.records[key]; ok && old.equal(r) {
		return
	}
	c.records[key] = r.clone()
	c.dirty = true
}

// Delete drops a record.
func (c *BytecodeCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.records[key]; ok {
		delete(c.records, key)
		c.dirty = true
	}
}

// Clear drops every record.
func (c *BytecodeCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.records) > 0 {
		c.dirty = true
	}
	c.records = make(map[string]Record)
}

// Len returns the number of records.
func (c *BytecodeCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.records)
}

// Keys returns the record keys sorted.
func (c *BytecodeCache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.records))
	for k := range c.records {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Dirty reports whether records changed since the last load or save.
func (c *BytecodeCache) Dirty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dirty
}

// Encode writes the cache in its persisted layout.
func (c *BytecodeCache) Encode(w io.Writer) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	enc := msgpack.NewEncoder(w)
	enc.SetSortMapKeys(true)
	return enc.Encode(&bytecodeFile{Version: FormatVersion, Records: c.records})
}

// Decode replaces the records with those read from r. Loading is all or
// nothing: any invalid record leaves the cache untouched.
func (c *BytecodeCache) Decode(r io.Reader) error {
	var f bytecodeFile
	if err := msgpack.NewDecoder(r).Decode(&f); err != nil {
		return &FatalError{Path: c.path, Err: fmt.Errorf("%w: %v", ErrMalformedRecord, err)}
	}
	if f.Version != FormatVersion {
		return &FatalError{Path: c.path, Err: fmt.Errorf("%w: version %d, want %d", ErrObsoleteFormat, f.Version, FormatVersion)}
	}
	for key, rec := range f.Records {
		if err := rec.Validate(); err != nil {
			return &FatalError{Path: c.path, Err: fmt.Errorf("record %s: %w", key, err)}
		}
	}
	if f.Records == nil {
		f.Records = make(map[string]Record)
	}

	c.mu.Lock()
	c.records = f.Records
	c.dirty = false
	c.mu.Unlock()
	return nil
}

// Load reads the backing file. A missing file leaves the cache empty.
func (c *BytecodeCache) Load() error {
	f, err := os.Open(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open bytecode cache: %w", err)
	}
	defer f.Close()
	return c.Decode(f)
}

// LoadIfFresh loads the backing file unless one of deps was modified after it.
// It reports whether records were loaded.
func (c *BytecodeCache) LoadIfFresh(deps []string) (bool, error) {
	info, err := os.Stat(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat bytecode cache: %w", err)
	}
	for _, dep := range deps {
		di, err := os.Stat(dep)
		if err != nil {
			continue
		}
		if di.ModTime().After(info.ModTime()) {
			return false, nil
		}
	}
	if err := c.Load(); err != nil {
		return false, err
	}
	return true, nil
}

// Save writes the cache through a temporary file and a rename, so readers
// never observe a partial file. Concurrent writers race; the last one wins.
func (c *BytecodeCache) Save() error {
	var buf bytes.Buffer
	if err := c.Encode(&buf); err != nil {
		return fmt.Errorf("failed to encode bytecode cache: %w", err)
	}
	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(c.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp cache file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write bytecode cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write bytecode cache: %w", err)
	}
	if err := os.Rename(tmpName, c.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace bytecode cache: %w", err)
	}

	c.mu.Lock()
	c.dirty = false
	c.mu.Unlock()
	return nil
}
