// Package semantic is the facade that unifies in-project declarations,
// externally-compiled classes and cached external facts behind one set of
// Class, Method and Field objects.
//
// Objects are created on first resolution by a Registry and live until the
// Registry is destroyed. Names that cannot be resolved yield unregistered
// sentinels whose queries answer empty or false, so callers never nil-check
// resolution results.
package semantic

import (
	"sort"

	"github.com/l3aro/jflow/pkg/syntax"
)

// Origin tells which representation backs a facade object.
type Origin uint8

const (
	OriginUnregistered Origin = iota
	OriginSource
	OriginBinary
	OriginCache
)

func (o Origin) String() string {
	switch o {
	case OriginSource:
		return "source"
	case OriginBinary:
		return "binary"
	case OriginCache:
		return "cache"
	default:
		return "unregistered"
	}
}

// Verdict classifies whether a routine can write a field.
type Verdict uint8

const (
	VerdictNo Verdict = iota
	VerdictYes
	VerdictMaybe
)

func (v Verdict) String() string {
	switch v {
	case VerdictYes:
		return "YES"
	case VerdictMaybe:
		return "MAYBE"
	default:
		return "NO"
	}
}

// MarshalText renders the verdict in JSON output.
func (v Verdict) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// ParseVerdict is the inverse of Verdict.String.
func ParseVerdict(s string) (Verdict, bool) {
	switch s {
	case "NO":
		return VerdictNo, true
	case "YES":
		return VerdictYes, true
	case "MAYBE":
		return VerdictMaybe, true
	}
	return VerdictNo, false
}

// FieldRef identifies a field by qualified name together with the facts the
// persisted cache keeps about it.
type FieldRef struct {
	Name      string           `json:"name"`
	Primitive bool             `json:"primitive"`
	Modifiers syntax.Modifiers `json:"modifiers"`
}

// FieldSet is an insertion-ordered set of FieldRef keyed by name.
type FieldSet struct {
	refs  []FieldRef
	index map[string]int
}

// Add inserts r unless a field of that name is present. It reports whether
// the set grew.
func (s *FieldSet) Add(r FieldRef) bool {
	if s.index == nil {
		s.index = make(map[string]int)
	}
	if _, ok := s.index[r.Name]; ok {
		return false
	}
	s.index[r.Name] = len(s.refs)
	s.refs = append(s.refs, r)
	return true
}

// AddAll inserts every ref and reports whether the set grew.
func (s *FieldSet) AddAll(refs []FieldRef) bool {
	grew := false
	for _, r := range refs {
		if s.Add(r) {
			grew = true
		}
	}
	return grew
}

// Has reports membership by qualified name.
func (s *FieldSet) Has(name string) bool {
	_, ok := s.index[name]
	return ok
}

// Len returns the set size.
func (s *FieldSet) Len() int {
	return len(s.refs)
}

// Sorted returns the members ordered by name.
func (s *FieldSet) Sorted() []FieldRef {
	out := append([]FieldRef(nil), s.refs...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns the sorted member names.
func (s *FieldSet) Names() []string {
	refs := s.Sorted()
	names := make([]string, len(refs))
	for i, r := range refs {
		names[i] = r.Name
	}
	return names
}

// Effects is the aggregated side-effect summary of a routine.
type Effects struct {
	Defs    []FieldRef `json:"defs"`
	Uses    []FieldRef `json:"uses"`
	Unknown bool       `json:"unknown,omitempty"`
	Verdict Verdict    `json:"verdict"`
}

// DefNames returns the sorted names of defined fields.
func (e *Effects) DefNames() []string {
	return refNames(e.Defs)
}

// UseNames returns the sorted names of used fields.
func (e *Effects) UseNames() []string {
	return refNames(e.Uses)
}

func refNames(refs []FieldRef) []string {
	names := make([]string, len(refs))
	for i, r := range refs {
		names[i] = r.Name
	}
	sort.Strings(names)
	return names
}
