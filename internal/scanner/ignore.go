package scanner

import (
	"path"
	"path/filepath"
	"strings"
)

// IgnorePattern is one gitignore-style line of a .jflowignore file.
type IgnorePattern struct {
	pattern  string
	negation bool
	dirOnly  bool
	// anchored patterns match from the root; the others at any depth.
	anchored bool
	segments []string
}

// ParseIgnorePattern parses a pattern line.
func ParseIgnorePattern(pattern string) IgnorePattern {
	p := IgnorePattern{pattern: pattern}
	if strings.HasPrefix(pattern, "!") {
		p.negation = true
		pattern = pattern[1:]
	}
	if strings.HasSuffix(pattern, "/") {
		p.dirOnly = true
		pattern = strings.TrimSuffix(pattern, "/")
	}
	if strings.HasPrefix(pattern, "/") {
		p.anchored = true
		pattern = pattern[1:]
	}
	if strings.Contains(pattern, "/") {
		p.anchored = true
	}
	p.segments = strings.Split(pattern, "/")
	return p
}

// Match reports whether the pattern covers rel. A trailing slash marks rel as
// a directory. A path inside a matched directory matches as well.
func (p IgnorePattern) Match(rel string) bool {
	rel = filepath.ToSlash(rel)
	isDir := strings.HasSuffix(rel, "/")
	segs := strings.Split(strings.Trim(rel, "/"), "/")
	for end := len(segs); end >= 1; end-- {
		if p.dirOnly && end == len(segs) && !isDir {
			continue
		}
		if p.matchPrefix(segs[:end]) {
			return true
		}
	}
	return false
}

// IsNegation reports a "!" pattern.
func (p IgnorePattern) IsNegation() bool {
	return p.negation
}

func (p IgnorePattern) String() string {
	return p.pattern
}

func (p IgnorePattern) matchPrefix(segs []string) bool {
	if p.anchored {
		return matchSegments(p.segments, segs)
	}
	for start := range segs {
		if matchSegments(p.segments, segs[start:]) {
			return true
		}
	}
	return false
}

func matchSegments(pat, segs []string) bool {
	if len(pat) == 0 {
		return len(segs) == 0
	}
	if pat[0] == "**" {
		for i := 0; i <= len(segs); i++ {
			if matchSegments(pat[1:], segs[i:]) {
				return true
			}
		}
		return false
	}
	if len(segs) == 0 {
		return false
	}
	ok, err := path.Match(pat[0], segs[0])
	return err == nil && ok && matchSegments(pat[1:], segs[1:])
}
