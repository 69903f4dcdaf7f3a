// Package scanner walks a project tree and lists the files the analysis cares
// about. It honors .jflowignore files with gitignore-style patterns.
package scanner

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// IgnoreFileName is the per-directory ignore file.
const IgnoreFileName = ".jflowignore"

// FileInfo describes a discovered file.
type FileInfo struct {
	Path     string // Relative path from root, slash separated
	FullPath string // Absolute path
	Kind     string // File kind from extension
	Size     int64
}

// Options configures the scanner.
type Options struct {
	SkipHidden      bool
	FollowSymlinks  bool
	DefaultExcludes []string
	IgnoreFileName  string
	// Kinds restricts results to the given file kinds; empty keeps all files.
	Kinds []string
}

// DefaultOptions returns options suited to Java source trees.
func DefaultOptions() Options {
	return Options{
		SkipHidden:     true,
		IgnoreFileName: IgnoreFileName,
		DefaultExcludes: []string{
			".git",
			".hg",
			".svn",
			".idea",
			".vscode",
			".gradle",
			".jflow",
			"node_modules",
			"target",
			"build",
			"out",
			"bin",
		},
	}
}

// JavaOptions returns DefaultOptions restricted to Java sources.
func JavaOptions() Options {
	opts := DefaultOptions()
	opts.Kinds = []string{KindJava}
	return opts
}

// Scanner walks directory trees.
type Scanner struct {
	opts Options
	root string
}

// New creates a Scanner.
func New(opts Options) *Scanner {
	if opts.IgnoreFileName == "" {
		opts.IgnoreFileName = IgnoreFileName
	}
	return &Scanner{opts: opts}
}

// Scan walks root and returns the matching files sorted by path.
func (s *Scanner) Scan(root string) ([]FileInfo, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("getting absolute path: %w", err)
	}
	s.root = absRoot

	patterns, err := s.loadIgnorePatterns(absRoot)
	if err != nil {
		return nil, fmt.Errorf("loading ignore patterns: %w", err)
	}

	var files []FileInfo
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		rel, err := filepath.Rel(absRoot, path)
		if err != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if s.opts.SkipHidden && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if s.isDefaultExcluded(d.Name()) || s.ignored(rel+"/", patterns) {
				return filepath.SkipDir
			}
			nested, err := s.loadIgnorePatterns(path)
			if err == nil {
				patterns = append(patterns, nested...)
			}
			return nil
		}
		if s.ignored(rel, patterns) {
			return nil
		}

		info, err := s.stat(path, d)
		if err != nil || info == nil {
			return nil
		}
		kind := DetectKind(filepath.Ext(path))
		if !s.wanted(kind) {
			return nil
		}
		files = append(files, FileInfo{Path: rel, FullPath: path, Kind: kind, Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking directory: %w", err)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// stat resolves symlinks that stay within the root; it returns nil for
// entries to skip.
func (s *Scanner) stat(path string, d fs.DirEntry) (fs.FileInfo, error) {
	if d.Type()&fs.ModeSymlink == 0 {
		return d.Info()
	}
	if !s.opts.FollowSymlinks {
		return nil, nil
	}
	real, err := filepath.EvalSymlinks(path)
	if err != nil {
		return nil, nil
	}
	real, err = filepath.Abs(real)
	if err != nil || !strings.HasPrefix(real, s.root+string(filepath.Separator)) {
		return nil, nil
	}
	info, err := os.Stat(real)
	if err != nil || info.IsDir() {
		return nil, nil
	}
	return info, nil
}

func (s *Scanner) wanted(kind string) bool {
	if len(s.opts.Kinds) == 0 {
		return true
	}
	for _, k := range s.opts.Kinds {
		if k == kind {
			return true
		}
	}
	return false
}

func (s *Scanner) isDefaultExcluded(name string) bool {
	for _, exclude := range s.opts.DefaultExcludes {
		if strings.EqualFold(name, exclude) {
			return true
		}
	}
	return false
}

func (s *Scanner) loadIgnorePatterns(dir string) ([]IgnorePattern, error) {
	f, err := os.Open(filepath.Join(dir, s.opts.IgnoreFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var patterns []IgnorePattern
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, ParseIgnorePattern(line))
	}
	return patterns, sc.Err()
}

// ignored applies patterns in order; a later negation re-includes a path.
func (s *Scanner) ignored(rel string, patterns []IgnorePattern) bool {
	ignored := false
	for _, p := range patterns {
		if p.Match(rel) {
			ignored = !p.IsNegation()
		}
	}
	return ignored
}

// Scan walks root with default options.
func Scan(root string) ([]FileInfo, error) {
	return New(DefaultOptions()).Scan(root)
}

// ScanJava lists the Java sources under root.
func ScanJava(root string) ([]FileInfo, error) {
	return New(JavaOptions()).Scan(root)
}
