// Package javasrc is the Java frontend. It parses sources with tree-sitter and
// produces the pkg/syntax model with local names, fields and call targets
// bound.
//
// Parsing runs in three passes over all units of a project: type names are
// declared first, then member signatures, then bodies. Every unit therefore
// sees the types and members of the others regardless of file order.
package javasrc

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/java"

	"github.com/l3aro/jflow/internal/log"
	"github.com/l3aro/jflow/internal/scanner"
	"github.com/l3aro/jflow/pkg/syntax"
)

// ErrParse reports source text with syntax errors under Options.Strict.
var ErrParse = errors.New("java syntax error")

// parserPool is a pool of reusable tree-sitter parsers for Java.
var parserPool = sync.Pool{
	New: func() interface{} {
		parser := sitter.NewParser()
		parser.SetLanguage(java.GetLanguage())
		return parser
	},
}

// Source is one compilation unit.
type Source struct {
	Path    string
	Content []byte
}

// Options configures a Parser.
type Options struct {
	// Strict rejects units containing syntax errors. Otherwise the broken
	// constructs become Unsupported nodes and parsing goes on.
	Strict bool
	Logger log.Logger
}

// Parser turns Java sources into a syntax.Project.
type Parser struct {
	opts   Options
	logger log.Logger
}

// New creates a Parser.
func New(opts Options) *Parser {
	return &Parser{opts: opts, logger: log.OrDefault(opts.Logger)}
}

// Parse parses and binds the sources as one project.
func (p *Parser) Parse(ctx context.Context, sources ...Source) (*syntax.Project, error) {
	s := newSession(p.logger)
	defer s.close()

	for _, src := range sources {
		u, err := p.parseUnit(ctx, src)
		if err != nil {
			return nil, err
		}
		s.units = append(s.units, u)
	}
	s.declare()
	s.members()
	s.bodies()

	project := syntax.NewProject()
	for _, u := range s.units {
		for _, t := range u.types {
			project.Add(t.decl)
		}
	}
	p.logger.Debug("parsed java sources", "units", len(s.units), "types", len(s.all))
	return project, nil
}

func (p *Parser) parseUnit(ctx context.Context, src Source) (*unit, error) {
	parser := parserPool.Get().(*sitter.Parser)
	defer parserPool.Put(parser)

	tree, err := parser.ParseCtx(ctx, nil, src.Content)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", src.Path, err)
	}
	root := tree.RootNode()
	if root.HasError() {
		line := firstErrorLine(root)
		if p.opts.Strict {
			tree.Close()
			return nil, fmt.Errorf("%s:%d: %w", src.Path, line, ErrParse)
		}
		p.logger.Warn("syntax errors in source", "file", src.Path, "line", line)
	}
	return &unit{
		path:          src.Path,
		src:           src.Content,
		tree:          tree,
		root:          root,
		imports:       make(map[string]string),
		staticImports: make(map[string]string),
	}, nil
}

// ParseSource parses a single unit held in memory.
func (p *Parser) ParseSource(ctx context.Context, path string, src []byte) (*syntax.Project, error) {
	return p.Parse(ctx, Source{Path: path, Content: src})
}

// ParseFile parses a single file.
func (p *Parser) ParseFile(ctx context.Context, path string) (*syntax.Project, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file %s: %w", path, err)
	}
	return p.Parse(ctx, Source{Path: path, Content: content})
}

// ParseDir parses every Java source under root that the scanner keeps.
// Type declarations record paths relative to root.
func (p *Parser) ParseDir(ctx context.Context, root string) (*syntax.Project, error) {
	files, err := scanner.ScanJava(root)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", root, err)
	}
	sources := make([]Source, 0, len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		content, err := os.ReadFile(f.FullPath)
		if err != nil {
			return nil, fmt.Errorf("reading file %s: %w", f.Path, err)
		}
		sources = append(sources, Source{Path: f.Path, Content: content})
	}
	return p.Parse(ctx, sources...)
}

// ParseSource parses one unit with default options.
func ParseSource(path string, src []byte) (*syntax.Project, error) {
	return New(Options{}).ParseSource(context.Background(), path, src)
}

// ParseDir parses a source tree with default options.
func ParseDir(ctx context.Context, root string) (*syntax.Project, error) {
	return New(Options{}).ParseDir(ctx, root)
}

func firstErrorLine(n *sitter.Node) int {
	if n.Type() == "ERROR" || n.IsMissing() {
		return lineOf(n)
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c != nil && c.HasError() {
			return firstErrorLine(c)
		}
	}
	return lineOf(n)
}

func lineOf(n *sitter.Node) int {
	return int(n.StartPoint().Row) + 1
}

// namedChildren returns the named children of n, comments excluded.
func namedChildren(n *sitter.Node) []*sitter.Node {
	if n == nil {
		return nil
	}
	var out []*sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c == nil || isComment(c) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// childrenByField returns every child stored under a field name; grammar
// fields such as a for statement's init can repeat.
func childrenByField(n *sitter.Node, field string) []*sitter.Node {
	var out []*sitter.Node
	for i := 0; i < int(n.ChildCount()); i++ {
		if n.FieldNameForChild(i) == field {
			if c := n.Child(i); c != nil {
				out = append(out, c)
			}
		}
	}
	return out
}

func childOfType(n *sitter.Node, types ...string) *sitter.Node {
	if n == nil {
		return nil
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c == nil {
			continue
		}
		for _, t := range types {
			if c.Type() == t {
				return c
			}
		}
	}
	return nil
}

func isComment(n *sitter.Node) bool {
	switch n.Type() {
	case "line_comment", "block_comment", "comment":
		return true
	}
	return false
}
