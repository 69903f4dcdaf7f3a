// Package callgraph builds a project call graph from the call nodes of member
// control-flow graphs. Virtual calls also get an edge to every overriding
// method known to the registry.
package callgraph

import (
	"sort"

	"github.com/l3aro/jflow/pkg/cfg"
	"github.com/l3aro/jflow/pkg/graph"
	"github.com/l3aro/jflow/pkg/semantic"
)

// Edge is one caller to callee relation at a call site.
type Edge struct {
	SourceFile string         `json:"src_file,omitempty"`
	SourceFunc string         `json:"src_func"`
	DestFile   string         `json:"dst_file,omitempty"`
	DestFunc   string         `json:"dst_func"`
	Line       int            `json:"line,omitempty"`
	Kind       graph.NodeKind `json:"kind"`
	// Dispatch marks an edge to an overrider reached through virtual dispatch.
	Dispatch bool `json:"dispatch,omitempty"`
	// External marks a callee outside the project.
	External bool `json:"external,omitempty"`
}

func (e Edge) key() string {
	k := e.SourceFunc + "->" + e.DestFunc
	if e.Dispatch {
		k += "*"
	}
	return k
}

// Stats summarizes a call graph.
type Stats struct {
	Routines      int `json:"routines"`
	TotalEdges    int `json:"total_edges"`
	ProjectEdges  int `json:"project_edges"`
	ExternalEdges int `json:"external_edges"`
	DispatchEdges int `json:"dispatch_edges"`
}

// Graph is a call graph over member keys.
type Graph struct {
	reg      *semantic.Registry
	edges    []Edge
	seen     map[string]bool
	members  map[string]bool
	byCaller map[string][]int
	byCallee map[string][]int
}

// New creates an empty call graph resolving callees through reg.
func New(reg *semantic.Registry) *Graph {
	return &Graph{
		reg:      reg,
		seen:     make(map[string]bool),
		members:  make(map[string]bool),
		byCaller: make(map[string][]int),
		byCallee: make(map[string][]int),
	}
}

// Add records the calls made by c. Adding the same member twice is a no-op.
func (g *Graph) Add(c *cfg.CFG) {
	if g.members[c.Member] {
		return
	}
	g.members[c.Member] = true
	src := g.fileOf(c.Class)

	for _, n := range c.CallNodes() {
		site := n.Call
		e := Edge{
			SourceFile: src,
			SourceFunc: c.Member,
			DestFunc:   site.Key(),
			Line:       n.Line,
			Kind:       n.Kind,
			External:   !site.InProject,
		}
		m := g.reg.LookupMethod(site.Key())
		if m != nil {
			e.DestFunc = m.Key()
			e.External = !m.InProject()
			e.DestFile = g.fileOf(m.Class.Name)
		}
		g.add(e)

		if m == nil || site.Static || site.Constructor || !m.Overridable() {
			continue
		}
		for _, o := range m.OverridingMethods() {
			g.add(Edge{
				SourceFile: src,
				SourceFunc: c.Member,
				DestFile:   g.fileOf(o.Class.Name),
				DestFunc:   o.Key(),
				Line:       n.Line,
				Kind:       n.Kind,
				Dispatch:   true,
				External:   !o.InProject(),
			})
		}
	}
}

// AddClass records the calls of every member graph of cc, nested classes
// included.
func (g *Graph) AddClass(cc *cfg.CCFG) {
	cc.Walk(g.Add)
}

func (g *Graph) add(e Edge) {
	k := e.key()
	if g.seen[k] {
		return
	}
	g.seen[k] = true
	i := len(g.edges)
	g.edges = append(g.edges, e)
	g.byCaller[e.SourceFunc] = append(g.byCaller[e.SourceFunc], i)
	g.byCallee[e.DestFunc] = append(g.byCallee[e.DestFunc], i)
}

func (g *Graph) fileOf(class string) string {
	if d, ok := g.reg.Project().Lookup(class); ok {
		return d.File
	}
	return ""
}

// Edges returns every edge, ordered by caller then callee.
func (g *Graph) Edges() []Edge {
	out := make([]Edge, len(g.edges))
	copy(out, g.edges)
	sortEdges(out)
	return out
}

// Callees returns the edges leaving member.
func (g *Graph) Callees(member string) []Edge {
	return g.pick(g.byCaller[member])
}

// Callers returns the edges reaching member.
func (g *Graph) Callers(member string) []Edge {
	return g.pick(g.byCallee[member])
}

// Impact returns the edges of every transitive caller of member, at most
// depth calls away. A depth of zero or less is unbounded.
func (g *Graph) Impact(member string, depth int) []Edge {
	var out []Edge
	visited := map[string]bool{member: true}
	frontier := []string{member}
	for level := 1; len(frontier) > 0 && (depth <= 0 || level <= depth); level++ {
		var next []string
		for _, callee := range frontier {
			for _, i := range g.byCallee[callee] {
				e := g.edges[i]
				out = append(out, e)
				if !visited[e.SourceFunc] {
					visited[e.SourceFunc] = true
					next = append(next, e.SourceFunc)
				}
			}
		}
		frontier = next
	}
	sortEdges(out)
	return out
}

// Stats returns the edge counts.
func (g *Graph) Stats() Stats {
	st := Stats{Routines: len(g.members), TotalEdges: len(g.edges)}
	for _, e := range g.edges {
		if e.External {
			st.ExternalEdges++
		} else {
			st.ProjectEdges++
		}
		if e.Dispatch {
			st.DispatchEdges++
		}
	}
	return st
}

func (g *Graph) pick(idx []int) []Edge {
	out := make([]Edge, len(idx))
	for i, j := range idx {
		out[i] = g.edges[j]
	}
	sortEdges(out)
	return out
}

func sortEdges(edges []Edge) {
	sort.SliceStable(edges, func(i, j int) bool {
		if edges[i].SourceFunc != edges[j].SourceFunc {
			return edges[i].SourceFunc < edges[j].SourceFunc
		}
		return edges[i].DestFunc < edges[j].DestFunc
	})
}
