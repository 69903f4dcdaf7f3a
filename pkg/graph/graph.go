package graph

import (
	"sync/atomic"
)

// NodeID is a node's handle within its graph arena.
type NodeID int

// EdgeID is an edge's handle within its graph arena.
type EdgeID int

// NoNode is the invalid node handle.
const NoNode NodeID = -1

// NoEdge is the invalid edge handle.
const NoEdge EdgeID = -1

// Counter hands out node identities unique within one analysis session.
type Counter struct {
	n atomic.Int64
}

// Next returns the next identity.
func (c *Counter) Next() int64 {
	return c.n.Add(1)
}

// Current returns the last identity handed out.
func (c *Counter) Current() int64 {
	return c.n.Load()
}

// Reset restarts numbering.
func (c *Counter) Reset() {
	c.n.Store(0)
}

// CallSite describes the resolved target of a call node.
type CallSite struct {
	Class       string `json:"class"`
	Name        string `json:"name"`
	Signature   string `json:"signature"`
	Result      string `json:"result,omitempty"`
	Static      bool   `json:"static,omitempty"`
	Constructor bool   `json:"constructor,omitempty"`
	InProject   bool   `json:"in_project,omitempty"`
}

// Key returns Class.signature.
func (c *CallSite) Key() string {
	return c.Class + "." + c.Signature
}

// Node is a graph vertex.
type Node struct {
	ID     int64    `json:"id"`
	Handle NodeID   `json:"handle"`
	Kind   NodeKind `json:"kind"`
	Label  string   `json:"label,omitempty"`
	Line   int      `json:"line,omitempty"`

	Defs []*VarRef `json:"defs,omitempty"`
	Uses []*VarRef `json:"uses,omitempty"`

	Call *CallSite `json:"call,omitempty"`
	// Types lists caught exception types on catch nodes and raised types on
	// throw and call nodes.
	Types []string `json:"types,omitempty"`

	in      []EdgeID
	out     []EdgeID
	retired bool
}

// AddDef appends r to the def list unless an identical reference is present.
func (n *Node) AddDef(r *VarRef) {
	if r == nil {
		return
	}
	for _, d := range n.Defs {
		if d.Same(r) && d.AliasOf == r.AliasOf {
			return
		}
	}
	n.Defs = append(n.Defs, r)
}

// AddUse appends r to the use list unless an identical reference is present.
func (n *Node) AddUse(r *VarRef) {
	if r == nil {
		return
	}
	for _, u := range n.Uses {
		if u.Same(r) && u.AliasOf == r.AliasOf {
			return
		}
	}
	n.Uses = append(n.Uses, r)
}

// Defines reports whether the node defines a reference Same as r.
func (n *Node) Defines(r *VarRef) bool {
	return ContainsRef(n.Defs, r)
}

// UsesRef reports whether the node uses a reference Same as r.
func (n *Node) UsesRef(r *VarRef) bool {
	return ContainsRef(n.Uses, r)
}

// Retired reports whether the node was replaced by Reconnect.
func (n *Node) Retired() bool {
	return n.retired
}

// Edge is a directed, labeled control-flow edge.
type Edge struct {
	ID   EdgeID   `json:"id"`
	From NodeID   `json:"from"`
	To   NodeID   `json:"to"`
	Kind EdgeKind `json:"kind"`
	// Header is the loop header a loop-back edge closes, NoNode otherwise.
	Header NodeID `json:"header"`

	removed bool
}

// Graph is an arena of nodes and edges.
type Graph struct {
	nodes []*Node
	edges []*Edge
	ids   *Counter
}

// New creates an empty graph drawing node identities from ids. A nil counter
// gives the graph a private one.
func New(ids *Counter) *Graph {
	if ids == nil {
		ids = &Counter{}
	}
	return &Graph{ids: ids}
}

// AddNode creates a node and returns it.
func (g *Graph) AddNode(kind NodeKind, label string, line int) *Node {
	n := &Node{
		ID:     g.ids.Next(),
		Handle: NodeID(len(g.nodes)),
		Kind:   kind,
		Label:  label,
		Line:   line,
	}
	g.nodes = append(g.nodes, n)
	return n
}

func (g *Graph) valid(id NodeID) bool {
	return id >= 0 && int(id) < len(g.nodes)
}

// Node returns the node for id, or nil.
func (g *Graph) Node(id NodeID) *Node {
	if !g.valid(id) {
		return nil
	}
	return g.nodes[id]
}

// Edge returns the edge for id, or nil.
func (g *Graph) Edge(id EdgeID) *Edge {
	if id < 0 || int(id) >= len(g.edges) {
		return nil
	}
	return g.edges[id]
}

// AddEdge connects from to to with the given kind.
func (g *Graph) AddEdge(from, to NodeID, kind EdgeKind) EdgeID {
	if !g.valid(from) || !g.valid(to) {
		return NoEdge
	}
	e := &Edge{ID: EdgeID(len(g.edges)), From: from, To: to, Kind: kind, Header: NoNode}
	g.edges = append(g.edges, e)
	g.nodes[from].out = append(g.nodes[from].out, e.ID)
	g.nodes[to].in = append(g.nodes[to].in, e.ID)
	return e.ID
}

// AddLoopBack adds a loop-back edge closing the loop headed by header.
func (g *Graph) AddLoopBack(from, to, header NodeID) EdgeID {
	id := g.AddEdge(from, to, EdgeLoopBack)
	if id != NoEdge {
		g.edges[id].Header = header
	}
	return id
}

// HasEdge reports whether an edge of the given kind joins from and to.
func (g *Graph) HasEdge(from, to NodeID, kind EdgeKind) bool {
	if !g.valid(from) {
		return false
	}
	for _, eid := range g.nodes[from].out {
		e := g.edges[eid]
		if e.To == to && e.Kind == kind {
			return true
		}
	}
	return false
}

// SetKind relabels an edge; header is only kept for loop-back edges.
func (g *Graph) SetKind(id EdgeID, kind EdgeKind, header NodeID) {
	e := g.Edge(id)
	if e == nil {
		return
	}
	e.Kind = kind
	if kind == EdgeLoopBack {
		e.Header = header
	} else {
		e.Header = NoNode
	}
}

// Retarget moves the head of an edge to a different node.
func (g *Graph) Retarget(id EdgeID, to NodeID) {
	e := g.Edge(id)
	if e == nil || e.removed || !g.valid(to) || e.To == to {
		return
	}
	g.nodes[e.To].in = removeID(g.nodes[e.To].in, id)
	e.To = to
	g.nodes[to].in = append(g.nodes[to].in, id)
}

// Reconnect redirects every edge incident to placeholder so it is incident to
// target instead, then retires placeholder. Each edge is moved exactly once;
// edges already redirected elsewhere are untouched.
func (g *Graph) Reconnect(placeholder, target NodeID) {
	if placeholder == target || !g.valid(placeholder) || !g.valid(target) {
		return
	}
	p := g.nodes[placeholder]
	t := g.nodes[target]
	for _, eid := range p.in {
		g.edges[eid].To = target
		t.in = append(t.in, eid)
	}
	for _, eid := range p.out {
		g.edges[eid].From = target
		t.out = append(t.out, eid)
	}
	p.in = nil
	p.out = nil
	p.retired = true
}

// RemoveEdge deletes an edge.
func (g *Graph) RemoveEdge(id EdgeID) {
	e := g.Edge(id)
	if e == nil || e.removed {
		return
	}
	g.nodes[e.From].out = removeID(g.nodes[e.From].out, id)
	g.nodes[e.To].in = removeID(g.nodes[e.To].in, id)
	e.removed = true
}

// Retire removes a node together with its edges.
func (g *Graph) Retire(id NodeID) {
	n := g.Node(id)
	if n == nil || n.retired {
		return
	}
	for _, eid := range append([]EdgeID(nil), n.in...) {
		g.RemoveEdge(eid)
	}
	for _, eid := range append([]EdgeID(nil), n.out...) {
		g.RemoveEdge(eid)
	}
	n.retired = true
}

func removeID(ids []EdgeID, id EdgeID) []EdgeID {
	for i, x := range ids {
		if x == id {
			return append(ids[:i:i], ids[i+1:]...)
		}
	}
	return ids
}

// Nodes returns the live nodes in creation order.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		if !n.retired {
			out = append(out, n)
		}
	}
	return out
}

// NodeCount returns the number of live nodes.
func (g *Graph) NodeCount() int {
	count := 0
	for _, n := range g.nodes {
		if !n.retired {
			count++
		}
	}
	return count
}

// Edges returns the live edges in creation order.
func (g *Graph) Edges() []*Edge {
	out := make([]*Edge, 0, len(g.edges))
	for _, e := range g.edges {
		if !e.removed {
			out = append(out, e)
		}
	}
	return out
}

// Out returns the outgoing edges of a node.
func (g *Graph) Out(id NodeID) []*Edge {
	n := g.Node(id)
	if n == nil {
		return nil
	}
	out := make([]*Edge, len(n.out))
	for i, eid := range n.out {
		out[i] = g.edges[eid]
	}
	return out
}

// In returns the incoming edges of a node.
func (g *Graph) In(id NodeID) []*Edge {
	n := g.Node(id)
	if n == nil {
		return nil
	}
	in := make([]*Edge, len(n.in))
	for i, eid := range n.in {
		in[i] = g.edges[eid]
	}
	return in
}

// Successors returns distinct successor handles in edge order.
func (g *Graph) Successors(id NodeID) []NodeID {
	var out []NodeID
	seen := make(map[NodeID]bool)
	for _, e := range g.Out(id) {
		if !seen[e.To] {
			seen[e.To] = true
			out = append(out, e.To)
		}
	}
	return out
}

// Predecessors returns distinct predecessor handles in edge order.
func (g *Graph) Predecessors(id NodeID) []NodeID {
	var out []NodeID
	seen := make(map[NodeID]bool)
	for _, e := range g.In(id) {
		if !seen[e.From] {
			seen[e.From] = true
			out = append(out, e.From)
		}
	}
	return out
}

// Reachable returns the nodes reachable from start (start included) following
// edges accepted by follow; a nil follow accepts all edges.
func (g *Graph) Reachable(start NodeID, follow func(*Edge) bool) map[NodeID]bool {
	seen := make(map[NodeID]bool)
	if !g.valid(start) {
		return seen
	}
	stack := []NodeID{start}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[id] {
			continue
		}
		seen[id] = true
		for _, e := range g.Out(id) {
			if follow != nil && !follow(e) {
				continue
			}
			if !seen[e.To] {
				stack = append(stack, e.To)
			}
		}
	}
	return seen
}

// CanReach reports whether to is reachable from from.
func (g *Graph) CanReach(from, to NodeID) bool {
	return g.Reachable(from, nil)[to]
}

// NodesOfKind returns the live nodes of the given kind.
func (g *Graph) NodesOfKind(kind NodeKind) []*Node {
	var out []*Node
	for _, n := range g.Nodes() {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}
