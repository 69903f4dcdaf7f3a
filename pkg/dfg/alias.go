package dfg

import (
	"github.com/l3aro/jflow/pkg/graph"
)

// Flows reports whether data flows along e. Trace edges left behind by jumps
// are never taken at runtime.
func Flows(g *graph.Graph, e *graph.Edge) bool {
	if e.Kind != graph.EdgeFallThrough {
		return true
	}
	from := g.Node(e.From)
	return from != nil && !from.Kind.IsJump()
}

func ownDefs(n *graph.Node) []*graph.VarRef {
	var out []*graph.VarRef
	for _, d := range n.Defs {
		if !d.IsAlias() {
			out = append(out, d)
		}
	}
	return out
}

func ownUses(n *graph.Node) []*graph.VarRef {
	var out []*graph.VarRef
	for _, u := range n.Uses {
		if !u.IsAlias() {
			out = append(out, u)
		}
	}
	return out
}

// pairOf returns the alias a defining node establishes: exactly one
// non-primitive local defined from exactly one used reference that is not a
// call result.
func pairOf(n *graph.Node) (Alias, bool) {
	if !n.Kind.IsDefining() {
		return Alias{}, false
	}
	defs, uses := ownDefs(n), ownUses(n)
	if len(defs) != 1 || len(uses) != 1 {
		return Alias{}, false
	}
	d, u := defs[0], uses[0]
	if d.Kind != graph.RefLocal || d.Primitive || u.CallResult || d.Same(u) {
		return Alias{}, false
	}
	return Alias{Node: n.Handle, New: d, Orig: u}, true
}

// Pairs returns the alias pairs established in g, in node order.
func Pairs(g *graph.Graph) []Alias {
	var out []Alias
	for _, n := range g.Nodes() {
		if a, ok := pairOf(n); ok {
			out = append(out, a)
		}
	}
	return out
}

// ResolveAliases propagates every alias pair of g forward. Downstream nodes
// that use or define through one side of a pair additionally record the other
// side, until a node reassigns either side. It returns the number of
// references added.
func ResolveAliases(g *graph.Graph) int {
	added := 0
	for _, a := range Pairs(g) {
		added += propagate(g, a)
	}
	return added
}

func rooted(r, side *graph.VarRef) bool {
	if r.Same(side) {
		return true
	}
	return r.Receiver != nil && r.Root().Same(side)
}

func propagate(g *graph.Graph, a Alias) int {
	added := 0
	visited := map[graph.NodeID]bool{a.Node: true}
	stack := successors(g, a.Node)
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[id] {
			continue
		}
		visited[id] = true
		n := g.Node(id)

		for _, u := range ownUses(n) {
			added += mirror(n, u, a, false)
		}
		if n.Defines(a.New) || n.Defines(a.Orig) {
			continue
		}
		for _, d := range ownDefs(n) {
			added += mirror(n, d, a, true)
		}
		stack = append(stack, successors(g, id)...)
	}
	return added
}

// mirror records on n the other side of a for a reference rooted at one
// side, as a def or a use.
func mirror(n *graph.Node, r *graph.VarRef, a Alias, def bool) int {
	var ref *graph.VarRef
	switch {
	case rooted(r, a.New):
		ref = a.Orig.AsAliasOf(a.New.QualifiedName())
	case rooted(r, a.Orig):
		ref = a.New.AsAliasOf(a.Orig.QualifiedName())
	default:
		return 0
	}
	if def {
		before := len(n.Defs)
		n.AddDef(ref)
		return len(n.Defs) - before
	}
	before := len(n.Uses)
	n.AddUse(ref)
	return len(n.Uses) - before
}

func successors(g *graph.Graph, id graph.NodeID) []graph.NodeID {
	var out []graph.NodeID
	for _, e := range g.Out(id) {
		if Flows(g, e) {
			out = append(out, e.To)
		}
	}
	return out
}

// Aliases returns the references the alias resolver added to n.
func Aliases(n *graph.Node) (defs, uses []*graph.VarRef) {
	for _, d := range n.Defs {
		if d.IsAlias() {
			defs = append(defs, d)
		}
	}
	for _, u := range n.Uses {
		if u.IsAlias() {
			uses = append(uses, u)
		}
	}
	return defs, uses
}
