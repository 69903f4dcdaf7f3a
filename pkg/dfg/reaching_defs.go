package dfg

import (
	"container/list"
	"sort"

	"github.com/l3aro/jflow/pkg/graph"
)

// ReachingDefs holds the result of a reaching-definitions analysis over one
// graph. Definitions are numbered in node order.
type ReachingDefs struct {
	g    *graph.Graph
	Defs []Definition
	// In and Out map a node to the definitions reaching its entry and exit.
	In  map[graph.NodeID]map[int]struct{}
	Out map[graph.NodeID]map[int]struct{}

	gen  map[graph.NodeID]map[int]struct{}
	kill map[graph.NodeID][]*graph.VarRef
}

// ReachingDefinitions computes which definitions reach each node of g using a
// worklist over the flow edges. Alias definitions are generated but never
// kill.
func ReachingDefinitions(g *graph.Graph) *ReachingDefs {
	r := &ReachingDefs{
		g:    g,
		In:   make(map[graph.NodeID]map[int]struct{}),
		Out:  make(map[graph.NodeID]map[int]struct{}),
		gen:  make(map[graph.NodeID]map[int]struct{}),
		kill: make(map[graph.NodeID][]*graph.VarRef),
	}
	r.initialize()

	worklist := list.New()
	for _, n := range g.Nodes() {
		r.In[n.Handle] = make(map[int]struct{})
		r.Out[n.Handle] = r.copySet(r.gen[n.Handle])
		worklist.PushBack(n.Handle)
	}

	for worklist.Len() > 0 {
		id := worklist.Remove(worklist.Front()).(graph.NodeID)

		in := make(map[int]struct{})
		for _, e := range g.In(id) {
			if Flows(g, e) {
				for d := range r.Out[e.From] {
					in[d] = struct{}{}
				}
			}
		}
		r.In[id] = in

		out := r.computeOut(id, in)
		if !r.setsEqual(out, r.Out[id]) {
			r.Out[id] = out
			for _, e := range g.Out(id) {
				if Flows(g, e) {
					worklist.PushBack(e.To)
				}
			}
		}
	}
	return r
}

func (r *ReachingDefs) initialize() {
	for _, n := range r.g.Nodes() {
		gen := make(map[int]struct{})
		for _, d := range n.Defs {
			id := len(r.Defs)
			r.Defs = append(r.Defs, Definition{ID: id, Node: n.Handle, Ref: d})
			gen[id] = struct{}{}
			if !d.IsAlias() {
				r.kill[n.Handle] = append(r.kill[n.Handle], d)
			}
		}
		r.gen[n.Handle] = gen
	}
}

// computeOut computes out[n] = gen[n] U (in[n] - kill[n]).
func (r *ReachingDefs) computeOut(id graph.NodeID, in map[int]struct{}) map[int]struct{} {
	out := r.copySet(r.gen[id])
	for d := range in {
		if !graph.ContainsRef(r.kill[id], r.Defs[d].Ref) {
			out[d] = struct{}{}
		}
	}
	return out
}

func (r *ReachingDefs) copySet(src map[int]struct{}) map[int]struct{} {
	dst := make(map[int]struct{}, len(src))
	for k := range src {
		dst[k] = struct{}{}
	}
	return dst
}

func (r *ReachingDefs) setsEqual(a, b map[int]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}

// Reaching returns the definitions reaching the entry of node id, ordered by
// definition number.
func (r *ReachingDefs) Reaching(id graph.NodeID) []Definition {
	ids := make([]int, 0, len(r.In[id]))
	for d := range r.In[id] {
		ids = append(ids, d)
	}
	sort.Ints(ids)
	out := make([]Definition, len(ids))
	for i, d := range ids {
		out[i] = r.Defs[d]
	}
	return out
}

// ReachingOf returns the definitions of ref reaching node id.
func (r *ReachingDefs) ReachingOf(id graph.NodeID, ref *graph.VarRef) []Definition {
	var out []Definition
	for _, d := range r.Reaching(id) {
		if d.Ref.Same(ref) {
			out = append(out, d)
		}
	}
	return out
}

// DefUseChains connects every use in g to the definitions reaching it.
func DefUseChains(g *graph.Graph) []Chain {
	r := ReachingDefinitions(g)
	return r.Chains()
}

// Chains builds the def-use chains from the computed sets.
func (r *ReachingDefs) Chains() []Chain {
	seen := make(map[Chain]bool)
	var chains []Chain
	for _, n := range r.g.Nodes() {
		for _, u := range n.Uses {
			for _, d := range r.ReachingOf(n.Handle, u) {
				c := Chain{Def: d.Node, Use: n.Handle, VarName: u.QualifiedName(), Alias: u.IsAlias()}
				if !seen[c] {
					seen[c] = true
					chains = append(chains, c)
				}
			}
		}
	}
	return chains
}
