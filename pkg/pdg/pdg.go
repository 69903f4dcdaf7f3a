package pdg

import (
	"github.com/l3aro/jflow/pkg/cfg"
	"github.com/l3aro/jflow/pkg/dfg"
	"github.com/l3aro/jflow/pkg/graph"
)

type nodeSet map[graph.NodeID]bool

func (s nodeSet) clone() nodeSet {
	c := make(nodeSet, len(s))
	for id := range s {
		c[id] = true
	}
	return c
}

// Build derives the dependence graph of c. A nil CFG yields an empty PDG.
func Build(c *cfg.CFG) *PDG {
	p := &PDG{CFG: c}
	if c != nil && c.Graph != nil {
		p.addControlDeps()
		p.addDataDeps()
	}
	p.index()
	return p
}

// reachesExit collects the nodes from which the exit is reachable along flow
// edges.
func reachesExit(g *graph.Graph, exit graph.NodeID) nodeSet {
	seen := nodeSet{exit: true}
	stack := []graph.NodeID{exit}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, e := range g.In(id) {
			if dfg.Flows(g, e) && !seen[e.From] {
				seen[e.From] = true
				stack = append(stack, e.From)
			}
		}
	}
	return seen
}

// postDominators computes, for every node that reaches the exit, the set of
// nodes post-dominating it.
func postDominators(g *graph.Graph, exit graph.NodeID, live nodeSet) map[graph.NodeID]nodeSet {
	pdom := make(map[graph.NodeID]nodeSet, len(live))
	for id := range live {
		if id == exit {
			pdom[id] = nodeSet{exit: true}
		} else {
			pdom[id] = live.clone()
		}
	}

	nodes := g.Nodes()
	for changed := true; changed; {
		changed = false
		for i := len(nodes) - 1; i >= 0; i-- {
			id := nodes[i].Handle
			if id == exit || !live[id] {
				continue
			}
			var meet nodeSet
			for _, e := range g.Out(id) {
				if !dfg.Flows(g, e) || !live[e.To] {
					continue
				}
				if meet == nil {
					meet = pdom[e.To].clone()
					continue
				}
				for d := range meet {
					if !pdom[e.To][d] {
						delete(meet, d)
					}
				}
			}
			if meet == nil {
				meet = nodeSet{}
			}
			meet[id] = true
			// Sets only shrink, so a size change is a change.
			if len(meet) != len(pdom[id]) {
				pdom[id] = meet
				changed = true
			}
		}
	}
	return pdom
}

// immediatePostDominators picks, for each node, the closest strict
// post-dominator. Post-dominators form a chain, so the closest one has the
// largest set of its own.
func immediatePostDominators(pdom map[graph.NodeID]nodeSet) map[graph.NodeID]graph.NodeID {
	ipdom := make(map[graph.NodeID]graph.NodeID, len(pdom))
	for id, set := range pdom {
		best, size := graph.NoNode, -1
		for d := range set {
			if d != id && len(pdom[d]) > size {
				best, size = d, len(pdom[d])
			}
		}
		ipdom[id] = best
	}
	return ipdom
}

// addControlDeps marks, for every branch edge A->B where B does not
// post-dominate A, the nodes from B up to ipdom(A) as control dependent on A.
func (p *PDG) addControlDeps() {
	g := p.CFG.Graph
	live := reachesExit(g, p.CFG.Exit)
	pdom := postDominators(g, p.CFG.Exit, live)
	ipdom := immediatePostDominators(pdom)

	seen := make(map[Dep]bool)
	for _, n := range g.Nodes() {
		a := n.Handle
		if !live[a] {
			continue
		}
		for _, e := range g.Out(a) {
			if !dfg.Flows(g, e) || !live[e.To] || pdom[a][e.To] {
				continue
			}
			stop := ipdom[a]
			for r := e.To; r != stop && r != graph.NoNode; r = ipdom[r] {
				d := Dep{From: a, To: r, DepType: DepTypeControl, Label: e.Kind.String()}
				if !seen[d] {
					seen[d] = true
					p.Deps = append(p.Deps, d)
				}
			}
		}
	}
}

func (p *PDG) addDataDeps() {
	seen := make(map[Dep]bool)
	for _, ch := range dfg.ReachingDefinitions(p.CFG.Graph).Chains() {
		if ch.Def == ch.Use {
			continue
		}
		d := Dep{From: ch.Def, To: ch.Use, DepType: DepTypeData, Label: ch.VarName}
		if !seen[d] {
			seen[d] = true
			p.Deps = append(p.Deps, d)
		}
	}
}

func (p *PDG) index() {
	p.in = make(map[graph.NodeID][]Dep)
	p.out = make(map[graph.NodeID][]Dep)
	for _, d := range p.Deps {
		p.out[d.From] = append(p.out[d.From], d)
		p.in[d.To] = append(p.in[d.To], d)
	}
}

// In returns the dependences of node id.
func (p *PDG) In(id graph.NodeID) []Dep { return p.in[id] }

// Out returns the dependences on node id.
func (p *PDG) Out(id graph.NodeID) []Dep { return p.out[id] }
