package dfg

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/l3aro/jflow/pkg/graph"
)

func intVar(name string) *graph.VarRef { return graph.Local(name, "int", true) }

func assign(g *graph.Graph, label string, def *graph.VarRef, uses ...*graph.VarRef) *graph.Node {
	n := g.AddNode(graph.KindAssignment, label, 0)
	for _, u := range uses {
		n.AddUse(u)
	}
	n.AddDef(def)
	return n
}

func defNodes(defs []Definition) []graph.NodeID {
	var out []graph.NodeID
	for _, d := range defs {
		out = append(out, d.Node)
	}
	return out
}

func TestReachingDefinitions_StraightLineKill(t *testing.T) {
	g := graph.New(nil)
	entry := g.AddNode(graph.KindMethodEntry, "m", 0)
	d1 := assign(g, "x = 1", intVar("x"))
	d2 := assign(g, "x = 2", intVar("x"))
	use := expr(g, intVar("x"))
	chain(g, entry, d1, d2, use)

	r := ReachingDefinitions(g)

	assert.Equal(t, []graph.NodeID{d2.Handle}, defNodes(r.ReachingOf(use.Handle, intVar("x"))))
	assert.Len(t, r.Defs, 2)
}

func TestReachingDefinitions_BranchMerge(t *testing.T) {
	g := graph.New(nil)
	entry := g.AddNode(graph.KindMethodEntry, "m", 0)
	cond := g.AddNode(graph.KindIf, "c", 0)
	thenDef := assign(g, "x = 1", intVar("x"))
	elseDef := assign(g, "x = 2", intVar("x"))
	merge := g.AddNode(graph.KindMerge, "", 0)
	use := expr(g, intVar("x"))
	chain(g, entry, cond, thenDef, merge, use)
	g.AddEdge(cond.Handle, elseDef.Handle, graph.EdgeFalse)
	g.AddEdge(elseDef.Handle, merge.Handle, graph.EdgeTrue)

	r := ReachingDefinitions(g)

	assert.ElementsMatch(t, []graph.NodeID{thenDef.Handle, elseDef.Handle},
		defNodes(r.ReachingOf(use.Handle, intVar("x"))))
}

func TestReachingDefinitions_LoopCarried(t *testing.T) {
	g := graph.New(nil)
	entry := g.AddNode(graph.KindMethodEntry, "m", 0)
	init := assign(g, "i = 0", intVar("i"))
	header := g.AddNode(graph.KindWhile, "i < n", 0)
	header.AddUse(intVar("i"))
	inc := assign(g, "i++", intVar("i"), intVar("i"))
	exit := g.AddNode(graph.KindMethodExit, "m", 0)
	chain(g, entry, init, header, inc)
	g.AddLoopBack(inc.Handle, header.Handle, header.Handle)
	g.AddEdge(header.Handle, exit.Handle, graph.EdgeFalse)

	r := ReachingDefinitions(g)

	assert.ElementsMatch(t, []graph.NodeID{init.Handle, inc.Handle},
		defNodes(r.ReachingOf(header.Handle, intVar("i"))))
	assert.ElementsMatch(t, []graph.NodeID{init.Handle, inc.Handle},
		defNodes(r.ReachingOf(exit.Handle, intVar("i"))))
}

func TestReachingDefinitions_IgnoresJumpTrace(t *testing.T) {
	g := graph.New(nil)
	entry := g.AddNode(graph.KindMethodEntry, "m", 0)
	d := assign(g, "x = 1", intVar("x"))
	brk := g.AddNode(graph.KindBreak, "break", 0)
	dead := expr(g, intVar("x"))
	chain(g, entry, d, brk)
	g.AddEdge(brk.Handle, dead.Handle, graph.EdgeFallThrough)

	r := ReachingDefinitions(g)

	assert.Empty(t, r.Reaching(dead.Handle))
	assert.Len(t, r.Reaching(brk.Handle), 1)
}

func TestDefUseChains(t *testing.T) {
	g := graph.New(nil)
	entry := g.AddNode(graph.KindMethodEntry, "m", 0)
	copyNode := decl(g, obj("b"), obj("a"))
	use := expr(g, obj("b"))
	chain(g, entry, copyNode, use)
	ResolveAliases(g)

	chains := DefUseChains(g)

	assert.Contains(t, chains, Chain{Def: copyNode.Handle, Use: use.Handle, VarName: "b"})
	for _, c := range chains {
		assert.NotEqual(t, entry.Handle, c.Use)
	}
}
