package dfg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/jflow/pkg/graph"
)

const objType = "java.lang.Object"

func obj(name string) *graph.VarRef { return graph.Local(name, objType, false) }

// chain links nodes with true edges in order.
func chain(g *graph.Graph, nodes ...*graph.Node) {
	for i := 1; i < len(nodes); i++ {
		g.AddEdge(nodes[i-1].Handle, nodes[i].Handle, graph.EdgeTrue)
	}
}

func decl(g *graph.Graph, def, use *graph.VarRef) *graph.Node {
	n := g.AddNode(graph.KindDeclaration, def.Name+" = "+use.Name, 0)
	n.AddDef(def)
	n.AddUse(use)
	return n
}

func expr(g *graph.Graph, uses ...*graph.VarRef) *graph.Node {
	n := g.AddNode(graph.KindExpression, "", 0)
	for _, u := range uses {
		n.AddUse(u)
	}
	return n
}

func aliasNames(refs []*graph.VarRef) []string {
	var out []string
	for _, r := range refs {
		out = append(out, r.Name+"~"+r.AliasOf)
	}
	return out
}

func TestResolveAliases_UseAfterCopy(t *testing.T) {
	g := graph.New(nil)
	entry := g.AddNode(graph.KindMethodEntry, "m", 0)
	copyNode := decl(g, obj("b"), obj("a"))
	useB := expr(g, obj("b"))
	exit := g.AddNode(graph.KindMethodExit, "m", 0)
	chain(g, entry, copyNode, useB, exit)

	added := ResolveAliases(g)

	assert.Equal(t, 1, added)
	_, uses := Aliases(useB)
	assert.Equal(t, []string{"a~b"}, aliasNames(uses))
	defs, uses := Aliases(copyNode)
	assert.Empty(t, defs)
	assert.Empty(t, uses)
}

func TestResolveAliases_UseOfOriginal(t *testing.T) {
	g := graph.New(nil)
	entry := g.AddNode(graph.KindMethodEntry, "m", 0)
	copyNode := decl(g, obj("b"), obj("a"))
	useA := expr(g, obj("a"))
	chain(g, entry, copyNode, useA)

	ResolveAliases(g)

	_, uses := Aliases(useA)
	assert.Equal(t, []string{"b~a"}, aliasNames(uses))
}

func TestResolveAliases_StopsAtRedefinition(t *testing.T) {
	tests := []struct {
		name     string
		redefine *graph.VarRef
	}{
		{name: "alias redefined", redefine: obj("b")},
		{name: "original redefined", redefine: obj("a")},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			g := graph.New(nil)
			entry := g.AddNode(graph.KindMethodEntry, "m", 0)
			copyNode := decl(g, obj("b"), obj("a"))
			redef := g.AddNode(graph.KindAssignment, tc.redefine.Name+" = null", 0)
			redef.AddDef(tc.redefine)
			useB := expr(g, obj("b"), obj("a"))
			chain(g, entry, copyNode, redef, useB)

			ResolveAliases(g)

			_, uses := Aliases(useB)
			assert.Empty(t, uses)
		})
	}
}

func TestResolveAliases_RedefiningNodeKeepsItsUses(t *testing.T) {
	g := graph.New(nil)
	entry := g.AddNode(graph.KindMethodEntry, "m", 0)
	copyNode := decl(g, obj("b"), obj("a"))
	step := g.AddNode(graph.KindAssignment, "b = b.next", 0)
	next := graph.Field("p.Node", "next", "p.Node", false, false, true)
	next.Receiver = obj("b")
	step.AddUse(next)
	step.AddDef(obj("b"))
	chain(g, entry, copyNode, step)

	ResolveAliases(g)

	defs, uses := Aliases(step)
	assert.Equal(t, []string{"a~b"}, aliasNames(uses))
	assert.Empty(t, defs)
}

func TestResolveAliases_NoPair(t *testing.T) {
	callResult := graph.Temp(1, objType, false)
	callResult.CallResult = true

	tests := []struct {
		name string
		def  *graph.VarRef
		use  *graph.VarRef
	}{
		{name: "primitive local", def: graph.Local("j", "int", true), use: graph.Local("i", "int", true)},
		{name: "call result", def: obj("b"), use: callResult},
		{name: "field target", def: graph.Field("p.A", "f", objType, false, false, true), use: obj("a")},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			g := graph.New(nil)
			entry := g.AddNode(graph.KindMethodEntry, "m", 0)
			n := decl(g, tc.def, tc.use)
			after := expr(g, tc.def, tc.use)
			chain(g, entry, n, after)

			assert.Empty(t, Pairs(g))
			assert.Zero(t, ResolveAliases(g))
		})
	}
}

func TestResolveAliases_FieldWriteThroughAlias(t *testing.T) {
	g := graph.New(nil)
	entry := g.AddNode(graph.KindMethodEntry, "m", 0)
	copyNode := decl(g, obj("b"), obj("a"))
	store := g.AddNode(graph.KindAssignment, "b.x = 1", 0)
	x := graph.Field("p.P", "x", "int", true, false, true)
	x.Receiver = obj("b")
	store.AddUse(obj("b"))
	store.AddDef(x)
	chain(g, entry, copyNode, store)

	ResolveAliases(g)

	defs, uses := Aliases(store)
	assert.Equal(t, []string{"a~b"}, aliasNames(defs))
	assert.Equal(t, []string{"a~b"}, aliasNames(uses))
}

func TestResolveAliases_LoopTerminates(t *testing.T) {
	g := graph.New(nil)
	entry := g.AddNode(graph.KindMethodEntry, "m", 0)
	copyNode := decl(g, obj("b"), obj("a"))
	header := g.AddNode(graph.KindWhile, "cond", 0)
	body := expr(g, obj("b"))
	exit := g.AddNode(graph.KindMethodExit, "m", 0)
	chain(g, entry, copyNode, header, body)
	g.AddLoopBack(body.Handle, header.Handle, header.Handle)
	g.AddEdge(header.Handle, exit.Handle, graph.EdgeFalse)

	require.NotPanics(t, func() { ResolveAliases(g) })

	_, uses := Aliases(body)
	assert.Len(t, uses, 1)
}

func TestResolveAliases_SkipsJumpTraceEdges(t *testing.T) {
	g := graph.New(nil)
	entry := g.AddNode(graph.KindMethodEntry, "m", 0)
	copyNode := decl(g, obj("b"), obj("a"))
	ret := g.AddNode(graph.KindReturn, "return", 0)
	exit := g.AddNode(graph.KindMethodExit, "m", 0)
	dead := expr(g, obj("b"))
	chain(g, entry, copyNode, ret)
	g.AddEdge(ret.Handle, exit.Handle, graph.EdgeTrue)
	g.AddEdge(ret.Handle, dead.Handle, graph.EdgeFallThrough)

	ResolveAliases(g)

	_, uses := Aliases(dead)
	assert.Empty(t, uses)
}
