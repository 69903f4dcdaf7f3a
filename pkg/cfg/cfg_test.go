package cfg

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/jflow/internal/log"
	"github.com/l3aro/jflow/pkg/dfg"
	"github.com/l3aro/jflow/pkg/graph"
	"github.com/l3aro/jflow/pkg/javasrc"
	"github.com/l3aro/jflow/pkg/semantic"
)

func newFactory(t *testing.T, src string, blocks bool) (*semantic.Registry, *Factory) {
	t.Helper()
	p, err := javasrc.ParseSource("T.java", []byte(src))
	require.NoError(t, err)
	reg := semantic.NewRegistry(semantic.Options{Project: p, Logger: log.Discard()})
	f := NewFactory(Options{Registry: reg, BasicBlocks: blocks, Logger: log.Discard()})
	return reg, f
}

func buildMethod(t *testing.T, src, key string) *CFG {
	t.Helper()
	reg, f := newFactory(t, src, false)
	m := reg.LookupMethod(key)
	require.True(t, m.InProject(), "method %s not found", key)
	c, err := f.BuildMethod(m)
	require.NoError(t, err)
	return c
}

// find returns the single statement node carrying label.
func find(t *testing.T, c *CFG, label string) *graph.Node {
	t.Helper()
	var found *graph.Node
	for _, n := range c.Nodes() {
		if n.Label != label || n.Kind.IsEntry() || n.Kind.IsExit() {
			continue
		}
		require.Nil(t, found, "label %q is not unique", label)
		found = n
	}
	require.NotNil(t, found, "no node labeled %q", label)
	return found
}

func hasEdge(t *testing.T, c *CFG, from, to string, kind graph.EdgeKind) bool {
	t.Helper()
	return c.Graph.HasEdge(find(t, c, from).Handle, find(t, c, to).Handle, kind)
}

const pointSrc = `package demo;

public class Point {
    private int x;

    public void setX(int v) {
        x = v;
    }

    public void move(Point p) {
        Point q = p;
        q.x = 5;
    }
}
`

func TestBuildMethod_SetX(t *testing.T) {
	c := buildMethod(t, pointSrc, "demo.Point.setX(int)")

	var kinds []graph.NodeKind
	for _, n := range c.Nodes() {
		kinds = append(kinds, n.Kind)
	}
	assert.Equal(t, []graph.NodeKind{
		graph.KindMethodEntry, graph.KindMethodExit, graph.KindFormalIn, graph.KindAssignment,
	}, kinds)

	fin := c.NodesOfKind(graph.KindFormalIn)[0]
	asg := c.NodesOfKind(graph.KindAssignment)[0]
	assert.Equal(t, "v", fin.Label)
	require.Len(t, fin.Defs, 1)
	assert.Equal(t, "v", fin.Defs[0].Name)

	require.Len(t, asg.Defs, 1)
	assert.Equal(t, graph.RefField, asg.Defs[0].Kind)
	assert.Equal(t, "demo.Point.x", asg.Defs[0].QualifiedName())
	require.Len(t, asg.Uses, 1)
	assert.Equal(t, graph.RefLocal, asg.Uses[0].Kind)
	assert.Equal(t, "v", asg.Uses[0].Name)

	edges := c.Graph.Edges()
	require.Len(t, edges, 3)
	for _, e := range edges {
		assert.Equal(t, graph.EdgeTrue, e.Kind)
	}
	assert.True(t, c.Graph.HasEdge(c.Entry, fin.Handle, graph.EdgeTrue))
	assert.True(t, c.Graph.HasEdge(fin.Handle, asg.Handle, graph.EdgeTrue))
	assert.True(t, c.Graph.HasEdge(asg.Handle, c.Exit, graph.EdgeTrue))
	assert.Equal(t, MemberMethod, c.Kind)
	assert.Equal(t, "demo.Point", c.Class)
}

func TestBuildMethod_AliasThroughFieldStore(t *testing.T) {
	c := buildMethod(t, pointSrc, "demo.Point.move(demo.Point)")

	store := find(t, c, "q.x = 5")
	defs, uses := dfg.Aliases(store)
	require.Len(t, defs, 1)
	assert.Equal(t, "p", defs[0].Name)
	assert.Equal(t, "q", defs[0].AliasOf)
	require.Len(t, uses, 1)
	assert.Equal(t, "p", uses[0].Name)

	// formal-out of the reference parameter sees the alias too
	out := c.NodesOfKind(graph.KindFormalOut)
	require.Len(t, out, 1)
	_, outUses := dfg.Aliases(out[0])
	require.Len(t, outUses, 1)
	assert.Equal(t, "q", outUses[0].Name)
}

func TestBuildMethod_SkipAliases(t *testing.T) {
	p, err := javasrc.ParseSource("T.java", []byte(pointSrc))
	require.NoError(t, err)
	reg := semantic.NewRegistry(semantic.Options{Project: p, Logger: log.Discard()})
	f := NewFactory(Options{Registry: reg, SkipAliases: true, Logger: log.Discard()})

	c, err := f.BuildMethod(reg.LookupMethod("demo.Point.move(demo.Point)"))
	require.NoError(t, err)
	defs, uses := dfg.Aliases(find(t, c, "q.x = 5"))
	assert.Empty(t, defs)
	assert.Empty(t, uses)
}

func TestBuildMethod_NoSource(t *testing.T) {
	reg, f := newFactory(t, pointSrc, false)
	_, err := f.BuildMethod(reg.LookupMethod("java.util.List.size()"))
	assert.ErrorIs(t, err, ErrNoSource)
}

type flow struct {
	from, to string
	kind     graph.EdgeKind
}

func TestBuildMethod_SwitchDefaultPlacement(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		edges []flow
	}{
		{
			name: "default first",
			body: "default: r = 9; case 1: r = 1; break; case 2: r = 2;",
			edges: []flow{
				{"switch (k)", "case 1:", graph.EdgeTrue},
				{"switch (k)", "default:", graph.EdgeFalse},
				{"case 1:", "case 2:", graph.EdgeFalse},
				{"case 2:", "default:", graph.EdgeFalse},
				{"default:", "r = 9", graph.EdgeTrue},
				{"r = 9", "r = 1", graph.EdgeTrue},
				{"case 1:", "r = 1", graph.EdgeTrue},
				{"r = 1", "break", graph.EdgeTrue},
				{"break", "return r", graph.EdgeTrue},
				{"break", "r = 2", graph.EdgeFallThrough},
				{"case 2:", "r = 2", graph.EdgeTrue},
				{"r = 2", "return r", graph.EdgeTrue},
			},
		},
		{
			name: "default middle",
			body: "case 1: r = 1; break; default: r = 9; case 2: r = 2;",
			edges: []flow{
				{"switch (k)", "case 1:", graph.EdgeTrue},
				{"switch (k)", "default:", graph.EdgeFalse},
				{"case 1:", "case 2:", graph.EdgeFalse},
				{"case 2:", "default:", graph.EdgeFalse},
				{"case 1:", "r = 1", graph.EdgeTrue},
				{"r = 1", "break", graph.EdgeTrue},
				{"break", "return r", graph.EdgeTrue},
				{"break", "r = 9", graph.EdgeFallThrough},
				{"default:", "r = 9", graph.EdgeTrue},
				{"r = 9", "r = 2", graph.EdgeTrue},
				{"case 2:", "r = 2", graph.EdgeTrue},
				{"r = 2", "return r", graph.EdgeTrue},
			},
		},
		{
			name: "default last",
			body: "case 1: r = 1; case 2: r = 2; break; default: r = 9;",
			edges: []flow{
				{"switch (k)", "case 1:", graph.EdgeTrue},
				{"switch (k)", "default:", graph.EdgeFalse},
				{"case 1:", "case 2:", graph.EdgeFalse},
				{"case 2:", "default:", graph.EdgeFalse},
				{"case 1:", "r = 1", graph.EdgeTrue},
				{"r = 1", "r = 2", graph.EdgeTrue},
				{"case 2:", "r = 2", graph.EdgeTrue},
				{"r = 2", "break", graph.EdgeTrue},
				{"break", "return r", graph.EdgeTrue},
				{"break", "r = 9", graph.EdgeFallThrough},
				{"default:", "r = 9", graph.EdgeTrue},
				{"r = 9", "return r", graph.EdgeTrue},
			},
		},
		{
			name: "no default",
			body: "case 1: r = 1; break; case 2: r = 2;",
			edges: []flow{
				{"switch (k)", "case 1:", graph.EdgeTrue},
				{"switch (k)", "return r", graph.EdgeFalse},
				{"case 1:", "case 2:", graph.EdgeFalse},
				{"case 2:", "return r", graph.EdgeFalse},
				{"case 1:", "r = 1", graph.EdgeTrue},
				{"r = 1", "break", graph.EdgeTrue},
				{"break", "return r", graph.EdgeTrue},
				{"break", "r = 2", graph.EdgeFallThrough},
				{"case 2:", "r = 2", graph.EdgeTrue},
				{"r = 2", "return r", graph.EdgeTrue},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := "class S {\n    int pick(int k) {\n        int r = 0;\n        switch (k) { " + tt.body +
				" }\n        return r;\n    }\n}\n"
			c := buildMethod(t, src, "S.pick(int)")

			for _, f := range tt.edges {
				assert.True(t, hasEdge(t, c, f.from, f.to, f.kind), "missing %s -%s-> %s", f.from, f.kind, f.to)
			}

			// every case test has exactly one true successor, its body
			for _, n := range c.Nodes() {
				if n.Kind != graph.KindSwitchCase && n.Kind != graph.KindSwitchDefault {
					continue
				}
				trues := 0
				for _, e := range c.Out(n.Handle) {
					if e.Kind == graph.EdgeTrue {
						trues++
					}
				}
				assert.Equal(t, 1, trues, n.Label)
			}
			assert.Empty(t, c.NodesOfKind(graph.KindJoin))
		})
	}
}

const ioSrc = `package ex;

import java.io.IOException;

public class Io {
    void risky() throws IOException {}

    void guarded() throws IOException {
        try {
            risky();
        } catch (IOException e) {
            handle();
        }
    }

    void bare() throws IOException {
        risky();
    }

    void thrower(int k) {
        try {
            if (k > 0) throw new IllegalStateException();
        } catch (RuntimeException e) {
            handle();
        } finally {
            handle();
        }
    }

    void handle() {}
}
`

func TestBuildMethod_ExceptionRouting(t *testing.T) {
	c := buildMethod(t, ioSrc, "ex.Io.guarded()")

	call := find(t, c, "risky()")
	caught := find(t, c, "catch (java.io.IOException e)")
	declared := find(t, c, "throws java.io.IOException")
	assert.Equal(t, []string{"java.io.IOException"}, call.Types)

	assert.True(t, c.Graph.HasEdge(call.Handle, caught.Handle, graph.EdgeExceptionCatch))
	for _, e := range c.Out(call.Handle) {
		assert.NotEqual(t, declared.Handle, e.To, "declared handler must not receive a caught exception")
	}

	// try node traces to its catch, the declared catch hangs off the entry
	assert.True(t, hasEdge(t, c, "try", "catch (java.io.IOException e)", graph.EdgeFallThrough))
	assert.True(t, c.Graph.HasEdge(c.Entry, declared.Handle, graph.EdgeFallThrough))
	assert.True(t, c.Graph.HasEdge(declared.Handle, c.Exit, graph.EdgeTrue))
	assert.True(t, hasEdge(t, c, "catch (java.io.IOException e)", "handle()", graph.EdgeTrue))
	assert.True(t, hasEdge(t, c, "handle()", "end try", graph.EdgeTrue))
	assert.True(t, hasEdge(t, c, "risky()", "end try", graph.EdgeTrue))

	caughtRef := caught.Defs
	require.Len(t, caughtRef, 1)
	assert.Equal(t, "e", caughtRef[0].Name)
	assert.Equal(t, "java.io.IOException", caughtRef[0].Type)
}

func TestBuildMethod_UncaughtGoesToDeclared(t *testing.T) {
	c := buildMethod(t, ioSrc, "ex.Io.bare()")
	assert.True(t, hasEdge(t, c, "risky()", "throws java.io.IOException", graph.EdgeExceptionCatch))
}

func TestBuildMethod_ThrowToSupertypeHandler(t *testing.T) {
	c := buildMethod(t, ioSrc, "ex.Io.thrower(int)")

	throw := find(t, c, "throw new IllegalStateException()")
	assert.Equal(t, []string{"java.lang.IllegalStateException"}, throw.Types)
	assert.True(t, hasEdge(t, c, "throw new IllegalStateException()", "catch (java.lang.RuntimeException e)", graph.EdgeTrue))
	assert.True(t, hasEdge(t, c, "end try", "finally", graph.EdgeTrue))
	assert.Len(t, c.NodesOfKind(graph.KindFinally), 1)
}

const loopSrc = `package loops;

public class Loops {
    int count(int n) {
        int i = 0;
        while (i < n) {
            i++;
        }
        return i;
    }

    int spin(int n) {
        int i = 0;
        do {
            i++;
        } while (i < n);
        return i;
    }

    int sum(int n) {
        int total = 0;
        for (int i = 0; i < n; i++) {
            if (i == 2) continue;
            total += i;
        }
        return total;
    }

    void scan(int[][] grid) {
        outer:
        for (int[] row : grid) {
            for (int v : row) {
                if (v < 0) break outer;
            }
        }
        done();
    }

    void done() {}
}
`

func TestBuildMethod_While(t *testing.T) {
	c := buildMethod(t, loopSrc, "loops.Loops.count(int)")

	assert.True(t, hasEdge(t, c, "int i = 0", "while (i < n)", graph.EdgeTrue))
	assert.True(t, hasEdge(t, c, "while (i < n)", "i++", graph.EdgeTrue))
	assert.True(t, hasEdge(t, c, "while (i < n)", "return i", graph.EdgeFalse))
	assert.True(t, hasEdge(t, c, "i++", "while (i < n)", graph.EdgeLoopBack))

	header := find(t, c, "while (i < n)")
	for _, e := range c.Graph.Edges() {
		if e.Kind == graph.EdgeLoopBack {
			assert.Equal(t, header.Handle, e.Header)
		}
	}
}

func TestBuildMethod_DoWhile(t *testing.T) {
	c := buildMethod(t, loopSrc, "loops.Loops.spin(int)")

	assert.True(t, hasEdge(t, c, "int i = 0", "i++", graph.EdgeTrue))
	assert.True(t, hasEdge(t, c, "i++", "do while (i < n)", graph.EdgeLoopBack))
	assert.True(t, hasEdge(t, c, "do while (i < n)", "i++", graph.EdgeTrue))
	assert.True(t, hasEdge(t, c, "do while (i < n)", "return i", graph.EdgeFalse))
}

func TestBuildMethod_ForContinue(t *testing.T) {
	c := buildMethod(t, loopSrc, "loops.Loops.sum(int)")

	assert.True(t, hasEdge(t, c, "int i = 0", "for (i < n)", graph.EdgeTrue))
	assert.True(t, hasEdge(t, c, "continue", "i++", graph.EdgeTrue))
	assert.True(t, hasEdge(t, c, "total += i", "i++", graph.EdgeTrue))
	assert.True(t, hasEdge(t, c, "i++", "for (i < n)", graph.EdgeLoopBack))
	assert.True(t, hasEdge(t, c, "for (i < n)", "return total", graph.EdgeFalse))

	total := find(t, c, "total += i")
	var uses []string
	for _, u := range total.Uses {
		uses = append(uses, u.Name)
	}
	assert.ElementsMatch(t, []string{"total", "i"}, uses)
	require.Len(t, total.Defs, 1)
	assert.Equal(t, "total", total.Defs[0].Name)
}

func TestBuildMethod_LabeledBreak(t *testing.T) {
	c := buildMethod(t, loopSrc, "loops.Loops.scan(int[][])")

	assert.True(t, hasEdge(t, c, "outer:", "for (row : grid)", graph.EdgeTrue))
	assert.True(t, hasEdge(t, c, "break outer", "done()", graph.EdgeTrue))
	assert.True(t, hasEdge(t, c, "for (row : grid)", "done()", graph.EdgeFalse))
	assert.True(t, hasEdge(t, c, "for (v : row)", "for (row : grid)", graph.EdgeLoopBack))

	inner := find(t, c, "for (v : row)")
	require.Len(t, inner.Defs, 1)
	assert.Equal(t, "v", inner.Defs[0].Name)
}

const shopSrc = `package shop;

import java.util.List;

public class Shop {
    static int opened;
    private int limit = 10;
    private List<String> items;

    static {
        opened = 1;
    }

    public Shop(List<String> items) {
        this.items = items;
    }

    int size() {
        return items.size();
    }

    int fill(int n) {
        int k = 0;
        for (int i = 0; i < n; i++) {
            if (k >= limit) break;
            switch (i) {
                case 0: k += 2; break;
                default: k++;
            }
        }
        synchronized (this) {
            k = Math.max(k, 1);
        }
        try {
            add();
        } catch (IllegalStateException e) {
            return -1;
        } finally {
            opened++;
        }
        return k;
    }

    void add() {
        if (items == null) throw new IllegalStateException();
        items.add("x");
    }

    enum Size {
        SMALL, LARGE(2);

        Size() {}

        Size(int w) {}
    }
}
`

// checkShape asserts the structural invariants every member CFG holds.
func checkShape(t *testing.T, c *CFG) {
	t.Helper()
	g := c.Graph
	entries, exits := 0, 0
	for _, n := range c.Nodes() {
		if n.Kind.IsEntry() {
			entries++
		}
		if n.Kind.IsExit() {
			exits++
		}
	}
	assert.Equal(t, 1, entries, c.Member)
	assert.Equal(t, 1, exits, c.Member)
	assert.Empty(t, c.In(c.Entry), c.Member)
	assert.Empty(t, c.Out(c.Exit), c.Member)
	assert.Empty(t, c.NodesOfKind(graph.KindJoin), c.Member)

	reach := g.Reachable(c.Entry, func(*graph.Edge) bool { return true })
	for _, n := range c.Nodes() {
		assert.True(t, reach[n.Handle], "%s: %s unreachable", c.Member, n.Label)
		if n.Handle != c.Exit {
			assert.NotEmpty(t, c.Out(n.Handle), "%s: %s has no successor", c.Member, n.Label)
		}
		if n.Kind == graph.KindIf || n.Kind.IsLoop() || n.Kind == graph.KindSwitch {
			var kinds []graph.EdgeKind
			for _, e := range c.Out(n.Handle) {
				if e.Kind == graph.EdgeTrue || e.Kind == graph.EdgeFalse {
					kinds = append(kinds, e.Kind)
				}
			}
			assert.Contains(t, kinds, graph.EdgeTrue, "%s: %s", c.Member, n.Label)
			assert.Contains(t, kinds, graph.EdgeFalse, "%s: %s", c.Member, n.Label)
		}
	}
	for _, e := range g.Edges() {
		switch e.Kind {
		case graph.EdgeTrue, graph.EdgeFalse, graph.EdgeFallThrough, graph.EdgeExceptionCatch:
		case graph.EdgeLoopBack:
			h := c.Node(e.Header)
			require.NotNil(t, h, c.Member)
			assert.True(t, h.Kind.IsLoop(), c.Member)
		default:
			t.Errorf("%s: unknown edge kind %d", c.Member, e.Kind)
		}
		if e.Kind == graph.EdgeExceptionCatch {
			assert.True(t, c.Node(e.From).Kind.IsCall(), c.Member)
			assert.Equal(t, graph.KindCatch, c.Node(e.To).Kind, c.Member)
		}
	}
}

func TestBuildClass_Shape(t *testing.T) {
	reg, f := newFactory(t, shopSrc, true)
	cc, err := f.BuildClass(reg.ResolveClass("shop.Shop"))
	require.NoError(t, err)

	var members []string
	cc.Walk(func(c *CFG) {
		members = append(members, c.Member)
		checkShape(t, c)
	})
	assert.Contains(t, members, "shop.Shop.opened")
	assert.Contains(t, members, "shop.Shop.limit")
	assert.Contains(t, members, "shop.Shop.<clinit>#0")
	assert.Contains(t, members, "shop.Shop.<init>(java.util.List)")
	assert.Contains(t, members, "shop.Shop.fill(int)")
	assert.Contains(t, members, "shop.Shop.Size.LARGE")
	assert.Contains(t, members, "shop.Shop.Size.<init>(int)")
}

func TestBuildClass_Links(t *testing.T) {
	reg, f := newFactory(t, shopSrc, false)
	cc, err := f.BuildClass(reg.ResolveClass("shop.Shop"))
	require.NoError(t, err)

	assert.Equal(t, graph.KindClassEntry, cc.EntryNode().Kind)
	require.Len(t, cc.Nested, 1)
	assert.Equal(t, graph.KindEnumEntry, cc.Nested[0].EntryNode().Kind)
	assert.Len(t, cc.Links, len(cc.Members))
	for _, l := range cc.Links {
		assert.Equal(t, LinkEntry, l.Kind)
		assert.Equal(t, "shop.Shop", l.From)
		assert.Equal(t, cc.Entry, l.Node)
		assert.NotNil(t, cc.Member(l.Target))
	}
	assert.Empty(t, cc.FieldAccessLinks())

	fill := cc.Member("shop.Shop.fill(int)")
	require.NotNil(t, fill)
	call := fill.CallNodes()
	require.NotEmpty(t, call)
	assert.True(t, cc.AddFieldAccess(fill.Member, call[0].Handle, "shop.Shop.opened"))
	assert.False(t, cc.AddFieldAccess(fill.Member, call[0].Handle, "shop.Shop.opened"))
	assert.False(t, cc.AddFieldAccess(fill.Member, call[0].Handle, "shop.Shop.missing"))
	assert.Len(t, cc.FieldAccessLinks(), 1)
	assert.NotNil(t, cc.Member("shop.Shop.Size.SMALL"))
}

func TestBuildField(t *testing.T) {
	reg, f := newFactory(t, shopSrc, false)
	d := reg.ResolveClass("shop.Shop").Decl().Field("limit")
	require.NotNil(t, d)
	c := f.BuildField(d)

	assert.Equal(t, MemberField, c.Kind)
	assert.Equal(t, graph.KindFieldEntry, c.EntryNode().Kind)
	assert.Equal(t, graph.KindFieldExit, c.ExitNode().Kind)
	asg := find(t, c, "limit = 10")
	assert.True(t, c.Graph.HasEdge(c.Entry, asg.Handle, graph.EdgeTrue))
	assert.True(t, c.Graph.HasEdge(asg.Handle, c.Exit, graph.EdgeTrue))
	require.Len(t, asg.Defs, 1)
	assert.Equal(t, graph.ThisName, asg.Defs[0].Receiver.Name)

	defs := c.FieldDefs()
	require.Len(t, defs, 1)
	assert.Equal(t, "shop.Shop.limit", defs[0].QualifiedName())
}

func TestBuildInitializer(t *testing.T) {
	reg, f := newFactory(t, shopSrc, false)
	decl := reg.ResolveClass("shop.Shop").Decl()
	require.Len(t, decl.Initializers, 1)
	c := f.BuildInitializer(decl.Initializers[0])

	assert.Equal(t, MemberInitializer, c.Kind)
	assert.Equal(t, graph.KindInitializerEntry, c.EntryNode().Kind)
	asg := find(t, c, "opened = 1")
	require.Len(t, asg.Defs, 1)
	assert.True(t, asg.Defs[0].Static)
	assert.Nil(t, asg.Defs[0].Receiver)
}

func TestBuildEnumConstant(t *testing.T) {
	reg, f := newFactory(t, shopSrc, false)
	decl := reg.ResolveClass("shop.Shop.Size").Decl()
	require.Len(t, decl.EnumConstants, 2)
	c := f.BuildEnumConstant(decl.EnumConstants[1])

	assert.Equal(t, MemberEnumConstant, c.Kind)
	arg := find(t, c, "2")
	assert.Equal(t, graph.KindActualIn, arg.Kind)
	create := find(t, c, "LARGE(2)")
	assert.Equal(t, graph.KindInstanceCreation, create.Kind)
	require.NotNil(t, create.Call)
	assert.Equal(t, "shop.Shop.Size.<init>(int)", create.Call.Key())
	require.Len(t, create.Defs, 1)
	assert.Equal(t, "shop.Shop.Size.LARGE", create.Defs[0].QualifiedName())
	assert.True(t, hasEdge(t, c, "2", "LARGE(2)", graph.EdgeTrue))
}

func TestBuildMethod_CallBoundary(t *testing.T) {
	c := buildMethod(t, shopSrc, "shop.Shop.size()")

	recv := c.NodesOfKind(graph.KindReceiver)
	require.Len(t, recv, 1)
	assert.Equal(t, "items", recv[0].Label)
	calls := c.CallNodes()
	require.Len(t, calls, 1)
	assert.Equal(t, "java.util.List.size()", calls[0].Call.Key())
	out := c.NodesOfKind(graph.KindActualOut)
	require.Len(t, out, 1)
	assert.True(t, out[0].Defs[0].CallResult)
	assert.True(t, c.Graph.HasEdge(recv[0].Handle, calls[0].Handle, graph.EdgeTrue))
	assert.True(t, c.Graph.HasEdge(calls[0].Handle, out[0].Handle, graph.EdgeTrue))

	uses := c.FieldUses()
	require.Len(t, uses, 1)
	assert.Equal(t, "shop.Shop.items", uses[0].QualifiedName())
}

func TestBuildBlocks(t *testing.T) {
	reg, f := newFactory(t, loopSrc, true)
	c, err := f.BuildMethod(reg.LookupMethod("loops.Loops.count(int)"))
	require.NoError(t, err)
	require.Len(t, c.Blocks, 4)

	head := c.BlockOf(c.Entry)
	loop := c.BlockOf(find(t, c, "while (i < n)").Handle)
	body := c.BlockOf(find(t, c, "i++").Handle)
	tail := c.BlockOf(find(t, c, "return i").Handle)
	require.NotNil(t, head)

	assert.Equal(t, []int{loop.ID}, head.Succs)
	assert.ElementsMatch(t, []int{body.ID, tail.ID}, loop.Succs)
	assert.Equal(t, []int{loop.ID}, body.Succs)
	assert.Equal(t, tail, c.BlockOf(c.Exit))
	assert.Len(t, head.Nodes, 3)

	info := Export(c)
	assert.Equal(t, 2, info.CyclomaticComplexity)
	require.Len(t, info.Blocks, 4)
	assert.Equal(t, BlockTypeEntry, info.Blocks[blockID(head.ID)].Type)
	assert.Equal(t, BlockTypeBranch, info.Blocks[blockID(loop.ID)].Type)
	assert.Equal(t, BlockTypeLoopBody, info.Blocks[blockID(body.ID)].Type)
	assert.Equal(t, BlockTypeExit, info.Blocks[blockID(tail.ID)].Type)
	assert.Equal(t, []string{"i++"}, info.Blocks[blockID(body.ID)].Statements)
}

func TestExport_JSON(t *testing.T) {
	reg, f := newFactory(t, pointSrc, false)
	cc, err := f.BuildClass(reg.ResolveClass("demo.Point"))
	require.NoError(t, err)

	data, err := json.Marshal(ExportClass(cc))
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, "demo.Point", out["class"])
	members := out["members"].([]any)
	// field, implicit constructor, setX, move
	assert.Len(t, members, 4)

	setX := Export(cc.Member("demo.Point.setX(int)"))
	data, err = json.Marshal(setX)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"kind":"method"`)
	assert.Contains(t, string(data), `"edge_type":"true"`)
	assert.Contains(t, string(data), `"kind":"formal_in"`)
	assert.Equal(t, 1, setX.CyclomaticComplexity)
}
