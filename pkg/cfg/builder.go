package cfg

import (
	"strings"

	"github.com/l3aro/jflow/internal/log"
	"github.com/l3aro/jflow/pkg/graph"
	"github.com/l3aro/jflow/pkg/semantic"
	"github.com/l3aro/jflow/pkg/syntax"
)

// jumpTarget is an entry of the break/continue stack.
type jumpTarget struct {
	label string
	// cont is NoNode for switches and labeled blocks.
	cont graph.NodeID
	brk  graph.NodeID
	// breakable targets accept an unlabeled break.
	breakable bool
}

// builder is the traversal context for one member graph. Control always
// arrives at next, a placeholder join node that the following construct
// replaces through graph.Reconnect.
type builder struct {
	g      *graph.Graph
	reg    *semantic.Registry
	exc    *ExceptionResolver
	logger log.Logger

	member string
	class  string

	next   graph.NodeID
	placed []graph.NodeID
	jumps  []jumpTarget
	label  string

	tries    []*tryContext
	declared []catchPoint
	ret      graph.NodeID
	temps    int
}

func (b *builder) node(kind graph.NodeKind, label string, line int) *graph.Node {
	return b.g.AddNode(kind, label, line)
}

func (b *builder) placeholder() graph.NodeID {
	return b.g.AddNode(graph.KindJoin, "", 0).Handle
}

// splice makes n the node control arrives at.
func (b *builder) splice(n *graph.Node) {
	b.g.Reconnect(b.next, n.Handle)
	b.placed = append(b.placed, n.Handle)
}

// place splices a straight-line node and continues with a true edge.
func (b *builder) place(n *graph.Node) {
	b.splice(n)
	b.next = b.placeholder()
	b.g.AddEdge(n.Handle, b.next, graph.EdgeTrue)
}

// jump splices n with a true edge to target and a fall-through trace edge to
// the textually following code.
func (b *builder) jump(n *graph.Node, target graph.NodeID) {
	b.splice(n)
	if target != graph.NoNode {
		b.g.AddEdge(n.Handle, target, graph.EdgeTrue)
	}
	b.next = b.placeholder()
	b.g.AddEdge(n.Handle, b.next, graph.EdgeFallThrough)
}

// join moves the edges arriving at the current placeholder to target.
func (b *builder) join(target graph.NodeID) {
	b.g.Reconnect(b.next, target)
}

// firstSince returns the first node spliced after mark, or NoNode.
func (b *builder) firstSince(mark int) graph.NodeID {
	if mark < len(b.placed) {
		return b.placed[mark]
	}
	return graph.NoNode
}

func (b *builder) takeLabel() string {
	l := b.label
	b.label = ""
	return l
}

func (b *builder) pushJump(j jumpTarget) {
	b.jumps = append(b.jumps, j)
}

func (b *builder) popJump() {
	b.jumps = b.jumps[:len(b.jumps)-1]
}

func (b *builder) breakTarget(label string) graph.NodeID {
	for i := len(b.jumps) - 1; i >= 0; i-- {
		j := b.jumps[i]
		if (label == "" && j.breakable) || (label != "" && j.label == label) {
			return j.brk
		}
	}
	return graph.NoNode
}

func (b *builder) continueTarget(label string) graph.NodeID {
	for i := len(b.jumps) - 1; i >= 0; i-- {
		j := b.jumps[i]
		if j.cont == graph.NoNode {
			continue
		}
		if label == "" || j.label == label {
			return j.cont
		}
	}
	return graph.NoNode
}

// closeLoop redirects the edges left at the current placeholder to first,
// the first node of the loop header. Edges that are not trace edges become
// loop-back edges closing header.
func (b *builder) closeLoop(first graph.NodeID, header *graph.Node) {
	end := b.next
	for _, e := range b.g.In(end) {
		b.g.Retarget(e.ID, first)
		if e.From != header.Handle && e.Kind != graph.EdgeFallThrough {
			b.g.SetKind(e.ID, graph.EdgeLoopBack, header.Handle)
		}
	}
	b.g.Retire(end)
}

func (b *builder) stmts(list []syntax.Stmt) {
	for _, s := range list {
		b.stmt(s)
	}
}

func (b *builder) stmt(s syntax.Stmt) {
	switch s := s.(type) {
	case nil:
	case *syntax.Block:
		if s != nil {
			b.stmts(s.Stmts)
		}
	case *syntax.ExprStmt:
		b.exprStmt(s.X, s.Pos())
	case *syntax.LocalVar:
		b.localVar(s)
	case *syntax.If:
		b.ifStmt(s)
	case *syntax.While:
		b.whileStmt(s)
	case *syntax.Do:
		b.doStmt(s)
	case *syntax.For:
		b.forStmt(s)
	case *syntax.ForEach:
		b.forEachStmt(s)
	case *syntax.Switch:
		b.switchStmt(s)
	case *syntax.Return:
		b.returnStmt(s)
	case *syntax.Break:
		b.breakStmt(s)
	case *syntax.Continue:
		b.continueStmt(s)
	case *syntax.Throw:
		b.throwStmt(s)
	case *syntax.Try:
		b.tryStmt(s)
	case *syntax.Labeled:
		b.labeledStmt(s)
	case *syntax.Synchronized:
		b.synchronizedStmt(s)
	case *syntax.Empty:
		b.place(b.node(graph.KindEmpty, ";", s.Pos()))
	case *syntax.ConstructorCall:
		b.constructorCall(s)
	case *syntax.Unsupported:
		b.logger.Debug("skipping unsupported statement", "member", b.member, "line", s.Pos(), "text", s.Text)
	}
}

func (b *builder) exprStmt(x syntax.Expr, line int) {
	switch v := x.(type) {
	case *syntax.Call:
		b.call(v, false)
	case *syntax.New:
		b.newObject(v, false)
	case *syntax.Assign:
		n := b.node(graph.KindAssignment, text(v), line)
		b.assign(v, n)
		b.place(n)
	case *syntax.Unary:
		kind := graph.KindExpression
		if syntax.IsIncDec(v.Op) {
			kind = graph.KindAssignment
		}
		n := b.node(kind, text(v), line)
		b.use(v, n)
		b.place(n)
	case *syntax.UnsupportedExpr:
		b.logger.Debug("skipping unsupported expression", "member", b.member, "line", line, "text", v.Text)
	default:
		n := b.node(graph.KindExpression, text(x), line)
		b.use(x, n)
		b.place(n)
	}
}

func (b *builder) localVar(s *syntax.LocalVar) {
	label := syntax.SimpleName(s.Type.String()) + " " + s.Name
	if s.Init != nil {
		label += " = " + text(s.Init)
	}
	n := b.node(graph.KindDeclaration, label, s.Pos())
	if s.Init != nil {
		b.use(s.Init, n)
		n.AddDef(graph.Local(s.Name, s.Type.String(), s.Type.Primitive()))
	}
	b.place(n)
}

func (b *builder) ifStmt(s *syntax.If) {
	cond := b.node(graph.KindIf, "if ("+text(s.Cond)+")", s.Pos())
	b.use(s.Cond, cond)
	b.splice(cond)

	b.next = b.placeholder()
	b.g.AddEdge(cond.Handle, b.next, graph.EdgeTrue)
	b.stmt(s.Then)
	thenEnd := b.next

	b.next = b.placeholder()
	b.g.AddEdge(cond.Handle, b.next, graph.EdgeFalse)
	b.stmt(s.Else)

	merge := b.node(graph.KindMerge, "end if", s.Pos())
	b.join(merge.Handle)
	b.g.Reconnect(thenEnd, merge.Handle)
	b.next = b.placeholder()
	b.g.AddEdge(merge.Handle, b.next, graph.EdgeTrue)
}

// loopBody builds body with a fresh (continue, break) pair and returns the
// break placeholder. Continue edges end up at the current placeholder.
func (b *builder) loopBody(label string, header *graph.Node, body syntax.Stmt) graph.NodeID {
	exit := b.placeholder()
	b.g.AddEdge(header.Handle, exit, graph.EdgeFalse)
	cont := b.placeholder()
	b.pushJump(jumpTarget{label: label, cont: cont, brk: exit, breakable: true})
	b.stmt(body)
	b.popJump()
	b.g.Reconnect(cont, b.next)
	return exit
}

func (b *builder) whileStmt(s *syntax.While) {
	label := b.takeLabel()
	mark := len(b.placed)
	header := b.node(graph.KindWhile, "while ("+text(s.Cond)+")", s.Pos())
	b.use(s.Cond, header)
	b.splice(header)
	first := b.firstSince(mark)

	b.next = b.placeholder()
	b.g.AddEdge(header.Handle, b.next, graph.EdgeTrue)
	exit := b.loopBody(label, header, s.Body)
	b.closeLoop(first, header)
	b.next = exit
}

func (b *builder) doStmt(s *syntax.Do) {
	label := b.takeLabel()
	bodyMark := len(b.placed)
	header := b.node(graph.KindDo, "do while ("+text(s.Cond)+")", s.Pos())

	exit := b.placeholder()
	cont := b.placeholder()
	b.pushJump(jumpTarget{label: label, cont: cont, brk: exit, breakable: true})
	b.stmt(s.Body)
	b.popJump()
	b.g.Reconnect(cont, b.next)

	bodyFirst := b.firstSince(bodyMark)
	var tail []*graph.Edge
	if bodyFirst != graph.NoNode {
		tail = b.g.In(b.next)
	}

	condMark := len(b.placed)
	b.use(s.Cond, header)
	b.splice(header)
	first := b.firstSince(condMark)
	for _, e := range tail {
		if e.Kind != graph.EdgeFallThrough {
			b.g.SetKind(e.ID, graph.EdgeLoopBack, header.Handle)
		}
	}
	if bodyFirst == graph.NoNode {
		bodyFirst = first
	}
	b.g.AddEdge(header.Handle, bodyFirst, graph.EdgeTrue)
	b.g.AddEdge(header.Handle, exit, graph.EdgeFalse)
	b.next = exit
}

func (b *builder) forStmt(s *syntax.For) {
	label := b.takeLabel()
	b.stmts(s.Init)

	mark := len(b.placed)
	cond := "true"
	if s.Cond != nil {
		cond = text(s.Cond)
	}
	header := b.node(graph.KindFor, "for ("+cond+")", s.Pos())
	if s.Cond != nil {
		b.use(s.Cond, header)
	}
	b.splice(header)
	first := b.firstSince(mark)

	b.next = b.placeholder()
	b.g.AddEdge(header.Handle, b.next, graph.EdgeTrue)
	exit := b.loopBody(label, header, s.Body)
	for _, u := range s.Update {
		b.exprStmt(u, s.Pos())
	}
	b.closeLoop(first, header)
	b.next = exit
}

func (b *builder) forEachStmt(s *syntax.ForEach) {
	label := b.takeLabel()
	name := ""
	if s.Var != nil {
		name = s.Var.Name
	}
	header := b.node(graph.KindFor, "for ("+name+" : "+text(s.Iterable)+")", s.Pos())
	b.use(s.Iterable, header)
	if s.Var != nil {
		header.AddDef(graph.Local(s.Var.Name, s.Var.Type.String(), s.Var.Type.Primitive()))
	}
	b.splice(header)

	b.next = b.placeholder()
	b.g.AddEdge(header.Handle, b.next, graph.EdgeTrue)
	exit := b.loopBody(label, header, s.Body)
	b.closeLoop(header.Handle, header)
	b.next = exit
}

// switchStmt lays case bodies out in source order so they fall through into
// each other, and tests the labels in a chain: every non-default case in
// source order, the default last.
func (b *builder) switchStmt(s *syntax.Switch) {
	label := b.takeLabel()
	sw := b.node(graph.KindSwitch, "switch ("+text(s.Tag)+")", s.Pos())
	b.use(s.Tag, sw)
	b.splice(sw)
	exit := b.placeholder()

	tests := make([]*graph.Node, len(s.Cases))
	var chain []*graph.Node
	fallback := exit
	for i, c := range s.Cases {
		if c.Default {
			tests[i] = b.node(graph.KindSwitchDefault, "default:", c.Pos())
			fallback = tests[i].Handle
			continue
		}
		labels := make([]string, len(c.Exprs))
		for j, e := range c.Exprs {
			labels[j] = text(e)
		}
		tests[i] = b.node(graph.KindSwitchCase, "case "+strings.Join(labels, ", ")+":", c.Pos())
		chain = append(chain, tests[i])
	}

	if len(chain) > 0 {
		b.g.AddEdge(sw.Handle, chain[0].Handle, graph.EdgeTrue)
		for i, t := range chain {
			miss := fallback
			if i+1 < len(chain) {
				miss = chain[i+1].Handle
			}
			b.g.AddEdge(t.Handle, miss, graph.EdgeFalse)
		}
	} else {
		b.g.AddEdge(sw.Handle, fallback, graph.EdgeTrue)
	}
	b.g.AddEdge(sw.Handle, fallback, graph.EdgeFalse)

	b.pushJump(jumpTarget{label: label, cont: graph.NoNode, brk: exit, breakable: true})
	b.next = b.placeholder()
	for i, c := range s.Cases {
		b.g.AddEdge(tests[i].Handle, b.next, graph.EdgeTrue)
		b.stmts(c.Body)
	}
	b.popJump()
	b.join(exit)
	b.next = exit
}

func (b *builder) returnStmt(s *syntax.Return) {
	label := "return"
	if s.Result != nil {
		label += " " + text(s.Result)
	}
	n := b.node(graph.KindReturn, label, s.Pos())
	if s.Result != nil {
		b.use(s.Result, n)
		t := syntax.StaticType(s.Result)
		n.AddDef(graph.ReturnValue(t.String(), t.Primitive()))
	}
	b.jump(n, b.ret)
}

func (b *builder) breakStmt(s *syntax.Break) {
	label := "break"
	if s.Label != "" {
		label += " " + s.Label
	}
	target := b.breakTarget(s.Label)
	if target == graph.NoNode {
		b.logger.Debug("break without target", "member", b.member, "line", s.Pos())
	}
	b.jump(b.node(graph.KindBreak, label, s.Pos()), target)
}

func (b *builder) continueStmt(s *syntax.Continue) {
	label := "continue"
	if s.Label != "" {
		label += " " + s.Label
	}
	target := b.continueTarget(s.Label)
	if target == graph.NoNode {
		b.logger.Debug("continue without target", "member", b.member, "line", s.Pos())
	}
	b.jump(b.node(graph.KindContinue, label, s.Pos()), target)
}

func (b *builder) throwStmt(s *syntax.Throw) {
	n := b.node(graph.KindThrow, "throw "+text(s.X), s.Pos())
	b.use(s.X, n)
	thrown := syntax.StaticType(s.X).Name
	if thrown == "" {
		thrown = throwableClass
	}
	n.Types = []string{thrown}
	b.jump(n, graph.NoNode)
	b.raise(n.Handle, n.Types, true)
}

// tryStmt builds the body under a new try context, then the catch clauses
// against a merge node, then the finally block after the merge. Every catch
// node also gets a trace edge from the try node.
func (b *builder) tryStmt(s *syntax.Try) {
	tn := b.node(graph.KindTry, "try", s.Pos())
	b.place(tn)

	tc := &tryContext{}
	for _, c := range s.Catches {
		types := typeNames(c.Types)
		label := "catch (" + strings.Join(types, " | ")
		cn := b.node(graph.KindCatch, "", c.Pos())
		if c.Param != nil {
			label += " " + c.Param.Name
			t := c.Param.Type
			if len(c.Types) == 1 {
				t = c.Types[0]
			}
			cn.AddDef(graph.Local(c.Param.Name, t.String(), false))
		}
		cn.Label = label + ")"
		cn.Types = types
		b.g.AddEdge(tn.Handle, cn.Handle, graph.EdgeFallThrough)
		tc.catches = append(tc.catches, catchPoint{node: cn.Handle, types: types})
	}

	b.tries = append(b.tries, tc)
	for _, r := range s.Resources {
		b.localVar(r)
	}
	b.stmt(s.Body)
	b.tries = b.tries[:len(b.tries)-1]
	b.resolveTry(tc)

	merge := b.node(graph.KindMerge, "end try", s.Pos())
	b.join(merge.Handle)
	for i, c := range s.Catches {
		b.next = b.placeholder()
		b.g.AddEdge(tc.catches[i].node, b.next, graph.EdgeTrue)
		b.stmt(c.Body)
		b.join(merge.Handle)
	}
	b.next = b.placeholder()
	b.g.AddEdge(merge.Handle, b.next, graph.EdgeTrue)

	if s.Finally != nil {
		b.place(b.node(graph.KindFinally, "finally", s.Finally.Pos()))
		b.stmt(s.Finally)
	}
}

func (b *builder) labeledStmt(s *syntax.Labeled) {
	b.place(b.node(graph.KindLabeled, s.Label+":", s.Pos()))
	switch s.Body.(type) {
	case *syntax.While, *syntax.Do, *syntax.For, *syntax.ForEach, *syntax.Switch:
		b.label = s.Label
		b.stmt(s.Body)
		return
	}
	exit := b.placeholder()
	b.pushJump(jumpTarget{label: s.Label, cont: graph.NoNode, brk: exit})
	b.stmt(s.Body)
	b.popJump()
	b.join(exit)
	b.next = exit
}

func (b *builder) synchronizedStmt(s *syntax.Synchronized) {
	n := b.node(graph.KindSynchronized, "synchronized ("+text(s.Lock)+")", s.Pos())
	b.use(s.Lock, n)
	b.place(n)
	b.stmt(s.Body)
}

// sweep retires placeholders that ended up without edges.
func (b *builder) sweep() {
	for _, n := range b.g.NodesOfKind(graph.KindJoin) {
		if len(b.g.In(n.Handle)) == 0 && len(b.g.Out(n.Handle)) == 0 {
			b.g.Retire(n.Handle)
		}
	}
}
