package cfg

import (
	"github.com/l3aro/jflow/pkg/graph"
	"github.com/l3aro/jflow/pkg/syntax"
)

// use records on n the references read by e, materializing call nodes ahead
// of n, and returns the reference e evaluates to when there is one.
func (b *builder) use(e syntax.Expr, n *graph.Node) *graph.VarRef {
	switch v := e.(type) {
	case nil:
		return nil
	case *syntax.Name:
		r := b.nameRef(v)
		n.AddUse(r)
		return r
	case *syntax.FieldAccess:
		return b.fieldUse(v, n)
	case *syntax.This:
		r := graph.This(b.thisClass(v))
		n.AddUse(r)
		return r
	case *syntax.Literal:
		return nil
	case *syntax.Assign:
		return b.assign(v, n)
	case *syntax.Unary:
		r := b.use(v.X, n)
		if syntax.IsIncDec(v.Op) && r != nil {
			n.AddDef(r)
		}
		return nil
	case *syntax.Binary:
		b.use(v.X, n)
		b.use(v.Y, n)
		return nil
	case *syntax.Call:
		r := b.call(v, true)
		n.AddUse(r)
		return r
	case *syntax.New:
		r := b.newObject(v, true)
		n.AddUse(r)
		return r
	case *syntax.NewArray:
		for _, d := range v.Dims {
			b.use(d, n)
		}
		for _, x := range v.Init {
			b.use(x, n)
		}
		return nil
	case *syntax.Cast:
		return b.use(v.X, n)
	case *syntax.Conditional:
		b.use(v.Cond, n)
		b.use(v.Then, n)
		b.use(v.Else, n)
		return nil
	case *syntax.InstanceOf:
		b.use(v.X, n)
		return nil
	case *syntax.Index:
		b.use(v.X, n)
		b.use(v.Index, n)
		return nil
	case *syntax.ArrayInit:
		for _, x := range v.Elems {
			b.use(x, n)
		}
		return nil
	case *syntax.UnsupportedExpr:
		b.logger.Debug("skipping unsupported expression", "member", b.member, "line", v.Pos(), "text", v.Text)
		return nil
	}
	return nil
}

// assign records the definition of the left-hand side and the uses of both
// sides; compound operators also read the target. It returns the target.
func (b *builder) assign(a *syntax.Assign, n *graph.Node) *graph.VarRef {
	t := b.target(a.LHS, n)
	if a.Op != "=" && t != nil {
		n.AddUse(t)
	}
	b.use(a.RHS, n)
	if t != nil {
		n.AddDef(t)
	}
	return t
}

// target returns the reference an assignment to e defines. An array element
// store defines the array variable.
func (b *builder) target(e syntax.Expr, n *graph.Node) *graph.VarRef {
	switch v := e.(type) {
	case *syntax.Name:
		return b.nameRef(v)
	case *syntax.FieldAccess:
		if v.Binding == nil {
			b.use(v.X, n)
			return nil
		}
		r := b.fieldRef(v.Binding)
		if recv := b.receiver(v.X, n); recv != nil && !r.Static {
			r.Receiver = recv
		}
		return r
	case *syntax.Index:
		base := b.use(v.X, n)
		b.use(v.Index, n)
		return base
	case *syntax.Cast:
		return b.target(v.X, n)
	default:
		b.use(e, n)
		return nil
	}
}

// receiver evaluates the object of a field access and returns its
// reference; the variables it reads are recorded as uses on n.
func (b *builder) receiver(x syntax.Expr, n *graph.Node) *graph.VarRef {
	switch v := x.(type) {
	case nil:
		return nil
	case *syntax.This:
		return graph.This(b.thisClass(v))
	case *syntax.Name:
		if v.TypeName != "" {
			return nil
		}
		r := b.nameRef(v)
		n.AddUse(r)
		return r
	default:
		return b.use(x, n)
	}
}

// fieldUse records a field read. Reads off a call result get their own
// field-access node defining a temporary that n then uses.
func (b *builder) fieldUse(v *syntax.FieldAccess, n *graph.Node) *graph.VarRef {
	if v.Binding == nil {
		b.use(v.X, n)
		return nil
	}
	r := b.fieldRef(v.Binding)
	switch v.X.(type) {
	case *syntax.Call, *syntax.New:
		fa := b.node(graph.KindFieldAccess, text(v), v.Pos())
		recv := b.use(v.X, fa)
		if recv != nil && !r.Static {
			r.Receiver = recv
		}
		fa.AddUse(r)
		t := b.temp(v.Binding.Type)
		fa.AddDef(t)
		b.place(fa)
		n.AddUse(t)
		return t
	}
	if recv := b.receiver(v.X, n); recv != nil && !r.Static {
		r.Receiver = recv
	}
	n.AddUse(r)
	return r
}

func (b *builder) nameRef(v *syntax.Name) *graph.VarRef {
	if v.Binding == nil {
		return nil
	}
	switch v.Binding.Kind {
	case syntax.FieldBinding:
		r := b.fieldRef(v.Binding)
		if !r.Static {
			r.Receiver = graph.This(b.class)
		}
		return r
	default:
		return graph.Local(v.Binding.Name, v.Binding.Type.String(), v.Binding.Primitive())
	}
}

// fieldRef builds a field reference, normalizing the declaring class through
// the registry so inherited fields share one qualified name.
func (b *builder) fieldRef(vb *syntax.VarBinding) *graph.VarRef {
	class := vb.DeclaringClass
	mods := vb.Modifiers
	inProject := vb.InProject
	if b.reg != nil {
		if f := b.reg.ResolveField(vb); f.IsRegistered() {
			class = f.Class.Name
			mods = f.Modifiers
			inProject = f.InProject()
		}
	}
	r := graph.Field(class, vb.Name, vb.Type.String(), vb.Primitive(), vb.Static || mods.Has(syntax.Static), inProject)
	r.Modifiers = int(mods)
	return r
}

func (b *builder) thisClass(v *syntax.This) string {
	if v.Class != "" {
		return v.Class
	}
	return b.class
}

func (b *builder) temp(t syntax.TypeRef) *graph.VarRef {
	b.temps++
	return graph.Temp(b.temps, t.String(), t.Primitive())
}

// actuals materializes one actual-in node per argument and returns the
// temporaries carrying the argument values.
func (b *builder) actuals(args []syntax.Expr, line int) []*graph.VarRef {
	out := make([]*graph.VarRef, len(args))
	for i, a := range args {
		at := a.Pos()
		if at == 0 {
			at = line
		}
		n := b.node(graph.KindActualIn, text(a), at)
		b.use(a, n)
		t := b.temp(syntax.StaticType(a))
		n.AddDef(t)
		b.place(n)
		out[i] = t
	}
	return out
}

// result materializes the actual-out node holding a call's value.
func (b *builder) result(t syntax.TypeRef, line int) *graph.VarRef {
	n := b.node(graph.KindActualOut, "result", line)
	r := b.temp(t)
	r.CallResult = true
	n.AddDef(r)
	b.place(n)
	return r
}

// call materializes receiver, actual-in, call and (when the value is wanted)
// actual-out nodes, returning the temporary holding the result.
func (b *builder) call(c *syntax.Call, wantResult bool) *graph.VarRef {
	var recv *graph.VarRef
	switch x := c.Recv.(type) {
	case nil, *syntax.This:
	case *syntax.Name:
		if x.TypeName != "" {
			break
		}
		recv = b.receiverNode(c.Recv, c.Pos())
	default:
		recv = b.receiverNode(c.Recv, c.Pos())
	}
	args := b.actuals(c.Args, c.Pos())

	n := b.node(graph.KindMethodCall, text(c), c.Pos())
	n.AddUse(recv)
	for _, a := range args {
		n.AddUse(a)
	}
	n.Call = b.callSite(c.Target, c.Name)
	n.Types = b.exc.Raises(c.Target)
	b.place(n)
	b.raise(n.Handle, n.Types, false)

	if !wantResult {
		return nil
	}
	var rt syntax.TypeRef
	if c.Target != nil {
		rt = c.Target.Result
		if rt.IsVoid() {
			return nil
		}
	}
	return b.result(rt, c.Pos())
}

func (b *builder) receiverNode(x syntax.Expr, line int) *graph.VarRef {
	n := b.node(graph.KindReceiver, text(x), line)
	b.use(x, n)
	t := b.temp(syntax.StaticType(x))
	n.AddDef(t)
	b.place(n)
	return t
}

func (b *builder) newObject(v *syntax.New, wantResult bool) *graph.VarRef {
	args := b.actuals(v.Args, v.Pos())
	n := b.node(graph.KindInstanceCreation, text(v), v.Pos())
	for _, a := range args {
		n.AddUse(a)
	}
	n.Call = b.callSite(v.Target, "<init>")
	if n.Call.Class == "" {
		n.Call.Class = v.Type.Name
		n.Call.Constructor = true
	}
	n.Types = b.exc.Raises(v.Target)
	b.place(n)
	b.raise(n.Handle, n.Types, false)
	if !wantResult {
		return nil
	}
	return b.result(v.Type, v.Pos())
}

func (b *builder) constructorCall(s *syntax.ConstructorCall) {
	name := "this"
	if s.Super {
		name = "super"
	}
	args := b.actuals(s.Args, s.Pos())
	n := b.node(graph.KindConstructorCall, callText(name, s.Args), s.Pos())
	for _, a := range args {
		n.AddUse(a)
	}
	n.Call = b.callSite(s.Target, "<init>")
	n.Types = b.exc.Raises(s.Target)
	b.place(n)
	b.raise(n.Handle, n.Types, false)
}

// callSite describes the target of a call, resolved through the registry
// when possible.
func (b *builder) callSite(target *syntax.MethodBinding, name string) *graph.CallSite {
	if target == nil {
		return &graph.CallSite{Name: name, Signature: name + "(?)"}
	}
	cs := &graph.CallSite{
		Class:       target.DeclaringClass,
		Name:        target.Name,
		Signature:   target.Signature(),
		Result:      target.Result.String(),
		Static:      target.Static,
		Constructor: target.Constructor,
		InProject:   target.InProject,
	}
	if b.reg != nil {
		if m := b.reg.ResolveMethod(target); m.IsRegistered() {
			cs.Class = m.Class.Name
			cs.Signature = m.Signature
			cs.InProject = m.InProject()
		}
	}
	return cs
}
