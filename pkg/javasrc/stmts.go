package javasrc

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/l3aro/jflow/pkg/syntax"
)

// binder converts one member body, tracking the local scopes.
type binder struct {
	s      *session
	u      *unit
	t      *typeInfo
	m      *methodInfo
	static bool
	scopes []map[string]*syntax.VarBinding
}

func (s *session) newBinder(t *typeInfo, m *methodInfo, static bool) *binder {
	return &binder{s: s, u: t.unit, t: t, m: m, static: static}
}

func (b *binder) push() {
	b.scopes = append(b.scopes, make(map[string]*syntax.VarBinding))
}

func (b *binder) pop() {
	b.scopes = b.scopes[:len(b.scopes)-1]
}

func (b *binder) declareVar(vb *syntax.VarBinding) {
	if len(b.scopes) == 0 {
		b.push()
	}
	b.scopes[len(b.scopes)-1][vb.Name] = vb
}

func (b *binder) local(name string) *syntax.VarBinding {
	for i := len(b.scopes) - 1; i >= 0; i-- {
		if vb, ok := b.scopes[i][name]; ok {
			return vb
		}
	}
	return nil
}

func (b *binder) tparams() map[string]bool {
	if b.m == nil {
		return nil
	}
	return b.m.typeParams
}

func (b *binder) typeRef(n *sitter.Node) syntax.TypeRef {
	return b.s.resolveType(b.t, b.tparams(), n)
}

func (b *binder) unsupported(n *sitter.Node) *syntax.Unsupported {
	b.s.logger.Debug("unsupported statement", "type", n.Type(), "file", b.u.path, "line", lineOf(n))
	return &syntax.Unsupported{Line: syntax.Line(lineOf(n)), Text: n.Type()}
}

// block converts a block or constructor body in a fresh scope.
func (b *binder) block(n *sitter.Node) *syntax.Block {
	if n == nil {
		return nil
	}
	blk := &syntax.Block{Line: syntax.Line(lineOf(n))}
	b.push()
	defer b.pop()
	for _, c := range namedChildren(n) {
		blk.Stmts = append(blk.Stmts, b.stmts(c)...)
	}
	return blk
}

// stmt converts a statement in a single-statement position.
func (b *binder) stmt(n *sitter.Node) syntax.Stmt {
	if n == nil {
		return nil
	}
	list := b.stmts(n)
	if len(list) == 1 {
		return list[0]
	}
	return &syntax.Block{Line: syntax.Line(lineOf(n)), Stmts: list}
}

// stmts converts n into statements; a local declaration with several
// declarators yields one statement per variable.
func (b *binder) stmts(n *sitter.Node) []syntax.Stmt {
	line := syntax.Line(lineOf(n))
	switch n.Type() {
	case "block":
		return []syntax.Stmt{b.block(n)}
	case "expression_statement":
		kids := namedChildren(n)
		if len(kids) == 0 {
			return nil
		}
		if kids[0].Type() == "switch_expression" {
			return []syntax.Stmt{b.switchStmt(kids[0])}
		}
		return []syntax.Stmt{&syntax.ExprStmt{Line: line, X: b.expr(kids[0])}}
	case "local_variable_declaration":
		return b.localVars(n)
	case "if_statement":
		s := &syntax.If{
			Line: line,
			Cond: b.cond(n.ChildByFieldName("condition")),
			Then: b.scoped(n.ChildByFieldName("consequence")),
		}
		if alt := n.ChildByFieldName("alternative"); alt != nil {
			s.Else = b.scoped(alt)
		}
		return []syntax.Stmt{s}
	case "while_statement":
		return []syntax.Stmt{&syntax.While{
			Line: line,
			Cond: b.cond(n.ChildByFieldName("condition")),
			Body: b.scoped(n.ChildByFieldName("body")),
		}}
	case "do_statement":
		return []syntax.Stmt{&syntax.Do{
			Line: line,
			Body: b.scoped(n.ChildByFieldName("body")),
			Cond: b.cond(n.ChildByFieldName("condition")),
		}}
	case "for_statement":
		return []syntax.Stmt{b.forStmt(n)}
	case "enhanced_for_statement":
		return []syntax.Stmt{b.forEach(n)}
	case "switch_expression", "switch_statement":
		return []syntax.Stmt{b.switchStmt(n)}
	case "return_statement":
		s := &syntax.Return{Line: line}
		if kids := namedChildren(n); len(kids) > 0 {
			s.Result = b.expr(kids[0])
		}
		return []syntax.Stmt{s}
	case "break_statement":
		return []syntax.Stmt{&syntax.Break{Line: line, Label: b.u.text(childOfType(n, "identifier"))}}
	case "continue_statement":
		return []syntax.Stmt{&syntax.Continue{Line: line, Label: b.u.text(childOfType(n, "identifier"))}}
	case "throw_statement":
		kids := namedChildren(n)
		if len(kids) == 0 {
			return []syntax.Stmt{b.unsupported(n)}
		}
		return []syntax.Stmt{&syntax.Throw{Line: line, X: b.expr(kids[0])}}
	case "try_statement", "try_with_resources_statement":
		return []syntax.Stmt{b.tryStmt(n)}
	case "labeled_statement":
		kids := namedChildren(n)
		if len(kids) < 2 {
			return []syntax.Stmt{b.unsupported(n)}
		}
		return []syntax.Stmt{&syntax.Labeled{
			Line:  line,
			Label: b.u.text(kids[0]),
			Body:  b.stmt(kids[len(kids)-1]),
		}}
	case "synchronized_statement":
		return []syntax.Stmt{&syntax.Synchronized{
			Line: line,
			Lock: b.cond(childOfType(n, "parenthesized_expression")),
			Body: b.block(n.ChildByFieldName("body")),
		}}
	case "explicit_constructor_invocation":
		return []syntax.Stmt{b.constructorCall(n)}
	case "empty_statement":
		return []syntax.Stmt{&syntax.Empty{Line: line}}
	}
	return []syntax.Stmt{b.unsupported(n)}
}

// scoped converts a loop or branch body in its own scope.
func (b *binder) scoped(n *sitter.Node) syntax.Stmt {
	b.push()
	defer b.pop()
	return b.stmt(n)
}

// cond converts a condition, unwrapping its parentheses.
func (b *binder) cond(n *sitter.Node) syntax.Expr {
	if n == nil {
		return nil
	}
	if n.Type() == "parenthesized_expression" {
		if kids := namedChildren(n); len(kids) == 1 {
			return b.expr(kids[0])
		}
	}
	return b.expr(n)
}

func (b *binder) localVars(n *sitter.Node) []syntax.Stmt {
	base := b.typeRef(n.ChildByFieldName("type"))
	var out []syntax.Stmt
	for _, d := range childrenByField(n, "declarator") {
		lv := &syntax.LocalVar{
			Line: syntax.Line(lineOf(d)),
			Name: b.u.text(d.ChildByFieldName("name")),
			Type: base,
		}
		lv.Type.Dims += dims(b.u, d.ChildByFieldName("dimensions"))
		if v := d.ChildByFieldName("value"); v != nil {
			lv.Init = b.expr(v)
		}
		if lv.Type.Name == "var" {
			lv.Type = b.typeOf(lv.Init)
			if lv.Type.IsZero() {
				lv.Type = syntax.TypeRef{Name: objectType}
			}
		}
		lv.Binding = &syntax.VarBinding{Kind: syntax.LocalBinding, Name: lv.Name, Type: lv.Type}
		b.declareVar(lv.Binding)
		out = append(out, lv)
	}
	return out
}

func (b *binder) forStmt(n *sitter.Node) *syntax.For {
	b.push()
	defer b.pop()
	s := &syntax.For{Line: syntax.Line(lineOf(n))}
	for _, in := range childrenByField(n, "init") {
		if in.Type() == "local_variable_declaration" {
			s.Init = append(s.Init, b.localVars(in)...)
			continue
		}
		s.Init = append(s.Init, &syntax.ExprStmt{Line: syntax.Line(lineOf(in)), X: b.expr(in)})
	}
	if c := n.ChildByFieldName("condition"); c != nil {
		s.Cond = b.expr(c)
	}
	for _, up := range childrenByField(n, "update") {
		s.Update = append(s.Update, b.expr(up))
	}
	s.Body = b.scoped(n.ChildByFieldName("body"))
	return s
}

func (b *binder) forEach(n *sitter.Node) *syntax.ForEach {
	b.push()
	defer b.pop()
	s := &syntax.ForEach{
		Line:     syntax.Line(lineOf(n)),
		Iterable: b.expr(n.ChildByFieldName("value")),
	}
	t := b.typeRef(n.ChildByFieldName("type"))
	t.Dims += dims(b.u, n.ChildByFieldName("dimensions"))
	if t.Name == "var" {
		t = b.typeOf(s.Iterable)
		if t.Dims > 0 {
			t.Dims--
		} else {
			t = syntax.TypeRef{Name: objectType}
		}
	}
	name := b.u.text(n.ChildByFieldName("name"))
	s.Var = &syntax.LocalVar{
		Line:    s.Line,
		Name:    name,
		Type:    t,
		Binding: &syntax.VarBinding{Kind: syntax.LocalBinding, Name: name, Type: t},
	}
	b.declareVar(s.Var.Binding)
	s.Body = b.scoped(n.ChildByFieldName("body"))
	return s
}

// switchStmt splits label groups into one case per label so that stacked
// labels share the statements that follow them. Arrow rules do not fall
// through and end in an implicit break.
func (b *binder) switchStmt(n *sitter.Node) *syntax.Switch {
	s := &syntax.Switch{
		Line: syntax.Line(lineOf(n)),
		Tag:  b.cond(n.ChildByFieldName("condition")),
	}
	tag := b.typeOf(s.Tag)
	b.push()
	defer b.pop()
	for _, group := range namedChildren(n.ChildByFieldName("body")) {
		var labels []*syntax.SwitchCase
		var body []syntax.Stmt
		rule := group.Type() == "switch_rule"
		for _, c := range namedChildren(group) {
			if c.Type() == "switch_label" {
				labels = append(labels, b.switchLabel(c, tag))
				continue
			}
			body = append(body, b.stmts(c)...)
		}
		if len(labels) == 0 {
			continue
		}
		if rule && !endsAbruptly(body) {
			body = append(body, &syntax.Break{Line: syntax.Line(lineOf(group))})
		}
		labels[len(labels)-1].Body = body
		s.Cases = append(s.Cases, labels...)
	}
	return s
}

// switchLabel converts a case label; enum constant labels bind against the
// tag's enum type.
func (b *binder) switchLabel(n *sitter.Node, tag syntax.TypeRef) *syntax.SwitchCase {
	c := &syntax.SwitchCase{Line: syntax.Line(lineOf(n))}
	kids := namedChildren(n)
	if len(kids) == 0 {
		c.Default = true
		return c
	}
	for _, k := range kids {
		if k.Type() == "identifier" {
			if vb := b.s.findField(tag.Name, b.u.text(k), make(map[string]bool)); vb != nil {
				c.Exprs = append(c.Exprs, &syntax.Name{Line: syntax.Line(lineOf(k)), Ident: vb.Name, Binding: vb})
				continue
			}
		}
		c.Exprs = append(c.Exprs, b.expr(k))
	}
	return c
}

func endsAbruptly(body []syntax.Stmt) bool {
	if len(body) == 0 {
		return false
	}
	switch last := body[len(body)-1].(type) {
	case *syntax.Return, *syntax.Throw, *syntax.Break, *syntax.Continue:
		return true
	case *syntax.Block:
		return endsAbruptly(last.Stmts)
	}
	return false
}

func (b *binder) tryStmt(n *sitter.Node) *syntax.Try {
	s := &syntax.Try{Line: syntax.Line(lineOf(n))}
	b.push()
	if res := n.ChildByFieldName("resources"); res != nil {
		for _, r := range namedChildren(res) {
			if r.Type() != "resource" || r.ChildByFieldName("type") == nil {
				continue
			}
			t := b.typeRef(r.ChildByFieldName("type"))
			lv := &syntax.LocalVar{
				Line: syntax.Line(lineOf(r)),
				Name: b.u.text(r.ChildByFieldName("name")),
				Type: t,
			}
			if v := r.ChildByFieldName("value"); v != nil {
				lv.Init = b.expr(v)
			}
			if lv.Type.Name == "var" {
				lv.Type = b.typeOf(lv.Init)
			}
			lv.Binding = &syntax.VarBinding{Kind: syntax.LocalBinding, Name: lv.Name, Type: lv.Type}
			b.declareVar(lv.Binding)
			s.Resources = append(s.Resources, lv)
		}
	}
	s.Body = b.block(n.ChildByFieldName("body"))
	b.pop()

	for _, c := range namedChildren(n) {
		switch c.Type() {
		case "catch_clause":
			s.Catches = append(s.Catches, b.catchClause(c))
		case "finally_clause":
			s.Finally = b.block(childOfType(c, "block"))
		}
	}
	return s
}

func (b *binder) catchClause(n *sitter.Node) *syntax.CatchClause {
	cc := &syntax.CatchClause{Line: syntax.Line(lineOf(n))}
	param := childOfType(n, "catch_formal_parameter")
	if param != nil {
		if ct := childOfType(param, "catch_type"); ct != nil {
			for _, tn := range namedChildren(ct) {
				cc.Types = append(cc.Types, b.typeRef(tn))
			}
		}
		pt := syntax.TypeRef{Name: "java.lang.Throwable"}
		if len(cc.Types) == 1 {
			pt = cc.Types[0]
		}
		name := b.u.text(param.ChildByFieldName("name"))
		cc.Param = &syntax.LocalVar{
			Line:    cc.Line,
			Name:    name,
			Type:    pt,
			Binding: &syntax.VarBinding{Kind: syntax.LocalBinding, Name: name, Type: pt},
		}
	}
	b.push()
	defer b.pop()
	if cc.Param != nil {
		b.declareVar(cc.Param.Binding)
	}
	cc.Body = b.block(n.ChildByFieldName("body"))
	return cc
}

func (b *binder) constructorCall(n *sitter.Node) *syntax.ConstructorCall {
	ctor := n.ChildByFieldName("constructor")
	s := &syntax.ConstructorCall{
		Line:  syntax.Line(lineOf(n)),
		Super: ctor != nil && ctor.Type() == "super",
		Args:  b.args(n.ChildByFieldName("arguments")),
	}
	class := b.t.decl.QualifiedName
	if s.Super {
		class = b.t.decl.Superclass
		if class == "" {
			class = objectType
		}
	}
	s.Target = b.constructor(class, s.Args)
	return s
}
