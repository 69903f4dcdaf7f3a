package javasrc

import (
	"strings"
	"unicode"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/l3aro/jflow/pkg/syntax"
)

var literalTypes = map[string]string{
	"decimal_integer_literal":        "int",
	"hex_integer_literal":            "int",
	"octal_integer_literal":          "int",
	"binary_integer_literal":         "int",
	"decimal_floating_point_literal": "double",
	"hex_floating_point_literal":     "double",
	"true":                           "boolean",
	"false":                          "boolean",
	"character_literal":              "char",
	"string_literal":                 "java.lang.String",
	"text_block":                     "java.lang.String",
	"null_literal":                   "",
}

// maxUnsupportedText bounds the source text kept on unsupported nodes.
const maxUnsupportedText = 60

func (b *binder) expr(n *sitter.Node) syntax.Expr {
	if n == nil {
		return nil
	}
	line := syntax.Line(lineOf(n))
	if lt, ok := literalTypes[n.Type()]; ok {
		return b.literal(n, lt)
	}
	switch n.Type() {
	case "parenthesized_expression":
		if kids := namedChildren(n); len(kids) == 1 {
			return b.expr(kids[0])
		}
	case "identifier":
		return b.name(n)
	case "this", "super":
		return &syntax.This{Line: line, Class: b.t.decl.QualifiedName}
	case "field_access":
		return b.fieldAccess(n)
	case "method_invocation":
		return b.call(n)
	case "object_creation_expression":
		return b.newObject(n)
	case "assignment_expression":
		return &syntax.Assign{
			Line: line,
			Op:   b.u.text(n.ChildByFieldName("operator")),
			LHS:  b.expr(n.ChildByFieldName("left")),
			RHS:  b.expr(n.ChildByFieldName("right")),
		}
	case "binary_expression":
		return &syntax.Binary{
			Line: line,
			Op:   b.u.text(n.ChildByFieldName("operator")),
			X:    b.expr(n.ChildByFieldName("left")),
			Y:    b.expr(n.ChildByFieldName("right")),
		}
	case "unary_expression":
		return &syntax.Unary{
			Line: line,
			Op:   b.u.text(n.ChildByFieldName("operator")),
			X:    b.expr(n.ChildByFieldName("operand")),
		}
	case "update_expression":
		return b.update(n)
	case "cast_expression":
		return &syntax.Cast{
			Line: line,
			Type: b.typeRef(n.ChildByFieldName("type")),
			X:    b.expr(n.ChildByFieldName("value")),
		}
	case "ternary_expression":
		return &syntax.Conditional{
			Line: line,
			Cond: b.expr(n.ChildByFieldName("condition")),
			Then: b.expr(n.ChildByFieldName("consequence")),
			Else: b.expr(n.ChildByFieldName("alternative")),
		}
	case "instanceof_expression":
		return b.instanceOf(n)
	case "array_access":
		return &syntax.Index{
			Line:  line,
			X:     b.expr(n.ChildByFieldName("array")),
			Index: b.expr(n.ChildByFieldName("index")),
		}
	case "array_creation_expression":
		return b.newArray(n)
	case "array_initializer":
		return &syntax.ArrayInit{Line: line, Elems: b.exprs(namedChildren(n))}
	case "class_literal":
		return &syntax.Literal{Line: line, Value: b.u.text(n), Type: syntax.TypeRef{Name: "java.lang.Class"}}
	}
	text := b.u.text(n)
	if len(text) > maxUnsupportedText {
		text = text[:maxUnsupportedText] + "..."
	}
	b.s.logger.Debug("unsupported expression", "type", n.Type(), "file", b.u.path, "line", lineOf(n))
	return &syntax.UnsupportedExpr{Line: line, Text: text}
}

func (b *binder) exprs(nodes []*sitter.Node) []syntax.Expr {
	out := make([]syntax.Expr, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, b.expr(n))
	}
	return out
}

func (b *binder) args(n *sitter.Node) []syntax.Expr {
	if n == nil {
		return nil
	}
	return b.exprs(namedChildren(n))
}

func (b *binder) literal(n *sitter.Node, typ string) *syntax.Literal {
	value := b.u.text(n)
	switch {
	case strings.HasSuffix(n.Type(), "integer_literal") && strings.ContainsAny(value[len(value)-1:], "lL"):
		typ = "long"
	case strings.HasSuffix(n.Type(), "floating_point_literal") && strings.ContainsAny(value[len(value)-1:], "fF"):
		typ = "float"
	}
	return &syntax.Literal{Line: syntax.Line(lineOf(n)), Value: value, Type: syntax.TypeRef{Name: typ}}
}

// name binds a simple name: locals and parameters, then fields of the class
// chain and enclosing classes, then static imports, then type names.
func (b *binder) name(n *sitter.Node) *syntax.Name {
	ident := b.u.text(n)
	out := &syntax.Name{Line: syntax.Line(lineOf(n)), Ident: ident}
	if vb := b.variable(ident); vb != nil {
		out.Binding = vb
		return out
	}
	if q, ok := b.s.resolveName(b.t, b.tparams(), ident); ok {
		out.TypeName = q
		return out
	}
	b.s.logger.Debug("unresolved name", "name", ident, "file", b.u.path, "line", lineOf(n))
	return out
}

func (b *binder) variable(ident string) *syntax.VarBinding {
	if vb := b.local(ident); vb != nil {
		return vb
	}
	for t := b.t; t != nil; t = t.outer {
		if vb := b.s.findField(t.decl.QualifiedName, ident, make(map[string]bool)); vb != nil {
			return vb
		}
	}
	if class, ok := b.u.staticImports[ident]; ok {
		if vb := b.s.findField(class, ident, make(map[string]bool)); vb != nil {
			return vb
		}
		return &syntax.VarBinding{Kind: syntax.FieldBinding, Name: ident, DeclaringClass: class, Static: true}
	}
	for _, class := range b.u.staticOnDemand {
		if vb := b.s.findField(class, ident, make(map[string]bool)); vb != nil {
			return vb
		}
	}
	return nil
}

func (b *binder) fieldAccess(n *sitter.Node) syntax.Expr {
	line := syntax.Line(lineOf(n))
	obj := n.ChildByFieldName("object")
	field := n.ChildByFieldName("field")
	name := b.u.text(field)

	if field != nil && field.Type() == "this" {
		// Outer.this
		q, _ := b.s.resolveName(b.t, b.tparams(), b.u.text(obj))
		return &syntax.This{Line: line, Class: q}
	}
	if q, ok := b.qualifiedType(n); ok {
		return &syntax.Name{Line: line, Ident: b.u.text(n), TypeName: q}
	}

	fa := &syntax.FieldAccess{Line: line, Name: name}
	if obj != nil && obj.Type() == "super" {
		fa.X = &syntax.This{Line: line, Class: b.t.decl.QualifiedName}
		if sc := b.t.decl.Superclass; sc != "" {
			fa.Binding = b.s.fieldOf(syntax.TypeRef{Name: sc}, name, false)
		}
		return fa
	}
	fa.X = b.expr(obj)
	fa.Binding = b.s.fieldOf(b.typeOf(fa.X), name, isTypeName(fa.X))
	return fa
}

// qualifiedType reports whether a dotted field access chain spells a type
// name such as java.util.List or Outer.Inner.
func (b *binder) qualifiedType(n *sitter.Node) (string, bool) {
	var parts []string
	cur := n
	for cur.Type() == "field_access" {
		parts = append([]string{b.u.text(cur.ChildByFieldName("field"))}, parts...)
		cur = cur.ChildByFieldName("object")
		if cur == nil {
			return "", false
		}
	}
	if cur.Type() != "identifier" {
		return "", false
	}
	head := b.u.text(cur)
	if b.variable(head) != nil {
		return "", false
	}
	dotted := head + "." + strings.Join(parts, ".")
	if _, ok := b.s.types[dotted]; ok {
		return dotted, true
	}
	if q, ok := b.s.resolveSimple(b.t, b.tparams(), head); ok {
		// a known type followed by a member type of a project class
		if _, nested := b.s.types[q+"."+strings.Join(parts, ".")]; nested {
			return q + "." + strings.Join(parts, "."), true
		}
		return "", false
	}
	// package-qualified external type: lower-case package segments followed
	// by a capitalized type name
	last := parts[len(parts)-1]
	if isLowerIdent(head) && len(parts) > 1 && isTypeLike(last) && isLowerIdent(parts[0]) {
		return dotted, true
	}
	return "", false
}

// isTypeLike accepts capitalized names that are not constants.
func isTypeLike(s string) bool {
	return s != "" && unicode.IsUpper(rune(s[0])) && strings.ToUpper(s) != s
}

func isLowerIdent(s string) bool {
	return s != "" && unicode.IsLower(rune(s[0]))
}

func isTypeName(e syntax.Expr) bool {
	n, ok := e.(*syntax.Name)
	return ok && n.TypeName != ""
}

func (b *binder) call(n *sitter.Node) *syntax.Call {
	c := &syntax.Call{
		Line: syntax.Line(lineOf(n)),
		Name: b.u.text(n.ChildByFieldName("name")),
		Args: b.args(n.ChildByFieldName("arguments")),
	}
	argTypes := b.argTypes(c.Args)
	obj := n.ChildByFieldName("object")
	switch {
	case obj == nil:
		c.Target = b.unqualifiedCall(c.Name, argTypes)
	case obj.Type() == "super":
		c.Recv = &syntax.This{Line: c.Line, Class: b.t.decl.QualifiedName}
		sc := b.t.decl.Superclass
		if sc == "" {
			sc = objectType
		}
		c.Target = b.s.methodOf(sc, c.Name, argTypes, false)
	default:
		c.Recv = b.expr(obj)
		static := isTypeName(c.Recv)
		rt := b.typeOf(c.Recv)
		switch {
		case rt.Dims > 0:
			c.Target = &syntax.MethodBinding{DeclaringClass: objectType, Name: c.Name, Arity: len(argTypes)}
		case rt.IsZero() || rt.Primitive():
			b.s.logger.Debug("unknown receiver type", "call", c.Name, "file", b.u.path, "line", lineOf(n))
		default:
			c.Target = b.s.methodOf(rt.Name, c.Name, argTypes, static)
		}
	}
	return c
}

// unqualifiedCall binds name(args) against the class chain, then enclosing
// classes, then static imports. An unmatched call binds by arity on the
// current class so the registry can search binary ancestors.
func (b *binder) unqualifiedCall(name string, argTypes []syntax.TypeRef) *syntax.MethodBinding {
	for t := b.t; t != nil; t = t.outer {
		if m := pick(b.s.findMethods(t.decl.QualifiedName, name, make(map[string]bool)), argTypes); m != nil {
			return m.decl.Binding()
		}
	}
	if class, ok := b.u.staticImports[name]; ok {
		return b.s.methodOf(class, name, argTypes, true)
	}
	for _, class := range b.u.staticOnDemand {
		if m := pick(b.s.findMethods(class, name, make(map[string]bool)), argTypes); m != nil {
			return m.decl.Binding()
		}
	}
	return b.s.methodOf(b.t.decl.QualifiedName, name, argTypes, b.static)
}

func (b *binder) newObject(n *sitter.Node) *syntax.New {
	v := &syntax.New{
		Line: syntax.Line(lineOf(n)),
		Type: b.typeRef(n.ChildByFieldName("type")),
		Args: b.args(n.ChildByFieldName("arguments")),
	}
	v.Target = b.constructor(v.Type.Name, v.Args)
	if childOfType(n, "class_body") != nil {
		b.s.logger.Debug("anonymous class body not modelled", "type", v.Type.Name, "file", b.u.path, "line", lineOf(n))
	}
	return v
}

func (b *binder) constructor(class string, args []syntax.Expr) *syntax.MethodBinding {
	return b.s.constructor(class, b.argTypes(args))
}

func (b *binder) newArray(n *sitter.Node) *syntax.NewArray {
	v := &syntax.NewArray{
		Line: syntax.Line(lineOf(n)),
		Type: b.typeRef(n.ChildByFieldName("type")),
	}
	for _, d := range namedChildren(n) {
		if d.Type() == "dimensions_expr" {
			if kids := namedChildren(d); len(kids) > 0 {
				v.Dims = append(v.Dims, b.expr(kids[0]))
			}
		}
	}
	extra := dims(b.u, childOfType(n, "dimensions"))
	if len(v.Dims) == 0 && extra > 0 {
		extra--
	}
	v.Type.Dims += extra
	if init := n.ChildByFieldName("value"); init != nil {
		v.Init = b.exprs(namedChildren(init))
	}
	return v
}

func (b *binder) update(n *sitter.Node) *syntax.Unary {
	u := &syntax.Unary{Line: syntax.Line(lineOf(n))}
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c.IsNamed() {
			u.X = b.expr(c)
			continue
		}
		u.Op = b.u.text(c)
		u.Postfix = i > 0
	}
	return u
}

func (b *binder) instanceOf(n *sitter.Node) *syntax.InstanceOf {
	v := &syntax.InstanceOf{
		Line: syntax.Line(lineOf(n)),
		X:    b.expr(n.ChildByFieldName("left")),
	}
	right := n.ChildByFieldName("right")
	if right == nil {
		if kids := namedChildren(n); len(kids) > 1 {
			right = kids[1]
		}
	}
	v.Type = b.typeRef(right)
	// pattern variable: x instanceof Foo f
	if name := n.ChildByFieldName("name"); name != nil {
		b.declareVar(&syntax.VarBinding{Kind: syntax.LocalBinding, Name: b.u.text(name), Type: v.Type})
	}
	return v
}

func (b *binder) argTypes(args []syntax.Expr) []syntax.TypeRef {
	out := make([]syntax.TypeRef, len(args))
	for i, a := range args {
		out[i] = b.typeOf(a)
	}
	return out
}

var booleanOps = map[string]bool{
	"==": true, "!=": true, "<": true, "<=": true, ">": true, ">=": true,
	"&&": true, "||": true,
}

// typeOf extends syntax.StaticType with the shapes the frontend can type
// itself.
func (b *binder) typeOf(e syntax.Expr) syntax.TypeRef {
	switch v := e.(type) {
	case *syntax.This:
		if v.Class != "" {
			return syntax.TypeRef{Name: v.Class}
		}
		return syntax.TypeRef{Name: b.t.decl.QualifiedName}
	case *syntax.Name:
		if v.TypeName != "" {
			return syntax.TypeRef{Name: v.TypeName}
		}
	case *syntax.Binary:
		if booleanOps[v.Op] {
			return syntax.TypeRef{Name: "boolean"}
		}
		x, y := b.typeOf(v.X), b.typeOf(v.Y)
		if v.Op == "+" && (x.Name == "java.lang.String" || y.Name == "java.lang.String") {
			return syntax.TypeRef{Name: "java.lang.String"}
		}
		return x
	case *syntax.Unary:
		if v.Op == "!" {
			return syntax.TypeRef{Name: "boolean"}
		}
		return b.typeOf(v.X)
	case *syntax.InstanceOf:
		return syntax.TypeRef{Name: "boolean"}
	case *syntax.Conditional:
		return b.typeOf(v.Then)
	}
	return syntax.StaticType(e)
}
