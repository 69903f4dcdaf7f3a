package javasrc

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/l3aro/jflow/internal/log"
	"github.com/l3aro/jflow/pkg/syntax"
)

// session holds the units of one Parse call while they are bound.
type session struct {
	logger log.Logger
	units  []*unit
	// all lists every type, nested ones included, in declaration order.
	all   []*typeInfo
	types map[string]*typeInfo
}

type unit struct {
	path string
	src  []byte
	tree *sitter.Tree
	root *sitter.Node
	pkg  string

	// imports maps simple names to single-type imports.
	imports  map[string]string
	onDemand []string
	// staticImports maps member names to their declaring class.
	staticImports  map[string]string
	staticOnDemand []string

	types []*typeInfo
}

func (u *unit) text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return n.Content(u.src)
}

type typeInfo struct {
	decl       *syntax.TypeDecl
	node       *sitter.Node
	body       *sitter.Node
	unit       *unit
	outer      *typeInfo
	nested     map[string]*typeInfo
	typeParams map[string]bool

	fields  []*fieldInfo
	methods []*methodInfo
	inits   []*initInfo
	consts  []*constInfo
}

type fieldInfo struct {
	decl  *syntax.FieldDecl
	value *sitter.Node
}

type methodInfo struct {
	decl       *syntax.MethodDecl
	body       *sitter.Node
	typeParams map[string]bool
	varargs    bool
}

type initInfo struct {
	decl  *syntax.InitializerDecl
	block *sitter.Node
}

type constInfo struct {
	decl *syntax.EnumConstantDecl
	args *sitter.Node
	body *sitter.Node
}

var typeDeclKinds = map[string]syntax.TypeKind{
	"class_declaration":           syntax.ClassKind,
	"record_declaration":          syntax.ClassKind,
	"interface_declaration":       syntax.InterfaceKind,
	"annotation_type_declaration": syntax.InterfaceKind,
	"enum_declaration":            syntax.EnumKind,
}

func newSession(logger log.Logger) *session {
	return &session{logger: logger, types: make(map[string]*typeInfo)}
}

func (s *session) close() {
	for _, u := range s.units {
		u.tree.Close()
	}
}

// declare runs the first pass: package, imports and type names.
func (s *session) declare() {
	for _, u := range s.units {
		for _, c := range namedChildren(u.root) {
			switch c.Type() {
			case "package_declaration":
				if id := childOfType(c, "scoped_identifier", "identifier"); id != nil {
					u.pkg = u.text(id)
				}
			case "import_declaration":
				u.addImport(c)
			default:
				if _, ok := typeDeclKinds[c.Type()]; ok {
					if t := s.declareType(u, c, nil); t != nil {
						u.types = append(u.types, t)
					}
				}
			}
		}
	}
}

func (u *unit) addImport(n *sitter.Node) {
	var path string
	static, wildcard := false, false
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		switch c.Type() {
		case "static":
			static = true
		case "asterisk":
			wildcard = true
		case "identifier", "scoped_identifier":
			path = u.text(c)
		}
	}
	if path == "" {
		return
	}
	switch {
	case static && wildcard:
		u.staticOnDemand = append(u.staticOnDemand, path)
	case static:
		if i := strings.LastIndexByte(path, '.'); i > 0 {
			u.staticImports[path[i+1:]] = path[:i]
		}
	case wildcard:
		u.onDemand = append(u.onDemand, path)
	default:
		u.imports[syntax.SimpleName(path)] = path
	}
}

func (s *session) declareType(u *unit, n *sitter.Node, outer *typeInfo) *typeInfo {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	name := u.text(nameNode)
	qualified := name
	switch {
	case outer != nil:
		qualified = outer.decl.QualifiedName + "." + name
	case u.pkg != "":
		qualified = u.pkg + "." + name
	}
	kind := typeDeclKinds[n.Type()]
	mods := modifiers(n)
	if outer != nil && (kind != syntax.ClassKind || outer.decl.Kind == syntax.InterfaceKind) {
		mods |= syntax.Static
	}
	t := &typeInfo{
		decl: &syntax.TypeDecl{
			Name:          name,
			QualifiedName: qualified,
			Kind:          kind,
			Modifiers:     mods,
			File:          u.path,
			Line:          lineOf(n),
		},
		node:       n,
		body:       n.ChildByFieldName("body"),
		unit:       u,
		outer:      outer,
		nested:     make(map[string]*typeInfo),
		typeParams: typeParams(u, n),
	}
	s.types[qualified] = t
	s.all = append(s.all, t)

	for _, c := range bodyMembers(t.body) {
		if _, ok := typeDeclKinds[c.Type()]; !ok {
			continue
		}
		if nt := s.declareType(u, c, t); nt != nil {
			t.nested[nt.decl.Name] = nt
			t.decl.Nested = append(t.decl.Nested, nt.decl)
		}
	}
	return t
}

// bodyMembers flattens class, interface and enum bodies into their member
// declarations; enum constants come first.
func bodyMembers(body *sitter.Node) []*sitter.Node {
	var out []*sitter.Node
	for _, c := range namedChildren(body) {
		if c.Type() == "enum_body_declarations" {
			out = append(out, namedChildren(c)...)
			continue
		}
		out = append(out, c)
	}
	return out
}

func modifiers(n *sitter.Node) syntax.Modifiers {
	m := childOfType(n, "modifiers")
	if m == nil {
		return 0
	}
	var mods syntax.Modifiers
	for i := 0; i < int(m.ChildCount()); i++ {
		mods |= syntax.ParseModifier(m.Child(i).Type())
	}
	return mods
}

func typeParams(u *unit, n *sitter.Node) map[string]bool {
	tp := childOfType(n, "type_parameters")
	if tp == nil {
		return nil
	}
	out := make(map[string]bool)
	for _, p := range namedChildren(tp) {
		if id := childOfType(p, "type_identifier", "identifier"); id != nil {
			out[u.text(id)] = true
		}
	}
	return out
}

// members runs the second pass: supertypes and member signatures.
func (s *session) members() {
	for _, t := range s.all {
		s.supertypes(t)
		for _, c := range bodyMembers(t.body) {
			s.member(t, c)
		}
		if t.node.Type() == "record_declaration" {
			s.recordComponents(t)
		}
	}
}

func (s *session) supertypes(t *typeInfo) {
	u := t.unit
	if sc := childOfType(t.node, "superclass"); sc != nil {
		if kids := namedChildren(sc); len(kids) > 0 {
			t.decl.Superclass = s.resolveType(t, nil, kids[0]).Name
		}
	}
	for _, clause := range []string{"super_interfaces", "extends_interfaces"} {
		c := childOfType(t.node, clause)
		if c == nil {
			continue
		}
		list := childOfType(c, "type_list")
		if list == nil {
			list = c
		}
		for _, tn := range namedChildren(list) {
			if name := s.resolveType(t, nil, tn).Name; name != "" {
				t.decl.Interfaces = append(t.decl.Interfaces, name)
			}
		}
	}
	s.logger.Debug("declared type", "type", t.decl.QualifiedName, "file", u.path)
}

func (s *session) member(t *typeInfo, n *sitter.Node) {
	switch n.Type() {
	case "field_declaration", "constant_declaration":
		s.field(t, n)
	case "method_declaration", "annotation_type_element_declaration":
		s.method(t, n, false)
	case "constructor_declaration":
		s.method(t, n, true)
	case "static_initializer", "block":
		static := n.Type() == "static_initializer"
		block := n
		if static {
			block = childOfType(n, "block")
		}
		index := 0
		for _, in := range t.inits {
			if in.decl.Static == static {
				index++
			}
		}
		d := &syntax.InitializerDecl{
			Static:         static,
			Index:          index,
			DeclaringClass: t.decl.QualifiedName,
			Line:           lineOf(n),
		}
		t.inits = append(t.inits, &initInfo{decl: d, block: block})
		t.decl.Initializers = append(t.decl.Initializers, d)
	case "enum_constant":
		d := &syntax.EnumConstantDecl{
			Name:           t.unit.text(n.ChildByFieldName("name")),
			DeclaringClass: t.decl.QualifiedName,
			Line:           lineOf(n),
		}
		t.consts = append(t.consts, &constInfo{
			decl: d,
			args: n.ChildByFieldName("arguments"),
			body: n.ChildByFieldName("body"),
		})
		t.decl.EnumConstants = append(t.decl.EnumConstants, d)
	}
}

func (s *session) field(t *typeInfo, n *sitter.Node) {
	base := s.resolveType(t, nil, n.ChildByFieldName("type"))
	mods := modifiers(n)
	if t.decl.Kind == syntax.InterfaceKind {
		mods |= syntax.Public | syntax.Static | syntax.Final
	}
	for _, d := range childrenByField(n, "declarator") {
		ft := base
		ft.Dims += dims(t.unit, d.ChildByFieldName("dimensions"))
		fd := &syntax.FieldDecl{
			Name:           t.unit.text(d.ChildByFieldName("name")),
			Type:           ft,
			Modifiers:      mods,
			DeclaringClass: t.decl.QualifiedName,
			Line:           lineOf(d),
		}
		t.fields = append(t.fields, &fieldInfo{decl: fd, value: d.ChildByFieldName("value")})
		t.decl.Fields = append(t.decl.Fields, fd)
	}
}

func (s *session) method(t *typeInfo, n *sitter.Node, ctor bool) {
	u := t.unit
	mi := &methodInfo{typeParams: typeParams(u, n), body: n.ChildByFieldName("body")}
	d := &syntax.MethodDecl{
		Name:           u.text(n.ChildByFieldName("name")),
		Modifiers:      modifiers(n),
		Constructor:    ctor,
		DeclaringClass: t.decl.QualifiedName,
		Line:           lineOf(n),
	}
	if ctor {
		d.Name = constructorName
		d.Result = syntax.TypeRef{Name: "void"}
	} else {
		d.Result = s.resolveType(t, mi.typeParams, n.ChildByFieldName("type"))
		d.Result.Dims += dims(u, n.ChildByFieldName("dimensions"))
	}
	if t.decl.Kind == syntax.InterfaceKind && !d.Modifiers.Has(syntax.Private) {
		d.Modifiers |= syntax.Public
		if mi.body == nil {
			d.Modifiers |= syntax.Abstract
		}
	}
	d.Params, mi.varargs = s.params(t, mi.typeParams, n.ChildByFieldName("parameters"))
	if th := childOfType(n, "throws"); th != nil {
		for _, tn := range namedChildren(th) {
			if name := s.resolveType(t, mi.typeParams, tn).Name; name != "" {
				d.Throws = append(d.Throws, name)
			}
		}
	}
	mi.decl = d
	t.methods = append(t.methods, mi)
	t.decl.Methods = append(t.decl.Methods, d)
}

func (s *session) params(t *typeInfo, tparams map[string]bool, n *sitter.Node) ([]*syntax.Param, bool) {
	var out []*syntax.Param
	varargs := false
	u := t.unit
	for _, p := range namedChildren(n) {
		switch p.Type() {
		case "formal_parameter":
			pt := s.resolveType(t, tparams, p.ChildByFieldName("type"))
			pt.Dims += dims(u, p.ChildByFieldName("dimensions"))
			out = append(out, &syntax.Param{Name: u.text(p.ChildByFieldName("name")), Type: pt})
		case "spread_parameter":
			var pt syntax.TypeRef
			var name string
			for _, c := range namedChildren(p) {
				switch {
				case c.Type() == "variable_declarator":
					name = u.text(c.ChildByFieldName("name"))
				case c.Type() != "modifiers" && pt.IsZero():
					pt = s.resolveType(t, tparams, c)
				}
			}
			pt.Dims++
			out = append(out, &syntax.Param{Name: name, Type: pt})
			varargs = true
		}
	}
	return out, varargs
}

// recordComponents declares record components as private final fields.
func (s *session) recordComponents(t *typeInfo) {
	params, _ := s.params(t, nil, t.node.ChildByFieldName("parameters"))
	for _, p := range params {
		fd := &syntax.FieldDecl{
			Name:           p.Name,
			Type:           p.Type,
			Modifiers:      syntax.Private | syntax.Final,
			DeclaringClass: t.decl.QualifiedName,
			Line:           t.decl.Line,
		}
		t.fields = append(t.fields, &fieldInfo{decl: fd})
		t.decl.Fields = append(t.decl.Fields, fd)
	}
}

// dims counts the bracket pairs of a dimensions node.
func dims(u *unit, n *sitter.Node) int {
	if n == nil {
		return 0
	}
	return strings.Count(u.text(n), "[")
}

const constructorName = "<init>"

// bodies runs the third pass: field initializers, enum constant arguments,
// initializer blocks and method bodies.
func (s *session) bodies() {
	for _, t := range s.all {
		for _, f := range t.fields {
			if f.value == nil {
				continue
			}
			b := s.newBinder(t, nil, f.decl.Modifiers.Has(syntax.Static))
			f.decl.Init = b.expr(f.value)
		}
		for _, c := range t.consts {
			b := s.newBinder(t, nil, true)
			if c.args != nil {
				c.decl.Args = b.args(c.args)
			}
			c.decl.Ctor = b.constructor(t.decl.QualifiedName, c.decl.Args)
			if c.body != nil {
				s.logger.Debug("enum constant body not modelled", "constant", c.decl.QualifiedName())
			}
		}
		for _, in := range t.inits {
			b := s.newBinder(t, nil, in.decl.Static)
			in.decl.Body = b.block(in.block)
		}
		for _, m := range t.methods {
			if m.body == nil {
				continue
			}
			b := s.newBinder(t, m, m.decl.Modifiers.Has(syntax.Static))
			b.push()
			for _, p := range m.decl.Params {
				b.declareVar(p.Binding())
			}
			m.decl.Body = b.block(m.body)
			b.pop()
		}
	}
}
