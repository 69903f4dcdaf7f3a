package semantic

import (
	"fmt"
	"strings"

	"github.com/l3aro/jflow/pkg/binary"
	"github.com/l3aro/jflow/pkg/syntax"
)

// Method is the facade over a method or constructor.
type Method struct {
	Class       *Class
	Name        string
	Signature   string
	ParamTypes  []syntax.TypeRef
	Result      syntax.TypeRef
	Throws      []string
	Modifiers   syntax.Modifiers
	Constructor bool

	origin Origin
	decl   *syntax.MethodDecl

	// accessed is preset for cache-backed methods.
	accessed   *access
	accessErr  error
	accessDone bool
	// accessMissing marks cache-backed methods persisted before their
	// accesses were scanned. They are scanned on first use.
	accessMissing bool

	overriding     []*Method
	overridingDone bool
	overridden     []*Method
	overriddenDone bool

	effects *Effects
}

type access struct {
	methods []string
	reads   []string
	writes  []string
}

// Key returns Class.signature.
func (m *Method) Key() string {
	return m.Class.Name + "." + m.Signature
}

func (m *Method) String() string { return m.Key() }

// Origin returns the backing representation.
func (m *Method) Origin() Origin { return m.origin }

// IsCache reports whether the method was rehydrated from the persisted cache.
func (m *Method) IsCache() bool { return m.origin == OriginCache }

// IsRegistered reports whether the method resolved to a real declaration.
func (m *Method) IsRegistered() bool { return m.origin != OriginUnregistered }

// InProject reports whether the method is declared in analyzed source.
func (m *Method) InProject() bool { return m.origin == OriginSource }

// Static reports the static modifier.
func (m *Method) Static() bool { return m.Modifiers.Has(syntax.Static) }

// Decl returns the source declaration, nil otherwise.
func (m *Method) Decl() *syntax.MethodDecl { return m.decl }

// Overridable reports whether subclasses can override the method.
func (m *Method) Overridable() bool {
	return !m.Constructor && !m.Static() && !m.Modifiers.Has(syntax.Private) && !m.Modifiers.Has(syntax.Final)
}

// Binding returns a call binding targeting this method.
func (m *Method) Binding() *syntax.MethodBinding {
	return &syntax.MethodBinding{
		DeclaringClass: m.Class.Name,
		Name:           m.Name,
		ParamTypes:     m.ParamTypes,
		Arity:          len(m.ParamTypes),
		Result:         m.Result,
		Throws:         m.Throws,
		Static:         m.Static(),
		Constructor:    m.Constructor,
		InProject:      m.InProject(),
	}
}

func (m *Method) loadAccess() {
	if m.accessDone {
		return
	}
	m.accessDone = true
	switch m.origin {
	case OriginSource:
		m.accessed = sourceAccess(m.decl)
	case OriginBinary:
		info, err := m.Class.reg.introspect(m.Class.Name, m.Signature)
		if err != nil {
			m.accessErr = err
			m.accessed = &access{}
			return
		}
		m.accessed = &access{methods: info.Methods, reads: info.Reads, writes: info.Writes}
	case OriginCache:
		if m.accessMissing {
			m.rescan()
		} else if m.accessed == nil {
			m.accessed = &access{}
		}
	default:
		m.accessed = &access{}
	}
}

// rescan introspects a cached method whose record carries no access facts.
// Without an introspector the method stays unreadable.
func (m *Method) rescan() {
	info, err := m.Class.reg.introspect(m.Class.Name, m.Signature)
	if err != nil {
		m.accessErr = err
		m.accessed = &access{}
		return
	}
	m.accessMissing = false
	m.accessed = &access{methods: info.Methods, reads: info.Reads, writes: info.Writes}
}

func sourceAccess(decl *syntax.MethodDecl) *access {
	a := &access{}
	if decl == nil || decl.Body == nil {
		return a
	}
	for _, t := range syntax.CallTargets(decl.Body) {
		a.methods = appendUnique(a.methods, t.Key())
	}
	written := make(map[*syntax.VarBinding]bool)
	syntax.Inspect(decl.Body, func(n any) bool {
		switch v := n.(type) {
		case *syntax.Assign:
			if b := fieldBindingOf(v.LHS); b != nil {
				written[b] = true
				a.writes = appendUnique(a.writes, b.QualifiedName())
			}
		case *syntax.Unary:
			if syntax.IsIncDec(v.Op) {
				if b := fieldBindingOf(v.X); b != nil {
					written[b] = true
					a.writes = appendUnique(a.writes, b.QualifiedName())
				}
			}
		}
		return true
	})
	for _, b := range syntax.FieldBindings(decl.Body) {
		if !written[b] {
			a.reads = appendUnique(a.reads, b.QualifiedName())
		}
	}
	return a
}

func fieldBindingOf(e syntax.Expr) *syntax.VarBinding {
	switch v := e.(type) {
	case *syntax.Name:
		if v.Binding != nil && v.Binding.Kind == syntax.FieldBinding {
			return v.Binding
		}
	case *syntax.FieldAccess:
		return v.Binding
	}
	return nil
}

func appendUnique(list []string, s string) []string {
	for _, x := range list {
		if x == s {
			return list
		}
	}
	return append(list, s)
}

// IntrospectionError returns the error met while scanning a binary routine.
func (m *Method) IntrospectionError() error {
	m.loadAccess()
	return m.accessErr
}

// AccessedMethodKeys returns the Class.signature keys of the routines this
// method calls.
func (m *Method) AccessedMethodKeys() []string {
	m.loadAccess()
	return m.accessed.methods
}

// AccessedMethods resolves the routines this method calls.
func (m *Method) AccessedMethods() []*Method {
	keys := m.AccessedMethodKeys()
	out := make([]*Method, 0, len(keys))
	for _, k := range keys {
		out = append(out, m.Class.reg.LookupMethod(k))
	}
	return out
}

// AccessedFields resolves the fields this method reads or writes.
func (m *Method) AccessedFields() []*Field {
	m.loadAccess()
	var out []*Field
	seen := make(map[string]bool)
	for _, list := range [][]string{m.accessed.writes, m.accessed.reads} {
		for _, k := range list {
			if !seen[k] {
				seen[k] = true
				out = append(out, m.Class.reg.LookupField(k))
			}
		}
	}
	return out
}

// WrittenFields resolves the fields this method writes directly.
func (m *Method) WrittenFields() []*Field {
	m.loadAccess()
	out := make([]*Field, 0, len(m.accessed.writes))
	for _, k := range m.accessed.writes {
		out = append(out, m.Class.reg.LookupField(k))
	}
	return out
}

// ReadFields resolves the fields this method only reads directly.
func (m *Method) ReadFields() []*Field {
	m.loadAccess()
	out := make([]*Field, 0, len(m.accessed.reads))
	for _, k := range m.accessed.reads {
		out = append(out, m.Class.reg.LookupField(k))
	}
	return out
}

// OverridingMethods returns the methods of descendant classes that override
// this one.
func (m *Method) OverridingMethods() []*Method {
	if m.overridingDone {
		return m.overriding
	}
	m.overridingDone = true
	if !m.IsRegistered() || !m.Overridable() {
		return nil
	}
	for _, d := range m.Class.Descendants() {
		if o := d.Method(m.Signature); o != nil && !o.Static() {
			m.overriding = append(m.overriding, o)
		}
	}
	return m.overriding
}

// OverriddenMethods returns the ancestor methods this one overrides.
func (m *Method) OverriddenMethods() []*Method {
	if m.overriddenDone {
		return m.overridden
	}
	m.overriddenDone = true
	if !m.IsRegistered() || m.Constructor || m.Static() || m.Modifiers.Has(syntax.Private) {
		return nil
	}
	for _, a := range m.Class.Ancestors() {
		if o := a.Method(m.Signature); o != nil && o.Overridable() {
			m.overridden = append(m.overridden, o)
		}
	}
	return m.overridden
}

// DirectThrows returns the declared exception types plus, for source methods,
// the static types of throw statements in the body.
func (m *Method) DirectThrows() []string {
	out := append([]string(nil), m.Throws...)
	if m.decl != nil && m.decl.Body != nil {
		for _, t := range syntax.ThrownTypes(m.decl.Body, syntax.StaticType) {
			out = appendUnique(out, t)
		}
	}
	return out
}

// Effects returns the memoized side-effect summary.
func (m *Method) Effects() (*Effects, bool) {
	return m.effects, m.effects != nil
}

// SetEffects memoizes a side-effect summary.
func (m *Method) SetEffects(e *Effects) {
	m.effects = e
}

func (m *Method) resetMemo() {
	m.overriding, m.overridingDone = nil, false
	m.overridden, m.overriddenDone = nil, false
	if m.origin != OriginCache {
		m.effects = nil
	}
	if m.origin == OriginSource {
		m.accessed, m.accessDone, m.accessErr = nil, false, nil
	}
}

// Field is the facade over a field.
type Field struct {
	Class     *Class
	Name      string
	Type      syntax.TypeRef
	Modifiers syntax.Modifiers

	origin Origin
	decl   *syntax.FieldDecl
}

// Key returns Class.field.
func (f *Field) Key() string {
	return f.Class.Name + "." + f.Name
}

func (f *Field) String() string { return f.Key() }

// Origin returns the backing representation.
func (f *Field) Origin() Origin { return f.origin }

// IsCache reports whether the field was rehydrated from the persisted cache.
func (f *Field) IsCache() bool { return f.origin == OriginCache }

// IsRegistered reports whether the field resolved to a real declaration.
func (f *Field) IsRegistered() bool { return f.origin != OriginUnregistered }

// InProject reports whether the field is declared in analyzed source.
func (f *Field) InProject() bool { return f.origin == OriginSource }

// Static reports the static modifier.
func (f *Field) Static() bool { return f.Modifiers.Has(syntax.Static) }

// Primitive reports whether the field holds a primitive value.
func (f *Field) Primitive() bool { return f.Type.Primitive() }

// Decl returns the source declaration, nil otherwise.
func (f *Field) Decl() *syntax.FieldDecl { return f.decl }

// Ref returns the persisted-cache view of the field.
func (f *Field) Ref() FieldRef {
	return FieldRef{Name: f.Key(), Primitive: f.Primitive(), Modifiers: f.Modifiers}
}

func newSourceMethod(c *Class, d *syntax.MethodDecl) *Method {
	return &Method{
		Class:       c,
		Name:        d.Name,
		Signature:   d.Signature(),
		ParamTypes:  d.ParamTypes(),
		Result:      d.Result,
		Throws:      d.Throws,
		Modifiers:   d.Modifiers,
		Constructor: d.Constructor,
		origin:      OriginSource,
		decl:        d,
	}
}

func newBinaryMethod(c *Class, info *binary.MethodInfo) *Method {
	return &Method{
		Class:       c,
		Name:        info.Name,
		Signature:   info.Signature(),
		ParamTypes:  info.ParamTypes(),
		Result:      info.ResultType(),
		Throws:      info.Throws,
		Modifiers:   info.Mods(),
		Constructor: info.Constructor,
		origin:      OriginBinary,
	}
}

// ConstructorName is the member name used for constructors.
const ConstructorName = "<init>"

func implicitConstructor(c *Class) *Method {
	return &Method{
		Class:       c,
		Name:        ConstructorName,
		Signature:   ConstructorName + "()",
		ParamTypes:  []syntax.TypeRef{},
		Result:      syntax.TypeRef{Name: "void"},
		Modifiers:   syntax.Public,
		Constructor: true,
		origin:      c.origin,
		accessDone:  true,
		accessed:    &access{},
	}
}

// splitMemberKey splits Class.member keys; the member may be a signature
// containing dots inside its parentheses.
func splitMemberKey(key string) (class, member string, err error) {
	end := len(key)
	if i := strings.IndexAny(key, "(/"); i >= 0 {
		end = i
	}
	j := strings.LastIndexByte(key[:end], '.')
	if j <= 0 || j == len(key)-1 {
		return "", "", fmt.Errorf("invalid member key %q", key)
	}
	return key[:j], key[j+1:], nil
}

// memberName strips the parameter list from a signature.
func memberName(signature string) string {
	if i := strings.IndexAny(signature, "(/"); i >= 0 {
		return signature[:i]
	}
	return signature
}

func signatureParams(signature string) []syntax.TypeRef {
	open := strings.IndexByte(signature, '(')
	shut := strings.LastIndexByte(signature, ')')
	if open < 0 || shut < open {
		return nil
	}
	inner := signature[open+1 : shut]
	if inner == "" {
		return []syntax.TypeRef{}
	}
	parts := strings.Split(inner, ",")
	out := make([]syntax.TypeRef, len(parts))
	for i, p := range parts {
		out[i] = syntax.NewTypeRef(p)
	}
	return out
}
