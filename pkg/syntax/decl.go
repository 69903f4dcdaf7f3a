package syntax

// Project is the set of in-project type declarations handed to the engine.
type Project struct {
	Types []*TypeDecl

	index map[string]*TypeDecl
}

// NewProject indexes the given top-level types (and their nested types).
func NewProject(types ...*TypeDecl) *Project {
	p := &Project{}
	p.Add(types...)
	return p
}

// Add appends top-level types and indexes them.
func (p *Project) Add(types ...*TypeDecl) {
	if p.index == nil {
		p.index = make(map[string]*TypeDecl)
	}
	for _, t := range types {
		p.Types = append(p.Types, t)
		p.indexType(t)
	}
}

func (p *Project) indexType(t *TypeDecl) {
	p.index[t.QualifiedName] = t
	for _, n := range t.Nested {
		p.indexType(n)
	}
}

// Lookup finds a type by qualified name.
func (p *Project) Lookup(qualified string) (*TypeDecl, bool) {
	if p == nil || p.index == nil {
		return nil, false
	}
	t, ok := p.index[qualified]
	return t, ok
}

// AllTypes returns every type, nested ones included, in declaration order.
func (p *Project) AllTypes() []*TypeDecl {
	var out []*TypeDecl
	var walk func(t *TypeDecl)
	walk = func(t *TypeDecl) {
		out = append(out, t)
		for _, n := range t.Nested {
			walk(n)
		}
	}
	if p == nil {
		return nil
	}
	for _, t := range p.Types {
		walk(t)
	}
	return out
}

// TypesInFile returns the qualified names of the types declared in file.
func (p *Project) TypesInFile(file string) []string {
	var names []string
	for _, t := range p.AllTypes() {
		if t.File == file {
			names = append(names, t.QualifiedName)
		}
	}
	return names
}

// TypeDecl is a class, interface or enum declaration.
type TypeDecl struct {
	Name          string
	QualifiedName string
	Kind          TypeKind
	Modifiers     Modifiers
	Superclass    string
	Interfaces    []string
	Fields        []*FieldDecl
	Methods       []*MethodDecl
	Initializers  []*InitializerDecl
	EnumConstants []*EnumConstantDecl
	Nested        []*TypeDecl
	File          string
	Line          int
}

// Method finds a declared method or constructor by signature.
func (t *TypeDecl) Method(signature string) *MethodDecl {
	for _, m := range t.Methods {
		if m.Signature() == signature {
			return m
		}
	}
	return nil
}

// Field finds a declared field by name.
func (t *TypeDecl) Field(name string) *FieldDecl {
	for _, f := range t.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// FieldDecl is one declared field (a multi-declarator declaration yields one
// FieldDecl per name).
type FieldDecl struct {
	Name           string
	Type           TypeRef
	Modifiers      Modifiers
	Init           Expr
	DeclaringClass string
	Line           int
}

// QualifiedName returns Class.field.
func (f *FieldDecl) QualifiedName() string {
	return f.DeclaringClass + "." + f.Name
}

// Binding returns the field's binding.
func (f *FieldDecl) Binding() *VarBinding {
	return &VarBinding{
		Kind:           FieldBinding,
		Name:           f.Name,
		Type:           f.Type,
		DeclaringClass: f.DeclaringClass,
		Static:         f.Modifiers.Has(Static),
		Modifiers:      f.Modifiers,
		InProject:      true,
	}
}

// Param is a formal parameter.
type Param struct {
	Name string
	Type TypeRef
}

// Binding returns the parameter's binding.
func (p *Param) Binding() *VarBinding {
	return &VarBinding{Kind: ParamBinding, Name: p.Name, Type: p.Type}
}

// MethodDecl is a method or constructor.
type MethodDecl struct {
	Name           string
	Params         []*Param
	Result         TypeRef
	Throws         []string
	Modifiers      Modifiers
	Body           *Block // nil for abstract/native methods
	Constructor    bool
	DeclaringClass string
	Line           int
}

// ParamTypes returns the parameter types in order.
func (m *MethodDecl) ParamTypes() []TypeRef {
	types := make([]TypeRef, len(m.Params))
	for i, p := range m.Params {
		types[i] = p.Type
	}
	return types
}

// Signature renders name(T1,T2).
func (m *MethodDecl) Signature() string {
	return Signature(m.Name, m.ParamTypes())
}

// QualifiedName returns Class.signature.
func (m *MethodDecl) QualifiedName() string {
	return m.DeclaringClass + "." + m.Signature()
}

// Binding returns a call binding targeting this declaration.
func (m *MethodDecl) Binding() *MethodBinding {
	return &MethodBinding{
		DeclaringClass: m.DeclaringClass,
		Name:           m.Name,
		ParamTypes:     m.ParamTypes(),
		Arity:          len(m.Params),
		Result:         m.Result,
		Throws:         m.Throws,
		Static:         m.Modifiers.Has(Static),
		Constructor:    m.Constructor,
		InProject:      true,
	}
}

// InitializerDecl is a static or instance initializer block.
type InitializerDecl struct {
	Static         bool
	Body           *Block
	Index          int
	DeclaringClass string
	Line           int
}

// Name returns the synthetic member name used for keys.
func (i *InitializerDecl) Name() string {
	if i.Static {
		return "<clinit>#" + itoa(i.Index)
	}
	return "<init>#" + itoa(i.Index)
}

// QualifiedName returns Class.<clinit>#n or Class.<init>#n.
func (i *InitializerDecl) QualifiedName() string {
	return i.DeclaringClass + "." + i.Name()
}

// EnumConstantDecl is an enum constant with its constructor arguments.
type EnumConstantDecl struct {
	Name           string
	Args           []Expr
	Ctor           *MethodBinding
	DeclaringClass string
	Line           int
}

// QualifiedName returns Enum.CONSTANT.
func (e *EnumConstantDecl) QualifiedName() string {
	return e.DeclaringClass + "." + e.Name
}
