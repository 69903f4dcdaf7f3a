package semantic

import (
	"github.com/l3aro/jflow/pkg/syntax"
)

// Class is the facade over a class, interface or enum.
type Class struct {
	Name       string
	Kind       syntax.TypeKind
	Modifiers  syntax.Modifiers
	Superclass string
	Interfaces []string

	origin Origin
	reg    *Registry
	decl   *syntax.TypeDecl

	methods []*Method
	fields  []*Field

	ancestors       []*Class
	ancestorsDone   bool
	descendants     []*Class
	descendantsDone bool
}

// Origin returns the backing representation.
func (c *Class) Origin() Origin { return c.origin }

// IsCache reports whether the class was rehydrated from the persisted cache.
func (c *Class) IsCache() bool { return c.origin == OriginCache }

// IsRegistered reports whether the class resolved to a real declaration.
func (c *Class) IsRegistered() bool { return c.origin != OriginUnregistered }

// InProject reports whether the class is declared in analyzed source.
func (c *Class) InProject() bool { return c.origin == OriginSource }

// Registry returns the registry that resolved the class.
func (c *Class) Registry() *Registry { return c.reg }

// Decl returns the source declaration, nil for external classes.
func (c *Class) Decl() *syntax.TypeDecl { return c.decl }

// SimpleName returns the unqualified name.
func (c *Class) SimpleName() string { return syntax.SimpleName(c.Name) }

// Methods returns methods and constructors in declaration order.
func (c *Class) Methods() []*Method { return c.methods }

// Fields returns fields in declaration order.
func (c *Class) Fields() []*Field { return c.fields }

// Method finds a method declared by this class by signature.
func (c *Class) Method(signature string) *Method {
	for _, m := range c.methods {
		if m.Signature == signature {
			return m
		}
	}
	return nil
}

// MethodByArity finds the first method with the given name and arity.
func (c *Class) MethodByArity(name string, arity int) *Method {
	for _, m := range c.methods {
		if m.Name == name && len(m.ParamTypes) == arity {
			return m
		}
	}
	return nil
}

// Field finds a declared field by name.
func (c *Class) Field(name string) *Field {
	for _, f := range c.fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

func (c *Class) supers() []string {
	var out []string
	if c.Superclass != "" {
		out = append(out, c.Superclass)
	}
	return append(out, c.Interfaces...)
}

// Ancestors returns every supertype, superclass chain first and then
// interfaces breadth-first. Unresolvable supertypes are included as
// unregistered sentinels.
func (c *Class) Ancestors() []*Class {
	if c.ancestorsDone {
		return c.ancestors
	}
	c.ancestorsDone = true
	if c.reg == nil {
		return nil
	}

	seen := map[string]bool{c.Name: true}
	var out []*Class

	// Superclass chain.
	for cur := c; cur.Superclass != "" && !seen[cur.Superclass]; {
		seen[cur.Superclass] = true
		cur = c.reg.ResolveClass(cur.Superclass)
		out = append(out, cur)
	}

	queue := append([]*Class{c}, out...)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, name := range cur.Interfaces {
			if seen[name] {
				continue
			}
			seen[name] = true
			iface := c.reg.ResolveClass(name)
			out = append(out, iface)
			queue = append(queue, iface)
		}
	}
	c.ancestors = out
	return out
}

// AncestorNames returns the qualified names of Ancestors.
func (c *Class) AncestorNames() []string {
	anc := c.Ancestors()
	names := make([]string, len(anc))
	for i, a := range anc {
		names[i] = a.Name
	}
	return names
}

// IsSubtypeOf reports whether name is this class or one of its ancestors.
func (c *Class) IsSubtypeOf(name string) bool {
	if c.Name == name {
		return true
	}
	for _, a := range c.Ancestors() {
		if a.Name == name {
			return true
		}
	}
	return false
}

// IsUnchecked reports whether the class is an unchecked exception type.
func (c *Class) IsUnchecked() bool {
	return c.IsSubtypeOf(runtimeExceptionClass) || c.IsSubtypeOf(errorClass)
}

// Descendants returns every registered class that has this class as an
// ancestor, ordered by name.
func (c *Class) Descendants() []*Class {
	if c.descendantsDone {
		return c.descendants
	}
	c.descendantsDone = true
	if c.reg == nil || !c.IsRegistered() {
		return nil
	}
	for _, other := range c.reg.Classes() {
		if other != c && other.IsSubtypeOf(c.Name) {
			c.descendants = append(c.descendants, other)
		}
	}
	return c.descendants
}

func (c *Class) resetMemo() {
	c.ancestors, c.ancestorsDone = nil, false
	c.descendants, c.descendantsDone = nil, false
	for _, m := range c.methods {
		m.resetMemo()
	}
}

func defaultSuperclass(name string, kind syntax.TypeKind, declared string) string {
	if declared != "" || kind == syntax.InterfaceKind || name == objectClass {
		return declared
	}
	if kind == syntax.EnumKind {
		return enumClass
	}
	return objectClass
}
