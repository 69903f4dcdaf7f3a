// Package syntax defines the syntax and binding model consumed by the flow-graph
// engine. A frontend (see pkg/javasrc) produces these trees; the engine never
// parses source text itself.
package syntax

import (
	"strings"
)

// TypeKind discriminates classes, interfaces and enums.
type TypeKind uint8

const (
	ClassKind TypeKind = iota
	InterfaceKind
	EnumKind
)

func (k TypeKind) String() string {
	switch k {
	case InterfaceKind:
		return "interface"
	case EnumKind:
		return "enum"
	default:
		return "class"
	}
}

// Modifiers is a bit set of declaration modifiers.
type Modifiers uint16

const (
	Public Modifiers = 1 << iota
	Private
	Protected
	Static
	Final
	Abstract
	SynchronizedMod
	Native
	Transient
	Volatile
	Default
)

var modifierNames = []struct {
	mod  Modifiers
	name string
}{
	{Public, "public"},
	{Private, "private"},
	{Protected, "protected"},
	{Static, "static"},
	{Final, "final"},
	{Abstract, "abstract"},
	{SynchronizedMod, "synchronized"},
	{Native, "native"},
	{Transient, "transient"},
	{Volatile, "volatile"},
	{Default, "default"},
}

// Has reports whether all bits of m2 are set.
func (m Modifiers) Has(m2 Modifiers) bool {
	return m&m2 == m2
}

func (m Modifiers) String() string {
	var parts []string
	for _, mn := range modifierNames {
		if m.Has(mn.mod) {
			parts = append(parts, mn.name)
		}
	}
	return strings.Join(parts, " ")
}

// ParseModifier maps a keyword to its modifier bit, or 0.
func ParseModifier(keyword string) Modifiers {
	for _, mn := range modifierNames {
		if mn.name == keyword {
			return mn.mod
		}
	}
	return 0
}

var primitiveNames = map[string]bool{
	"boolean": true,
	"byte":    true,
	"char":    true,
	"short":   true,
	"int":     true,
	"long":    true,
	"float":   true,
	"double":  true,
	"void":    true,
}

// IsPrimitiveName reports whether name denotes a primitive type (or void).
func IsPrimitiveName(name string) bool {
	return primitiveNames[name]
}

// TypeRef is a reference to a (possibly array) type by qualified name.
type TypeRef struct {
	Name string `json:"name"`
	Dims int    `json:"dims,omitempty"`
}

// NewTypeRef builds a TypeRef, splitting trailing "[]" pairs into Dims.
func NewTypeRef(name string) TypeRef {
	t := TypeRef{Name: strings.TrimSpace(name)}
	for strings.HasSuffix(t.Name, "[]") {
		t.Name = strings.TrimSpace(strings.TrimSuffix(t.Name, "[]"))
		t.Dims++
	}
	return t
}

// Primitive reports whether values of t are not references.
func (t TypeRef) Primitive() bool {
	return t.Dims == 0 && IsPrimitiveName(t.Name)
}

// IsVoid reports whether t is the void result type.
func (t TypeRef) IsVoid() bool {
	return t.Dims == 0 && t.Name == "void"
}

// IsZero reports whether t carries no type information.
func (t TypeRef) IsZero() bool {
	return t.Name == ""
}

func (t TypeRef) String() string {
	return t.Name + strings.Repeat("[]", t.Dims)
}

// SimpleName returns the last dotted segment of a qualified name.
func SimpleName(qualified string) string {
	if i := strings.LastIndexByte(qualified, '.'); i >= 0 {
		return qualified[i+1:]
	}
	return qualified
}

// BindingKind tells what a name denotes.
type BindingKind uint8

const (
	LocalBinding BindingKind = iota
	FieldBinding
	ParamBinding
)

// VarBinding is the resolved meaning of a variable name.
type VarBinding struct {
	Kind           BindingKind
	Name           string
	Type           TypeRef
	DeclaringClass string // fields only
	Static         bool
	Modifiers      Modifiers
	InProject      bool
}

// Primitive reports whether the bound variable holds a primitive value.
func (b *VarBinding) Primitive() bool {
	return b.Type.Primitive()
}

// QualifiedName returns Class.name for fields and the plain name otherwise.
func (b *VarBinding) QualifiedName() string {
	if b.Kind == FieldBinding && b.DeclaringClass != "" {
		return b.DeclaringClass + "." + b.Name
	}
	return b.Name
}

// MethodBinding is the resolved target of a call.
type MethodBinding struct {
	DeclaringClass string
	Name           string
	// ParamTypes is nil when the frontend could only resolve by arity.
	ParamTypes  []TypeRef
	Arity       int
	Result      TypeRef
	Throws      []string
	Static      bool
	Constructor bool
	InProject   bool
}

// Signature renders name(T1,T2) using the parameter types, or name/arity when
// the parameter types are unknown.
func (b *MethodBinding) Signature() string {
	if b.ParamTypes == nil && b.Arity > 0 {
		return b.Name + "/" + itoa(b.Arity)
	}
	return Signature(b.Name, b.ParamTypes)
}

// Exact reports whether the parameter types are known.
func (b *MethodBinding) Exact() bool {
	return b.ParamTypes != nil || b.Arity == 0
}

// Key returns Class.signature.
func (b *MethodBinding) Key() string {
	return b.DeclaringClass + "." + b.Signature()
}

// Signature renders name(T1,T2).
func Signature(name string, params []TypeRef) string {
	var sb strings.Builder
	sb.WriteString(name)
	sb.WriteByte('(')
	for i, p := range params {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(p.String())
	}
	sb.WriteByte(')')
	return sb.String()
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
