// Package binary defines the result contract of bytecode introspection for
// externally-compiled classes, together with a YAML catalog implementation.
//
// The engine never reads class files itself. An Introspector reports class
// shapes (kind, modifiers, members) and, on demand, which methods and fields a
// compiled routine accesses.
package binary

import (
	"errors"
	"strings"

	"github.com/l3aro/jflow/pkg/syntax"
)

var (
	// ErrClassNotFound is returned when the introspector has no such class.
	ErrClassNotFound = errors.New("class not found")
	// ErrUnreadable is returned when a routine's bytecode cannot be scanned.
	ErrUnreadable = errors.New("bytecode unreadable")
)

// Introspector answers questions about externally-compiled classes.
type Introspector interface {
	// ClassNames lists every class reachable on the classpath.
	ClassNames() []string
	// Class returns the shape of one class.
	Class(name string) (*ClassInfo, error)
	// Accesses scans one routine for the members it touches.
	Accesses(class, signature string) (*AccessInfo, error)
}

// ClassInfo is the shape of one compiled class.
type ClassInfo struct {
	Name       string       `yaml:"name"`
	Kind       string       `yaml:"kind,omitempty"`
	Modifiers  []string     `yaml:"modifiers,omitempty"`
	Superclass string       `yaml:"superclass,omitempty"`
	Interfaces []string     `yaml:"interfaces,omitempty"`
	Methods    []MethodInfo `yaml:"methods,omitempty"`
	Fields     []FieldInfo  `yaml:"fields,omitempty"`
}

// TypeKind maps Kind to the syntax enum; unknown kinds are classes.
func (c *ClassInfo) TypeKind() syntax.TypeKind {
	switch strings.ToLower(c.Kind) {
	case "interface":
		return syntax.InterfaceKind
	case "enum":
		return syntax.EnumKind
	default:
		return syntax.ClassKind
	}
}

// Mods returns the parsed modifier set.
func (c *ClassInfo) Mods() syntax.Modifiers {
	return ParseModifiers(c.Modifiers)
}

// Method finds a method by signature.
func (c *ClassInfo) Method(signature string) *MethodInfo {
	for i := range c.Methods {
		if c.Methods[i].Signature() == signature {
			return &c.Methods[i]
		}
	}
	return nil
}

// MethodInfo describes one compiled method or constructor.
type MethodInfo struct {
	Name        string      `yaml:"name"`
	Params      []string    `yaml:"params,omitempty"`
	Result      string      `yaml:"result,omitempty"`
	Modifiers   []string    `yaml:"modifiers,omitempty"`
	Throws      []string    `yaml:"throws,omitempty"`
	Constructor bool        `yaml:"constructor,omitempty"`
	Access      *AccessInfo `yaml:"access,omitempty"`
	Unreadable  bool        `yaml:"unreadable,omitempty"`
}

// ParamTypes returns the parameter types.
func (m *MethodInfo) ParamTypes() []syntax.TypeRef {
	types := make([]syntax.TypeRef, len(m.Params))
	for i, p := range m.Params {
		types[i] = syntax.NewTypeRef(p)
	}
	return types
}

// Signature renders name(T1,T2).
func (m *MethodInfo) Signature() string {
	return syntax.Signature(m.Name, m.ParamTypes())
}

// ResultType returns the result type; constructors and missing results are void.
func (m *MethodInfo) ResultType() syntax.TypeRef {
	if m.Result == "" {
		return syntax.TypeRef{Name: "void"}
	}
	return syntax.NewTypeRef(m.Result)
}

// Mods returns the parsed modifier set.
func (m *MethodInfo) Mods() syntax.Modifiers {
	return ParseModifiers(m.Modifiers)
}

// Descriptor renders the erased JVM method descriptor, e.g. (ILjava/lang/String;)V.
func (m *MethodInfo) Descriptor() string {
	var sb strings.Builder
	sb.WriteByte('(')
	for _, p := range m.ParamTypes() {
		sb.WriteString(descriptor(p))
	}
	sb.WriteByte(')')
	if m.Constructor {
		sb.WriteByte('V')
	} else {
		sb.WriteString(descriptor(m.ResultType()))
	}
	return sb.String()
}

var primitiveDescriptors = map[string]string{
	"boolean": "Z",
	"byte":    "B",
	"char":    "C",
	"short":   "S",
	"int":     "I",
	"long":    "J",
	"float":   "F",
	"double":  "D",
	"void":    "V",
}

func descriptor(t syntax.TypeRef) string {
	prefix := strings.Repeat("[", t.Dims)
	if d, ok := primitiveDescriptors[t.Name]; ok {
		return prefix + d
	}
	name := t.Name
	// Erase generics.
	if i := strings.IndexByte(name, '<'); i >= 0 {
		name = name[:i]
	}
	return prefix + "L" + strings.ReplaceAll(name, ".", "/") + ";"
}

// FieldInfo describes one compiled field.
type FieldInfo struct {
	Name      string   `yaml:"name"`
	Type      string   `yaml:"type"`
	Modifiers []string `yaml:"modifiers,omitempty"`
}

// Mods returns the parsed modifier set.
func (f *FieldInfo) Mods() syntax.Modifiers {
	return ParseModifiers(f.Modifiers)
}

// AccessInfo is the result of scanning a routine's instructions. Methods are
// keyed Class.signature; fields are keyed Class.field.
type AccessInfo struct {
	Methods []string `yaml:"methods,omitempty"`
	Reads   []string `yaml:"reads,omitempty"`
	Writes  []string `yaml:"writes,omitempty"`
}

// WritesField reports whether the routine stores into any field.
func (a *AccessInfo) WritesField() bool {
	return a != nil && len(a.Writes) > 0
}

// ParseModifiers folds modifier keywords into a set; unknown words are ignored.
func ParseModifiers(words []string) syntax.Modifiers {
	var m syntax.Modifiers
	for _, w := range words {
		m |= syntax.ParseModifier(strings.ToLower(strings.TrimSpace(w)))
	}
	return m
}
