package javasrc

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/l3aro/jflow/pkg/syntax"
)

const objectType = "java.lang.Object"

// javaLang lists the java.lang types simple names resolve to without an
// import.
var javaLang = map[string]bool{
	"Appendable": true, "ArithmeticException": true, "ArrayIndexOutOfBoundsException": true,
	"ArrayStoreException": true, "AssertionError": true, "AutoCloseable": true,
	"Boolean": true, "Byte": true, "CharSequence": true, "Character": true,
	"Class": true, "ClassCastException": true, "ClassLoader": true,
	"ClassNotFoundException": true, "CloneNotSupportedException": true, "Cloneable": true,
	"Comparable": true, "Deprecated": true, "Double": true, "Enum": true,
	"Error": true, "Exception": true, "Float": true, "FunctionalInterface": true,
	"IllegalAccessException": true, "IllegalArgumentException": true,
	"IllegalStateException": true, "IndexOutOfBoundsException": true,
	"InstantiationException": true, "Integer": true, "InterruptedException": true,
	"Iterable": true, "LinkageError": true, "Long": true, "Math": true,
	"NegativeArraySizeException": true, "NoSuchFieldException": true,
	"NoSuchMethodException": true, "NullPointerException": true, "Number": true,
	"NumberFormatException": true, "Object": true, "OutOfMemoryError": true,
	"Override": true, "Process": true, "Readable": true, "Record": true,
	"ReflectiveOperationException": true, "Runnable": true, "Runtime": true,
	"RuntimeException": true, "SafeVarargs": true, "SecurityException": true,
	"Short": true, "StackOverflowError": true, "StackTraceElement": true,
	"StrictMath": true, "String": true, "StringBuffer": true, "StringBuilder": true,
	"StringIndexOutOfBoundsException": true, "SuppressWarnings": true, "System": true,
	"Thread": true, "ThreadLocal": true, "Throwable": true,
	"UnsupportedOperationException": true, "VirtualMachineError": true, "Void": true,
}

// resolveType maps a type node to a TypeRef with a qualified name. Type
// variables erase to Object.
func (s *session) resolveType(ctx *typeInfo, tparams map[string]bool, n *sitter.Node) syntax.TypeRef {
	if n == nil {
		return syntax.TypeRef{}
	}
	u := ctx.unit
	switch n.Type() {
	case "integral_type", "floating_point_type", "boolean_type", "void_type":
		return syntax.TypeRef{Name: u.text(n)}
	case "type_identifier", "identifier":
		name, _ := s.resolveName(ctx, tparams, u.text(n))
		return syntax.TypeRef{Name: name}
	case "scoped_type_identifier", "scoped_identifier":
		name, _ := s.resolveName(ctx, tparams, stripGenerics(u.text(n)))
		return syntax.TypeRef{Name: name}
	case "generic_type":
		if kids := namedChildren(n); len(kids) > 0 {
			return s.resolveType(ctx, tparams, kids[0])
		}
	case "annotated_type":
		if kids := namedChildren(n); len(kids) > 0 {
			return s.resolveType(ctx, tparams, kids[len(kids)-1])
		}
	case "array_type":
		t := s.resolveType(ctx, tparams, n.ChildByFieldName("element"))
		t.Dims += dims(u, n.ChildByFieldName("dimensions"))
		return t
	case "wildcard":
		return syntax.TypeRef{Name: objectType}
	}
	return syntax.NewTypeRef(stripGenerics(u.text(n)))
}

// resolveName qualifies a simple or dotted type name seen from ctx. The flag
// reports whether the name is known to denote a type.
func (s *session) resolveName(ctx *typeInfo, tparams map[string]bool, name string) (string, bool) {
	name = strings.ReplaceAll(name, " ", "")
	if syntax.IsPrimitiveName(name) {
		return name, true
	}
	if i := strings.IndexByte(name, '.'); i > 0 {
		head, rest := name[:i], name[i+1:]
		if q, ok := s.resolveSimple(ctx, tparams, head); ok && q != objectType {
			return q + "." + rest, true
		}
		_, known := s.types[name]
		return name, known
	}
	if q, ok := s.resolveSimple(ctx, tparams, name); ok {
		return q, true
	}
	return name, false
}

func (s *session) resolveSimple(ctx *typeInfo, tparams map[string]bool, name string) (string, bool) {
	if tparams[name] {
		return objectType, true
	}
	for t := ctx; t != nil; t = t.outer {
		if t.typeParams[name] {
			return objectType, true
		}
		if t.decl.Name == name {
			return t.decl.QualifiedName, true
		}
		if nt := s.memberType(t, name, make(map[string]bool)); nt != nil {
			return nt.decl.QualifiedName, true
		}
	}
	u := ctx.unit
	if q, ok := u.imports[name]; ok {
		return q, true
	}
	if u.pkg != "" {
		if t, ok := s.types[u.pkg+"."+name]; ok {
			return t.decl.QualifiedName, true
		}
	} else if t, ok := s.types[name]; ok {
		return t.decl.QualifiedName, true
	}
	for _, p := range u.onDemand {
		if t, ok := s.types[p+"."+name]; ok {
			return t.decl.QualifiedName, true
		}
	}
	if javaLang[name] {
		return "java.lang." + name, true
	}
	return name, false
}

// memberType finds a nested type declared in t or inherited from its
// in-project supertypes.
func (s *session) memberType(t *typeInfo, name string, seen map[string]bool) *typeInfo {
	if seen[t.decl.QualifiedName] {
		return nil
	}
	seen[t.decl.QualifiedName] = true
	if nt, ok := t.nested[name]; ok {
		return nt
	}
	for _, sup := range s.supers(t) {
		if nt := s.memberType(sup, name, seen); nt != nil {
			return nt
		}
	}
	return nil
}

// supers returns the in-project superclass and superinterfaces of t.
func (s *session) supers(t *typeInfo) []*typeInfo {
	var out []*typeInfo
	if sup, ok := s.types[t.decl.Superclass]; ok {
		out = append(out, sup)
	}
	for _, i := range t.decl.Interfaces {
		if sup, ok := s.types[i]; ok {
			out = append(out, sup)
		}
	}
	return out
}

// externalSuper returns the first ancestor of t declared outside the project,
// or "".
func (s *session) externalSuper(t *typeInfo) string {
	seen := make(map[string]bool)
	for cur := t; cur != nil && !seen[cur.decl.QualifiedName]; {
		seen[cur.decl.QualifiedName] = true
		sc := cur.decl.Superclass
		if sc == "" {
			return ""
		}
		next, ok := s.types[sc]
		if !ok {
			return sc
		}
		cur = next
	}
	return ""
}

// findField looks a field or enum constant up in class and its in-project
// supertypes.
func (s *session) findField(class, name string, seen map[string]bool) *syntax.VarBinding {
	t, ok := s.types[class]
	if !ok || seen[class] {
		return nil
	}
	seen[class] = true
	for _, f := range t.fields {
		if f.decl.Name == name {
			return f.decl.Binding()
		}
	}
	for _, c := range t.consts {
		if c.decl.Name == name {
			return &syntax.VarBinding{
				Kind:           syntax.FieldBinding,
				Name:           name,
				Type:           syntax.TypeRef{Name: class},
				DeclaringClass: class,
				Static:         true,
				Modifiers:      syntax.Public | syntax.Static | syntax.Final,
				InProject:      true,
			}
		}
	}
	for _, sup := range s.supers(t) {
		if b := s.findField(sup.decl.QualifiedName, name, seen); b != nil {
			return b
		}
	}
	return nil
}

// fieldOf binds a field read off a value of static type owner. Unknown
// fields of external types are bound by name for the registry to resolve.
func (s *session) fieldOf(owner syntax.TypeRef, name string, static bool) *syntax.VarBinding {
	if owner.IsZero() || owner.Dims > 0 || owner.Primitive() {
		return nil
	}
	if b := s.findField(owner.Name, name, make(map[string]bool)); b != nil {
		return b
	}
	class := owner.Name
	if t, ok := s.types[owner.Name]; ok {
		if ext := s.externalSuper(t); ext != "" {
			class = ext
		} else {
			return nil
		}
	}
	return &syntax.VarBinding{
		Kind:           syntax.FieldBinding,
		Name:           name,
		DeclaringClass: class,
		Static:         static,
	}
}

// findMethods collects the methods of class and its in-project supertypes
// named name, most derived first.
func (s *session) findMethods(class, name string, seen map[string]bool) []*methodInfo {
	t, ok := s.types[class]
	if !ok || seen[class] {
		return nil
	}
	seen[class] = true
	var out []*methodInfo
	for _, m := range t.methods {
		if m.decl.Name == name {
			out = append(out, m)
		}
	}
	for _, sup := range s.supers(t) {
		out = append(out, s.findMethods(sup.decl.QualifiedName, name, seen)...)
	}
	return out
}

// pick chooses the overload matching the arguments: arity first, then the
// number of parameters whose type equals the argument's static type.
func pick(cands []*methodInfo, argTypes []syntax.TypeRef) *methodInfo {
	var best *methodInfo
	bestScore := -1
	for _, m := range cands {
		params := m.decl.Params
		if len(params) != len(argTypes) && !(m.varargs && len(argTypes) >= len(params)-1) {
			continue
		}
		score := 0
		for i, p := range params {
			if i < len(argTypes) && p.Type == argTypes[i] {
				score++
			}
		}
		if len(params) == len(argTypes) {
			score++
		}
		if score > bestScore {
			best, bestScore = m, score
		}
	}
	return best
}

// methodOf binds a call of name on class. Calls into external classes, or
// into project classes whose ancestry leaves the project, bind by arity.
func (s *session) methodOf(class, name string, argTypes []syntax.TypeRef, static bool) *syntax.MethodBinding {
	if m := pick(s.findMethods(class, name, make(map[string]bool)), argTypes); m != nil {
		return m.decl.Binding()
	}
	owner := class
	if t, ok := s.types[class]; ok {
		switch ext := s.externalSuper(t); {
		case ext != "":
			owner = ext
		case t.decl.Kind == syntax.EnumKind:
			owner = "java.lang.Enum"
		default:
			owner = objectType
		}
	}
	return &syntax.MethodBinding{
		DeclaringClass: owner,
		Name:           name,
		Arity:          len(argTypes),
		Static:         static,
	}
}

// constructor binds an instance creation of class.
func (s *session) constructor(class string, argTypes []syntax.TypeRef) *syntax.MethodBinding {
	t, ok := s.types[class]
	if !ok {
		return &syntax.MethodBinding{
			DeclaringClass: class,
			Name:           constructorName,
			Arity:          len(argTypes),
			Constructor:    true,
		}
	}
	var ctors []*methodInfo
	for _, m := range t.methods {
		if m.decl.Constructor {
			ctors = append(ctors, m)
		}
	}
	if m := pick(ctors, argTypes); m != nil {
		return m.decl.Binding()
	}
	if len(ctors) > 0 {
		return &syntax.MethodBinding{
			DeclaringClass: class,
			Name:           constructorName,
			Arity:          len(argTypes),
			Constructor:    true,
			InProject:      true,
		}
	}
	// implicit default constructor
	return &syntax.MethodBinding{
		DeclaringClass: class,
		Name:           constructorName,
		ParamTypes:     []syntax.TypeRef{},
		Result:         syntax.TypeRef{Name: "void"},
		Constructor:    true,
		InProject:      true,
	}
}

// stripGenerics removes type arguments from a dotted type name.
func stripGenerics(name string) string {
	if !strings.Contains(name, "<") {
		return name
	}
	var sb strings.Builder
	depth := 0
	for _, r := range name {
		switch {
		case r == '<':
			depth++
		case r == '>':
			depth--
		case depth == 0:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
