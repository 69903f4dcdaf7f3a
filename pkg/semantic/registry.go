package semantic

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/l3aro/jflow/internal/log"
	"github.com/l3aro/jflow/pkg/binary"
	"github.com/l3aro/jflow/pkg/cache"
	"github.com/l3aro/jflow/pkg/syntax"
)

// Options configures a Registry.
type Options struct {
	// Project holds the in-project declarations.
	Project *syntax.Project
	// Introspector answers for externally-compiled classes.
	Introspector binary.Introspector
	// Cache supplies previously persisted external facts.
	Cache *cache.BytecodeCache
	// BinaryAnalysis enables resolution of external classes.
	BinaryAnalysis bool
	// OnIntrospect is called before every introspector query.
	OnIntrospect func(class string)
	Logger       log.Logger
}

// Registry resolves names to facade objects for one analysis session.
type Registry struct {
	opts   Options
	logger log.Logger

	classes      map[string]*Class
	unregistered map[string]*Class
	lostMethods  map[string]*Method
	lostFields   map[string]*Field
	bulkDone     bool
}

// NewRegistry creates a registry.
func NewRegistry(opts Options) *Registry {
	r := &Registry{opts: opts, logger: log.OrDefault(opts.Logger)}
	r.reset()
	return r
}

func (r *Registry) reset() {
	r.classes = make(map[string]*Class)
	r.unregistered = make(map[string]*Class)
	r.lostMethods = make(map[string]*Method)
	r.lostFields = make(map[string]*Field)
	r.bulkDone = false
}

// Project returns the in-project declarations.
func (r *Registry) Project() *syntax.Project {
	return r.opts.Project
}

// SetProject swaps the in-project declarations, dropping source-backed objects
// and every memo that may depend on them.
func (r *Registry) SetProject(p *syntax.Project) {
	r.opts.Project = p
	for name, c := range r.classes {
		if c.origin == OriginSource {
			delete(r.classes, name)
		}
	}
	r.unregistered = make(map[string]*Class)
	r.lostMethods = make(map[string]*Method)
	r.lostFields = make(map[string]*Field)
	for _, c := range r.classes {
		c.resetMemo()
	}
}

// Destroy tears down every object created by the session.
func (r *Registry) Destroy() {
	r.reset()
}

// ResolveClass maps a qualified name to its Class. It never returns nil:
// unresolvable names yield an unregistered sentinel.
func (r *Registry) ResolveClass(name string) *Class {
	if c, ok := r.classes[name]; ok {
		return c
	}
	if c, ok := r.unregistered[name]; ok {
		return c
	}
	if decl, ok := r.opts.Project.Lookup(name); ok {
		return r.registerSource(decl)
	}
	if r.opts.BinaryAnalysis && !syntax.IsPrimitiveName(name) {
		r.bulkRegister()
		if c, ok := r.classes[name]; ok {
			return c
		}
		if c := r.registerExternal(name); c != nil {
			return c
		}
	}
	return r.unregisteredClass(name)
}

func (r *Registry) unregisteredClass(name string) *Class {
	if c, ok := r.unregistered[name]; ok {
		return c
	}
	c := &Class{Name: name, Superclass: wellKnownSupers[name], origin: OriginUnregistered, reg: r}
	r.unregistered[name] = c
	r.logger.Debug("unresolved class", "class", name)
	return c
}

// bulkRegister registers every class the introspector knows, at most once per
// session.
func (r *Registry) bulkRegister() {
	if r.bulkDone {
		return
	}
	r.bulkDone = true
	if r.opts.Introspector == nil {
		return
	}
	n := 0
	for _, name := range r.opts.Introspector.ClassNames() {
		if _, ok := r.classes[name]; ok {
			continue
		}
		if _, ok := r.opts.Project.Lookup(name); ok {
			continue
		}
		if r.registerExternal(name) != nil {
			n++
		}
	}
	r.logger.Debug("registered external classes", "count", n)
}

func (r *Registry) registerExternal(name string) *Class {
	if r.opts.Cache != nil {
		if rec, ok := r.opts.Cache.Get(name); ok && rec[cache.AttrType] == cache.TypeClass {
			return r.registerCached(name, rec)
		}
	}
	if r.opts.Introspector == nil {
		return nil
	}
	if r.opts.OnIntrospect != nil {
		r.opts.OnIntrospect(name)
	}
	info, err := r.opts.Introspector.Class(name)
	if err != nil {
		return nil
	}
	return r.registerBinary(info)
}

func (r *Registry) registerSource(d *syntax.TypeDecl) *Class {
	c := &Class{
		Name:       d.QualifiedName,
		Kind:       d.Kind,
		Modifiers:  d.Modifiers,
		Superclass: defaultSuperclass(d.QualifiedName, d.Kind, d.Superclass),
		Interfaces: d.Interfaces,
		origin:     OriginSource,
		reg:        r,
		decl:       d,
	}
	hasCtor := false
	for _, md := range d.Methods {
		c.methods = append(c.methods, newSourceMethod(c, md))
		hasCtor = hasCtor || md.Constructor
	}
	if !hasCtor && d.Kind != syntax.InterfaceKind {
		c.methods = append(c.methods, implicitConstructor(c))
	}
	for _, fd := range d.Fields {
		c.fields = append(c.fields, &Field{
			Class:     c,
			Name:      fd.Name,
			Type:      fd.Type,
			Modifiers: fd.Modifiers,
			origin:    OriginSource,
			decl:      fd,
		})
	}
	for _, ec := range d.EnumConstants {
		c.fields = append(c.fields, &Field{
			Class:     c,
			Name:      ec.Name,
			Type:      syntax.TypeRef{Name: d.QualifiedName},
			Modifiers: syntax.Public | syntax.Static | syntax.Final,
			origin:    OriginSource,
		})
	}
	r.classes[c.Name] = c
	return c
}

func (r *Registry) registerBinary(info *binary.ClassInfo) *Class {
	c := &Class{
		Name:       info.Name,
		Kind:       info.TypeKind(),
		Modifiers:  info.Mods(),
		Superclass: defaultSuperclass(info.Name, info.TypeKind(), info.Superclass),
		Interfaces: info.Interfaces,
		origin:     OriginBinary,
		reg:        r,
	}
	for i := range info.Methods {
		c.methods = append(c.methods, newBinaryMethod(c, &info.Methods[i]))
	}
	for _, fi := range info.Fields {
		c.fields = append(c.fields, &Field{
			Class:     c,
			Name:      fi.Name,
			Type:      syntax.NewTypeRef(fi.Type),
			Modifiers: fi.Mods(),
			origin:    OriginBinary,
		})
	}
	r.classes[c.Name] = c
	return c
}

func (r *Registry) introspect(class, signature string) (*binary.AccessInfo, error) {
	if r.opts.Introspector == nil {
		return nil, fmt.Errorf("%s.%s: %w", class, signature, binary.ErrUnreadable)
	}
	if r.opts.OnIntrospect != nil {
		r.opts.OnIntrospect(class)
	}
	info, err := r.opts.Introspector.Accesses(class, signature)
	if err != nil {
		r.logger.Warn("introspection failed", "method", class+"."+signature, "error", err)
		return nil, err
	}
	return info, nil
}

// ResolveMethod maps a call binding to its Method: exact signature first,
// then name and arity, each searched up the ancestor chain. It never returns
// nil.
func (r *Registry) ResolveMethod(b *syntax.MethodBinding) *Method {
	if b == nil {
		return r.unregisteredMethod("?", "?", nil)
	}
	c := r.ResolveClass(b.DeclaringClass)
	chain := append([]*Class{c}, c.Ancestors()...)
	if b.Exact() {
		sig := b.Signature()
		for _, cls := range chain {
			if m := cls.Method(sig); m != nil {
				return m
			}
		}
	}
	for _, cls := range chain {
		if m := cls.MethodByArity(b.Name, b.Arity); m != nil {
			return m
		}
	}
	return r.unregisteredMethod(b.DeclaringClass, b.Signature(), b)
}

// LookupMethod resolves a Class.signature key.
func (r *Registry) LookupMethod(key string) *Method {
	class, sig, err := splitMemberKey(key)
	if err != nil {
		return r.unregisteredMethod("?", key, nil)
	}
	c := r.ResolveClass(class)
	chain := append([]*Class{c}, c.Ancestors()...)
	name, arity, byArity := splitArity(sig)
	for _, cls := range chain {
		m := cls.Method(sig)
		if byArity {
			m = cls.MethodByArity(name, arity)
		}
		if m != nil {
			return m
		}
	}
	return r.unregisteredMethod(class, sig, nil)
}

// splitArity parses the name/arity signatures of calls bound by arity only.
func splitArity(sig string) (string, int, bool) {
	i := strings.LastIndexByte(sig, '/')
	if i < 0 {
		return sig, 0, false
	}
	n, err := strconv.Atoi(sig[i+1:])
	if err != nil {
		return sig, 0, false
	}
	return sig[:i], n, true
}

func (r *Registry) unregisteredMethod(class, sig string, b *syntax.MethodBinding) *Method {
	key := class + "." + sig
	if m, ok := r.lostMethods[key]; ok {
		return m
	}
	m := &Method{
		Class:      r.ResolveClass(class),
		Name:       memberName(sig),
		Signature:  sig,
		ParamTypes: signatureParams(sig),
		origin:     OriginUnregistered,
		accessDone: true,
		accessed:   &access{},
	}
	if b != nil {
		m.Result = b.Result
		m.Throws = b.Throws
		m.Constructor = b.Constructor
		if b.Static {
			m.Modifiers |= syntax.Static
		}
	}
	r.lostMethods[key] = m
	r.logger.Debug("unresolved method", "method", key)
	return m
}

// ResolveField maps a field binding to its Field. It never returns nil.
func (r *Registry) ResolveField(b *syntax.VarBinding) *Field {
	if b == nil || b.Kind != syntax.FieldBinding {
		return r.unregisteredField("?", "?", nil)
	}
	if f := r.findField(b.DeclaringClass, b.Name); f != nil {
		return f
	}
	return r.unregisteredField(b.DeclaringClass, b.Name, b)
}

// LookupField resolves a Class.field key.
func (r *Registry) LookupField(key string) *Field {
	class, name, err := splitMemberKey(key)
	if err != nil {
		return r.unregisteredField("?", key, nil)
	}
	if f := r.findField(class, name); f != nil {
		return f
	}
	return r.unregisteredField(class, name, nil)
}

func (r *Registry) findField(class, name string) *Field {
	c := r.ResolveClass(class)
	if f := c.Field(name); f != nil {
		return f
	}
	for _, a := range c.Ancestors() {
		if f := a.Field(name); f != nil {
			return f
		}
	}
	return nil
}

func (r *Registry) unregisteredField(class, name string, b *syntax.VarBinding) *Field {
	key := class + "." + name
	if f, ok := r.lostFields[key]; ok {
		return f
	}
	f := &Field{Class: r.ResolveClass(class), Name: name, origin: OriginUnregistered}
	if b != nil {
		f.Type = b.Type
		f.Modifiers = b.Modifiers
	}
	r.lostFields[key] = f
	return f
}

// Classes returns every registered class, in-project ones included, ordered
// by name. With binary analysis on, external classes are bulk-registered first.
func (r *Registry) Classes() []*Class {
	for _, t := range r.opts.Project.AllTypes() {
		r.ResolveClass(t.QualifiedName)
	}
	if r.opts.BinaryAnalysis {
		r.bulkRegister()
	}
	out := make([]*Class, 0, len(r.classes))
	for _, c := range r.classes {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ProjectClasses returns the in-project classes ordered by name.
func (r *Registry) ProjectClasses() []*Class {
	var out []*Class
	for _, t := range r.opts.Project.AllTypes() {
		out = append(out, r.ResolveClass(t.QualifiedName))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ExternalClasses returns the registered binary- and cache-backed classes
// ordered by name, without triggering bulk registration.
func (r *Registry) ExternalClasses() []*Class {
	var out []*Class
	for _, c := range r.classes {
		if c.origin == OriginBinary || c.origin == OriginCache {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func modString(m syntax.Modifiers) string {
	return strconv.Itoa(int(m))
}
