package semantic

import (
	"strconv"

	"github.com/l3aro/jflow/pkg/cache"
	"github.com/l3aro/jflow/pkg/syntax"
)

func parseMods(s string) syntax.Modifiers {
	n, _ := strconv.Atoi(s)
	return syntax.Modifiers(n)
}

func kindFromString(s string) syntax.TypeKind {
	switch s {
	case "interface":
		return syntax.InterfaceKind
	case "enum":
		return syntax.EnumKind
	default:
		return syntax.ClassKind
	}
}

// registerCached rehydrates a class and its members from persisted records.
// Cache-backed objects consult the introspector only for methods whose
// records carry no access facts.
func (r *Registry) registerCached(name string, rec cache.Record) *Class {
	kind := kindFromString(rec[cache.AttrKind])
	c := &Class{
		Name:       name,
		Kind:       kind,
		Modifiers:  parseMods(rec[cache.AttrModifiers]),
		Superclass: defaultSuperclass(name, kind, rec[cache.AttrSuperclass]),
		Interfaces: cache.SplitList(rec[cache.AttrInterfaces]),
		origin:     OriginCache,
		reg:        r,
	}
	for _, sig := range cache.SplitList(rec[cache.AttrMethods]) {
		mrec, _ := r.opts.Cache.Get(name + "." + sig)
		c.methods = append(c.methods, cachedMethod(c, sig, mrec))
	}
	for _, fname := range cache.SplitList(rec[cache.AttrFields]) {
		frec, _ := r.opts.Cache.Get(name + "." + fname)
		c.fields = append(c.fields, &Field{
			Class:     c,
			Name:      fname,
			Type:      syntax.NewTypeRef(frec[cache.AttrReturn]),
			Modifiers: parseMods(frec[cache.AttrModifiers]),
			origin:    OriginCache,
		})
	}
	r.classes[name] = c
	return c
}

func cachedMethod(c *Class, sig string, rec cache.Record) *Method {
	m := &Method{
		Class:       c,
		Name:        memberName(sig),
		Signature:   sig,
		ParamTypes:  signatureParams(sig),
		Result:      syntax.NewTypeRef(rec[cache.AttrReturn]),
		Throws:      cache.SplitList(rec[cache.AttrThrows]),
		Modifiers:   parseMods(rec[cache.AttrModifiers]),
		Constructor: rec[cache.AttrConstructor] == "true",
		origin:      OriginCache,
		accessDone:  true,
		accessed:    &access{methods: cache.SplitList(rec[cache.AttrAccessed])},
	}
	if _, ok := rec[cache.AttrAccessed]; !ok {
		m.accessMissing = true
	}
	if m.Result.IsZero() {
		m.Result = syntax.TypeRef{Name: "void"}
	}
	if v, ok := ParseVerdict(rec[cache.AttrVerdict]); ok {
		defs, _ := cache.DecodeFields(rec[cache.AttrDefs])
		uses, _ := cache.DecodeFields(rec[cache.AttrUses])
		m.effects = &Effects{
			Defs:    fromEntries(defs),
			Uses:    fromEntries(uses),
			Unknown: rec[cache.AttrUnknown] == "true",
			Verdict: v,
		}
		for _, d := range m.effects.Defs {
			m.accessed.writes = append(m.accessed.writes, d.Name)
		}
		for _, u := range m.effects.Uses {
			m.accessed.reads = append(m.accessed.reads, u.Name)
		}
	}
	if m.accessMissing && m.effects == nil {
		m.accessDone = false
	}
	return m
}

func fromEntries(entries []cache.FieldEntry) []FieldRef {
	out := make([]FieldRef, len(entries))
	for i, e := range entries {
		out[i] = FieldRef{Name: e.Name, Primitive: e.Primitive, Modifiers: syntax.Modifiers(e.Modifiers)}
	}
	return out
}

func toEntries(refs []FieldRef) []cache.FieldEntry {
	out := make([]cache.FieldEntry, len(refs))
	for i, r := range refs {
		out[i] = cache.FieldEntry{Name: r.Name, Primitive: r.Primitive, Modifiers: int(r.Modifiers)}
	}
	return out
}

// ClassRecord renders the persisted record of a class.
func ClassRecord(c *Class) cache.Record {
	sigs := make([]string, len(c.methods))
	for i, m := range c.methods {
		sigs[i] = m.Signature
	}
	names := make([]string, len(c.fields))
	for i, f := range c.fields {
		names[i] = f.Name
	}
	return cache.Record{
		cache.AttrType:       cache.TypeClass,
		cache.AttrName:       c.Name,
		cache.AttrKind:       c.Kind.String(),
		cache.AttrModifiers:  modString(c.Modifiers),
		cache.AttrSuperclass: c.Superclass,
		cache.AttrInterfaces: cache.JoinList(c.Interfaces),
		cache.AttrMethods:    cache.JoinList(sigs),
		cache.AttrFields:     cache.JoinList(names),
	}
}

// MethodRecord renders the persisted record of a method. Access and effect
// attributes are only written once they were computed.
func MethodRecord(m *Method) cache.Record {
	rec := cache.Record{
		cache.AttrType:      cache.TypeMethod,
		cache.AttrName:      m.Name,
		cache.AttrClass:     m.Class.Name,
		cache.AttrSignature: m.Signature,
		cache.AttrModifiers: modString(m.Modifiers),
		cache.AttrReturn:    m.Result.String(),
		cache.AttrThrows:    cache.JoinList(m.Throws),
	}
	if m.Constructor {
		rec[cache.AttrConstructor] = "true"
	}
	if m.accessDone && m.accessErr == nil && m.accessed != nil && !m.accessMissing {
		rec[cache.AttrAccessed] = cache.JoinList(m.accessed.methods)
	}
	// A failed rescan leaves the record unscanned for the next session.
	if e := m.effects; e != nil && !(m.accessMissing && m.accessErr != nil) {
		rec[cache.AttrDefs] = cache.EncodeFields(toEntries(e.Defs))
		rec[cache.AttrUses] = cache.EncodeFields(toEntries(e.Uses))
		rec[cache.AttrVerdict] = e.Verdict.String()
		if e.Unknown {
			rec[cache.AttrUnknown] = "true"
		}
	}
	return rec
}

// FieldRecord renders the persisted record of a field.
func FieldRecord(f *Field) cache.Record {
	return cache.Record{
		cache.AttrType:      cache.TypeField,
		cache.AttrName:      f.Name,
		cache.AttrClass:     f.Class.Name,
		cache.AttrModifiers: modString(f.Modifiers),
		cache.AttrReturn:    f.Type.String(),
	}
}

// Persist writes records for every external class of the session, with their
// methods and fields, into bc.
func (r *Registry) Persist(bc *cache.BytecodeCache) int {
	n := 0
	for _, c := range r.ExternalClasses() {
		bc.Put(c.Name, ClassRecord(c))
		n++
		for _, m := range c.methods {
			bc.Put(m.Key(), MethodRecord(m))
			n++
		}
		for _, f := range c.fields {
			bc.Put(f.Key(), FieldRecord(f))
			n++
		}
	}
	return n
}
