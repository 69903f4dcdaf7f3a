// Package sideeffect aggregates, across procedure boundaries, the fields a
// routine may define or use, and classifies whether calling it can write a
// field.
//
// A routine's own accesses come from its CFG when it is declared in source,
// from binary introspection when it is externally compiled, and from the
// persisted cache when it was rehydrated from there. The summaries of every
// routine it calls and every routine overriding it are unioned in. Recursion
// is bounded by one visited map per Aggregator and a cap on the number of
// distinct routines a single query may visit.
package sideeffect

import (
	"sort"

	"github.com/l3aro/jflow/internal/log"
	"github.com/l3aro/jflow/pkg/cfg"
	"github.com/l3aro/jflow/pkg/graph"
	"github.com/l3aro/jflow/pkg/semantic"
	"github.com/l3aro/jflow/pkg/syntax"
)

// DefaultCap bounds the distinct routines one query visits.
const DefaultCap = 5000

// BuildFunc returns the CFG of a source method.
type BuildFunc func(m *semantic.Method) (*cfg.CFG, error)

// Options configures an Aggregator.
type Options struct {
	Registry *semantic.Registry
	// Build supplies source CFGs, typically from a store so graphs are
	// shared. When nil the aggregator builds its own.
	Build BuildFunc
	// Cap is the visit ceiling; zero means DefaultCap.
	Cap    int
	Logger log.Logger
}

// Summary is the aggregated side-effect facts of one routine.
type Summary struct {
	Method    string              `json:"method"`
	DefFields []semantic.FieldRef `json:"def_fields"`
	UseFields []semantic.FieldRef `json:"use_fields"`
	// Unknown is set when the visit cap cut the traversal short.
	Unknown bool             `json:"unknown,omitempty"`
	Verdict semantic.Verdict `json:"verdict"`
}

// DefNames returns the sorted qualified names of defined fields.
func (s *Summary) DefNames() []string { return names(s.DefFields) }

// UseNames returns the sorted qualified names of used fields.
func (s *Summary) UseNames() []string { return names(s.UseFields) }

func names(refs []semantic.FieldRef) []string {
	out := make([]string, len(refs))
	for i, r := range refs {
		out[i] = r.Name
	}
	sort.Strings(out)
	return out
}

// entry is the per-routine traversal state.
type entry struct {
	method  *semantic.Method
	defs    semantic.FieldSet
	uses    semantic.FieldSet
	unknown bool
	// maybe records an introspection failure somewhere below.
	maybe   bool
	callees []string
}

func (e *entry) verdict() semantic.Verdict {
	switch {
	case e.defs.Len() > 0:
		return semantic.VerdictYes
	case e.unknown || e.maybe:
		return semantic.VerdictMaybe
	default:
		return semantic.VerdictNo
	}
}

func (e *entry) summary() *Summary {
	return &Summary{
		Method:    e.method.Key(),
		DefFields: e.defs.Sorted(),
		UseFields: e.uses.Sorted(),
		Unknown:   e.unknown,
		Verdict:   e.verdict(),
	}
}

// Aggregator computes side-effect summaries for one analysis session.
type Aggregator struct {
	build   BuildFunc
	cap     int
	logger  log.Logger
	visited map[string]*entry

	// budget counts the routines visited by the running query.
	budget  int
	capHit  bool
	pending []*entry
}

// New creates an aggregator.
func New(opts Options) *Aggregator {
	logger := log.OrDefault(opts.Logger)
	build := opts.Build
	if build == nil {
		f := cfg.NewFactory(cfg.Options{Registry: opts.Registry, Logger: logger})
		build = f.BuildMethod
	}
	limit := opts.Cap
	if limit <= 0 {
		limit = DefaultCap
	}
	return &Aggregator{
		build:   build,
		cap:     limit,
		logger:  logger,
		visited: make(map[string]*entry),
	}
}

// Reset forgets every summary computed so far. Memoized effects on facade
// methods are left to the registry.
func (a *Aggregator) Reset() {
	a.visited = make(map[string]*entry)
}

// Visited returns the number of routines the aggregator has summarized.
func (a *Aggregator) Visited() int {
	return len(a.visited)
}

// Summarize returns the side-effect summary of m and memoizes the summary of
// every routine visited on the way on its facade method.
func (a *Aggregator) Summarize(m *semantic.Method) *Summary {
	a.budget, a.capHit, a.pending = 0, false, nil
	e := a.visit(m)
	a.fixpoint()
	for _, p := range a.pending {
		p.method.SetEffects(&semantic.Effects{
			Defs:    p.defs.Sorted(),
			Uses:    p.uses.Sorted(),
			Unknown: p.unknown,
			Verdict: p.verdict(),
		})
	}
	if a.capHit {
		a.logger.Warn("side-effect traversal capped", "method", m.Key(), "cap", a.cap)
	}
	a.pending = nil
	return e.summary()
}

// SummarizeClass summarizes every method and constructor of c.
func (a *Aggregator) SummarizeClass(c *semantic.Class) []*Summary {
	methods := c.Methods()
	out := make([]*Summary, 0, len(methods))
	for _, m := range methods {
		out = append(out, a.Summarize(m))
	}
	return out
}

// visit returns the entry of m, creating it and its callees on first sight.
// It returns nil when the cap forbids visiting m.
func (a *Aggregator) visit(m *semantic.Method) *entry {
	key := m.Key()
	if e, ok := a.visited[key]; ok {
		return e
	}
	if a.budget >= a.cap {
		a.capHit = true
		return nil
	}
	a.budget++

	e := &entry{method: m}
	a.visited[key] = e
	if eff, ok := m.Effects(); ok {
		e.defs.AddAll(eff.Defs)
		e.uses.AddAll(eff.Uses)
		e.unknown = eff.Unknown
		e.maybe = eff.Verdict == semantic.VerdictMaybe
		return e
	}
	a.pending = append(a.pending, e)

	switch {
	case m.InProject():
		a.direct(e)
	case m.IsRegistered():
		if err := m.IntrospectionError(); err != nil {
			a.logger.Debug("introspection failed", "method", key, "error", err)
			e.maybe = true
			return e
		}
		for _, f := range m.WrittenFields() {
			e.defs.Add(f.Ref())
		}
		for _, f := range m.ReadFields() {
			e.uses.Add(f.Ref())
		}
	default:
		return e
	}

	callees := append(m.AccessedMethods(), m.OverridingMethods()...)
	for _, c := range callees {
		if c.Key() == key {
			continue
		}
		ce := a.visit(c)
		if ce == nil {
			e.unknown = true
			continue
		}
		e.callees = append(e.callees, c.Key())
	}
	return e
}

// direct records the field defs and uses of a source routine's CFG.
func (a *Aggregator) direct(e *entry) {
	c, err := a.build(e.method)
	if err != nil {
		a.logger.Warn("cannot build cfg for side effects", "method", e.method.Key(), "error", err)
		e.maybe = true
		return
	}
	for _, r := range c.FieldDefs() {
		e.defs.Add(fieldRef(r))
	}
	for _, r := range c.FieldUses() {
		e.uses.Add(fieldRef(r))
	}
}

func fieldRef(r *graph.VarRef) semantic.FieldRef {
	return semantic.FieldRef{
		Name:      r.QualifiedName(),
		Primitive: r.Primitive,
		Modifiers: syntax.Modifiers(r.Modifiers),
	}
}

// fixpoint unions callee facts into callers until nothing changes, so every
// routine on a recursive cycle ends with the union of the cycle.
func (a *Aggregator) fixpoint() {
	for changed := true; changed; {
		changed = false
		for _, e := range a.pending {
			for _, k := range e.callees {
				ce := a.visited[k]
				if ce == nil || ce == e {
					continue
				}
				if e.defs.AddAll(ce.defs.Sorted()) {
					changed = true
				}
				if e.uses.AddAll(ce.uses.Sorted()) {
					changed = true
				}
				if ce.unknown && !e.unknown {
					e.unknown, changed = true, true
				}
				if ce.maybe && !e.maybe {
					e.maybe, changed = true, true
				}
			}
		}
	}
}
