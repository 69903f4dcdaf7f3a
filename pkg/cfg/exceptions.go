package cfg

import (
	"sort"

	"github.com/l3aro/jflow/internal/log"
	"github.com/l3aro/jflow/pkg/graph"
	"github.com/l3aro/jflow/pkg/semantic"
	"github.com/l3aro/jflow/pkg/syntax"
)

const throwableClass = "java.lang.Throwable"

// ExceptionResolver computes the exception types that may escape a call and
// matches them against catch clauses. Results are memoized for the lifetime
// of the resolver, normally one build session.
type ExceptionResolver struct {
	reg    *semantic.Registry
	logger log.Logger
	memo   map[string][]string
}

// NewExceptionResolver creates a resolver over reg.
func NewExceptionResolver(reg *semantic.Registry, logger log.Logger) *ExceptionResolver {
	return &ExceptionResolver{reg: reg, logger: log.OrDefault(logger), memo: make(map[string][]string)}
}

// Raises returns the declared exception types of the call target plus every
// unchecked type its callees may raise, transitively.
func (r *ExceptionResolver) Raises(target *syntax.MethodBinding) []string {
	if target == nil {
		return nil
	}
	set := make(map[string]bool)
	for _, t := range target.Throws {
		set[t] = true
	}
	if r.reg != nil {
		m := r.reg.ResolveMethod(target)
		for _, t := range m.Throws {
			set[t] = true
		}
		for _, t := range r.unchecked(m) {
			set[t] = true
		}
	}
	return sortedKeys(set)
}

// unchecked returns the unchecked types m and everything it calls may raise.
func (r *ExceptionResolver) unchecked(m *semantic.Method) []string {
	if !m.IsRegistered() {
		return nil
	}
	key := m.Key()
	if types, ok := r.memo[key]; ok {
		return types
	}
	set := make(map[string]bool)
	r.collect(m, make(map[string]bool), set)
	types := sortedKeys(set)
	r.memo[key] = types
	return types
}

func (r *ExceptionResolver) collect(m *semantic.Method, visited, set map[string]bool) {
	key := m.Key()
	if visited[key] || !m.IsRegistered() {
		return
	}
	visited[key] = true
	if done, ok := r.memo[key]; ok {
		for _, t := range done {
			set[t] = true
		}
		return
	}
	for _, t := range m.DirectThrows() {
		if r.reg.ResolveClass(t).IsUnchecked() {
			set[t] = true
		}
	}
	for _, callee := range m.AccessedMethods() {
		r.collect(callee, visited, set)
	}
}

// Catches reports whether a handler for caught also handles thrown.
func (r *ExceptionResolver) Catches(caught, thrown string) bool {
	if caught == thrown {
		return true
	}
	if r.reg == nil {
		return false
	}
	return r.reg.ResolveClass(thrown).IsSubtypeOf(caught)
}

func sortedKeys(set map[string]bool) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// catchPoint is a catch node with the types it handles.
type catchPoint struct {
	node  graph.NodeID
	types []string
}

// occurrence is an exception source recorded on a try context.
type occurrence struct {
	node  graph.NodeID
	types []string
	throw bool
}

type tryContext struct {
	catches []catchPoint
	pending []occurrence
}

// raise records that node may propagate types. Throw statements are linked
// with true edges, call sites with exception-catch edges.
func (b *builder) raise(node graph.NodeID, types []string, throw bool) {
	if len(types) == 0 {
		return
	}
	occ := occurrence{node: node, types: types, throw: throw}
	if len(b.tries) > 0 {
		tc := b.tries[len(b.tries)-1]
		tc.pending = append(tc.pending, occ)
		return
	}
	for _, t := range types {
		if cp, ok := b.handler(b.declared, t); ok {
			b.linkHandler(occ, cp.node)
			continue
		}
		b.logger.Debug("exception escapes", "member", b.member, "type", t)
	}
}

// resolveTry routes the occurrences recorded on tc, which has just been
// popped; unmatched types move to the enclosing context.
func (b *builder) resolveTry(tc *tryContext) {
	for _, occ := range tc.pending {
		var rest []string
		for _, t := range occ.types {
			if cp, ok := b.handler(tc.catches, t); ok {
				b.linkHandler(occ, cp.node)
			} else {
				rest = append(rest, t)
			}
		}
		b.raise(occ.node, rest, occ.throw)
	}
}

func (b *builder) handler(catches []catchPoint, thrown string) (catchPoint, bool) {
	for _, cp := range catches {
		for _, caught := range cp.types {
			if b.exc.Catches(caught, thrown) {
				return cp, true
			}
		}
	}
	return catchPoint{}, false
}

func (b *builder) linkHandler(occ occurrence, target graph.NodeID) {
	kind := graph.EdgeExceptionCatch
	if occ.throw {
		kind = graph.EdgeTrue
	}
	if !b.g.HasEdge(occ.node, target, kind) {
		b.g.AddEdge(occ.node, target, kind)
	}
}
