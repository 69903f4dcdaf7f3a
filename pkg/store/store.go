// Package store is the analysis session: it resolves members, builds and
// memoizes their graphs, answers side-effect queries and owns the lifecycle
// of the persisted bytecode cache.
package store

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/VictoriaMetrics/metrics"

	"github.com/l3aro/jflow/internal/log"
	"github.com/l3aro/jflow/pkg/binary"
	"github.com/l3aro/jflow/pkg/cache"
	"github.com/l3aro/jflow/pkg/cfg"
	"github.com/l3aro/jflow/pkg/dirty"
	"github.com/l3aro/jflow/pkg/graph"
	"github.com/l3aro/jflow/pkg/semantic"
	"github.com/l3aro/jflow/pkg/sideeffect"
	"github.com/l3aro/jflow/pkg/syntax"
)

// ErrMemberNotFound is returned when a key names no member of the project.
var ErrMemberNotFound = errors.New("member not found")

const (
	cfgPrefix  = "cfg:"
	ccfgPrefix = "ccfg:"
)

// Options configures a Store.
type Options struct {
	Project *syntax.Project
	// Root is the directory project file paths are relative to.
	Root string

	Introspector   binary.Introspector
	BinaryAnalysis bool
	// CacheFile is the bytecode cache path; empty disables persistence.
	CacheFile string
	// CatalogFiles are the introspector inputs; a cache older than any of
	// them is not loaded.
	CatalogFiles []string

	// MaxCachedGraphs bounds the graph memo; zero means unbounded.
	MaxCachedGraphs int
	// RecursionCap bounds side-effect traversals; zero means the default.
	RecursionCap int
	BasicBlocks  bool
	SkipAliases  bool

	// Tracker enables Refresh.
	Tracker *dirty.Tracker
	Logger  log.Logger
}

// Store is one analysis session.
type Store struct {
	opts    Options
	logger  log.Logger
	ids     *graph.Counter
	reg     *semantic.Registry
	factory *cfg.Factory
	memo    *cache.LRUCache
	bc      *cache.BytecodeCache
	effects *sideeffect.Aggregator

	set            *metrics.Set
	cfgBuilds      *metrics.Counter
	ccfgBuilds     *metrics.Counter
	memoHits       *metrics.Counter
	memoMisses     *metrics.Counter
	introspections *metrics.Counter
	invalidations  *metrics.Counter
	buildDuration  *metrics.Summary
}

// Open creates a session. A persisted cache that is malformed or of an
// obsolete format yields a *cache.FatalError.
func Open(opts Options) (*Store, error) {
	s := &Store{
		opts:   opts,
		logger: log.OrDefault(opts.Logger),
		ids:    &graph.Counter{},
		memo:   cache.New(cache.Options{MaxSize: opts.MaxCachedGraphs}),
	}

	if opts.CacheFile != "" {
		s.bc = cache.NewBytecodeCache(opts.CacheFile)
		loaded, err := s.bc.LoadIfFresh(opts.CatalogFiles)
		if err != nil {
			return nil, err
		}
		if loaded {
			s.logger.Debug("loaded bytecode cache", "file", opts.CacheFile, "records", s.bc.Len())
		} else {
			s.logger.Debug("bytecode cache missing or stale", "file", opts.CacheFile)
		}
	}

	s.initMetrics()
	s.reg = semantic.NewRegistry(semantic.Options{
		Project:        opts.Project,
		Introspector:   opts.Introspector,
		Cache:          s.bc,
		BinaryAnalysis: opts.BinaryAnalysis,
		OnIntrospect:   func(string) { s.introspections.Inc() },
		Logger:         s.logger,
	})
	s.factory = cfg.NewFactory(cfg.Options{
		Registry:    s.reg,
		IDs:         s.ids,
		BasicBlocks: opts.BasicBlocks,
		SkipAliases: opts.SkipAliases,
		Logger:      s.logger,
	})
	s.effects = sideeffect.New(sideeffect.Options{
		Registry: s.reg,
		Build:    func(m *semantic.Method) (*cfg.CFG, error) { return s.GetMethod(m, false) },
		Cap:      opts.RecursionCap,
		Logger:   s.logger,
	})
	return s, nil
}

func (s *Store) initMetrics() {
	s.set = metrics.NewSet()
	s.cfgBuilds = s.set.NewCounter(`jflow_graph_builds_total{kind="cfg"}`)
	s.ccfgBuilds = s.set.NewCounter(`jflow_graph_builds_total{kind="ccfg"}`)
	s.memoHits = s.set.NewCounter(`jflow_memo_requests_total{result="hit"}`)
	s.memoMisses = s.set.NewCounter(`jflow_memo_requests_total{result="miss"}`)
	s.introspections = s.set.NewCounter(`jflow_introspections_total`)
	s.invalidations = s.set.NewCounter(`jflow_invalidated_classes_total`)
	s.buildDuration = s.set.NewSummary(`jflow_graph_build_duration_seconds`)
	s.set.NewGauge(`jflow_memo_entries`, func() float64 {
		return float64(s.memo.Len())
	})
	s.set.NewGauge(`jflow_graph_nodes_issued`, func() float64 {
		return float64(s.ids.Current())
	})
	s.set.NewGauge(`jflow_bytecode_cache_records`, func() float64 {
		if s.bc == nil {
			return 0
		}
		return float64(s.bc.Len())
	})
}

// Registry returns the session's semantic registry.
func (s *Store) Registry() *semantic.Registry { return s.reg }

// Project returns the in-project declarations.
func (s *Store) Project() *syntax.Project { return s.reg.Project() }

// Get returns the CFG of the member named by key: Class.signature for a
// method or constructor, Class.field, Class.<clinit>#n or Class.<init>#n for an
// initializer, Class.CONSTANT for an enum constant.
func (s *Store) Get(key string, forceRebuild bool) (*cfg.CFG, error) {
	if !forceRebuild {
		if c, ok := s.cached(key); ok {
			return c, nil
		}
	}
	build, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	return s.build(key, build)
}

// GetMethod returns the CFG of a source method or constructor.
func (s *Store) GetMethod(m *semantic.Method, forceRebuild bool) (*cfg.CFG, error) {
	key := m.Key()
	if !forceRebuild {
		if c, ok := s.cached(key); ok {
			return c, nil
		}
	}
	return s.build(key, func() (*cfg.CFG, error) { return s.factory.BuildMethod(m) })
}

// GetField returns the CFG of a source field.
func (s *Store) GetField(f *semantic.Field, forceRebuild bool) (*cfg.CFG, error) {
	key := f.Key()
	if f.Decl() == nil {
		return nil, fmt.Errorf("%s: %w", key, cfg.ErrNoSource)
	}
	if !forceRebuild {
		if c, ok := s.cached(key); ok {
			return c, nil
		}
	}
	return s.build(key, func() (*cfg.CFG, error) { return s.factory.BuildField(f.Decl()), nil })
}

// GetByName returns the CFGs of every member of class whose simple name is
// name, overloads included, in declaration order.
func (s *Store) GetByName(class, name string) ([]*cfg.CFG, error) {
	d, ok := s.reg.Project().Lookup(class)
	if !ok {
		return nil, fmt.Errorf("%s: %w", class, ErrMemberNotFound)
	}
	var keys []string
	for _, ec := range d.EnumConstants {
		if ec.Name == name {
			keys = append(keys, ec.QualifiedName())
		}
	}
	for _, f := range d.Fields {
		if f.Name == name {
			keys = append(keys, f.QualifiedName())
		}
	}
	for _, in := range d.Initializers {
		if in.Name() == name {
			keys = append(keys, in.QualifiedName())
		}
	}
	for _, m := range s.reg.ResolveClass(class).Methods() {
		if m.Name == name || (m.Constructor && name == d.Name) {
			keys = append(keys, m.Key())
		}
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("%s.%s: %w", class, name, ErrMemberNotFound)
	}
	out := make([]*cfg.CFG, 0, len(keys))
	for _, k := range keys {
		c, err := s.Get(k, false)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// GetCCFG returns the CCFG of a source class with its field-access links.
// Member CFGs of the result replace any memoized ones.
func (s *Store) GetCCFG(class string, forceRebuild bool) (*cfg.CCFG, error) {
	key := ccfgPrefix + class
	if !forceRebuild {
		if v, ok := s.memo.Get(key); ok {
			s.memoHits.Inc()
			return v.(*cfg.CCFG), nil
		}
		s.memoMisses.Inc()
	}
	c := s.reg.ResolveClass(class)
	if !c.InProject() {
		return nil, fmt.Errorf("%s: %w", class, ErrMemberNotFound)
	}

	start := time.Now()
	cc, err := s.factory.BuildClass(c)
	if err != nil {
		return nil, err
	}
	s.buildDuration.UpdateDuration(start)
	s.ccfgBuilds.Inc()

	cc.Walk(func(m *cfg.CFG) {
		s.memo.Set(cfgPrefix+m.Member, m)
	})
	n := s.linkFieldAccesses(cc)
	s.logger.Debug("built ccfg", "class", class, "members", len(cc.Members), "field_links", n)
	s.memo.Set(key, cc)
	return cc, nil
}

// linkFieldAccesses links every call node to the field CFGs its target
// accesses, and every field-access node to the field it reads.
func (s *Store) linkFieldAccesses(cc *cfg.CCFG) int {
	n := 0
	cc.Walk(func(m *cfg.CFG) {
		for _, node := range m.Nodes() {
			switch {
			case node.Kind.IsCall() && node.Call != nil:
				target := s.reg.LookupMethod(node.Call.Key())
				if !target.InProject() {
					continue
				}
				for _, f := range target.AccessedFields() {
					if cc.AddFieldAccess(m.Member, node.Handle, f.Key()) {
						n++
					}
				}
			case node.Kind == graph.KindFieldAccess:
				for _, u := range node.Uses {
					if u.Kind == graph.RefField && cc.AddFieldAccess(m.Member, node.Handle, u.QualifiedName()) {
						n++
					}
				}
			}
		}
	})
	return n
}

// SideEffects returns the aggregated side-effect summary of m.
func (s *Store) SideEffects(m *semantic.Method) *sideeffect.Summary {
	return s.effects.Summarize(m)
}

// ClassSideEffects summarizes every method and constructor of a class.
func (s *Store) ClassSideEffects(class string) ([]*sideeffect.Summary, error) {
	c := s.reg.ResolveClass(class)
	if !c.InProject() {
		return nil, fmt.Errorf("%s: %w", class, ErrMemberNotFound)
	}
	return s.effects.SummarizeClass(c), nil
}

// Invalidate drops the memoized member graphs of the given classes, their
// nested classes included, together with every CCFG and side-effect summary.
// CCFGs of other classes go too: their field-access links may point into the
// invalidated classes.
func (s *Store) Invalidate(classes ...string) {
	if len(classes) == 0 {
		return
	}
	dropped := 0
	for _, c := range classes {
		dropped += s.memo.DeletePrefix(cfgPrefix + c + ".")
		s.invalidations.Inc()
	}
	dropped += s.memo.DeletePrefix(ccfgPrefix)
	s.reg.SetProject(s.reg.Project())
	s.effects.Reset()
	s.logger.Debug("invalidated classes", "classes", len(classes), "graphs", dropped)
}

// Refresh swaps in a freshly parsed project and invalidates the classes of
// every source file that changed, appeared or disappeared since the tracker
// last saw it. It returns the invalidated classes.
func (s *Store) Refresh(p *syntax.Project) ([]string, error) {
	t := s.opts.Tracker
	if t == nil {
		return nil, errors.New("refresh needs a dirty tracker")
	}

	files := make(map[string][]string)
	for _, d := range p.AllTypes() {
		files[d.File] = append(files[d.File], d.QualifiedName)
	}
	paths := make([]string, 0, len(files))
	for f := range files {
		paths = append(paths, f)
	}
	sort.Strings(paths)

	for _, f := range paths {
		if _, err := t.CheckAndMark(s.abs(f)); err != nil {
			return nil, err
		}
	}
	gone := t.Sweep()

	stale := t.DirtyClasses()
	for _, f := range t.DirtyFiles() {
		rel := s.rel(f)
		stale = append(stale, files[rel]...)
	}
	stale = dedupe(stale)

	s.reg.SetProject(p)
	s.Invalidate(stale...)
	for _, f := range paths {
		t.SetClasses(s.abs(f), files[f])
	}
	for _, f := range gone {
		t.Forget(f)
	}
	t.ClearDirty()
	if len(stale) > 0 {
		s.logger.Info("refreshed project", "files", len(paths), "removed", len(gone), "invalidated", len(stale))
	}
	return stale, nil
}

func (s *Store) abs(f string) string {
	if filepath.IsAbs(f) || s.opts.Root == "" {
		return f
	}
	return filepath.Join(s.opts.Root, f)
}

func (s *Store) rel(f string) string {
	root := s.opts.Root
	if root == "" {
		root = "."
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return f
	}
	r, err := filepath.Rel(root, f)
	if err != nil || strings.HasPrefix(r, "..") {
		return f
	}
	return r
}

func dedupe(list []string) []string {
	sort.Strings(list)
	out := list[:0]
	for i, v := range list {
		if i == 0 || v != list[i-1] {
			out = append(out, v)
		}
	}
	return out
}

// Stats summarizes the session.
type Stats struct {
	Memo            cache.Stats `json:"memo"`
	Classes         int         `json:"classes"`
	ProjectClasses  int         `json:"project_classes"`
	BytecodeRecords int         `json:"bytecode_records"`
	NodesIssued     int64       `json:"nodes_issued"`
}

// Stats returns the session counters.
func (s *Store) Stats() Stats {
	st := Stats{
		Memo:           s.memo.Stats(),
		Classes:        len(s.reg.Classes()),
		ProjectClasses: len(s.reg.ProjectClasses()),
		NodesIssued:    s.ids.Current(),
	}
	if s.bc != nil {
		st.BytecodeRecords = s.bc.Len()
	}
	return st
}

// WriteMetrics writes the session metrics in Prometheus text format.
func (s *Store) WriteMetrics(w io.Writer) {
	s.set.WritePrometheus(w)
}

// Destroy ends the session: external facts are written back to the bytecode
// cache, the memo is cleared and the registry torn down. Node identities
// restart for the next session.
func (s *Store) Destroy() error {
	var err error
	if s.bc != nil && s.opts.BinaryAnalysis {
		n := s.reg.Persist(s.bc)
		if s.bc.Dirty() {
			if err = s.bc.Save(); err == nil {
				s.logger.Debug("saved bytecode cache", "file", s.bc.Path(), "records", n)
			}
		}
	}
	s.memo.Clear()
	s.effects.Reset()
	s.reg.Destroy()
	s.ids.Reset()
	return err
}

func (s *Store) cached(key string) (*cfg.CFG, bool) {
	if v, ok := s.memo.Get(cfgPrefix + key); ok {
		s.memoHits.Inc()
		return v.(*cfg.CFG), true
	}
	s.memoMisses.Inc()
	return nil, false
}

func (s *Store) build(key string, fn func() (*cfg.CFG, error)) (*cfg.CFG, error) {
	start := time.Now()
	c, err := fn()
	if err != nil {
		return nil, err
	}
	s.buildDuration.UpdateDuration(start)
	s.cfgBuilds.Inc()
	s.memo.Set(cfgPrefix+key, c)
	return c, nil
}

// resolve maps a member key to the builder of its CFG.
func (s *Store) resolve(key string) (func() (*cfg.CFG, error), error) {
	if strings.ContainsRune(key, '(') {
		m := s.reg.LookupMethod(key)
		if !m.InProject() || m.Key() != key {
			return nil, fmt.Errorf("%s: %w", key, ErrMemberNotFound)
		}
		return func() (*cfg.CFG, error) { return s.factory.BuildMethod(m) }, nil
	}

	i := strings.LastIndexByte(key, '.')
	if i <= 0 {
		return nil, fmt.Errorf("%s: %w", key, ErrMemberNotFound)
	}
	class, name := key[:i], key[i+1:]
	d, ok := s.reg.Project().Lookup(class)
	if !ok {
		return nil, fmt.Errorf("%s: %w", key, ErrMemberNotFound)
	}
	if f := d.Field(name); f != nil {
		return func() (*cfg.CFG, error) { return s.factory.BuildField(f), nil }, nil
	}
	for _, in := range d.Initializers {
		if in.Name() == name {
			in := in
			return func() (*cfg.CFG, error) { return s.factory.BuildInitializer(in), nil }, nil
		}
	}
	for _, ec := range d.EnumConstants {
		if ec.Name == name {
			ec := ec
			return func() (*cfg.CFG, error) { return s.factory.BuildEnumConstant(ec), nil }, nil
		}
	}
	return nil, fmt.Errorf("%s: %w", key, ErrMemberNotFound)
}
