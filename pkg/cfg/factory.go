package cfg

import (
	"fmt"

	"github.com/l3aro/jflow/internal/log"
	"github.com/l3aro/jflow/pkg/dfg"
	"github.com/l3aro/jflow/pkg/graph"
	"github.com/l3aro/jflow/pkg/semantic"
	"github.com/l3aro/jflow/pkg/syntax"
)

// Options configures a Factory.
type Options struct {
	Registry *semantic.Registry
	// IDs supplies node identities; graphs of one session share it.
	IDs *graph.Counter
	// BasicBlocks enables the basic-block post-pass.
	BasicBlocks bool
	// SkipAliases disables local alias resolution.
	SkipAliases bool
	Logger      log.Logger
}

// Factory builds member CFGs and class CCFGs for one analysis session.
type Factory struct {
	opts   Options
	exc    *ExceptionResolver
	logger log.Logger
}

// NewFactory creates a factory.
func NewFactory(opts Options) *Factory {
	if opts.IDs == nil {
		opts.IDs = &graph.Counter{}
	}
	logger := log.OrDefault(opts.Logger)
	return &Factory{
		opts:   opts,
		exc:    NewExceptionResolver(opts.Registry, logger),
		logger: logger,
	}
}

// Exceptions returns the session's exception resolver.
func (f *Factory) Exceptions() *ExceptionResolver { return f.exc }

func (f *Factory) newBuilder(class, member string) *builder {
	return &builder{
		g:      graph.New(f.opts.IDs),
		reg:    f.opts.Registry,
		exc:    f.exc,
		logger: f.logger,
		member: member,
		class:  class,
	}
}

// start creates entry and exit and points control at a placeholder below
// the entry.
func (b *builder) start(entryKind, exitKind graph.NodeKind, line int) (entry, exit *graph.Node) {
	entry = b.node(entryKind, b.member, line)
	exit = b.node(exitKind, b.member, line)
	b.next = b.placeholder()
	b.g.AddEdge(entry.Handle, b.next, graph.EdgeTrue)
	b.ret = b.placeholder()
	return entry, exit
}

func (f *Factory) finish(b *builder, kind MemberKind, entry, exit *graph.Node) *CFG {
	b.join(b.ret)
	b.next = b.ret
	return f.seal(b, kind, entry, exit)
}

func (f *Factory) seal(b *builder, kind MemberKind, entry, exit *graph.Node) *CFG {
	b.join(exit.Handle)
	b.sweep()
	c := &CFG{
		Member: b.member,
		Class:  b.class,
		Kind:   kind,
		Graph:  b.g,
		Entry:  entry.Handle,
		Exit:   exit.Handle,
	}
	if !f.opts.SkipAliases {
		dfg.ResolveAliases(b.g)
	}
	if f.opts.BasicBlocks {
		c.Blocks = BuildBlocks(c)
	}
	f.logger.Debug("built cfg", "member", c.Member, "nodes", b.g.NodeCount())
	return c
}

// BuildMethod builds the CFG of a source method or constructor: entry, one
// catch node per declared exception, formal-in nodes, the body, formal-out
// nodes for reference parameters and the return value, exit.
func (f *Factory) BuildMethod(m *semantic.Method) (*CFG, error) {
	if !m.InProject() {
		return nil, fmt.Errorf("%s: %w", m.Key(), ErrNoSource)
	}
	b := f.newBuilder(m.Class.Name, m.Key())
	d := m.Decl()

	kind := MemberMethod
	entryKind, exitKind := graph.KindMethodEntry, graph.KindMethodExit
	if m.Constructor {
		kind = MemberConstructor
		entryKind, exitKind = graph.KindConstructorEntry, graph.KindConstructorExit
	}
	line := 0
	if d != nil {
		line = d.Line
	}
	entry, exit := b.start(entryKind, exitKind, line)

	for _, t := range m.Throws {
		cn := b.node(graph.KindCatch, "throws "+t, line)
		cn.Types = []string{t}
		b.g.AddEdge(entry.Handle, cn.Handle, graph.EdgeFallThrough)
		b.g.AddEdge(cn.Handle, exit.Handle, graph.EdgeTrue)
		b.declared = append(b.declared, catchPoint{node: cn.Handle, types: cn.Types})
	}

	var params []*syntax.Param
	if d != nil {
		params = d.Params
	}
	for _, p := range params {
		n := b.node(graph.KindFormalIn, p.Name, line)
		n.AddDef(graph.Local(p.Name, p.Type.String(), p.Type.Primitive()))
		b.place(n)
	}
	if d != nil {
		b.stmt(d.Body)
	}

	b.join(b.ret)
	b.next = b.ret
	for _, p := range params {
		if p.Type.Primitive() {
			continue
		}
		n := b.node(graph.KindFormalOut, p.Name, line)
		n.AddUse(graph.Local(p.Name, p.Type.String(), false))
		b.place(n)
	}
	if !m.Constructor && !m.Result.IsVoid() && !m.Result.IsZero() {
		n := b.node(graph.KindFormalOut, graph.ReturnValueName, line)
		n.AddUse(graph.ReturnValue(m.Result.String(), m.Result.Primitive()))
		b.place(n)
	}

	c := f.seal(b, kind, entry, exit)
	c.Method = m
	return c, nil
}

// BuildInitializer builds the CFG of a static or instance initializer block.
func (f *Factory) BuildInitializer(d *syntax.InitializerDecl) *CFG {
	b := f.newBuilder(d.DeclaringClass, d.QualifiedName())
	entry, exit := b.start(graph.KindInitializerEntry, graph.KindInitializerExit, d.Line)
	b.stmt(d.Body)
	return f.finish(b, MemberInitializer, entry, exit)
}

// BuildField builds the CFG of a field and its initializer, if any.
func (f *Factory) BuildField(d *syntax.FieldDecl) *CFG {
	b := f.newBuilder(d.DeclaringClass, d.QualifiedName())
	entry, exit := b.start(graph.KindFieldEntry, graph.KindFieldExit, d.Line)
	if d.Init != nil {
		n := b.node(graph.KindAssignment, d.Name+" = "+text(d.Init), d.Line)
		b.use(d.Init, n)
		ref := b.fieldRef(d.Binding())
		if !ref.Static {
			ref.Receiver = graph.This(d.DeclaringClass)
		}
		n.AddDef(ref)
		b.place(n)
	}
	return f.finish(b, MemberField, entry, exit)
}

// BuildEnumConstant builds the CFG of an enum constant: its constructor
// arguments and the instance creation defining the constant.
func (f *Factory) BuildEnumConstant(d *syntax.EnumConstantDecl) *CFG {
	b := f.newBuilder(d.DeclaringClass, d.QualifiedName())
	entry, exit := b.start(graph.KindEnumConstantEntry, graph.KindEnumConstantExit, d.Line)

	args := b.actuals(d.Args, d.Line)
	n := b.node(graph.KindInstanceCreation, callText(d.Name, d.Args), d.Line)
	for _, a := range args {
		n.AddUse(a)
	}
	n.Call = b.callSite(d.Ctor, "<init>")
	if n.Call.Class == "" {
		n.Call.Class = d.DeclaringClass
		n.Call.Constructor = true
	}
	n.Types = b.exc.Raises(d.Ctor)
	ref := graph.Field(d.DeclaringClass, d.Name, d.DeclaringClass, false, true, true)
	ref.Modifiers = int(syntax.Public | syntax.Static | syntax.Final)
	n.AddDef(ref)
	b.place(n)
	b.raise(n.Handle, n.Types, false)
	return f.finish(b, MemberEnumConstant, entry, exit)
}

// BuildClass builds the CCFG of a source class: a class entry node linked to
// every member CFG, with nested types as nested CCFGs.
func (f *Factory) BuildClass(c *semantic.Class) (*CCFG, error) {
	d := c.Decl()
	if d == nil {
		return nil, fmt.Errorf("%s: %w", c.Name, ErrNoSource)
	}
	entryKind := graph.KindClassEntry
	switch d.Kind {
	case syntax.InterfaceKind:
		entryKind = graph.KindInterfaceEntry
	case syntax.EnumKind:
		entryKind = graph.KindEnumEntry
	}
	g := graph.New(f.opts.IDs)
	entry := g.AddNode(entryKind, c.Name, d.Line)
	cc := &CCFG{Class: c.Name, Kind: d.Kind, Graph: g, Entry: entry.Handle}

	add := func(m *CFG) {
		cc.Members = append(cc.Members, m)
		cc.Links = append(cc.Links, Link{Kind: LinkEntry, From: c.Name, Node: entry.Handle, Target: m.Member})
	}
	for _, ec := range d.EnumConstants {
		add(f.BuildEnumConstant(ec))
	}
	for _, fd := range d.Fields {
		add(f.BuildField(fd))
	}
	for _, in := range d.Initializers {
		add(f.BuildInitializer(in))
	}
	for _, m := range c.Methods() {
		built, err := f.BuildMethod(m)
		if err != nil {
			return nil, err
		}
		add(built)
	}
	for _, nd := range d.Nested {
		nc := c.Registry().ResolveClass(nd.QualifiedName)
		nested, err := f.BuildClass(nc)
		if err != nil {
			return nil, err
		}
		cc.Nested = append(cc.Nested, nested)
	}
	return cc, nil
}
