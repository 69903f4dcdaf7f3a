// Package cfg builds control-flow graphs for the members of analyzed classes
// and composes them into class control-flow graphs (CCFGs).
package cfg

import (
	"errors"
	"sort"

	"github.com/l3aro/jflow/pkg/graph"
	"github.com/l3aro/jflow/pkg/semantic"
	"github.com/l3aro/jflow/pkg/syntax"
)

// ErrNoSource is returned when a member has no source declaration to build
// from.
var ErrNoSource = errors.New("member has no source declaration")

// MemberKind tells what a CFG was built for.
type MemberKind uint8

const (
	MemberMethod MemberKind = iota
	MemberConstructor
	MemberInitializer
	MemberField
	MemberEnumConstant
)

func (k MemberKind) String() string {
	switch k {
	case MemberConstructor:
		return "constructor"
	case MemberInitializer:
		return "initializer"
	case MemberField:
		return "field"
	case MemberEnumConstant:
		return "enum_constant"
	default:
		return "method"
	}
}

// MarshalText renders the kind name in JSON output.
func (k MemberKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// CFG is the control-flow graph of one member.
type CFG struct {
	// Member is the qualified member key, e.g. p.A.m(int) or p.A.f.
	Member string
	Class  string
	Kind   MemberKind
	Graph  *graph.Graph
	Entry  graph.NodeID
	Exit   graph.NodeID

	// Method is set for methods and constructors.
	Method *semantic.Method
	// Blocks is filled when basic blocks were requested.
	Blocks []*Block
}

// EntryNode returns the designated entry node.
func (c *CFG) EntryNode() *graph.Node { return c.Graph.Node(c.Entry) }

// ExitNode returns the designated exit node.
func (c *CFG) ExitNode() *graph.Node { return c.Graph.Node(c.Exit) }

// Nodes returns the live nodes in creation order.
func (c *CFG) Nodes() []*graph.Node { return c.Graph.Nodes() }

// Node returns a node by handle.
func (c *CFG) Node(id graph.NodeID) *graph.Node { return c.Graph.Node(id) }

// Out returns the outgoing edges of a node.
func (c *CFG) Out(id graph.NodeID) []*graph.Edge { return c.Graph.Out(id) }

// In returns the incoming edges of a node.
func (c *CFG) In(id graph.NodeID) []*graph.Edge { return c.Graph.In(id) }

// NodesOfKind returns the live nodes of kind.
func (c *CFG) NodesOfKind(kind graph.NodeKind) []*graph.Node { return c.Graph.NodesOfKind(kind) }

// CallNodes returns the call-boundary nodes carrying a resolved call site.
func (c *CFG) CallNodes() []*graph.Node {
	var out []*graph.Node
	for _, n := range c.Graph.Nodes() {
		if n.Kind.IsCall() && n.Call != nil {
			out = append(out, n)
		}
	}
	return out
}

// FieldDefs returns the distinct field references defined anywhere in the
// graph, ordered by qualified name.
func (c *CFG) FieldDefs() []*graph.VarRef {
	return c.fieldRefs(func(n *graph.Node) []*graph.VarRef { return n.Defs })
}

// FieldUses returns the distinct field references used anywhere in the graph,
// ordered by qualified name.
func (c *CFG) FieldUses() []*graph.VarRef {
	return c.fieldRefs(func(n *graph.Node) []*graph.VarRef { return n.Uses })
}

func (c *CFG) fieldRefs(pick func(*graph.Node) []*graph.VarRef) []*graph.VarRef {
	seen := make(map[string]*graph.VarRef)
	for _, n := range c.Graph.Nodes() {
		for _, r := range pick(n) {
			if r.Kind == graph.RefField && !r.IsAlias() {
				if _, ok := seen[r.QualifiedName()]; !ok {
					seen[r.QualifiedName()] = r
				}
			}
		}
	}
	out := make([]*graph.VarRef, 0, len(seen))
	for _, r := range seen {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QualifiedName() < out[j].QualifiedName() })
	return out
}

// LinkKind labels a CCFG link.
type LinkKind uint8

const (
	// LinkEntry joins the class entry to a member entry.
	LinkEntry LinkKind = iota
	// LinkFieldAccess joins a call node to the CFG of a field the callee
	// reads or writes.
	LinkFieldAccess
)

func (k LinkKind) String() string {
	if k == LinkFieldAccess {
		return "field_access"
	}
	return "entry"
}

// MarshalText renders the kind name in JSON output.
func (k LinkKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Link is an edge between member graphs of a CCFG. From names the member whose
// graph holds Node; the class entry uses the class name as member.
type Link struct {
	Kind   LinkKind     `json:"kind"`
	From   string       `json:"from"`
	Node   graph.NodeID `json:"node"`
	Target string       `json:"target"`
}

// CCFG is the class control-flow graph of a class, interface or enum.
type CCFG struct {
	Class string
	Kind  syntax.TypeKind
	// Graph holds the class entry node.
	Graph   *graph.Graph
	Entry   graph.NodeID
	Members []*CFG
	Nested  []*CCFG
	Links   []Link
}

// EntryNode returns the class entry node.
func (c *CCFG) EntryNode() *graph.Node { return c.Graph.Node(c.Entry) }

// Member finds a member CFG by key, nested classes included.
func (c *CCFG) Member(key string) *CFG {
	for _, m := range c.Members {
		if m.Member == key {
			return m
		}
	}
	for _, n := range c.Nested {
		if m := n.Member(key); m != nil {
			return m
		}
	}
	return nil
}

// AddFieldAccess links node of member from to the CFG of field. It reports
// false when the field has no CFG in this CCFG or the link already exists.
func (c *CCFG) AddFieldAccess(from string, node graph.NodeID, field string) bool {
	if c.Member(field) == nil {
		return false
	}
	for _, l := range c.Links {
		if l.Kind == LinkFieldAccess && l.From == from && l.Node == node && l.Target == field {
			return false
		}
	}
	c.Links = append(c.Links, Link{Kind: LinkFieldAccess, From: from, Node: node, Target: field})
	return true
}

// FieldAccessLinks returns the field-access links.
func (c *CCFG) FieldAccessLinks() []Link {
	var out []Link
	for _, l := range c.Links {
		if l.Kind == LinkFieldAccess {
			out = append(out, l)
		}
	}
	return out
}

// Walk calls fn for every member CFG, nested classes included.
func (c *CCFG) Walk(fn func(*CFG)) {
	for _, m := range c.Members {
		fn(m)
	}
	for _, n := range c.Nested {
		n.Walk(fn)
	}
}
