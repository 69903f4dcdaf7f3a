package cfg

import (
	"strconv"

	"github.com/l3aro/jflow/pkg/graph"
)

// BlockType classifies an exported basic block.
type BlockType string

const (
	BlockTypeEntry    BlockType = "entry"     // Member entry point
	BlockTypeBranch   BlockType = "branch"    // Ends in a condition
	BlockTypeLoopBody BlockType = "loop_body" // Ends in a loop-back edge
	BlockTypeReturn   BlockType = "return"    // Ends in a return statement
	BlockTypeCatch    BlockType = "catch"     // Starts at a catch node
	BlockTypeExit     BlockType = "exit"      // Member exit point
	BlockTypePlain    BlockType = "plain"     // Regular statements
)

// NodeInfo is the JSON view of a node.
type NodeInfo struct {
	ID    int64          `json:"id"`
	Kind  graph.NodeKind `json:"kind"`
	Label string         `json:"label,omitempty"`
	Line  int            `json:"line,omitempty"`
	Defs  []string       `json:"defs,omitempty"`
	Uses  []string       `json:"uses,omitempty"`
	Call  string         `json:"call,omitempty"`
	Types []string       `json:"types,omitempty"`
}

// EdgeInfo is the JSON view of an edge between nodes or blocks.
type EdgeInfo struct {
	SourceID string         `json:"source_id"`
	TargetID string         `json:"target_id"`
	EdgeType graph.EdgeKind `json:"edge_type"`
	// Header names the loop closed by a loop-back edge.
	Header string `json:"header,omitempty"`
}

// BlockInfo is the JSON view of a basic block.
type BlockInfo struct {
	ID           string    `json:"id"`
	Type         BlockType `json:"type"`
	StartLine    int       `json:"start_line"`
	EndLine      int       `json:"end_line"`
	Statements   []string  `json:"statements"`
	Predecessors []string  `json:"predecessors"`
}

// Info is the JSON view of a member CFG.
type Info struct {
	Member               string               `json:"member"`
	Kind                 MemberKind           `json:"kind"`
	Nodes                []NodeInfo           `json:"nodes"`
	Edges                []EdgeInfo           `json:"edges"`
	EntryID              string               `json:"entry_id"`
	ExitID               string               `json:"exit_id"`
	Blocks               map[string]BlockInfo `json:"blocks,omitempty"`
	BlockEdges           []EdgeInfo           `json:"block_edges,omitempty"`
	CyclomaticComplexity int                  `json:"cyclomatic_complexity"`
}

// ClassInfo is the JSON view of a CCFG.
type ClassInfo struct {
	Class   string       `json:"class"`
	Kind    string       `json:"kind"`
	EntryID string       `json:"entry_id"`
	Members []*Info      `json:"members"`
	Nested  []*ClassInfo `json:"nested,omitempty"`
	Links   []Link       `json:"links"`
}

func nodeID(g *graph.Graph, id graph.NodeID) string {
	if n := g.Node(id); n != nil {
		return strconv.FormatInt(n.ID, 10)
	}
	return ""
}

func refNames(refs []*graph.VarRef) []string {
	if len(refs) == 0 {
		return nil
	}
	out := make([]string, len(refs))
	for i, r := range refs {
		out[i] = r.String()
		if r.IsAlias() {
			out[i] += "~" + r.AliasOf
		}
	}
	return out
}

// Export renders c for JSON output.
func Export(c *CFG) *Info {
	g := c.Graph
	info := &Info{
		Member:  c.Member,
		Kind:    c.Kind,
		EntryID: nodeID(g, c.Entry),
		ExitID:  nodeID(g, c.Exit),
	}
	for _, n := range g.Nodes() {
		ni := NodeInfo{
			ID:    n.ID,
			Kind:  n.Kind,
			Label: n.Label,
			Line:  n.Line,
			Defs:  refNames(n.Defs),
			Uses:  refNames(n.Uses),
			Types: n.Types,
		}
		if n.Call != nil {
			ni.Call = n.Call.Key()
		}
		info.Nodes = append(info.Nodes, ni)
	}
	flow := 0
	for _, e := range g.Edges() {
		ei := EdgeInfo{SourceID: nodeID(g, e.From), TargetID: nodeID(g, e.To), EdgeType: e.Kind}
		if e.Kind == graph.EdgeLoopBack {
			ei.Header = nodeID(g, e.Header)
		}
		info.Edges = append(info.Edges, ei)
		if flowEdge(e) {
			flow++
		}
	}
	info.CyclomaticComplexity = flow - g.NodeCount() + 2
	if info.CyclomaticComplexity < 1 {
		info.CyclomaticComplexity = 1
	}

	if len(c.Blocks) > 0 {
		info.Blocks = make(map[string]BlockInfo, len(c.Blocks))
		for _, b := range c.Blocks {
			info.Blocks[blockID(b.ID)] = exportBlock(c, b)
			for _, s := range b.Succs {
				info.BlockEdges = append(info.BlockEdges, EdgeInfo{
					SourceID: blockID(b.ID),
					TargetID: blockID(s),
					EdgeType: blockEdgeKind(c, b, c.Blocks[s]),
				})
			}
		}
	}
	return info
}

func blockID(id int) string {
	return "B" + strconv.Itoa(id)
}

func blockEdgeKind(c *CFG, from, to *Block) graph.EdgeKind {
	for _, e := range flowOut(c.Graph, from.Last()) {
		if e.To == to.First() {
			return e.Kind
		}
	}
	return graph.EdgeTrue
}

func exportBlock(c *CFG, b *Block) BlockInfo {
	g := c.Graph
	bi := BlockInfo{ID: blockID(b.ID), Type: BlockTypePlain}
	for _, id := range b.Nodes {
		n := g.Node(id)
		if n.Label != "" {
			bi.Statements = append(bi.Statements, n.Label)
		}
		if n.Line > 0 && (bi.StartLine == 0 || n.Line < bi.StartLine) {
			bi.StartLine = n.Line
		}
		if n.Line > bi.EndLine {
			bi.EndLine = n.Line
		}
	}
	for _, p := range b.Preds {
		bi.Predecessors = append(bi.Predecessors, blockID(p))
	}

	first, last := g.Node(b.First()), g.Node(b.Last())
	switch {
	case b.First() == c.Entry:
		bi.Type = BlockTypeEntry
	case b.Last() == c.Exit:
		bi.Type = BlockTypeExit
	case first.Kind == graph.KindCatch:
		bi.Type = BlockTypeCatch
	case last.Kind == graph.KindReturn:
		bi.Type = BlockTypeReturn
	case last.Kind.IsBranch():
		bi.Type = BlockTypeBranch
	default:
		for _, e := range g.Out(last.Handle) {
			if e.Kind == graph.EdgeLoopBack {
				bi.Type = BlockTypeLoopBody
			}
		}
	}
	return bi
}

// ExportClass renders a CCFG for JSON output.
func ExportClass(cc *CCFG) *ClassInfo {
	ci := &ClassInfo{
		Class:   cc.Class,
		Kind:    cc.Kind.String(),
		EntryID: nodeID(cc.Graph, cc.Entry),
		Links:   cc.Links,
	}
	for _, m := range cc.Members {
		ci.Members = append(ci.Members, Export(m))
	}
	for _, n := range cc.Nested {
		ci.Nested = append(ci.Nested, ExportClass(n))
	}
	return ci
}
