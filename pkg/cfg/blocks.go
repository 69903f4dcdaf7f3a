package cfg

import (
	"github.com/l3aro/jflow/pkg/graph"
)

// Block is a maximal straight-line run of nodes. Fall-through trace edges do
// not count as control flow when blocks are formed.
type Block struct {
	ID    int
	Nodes []graph.NodeID
	Preds []int
	Succs []int
}

// First returns the leading node.
func (b *Block) First() graph.NodeID { return b.Nodes[0] }

// Last returns the trailing node.
func (b *Block) Last() graph.NodeID { return b.Nodes[len(b.Nodes)-1] }

func flowEdge(e *graph.Edge) bool {
	return e.Kind != graph.EdgeFallThrough
}

func flowOut(g *graph.Graph, id graph.NodeID) []*graph.Edge {
	var out []*graph.Edge
	for _, e := range g.Out(id) {
		if flowEdge(e) {
			out = append(out, e)
		}
	}
	return out
}

func flowIn(g *graph.Graph, id graph.NodeID) []*graph.Edge {
	var in []*graph.Edge
	for _, e := range g.In(id) {
		if flowEdge(e) {
			in = append(in, e)
		}
	}
	return in
}

// BuildBlocks partitions the nodes of c into basic blocks.
func BuildBlocks(c *CFG) []*Block {
	g := c.Graph
	nodes := g.Nodes()

	leader := make(map[graph.NodeID]bool)
	for _, n := range nodes {
		id := n.Handle
		in := flowIn(g, id)
		switch {
		case id == c.Entry, len(in) != 1:
			leader[id] = true
		case in[0].From == id, len(flowOut(g, in[0].From)) != 1:
			leader[id] = true
		}
	}

	owner := make(map[graph.NodeID]int)
	var blocks []*Block
	grow := func(start graph.NodeID) {
		blk := &Block{ID: len(blocks)}
		blocks = append(blocks, blk)
		cur := start
		for {
			blk.Nodes = append(blk.Nodes, cur)
			owner[cur] = blk.ID
			out := flowOut(g, cur)
			if len(out) != 1 {
				return
			}
			nxt := out[0].To
			if leader[nxt] {
				return
			}
			if _, seen := owner[nxt]; seen {
				return
			}
			cur = nxt
		}
	}
	for _, n := range nodes {
		if leader[n.Handle] {
			grow(n.Handle)
		}
	}
	for _, n := range nodes {
		if _, ok := owner[n.Handle]; !ok {
			grow(n.Handle)
		}
	}

	for _, blk := range blocks {
		seen := make(map[int]bool)
		for _, e := range flowOut(g, blk.Last()) {
			to := owner[e.To]
			if !seen[to] {
				seen[to] = true
				blk.Succs = append(blk.Succs, to)
				blocks[to].Preds = append(blocks[to].Preds, blk.ID)
			}
		}
	}
	return blocks
}

// BlockOf returns the block holding node id, or nil when blocks were not
// built.
func (c *CFG) BlockOf(id graph.NodeID) *Block {
	for _, b := range c.Blocks {
		for _, n := range b.Nodes {
			if n == id {
				return b
			}
		}
	}
	return nil
}
