package pdg

import (
	"container/list"
	"sort"
	"strings"

	"github.com/l3aro/jflow/pkg/graph"
)

// NodesAtLine returns the nodes whose source line is line.
func (p *PDG) NodesAtLine(line int) []graph.NodeID {
	if p == nil || p.CFG == nil {
		return nil
	}
	var ids []graph.NodeID
	for _, n := range p.CFG.Nodes() {
		if n.Line == line {
			ids = append(ids, n.Handle)
		}
	}
	return ids
}

// matchesVar accepts a qualified field name by its simple name.
func matchesVar(label, variable string) bool {
	return label == variable || strings.HasSuffix(label, "."+variable)
}

// walk runs a BFS from the nodes at line. next picks the far end of a
// dependence. Data dependences on other variables are skipped when variable
// is set.
func (p *PDG) walk(line int, variable string, deps func(graph.NodeID) []Dep, next func(Dep) graph.NodeID) []int {
	start := p.NodesAtLine(line)
	if len(start) == 0 {
		return nil
	}

	visited := make(map[graph.NodeID]bool)
	queue := list.New()
	for _, id := range start {
		visited[id] = true
		queue.PushBack(id)
	}

	var result []graph.NodeID
	for queue.Len() > 0 {
		id := queue.Remove(queue.Front()).(graph.NodeID)
		result = append(result, id)
		for _, d := range deps(id) {
			if variable != "" && d.DepType == DepTypeData && !matchesVar(d.Label, variable) {
				continue
			}
			n := next(d)
			if visited[n] {
				continue
			}
			visited[n] = true
			queue.PushBack(n)
		}
	}
	return p.lines(result)
}

// BackwardSlice returns the lines that may affect the statements at line.
// A non-empty variable restricts data dependences to that variable.
func (p *PDG) BackwardSlice(line int, variable string) []int {
	if p == nil || p.CFG == nil {
		return nil
	}
	return p.walk(line, variable, p.In, func(d Dep) graph.NodeID { return d.From })
}

// ForwardSlice returns the lines that may be affected by the statements at
// line.
func (p *PDG) ForwardSlice(line int, variable string) []int {
	if p == nil || p.CFG == nil {
		return nil
	}
	return p.walk(line, variable, p.Out, func(d Dep) graph.NodeID { return d.To })
}

// lines maps nodes to their distinct source lines, sorted.
func (p *PDG) lines(ids []graph.NodeID) []int {
	set := make(map[int]struct{})
	for _, id := range ids {
		if n := p.CFG.Node(id); n != nil && n.Line > 0 {
			set[n.Line] = struct{}{}
		}
	}
	out := make([]int, 0, len(set))
	for l := range set {
		out = append(out, l)
	}
	sort.Ints(out)
	return out
}

// Dependencies returns the dependences into and out of the statements at
// line, split by type.
func (p *PDG) Dependencies(line int) DependencyInfo {
	var info DependencyInfo
	if p == nil || p.CFG == nil {
		return info
	}
	for _, id := range p.NodesAtLine(line) {
		for _, d := range p.In(id) {
			if d.DepType == DepTypeControl {
				info.ControlIn = append(info.ControlIn, d)
			} else {
				info.DataIn = append(info.DataIn, d)
			}
		}
		for _, d := range p.Out(id) {
			if d.DepType == DepTypeControl {
				info.ControlOut = append(info.ControlOut, d)
			} else {
				info.DataOut = append(info.DataOut, d)
			}
		}
	}
	return info
}

// Variables lists the variables carried by data dependences, sorted.
func (p *PDG) Variables() []string {
	if p == nil {
		return nil
	}
	set := make(map[string]bool)
	var out []string
	for _, d := range p.Deps {
		if d.DepType == DepTypeData && !set[d.Label] {
			set[d.Label] = true
			out = append(out, d.Label)
		}
	}
	sort.Strings(out)
	return out
}
