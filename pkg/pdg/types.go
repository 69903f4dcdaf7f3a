// Package pdg derives Program Dependence Graphs from member CFGs. Control
// dependences come from post-dominance over the flow edges, data dependences
// from def-use chains.
package pdg

import (
	"github.com/l3aro/jflow/pkg/cfg"
	"github.com/l3aro/jflow/pkg/graph"
)

// DepType represents the type of dependence in a PDG edge.
type DepType string

const (
	DepTypeControl DepType = "control"
	DepTypeData    DepType = "data"
)

// Dep is a directed dependence: To depends on From.
type Dep struct {
	From    graph.NodeID `json:"from"`
	To      graph.NodeID `json:"to"`
	DepType DepType      `json:"dep_type"`
	// Label is the variable for data dependences and the branch edge kind
	// for control dependences.
	Label string `json:"label,omitempty"`
}

// PDG is the dependence graph of one member. Nodes are the CFG's nodes.
type PDG struct {
	CFG  *cfg.CFG
	Deps []Dep

	in  map[graph.NodeID][]Dep
	out map[graph.NodeID][]Dep
}

// DependencyInfo contains the control and data dependencies for a specific line.
type DependencyInfo struct {
	ControlIn  []Dep `json:"control_in"`
	ControlOut []Dep `json:"control_out"`
	DataIn     []Dep `json:"data_in"`
	DataOut    []Dep `json:"data_out"`
}
