// Package dfg annotates control-flow graphs with data-flow facts: local alias
// propagation and reaching definitions / def-use chains.
package dfg

import (
	"github.com/l3aro/jflow/pkg/graph"
)

// Alias is a pair established by a non-primitive local assignment: New was
// assigned from Orig at Node.
type Alias struct {
	Node graph.NodeID   `json:"node"`
	New  *graph.VarRef `json:"new"`
	Orig *graph.VarRef `json:"orig"`
}

// Definition is one definition site of a variable.
type Definition struct {
	ID   int            `json:"id"`
	Node graph.NodeID   `json:"node"`
	Ref  *graph.VarRef `json:"ref"`
}

// Chain connects a definition to a use it reaches.
type Chain struct {
	Def     graph.NodeID `json:"def"`
	Use     graph.NodeID `json:"use"`
	VarName string       `json:"var_name"`
	// Alias is set when the use was propagated by the alias resolver.
	Alias bool `json:"alias,omitempty"`
}
