package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/l3aro/jflow/pkg/cfg"
	"github.com/l3aro/jflow/pkg/dfg"
	"github.com/l3aro/jflow/pkg/graph"
)

// DFGOutput is the def-use view of one member.
type DFGOutput struct {
	Member      string           `json:"member"`
	Definitions []dfg.Definition `json:"definitions"`
	Chains      []dfg.Chain      `json:"chains"`
	Aliases     []dfg.Alias      `json:"aliases,omitempty"`
}

var dfgCmd = &cobra.Command{
	Use:   "dfg <path> <Class#member>",
	Short: "Show def-use chains of a member",
	Long: `Computes reaching definitions over the CFG of a member and prints the
def-use chains, including uses propagated through local aliases.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		s, err := openSession(cmd, args[0], false)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := s.close(); cerr != nil && err == nil {
				err = cerr
			}
		}()

		graphs, err := memberGraphs(s.store, args[1])
		if err != nil {
			return err
		}

		outputs := make([]*DFGOutput, len(graphs))
		for i, g := range graphs {
			outputs[i] = dataFlow(g)
		}

		out := cmd.OutOrStdout()
		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			if len(outputs) == 1 {
				return writeJSON(out, outputs[0])
			}
			return writeJSON(out, outputs)
		}
		for i, o := range outputs {
			printDFG(out, o, graphs[i].Graph)
		}
		return nil
	},
}

func dataFlow(c *cfg.CFG) *DFGOutput {
	rd := dfg.ReachingDefinitions(c.Graph)
	return &DFGOutput{
		Member:      c.Member,
		Definitions: rd.Defs,
		Chains:      rd.Chains(),
		Aliases:     dfg.Pairs(c.Graph),
	}
}

func printDFG(w io.Writer, o *DFGOutput, g *graph.Graph) {
	line := func(id graph.NodeID) int {
		if n := g.Node(id); n != nil {
			return n.Line
		}
		return 0
	}
	fmt.Fprintf(w, "=== DFG for %s ===\n", o.Member)
	fmt.Fprintf(w, "\nDefinitions (%d):\n", len(o.Definitions))
	for _, d := range o.Definitions {
		fmt.Fprintf(w, "  d%d %s (line %d)\n", d.ID, d.Ref, line(d.Node))
	}
	fmt.Fprintf(w, "\nDef-Use Chains (%d):\n", len(o.Chains))
	for _, c := range o.Chains {
		suffix := ""
		if c.Alias {
			suffix = " [alias]"
		}
		fmt.Fprintf(w, "  %s: def(line %d) -> use(line %d)%s\n", c.VarName, line(c.Def), line(c.Use), suffix)
	}
	if len(o.Aliases) > 0 {
		fmt.Fprintf(w, "\nAliases (%d):\n", len(o.Aliases))
		for _, a := range o.Aliases {
			fmt.Fprintf(w, "  %s = %s (line %d)\n", a.New, a.Orig, line(a.Node))
		}
	}
	fmt.Fprintln(w)
}

func init() {
	dfgCmd.Flags().BoolP("json", "j", false, "Output as JSON")
	RootCmd.AddCommand(dfgCmd)
}
