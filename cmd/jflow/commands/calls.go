package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/l3aro/jflow/pkg/callgraph"
	"github.com/l3aro/jflow/pkg/store"
)

// CallGraphOutput represents the output of the calls command
type CallGraphOutput struct {
	RootDir string           `json:"root_dir"`
	Stats   callgraph.Stats  `json:"stats"`
	Edges   []callgraph.Edge `json:"edges,omitempty"`
}

// callsCmd represents the calls command
var callsCmd = &cobra.Command{
	Use:   "calls [path]",
	Short: "Build the call graph of a project",
	Long: `Builds the CCFG of every class and collects the call sites into a call
graph. Virtual calls also reach every overriding method in the project.`,
	Args: cobra.RangeArgs(0, 1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		path := "."
		if len(args) > 0 {
			path = args[0]
		}
		s, err := openSession(cmd, path, false)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := s.close(); cerr != nil && err == nil {
				err = cerr
			}
		}()

		g, err := projectCallGraph(s.store)
		if err != nil {
			return err
		}
		result := &CallGraphOutput{RootDir: s.root, Stats: g.Stats(), Edges: g.Edges()}

		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			return writeJSON(cmd.OutOrStdout(), result)
		}
		printCallGraph(cmd.OutOrStdout(), result)
		return nil
	},
}

// projectCallGraph builds the call graph of every top-level class.
func projectCallGraph(st *store.Store) (*callgraph.Graph, error) {
	g := callgraph.New(st.Registry())
	for _, t := range st.Project().Types {
		cc, err := st.GetCCFG(t.QualifiedName, false)
		if err != nil {
			return nil, fmt.Errorf("building %s: %w", t.QualifiedName, err)
		}
		g.AddClass(cc)
	}
	return g, nil
}

func printCallGraph(w io.Writer, out *CallGraphOutput) {
	fmt.Fprintf(w, "=== Call graph of %s ===\n", out.RootDir)
	fmt.Fprintf(w, "Routines: %d\n", out.Stats.Routines)
	fmt.Fprintf(w, "Edges: %d (%d project, %d external, %d dispatch)\n\n",
		out.Stats.TotalEdges, out.Stats.ProjectEdges, out.Stats.ExternalEdges, out.Stats.DispatchEdges)
	for _, e := range out.Edges {
		fmt.Fprintf(w, "  %s -> %s%s\n", e.SourceFunc, e.DestFunc, edgeNote(e))
	}
}

func edgeNote(e callgraph.Edge) string {
	switch {
	case e.Dispatch:
		return " [dispatch]"
	case e.External:
		return " [external]"
	}
	return ""
}

func init() {
	callsCmd.Flags().BoolP("json", "j", false, "Output as JSON")
	RootCmd.AddCommand(callsCmd)
}
