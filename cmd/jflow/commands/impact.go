package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/l3aro/jflow/pkg/callgraph"
)

// ImpactOutput represents the output of the impact command
type ImpactOutput struct {
	Target  string           `json:"target"`
	RootDir string           `json:"root_dir"`
	Callers []callgraph.Edge `json:"callers"`
	Count   int              `json:"count"`
}

// impactCmd represents the impact command
var impactCmd = &cobra.Command{
	Use:   "impact <path> <Class#method>",
	Short: "Find all callers of a method",
	Long: `Finds every routine that calls the given method, directly or through a
chain of calls. This helps understand the impact of changing a method.`,
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
		g, err := projectCallGraph(s.store)
		if err != nil {
			return err
		}

		depth, _ := cmd.Flags().GetInt("depth")
		var results []*ImpactOutput
		for _, c := range graphs {
			if c.Method == nil {
				continue
			}
			callers := g.Impact(c.Member, depth)
			results = append(results, &ImpactOutput{
				Target:  c.Member,
				RootDir: s.root,
				Callers: callers,
				Count:   len(callers),
			})
		}
		if len(results) == 0 {
			return fmt.Errorf("%s is not a method or constructor", args[1])
		}

		out := cmd.OutOrStdout()
		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			if len(results) == 1 {
				return writeJSON(out, results[0])
			}
			return writeJSON(out, results)
		}
		for _, r := range results {
			printImpact(out, r)
		}
		return nil
	},
}

func printImpact(w io.Writer, out *ImpactOutput) {
	fmt.Fprintf(w, "=== Callers of %s ===\n", out.Target)
	if out.Count == 0 {
		fmt.Fprintln(w, "  (no callers)")
		return
	}
	for _, e := range out.Callers {
		loc := e.SourceFile
		if e.Line > 0 {
			loc = fmt.Sprintf("%s:%d", loc, e.Line)
		}
		fmt.Fprintf(w, "  %s -> %s%s", e.SourceFunc, e.DestFunc, edgeNote(e))
		if loc != "" {
			fmt.Fprintf(w, " (%s)", strings.TrimPrefix(loc, "./"))
		}
		fmt.Fprintln(w)
	}
}

func init() {
	impactCmd.Flags().BoolP("json", "j", false, "Output as JSON")
	impactCmd.Flags().Int("depth", 0, "Maximum call distance (0 for unbounded)")
	RootCmd.AddCommand(impactCmd)
}
