package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/l3aro/jflow/pkg/pdg"
)

// SliceOutput is the result of one slice query.
type SliceOutput struct {
	Member     string `json:"member"`
	Line       int    `json:"line"`
	Direction  string `json:"direction"`
	Variable   string `json:"variable,omitempty"`
	SliceLines []int  `json:"slice_lines"`
}

var sliceCmd = &cobra.Command{
	Use:   "slice <path> <Class#member> --line N [--forward] [--var NAME]",
	Short: "Perform backward or forward slice analysis on a member",
	Long: `Builds the program dependence graph of a member and slices it.

Backward slice: all lines that may affect the statements at the target line.
Forward slice: all lines that may be affected by the statements at the line.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		lineNum, _ := cmd.Flags().GetInt("line")
		if lineNum <= 0 {
			return fmt.Errorf("line number must be positive: %d", lineNum)
		}
		forward, _ := cmd.Flags().GetBool("forward")
		variable, _ := cmd.Flags().GetString("var")

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

		var p *pdg.PDG
		for _, g := range graphs {
			if candidate := pdg.Build(g); len(candidate.NodesAtLine(lineNum)) > 0 {
				p = candidate
				break
			}
		}
		if p == nil {
			return fmt.Errorf("no statement at line %d in %s", lineNum, args[1])
		}

		result := SliceOutput{
			Member:    p.CFG.Member,
			Line:      lineNum,
			Direction: "backward",
			Variable:  variable,
		}
		if forward {
			result.Direction = "forward"
			result.SliceLines = p.ForwardSlice(lineNum, variable)
		} else {
			result.SliceLines = p.BackwardSlice(lineNum, variable)
		}
		if result.SliceLines == nil {
			result.SliceLines = []int{}
		}

		out := cmd.OutOrStdout()
		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			return writeJSON(out, result)
		}
		printSlice(out, &result, p)
		return nil
	},
}

func printSlice(w io.Writer, r *SliceOutput, p *pdg.PDG) {
	fmt.Fprintf(w, "=== Slice for %s (line %d, %s) ===\n", r.Member, r.Line, r.Direction)
	if r.Variable != "" {
		fmt.Fprintf(w, "Variable filter: %s\n", r.Variable)
	}
	fmt.Fprintf(w, "\nSlice lines (%d): %s\n", len(r.SliceLines), formatLineRanges(r.SliceLines))

	for _, line := range r.SliceLines {
		var labels []string
		for _, id := range p.NodesAtLine(line) {
			if n := p.CFG.Node(id); n.Label != "" {
				labels = append(labels, n.Label)
			}
		}
		fmt.Fprintf(w, "  %4d | %s\n", line, strings.Join(labels, "; "))
	}
}

func formatLineRanges(lines []int) string {
	if len(lines) == 0 {
		return "none"
	}

	var ranges []string
	start, end := lines[0], lines[0]
	flush := func() {
		if start == end {
			ranges = append(ranges, fmt.Sprintf("%d", start))
		} else {
			ranges = append(ranges, fmt.Sprintf("%d-%d", start, end))
		}
	}
	for _, l := range lines[1:] {
		if l == end+1 {
			end = l
			continue
		}
		flush()
		start, end = l, l
	}
	flush()
	return strings.Join(ranges, ", ")
}

func init() {
	sliceCmd.Flags().IntP("line", "l", 0, "Target line number (required)")
	sliceCmd.Flags().Bool("forward", false, "Compute a forward slice instead of a backward one")
	sliceCmd.Flags().String("var", "", "Only follow data dependences on this variable")
	sliceCmd.Flags().BoolP("json", "j", false, "Output as JSON")
	_ = sliceCmd.MarkFlagRequired("line")
	RootCmd.AddCommand(sliceCmd)
}
