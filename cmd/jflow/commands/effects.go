package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/l3aro/jflow/pkg/sideeffect"
)

// EffectsOutput is the side-effect report of one class.
type EffectsOutput struct {
	Class    string                `json:"class"`
	Routines []*sideeffect.Summary `json:"routines"`
}

var effectsCmd = &cobra.Command{
	Use:   "effects <path> <Class>",
	Short: "Summarize the field side effects of a class",
	Long: `Aggregates, for every method and constructor of a class, the fields it
may define or use through its callees, and a YES/NO/MAYBE verdict on whether it
writes any field.`,
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

		class, err := resolveClassName(s.store.Project(), args[1])
		if err != nil {
			return err
		}
		summaries, err := s.store.ClassSideEffects(class)
		if err != nil {
			return fmt.Errorf("summarizing %s: %w", class, err)
		}
		result := &EffectsOutput{Class: class, Routines: summaries}

		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			return writeJSON(cmd.OutOrStdout(), result)
		}
		printEffects(cmd.OutOrStdout(), result)
		return nil
	},
}

func printEffects(w io.Writer, out *EffectsOutput) {
	fmt.Fprintf(w, "=== Side effects of %s ===\n", out.Class)
	for _, s := range out.Routines {
		fmt.Fprintf(w, "%-6s %s", s.Verdict, s.Method)
		if s.Unknown {
			fmt.Fprint(w, " (incomplete)")
		}
		fmt.Fprintln(w)
		if defs := s.DefNames(); len(defs) > 0 {
			fmt.Fprintf(w, "       def: %s\n", strings.Join(defs, ", "))
		}
		if uses := s.UseNames(); len(uses) > 0 {
			fmt.Fprintf(w, "       use: %s\n", strings.Join(uses, ", "))
		}
	}
}

func init() {
	effectsCmd.Flags().BoolP("json", "j", false, "Output as JSON")
	RootCmd.AddCommand(effectsCmd)
}
