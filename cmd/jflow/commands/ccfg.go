package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/l3aro/jflow/pkg/cfg"
)

// ccfgCmd represents the ccfg command
var ccfgCmd = &cobra.Command{
	Use:   "ccfg <path> <Class>",
	Short: "Build the class control flow graph of a class",
	Long: `Builds the Class Control Flow Graph (CCFG) of a class, interface or enum:
the class entry, the CFG of every member and nested type, and the field-access
links between member graphs.`,
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
		cc, err := s.store.GetCCFG(class, false)
		if err != nil {
			return fmt.Errorf("building CCFG: %w", err)
		}
		info := cfg.ExportClass(cc)

		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			return writeJSON(cmd.OutOrStdout(), info)
		}
		printClassInfo(cmd.OutOrStdout(), info, "")
		return nil
	},
}

func printClassInfo(w io.Writer, info *cfg.ClassInfo, indent string) {
	fmt.Fprintf(w, "%s=== CCFG for %s %s ===\n", indent, info.Kind, info.Class)
	fmt.Fprintf(w, "%sEntry: %s\n", indent, info.EntryID)
	fmt.Fprintf(w, "%sMembers (%d):\n", indent, len(info.Members))
	for _, m := range info.Members {
		fmt.Fprintf(w, "%s  %s %s (%d nodes, complexity %d)\n",
			indent, m.Kind, m.Member, len(m.Nodes), m.CyclomaticComplexity)
	}
	if len(info.Links) > 0 {
		fmt.Fprintf(w, "%sLinks (%d):\n", indent, len(info.Links))
		for _, l := range info.Links {
			fmt.Fprintf(w, "%s  %s @%d --%s--> %s\n", indent, l.From, l.Node, l.Kind, l.Target)
		}
	}
	for _, n := range info.Nested {
		fmt.Fprintln(w)
		printClassInfo(w, n, indent+"  ")
	}
}

func init() {
	ccfgCmd.Flags().BoolP("json", "j", false, "Output as JSON")
	RootCmd.AddCommand(ccfgCmd)
}
