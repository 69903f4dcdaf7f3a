package commands

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/l3aro/jflow/pkg/cfg"
	"github.com/l3aro/jflow/pkg/store"
	"github.com/l3aro/jflow/pkg/syntax"
)

// cfgCmd represents the cfg command
var cfgCmd = &cobra.Command{
	Use:   "cfg <path> <Class#member>",
	Short: "Build the control flow graph of a member",
	Long: `Builds the Control Flow Graph (CFG) of one member of a Java class.
The member is a method or field name (every overload is printed), a method
signature such as add(int), an initializer such as <clinit>#0, or an enum constant.
Outputs nodes, edges and cyclomatic complexity.`,
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

		infos := make([]*cfg.Info, len(graphs))
		for i, g := range graphs {
			infos[i] = cfg.Export(g)
		}

		out := cmd.OutOrStdout()
		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			if len(infos) == 1 {
				return writeJSON(out, infos[0])
			}
			return writeJSON(out, infos)
		}
		for _, info := range infos {
			printCFGInfo(out, info)
		}
		return nil
	},
}

// splitMember splits Class#member. Initializer names carry their own '#'.
func splitMember(ref string) (class, member string, err error) {
	i := strings.Index(ref, "#<")
	if i < 0 {
		i = strings.LastIndex(ref, "#")
	}
	if i <= 0 || i == len(ref)-1 {
		return "", "", fmt.Errorf("invalid member %q: expected Class#member", ref)
	}
	return ref[:i], ref[i+1:], nil
}

// memberGraphs resolves Class#member to the member CFGs.
func memberGraphs(st *store.Store, ref string) ([]*cfg.CFG, error) {
	className, member, err := splitMember(ref)
	if err != nil {
		return nil, err
	}
	class, err := resolveClassName(st.Project(), className)
	if err != nil {
		return nil, err
	}

	if strings.Contains(member, "(") {
		g, err := st.Get(class+"."+member, false)
		if err != nil {
			return nil, notFound(err, class, member)
		}
		return []*cfg.CFG{g}, nil
	}
	graphs, err := st.GetByName(class, member)
	if err != nil {
		return nil, notFound(err, class, member)
	}
	return graphs, nil
}

func notFound(err error, class, member string) error {
	if errors.Is(err, store.ErrMemberNotFound) {
		return fmt.Errorf("member %q not found in %s", member, class)
	}
	return fmt.Errorf("building CFG: %w", err)
}

// resolveClassName accepts a qualified name or an unambiguous simple name.
func resolveClassName(p *syntax.Project, name string) (string, error) {
	if _, ok := p.Lookup(name); ok {
		return name, nil
	}
	var matches []string
	for _, t := range p.AllTypes() {
		if t.Name == name || strings.HasSuffix(t.QualifiedName, "."+name) {
			matches = append(matches, t.QualifiedName)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("class %q not found", name)
	case 1:
		return matches[0], nil
	}
	sort.Strings(matches)
	return "", fmt.Errorf("class %q is ambiguous: %s", name, strings.Join(matches, ", "))
}

// printCFGInfo prints CFG information in human-readable format.
func printCFGInfo(w io.Writer, info *cfg.Info) {
	fmt.Fprintf(w, "=== CFG for %s: %s ===\n", info.Kind, info.Member)
	fmt.Fprintf(w, "Cyclomatic Complexity: %d\n", info.CyclomaticComplexity)
	fmt.Fprintf(w, "Entry: %s\n", info.EntryID)
	fmt.Fprintf(w, "Exit: %s\n", info.ExitID)

	fmt.Fprintf(w, "\nNodes (%d):\n", len(info.Nodes))
	for _, n := range info.Nodes {
		fmt.Fprintf(w, "  %d %s", n.ID, n.Kind)
		if n.Label != "" {
			fmt.Fprintf(w, " %q", n.Label)
		}
		if n.Line > 0 {
			fmt.Fprintf(w, " (line %d)", n.Line)
		}
		fmt.Fprintln(w)
		if len(n.Defs) > 0 {
			fmt.Fprintf(w, "    def: %s\n", strings.Join(n.Defs, ", "))
		}
		if len(n.Uses) > 0 {
			fmt.Fprintf(w, "    use: %s\n", strings.Join(n.Uses, ", "))
		}
	}

	fmt.Fprintf(w, "\nEdges (%d):\n", len(info.Edges))
	for _, e := range info.Edges {
		fmt.Fprintf(w, "  %s --%s--> %s\n", e.SourceID, e.EdgeType, e.TargetID)
	}

	if len(info.Blocks) > 0 {
		ids := make([]string, 0, len(info.Blocks))
		for id := range info.Blocks {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		fmt.Fprintf(w, "\nBlocks (%d):\n", len(ids))
		for _, id := range ids {
			b := info.Blocks[id]
			fmt.Fprintf(w, "  %s (%s, lines %d-%d)\n", id, b.Type, b.StartLine, b.EndLine)
			for _, stmt := range b.Statements {
				fmt.Fprintf(w, "    %s\n", stmt)
			}
		}
	}
	fmt.Fprintln(w)
}

func init() {
	cfgCmd.Flags().BoolP("json", "j", false, "Output as JSON")
	RootCmd.AddCommand(cfgCmd)
}
