package commands

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/l3aro/jflow/pkg/semantic"
	"github.com/l3aro/jflow/pkg/store"
)

// ClassReport describes one rebuilt class.
type ClassReport struct {
	Class   string `json:"class"`
	Members int    `json:"members"`
	Links   int    `json:"links"`
	Writers int    `json:"writers"`
}

// BuildOutput represents the output of the build command
type BuildOutput struct {
	RootDir  string        `json:"root_dir"`
	Built    []ClassReport `json:"built"`
	Removed  []string      `json:"removed,omitempty"`
	Stats    store.Stats   `json:"stats"`
	Duration string        `json:"duration"`
}

// buildCmd represents the build command
var buildCmd = &cobra.Command{
	Use:   "build [path]",
	Short: "Build the graphs of every changed class",
	Long: `Parses the project, compares source files against the recorded dirty state
and builds the CCFG and side-effect summaries of every class whose file changed
since the previous build. With --all every class is built.`,
	Args: cobra.RangeArgs(0, 1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		path := "."
		if len(args) > 0 {
			path = args[0]
		}
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("stat path: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("path is not a directory: %s", path)
		}

		start := time.Now()
		s, err := openSession(cmd, path, true)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := s.close(); cerr != nil && err == nil {
				err = cerr
			}
		}()

		changed, err := s.store.Refresh(s.store.Project())
		if err != nil {
			return fmt.Errorf("refreshing dirty state: %w", err)
		}
		targets := changed
		if all, _ := cmd.Flags().GetBool("all"); all {
			targets = nil
			for _, t := range s.store.Project().AllTypes() {
				targets = append(targets, t.QualifiedName)
			}
		}

		result := &BuildOutput{RootDir: s.root}
		for _, class := range targets {
			if _, ok := s.store.Project().Lookup(class); !ok {
				result.Removed = append(result.Removed, class)
				continue
			}
			report, err := buildClass(s.store, class)
			if err != nil {
				return err
			}
			result.Built = append(result.Built, report)
		}
		result.Stats = s.store.Stats()
		result.Duration = time.Since(start).Round(time.Millisecond).String()
		s.logger.Debug("build finished", "classes", len(result.Built), "duration", result.Duration)

		out := cmd.OutOrStdout()
		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			err = writeJSON(out, result)
		} else {
			printBuild(out, result)
		}
		if err != nil {
			return err
		}
		if m, _ := cmd.Flags().GetBool("metrics"); m {
			s.store.WriteMetrics(out)
		}
		return nil
	},
}

func buildClass(st *store.Store, class string) (ClassReport, error) {
	report := ClassReport{Class: class}
	cc, err := st.GetCCFG(class, false)
	if err != nil {
		return report, fmt.Errorf("building %s: %w", class, err)
	}
	report.Members = len(cc.Members)
	report.Links = len(cc.Links)

	summaries, err := st.ClassSideEffects(class)
	if err != nil {
		return report, fmt.Errorf("summarizing %s: %w", class, err)
	}
	for _, s := range summaries {
		if s.Verdict != semantic.VerdictNo {
			report.Writers++
		}
	}
	return report, nil
}

func printBuild(w io.Writer, out *BuildOutput) {
	if len(out.Built) == 0 && len(out.Removed) == 0 {
		fmt.Fprintf(w, "%s is up to date\n", out.RootDir)
		return
	}
	for _, c := range out.Built {
		fmt.Fprintf(w, "built   %s (%d members, %d links, %d writers)\n", c.Class, c.Members, c.Links, c.Writers)
	}
	for _, c := range out.Removed {
		fmt.Fprintf(w, "removed %s\n", c)
	}
	fmt.Fprintf(w, "\n%d classes built in %s, %d graph nodes\n", len(out.Built), out.Duration, out.Stats.NodesIssued)
}

func init() {
	buildCmd.Flags().BoolP("json", "j", false, "Output as JSON")
	buildCmd.Flags().Bool("all", false, "Build every class, not only changed ones")
	buildCmd.Flags().Bool("metrics", false, "Print session metrics in Prometheus text format")
	RootCmd.AddCommand(buildCmd)
}
