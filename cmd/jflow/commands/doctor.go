package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/l3aro/jflow/internal/healthcheck"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor [path]",
	Short: "Run health checks on configuration and caches",
	Long: `Checks the effective configuration, verifies that the classpath catalogs
are readable and that the bytecode cache and dirty state can be loaded.`,
	Args: cobra.RangeArgs(0, 1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, conf, err := projectConfig(args)
		if err != nil {
			return err
		}

		result, err := healthcheck.Check(conf, root)
		if err != nil {
			return fmt.Errorf("health check failed: %w", err)
		}

		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			if err := writeJSON(cmd.OutOrStdout(), result); err != nil {
				return err
			}
		} else {
			displayDoctorResult(cmd.OutOrStdout(), result)
		}

		if result.HasError() {
			return fmt.Errorf("health check failed: one or more inputs are not usable")
		}
		return nil
	},
}

func displayDoctorResult(w io.Writer, result *healthcheck.HealthCheckResult) {
	if result.EffectivePath != "" {
		fmt.Fprintf(w, "Using config: %s (%s)\n", result.EffectivePath, result.EffectiveScope)
	} else {
		fmt.Fprintln(w, "Using config: built-in defaults")
	}
	fmt.Fprintf(w, "Binary analysis: %t\n", result.BinaryAnalysis)

	fmt.Fprintf(w, "\nClasspath (%d):\n", len(result.Classpath))
	for _, c := range result.Classpath {
		printItemStatus(w, c)
	}

	fmt.Fprintln(w, "\nBytecode cache:")
	printItemStatus(w, result.BytecodeCache)

	fmt.Fprintln(w, "\nDirty state:")
	printItemStatus(w, result.DirtyState)
}

func printItemStatus(w io.Writer, s healthcheck.ItemStatus) {
	fmt.Fprintf(w, "  %s %s %s\n", formatStatusIcon(s.Status), s.Status, s.Path)
	if s.Detail != "" {
		fmt.Fprintf(w, "    %s\n", s.Detail)
	}
	if s.Error != "" {
		fmt.Fprintf(w, "    Error: %s\n", s.Error)
	}
}

func formatStatusIcon(status string) string {
	switch status {
	case healthcheck.StatusReady:
		return "✓"
	case healthcheck.StatusStale, healthcheck.StatusMissing:
		return "◐"
	case healthcheck.StatusDisabled:
		return "-"
	case healthcheck.StatusError:
		return "✗"
	default:
		return "?"
	}
}

func init() {
	doctorCmd.Flags().BoolP("json", "j", false, "Output as JSON")
	RootCmd.AddCommand(doctorCmd)
}
