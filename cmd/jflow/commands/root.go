// Package commands provides the CLI commands for jflow.
package commands

import (
	"github.com/spf13/cobra"
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "jflow",
	Short: "jflow - Control-flow and data-flow graphs for Java",
	Long: `jflow builds control-flow graphs (CFG), class control-flow graphs (CCFG)
and field side-effect summaries for Java source trees.

Commands:
  cfg         Build the CFG of one member
  dfg         Show def-use chains of one member
  slice       Backward or forward slice of one member
  ccfg        Build the CCFG of a class
  effects     Summarize the field side effects of a class
  calls       Build the call graph of a project
  impact      Find all callers of a method
  build       Build every changed class of a project
  init        Create a project configuration interactively
  cache       Inspect or clear the persisted caches
  doctor      Check configuration, classpath and caches

Use "jflow [command] --help" for more information about a command.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	return RootCmd.Execute()
}

func init() {
	RootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose logging")
	RootCmd.PersistentFlags().Bool("binary", false, "Resolve external classes through the classpath catalogs")
}
