// Package main implements the jflow CLI.
// It builds control-flow graphs, class control-flow graphs and side-effect
// summaries for Java projects.
package main

import (
	"fmt"
	"os"

	"github.com/l3aro/jflow/cmd/jflow/commands"
	"github.com/l3aro/jflow/pkg/cache"
)

var (
	version   = "dev"
	buildTime = ""
)

func main() {
	commands.RootCmd.Version = version
	if buildTime != "" {
		commands.RootCmd.Version = version + " (" + buildTime + ")"
	}
	commands.RootCmd.SetVersionTemplate(`jflow version {{.Version}}
`)

	if err := commands.Execute(); err != nil {
		if cache.IsFatal(err) {
			fmt.Fprintln(os.Stderr, "fatal:", err)
		}
		os.Exit(1)
	}
}
