package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/l3aro/jflow/internal/config"
	"github.com/l3aro/jflow/pkg/cache"
	"github.com/l3aro/jflow/pkg/dirty"
)

// CacheStats describes the persisted state of a project.
type CacheStats struct {
	BytecodeFile string         `json:"bytecode_file"`
	Records      map[string]int `json:"records"`
	StateFile    string         `json:"state_file"`
	TrackedFiles int            `json:"tracked_files"`
	DirtyFiles   int            `json:"dirty_files"`
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the persisted caches",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats [path]",
	Short: "Show bytecode cache and dirty state statistics",
	Args:  cobra.RangeArgs(0, 1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, conf, err := projectConfig(args)
		if err != nil {
			return err
		}

		bc := cache.NewBytecodeCache(conf.BytecodeCachePath(root))
		if err := bc.Load(); err != nil {
			return err
		}
		tracker, err := dirty.Open(dirty.WithCacheDir(conf.CachePath(root)))
		if err != nil {
			return fmt.Errorf("loading dirty state: %w", err)
		}

		stats := &CacheStats{
			BytecodeFile: bc.Path(),
			Records:      make(map[string]int),
			StateFile:    tracker.Path(),
			TrackedFiles: tracker.TotalCount(),
			DirtyFiles:   tracker.Count(),
		}
		for _, k := range bc.Keys() {
			rec, _ := bc.Get(k)
			stats.Records[rec[cache.AttrType]]++
		}

		out := cmd.OutOrStdout()
		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			return writeJSON(out, stats)
		}
		fmt.Fprintf(out, "Bytecode cache: %s\n", stats.BytecodeFile)
		for _, typ := range []string{cache.TypeClass, cache.TypeMethod, cache.TypeField} {
			fmt.Fprintf(out, "  %-7s %d\n", typ, stats.Records[typ])
		}
		fmt.Fprintf(out, "Dirty state: %s\n", stats.StateFile)
		fmt.Fprintf(out, "  tracked %d\n", stats.TrackedFiles)
		fmt.Fprintf(out, "  dirty   %d\n", stats.DirtyFiles)
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear [path]",
	Short: "Delete the bytecode cache and dirty state",
	Args:  cobra.RangeArgs(0, 1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, conf, err := projectConfig(args)
		if err != nil {
			return err
		}
		tracker := dirty.New(dirty.WithCacheDir(conf.CachePath(root)))
		for _, p := range []string{conf.BytecodeCachePath(root), tracker.Path()} {
			if err := os.Remove(p); err != nil {
				if os.IsNotExist(err) {
					continue
				}
				return fmt.Errorf("removing %s: %w", p, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", p)
		}
		return nil
	},
}

// projectConfig loads the configuration of the project at args[0] or ".".
func projectConfig(args []string) (string, *config.Config, error) {
	path := "."
	if len(args) > 0 {
		path = args[0]
	}
	root, err := filepath.Abs(path)
	if err != nil {
		return "", nil, fmt.Errorf("getting absolute path: %w", err)
	}
	conf, err := config.Load(root)
	if err != nil {
		return "", nil, fmt.Errorf("loading config: %w", err)
	}
	return root, conf, nil
}

func init() {
	cacheStatsCmd.Flags().BoolP("json", "j", false, "Output as JSON")
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	RootCmd.AddCommand(cacheCmd)
}
