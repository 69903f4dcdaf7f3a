package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/l3aro/jflow/internal/config"
	"github.com/l3aro/jflow/internal/log"
	"github.com/l3aro/jflow/pkg/binary"
	"github.com/l3aro/jflow/pkg/dirty"
	"github.com/l3aro/jflow/pkg/javasrc"
	"github.com/l3aro/jflow/pkg/store"
	"github.com/l3aro/jflow/pkg/syntax"
)

// session bundles what one command invocation needs: the project root, its
// configuration and an open store.
type session struct {
	root    string
	conf    *config.Config
	logger  log.Logger
	store   *store.Store
	tracker *dirty.Tracker
}

// openSession loads the configuration for path, parses the Java sources and
// opens a store. A directory is parsed recursively; a file is parsed alone.
func openSession(cmd *cobra.Command, path string, track bool) (*session, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("getting absolute path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat path: %w", err)
	}
	root := absPath
	if !info.IsDir() {
		root = filepath.Dir(absPath)
	}

	conf, err := config.Load(root)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if v, _ := cmd.Flags().GetBool("verbose"); v {
		conf.Verbose = true
	}
	if b, _ := cmd.Flags().GetBool("binary"); b {
		conf.BinaryAnalysis = true
	}

	logger := log.New(log.LoggerConfig{
		Level:      conf.Level(),
		JSONOutput: conf.JSONLogs,
		Output:     cmd.ErrOrStderr(),
	})

	parser := javasrc.New(javasrc.Options{Logger: logger})
	var project *syntax.Project
	if info.IsDir() {
		project, err = parser.ParseDir(cmd.Context(), absPath)
	} else {
		var content []byte
		content, err = os.ReadFile(absPath)
		if err != nil {
			return nil, fmt.Errorf("reading file %s: %w", path, err)
		}
		project, err = parser.ParseSource(cmd.Context(), filepath.Base(absPath), content)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	opts := store.Options{
		Project:         project,
		Root:            root,
		BinaryAnalysis:  conf.BinaryAnalysis,
		MaxCachedGraphs: conf.MaxCachedGraphs,
		RecursionCap:    conf.RecursionCap,
		BasicBlocks:     conf.BasicBlocks,
		Logger:          logger,
	}
	if conf.BinaryAnalysis {
		opts.CacheFile = conf.BytecodeCachePath(root)
		if len(conf.Classpath) > 0 {
			opts.CatalogFiles = conf.CatalogPaths(root)
			catalog, err := binary.LoadCatalog(opts.CatalogFiles...)
			if err != nil {
				return nil, fmt.Errorf("loading classpath: %w", err)
			}
			opts.Introspector = catalog
		}
	}

	s := &session{root: root, conf: conf, logger: logger}
	if track {
		s.tracker, err = dirty.Open(dirty.WithCacheDir(conf.CachePath(root)))
		if err != nil {
			return nil, fmt.Errorf("loading dirty state: %w", err)
		}
		opts.Tracker = s.tracker
	}

	s.store, err = store.Open(opts)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// close ends the store session and saves the dirty state if tracked.
func (s *session) close() error {
	err := s.store.Destroy()
	if s.tracker != nil {
		if serr := s.tracker.Save(); serr != nil && err == nil {
			err = serr
		}
	}
	return err
}

func writeJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}
