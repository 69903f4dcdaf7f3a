package healthcheck

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/l3aro/jflow/internal/config"
	"github.com/l3aro/jflow/pkg/binary"
	"github.com/l3aro/jflow/pkg/cache"
	"github.com/l3aro/jflow/pkg/dirty"
)

// Status values.
const (
	StatusReady    = "ready"
	StatusMissing  = "missing"
	StatusStale    = "stale"
	StatusDisabled = "disabled"
	StatusError    = "error"
)

// ItemStatus represents the health status of one checked input.
type ItemStatus struct {
	Path   string `json:"path"`
	Status string `json:"status"` // "ready", "missing", "stale", "disabled", "error"
	Detail string `json:"detail,omitempty"`
	Error  string `json:"error,omitempty"`
}

// HealthCheckResult contains the full health check output for display.
type HealthCheckResult struct {
	EffectivePath  string       `json:"effective_path,omitempty"`
	EffectiveScope string       `json:"effective_scope"` // "global", "project" or "defaults"
	BinaryAnalysis bool         `json:"binary_analysis"`
	Classpath      []ItemStatus `json:"classpath"`
	BytecodeCache  ItemStatus   `json:"bytecode_cache"`
	DirtyState     ItemStatus   `json:"dirty_state"`
}

// HasError reports whether any check failed.
func (r *HealthCheckResult) HasError() bool {
	for _, c := range r.Classpath {
		if c.Status == StatusError || c.Status == StatusMissing {
			return true
		}
	}
	return r.BytecodeCache.Status == StatusError || r.DirtyState.Status == StatusError
}

// Check performs a health check of cfg for the project in projectDir.
func Check(cfg *config.Config, projectDir string) (*HealthCheckResult, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	result := &HealthCheckResult{
		EffectivePath:  EffectiveConfigPath(projectDir),
		BinaryAnalysis: cfg.BinaryAnalysis,
	}
	result.EffectiveScope = scopeFromPath(result.EffectivePath)

	catalogs := cfg.CatalogPaths(projectDir)
	for _, p := range catalogs {
		result.Classpath = append(result.Classpath, checkCatalog(p))
	}
	result.BytecodeCache = checkBytecodeCache(cfg.BytecodeCachePath(projectDir), catalogs, cfg.BinaryAnalysis)
	result.DirtyState = checkDirtyState(cfg.CachePath(projectDir))

	return result, nil
}

// EffectiveConfigPath returns the highest-priority config file that exists,
// or "" when only defaults apply.
func EffectiveConfigPath(projectDir string) string {
	project := config.ProjectConfigFilePath(projectDir)
	if fileExists(project) {
		return project
	}
	if home, err := os.UserHomeDir(); err == nil {
		global := filepath.Join(home, config.Dir, config.FileName)
		if fileExists(global) {
			return global
		}
	}
	return ""
}

// scopeFromPath determines "global" or "project" scope from a config file path.
func scopeFromPath(path string) string {
	if path == "" {
		return "defaults"
	}

	home, err := os.UserHomeDir()
	if err == nil {
		globalDir := filepath.Join(home, config.Dir)
		if strings.HasPrefix(path, globalDir) {
			return "global"
		}
	}

	return "project"
}

// checkCatalog verifies that a classpath catalog is readable.
func checkCatalog(path string) ItemStatus {
	status := ItemStatus{Path: path}
	if !fileExists(path) {
		status.Status = StatusMissing
		status.Error = "catalog file not found"
		return status
	}
	c, err := binary.LoadCatalog(path)
	if err != nil {
		status.Status = StatusError
		status.Error = err.Error()
		return status
	}
	status.Status = StatusReady
	status.Detail = fmt.Sprintf("%d classes", len(c.ClassNames()))
	return status
}

// checkBytecodeCache loads the persisted cache the way a session would.
func checkBytecodeCache(path string, catalogs []string, enabled bool) ItemStatus {
	status := ItemStatus{Path: path}
	if !enabled {
		status.Status = StatusDisabled
		return status
	}
	if !fileExists(path) {
		status.Status = StatusMissing
		status.Detail = "created on the next session"
		return status
	}
	bc := cache.NewBytecodeCache(path)
	loaded, err := bc.LoadIfFresh(catalogs)
	switch {
	case err != nil:
		status.Status = StatusError
		status.Error = err.Error()
	case !loaded:
		status.Status = StatusStale
		status.Detail = "older than a classpath catalog; rebuilt on the next session"
	default:
		status.Status = StatusReady
		status.Detail = fmt.Sprintf("%d records", bc.Len())
	}
	return status
}

// checkDirtyState loads the dirty-tracking state.
func checkDirtyState(cacheDir string) ItemStatus {
	t := dirty.New(dirty.WithCacheDir(cacheDir))
	status := ItemStatus{Path: t.Path()}
	if !fileExists(t.Path()) {
		status.Status = StatusMissing
		status.Detail = "created by the first build"
		return status
	}
	if err := t.Load(); err != nil {
		status.Status = StatusError
		status.Error = err.Error()
		return status
	}
	status.Status = StatusReady
	status.Detail = fmt.Sprintf("%d files tracked, %d dirty", t.TotalCount(), t.Count())
	return status
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
