package healthcheck

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/l3aro/jflow/internal/config"
	"github.com/l3aro/jflow/pkg/cache"
)

const catalog = `
classes:
  - name: java.util.List
    kind: interface
    modifiers: [public, abstract]
`

func setupProject(t *testing.T) (string, *config.Config) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("USERPROFILE", t.TempDir())
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "jdk.yaml"), []byte(catalog), 0644); err != nil {
		t.Fatalf("writing catalog: %v", err)
	}
	cfg := config.DefaultConfig()
	cfg.BinaryAnalysis = true
	cfg.Classpath = []string{"jdk.yaml"}
	return dir, cfg
}

func TestCheckWithNilConfig(t *testing.T) {
	_, err := Check(nil, "")
	if err == nil {
		t.Error("Expected error for nil config, got nil")
	}
}

func TestCheckFreshProject(t *testing.T) {
	dir, cfg := setupProject(t)

	result, err := Check(cfg, dir)
	if err != nil {
		t.Fatalf("Check() failed: %v", err)
	}

	if result.EffectiveScope != "defaults" {
		t.Errorf("EffectiveScope = %q, want %q", result.EffectiveScope, "defaults")
	}
	if len(result.Classpath) != 1 {
		t.Fatalf("len(Classpath) = %d, want 1", len(result.Classpath))
	}
	if result.Classpath[0].Status != StatusReady || result.Classpath[0].Detail != "1 classes" {
		t.Errorf("Classpath[0] = %+v, want ready with 1 classes", result.Classpath[0])
	}
	if result.BytecodeCache.Status != StatusMissing {
		t.Errorf("BytecodeCache.Status = %q, want %q", result.BytecodeCache.Status, StatusMissing)
	}
	if result.DirtyState.Status != StatusMissing {
		t.Errorf("DirtyState.Status = %q, want %q", result.DirtyState.Status, StatusMissing)
	}
	if result.HasError() {
		t.Error("HasError() = true for a fresh project")
	}
}

func TestCheckMissingCatalog(t *testing.T) {
	dir, cfg := setupProject(t)
	cfg.Classpath = append(cfg.Classpath, "nope.yaml")

	result, err := Check(cfg, dir)
	if err != nil {
		t.Fatalf("Check() failed: %v", err)
	}
	if result.Classpath[1].Status != StatusMissing {
		t.Errorf("Classpath[1].Status = %q, want %q", result.Classpath[1].Status, StatusMissing)
	}
	if !result.HasError() {
		t.Error("HasError() = false with a missing catalog")
	}
}

func TestCheckBytecodeCache(t *testing.T) {
	dir, cfg := setupProject(t)
	path := cfg.BytecodeCachePath(dir)

	bc := cache.NewBytecodeCache(path)
	bc.Put("java.util.List", cache.Record{cache.AttrType: cache.TypeClass, cache.AttrName: "java.util.List", cache.AttrKind: "interface"})
	if err := bc.Save(); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	// Cache newer than the catalog.
	old := time.Now().Add(-time.Hour)
	if err := os.Chtimes(filepath.Join(dir, "jdk.yaml"), old, old); err != nil {
		t.Fatalf("Chtimes() failed: %v", err)
	}
	result, err := Check(cfg, dir)
	if err != nil {
		t.Fatalf("Check() failed: %v", err)
	}
	if result.BytecodeCache.Status != StatusReady {
		t.Errorf("BytecodeCache = %+v, want ready", result.BytecodeCache)
	}

	// Catalog touched after the cache was written.
	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(filepath.Join(dir, "jdk.yaml"), future, future); err != nil {
		t.Fatalf("Chtimes() failed: %v", err)
	}
	result, err = Check(cfg, dir)
	if err != nil {
		t.Fatalf("Check() failed: %v", err)
	}
	if result.BytecodeCache.Status != StatusStale {
		t.Errorf("BytecodeCache.Status = %q, want %q", result.BytecodeCache.Status, StatusStale)
	}
}

func TestCheckMalformedCache(t *testing.T) {
	dir, cfg := setupProject(t)
	path := cfg.BytecodeCachePath(dir)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("not msgpack"), 0644); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-time.Hour)
	if err := os.Chtimes(filepath.Join(dir, "jdk.yaml"), old, old); err != nil {
		t.Fatal(err)
	}

	result, err := Check(cfg, dir)
	if err != nil {
		t.Fatalf("Check() failed: %v", err)
	}
	if result.BytecodeCache.Status != StatusError {
		t.Errorf("BytecodeCache.Status = %q, want %q", result.BytecodeCache.Status, StatusError)
	}
	if !result.HasError() {
		t.Error("HasError() = false with a malformed cache")
	}
}

func TestCheckBinaryAnalysisDisabled(t *testing.T) {
	dir, cfg := setupProject(t)
	cfg.BinaryAnalysis = false

	result, err := Check(cfg, dir)
	if err != nil {
		t.Fatalf("Check() failed: %v", err)
	}
	if result.BytecodeCache.Status != StatusDisabled {
		t.Errorf("BytecodeCache.Status = %q, want %q", result.BytecodeCache.Status, StatusDisabled)
	}
}

func TestEffectiveConfigPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	dir := t.TempDir()

	if got := EffectiveConfigPath(dir); got != "" {
		t.Errorf("EffectiveConfigPath() = %q, want empty", got)
	}

	global := filepath.Join(home, config.Dir, config.FileName)
	if err := config.DefaultConfig().Save(global); err != nil {
		t.Fatal(err)
	}
	if got := EffectiveConfigPath(dir); got != global {
		t.Errorf("EffectiveConfigPath() = %q, want %q", got, global)
	}
	if got := scopeFromPath(global); got != "global" {
		t.Errorf("scopeFromPath() = %q, want global", got)
	}

	project := config.ProjectConfigFilePath(dir)
	if err := config.DefaultConfig().Save(project); err != nil {
		t.Fatal(err)
	}
	if got := EffectiveConfigPath(dir); got != project {
		t.Errorf("EffectiveConfigPath() = %q, want %q", got, project)
	}
	if got := scopeFromPath(project); got != "project" {
		t.Errorf("scopeFromPath() = %q, want project", got)
	}
}
