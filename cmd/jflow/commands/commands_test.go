package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/jflow/internal/config"
)

const cartSrc = `package shop;

public class Cart {
    private int total = 0;

    void bump(int p) {
        if (p > 0) {
            total += p;
        }
    }

    int total() {
        return total;
    }

    enum Mode { FAST, SLOW }
}
`

func writeProject(t *testing.T) string {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("USERPROFILE", t.TempDir())
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "shop"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "shop", "Cart.java"), []byte(cartSrc), 0644))
	return dir
}

// run executes the root command with fresh flag values.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	for _, name := range []string{"verbose", "binary"} {
		require.NoError(t, RootCmd.PersistentFlags().Set(name, "false"))
	}
	for _, cmd := range []*cobra.Command{cfgCmd, dfgCmd, ccfgCmd, effectsCmd, buildCmd, cacheStatsCmd, callsCmd, impactCmd, doctorCmd, sliceCmd} {
		require.NoError(t, cmd.Flags().Set("json", "false"))
	}
	require.NoError(t, buildCmd.Flags().Set("all", "false"))
	require.NoError(t, buildCmd.Flags().Set("metrics", "false"))
	require.NoError(t, impactCmd.Flags().Set("depth", "0"))
	require.NoError(t, sliceCmd.Flags().Set("forward", "false"))
	require.NoError(t, sliceCmd.Flags().Set("var", ""))

	var out, errOut bytes.Buffer
	RootCmd.SetOut(&out)
	RootCmd.SetErr(&errOut)
	RootCmd.SetArgs(args)
	err := RootCmd.Execute()
	return out.String(), err
}

func TestSplitMember(t *testing.T) {
	tests := []struct {
		ref    string
		class  string
		member string
		ok     bool
	}{
		{"shop.Cart#bump", "shop.Cart", "bump", true},
		{"Cart#bump(int)", "Cart", "bump(int)", true},
		{"Cart#<clinit>#0", "Cart", "<clinit>#0", true},
		{"Cart.Mode#FAST", "Cart.Mode", "FAST", true},
		{"Cart", "", "", false},
		{"#bump", "", "", false},
		{"Cart#", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			class, member, err := splitMember(tt.ref)
			if !tt.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.class, class)
			assert.Equal(t, tt.member, member)
		})
	}
}

func TestCFGCommand_JSON(t *testing.T) {
	dir := writeProject(t)

	out, err := run(t, "cfg", dir, "Cart#bump", "--json")
	require.NoError(t, err)

	var info struct {
		Member               string `json:"member"`
		Kind                 string `json:"kind"`
		CyclomaticComplexity int    `json:"cyclomatic_complexity"`
		Nodes                []struct {
			Kind string `json:"kind"`
		} `json:"nodes"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, "shop.Cart.bump(int)", info.Member)
	assert.Equal(t, "method", info.Kind)
	assert.Equal(t, 2, info.CyclomaticComplexity)
	assert.NotEmpty(t, info.Nodes)
}

func TestCFGCommand_Overloads(t *testing.T) {
	dir := writeProject(t)

	out, err := run(t, "cfg", dir, "shop.Cart#total")
	require.NoError(t, err)
	assert.Contains(t, out, "=== CFG for field: shop.Cart.total ===")
	assert.Contains(t, out, "=== CFG for method: shop.Cart.total() ===")
}

func TestCFGCommand_NotFound(t *testing.T) {
	dir := writeProject(t)

	_, err := run(t, "cfg", dir, "Cart#missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `member "missing" not found in shop.Cart`)

	_, err = run(t, "cfg", dir, "Nope#x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `class "Nope" not found`)
}

func TestDFGCommand(t *testing.T) {
	dir := writeProject(t)

	out, err := run(t, "dfg", dir, "Cart#bump(int)", "--json")
	require.NoError(t, err)

	var result DFGOutput
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "shop.Cart.bump(int)", result.Member)
	assert.NotEmpty(t, result.Definitions)
	assert.NotEmpty(t, result.Chains)
}

func TestCCFGCommand(t *testing.T) {
	dir := writeProject(t)

	out, err := run(t, "ccfg", dir, "Cart")
	require.NoError(t, err)
	assert.Contains(t, out, "=== CCFG for class shop.Cart ===")
	assert.Contains(t, out, "shop.Cart.bump(int)")
	assert.Contains(t, out, "=== CCFG for enum shop.Cart.Mode ===")
}

func TestEffectsCommand(t *testing.T) {
	dir := writeProject(t)

	out, err := run(t, "effects", dir, "Cart", "--json")
	require.NoError(t, err)

	var result struct {
		Class    string `json:"class"`
		Routines []struct {
			Method  string `json:"method"`
			Verdict string `json:"verdict"`
		} `json:"routines"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "shop.Cart", result.Class)

	verdicts := make(map[string]string)
	for _, r := range result.Routines {
		verdicts[r.Method] = r.Verdict
	}
	assert.Equal(t, "YES", verdicts["shop.Cart.bump(int)"])
	assert.Equal(t, "NO", verdicts["shop.Cart.total()"])
}

func TestSliceCommand(t *testing.T) {
	dir := writeProject(t)

	out, err := run(t, "slice", dir, "Cart#bump", "--line", "24", "--json")
	require.NoError(t, err)
	var result SliceOutput
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "shop.Cart.bump(int)", result.Member)
	assert.Equal(t, "backward", result.Direction)
	assert.Subset(t, result.SliceLines, []int{23, 24})

	out, err = run(t, "slice", dir, "Cart#bump", "--line", "23", "--forward")
	require.NoError(t, err)
	assert.Contains(t, out, "=== Slice for shop.Cart.bump(int) (line 23, forward) ===")
	assert.Contains(t, out, "24 |")

	_, err = run(t, "slice", dir, "Cart#bump", "--line", "2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no statement at line 2")
}

func TestFormatLineRanges(t *testing.T) {
	assert.Equal(t, "none", formatLineRanges(nil))
	assert.Equal(t, "3", formatLineRanges([]int{3}))
	assert.Equal(t, "1-3, 5, 7-8", formatLineRanges([]int{1, 2, 3, 5, 7, 8}))
}

func TestBuildCommand_Incremental(t *testing.T) {
	dir := writeProject(t)

	out, err := run(t, "build", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "built   shop.Cart ")
	assert.Contains(t, out, "built   shop.Cart.Mode ")
	assert.FileExists(t, filepath.Join(dir, config.Dir, "cache", "dirty.json"))

	out, err = run(t, "build", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "is up to date")

	out, err = run(t, "build", dir, "--all", "--metrics")
	require.NoError(t, err)
	assert.Contains(t, out, "built   shop.Cart ")
	assert.Contains(t, out, `jflow_graph_builds_total{kind="ccfg"}`)

	require.NoError(t, os.Remove(filepath.Join(dir, "shop", "Cart.java")))
	out, err = run(t, "build", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "removed shop.Cart")
}

func TestBuildCommand_RequiresDirectory(t *testing.T) {
	dir := writeProject(t)

	_, err := run(t, "build", filepath.Join(dir, "shop", "Cart.java"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a directory")
}

func TestCacheCommands(t *testing.T) {
	dir := writeProject(t)

	_, err := run(t, "build", dir)
	require.NoError(t, err)

	out, err := run(t, "cache", "stats", dir, "--json")
	require.NoError(t, err)
	var stats CacheStats
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, 1, stats.TrackedFiles)
	assert.Zero(t, stats.DirtyFiles)

	out, err = run(t, "cache", "clear", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "dirty.json")
	assert.NoFileExists(t, filepath.Join(dir, config.Dir, "cache", "dirty.json"))
}

func TestCallsAndImpactCommands(t *testing.T) {
	dir := writeProject(t)
	src := `package shop;

public class Register {
    void ring(Cart c) {
        c.bump(3);
    }

    void close(Cart c) {
        ring(c);
    }
}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "shop", "Register.java"), []byte(src), 0644))

	out, err := run(t, "calls", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "shop.Register.ring(shop.Cart) -> shop.Cart.bump(int)")

	out, err = run(t, "impact", dir, "Cart#bump", "--json")
	require.NoError(t, err)
	var impact ImpactOutput
	require.NoError(t, json.Unmarshal([]byte(out), &impact))
	assert.Equal(t, "shop.Cart.bump(int)", impact.Target)
	assert.Equal(t, 2, impact.Count)

	out, err = run(t, "impact", dir, "Cart#bump", "--depth", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "shop.Register.ring(shop.Cart) -> shop.Cart.bump(int)")
	assert.NotContains(t, out, "shop.Register.close")

	_, err = run(t, "impact", dir, "Cart#total")
	require.NoError(t, err)
}

func TestDoctorCommand(t *testing.T) {
	dir := writeProject(t)

	out, err := run(t, "doctor", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Using config: built-in defaults")
	assert.Contains(t, out, "disabled")

	require.NoError(t, os.MkdirAll(filepath.Join(dir, config.Dir), 0755))
	conf := "binary_analysis: true\nclasspath: [missing.yaml]\n"
	require.NoError(t, os.WriteFile(config.ProjectConfigFilePath(dir), []byte(conf), 0644))
	out, err = run(t, "doctor", dir)
	require.Error(t, err)
	assert.Contains(t, out, "missing.yaml")
}

func TestInitAnswers_Config(t *testing.T) {
	a := initAnswers{
		binaryAnalysis: true,
		classpath:      " lib/jdk.yaml, ,lib/extra.yaml",
		recursionCap:   "200",
		basicBlocks:    true,
		logLevel:       "debug",
	}
	cfg, err := a.config()
	require.NoError(t, err)
	assert.True(t, cfg.BinaryAnalysis)
	assert.Equal(t, []string{"lib/jdk.yaml", "lib/extra.yaml"}, cfg.Classpath)
	assert.Equal(t, 200, cfg.RecursionCap)
	assert.True(t, cfg.BasicBlocks)
	assert.Equal(t, "debug", cfg.LogLevel)

	_, err = initAnswers{recursionCap: "many"}.config()
	assert.Error(t, err)
	_, err = initAnswers{recursionCap: "0"}.config()
	assert.Error(t, err)
}

func TestWriteInitConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), config.Dir, config.FileName)
	cfg := config.DefaultConfig()
	cfg.BasicBlocks = true

	var out bytes.Buffer
	require.NoError(t, writeInitConfig(&out, cfg, path))
	assert.Contains(t, out.String(), "Configuration saved to: "+path)

	loaded, err := config.LoadFromFile(path)
	require.NoError(t, err)
	assert.True(t, loaded.BasicBlocks)
}

func TestValidatePositive(t *testing.T) {
	assert.NoError(t, validatePositive("5"))
	assert.NoError(t, validatePositive(" 12 "))
	assert.Error(t, validatePositive("0"))
	assert.Error(t, validatePositive("x"))
}
