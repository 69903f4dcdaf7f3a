package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/l3aro/jflow/internal/config"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize jflow configuration interactively",
	Long: `Guides you through setting up jflow configuration step by step.
Creates a config file with binary analysis, cache and graph settings.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInit(cmd.OutOrStdout())
	},
}

// initAnswers holds the values collected by the init wizard.
type initAnswers struct {
	binaryAnalysis bool
	classpath      string
	recursionCap   string
	basicBlocks    bool
	logLevel       string
	location       string
}

func runInit(out io.Writer) error {
	defaults := config.DefaultConfig()
	answers := initAnswers{
		recursionCap: strconv.Itoa(defaults.RecursionCap),
		logLevel:     defaults.LogLevel,
		location:     "project",
	}

	// === SECTION 1: Analysis ===
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Binary Analysis").
				Description("Resolve library classes through class catalogs on the classpath?").
				Affirmative("Yes").
				Negative("No, project sources only").
				Value(&answers.binaryAnalysis),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}

	if answers.binaryAnalysis {
		form = huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Classpath catalogs").
					Description("Comma-separated YAML catalog files, relative to the project").
					Placeholder("lib/jdk.yaml").
					Value(&answers.classpath),
			),
		)
		if err := form.Run(); err != nil {
			return fmt.Errorf("interactive prompt failed: %w", err)
		}
	}

	// === SECTION 2: Graphs ===
	form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Side-effect recursion cap").
				Description("Maximum routines visited by one side-effect query").
				Placeholder(answers.recursionCap).
				Validate(validatePositive).
				Value(&answers.recursionCap),
			huh.NewConfirm().
				Title("Basic blocks").
				Description("Group CFG nodes into basic blocks?").
				Value(&answers.basicBlocks),
			huh.NewSelect[string]().
				Title("Log level").
				Options(
					huh.NewOption("Debug", "debug"),
					huh.NewOption("Info", "info"),
					huh.NewOption("Warn", "warn"),
					huh.NewOption("Error", "error"),
				).
				Value(&answers.logLevel),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}

	// === SECTION 3: Config Location ===
	form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Save Configuration").
				Description("Where to save the configuration file?").
				Options(
					huh.NewOption("Project (./.jflow/config.yaml)", "project"),
					huh.NewOption("Global (~/.jflow/config.yaml)", "global"),
				).
				Value(&answers.location),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}

	configPath, err := initConfigPath(answers.location)
	if err != nil {
		return err
	}

	// Check if config already exists
	if _, err := os.Stat(configPath); err == nil {
		var overwrite bool
		form = huh.NewForm(
			huh.NewGroup(
				huh.NewConfirm().
					Title("Config file exists").
					Description(fmt.Sprintf("Overwrite existing config at %s?", configPath)).
					Affirmative("Overwrite").
					Negative("Cancel").
					Value(&overwrite),
			),
		)
		if err := form.Run(); err != nil {
			return fmt.Errorf("interactive prompt failed: %w", err)
		}
		if !overwrite {
			fmt.Fprintln(out, "Cancelled.")
			return nil
		}
	}

	cfg, err := answers.config()
	if err != nil {
		return err
	}
	return writeInitConfig(out, cfg, configPath)
}

func validatePositive(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return fmt.Errorf("enter a positive number")
	}
	return nil
}

func initConfigPath(location string) (string, error) {
	if location == "global" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting home directory: %w", err)
		}
		return filepath.Join(home, config.Dir, config.FileName), nil
	}
	return filepath.Join(config.Dir, config.FileName), nil
}

// config turns the wizard answers into a validated Config.
func (a initAnswers) config() (*config.Config, error) {
	cfg := config.DefaultConfig()
	cfg.BinaryAnalysis = a.binaryAnalysis
	if a.binaryAnalysis {
		for _, p := range strings.Split(a.classpath, ",") {
			if p = strings.TrimSpace(p); p != "" {
				cfg.Classpath = append(cfg.Classpath, p)
			}
		}
	}
	if a.recursionCap != "" {
		n, err := strconv.Atoi(strings.TrimSpace(a.recursionCap))
		if err != nil {
			return nil, fmt.Errorf("invalid recursion cap %q: %w", a.recursionCap, err)
		}
		cfg.RecursionCap = n
	}
	cfg.BasicBlocks = a.basicBlocks
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func writeInitConfig(out io.Writer, cfg *config.Config, configPath string) error {
	fmt.Fprintln(out, "\n=== Configuration Preview ===")
	fmt.Fprintf(out, "Config path: %s\n", configPath)
	fmt.Fprintf(out, "Binary analysis: %t\n", cfg.BinaryAnalysis)
	if len(cfg.Classpath) > 0 {
		fmt.Fprintf(out, "Classpath: %s\n", strings.Join(cfg.Classpath, ", "))
	}
	fmt.Fprintf(out, "Recursion cap: %d\n", cfg.RecursionCap)
	fmt.Fprintf(out, "Basic blocks: %t\n", cfg.BasicBlocks)
	fmt.Fprintf(out, "Log level: %s\n", cfg.LogLevel)
	fmt.Fprintln(out, "================================")

	if err := cfg.Save(configPath); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	// Read it back through the loader.
	if _, err := config.LoadFromFile(configPath); err != nil {
		return fmt.Errorf("loading saved config: %w", err)
	}
	fmt.Fprintf(out, "Configuration saved to: %s\n", configPath)
	return nil
}

func init() {
	RootCmd.AddCommand(initCmd)
}
