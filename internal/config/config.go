// Package config holds the texbuilder configuration: executable paths for the
// external toolchain, the run budget, and optional history/metrics settings.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	builderrors "git.home.luguber.info/inful/texbuilder/internal/errors"
)

// Tool names recognized in the tools mapping.
const (
	ToolLatex     = "latex"
	ToolPDFLatex  = "pdflatex"
	ToolDvips     = "dvips"
	ToolPs2pdf    = "ps2pdf"
	ToolBibtex    = "bibtex"
	ToolMakeindex = "makeindex"
)

// Config represents the application configuration
type Config struct {
	// Tools maps logical tool names to executable paths. Bare names are
	// resolved through PATH by the runner; an empty or missing entry is a
	// configuration error when that tool is needed.
	Tools        map[string]string `yaml:"tools"`
	SearchPaths  []string          `yaml:"search_paths,omitempty"`
	MaxRuns      int               `yaml:"max_runs"`
	ExtraRuns    int               `yaml:"extra_runs"`
	IndexStyle   string            `yaml:"index_style,omitempty"`
	IndexOptions []string          `yaml:"index_options,omitempty"`
	Tmpdir       string            `yaml:"tmpdir,omitempty"`
	History      HistoryConfig     `yaml:"history,omitempty"`
	Metrics      MetricsConfig     `yaml:"metrics,omitempty"`
}

// HistoryConfig enables the SQLite build-history store when Path is set.
type HistoryConfig struct {
	Path string `yaml:"path,omitempty"`
}

// MetricsConfig enables the Prometheus endpoint in watch mode when Listen is set.
type MetricsConfig struct {
	Listen string `yaml:"listen,omitempty"`
}

// DefaultMaxRuns is the run budget applied when none is configured.
const DefaultMaxRuns = 10

// Default returns a configuration with every tool resolved through PATH.
func Default() *Config {
	return &Config{
		Tools: map[string]string{
			ToolLatex:     "latex",
			ToolPDFLatex:  "pdflatex",
			ToolDvips:     "dvips",
			ToolPs2pdf:    "ps2pdf",
			ToolBibtex:    "bibtex",
			ToolMakeindex: "makeindex",
		},
		MaxRuns: DefaultMaxRuns,
	}
}

// Load loads configuration from the specified file. An empty path returns the
// defaults. Environment variable references in the YAML are expanded, and
// TEXBUILDER_* overrides are applied afterwards.
func Load(configPath string) (*Config, error) {
	config := Default()
	if configPath == "" {
		applyEnvOverrides(config)
		return config, nil
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))

	if err := yaml.Unmarshal([]byte(expandedData), config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// A tools section in the file replaces only the entries it names.
	defaults := Default()
	for name, path := range defaults.Tools {
		if config.Tools[name] == "" {
			if config.Tools == nil {
				config.Tools = map[string]string{}
			}
			config.Tools[name] = path
		}
	}
	if config.MaxRuns <= 0 {
		config.MaxRuns = DefaultMaxRuns
	}
	if config.ExtraRuns < 0 {
		config.ExtraRuns = 0
	}

	applyEnvOverrides(config)
	return config, nil
}

// applyEnvOverrides applies TEXBUILDER_* environment overrides. Tool paths use
// TEXBUILDER_<TOOL> (e.g. TEXBUILDER_PDFLATEX); the run budget uses
// TEXBUILDER_MAX_RUNS.
func applyEnvOverrides(config *Config) {
	for _, name := range []string{ToolLatex, ToolPDFLatex, ToolDvips, ToolPs2pdf, ToolBibtex, ToolMakeindex} {
		envName := "TEXBUILDER_" + toEnvSuffix(name)
		if v := os.Getenv(envName); v != "" {
			config.Tools[name] = v
		}
	}
	if v := os.Getenv("TEXBUILDER_MAX_RUNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.MaxRuns = n
		}
	}
}

func toEnvSuffix(tool string) string {
	out := make([]byte, len(tool))
	for i := 0; i < len(tool); i++ {
		c := tool[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}

// ToolPath resolves the executable path for a logical tool name. Missing or
// empty entries are reported as configuration errors before any process runs.
func (c *Config) ToolPath(name string) (string, error) {
	path, ok := c.Tools[name]
	if !ok || path == "" {
		return "", builderrors.ConfigError(fmt.Sprintf("no executable path configured for tool %q", name))
	}
	return path, nil
}

// Validate fails fast when any of the named tools has no configured
// executable path, reporting the first missing one. Callers pass only the
// tools the resolved chain will invoke; auxiliary tools (bibtex, makeindex)
// are resolved at invocation time instead, so an unconfigured index tool does
// not fail a job that produces no index.
func (c *Config) Validate(toolNames ...string) error {
	for _, name := range toolNames {
		if _, err := c.ToolPath(name); err != nil {
			return err
		}
	}
	return nil
}

// exampleConfig is the commented template written by Init. It must stay
// loadable by Load as-is.
const exampleConfig = `# texbuilder configuration.

# Executable paths for the external toolchain. Bare names are resolved
# through PATH; use absolute paths to pin a specific installation.
# Environment references like ${TEXBIN}/latex are expanded on load.
tools:
  latex: latex
  pdflatex: pdflatex
  dvips: dvips
  ps2pdf: ps2pdf
  bibtex: bibtex
  makeindex: makeindex

# Directories searched for styles, figures and bibliography databases,
# exposed to the toolchain via TEXINPUTS, BIBINPUTS and BSTINPUTS.
search_paths:
  - ./styles
  - ./figures

# Budget for primary formatter runs per job, and extra stabilization
# passes after the document converges.
max_runs: 10
extra_runs: 0

# Index processor style file and extra options.
#index_style: book.ist
#index_options: ["-c"]

# Base directory for ephemeral job workspaces (default: system temp).
#tmpdir: /var/tmp

# SQLite build-history store (disabled when unset).
#history:
#  path: ${HOME}/.texbuilder/history.db

# Prometheus endpoint served in watch mode (disabled when unset).
#metrics:
#  listen: :9090
`

// Init creates a new configuration file with commented example content
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}

	if err := os.WriteFile(configPath, []byte(exampleConfig), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
