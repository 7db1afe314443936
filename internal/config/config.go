package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"ftr/internal/domain"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrExclusiveSelectors is returned when more than one test selector is given
var ErrExclusiveSelectors = errors.New("the following arguments are mutually exclusive: " +
	"doctype, doctype_list_path, module_def, and module. Please specify only one of these")

// Config holds all configuration for the application
type Config struct {
	// Bench settings
	BenchPath  string `yaml:"-"`
	PythonPath string `yaml:"python"`
	BenchBin   string `yaml:"bench_bin"`

	// Output settings
	OutputJSONFile string `yaml:"output_file"`
	OutputJSONDir  string `yaml:"output_dir"`

	// Execution settings
	Processors        int           `yaml:"processors"`
	SlowTestThreshold time.Duration `yaml:"slow_test_threshold"`
	MetaSource        string        `yaml:"meta_source"`

	// Paths to ignore when scanning
	PathsToIgnore   []string `yaml:"ignore"`
	ExcludePatterns []string `yaml:"exclude"`

	// Database overrides, taken from the environment
	DB DBOverrides `yaml:"-"`

	// Command flags
	Flags Flags `yaml:"-"`
}

// DBOverrides replace connection settings of the site config when set
type DBOverrides struct {
	Host     string
	Port     int
	User     string
	Password string
}

// Flags holds command-line flags
type Flags struct {
	Site            string
	App             string
	Module          string
	DocType         string
	ModuleDef       string
	DocTypeListPath string
	Tests           []string
	Case            string
	Categories      []string
	JUnitXMLOutput  string
	Processors      int
	Verbose         bool
	Force           bool
	Profile         bool
	FailFast        bool
	SkipTestRecords bool
	SkipBeforeTests bool
	Migrate         bool
	SkipFailing     bool
	Durations       bool
	OpenFailures    bool

	// list, log and failures commands
	NameFilter string
	TestCases  bool
	Clear      bool
	Stats      bool
}

// New creates a new Config with defaults
func New() *Config {
	cfg := &Config{
		BenchPath:         DefaultBenchPath,
		BenchBin:          DefaultBenchBin,
		OutputJSONFile:    DefaultOutputJSONFile,
		OutputJSONDir:     DefaultOutputJSONDir,
		Processors:        DefaultProcessors,
		SlowTestThreshold: DefaultSlowTestThreshold,
		MetaSource:        MetaSourceDB,
		Flags:             Flags{Processors: DefaultProcessors},
	}
	// Copy default paths to ignore
	cfg.PathsToIgnore = make([]string, len(DefaultPathsToIgnore))
	copy(cfg.PathsToIgnore, DefaultPathsToIgnore)
	return cfg
}

// Load creates a config for the bench at benchPath, applying ftr.yaml, .env
// and environment overrides on top of the defaults
func Load(benchPath string) (*Config, error) {
	cfg := New()
	if benchPath != "" {
		cfg.BenchPath = benchPath
	}

	data, err := os.ReadFile(filepath.Join(cfg.BenchPath, DefaultConfigFile))
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", DefaultConfigFile, err)
		}
	case !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("read %s: %w", DefaultConfigFile, err)
	}

	// .env file might not exist, that's okay - use environment variables
	_ = godotenv.Load(filepath.Join(cfg.BenchPath, ".env"))

	cfg.DB.Host = os.Getenv("DB_HOST")
	cfg.DB.User = os.Getenv("DB_USERNAME")
	cfg.DB.Password = os.Getenv("DB_PASSWORD")
	if port := os.Getenv("DB_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid DB_PORT %q: %w", port, err)
		}
		cfg.DB.Port = p
	}

	return cfg, nil
}

// ApplyFlags stores flags and applies their overrides
func (c *Config) ApplyFlags(flags Flags) {
	c.Flags = flags
	if flags.Processors > 0 {
		c.Processors = flags.Processors
	}
}

// Validate checks the flag combination
func (c *Config) Validate() error {
	selected := 0
	for _, s := range []string{c.Flags.DocType, c.Flags.DocTypeListPath, c.Flags.ModuleDef, c.Flags.Module} {
		if s != "" {
			selected++
		}
	}
	if selected > 1 {
		return ErrExclusiveSelectors
	}
	if _, err := c.SelectedCategories(); err != nil {
		return err
	}
	switch c.MetaSource {
	case MetaSourceDB, MetaSourceFiles:
	default:
		return fmt.Errorf("invalid meta source %q (expected %q or %q)", c.MetaSource, MetaSourceDB, MetaSourceFiles)
	}
	return nil
}

// SelectedCategories returns the categories requested with --category
func (c *Config) SelectedCategories() ([]domain.Category, error) {
	var out []domain.Category
	for _, name := range c.Flags.Categories {
		cat, ok := domain.ParseCategory(name)
		if !ok {
			return nil, fmt.Errorf("invalid test category %q", name)
		}
		out = append(out, cat)
	}
	return out, nil
}

// DebugParams describes the selectors of this run
func (c *Config) DebugParams() string {
	var params []string
	add := func(name, value string) {
		if value != "" {
			params = append(params, fmt.Sprintf("%s=%s", name, value))
		}
	}
	add("site", c.Flags.Site)
	add("app", c.Flags.App)
	add("module", c.Flags.Module)
	add("doctype", c.Flags.DocType)
	add("module_def", c.Flags.ModuleDef)
	add("doctype_list_path", c.Flags.DocTypeListPath)
	return strings.Join(params, ", ")
}

// GetSitesPath returns the bench's sites directory
func (c *Config) GetSitesPath() string {
	return filepath.Join(c.BenchPath, "sites")
}

// GetSitePath returns the directory of the selected site
func (c *Config) GetSitePath() string {
	return filepath.Join(c.GetSitesPath(), c.Flags.Site)
}

// GetTestLogPath returns the test record log of the selected site
func (c *Config) GetTestLogPath() string {
	return filepath.Join(c.GetSitePath(), DefaultTestLogFile)
}

// GetOutputPath returns the full path to the output JSON file.
// Resolves to an absolute path so run and failures always read/write the same file regardless of cwd.
func (c *Config) GetOutputPath() string {
	p := filepath.Join(c.BenchPath, c.OutputJSONDir, c.OutputJSONFile)
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

// GetPythonPath returns the interpreter used to run tests
func (c *Config) GetPythonPath() string {
	if c.PythonPath != "" {
		if filepath.IsAbs(c.PythonPath) || !strings.Contains(c.PythonPath, string(filepath.Separator)) {
			return c.PythonPath
		}
		return filepath.Join(c.BenchPath, c.PythonPath)
	}
	return filepath.Join(c.BenchPath, "env", "bin", "python")
}
