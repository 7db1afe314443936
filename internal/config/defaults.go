package config

import "time"

const (
	// DefaultBenchPath is the default bench root
	DefaultBenchPath = "."
	// DefaultConfigFile is the optional per-bench config file
	DefaultConfigFile = "ftr.yaml"
	// DefaultOutputJSONFile is the default output JSON file name
	DefaultOutputJSONFile = "test-results.json"
	// DefaultOutputJSONDir is the default output directory, relative to the bench
	DefaultOutputJSONDir = ".ftr"
	// DefaultTestLogFile is the test record log, relative to the site directory
	DefaultTestLogFile = ".test_log"
	// DefaultBenchBin is the bench CLI used for ORM calls
	DefaultBenchBin = "bench"
	// DefaultProcessors is the default number of workers for unit tests
	DefaultProcessors = 1
	// DefaultSlowTestThreshold marks tests slower than this in red
	DefaultSlowTestThreshold = 2 * time.Second
	// MetaSourceDB loads doctype metadata from the site database
	MetaSourceDB = "db"
	// MetaSourceFiles loads doctype metadata from the apps' doctype JSON files
	MetaSourceFiles = "files"
)

// DefaultPathsToIgnore are the directories never scanned for test modules
var DefaultPathsToIgnore = []string{
	"locals",
	".git",
	"public",
	"__pycache__",
	"node_modules",
}
