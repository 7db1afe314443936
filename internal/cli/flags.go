package cli

import "ftr/internal/config"

// Flags holds command-line flags
type Flags struct {
	BenchPath       string
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

	// list
	NameFilter string
	TestCases  bool

	// failures
	Stats bool

	// log
	Clear bool
}

// ToConfigFlags converts CLI flags to config flags
func (f *Flags) ToConfigFlags() config.Flags {
	return config.Flags{
		Site:            f.Site,
		App:             f.App,
		Module:          f.Module,
		DocType:         f.DocType,
		ModuleDef:       f.ModuleDef,
		DocTypeListPath: f.DocTypeListPath,
		Tests:           f.Tests,
		Case:            f.Case,
		Categories:      f.Categories,
		JUnitXMLOutput:  f.JUnitXMLOutput,
		Processors:      f.Processors,
		Verbose:         f.Verbose,
		Force:           f.Force,
		Profile:         f.Profile,
		FailFast:        f.FailFast,
		SkipTestRecords: f.SkipTestRecords,
		SkipBeforeTests: f.SkipBeforeTests,
		Migrate:         f.Migrate,
		SkipFailing:     f.SkipFailing,
		Durations:       f.Durations,
		OpenFailures:    f.OpenFailures,
		NameFilter:      f.NameFilter,
		TestCases:       f.TestCases,
		Clear:           f.Clear,
		Stats:           f.Stats,
	}
}
