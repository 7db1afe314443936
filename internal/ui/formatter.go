package ui

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"ftr/internal/config"
	"ftr/internal/domain"

	"github.com/fatih/color"
)

// Formatter formats and displays output
type Formatter struct {
	config *config.Config
	out    io.Writer
}

// NewFormatter creates a new Formatter
func NewFormatter(cfg *config.Config, out io.Writer) *Formatter {
	return &Formatter{
		config: cfg,
		out:    out,
	}
}

// PrintMetaStats displays the statistics of the last saved run
func (f *Formatter) PrintMetaStats(output *domain.TestResultsOutput) {
	meta := output.Meta
	cyan := color.New(color.FgCyan)
	white := color.New(color.FgWhite)
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)

	// Print header
	fmt.Fprint(f.out, "\n")
	cyan.Fprintln(f.out, "╔═══════════════════════════════════════════════════════════════╗")
	cyan.Fprintln(f.out, "║                    Test Execution Statistics                  ║")
	cyan.Fprintln(f.out, "╚═══════════════════════════════════════════════════════════════╝")
	fmt.Fprintln(f.out)

	rows := []struct {
		label string
		value string
		c     *color.Color
	}{
		{"Site", meta.Site, white},
		{"Total Tests", fmt.Sprint(meta.TotalTests), white},
		{"Unit Tests", fmt.Sprint(meta.UnitTests), white},
		{"Integration Tests", fmt.Sprint(meta.IntegrationTests), white},
		{"Failed Tests", fmt.Sprint(meta.FailedTests), statColor(meta.FailedTests, green, red)},
		{"Errored Tests", fmt.Sprint(meta.ErroredTests), statColor(meta.ErroredTests, green, red)},
		{"Skipped Tests", fmt.Sprint(meta.SkippedTests), white},
		{"Duration", fmt.Sprintf("%.2fs", meta.DurationSeconds), white},
		{"Timestamp", meta.Timestamp, white},
	}

	fmt.Fprintln(f.out, "┌─────────────────────────────────┬─────────────────────────────┐")
	for i, row := range rows {
		fmt.Fprintf(f.out, "│ %-31s │ ", row.label)
		row.c.Fprintf(f.out, "%-27s", row.value)
		fmt.Fprintln(f.out, " │")
		if i < len(rows)-1 {
			fmt.Fprintln(f.out, "├─────────────────────────────────┼─────────────────────────────┤")
		}
	}
	fmt.Fprintln(f.out, "└─────────────────────────────────┴─────────────────────────────┘")

	// Print summary line
	fmt.Fprintln(f.out)
	if meta.FailedTests+meta.ErroredTests == 0 {
		green.Fprintln(f.out, "✓ All tests passed!")
		return
	}
	red.Fprintf(f.out, "✗ %d test(s) failed, %d errored\n", meta.FailedTests, meta.ErroredTests)
	fmt.Fprintln(f.out)
	f.printFailedTestsTree(output.Details)
}

func statColor(n int, ok, bad *color.Color) *color.Color {
	if n > 0 {
		return bad
	}
	return ok
}

// TreeNode represents a node in the file tree structure
type TreeNode struct {
	Name     string
	Children map[string]*TreeNode
	Failures []domain.TestFailure
	IsFile   bool
}

// printFailedTestsTree prints a tree structure of failed tests
func (f *Formatter) printFailedTestsTree(failures []domain.TestFailure) {
	if len(failures) == 0 {
		return
	}

	// Group failures by file path
	fileMap := make(map[string][]domain.TestFailure)
	for _, failure := range failures {
		path := f.relPath(failure.FilePath)
		if path == "" {
			path = strings.ReplaceAll(failure.Module, ".", "/") + ".py"
		}
		fileMap[path] = append(fileMap[path], failure)
	}

	root := &TreeNode{
		Name:     "",
		Children: make(map[string]*TreeNode),
		IsFile:   false,
	}

	// Process each file
	for filePath, fileFailures := range fileMap {
		parts := strings.Split(strings.TrimPrefix(filePath, "./"), "/")
		current := root

		// Navigate/create tree nodes for each path part
		for i, part := range parts {
			if part == "" {
				continue
			}

			if current.Children[part] == nil {
				current.Children[part] = &TreeNode{
					Name:     part,
					Children: make(map[string]*TreeNode),
					IsFile:   i == len(parts)-1,
				}
			}

			current = current.Children[part]

			// If this is the file (last part), add failures
			if i == len(parts)-1 {
				current.Failures = fileFailures
			}
		}
	}

	// Print tree recursively
	f.printTreeNode(root, "", true)
}

func (f *Formatter) printTreeNode(node *TreeNode, prefix string, isRoot bool) {
	// Sort children for consistent output
	var keys []string
	for key := range node.Children {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for i, key := range keys {
		child := node.Children[key]
		isLastChild := i == len(keys)-1

		var connector, childPrefix string
		switch {
		case isRoot:
			connector, childPrefix = "", "  "
		case isLastChild:
			connector, childPrefix = prefix+"└── ", prefix+"    "
		default:
			connector, childPrefix = prefix+"├── ", prefix+"│   "
		}

		if child.IsFile {
			color.New(color.FgYellow).Fprintf(f.out, "%s%s\n", connector, child.Name)
			for j, failure := range child.Failures {
				branch := "├── "
				if j == len(child.Failures)-1 {
					branch = "└── "
				}
				color.New(color.FgRed).Fprintf(f.out, "%s%s%s.%s [%s]\n", childPrefix, branch, failure.ClassName, failure.TestName, failure.Kind)
			}
			continue
		}
		color.New(color.FgCyan).Fprintf(f.out, "%s%s\n", connector, child.Name)
		f.printTreeNode(child, childPrefix, false)
	}
}

func (f *Formatter) relPath(path string) string {
	if path == "" {
		return ""
	}
	appsPath := filepath.Join(f.config.BenchPath, "apps")
	if abs, err := filepath.Abs(appsPath); err == nil {
		appsPath = abs
	}
	if rel, err := filepath.Rel(appsPath, path); err == nil && !strings.HasPrefix(rel, "..") {
		path = rel
	}
	return filepath.ToSlash(path)
}

// PrintTestList prints discovered tests grouped by module and class.
// failed holds test ids from the last run; those tests are marked with [F].
func (f *Formatter) PrintTestList(suites []*domain.Suite, showTestCases bool, failed map[string]struct{}) {
	type class struct {
		id       string
		category domain.Category
		methods  []string
	}
	var classes []*class
	index := make(map[string]*class)
	total := 0
	for _, s := range suites {
		for _, tc := range s.Cases() {
			total++
			c, ok := index[tc.ClassID()]
			if !ok {
				c = &class{id: tc.ClassID(), category: tc.Category}
				index[tc.ClassID()] = c
				classes = append(classes, c)
			}
			c.methods = append(c.methods, tc.Method)
		}
	}

	color.New(color.FgGreen).Fprintf(f.out, "Found %d test(s) in %d class(es):\n\n", total, len(classes))
	for i, c := range classes {
		isLastClass := i == len(classes)-1
		branch := "├── "
		if isLastClass {
			branch = "└── "
		}
		marker := ""
		for _, m := range c.methods {
			if _, ok := failed[c.id+"."+m]; ok {
				marker = " " + color.RedString("[F]")
				break
			}
		}
		fmt.Fprintf(f.out, "%s%s %s%s\n", branch, color.CyanString(c.id), categoryTag(c.category), marker)
		if !showTestCases {
			continue
		}

		for j, m := range c.methods {
			prefix := "│   "
			if isLastClass {
				prefix = "    "
			}
			if j == len(c.methods)-1 {
				prefix += "└── "
			} else {
				prefix += "├── "
			}
			name := color.YellowString(m)
			if _, ok := failed[c.id+"."+m]; ok {
				name = color.RedString("%s [F]", m)
			}
			fmt.Fprintf(f.out, "%s%s\n", prefix, name)
		}
	}
}

func categoryTag(c domain.Category) string {
	if c == domain.CategoryIntegration {
		return color.MagentaString("[integration]")
	}
	return color.BlueString("[unit]")
}

// FailedIDs returns the ids of the failed and errored tests of a saved run
func FailedIDs(output *domain.TestResultsOutput) map[string]struct{} {
	ids := make(map[string]struct{})
	if output == nil {
		return ids
	}
	for _, d := range output.Details {
		ids[d.Module+"."+d.ClassName+"."+d.TestName] = struct{}{}
	}
	return ids
}
