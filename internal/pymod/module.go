// Package pymod inspects python test modules without running them: classes
// and their test methods, imports, and the module attributes that drive test
// record creation.
package pymod

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"ftr/internal/domain"

	"github.com/samber/lo"
)

// Module attributes read from test modules
const (
	AttrTestDependencies     = "test_dependencies"
	AttrExtraDependencies    = "EXTRA_TEST_RECORD_DEPENDENCIES"
	AttrTestIgnore           = "test_ignore"
	AttrIgnoreDependencies   = "IGNORE_TEST_RECORD_DEPENDENCIES"
	AttrTestRecords          = "test_records"
	AttrTestIgnoreExceptions = "test_ignore_exceptions"
	FuncMakeTestRecords      = "_make_test_records"
)

// Class is a top-level class definition
type Class struct {
	Name    string
	Bases   []string
	Methods []string // test* methods defined directly on the class
	Line    int
}

// Import binds a local name to a module or to a name inside a module. For
// "import a.b" Name is empty.
type Import struct {
	Module string
	Name   string
}

// Module is the parsed outline of a python source file
type Module struct {
	Name      string // dotted name, empty when unknown
	Path      string
	IsPackage bool

	Classes []*Class
	Imports map[string]Import
	Funcs   map[string]bool

	src   string
	attrs map[string]int // attribute -> offset of its value in src
}

var (
	classPattern   = regexp.MustCompile(`^class\s+([A-Za-z_]\w*)\s*(?:\((.*)\))?\s*:`)
	defPattern     = regexp.MustCompile(`^(?:async\s+)?def\s+([A-Za-z_]\w*)\s*\(`)
	testDefPattern = regexp.MustCompile(`^(\s+)(?:async\s+)?def\s+(test\w*)\s*\(`)
	assignPattern  = regexp.MustCompile(`^([A-Za-z_]\w*)\s*(?::[^=]+)?=[^=]`)
	importPattern  = regexp.MustCompile(`^import\s+(.+)$`)
	fromPattern    = regexp.MustCompile(`^from\s+(\.*[\w.]*)\s+import\s+(.+)$`)
)

// Parse reads and parses a python source file
func Parse(path string) (*Module, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading file %s: %w", path, err)
	}
	m := ParseSource(string(data))
	m.Path = path
	m.IsPackage = filepath.Base(path) == "__init__.py"
	return m, nil
}

// ParseSource parses python source text
func ParseSource(src string) *Module {
	m := &Module{
		Imports: make(map[string]Import),
		Funcs:   make(map[string]bool),
		src:     src,
		attrs:   make(map[string]int),
	}

	lines := strings.Split(src, "\n")
	offsets := make([]int, len(lines))
	off := 0
	for i, line := range lines {
		offsets[i] = off
		off += len(line) + 1
	}

	var current *Class
	bodyIndent := ""
	inString := ""
	for i := 0; i < len(lines); i++ {
		line := strings.TrimRight(lines[i], "\r")

		if inString != "" {
			if strings.Count(line, inString)%2 == 1 {
				inString = ""
			}
			continue
		}

		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		indented := line[0] == ' ' || line[0] == '\t'

		if indented {
			if current != nil {
				indent := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
				if bodyIndent == "" {
					bodyIndent = indent
				}
				if indent == bodyIndent {
					if match := testDefPattern.FindStringSubmatch(line); match != nil {
						current.Methods = append(current.Methods, match[2])
					}
				}
			}
			inString = openTripleQuote(line)
			continue
		}

		// top level statement
		current = nil
		if strings.HasPrefix(trimmed, "@") {
			continue
		}

		stmt, consumed := joinContinued(lines, i)

		switch {
		case classPattern.MatchString(stmt):
			match := classPattern.FindStringSubmatch(stmt)
			current = &Class{Name: match[1], Bases: splitBases(match[2]), Line: i + 1}
			bodyIndent = ""
			m.Classes = append(m.Classes, current)
		case defPattern.MatchString(stmt):
			m.Funcs[defPattern.FindStringSubmatch(stmt)[1]] = true
		case fromPattern.MatchString(stmt):
			match := fromPattern.FindStringSubmatch(stmt)
			m.addFromImport(match[1], match[2])
		case importPattern.MatchString(stmt):
			m.addImport(importPattern.FindStringSubmatch(stmt)[1])
		case assignPattern.MatchString(stmt):
			name := assignPattern.FindStringSubmatch(stmt)[1]
			eq := strings.Index(line, "=")
			m.attrs[name] = offsets[i] + eq + 1
		}

		if consumed > 0 {
			i += consumed
			continue
		}
		inString = openTripleQuote(line)
	}
	return m
}

// joinContinued joins a statement that continues over open brackets or
// backslashes, returning the joined text and the number of extra lines
func joinContinued(lines []string, i int) (string, int) {
	stmt := stripComment(strings.TrimRight(lines[i], "\r"))
	extra := 0
	for (bracketDepth(stmt) > 0 || strings.HasSuffix(stmt, "\\")) && i+extra+1 < len(lines) {
		extra++
		stmt = strings.TrimSuffix(stmt, "\\") + " " + strings.TrimSpace(stripComment(lines[i+extra]))
	}
	return strings.TrimSpace(stmt), extra
}

func stripComment(line string) string {
	if idx := strings.Index(line, "#"); idx >= 0 && !strings.ContainsAny(line[:idx], `"'`) {
		return strings.TrimRight(line[:idx], " \t")
	}
	return line
}

// bracketDepth counts unclosed brackets outside string literals
func bracketDepth(s string) int {
	depth := 0
	var quote rune
	escaped := false
	for _, c := range s {
		switch {
		case escaped:
			escaped = false
		case c == '\\':
			escaped = true
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '(' || c == '[' || c == '{':
			depth++
		case c == ')' || c == ']' || c == '}':
			depth--
		}
	}
	return depth
}

// openTripleQuote returns the triple quote left open at the end of line
func openTripleQuote(line string) string {
	for _, q := range []string{`"""`, `'''`} {
		if strings.Count(line, q)%2 == 1 {
			return q
		}
	}
	return ""
}

func splitBases(s string) []string {
	var bases []string
	depth := 0
	start := 0
	flush := func(end int) {
		b := strings.TrimSpace(s[start:end])
		if b != "" && !strings.Contains(b, "=") {
			if idx := strings.Index(b, "["); idx > 0 {
				b = b[:idx]
			}
			bases = append(bases, b)
		}
	}
	for i, c := range s {
		switch c {
		case '(', '[':
			depth++
		case ')', ']':
			depth--
		case ',':
			if depth == 0 {
				flush(i)
				start = i + 1
			}
		}
	}
	flush(len(s))
	return bases
}

func (m *Module) addImport(spec string) {
	for _, part := range strings.Split(spec, ",") {
		fields := strings.Fields(part)
		switch {
		case len(fields) == 3 && fields[1] == "as":
			m.Imports[fields[2]] = Import{Module: fields[0]}
		case len(fields) == 1:
			// "import a.b" binds "a"
			root, _, _ := strings.Cut(fields[0], ".")
			m.Imports[root] = Import{Module: root}
		}
	}
}

func (m *Module) addFromImport(module, names string) {
	names = strings.Trim(strings.TrimSpace(names), "()")
	for _, part := range strings.Split(names, ",") {
		fields := strings.Fields(part)
		switch {
		case len(fields) == 3 && fields[1] == "as":
			m.Imports[fields[2]] = Import{Module: module, Name: fields[0]}
		case len(fields) == 1 && fields[0] != "*":
			m.Imports[fields[0]] = Import{Module: module, Name: fields[0]}
		}
	}
}

// Class returns the named top-level class
func (m *Module) Class(name string) (*Class, bool) {
	for _, c := range m.Classes {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// HasAttr reports whether the module assigns name at top level
func (m *Module) HasAttr(name string) bool {
	_, ok := m.attrs[name]
	return ok
}

// Attr parses the literal value assigned to a module attribute
func (m *Module) Attr(name string) (any, bool, error) {
	off, ok := m.attrs[name]
	if !ok {
		return nil, false, nil
	}
	v, _, err := parseLiteralPrefix(m.src[off:])
	if err != nil {
		return nil, true, fmt.Errorf("%s: %w", name, err)
	}
	return v, true, nil
}

// StringList returns a module attribute holding a string or a sequence of
// strings
func (m *Module) StringList(name string) ([]string, error) {
	v, ok, err := m.Attr(name)
	if err != nil || !ok {
		return nil, err
	}
	switch val := v.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{val}, nil
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%s: expected strings, got %T", name, item)
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, fmt.Errorf("%s: expected a list of strings, got %T", name, v)
}

// RecordDependencies returns EXTRA_TEST_RECORD_DEPENDENCIES together with
// the older test_dependencies
func (m *Module) RecordDependencies() ([]string, error) {
	return m.unionLists(AttrExtraDependencies, AttrTestDependencies)
}

// IgnoredDependencies returns IGNORE_TEST_RECORD_DEPENDENCIES together with
// the older test_ignore
func (m *Module) IgnoredDependencies() ([]string, error) {
	return m.unionLists(AttrIgnoreDependencies, AttrTestIgnore)
}

// IgnoredExceptions returns the exception class names listed in
// test_ignore_exceptions
func (m *Module) IgnoredExceptions() ([]string, error) {
	names, err := m.StringList(AttrTestIgnoreExceptions)
	if err == nil {
		return names, nil
	}
	// exception classes are usually referenced by name, not quoted
	off := m.attrs[AttrTestIgnoreExceptions]
	return bareNames(m.src[off:]), nil
}

// MakesTestRecords reports whether the module defines _make_test_records
func (m *Module) MakesTestRecords() bool {
	return m.Funcs[FuncMakeTestRecords]
}

// TestRecords returns the test_records literal. ok is false when the module
// does not define it.
func (m *Module) TestRecords() ([]domain.Doc, bool, error) {
	v, ok, err := m.Attr(AttrTestRecords)
	if err != nil || !ok {
		return nil, ok, err
	}
	docs, err := ToDocs(v)
	if err != nil {
		return nil, true, fmt.Errorf("%s: %w", AttrTestRecords, err)
	}
	return docs, true, nil
}

// ToDocs converts a decoded list of dicts to documents
func ToDocs(v any) ([]domain.Doc, error) {
	switch val := v.(type) {
	case map[string]any:
		return []domain.Doc{domain.Doc(val)}, nil
	case []any:
		docs := make([]domain.Doc, 0, len(val))
		for _, item := range val {
			d, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("expected a dict, got %T", item)
			}
			docs = append(docs, domain.Doc(d))
		}
		return docs, nil
	}
	return nil, fmt.Errorf("expected a list of dicts, got %T", v)
}

func (m *Module) unionLists(names ...string) ([]string, error) {
	var out []string
	for _, name := range names {
		list, err := m.StringList(name)
		if err != nil {
			return nil, err
		}
		out = append(out, list...)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return lo.Uniq(out), nil
}

var bareNamePattern = regexp.MustCompile(`[A-Za-z_][\w.]*`)

func bareNames(src string) []string {
	end := strings.IndexAny(src, ")]")
	if end < 0 {
		end = strings.Index(src, "\n")
	}
	if end < 0 {
		end = len(src)
	}
	var names []string
	for _, n := range bareNamePattern.FindAllString(src[:end], -1) {
		if idx := strings.LastIndex(n, "."); idx >= 0 {
			n = n[idx+1:]
		}
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ResolveRelative turns a relative import of this module into an absolute
// dotted name
func (m *Module) ResolveRelative(module string) (string, error) {
	if !strings.HasPrefix(module, ".") {
		return module, nil
	}
	if m.Name == "" {
		return "", errors.New("relative import in a module without a name")
	}
	dots := len(module) - len(strings.TrimLeft(module, "."))
	pkg := strings.Split(m.Name, ".")
	if !m.IsPackage {
		pkg = pkg[:len(pkg)-1]
	}
	up := dots - 1
	if up > len(pkg) {
		return "", fmt.Errorf("relative import %s beyond top-level package of %s", module, m.Name)
	}
	pkg = pkg[:len(pkg)-up]
	if rest := module[dots:]; rest != "" {
		pkg = append(pkg, rest)
	}
	return strings.Join(pkg, "."), nil
}
