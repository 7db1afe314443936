package pymod

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"ftr/internal/bench"
	"ftr/internal/domain"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

// Base classes that mark a class as a test case
var (
	IntegrationRoots = []string{"IntegrationTestCase", "FrappeTestCase", "FrappeIntegrationTestCase"}
	UnitRoots        = []string{"UnitTestCase", "FrappeUnitTestCase", "TestCase", "IsolatedAsyncioTestCase"}
)

// maxDepth bounds base-class resolution across modules
const maxDepth = 32

// TestClass is a test case class with its runnable test methods, inherited
// ones included
type TestClass struct {
	Name     string
	Category domain.Category
	Methods  []string
}

// Loader resolves dotted module names to parsed modules through the bench
// layout and memoizes them
type Loader struct {
	layout *bench.Layout

	mu      sync.Mutex
	modules map[string]*Module
	missing map[string]bool
}

// NewLoader creates a Loader
func NewLoader(layout *bench.Layout) *Loader {
	return &Loader{
		layout:  layout,
		modules: make(map[string]*Module),
		missing: make(map[string]bool),
	}
}

// Load returns the parsed module for a dotted name
func (l *Loader) Load(dotted string) (*Module, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.load(dotted)
}

func (l *Loader) load(dotted string) (*Module, error) {
	if m, ok := l.modules[dotted]; ok {
		return m, nil
	}
	if l.missing[dotted] {
		return nil, fmt.Errorf("module %s: %w", dotted, os.ErrNotExist)
	}
	path, err := l.layout.ModuleFile(dotted)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			l.missing[dotted] = true
		}
		return nil, err
	}
	m, err := Parse(path)
	if err != nil {
		return nil, err
	}
	m.Name = dotted
	l.modules[dotted] = m
	return m, nil
}

// Exists reports whether a dotted module has a source file in the bench
func (l *Loader) Exists(dotted string) bool {
	_, err := l.Load(dotted)
	return err == nil
}

// TestClasses returns the test case classes of a module in source order.
// Classes with no test methods are left out.
func (l *Loader) TestClasses(m *Module) ([]TestClass, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []TestClass
	for _, c := range m.Classes {
		kind, methods := l.resolveClass(m, c, 0)
		if kind == kindNone && strings.HasPrefix(c.Name, "Test") && len(methods) > 0 {
			log.Debugf("%s.%s: bases %v not resolvable, treating as unit tests", m.Name, c.Name, c.Bases)
			kind = kindUnit
		}
		if kind == kindNone || len(methods) == 0 {
			continue
		}
		sort.Strings(methods)
		out = append(out, TestClass{Name: c.Name, Category: kind.category(), Methods: methods})
	}
	return out, nil
}

type caseKind int

const (
	kindNone caseKind = iota
	kindUnit
	kindIntegration
)

func (k caseKind) category() domain.Category {
	if k == kindIntegration {
		return domain.CategoryIntegration
	}
	return domain.CategoryUnit
}

func rootKind(name string) caseKind {
	switch {
	case lo.Contains(IntegrationRoots, name):
		return kindIntegration
	case lo.Contains(UnitRoots, name):
		return kindUnit
	}
	return kindNone
}

func (l *Loader) resolveClass(m *Module, c *Class, depth int) (caseKind, []string) {
	kind := kindNone
	methods := append([]string(nil), c.Methods...)
	if depth > maxDepth {
		return kind, methods
	}
	for _, base := range c.Bases {
		k, inherited := l.resolveBase(m, base, depth+1)
		if k > kind {
			kind = k
		}
		methods = lo.Union(methods, inherited)
	}
	return kind, methods
}

// resolveBase follows a base class expression to its definition
func (l *Loader) resolveBase(m *Module, expr string, depth int) (caseKind, []string) {
	if depth > maxDepth {
		return kindNone, nil
	}
	parts := strings.Split(expr, ".")
	name := parts[len(parts)-1]
	if k := rootKind(name); k != kindNone {
		return k, nil
	}

	if len(parts) == 1 {
		if c, ok := m.Class(name); ok {
			return l.resolveClass(m, c, depth)
		}
		imp, ok := m.Imports[name]
		if !ok || imp.Name == "" {
			return kindNone, nil
		}
		if k := rootKind(imp.Name); k != kindNone {
			return k, nil
		}
		target, err := l.importTarget(m, imp.Module)
		if err != nil {
			return kindNone, nil
		}
		return l.resolveBase(target, imp.Name, depth+1)
	}

	// qualified: <alias>.<...>.<Class>
	imp, ok := m.Imports[parts[0]]
	if !ok {
		return kindNone, nil
	}
	module := imp.Module
	if imp.Name != "" {
		if !strings.HasSuffix(module, ".") {
			module += "."
		}
		module += imp.Name
	}
	if len(parts) > 2 {
		module += "." + strings.Join(parts[1:len(parts)-1], ".")
	}
	target, err := l.importTarget(m, module)
	if err != nil {
		return kindNone, nil
	}
	return l.resolveBase(target, name, depth+1)
}

func (l *Loader) importTarget(from *Module, module string) (*Module, error) {
	abs, err := from.ResolveRelative(module)
	if err != nil {
		return nil, err
	}
	return l.load(abs)
}
