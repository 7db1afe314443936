// Package discovery finds the test modules of a bench and sorts their test
// methods into unit and integration suites.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"os"

	"ftr/internal/bench"
	"ftr/internal/domain"
	"ftr/internal/meta"
	"ftr/internal/pymod"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

// Options restrict what is discovered
type Options struct {
	Case            string            // only this test class
	Tests           []string          // only these test methods (exact or wildcard)
	Categories      []domain.Category // only these categories; all when empty
	SkipTestRecords bool
}

// Result is the outcome of a discovery
type Result struct {
	Unit        *domain.Suite
	Integration *domain.Suite
	// RecordDocTypes need test records before the integration suite runs
	RecordDocTypes []string
	// Dependencies are the test_dependencies of discovered modules, made
	// right after discovery
	Dependencies []string
}

func newResult() *Result {
	return &Result{
		Unit:        domain.NewSuite(domain.CategoryUnit),
		Integration: domain.NewSuite(domain.CategoryIntegration),
	}
}

// Suite returns the suite of a category
func (r *Result) Suite(category domain.Category) *domain.Suite {
	if category == domain.CategoryIntegration {
		return r.Integration
	}
	return r.Unit
}

// Count returns the number of discovered tests
func (r *Result) Count() int {
	return r.Unit.Count() + r.Integration.Count()
}

// Discoverer finds tests in the apps of a bench
type Discoverer struct {
	layout  *bench.Layout
	scanner *Scanner
	filter  *Filter
	modules *pymod.Loader
	catalog meta.Catalog
	opts    Options
}

// NewDiscoverer creates a Discoverer
func NewDiscoverer(layout *bench.Layout, scanner *Scanner, modules *pymod.Loader, catalog meta.Catalog, opts Options) *Discoverer {
	return &Discoverer{
		layout:  layout,
		scanner: scanner,
		filter:  NewFilter(opts.Tests),
		modules: modules,
		catalog: catalog,
		opts:    opts,
	}
}

// DiscoverTests discovers every test module of the apps. Doctype test modules
// queue their doctype for test records.
func (d *Discoverer) DiscoverTests(ctx context.Context, apps []string) (*Result, error) {
	log.Debugf("Discovering tests for apps: %v", apps)
	res := newResult()
	for _, app := range apps {
		root := d.layout.AppPath(app)
		files, err := d.scanner.Scan(root)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", app, err)
		}
		for _, file := range files {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			name, err := ModuleName(root, file)
			if err != nil {
				return nil, err
			}
			m, err := d.modules.Load(name)
			if err != nil {
				return nil, err
			}

			if jsonFile, ok := docTypeFile(file); ok && !d.opts.SkipTestRecords {
				doctype, err := meta.ReadDocTypeName(jsonFile)
				switch {
				case errors.Is(err, os.ErrNotExist):
				case err != nil:
					return nil, err
				case doctype != "":
					res.RecordDocTypes = append(res.RecordDocTypes, doctype)
				}
			}

			if err := d.addModuleTests(m, res); err != nil {
				return nil, err
			}
		}
	}
	log.Debugf("Discovered %d unit tests and %d integration tests", res.Unit.Count(), res.Integration.Count())
	return res, nil
}

// DiscoverDocTypeTests discovers the test modules of doctypes and queues
// each doctype for test records
func (d *Discoverer) DiscoverDocTypeTests(ctx context.Context, doctypes []string) (*Result, error) {
	res := newResult()
	for _, doctype := range doctypes {
		module, err := d.catalog.DocTypeModule(ctx, doctype)
		if err != nil {
			return nil, err
		}
		if module == "" {
			return nil, fmt.Errorf("invalid doctype %s", doctype)
		}

		testModule, err := d.layout.TestModuleName(doctype, module, "")
		if err != nil {
			return nil, err
		}
		m, err := d.modules.Load(testModule)
		switch {
		case err == nil:
			if err := d.addModuleTests(m, res); err != nil {
				return nil, err
			}
		case errors.Is(err, os.ErrNotExist):
			log.Warnf("No test module found for doctype %s", doctype)
		default:
			return nil, err
		}

		if !d.opts.SkipTestRecords {
			res.RecordDocTypes = append(res.RecordDocTypes, doctype)
		}
	}
	return res, nil
}

// DiscoverModuleTests discovers the tests of dotted module names
func (d *Discoverer) DiscoverModuleTests(ctx context.Context, modules []string) (*Result, error) {
	res := newResult()
	for _, name := range modules {
		m, err := d.modules.Load(name)
		if err != nil {
			return nil, err
		}
		if err := d.addModuleTests(m, res); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// DocTypesForModuleDef returns the non-table doctypes of a module def that
// have a test module in app
func (d *Discoverer) DocTypesForModuleDef(ctx context.Context, app, moduleDef string) ([]string, error) {
	all, err := d.catalog.DocTypesInModule(ctx, moduleDef)
	if err != nil {
		return nil, err
	}
	var doctypes []string
	for _, doctype := range all {
		testModule, err := d.layout.TestModuleName(doctype, moduleDef, app)
		if err != nil {
			log.WithError(err).Debugf("skipping %s", doctype)
			continue
		}
		if d.modules.Exists(testModule) {
			doctypes = append(doctypes, doctype)
		}
	}
	return doctypes, nil
}

func (d *Discoverer) addModuleTests(m *pymod.Module, res *Result) error {
	if !d.opts.SkipTestRecords && m.HasAttr(pymod.AttrTestDependencies) {
		deps, err := m.StringList(pymod.AttrTestDependencies)
		if err != nil {
			return fmt.Errorf("%s: %w", m.Name, err)
		}
		res.Dependencies = append(res.Dependencies, deps...)
	}

	classes, err := d.modules.TestClasses(m)
	if err != nil {
		return err
	}
	if d.opts.Case != "" {
		if _, ok := m.Class(d.opts.Case); !ok {
			return fmt.Errorf("module %s has no class %s", m.Name, d.opts.Case)
		}
		classes = lo.Filter(classes, func(c pymod.TestClass, _ int) bool { return c.Name == d.opts.Case })
	}

	for _, c := range classes {
		if len(d.opts.Categories) > 0 && !lo.Contains(d.opts.Categories, c.Category) {
			continue
		}
		for _, method := range c.Methods {
			if !d.filter.Allows(method) {
				continue
			}
			res.Suite(c.Category).Add(domain.TestCase{
				Module:   m.Name,
				Class:    c.Name,
				Method:   method,
				Category: c.Category,
				File:     m.Path,
			})
		}
	}
	return nil
}
