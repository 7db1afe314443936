// Package fixtures creates test records: the documents a doctype's tests
// expect to exist, together with the records of every doctype they link to.
package fixtures

import (
	"context"
	"errors"
	"fmt"
	"os"

	"ftr/internal/bench"
	"ftr/internal/meta"
	"ftr/internal/pymod"

	log "github.com/sirupsen/logrus"
)

// Location is where a doctype lives in the bench
type Location struct {
	DocType    string
	Module     string
	TestModule string        // dotted name of test_<doctype>
	Dir        string        // doctype directory, empty when the module has no app
	Source     *pymod.Module // nil when the doctype has no test module
}

// Locator finds the module, directory and test module of doctypes
type Locator struct {
	layout  *bench.Layout
	catalog meta.Catalog
	modules *pymod.Loader
}

// NewLocator creates a Locator
func NewLocator(layout *bench.Layout, catalog meta.Catalog, modules *pymod.Loader) *Locator {
	return &Locator{layout: layout, catalog: catalog, modules: modules}
}

// Locate returns the location of a doctype. Unknown doctypes are an error
// wrapping meta.ErrNotFound.
func (l *Locator) Locate(ctx context.Context, doctype string) (*Location, error) {
	module, err := l.catalog.DocTypeModule(ctx, doctype)
	if err != nil {
		return nil, err
	}
	if module == "" {
		return nil, fmt.Errorf("%w: %s", meta.ErrNotFound, doctype)
	}

	loc := &Location{DocType: doctype, Module: module}
	app, err := l.layout.ModuleApp(module)
	if err != nil {
		// custom doctypes belong to no app
		log.WithError(err).Debugf("no app for module of %s", doctype)
		return loc, nil
	}
	loc.TestModule, err = l.layout.TestModuleName(doctype, module, app)
	if err != nil {
		return nil, err
	}
	loc.Dir, err = l.layout.DocTypePath(doctype, module)
	if err != nil {
		return nil, err
	}

	src, err := l.modules.Load(loc.TestModule)
	switch {
	case err == nil:
		loc.Source = src
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, err
	}
	return loc, nil
}
