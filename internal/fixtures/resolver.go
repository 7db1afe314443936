package fixtures

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"ftr/internal/meta"

	"github.com/samber/lo"
)

// Resolver computes the doctypes whose test records a doctype depends on
type Resolver struct {
	meta    meta.Loader
	locator *Locator

	mu    sync.Mutex
	cache map[string][]string
}

// NewResolver creates a Resolver
func NewResolver(loader meta.Loader, locator *Locator) *Resolver {
	return &Resolver{meta: loader, locator: locator, cache: make(map[string][]string)}
}

// Dependencies returns the link targets of the doctype and of its child
// tables, the doctype itself and the test module's extra dependencies, minus
// the module's ignored ones, deduplicated and sorted
func (r *Resolver) Dependencies(ctx context.Context, doctype string) ([]string, error) {
	r.mu.Lock()
	cached, ok := r.cache[doctype]
	r.mu.Unlock()
	if ok {
		return cached, nil
	}

	deps, err := r.resolve(ctx, doctype)
	if err != nil {
		return nil, fmt.Errorf("dependencies of %s: %w", doctype, err)
	}

	r.mu.Lock()
	r.cache[doctype] = deps
	r.mu.Unlock()
	return deps, nil
}

func (r *Resolver) resolve(ctx context.Context, doctype string) ([]string, error) {
	loc, err := r.locator.Locate(ctx, doctype)
	if err != nil {
		return nil, err
	}
	dt, err := r.meta.Load(ctx, doctype)
	if err != nil {
		return nil, err
	}

	links := dt.LinkFields()
	for _, table := range dt.TableFields() {
		child, err := r.meta.Load(ctx, table.Options)
		if err != nil {
			return nil, err
		}
		links = append(links, child.LinkFields()...)
	}

	options := lo.Map(links, func(f meta.Field, _ int) string { return f.Options })
	options = append(options, doctype)

	var ignored []string
	if loc.Source != nil {
		extra, err := loc.Source.RecordDependencies()
		if err != nil {
			return nil, err
		}
		options = append(options, extra...)
		if ignored, err = loc.Source.IgnoredDependencies(); err != nil {
			return nil, err
		}
	}

	deps := lo.Without(lo.Uniq(options), ignored...)
	sort.Strings(deps)
	return deps, nil
}
