// Package hooks reads app hooks from hooks.py and calls them on the site.
package hooks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"ftr/internal/bench"
	"ftr/internal/pymod"

	log "github.com/sirupsen/logrus"
)

// BeforeTests is the hook run once before integration tests
const BeforeTests = "before_tests"

// Executor calls a python function on the site
type Executor interface {
	Execute(ctx context.Context, method string, kwargs map[string]any) (json.RawMessage, error)
}

// Hooks resolves hook functions of the bench's apps
type Hooks struct {
	layout *bench.Layout
	exec   Executor
}

// New creates Hooks
func New(layout *bench.Layout, exec Executor) *Hooks {
	return &Hooks{layout: layout, exec: exec}
}

// Get returns the functions registered for hook by the given apps, in app order
func (h *Hooks) Get(hook string, apps []string) ([]string, error) {
	var functions []string
	for _, app := range apps {
		path := filepath.Join(h.layout.AppPath(app), "hooks.py")
		m, err := pymod.Parse(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		names, err := m.StringList(hook)
		if err != nil {
			return nil, fmt.Errorf("%s hooks of %s: %w", hook, app, err)
		}
		functions = append(functions, names...)
	}
	return functions, nil
}

// Run calls every function registered for hook by the given apps
func (h *Hooks) Run(ctx context.Context, hook string, apps []string) error {
	functions, err := h.Get(hook, apps)
	if err != nil {
		return err
	}
	for _, fn := range functions {
		log.Debugf("Running %s hook %s", hook, fn)
		if _, err := h.exec.Execute(ctx, fn, nil); err != nil {
			return fmt.Errorf("%s hook %s: %w", hook, fn, err)
		}
	}
	return nil
}
