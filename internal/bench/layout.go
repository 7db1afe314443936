package bench

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Layout resolves paths inside a bench directory:
//
//	<root>/apps/<app>/<app>/<module>/doctype/<doctype>/<doctype>.json
//	<root>/sites/<site>/site_config.json
type Layout struct {
	Root string

	once      sync.Once
	moduleApp map[string]string
	loadErr   error
}

// NewLayout creates a Layout rooted at the bench directory
func NewLayout(root string) *Layout {
	return &Layout{Root: root}
}

// Scrub converts a doctype or module name to its python identifier form
func Scrub(name string) string {
	name = strings.ReplaceAll(name, " ", "_")
	name = strings.ReplaceAll(name, "-", "_")
	return strings.ToLower(name)
}

// AppsPath returns the apps directory
func (l *Layout) AppsPath() string {
	return filepath.Join(l.Root, "apps")
}

// SitesPath returns the sites directory
func (l *Layout) SitesPath() string {
	return filepath.Join(l.Root, "sites")
}

// SitePath returns the directory of a site
func (l *Layout) SitePath(site string) string {
	return filepath.Join(l.SitesPath(), site)
}

// AppPath returns the python package directory of an app
func (l *Layout) AppPath(app string) string {
	return filepath.Join(l.AppsPath(), app, app)
}

// Apps returns the apps listed in sites/apps.txt, falling back to the
// directories under apps/
func (l *Layout) Apps() ([]string, error) {
	apps, err := readLines(filepath.Join(l.SitesPath(), "apps.txt"))
	if err == nil && len(apps) > 0 {
		return apps, nil
	}
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	entries, err := os.ReadDir(l.AppsPath())
	if err != nil {
		return nil, fmt.Errorf("read apps directory: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			if _, err := os.Stat(l.AppPath(e.Name())); err == nil {
				apps = append(apps, e.Name())
			}
		}
	}
	return apps, nil
}

// ModuleApp returns the app that declares module in its modules.txt
func (l *Layout) ModuleApp(module string) (string, error) {
	l.once.Do(l.loadModules)
	if l.loadErr != nil {
		return "", l.loadErr
	}
	app, ok := l.moduleApp[Scrub(module)]
	if !ok {
		return "", fmt.Errorf("module %q is not declared by any app", module)
	}
	return app, nil
}

func (l *Layout) loadModules() {
	l.moduleApp = make(map[string]string)
	apps, err := l.Apps()
	if err != nil {
		l.loadErr = err
		return
	}
	for _, app := range apps {
		modules, err := readLines(filepath.Join(l.AppPath(app), "modules.txt"))
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			l.loadErr = err
			return
		}
		for _, m := range modules {
			l.moduleApp[Scrub(m)] = app
		}
	}
}

// TestModuleName returns the dotted name of a doctype's test module. When app
// is empty it is looked up from modules.txt.
func (l *Layout) TestModuleName(doctype, module, app string) (string, error) {
	if app == "" {
		var err error
		if app, err = l.ModuleApp(module); err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("%s.%s.doctype.%s.test_%s", Scrub(app), Scrub(module), Scrub(doctype), Scrub(doctype)), nil
}

// DocTypePath returns the directory holding a doctype's JSON, controller and tests
func (l *Layout) DocTypePath(doctype, module string) (string, error) {
	app, err := l.ModuleApp(module)
	if err != nil {
		return "", err
	}
	return filepath.Join(l.AppPath(app), Scrub(module), "doctype", Scrub(doctype)), nil
}

// ModuleFile resolves a dotted module name to its source file. Packages
// resolve to their __init__.py.
func (l *Layout) ModuleFile(dotted string) (string, error) {
	parts := strings.Split(dotted, ".")
	if len(parts) == 0 || parts[0] == "" {
		return "", fmt.Errorf("invalid module name %q", dotted)
	}
	base := filepath.Join(append([]string{l.AppsPath(), parts[0]}, parts...)...)
	for _, candidate := range []string{base + ".py", filepath.Join(base, "__init__.py")} {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("module %s: %w", dotted, os.ErrNotExist)
}

// AppFile resolves an "<app>/<path>" reference to a file inside the app package
func (l *Layout) AppFile(ref string) (string, error) {
	ref = filepath.ToSlash(ref)
	app, path, ok := strings.Cut(ref, "/")
	if !ok || app == "" || path == "" {
		return "", fmt.Errorf("invalid app path %q (expected <app>/<path>)", ref)
	}
	return filepath.Join(l.AppPath(app), filepath.FromSlash(path)), nil
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" && !strings.HasPrefix(line, "#") {
			lines = append(lines, line)
		}
	}
	return lines, scanner.Err()
}

// ReadLines returns the non-empty lines of a file
func ReadLines(path string) ([]string, error) {
	return readLines(path)
}
