package meta

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"ftr/internal/bench"

	"github.com/bmatcuk/doublestar/v4"
	log "github.com/sirupsen/logrus"
)

// FileLoader serves metadata from the doctype JSON files of every app in the
// bench, without a database connection
type FileLoader struct {
	layout *bench.Layout

	once    sync.Once
	index   map[string]string // doctype name -> json path
	byName  map[string]*DocType
	indexMu sync.Mutex
	err     error
}

// NewFileLoader creates a FileLoader for the bench layout
func NewFileLoader(layout *bench.Layout) *FileLoader {
	return &FileLoader{layout: layout}
}

// Load returns the metadata of a doctype
func (f *FileLoader) Load(ctx context.Context, doctype string) (*DocType, error) {
	if err := f.ensureIndex(); err != nil {
		return nil, err
	}
	f.indexMu.Lock()
	defer f.indexMu.Unlock()
	if d, ok := f.byName[doctype]; ok {
		return d, nil
	}
	path, ok := f.index[doctype]
	if !ok {
		return nil, notFound(doctype)
	}
	d, err := ReadDocTypeFile(path)
	if err != nil {
		return nil, err
	}
	f.byName[doctype] = d
	return d, nil
}

// Path returns the JSON file of a doctype
func (f *FileLoader) Path(doctype string) (string, bool) {
	if err := f.ensureIndex(); err != nil {
		return "", false
	}
	p, ok := f.index[doctype]
	return p, ok
}

// DocTypeModule returns the module of a doctype ("" when unknown)
func (f *FileLoader) DocTypeModule(ctx context.Context, doctype string) (string, error) {
	d, err := f.Load(ctx, doctype)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	return d.Module, nil
}

// DocTypesInModule returns the non-table doctypes of a module, sorted
func (f *FileLoader) DocTypesInModule(ctx context.Context, module string) ([]string, error) {
	if err := f.ensureIndex(); err != nil {
		return nil, err
	}
	var out []string
	for name := range f.index {
		d, err := f.Load(ctx, name)
		if err != nil {
			return nil, err
		}
		if d.Module == module && d.IsTable == 0 {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out, nil
}

// InstalledApps returns the bench's apps
func (f *FileLoader) InstalledApps(ctx context.Context) ([]string, error) {
	return f.layout.Apps()
}

func (f *FileLoader) ensureIndex() error {
	f.once.Do(func() {
		f.index = make(map[string]string)
		f.byName = make(map[string]*DocType)
		apps, err := f.layout.Apps()
		if err != nil {
			f.err = err
			return
		}
		for _, app := range apps {
			if err := f.indexApp(app); err != nil {
				f.err = err
				return
			}
		}
		log.Debugf("indexed %d doctypes from %d apps", len(f.index), len(apps))
	})
	return f.err
}

func (f *FileLoader) indexApp(app string) error {
	appPath := f.layout.AppPath(app)
	matches, err := doublestar.Glob(os.DirFS(appPath), "*/doctype/*/*.json")
	if err != nil {
		return fmt.Errorf("scan doctypes of %s: %w", app, err)
	}
	for _, rel := range matches {
		dir := filepath.Base(filepath.Dir(rel))
		if strings.TrimSuffix(filepath.Base(rel), ".json") != dir {
			continue
		}
		path := filepath.Join(appPath, filepath.FromSlash(rel))
		name, err := ReadDocTypeName(path)
		if err != nil {
			log.WithError(err).Debugf("skipping %s", path)
			continue
		}
		if name != "" {
			f.index[name] = path
		}
	}
	return nil
}

// ReadDocTypeName returns the "name" of a doctype JSON file
func ReadDocTypeName(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	var head struct {
		Name    string `json:"name"`
		DocType string `json:"doctype"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return "", fmt.Errorf("parse %s: %w", path, err)
	}
	if head.DocType != "" && head.DocType != "DocType" {
		return "", nil
	}
	return head.Name, nil
}

// ReadDocTypeFile parses a doctype JSON file
func ReadDocTypeFile(path string) (*DocType, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var d DocType
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	for i := range d.Fields {
		d.Fields[i].Parent = d.Name
	}
	return &d, nil
}
