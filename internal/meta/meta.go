// Package meta loads doctype metadata, the schema of Frappe documents, from
// the site database or from the doctype JSON files shipped with each app.
package meta

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrNotFound is returned for unknown doctypes
var ErrNotFound = errors.New("doctype not found")

// Field types with dependency semantics
const (
	FieldTypeLink             = "Link"
	FieldTypeTable            = "Table"
	FieldTypeTableMultiSelect = "Table MultiSelect"

	// SelectPlaceholder is the options value of link fields that are not bound yet
	SelectPlaceholder = "[Select]"
)

// Field is one field of a doctype
type Field struct {
	Fieldname string `json:"fieldname"`
	Fieldtype string `json:"fieldtype"`
	Options   string `json:"options"`
	Reqd      int    `json:"reqd"`
	Parent    string `json:"parent"`
}

// DocType holds the metadata needed to build test records
type DocType struct {
	Name     string  `json:"name"`
	Module   string  `json:"module"`
	Autoname string  `json:"autoname"`
	IsTable  int     `json:"istable"`
	Fields   []Field `json:"fields"`
}

// LinkFields returns the bound Link fields
func (d *DocType) LinkFields() []Field {
	var out []Field
	for _, f := range d.Fields {
		if f.Fieldtype == FieldTypeLink && f.Options != "" && f.Options != SelectPlaceholder {
			out = append(out, f)
		}
	}
	return out
}

// TableFields returns the child table fields
func (d *DocType) TableFields() []Field {
	var out []Field
	for _, f := range d.Fields {
		if (f.Fieldtype == FieldTypeTable || f.Fieldtype == FieldTypeTableMultiSelect) && f.Options != "" {
			out = append(out, f)
		}
	}
	return out
}

// MandatoryFields returns the fields with reqd set
func (d *DocType) MandatoryFields() []Field {
	var out []Field
	for _, f := range d.Fields {
		if f.Reqd != 0 {
			out = append(out, f)
		}
	}
	return out
}

// Field returns the named field
func (d *DocType) Field(fieldname string) (Field, bool) {
	for _, f := range d.Fields {
		if f.Fieldname == fieldname {
			return f, true
		}
	}
	return Field{}, false
}

// HasField reports whether the doctype has the named field
func (d *DocType) HasField(fieldname string) bool {
	_, ok := d.Field(fieldname)
	return ok
}

// NameField returns the field that names documents for "field:<fieldname>"
// autoname rules
func (d *DocType) NameField() string {
	rule := strings.TrimSpace(d.Autoname)
	if strings.HasPrefix(strings.ToLower(rule), "field:") {
		return strings.TrimSpace(rule[len("field:"):])
	}
	return ""
}

// IsPromptNamed reports whether documents are named by the user
func (d *DocType) IsPromptNamed() bool {
	return strings.EqualFold(strings.TrimSpace(d.Autoname), "prompt")
}

// Loader loads doctype metadata
type Loader interface {
	Load(ctx context.Context, doctype string) (*DocType, error)
}

// Catalog answers doctype lookups across the site
type Catalog interface {
	// DocTypeModule returns the module of a doctype ("" when unknown)
	DocTypeModule(ctx context.Context, doctype string) (string, error)
	// DocTypesInModule returns the non-table doctypes of a module
	DocTypesInModule(ctx context.Context, module string) ([]string, error)
	// InstalledApps returns the apps installed on the site, in install order
	InstalledApps(ctx context.Context) ([]string, error)
}

// CachedLoader memoizes another Loader per doctype
type CachedLoader struct {
	loader Loader
	mu     sync.Mutex
	cache  map[string]*DocType
}

// NewCachedLoader wraps loader with a per-doctype cache
func NewCachedLoader(loader Loader) *CachedLoader {
	return &CachedLoader{loader: loader, cache: make(map[string]*DocType)}
}

// Load returns the cached metadata, loading it on first use
func (c *CachedLoader) Load(ctx context.Context, doctype string) (*DocType, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d, ok := c.cache[doctype]; ok {
		return d, nil
	}
	d, err := c.loader.Load(ctx, doctype)
	if err != nil {
		return nil, err
	}
	c.cache[doctype] = d
	return d, nil
}

// Reset drops every cached doctype
func (c *CachedLoader) Reset() {
	c.mu.Lock()
	c.cache = make(map[string]*DocType)
	c.mu.Unlock()
}

func notFound(doctype string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, doctype)
}
