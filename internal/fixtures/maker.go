package fixtures

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"ftr/internal/bench"
	"ftr/internal/domain"
	"ftr/internal/meta"
	"ftr/internal/pymod"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

// DocStore creates and queries documents on the site
type DocStore interface {
	Exists(ctx context.Context, doctype, name string) (bool, error)
	Insert(ctx context.Context, doc domain.Doc) (domain.Doc, error)
	Submit(ctx context.Context, doc domain.Doc) error
	RevertSeries(ctx context.Context, series, name string) error
	// MakeTestRecords calls the _make_test_records function of a test module
	MakeTestRecords(ctx context.Context, module string) ([]string, error)
}

// RecordLog tracks the doctypes whose test records were created
type RecordLog interface {
	Contains(doctype string) (bool, error)
	Add(doctype string) error
}

// Observer is notified as test records are made
type Observer interface {
	RecordsMade(doctype string, names []string)
}

// Maker creates test records, dependencies first
type Maker struct {
	resolver *Resolver
	locator  *Locator
	meta     meta.Loader
	store    DocStore
	log      RecordLog
	observer Observer

	mu      sync.Mutex
	objects map[string][]string // doctype -> names made this run
}

// NewMaker creates a Maker
func NewMaker(resolver *Resolver, locator *Locator, loader meta.Loader, store DocStore, recordLog RecordLog) *Maker {
	return &Maker{
		resolver: resolver,
		locator:  locator,
		meta:     loader,
		store:    store,
		log:      recordLog,
		objects:  make(map[string][]string),
	}
}

// SetObserver registers an observer for created records
func (m *Maker) SetObserver(o Observer) {
	m.observer = o
}

// Objects returns the names made for doctype during this run
func (m *Maker) Objects(doctype string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.objects[doctype]...)
}

// MakeTestRecords makes the test records of every dependency of doctype
// that this run has not handled yet, depth first
func (m *Maker) MakeTestRecords(ctx context.Context, doctype string, force bool) error {
	deps, err := m.resolver.Dependencies(ctx, doctype)
	if err != nil {
		return err
	}
	for _, dep := range deps {
		if dep == meta.SelectPlaceholder {
			continue
		}
		m.mu.Lock()
		_, seen := m.objects[dep]
		if !seen {
			m.objects[dep] = []string{}
		}
		m.mu.Unlock()
		if seen {
			continue
		}

		if err := m.MakeTestRecords(ctx, dep, force); err != nil {
			return err
		}
		if err := m.MakeTestRecordsForDocType(ctx, dep, force); err != nil {
			return err
		}
	}
	return nil
}

// MakeTestRecordsForDocType makes the records of one doctype unless the
// record log has it. Records come from the test module's
// _make_test_records, its test_records, or a record file, in that order.
func (m *Maker) MakeTestRecordsForDocType(ctx context.Context, doctype string, force bool) error {
	if !force {
		logged, err := m.log.Contains(doctype)
		if err != nil {
			return err
		}
		if logged {
			return nil
		}
	}

	loc, err := m.locator.Locate(ctx, doctype)
	if err != nil {
		return err
	}
	log.Debugf("Making test records for %s", doctype)

	names, err := m.makeFromSources(ctx, loc, force)
	if err != nil {
		return err
	}
	if names != nil {
		m.mu.Lock()
		m.objects[doctype] = append(m.objects[doctype], names...)
		m.mu.Unlock()
		if m.observer != nil {
			m.observer.RecordsMade(doctype, names)
		}
	}
	return m.log.Add(doctype)
}

func (m *Maker) makeFromSources(ctx context.Context, loc *Location, force bool) ([]string, error) {
	if src := loc.Source; src != nil {
		if src.MakesTestRecords() {
			names, err := m.store.MakeTestRecords(ctx, loc.TestModule)
			if err != nil {
				return nil, fmt.Errorf("make test records of %s: %w", loc.DocType, err)
			}
			return names, nil
		}
		records, ok, err := src.TestRecords()
		switch {
		case ok && err == nil:
			return m.MakeTestObjects(ctx, loc.DocType, records, force)
		case ok && !errors.Is(err, pymod.ErrNotLiteral):
			return nil, err
		case ok:
			// usually frappe.get_test_records, which reads the record file
			log.WithError(err).Debugf("%s: test_records is not a literal, using record files", loc.TestModule)
		}
	}

	records, ok, err := LoadRecordFile(loc.Dir, loc.DocType)
	if err != nil {
		return nil, err
	}
	if ok && len(records) > 0 {
		return m.MakeTestObjects(ctx, loc.DocType, records, force)
	}
	if log.IsLevelEnabled(log.DebugLevel) {
		m.logMandatoryFields(ctx, loc.DocType)
	}
	return nil, nil
}

// MakeTestObjects inserts records of doctype and returns their names.
// Existing documents are skipped unless reset is set.
func (m *Maker) MakeTestObjects(ctx context.Context, doctype string, records []domain.Doc, reset bool) ([]string, error) {
	log.Debugf("Making test objects for doctype: %s", doctype)
	var names []string
	for _, record := range records {
		d := record.Copy()
		if d.DocType() == "" {
			d["doctype"] = doctype
		}
		dt, err := m.meta.Load(ctx, d.DocType())
		if err != nil {
			return names, err
		}

		if dt.HasField("naming_series") && d.String("naming_series") == "" {
			d["naming_series"] = "_T-" + d.DocType() + "-"
		}
		name := recordName(dt, d)

		if name != "" && !reset {
			exists, err := m.store.Exists(ctx, d.DocType(), name)
			if err != nil {
				return names, err
			}
			if exists {
				continue
			}
		}

		docstatus := d.Int("docstatus")
		d["docstatus"] = 0

		inserted, err := m.store.Insert(ctx, d)
		if err == nil {
			if n := inserted.Name(); n != "" {
				name = n
			}
			if docstatus == 1 {
				inserted["docstatus"] = 0
				err = m.store.Submit(ctx, inserted)
			}
		}
		if err != nil {
			if !m.ignorable(ctx, d.DocType(), err) {
				log.Debugf("Error in making test record for %s %s", d.DocType(), name)
				return names, fmt.Errorf("make %s test record %q: %w", d.DocType(), name, err)
			}
			m.revertNaming(ctx, d, name)
		}
		if name != "" {
			names = append(names, name)
		}
	}
	return names, nil
}

// recordName is the name the record will be stored under, when known
// before insert
func recordName(dt *meta.DocType, d domain.Doc) string {
	if name := d.Name(); name != "" {
		return name
	}
	if field := dt.NameField(); field != "" {
		return strings.TrimSpace(d.String(field))
	}
	return ""
}

// nameErrors are frappe.NameError and its subclasses
var nameErrors = []string{
	"frappe.exceptions.NameError",
	"frappe.exceptions.DuplicateEntryError",
}

// ignorable reports whether an insert error is swallowed: name conflicts
// always, other exceptions when the test module whitelists them
func (m *Maker) ignorable(ctx context.Context, doctype string, err error) bool {
	if lo.SomeBy(nameErrors, func(name string) bool { return bench.IsException(err, name) }) {
		return true
	}
	var execErr *bench.ExecError
	if !errors.As(err, &execErr) || execErr.Exception == "" {
		return false
	}
	loc, locErr := m.locator.Locate(ctx, doctype)
	if locErr != nil || loc.Source == nil {
		return false
	}
	ignored, locErr := loc.Source.IgnoredExceptions()
	if locErr != nil {
		return false
	}
	return lo.Contains(ignored, execErr.ExceptionName())
}

func (m *Maker) revertNaming(ctx context.Context, d domain.Doc, name string) {
	series := d.String("naming_series")
	if series == "" || name == "" {
		return
	}
	if err := m.store.RevertSeries(ctx, series, name); err != nil {
		log.WithError(err).Warnf("could not revert naming series %s", series)
	}
}

func (m *Maker) logMandatoryFields(ctx context.Context, doctype string) {
	dt, err := m.meta.Load(ctx, doctype)
	if err != nil {
		return
	}
	log.Debugf("Please setup make_test_records for: %s", doctype)
	log.Debug(strings.Repeat("-", 60))
	log.Debugf("Autoname: %s", dt.Autoname)
	log.Debug("Mandatory Fields:")
	for _, f := range dt.MandatoryFields() {
		log.Debugf(" - %s:%s | %s | %s", f.Parent, f.Fieldname, f.Fieldtype, f.Options)
	}
}
