package bench

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"

	"ftr/internal/domain"

	log "github.com/sirupsen/logrus"
)

// CommandRunner runs a command in dir and returns its separated output
type CommandRunner func(ctx context.Context, dir string, name string, args ...string) (stdout, stderr []byte, err error)

// ExecCommand is the CommandRunner backed by os/exec
func ExecCommand(ctx context.Context, dir string, name string, args ...string) ([]byte, []byte, error) {
	return ExecCommandEnv(ctx, dir, nil, name, args...)
}

// ExecCommandEnv runs a command with env added to the process environment
func ExecCommandEnv(ctx context.Context, dir string, env []string, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), env...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// ExecError is returned when a method executed through bench raised
type ExecError struct {
	Method    string
	Exception string // Qualified exception class, e.g. frappe.exceptions.NameError
	Message   string
	Output    string
	Err       error
}

func (e *ExecError) Error() string {
	if e.Exception != "" {
		return fmt.Sprintf("%s raised %s: %s", e.Method, e.Exception, e.Message)
	}
	return fmt.Sprintf("%s failed: %v", e.Method, e.Err)
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

// ExceptionName returns the unqualified exception class
func (e *ExecError) ExceptionName() string {
	if i := strings.LastIndex(e.Exception, "."); i >= 0 {
		return e.Exception[i+1:]
	}
	return e.Exception
}

// IsException reports whether err is an ExecError raised with the named
// exception. name may be qualified or not.
func IsException(err error, name string) bool {
	var execErr *ExecError
	if !errors.As(err, &execErr) || execErr.Exception == "" {
		return false
	}
	if strings.Contains(name, ".") {
		return execErr.Exception == name
	}
	return execErr.ExceptionName() == name
}

// Bench calls into a site's python environment through the bench CLI
type Bench struct {
	layout *Layout
	bin    string
	python string
	site   string
	run    CommandRunner
}

// New creates a Bench for a site. python is the bench environment's
// interpreter.
func New(layout *Layout, bin, python, site string, run CommandRunner) *Bench {
	if run == nil {
		run = ExecCommand
	}
	return &Bench{layout: layout, bin: bin, python: python, site: site, run: run}
}

// Site returns the site this bench operates on
func (b *Bench) Site() string {
	return b.site
}

// Execute runs a whitelisted or importable python callable on the site and
// decodes its JSON result (nil when the callable returned nothing)
func (b *Bench) Execute(ctx context.Context, method string, kwargs map[string]any) (json.RawMessage, error) {
	args := []string{"--site", b.site, "execute", method}
	if len(kwargs) > 0 {
		encoded, err := json.Marshal(kwargs)
		if err != nil {
			return nil, fmt.Errorf("encode kwargs for %s: %w", method, err)
		}
		args = append(args, "--kwargs", string(encoded))
	}

	log.WithField("method", method).Debug("bench execute")
	stdout, stderr, err := b.run(ctx, b.layout.SitesPath(), b.bin, args...)
	if err != nil {
		exception, message := parseException(string(stderr))
		return nil, &ExecError{
			Method:    method,
			Exception: exception,
			Message:   message,
			Output:    string(stderr),
			Err:       err,
		}
	}
	return lastJSON(stdout), nil
}

// insertTestDocScript runs a document's before_test_insert hook and inserts
// it. An existing name is left alone rather than raising.
const insertTestDocScript = `import json, sys
import frappe

frappe.init(site=sys.argv[1], sites_path=".")
frappe.connect()
try:
	frappe.flags.in_test = True
	d = frappe.copy_doc(json.loads(sys.argv[2]))
	d.run_method("before_test_insert")
	d.insert(ignore_if_duplicate=True)
	frappe.db.commit()
	print(frappe.as_json(d.as_dict(), indent=None))
finally:
	frappe.destroy()
`

// InsertTestDoc inserts a test record through the ORM, running its
// before_test_insert hook first, and returns the stored document. A
// duplicate name is not an error.
func (b *Bench) InsertTestDoc(ctx context.Context, doc domain.Doc) (domain.Doc, error) {
	encoded, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", doc.DocType(), err)
	}

	log.WithField("doctype", doc.DocType()).Debug("insert test record")
	stdout, stderr, err := b.run(ctx, b.layout.SitesPath(), b.python, "-c", insertTestDocScript, b.site, string(encoded))
	if err != nil {
		exception, message := parseException(string(stderr))
		return nil, &ExecError{
			Method:    "insert " + doc.DocType(),
			Exception: exception,
			Message:   message,
			Output:    string(stderr),
			Err:       err,
		}
	}

	var out domain.Doc
	if raw := lastJSON(stdout); len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, fmt.Errorf("decode inserted %s: %w", doc.DocType(), err)
		}
	}
	if out == nil {
		out = doc.Copy()
	}
	return out, nil
}

// SubmitDoc submits a previously inserted document
func (b *Bench) SubmitDoc(ctx context.Context, doc domain.Doc) error {
	_, err := b.Execute(ctx, "frappe.client.submit", map[string]any{"doc": doc})
	return err
}

// RevertSeriesIfLast rolls a naming series back when name was its last value
func (b *Bench) RevertSeriesIfLast(ctx context.Context, series, name string) error {
	_, err := b.Execute(ctx, "frappe.model.naming.revert_series_if_last", map[string]any{"key": series, "name": name})
	return err
}

// ClearCache clears the site cache
func (b *Bench) ClearCache(ctx context.Context) error {
	_, err := b.Execute(ctx, "frappe.clear_cache", nil)
	return err
}

// Migrate runs the site's schema sync and pending patches and returns the
// command output
func (b *Bench) Migrate(ctx context.Context, skipFailing bool) (string, error) {
	args := []string{"--site", b.site, "migrate"}
	if skipFailing {
		args = append(args, "--skip-failing")
	}
	log.WithField("site", b.site).Debug("bench migrate")
	stdout, stderr, err := b.run(ctx, b.layout.SitesPath(), b.bin, args...)
	if err != nil {
		exception, message := parseException(string(stderr))
		return string(stdout), &ExecError{
			Method:    "migrate",
			Exception: exception,
			Message:   message,
			Output:    string(stderr),
			Err:       err,
		}
	}
	return string(stdout), nil
}

// CallNames calls a method returning a list of document names (or documents)
func (b *Bench) CallNames(ctx context.Context, method string) ([]string, error) {
	raw, err := b.Execute(ctx, method, nil)
	if err != nil {
		return nil, err
	}
	return DecodeNames(raw)
}

// DecodeNames accepts a JSON list of strings or of objects with a name field
func DecodeNames(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("expected a list of names: %w", err)
	}
	names := make([]string, 0, len(items))
	for _, item := range items {
		var name string
		if err := json.Unmarshal(item, &name); err == nil {
			names = append(names, name)
			continue
		}
		var doc domain.Doc
		if err := json.Unmarshal(item, &doc); err != nil {
			return nil, fmt.Errorf("unexpected list item %s", string(item))
		}
		names = append(names, doc.Name())
	}
	return names, nil
}

var exceptionLine = regexp.MustCompile(`^([A-Za-z_][\w.]*)(?::\s*(.*))?$`)

// parseException extracts the exception class and message from the last
// line of a python traceback
func parseException(stderr string) (string, string) {
	if !strings.Contains(stderr, "Traceback (most recent call last)") {
		return "", strings.TrimSpace(domain.LastErrorLine(stderr))
	}
	last := domain.LastErrorLine(stderr)
	m := exceptionLine.FindStringSubmatch(last)
	if m == nil {
		return "", last
	}
	return m[1], strings.TrimSpace(m[2])
}

// lastJSON returns the method's JSON result. bench prints it on one line
// after anything the method itself printed.
func lastJSON(stdout []byte) json.RawMessage {
	trimmed := bytes.TrimSpace(stdout)
	if len(trimmed) == 0 {
		return nil
	}
	if json.Valid(trimmed) {
		return json.RawMessage(trimmed)
	}
	lines := strings.Split(string(trimmed), "\n")
	line := strings.TrimSpace(lines[len(lines)-1])
	if json.Valid([]byte(line)) {
		return json.RawMessage(line)
	}
	return nil
}
