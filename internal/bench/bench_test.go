package bench

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"ftr/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	dir  string
	name string
	args []string
}

func fakeRunner(stdout, stderr string, err error, calls *[]call) CommandRunner {
	return func(ctx context.Context, dir, name string, args ...string) ([]byte, []byte, error) {
		*calls = append(*calls, call{dir: dir, name: name, args: args})
		return []byte(stdout), []byte(stderr), err
	}
}

func TestBench_Execute(t *testing.T) {
	var calls []call
	l := NewLayout("/bench")
	b := New(l, "bench", "python", "test_site", fakeRunner("creating...\n{\"name\": \"ART-0001\", \"doctype\": \"Article\"}\n", "", nil, &calls))

	raw, err := b.Execute(context.Background(), "library.api.create_article", map[string]any{"title": "Go"})
	require.NoError(t, err)
	var doc domain.Doc
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, "ART-0001", doc.Name())

	require.Len(t, calls, 1)
	assert.Equal(t, "/bench/sites", calls[0].dir)
	assert.Equal(t, "bench", calls[0].name)
	assert.Equal(t, []string{"--site", "test_site", "execute", "library.api.create_article", "--kwargs"}, calls[0].args[:5])

	var kwargs map[string]any
	require.NoError(t, json.Unmarshal([]byte(calls[0].args[5]), &kwargs))
	assert.Equal(t, "Go", kwargs["title"])
}

func TestBench_InsertTestDoc(t *testing.T) {
	var calls []call
	b := New(NewLayout("/bench"), "bench", "/bench/env/bin/python", "test_site",
		fakeRunner("{\"name\": \"Go\", \"doctype\": \"Article\", \"slug\": \"go\"}\n", "", nil, &calls))

	doc, err := b.InsertTestDoc(context.Background(), domain.Doc{"doctype": "Article", "title": "Go"})
	require.NoError(t, err)
	assert.Equal(t, "Go", doc.Name())
	assert.Equal(t, "go", doc.String("slug"))

	require.Len(t, calls, 1)
	assert.Equal(t, "/bench/sites", calls[0].dir)
	assert.Equal(t, "/bench/env/bin/python", calls[0].name)
	require.Len(t, calls[0].args, 4)
	assert.Equal(t, "-c", calls[0].args[0])
	script := calls[0].args[1]
	assert.Less(t, strings.Index(script, `run_method("before_test_insert")`), strings.Index(script, "insert(ignore_if_duplicate=True)"),
		"the hook runs before the insert")
	assert.Contains(t, script, "frappe.db.commit()")
	assert.Equal(t, "test_site", calls[0].args[2])

	var sent domain.Doc
	require.NoError(t, json.Unmarshal([]byte(calls[0].args[3]), &sent))
	assert.Equal(t, "Go", sent.String("title"))
}

func TestBench_ExecuteError(t *testing.T) {
	traceback := `Traceback (most recent call last):
  File "apps/frappe/frappe/model/document.py", line 123, in insert
    self._validate_name()
frappe.exceptions.DuplicateEntryError: ('Article', 'ART-0001')
`
	var calls []call
	b := New(NewLayout("/bench"), "bench", "python", "test_site", fakeRunner("", traceback, errors.New("exit status 1"), &calls))

	_, err := b.InsertTestDoc(context.Background(), domain.Doc{"doctype": "Article"})
	require.Error(t, err)

	var execErr *ExecError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "insert Article", execErr.Method)
	assert.Equal(t, "frappe.exceptions.DuplicateEntryError", execErr.Exception)
	assert.Equal(t, "DuplicateEntryError", execErr.ExceptionName())
	assert.Equal(t, "('Article', 'ART-0001')", execErr.Message)

	assert.True(t, IsException(err, "DuplicateEntryError"))
	assert.True(t, IsException(err, "frappe.exceptions.DuplicateEntryError"))
	assert.False(t, IsException(err, "NameError"))
	assert.False(t, IsException(errors.New("plain"), "NameError"))

	err = b.SubmitDoc(context.Background(), domain.Doc{"doctype": "Article", "name": "ART-0001"})
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "frappe.client.submit", execErr.Method)
}

func TestDecodeNames(t *testing.T) {
	names, err := DecodeNames(json.RawMessage(`["a", {"name": "b", "doctype": "X"}]`))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, names)

	names, err = DecodeNames(nil)
	require.NoError(t, err)
	assert.Empty(t, names)

	_, err = DecodeNames(json.RawMessage(`{"name": "a"}`))
	assert.Error(t, err)
}

func TestLastJSON(t *testing.T) {
	assert.Equal(t, `["x"]`, string(lastJSON([]byte("some print\n[\"x\"]\n"))))
	assert.Equal(t, "{\n \"a\": 1\n}", string(lastJSON([]byte("{\n \"a\": 1\n}\n"))))
	assert.Nil(t, lastJSON([]byte("   ")))
	assert.Nil(t, lastJSON([]byte("done")))
}

func TestBench_Migrate(t *testing.T) {
	var calls []call
	b := New(NewLayout("/bench"), "bench", "python", "test_site", fakeRunner("Migrating test_site\n", "", nil, &calls))

	out, err := b.Migrate(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, "Migrating test_site\n", out)
	require.Len(t, calls, 1)
	assert.Equal(t, []string{"--site", "test_site", "migrate", "--skip-failing"}, calls[0].args)

	failing := New(NewLayout("/bench"), "bench", "python", "test_site", fakeRunner("", "", errors.New("exit status 1"), &calls))
	_, err = failing.Migrate(context.Background(), false)
	var execErr *ExecError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "migrate", execErr.Method)
	assert.Equal(t, []string{"--site", "test_site", "migrate"}, calls[1].args)
}
