package meta

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"ftr/internal/bench"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const articleJSON = `{
 "doctype": "DocType",
 "name": "Article",
 "module": "Library Management",
 "autoname": "field:article_name",
 "istable": 0,
 "fields": [
  {"fieldname": "article_name", "fieldtype": "Data", "reqd": 1},
  {"fieldname": "author", "fieldtype": "Link", "options": "Author"},
  {"fieldname": "publisher", "fieldtype": "Link", "options": "[Select]"},
  {"fieldname": "tags", "fieldtype": "Table MultiSelect", "options": "Article Tag"},
  {"fieldname": "naming_series", "fieldtype": "Select", "options": "ART-.####"}
 ]
}`

const articleTagJSON = `{
 "doctype": "DocType",
 "name": "Article Tag",
 "module": "Library Management",
 "istable": 1,
 "fields": [{"fieldname": "tag", "fieldtype": "Link", "options": "Tag"}]
}`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func newLibraryBench(t *testing.T) *bench.Layout {
	t.Helper()
	root := t.TempDir()
	layout := bench.NewLayout(root)
	writeFile(t, filepath.Join(root, "sites", "apps.txt"), "library\n")
	dt := filepath.Join(layout.AppPath("library"), "library_management", "doctype")
	writeFile(t, filepath.Join(dt, "article", "article.json"), articleJSON)
	writeFile(t, filepath.Join(dt, "article", "test_records.json"), `[{"article_name": "Go"}]`)
	writeFile(t, filepath.Join(dt, "article_tag", "article_tag.json"), articleTagJSON)
	return layout
}

func TestDocType_Fields(t *testing.T) {
	d, err := ReadDocTypeFile(writeTemp(t, articleJSON))
	require.NoError(t, err)

	links := d.LinkFields()
	require.Len(t, links, 1)
	assert.Equal(t, "Author", links[0].Options)
	assert.Equal(t, "Article", links[0].Parent)

	tables := d.TableFields()
	require.Len(t, tables, 1)
	assert.Equal(t, "Article Tag", tables[0].Options)

	assert.Len(t, d.MandatoryFields(), 1)
	assert.True(t, d.HasField("naming_series"))
	assert.Equal(t, "article_name", d.NameField())
	assert.False(t, d.IsPromptNamed())
}

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "doctype.json")
	writeFile(t, p, content)
	return p
}

func TestFileLoader(t *testing.T) {
	ctx := context.Background()
	loader := NewFileLoader(newLibraryBench(t))

	d, err := loader.Load(ctx, "Article")
	require.NoError(t, err)
	assert.Equal(t, "Library Management", d.Module)

	_, err = loader.Load(ctx, "Ghost")
	assert.ErrorIs(t, err, ErrNotFound)

	module, err := loader.DocTypeModule(ctx, "Ghost")
	require.NoError(t, err)
	assert.Empty(t, module)

	doctypes, err := loader.DocTypesInModule(ctx, "Library Management")
	require.NoError(t, err)
	assert.Equal(t, []string{"Article"}, doctypes, "child tables are excluded")

	apps, err := loader.InstalledApps(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"library"}, apps)
}

type countingLoader struct {
	calls int
}

func (c *countingLoader) Load(ctx context.Context, doctype string) (*DocType, error) {
	c.calls++
	if doctype == "Ghost" {
		return nil, notFound(doctype)
	}
	return &DocType{Name: doctype}, nil
}

func TestCachedLoader(t *testing.T) {
	inner := &countingLoader{}
	cached := NewCachedLoader(inner)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d, err := cached.Load(ctx, "User")
		require.NoError(t, err)
		assert.Equal(t, "User", d.Name)
	}
	assert.Equal(t, 1, inner.calls)

	_, err := cached.Load(ctx, "Ghost")
	assert.True(t, errors.Is(err, ErrNotFound))

	cached.Reset()
	_, _ = cached.Load(ctx, "User")
	assert.Equal(t, 3, inner.calls)
}

func TestDBLoader(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT module, autoname, istable FROM `tabDocType` WHERE name = ?").
		WithArgs("Article").
		WillReturnRows(sqlmock.NewRows([]string{"module", "autoname", "istable"}).AddRow("Library Management", "prompt", 0))
	mock.ExpectQuery("SELECT fieldname, fieldtype, options, reqd FROM `tabDocField` WHERE parent = ? AND parenttype = 'DocType' ORDER BY idx").
		WithArgs("Article").
		WillReturnRows(sqlmock.NewRows([]string{"fieldname", "fieldtype", "options", "reqd"}).
			AddRow("author", "Link", "Author", 1).
			AddRow("title", "Data", nil, 0))
	mock.ExpectQuery("SELECT fieldname, fieldtype, options, reqd FROM `tabCustom Field` WHERE dt = ? ORDER BY idx").
		WithArgs("Article").
		WillReturnRows(sqlmock.NewRows([]string{"fieldname", "fieldtype", "options", "reqd"}).
			AddRow("reviewer", "Link", "User", 0))
	mock.ExpectQuery("SELECT doctype_or_field, field_name, property, value FROM `tabProperty Setter` WHERE doc_type = ?").
		WithArgs("Article").
		WillReturnRows(sqlmock.NewRows([]string{"doctype_or_field", "field_name", "property", "value"}))

	d, err := NewDBLoader(db).Load(context.Background(), "Article")
	require.NoError(t, err)
	assert.True(t, d.IsPromptNamed())
	assert.Len(t, d.Fields, 3)
	assert.Equal(t, []string{"Author", "User"}, []string{d.LinkFields()[0].Options, d.LinkFields()[1].Options})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDBLoader_PropertySetters(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT module, autoname, istable FROM `tabDocType` WHERE name = ?").
		WithArgs("Article").
		WillReturnRows(sqlmock.NewRows([]string{"module", "autoname", "istable"}).AddRow("Library Management", "prompt", 0))
	mock.ExpectQuery("SELECT fieldname, fieldtype, options, reqd FROM `tabDocField` WHERE parent = ? AND parenttype = 'DocType' ORDER BY idx").
		WithArgs("Article").
		WillReturnRows(sqlmock.NewRows([]string{"fieldname", "fieldtype", "options", "reqd"}).
			AddRow("author", "Link", "Author", 0).
			AddRow("category", "Data", nil, 0))
	mock.ExpectQuery("SELECT fieldname, fieldtype, options, reqd FROM `tabCustom Field` WHERE dt = ? ORDER BY idx").
		WithArgs("Article").
		WillReturnRows(sqlmock.NewRows([]string{"fieldname", "fieldtype", "options", "reqd"}))
	mock.ExpectQuery("SELECT doctype_or_field, field_name, property, value FROM `tabProperty Setter` WHERE doc_type = ?").
		WithArgs("Article").
		WillReturnRows(sqlmock.NewRows([]string{"doctype_or_field", "field_name", "property", "value"}).
			AddRow("DocType", nil, "autoname", "field:title").
			AddRow("DocField", "author", "options", "Contact").
			AddRow("DocField", "author", "reqd", "1").
			AddRow("DocField", "category", "fieldtype", "Link").
			AddRow("DocField", "category", "options", "Article Category").
			AddRow("DocField", "author", "label", "Writer"))

	d, err := NewDBLoader(db).Load(context.Background(), "Article")
	require.NoError(t, err)
	assert.Equal(t, "field:title", d.Autoname)
	assert.False(t, d.IsPromptNamed())

	links := d.LinkFields()
	require.Len(t, links, 2)
	assert.Equal(t, "Contact", links[0].Options)
	assert.Equal(t, 1, links[0].Reqd)
	assert.Equal(t, "Article Category", links[1].Options)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDBLoader_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT module, autoname, istable FROM `tabDocType` WHERE name = ?").
		WithArgs("Ghost").
		WillReturnRows(sqlmock.NewRows([]string{"module", "autoname", "istable"}))

	_, err = NewDBLoader(db).Load(context.Background(), "Ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}
