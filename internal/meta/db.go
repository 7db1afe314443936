package meta

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
)

// Querier is the subset of *sql.DB used by DBLoader
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// DBLoader reads metadata from the site database, including custom fields
// and property setters
type DBLoader struct {
	db Querier
}

// NewDBLoader creates a DBLoader
func NewDBLoader(db Querier) *DBLoader {
	return &DBLoader{db: db}
}

// Load returns the metadata of a doctype
func (l *DBLoader) Load(ctx context.Context, doctype string) (*DocType, error) {
	d := &DocType{Name: doctype}
	var autoname sql.NullString
	err := l.db.QueryRowContext(ctx,
		"SELECT module, autoname, istable FROM `tabDocType` WHERE name = ?", doctype,
	).Scan(&d.Module, &autoname, &d.IsTable)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(doctype)
	}
	if err != nil {
		return nil, fmt.Errorf("load doctype %s: %w", doctype, err)
	}
	d.Autoname = autoname.String

	fields, err := l.fields(ctx,
		"SELECT fieldname, fieldtype, options, reqd FROM `tabDocField` "+
			"WHERE parent = ? AND parenttype = 'DocType' ORDER BY idx", doctype)
	if err != nil {
		return nil, fmt.Errorf("load fields of %s: %w", doctype, err)
	}
	custom, err := l.fields(ctx,
		"SELECT fieldname, fieldtype, options, reqd FROM `tabCustom Field` WHERE dt = ? ORDER BY idx", doctype)
	if err != nil {
		return nil, fmt.Errorf("load custom fields of %s: %w", doctype, err)
	}
	d.Fields = append(fields, custom...)
	for i := range d.Fields {
		d.Fields[i].Parent = doctype
	}
	if err := l.applyPropertySetters(ctx, d); err != nil {
		return nil, fmt.Errorf("load property setters of %s: %w", doctype, err)
	}
	return d, nil
}

// applyPropertySetters overrides the properties test records depend on:
// the doctype's autoname and each field's fieldtype, options and reqd
func (l *DBLoader) applyPropertySetters(ctx context.Context, d *DocType) error {
	rows, err := l.db.QueryContext(ctx,
		"SELECT doctype_or_field, field_name, property, value FROM `tabProperty Setter` WHERE doc_type = ?", d.Name)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var target, property string
		var fieldname, value sql.NullString
		if err := rows.Scan(&target, &fieldname, &property, &value); err != nil {
			return err
		}
		if target == "DocType" {
			if property == "autoname" {
				d.Autoname = value.String
			}
			continue
		}
		for i := range d.Fields {
			f := &d.Fields[i]
			if f.Fieldname != fieldname.String {
				continue
			}
			switch property {
			case "fieldtype":
				f.Fieldtype = value.String
			case "options":
				f.Options = value.String
			case "reqd":
				f.Reqd, _ = strconv.Atoi(value.String)
			}
		}
	}
	return rows.Err()
}

func (l *DBLoader) fields(ctx context.Context, query, doctype string) ([]Field, error) {
	rows, err := l.db.QueryContext(ctx, query, doctype)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fields []Field
	for rows.Next() {
		var f Field
		var options sql.NullString
		if err := rows.Scan(&f.Fieldname, &f.Fieldtype, &options, &f.Reqd); err != nil {
			return nil, err
		}
		f.Options = options.String
		fields = append(fields, f)
	}
	return fields, rows.Err()
}
