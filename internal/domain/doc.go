package domain

import (
	"fmt"
	"strconv"
)

// Doc is a Frappe document as exchanged with the ORM: a JSON object
type Doc map[string]any

// Copy returns a deep copy of the document
func (d Doc) Copy() Doc {
	out := make(Doc, len(d))
	for k, v := range d {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return map[string]any(Doc(t).Copy())
	case Doc:
		return t.Copy()
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = copyValue(e)
		}
		return out
	}
	return v
}

// String returns a field as a string ("" when unset)
func (d Doc) String(field string) string {
	v, ok := d[field]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}

// Int returns a numeric field as int (0 when unset or not numeric)
func (d Doc) Int(field string) int {
	switch t := d[field].(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	case bool:
		if t {
			return 1
		}
	case string:
		n, _ := strconv.Atoi(t)
		return n
	}
	return 0
}

// DocType returns the doctype field
func (d Doc) DocType() string {
	return d.String("doctype")
}

// Name returns the name field
func (d Doc) Name() string {
	return d.String("name")
}
