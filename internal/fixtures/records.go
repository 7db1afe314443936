package fixtures

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"ftr/internal/domain"
	"ftr/internal/pymod"

	"github.com/BurntSushi/toml"
)

// Record files looked up in a doctype directory, in order
var RecordFiles = []string{"test_records.json", "test_records.toml"}

// LoadRecordFile returns the records of doctype from the first record file in
// dir. Files may hold a list of records or a table keyed by doctype. ok is
// false when there is no record file.
func LoadRecordFile(dir, doctype string) (records []domain.Doc, ok bool, err error) {
	if dir == "" {
		return nil, false, nil
	}
	for _, name := range RecordFiles {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, false, err
		}

		var v any
		switch filepath.Ext(name) {
		case ".json":
			err = json.Unmarshal(data, &v)
		case ".toml":
			var table map[string]any
			err = toml.Unmarshal(data, &table)
			v = table
		}
		if err != nil {
			return nil, true, fmt.Errorf("parse %s: %w", path, err)
		}

		records, err := recordsFor(v, doctype)
		if err != nil {
			return nil, true, fmt.Errorf("%s: %w", path, err)
		}
		return records, true, nil
	}
	return nil, false, nil
}

func recordsFor(v any, doctype string) ([]domain.Doc, error) {
	table, ok := v.(map[string]any)
	if !ok {
		return pymod.ToDocs(normalize(v))
	}
	list, ok := table[doctype]
	if !ok {
		// a single record
		return pymod.ToDocs(normalize(table))
	}
	docs, err := pymod.ToDocs(normalize(list))
	if err != nil {
		return nil, err
	}
	for _, d := range docs {
		if d.DocType() == "" {
			d["doctype"] = doctype
		}
	}
	return docs, nil
}

// normalize turns the typed slices some decoders produce into []any
func normalize(v any) any {
	switch t := v.(type) {
	case []map[string]any:
		out := make([]any, len(t))
		for i, m := range t {
			out[i] = normalize(m)
		}
		return out
	case map[string]any:
		for k, e := range t {
			t[k] = normalize(e)
		}
		return t
	case []any:
		for i, e := range t {
			t[i] = normalize(e)
		}
		return t
	}
	return v
}
