package pymod

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLiteral(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want any
	}{
		{"single quoted", `'Item'`, "Item"},
		{"double quoted with escape", `"a\"b\n"`, "a\"b\n"},
		{"raw string", `r"\d+"`, `\d+`},
		{"triple quoted", "\"\"\"line one\nline two\"\"\"", "line one\nline two"},
		{"adjacent strings", `("_Test " "Company")`, "_Test Company"},
		{"unicode escape", `"caf\u00e9"`, "café"},
		{"f-string without placeholders", `f"plain {{x}}"`, "plain {x}"},
		{"int", `42`, int64(42)},
		{"negative int", `-7`, int64(-7)},
		{"underscored int", `1_000`, int64(1000)},
		{"float", `12.5`, 12.5},
		{"exponent", `1e3`, 1000.0},
		{"hex", `0x1f`, int64(31)},
		{"booleans and none", `[True, False, None]`, []any{true, false, nil}},
		{"tuple", `("User", "Role",)`, []any{"User", "Role"}},
		{"set", `{"User", "Role"}`, []any{"User", "Role"}},
		{"parenthesized", `("User")`, "User"},
		{"empty list", `[]`, []any{}},
		{
			"nested dict with comments",
			`[
				# first record
				{"doctype": "ToDo", "description": "_Test", "idx": 1, "items": [{"qty": 2.0}]},
			]`,
			[]any{map[string]any{
				"doctype":     "ToDo",
				"description": "_Test",
				"idx":         int64(1),
				"items":       []any{map[string]any{"qty": 2.0}},
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLiteral(tt.src)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseLiteral_NotLiteral(t *testing.T) {
	for _, src := range []string{
		`frappe.get_test_records("User")`,
		`[make_item()]`,
		`f"{name}"`,
		`some_name`,
	} {
		_, err := ParseLiteral(src)
		assert.True(t, errors.Is(err, ErrNotLiteral), "%s: %v", src, err)
	}
}

func TestParseLiteral_Errors(t *testing.T) {
	for _, src := range []string{
		`"unterminated`,
		`[1, 2`,
		`{"a": 1, "b"}`,
		`[1] extra`,
	} {
		_, err := ParseLiteral(src)
		assert.Error(t, err, src)
	}
}

func TestParseLiteralPrefix(t *testing.T) {
	v, n, err := parseLiteralPrefix(` ["Item", "Company"]
other = 1`)
	require.NoError(t, err)
	assert.Equal(t, []any{"Item", "Company"}, v)
	assert.Equal(t, 20, n)
}
