package hooks

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"ftr/internal/bench"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingExecutor struct {
	calls []string
	fail  string
}

func (r *recordingExecutor) Execute(ctx context.Context, method string, kwargs map[string]any) (json.RawMessage, error) {
	r.calls = append(r.calls, method)
	if method == r.fail {
		return nil, errors.New("boom")
	}
	return nil, nil
}

func newBench(t *testing.T) *bench.Layout {
	t.Helper()
	layout := bench.NewLayout(t.TempDir())
	for app, hooks := range map[string]string{
		"frappe":  "app_name = \"frappe\"\nbefore_tests = \"frappe.utils.install.before_tests\"\n",
		"erpnext": "before_tests = [\n\t\"erpnext.setup.utils.before_tests\",\n\t\"erpnext.tests.utils.prepare\",\n]\n",
	} {
		path := filepath.Join(layout.AppPath(app), "hooks.py")
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(hooks), 0644))
	}
	require.NoError(t, os.MkdirAll(layout.AppPath("nohooks"), 0755))
	return layout
}

func TestHooks_Get(t *testing.T) {
	h := New(newBench(t), &recordingExecutor{})

	functions, err := h.Get(BeforeTests, []string{"frappe", "nohooks", "erpnext"})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"frappe.utils.install.before_tests",
		"erpnext.setup.utils.before_tests",
		"erpnext.tests.utils.prepare",
	}, functions)

	functions, err = h.Get("after_install", []string{"frappe"})
	require.NoError(t, err)
	assert.Empty(t, functions)
}

func TestHooks_Run(t *testing.T) {
	exec := &recordingExecutor{}
	h := New(newBench(t), exec)

	require.NoError(t, h.Run(context.Background(), BeforeTests, []string{"erpnext"}))
	assert.Equal(t, []string{"erpnext.setup.utils.before_tests", "erpnext.tests.utils.prepare"}, exec.calls)

	exec = &recordingExecutor{fail: "erpnext.setup.utils.before_tests"}
	h = New(newBench(t), exec)
	err := h.Run(context.Background(), BeforeTests, []string{"erpnext"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "erpnext.setup.utils.before_tests")
	assert.Len(t, exec.calls, 1)
}
