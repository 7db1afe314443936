package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"ftr/internal/config"
	"ftr/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTestRecordLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "site1", ".test_log")
	log := NewTestRecordLog(path)

	items, err := log.Get()
	require.NoError(t, err)
	assert.Empty(t, items)

	require.NoError(t, log.Add("User"))
	require.NoError(t, log.Add("Role"))
	require.NoError(t, log.Add("User"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "User\nRole", string(data))

	reopened := NewTestRecordLog(path)
	items, err = reopened.Get()
	require.NoError(t, err)
	assert.Equal(t, []string{"User", "Role"}, items)

	ok, err := reopened.Contains("Role")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, reopened.Clear())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	items, err = reopened.Get()
	require.NoError(t, err)
	assert.Empty(t, items)

	// clearing twice is fine
	assert.NoError(t, reopened.Clear())
}

func TestJSONStorage_SaveLoad(t *testing.T) {
	cfg := config.New()
	cfg.BenchPath = t.TempDir()
	store := NewJSONStorage(cfg)

	tc := domain.TestCase{Module: "app.tests.test_x", Class: "TestX", Method: "test_a", Category: domain.CategoryUnit}
	unit := &domain.SuiteResult{Category: domain.CategoryUnit}
	unit.Add(domain.TestResult{Case: tc, Outcome: domain.OutcomePassed})
	failed := tc
	failed.Method = "test_b"
	unit.Add(domain.TestResult{Case: failed, Outcome: domain.OutcomeFailed, Details: "Traceback\nAssertionError: 1 != 2\n"})
	integration := &domain.SuiteResult{Category: domain.CategoryIntegration}
	integration.Add(domain.TestResult{Case: tc, Outcome: domain.OutcomeSkipped})

	require.NoError(t, store.Save("site1", []*domain.SuiteResult{unit, integration, nil}, 1500*time.Millisecond))

	out, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "site1", out.Meta.Site)
	assert.Equal(t, 3, out.Meta.TotalTests)
	assert.Equal(t, 2, out.Meta.UnitTests)
	assert.Equal(t, 1, out.Meta.IntegrationTests)
	assert.Equal(t, 1, out.Meta.FailedTests)
	assert.Equal(t, 1, out.Meta.SkippedTests)
	assert.Equal(t, 1.5, out.Meta.DurationSeconds)
	require.Len(t, out.Details, 1)
	assert.Equal(t, "test_b", out.Details[0].TestName)
	assert.Equal(t, "AssertionError: 1 != 2", out.Details[0].Message)

	out.Details[0].Resolved = true
	require.NoError(t, store.SaveOutput(out))
	again, err := store.Load()
	require.NoError(t, err)
	assert.True(t, again.Details[0].Resolved)
}

func TestJSONStorage_LoadMissing(t *testing.T) {
	cfg := config.New()
	cfg.BenchPath = t.TempDir()
	_, err := NewJSONStorage(cfg).Load()
	assert.Error(t, err)
}
