package execution

import (
	"context"
	"errors"
	"os/exec"
	"sync"
	"testing"
	"time"

	"ftr/internal/config"
	"ftr/internal/domain"
	"ftr/internal/parser"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBatch(class string, methods ...string) domain.Batch {
	b := domain.Batch{Module: "library.library.doctype.article.test_article", Class: class}
	for _, m := range methods {
		b.Cases = append(b.Cases, domain.TestCase{Module: b.Module, Class: class, Method: m, Category: domain.CategoryUnit})
	}
	return b
}

func TestRunner_Args(t *testing.T) {
	cfg := config.New()
	cfg.Flags.Profile = true
	cfg.Flags.Durations = true
	cfg.Flags.FailFast = true
	r := NewRunner(cfg, parser.NewUnittestParser(), nil)

	args := r.Args(testBatch("TestArticle", "test_a"))
	assert.Equal(t, []string{
		"-m", "cProfile", "-s", "cumulative",
		"-m", "unittest", "-v", "--durations", "0", "-f",
		"library.library.doctype.article.test_article.TestArticle.test_a",
	}, args)
}

func TestRunner_Run(t *testing.T) {
	cfg := config.New()
	cfg.BenchPath = "/bench"
	cfg.Flags.Site = "test_site"

	var gotDir, gotName string
	run := func(ctx context.Context, dir, name string, args ...string) ([]byte, []byte, error) {
		gotDir, gotName = dir, name
		stderr := `test_a (library.library.doctype.article.test_article.TestArticle.test_a) ... ok
test_b (library.library.doctype.article.test_article.TestArticle.test_b) ... FAIL

======================================================================
FAIL: test_b (library.library.doctype.article.test_article.TestArticle.test_b)
----------------------------------------------------------------------
Traceback (most recent call last):
AssertionError: 1 != 2

----------------------------------------------------------------------
Ran 2 tests in 0.010s

FAILED (failures=1)
`
		return []byte("printed\n"), []byte(stderr), &exec.ExitError{}
	}
	r := NewRunner(cfg, parser.NewUnittestParser(), run)

	res := r.Run(context.Background(), testBatch("TestArticle", "test_a", "test_b"))
	require.NoError(t, res.Err)
	assert.Equal(t, "/bench/sites", gotDir)
	assert.Equal(t, "/bench/env/bin/python", gotName)
	assert.Equal(t, "printed\n", res.Stdout)
	require.Len(t, res.Results, 2)
	assert.Equal(t, domain.OutcomePassed, res.Results[0].Outcome)
	assert.Equal(t, domain.OutcomeFailed, res.Results[1].Outcome)
	assert.Contains(t, res.Results[1].Details, "AssertionError: 1 != 2")
}

func TestRunner_RunStartFailure(t *testing.T) {
	run := func(ctx context.Context, dir, name string, args ...string) ([]byte, []byte, error) {
		return nil, nil, errors.New("fork/exec env/bin/python: no such file or directory")
	}
	r := NewRunner(config.New(), parser.NewUnittestParser(), run)

	res := r.Run(context.Background(), testBatch("TestArticle", "test_a", "test_b"))
	require.Error(t, res.Err)
	require.Len(t, res.Results, 2)
	for _, tr := range res.Results {
		assert.Equal(t, domain.OutcomeErrored, tr.Outcome)
		assert.Contains(t, tr.Details, "no such file or directory")
	}
}

type fakeRunner struct {
	mu    sync.Mutex
	ran   []string
	fails map[string]bool
	delay map[string]time.Duration
}

func (f *fakeRunner) Run(ctx context.Context, batch domain.Batch) domain.BatchResult {
	if d := f.delay[batch.Class]; d > 0 {
		time.Sleep(d)
	}
	f.mu.Lock()
	f.ran = append(f.ran, batch.Class)
	f.mu.Unlock()

	outcome := domain.OutcomePassed
	if f.fails[batch.Class] {
		outcome = domain.OutcomeFailed
	}
	res := domain.BatchResult{Batch: batch}
	for _, tc := range batch.Cases {
		res.Results = append(res.Results, domain.TestResult{Case: tc, Outcome: outcome})
	}
	return res
}

type recorder struct {
	classes []string
}

func (r *recorder) BatchFinished(res domain.BatchResult) {
	r.classes = append(r.classes, res.Batch.Class)
}

func suiteOf(classes ...string) *domain.Suite {
	s := domain.NewSuite(domain.CategoryUnit)
	for _, c := range classes {
		for _, m := range []string{"test_one", "test_two"} {
			s.Add(domain.TestCase{Module: "library.tests.test_" + c, Class: c, Method: m, Category: domain.CategoryUnit})
		}
	}
	return s
}

func TestWorkerPool_ExecuteReportsInOrder(t *testing.T) {
	runner := &fakeRunner{delay: map[string]time.Duration{"TestA": 30 * time.Millisecond}}
	pool := NewWorkerPool(runner, 3)
	rec := &recorder{}
	pool.SetReporter(rec)

	result, err := pool.Execute(context.Background(), suiteOf("TestA", "TestB", "TestC"), false)
	require.NoError(t, err)
	assert.Equal(t, []string{"TestA", "TestB", "TestC"}, rec.classes)
	assert.Equal(t, 6, result.TestsRun())
	assert.True(t, result.WasSuccessful())
	assert.Equal(t, "TestA", result.Results[0].Case.Class)
	assert.Equal(t, domain.CategoryUnit, result.Category)
}

func TestWorkerPool_ExecuteFailFast(t *testing.T) {
	runner := &fakeRunner{fails: map[string]bool{"TestB": true}}
	pool := NewWorkerPool(runner, 1)

	result, err := pool.Execute(context.Background(), suiteOf("TestA", "TestB", "TestC", "TestD"), true)
	require.NoError(t, err)
	assert.NotContains(t, runner.ran, "TestD")
	assert.False(t, result.WasSuccessful())
	assert.Len(t, result.Failures(), 2)
}

func TestWorkerPool_ExecuteEmpty(t *testing.T) {
	pool := NewWorkerPool(&fakeRunner{}, 0)
	result, err := pool.Execute(context.Background(), domain.NewSuite(domain.CategoryIntegration), false)
	require.NoError(t, err)
	assert.Equal(t, 0, result.TestsRun())
	assert.Equal(t, domain.CategoryIntegration, result.Category)
}
