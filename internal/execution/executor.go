package execution

import (
	"context"

	"ftr/internal/domain"
)

// Executor executes a suite and returns its results
type Executor interface {
	Execute(ctx context.Context, suite *domain.Suite, failFast bool) (*domain.SuiteResult, error)
}

// BatchRunner runs one batch of tests in a fresh interpreter
type BatchRunner interface {
	Run(ctx context.Context, batch domain.Batch) domain.BatchResult
}

// Reporter receives batch results in suite order
type Reporter interface {
	BatchFinished(res domain.BatchResult)
}
