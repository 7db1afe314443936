package execution

import (
	"context"
	"sync"
	"time"

	"ftr/internal/domain"
)

// WorkerPool manages a pool of workers for parallel batch execution
type WorkerPool struct {
	runner   BatchRunner
	workers  int
	reporter Reporter
}

// NewWorkerPool creates a new WorkerPool
func NewWorkerPool(runner BatchRunner, workers int) *WorkerPool {
	if workers <= 0 {
		workers = 1
	}
	return &WorkerPool{runner: runner, workers: workers}
}

// SetReporter sets the reporter notified of each finished batch
func (wp *WorkerPool) SetReporter(r Reporter) {
	wp.reporter = r
}

// Execute runs every batch of the suite. With failFast no new batch starts
// after one fails; batches already running still finish and are reported.
func (wp *WorkerPool) Execute(ctx context.Context, suite *domain.Suite, failFast bool) (*domain.SuiteResult, error) {
	result := &domain.SuiteResult{Category: suite.Category}
	batches := suite.Batches()
	if len(batches) == 0 {
		return result, nil
	}
	startTime := time.Now()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type indexed struct {
		index int
		res   domain.BatchResult
	}
	queue := make(chan int)
	results := make(chan indexed, len(batches))

	go func() {
		defer close(queue)
		for i := range batches {
			select {
			case <-ctx.Done():
				return
			case queue <- i:
			}
		}
	}()

	var wg sync.WaitGroup
	for w := 0; w < wp.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range queue {
				if ctx.Err() != nil {
					continue
				}
				res := wp.runner.Run(ctx, batches[i])
				if failFast && !batchSuccessful(res) {
					cancel()
				}
				results <- indexed{index: i, res: res}
			}
		}()
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	// report in suite order
	pending := make(map[int]domain.BatchResult)
	next := 0
	for r := range results {
		pending[r.index] = r.res
		for {
			res, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			next++
			wp.collect(result, res)
		}
	}
	// fail-fast leaves gaps; report what ran
	for i := next; i < len(batches); i++ {
		if res, ok := pending[i]; ok {
			wp.collect(result, res)
		}
	}

	result.Duration = time.Since(startTime)
	if err := ctx.Err(); err != nil && !failFast {
		return result, err
	}
	return result, nil
}

func (wp *WorkerPool) collect(result *domain.SuiteResult, res domain.BatchResult) {
	for _, r := range res.Results {
		result.Add(r)
	}
	if res.Stdout != "" {
		result.Profile = append(result.Profile, res.Stdout)
	}
	if wp.reporter != nil {
		wp.reporter.BatchFinished(res)
	}
}

func batchSuccessful(res domain.BatchResult) bool {
	if res.Err != nil {
		return false
	}
	for _, r := range res.Results {
		switch r.Outcome {
		case domain.OutcomeFailed, domain.OutcomeErrored, domain.OutcomeUnexpectedSuccess:
			return false
		}
	}
	return true
}
