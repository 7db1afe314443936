package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"ftr/internal/domain"
)

// Save writes the suite results and their failures to the configured JSON output file.
func (s *JSONStorage) Save(site string, suites []*domain.SuiteResult, duration time.Duration) error {
	meta := domain.TestResultsMeta{
		Site:            site,
		Duration:        duration.String(),
		DurationSeconds: duration.Seconds(),
		Timestamp:       time.Now().Format(time.RFC3339),
	}

	failures := []domain.TestFailure{}
	for _, suite := range suites {
		if suite == nil {
			continue
		}
		meta.TotalTests += suite.TestsRun()
		switch suite.Category {
		case domain.CategoryUnit:
			meta.UnitTests += suite.TestsRun()
		case domain.CategoryIntegration:
			meta.IntegrationTests += suite.TestsRun()
		}
		meta.FailedTests += len(suite.Failures())
		meta.ErroredTests += len(suite.Errors())
		meta.SkippedTests += len(suite.Skipped())

		for _, res := range suite.Results {
			if res.Outcome == domain.OutcomeFailed || res.Outcome == domain.OutcomeErrored {
				failures = append(failures, domain.NewTestFailure(res))
			}
		}
	}

	return s.SaveOutput(&domain.TestResultsOutput{Meta: meta, Details: failures})
}

// Load reads the last test results from the configured JSON output file.
func (s *JSONStorage) Load() (*domain.TestResultsOutput, error) {
	path := s.cfg.GetOutputPath()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read results file: %w", err)
	}
	var output domain.TestResultsOutput
	if err := json.Unmarshal(data, &output); err != nil {
		return nil, fmt.Errorf("parse results: %w", err)
	}
	return &output, nil
}

// SaveOutput writes the full output to the configured JSON file.
func (s *JSONStorage) SaveOutput(output *domain.TestResultsOutput) error {
	data, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}
	path := s.cfg.GetOutputPath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write results: %w", err)
	}
	return nil
}
