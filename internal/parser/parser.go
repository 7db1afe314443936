package parser

import "ftr/internal/domain"

// Parser turns the output of one interpreter run into per-test results
type Parser interface {
	Parse(batch domain.Batch, output string) []domain.TestResult
}
