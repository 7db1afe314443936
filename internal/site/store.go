package site

import (
	"context"
	"fmt"

	"ftr/internal/bench"
	"ftr/internal/domain"
)

// Store writes documents through the bench bridge and reads them from the
// database
type Store struct {
	db    *Database
	bench *bench.Bench
}

// NewStore creates a Store
func NewStore(db *Database, b *bench.Bench) *Store {
	return &Store{db: db, bench: b}
}

// Exists reports whether a document exists
func (s *Store) Exists(ctx context.Context, doctype, name string) (bool, error) {
	return s.db.DocExists(ctx, doctype, name)
}

// Insert inserts a test record and returns it as stored
func (s *Store) Insert(ctx context.Context, doc domain.Doc) (domain.Doc, error) {
	return s.bench.InsertTestDoc(ctx, doc)
}

// Submit submits an inserted document
func (s *Store) Submit(ctx context.Context, doc domain.Doc) error {
	return s.bench.SubmitDoc(ctx, doc)
}

// RevertSeries rolls back a naming series whose last value is name
func (s *Store) RevertSeries(ctx context.Context, series, name string) error {
	return s.bench.RevertSeriesIfLast(ctx, series, name)
}

// MakeTestRecords calls module._make_test_records on the site
func (s *Store) MakeTestRecords(ctx context.Context, module string) ([]string, error) {
	names, err := s.bench.CallNames(ctx, module+"._make_test_records")
	if err != nil {
		return nil, fmt.Errorf("%s._make_test_records: %w", module, err)
	}
	return names, nil
}

// DeleteAll removes every document of doctype
func (s *Store) DeleteAll(ctx context.Context, doctype string) (int64, error) {
	return s.db.DeleteAll(ctx, doctype)
}
