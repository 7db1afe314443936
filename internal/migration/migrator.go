// Package migration brings a site's schema and patches up to date before
// its tests run.
package migration

import "context"

// Migrator runs database migrations
type Migrator interface {
	Run(ctx context.Context) error
}

// SiteMigrator is the bench operation a migration runs through
type SiteMigrator interface {
	Site() string
	Migrate(ctx context.Context, skipFailing bool) (string, error)
}
