package migration

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/samber/lo"
	"github.com/schollz/progressbar/v3"
	log "github.com/sirupsen/logrus"
)

// Summary counts what a migration did, taken from the bench output
type Summary struct {
	Patches  int
	Apps     int
	Duration time.Duration
}

// BenchMigrator runs `bench migrate` for the site
type BenchMigrator struct {
	bench       SiteMigrator
	out         io.Writer
	progress    io.Writer
	skipFailing bool
}

// NewBenchMigrator creates a BenchMigrator writing its report to out and
// its spinner to progress (nil disables the spinner)
func NewBenchMigrator(b SiteMigrator, out, progress io.Writer, skipFailing bool) *BenchMigrator {
	return &BenchMigrator{bench: b, out: out, progress: progress, skipFailing: skipFailing}
}

// Run executes the migration and prints a summary
func (bm *BenchMigrator) Run(ctx context.Context) error {
	cyan := color.New(color.FgCyan)
	cyan.Fprintln(bm.out, "\n╔════════════════════════════════════════════════════════════╗")
	cyan.Fprintln(bm.out, "║               Running Database Migrations                  ║")
	cyan.Fprintln(bm.out, "╚════════════════════════════════════════════════════════════╝")

	stop := bm.spin(ctx)
	start := time.Now()
	output, err := bm.bench.Migrate(ctx, bm.skipFailing)
	stop()
	log.Debugf("bench migrate output:\n%s", output)

	if err != nil {
		color.New(color.FgRed).Fprintf(bm.out, "✗ Migration of %s failed\n", bm.bench.Site())
		return fmt.Errorf("migrate %s: %w", bm.bench.Site(), err)
	}

	summary := Summarize(output)
	summary.Duration = time.Since(start)
	color.New(color.FgGreen).Fprintf(bm.out, "✓ Migrated %s\n", bm.bench.Site())
	color.New(color.FgWhite).Fprintf(bm.out, "Patches: %d | Apps synced: %d | Duration: %s\n\n",
		summary.Patches, summary.Apps, summary.Duration.Round(time.Millisecond))
	return nil
}

// spin shows a spinner until the returned func is called
func (bm *BenchMigrator) spin(ctx context.Context) func() {
	if bm.progress == nil {
		return func() {}
	}
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(bm.progress),
		progressbar.OptionSetDescription(color.CyanString("Migrating %s", bm.bench.Site())),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionClearOnFinish(),
	)
	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				_ = bar.Add(1)
			}
		}
	}()
	return func() {
		close(done)
		<-finished
		_ = bar.Finish()
	}
}

// Summarize counts the patches executed and the apps whose doctypes were
// synced in `bench migrate` output
func Summarize(output string) Summary {
	lines := strings.Split(output, "\n")
	return Summary{
		Patches: lo.CountBy(lines, func(l string) bool {
			return strings.HasPrefix(strings.TrimSpace(l), "Executing ")
		}),
		Apps: lo.CountBy(lines, func(l string) bool {
			return strings.HasPrefix(strings.TrimSpace(l), "Updating DocTypes for ")
		}),
	}
}
