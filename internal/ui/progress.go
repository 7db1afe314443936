package ui

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
)

// RecordProgress shows test record creation. The number of doctypes is not
// known up front, so it renders as a spinner with a counter.
type RecordProgress struct {
	bar     *progressbar.ProgressBar
	records int
}

// NewRecordProgress creates a progress indicator writing to w
func NewRecordProgress(w io.Writer) *RecordProgress {
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(color.CyanString("Making test records")),
		progressbar.OptionSetWidth(50),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWriter(w),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(w, "\n")
		}),
		progressbar.OptionSetRenderBlankState(true),
	)
	return &RecordProgress{bar: bar}
}

// RecordsMade advances the indicator once per doctype
func (p *RecordProgress) RecordsMade(doctype string, names []string) {
	p.records += len(names)
	p.bar.Describe(
		color.CyanString("Making test records: ") +
			color.YellowString("%s", doctype) +
			color.GreenString(" [records: %d]", p.records),
	)
	_ = p.bar.Add(1)
}

// Records returns the number of records made so far
func (p *RecordProgress) Records() int {
	return p.records
}

// Finish completes the indicator
func (p *RecordProgress) Finish() {
	_ = p.bar.Finish()
}
