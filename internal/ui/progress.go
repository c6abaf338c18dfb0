package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"tia/internal/domain"
)

// ProgressBar creates and manages progress bars
type ProgressBar struct {
	bar                            *progressbar.ProgressBar
	done, passed, failed, deselect int
}

// NewProgressBar creates a new progress bar writing to stderr
func NewProgressBar(count int) *ProgressBar {
	return newProgressBar(count, os.Stderr)
}

func newProgressBar(count int, w io.Writer) *ProgressBar {
	bar := progressbar.NewOptions(count,
		progressbar.OptionSetDescription(describe(0, 0, 0)),
		progressbar.OptionSetWidth(50),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        color.CyanString("█"),
			SaucerHead:    color.CyanString("█"),
			SaucerPadding: "░",
			BarStart:      "│",
			BarEnd:        "│",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWriter(w),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(w, "\n")
		}),
		progressbar.OptionSetRenderBlankState(true),
	)

	return &ProgressBar{bar: bar}
}

// Observe counts a finished test and redraws the bar
func (p *ProgressBar) Observe(r domain.RunResult) {
	p.done++
	switch {
	case !r.Executed():
		p.deselect++
	case r.Outcome == domain.OutcomeFailed || r.Outcome == domain.OutcomeError:
		p.failed++
	default:
		p.passed++
	}
	p.bar.Set(p.done)
	p.bar.Describe(describe(p.passed, p.failed, p.deselect))
}

// Finish completes the progress bar
func (p *ProgressBar) Finish() {
	p.bar.Finish()
}

func describe(passed, failed, deselected int) string {
	return color.CyanString("Running tests: ") +
		color.GreenString("[success: %d", passed) +
		" | " +
		color.RedString("failed: %d", failed) +
		" | " +
		color.YellowString("deselected: %d]", deselected)
}
