package main

import (
	"fmt"
	"os"
	"sync"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"github.com/jikhanjung/ctpyramid/internal/ctpyramid"
)

// terminalReporter renders a build's progress to the terminal: a
// percentage bar plus a description line carrying the latest OnDetail text
// (the current level), in the same spirit as the teacher's Reporter interface
// but adapted to ctpyramid.Callbacks' three-hook shape.
type terminalReporter struct {
	mu       sync.Mutex
	bar      *progressbar.ProgressBar
	cyan     *color.Color
	yellow   *color.Color
	red      *color.Color
	detail   string
}

func newTerminalReporter() *terminalReporter {
	return &terminalReporter{
		cyan:   color.New(color.FgCyan, color.Bold),
		yellow: color.New(color.FgYellow, color.Bold),
		red:    color.New(color.FgRed, color.Bold),
	}
}

func (r *terminalReporter) callbacks() ctpyramid.Callbacks {
	return ctpyramid.Callbacks{
		OnProgress: r.onProgress,
		OnDetail:   r.onDetail,
		OnLog:      r.onLog,
	}
}

func (r *terminalReporter) onProgress(pct float64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bar == nil {
		r.bar = progressbar.NewOptions64(100,
			progressbar.OptionSetDescription(""),
			progressbar.OptionSetWidth(40),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowDescriptionAtLineEnd(),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "=",
				SaucerHead:    ">",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}),
		)
	}
	_ = r.bar.Set64(int64(pct))
	if pct >= 100 {
		_ = r.bar.Finish()
	}
	return true
}

func (r *terminalReporter) onDetail(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.detail = text
	if r.bar != nil {
		r.bar.Describe(text)
	}
}

func (r *terminalReporter) onLog(level, message string) {
	switch level {
	case "warn":
		_, _ = r.yellow.Fprintf(os.Stderr, "WARN: %s\n", message)
	case "error":
		_, _ = r.red.Fprintf(os.Stderr, "ERROR: %s\n", message)
	default:
		fmt.Fprintf(os.Stderr, "%s\n", message)
	}
}
