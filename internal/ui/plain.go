package ui

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// PlainRenderer outputs line-oriented text progress.
type PlainRenderer struct {
	mu       sync.Mutex
	out      io.Writer
	styles   Styles
	quiet    bool
	errors   int
	warnings int
}

// NewPlainRenderer creates a plain text renderer.
func NewPlainRenderer(cfg Config) *PlainRenderer {
	styles := DefaultStyles()
	if cfg.NoColor {
		styles = NoColorStyles()
	}
	return &PlainRenderer{
		out:    cfg.Output,
		styles: styles,
		quiet:  cfg.Quiet,
	}
}

// Start implements Renderer.
func (r *PlainRenderer) Start(ctx context.Context) error {
	return nil
}

// UpdateProgress implements Renderer.
func (r *PlainRenderer) UpdateProgress(event ProgressEvent) {
	if r.quiet {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Format: [STAGE] current/total - message or file
	msg := event.Message
	if msg == "" {
		msg = event.CurrentFile
	}

	if event.Total > 0 {
		_, _ = fmt.Fprintf(r.out, "[%s] %d/%d - %s\n", event.Stage.Icon(), event.Current, event.Total, msg)
	} else if msg != "" {
		_, _ = fmt.Fprintf(r.out, "[%s] %s\n", event.Stage.Icon(), msg)
	}
}

// AddError implements Renderer.
func (r *PlainRenderer) AddError(event ErrorEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prefix := r.styles.Error.Render("ERROR")
	if event.IsWarn {
		prefix = r.styles.Warning.Render("WARN")
		r.warnings++
	} else {
		r.errors++
	}

	if event.File != "" {
		_, _ = fmt.Fprintf(r.out, "%s: %s: %v\n", prefix, event.File, event.Err)
	} else {
		_, _ = fmt.Fprintf(r.out, "%s: %v\n", prefix, event.Err)
	}
}

// Complete implements Renderer.
func (r *PlainRenderer) Complete(stats CompletionStats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	summary := fmt.Sprintf("Synced: %d scanned, %d parsed, %d purged in %s",
		stats.Scanned, stats.Parsed, stats.Purged, round(stats.Duration))
	_, _ = fmt.Fprint(r.out, r.styles.Success.Render(summary))

	if stats.Failed > 0 {
		_, _ = fmt.Fprint(r.out, r.styles.Warning.Render(
			fmt.Sprintf(" (%d failed)", stats.Failed)))
	}
	_, _ = fmt.Fprintln(r.out)

	if r.quiet {
		return
	}

	if stats.Stages.Scan > 0 || stats.Stages.Parse > 0 {
		_, _ = fmt.Fprintln(r.out, r.styles.Header.Render("Stage breakdown:"))
		_, _ = fmt.Fprintf(r.out, "  Scan:   %s\n", round(stats.Stages.Scan))
		_, _ = fmt.Fprintf(r.out, "  Detect: %s\n", round(stats.Stages.Detect))
		_, _ = fmt.Fprintf(r.out, "  Parse:  %s\n", round(stats.Stages.Parse))
		_, _ = fmt.Fprintf(r.out, "  Merge:  %s (%d ops)\n", round(stats.Stages.Merge), stats.Ops)
	}
}

// Stop implements Renderer.
func (r *PlainRenderer) Stop() error {
	return nil
}

func round(d time.Duration) time.Duration {
	return d.Round(100 * time.Millisecond)
}
