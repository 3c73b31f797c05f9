// Package ui renders sync progress and completion summaries.
package ui

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
)

// Stage identifies a sync pipeline stage.
type Stage int

const (
	// StageScan is file enumeration.
	StageScan Stage = iota
	// StageDetect is change detection against the index.
	StageDetect
	// StageParse is the parallel parse of the modified set.
	StageParse
	// StageMerge is the transactional merge.
	StageMerge
	// StageComplete is the finished pipeline.
	StageComplete
)

// String returns the stage name.
func (s Stage) String() string {
	switch s {
	case StageScan:
		return "scan"
	case StageDetect:
		return "detect"
	case StageParse:
		return "parse"
	case StageMerge:
		return "merge"
	case StageComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// Icon returns the short uppercase tag used by the plain renderer.
func (s Stage) Icon() string {
	switch s {
	case StageScan:
		return "SCAN"
	case StageDetect:
		return "DETECT"
	case StageParse:
		return "PARSE"
	case StageMerge:
		return "MERGE"
	case StageComplete:
		return "DONE"
	default:
		return "????"
	}
}

// ProgressEvent reports progress within one stage.
type ProgressEvent struct {
	Stage       Stage
	Current     int
	Total       int
	CurrentFile string
	Message     string
}

// ErrorEvent reports a per-file or stage error.
type ErrorEvent struct {
	File   string
	Err    error
	IsWarn bool
}

// StageTimings holds per-stage durations for the completion summary.
type StageTimings struct {
	Scan   time.Duration
	Detect time.Duration
	Parse  time.Duration
	Merge  time.Duration
}

// CompletionStats summarizes one sync run.
type CompletionStats struct {
	Scanned  int
	Parsed   int
	Purged   int
	Failed   int
	Ops      int
	Duration time.Duration
	Stages   StageTimings
}

// Renderer displays sync progress. Implementations must be safe for
// concurrent use; worker results arrive from multiple goroutines.
type Renderer interface {
	Start(ctx context.Context) error
	UpdateProgress(event ProgressEvent)
	AddError(event ErrorEvent)
	Complete(stats CompletionStats)
	Stop() error
}

// Config configures renderer construction.
type Config struct {
	// Output defaults to os.Stdout.
	Output io.Writer
	// NoColor disables styled output.
	NoColor bool
	// Quiet suppresses progress events, keeping errors and the summary.
	Quiet bool
}

// ConfigOption mutates a Config.
type ConfigOption func(*Config)

// WithOutput sets the output writer.
func WithOutput(w io.Writer) ConfigOption {
	return func(c *Config) { c.Output = w }
}

// WithNoColor disables color.
func WithNoColor(noColor bool) ConfigOption {
	return func(c *Config) { c.NoColor = noColor }
}

// WithQuiet suppresses progress output.
func WithQuiet(quiet bool) ConfigOption {
	return func(c *Config) { c.Quiet = quiet }
}

// NewRenderer builds the renderer for the current environment. Output
// that is not a terminal, NO_COLOR, and CI all force unstyled output.
func NewRenderer(opts ...ConfigOption) Renderer {
	cfg := Config{Output: os.Stdout}
	for _, opt := range opts {
		opt(&cfg)
	}

	if !cfg.NoColor {
		cfg.NoColor = DetectNoColor() || DetectCI() || !isTerminal(cfg.Output)
	}

	return NewPlainRenderer(cfg)
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// DetectNoColor honors the NO_COLOR convention.
func DetectNoColor() bool {
	_, set := os.LookupEnv("NO_COLOR")
	return set
}

// DetectCI reports whether we appear to run under CI.
func DetectCI() bool {
	return os.Getenv("CI") != ""
}
