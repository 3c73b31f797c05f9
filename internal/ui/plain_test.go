package ui

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRenderer(quiet bool) (*PlainRenderer, *bytes.Buffer) {
	var buf bytes.Buffer
	r := NewPlainRenderer(Config{Output: &buf, NoColor: true, Quiet: quiet})
	return r, &buf
}

func TestPlainRenderer_Progress(t *testing.T) {
	r, buf := newTestRenderer(false)
	require.NoError(t, r.Start(context.Background()))

	r.UpdateProgress(ProgressEvent{Stage: StageScan, Message: "enumerating notes"})
	r.UpdateProgress(ProgressEvent{Stage: StageParse, Current: 3, Total: 10, CurrentFile: "a.md"})

	out := buf.String()
	assert.Contains(t, out, "[SCAN] enumerating notes")
	assert.Contains(t, out, "[PARSE] 3/10 - a.md")
	require.NoError(t, r.Stop())
}

func TestPlainRenderer_QuietSuppressesProgress(t *testing.T) {
	r, buf := newTestRenderer(true)
	r.UpdateProgress(ProgressEvent{Stage: StageScan, Message: "enumerating"})
	assert.Empty(t, buf.String())
}

func TestPlainRenderer_Errors(t *testing.T) {
	r, buf := newTestRenderer(false)

	r.AddError(ErrorEvent{File: "a.md", Err: errors.New("bad front matter"), IsWarn: true})
	r.AddError(ErrorEvent{Err: errors.New("merge aborted")})

	out := buf.String()
	assert.Contains(t, out, "WARN: a.md: bad front matter")
	assert.Contains(t, out, "ERROR: merge aborted")
}

func TestPlainRenderer_Complete(t *testing.T) {
	r, buf := newTestRenderer(false)

	r.Complete(CompletionStats{
		Scanned:  12,
		Parsed:   4,
		Purged:   1,
		Failed:   2,
		Ops:      37,
		Duration: 1530 * time.Millisecond,
		Stages: StageTimings{
			Scan:  200 * time.Millisecond,
			Parse: 900 * time.Millisecond,
			Merge: 100 * time.Millisecond,
		},
	})

	out := buf.String()
	assert.Contains(t, out, "Synced: 12 scanned, 4 parsed, 1 purged in 1.5s")
	assert.Contains(t, out, "(2 failed)")
	assert.Contains(t, out, "Stage breakdown:")
	assert.Contains(t, out, "37 ops")
}

func TestStageStrings(t *testing.T) {
	assert.Equal(t, "scan", StageScan.String())
	assert.Equal(t, "merge", StageMerge.String())
	assert.Equal(t, "PARSE", StageParse.Icon())
	assert.Equal(t, "DONE", StageComplete.Icon())
}

func TestNewRenderer_BufferedOutputIsPlain(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(WithOutput(&buf))
	_, ok := r.(*PlainRenderer)
	assert.True(t, ok)
}
