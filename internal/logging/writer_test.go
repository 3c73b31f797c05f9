package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRotatingWriter_WritesToFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notedb.log")

	w, err := NewRotatingWriter(path, 1, 3)
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	_, err = w.Write([]byte("hello\n"))
	require.NoError(t, err)
	require.NoError(t, w.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(data))
}

func TestRotatingWriter_RotatesOnSize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notedb.log")

	// 1MB limit; two writes of ~600KB force a rotation.
	w, err := NewRotatingWriter(path, 1, 3)
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	chunk := []byte(strings.Repeat("x", 600*1024))
	_, err = w.Write(chunk)
	require.NoError(t, err)
	_, err = w.Write(chunk)
	require.NoError(t, err)

	_, err = os.Stat(path + ".1")
	assert.NoError(t, err, "rotated file should exist")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(len(chunk)), info.Size())
}

func TestRotatingWriter_DropsOldestBeyondMax(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notedb.log")

	w, err := NewRotatingWriter(path, 1, 2)
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	chunk := []byte(strings.Repeat("x", 700*1024))
	for i := 0; i < 5; i++ {
		_, err = w.Write(chunk)
		require.NoError(t, err)
	}

	_, err = os.Stat(path + ".1")
	assert.NoError(t, err)
	_, err = os.Stat(path + ".3")
	assert.Error(t, err, "files beyond maxFiles should be removed")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"debug", "DEBUG"},
		{"info", "INFO"},
		{"WARN", "WARN"},
		{"warning", "WARN"},
		{"error", "ERROR"},
		{"garbage", "INFO"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, parseLevel(tt.in).String(), "level %q", tt.in)
	}
}
