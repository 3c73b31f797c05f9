package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DerivesClassificationFromCode(t *testing.T) {
	tests := []struct {
		name      string
		code      string
		category  Category
		severity  Severity
		retryable bool
	}{
		{"config not found", ErrCodeConfigNotFound, CategoryConfig, SeverityError, false},
		{"scan failed", ErrCodeScanFailed, CategoryIO, SeverityError, false},
		{"corrupt index is fatal", ErrCodeCorruptIndex, CategoryIO, SeverityFatal, false},
		{"oplog order", ErrCodeOpLogOrder, CategoryValidation, SeverityError, false},
		{"parse failed is a warning", ErrCodeParseFailed, CategorySync, SeverityWarning, false},
		{"detect failed is fatal", ErrCodeDetectFailed, CategorySync, SeverityFatal, false},
		{"merge failed is fatal", ErrCodeMergeFailed, CategorySync, SeverityFatal, false},
		{"timeout is retryable", ErrCodeSyncTimeout, CategorySync, SeverityWarning, true},
		{"busy is retryable", ErrCodeSyncBusy, CategorySync, SeverityWarning, true},
		{"internal", ErrCodeInternal, CategoryInternal, SeverityError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, "boom", nil)
			assert.Equal(t, tt.category, err.Category)
			assert.Equal(t, tt.severity, err.Severity)
			assert.Equal(t, tt.retryable, err.Retryable)
		})
	}
}

func TestError_Format(t *testing.T) {
	err := New(ErrCodeFileNotFound, "notes/missing.md not found", nil)
	assert.Equal(t, "[ERR_201_FILE_NOT_FOUND] notes/missing.md not found", err.Error())
}

func TestWrap_PreservesCause(t *testing.T) {
	cause := stderrors.New("disk went away")
	err := Wrap(ErrCodeScanFailed, cause)
	require.NotNil(t, err)
	assert.Equal(t, cause, err.Unwrap())
	assert.True(t, stderrors.Is(err, cause))
}

func TestWrap_NilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeScanFailed, nil))
}

func TestIs_MatchesByCode(t *testing.T) {
	a := New(ErrCodeSyncTimeout, "batch overran deadline", nil)
	b := New(ErrCodeSyncTimeout, "different message", nil)
	c := New(ErrCodeMergeFailed, "merge", nil)

	assert.True(t, stderrors.Is(a, b))
	assert.False(t, stderrors.Is(a, c))
}

func TestWithDetail_Chains(t *testing.T) {
	err := New(ErrCodeParseFailed, "bad frontmatter", nil).
		WithDetail("path", "notes/a.md").
		WithSuggestion("check the YAML header")

	assert.Equal(t, "notes/a.md", err.Details["path"])
	assert.Equal(t, "check the YAML header", err.Suggestion)
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(New(ErrCodeMergeFailed, "merge", nil)))
	assert.False(t, IsFatal(New(ErrCodeParseFailed, "parse", nil)))
	assert.False(t, IsFatal(stderrors.New("plain")))
	assert.False(t, IsFatal(nil))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(New(ErrCodeSyncBusy, "another sync is running", nil)))
	assert.False(t, IsRetryable(New(ErrCodeScanFailed, "scan", nil)))
	assert.False(t, IsRetryable(nil))
}

func TestFormatUser(t *testing.T) {
	err := New(ErrCodeConfigInvalid, "workers must be positive", nil).
		WithDetail("field", "workers").
		WithSuggestion("set workers to at least 1 in .notedb.yaml")

	got := FormatUser(err)
	assert.Contains(t, got, "workers must be positive")
	assert.Contains(t, got, "field: workers")
	assert.Contains(t, got, "Hint: set workers to at least 1")
}

func TestFormatLog_IncludesCause(t *testing.T) {
	cause := stderrors.New("sql: database is locked")
	err := New(ErrCodeMergeFailed, "transaction aborted", cause)
	assert.Equal(t, "[ERR_505_MERGE_FAILED] transaction aborted: sql: database is locked", FormatLog(err))
}
