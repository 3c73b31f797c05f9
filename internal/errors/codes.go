// Package errors provides structured error handling for notedb.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: IO errors (file, disk, database)
//   - 4XX: Validation errors
//   - 5XX: Sync pipeline errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryIO indicates file and database I/O errors.
	CategoryIO Category = "IO"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategorySync indicates errors raised by the sync pipeline.
	CategorySync Category = "SYNC"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// IO errors (200-299)
	ErrCodeFileNotFound   = "ERR_201_FILE_NOT_FOUND"
	ErrCodeFilePermission = "ERR_202_FILE_PERMISSION"
	ErrCodeCorruptIndex   = "ERR_203_CORRUPT_INDEX"
	ErrCodeScanFailed     = "ERR_204_SCAN_FAILED"

	// Validation errors (400-499)
	ErrCodeInvalidInput = "ERR_401_INVALID_INPUT"
	ErrCodeInvalidPath  = "ERR_402_INVALID_PATH"
	ErrCodeOpLogOrder   = "ERR_403_OPLOG_ORDER"

	// Sync errors (500-599)
	ErrCodeInternal     = "ERR_501_INTERNAL"
	ErrCodeParseFailed  = "ERR_502_PARSE_FAILED"
	ErrCodeDetectFailed = "ERR_503_DETECT_FAILED"
	ErrCodeSyncTimeout  = "ERR_504_SYNC_TIMEOUT"
	ErrCodeMergeFailed  = "ERR_505_MERGE_FAILED"
	ErrCodeSyncBusy     = "ERR_506_SYNC_BUSY"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// Extract numeric portion (e.g., "201" from "ERR_201_FILE_NOT_FOUND")
	numStr := code[4:7]
	if len(numStr) < 1 {
		return CategoryInternal
	}

	switch numStr[0] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIO
	case '4':
		return CategoryValidation
	case '5':
		if code == ErrCodeInternal {
			return CategoryInternal
		}
		return CategorySync
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeCorruptIndex, ErrCodeMergeFailed, ErrCodeDetectFailed:
		return SeverityFatal
	case ErrCodeParseFailed:
		// Per-file parse failures exclude the file, never the batch.
		return SeverityWarning
	}

	if isRetryableCode(code) {
		return SeverityWarning
	}

	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeSyncTimeout, ErrCodeSyncBusy:
		return true
	default:
		return false
	}
}
