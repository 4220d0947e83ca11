// Package errors provides structured error handling for docai.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: IO errors (file, disk)
//   - 3XX: External service errors (annotator, embedding index, version control)
//   - 4XX: Validation errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryIO indicates file and disk I/O errors.
	CategoryIO Category = "IO"
	// CategoryExternal indicates a collaborator service failed or was unreachable.
	CategoryExternal Category = "EXTERNAL"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, the run must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates the current unit failed but the run continues.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigInvalid     = "ERR_101_CONFIG_INVALID"
	ErrCodeMissingCredential = "ERR_102_MISSING_CREDENTIAL"
	ErrCodeRunLocked         = "ERR_103_RUN_LOCKED"
	ErrCodeInvalidRepoPath   = "ERR_104_INVALID_REPO_PATH"

	// IO errors (200-299)
	ErrCodeFileRead    = "ERR_201_FILE_READ"
	ErrCodeFileWrite   = "ERR_202_FILE_WRITE"
	ErrCodeFileCorrupt = "ERR_203_FILE_CORRUPT"
	ErrCodeBackup      = "ERR_204_BACKUP"

	// External service errors (300-399)
	ErrCodeAnnotatorFailed = "ERR_301_ANNOTATOR_FAILED"
	ErrCodeIndexFailed     = "ERR_302_INDEX_FAILED"
	ErrCodeEmbeddingFailed = "ERR_303_EMBEDDING_FAILED"
	ErrCodeVCSFailed       = "ERR_304_VCS_FAILED"
	ErrCodePullRequest     = "ERR_305_PULL_REQUEST"

	// Validation errors (400-499)
	ErrCodeInvalidInput      = "ERR_401_INVALID_INPUT"
	ErrCodeNoCodeBlock       = "ERR_402_NO_CODE_BLOCK"
	ErrCodeDimensionMismatch = "ERR_403_DIMENSION_MISMATCH"

	// Internal errors (500-599)
	ErrCodeInternal = "ERR_501_INTERNAL"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 5 {
		return CategoryInternal
	}
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIO
	case '3':
		return CategoryExternal
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity from error code.
// Configuration problems abort the run; everything else is contained to a file or batch.
func severityFromCode(code string) Severity {
	switch categoryFromCode(code) {
	case CategoryConfig:
		return SeverityFatal
	case CategoryExternal:
		return SeverityWarning
	default:
		return SeverityError
	}
}
