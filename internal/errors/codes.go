// Package errors provides structured error handling for the ingestion
// pipeline.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: IO errors (file, disk)
//   - 3XX: Network errors
//   - 4XX: Validation errors
//   - 5XX: Internal errors
//   - 6XX: Parse errors
//   - 7XX: Storage errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryIO indicates file and disk I/O errors.
	CategoryIO Category = "IO"
	// CategoryNetwork indicates network-related errors.
	CategoryNetwork Category = "NETWORK"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
	// CategoryParse indicates source parsing errors.
	CategoryParse Category = "PARSE"
	// CategoryStorage indicates vector store errors.
	CategoryStorage Category = "STORAGE"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but the run can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
	// SeverityInfo indicates informational only.
	SeverityInfo Severity = "INFO"
)

// Error codes organized by category.
const (
	// Config errors (100-199). Always fatal at startup.
	ErrCodeConfigNotFound    = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid     = "ERR_102_CONFIG_INVALID"
	ErrCodeMissingCredential = "ERR_103_MISSING_CREDENTIAL"
	ErrCodeUnknownLanguage   = "ERR_104_UNKNOWN_LANGUAGE"

	// IO errors (200-299)
	ErrCodeFileNotFound = "ERR_201_FILE_NOT_FOUND"
	ErrCodeFileRead     = "ERR_202_FILE_READ"
	ErrCodeFileTooLarge = "ERR_203_FILE_TOO_LARGE"
	ErrCodeRepoNotFound = "ERR_204_REPO_NOT_FOUND"
	ErrCodeCheckpointIO = "ERR_205_CHECKPOINT_IO"

	// Network errors (300-399)
	ErrCodeNetworkTimeout     = "ERR_301_NETWORK_TIMEOUT"
	ErrCodeNetworkUnavailable = "ERR_302_NETWORK_UNAVAILABLE"
	ErrCodeRateLimited        = "ERR_303_RATE_LIMITED"
	ErrCodeServerError        = "ERR_304_SERVER_ERROR"
	ErrCodeAuthFailed         = "ERR_305_AUTH_FAILED"

	// Validation errors (400-499)
	ErrCodeInvalidInput      = "ERR_401_INVALID_INPUT"
	ErrCodeDimensionMismatch = "ERR_402_DIMENSION_MISMATCH"
	ErrCodeLengthMismatch    = "ERR_403_LENGTH_MISMATCH"
	ErrCodeInvalidVector     = "ERR_404_INVALID_VECTOR"

	// Internal errors (500-599)
	ErrCodeInternal        = "ERR_501_INTERNAL"
	ErrCodeEmbeddingFailed = "ERR_502_EMBEDDING_FAILED"
	ErrCodeBatchFailed     = "ERR_503_BATCH_FAILED"

	// Parse errors (600-699)
	ErrCodeParseFailed   = "ERR_601_PARSE_FAILED"
	ErrCodeDecodeFailed  = "ERR_602_DECODE_FAILED"
	ErrCodeSyntaxInvalid = "ERR_603_SYNTAX_INVALID"

	// Storage errors (700-799)
	ErrCodeUpsertFailed     = "ERR_701_UPSERT_FAILED"
	ErrCodeCollectionFailed = "ERR_702_COLLECTION_FAILED"
	ErrCodeBackendUnready   = "ERR_703_BACKEND_UNREADY"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// Numeric portion, e.g. "101" from "ERR_101_CONFIG_NOT_FOUND".
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIO
	case '3':
		return CategoryNetwork
	case '4':
		return CategoryValidation
	case '6':
		return CategoryParse
	case '7':
		return CategoryStorage
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	// Configuration problems abort the run before any work starts.
	if categoryFromCode(code) == CategoryConfig {
		return SeverityFatal
	}

	if isRetryableCode(code) {
		return SeverityWarning
	}

	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeNetworkTimeout, ErrCodeNetworkUnavailable, ErrCodeRateLimited, ErrCodeServerError:
		return true
	default:
		return false
	}
}
