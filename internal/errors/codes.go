// Package errors provides structured error handling for CodeScope.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: IO errors (paths, files, stores)
//   - 3XX: Analysis errors (parsing, entity extraction)
//   - 4XX: Index and retrieval errors
//   - 5XX: Generation and internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryIO indicates file and store I/O errors.
	CategoryIO Category = "IO"
	// CategoryAnalysis indicates parsing and extraction errors.
	CategoryAnalysis Category = "ANALYSIS"
	// CategoryIndex indicates index and retrieval errors.
	CategoryIndex Category = "INDEX"
	// CategoryService indicates generation and internal errors.
	CategoryService Category = "SERVICE"
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
	ErrCodePathNotFound = "ERR_201_PATH_NOT_FOUND"
	ErrCodeFileLoad     = "ERR_202_FILE_LOAD"
	ErrCodeIngestLocked = "ERR_203_INGEST_LOCKED"
	ErrCodeStoreCorrupt = "ERR_204_STORE_CORRUPT"

	// Analysis errors (300-399)
	ErrCodeEntityExtraction = "ERR_301_ENTITY_EXTRACTION"

	// Index and retrieval errors (400-499)
	ErrCodeIndexReplace = "ERR_401_INDEX_REPLACE"
	ErrCodeIndexInsert  = "ERR_402_INDEX_INSERT"
	ErrCodeRetrieval    = "ERR_403_RETRIEVAL"

	// Generation and internal errors (500-599)
	ErrCodeGenerationUnavailable = "ERR_501_GENERATION_UNAVAILABLE"
	ErrCodeEmbedding             = "ERR_502_EMBEDDING"
	ErrCodeInternal              = "ERR_503_INTERNAL"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryService
	}

	// Numeric portion, e.g. "201" from "ERR_201_PATH_NOT_FOUND".
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIO
	case '3':
		return CategoryAnalysis
	case '4':
		return CategoryIndex
	default:
		return CategoryService
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeStoreCorrupt, ErrCodeIndexInsert:
		return SeverityFatal
	case ErrCodeIndexReplace:
		// Stale deletes surface as warnings; the run proceeds to insert.
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
	case ErrCodeGenerationUnavailable, ErrCodeEmbedding:
		return true
	default:
		return false
	}
}
