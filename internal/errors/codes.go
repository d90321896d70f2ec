// Package errors provides structured error handling for aiturag.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Ingestion errors (fetch, parse)
//   - 3XX: Embedding errors
//   - 4XX: Index errors (build, load, integrity)
//   - 5XX: Retrieval errors
//   - 6XX: Generation (LLM) errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryIngest indicates page fetch and extraction errors.
	CategoryIngest Category = "INGEST"
	// CategoryEmbedding indicates embedding model errors.
	CategoryEmbedding Category = "EMBEDDING"
	// CategoryIndex indicates vector index build/load errors.
	CategoryIndex Category = "INDEX"
	// CategoryRetrieval indicates query-time retrieval errors.
	CategoryRetrieval Category = "RETRIEVAL"
	// CategoryGeneration indicates LLM completion errors.
	CategoryGeneration Category = "GENERATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but the process can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// Ingestion errors (200-299). Per-source, never abort the batch.
	ErrCodeFetchFailed   = "ERR_201_FETCH_FAILED"
	ErrCodeExtractFailed = "ERR_202_EXTRACT_FAILED"

	// Embedding errors (300-399). Fatal to the current build batch.
	ErrCodeEmbedModelUnavailable = "ERR_301_EMBED_MODEL_UNAVAILABLE"
	ErrCodeEmbedFailed           = "ERR_302_EMBED_FAILED"

	// Index errors (400-499)
	ErrCodeIndexNotTrained  = "ERR_401_INDEX_NOT_TRAINED"
	ErrCodeIndexLoad        = "ERR_402_INDEX_LOAD"
	ErrCodeIndexCorrupt     = "ERR_403_INDEX_CORRUPT"
	ErrCodeModelIncompatible = "ERR_404_MODEL_INCOMPATIBLE"

	// Retrieval errors (500-599). Per-query, never mutate shared state.
	ErrCodeRetrievalTimeout = "ERR_501_RETRIEVAL_TIMEOUT"
	ErrCodeRetrievalFailed  = "ERR_502_RETRIEVAL_FAILED"

	// Generation errors (600-699)
	ErrCodeGenerateFailed = "ERR_601_GENERATE_FAILED"

	// Internal errors (900-999)
	ErrCodeInternal = "ERR_901_INTERNAL"
)

// categoryFromCode derives the category from an error code prefix.
func categoryFromCode(code string) Category {
	if len(code) < 5 {
		return CategoryInternal
	}
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIngest
	case '3':
		return CategoryEmbedding
	case '4':
		return CategoryIndex
	case '5':
		return CategoryRetrieval
	case '6':
		return CategoryGeneration
	default:
		return CategoryInternal
	}
}

// severityFromCode derives the severity from an error code.
// Ingestion failures are warnings (isolated per source); index integrity
// and embedding failures are fatal to the operation that hit them.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeFetchFailed, ErrCodeExtractFailed:
		return SeverityWarning
	case ErrCodeEmbedModelUnavailable, ErrCodeEmbedFailed,
		ErrCodeIndexNotTrained, ErrCodeIndexLoad, ErrCodeIndexCorrupt,
		ErrCodeModelIncompatible:
		return SeverityFatal
	default:
		return SeverityError
	}
}

// isRetryableCode reports whether an operation with this code may be retried.
// Only transient network failures qualify; retrieval timeouts deliberately do
// not (a query failure short-circuits to the empty-result path).
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeFetchFailed, ErrCodeEmbedFailed, ErrCodeGenerateFailed:
		return true
	default:
		return false
	}
}
