package errors

import (
	"net/http"
	"strings"
)

// ErrorCode is a string representation of a specific error condition.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common Error Codes
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeUnauthorized       ErrorCode = "COMMON_003"
	ErrCodeForbidden          ErrorCode = "COMMON_004"
	ErrCodeNotFound           ErrorCode = "COMMON_005"
	ErrCodeConflict           ErrorCode = "COMMON_006"
	ErrCodeTooManyRequests    ErrorCode = "COMMON_007"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_008"
	ErrCodeTimeout            ErrorCode = "COMMON_009"
	ErrCodeValidation         ErrorCode = "COMMON_010"
	ErrCodeSerialization      ErrorCode = "COMMON_011"
	ErrCodeDatabaseError      ErrorCode = "COMMON_012"
	ErrCodeCacheError         ErrorCode = "COMMON_013"
	ErrCodeExternalService    ErrorCode = "COMMON_014"
	ErrCodeNotImplemented     ErrorCode = "COMMON_015"
)

// Aliases kept for call-site readability across layers.
const (
	CodeInternal       = ErrCodeInternal
	CodeInvalidParam   = ErrCodeBadRequest
	CodeUnauthorized   = ErrCodeUnauthorized
	CodeForbidden      = ErrCodeForbidden
	CodeNotFound       = ErrCodeNotFound
	CodeConflict       = ErrCodeConflict
	CodeRateLimit      = ErrCodeTooManyRequests
	CodeNotImplemented = ErrCodeNotImplemented
	CodeTimeout        = ErrCodeTimeout
	CodeOK             = ErrorCode("OK")
	CodeUnknown        = ErrorCode("UNKNOWN")

	CodeDatabaseError = ErrCodeDatabaseError
	CodeCacheError    = ErrCodeCacheError
	CodeStorageError  = ErrCodeInternal
	CodeSearchError   = ErrCodeInternal

	CodeSessionNotFound = ErrCodeSessionNotFound
	CodeDocumentEmpty   = ErrCodeDocumentEmpty

	CodeDocumentNotText    = ErrCodeDocumentNotText
	CodeSegmentationFailed = ErrCodeSegmentationFailed
	CodeClusteringFailed   = ErrCodeClusteringFailed

	CodeLLMUnavailable    = ErrCodeLLMUnavailable
	CodeLLMTimeout        = ErrCodeLLMTimeout
	CodeLLMMalformedDraft = ErrCodeLLMMalformedDraft
	CodeLLMEmptyDraft     = ErrCodeLLMEmptyDraft
)

// Normalization / Deduplication Error Codes
const (
	ErrCodeDocumentEmpty      ErrorCode = "NRM_001"
	ErrCodeDocumentNotText    ErrorCode = "NRM_002"
	ErrCodeSegmentationFailed ErrorCode = "DED_001"
	ErrCodeClusteringFailed   ErrorCode = "DED_002"
	ErrCodeDedupPoolExhausted ErrorCode = "DED_003"
)

// Pattern Extraction Error Codes
const (
	ErrCodePatternLibraryInvalid ErrorCode = "EXT_001"
	ErrCodePathologyUnknown      ErrorCode = "EXT_002"
	ErrCodeSubtypeTableMissing   ErrorCode = "EXT_003"
)

// External (LLM) Extractor Error Codes
const (
	ErrCodeLLMUnavailable    ErrorCode = "LLM_001"
	ErrCodeLLMTimeout        ErrorCode = "LLM_002"
	ErrCodeLLMMalformedDraft ErrorCode = "LLM_003"
	ErrCodeLLMEmptyDraft     ErrorCode = "LLM_004"
)

// Merge / Temporal / Timeline Error Codes
const (
	ErrCodeMergeFieldUnknown  ErrorCode = "MRG_001"
	ErrCodeTemporalNoAnchor   ErrorCode = "TMP_001"
	ErrCodeTimelineEmpty      ErrorCode = "TLN_001"
	ErrCodeTrajectoryNoScores ErrorCode = "TLN_002"
)

// Session / Quality Error Codes
const (
	ErrCodeSessionNotFound    ErrorCode = "SES_001"
	ErrCodeSessionCorrupt     ErrorCode = "SES_002"
	ErrCodeQualityUnavailable ErrorCode = "QLT_001"
)

// ErrorCodeHTTPStatus maps ErrorCodes to HTTP status codes.
var ErrorCodeHTTPStatus = map[ErrorCode]int{
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeUnauthorized:       http.StatusUnauthorized,
	ErrCodeForbidden:          http.StatusForbidden,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeTooManyRequests:    http.StatusTooManyRequests,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeValidation:         http.StatusUnprocessableEntity,
	ErrCodeSerialization:      http.StatusInternalServerError,
	ErrCodeDatabaseError:      http.StatusInternalServerError,
	ErrCodeCacheError:         http.StatusInternalServerError,
	ErrCodeExternalService:    http.StatusInternalServerError,
	ErrCodeNotImplemented:     http.StatusNotImplemented,

	ErrCodeDocumentEmpty:      http.StatusBadRequest,
	ErrCodeDocumentNotText:    http.StatusBadRequest,
	ErrCodeSegmentationFailed: http.StatusInternalServerError,
	ErrCodeClusteringFailed:   http.StatusInternalServerError,
	ErrCodeDedupPoolExhausted: http.StatusServiceUnavailable,

	ErrCodePatternLibraryInvalid: http.StatusInternalServerError,
	ErrCodePathologyUnknown:      http.StatusUnprocessableEntity,
	ErrCodeSubtypeTableMissing:   http.StatusInternalServerError,

	ErrCodeLLMUnavailable:    http.StatusServiceUnavailable,
	ErrCodeLLMTimeout:        http.StatusGatewayTimeout,
	ErrCodeLLMMalformedDraft: http.StatusBadGateway,
	ErrCodeLLMEmptyDraft:     http.StatusBadGateway,

	ErrCodeMergeFieldUnknown:  http.StatusInternalServerError,
	ErrCodeTemporalNoAnchor:   http.StatusUnprocessableEntity,
	ErrCodeTimelineEmpty:      http.StatusUnprocessableEntity,
	ErrCodeTrajectoryNoScores: http.StatusUnprocessableEntity,

	ErrCodeSessionNotFound:    http.StatusNotFound,
	ErrCodeSessionCorrupt:     http.StatusInternalServerError,
	ErrCodeQualityUnavailable: http.StatusInternalServerError,
}

// ErrorCodeMessage maps ErrorCodes to default messages.
var ErrorCodeMessage = map[ErrorCode]string{
	ErrCodeInternal:           "internal server error",
	ErrCodeBadRequest:         "bad request",
	ErrCodeUnauthorized:       "unauthorized",
	ErrCodeForbidden:          "forbidden",
	ErrCodeNotFound:           "resource not found",
	ErrCodeConflict:           "resource conflict",
	ErrCodeTooManyRequests:    "too many requests",
	ErrCodeServiceUnavailable: "service unavailable",
	ErrCodeTimeout:            "request timeout",
	ErrCodeValidation:         "validation failed",
	ErrCodeSerialization:      "serialization failed",
	ErrCodeDatabaseError:      "database error",
	ErrCodeCacheError:         "cache error",
	ErrCodeExternalService:    "external service error",
	ErrCodeNotImplemented:     "not implemented",

	ErrCodeDocumentEmpty:      "document is empty",
	ErrCodeDocumentNotText:    "document is not valid UTF-8 text",
	ErrCodeSegmentationFailed: "sentence segmentation failed",
	ErrCodeClusteringFailed:   "similarity clustering failed",
	ErrCodeDedupPoolExhausted: "deduplication worker pool exhausted",

	ErrCodePatternLibraryInvalid: "pathology pattern library is invalid",
	ErrCodePathologyUnknown:      "no pathology profile matches",
	ErrCodeSubtypeTableMissing:   "no subtype table for pathology",

	ErrCodeLLMUnavailable:    "external extractor unavailable",
	ErrCodeLLMTimeout:        "external extractor timed out",
	ErrCodeLLMMalformedDraft: "external extractor returned a malformed draft",
	ErrCodeLLMEmptyDraft:     "external extractor returned an empty draft",

	ErrCodeMergeFieldUnknown:  "no fusion strategy registered for field",
	ErrCodeTemporalNoAnchor:   "no anchor date available for relative reference",
	ErrCodeTimelineEmpty:      "timeline contains no dated events",
	ErrCodeTrajectoryNoScores: "no functional scores present",

	ErrCodeSessionNotFound:    "extraction session not found",
	ErrCodeSessionCorrupt:     "extraction session is corrupt",
	ErrCodeQualityUnavailable: "quality report unavailable",
}

// HTTPStatusForCode returns the HTTP status code for an ErrorCode.
func HTTPStatusForCode(code ErrorCode) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DefaultMessageForCode returns the default message for an ErrorCode.
func DefaultMessageForCode(code ErrorCode) string {
	if msg, ok := ErrorCodeMessage[code]; ok {
		return msg
	}
	return "unknown error"
}

// IsClientError returns true if the ErrorCode corresponds to a 4xx HTTP status.
func IsClientError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 400 && status < 500
}

// IsServerError returns true if the ErrorCode corresponds to a 5xx HTTP status.
func IsServerError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 500 && status < 600
}

// ModuleForCode returns the module prefix of an ErrorCode.
func ModuleForCode(code ErrorCode) string {
	parts := strings.Split(string(code), "_")
	if len(parts) > 0 && parts[0] != "" {
		return parts[0]
	}
	return "UNKNOWN"
}
