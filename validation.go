package tracelens

import (
	"fmt"
	"unicode/utf8"
)

// MaxNameLength is the maximum allowed length for name fields.
const MaxNameLength = 500

// MaxTagCount is the maximum number of tags allowed on a trace.
const MaxTagCount = 50

// ValidateRequired validates that a required field is not empty.
func ValidateRequired(field, value string) error {
	if value == "" {
		return NewValidationError(field, "is required")
	}
	return nil
}

// ValidateName validates an optional name field against MaxNameLength.
func ValidateName(field, value string) error {
	if value == "" {
		return nil
	}
	if utf8.RuneCountInString(value) > MaxNameLength {
		return NewValidationError(field, fmt.Sprintf("exceeds maximum length of %d characters", MaxNameLength))
	}
	return nil
}

// ValidateScoreValue validates that a score value lies in [0, 1].
func ValidateScoreValue(field string, value float64) error {
	if value < 0 || value > 1 {
		return NewValidationError(field, fmt.Sprintf("must be between 0.0 and 1.0, got %v", value))
	}
	return nil
}

// ValidateUsage validates that token counts are non-negative.
func ValidateUsage(field string, u Usage) error {
	if u.InputTokens < 0 || u.OutputTokens < 0 || u.TotalTokens < 0 {
		return NewValidationError(field, "token counts must be non-negative")
	}
	return nil
}

// ValidateTags validates a tags slice: individual tags must be non-empty
// and the total count bounded.
func ValidateTags(field string, tags []string) error {
	if len(tags) > MaxTagCount {
		return NewValidationError(field, "exceeds maximum tag count")
	}
	for i, tag := range tags {
		if tag == "" {
			return NewValidationError(field, fmt.Sprintf("tag at index %d cannot be empty", i))
		}
	}
	return nil
}

// ValidateMetadata validates that metadata keys are not empty. nil
// metadata is valid.
func ValidateMetadata(field string, metadata Metadata) error {
	for key := range metadata {
		if key == "" {
			return NewValidationError(field, "metadata keys cannot be empty")
		}
	}
	return nil
}

// ValidateKind validates an observation kind.
func ValidateKind(field string, kind ObservationKind) error {
	switch kind {
	case KindSpan, KindGeneration:
		return nil
	default:
		return NewValidationError(field, fmt.Sprintf("invalid observation kind: %q", kind))
	}
}
