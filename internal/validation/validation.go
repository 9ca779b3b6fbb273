package validation

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// MaxID is the largest accepted numeric identifier (2^31-1).
	MaxID = 1<<31 - 1

	MaxTextLen       = 2000
	MaxIdentifierLen = 128
	MaxLabelLen      = 64

	// MaxFutureSkew bounds how far ahead of server time a client timestamp may be.
	MaxFutureSkew = 24 * time.Hour
)

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// First returns the first non-nil error.
func First(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// ValidateID checks a numeric identifier is within [1, MaxID].
func ValidateID(field string, id int64) error {
	if id < 1 || id > MaxID {
		return ValidationError{Field: field, Message: fmt.Sprintf("must be between 1 and %d", MaxID)}
	}
	return nil
}

// ValidateIdentifier checks a required opaque client identifier.
func ValidateIdentifier(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return ValidationError{Field: field, Message: "is required"}
	}
	if utf8.RuneCountInString(value) > MaxIdentifierLen {
		return ValidationError{Field: field, Message: fmt.Sprintf("must be at most %d characters", MaxIdentifierLen)}
	}
	return nil
}

// ValidateOptionalText checks an optional string is at most max characters.
func ValidateOptionalText(field string, value *string, max int) error {
	if value == nil {
		return nil
	}
	if !utf8.ValidString(*value) {
		return ValidationError{Field: field, Message: "must be valid UTF-8"}
	}
	if utf8.RuneCountInString(*value) > max {
		return ValidationError{Field: field, Message: fmt.Sprintf("must be at most %d characters", max)}
	}
	return nil
}

// ValidateOptionalCount checks an optional count or duration is within [0, MaxID].
func ValidateOptionalCount(field string, value *int) error {
	if value == nil {
		return nil
	}
	if *value < 0 || *value > MaxID {
		return ValidationError{Field: field, Message: fmt.Sprintf("must be between 0 and %d", MaxID)}
	}
	return nil
}

// ValidateOptionalOperand checks an optional arithmetic operand or answer fits
// in 32 bits. Negative values are allowed.
func ValidateOptionalOperand(field string, value *int) error {
	if value == nil {
		return nil
	}
	if *value < -MaxID || *value > MaxID {
		return ValidationError{Field: field, Message: "is out of range"}
	}
	return nil
}

// ValidateOptionalTimestampMs checks an optional epoch-millisecond timestamp is
// not negative and not beyond now+MaxFutureSkew.
func ValidateOptionalTimestampMs(field string, value *int64, now time.Time) error {
	if value == nil {
		return nil
	}
	if *value < 0 {
		return ValidationError{Field: field, Message: "must not be negative"}
	}
	if *value > now.Add(MaxFutureSkew).UnixMilli() {
		return ValidationError{Field: field, Message: "is too far in the future"}
	}
	return nil
}
