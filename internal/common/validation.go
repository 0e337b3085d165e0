package common

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationError is one rejected setting.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s=%v %s", e.Field, e.Value, e.Message)
}

// ValidationRule checks a single value and returns nil when it is acceptable.
type ValidationRule func(field string, value any) *ValidationError

// Validator collects field errors so that a caller can report all of them at once.
type Validator struct {
	errs []ValidationError
}

func NewValidator() *Validator {
	return &Validator{}
}

// Field runs every rule against value and records the failures.
func (v *Validator) Field(field string, value any, rules ...ValidationRule) *Validator {
	for _, rule := range rules {
		if err := rule(field, value); err != nil {
			v.errs = append(v.errs, *err)
		}
	}
	return v
}

func (v *Validator) HasErrors() bool {
	return len(v.errs) > 0
}

func (v *Validator) ErrorMessage() string {
	msgs := make([]string, 0, len(v.errs))
	for _, e := range v.errs {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "; ")
}

// Err returns a CONFIG AppError wrapping ErrInvalidInput, or nil when every
// field passed.
func (v *Validator) Err() error {
	if !v.HasErrors() {
		return nil
	}
	return NewAppError(CodeConfig, v.ErrorMessage(), ErrInvalidInput)
}

// Required rejects nil, blank strings and empty byte slices.
func Required(field string, value any) *ValidationError {
	missing := value == nil
	switch x := value.(type) {
	case string:
		missing = strings.TrimSpace(x) == ""
	case []byte:
		missing = len(x) == 0
	}
	if missing {
		return &ValidationError{Field: field, Value: `""`, Message: "is required"}
	}
	return nil
}

// OneOf accepts only the listed string values.
func OneOf(allowed ...string) ValidationRule {
	return func(field string, value any) *ValidationError {
		if s, ok := value.(string); ok && slices.Contains(allowed, s) {
			return nil
		}
		return &ValidationError{Field: field, Value: value, Message: "must be one of " + strings.Join(allowed, ", ")}
	}
}

// IntRange accepts ints within [lo, hi].
func IntRange(lo, hi int) ValidationRule {
	return func(field string, value any) *ValidationError {
		if n, ok := value.(int); ok && n >= lo && n <= hi {
			return nil
		}
		return &ValidationError{Field: field, Value: value, Message: fmt.Sprintf("must be between %d and %d", lo, hi)}
	}
}

// FloatRange accepts float64 values within [lo, hi].
func FloatRange(lo, hi float64) ValidationRule {
	return func(field string, value any) *ValidationError {
		if f, ok := value.(float64); ok && f >= lo && f <= hi {
			return nil
		}
		return &ValidationError{Field: field, Value: value, Message: fmt.Sprintf("must be between %g and %g", lo, hi)}
	}
}
