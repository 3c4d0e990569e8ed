package sale

import (
	"errors"
	"fmt"
	"strings"
)

var errMissingValue = errors.New("value is missing")

// A required field is absent from the payload.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing required field %s", e.Field)
}

// A field is present but cannot be read as the expected type.
type MalformedFieldError struct {
	Field string
	Value string
	Err   error
}

func (e *MalformedFieldError) Error() string {
	return fmt.Sprintf("malformed field %s: %v", e.Field, e.Err)
}

func (e *MalformedFieldError) Unwrap() error {
	return e.Err
}

// The sale timestamp is absent or not in the webhook's ISO-8601 form.
type MalformedTimestampError struct {
	Value string
	Err   error
}

func (e *MalformedTimestampError) Error() string {
	return fmt.Sprintf("malformed %s %q: %v", FieldSaleTimestamp, e.Value, e.Err)
}

func (e *MalformedTimestampError) Unwrap() error {
	return e.Err
}

// A value expected inside the residual data map is absent.
type MissingNestedFieldError struct {
	Path string
}

func (e *MissingNestedFieldError) Error() string {
	return fmt.Sprintf("missing nested field %s", e.Path)
}

// Collects every extraction failure of a single payload so they can be reported together.
type NormalizeError struct {
	Errors []error
}

func (e *NormalizeError) add(err error) {
	e.Errors = append(e.Errors, err)
}

func (e *NormalizeError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, err := range e.Errors {
		msgs = append(msgs, err.Error())
	}
	return "failed to normalize payload: " + strings.Join(msgs, "; ")
}

func (e *NormalizeError) Unwrap() []error {
	return e.Errors
}

// Returns the names of the offending fields, in the order they were checked.
func (e *NormalizeError) Fields() []string {
	fields := make([]string, 0, len(e.Errors))
	for _, err := range e.Errors {
		var missing *MissingFieldError
		var malformed *MalformedFieldError
		var timestamp *MalformedTimestampError
		switch {
		case errors.As(err, &missing):
			fields = append(fields, missing.Field)
		case errors.As(err, &malformed):
			fields = append(fields, malformed.Field)
		case errors.As(err, &timestamp):
			fields = append(fields, FieldSaleTimestamp)
		}
	}
	return fields
}
