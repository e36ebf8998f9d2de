package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Common sentinel errors.
var (
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("data conflict")
	ErrInvalidPayload     = errors.New("invalid payload")
	ErrInvalidContentType = errors.New("invalid content type")
)

// Type just for marshalling purpose.
// Should only be used immediately before marshalling.
type JSON struct {
	Error string `json:"error"`
}

// ValidationJSON is the body of a 400 response carrying
// all field-level validation failures at once.
type ValidationJSON struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Errors  []string `json:"errors"`
}

// ValidationError collects field-level messages for a single request.
// Validators append to it and return it as one error so the caller
// sees every bad field, not just the first.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", strings.Join(e.Fields, "; "))
}

func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, fmt.Sprintf("%s: %s", field, message))
}

func (e *ValidationError) Empty() bool {
	return len(e.Fields) == 0
}

// Let users know which required request parameter is not provided.
type RequiredJSONBodyParamError struct {
	ParamName string
}

func (e *RequiredJSONBodyParamError) Error() string {
	return fmt.Sprintf("JSON body argument %q is required, but not found", e.ParamName)
}

// Provides details at which field unique violation has occurred.
type AlreadyExistsError struct {
	FieldName string
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("record with field %q already exists", e.FieldName)
}
