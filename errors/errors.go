package errors

import (
	"errors"
	"net/http"
	"strings"
)

var (
	NotFound            = HttpError{http.StatusNotFound, errors.New("not found")}
	Duplicate           = HttpError{http.StatusConflict, errors.New("duplicate")}
	ConstraintViolation = HttpError{http.StatusUnprocessableEntity, errors.New("constraint violation")}
	BadRequest          = HttpError{http.StatusBadRequest, errors.New("bad request")}
)

type HttpError struct {
	Code int
	Err  error
}

func (h HttpError) Unwrap() error {
	return h.Err
}

func (h HttpError) Error() string {
	return h.Err.Error()
}

// FieldError describes a single invalid field of a request body.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError groups field errors. It unwraps to Kind, which is BadRequest unless a
// cross-field constraint failed.
type ValidationError struct {
	Kind   HttpError
	Fields []FieldError
}

func (v *ValidationError) Add(field, message string) {
	v.Fields = append(v.Fields, FieldError{Field: field, Message: message})
}

func (v *ValidationError) HasErrors() bool {
	return len(v.Fields) > 0
}

func (v *ValidationError) Error() string {
	messages := make([]string, 0, len(v.Fields))
	for _, f := range v.Fields {
		messages = append(messages, f.Field+": "+f.Message)
	}
	return v.Kind.Error() + ": " + strings.Join(messages, "; ")
}

func (v *ValidationError) Unwrap() error {
	return v.Kind
}

// OrNil returns v as an error when it holds at least one field error.
func (v *ValidationError) OrNil() error {
	if v.HasErrors() {
		return v
	}
	return nil
}
