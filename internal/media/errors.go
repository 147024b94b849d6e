package media

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinels for matching the taxonomy with errors.Is.
var (
	ErrValidation     = errors.New("validation error")
	ErrUpload         = errors.New("upload error")
	ErrInfrastructure = errors.New("infrastructure error")
)

// Constraint names the rule a ValidationError violated.
type Constraint string

const (
	ConstraintContentType Constraint = "content_type"
	ConstraintSize        Constraint = "size"
	ConstraintFilename    Constraint = "filename"
	ConstraintRole        Constraint = "role"
	ConstraintOwner       Constraint = "owner"
	ConstraintKey         Constraint = "key"
)

// ValidationError rejects input before any credential or network call.
type ValidationError struct {
	File       string     `json:"file,omitempty"`
	Constraint Constraint `json:"constraint"`
	Message    string     `json:"message"`
}

func (e *ValidationError) Error() string {
	if e.File == "" {
		return e.Message
	}
	return fmt.Sprintf("%q: %s", e.File, e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// ValidationErrors aggregates per-file validation failures.
type ValidationErrors []*ValidationError

func (es ValidationErrors) Error() string {
	parts := make([]string, 0, len(es))
	for _, e := range es {
		parts = append(parts, e.Error())
	}
	return strings.Join(parts, " · ")
}

func (es ValidationErrors) Is(target error) bool { return target == ErrValidation && len(es) > 0 }

// UploadError reports a rejected or failed byte transfer. StatusCode is 0
// for transport failures.
type UploadError struct {
	File       string
	StatusCode int
	Err        error
}

func (e *UploadError) Error() string {
	msg := "upload failed"
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("upload failed (%d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *UploadError) Unwrap() error { return e.Err }

func (e *UploadError) Is(target error) bool { return target == ErrUpload }

// InfrastructureError reports a signing or deletion failure against the
// storage backend. Op names the failed operation.
type InfrastructureError struct {
	Op  string
	Err error
}

func (e *InfrastructureError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *InfrastructureError) Unwrap() error { return e.Err }

func (e *InfrastructureError) Is(target error) bool { return target == ErrInfrastructure }

// Message returns a user-facing message for err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var ve ValidationErrors
	if errors.As(err, &ve) {
		return ve.Error()
	}
	var v *ValidationError
	if errors.As(err, &v) {
		return v.Error()
	}
	var u *UploadError
	if errors.As(err, &u) {
		return u.Error()
	}
	return err.Error()
}
