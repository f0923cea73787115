// Package apperror defines the application's error taxonomy.
//
// Services return these domain errors; the HTTP layer translates them into
// the response envelope in exactly one place (handler.writeError). Sentinel
// errors make the category checkable with errors.Is, while AppError carries
// the user-facing message, the machine-readable code string, and any
// per-field validation messages.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrValidation      = errors.New("validation failed")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrBadRequest      = errors.New("bad request")
	ErrUpload          = errors.New("upload failed")
	ErrUpdateFailed    = errors.New("update failed")
)

// AppError is the concrete error type behind every sentinel above.
//
// Code is the machine-readable string surfaced in the error envelope
// (e.g. "USER_ALREADY_EXISTS", "CLOUDINARY_UPLOAD_FAILED"). Status is the
// HTTP status the handler layer will answer with. Fields holds one message
// per violated validation rule — all of them, not just the first.
type AppError struct {
	Err     error
	Message string
	Code    string
	Status  int
	Fields  []string
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// ValidationFailed reports one or more violated input rules.
// messages must contain every violation collected by the validator.
func ValidationFailed(messages ...string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: "Validation Error",
		Code:    "VALIDATION_ERROR",
		Status:  http.StatusBadRequest,
		Fields:  messages,
	}
}

// Unauthenticated reports a missing, malformed, expired, or forged credential.
func Unauthenticated(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthenticated,
		Message: message,
		Code:    "UNAUTHORIZED",
		Status:  http.StatusUnauthorized,
	}
}

// Forbidden reports a caller acting on a resource that belongs to someone else.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
		Code:    "UNAUTHORIZED_REQUEST",
		Status:  http.StatusForbidden,
	}
}

// NotFound reports a missing resource. code lets callers keep per-resource
// codes (CAR_NOT_FOUND, USER_NOT_FOUND, NO_DATA_FOUND, ...).
func NotFound(message, code string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: message,
		Code:    code,
		Status:  http.StatusNotFound,
	}
}

// Conflict reports a uniqueness violation, e.g. a duplicate signup email.
func Conflict(message, code string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: message,
		Code:    code,
		Status:  http.StatusBadRequest,
	}
}

// BadRequest reports a request that is well-formed but unusable, e.g. a
// search with an empty query or a create with no uploaded files.
func BadRequest(message, code string) *AppError {
	return &AppError{
		Err:     ErrBadRequest,
		Message: message,
		Code:    code,
		Status:  http.StatusBadRequest,
	}
}

// UploadFailed reports that the media host rejected an upload or the
// transfer itself failed. The whole request fails; nothing is persisted.
func UploadFailed(err error) *AppError {
	return &AppError{
		Err:     fmt.Errorf("%w: %w", ErrUpload, err),
		Message: "Failed to upload file on cloudinary",
		Code:    "CLOUDINARY_UPLOAD_FAILED",
		Status:  http.StatusInternalServerError,
	}
}

// UpdateFailed reports that the persistence layer changed no document.
func UpdateFailed(message string) *AppError {
	return &AppError{
		Err:     ErrUpdateFailed,
		Message: message,
		Code:    "UPDATE_FAILED",
		Status:  http.StatusInternalServerError,
	}
}
