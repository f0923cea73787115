package handler

// RESPONSE ENVELOPE:
// Every response from the API has one of two shapes, so the client always
// knows what fields to expect regardless of endpoint or status code.
//
// Success:
//   {"status":"success","data":{...},"message":"Request successful"}
//
// Error:
//   {"status":"error","statusCode":404,"code":"CAR_NOT_FOUND","message":"..."}
//
// Validation failures additionally carry every violated rule:
//   {..., "code":"VALIDATION_ERROR","errors":["model is required", ...]}
//
// ERROR MAPPING:
// writeError is the single place domain errors become HTTP. The service
// layer returns apperror values; this function translates them. Services
// never see status codes, handlers never invent error shapes.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/mahir/carmarket/internal/apperror"
)

// development switches 500-level masking off so unclassified error messages
// reach the client during local work. Set once at wiring time.
var development bool

// SetEnvironment configures response masking. Anything other than
// "development" keeps internal error messages out of responses.
func SetEnvironment(env string) {
	development = env == "development"
}

// SuccessResponse is the envelope for every 2xx response.
type SuccessResponse struct {
	Status  string `json:"status"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message"`
}

// ErrorResponse is the envelope for every non-2xx response.
type ErrorResponse struct {
	Status     string   `json:"status"`
	StatusCode int      `json:"statusCode"`
	Code       string   `json:"code"`
	Message    string   `json:"message"`
	Errors     []string `json:"errors,omitempty"`
}

// writeJSON sends a JSON body with the given status code. Headers must be
// set before the first write; once Encode runs they are on the wire.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent — all we can do is log it.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeSuccess wraps data in the success envelope.
func writeSuccess(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, SuccessResponse{
		Status:  "success",
		Data:    data,
		Message: "Request successful",
	})
}

// writeError maps a domain error to the error envelope.
//
// A typed *apperror.AppError carries its own status, machine code, and
// user-facing message, so those pass through directly. Anything else is an
// unclassified failure: it becomes a 500, and outside development its
// message is masked — raw errors can leak SQL, file paths, or credentials.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		// Typed errors are operational: their messages are written for the
		// client and stay intact even at 500 (e.g. a failed media upload).
		writeJSON(w, appErr.Status, ErrorResponse{
			Status:     "error",
			StatusCode: appErr.Status,
			Code:       appErr.Code,
			Message:    appErr.Message,
			Errors:     appErr.Fields,
		})
		return
	}

	message := "Internal Server Error"
	if development {
		message = err.Error()
	}
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Status:     "error",
		StatusCode: http.StatusInternalServerError,
		Code:       "INTERNAL_SERVER_ERROR",
		Message:    message,
	})
}
