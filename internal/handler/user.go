package handler

import (
	"encoding/json"
	"net/http"

	"github.com/mahir/carmarket/internal/apperror"
	"github.com/mahir/carmarket/internal/validate"
)

// UserHandler serves the account-centric endpoints: the caller's profile,
// the caller's listings, and the public pre-signup email check.
type UserHandler struct {
	auths AuthProvider
	cars  CarProvider
}

// NewUserHandler creates a UserHandler.
func NewUserHandler(auths AuthProvider, cars CarProvider) *UserHandler {
	return &UserHandler{
		auths: auths,
		cars:  cars,
	}
}

// HandleGetInfo returns the authenticated user's profile.
//
// HTTP: GET /api/v1/users/info
// Auth: required
//
// The password hash never serializes — model.User tags it `json:"-"`.
func (h *UserHandler) HandleGetInfo(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	user, err := h.auths.GetUserByID(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, user)
}

// HandleGetCars returns one page of the caller's listings.
//
// HTTP: GET /api/v1/users/cars?page=1
// Auth: required
func (h *UserHandler) HandleGetCars(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	cars, err := h.cars.ListByUser(r.Context(), userID, validate.Page(r.URL.Query().Get("page")))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, cars)
}

// HandleIsExists reports whether an email is already registered.
//
// HTTP: POST /api/v1/users/is-exists
// Auth: none — the signup form calls this before an account exists.
func (h *UserHandler) HandleIsExists(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, apperror.BadRequest("Invalid request body", "BAD_REQUEST"))
		return
	}

	var v validate.Collector
	v.Require(body.Email, "email is required")
	v.Email(body.Email, "email must be a valid email address")
	if err := v.Err(); err != nil {
		writeError(w, err)
		return
	}

	exists, err := h.auths.UserExists(r.Context(), body.Email)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]bool{"isExist": exists})
}
