package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/mahir/carmarket/internal/apperror"
	"github.com/mahir/carmarket/internal/auth"
	"github.com/mahir/carmarket/internal/model"
	"github.com/mahir/carmarket/internal/service"
	"github.com/mahir/carmarket/internal/upload"
	"github.com/mahir/carmarket/internal/validate"
)

// maxFormMemory is how much of a multipart body is held in memory before
// net/http spills parts to its own temp files.
const maxFormMemory = 32 << 20

// imagesField is the multipart field carrying listing photos.
const imagesField = "images"

// CarProvider is the listing surface of service.CarService.
type CarProvider interface {
	Create(ctx context.Context, userID string, car *model.Car, files []string) (*model.Car, error)
	Get(ctx context.Context, userID, carID string) (*model.Car, error)
	ListByUser(ctx context.Context, userID string, page int) ([]model.Car, error)
	Search(ctx context.Context, userID, query string, page int, sortKey string) ([]model.Car, error)
	Update(ctx context.Context, userID, carID string, upd service.CarUpdate, files []string) (*model.Car, error)
	Delete(ctx context.Context, userID, carID string) error
}

// CarHandler manages the listing endpoints.
//
// EVERY MUTATION FOLLOWS THE SAME PIPELINE:
//  1. validate   — the Collector gathers every violated rule
//  2. authenticate — already done by the middleware; the caller id is in the context
//  3. authorize  — the service's ownership guard
//  4. mutate     — only reached when all three passed
//
// Uploaded files are staged to disk before step 1 finishes (multipart
// parsing has to read the body anyway) and their removal is deferred
// immediately, so no exit path leaks a temp file.
type CarHandler struct {
	cars    CarProvider
	staging *upload.Staging
	logger  *slog.Logger
}

// NewCarHandler creates a CarHandler.
func NewCarHandler(cars CarProvider, staging *upload.Staging, logger *slog.Logger) *CarHandler {
	return &CarHandler{
		cars:    cars,
		staging: staging,
		logger:  logger,
	}
}

// callerID reads the authenticated user from the request context. On a
// RequireAuth-protected route it is always present; the guard covers
// misrouted wiring.
func callerID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthenticated("Unauthorized"))
		return "", false
	}
	return userID, true
}

// HandleCreate creates a listing from a multipart form.
//
// HTTP: POST /api/v1/cars/create
// Auth: required
//
// Field rules (all violations reported together):
//   - model, company, dealer, dealerAddress, currency: required
//   - year: a parseable year ("2006", "2006-01", "2006-01-02", RFC3339)
//   - transmission: "manual" or "automatic"
//   - price: required, numeric
//   - tags: optional comma-separated list
//   - images: 1..10 files, jpeg/png/gif, ≤5MiB each
func (h *CarHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		writeError(w, apperror.BadRequest("Invalid multipart form", "BAD_REQUEST"))
		return
	}

	var v validate.Collector
	v.Require(r.FormValue("model"), "model is required")
	v.Require(r.FormValue("company"), "company is required")
	v.Require(r.FormValue("dealer"), "dealer is required")
	v.Require(r.FormValue("dealerAddress"), "dealerAddress is required")
	v.Require(r.FormValue("currency"), "currency is required")
	v.Require(r.FormValue("year"), "year is required")
	year := v.Year(r.FormValue("year"), "year must be a valid year")
	v.OneOf(r.FormValue("transmission"),
		[]string{model.TransmissionManual, model.TransmissionAutomatic},
		"transmission must be manual or automatic")
	v.Require(r.FormValue("transmission"), "transmission is required")
	v.Require(r.FormValue("price"), "price is required")
	price := v.Numeric(r.FormValue("price"), "price must be a number")
	if err := v.Err(); err != nil {
		writeError(w, err)
		return
	}

	staged, err := h.staging.Stage(r.MultipartForm.File[imagesField], model.MaxCarImages)
	if err != nil {
		writeError(w, apperror.BadRequest(err.Error(), "BAD_REQUEST"))
		return
	}
	defer h.staging.Cleanup(staged)

	car := &model.Car{
		Model:         r.FormValue("model"),
		Company:       r.FormValue("company"),
		Dealer:        r.FormValue("dealer"),
		DealerAddress: r.FormValue("dealerAddress"),
		Year:          year,
		Transmission:  r.FormValue("transmission"),
		Price:         price,
		Currency:      r.FormValue("currency"),
		Description:   r.FormValue("description"),
		Tags:          validate.SplitList(r.FormValue("tags")),
	}

	created, err := h.cars.Create(r.Context(), userID, car, upload.Paths(staged))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, created)
}

// HandleGet returns one of the caller's listings.
//
// HTTP: GET /api/v1/cars/{id}
// Auth: required
func (h *CarHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	carID := chi.URLParam(r, "id")
	var v validate.Collector
	v.HexID(carID, "id must be a valid car id")
	if err := v.Err(); err != nil {
		writeError(w, err)
		return
	}

	car, err := h.cars.Get(r.Context(), userID, carID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, car)
}

// HandleUpdate applies a partial update to one of the caller's listings.
//
// HTTP: PUT /api/v1/cars/{id}
// Auth: required (+ ownership guard in the service)
//
// All fields are optional. Scalars overwrite; tags append as a set; at most
// one new photo may be attached and it appends to the stored images.
func (h *CarHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	carID := chi.URLParam(r, "id")
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		writeError(w, apperror.BadRequest("Invalid multipart form", "BAD_REQUEST"))
		return
	}

	var v validate.Collector
	v.HexID(carID, "id must be a valid car id")
	v.OneOf(r.FormValue("transmission"),
		[]string{model.TransmissionManual, model.TransmissionAutomatic},
		"transmission must be manual or automatic")

	upd := service.CarUpdate{
		Model:         r.FormValue("model"),
		Company:       r.FormValue("company"),
		Dealer:        r.FormValue("dealer"),
		DealerAddress: r.FormValue("dealerAddress"),
		Transmission:  r.FormValue("transmission"),
		Currency:      r.FormValue("currency"),
		Description:   r.FormValue("description"),
		Tags:          validate.SplitList(r.FormValue("tags")),
	}
	if raw := r.FormValue("year"); raw != "" {
		upd.Year = v.Year(raw, "year must be a valid year")
	}
	if raw := r.FormValue("price"); raw != "" {
		price := v.Numeric(raw, "price must be a number")
		upd.Price = &price
	}
	if err := v.Err(); err != nil {
		writeError(w, err)
		return
	}

	// The update form accepts a single photo.
	staged, err := h.staging.Stage(r.MultipartForm.File[imagesField], 1)
	if err != nil {
		writeError(w, apperror.BadRequest(err.Error(), "BAD_REQUEST"))
		return
	}
	defer h.staging.Cleanup(staged)

	updated, err := h.cars.Update(r.Context(), userID, carID, upd, upload.Paths(staged))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, updated)
}

// HandleDelete removes one of the caller's listings.
//
// HTTP: DELETE /api/v1/cars/{id}
// Auth: required (+ ownership guard in the service)
func (h *CarHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	carID := chi.URLParam(r, "id")
	var v validate.Collector
	v.HexID(carID, "id must be a valid car id")
	if err := v.Err(); err != nil {
		writeError(w, err)
		return
	}

	if err := h.cars.Delete(r.Context(), userID, carID); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]string{"id": carID})
}

// HandleSearch runs a keyword search over the caller's listings.
//
// HTTP: GET /api/v1/cars/query/search?q=...&page=1&sort=price
// Auth: required
func (h *CarHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	cars, err := h.cars.Search(r.Context(), userID, q.Get("q"), validate.Page(q.Get("page")), q.Get("sort"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, cars)
}
