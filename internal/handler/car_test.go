package handler_test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"github.com/mahir/carmarket/internal/apperror"
	"github.com/mahir/carmarket/internal/auth"
	"github.com/mahir/carmarket/internal/handler"
	"github.com/mahir/carmarket/internal/model"
	"github.com/mahir/carmarket/internal/service"
	"github.com/mahir/carmarket/internal/upload"
)

// =========================================================================
// MOCK CAR PROVIDER
// =========================================================================

type mockCarProvider struct {
	Car      *model.Car
	Cars     []model.Car
	Err      error
	GotFiles []string
	GotCar   *model.Car
	GotUpd   service.CarUpdate
	GotQuery string
	GotSort  string
	GotPage  int
}

func (m *mockCarProvider) Create(_ context.Context, userID string, car *model.Car, files []string) (*model.Car, error) {
	m.GotCar = car
	m.GotFiles = files
	if m.Err != nil {
		return nil, m.Err
	}
	car.ID = "64b1f0a1b2c3d4e5f6a7b8c9"
	car.CreatedBy = userID
	return car, nil
}

func (m *mockCarProvider) Get(_ context.Context, userID, carID string) (*model.Car, error) {
	return m.Car, m.Err
}

func (m *mockCarProvider) ListByUser(_ context.Context, userID string, page int) ([]model.Car, error) {
	m.GotPage = page
	return m.Cars, m.Err
}

func (m *mockCarProvider) Search(_ context.Context, userID, query string, page int, sortKey string) ([]model.Car, error) {
	m.GotQuery = query
	m.GotPage = page
	m.GotSort = sortKey
	return m.Cars, m.Err
}

func (m *mockCarProvider) Update(_ context.Context, userID, carID string, upd service.CarUpdate, files []string) (*model.Car, error) {
	m.GotUpd = upd
	m.GotFiles = files
	return m.Car, m.Err
}

func (m *mockCarProvider) Delete(_ context.Context, userID, carID string) error {
	return m.Err
}

// =========================================================================
// HELPERS
// =========================================================================

const testCarID = "64b1f0a1b2c3d4e5f6a7b8c9"

func newCarHandler(t *testing.T, cars *mockCarProvider) *handler.CarHandler {
	t.Helper()
	staging, err := upload.NewStaging(t.TempDir(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.NoError(t, err)
	return handler.NewCarHandler(cars, staging, testLogger)
}

// carRouter mounts the handler the way the server does, so chi URL params
// resolve in tests.
func carRouter(h *handler.CarHandler) http.Handler {
	r := chi.NewRouter()
	r.Post("/cars/create", h.HandleCreate)
	r.Get("/cars/query/search", h.HandleSearch)
	r.Get("/cars/{id}", h.HandleGet)
	r.Put("/cars/{id}", h.HandleUpdate)
	r.Delete("/cars/{id}", h.HandleDelete)
	return r
}

func authed(req *http.Request, userID string) *http.Request {
	return req.WithContext(auth.ContextWithUserID(req.Context(), userID))
}

// carForm builds a multipart body with the given fields and jpeg files.
func carForm(t *testing.T, fields map[string]string, files ...string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for name, value := range fields {
		assert.NoError(t, w.WriteField(name, value))
	}
	for _, name := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="images"; filename="`+name+`"`)
		h.Set("Content-Type", "image/jpeg")
		part, err := w.CreatePart(h)
		assert.NoError(t, err)
		_, err = part.Write([]byte("jpeg-bytes"))
		assert.NoError(t, err)
	}
	assert.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func validCarFields() map[string]string {
	return map[string]string{
		"model":         "City",
		"company":       "Honda",
		"dealer":        "City Motors",
		"dealerAddress": "12 Main Rd",
		"year":          "2020",
		"transmission":  "manual",
		"price":         "15000",
		"currency":      "USD",
		"description":   "well maintained",
		"tags":          "sedan, family",
	}
}

// =========================================================================
// CREATE
// =========================================================================

func TestCarHandler_HandleCreate(t *testing.T) {
	t.Run("valid multipart create", func(t *testing.T) {
		cars := &mockCarProvider{}
		router := carRouter(newCarHandler(t, cars))

		body, contentType := carForm(t, validCarFields(), "a.jpg", "b.jpg")
		req := authed(httptest.NewRequest(http.MethodPost, "/cars/create", body), "user-1")
		req.Header.Set("Content-Type", contentType)
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusCreated, rr.Code)
		assert.Len(t, cars.GotFiles, 2, "both staged files reach the service")
		assert.Equal(t, "City", cars.GotCar.Model)
		assert.Equal(t, []string{"sedan", "family"}, cars.GotCar.Tags)

		body2 := decodeEnvelope(t, rr)
		assert.Equal(t, "success", body2["status"])
	})

	t.Run("validation collects every violation", func(t *testing.T) {
		cars := &mockCarProvider{}
		router := carRouter(newCarHandler(t, cars))

		body, contentType := carForm(t, map[string]string{
			"transmission": "hover",
			"price":        "cheap",
		})
		req := authed(httptest.NewRequest(http.MethodPost, "/cars/create", body), "user-1")
		req.Header.Set("Content-Type", contentType)
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		env := decodeEnvelope(t, rr)
		assert.Equal(t, "VALIDATION_ERROR", env["code"])
		violations, _ := env["errors"].([]any)
		// model, company, dealer, dealerAddress, currency, year,
		// transmission value, price
		assert.Len(t, violations, 8)
		assert.Nil(t, cars.GotCar, "service must not be reached")
	})

	t.Run("missing price is rejected", func(t *testing.T) {
		cars := &mockCarProvider{}
		router := carRouter(newCarHandler(t, cars))

		fields := validCarFields()
		delete(fields, "price")
		body, contentType := carForm(t, fields, "a.jpg")
		req := authed(httptest.NewRequest(http.MethodPost, "/cars/create", body), "user-1")
		req.Header.Set("Content-Type", contentType)
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		env := decodeEnvelope(t, rr)
		assert.Equal(t, "VALIDATION_ERROR", env["code"])
		violations, _ := env["errors"].([]any)
		assert.Len(t, violations, 1)
		assert.Nil(t, cars.GotCar, "a listing must never persist without a price")
	})

	t.Run("missing files flow through as FILES_REQUIRED", func(t *testing.T) {
		cars := &mockCarProvider{Err: apperror.BadRequest("Files are required", "FILES_REQUIRED")}
		router := carRouter(newCarHandler(t, cars))

		body, contentType := carForm(t, validCarFields()) // no files
		req := authed(httptest.NewRequest(http.MethodPost, "/cars/create", body), "user-1")
		req.Header.Set("Content-Type", contentType)
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		env := decodeEnvelope(t, rr)
		assert.Equal(t, "FILES_REQUIRED", env["code"])
	})

	t.Run("upload failure maps to 500 with its code", func(t *testing.T) {
		cars := &mockCarProvider{Err: apperror.UploadFailed(assert.AnError)}
		router := carRouter(newCarHandler(t, cars))

		body, contentType := carForm(t, validCarFields(), "a.jpg")
		req := authed(httptest.NewRequest(http.MethodPost, "/cars/create", body), "user-1")
		req.Header.Set("Content-Type", contentType)
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		env := decodeEnvelope(t, rr)
		assert.Equal(t, "CLOUDINARY_UPLOAD_FAILED", env["code"])
		assert.Equal(t, "Failed to upload file on cloudinary", env["message"])
	})

	t.Run("no temp files survive the request", func(t *testing.T) {
		dir := t.TempDir()
		staging, err := upload.NewStaging(dir, slog.New(slog.NewTextHandler(io.Discard, nil)))
		assert.NoError(t, err)
		router := carRouter(handler.NewCarHandler(&mockCarProvider{}, staging, testLogger))

		body, contentType := carForm(t, validCarFields(), "a.jpg", "b.jpg")
		req := authed(httptest.NewRequest(http.MethodPost, "/cars/create", body), "user-1")
		req.Header.Set("Content-Type", contentType)
		router.ServeHTTP(httptest.NewRecorder(), req)

		entries, err := os.ReadDir(dir)
		assert.NoError(t, err)
		assert.Empty(t, entries, "staged files must be cleaned up")
	})
}

// =========================================================================
// READ / SEARCH
// =========================================================================

func TestCarHandler_HandleGet(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		cars := &mockCarProvider{Car: &model.Car{ID: testCarID, Model: "City"}}
		router := carRouter(newCarHandler(t, cars))

		req := authed(httptest.NewRequest(http.MethodGet, "/cars/"+testCarID, nil), "user-1")
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("malformed id fails validation before the service", func(t *testing.T) {
		cars := &mockCarProvider{}
		router := carRouter(newCarHandler(t, cars))

		req := authed(httptest.NewRequest(http.MethodGet, "/cars/not-hex", nil), "user-1")
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		env := decodeEnvelope(t, rr)
		assert.Equal(t, "VALIDATION_ERROR", env["code"])
	})

	t.Run("foreign listing is 404 NO_DATA_FOUND", func(t *testing.T) {
		cars := &mockCarProvider{Err: apperror.NotFound("no car data found", "NO_DATA_FOUND")}
		router := carRouter(newCarHandler(t, cars))

		req := authed(httptest.NewRequest(http.MethodGet, "/cars/"+testCarID, nil), "user-2")
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
		env := decodeEnvelope(t, rr)
		assert.Equal(t, "NO_DATA_FOUND", env["code"])
	})
}

func TestCarHandler_HandleSearch(t *testing.T) {
	t.Run("passes query, page, and sort through", func(t *testing.T) {
		cars := &mockCarProvider{Cars: []model.Car{{ID: testCarID}}}
		router := carRouter(newCarHandler(t, cars))

		req := authed(httptest.NewRequest(http.MethodGet, "/cars/query/search?q=sedan&page=2&sort=price", nil), "user-1")
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "sedan", cars.GotQuery)
		assert.Equal(t, 2, cars.GotPage)
		assert.Equal(t, "price", cars.GotSort)
	})

	t.Run("empty query maps to BAD_REQUEST", func(t *testing.T) {
		cars := &mockCarProvider{Err: apperror.BadRequest("Search query is required", "BAD_REQUEST")}
		router := carRouter(newCarHandler(t, cars))

		req := authed(httptest.NewRequest(http.MethodGet, "/cars/query/search", nil), "user-1")
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		env := decodeEnvelope(t, rr)
		assert.Equal(t, "BAD_REQUEST", env["code"])
	})
}

// =========================================================================
// UPDATE / DELETE
// =========================================================================

func TestCarHandler_HandleUpdate(t *testing.T) {
	t.Run("partial update with one new photo", func(t *testing.T) {
		cars := &mockCarProvider{Car: &model.Car{ID: testCarID}}
		router := carRouter(newCarHandler(t, cars))

		body, contentType := carForm(t, map[string]string{
			"price": "17500",
			"tags":  "economy",
		}, "new.jpg")
		req := authed(httptest.NewRequest(http.MethodPut, "/cars/"+testCarID, body), "user-1")
		req.Header.Set("Content-Type", contentType)
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		if assert.NotNil(t, cars.GotUpd.Price) {
			assert.Equal(t, 17500.0, *cars.GotUpd.Price)
		}
		assert.Equal(t, []string{"economy"}, cars.GotUpd.Tags)
		assert.Len(t, cars.GotFiles, 1)
	})

	t.Run("more than one photo is rejected at the field constraint", func(t *testing.T) {
		cars := &mockCarProvider{}
		router := carRouter(newCarHandler(t, cars))

		body, contentType := carForm(t, map[string]string{"price": "100"}, "a.jpg", "b.jpg")
		req := authed(httptest.NewRequest(http.MethodPut, "/cars/"+testCarID, body), "user-1")
		req.Header.Set("Content-Type", contentType)
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Nil(t, cars.GotFiles, "service must not be reached")
	})

	t.Run("foreign owner maps to 403 UNAUTHORIZED_REQUEST", func(t *testing.T) {
		cars := &mockCarProvider{Err: apperror.Forbidden("You are not authorized to perform this action")}
		router := carRouter(newCarHandler(t, cars))

		body, contentType := carForm(t, map[string]string{"price": "100"})
		req := authed(httptest.NewRequest(http.MethodPut, "/cars/"+testCarID, body), "user-2")
		req.Header.Set("Content-Type", contentType)
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusForbidden, rr.Code)
		env := decodeEnvelope(t, rr)
		assert.Equal(t, "UNAUTHORIZED_REQUEST", env["code"])
	})
}

func TestCarHandler_HandleDelete(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		cars := &mockCarProvider{}
		router := carRouter(newCarHandler(t, cars))

		req := authed(httptest.NewRequest(http.MethodDelete, "/cars/"+testCarID, nil), "user-1")
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("missing listing is 404 CAR_NOT_FOUND", func(t *testing.T) {
		cars := &mockCarProvider{Err: apperror.NotFound("Car not found", "CAR_NOT_FOUND")}
		router := carRouter(newCarHandler(t, cars))

		req := authed(httptest.NewRequest(http.MethodDelete, "/cars/"+testCarID, nil), "user-1")
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
		env := decodeEnvelope(t, rr)
		assert.Equal(t, "CAR_NOT_FOUND", env["code"])
	})

	t.Run("unauthenticated request never reaches the service", func(t *testing.T) {
		cars := &mockCarProvider{}
		router := carRouter(newCarHandler(t, cars))

		// No user in context.
		req := httptest.NewRequest(http.MethodDelete, "/cars/"+testCarID, nil)
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}
