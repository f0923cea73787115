package handler_test

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mahir/carmarket/internal/apperror"
	"github.com/mahir/carmarket/internal/handler"
	"github.com/mahir/carmarket/internal/model"
)

func TestUserHandler_HandleGetInfo(t *testing.T) {
	t.Run("returns the caller's profile", func(t *testing.T) {
		auths := &mockAuthProvider{Result: okAuthResult()}
		h := handler.NewUserHandler(auths, &mockCarProvider{})

		req := authed(httptest.NewRequest(http.MethodGet, "/api/v1/users/info", nil), "64b1f0a1b2c3d4e5f6a7b8c9")
		rr := httptest.NewRecorder()

		h.HandleGetInfo(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		env := decodeEnvelope(t, rr)
		data, _ := env["data"].(map[string]any)
		assert.Equal(t, "mahir@example.com", data["email"])
		assert.NotContains(t, data, "passwordHash", "hash must never serialize")
	})

	t.Run("requires authentication", func(t *testing.T) {
		h := handler.NewUserHandler(&mockAuthProvider{}, &mockCarProvider{})

		req := httptest.NewRequest(http.MethodGet, "/api/v1/users/info", nil)
		rr := httptest.NewRecorder()

		h.HandleGetInfo(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func TestUserHandler_HandleGetCars(t *testing.T) {
	t.Run("returns one page of listings", func(t *testing.T) {
		cars := &mockCarProvider{Cars: []model.Car{{ID: testCarID}, {ID: testCarID}}}
		h := handler.NewUserHandler(&mockAuthProvider{}, cars)

		req := authed(httptest.NewRequest(http.MethodGet, "/api/v1/users/cars?page=3", nil), "user-1")
		rr := httptest.NewRecorder()

		h.HandleGetCars(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, 3, cars.GotPage)
	})

	t.Run("empty page maps to NO_CARS_FOUND", func(t *testing.T) {
		cars := &mockCarProvider{Err: apperror.NotFound("No cars found", "NO_CARS_FOUND")}
		h := handler.NewUserHandler(&mockAuthProvider{}, cars)

		req := authed(httptest.NewRequest(http.MethodGet, "/api/v1/users/cars", nil), "user-1")
		rr := httptest.NewRecorder()

		h.HandleGetCars(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
		env := decodeEnvelope(t, rr)
		assert.Equal(t, "NO_CARS_FOUND", env["code"])
	})
}

func TestUserHandler_HandleIsExists(t *testing.T) {
	t.Run("registered email", func(t *testing.T) {
		auths := &mockAuthProvider{Result: okAuthResult()}
		h := handler.NewUserHandler(auths, &mockCarProvider{})

		req := httptest.NewRequest(http.MethodPost, "/api/v1/users/is-exists",
			bytes.NewBufferString(`{"email":"mahir@example.com"}`))
		rr := httptest.NewRecorder()

		h.HandleIsExists(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		env := decodeEnvelope(t, rr)
		data, _ := env["data"].(map[string]any)
		assert.Equal(t, true, data["isExist"])
	})

	t.Run("invalid email fails validation", func(t *testing.T) {
		h := handler.NewUserHandler(&mockAuthProvider{}, &mockCarProvider{})

		req := httptest.NewRequest(http.MethodPost, "/api/v1/users/is-exists",
			bytes.NewBufferString(`{"email":"not-an-email"}`))
		rr := httptest.NewRecorder()

		h.HandleIsExists(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}
