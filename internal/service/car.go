// Package service — car listing business logic.
//
// CarService owns the full listing lifecycle:
//
//	CarHandler (HTTP) → CarService (rules) → CarRepository (DB)
//	                  ↘ media.Uploader (image host)
//
// EVERY OPERATION RUNS THE SAME PIPELINE:
// the handler has already validated the input and authenticated the caller;
// the service authorizes the caller against the targeted listing and only
// then mutates. Ownership is never enforced "in the query" for mutations —
// the guard fetches the listing first so a missing listing and a foreign
// listing produce different errors.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mahir/carmarket/internal/apperror"
	"github.com/mahir/carmarket/internal/media"
	"github.com/mahir/carmarket/internal/model"
	"github.com/mahir/carmarket/internal/repository"
)

// CarService handles business logic for car listings.
type CarService struct {
	cars     repository.CarRepository
	uploader media.Uploader
	logger   *slog.Logger
}

// NewCarService creates a CarService with all required dependencies.
func NewCarService(cars repository.CarRepository, uploader media.Uploader, logger *slog.Logger) *CarService {
	return &CarService{
		cars:     cars,
		uploader: uploader,
		logger:   logger,
	}
}

// CarUpdate carries the fields an update may change. Zero values mean
// "leave unchanged" for scalars; Tags are appended as a set, never
// replacing the stored ones.
type CarUpdate struct {
	Model         string
	Company       string
	Dealer        string
	DealerAddress string
	Year          time.Time
	Transmission  string
	Price         *float64
	Currency      string
	Description   string
	Tags          []string
}

// Create uploads the listing's photos and persists the listing.
//
// ORDER OF OPERATIONS:
//  1. Reject a listing with no photos (every listing must show the car)
//  2. Reject more photos than a listing may carry — before any upload
//  3. Upload the staged files one at a time; the first failure aborts the
//     whole request and nothing is persisted
//  4. Persist the listing with the returned delivery URLs
//
// files are local paths staged by the upload package; the handler owns
// their cleanup regardless of how this method returns.
func (s *CarService) Create(ctx context.Context, userID string, car *model.Car, files []string) (*model.Car, error) {
	if len(files) == 0 {
		return nil, apperror.BadRequest("Files are required", "FILES_REQUIRED")
	}
	if len(files) > model.MaxCarImages {
		return nil, apperror.ValidationFailed(
			fmt.Sprintf("a listing may carry at most %d images", model.MaxCarImages))
	}

	urls, err := s.uploadAll(ctx, files)
	if err != nil {
		return nil, err
	}

	car.CreatedBy = userID
	car.Images = urls
	if err := s.cars.Create(ctx, car); err != nil {
		s.logger.Error("failed to create car listing",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("service/car: creating listing: %w", err)
	}

	s.logger.Info("car listing created",
		slog.String("carID", car.ID),
		slog.String("userID", userID),
		slog.Int("images", len(car.Images)),
	)

	return car, nil
}

// Get returns one of the caller's listings.
//
// Reads are owner-scoped the way the list and search queries are: a
// listing that exists but belongs to someone else is indistinguishable
// from one that doesn't exist.
func (s *CarService) Get(ctx context.Context, userID, carID string) (*model.Car, error) {
	car, err := s.cars.GetByID(ctx, carID)
	if err != nil {
		return nil, err
	}
	if car.CreatedBy != userID {
		return nil, apperror.NotFound("no car data found", "NO_DATA_FOUND")
	}
	return car, nil
}

// ListByUser returns one page of the caller's listings in creation order.
// An empty page is reported as not-found rather than an empty array.
func (s *CarService) ListByUser(ctx context.Context, userID string, page int) ([]model.Car, error) {
	if page < 1 {
		page = 1
	}

	cars, err := s.cars.ListByOwner(ctx, userID, page)
	if err != nil {
		return nil, fmt.Errorf("service/car: listing cars for user %s: %w", userID, err)
	}
	if len(cars) == 0 {
		return nil, apperror.NotFound("No cars found", "NO_CARS_FOUND")
	}
	return cars, nil
}

// Search runs a keyword search across the caller's own listings.
//
// The query is required: an empty one is rejected before touching the
// database. Keywords match the model name, the description, and the tags.
func (s *CarService) Search(ctx context.Context, userID, query string, page int, sortKey string) ([]model.Car, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperror.BadRequest("Search query is required", "BAD_REQUEST")
	}
	if page < 1 {
		page = 1
	}

	cars, err := s.cars.Search(ctx, repository.SearchOptions{
		OwnerID: userID,
		Query:   query,
		Page:    page,
		SortKey: sortKey,
	})
	if err != nil {
		return nil, fmt.Errorf("service/car: searching cars for user %s: %w", userID, err)
	}
	if len(cars) == 0 {
		return nil, apperror.NotFound("No cars found", "NO_CARS_FOUND")
	}
	return cars, nil
}

// Update applies a partial update to one of the caller's listings.
//
// SEMANTICS:
//   - Scalars overwrite only when provided
//   - Tags and new images are APPENDED as sets: a value already on the
//     listing is not duplicated, and existing values are never removed
//   - The image cap is re-checked against the combined count before any
//     upload starts, so a listing can never exceed it
//
// files may carry at most one staged photo (the update form accepts a
// single file); the handler enforces that at the multipart field level.
func (s *CarService) Update(ctx context.Context, userID, carID string, upd CarUpdate, files []string) (*model.Car, error) {
	car, err := s.authorize(ctx, userID, carID)
	if err != nil {
		return nil, err
	}

	if len(car.Images)+len(files) > model.MaxCarImages {
		return nil, apperror.ValidationFailed(
			fmt.Sprintf("a listing may carry at most %d images", model.MaxCarImages))
	}

	urls, err := s.uploadAll(ctx, files)
	if err != nil {
		return nil, err
	}

	applyUpdate(car, upd)
	car.Images = appendSet(car.Images, urls)

	if err := s.cars.Update(ctx, car); err != nil {
		s.logger.Error("failed to update car listing",
			slog.String("carID", carID),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	s.logger.Info("car listing updated",
		slog.String("carID", car.ID),
		slog.String("userID", userID),
	)

	return car, nil
}

// Delete removes one of the caller's listings.
func (s *CarService) Delete(ctx context.Context, userID, carID string) error {
	if _, err := s.authorize(ctx, userID, carID); err != nil {
		return err
	}

	if err := s.cars.Delete(ctx, carID); err != nil {
		return err
	}

	s.logger.Info("car listing deleted",
		slog.String("carID", carID),
		slog.String("userID", userID),
	)
	return nil
}

// authorize is the ownership guard for mutations: it fetches the targeted
// listing and checks the caller created it.
//
// A missing listing and a foreign listing fail differently — the former is
// a plain not-found, the latter a forbidden — because the caller of a
// mutation has named a concrete resource and deserves to know whether the
// request was malformed or disallowed.
func (s *CarService) authorize(ctx context.Context, userID, carID string) (*model.Car, error) {
	car, err := s.cars.GetByID(ctx, carID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.NotFound("Car not found", "CAR_NOT_FOUND")
		}
		return nil, fmt.Errorf("service/car: fetching car %s: %w", carID, err)
	}
	if car.CreatedBy != userID {
		return nil, apperror.Forbidden("You are not authorized to perform this action")
	}
	return car, nil
}

// uploadAll transfers the staged files to the media host one at a time.
// Sequential on purpose: the first failure aborts the request, and photos
// already transferred are simply orphaned on the host (they are not
// referenced by any listing).
func (s *CarService) uploadAll(ctx context.Context, files []string) ([]string, error) {
	urls := make([]string, 0, len(files))
	for _, path := range files {
		url, err := s.uploader.Upload(ctx, path)
		if err != nil {
			s.logger.Error("image upload failed",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
			return nil, apperror.UploadFailed(err)
		}
		urls = append(urls, url)
	}
	return urls, nil
}

// applyUpdate copies the provided fields onto the listing.
func applyUpdate(car *model.Car, upd CarUpdate) {
	if v := strings.TrimSpace(upd.Model); v != "" {
		car.Model = v
	}
	if v := strings.TrimSpace(upd.Company); v != "" {
		car.Company = v
	}
	if v := strings.TrimSpace(upd.Dealer); v != "" {
		car.Dealer = v
	}
	if v := strings.TrimSpace(upd.DealerAddress); v != "" {
		car.DealerAddress = v
	}
	if !upd.Year.IsZero() {
		car.Year = upd.Year
	}
	if v := strings.TrimSpace(upd.Transmission); v != "" {
		car.Transmission = v
	}
	if upd.Price != nil {
		car.Price = *upd.Price
	}
	if v := strings.TrimSpace(upd.Currency); v != "" {
		car.Currency = v
	}
	if v := strings.TrimSpace(upd.Description); v != "" {
		car.Description = v
	}
	car.Tags = appendSet(car.Tags, upd.Tags)
}

// appendSet appends the new values that are not already present,
// preserving the order of first appearance.
func appendSet(existing, incoming []string) []string {
	seen := make(map[string]struct{}, len(existing))
	for _, v := range existing {
		seen[v] = struct{}{}
	}
	out := existing
	for _, v := range incoming {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
