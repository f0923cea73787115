package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mahir/carmarket/internal/apperror"
	"github.com/mahir/carmarket/internal/model"
	"github.com/mahir/carmarket/internal/repository"
)

// Compile-time check that *CarDB implements repository.CarRepository.
var _ repository.CarRepository = (*CarDB)(nil)

// CarDB implements repository.CarRepository on the shared connection.
type CarDB struct {
	conn *sql.DB
}

const carColumns = `id, created_by, model, company, dealer, dealer_address, year,
	transmission, price, currency, description, tags, images, created_at, updated_at`

// sortColumns whitelists the caller-selectable sort keys. Anything not in
// the map falls back to creation time; building ORDER BY from raw client
// input would be an injection hole.
var sortColumns = map[string]string{
	"created_at": "created_at",
	"price":      "price",
	"year":       "year",
}

// Create inserts a new listing. ID and timestamps are generated here; the
// caller's struct is updated in place.
func (c *CarDB) Create(ctx context.Context, car *model.Car) error {
	now := time.Now().UTC()
	car.ID = newObjectID()
	car.CreatedAt = now
	car.UpdatedAt = now

	tags, images, err := encodeSets(car)
	if err != nil {
		return err
	}

	_, err = c.conn.ExecContext(ctx,
		`INSERT INTO cars (id, created_by, model, company, dealer, dealer_address, year,
		   transmission, price, currency, description, tags, images, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		car.ID,
		car.CreatedBy,
		car.Model,
		car.Company,
		car.Dealer,
		car.DealerAddress,
		car.Year,
		car.Transmission,
		car.Price,
		car.Currency,
		car.Description,
		tags,
		images,
		car.CreatedAt,
		car.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting car: %w", err)
	}

	return nil
}

// GetByID retrieves a single listing regardless of owner. The service's
// ownership guard compares CreatedBy against the caller identity — keeping
// the two failure modes (missing vs. foreign) distinguishable requires the
// unscoped read here.
func (c *CarDB) GetByID(ctx context.Context, id string) (*model.Car, error) {
	row := c.conn.QueryRowContext(ctx,
		`SELECT `+carColumns+` FROM cars WHERE id = ?`, id)

	car, err := scanCar(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("no car data found", "NO_DATA_FOUND")
		}
		return nil, fmt.Errorf("sqlite: getting car %s: %w", id, err)
	}

	return car, nil
}

// ListByOwner returns one page of the owner's listings, oldest first.
func (c *CarDB) ListByOwner(ctx context.Context, ownerID string, page int) ([]model.Car, error) {
	if page < 1 {
		page = 1
	}

	rows, err := c.conn.QueryContext(ctx,
		`SELECT `+carColumns+` FROM cars
		 WHERE created_by = ?
		 ORDER BY created_at, id
		 LIMIT ? OFFSET ?`,
		ownerID, repository.PageSize, (page-1)*repository.PageSize,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing cars for %s: %w", ownerID, err)
	}
	defer rows.Close()

	return collectCars(rows)
}

// Search runs a keyword match over model, tags, and description, scoped to
// the owner. Each whitespace-separated keyword matches any of the three
// fields; a row qualifies when any keyword hits, which mirrors document-DB
// text-search OR semantics. Ordering is by the whitelisted sort key with id
// as tiebreaker so pagination is stable.
func (c *CarDB) Search(ctx context.Context, opts repository.SearchOptions) ([]model.Car, error) {
	page := opts.Page
	if page < 1 {
		page = 1
	}

	keywords := strings.Fields(opts.Query)
	if len(keywords) == 0 {
		return []model.Car{}, nil
	}

	var clauses []string
	args := []any{opts.OwnerID}
	for _, kw := range keywords {
		pattern := "%" + escapeLike(kw) + "%"
		clauses = append(clauses,
			`(model LIKE ? ESCAPE '\' OR description LIKE ? ESCAPE '\' OR tags LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern, pattern)
	}

	orderCol, ok := sortColumns[opts.SortKey]
	if !ok {
		orderCol = "created_at"
	}

	query := `SELECT ` + carColumns + ` FROM cars
		 WHERE created_by = ? AND (` + strings.Join(clauses, " OR ") + `)
		 ORDER BY ` + orderCol + `, id
		 LIMIT ? OFFSET ?`
	args = append(args, repository.PageSize, (page-1)*repository.PageSize)

	rows, err := c.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: searching cars: %w", err)
	}
	defer rows.Close()

	return collectCars(rows)
}

// Update persists the full listing under its id. Zero affected rows means
// the listing vanished between the ownership check and the write.
func (c *CarDB) Update(ctx context.Context, car *model.Car) error {
	car.UpdatedAt = time.Now().UTC()

	tags, images, err := encodeSets(car)
	if err != nil {
		return err
	}

	res, err := c.conn.ExecContext(ctx,
		`UPDATE cars SET model = ?, company = ?, dealer = ?, dealer_address = ?, year = ?,
		   transmission = ?, price = ?, currency = ?, description = ?, tags = ?, images = ?,
		   updated_at = ?
		 WHERE id = ?`,
		car.Model,
		car.Company,
		car.Dealer,
		car.DealerAddress,
		car.Year,
		car.Transmission,
		car.Price,
		car.Currency,
		car.Description,
		tags,
		images,
		car.UpdatedAt,
		car.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating car %s: %w", car.ID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: updating car %s: %w", car.ID, err)
	}
	if affected == 0 {
		return apperror.UpdateFailed("Failed to update car")
	}

	return nil
}

// Delete removes a listing by id.
func (c *CarDB) Delete(ctx context.Context, id string) error {
	res, err := c.conn.ExecContext(ctx, `DELETE FROM cars WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting car %s: %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: deleting car %s: %w", id, err)
	}
	if affected == 0 {
		return apperror.NotFound("Car not found", "CAR_NOT_FOUND")
	}

	return nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanCar(s scanner) (*model.Car, error) {
	var (
		car    model.Car
		tags   string
		images string
	)

	err := s.Scan(
		&car.ID,
		&car.CreatedBy,
		&car.Model,
		&car.Company,
		&car.Dealer,
		&car.DealerAddress,
		&car.Year,
		&car.Transmission,
		&car.Price,
		&car.Currency,
		&car.Description,
		&tags,
		&images,
		&car.CreatedAt,
		&car.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(tags), &car.Tags); err != nil {
		return nil, fmt.Errorf("decoding tags for car %s: %w", car.ID, err)
	}
	if err := json.Unmarshal([]byte(images), &car.Images); err != nil {
		return nil, fmt.Errorf("decoding images for car %s: %w", car.ID, err)
	}

	return &car, nil
}

func collectCars(rows *sql.Rows) ([]model.Car, error) {
	cars := []model.Car{}
	for rows.Next() {
		car, err := scanCar(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning car row: %w", err)
		}
		cars = append(cars, *car)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating car rows: %w", err)
	}
	return cars, nil
}

// encodeSets marshals tags and images to their JSON column form. nil slices
// encode as empty arrays so the columns never hold SQL NULL or "null".
func encodeSets(car *model.Car) (string, string, error) {
	tags := car.Tags
	if tags == nil {
		tags = []string{}
	}
	images := car.Images
	if images == nil {
		images = []string{}
	}

	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return "", "", fmt.Errorf("encoding tags: %w", err)
	}
	imagesJSON, err := json.Marshal(images)
	if err != nil {
		return "", "", fmt.Errorf("encoding images: %w", err)
	}
	return string(tagsJSON), string(imagesJSON), nil
}

// escapeLike neutralises LIKE wildcards in user-supplied keywords.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
