// Package repository defines the persistence interfaces the service layer
// programs against. The document store itself is an external collaborator —
// services only ever see these interfaces, and tests swap in in-memory
// fakes.
package repository

import (
	"context"

	"github.com/mahir/carmarket/internal/model"
)

// PageSize is the fixed page length for every paginated listing and search.
// Pages are 1-based.
const PageSize = 10

// SearchOptions scopes a keyword search to one owner's listings.
//
// SortKey selects the ordering column ("created_at", "price", "year");
// implementations must fall back to creation time for anything else and
// must keep the ordering stable across pages.
type SearchOptions struct {
	OwnerID string
	Query   string
	Page    int
	SortKey string
}

// UserRepository stores user accounts. Email is unique — Create must fail
// with a conflict when the email is already registered.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	// UpsertByEmail creates-or-updates the account for a federated login:
	// a new row for a first-time email, otherwise the existing row gains
	// the verified flag and profile image while keeping its id and any
	// local password hash.
	UpsertByEmail(ctx context.Context, user *model.User) error
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}

// CarRepository stores car listings.
//
// Reads are owner-scoped where noted; mutations operate by id only because
// the ownership guard in the service layer has already confirmed the
// caller owns the row.
type CarRepository interface {
	Create(ctx context.Context, car *model.Car) error
	GetByID(ctx context.Context, id string) (*model.Car, error)
	ListByOwner(ctx context.Context, ownerID string, page int) ([]model.Car, error)
	Search(ctx context.Context, opts SearchOptions) ([]model.Car, error)
	// Update persists the full listing; it fails with apperror.ErrUpdateFailed
	// when no row changed.
	Update(ctx context.Context, car *model.Car) error
	// Delete fails with apperror.ErrNotFound when no row was deleted.
	Delete(ctx context.Context, id string) error
}
