package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/mahir/carmarket/internal/model"
)

// newTestDB creates an in-memory database that disappears when the test
// ends. Migrations run inside New, so the schema is ready.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("New(:memory:): %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// createTestUser inserts a user and fails the test on error.
func createTestUser(t *testing.T, u *UserDB, email string) *model.User {
	t.Helper()
	user := &model.User{
		Email:        email,
		PasswordHash: "$2a$04$fakehashfortestingonly",
	}
	if err := u.Create(context.Background(), user); err != nil {
		t.Fatalf("failed to create test user %s: %v", email, err)
	}
	return user
}

// createTestCar inserts a listing owned by ownerID and fails the test on error.
func createTestCar(t *testing.T, c *CarDB, ownerID, carModel string) *model.Car {
	t.Helper()
	car := &model.Car{
		CreatedBy:     ownerID,
		Model:         carModel,
		Company:       "Honda",
		Dealer:        "City Motors",
		DealerAddress: "12 Main Road",
		Year:          time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		Transmission:  model.TransmissionManual,
		Price:         15000,
		Currency:      "USD",
		Tags:          []string{"sedan"},
		Images:        []string{"https://cdn.example/img1.png"},
	}
	if err := c.Create(context.Background(), car); err != nil {
		t.Fatalf("failed to create test car %s: %v", carModel, err)
	}
	return car
}

func TestNewObjectID_Format(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := newObjectID()
		if len(id) != 24 {
			t.Fatalf("newObjectID() = %q, want 24 hex chars", id)
		}
		for _, ch := range id {
			if !(ch >= '0' && ch <= '9' || ch >= 'a' && ch <= 'f') {
				t.Fatalf("newObjectID() = %q contains non-hex char %q", id, ch)
			}
		}
		if seen[id] {
			t.Fatalf("newObjectID() produced a duplicate: %s", id)
		}
		seen[id] = true
	}
}
