package model

import "time"

// Transmission values accepted for a car listing.
const (
	TransmissionManual    = "manual"
	TransmissionAutomatic = "automatic"
)

// MaxCarImages caps how many image URLs a listing may carry.
// Enforced before any upload starts and re-checked when an update appends.
const MaxCarImages = 10

// Car represents a car listing.
//
// CreatedBy is the ownership reference: the ID of the user who created the
// listing. Every mutation re-checks it against the caller identity, and
// every read is scoped by it at the query level — one user never sees
// another user's rows.
//
// Tags and Images behave as append-only sets on update: new values are
// unioned with the stored ones, never replacing them.
type Car struct {
	ID            string    `json:"id"`
	CreatedBy     string    `json:"createdBy"`
	Model         string    `json:"model"`
	Company       string    `json:"company"`
	Dealer        string    `json:"dealer"`
	DealerAddress string    `json:"dealerAddress"`
	Year          time.Time `json:"year"`
	Transmission  string    `json:"transmission"`
	Price         float64   `json:"price"`
	Currency      string    `json:"currency"`
	Description   string    `json:"description,omitempty"`
	Tags          []string  `json:"tags,omitempty"`
	Images        []string  `json:"images,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}
