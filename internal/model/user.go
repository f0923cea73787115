// Package model defines the data structures used throughout the application.
package model

import "time"

// User represents a registered account.
//
// Accounts come from two places: email+password signup, and Google federated
// sign-in. A federated-only account has no password hash; the `json:"-"` tag
// guarantees the hash is never serialized into a response either way.
//
// Email is the natural key — the persistence layer enforces uniqueness, and
// the Google sign-in upserts by email so both auth paths converge on the
// same row.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Username     string    `json:"username,omitempty"`
	ProfileImg   string    `json:"profileImg,omitempty"`
	Verified     bool      `json:"isVerified"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
