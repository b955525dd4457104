// Package model defines the data structures used throughout the application.
package model

import "time"

// User represents a member account.
//
// Members sign up with an email and password, or via GitHub OAuth. The email
// is the canonical identity: it is always stored lowercase and is unique
// across the users table. We generate our own internal string ID (xid)
// rather than using the email or an auto-increment integer as the primary
// key, so that emails can change without rewriting foreign keys.
//
// GEOGRAPHIC FIELDS:
// Zip is what the member typed. Latitude, Longitude, and State are DERIVED —
// the service geocodes the zip against an external provider whenever the zip
// value changes. They are never set directly by API clients.
//
// WHY *float64 FOR COORDINATES (not float64)?
// A member with no zip, or a zip the provider doesn't recognise, has no
// coordinates at all. 0.0 is a real coordinate (the Gulf of Guinea), so we
// can't use it as "unknown". nil pointers make "unknown" explicit, and the
// JSON encoder renders them as null.
type User struct {
	ID           string    `json:"id"        db:"id"`
	GitHubID     int64     `json:"-"         db:"github_id"` // 0 when the account was created with a password
	Email        string    `json:"email"     db:"email"`     // always lowercase, unique
	PasswordHash string    `json:"-"         db:"password_hash"`
	FirstName    string    `json:"firstName" db:"first_name"`
	LastName     string    `json:"lastName"  db:"last_name"`
	Zip          string    `json:"zip"       db:"zip"`
	Latitude     *float64  `json:"latitude"  db:"latitude"`  // derived from Zip, nil when unknown
	Longitude    *float64  `json:"longitude" db:"longitude"` // derived from Zip, nil when unknown
	State        string    `json:"state"     db:"state"`     // two-letter abbreviation, "" when unknown
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at"`
}

// Geocoded reports whether the user has derived coordinates.
func (u *User) Geocoded() bool {
	return u.Latitude != nil && u.Longitude != nil
}
