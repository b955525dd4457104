package repository

import (
	"context"

	"github.com/sakif/memberhub/internal/model"
)

// Bounds is a latitude/longitude bounding box used to pre-filter proximity
// queries in SQL. The box is intentionally slightly too large: the service
// layer applies the exact great-circle distance cut afterwards. Doing the
// coarse filter in the database keeps the row set small without requiring
// trigonometry support from SQLite.
type Bounds struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
}

// Coordinate is a geocoded member position returned by bounding-box queries.
type Coordinate struct {
	Latitude  float64
	Longitude float64
}

// UserRepository is the persistence interface for member accounts.
//
// Create and Update take pointers and fill in generated fields (ID,
// CreatedAt, UpdatedAt) in place. A duplicate email surfaces as
// apperror.ErrConflict; a missing row as apperror.ErrNotFound.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	Update(ctx context.Context, user *model.User) error

	// UpsertByGitHubID inserts the user on first OAuth login and refreshes
	// the mutable profile fields on subsequent logins. Returns true when a
	// new row was created, so the caller knows whether to fire the
	// account-creation jobs.
	UpsertByGitHubID(ctx context.Context, user *model.User) (created bool, err error)

	// Aggregate queries. Zips and states are exact-match lists; an empty
	// list yields zero without touching the database.
	CountByZips(ctx context.Context, zips []string) (int, error)
	CountByStates(ctx context.Context, states []string) (int, error)

	// CoordinatesWithinBounds returns the coordinates of every geocoded
	// member inside the box. Members without coordinates are excluded.
	CoordinatesWithinBounds(ctx context.Context, b Bounds) ([]Coordinate, error)
}
