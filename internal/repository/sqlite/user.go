package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/memberhub/internal/apperror"
	"github.com/sakif/memberhub/internal/model"
	"github.com/sakif/memberhub/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

// isUniqueEmailErr detects a UNIQUE violation on users.email.
//
// modernc.org/sqlite doesn't export typed constraint errors the way pgx
// exports pgconn.PgError, so we match on the stable message fragment SQLite
// itself produces. Fragile in theory, but this exact string has been part of
// SQLite's public error format for over a decade.
func isUniqueEmailErr(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed: users.email")
}

// nullFloat converts a *float64 into the sql.NullFloat64 the driver expects.
// NULL in the DB maps to nil in the model — see the model.User doc for why
// coordinates are pointers.
func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

// scanUser reads one users row. Shared by every SELECT in this file so the
// column order lives in exactly one place (well, two — keep it in sync with
// userColumns).
const userColumns = `id, github_id, email, password_hash, first_name, last_name,
	zip, latitude, longitude, state, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*model.User, error) {
	var (
		u        model.User
		githubID sql.NullInt64
		lat, lng sql.NullFloat64
	)
	err := row.Scan(
		&u.ID,
		&githubID,
		&u.Email,
		&u.PasswordHash,
		&u.FirstName,
		&u.LastName,
		&u.Zip,
		&lat,
		&lng,
		&u.State,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if githubID.Valid {
		u.GitHubID = githubID.Int64
	}
	if lat.Valid {
		u.Latitude = &lat.Float64
	}
	if lng.Valid {
		u.Longitude = &lng.Float64
	}
	return &u, nil
}

// Create inserts a new user. It fills in ID, CreatedAt, and UpdatedAt on the
// passed struct. A duplicate email returns apperror.ErrConflict — the UNIQUE
// index is the source of truth for uniqueness, not a SELECT-then-INSERT
// check, which would race under concurrent signups.
func (db *DB) Create(ctx context.Context, user *model.User) error {
	now := time.Now().UTC()
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now

	githubID := sql.NullInt64{Int64: user.GitHubID, Valid: user.GitHubID != 0}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (id, github_id, email, password_hash, first_name, last_name,
		                    zip, latitude, longitude, state, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		githubID,
		user.Email,
		user.PasswordHash,
		user.FirstName,
		user.LastName,
		user.Zip,
		nullFloat(user.Latitude),
		nullFloat(user.Longitude),
		user.State,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueEmailErr(err) {
			return apperror.Conflict("email", fmt.Sprintf("email %s is already registered", user.Email))
		}
		return fmt.Errorf("sqlite: inserting user (email=%s): %w", user.Email, err)
	}

	return nil
}

// GetByID retrieves a user by their internal ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetByID(ctx context.Context, id string) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)

	u, err := scanUser(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}
	return u, nil
}

// GetByEmail retrieves a user by email. The caller is expected to have
// lowercased the email already (the service layer always does).
func (db *DB) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email)

	u, err := scanUser(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", email)
		}
		return nil, fmt.Errorf("sqlite: getting user by email %s: %w", email, err)
	}
	return u, nil
}

// Update rewrites all mutable fields of an existing user.
// Returns apperror.ErrNotFound if the ID doesn't exist, and
// apperror.ErrConflict if the new email collides with another member's.
func (db *DB) Update(ctx context.Context, user *model.User) error {
	user.UpdatedAt = time.Now().UTC()

	res, err := db.conn.ExecContext(ctx,
		`UPDATE users
		 SET email = ?, password_hash = ?, first_name = ?, last_name = ?,
		     zip = ?, latitude = ?, longitude = ?, state = ?, updated_at = ?
		 WHERE id = ?`,
		user.Email,
		user.PasswordHash,
		user.FirstName,
		user.LastName,
		user.Zip,
		nullFloat(user.Latitude),
		nullFloat(user.Longitude),
		user.State,
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		if isUniqueEmailErr(err) {
			return apperror.Conflict("email", fmt.Sprintf("email %s is already registered", user.Email))
		}
		return fmt.Errorf("sqlite: updating user %s: %w", user.ID, err)
	}

	// RowsAffected is how we learn the ID didn't match anything — UPDATE on a
	// missing row is not an error at the SQL level.
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: reading rows affected for user %s: %w", user.ID, err)
	}
	if n == 0 {
		return apperror.NotFound("user", user.ID)
	}

	return nil
}

// UpsertByGitHubID inserts the user on first OAuth login, or refreshes their
// profile names on subsequent logins. The member's internal ID, email, and
// geographic fields are never rewritten by a re-login.
//
// Returns created=true when a new row was inserted so the caller knows
// whether to fire the account-creation jobs (Slack invite etc.) — those must
// run exactly once per account, not once per login.
func (db *DB) UpsertByGitHubID(ctx context.Context, user *model.User) (bool, error) {
	var existingID string
	err := db.conn.QueryRowContext(ctx,
		`SELECT id FROM users WHERE github_id = ?`, user.GitHubID,
	).Scan(&existingID)

	if err != nil && err != sql.ErrNoRows {
		return false, fmt.Errorf("sqlite: looking up user by github_id %d: %w", user.GitHubID, err)
	}

	if existingID != "" {
		// Existing account — refresh names in case they changed on GitHub,
		// then read the canonical row back so the caller gets the full record.
		_, err = db.conn.ExecContext(ctx,
			`UPDATE users SET first_name = ?, last_name = ?, updated_at = ? WHERE id = ?`,
			user.FirstName, user.LastName, time.Now().UTC(), existingID,
		)
		if err != nil {
			return false, fmt.Errorf("sqlite: refreshing user %s: %w", existingID, err)
		}

		stored, err := db.GetByID(ctx, existingID)
		if err != nil {
			return false, err
		}
		*user = *stored
		return false, nil
	}

	if err := db.Create(ctx, user); err != nil {
		return false, err
	}
	return true, nil
}

// CountByZips counts users whose zip is in the given list.
//
// DYNAMIC IN CLAUSES:
// database/sql has no native support for binding a slice to `IN (?)`, so we
// build the right number of placeholders by hand. Never interpolate the
// values themselves into the SQL string — that's how SQL injection happens.
func (db *DB) CountByZips(ctx context.Context, zips []string) (int, error) {
	if len(zips) == 0 {
		return 0, nil
	}
	placeholders, args := inArgs(zips)

	var count int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE zip IN (`+placeholders+`)`, args...,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("sqlite: counting users by zip: %w", err)
	}
	return count, nil
}

// CountByStates counts users whose derived state is in the given list.
// States are stored as uppercase two-letter abbreviations; the service layer
// normalizes the input before it reaches here.
func (db *DB) CountByStates(ctx context.Context, states []string) (int, error) {
	if len(states) == 0 {
		return 0, nil
	}
	placeholders, args := inArgs(states)

	var count int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE state IN (`+placeholders+`)`, args...,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("sqlite: counting users by state: %w", err)
	}
	return count, nil
}

// CoordinatesWithinBounds returns the coordinates of every geocoded user
// inside the bounding box. Users without coordinates never match — the
// IS NOT NULL guards also let SQLite use the (latitude, longitude) index.
func (db *DB) CoordinatesWithinBounds(ctx context.Context, b repository.Bounds) ([]repository.Coordinate, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT latitude, longitude FROM users
		 WHERE latitude IS NOT NULL AND longitude IS NOT NULL
		   AND latitude  BETWEEN ? AND ?
		   AND longitude BETWEEN ? AND ?`,
		b.MinLat, b.MaxLat, b.MinLng, b.MaxLng,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: querying coordinates: %w", err)
	}
	defer rows.Close()

	var coords []repository.Coordinate
	for rows.Next() {
		var c repository.Coordinate
		if err := rows.Scan(&c.Latitude, &c.Longitude); err != nil {
			return nil, fmt.Errorf("sqlite: scanning coordinate: %w", err)
		}
		coords = append(coords, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating coordinates: %w", err)
	}

	return coords, nil
}

// inArgs builds "?, ?, ?" and the matching args slice for an IN clause.
func inArgs(values []string) (string, []any) {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", "), args
}
