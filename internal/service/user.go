// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
// In a well-structured Go web app, code is organised into three layers:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces rules, orchestrates
//	Repository (Data layer)  → reads/writes to the database
//
// The service layer is where the membership rules live: email normalization
// and format validation, when a zip gets geocoded, which jobs fire on
// signup, how the aggregate count filters are parsed. None of it knows about
// HTTP or SQL.
//
// DEPENDENCY INJECTION:
// UserService takes interfaces (repository.UserRepository, geocode.Geocoder,
// jobs.Publisher), not concrete types. Tests inject in-memory fakes; main
// injects SQLite, the Zippopotam client, and RabbitMQ. The service can't
// tell the difference — that's the point.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/sakif/memberhub/internal/apperror"
	"github.com/sakif/memberhub/internal/auth"
	"github.com/sakif/memberhub/internal/geocode"
	"github.com/sakif/memberhub/internal/jobs"
	"github.com/sakif/memberhub/internal/model"
	"github.com/sakif/memberhub/internal/repository"
)

const (
	// MinPasswordLength is deliberately modest — length requirements beyond
	// this mostly push people toward password reuse. bcrypt's own 72-byte
	// ceiling is enforced by the auth package.
	MinPasswordLength = 8

	// DefaultNearRadiusMiles is used when a proximity count doesn't specify
	// a radius.
	DefaultNearRadiusMiles = 20.0
)

// emailRegexp validates an already-lowercased email address.
//
// INTENTIONALLY NOT RFC 5322:
// The full RFC grammar admits addresses no mail provider actually issues
// (quoted local parts, address literals). This pattern accepts the practical
// shape — word chars plus ._%+- in the local part, dotted domain labels, a
// letter TLD — and rejects the typos we actually see (missing @, no TLD,
// spaces). Deliverability is ultimately proven by email, not by regex.
var emailRegexp = regexp.MustCompile(`^[a-z0-9][a-z0-9._%+-]*@[a-z0-9-]+(\.[a-z0-9-]+)*\.[a-z]{2,}$`)

// UserService handles member accounts: registration, profile updates, and
// the aggregate count queries.
type UserService struct {
	repo      repository.UserRepository
	geocoder  geocode.Geocoder
	publisher jobs.Publisher
	passwords *auth.PasswordService
	logger    *slog.Logger
}

// NewUserService creates a UserService. The caller decides which
// implementations to inject (see the package doc).
func NewUserService(
	repo repository.UserRepository,
	geocoder geocode.Geocoder,
	publisher jobs.Publisher,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *UserService {
	return &UserService{
		repo:      repo,
		geocoder:  geocoder,
		publisher: publisher,
		passwords: passwords,
		logger:    logger,
	}
}

// RegisterParams are the fields a new member provides.
type RegisterParams struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Zip       string
}

// Register creates a member account.
//
// ORDER OF OPERATIONS:
//  1. Normalize + validate the email, validate the password
//  2. Geocode the zip (if present) — synchronously, before the insert, so
//     the row is born with consistent coordinates
//  3. Insert (the UNIQUE index catches duplicate emails)
//  4. Enqueue the three signup jobs — only after the insert succeeded, so a
//     failed signup never produces a Slack invite
//
// A zip that fails to geocode does NOT fail registration: the member is
// saved without coordinates and the lookup failure is logged. Unknown zips
// and provider outages are both facts of life, not validation errors.
func (s *UserService) Register(ctx context.Context, params RegisterParams) (*model.User, error) {
	email, err := normalizeEmail(params.Email)
	if err != nil {
		return nil, err
	}

	if len(params.Password) < MinPasswordLength {
		return nil, apperror.ValidationFailed("password",
			fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}
	hash, err := s.passwords.Hash(params.Password)
	if err != nil {
		return nil, apperror.ValidationFailed("password", err.Error())
	}

	user := &model.User{
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(params.FirstName),
		LastName:     strings.TrimSpace(params.LastName),
		Zip:          strings.TrimSpace(params.Zip),
	}

	if user.Zip != "" {
		s.applyGeocode(ctx, user)
	}

	if err := s.repo.Create(ctx, user); err != nil {
		// Conflict (duplicate email) and any DB failure both land here; the
		// apperror sentinel survives the %w wrap for the handler to map.
		return nil, fmt.Errorf("registering user: %w", err)
	}

	s.logger.Info("user registered",
		slog.String("userID", user.ID),
		slog.String("email", user.Email),
		slog.Bool("geocoded", user.Geocoded()),
	)

	jobs.EnqueueSignupJobs(ctx, s.publisher, user, s.logger)

	return user, nil
}

// UpdateParams are the optional profile changes. nil means "don't change";
// a pointer to the empty string means "clear it" (relevant for Zip).
type UpdateParams struct {
	Email     *string
	Password  *string
	FirstName *string
	LastName  *string
	Zip       *string
}

// Update modifies an existing member.
//
// STRATEGY: "Fetch then update" — load the stored row, apply the changes,
// write it back. Fetching first is what makes the zip dirty-check possible:
// we geocode ONLY when the zip value actually changed, not on every save.
// Saving an unrelated field (a name fix) must not burn a geocoding call.
//
// Clearing the zip clears the derived fields too; a failed lookup on the new
// zip also clears them. Either way the invariant holds: coordinates always
// correspond to the currently stored zip, or are unset.
func (s *UserService) Update(ctx context.Context, id string, params UpdateParams) (*model.User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "user ID is required")
	}

	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if params.Email != nil {
		email, err := normalizeEmail(*params.Email)
		if err != nil {
			return nil, err
		}
		user.Email = email
	}

	if params.Password != nil {
		if len(*params.Password) < MinPasswordLength {
			return nil, apperror.ValidationFailed("password",
				fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
		}
		hash, err := s.passwords.Hash(*params.Password)
		if err != nil {
			return nil, apperror.ValidationFailed("password", err.Error())
		}
		user.PasswordHash = hash
	}

	if params.FirstName != nil {
		user.FirstName = strings.TrimSpace(*params.FirstName)
	}
	if params.LastName != nil {
		user.LastName = strings.TrimSpace(*params.LastName)
	}

	if params.Zip != nil {
		newZip := strings.TrimSpace(*params.Zip)
		if newZip != user.Zip {
			user.Zip = newZip
			user.Latitude = nil
			user.Longitude = nil
			user.State = ""
			if newZip != "" {
				s.applyGeocode(ctx, user)
			}
		}
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("updating user %s: %w", id, err)
	}

	s.logger.Info("user updated", slog.String("userID", user.ID))

	return user, nil
}

// GetByID retrieves a member by internal ID.
func (s *UserService) GetByID(ctx context.Context, id string) (*model.User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "user ID is required")
	}
	return s.repo.GetByID(ctx, id)
}

// CountByZipCodes counts members in a comma-separated list of zips, e.g.
// "10001, 10002,94105". Whitespace around entries is tolerated; a blank
// input counts nobody.
func (s *UserService) CountByZipCodes(ctx context.Context, zipList string) (int, error) {
	zips := splitCSV(zipList)
	if len(zips) == 0 {
		return 0, nil
	}

	count, err := s.repo.CountByZips(ctx, zips)
	if err != nil {
		return 0, fmt.Errorf("counting users by zip: %w", err)
	}
	return count, nil
}

// CountByStates counts members in a comma-separated list of two-letter state
// abbreviations, case-insensitively: "ny, NJ" and "NY,NJ" are equivalent.
func (s *UserService) CountByStates(ctx context.Context, stateList string) (int, error) {
	states := splitCSV(stateList)
	if len(states) == 0 {
		return 0, nil
	}
	for i, st := range states {
		states[i] = strings.ToUpper(st)
	}

	count, err := s.repo.CountByStates(ctx, states)
	if err != nil {
		return 0, fmt.Errorf("counting users by state: %w", err)
	}
	return count, nil
}

// CountNear counts geocoded members within radiusMiles of the coordinate.
// A non-positive radius falls back to DefaultNearRadiusMiles. Members
// without coordinates never match.
//
// TWO-PHASE FILTER:
// The repository does a cheap bounding-box cut in SQL (index-friendly, no
// trigonometry), then we apply the exact haversine distance here. The box is
// strictly larger than the circle, so this never loses a match — it only
// discards the corner cases the box let through.
func (s *UserService) CountNear(ctx context.Context, lat, lng, radiusMiles float64) (int, error) {
	if lat < -90 || lat > 90 {
		return 0, apperror.ValidationFailed("latitude", "latitude must be between -90 and 90")
	}
	if lng < -180 || lng > 180 {
		return 0, apperror.ValidationFailed("longitude", "longitude must be between -180 and 180")
	}
	if radiusMiles <= 0 {
		radiusMiles = DefaultNearRadiusMiles
	}

	minLat, maxLat, minLng, maxLng := geocode.BoundingBox(lat, lng, radiusMiles)
	coords, err := s.repo.CoordinatesWithinBounds(ctx, repository.Bounds{
		MinLat: minLat, MaxLat: maxLat,
		MinLng: minLng, MaxLng: maxLng,
	})
	if err != nil {
		return 0, fmt.Errorf("counting users near (%f, %f): %w", lat, lng, err)
	}

	count := 0
	for _, c := range coords {
		if geocode.DistanceMiles(lat, lng, c.Latitude, c.Longitude) <= radiusMiles {
			count++
		}
	}
	return count, nil
}

// applyGeocode resolves user.Zip and fills in the derived fields.
// On any failure the fields stay unset and we log — geocoding is best
// effort, never a reason to block a save.
func (s *UserService) applyGeocode(ctx context.Context, user *model.User) {
	loc, err := s.geocoder.Lookup(ctx, user.Zip)
	if err != nil {
		if errors.Is(err, geocode.ErrZipNotFound) {
			s.logger.Info("zip not recognized", slog.String("zip", user.Zip))
		} else {
			s.logger.Warn("geocoding failed",
				slog.String("zip", user.Zip),
				slog.String("error", err.Error()),
			)
		}
		return
	}

	user.Latitude = &loc.Latitude
	user.Longitude = &loc.Longitude
	user.State = loc.State
}

// normalizeEmail trims, lowercases, and validates an email address.
// Normalizing BEFORE validating means "USER@Example.COM " is accepted and
// stored as "user@example.com" — and the UNIQUE index then enforces
// case-insensitive uniqueness for free.
func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", apperror.ValidationFailed("email", "email is required")
	}
	if !emailRegexp.MatchString(email) {
		return "", apperror.ValidationFailed("email", "invalid email format")
	}
	return email, nil
}

// splitCSV splits a comma-separated filter string, trimming whitespace and
// dropping empty entries ("a,,b" → ["a","b"]).
func splitCSV(list string) []string {
	var out []string
	for _, part := range strings.Split(list, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
