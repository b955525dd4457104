// Authentication business rules. There are two ways into an account: an
// email/password pair (Login — the account must already exist via
// UserService.Register) and GitHub OAuth (LoginOrRegisterGitHub — creates
// the account on first login). Because OAuth can create accounts, that path
// fires the signup jobs too, but only when the upsert actually inserted a
// row: a returning OAuth member must not get a second Slack invite.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/memberhub/internal/apperror"
	"github.com/sakif/memberhub/internal/auth"
	"github.com/sakif/memberhub/internal/jobs"
	"github.com/sakif/memberhub/internal/model"
	"github.com/sakif/memberhub/internal/repository"
)

// AuthService sits between the HTTP handlers and the repository/token/
// password utilities and owns every authentication decision.
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	publisher jobs.Publisher
	logger    *slog.Logger
}

// NewAuthService wires an AuthService; the server assembles the dependency
// graph and passes everything in.
func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	publisher jobs.Publisher,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		publisher: publisher,
		logger:    logger,
	}
}

// AuthResult is returned by authentication operations.
// It bundles the user record and the issued JWT together so the caller
// (the HTTP handler) can set the cookie and respond in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

// Login authenticates an email/password pair and issues a JWT.
//
// DELIBERATELY VAGUE ERRORS:
// Whether the email doesn't exist, the password is wrong, or the account is
// OAuth-only, the caller sees the same "invalid email or password". Anything
// more specific is an account-enumeration oracle — an attacker could probe
// which emails are registered.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		// NotFound or a real DB error — either way, don't authenticate.
		return nil, apperror.Unauthorized("invalid email or password")
	}

	// OAuth-only accounts have no password hash; bcrypt would reject the
	// empty hash anyway, but checking explicitly documents the case.
	if user.PasswordHash == "" {
		return nil, apperror.Unauthorized("invalid email or password")
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		s.logger.Info("failed login attempt", slog.String("email", email))
		return nil, apperror.Unauthorized("invalid email or password")
	}

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}

	s.logger.Info("user logged in", slog.String("userID", user.ID))

	return &AuthResult{User: user, Token: token}, nil
}

// LoginOrRegisterGitHub handles the GitHub OAuth callback.
//
// After the handler exchanges the GitHub code for a profile, this method:
//
//  1. Upserts the user by GitHub ID (insert on first login, refresh names on
//     subsequent logins)
//  2. Fires the signup jobs — but ONLY if step 1 created a new account
//  3. Issues a JWT access token
//
// GitHub users can hide their email. We require one: without an email there
// is no Slack invite, no SendGrid contact, and no canonical identity, so the
// login is rejected with a validation error the handler can show.
func (s *AuthService) LoginOrRegisterGitHub(ctx context.Context, ghUser *auth.GitHubUser) (*AuthResult, error) {
	if ghUser == nil {
		return nil, fmt.Errorf("service/auth: GitHub user must not be nil")
	}

	email, err := normalizeEmail(ghUser.Email)
	if err != nil {
		return nil, apperror.ValidationFailed("email",
			"your GitHub account has no public email; add one or register with a password")
	}

	firstName, lastName := splitFullName(ghUser.Name)
	if firstName == "" {
		firstName = ghUser.Login
	}

	user := &model.User{
		GitHubID:  ghUser.ID,
		Email:     email,
		FirstName: firstName,
		LastName:  lastName,
	}

	created, err := s.users.UpsertByGitHubID(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("service/auth: upserting user (githubID=%d): %w", ghUser.ID, err)
	}

	s.logger.Info("user authenticated via GitHub",
		slog.String("userID", user.ID),
		slog.Bool("created", created),
	)

	if created {
		jobs.EnqueueSignupJobs(ctx, s.publisher, user, s.logger)
	}

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}

	return &AuthResult{User: user, Token: token}, nil
}

// GetUserByID returns the user for the given internal ID.
//
// Used by the /api/me handler to look up the full user record after the
// middleware validates the JWT and extracts the userID from the token's
// Subject claim.
func (s *AuthService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, fmt.Errorf("service/auth: user ID must not be empty")
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching user %s: %w", id, err)
	}

	return user, nil
}

// ValidateToken validates a JWT string and returns the userID it encodes.
//
// This is a thin delegation to TokenService.Validate. Having it on
// AuthService means callers only need to import the service package, not
// the auth package directly.
func (s *AuthService) ValidateToken(tokenStr string) (string, error) {
	userID, err := s.tokens.Validate(tokenStr)
	if err != nil {
		return "", fmt.Errorf("service/auth: %w", err)
	}
	return userID, nil
}

// splitFullName splits "Ada Lovelace" into ("Ada", "Lovelace"). Everything
// after the first space goes into the last name; a single word is all first
// name. Names are messy — this is a best-effort default the member can fix
// on their profile.
func splitFullName(full string) (first, last string) {
	full = strings.TrimSpace(full)
	if full == "" {
		return "", ""
	}
	parts := strings.SplitN(full, " ", 2)
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], strings.TrimSpace(parts[1])
}
