package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/sakif/memberhub/internal/apperror"
	"github.com/sakif/memberhub/internal/auth"
)

// The fakes (fakeRepo, recordingPublisher) live in user_test.go — both test
// files are in package service and share them.

// newTestAuthService returns an AuthService wired with fake dependencies.
// The TokenService uses a short secret, suitable for tests only.
func newTestAuthService(t *testing.T, repo *fakeRepo, pub *recordingPublisher) *AuthService {
	t.Helper()

	ts, err := auth.NewTokenService("test-secret-at-least-16-chars!!")
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}

	// Cost 4 is bcrypt minimum — makes tests fast
	ps := auth.NewPasswordServiceForTest(4)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewAuthService(repo, ts, ps, pub, logger)
}

// registerPasswordAccount seeds the fake repo with a password account and
// clears the recorded jobs, so login tests start from a clean slate.
func registerPasswordAccount(t *testing.T, repo *fakeRepo, pub *recordingPublisher, email, password string) {
	t.Helper()
	userSvc := newTestUserService(repo, nycGeocoder(), pub)
	if _, err := userSvc.Register(context.Background(), RegisterParams{
		Email:    email,
		Password: password,
	}); err != nil {
		t.Fatalf("setup Register() error = %v", err)
	}
	pub.published = nil
}

// =========================================================================
// Login TESTS
// =========================================================================

func TestLogin(t *testing.T) {
	repo := newFakeRepo()
	pub := &recordingPublisher{}
	registerPasswordAccount(t, repo, pub, "ada@example.com", "correct-horse")
	svc := newTestAuthService(t, repo, pub)

	result, err := svc.Login(context.Background(), "ada@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if result.Token == "" {
		t.Error("Login() returned empty token")
	}
	if result.User.Email != "ada@example.com" {
		t.Errorf("User.Email = %q, want %q", result.User.Email, "ada@example.com")
	}
}

func TestLogin_NormalizesEmail(t *testing.T) {
	repo := newFakeRepo()
	pub := &recordingPublisher{}
	registerPasswordAccount(t, repo, pub, "ada@example.com", "correct-horse")
	svc := newTestAuthService(t, repo, pub)

	// Login with different casing than registration
	if _, err := svc.Login(context.Background(), " ADA@Example.com ", "correct-horse"); err != nil {
		t.Errorf("Login() with differently-cased email error = %v", err)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	repo := newFakeRepo()
	pub := &recordingPublisher{}
	registerPasswordAccount(t, repo, pub, "ada@example.com", "correct-horse")
	svc := newTestAuthService(t, repo, pub)

	_, err := svc.Login(context.Background(), "ada@example.com", "wrong-password")
	if !errors.Is(err, apperror.ErrUnauthorized) {
		t.Errorf("Login() error = %v, want ErrUnauthorized", err)
	}
}

func TestLogin_UnknownEmail(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestAuthService(t, repo, &recordingPublisher{})

	_, err := svc.Login(context.Background(), "nobody@example.com", "whatever-pw")
	if !errors.Is(err, apperror.ErrUnauthorized) {
		t.Errorf("Login() error = %v, want ErrUnauthorized", err)
	}
}

func TestLogin_SameErrorForUnknownEmailAndWrongPassword(t *testing.T) {
	// Account enumeration resistance: both failures must be indistinguishable.
	repo := newFakeRepo()
	pub := &recordingPublisher{}
	registerPasswordAccount(t, repo, pub, "ada@example.com", "correct-horse")
	svc := newTestAuthService(t, repo, pub)

	_, errWrongPw := svc.Login(context.Background(), "ada@example.com", "wrong-password")
	_, errNoUser := svc.Login(context.Background(), "nobody@example.com", "wrong-password")

	if errWrongPw == nil || errNoUser == nil {
		t.Fatal("both logins should fail")
	}
	if errWrongPw.Error() != errNoUser.Error() {
		t.Errorf("error messages differ: %q vs %q — that's an enumeration oracle",
			errWrongPw.Error(), errNoUser.Error())
	}
}

func TestLogin_OAuthOnlyAccount(t *testing.T) {
	repo := newFakeRepo()
	pub := &recordingPublisher{}
	svc := newTestAuthService(t, repo, pub)

	// Create an account via GitHub — it has no password hash
	_, err := svc.LoginOrRegisterGitHub(context.Background(), &auth.GitHubUser{
		ID: 42, Login: "octocat", Email: "octocat@example.com",
	})
	if err != nil {
		t.Fatalf("setup LoginOrRegisterGitHub() error = %v", err)
	}

	_, err = svc.Login(context.Background(), "octocat@example.com", "any-password")
	if !errors.Is(err, apperror.ErrUnauthorized) {
		t.Errorf("Login() on OAuth-only account error = %v, want ErrUnauthorized", err)
	}
}

// =========================================================================
// LoginOrRegisterGitHub TESTS
// =========================================================================

func TestLoginOrRegisterGitHub_NewUser(t *testing.T) {
	repo := newFakeRepo()
	pub := &recordingPublisher{}
	svc := newTestAuthService(t, repo, pub)

	result, err := svc.LoginOrRegisterGitHub(context.Background(), &auth.GitHubUser{
		ID:    42,
		Login: "octocat",
		Email: "Octocat@GitHub.com",
		Name:  "Octo Cat",
	})
	if err != nil {
		t.Fatalf("LoginOrRegisterGitHub() error = %v", err)
	}

	if result.User.ID == "" {
		t.Error("User.ID should be set after upsert")
	}
	if result.Token == "" {
		t.Fatal("LoginOrRegisterGitHub() returned empty Token")
	}
	if result.User.Email != "octocat@github.com" {
		t.Errorf("Email = %q, want normalized %q", result.User.Email, "octocat@github.com")
	}
	if result.User.FirstName != "Octo" || result.User.LastName != "Cat" {
		t.Errorf("name = (%q, %q), want (Octo, Cat)", result.User.FirstName, result.User.LastName)
	}

	// First OAuth login creates the account — the signup jobs must fire
	if len(pub.published) != 3 {
		t.Errorf("published %d jobs, want 3 on account creation", len(pub.published))
	}
}

func TestLoginOrRegisterGitHub_ReturningUserFiresNoJobs(t *testing.T) {
	repo := newFakeRepo()
	pub := &recordingPublisher{}
	svc := newTestAuthService(t, repo, pub)

	ghUser := &auth.GitHubUser{ID: 99, Login: "regular", Email: "regular@example.com"}
	if _, err := svc.LoginOrRegisterGitHub(context.Background(), ghUser); err != nil {
		t.Fatalf("first login error: %v", err)
	}
	pub.published = nil

	result, err := svc.LoginOrRegisterGitHub(context.Background(), ghUser)
	if err != nil {
		t.Fatalf("second login error: %v", err)
	}
	if result.Token == "" {
		t.Error("returning user should still get a token")
	}
	// Exactly once per ACCOUNT, not once per login
	if len(pub.published) != 0 {
		t.Errorf("second login published %d jobs, want 0", len(pub.published))
	}
}

func TestLoginOrRegisterGitHub_NoLastName(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestAuthService(t, repo, &recordingPublisher{})

	result, err := svc.LoginOrRegisterGitHub(context.Background(), &auth.GitHubUser{
		ID: 7, Login: "mononym", Email: "mono@example.com", Name: "Prince",
	})
	if err != nil {
		t.Fatalf("LoginOrRegisterGitHub() error = %v", err)
	}
	if result.User.FirstName != "Prince" || result.User.LastName != "" {
		t.Errorf("name = (%q, %q), want (Prince, \"\")", result.User.FirstName, result.User.LastName)
	}
}

func TestLoginOrRegisterGitHub_FallsBackToLogin(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestAuthService(t, repo, &recordingPublisher{})

	// GitHub profiles often have no display name at all
	result, err := svc.LoginOrRegisterGitHub(context.Background(), &auth.GitHubUser{
		ID: 8, Login: "octocat", Email: "o@example.com",
	})
	if err != nil {
		t.Fatalf("LoginOrRegisterGitHub() error = %v", err)
	}
	if result.User.FirstName != "octocat" {
		t.Errorf("FirstName = %q, want the login as fallback", result.User.FirstName)
	}
}

func TestLoginOrRegisterGitHub_MissingEmail(t *testing.T) {
	repo := newFakeRepo()
	pub := &recordingPublisher{}
	svc := newTestAuthService(t, repo, pub)

	_, err := svc.LoginOrRegisterGitHub(context.Background(), &auth.GitHubUser{
		ID: 13, Login: "private-email",
	})
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("LoginOrRegisterGitHub() error = %v, want ErrValidation", err)
	}
	if len(pub.published) != 0 {
		t.Error("rejected login must not publish jobs")
	}
}

func TestLoginOrRegisterGitHub_NilGitHubUser(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestAuthService(t, repo, &recordingPublisher{})

	_, err := svc.LoginOrRegisterGitHub(context.Background(), nil)
	if err == nil {
		t.Fatal("LoginOrRegisterGitHub() should return error for nil GitHubUser")
	}
}

// =========================================================================
// Token and lookup TESTS
// =========================================================================

func TestValidateToken_RoundTrip(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestAuthService(t, repo, &recordingPublisher{})

	result, err := svc.LoginOrRegisterGitHub(context.Background(), &auth.GitHubUser{
		ID: 5, Login: "tok", Email: "tok@example.com",
	})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}

	userID, err := svc.ValidateToken(result.Token)
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}
	if userID != result.User.ID {
		t.Errorf("token subject = %q, want %q", userID, result.User.ID)
	}
}

func TestValidateToken_InvalidToken(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestAuthService(t, repo, &recordingPublisher{})

	_, err := svc.ValidateToken("this.is.garbage")
	if err == nil {
		t.Fatal("ValidateToken() should return error for garbage token")
	}
}

func TestGetUserByID_EmptyID(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestAuthService(t, repo, &recordingPublisher{})

	_, err := svc.GetUserByID(context.Background(), "")
	if err == nil {
		t.Fatal("GetUserByID() should return error for empty ID")
	}
}

func TestGetUserByID_NotFound(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestAuthService(t, repo, &recordingPublisher{})

	_, err := svc.GetUserByID(context.Background(), "non-existent-id")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetUserByID() error = %v, want ErrNotFound", err)
	}
}

// =========================================================================
// splitFullName TESTS
// =========================================================================

func TestSplitFullName(t *testing.T) {
	tests := []struct {
		full  string
		first string
		last  string
	}{
		{"Ada Lovelace", "Ada", "Lovelace"},
		{"Prince", "Prince", ""},
		{"", "", ""},
		{"  padded  name  ", "padded", "name"},
		{"Gabriel García Márquez", "Gabriel", "García Márquez"},
	}

	for _, tt := range tests {
		first, last := splitFullName(tt.full)
		if first != tt.first || last != tt.last {
			t.Errorf("splitFullName(%q) = (%q, %q), want (%q, %q)",
				tt.full, first, last, tt.first, tt.last)
		}
	}
}
