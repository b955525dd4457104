package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

// githubUserEndpoint is the authenticated-user profile API.
const githubUserEndpoint = "https://api.github.com/user"

// GitHubUser is the slice of GitHub's /user response this app consumes.
// GitHub returns dozens of fields; we decode four.
type GitHubUser struct {
	// ID is GitHub's numeric user ID. Logins can be renamed, IDs can't,
	// which is why the users table keys OAuth identities on github_id.
	ID    int64  `json:"id"`
	Login string `json:"login"`
	Email string `json:"email"` // empty when the member hides it in GitHub settings
	Name  string `json:"name"`  // display name, e.g. "Ada Lovelace" — often empty
}

// GitHubProvider drives the GitHub Authorization Code flow on top of
// golang.org/x/oauth2.
//
// THE FLOW, END TO END:
//  1. AuthURL sends the browser to GitHub with our client ID and scopes
//  2. The member approves (or denies) on GitHub's consent page
//  3. GitHub redirects back to our callback with a short-lived code
//  4. Exchange trades the code for an access token — a server-to-server
//     call carrying the client secret, so the token never touches the browser
//  5. Exchange then calls /user with the token and returns the profile
type GitHubProvider struct {
	config *oauth2.Config
}

// NewGitHubProvider creates a provider from OAuth App credentials
// (github.com → Settings → Developer settings → OAuth Apps).
// callbackURL must exactly match the app's registered callback.
//
// Scopes: read:user for the profile, user:email because the email is this
// app's canonical identity — without it we can't create the account.
func NewGitHubProvider(clientID, clientSecret, callbackURL string) *GitHubProvider {
	return &GitHubProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     github.Endpoint,
		},
	}
}

// AuthURL builds GitHub's authorization URL. The state value is the CSRF
// nonce the handler stored in a cookie; GitHub echoes it back on the
// callback, where the handler compares the two.
func (p *GitHubProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange completes the flow: authorization code in, GitHub profile out.
func (p *GitHubProvider) Exchange(ctx context.Context, code string) (*GitHubUser, error) {
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging OAuth code: %w", err)
	}

	// config.Client returns an http.Client that injects the bearer token
	// into every request it makes.
	resp, err := p.config.Client(ctx, token).Get(githubUserEndpoint)
	if err != nil {
		return nil, fmt.Errorf("auth: fetching GitHub profile: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth: GitHub profile request returned status %d", resp.StatusCode)
	}

	var ghUser GitHubUser
	if err := json.NewDecoder(resp.Body).Decode(&ghUser); err != nil {
		return nil, fmt.Errorf("auth: decoding GitHub profile: %w", err)
	}
	if ghUser.ID == 0 {
		return nil, fmt.Errorf("auth: GitHub profile has no user ID")
	}

	return &ghUser, nil
}
