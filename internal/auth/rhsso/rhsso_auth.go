// Package rhsso implements the Red Hat SSO identity backend through the
// standard OAuth2 authorization code flow with PKCE. Unlike the Lightspeed
// backend it speaks a stock OpenID Connect server, so the exchange is
// delegated to golang.org/x/oauth2 instead of hand-built requests.
package rhsso

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// Scope requested from the SSO service for Lightspeed API access.
const lightspeedAPIScope = "api.lightspeed"

// TokenSet is the outcome of a successful code exchange or refresh.
type TokenSet struct {
	AccessToken           string
	RefreshToken          string
	ExpiresAtEpochSeconds int64
}

// Service performs OAuth requests against one SSO realm.
type Service struct {
	authURL    string
	tokenURL   string
	clientID   string
	httpClient *http.Client
}

// NewService creates an SSO service for the given realm endpoints.
func NewService(authURL, tokenURL, clientID string, httpClient *http.Client) *Service {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Service{
		authURL:    authURL,
		tokenURL:   tokenURL,
		clientID:   clientID,
		httpClient: httpClient,
	}
}

func (s *Service) config(redirectURI string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:    s.clientID,
		RedirectURL: redirectURI,
		Scopes:      []string{lightspeedAPIScope},
		Endpoint: oauth2.Endpoint{
			AuthURL:   s.authURL,
			TokenURL:  s.tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// withClient routes oauth2 traffic through the configured HTTP client so
// proxy settings apply to SSO exchanges as well.
func (s *Service) withClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
}

// AuthorizationURL builds the browser URL for the PKCE authorization
// request against the SSO realm.
func (s *Service) AuthorizationURL(state, verifier, redirectURI string) string {
	return s.config(redirectURI).AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
}

// ExchangeCode exchanges an authorization code for tokens using the PKCE
// verifier that produced the original challenge.
func (s *Service) ExchangeCode(ctx context.Context, code, verifier, redirectURI string) (*TokenSet, error) {
	token, err := s.config(redirectURI).Exchange(s.withClient(ctx), code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("rhsso: code exchange failed: %w", err)
	}
	return fromToken(token), nil
}

// RefreshToken exchanges a refresh token for a new access token.
func (s *Service) RefreshToken(ctx context.Context, refreshToken string) (*TokenSet, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("rhsso: refresh token is required")
	}
	source := s.config("").TokenSource(s.withClient(ctx), &oauth2.Token{RefreshToken: refreshToken})
	token, err := source.Token()
	if err != nil {
		return nil, fmt.Errorf("rhsso: token refresh failed: %w", err)
	}
	return fromToken(token), nil
}

func fromToken(token *oauth2.Token) *TokenSet {
	set := &TokenSet{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
	}
	if !token.Expiry.IsZero() {
		set.ExpiresAtEpochSeconds = token.Expiry.Unix()
	}
	return set
}
