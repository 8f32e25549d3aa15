// Package lightspeed implements the HTTP side of the Lightspeed OAuth2
// backend: building the authorization URL, exchanging authorization codes
// for tokens, refreshing access tokens, and fetching logged-in user
// entitlements.
package lightspeed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// OAuth configuration constants for the Lightspeed service.
const (
	// ClientID identifies this application to the Lightspeed OAuth server.
	ClientID = "Vu2gClkeR5qUJTUGHoFAePmBznd6RZjDdy5FW2wy"

	// AuthorizePath is the authorization endpoint path under the service base URL.
	AuthorizePath = "/o/authorize/"

	// TokenPath is the token endpoint path under the service base URL.
	TokenPath = "/o/token/"

	// UserInfoPath is the logged-in user info endpoint path.
	UserInfoPath = "/api/v0/me/"
)

// tokenResponse represents the response structure from the Lightspeed token endpoint.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// TokenSet is the outcome of a successful code exchange or refresh.
type TokenSet struct {
	// AccessToken is the bearer token for API calls.
	AccessToken string
	// RefreshToken obtains the next access token. May be empty when the
	// server does not rotate refresh tokens.
	RefreshToken string
	// ExpiresAtEpochSeconds is the issue time plus expires_in as reported
	// by the token endpoint.
	ExpiresAtEpochSeconds int64
}

// StatusError reports a non-2xx response from the Lightspeed service.
// The response body is deliberately not carried: token endpoint bodies may
// contain secrets and must not leak into error chains.
type StatusError struct {
	// Op names the failed operation.
	Op string
	// StatusCode is the HTTP status returned by the service.
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("lightspeed: %s failed with status %d", e.Op, e.StatusCode)
}

// Service performs OAuth and user-info requests against one Lightspeed
// deployment.
type Service struct {
	baseURL    string
	clientID   string
	httpClient *http.Client

	// now is the clock used for expiry arithmetic; replaced in tests.
	now func() time.Time
}

// NewService creates a Lightspeed HTTP service for the given base URL.
// The caller is responsible for validating that baseURL is non-empty; an
// empty base URL is a configuration error surfaced before any request.
func NewService(baseURL string, httpClient *http.Client) *Service {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Service{
		baseURL:    strings.TrimRight(baseURL, "/"),
		clientID:   ClientID,
		httpClient: httpClient,
		now:        time.Now,
	}
}

// BaseURL returns the configured service base URL.
func (s *Service) BaseURL() string {
	return s.baseURL
}

// AuthorizationURL builds the browser URL for the PKCE authorization
// request.
//
// Parameters:
//   - challenge: The S256 code challenge derived from the process verifier
//   - redirectURI: The externally reachable redirect URI
//
// Returns:
//   - string: The complete authorization URL
func (s *Service) AuthorizationURL(challenge, redirectURI string) string {
	params := url.Values{
		"response_type":         {"code"},
		"code_challenge":        {challenge},
		"code_challenge_method": {"S256"},
		"client_id":             {s.clientID},
		"redirect_uri":          {redirectURI},
	}
	return fmt.Sprintf("%s%s?%s", s.baseURL, AuthorizePath, params.Encode())
}

// ExchangeCode exchanges an authorization code for access and refresh
// tokens. The verifier must be the one whose challenge was sent in the
// authorization request; that binding is the security property PKCE
// provides.
func (s *Service) ExchangeCode(ctx context.Context, code, verifier, redirectURI string) (*TokenSet, error) {
	data := url.Values{
		"client_id":     {s.clientID},
		"code":          {code},
		"code_verifier": {verifier},
		"redirect_uri":  {redirectURI},
		"grant_type":    {"authorization_code"},
	}

	log.Debug("Sending request for access token")
	return s.postTokenForm(ctx, "code exchange", data)
}

// RefreshToken exchanges a refresh token for a new access token.
func (s *Service) RefreshToken(ctx context.Context, refreshToken string) (*TokenSet, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("lightspeed: refresh token is required")
	}

	data := url.Values{
		"client_id":     {s.clientID},
		"refresh_token": {refreshToken},
		"grant_type":    {"refresh_token"},
	}

	log.Debug("Sending request for a new access token")
	return s.postTokenForm(ctx, "token refresh", data)
}

// postTokenForm performs a form-encoded POST to the token endpoint and
// parses the token response.
func (s *Service) postTokenForm(ctx context.Context, op string, data url.Values) (*TokenSet, error) {
	endpoint := s.baseURL + TokenPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("lightspeed: failed to create %s request: %w", op, err)
	}
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("lightspeed: %s request failed: %w", op, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("lightspeed: failed to read %s response: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Op: op, StatusCode: resp.StatusCode}
	}

	var tokenResp tokenResponse
	if err = json.Unmarshal(body, &tokenResp); err != nil {
		return nil, fmt.Errorf("lightspeed: failed to parse %s response: %w", op, err)
	}
	if tokenResp.AccessToken == "" {
		return nil, fmt.Errorf("lightspeed: %s response carried no access token", op)
	}

	return &TokenSet{
		AccessToken:           tokenResp.AccessToken,
		RefreshToken:          tokenResp.RefreshToken,
		ExpiresAtEpochSeconds: s.now().Unix() + tokenResp.ExpiresIn,
	}, nil
}
