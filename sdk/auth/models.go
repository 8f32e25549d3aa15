// Package auth implements the OAuth2/PKCE authentication and token
// lifecycle subsystem for the Lightspeed service: login coordination,
// credential persistence, token refresh with a grace window, identity
// backend selection, and session change notifications.
package auth

import "strings"

// ProviderType identifies one of the two supported identity backends.
type ProviderType string

const (
	// ProviderLightspeed is the vendor OAuth service built into Lightspeed.
	ProviderLightspeed ProviderType = "lightspeed"

	// ProviderRHSSO is the organization single-sign-on service.
	ProviderRHSSO ProviderType = "rhsso"
)

// ProviderConfig is the closed set of backend configurations. Each
// implementation carries the endpoints and client identity of one backend
// so that backend-specific behavior is handled exhaustively at the type
// switch rather than by string dispatch.
type ProviderConfig interface {
	// Provider returns the backend identifier.
	Provider() ProviderType
}

// LightspeedConfig configures the vendor OAuth backend. BaseURL empty is a
// fatal configuration error surfaced when a login is attempted.
type LightspeedConfig struct {
	BaseURL string
}

// Provider returns ProviderLightspeed.
func (LightspeedConfig) Provider() ProviderType { return ProviderLightspeed }

// RHSSOConfig configures the organization SSO backend.
type RHSSOConfig struct {
	AuthURL  string
	TokenURL string
	ClientID string
}

// Provider returns ProviderRHSSO.
func (RHSSOConfig) Provider() ProviderType { return ProviderRHSSO }

// OAuthAccount is the persisted credential: the token pair plus the
// absolute expiry reported by the token endpoint. Exactly one account
// exists at a time; creating a new one overwrites the previous.
type OAuthAccount struct {
	AccessToken           string `json:"accessToken"`
	RefreshToken          string `json:"refreshToken"`
	ExpiresAtEpochSeconds int64  `json:"expiresAtTimestampInSeconds"`
}

// SessionAccount is the UI-facing identity attached to a session.
type SessionAccount struct {
	Label string `json:"label"`
	ID    string `json:"id"`
}

// Session is the denormalized, UI-facing projection of an OAuthAccount
// plus entitlement flags fetched from the user info endpoint. At most one
// session exists at a time.
type Session struct {
	ID                   string         `json:"id"`
	AccessToken          string         `json:"accessToken"`
	Account              SessionAccount `json:"account"`
	Scopes               []string       `json:"scopes"`
	RHUserHasSeat        bool           `json:"rhUserHasSeat"`
	RHOrgHasSubscription bool           `json:"rhOrgHasSubscription"`
	RHUserIsOrgAdmin     bool           `json:"rhUserIsOrgAdmin"`
}

// UserDetails is derived state fetched fresh from the user info endpoint.
// It is cached in memory only and invalidated on session change.
type UserDetails struct {
	DisplayName             string
	DisplayNameWithUserType string
	RHUserHasSeat           bool
	RHOrgHasSubscription    bool
	RHUserIsOrgAdmin        bool
	OrgOptOutTelemetry      bool
}

// HostKind describes the execution context the subsystem runs in. It
// drives the backend selection heuristic: remote hosts may produce
// redirect URIs the vendor backend cannot call back.
type HostKind string

const (
	// HostLocal is a local desktop host.
	HostLocal HostKind = "Local"

	// HostRemote is a remote container or SSH host.
	HostRemote HostKind = "Remote"

	// HostWebWorker is a sandboxed browser worker host.
	HostWebWorker HostKind = "WebWorker"
)

// UserTypeLabel maps entitlement flags to the user-facing license label.
func UserTypeLabel(orgHasSubscription, userHasSeat bool) string {
	if orgHasSubscription && userHasSeat {
		return "Licensed"
	}
	return "Unlicensed"
}

// SessionLabel builds the display label shown for a session, e.g.
// "jdoe (licensed)".
func SessionLabel(displayName string, orgHasSubscription, userHasSeat bool) string {
	return displayName + " (" + strings.ToLower(UserTypeLabel(orgHasSubscription, userHasSeat)) + ")"
}
