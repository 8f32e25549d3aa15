package auth

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

// RefreshGraceSeconds is how many seconds before the recorded expiry a token
// already counts as expired. The margin absorbs clock skew and the latency
// of the request the token is about to be used for.
const RefreshGraceSeconds = 10

// RefreshFunc exchanges a refresh token for a new token set.
type RefreshFunc func(ctx context.Context, refreshToken string) (*OAuthAccount, error)

// TokenRefresher serves access tokens from the credential store, refreshing
// them against the backend shortly before they expire.
type TokenRefresher struct {
	store   *CredentialStore
	refresh RefreshFunc
	now     func() time.Time

	// onRefreshed runs after a refreshed token is fully persisted.
	onRefreshed func(accessToken string)
}

// NewTokenRefresher creates a refresher over the given store. refresh is
// invoked when the stored token is inside the expiry grace window.
func NewTokenRefresher(store *CredentialStore, refresh RefreshFunc) *TokenRefresher {
	return &TokenRefresher{
		store:   store,
		refresh: refresh,
		now:     time.Now,
	}
}

// OnRefreshed registers a callback invoked with the new access token after
// every successful refresh. The callback runs only once the store already
// holds the new token.
func (r *TokenRefresher) OnRefreshed(fn func(accessToken string)) {
	r.onRefreshed = fn
}

// EnsureFreshAccessToken returns an access token valid for at least the
// grace window. It performs no network traffic while the stored token is
// still fresh. A failed refresh surfaces as ErrReauthRequired with the
// backend error as cause; the stored credentials are left untouched so the
// caller decides how to degrade.
func (r *TokenRefresher) EnsureFreshAccessToken(ctx context.Context) (string, error) {
	account, present, err := r.store.Account()
	if err != nil {
		return "", err
	}
	if !present {
		return "", ErrNotAuthenticated
	}

	if r.now().Unix() < account.ExpiresAtEpochSeconds-RefreshGraceSeconds {
		return account.AccessToken, nil
	}

	log.WithField("status", "expiring").Debug("refreshing the access token")

	refreshed, err := r.refresh(ctx, account.RefreshToken)
	if err != nil {
		return "", NewAuthenticationError(ErrReauthRequired, err)
	}
	if refreshed.AccessToken == "" {
		return "", NewAuthenticationError(ErrReauthRequired, fmt.Errorf("refresh response carried no access token"))
	}
	// Servers may rotate the refresh token or omit it; keep the old one
	// when the response leaves it out.
	if refreshed.RefreshToken == "" {
		refreshed.RefreshToken = account.RefreshToken
	}

	if err := r.store.SetAccount(refreshed); err != nil {
		return "", err
	}
	if err := r.store.UpdateSessionAccessToken(refreshed.AccessToken); err != nil {
		return "", err
	}
	if r.onRefreshed != nil {
		r.onRefreshed(refreshed.AccessToken)
	}

	log.Info("access token refreshed")
	return refreshed.AccessToken, nil
}
