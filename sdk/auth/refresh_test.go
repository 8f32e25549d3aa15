package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fixedClock(epoch int64) func() time.Time {
	return func() time.Time { return time.Unix(epoch, 0) }
}

func TestEnsureFreshAccessTokenWithoutAccount(t *testing.T) {
	refresher := NewTokenRefresher(NewCredentialStore(newMemorySecrets()), nil)

	if _, err := refresher.EnsureFreshAccessToken(context.Background()); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("err = %v, want ErrNotAuthenticated", err)
	}
}

func TestEnsureFreshAccessTokenStillFresh(t *testing.T) {
	store := NewCredentialStore(newMemorySecrets())
	must(t, store.SetAccount(&OAuthAccount{
		AccessToken:           "fresh",
		RefreshToken:          "rt",
		ExpiresAtEpochSeconds: 1000,
	}))

	refreshCalls := 0
	refresher := NewTokenRefresher(store, func(context.Context, string) (*OAuthAccount, error) {
		refreshCalls++
		return nil, errors.New("should not be called")
	})
	// 11 seconds of validity left, one past the grace window.
	refresher.now = fixedClock(989)

	token, err := refresher.EnsureFreshAccessToken(context.Background())
	if err != nil {
		t.Fatalf("EnsureFreshAccessToken: %v", err)
	}
	if token != "fresh" {
		t.Fatalf("token = %q, want fresh", token)
	}
	if refreshCalls != 0 {
		t.Fatal("no refresh expected while the token is fresh")
	}
}

func TestEnsureFreshAccessTokenInsideGraceWindow(t *testing.T) {
	store := NewCredentialStore(newMemorySecrets())
	must(t, store.SetAccount(&OAuthAccount{
		AccessToken:           "stale",
		RefreshToken:          "rt-old",
		ExpiresAtEpochSeconds: 1000,
	}))
	must(t, store.SetSession(&Session{ID: "sess", AccessToken: "stale"}))

	var gotRefreshToken string
	refresher := NewTokenRefresher(store, func(_ context.Context, refreshToken string) (*OAuthAccount, error) {
		gotRefreshToken = refreshToken
		return &OAuthAccount{
			AccessToken:           "renewed",
			RefreshToken:          "rt-new",
			ExpiresAtEpochSeconds: 5000,
		}, nil
	})
	// 10 seconds of validity left exactly, inside the grace window.
	refresher.now = fixedClock(990)

	var notified string
	refresher.OnRefreshed(func(token string) { notified = token })

	token, err := refresher.EnsureFreshAccessToken(context.Background())
	if err != nil {
		t.Fatalf("EnsureFreshAccessToken: %v", err)
	}
	if token != "renewed" {
		t.Fatalf("token = %q, want renewed", token)
	}
	if gotRefreshToken != "rt-old" {
		t.Fatalf("refresh used token %q, want rt-old", gotRefreshToken)
	}
	if notified != "renewed" {
		t.Fatalf("callback got %q, want renewed", notified)
	}

	account, _, err := store.Account()
	if err != nil {
		t.Fatalf("Account: %v", err)
	}
	if account.AccessToken != "renewed" || account.RefreshToken != "rt-new" || account.ExpiresAtEpochSeconds != 5000 {
		t.Fatalf("persisted account %+v", account)
	}

	session, _, err := store.Session()
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	if session.AccessToken != "renewed" {
		t.Fatalf("session token = %q, want renewed", session.AccessToken)
	}
}

func TestEnsureFreshAccessTokenKeepsRefreshTokenWhenOmitted(t *testing.T) {
	store := NewCredentialStore(newMemorySecrets())
	must(t, store.SetAccount(&OAuthAccount{
		AccessToken:           "stale",
		RefreshToken:          "rt-keep",
		ExpiresAtEpochSeconds: 1000,
	}))

	refresher := NewTokenRefresher(store, func(context.Context, string) (*OAuthAccount, error) {
		return &OAuthAccount{AccessToken: "renewed", ExpiresAtEpochSeconds: 5000}, nil
	})
	refresher.now = fixedClock(2000)

	if _, err := refresher.EnsureFreshAccessToken(context.Background()); err != nil {
		t.Fatalf("EnsureFreshAccessToken: %v", err)
	}

	account, _, _ := store.Account()
	if account.RefreshToken != "rt-keep" {
		t.Fatalf("refresh token = %q, want rt-keep carried over", account.RefreshToken)
	}
}

func TestEnsureFreshAccessTokenRefreshFailure(t *testing.T) {
	store := NewCredentialStore(newMemorySecrets())
	must(t, store.SetAccount(&OAuthAccount{
		AccessToken:           "stale",
		RefreshToken:          "rt",
		ExpiresAtEpochSeconds: 1000,
	}))

	backendErr := errors.New("invalid_grant")
	refresher := NewTokenRefresher(store, func(context.Context, string) (*OAuthAccount, error) {
		return nil, backendErr
	})
	refresher.now = fixedClock(2000)

	_, err := refresher.EnsureFreshAccessToken(context.Background())
	if !errors.Is(err, ErrReauthRequired) {
		t.Fatalf("err = %v, want ErrReauthRequired", err)
	}
	if !errors.Is(err, backendErr) {
		t.Fatal("backend error should be the cause")
	}

	// Stored credentials stay for the caller to clean up.
	if _, present, _ := store.Account(); !present {
		t.Fatal("account must not be cleared by the refresher")
	}
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
