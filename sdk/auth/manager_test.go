package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/lightspeed-tools/lightspeed-auth/internal/config"
)

// newBackendServer serves the token and user info endpoints of a Lightspeed
// service for manager tests.
func newBackendServer(t *testing.T, refreshOK bool) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/o/token/", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if r.PostForm.Get("grant_type") == "refresh_token" && !refreshOK {
			http.Error(w, "invalid_grant", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "at-fresh",
			"refresh_token": "rt-fresh",
			"expires_in":    3600,
		})
	})
	mux.HandleFunc("/api/v0/me/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"external_username":       "jdoe",
			"username":                "jdoe-internal",
			"rh_user_has_seat":        true,
			"rh_org_has_subscription": true,
			"rh_user_is_org_admin":    false,
			"org_telemetry_opt_out":   true,
		})
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newTestManager(t *testing.T, baseURL string) (*Manager, *fakeEnvironment, *fakeURISource, *memorySecrets) {
	t.Helper()
	env := &fakeEnvironment{}
	source := &fakeURISource{}
	secrets := newMemorySecrets()
	manager := NewManager(ManagerOptions{
		Environment: env,
		Source:      source,
		Secrets:     secrets,
		BaseURL:     baseURL,
		HostKind:    HostLocal,
		CallbackURI: "http://127.0.0.1:54345/callback",
	})
	return manager, env, source, secrets
}

func TestCreateSessionHappyPath(t *testing.T) {
	server := newBackendServer(t, true)
	manager, env, source, _ := newTestManager(t, server.URL)

	env.onOpen = func(string) {
		go source.push("vscode://redhat.ansible?code=good-code")
	}

	changes, cancel := manager.Subscribe()
	defer cancel()

	session, err := manager.CreateSession(context.Background())
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if session.AccessToken != "at-fresh" {
		t.Fatalf("session token = %q", session.AccessToken)
	}
	if session.Account.Label != "jdoe (licensed)" {
		t.Fatalf("session label = %q", session.Account.Label)
	}
	if !session.RHUserHasSeat || !session.RHOrgHasSubscription || session.RHUserIsOrgAdmin {
		t.Fatalf("entitlement flags: %+v", session)
	}
	if session.ID == "" {
		t.Fatal("session must get an ID")
	}

	select {
	case change := <-changes:
		if change.Kind != SessionAdded || change.Session.ID != session.ID {
			t.Fatalf("unexpected change: %+v", change)
		}
	case <-time.After(time.Second):
		t.Fatal("no added notification")
	}

	stored, err := manager.GetSessions()
	if err != nil || len(stored) != 1 {
		t.Fatalf("GetSessions: %v %v", stored, err)
	}
}

func TestCreateSessionRejectsConcurrentLogin(t *testing.T) {
	server := newBackendServer(t, true)
	manager, env, source, _ := newTestManager(t, server.URL)

	release := make(chan struct{})
	env.onOpen = func(string) {
		go func() {
			<-release
			source.push("vscode://redhat.ansible?code=good-code")
		}()
	}

	firstDone := make(chan error, 1)
	go func() {
		_, err := manager.CreateSession(context.Background())
		firstDone <- err
	}()

	// Wait until the first login holds the guard.
	deadline := time.After(2 * time.Second)
	for len(env.openedURIs()) == 0 {
		select {
		case <-deadline:
			t.Fatal("first login never started")
		case <-time.After(5 * time.Millisecond):
		}
	}

	if _, err := manager.CreateSession(context.Background()); !errors.Is(err, ErrLoginInProgress) {
		t.Fatalf("second login err = %v, want ErrLoginInProgress", err)
	}

	close(release)
	if err := <-firstDone; err != nil {
		t.Fatalf("first login: %v", err)
	}
}

func TestCreateSessionPlainCancelStopsBackendChain(t *testing.T) {
	server := newBackendServer(t, true)
	env := &fakeEnvironment{}
	source := &fakeURISource{}
	manager := NewManager(ManagerOptions{
		Environment: env,
		Source:      source,
		Secrets:     newMemorySecrets(),
		BaseURL:     server.URL,
		RHSSO: &RHSSOConfig{
			AuthURL:  server.URL + "/auth",
			TokenURL: server.URL + "/o/token/",
			ClientID: "cloud-services",
		},
		HostKind:    HostLocal,
		CallbackURI: "http://127.0.0.1:54345/callback",
	})

	// The user abandons the login with an undecorated CancelFunc once the
	// browser has been opened.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	env.onOpen = func(string) { cancel() }

	if _, err := manager.CreateSession(ctx); !errors.Is(err, ErrLoginCancelled) {
		t.Fatalf("CreateSession = %v, want ErrLoginCancelled", err)
	}
	if opened := env.openedURIs(); len(opened) != 1 {
		t.Fatalf("browser opened %d times, want 1 (no second backend after cancel)", len(opened))
	}
}

func TestRemoveSessionNotifiesOnce(t *testing.T) {
	server := newBackendServer(t, true)
	manager, _, _, secrets := newTestManager(t, server.URL)

	store := NewCredentialStore(secrets)
	must(t, store.SetSession(&Session{ID: "sess-1", AccessToken: "at"}))
	must(t, store.SetAccount(&OAuthAccount{AccessToken: "at", RefreshToken: "rt"}))

	changes, cancel := manager.Subscribe()
	defer cancel()

	if err := manager.RemoveSession(); err != nil {
		t.Fatalf("RemoveSession: %v", err)
	}

	select {
	case change := <-changes:
		if change.Kind != SessionRemoved || change.Session.ID != "sess-1" {
			t.Fatalf("unexpected change: %+v", change)
		}
	case <-time.After(time.Second):
		t.Fatal("no removed notification")
	}

	// A second removal with nothing stored stays silent.
	if err := manager.RemoveSession(); err != nil {
		t.Fatalf("second RemoveSession: %v", err)
	}
	select {
	case change := <-changes:
		t.Fatalf("unexpected second notification: %+v", change)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestGrantAccessTokenWithoutSessionPrompts(t *testing.T) {
	server := newBackendServer(t, true)
	manager, env, _, _ := newTestManager(t, server.URL)

	_, err := manager.GrantAccessToken(context.Background())
	if !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("err = %v, want ErrNotAuthenticated", err)
	}
	warnings := env.shownWarnings()
	if len(warnings) != 1 {
		t.Fatalf("warnings = %v", warnings)
	}
	env.mu.Lock()
	actions := env.actions[0]
	env.mu.Unlock()
	if len(actions) != 1 || actions[0] != "Login" {
		t.Fatalf("warning actions = %v, want [Login]", actions)
	}
}

func TestGrantAccessTokenOrphanSessionPrompts(t *testing.T) {
	server := newBackendServer(t, true)
	manager, env, source, secrets := newTestManager(t, server.URL)

	// A session record with no account behind it cannot be refreshed and
	// must be treated like having no session at all.
	store := NewCredentialStore(secrets)
	must(t, store.SetSession(&Session{ID: "sess-1", AccessToken: "at-stale"}))

	_, err := manager.GrantAccessToken(context.Background())
	if !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("err = %v, want ErrNotAuthenticated", err)
	}
	env.mu.Lock()
	actions := append([][]string{}, env.actions...)
	env.mu.Unlock()
	if len(actions) != 1 || len(actions[0]) != 1 || actions[0][0] != "Login" {
		t.Fatalf("warning actions = %v, want [[Login]]", actions)
	}

	// Accepting the prompt runs the full login and yields a fresh token.
	env.answer = "Login"
	env.onOpen = func(string) {
		go source.push("vscode://redhat.ansible?code=good-code")
	}
	token, err := manager.GrantAccessToken(context.Background())
	if err != nil {
		t.Fatalf("GrantAccessToken after accepting the prompt: %v", err)
	}
	if token != "at-fresh" {
		t.Fatalf("token = %q, want at-fresh", token)
	}
}

func TestGrantAccessTokenFreshTokenNoNetwork(t *testing.T) {
	manager, _, _, secrets := newTestManager(t, "http://127.0.0.1:1") // unroutable

	store := NewCredentialStore(secrets)
	must(t, store.SetSession(&Session{ID: "sess-1", AccessToken: "at-valid"}))
	must(t, store.SetAccount(&OAuthAccount{
		AccessToken:           "at-valid",
		RefreshToken:          "rt",
		ExpiresAtEpochSeconds: time.Now().Add(time.Hour).Unix(),
	}))

	token, err := manager.GrantAccessToken(context.Background())
	if err != nil {
		t.Fatalf("GrantAccessToken: %v", err)
	}
	if token != "at-valid" {
		t.Fatalf("token = %q, want at-valid", token)
	}
}

func TestGrantAccessTokenRefreshesExpiredToken(t *testing.T) {
	server := newBackendServer(t, true)
	manager, _, _, secrets := newTestManager(t, server.URL)

	store := NewCredentialStore(secrets)
	must(t, store.SetSession(&Session{ID: "sess-1", AccessToken: "at-old"}))
	must(t, store.SetAccount(&OAuthAccount{
		AccessToken:           "at-old",
		RefreshToken:          "rt-old",
		ExpiresAtEpochSeconds: time.Now().Add(-time.Minute).Unix(),
	}))

	changes, cancel := manager.Subscribe()
	defer cancel()

	token, err := manager.GrantAccessToken(context.Background())
	if err != nil {
		t.Fatalf("GrantAccessToken: %v", err)
	}
	if token != "at-fresh" {
		t.Fatalf("token = %q, want at-fresh", token)
	}

	session, _, err := store.Session()
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	if session.AccessToken != "at-fresh" {
		t.Fatalf("session token = %q, want at-fresh", session.AccessToken)
	}

	select {
	case change := <-changes:
		if change.Kind != SessionChanged {
			t.Fatalf("change kind = %v, want changed", change.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("no changed notification after refresh")
	}
}

func TestGrantAccessTokenRefreshFailureDegradesSession(t *testing.T) {
	server := newBackendServer(t, false)
	manager, env, _, secrets := newTestManager(t, server.URL)

	store := NewCredentialStore(secrets)
	must(t, store.SetSession(&Session{ID: "sess-1", AccessToken: "at-old"}))
	must(t, store.SetAccount(&OAuthAccount{
		AccessToken:           "at-old",
		RefreshToken:          "rt-dead",
		ExpiresAtEpochSeconds: time.Now().Add(-time.Minute).Unix(),
	}))

	_, err := manager.GrantAccessToken(context.Background())
	if !errors.Is(err, ErrReauthRequired) {
		t.Fatalf("err = %v, want ErrReauthRequired", err)
	}

	if _, present, _ := store.Session(); present {
		t.Fatal("dead session should be removed")
	}
	env.mu.Lock()
	actions := env.actions
	env.mu.Unlock()
	if len(actions) != 1 || len(actions[0]) != 1 || actions[0][0] != "Reconnect" {
		t.Fatalf("warning actions = %v, want [[Reconnect]]", actions)
	}
}

func TestGrantAccessTokenTestOverride(t *testing.T) {
	manager, _, _, _ := newTestManager(t, "http://127.0.0.1:1")
	t.Setenv(config.EnvTestAccessToken, "test-token-123")

	token, err := manager.GrantAccessToken(context.Background())
	if err != nil {
		t.Fatalf("GrantAccessToken: %v", err)
	}
	if token != "test-token-123" {
		t.Fatalf("token = %q, want the override", token)
	}
}

func TestUserDetailsCaching(t *testing.T) {
	var infoRequests int
	var mu sync.Mutex
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v0/me/", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		infoRequests++
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"external_username":       "jdoe",
			"rh_user_has_seat":        true,
			"rh_org_has_subscription": true,
			"org_telemetry_opt_out":   true,
		})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	manager, _, _, secrets := newTestManager(t, server.URL)
	store := NewCredentialStore(secrets)
	must(t, store.SetSession(&Session{ID: "sess-1", AccessToken: "at"}))
	must(t, store.SetAccount(&OAuthAccount{
		AccessToken:           "at",
		ExpiresAtEpochSeconds: time.Now().Add(time.Hour).Unix(),
	}))

	details, err := manager.UserDetails(context.Background())
	if err != nil {
		t.Fatalf("UserDetails: %v", err)
	}
	if details.DisplayNameWithUserType != "jdoe (Licensed)" {
		t.Fatalf("display name = %q", details.DisplayNameWithUserType)
	}
	if !details.OrgOptOutTelemetry {
		t.Fatal("telemetry opt out flag lost")
	}

	if _, err := manager.UserDetails(context.Background()); err != nil {
		t.Fatalf("second UserDetails: %v", err)
	}
	optOut, err := manager.OrgOptOutTelemetry(context.Background())
	if err != nil || !optOut {
		t.Fatalf("OrgOptOutTelemetry = %v, %v", optOut, err)
	}

	mu.Lock()
	defer mu.Unlock()
	if infoRequests != 1 {
		t.Fatalf("user info requests = %d, want 1 (cached)", infoRequests)
	}
}

func TestOnStoreChanged(t *testing.T) {
	server := newBackendServer(t, true)
	manager, _, _, secrets := newTestManager(t, server.URL)

	changes, cancel := manager.Subscribe()
	defer cancel()

	store := NewCredentialStore(secrets)
	must(t, store.SetSession(&Session{ID: "sess-ext", AccessToken: "at"}))

	manager.OnStoreChanged("sessions")
	select {
	case change := <-changes:
		if change.Kind != SessionChanged || change.Session.ID != "sess-ext" {
			t.Fatalf("unexpected change: %+v", change)
		}
	case <-time.After(time.Second):
		t.Fatal("no notification after store change")
	}

	must(t, store.ClearSession())
	manager.OnStoreChanged("sessions")
	select {
	case change := <-changes:
		if change.Kind != SessionRemoved {
			t.Fatalf("change kind = %v, want removed", change.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("no notification after external removal")
	}

	// Changes to other keys are ignored.
	manager.OnStoreChanged("account")
	select {
	case change := <-changes:
		t.Fatalf("unexpected notification: %+v", change)
	case <-time.After(50 * time.Millisecond):
	}
}
