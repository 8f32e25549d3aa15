package auth

import (
	"context"
	"errors"
	"net/http"
	"os"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/lightspeed-tools/lightspeed-auth/internal/auth/lightspeed"
	"github.com/lightspeed-tools/lightspeed-auth/internal/buildinfo"
	"github.com/lightspeed-tools/lightspeed-auth/internal/config"
)

// ChangeKind tags a session change notification.
type ChangeKind string

const (
	// SessionAdded fires after a login persisted a new session.
	SessionAdded ChangeKind = "added"
	// SessionRemoved fires after a logout or a degraded session removal.
	SessionRemoved ChangeKind = "removed"
	// SessionChanged fires after a token refresh or an external store edit.
	SessionChanged ChangeKind = "changed"
)

// SessionChange is delivered to subscribers whenever the authentication
// session is created, removed, or updated.
type SessionChange struct {
	Kind    ChangeKind
	Session *Session
}

// subscriberBuffer is the per-subscriber channel depth. A subscriber that
// falls this far behind starts losing events.
const subscriberBuffer = 16

// ManagerOptions configures a session Manager.
type ManagerOptions struct {
	// Environment is the host the subsystem runs in.
	Environment Environment
	// Source delivers OAuth redirect URIs.
	Source URISource
	// Secrets persists credentials.
	Secrets SecretStore
	// HTTPClient is used for all backend traffic; nil means defaults.
	HTTPClient *http.Client
	// BaseURL is the Lightspeed service URL.
	BaseURL string
	// RHSSO enables the Red Hat SSO backend when non-nil.
	RHSSO *RHSSOConfig
	// PreferRHSSO forces the SSO backend first when it is available.
	PreferRHSSO bool
	// HostKind is where the host process runs.
	HostKind HostKind
	// CallbackURI is the local redirect target handed to the backends.
	CallbackURI string
}

// Manager owns the authentication session lifecycle: login, logout, token
// refresh, entitlement lookup, and change notification. All methods are safe
// for concurrent use.
type Manager struct {
	opts        ManagerOptions
	store       *CredentialStore
	coordinator *Coordinator
	refresher   *TokenRefresher

	// loginGuard admits at most one login at a time.
	loginGuard *semaphore.Weighted

	mu             sync.Mutex
	lastSuccessful ProviderType
	userDetails    *UserDetails
	subscribers    map[int]chan SessionChange
	nextSubscriber int
}

// NewManager creates a session manager.
func NewManager(opts ManagerOptions) *Manager {
	store := NewCredentialStore(opts.Secrets)
	m := &Manager{
		opts:        opts,
		store:       store,
		coordinator: NewCoordinator(opts.Environment, opts.Source, store, opts.HTTPClient, opts.CallbackURI),
		loginGuard:  semaphore.NewWeighted(1),
		subscribers: make(map[int]chan SessionChange),
	}
	m.refresher = NewTokenRefresher(store, m.refreshAccount)
	m.refresher.OnRefreshed(func(string) {
		session, present, err := store.Session()
		if err != nil || !present {
			return
		}
		m.notify(SessionChange{Kind: SessionChanged, Session: session})
	})
	return m
}

// Subscribe registers for session change notifications. The returned cancel
// function releases the subscription. Slow subscribers lose events rather
// than blocking the session lifecycle.
func (m *Manager) Subscribe() (<-chan SessionChange, func()) {
	ch := make(chan SessionChange, subscriberBuffer)
	m.mu.Lock()
	id := m.nextSubscriber
	m.nextSubscriber++
	m.subscribers[id] = ch
	m.mu.Unlock()

	cancel := func() {
		m.mu.Lock()
		if _, ok := m.subscribers[id]; ok {
			delete(m.subscribers, id)
			close(ch)
		}
		m.mu.Unlock()
	}
	return ch, cancel
}

func (m *Manager) notify(change SessionChange) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, ch := range m.subscribers {
		select {
		case ch <- change:
		default:
			log.WithFields(log.Fields{
				"subscriber": id,
				"kind":       change.Kind,
			}).Warn("dropping session change for slow subscriber")
		}
	}
}

// providerOrder resolves which backends to try for the next login.
func (m *Manager) providerOrder() []ProviderType {
	m.mu.Lock()
	last := m.lastSuccessful
	m.mu.Unlock()

	hostCtx := HostContext{
		Kind:                m.opts.HostKind,
		SSOAvailable:        m.opts.RHSSO != nil,
		PreferSSO:           m.opts.PreferRHSSO,
		BaseURL:             m.opts.BaseURL,
		ExternalRedirectURI: m.opts.Environment.AsExternalURI,
		LastSuccessful:      last,
	}
	return SelectProviderOrder(hostCtx, config.DefaultServiceURL, m.opts.CallbackURI)
}

// providerConfig materializes the configuration for one backend.
func (m *Manager) providerConfig(kind ProviderType) ProviderConfig {
	if kind == ProviderRHSSO && m.opts.RHSSO != nil {
		return *m.opts.RHSSO
	}
	return LightspeedConfig{BaseURL: m.opts.BaseURL}
}

// CreateSession runs a full login and persists the resulting session. Only
// one login may be in flight; concurrent calls fail with ErrLoginInProgress.
//
// Backends are tried in the order the host context dictates. A cancelled
// attempt stops the chain immediately; other failures fall through to the
// next backend.
func (m *Manager) CreateSession(ctx context.Context) (*Session, error) {
	if !m.loginGuard.TryAcquire(1) {
		return nil, ErrLoginInProgress
	}
	defer m.loginGuard.Release(1)

	order := m.providerOrder()
	log.WithField("provider", order).Debug("login backend order")

	var lastErr error
	for _, kind := range order {
		account, err := m.coordinator.Login(ctx, m.providerConfig(kind))
		if err != nil {
			if errors.Is(err, ErrLoginCancelled) {
				return nil, err
			}
			// No backend can succeed once the caller's context is dead,
			// so a failure on a cancelled context ends the chain.
			if ctx.Err() != nil {
				return nil, err
			}
			log.WithFields(log.Fields{
				"provider": kind,
				"error":    err,
			}).Warn("login attempt failed")
			lastErr = err
			continue
		}

		session, err := m.buildSession(ctx, account)
		if err != nil {
			lastErr = err
			continue
		}
		if err := m.store.SetSession(session); err != nil {
			return nil, err
		}

		m.mu.Lock()
		m.lastSuccessful = kind
		m.userDetails = nil
		m.mu.Unlock()

		m.notify(SessionChange{Kind: SessionAdded, Session: session})
		log.WithFields(log.Fields{
			"provider": kind,
			"session":  session.ID,
		}).Info("session created")
		return session, nil
	}
	if lastErr == nil {
		lastErr = ErrNotAuthenticated
	}
	return nil, lastErr
}

// buildSession fetches the user's entitlements and assembles the session
// record. Entitlements always come from the Lightspeed service regardless of
// which backend issued the tokens.
func (m *Manager) buildSession(ctx context.Context, account *OAuthAccount) (*Session, error) {
	svc := lightspeed.NewService(m.opts.BaseURL, m.opts.HTTPClient)
	info, err := svc.FetchUserInfo(ctx, account.AccessToken)
	if err != nil {
		return nil, err
	}

	name := info.DisplayName()
	return &Session{
		ID:          uuid.NewString(),
		AccessToken: account.AccessToken,
		Account: SessionAccount{
			Label: SessionLabel(name, info.RHOrgHasSubscription, info.RHUserHasSeat),
			ID:    name,
		},
		Scopes:               []string{},
		RHUserHasSeat:        info.RHUserHasSeat,
		RHOrgHasSubscription: info.RHOrgHasSubscription,
		RHUserIsOrgAdmin:     info.RHUserIsOrgAdmin,
	}, nil
}

// GetSessions returns the stored sessions. The slice has at most one entry.
func (m *Manager) GetSessions() ([]Session, error) {
	session, present, err := m.store.Session()
	if err != nil {
		return nil, err
	}
	if !present {
		return []Session{}, nil
	}
	return []Session{*session}, nil
}

// RemoveSession deletes the stored session and account. Exactly one removal
// notification fires when a session existed.
func (m *Manager) RemoveSession() error {
	session, present, err := m.store.Session()
	if err != nil {
		return err
	}
	if err := m.store.ClearSession(); err != nil {
		return err
	}
	if err := m.store.ClearAccount(); err != nil {
		return err
	}

	m.mu.Lock()
	m.userDetails = nil
	m.mu.Unlock()

	if present {
		m.notify(SessionChange{Kind: SessionRemoved, Session: session})
		log.WithField("session", session.ID).Info("session removed")
	}
	return nil
}

// refreshAccount refreshes the stored tokens against the backend that won
// the last login, defaulting to the direct Lightspeed backend for sessions
// restored from disk.
func (m *Manager) refreshAccount(ctx context.Context, refreshToken string) (*OAuthAccount, error) {
	m.mu.Lock()
	kind := m.lastSuccessful
	m.mu.Unlock()
	if kind == "" {
		kind = ProviderLightspeed
	}

	flow, err := newProviderFlow(m.providerConfig(kind), m.opts.HTTPClient)
	if err != nil {
		return nil, err
	}
	return flow.refresh(ctx, refreshToken)
}

// GrantAccessToken returns an access token valid for at least the refresh
// grace window.
//
// In development builds the TEST_LIGHTSPEED_ACCESS_TOKEN environment
// variable bypasses the whole flow. Without a session the user is prompted
// to log in; when a refresh fails the dead session is removed and the user
// is prompted to reconnect.
func (m *Manager) GrantAccessToken(ctx context.Context) (string, error) {
	if buildinfo.IsDevBuild() {
		if token := os.Getenv(config.EnvTestAccessToken); token != "" {
			log.Warn("using the test access token override")
			return token, nil
		}
	}

	_, present, err := m.store.Session()
	if err != nil {
		return "", err
	}
	if !present {
		return m.promptLogin(ctx)
	}

	token, err := m.refresher.EnsureFreshAccessToken(ctx)
	if err != nil {
		// A session without a usable account record (missing or corrupt)
		// is as good as no session at all.
		if errors.Is(err, ErrNotAuthenticated) {
			return m.promptLogin(ctx)
		}
		if errors.Is(err, ErrReauthRequired) {
			if removeErr := m.RemoveSession(); removeErr != nil {
				log.WithField("error", removeErr).Warn("failed to remove the expired session")
			}
			_, _ = m.opts.Environment.ShowWarning(
				"Your Ansible Lightspeed session has expired.", "Reconnect")
		}
		return "", err
	}
	return token, nil
}

// promptLogin asks the user to log in and runs the full flow when the
// prompt is accepted.
func (m *Manager) promptLogin(ctx context.Context) (string, error) {
	answer, _ := m.opts.Environment.ShowWarning(
		"You must be logged in to use Ansible Lightspeed.", "Login")
	if answer == "Login" {
		session, err := m.CreateSession(ctx)
		if err != nil {
			return "", err
		}
		return session.AccessToken, nil
	}
	return "", ErrNotAuthenticated
}

// UserDetails returns the logged-in user's entitlement details, fetching
// them at most once per session.
func (m *Manager) UserDetails(ctx context.Context) (*UserDetails, error) {
	m.mu.Lock()
	cached := m.userDetails
	m.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	token, err := m.GrantAccessToken(ctx)
	if err != nil {
		return nil, err
	}

	svc := lightspeed.NewService(m.opts.BaseURL, m.opts.HTTPClient)
	info, err := svc.FetchUserInfo(ctx, token)
	if err != nil {
		return nil, err
	}

	name := info.DisplayName()
	details := &UserDetails{
		DisplayName:             name,
		DisplayNameWithUserType: name + " (" + UserTypeLabel(info.RHOrgHasSubscription, info.RHUserHasSeat) + ")",
		RHUserHasSeat:           info.RHUserHasSeat,
		RHOrgHasSubscription:    info.RHOrgHasSubscription,
		RHUserIsOrgAdmin:        info.RHUserIsOrgAdmin,
		OrgOptOutTelemetry:      info.OrgTelemetryOptOut,
	}

	m.mu.Lock()
	m.userDetails = details
	m.mu.Unlock()
	return details, nil
}

// RHUserHasSeat reports whether the logged-in user holds a Lightspeed seat.
func (m *Manager) RHUserHasSeat(ctx context.Context) (bool, error) {
	details, err := m.UserDetails(ctx)
	if err != nil {
		return false, err
	}
	return details.RHUserHasSeat, nil
}

// RHOrgHasSubscription reports whether the user's org holds a subscription.
func (m *Manager) RHOrgHasSubscription(ctx context.Context) (bool, error) {
	details, err := m.UserDetails(ctx)
	if err != nil {
		return false, err
	}
	return details.RHOrgHasSubscription, nil
}

// OrgOptOutTelemetry reports whether the user's org opted out of telemetry.
func (m *Manager) OrgOptOutTelemetry(ctx context.Context) (bool, error) {
	details, err := m.UserDetails(ctx)
	if err != nil {
		return false, err
	}
	return details.OrgOptOutTelemetry, nil
}

// OnStoreChanged tells the manager the backing secret store changed behind
// its back, for hosts that watch the credential files on disk. A change to
// the session record invalidates caches and fans out a change notification.
func (m *Manager) OnStoreChanged(key string) {
	if key != sessionsSecretKey {
		return
	}
	m.mu.Lock()
	m.userDetails = nil
	m.mu.Unlock()

	session, present, err := m.store.Session()
	if err != nil {
		log.WithField("error", err).Warn("failed to reload the session after a store change")
		return
	}
	if present {
		m.notify(SessionChange{Kind: SessionChanged, Session: session})
	} else {
		m.notify(SessionChange{Kind: SessionRemoved, Session: nil})
	}
}
