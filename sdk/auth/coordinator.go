package auth

import (
	"context"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
)

// LoginTimeout bounds how long a login waits for the authentication
// redirect before giving up.
const LoginTimeout = 60 * time.Second

// Coordinator drives a single OAuth authorization-code login against one
// backend: it opens the authorization URL in the user's browser, waits for
// the redirect, exchanges the code, and persists the resulting account.
type Coordinator struct {
	env         Environment
	source      URISource
	store       *CredentialStore
	httpClient  *http.Client
	callbackURI string
	timeout     time.Duration
}

// NewCoordinator creates a login coordinator. callbackURI is the local URI
// the redirect arrives on before the host translates it to its external
// form. A nil httpClient falls back to the default client of each backend.
func NewCoordinator(env Environment, source URISource, store *CredentialStore, httpClient *http.Client, callbackURI string) *Coordinator {
	return &Coordinator{
		env:         env,
		source:      source,
		store:       store,
		httpClient:  httpClient,
		callbackURI: callbackURI,
		timeout:     LoginTimeout,
	}
}

// Login performs the authorization-code flow against the given backend and
// returns the persisted account.
//
// Configuration problems surface before any network traffic or browser
// interaction. The wait for the redirect is bounded by LoginTimeout; the
// caller's context cancels the attempt early.
func (c *Coordinator) Login(ctx context.Context, cfg ProviderConfig) (*OAuthAccount, error) {
	flow, err := newProviderFlow(cfg, c.httpClient)
	if err != nil {
		return nil, err
	}

	redirectURI, err := c.env.AsExternalURI(c.callbackURI)
	if err != nil {
		return nil, fmt.Errorf("resolve external redirect URI: %w", err)
	}

	authURL := flow.authorizationURL(redirectURI)

	// Arm the redirect listener before opening the browser so a fast
	// redirect cannot be lost.
	pending := ListenRedirect(c.source)
	defer pending.Cancel()

	go func() {
		if err := c.env.OpenExternal(authURL); err != nil {
			log.WithFields(log.Fields{
				"provider": flow.kind,
				"error":    err,
			}).Warn("failed to open the authorization URL")
		}
	}()

	log.WithField("provider", flow.kind).Info("waiting for the authentication redirect")

	loginCtx, cancel := context.WithTimeoutCause(ctx, c.timeout, ErrLoginTimedOut)
	defer cancel()

	uri, err := pending.Await(loginCtx)
	if err != nil {
		return nil, err
	}

	code := uri.Query().Get("code")
	if code == "" {
		return nil, ErrNoCodeReceived
	}

	account, err := flow.exchange(loginCtx, code, redirectURI)
	if err != nil {
		return nil, NewAuthenticationError(ErrCodeExchangeFailed, err)
	}

	if err := c.store.SetAccount(account); err != nil {
		return nil, err
	}

	log.WithField("provider", flow.kind).Info("login completed")
	return account, nil
}
