package auth

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/lightspeed-tools/lightspeed-auth/internal/auth/lightspeed"
	"github.com/lightspeed-tools/lightspeed-auth/internal/auth/pkce"
	"github.com/lightspeed-tools/lightspeed-auth/internal/auth/rhsso"
)

// providerFlow binds one authentication backend to the three operations the
// login coordinator needs. The PKCE material lives inside the closures so it
// never leaves this file.
type providerFlow struct {
	kind             ProviderType
	authorizationURL func(redirectURI string) string
	exchange         func(ctx context.Context, code, redirectURI string) (*OAuthAccount, error)
	refresh          func(ctx context.Context, refreshToken string) (*OAuthAccount, error)
}

// newProviderFlow builds the flow for a backend configuration.
//
// The direct Lightspeed flow reuses one PKCE pair for the whole process
// lifetime, matching the server-side session the authorize endpoint keeps.
// The SSO flow generates a fresh verifier and state per attempt.
func newProviderFlow(cfg ProviderConfig, httpClient *http.Client) (*providerFlow, error) {
	switch c := cfg.(type) {
	case LightspeedConfig:
		if c.BaseURL == "" {
			return nil, ErrServiceURLNotConfigured
		}
		codes, err := pkce.ProcessCodes()
		if err != nil {
			return nil, fmt.Errorf("generate pkce codes: %w", err)
		}
		svc := lightspeed.NewService(c.BaseURL, httpClient)
		return &providerFlow{
			kind: ProviderLightspeed,
			authorizationURL: func(redirectURI string) string {
				return svc.AuthorizationURL(codes.CodeChallenge, redirectURI)
			},
			exchange: func(ctx context.Context, code, redirectURI string) (*OAuthAccount, error) {
				tokens, err := svc.ExchangeCode(ctx, code, codes.CodeVerifier, redirectURI)
				if err != nil {
					return nil, err
				}
				return accountFromLightspeed(tokens), nil
			},
			refresh: func(ctx context.Context, refreshToken string) (*OAuthAccount, error) {
				tokens, err := svc.RefreshToken(ctx, refreshToken)
				if err != nil {
					return nil, err
				}
				return accountFromLightspeed(tokens), nil
			},
		}, nil
	case RHSSOConfig:
		svc := rhsso.NewService(c.AuthURL, c.TokenURL, c.ClientID, httpClient)
		state := uuid.NewString()
		verifier := oauth2.GenerateVerifier()
		return &providerFlow{
			kind: ProviderRHSSO,
			authorizationURL: func(redirectURI string) string {
				return svc.AuthorizationURL(state, verifier, redirectURI)
			},
			exchange: func(ctx context.Context, code, redirectURI string) (*OAuthAccount, error) {
				tokens, err := svc.ExchangeCode(ctx, code, verifier, redirectURI)
				if err != nil {
					return nil, err
				}
				return accountFromRHSSO(tokens), nil
			},
			refresh: func(ctx context.Context, refreshToken string) (*OAuthAccount, error) {
				tokens, err := svc.RefreshToken(ctx, refreshToken)
				if err != nil {
					return nil, err
				}
				return accountFromRHSSO(tokens), nil
			},
		}, nil
	default:
		return nil, fmt.Errorf("unsupported provider config %T", cfg)
	}
}

func accountFromLightspeed(tokens *lightspeed.TokenSet) *OAuthAccount {
	return &OAuthAccount{
		AccessToken:           tokens.AccessToken,
		RefreshToken:          tokens.RefreshToken,
		ExpiresAtEpochSeconds: tokens.ExpiresAtEpochSeconds,
	}
}

func accountFromRHSSO(tokens *rhsso.TokenSet) *OAuthAccount {
	return &OAuthAccount{
		AccessToken:           tokens.AccessToken,
		RefreshToken:          tokens.RefreshToken,
		ExpiresAtEpochSeconds: tokens.ExpiresAtEpochSeconds,
	}
}
