package auth

import (
	"net/url"
	"strings"

	log "github.com/sirupsen/logrus"
)

// HostContext describes the environment a login attempt runs in. The
// provider order depends on where the host runs and on what redirect URI the
// host would hand to the OAuth server.
type HostContext struct {
	// Kind is where the host process runs.
	Kind HostKind
	// SSOAvailable reports whether a Red Hat SSO backend is configured.
	SSOAvailable bool
	// PreferSSO forces the SSO backend to the front of the order.
	PreferSSO bool
	// BaseURL is the configured Lightspeed service URL.
	BaseURL string
	// ExternalRedirectURI resolves the redirect URI the host would publish
	// for the given local callback URI.
	ExternalRedirectURI func(uri string) (string, error)
	// LastSuccessful is the provider that completed the previous login,
	// empty when no login succeeded yet.
	LastSuccessful ProviderType
}

// callbackSchemes are URI schemes the Lightspeed service redirects back to.
var callbackSchemes = map[string]bool{
	"vscode":          true,
	"vscodium":        true,
	"vscode-insiders": true,
	"checode":         true,
}

// callbackAuthoritySuffixes are web hosts the service can redirect to when
// the editor runs in a browser.
var callbackAuthoritySuffixes = []string{
	".openshiftapps.com",
	".github.dev",
}

// IsSupportedCallback reports whether the Lightspeed service knows how to
// redirect back to the given URI. Unknown schemes and authorities mean the
// direct flow cannot complete and the SSO flow should be tried first.
func IsSupportedCallback(uri *url.URL) bool {
	if uri == nil {
		return false
	}
	if callbackSchemes[uri.Scheme] {
		return true
	}
	if uri.Scheme == "http" || uri.Scheme == "https" {
		host := uri.Hostname()
		for _, suffix := range callbackAuthoritySuffixes {
			if strings.HasSuffix(host, suffix) {
				return true
			}
		}
	}
	return false
}

// SelectProviderOrder decides which authentication backends to try and in
// what order. The first backend that completes a login wins.
//
// Rules, in precedence order:
//  1. without an SSO backend only the direct Lightspeed flow exists;
//  2. an explicit SSO preference puts SSO first;
//  3. the backend that succeeded last time stays first;
//  4. a remote host pointed at the default service URL whose published
//     redirect URI the service cannot handle gets SSO first;
//  5. otherwise the direct Lightspeed flow goes first.
func SelectProviderOrder(hostCtx HostContext, defaultBaseURL, probeURI string) []ProviderType {
	if !hostCtx.SSOAvailable {
		return []ProviderType{ProviderLightspeed}
	}
	if hostCtx.PreferSSO {
		return []ProviderType{ProviderRHSSO, ProviderLightspeed}
	}
	switch hostCtx.LastSuccessful {
	case ProviderRHSSO:
		return []ProviderType{ProviderRHSSO, ProviderLightspeed}
	case ProviderLightspeed:
		return []ProviderType{ProviderLightspeed, ProviderRHSSO}
	}
	if hostCtx.Kind == HostRemote && hostCtx.BaseURL == defaultBaseURL {
		if !remoteCallbackSupported(hostCtx, probeURI) {
			return []ProviderType{ProviderRHSSO, ProviderLightspeed}
		}
	}
	return []ProviderType{ProviderLightspeed, ProviderRHSSO}
}

// remoteCallbackSupported resolves the external form of the callback URI and
// checks it against the service allowlist. Resolution failures count as
// unsupported.
func remoteCallbackSupported(hostCtx HostContext, probeURI string) bool {
	if hostCtx.ExternalRedirectURI == nil {
		return false
	}
	external, err := hostCtx.ExternalRedirectURI(probeURI)
	if err != nil {
		log.WithField("error", err).Debug("failed to resolve external redirect URI")
		return false
	}
	parsed, err := url.Parse(external)
	if err != nil {
		log.WithField("error", err).Debug("failed to parse external redirect URI")
		return false
	}
	return IsSupportedCallback(parsed)
}
