package auth

import "net/url"

// Environment is the host surface the subsystem depends on: opening the
// system browser, translating local URIs into externally routable ones,
// and showing user-facing prompts. The composition root supplies an
// implementation; the subsystem never reaches for host globals.
type Environment interface {
	// OpenExternal asks the host to open a URL in the external browser.
	// Failure is not fatal to a login; the user may open it manually.
	OpenExternal(url string) error

	// AsExternalURI translates a locally reachable URI into one the OAuth
	// server's redirect can actually reach from outside (relevant on
	// remote hosts). Local hosts return the input unchanged.
	AsExternalURI(local string) (string, error)

	// ShowWarning presents a message with optional action buttons and
	// returns the chosen action, or an empty string when dismissed.
	ShowWarning(message string, actions ...string) (string, error)
}

// URISource is a push-based stream of inbound redirect URIs delivered by
// the host (a custom URI scheme handler or a local callback server).
type URISource interface {
	// Subscribe registers a handler for future URIs and returns a cancel
	// function that unregisters it. Handlers are invoked asynchronously.
	Subscribe(handler func(uri *url.URL)) (cancel func())
}

// SecretStore persists small secret values by key. Implementations are
// expected to be encrypted at rest by the host; the subsystem itself does
// not encrypt.
type SecretStore interface {
	// Get returns the stored value and whether the key was present.
	Get(key string) (string, bool, error)

	// Set stores the value under key, overwriting any previous value.
	Set(key, value string) error

	// Delete removes the key. Deleting an absent key is not an error.
	Delete(key string) error
}
