// Package cmd implements the CLI commands: login, logout, status, and token.
package cmd

import (
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/lightspeed-tools/lightspeed-auth/internal/browser"
)

// terminalEnvironment adapts a desktop terminal to the host surface the
// session subsystem expects.
type terminalEnvironment struct {
	// noBrowser suppresses opening URLs and prints them instead.
	noBrowser bool
}

// OpenExternal opens the URI in the default browser, or prints it for the
// user to open by hand.
func (e *terminalEnvironment) OpenExternal(uri string) error {
	if e.noBrowser || !browser.IsAvailable() {
		fmt.Printf("Open the following URL in your browser to continue:\n\n  %s\n\n", uri)
		return nil
	}
	if err := browser.OpenURL(uri); err != nil {
		log.WithField("error", err).Warn("failed to open browser")
		fmt.Printf("Open the following URL in your browser to continue:\n\n  %s\n\n", uri)
	}
	return nil
}

// AsExternalURI returns the URI unchanged. A local terminal host has no
// tunnel between the redirect target and the OAuth server.
func (e *terminalEnvironment) AsExternalURI(uri string) (string, error) {
	return uri, nil
}

// ShowWarning prints the warning to the terminal. The command surface is
// non-interactive, so no action is ever chosen; the user reacts by running
// the suggested command instead.
func (e *terminalEnvironment) ShowWarning(message string, actions ...string) (string, error) {
	fmt.Printf("Warning: %s\n", message)
	if len(actions) > 0 {
		fmt.Printf("Suggested action: %s\n", strings.Join(actions, ", "))
	}
	return "", nil
}
