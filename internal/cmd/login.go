package cmd

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/lightspeed-tools/lightspeed-auth/internal/config"
	sdkAuth "github.com/lightspeed-tools/lightspeed-auth/sdk/auth"
)

// DoLogin runs the OAuth login flow and persists the resulting session.
//
// Parameters:
//   - cfg: The application configuration
//   - options: Login options including browser behavior and callback port
func DoLogin(cfg *config.Config, options *Options) {
	rt, err := newRuntime(cfg, options)
	if err != nil {
		log.Error(err)
		return
	}
	defer rt.close()

	session, err := rt.manager.CreateSession(context.Background())
	if err != nil {
		var authErr *sdkAuth.AuthenticationError
		if errors.As(err, &authErr) {
			log.Error(sdkAuth.GetUserFriendlyMessage(authErr))
			return
		}
		fmt.Printf("Lightspeed authentication failed: %v\n", err)
		return
	}

	fmt.Printf("Logged in to Ansible Lightspeed as %s\n", session.Account.Label)
}
