package cmd

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/lightspeed-tools/lightspeed-auth/internal/config"
	sdkAuth "github.com/lightspeed-tools/lightspeed-auth/sdk/auth"
)

// DoLogout removes the stored session and credentials.
func DoLogout(cfg *config.Config) {
	rt, err := newRuntime(cfg, nil)
	if err != nil {
		log.Error(err)
		return
	}
	defer rt.close()

	sessions, err := rt.manager.GetSessions()
	if err != nil {
		log.Error(err)
		return
	}
	if len(sessions) == 0 {
		fmt.Println("Not logged in to Ansible Lightspeed.")
		return
	}
	if err = rt.manager.RemoveSession(); err != nil {
		log.Error(err)
		return
	}
	fmt.Println("Logged out of Ansible Lightspeed.")
}

// DoStatus prints the current session and the user's entitlements.
func DoStatus(cfg *config.Config) {
	rt, err := newRuntime(cfg, nil)
	if err != nil {
		log.Error(err)
		return
	}
	defer rt.close()

	sessions, err := rt.manager.GetSessions()
	if err != nil {
		log.Error(err)
		return
	}
	if len(sessions) == 0 {
		fmt.Println("Not logged in to Ansible Lightspeed.")
		return
	}
	session := sessions[0]
	fmt.Printf("Logged in as %s\n", session.Account.Label)

	details, err := rt.manager.UserDetails(context.Background())
	if err != nil {
		log.WithField("error", err).Warn("could not fetch user details")
		return
	}
	fmt.Printf("  User:                %s\n", details.DisplayNameWithUserType)
	fmt.Printf("  Seat:                %t\n", details.RHUserHasSeat)
	fmt.Printf("  Org subscription:    %t\n", details.RHOrgHasSubscription)
	fmt.Printf("  Org admin:           %t\n", details.RHUserIsOrgAdmin)
	fmt.Printf("  Telemetry opted out: %t\n", details.OrgOptOutTelemetry)
}

// DoToken prints an access token valid for at least the refresh grace
// window, refreshing it first when needed.
func DoToken(cfg *config.Config) {
	rt, err := newRuntime(cfg, nil)
	if err != nil {
		log.Error(err)
		return
	}
	defer rt.close()

	token, err := rt.manager.GrantAccessToken(context.Background())
	if err != nil {
		var authErr *sdkAuth.AuthenticationError
		if errors.As(err, &authErr) {
			log.Error(sdkAuth.GetUserFriendlyMessage(authErr))
			return
		}
		log.Error(err)
		return
	}
	fmt.Println(token)
}
