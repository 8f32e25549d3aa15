package lightspeed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/tidwall/gjson"
)

// ErrAccessDenied indicates the service rejected the access token. A
// stored session holding this token is dead and must be discarded.
var ErrAccessDenied = errors.New("lightspeed: access denied")

// UserInfo carries the entitlement attributes of the logged-in user as
// reported by the user info endpoint.
type UserInfo struct {
	Username             string
	ExternalUsername     string
	RHUserHasSeat        bool
	RHOrgHasSubscription bool
	RHUserIsOrgAdmin     bool
	OrgTelemetryOptOut   bool
}

// DisplayName returns the preferred name for UI labels: the external
// username when present, the plain username otherwise.
func (u *UserInfo) DisplayName() string {
	if u.ExternalUsername != "" {
		return u.ExternalUsername
	}
	return u.Username
}

// FetchUserInfo requests the logged-in user's entitlement attributes using
// the given access token. A 401 response maps to ErrAccessDenied so that
// callers can distinguish a dead token from a transport failure.
func (s *Service) FetchUserInfo(ctx context.Context, accessToken string) (*UserInfo, error) {
	endpoint := s.baseURL + UserInfoPath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("lightspeed: failed to create user info request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("lightspeed: user info request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("lightspeed: failed to read user info response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, fmt.Errorf("user info rejected: %w", ErrAccessDenied)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Op: "user info", StatusCode: resp.StatusCode}
	}

	result := gjson.ParseBytes(body)
	return &UserInfo{
		Username:             result.Get("username").String(),
		ExternalUsername:     result.Get("external_username").String(),
		RHUserHasSeat:        result.Get("rh_user_has_seat").Bool(),
		RHOrgHasSubscription: result.Get("rh_org_has_subscription").Bool(),
		RHUserIsOrgAdmin:     result.Get("rh_user_is_org_admin").Bool(),
		OrgTelemetryOptOut:   result.Get("org_telemetry_opt_out").Bool(),
	}, nil
}
