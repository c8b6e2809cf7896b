package upstream

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"gitlab.com/timkado/api/account-cache-service/internal/adapters/config"
	"gitlab.com/timkado/api/account-cache-service/internal/domain"
)

// CRMClient reads user profiles from the CRM service.
type CRMClient struct {
	*Client
}

// NewCRMClient creates the CRM client from the upstream config.
func NewCRMClient(cfgProvider config.Provider, logger domain.Logger) *CRMClient {
	return &CRMClient{Client: NewClient("crm", cfgProvider.Get().Upstream.CRM, logger)}
}

// FetchProfile implements domain.ProfileFetcher. An unknown user is a rejection: the CRM is expected to
// know every user that can reach this service.
func (c *CRMClient) FetchProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	var profile domain.Profile
	err := c.getJSON(ctx, "/v1/users/"+url.PathEscape(userID)+"/profile", &profile)
	if errors.Is(err, errNotFound) {
		return nil, fmt.Errorf("%w: crm has no profile for user %s", domain.ErrUpstreamRejected, userID)
	}
	if err != nil {
		return nil, err
	}
	if profile.UserID == "" {
		profile.UserID = userID
	}
	return &profile, nil
}

var _ domain.ProfileFetcher = (*CRMClient)(nil)
