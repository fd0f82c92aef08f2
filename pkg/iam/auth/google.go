package auth

import (
	"context"
	"time"

	"github.com/egoauth/ego/pkg/config"
	"github.com/egoauth/ego/pkg/iam"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// GoogleProvider resolves identities through Google's userinfo endpoint.
// The email arrives directly in the user-info payload.
type GoogleProvider struct {
	providerBase
	userInfoURL string
}

func NewGoogleProvider(cfg *config.OAuthClientConfig, timeout time.Duration) *GoogleProvider {
	userInfoURL := cfg.UserInfoURL
	if userInfoURL == "" {
		userInfoURL = googleUserInfoURL
	}
	return &GoogleProvider{
		providerBase: newProviderBase(iam.ProviderGoogle, cfg, endpoints.Google, timeout),
		userInfoURL:  userInfoURL,
	}
}

func (p *GoogleProvider) FetchIdentity(ctx context.Context, token *oauth2.Token) (*ExternalIdentity, error) {
	var info struct {
		ID         string `json:"id"`
		Email      string `json:"email"`
		GivenName  string `json:"given_name"`
		FamilyName string `json:"family_name"`
	}
	if err := p.getJSON(ctx, token, p.userInfoURL, &info); err != nil {
		return nil, err
	}
	if info.Email == "" {
		return nil, ErrNoPrimaryEmail().WithDetail("provider", string(iam.ProviderGoogle))
	}
	return &ExternalIdentity{
		Provider:   iam.ProviderGoogle,
		SubjectID:  info.ID,
		Email:      info.Email,
		GivenName:  info.GivenName,
		FamilyName: info.FamilyName,
	}, nil
}
