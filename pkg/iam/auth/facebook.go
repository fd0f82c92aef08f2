package auth

import (
	"context"
	"time"

	"github.com/egoauth/ego/pkg/config"
	"github.com/egoauth/ego/pkg/iam"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

const facebookUserInfoURL = "https://graph.facebook.com/me?fields=id,email,first_name,last_name"

// FacebookProvider resolves identities through the Graph API. Facebook only
// exposes the email when the account has a confirmed one, so the field may
// be absent from the payload.
type FacebookProvider struct {
	providerBase
	userInfoURL string
}

func NewFacebookProvider(cfg *config.OAuthClientConfig, timeout time.Duration) *FacebookProvider {
	userInfoURL := cfg.UserInfoURL
	if userInfoURL == "" {
		userInfoURL = facebookUserInfoURL
	}
	return &FacebookProvider{
		providerBase: newProviderBase(iam.ProviderFacebook, cfg, endpoints.Facebook, timeout),
		userInfoURL:  userInfoURL,
	}
}

func (p *FacebookProvider) FetchIdentity(ctx context.Context, token *oauth2.Token) (*ExternalIdentity, error) {
	var info struct {
		ID        string `json:"id"`
		Email     string `json:"email"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	}
	if err := p.getJSON(ctx, token, p.userInfoURL, &info); err != nil {
		return nil, err
	}
	if info.Email == "" {
		return nil, ErrNoPrimaryEmail().WithDetail("provider", string(iam.ProviderFacebook))
	}
	return &ExternalIdentity{
		Provider:   iam.ProviderFacebook,
		SubjectID:  info.ID,
		Email:      info.Email,
		GivenName:  info.FirstName,
		FamilyName: info.LastName,
	}, nil
}
