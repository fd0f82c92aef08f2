package auth

import (
	"context"
	"time"

	"github.com/egoauth/ego/pkg/config"
	"github.com/egoauth/ego/pkg/iam"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

const (
	linkedinUserInfoURL = "https://api.linkedin.com/v2/me"
	linkedinEmailURL    = "https://api.linkedin.com/v2/emailAddress?q=members&projection=(elements*(handle~))"
)

// LinkedinProvider resolves identities through the LinkedIn API. The email
// lives behind a secondary projection call keyed by the access token.
type LinkedinProvider struct {
	providerBase
	userInfoURL string
	emailURL    string
}

func NewLinkedinProvider(cfg *config.OAuthClientConfig, timeout time.Duration) *LinkedinProvider {
	userInfoURL := cfg.UserInfoURL
	if userInfoURL == "" {
		userInfoURL = linkedinUserInfoURL
	}
	emailURL := cfg.EmailURL
	if emailURL == "" {
		emailURL = linkedinEmailURL
	}
	return &LinkedinProvider{
		providerBase: newProviderBase(iam.ProviderLinkedin, cfg, endpoints.LinkedIn, timeout),
		userInfoURL:  userInfoURL,
		emailURL:     emailURL,
	}
}

func (p *LinkedinProvider) FetchIdentity(ctx context.Context, token *oauth2.Token) (*ExternalIdentity, error) {
	var info struct {
		ID        string `json:"id"`
		FirstName string `json:"localizedFirstName"`
		LastName  string `json:"localizedLastName"`
	}
	if err := p.getJSON(ctx, token, p.userInfoURL, &info); err != nil {
		return nil, err
	}

	var emailResp struct {
		Elements []struct {
			Handle struct {
				EmailAddress string `json:"emailAddress"`
			} `json:"handle~"`
		} `json:"elements"`
	}
	if err := p.getJSON(ctx, token, p.emailURL, &emailResp); err != nil {
		return nil, err
	}

	email := ""
	if len(emailResp.Elements) > 0 {
		email = emailResp.Elements[0].Handle.EmailAddress
	}
	if email == "" {
		return nil, ErrNoPrimaryEmail().WithDetail("provider", string(iam.ProviderLinkedin))
	}

	return &ExternalIdentity{
		Provider:   iam.ProviderLinkedin,
		SubjectID:  info.ID,
		Email:      email,
		GivenName:  info.FirstName,
		FamilyName: info.LastName,
	}, nil
}
