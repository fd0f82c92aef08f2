package auth

import (
	"context"
	"strconv"
	"time"

	"github.com/egoauth/ego/pkg/config"
	"github.com/egoauth/ego/pkg/iam"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

const (
	githubUserInfoURL = "https://api.github.com/user"
	githubEmailURL    = "https://api.github.com/user/emails"
)

// GithubProvider resolves identities through the GitHub API. The default
// user payload carries no usable email; a secondary call to the emails
// endpoint is filtered for the entry marked both verified and primary.
type GithubProvider struct {
	providerBase
	userInfoURL string
	emailURL    string
}

func NewGithubProvider(cfg *config.OAuthClientConfig, timeout time.Duration) *GithubProvider {
	userInfoURL := cfg.UserInfoURL
	if userInfoURL == "" {
		userInfoURL = githubUserInfoURL
	}
	emailURL := cfg.EmailURL
	if emailURL == "" {
		emailURL = githubEmailURL
	}
	return &GithubProvider{
		providerBase: newProviderBase(iam.ProviderGithub, cfg, endpoints.GitHub, timeout),
		userInfoURL:  userInfoURL,
		emailURL:     emailURL,
	}
}

func (p *GithubProvider) FetchIdentity(ctx context.Context, token *oauth2.Token) (*ExternalIdentity, error) {
	var info struct {
		ID    int64   `json:"id"`
		Login string  `json:"login"`
		Name  *string `json:"name"`
	}
	if err := p.getJSON(ctx, token, p.userInfoURL, &info); err != nil {
		return nil, err
	}

	var emails []struct {
		Email    string `json:"email"`
		Primary  bool   `json:"primary"`
		Verified bool   `json:"verified"`
	}
	if err := p.getJSON(ctx, token, p.emailURL, &emails); err != nil {
		return nil, err
	}

	primary := ""
	for _, e := range emails {
		if e.Primary && e.Verified {
			primary = e.Email
			break
		}
	}
	if primary == "" {
		return nil, ErrNoPrimaryEmail().WithDetail("provider", string(iam.ProviderGithub))
	}

	// The display name is optional and may be null.
	var given, family string
	if info.Name != nil {
		given, family = splitDisplayName(*info.Name)
	}

	return &ExternalIdentity{
		Provider:   iam.ProviderGithub,
		SubjectID:  strconv.FormatInt(info.ID, 10),
		Email:      primary,
		GivenName:  given,
		FamilyName: family,
	}, nil
}
