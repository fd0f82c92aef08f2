package auth

import (
	"context"
	"strings"
	"time"

	"github.com/egoauth/ego/pkg/config"
	"github.com/egoauth/ego/pkg/iam"
	"golang.org/x/oauth2"
)

const (
	orcidAuthURL     = "https://orcid.org/oauth/authorize"
	orcidTokenURL    = "https://orcid.org/oauth/token"
	orcidUserInfoURL = "https://orcid.org/oauth/userinfo"

	// Email lives in the public record API, keyed by the ORCID iD from the
	// user-info payload. The placeholder is substituted with the subject.
	orcidEmailURLTemplate = "https://pub.orcid.org/v3.0/{orcid}/email"
)

// OrcidProvider resolves identities through ORCID. The user-info payload
// carries the ORCID iD as the subject; the email requires a secondary call
// against the public record keyed by that iD.
type OrcidProvider struct {
	providerBase
	userInfoURL      string
	emailURLTemplate string
}

func NewOrcidProvider(cfg *config.OAuthClientConfig, timeout time.Duration) *OrcidProvider {
	userInfoURL := cfg.UserInfoURL
	if userInfoURL == "" {
		userInfoURL = orcidUserInfoURL
	}
	emailURLTemplate := cfg.EmailURL
	if emailURLTemplate == "" {
		emailURLTemplate = orcidEmailURLTemplate
	}
	endpoint := oauth2.Endpoint{AuthURL: orcidAuthURL, TokenURL: orcidTokenURL}
	return &OrcidProvider{
		providerBase:     newProviderBase(iam.ProviderOrcid, cfg, endpoint, timeout),
		userInfoURL:      userInfoURL,
		emailURLTemplate: emailURLTemplate,
	}
}

func (p *OrcidProvider) FetchIdentity(ctx context.Context, token *oauth2.Token) (*ExternalIdentity, error) {
	var info struct {
		Sub        string `json:"sub"`
		GivenName  string `json:"given_name"`
		FamilyName string `json:"family_name"`
	}
	if err := p.getJSON(ctx, token, p.userInfoURL, &info); err != nil {
		return nil, err
	}

	var record struct {
		Email []struct {
			Email    string `json:"email"`
			Primary  bool   `json:"primary"`
			Verified bool   `json:"verified"`
		} `json:"email"`
	}
	emailURL := strings.Replace(p.emailURLTemplate, "{orcid}", info.Sub, 1)
	if err := p.getJSON(ctx, token, emailURL, &record); err != nil {
		return nil, err
	}

	// Prefer the primary verified email; fall back to any verified one.
	email := ""
	for _, e := range record.Email {
		if !e.Verified {
			continue
		}
		if e.Primary {
			email = e.Email
			break
		}
		if email == "" {
			email = e.Email
		}
	}
	if email == "" {
		return nil, ErrNoPrimaryEmail().WithDetail("provider", string(iam.ProviderOrcid))
	}

	return &ExternalIdentity{
		Provider:   iam.ProviderOrcid,
		SubjectID:  info.Sub,
		Email:      email,
		GivenName:  info.GivenName,
		FamilyName: info.FamilyName,
	}, nil
}
