package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/egoauth/ego/pkg/config"
	"github.com/egoauth/ego/pkg/iam"
	"golang.org/x/oauth2"
)

// providerBase carries the handshake mechanics shared by every provider:
// consent URL construction, code exchange, and bearer-authenticated JSON
// fetches over a bounded-timeout client.
type providerBase struct {
	providerType iam.ProviderType
	oauth        *oauth2.Config
	client       *http.Client
}

func newProviderBase(providerType iam.ProviderType, cfg *config.OAuthClientConfig, endpoint oauth2.Endpoint, timeout time.Duration) providerBase {
	if cfg.AuthURL != "" {
		endpoint.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}
	return providerBase{
		providerType: providerType,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint:     endpoint,
		},
		client: &http.Client{Timeout: timeout},
	}
}

func (p *providerBase) Type() iam.ProviderType {
	return p.providerType
}

func (p *providerBase) AuthCodeURL(state string) string {
	return p.oauth.AuthCodeURL(state)
}

func (p *providerBase) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.client)
	token, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, ErrProviderFailure(err).WithDetail("provider", string(p.providerType))
	}
	return token, nil
}

// getJSON performs a bearer-authenticated GET and decodes the response body.
func (p *providerBase) getJSON(ctx context.Context, token *oauth2.Token, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return ErrProviderFailure(err).WithDetail("provider", string(p.providerType))
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return ErrProviderFailure(err).WithDetail("provider", string(p.providerType))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return ErrProviderFailure(fmt.Errorf("status %d: %s", resp.StatusCode, body)).
			WithDetail("provider", string(p.providerType))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return ErrUnexpectedPayload(err).WithDetail("provider", string(p.providerType))
	}
	return nil
}

// splitDisplayName breaks a free-form display name into given and family
// parts. Providers may omit the name entirely; both parts may be empty.
func splitDisplayName(name string) (given, family string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ""
	}
	parts := strings.SplitN(name, " ", 2)
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], parts[1]
}
