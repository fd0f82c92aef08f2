package auth

import (
	"context"
	"net/url"
	"strconv"

	"github.com/egoauth/ego/pkg/errx"
	"github.com/egoauth/ego/pkg/iam"
	"github.com/egoauth/ego/pkg/iam/principal"
	"github.com/egoauth/ego/pkg/iam/token"
	"github.com/egoauth/ego/pkg/logx"
	"golang.org/x/oauth2"
)

// deniedConsentErrors are the provider-reported error tags that mean the
// user cancelled at the consent screen. Providers are inconsistent in the
// wording, so every match collapses onto the fixed "access_denied" type.
var deniedConsentErrors = map[string]bool{
	"access_denied":            true,
	"user_denied":              true,
	"user_cancelled_login":     true,
	"user_cancelled_authorize": true,
}

// SSOService drives the provider handshake end to end: consent URL out,
// callback in, verified email to principal, session token, redirect back to
// the client application.
type SSOService struct {
	providers map[iam.ProviderType]IdentityProvider
	states    StateManager
	users     principal.UserRepository
	apps      principal.ApplicationRepository
	tokens    *token.Service
}

func NewSSOService(
	providers map[iam.ProviderType]IdentityProvider,
	states StateManager,
	users principal.UserRepository,
	apps principal.ApplicationRepository,
	tokens *token.Service,
) *SSOService {
	return &SSOService{
		providers: providers,
		states:    states,
		users:     users,
		apps:      apps,
		tokens:    tokens,
	}
}

// Provider returns the adapter registered for a provider tag.
func (s *SSOService) Provider(tag string) (IdentityProvider, error) {
	providerType, err := iam.ResolveProviderType(tag)
	if err != nil {
		return nil, ErrProviderDisabled().WithDetail("provider", tag)
	}
	provider, ok := s.providers[providerType]
	if !ok {
		return nil, ErrProviderDisabled().WithDetail("provider", tag)
	}
	return provider, nil
}

// InitiateLogin validates the redirect targets against the application's
// registered URIs, pins them to a state nonce, and returns the provider
// consent URL. Targets are never defaulted: a missing or unregistered
// target is rejected outright.
func (s *SSOService) InitiateLogin(ctx context.Context, providerTag, clientID, redirectURI, errorRedirectURI string) (string, error) {
	provider, err := s.Provider(providerTag)
	if err != nil {
		return "", err
	}

	app, err := s.apps.FindByClientID(ctx, clientID)
	if err != nil {
		return "", err
	}

	if redirectURI == "" || redirectURI != app.RedirectURI {
		return "", ErrInvalidRedirect().WithDetail("client_id", clientID)
	}
	if errorRedirectURI == "" || errorRedirectURI != app.ErrorRedirectURI {
		return "", ErrInvalidRedirect().WithDetail("client_id", clientID).
			WithDetail("target", "error_redirect_uri")
	}

	nonce, err := s.states.Save(ctx, LoginState{
		Provider:         provider.Type(),
		ClientID:         clientID,
		RedirectURI:      redirectURI,
		ErrorRedirectURI: errorRedirectURI,
	})
	if err != nil {
		return "", err
	}

	logx.WithFields(logx.Fields{
		"provider":  string(provider.Type()),
		"client_id": clientID,
	}).Info("sso login initiated")
	return provider.AuthCodeURL(nonce), nil
}

// HandleCallback finishes the handshake. Only two failures ride the
// redirect channel: user-denied consent and a missing primary email.
// Everything else is fatal and surfaces as an error to the caller.
func (s *SSOService) HandleCallback(ctx context.Context, nonce, code, providerError string) (string, error) {
	state, err := s.states.Consume(ctx, nonce)
	if err != nil {
		return "", err
	}

	if providerError != "" {
		if deniedConsentErrors[providerError] {
			logx.WithField("provider", string(state.Provider)).Info("sso consent denied by user")
			return errorRedirect(state.ErrorRedirectURI, ErrRegistry.New(CodeUserDeniedAuthorization), ""), nil
		}
		return "", ErrProviderFailure(nil).
			WithDetail("provider", string(state.Provider)).
			WithDetail("provider_error", providerError)
	}

	provider, ok := s.providers[state.Provider]
	if !ok {
		return "", ErrProviderDisabled().WithDetail("provider", string(state.Provider))
	}

	providerToken, err := provider.Exchange(ctx, code)
	if err != nil {
		return "", err
	}

	identity, err := provider.FetchIdentity(ctx, providerToken)
	if err != nil {
		if errx.IsCode(err, CodeNoPrimaryEmail) {
			logx.WithField("provider", string(state.Provider)).Info("sso identity has no primary email")
			return errorRedirect(state.ErrorRedirectURI, ErrRegistry.New(CodeNoPrimaryEmail), string(state.Provider)), nil
		}
		return "", err
	}

	user, err := s.users.FindByEmail(ctx, identity.Email)
	if err != nil {
		return "", err
	}

	sessionToken, err := s.tokens.IssueUserToken(user)
	if err != nil {
		return "", err
	}

	logx.WithFields(logx.Fields{
		"provider":  string(state.Provider),
		"user_id":   user.ID.String(),
		"token_md5": token.Digest(sessionToken),
	}).Info("sso login completed")
	return successRedirect(state.RedirectURI, sessionToken), nil
}

// IssueForAccessToken is the legacy exchange: the client already holds a
// provider access token and trades it directly for a session token.
func (s *SSOService) IssueForAccessToken(ctx context.Context, providerTag, accessToken string) (string, error) {
	provider, err := s.Provider(providerTag)
	if err != nil {
		return "", err
	}

	identity, err := provider.FetchIdentity(ctx, &oauth2.Token{AccessToken: accessToken})
	if err != nil {
		return "", err
	}

	user, err := s.users.FindByEmail(ctx, identity.Email)
	if err != nil {
		return "", err
	}
	return s.tokens.IssueUserToken(user)
}

// errorRedirect appends error_code, error_type and, when the provider tag
// parses, provider_type to the pinned error redirect target.
func errorRedirect(base string, cause *errx.Error, providerTag string) string {
	u, err := url.Parse(base)
	if err != nil {
		// The target was validated at initiation; an unparsable URI here
		// means registration data changed underneath the flow.
		return base
	}
	q := u.Query()
	q.Set("error_code", strconv.Itoa(cause.HTTPStatus))
	q.Set("error_type", cause.Message)
	if providerTag != "" {
		if providerType, err := iam.ResolveProviderType(providerTag); err == nil {
			q.Set("provider_type", string(providerType))
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func successRedirect(base, sessionToken string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	q := u.Query()
	q.Set("token", sessionToken)
	u.RawQuery = q.Encode()
	return u.String()
}
