package auth_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/egoauth/ego/pkg/config"
	"github.com/egoauth/ego/pkg/errx"
	"github.com/egoauth/ego/pkg/iam"
	"github.com/egoauth/ego/pkg/iam/auth"
	"github.com/egoauth/ego/pkg/iam/principal"
	"github.com/egoauth/ego/pkg/iam/token"
	"github.com/egoauth/ego/pkg/kernel"
	"golang.org/x/oauth2"
)

// ----------------------------------------------------------------------------
// Fakes
// ----------------------------------------------------------------------------

type fakeProvider struct {
	providerType iam.ProviderType
	identity     *auth.ExternalIdentity
	fetchErr     error
	exchangeErr  error
}

func (p *fakeProvider) Type() iam.ProviderType { return p.providerType }

func (p *fakeProvider) AuthCodeURL(state string) string {
	return "https://provider.example.org/auth?state=" + state
}

func (p *fakeProvider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	if p.exchangeErr != nil {
		return nil, p.exchangeErr
	}
	return &oauth2.Token{AccessToken: "provider-access-token"}, nil
}

func (p *fakeProvider) FetchIdentity(ctx context.Context, tok *oauth2.Token) (*auth.ExternalIdentity, error) {
	if p.fetchErr != nil {
		return nil, p.fetchErr
	}
	return p.identity, nil
}

type fakeUserRepo struct {
	users map[string]*principal.User
}

func (r *fakeUserRepo) FindByID(ctx context.Context, id kernel.UserID) (*principal.User, error) {
	for _, u := range r.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, principal.ErrUserNotFound()
}

func (r *fakeUserRepo) FindByName(ctx context.Context, name string) (*principal.User, error) {
	for _, u := range r.users {
		if u.Name == name {
			return u, nil
		}
	}
	return nil, principal.ErrUserNotFound()
}

func (r *fakeUserRepo) FindByEmail(ctx context.Context, email string) (*principal.User, error) {
	if u, ok := r.users[email]; ok {
		return u, nil
	}
	return nil, principal.ErrUserNotFound()
}

type fakeAppRepo struct {
	app *principal.Application
}

func (r *fakeAppRepo) FindByID(ctx context.Context, id kernel.ApplicationID) (*principal.Application, error) {
	if r.app != nil && r.app.ID == id {
		return r.app, nil
	}
	return nil, principal.ErrApplicationNotFound()
}

func (r *fakeAppRepo) FindByClientID(ctx context.Context, clientID string) (*principal.Application, error) {
	if r.app != nil && r.app.ClientID == clientID {
		return r.app, nil
	}
	return nil, principal.ErrApplicationNotFound()
}

// ----------------------------------------------------------------------------
// Fixture
// ----------------------------------------------------------------------------

const (
	redirectURI      = "https://portal.example.org/cb"
	errorRedirectURI = "https://portal.example.org/error"
)

type ssoFixture struct {
	sso      *auth.SSOService
	states   auth.StateManager
	provider *fakeProvider
	tokens   *token.Service
	user     *principal.User
}

func newSSOFixture(t *testing.T) *ssoFixture {
	t.Helper()

	user := &principal.User{
		ID:     kernel.NewUserID("u-1"),
		Name:   "alice",
		Email:  "alice@example.org",
		Status: iam.StatusApproved,
		Type:   iam.UserTypeUser,
	}
	app := &principal.Application{
		ID:               kernel.NewApplicationID("a-1"),
		Name:             "portal",
		ClientID:         "portal-client",
		Status:           iam.StatusApproved,
		Type:             iam.ApplicationTypeClient,
		RedirectURI:      redirectURI,
		ErrorRedirectURI: errorRedirectURI,
	}

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	users := &fakeUserRepo{users: map[string]*principal.User{user.Email: user}}
	tokens := token.NewService(token.NewKeyStore(key), users, &config.JWTConfig{
		Issuer:   "ego",
		Duration: 24 * time.Hour,
	})

	provider := &fakeProvider{
		providerType: iam.ProviderGithub,
		identity: &auth.ExternalIdentity{
			Provider:  iam.ProviderGithub,
			SubjectID: "42",
			Email:     user.Email,
		},
	}
	states := auth.NewInMemoryStateManager(time.Minute)

	sso := auth.NewSSOService(
		map[iam.ProviderType]auth.IdentityProvider{iam.ProviderGithub: provider},
		states,
		users,
		&fakeAppRepo{app: app},
		tokens,
	)

	return &ssoFixture{sso: sso, states: states, provider: provider, tokens: tokens, user: user}
}

func (f *ssoFixture) startFlow(t *testing.T) string {
	t.Helper()
	consentURL, err := f.sso.InitiateLogin(context.Background(), "github", "portal-client", redirectURI, errorRedirectURI)
	if err != nil {
		t.Fatalf("initiate login: %v", err)
	}
	u, err := url.Parse(consentURL)
	if err != nil {
		t.Fatalf("parse consent url: %v", err)
	}
	nonce := u.Query().Get("state")
	if nonce == "" {
		t.Fatalf("consent url carries no state: %s", consentURL)
	}
	return nonce
}

// ----------------------------------------------------------------------------
// InitiateLogin
// ----------------------------------------------------------------------------

func TestInitiateLoginRejectsUnregisteredRedirect(t *testing.T) {
	f := newSSOFixture(t)

	_, err := f.sso.InitiateLogin(context.Background(), "github", "portal-client", "https://evil.example.org/cb", errorRedirectURI)
	if !errx.IsCode(err, auth.CodeInvalidRedirect) {
		t.Fatalf("error = %v, want invalid redirect", err)
	}
}

func TestInitiateLoginRejectsMissingRedirect(t *testing.T) {
	f := newSSOFixture(t)

	_, err := f.sso.InitiateLogin(context.Background(), "github", "portal-client", "", errorRedirectURI)
	if !errx.IsCode(err, auth.CodeInvalidRedirect) {
		t.Fatalf("error = %v, want invalid redirect", err)
	}

	_, err = f.sso.InitiateLogin(context.Background(), "github", "portal-client", redirectURI, "")
	if !errx.IsCode(err, auth.CodeInvalidRedirect) {
		t.Fatalf("error = %v, want invalid redirect", err)
	}
}

func TestInitiateLoginRejectsUnknownProvider(t *testing.T) {
	f := newSSOFixture(t)

	_, err := f.sso.InitiateLogin(context.Background(), "myspace", "portal-client", redirectURI, errorRedirectURI)
	if !errx.IsCode(err, auth.CodeProviderDisabled) {
		t.Fatalf("error = %v, want provider disabled", err)
	}
}

func TestInitiateLoginRejectsUnknownClient(t *testing.T) {
	f := newSSOFixture(t)

	_, err := f.sso.InitiateLogin(context.Background(), "github", "ghost-client", redirectURI, errorRedirectURI)
	if !errx.IsCode(err, principal.CodeApplicationNotFound) {
		t.Fatalf("error = %v, want application not found", err)
	}
}

// ----------------------------------------------------------------------------
// HandleCallback
// ----------------------------------------------------------------------------

func TestCallbackSuccessRedirectsWithToken(t *testing.T) {
	f := newSSOFixture(t)
	nonce := f.startFlow(t)

	target, err := f.sso.HandleCallback(context.Background(), nonce, "auth-code", "")
	if err != nil {
		t.Fatalf("callback: %v", err)
	}

	u, err := url.Parse(target)
	if err != nil {
		t.Fatalf("parse target: %v", err)
	}
	if !strings.HasPrefix(target, redirectURI) {
		t.Fatalf("target = %s, want prefix %s", target, redirectURI)
	}

	sessionToken := u.Query().Get("token")
	if sessionToken == "" {
		t.Fatal("redirect carries no token")
	}
	claims, err := f.tokens.Validate(sessionToken)
	if err != nil {
		t.Fatalf("validate issued token: %v", err)
	}
	if claims.Subject != "u-1" {
		t.Fatalf("subject = %q, want u-1", claims.Subject)
	}
}

func TestCallbackUserDeniedConsent(t *testing.T) {
	f := newSSOFixture(t)

	// Providers word user cancellation differently; all collapse onto the
	// fixed access_denied type.
	for _, providerError := range []string{"access_denied", "user_cancelled_login"} {
		nonce := f.startFlow(t)

		target, err := f.sso.HandleCallback(context.Background(), nonce, "", providerError)
		if err != nil {
			t.Fatalf("callback(%s): %v", providerError, err)
		}

		u, err := url.Parse(target)
		if err != nil {
			t.Fatalf("parse target: %v", err)
		}
		if !strings.HasPrefix(target, errorRedirectURI) {
			t.Fatalf("target = %s, want prefix %s", target, errorRedirectURI)
		}
		q := u.Query()
		if q.Get("error_code") != "403" || q.Get("error_type") != "access_denied" {
			t.Fatalf("query = %v", q)
		}
	}
}

func TestCallbackNoPrimaryEmailRedirects(t *testing.T) {
	f := newSSOFixture(t)
	f.provider.fetchErr = auth.ErrNoPrimaryEmail()
	nonce := f.startFlow(t)

	target, err := f.sso.HandleCallback(context.Background(), nonce, "auth-code", "")
	if err != nil {
		t.Fatalf("callback: %v", err)
	}

	u, err := url.Parse(target)
	if err != nil {
		t.Fatalf("parse target: %v", err)
	}
	q := u.Query()
	if q.Get("error_code") != "403" {
		t.Fatalf("error_code = %q", q.Get("error_code"))
	}
	if q.Get("error_type") != "No primary email found" {
		t.Fatalf("error_type = %q", q.Get("error_type"))
	}
	if q.Get("provider_type") != "GITHUB" {
		t.Fatalf("provider_type = %q", q.Get("provider_type"))
	}
}

func TestCallbackOtherProviderErrorIsFatal(t *testing.T) {
	f := newSSOFixture(t)
	nonce := f.startFlow(t)

	_, err := f.sso.HandleCallback(context.Background(), nonce, "", "temporarily_unavailable")
	if !errx.IsCode(err, auth.CodeProviderFailure) {
		t.Fatalf("error = %v, want provider failure", err)
	}
}

func TestCallbackExchangeFailureIsFatal(t *testing.T) {
	f := newSSOFixture(t)
	f.provider.exchangeErr = auth.ErrProviderFailure(nil)
	nonce := f.startFlow(t)

	_, err := f.sso.HandleCallback(context.Background(), nonce, "auth-code", "")
	if !errx.IsCode(err, auth.CodeProviderFailure) {
		t.Fatalf("error = %v, want provider failure", err)
	}
}

func TestCallbackUnknownStateIsFatal(t *testing.T) {
	f := newSSOFixture(t)

	_, err := f.sso.HandleCallback(context.Background(), "bogus-nonce", "auth-code", "")
	if !errx.IsCode(err, auth.CodeInvalidState) {
		t.Fatalf("error = %v, want invalid state", err)
	}
}

func TestCallbackStateIsSingleUse(t *testing.T) {
	f := newSSOFixture(t)
	nonce := f.startFlow(t)

	if _, err := f.sso.HandleCallback(context.Background(), nonce, "auth-code", ""); err != nil {
		t.Fatalf("first callback: %v", err)
	}
	if _, err := f.sso.HandleCallback(context.Background(), nonce, "auth-code", ""); !errx.IsCode(err, auth.CodeInvalidState) {
		t.Fatalf("replayed callback error = %v, want invalid state", err)
	}
}

func TestCallbackUnknownEmailIsFatal(t *testing.T) {
	f := newSSOFixture(t)
	f.provider.identity.Email = "stranger@example.org"
	nonce := f.startFlow(t)

	_, err := f.sso.HandleCallback(context.Background(), nonce, "auth-code", "")
	if !errx.IsCode(err, principal.CodeUserNotFound) {
		t.Fatalf("error = %v, want user not found", err)
	}
}

// ----------------------------------------------------------------------------
// Legacy exchange
// ----------------------------------------------------------------------------

func TestLegacyExchangeIssuesSessionToken(t *testing.T) {
	f := newSSOFixture(t)

	signed, err := f.sso.IssueForAccessToken(context.Background(), "github", "provider-access-token")
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}

	claims, err := f.tokens.Validate(signed)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.Subject != "u-1" {
		t.Fatalf("subject = %q", claims.Subject)
	}
}

func TestLegacyExchangeUnknownProvider(t *testing.T) {
	f := newSSOFixture(t)

	_, err := f.sso.IssueForAccessToken(context.Background(), "myspace", "provider-access-token")
	if !errx.IsCode(err, auth.CodeProviderDisabled) {
		t.Fatalf("error = %v, want provider disabled", err)
	}
}
