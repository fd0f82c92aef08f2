package auth_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/egoauth/ego/pkg/config"
	"github.com/egoauth/ego/pkg/errx"
	"github.com/egoauth/ego/pkg/iam"
	"github.com/egoauth/ego/pkg/iam/apikey"
	"github.com/egoauth/ego/pkg/iam/apikey/apikeysrv"
	"github.com/egoauth/ego/pkg/iam/auth"
	"github.com/egoauth/ego/pkg/iam/principal"
	"github.com/egoauth/ego/pkg/iam/scope"
	"github.com/egoauth/ego/pkg/kernel"
	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
)

type fakePolicyRepo struct {
	policies map[string]*principal.Policy
}

func (r *fakePolicyRepo) FindByName(ctx context.Context, name string) (*principal.Policy, error) {
	if p, ok := r.policies[name]; ok {
		return p, nil
	}
	return nil, principal.ErrPolicyNotFound().WithDetail("policy", name)
}

type memoryKeyRepo struct {
	keys map[string]apikey.APIKey
}

func newMemoryKeyRepo() *memoryKeyRepo {
	return &memoryKeyRepo{keys: make(map[string]apikey.APIKey)}
}

func (r *memoryKeyRepo) Save(ctx context.Context, key apikey.APIKey) error {
	r.keys[key.Name] = key
	return nil
}

func (r *memoryKeyRepo) FindBySecret(ctx context.Context, secret string) (*apikey.APIKey, error) {
	if key, ok := r.keys[secret]; ok {
		return &key, nil
	}
	return nil, apikey.ErrInvalidApiKey().WithDetail("reason", "not found")
}

func (r *memoryKeyRepo) FindByOwner(ctx context.Context, ownerID kernel.UserID) ([]*apikey.APIKey, error) {
	var out []*apikey.APIKey
	for name := range r.keys {
		key := r.keys[name]
		if key.OwnerID == ownerID {
			out = append(out, &key)
		}
	}
	return out, nil
}

func (r *memoryKeyRepo) Revoke(ctx context.Context, secret string) error {
	key, ok := r.keys[secret]
	if !ok {
		return apikey.ErrInvalidApiKey().WithDetail("reason", "not found")
	}
	if key.Revoked {
		return apikey.ErrInvalidApiKey().WithDetail("reason", "already revoked")
	}
	key.Revoked = true
	r.keys[secret] = key
	return nil
}

type handlerFixture struct {
	*ssoFixture
	app     *fiber.App
	apiKeys *apikeysrv.APIKeyService
	basic   string
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	f := newSSOFixture(t)

	f.user.Permissions = []principal.Permission{
		{ID: "perm-1", Policy: principal.Policy{ID: "p-1", Name: "StudyA"}, Level: scope.Read},
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("portal-secret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	app := &principal.Application{
		ID:               kernel.NewApplicationID("a-1"),
		Name:             "portal",
		ClientID:         "portal-client",
		ClientSecretHash: string(hash),
		Status:           iam.StatusApproved,
		Type:             iam.ApplicationTypeClient,
		RedirectURI:      redirectURI,
		ErrorRedirectURI: errorRedirectURI,
	}
	apps := &fakeAppRepo{app: app}
	users := &fakeUserRepo{users: map[string]*principal.User{f.user.Email: f.user}}
	policies := &fakePolicyRepo{policies: map[string]*principal.Policy{
		"StudyA": {ID: "p-1", Name: "StudyA"},
	}}

	apiKeys := apikeysrv.NewAPIKeyService(newMemoryKeyRepo(), users, apps, policies, &config.APIKeyConfig{
		DurationDays: 365,
		MaxLength:    2048,
	})

	fiberApp := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if e, ok := err.(*errx.Error); ok {
				return c.Status(e.HTTPStatus).JSON(e)
			}
			return c.Status(fiber.StatusInternalServerError).SendString(err.Error())
		},
	})

	handlers := auth.NewAuthHandlers(f.sso, f.tokens, apiKeys)
	handlers.RegisterRoutes(fiberApp, auth.NewTokenMiddleware(f.tokens))

	return &handlerFixture{
		ssoFixture: f,
		app:        fiberApp,
		apiKeys:    apiKeys,
		basic:      "Basic " + base64.StdEncoding.EncodeToString([]byte("portal-client:portal-secret")),
	}
}

func TestVerifyEndpoint(t *testing.T) {
	f := newHandlerFixture(t)
	signed, err := f.tokens.IssueUserToken(f.user)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/oauth/token/verify", nil)
	req.Header.Set("token", signed)
	resp, err := f.app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	req = httptest.NewRequest(http.MethodGet, "/oauth/token/verify", nil)
	req.Header.Set("token", "garbage")
	resp, err = f.app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestPublicKeyEndpoint(t *testing.T) {
	f := newHandlerFixture(t)

	resp, err := f.app.Test(httptest.NewRequest(http.MethodGet, "/oauth/token/public_key", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "BEGIN PUBLIC KEY") {
		t.Fatalf("body = %q", body)
	}
}

func TestRefreshEndpoint(t *testing.T) {
	f := newHandlerFixture(t)
	signed, err := f.tokens.IssueUserToken(f.user)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/oauth/token", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+signed)
	resp, err := f.app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	if _, err := f.tokens.Validate(string(body)); err != nil {
		t.Fatalf("returned token invalid: %v", err)
	}

	// No bearer means no principal to refresh for.
	resp, err = f.app.Test(httptest.NewRequest(http.MethodGet, "/oauth/token", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestLoginEndpointRedirectsToProvider(t *testing.T) {
	f := newHandlerFixture(t)

	target := "/oauth/login/github?client_id=portal-client" +
		"&redirect_uri=" + url.QueryEscape(redirectURI) +
		"&error_redirect_uri=" + url.QueryEscape(errorRedirectURI)
	resp, err := f.app.Test(httptest.NewRequest(http.MethodGet, target, nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("status = %d, want 302", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); !strings.HasPrefix(loc, "https://provider.example.org/auth") {
		t.Fatalf("location = %q", loc)
	}
}

func TestIssueAPIKeyRequiresBearer(t *testing.T) {
	f := newHandlerFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/o/api_key", strings.NewReader(`{"user_id":"u-1","scopes":["StudyA.READ"]}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := f.app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestIssueAndCheckAPIKeyEndpoints(t *testing.T) {
	f := newHandlerFixture(t)
	signed, err := f.tokens.IssueUserToken(f.user)
	if err != nil {
		t.Fatalf("issue session token: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/o/api_key", strings.NewReader(`{"user_id":"u-1","scopes":["StudyA.READ"],"description":"ci"}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+signed)
	resp, err := f.app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("status = %d, body = %s", resp.StatusCode, body)
	}

	var issued struct {
		APIKey string   `json:"apiKey"`
		Scope  []string `json:"scope"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&issued); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if issued.APIKey == "" || len(issued.Scope) != 1 || issued.Scope[0] != "StudyA.READ" {
		t.Fatalf("issued = %+v", issued)
	}

	form := "apiKey=" + url.QueryEscape(issued.APIKey)
	req = httptest.NewRequest(http.MethodPost, "/o/api_key/check", strings.NewReader(form))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationForm)
	req.Header.Set(fiber.HeaderAuthorization, f.basic)
	resp, err = f.app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("check status = %d, body = %s", resp.StatusCode, body)
	}

	var checked struct {
		Owner string   `json:"owner"`
		Scope []string `json:"scope"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&checked); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if checked.Owner != "alice" || len(checked.Scope) != 1 {
		t.Fatalf("checked = %+v", checked)
	}
}

func TestScopesEndpoint(t *testing.T) {
	f := newHandlerFixture(t)

	resp, err := f.app.Test(httptest.NewRequest(http.MethodGet, "/o/scopes?userName=alice", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body struct {
		Scopes []string `json:"scopes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Scopes) != 1 || body.Scopes[0] != "StudyA.READ" {
		t.Fatalf("scopes = %v", body.Scopes)
	}

	resp, err = f.app.Test(httptest.NewRequest(http.MethodGet, "/o/scopes", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}
