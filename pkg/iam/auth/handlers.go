package auth

import (
	"github.com/egoauth/ego/pkg/iam"
	"github.com/egoauth/ego/pkg/iam/apikey"
	"github.com/egoauth/ego/pkg/iam/apikey/apikeysrv"
	"github.com/egoauth/ego/pkg/iam/token"
	"github.com/egoauth/ego/pkg/kernel"
	"github.com/gofiber/fiber/v2"
)

// AuthHandlers exposes the token, SSO and api-key endpoints.
type AuthHandlers struct {
	sso     *SSOService
	tokens  *token.Service
	apiKeys *apikeysrv.APIKeyService
}

func NewAuthHandlers(sso *SSOService, tokens *token.Service, apiKeys *apikeysrv.APIKeyService) *AuthHandlers {
	return &AuthHandlers{
		sso:     sso,
		tokens:  tokens,
		apiKeys: apiKeys,
	}
}

// RegisterRoutes mounts the auth surface. Static /oauth/token routes are
// registered before the :provider variants so fiber matches them first.
func (h *AuthHandlers) RegisterRoutes(app *fiber.App, authMW *TokenMiddleware) {
	oauth := app.Group("/oauth")
	oauth.Get("/token", h.IssueOrRefreshToken)
	oauth.Get("/token/verify", h.VerifyToken)
	oauth.Get("/token/public_key", h.PublicKey)
	oauth.Get("/login/:provider", h.Login)
	oauth.Get("/callback/:provider", h.Callback)
	oauth.Get("/:provider/token", h.LegacyExchange)

	o := app.Group("/o")
	o.Post("/api_key", authMW.Authenticate(), h.IssueAPIKey)
	o.Get("/api_key", authMW.Authenticate(), h.ListAPIKeys)
	o.Post("/api_key/check", h.CheckAPIKey)
	o.Post("/api_key/revoke", authMW.Authenticate(), h.RevokeAPIKey)
	o.Get("/scopes", h.UserScopes)
}

// IssueOrRefreshToken trades a valid bearer session token for a fresh one
// carrying the principal's current scopes and the remaining validity window.
func (h *AuthHandlers) IssueOrRefreshToken(c *fiber.Ctx) error {
	raw := bearerToken(c)
	if raw == "" {
		return iam.ErrUnauthorized().WithDetail("reason", "missing bearer token")
	}

	fresh, err := h.tokens.Refresh(c.Context(), raw)
	if err != nil {
		return err
	}
	return c.SendString(fresh)
}

// LegacyExchange accepts a provider access token in the "token" header and
// returns a session token for the matching user.
func (h *AuthHandlers) LegacyExchange(c *fiber.Ctx) error {
	accessToken := c.Get("token")
	if accessToken == "" {
		return iam.ErrUnauthorized().WithDetail("reason", "missing provider access token")
	}

	sessionToken, err := h.sso.IssueForAccessToken(c.Context(), c.Params("provider"), accessToken)
	if err != nil {
		return err
	}
	return c.SendString(sessionToken)
}

// Login starts the SSO handshake and redirects the browser to the provider
// consent screen.
func (h *AuthHandlers) Login(c *fiber.Ctx) error {
	consentURL, err := h.sso.InitiateLogin(
		c.Context(),
		c.Params("provider"),
		c.Query("client_id"),
		c.Query("redirect_uri"),
		c.Query("error_redirect_uri"),
	)
	if err != nil {
		return err
	}
	return c.Redirect(consentURL, fiber.StatusFound)
}

// Callback finishes the handshake. Classified failures redirect back to the
// application's error target; anything else surfaces as a fatal error.
func (h *AuthHandlers) Callback(c *fiber.Ctx) error {
	target, err := h.sso.HandleCallback(
		c.Context(),
		c.Query("state"),
		c.Query("code"),
		c.Query("error"),
	)
	if err != nil {
		return err
	}
	return c.Redirect(target, fiber.StatusFound)
}

// VerifyToken validates a session token from the "token" header. Valid
// tokens get a bodyless 200.
func (h *AuthHandlers) VerifyToken(c *fiber.Ctx) error {
	raw := c.Get("token")
	if raw == "" {
		return iam.ErrInvalidToken().WithDetail("reason", "missing token header")
	}
	if _, err := h.tokens.Validate(raw); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusOK)
}

// PublicKey exposes the verification key material as PEM text.
func (h *AuthHandlers) PublicKey(c *fiber.Ctx) error {
	pem, err := h.tokens.PublicKeyPEM()
	if err != nil {
		return err
	}
	return c.SendString(pem)
}

type issueAPIKeyRequest struct {
	UserID      string   `json:"user_id"`
	Scopes      []string `json:"scopes"`
	Description string   `json:"description"`
}

// IssueAPIKey mints a long-lived api key for a user.
func (h *AuthHandlers) IssueAPIKey(c *fiber.Ctx) error {
	var req issueAPIKeyRequest
	if err := c.BodyParser(&req); err != nil {
		return apikey.ErrInvalidRequest().WithDetail("reason", "malformed request body")
	}
	if req.UserID == "" {
		return apikey.ErrInvalidRequest().WithDetail("reason", "user_id is required")
	}

	key, err := h.apiKeys.Issue(c.Context(), kernel.UserID(req.UserID), req.Scopes, req.Description)
	if err != nil {
		return err
	}
	return c.JSON(apikey.Response{
		APIKey:      key.Name,
		Scope:       key.ScopeStrings(),
		Exp:         key.SecondsUntilExpiry(),
		Description: key.Description,
	})
}

// ListAPIKeys returns the user's non-revoked keys.
func (h *AuthHandlers) ListAPIKeys(c *fiber.Ctx) error {
	userID := c.Query("user_id")
	if userID == "" {
		return apikey.ErrInvalidRequest().WithDetail("reason", "user_id is required")
	}

	keys, err := h.apiKeys.ListActive(c.Context(), kernel.UserID(userID))
	if err != nil {
		return err
	}
	return c.JSON(keys)
}

// CheckAPIKey verifies an api key on behalf of a Basic-authenticated client
// application.
func (h *AuthHandlers) CheckAPIKey(c *fiber.Ctx) error {
	resp, err := h.apiKeys.Check(c.Context(), c.Get(fiber.HeaderAuthorization), c.FormValue("apiKey"))
	if err != nil {
		return err
	}
	return c.JSON(resp)
}

// RevokeAPIKey revokes a key by its secret under the caller's authority.
func (h *AuthHandlers) RevokeAPIKey(c *fiber.Ctx) error {
	secret := c.Query("apiKey")
	if secret == "" {
		secret = c.FormValue("apiKey")
	}

	if err := h.apiKeys.Revoke(c.Context(), CallerFromLocals(c), secret); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusOK)
}

// UserScopes returns the current effective scope strings for a user name.
func (h *AuthHandlers) UserScopes(c *fiber.Ctx) error {
	userName := c.Query("userName")
	if userName == "" {
		return apikey.ErrInvalidRequest().WithDetail("reason", "userName is required")
	}

	scopes, err := h.apiKeys.UserScopes(c.Context(), userName)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"scopes": scopes})
}
