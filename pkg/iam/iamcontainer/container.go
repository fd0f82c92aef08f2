package iamcontainer

import (
	"github.com/egoauth/ego/pkg/config"
	"github.com/egoauth/ego/pkg/iam"
	"github.com/egoauth/ego/pkg/iam/apikey/apikeyinfra"
	"github.com/egoauth/ego/pkg/iam/apikey/apikeysrv"
	"github.com/egoauth/ego/pkg/iam/auth"
	"github.com/egoauth/ego/pkg/iam/auth/authinfra"
	"github.com/egoauth/ego/pkg/iam/principal/principalinfra"
	"github.com/egoauth/ego/pkg/iam/token"
	"github.com/egoauth/ego/pkg/logx"
	"github.com/jmoiron/sqlx"
	goredis "github.com/redis/go-redis/v9"
)

// ---------------------------------------------------------------------------
// Deps: explicit external dependencies this bounded context requires.
// No hidden globals, no ambient state — everything comes through here.
// ---------------------------------------------------------------------------

type Deps struct {
	DB    *sqlx.DB
	Redis *goredis.Client
	Cfg   *config.Config
}

// ---------------------------------------------------------------------------
// Container: the public surface of the IAM module.
// Only expose what cmd/ actually needs; repos and infra stay private.
// ---------------------------------------------------------------------------

type Container struct {
	TokenService  *token.Service
	APIKeyService *apikeysrv.APIKeyService
	SSOService    *auth.SSOService

	AuthHandlers   *auth.AuthHandlers
	AuthMiddleware *auth.TokenMiddleware
}

// ---------------------------------------------------------------------------
// New: constructs the entire IAM dependency graph.
// Order matters: infra → repos → services → handlers → middleware.
// ---------------------------------------------------------------------------

func New(deps Deps) (*Container, error) {
	logx.Info("🔧 Initializing IAM container...")

	c := &Container{}

	// ── Repositories ─────────────────────────────────────────────────────

	userRepo := principalinfra.NewPostgresUserRepository(deps.DB)
	appRepo := principalinfra.NewPostgresApplicationRepository(deps.DB)
	policyRepo := principalinfra.NewPostgresPolicyRepository(deps.DB)
	apiKeyRepo := apikeyinfra.NewPostgresAPIKeyRepository(deps.DB)

	// ── Infrastructure services ──────────────────────────────────────────

	var stateManager auth.StateManager
	if deps.Cfg.OAuth.StateManager.Type == "redis" {
		stateManager = authinfra.NewRedisStateManager(deps.Redis, deps.Cfg.OAuth.StateManager.TTL)
		logx.Info("  ✅ Using Redis state manager for OAuth")
	} else {
		stateManager = auth.NewInMemoryStateManager(deps.Cfg.OAuth.StateManager.TTL)
		logx.Warn("  ⚠️  Using in-memory state manager (not recommended for production)")
	}

	keyStore, err := token.NewKeyStoreFromConfig(&deps.Cfg.JWT)
	if err != nil {
		return nil, err
	}

	// ── Domain services ──────────────────────────────────────────────────

	c.TokenService = token.NewService(keyStore, userRepo, &deps.Cfg.JWT)

	c.APIKeyService = apikeysrv.NewAPIKeyService(
		apiKeyRepo,
		userRepo,
		appRepo,
		policyRepo,
		&deps.Cfg.APIKey,
	)

	// ── Identity providers ───────────────────────────────────────────────

	timeout := deps.Cfg.OAuth.ProviderTimeout
	providers := make(map[iam.ProviderType]auth.IdentityProvider)

	if deps.Cfg.OAuth.Google.Enabled {
		providers[iam.ProviderGoogle] = auth.NewGoogleProvider(&deps.Cfg.OAuth.Google, timeout)
		logx.Info("  ✅ Google SSO enabled")
	}
	if deps.Cfg.OAuth.Facebook.Enabled {
		providers[iam.ProviderFacebook] = auth.NewFacebookProvider(&deps.Cfg.OAuth.Facebook, timeout)
		logx.Info("  ✅ Facebook SSO enabled")
	}
	if deps.Cfg.OAuth.Github.Enabled {
		providers[iam.ProviderGithub] = auth.NewGithubProvider(&deps.Cfg.OAuth.Github, timeout)
		logx.Info("  ✅ GitHub SSO enabled")
	}
	if deps.Cfg.OAuth.Linkedin.Enabled {
		providers[iam.ProviderLinkedin] = auth.NewLinkedinProvider(&deps.Cfg.OAuth.Linkedin, timeout)
		logx.Info("  ✅ LinkedIn SSO enabled")
	}
	if deps.Cfg.OAuth.Orcid.Enabled {
		providers[iam.ProviderOrcid] = auth.NewOrcidProvider(&deps.Cfg.OAuth.Orcid, timeout)
		logx.Info("  ✅ ORCID SSO enabled")
	}

	c.SSOService = auth.NewSSOService(
		providers,
		stateManager,
		userRepo,
		appRepo,
		c.TokenService,
	)

	// ── Handlers & middleware ────────────────────────────────────────────

	c.AuthHandlers = auth.NewAuthHandlers(c.SSOService, c.TokenService, c.APIKeyService)
	c.AuthMiddleware = auth.NewTokenMiddleware(c.TokenService)

	logx.Info("✅ IAM container initialized")
	return c, nil
}
