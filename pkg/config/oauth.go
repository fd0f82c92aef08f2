package config

import "time"

// OAuthConfig configures the SSO bridge: one client per identity provider
// plus the state manager that pins redirect targets to in-flight logins.
type OAuthConfig struct {
	Google   OAuthClientConfig
	Facebook OAuthClientConfig
	Github   OAuthClientConfig
	Linkedin OAuthClientConfig
	Orcid    OAuthClientConfig

	StateManager StateManagerConfig

	// ProviderTimeout bounds every outbound user-info/email call.
	ProviderTimeout time.Duration
}

// OAuthClientConfig holds the registration of this service with one provider.
type OAuthClientConfig struct {
	Enabled      bool
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string

	// Endpoint overrides. Defaults are provider-specific and set by the
	// provider constructors; these exist so tests can point at fakes.
	AuthURL     string
	TokenURL    string
	UserInfoURL string
	EmailURL    string
}

// StateManagerConfig selects the OAuth state backend.
type StateManagerConfig struct {
	Type string // "redis" or "memory"
	TTL  time.Duration
}

func loadOAuthConfig() OAuthConfig {
	return OAuthConfig{
		Google:   loadOAuthClient("GOOGLE", []string{"openid", "email", "profile"}),
		Facebook: loadOAuthClient("FACEBOOK", []string{"email", "public_profile"}),
		Github:   loadOAuthClient("GITHUB", []string{"user:email", "read:user"}),
		Linkedin: loadOAuthClient("LINKEDIN", []string{"r_liteprofile", "r_emailaddress"}),
		Orcid:    loadOAuthClient("ORCID", []string{"openid", "email"}),
		StateManager: StateManagerConfig{
			Type: getEnv("OAUTH_STATE_MANAGER", "redis"),
			TTL:  getEnvDuration("OAUTH_STATE_TTL", 10*time.Minute),
		},
		ProviderTimeout: getEnvDuration("OAUTH_PROVIDER_TIMEOUT", 10*time.Second),
	}
}

func loadOAuthClient(prefix string, defaultScopes []string) OAuthClientConfig {
	return OAuthClientConfig{
		Enabled:      getEnvBool("OAUTH_"+prefix+"_ENABLED", false),
		ClientID:     getEnv("OAUTH_"+prefix+"_CLIENT_ID", ""),
		ClientSecret: getEnv("OAUTH_"+prefix+"_CLIENT_SECRET", ""),
		RedirectURL:  getEnv("OAUTH_"+prefix+"_REDIRECT_URL", ""),
		Scopes:       getEnvStringSlice("OAUTH_"+prefix+"_SCOPES", defaultScopes),
		AuthURL:      getEnv("OAUTH_"+prefix+"_AUTH_URL", ""),
		TokenURL:     getEnv("OAUTH_"+prefix+"_TOKEN_URL", ""),
		UserInfoURL:  getEnv("OAUTH_"+prefix+"_USERINFO_URL", ""),
		EmailURL:     getEnv("OAUTH_"+prefix+"_EMAIL_URL", ""),
	}
}
