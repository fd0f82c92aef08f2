package apikeysrv

import (
	"context"
	"encoding/base64"
	"strings"
	"time"

	"github.com/egoauth/ego/pkg/config"
	"github.com/egoauth/ego/pkg/iam/apikey"
	"github.com/egoauth/ego/pkg/iam/principal"
	"github.com/egoauth/ego/pkg/iam/scope"
	"github.com/egoauth/ego/pkg/iam/token"
	"github.com/egoauth/ego/pkg/kernel"
	"github.com/egoauth/ego/pkg/logx"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// APIKeyService issues, verifies, revokes and lists long-lived api keys.
type APIKeyService struct {
	keys     apikey.APIKeyRepository
	users    principal.UserRepository
	apps     principal.ApplicationRepository
	policies principal.PolicyRepository

	durationDays int
	maxLength    int
	now          func() time.Time
}

// NewAPIKeyService creates an api key service.
func NewAPIKeyService(
	keys apikey.APIKeyRepository,
	users principal.UserRepository,
	apps principal.ApplicationRepository,
	policies principal.PolicyRepository,
	cfg *config.APIKeyConfig,
) *APIKeyService {
	return &APIKeyService{
		keys:         keys,
		users:        users,
		apps:         apps,
		policies:     policies,
		durationDays: cfg.DurationDays,
		maxLength:    cfg.MaxLength,
		now:          time.Now,
	}
}

// resolveScopes maps canonical scope names onto policies; an unknown
// policy name is fatal.
func (s *APIKeyService) resolveScopes(ctx context.Context, scopeNames []string) ([]scope.Scope, error) {
	parsed, err := scope.ParseAll(scopeNames)
	if err != nil {
		return nil, err
	}

	out := make([]scope.Scope, 0, len(parsed))
	for _, sc := range parsed {
		policy, err := s.policies.FindByName(ctx, sc.Policy)
		if err != nil {
			return nil, err
		}
		out = append(out, scope.Scope{Policy: policy.Name, Level: sc.Level})
	}
	return out, nil
}

// Issue mints a new api key for the user, freezing the requested scopes
// onto it. Requested scopes must be covered by the user's current
// entitlement; otherwise nothing is persisted.
func (s *APIKeyService) Issue(ctx context.Context, userID kernel.UserID, scopeNames []string, description string) (*apikey.APIKey, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	userScopes := user.ResolvedScopes()
	requested, err := s.resolveScopes(ctx, scopeNames)
	if err != nil {
		return nil, err
	}

	if missing := scope.MissingScopes(userScopes, requested); len(missing) > 0 {
		logx.WithFields(logx.Fields{
			"user_id":        userID.String(),
			"missing_scopes": scope.Strings(missing),
		}).Info("api key issuance rejected: insufficient entitlement")
		return nil, apikey.ErrInvalidScope().WithDetail("missing_scopes", scope.Strings(missing))
	}

	now := s.now()
	key := apikey.APIKey{
		ID:          uuid.NewString(),
		Name:        uuid.NewString(),
		OwnerID:     user.ID,
		IssueDate:   now,
		ExpiryDate:  now.AddDate(0, 0, s.durationDays),
		Revoked:     false,
		Description: description,
		Scopes:      requested,
	}

	if err := s.keys.Save(ctx, key); err != nil {
		return nil, err
	}

	logx.WithFields(logx.Fields{
		"user_id":   userID.String(),
		"token_md5": token.Digest(key.Name),
		"scopes":    key.ScopeStrings(),
	}).Info("api key issued")
	return &key, nil
}

// Check verifies an api key on behalf of a client application identified
// by a Basic auth credential. The scope set returned is the frozen set
// re-narrowed by the owner's entitlements at check time, with DENY masks
// applied, so a key never outlives a revoked permission.
func (s *APIKeyService) Check(ctx context.Context, basicAuth string, secret string) (*apikey.CheckResponse, error) {
	if secret == "" {
		return nil, apikey.ErrInvalidRequest().WithDetail("reason", "no api key in request")
	}

	clientID, clientSecret, ok := decodeBasicAuth(basicAuth)
	if !ok {
		return nil, apikey.ErrInvalidRequest().WithDetail("reason", "malformed client credential")
	}

	app, err := s.apps.FindByClientID(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(app.ClientSecretHash), []byte(clientSecret)) != nil {
		return nil, apikey.ErrInvalidRequest().WithDetail("reason", "client credential mismatch")
	}

	key, err := s.keys.FindBySecret(ctx, secret)
	if err != nil {
		return nil, err
	}
	if key.Revoked {
		return nil, apikey.ErrInvalidApiKey().WithDetail("reason", "revoked")
	}

	owner, err := s.users.FindByID(ctx, key.OwnerID)
	if err != nil {
		return nil, err
	}

	scopes := scope.ExplicitScopes(scope.EffectiveScopes(owner.ResolvedScopes(), key.Scopes))
	return &apikey.CheckResponse{
		Owner:    owner.Name,
		ClientID: app.ClientID,
		Exp:      key.SecondsUntilExpiry(),
		Scope:    scope.Strings(scopes),
	}, nil
}

// Revoke flips the revoked flag, enforcing the revocation policy: a user
// may always revoke their own keys, an active admin user or an ADMIN-type
// application may revoke any key, everything else is rejected. Re-revoking
// an already revoked key is an error, never a silent no-op.
func (s *APIKeyService) Revoke(ctx context.Context, caller *kernel.AuthContext, secret string) error {
	if err := s.validateSecret(secret); err != nil {
		return err
	}

	switch {
	case caller == nil || !caller.IsValid():
		return apikey.ErrInvalidRequest().WithDetail("reason", "unknown type of authentication")

	case caller.Type == kernel.PrincipalUser:
		user, err := s.users.FindByID(ctx, *caller.UserID)
		if err != nil {
			return err
		}
		if !(user.IsAdmin() && user.IsActive()) {
			// Regular users may only revoke keys that belong to them.
			key, err := s.keys.FindBySecret(ctx, secret)
			if err != nil {
				return err
			}
			if key.OwnerID != user.ID {
				return apikey.ErrRevokeForbidden().WithDetail("reason", "not the key owner")
			}
		}

	case caller.Type == kernel.PrincipalApplication:
		app, err := s.apps.FindByID(ctx, *caller.ApplicationID)
		if err != nil {
			return err
		}
		if !app.IsAdmin() {
			return apikey.ErrRevokeForbidden().WithDetail("reason", "application is not an admin")
		}

	default:
		return apikey.ErrInvalidRequest().WithDetail("reason", "unknown type of authentication")
	}

	if err := s.keys.Revoke(ctx, secret); err != nil {
		return err
	}

	logx.WithField("token_md5", token.Digest(secret)).Info("api key revoked")
	return nil
}

// ListActive returns the user's non-revoked keys. A user with no keys at
// all gets a not-found error; a user whose keys are all revoked gets an
// empty list.
func (s *APIKeyService) ListActive(ctx context.Context, userID kernel.UserID) ([]apikey.Response, error) {
	if _, err := s.users.FindByID(ctx, userID); err != nil {
		return nil, err
	}

	keys, err := s.keys.FindByOwner(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, apikey.ErrNoApiKeys().WithDetail("user_id", userID.String())
	}

	out := make([]apikey.Response, 0, len(keys))
	for _, key := range keys {
		if key.Revoked {
			continue
		}
		out = append(out, apikey.Response{
			APIKey:      key.Name,
			Scope:       key.ScopeStrings(),
			Exp:         key.SecondsUntilExpiry(),
			Description: key.Description,
		})
	}
	return out, nil
}

// UserScopes returns the current effective scope strings for a user name.
func (s *APIKeyService) UserScopes(ctx context.Context, userName string) ([]string, error) {
	user, err := s.users.FindByName(ctx, userName)
	if err != nil {
		return nil, err
	}
	return scope.Strings(user.ResolvedScopes()), nil
}

func (s *APIKeyService) validateSecret(secret string) error {
	if secret == "" {
		return apikey.ErrInvalidRequest().WithDetail("reason", "api key cannot be empty")
	}
	if len(secret) > s.maxLength {
		return apikey.ErrInvalidRequest().WithDetail("reason", "api key exceeds maximum length")
	}
	return nil
}

// decodeBasicAuth parses an HTTP Basic authorization header value.
func decodeBasicAuth(header string) (clientID, clientSecret string, ok bool) {
	const prefix = "Basic "
	if !strings.HasPrefix(header, prefix) {
		return "", "", false
	}
	decoded, err := base64.StdEncoding.DecodeString(header[len(prefix):])
	if err != nil {
		return "", "", false
	}
	parts := strings.SplitN(string(decoded), ":", 2)
	if len(parts) != 2 || parts[0] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}
