package token

import (
	"net/http"
	"time"

	"github.com/egoauth/ego/pkg/errx"
	"github.com/egoauth/ego/pkg/iam"
	"github.com/egoauth/ego/pkg/iam/principal"
	"github.com/egoauth/ego/pkg/kernel"
	"github.com/golang-jwt/jwt/v5"
)

// ============================================================================
// Error Registry
// ============================================================================

var ErrRegistry = errx.NewRegistry("TOKEN")

var (
	CodeGenerationFailed = ErrRegistry.Register("GENERATION_FAILED", errx.TypeInternal, http.StatusInternalServerError, "Token generation failed")
	CodeMalformed        = ErrRegistry.Register("MALFORMED", errx.TypeAuthorization, http.StatusUnauthorized, "Token signature or format is invalid")
	CodeExpired          = ErrRegistry.Register("EXPIRED", errx.TypeAuthorization, http.StatusUnauthorized, "Token has expired")
)

// ============================================================================
// Claims
// ============================================================================

// UserInfo is the user identity embedded in a session token.
type UserInfo struct {
	Name       string         `json:"name"`
	Email      string         `json:"email"`
	Status     iam.StatusType `json:"status"`
	GivenName  string         `json:"given_name,omitempty"`
	FamilyName string         `json:"family_name,omitempty"`
	Type       iam.UserType   `json:"type"`
}

// AppInfo is the application identity embedded in a session token.
type AppInfo struct {
	Name     string              `json:"name"`
	ClientID string              `json:"client_id"`
	Status   iam.StatusType      `json:"status"`
	Type     iam.ApplicationType `json:"type"`
}

// Context is the principal-variant-specific claim payload: exactly one of
// User or Application is set. Scope strings travel only on user tokens.
type Context struct {
	Scope       []string  `json:"scope,omitempty"`
	User        *UserInfo `json:"user,omitempty"`
	Application *AppInfo  `json:"application,omitempty"`
}

// Claims is the full signed session token claim set.
type Claims struct {
	Context Context `json:"context"`
	jwt.RegisteredClaims
}

// IsUser reports whether the token belongs to a user principal.
func (c *Claims) IsUser() bool {
	return c.Context.User != nil
}

// UserID returns the subject as a user id; only meaningful when IsUser.
func (c *Claims) UserID() kernel.UserID {
	return kernel.NewUserID(c.Subject)
}

// ApplicationID returns the subject as an application id.
func (c *Claims) ApplicationID() kernel.ApplicationID {
	return kernel.NewApplicationID(c.Subject)
}

// NewUserClaims builds the claim set for a user session token.
func NewUserClaims(issuer string, u *principal.User, scopeStrings []string, now time.Time, expiry time.Time) *Claims {
	if scopeStrings == nil {
		scopeStrings = []string{}
	}
	return &Claims{
		Context: Context{
			Scope: scopeStrings,
			User: &UserInfo{
				Name:       u.Name,
				Email:      u.Email,
				Status:     u.Status,
				GivenName:  u.GivenName,
				FamilyName: u.FamilyName,
				Type:       u.Type,
			},
		},
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   u.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiry),
		},
	}
}

// NewAppClaims builds the claim set for an application session token.
func NewAppClaims(issuer string, a *principal.Application, now time.Time, expiry time.Time) *Claims {
	return &Claims{
		Context: Context{
			Application: &AppInfo{
				Name:     a.Name,
				ClientID: a.ClientID,
				Status:   a.Status,
				Type:     a.Type,
			},
		},
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   a.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiry),
		},
	}
}
