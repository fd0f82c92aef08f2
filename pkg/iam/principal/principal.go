package principal

import (
	"net/http"

	"github.com/egoauth/ego/pkg/errx"
	"github.com/egoauth/ego/pkg/iam"
	"github.com/egoauth/ego/pkg/iam/scope"
	"github.com/egoauth/ego/pkg/kernel"
)

// ============================================================================
// Entities
// ============================================================================

// Policy is a named, globally unique authorization subject. Identity is the
// ID; rename does not change it.
type Policy struct {
	ID   kernel.PolicyID `db:"id" json:"id"`
	Name string          `db:"name" json:"name"`
}

// Permission assigns a scope to a user or a group. It has its own identity
// because a principal may hold grants on the same policy both directly and
// through several groups; resolution keeps one effective entry per policy.
type Permission struct {
	ID     string            `db:"id" json:"id"`
	Policy Policy            `json:"policy"`
	Level  scope.AccessLevel `db:"access_level" json:"access_level"`
}

// Scope returns the permission as a scope value.
func (p Permission) Scope() scope.Scope {
	return scope.Scope{Policy: p.Policy.Name, Level: p.Level}
}

// Group bundles permissions that its member users inherit.
type Group struct {
	ID          kernel.GroupID `db:"id" json:"id"`
	Name        string         `db:"name" json:"name"`
	Status      iam.StatusType `db:"status" json:"status"`
	Permissions []Permission   `json:"permissions"`
}

// User is the human principal variant.
type User struct {
	ID          kernel.UserID  `db:"id" json:"id"`
	Name        string         `db:"name" json:"name"`
	Email       string         `db:"email" json:"email"`
	GivenName   string         `db:"given_name" json:"given_name"`
	FamilyName  string         `db:"family_name" json:"family_name"`
	Status      iam.StatusType `db:"status" json:"status"`
	Type        iam.UserType   `db:"type" json:"type"`
	Permissions []Permission   `json:"permissions"`
	Groups      []Group        `json:"groups"`
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u.Type == iam.UserTypeAdmin
}

// IsActive reports whether the user may act at all.
func (u *User) IsActive() bool {
	return u.Status == iam.StatusApproved
}

// ResolvedScopes walks direct permissions and every group's permissions and
// reduces them under DENY > WRITE > READ precedence, one entry per policy.
func (u *User) ResolvedScopes() []scope.Scope {
	all := make([]scope.Scope, 0, len(u.Permissions))
	for _, p := range u.Permissions {
		all = append(all, p.Scope())
	}
	for _, g := range u.Groups {
		for _, p := range g.Permissions {
			all = append(all, p.Scope())
		}
	}
	return scope.EffectiveScopes(all, nil)
}

// Application is the machine principal variant.
type Application struct {
	ID               kernel.ApplicationID `db:"id" json:"id"`
	Name             string               `db:"name" json:"name"`
	ClientID         string               `db:"client_id" json:"client_id"`
	ClientSecretHash string               `db:"client_secret_hash" json:"-"`
	Type             iam.ApplicationType  `db:"type" json:"type"`
	Status           iam.StatusType       `db:"status" json:"status"`
	RedirectURI      string               `db:"redirect_uri" json:"redirect_uri"`
	ErrorRedirectURI string               `db:"error_redirect_uri" json:"error_redirect_uri"`
}

// IsActive reports whether the application may act at all.
func (a *Application) IsActive() bool {
	return a.Status == iam.StatusApproved
}

// IsAdmin reports whether the application holds the admin type.
func (a *Application) IsAdmin() bool {
	return a.Type == iam.ApplicationTypeAdmin
}

// ============================================================================
// Error Registry
// ============================================================================

var ErrRegistry = errx.NewRegistry("PRINCIPAL")

var (
	CodeUserNotFound        = ErrRegistry.Register("USER_NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "User not found")
	CodeApplicationNotFound = ErrRegistry.Register("APPLICATION_NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "Application not found")
	CodePolicyNotFound      = ErrRegistry.Register("POLICY_NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "Policy not found")
)

func ErrUserNotFound() *errx.Error {
	return ErrRegistry.New(CodeUserNotFound)
}

func ErrApplicationNotFound() *errx.Error {
	return ErrRegistry.New(CodeApplicationNotFound)
}

func ErrPolicyNotFound() *errx.Error {
	return ErrRegistry.New(CodePolicyNotFound)
}
