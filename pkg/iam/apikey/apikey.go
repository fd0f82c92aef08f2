package apikey

import (
	"net/http"
	"time"

	"github.com/egoauth/ego/pkg/errx"
	"github.com/egoauth/ego/pkg/iam/scope"
	"github.com/egoauth/ego/pkg/kernel"
)

// ============================================================================
// Entity
// ============================================================================

// APIKey is a persisted, revocable, long-lived bearer credential. The Name
// field holds the opaque secret used as the lookup key; the scope set is
// frozen at issuance and re-narrowed against the owner's live entitlements
// at every check.
type APIKey struct {
	ID          string        `db:"id" json:"id"`
	Name        string        `db:"name" json:"name"`
	OwnerID     kernel.UserID `db:"owner_id" json:"owner_id"`
	IssueDate   time.Time     `db:"issue_date" json:"issue_date"`
	ExpiryDate  time.Time     `db:"expiry_date" json:"expiry_date"`
	Revoked     bool          `db:"revoked" json:"revoked"`
	Description string        `db:"description" json:"description"`
	Scopes      []scope.Scope `json:"scopes"`
}

// SecondsUntilExpiry returns the remaining lifetime, floored at zero.
func (k *APIKey) SecondsUntilExpiry() int64 {
	remaining := time.Until(k.ExpiryDate)
	if remaining < 0 {
		return 0
	}
	return int64(remaining.Seconds())
}

// IsExpired reports whether the expiry date has passed.
func (k *APIKey) IsExpired() bool {
	return time.Now().After(k.ExpiryDate)
}

// ScopeStrings returns the frozen scope set in canonical string form.
func (k *APIKey) ScopeStrings() []string {
	return scope.Strings(k.Scopes)
}

// ============================================================================
// DTOs
// ============================================================================

// Response is the list/issue representation of an api key.
type Response struct {
	APIKey      string   `json:"apiKey"`
	Scope       []string `json:"scope"`
	Exp         int64    `json:"exp"`
	Description string   `json:"description"`
}

// CheckResponse is the result of verifying an api key on behalf of a
// client application.
type CheckResponse struct {
	Owner    string   `json:"owner"`
	ClientID string   `json:"client_id"`
	Exp      int64    `json:"exp"`
	Scope    []string `json:"scope"`
}

// ============================================================================
// Error Registry
// ============================================================================

var ErrRegistry = errx.NewRegistry("APIKEY")

var (
	// CodeInvalidApiKey covers not-found, revoked, malformed and expired
	// keys: callers must treat them all as unauthenticated. Logs and error
	// details distinguish the cases.
	CodeInvalidApiKey = ErrRegistry.Register("INVALID_API_KEY", errx.TypeAuthorization, http.StatusUnauthorized, "API key has expired or is no longer valid")

	// CodeInvalidScope is raised when requested scopes exceed the owner's
	// entitlement at issuance time; details carry the missing scopes.
	CodeInvalidScope = ErrRegistry.Register("INVALID_SCOPE", errx.TypeForbidden, http.StatusForbidden, "Requested scopes exceed user entitlement")

	// CodeRevokeForbidden is raised when the caller lacks the role or
	// ownership required to revoke a key.
	CodeRevokeForbidden = ErrRegistry.Register("REVOKE_FORBIDDEN", errx.TypeForbidden, http.StatusForbidden, "Caller may not revoke this API key")

	// CodeNoApiKeys distinguishes "no keys ever issued" from an empty
	// active list.
	CodeNoApiKeys = ErrRegistry.Register("NO_API_KEYS", errx.TypeNotFound, http.StatusNotFound, "User has no API keys")

	// CodeInvalidRequest covers malformed revoke/check requests.
	CodeInvalidRequest = ErrRegistry.Register("INVALID_REQUEST", errx.TypeValidation, http.StatusBadRequest, "Invalid API key request")
)

func ErrInvalidApiKey() *errx.Error {
	return ErrRegistry.New(CodeInvalidApiKey)
}

func ErrInvalidScope() *errx.Error {
	return ErrRegistry.New(CodeInvalidScope)
}

func ErrRevokeForbidden() *errx.Error {
	return ErrRegistry.New(CodeRevokeForbidden)
}

func ErrNoApiKeys() *errx.Error {
	return ErrRegistry.New(CodeNoApiKeys)
}

func ErrInvalidRequest() *errx.Error {
	return ErrRegistry.New(CodeInvalidRequest)
}
