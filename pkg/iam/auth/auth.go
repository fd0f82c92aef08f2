package auth

import (
	"net/http"

	"github.com/egoauth/ego/pkg/errx"
	"github.com/egoauth/ego/pkg/iam"
)

// ============================================================================
// External Identity
// ============================================================================

// ExternalIdentity is the normalized result of a completed provider
// handshake. Email is the verified primary email; its absence is fatal to
// the login attempt and never produces an identity.
type ExternalIdentity struct {
	Provider   iam.ProviderType `json:"provider"`
	SubjectID  string           `json:"subject_id"`
	Email      string           `json:"email"`
	GivenName  string           `json:"given_name"`
	FamilyName string           `json:"family_name"`
}

// LoginState is the payload pinned to an in-flight SSO handshake under a
// random nonce. The redirect targets are validated at initiation and never
// re-derived at callback time.
type LoginState struct {
	Provider         iam.ProviderType `json:"provider"`
	ClientID         string           `json:"client_id"`
	RedirectURI      string           `json:"redirect_uri"`
	ErrorRedirectURI string           `json:"error_redirect_uri"`
}

// ============================================================================
// Error Registry
// ============================================================================

var ErrRegistry = errx.NewRegistry("AUTH")

var (
	// CodeNoPrimaryEmail: the provider identity has no verified primary
	// email. Rides the redirect channel, never an exception to the browser.
	CodeNoPrimaryEmail = ErrRegistry.Register("NO_PRIMARY_EMAIL", errx.TypeForbidden, http.StatusForbidden, "No primary email found")

	// CodeUserDeniedAuthorization: the user withdrew consent at the
	// provider. Same redirect channel, fixed "access_denied" wording.
	CodeUserDeniedAuthorization = ErrRegistry.Register("USER_DENIED_AUTHORIZATION", errx.TypeForbidden, http.StatusForbidden, "access_denied")

	CodeInvalidState      = ErrRegistry.Register("INVALID_STATE", errx.TypeValidation, http.StatusBadRequest, "Invalid or expired OAuth state")
	CodeProviderDisabled  = ErrRegistry.Register("PROVIDER_DISABLED", errx.TypeValidation, http.StatusBadRequest, "Identity provider is not enabled")
	CodeInvalidRedirect   = ErrRegistry.Register("INVALID_REDIRECT", errx.TypeForbidden, http.StatusForbidden, "Redirect URI is not registered for this application")
	CodeProviderFailure   = ErrRegistry.Register("PROVIDER_FAILURE", errx.TypeInternal, http.StatusInternalServerError, "Identity provider request failed")
	CodeUnexpectedPayload = ErrRegistry.Register("UNEXPECTED_PAYLOAD", errx.TypeInternal, http.StatusInternalServerError, "Unexpected identity provider response shape")
)

func ErrNoPrimaryEmail() *errx.Error {
	return ErrRegistry.New(CodeNoPrimaryEmail)
}

func ErrUserDeniedAuthorization() *errx.Error {
	return ErrRegistry.New(CodeUserDeniedAuthorization)
}

func ErrInvalidState() *errx.Error {
	return ErrRegistry.New(CodeInvalidState)
}

func ErrProviderDisabled() *errx.Error {
	return ErrRegistry.New(CodeProviderDisabled)
}

func ErrInvalidRedirect() *errx.Error {
	return ErrRegistry.New(CodeInvalidRedirect)
}

func ErrProviderFailure(cause error) *errx.Error {
	return ErrRegistry.NewWithCause(CodeProviderFailure, cause)
}

func ErrUnexpectedPayload(cause error) *errx.Error {
	return ErrRegistry.NewWithCause(CodeUnexpectedPayload, cause)
}
