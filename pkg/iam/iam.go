package iam

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/egoauth/ego/pkg/errx"
)

// ============================================================================
// Error Registry
// ============================================================================

var ErrRegistry = errx.NewRegistry("IAM")

var (
	CodeUnauthorized = ErrRegistry.Register("UNAUTHORIZED", errx.TypeAuthorization, http.StatusUnauthorized, "Unauthorized")
	CodeInvalidToken = ErrRegistry.Register("INVALID_TOKEN", errx.TypeAuthorization, http.StatusUnauthorized, "Invalid or expired token")
	CodeAccessDenied = ErrRegistry.Register("ACCESS_DENIED", errx.TypeForbidden, http.StatusForbidden, "Access denied")
)

// Helper functions
func ErrUnauthorized() *errx.Error {
	return ErrRegistry.New(CodeUnauthorized)
}

func ErrInvalidToken() *errx.Error {
	return ErrRegistry.New(CodeInvalidToken)
}

func ErrAccessDenied() *errx.Error {
	return ErrRegistry.New(CodeAccessDenied)
}

// ============================================================================
// Provider Types
// ============================================================================

// ProviderType tags a supported identity provider
type ProviderType string

const (
	ProviderGoogle   ProviderType = "GOOGLE"
	ProviderFacebook ProviderType = "FACEBOOK"
	ProviderGithub   ProviderType = "GITHUB"
	ProviderLinkedin ProviderType = "LINKEDIN"
	ProviderOrcid    ProviderType = "ORCID"
)

// ResolveProviderType parses a provider tag, case-insensitively
func ResolveProviderType(s string) (ProviderType, error) {
	switch ProviderType(strings.ToUpper(s)) {
	case ProviderGoogle:
		return ProviderGoogle, nil
	case ProviderFacebook:
		return ProviderFacebook, nil
	case ProviderGithub:
		return ProviderGithub, nil
	case ProviderLinkedin:
		return ProviderLinkedin, nil
	case ProviderOrcid:
		return ProviderOrcid, nil
	default:
		return "", fmt.Errorf("unknown provider type: %q", s)
	}
}

// ============================================================================
// Principal Enums
// ============================================================================

// StatusType is the lifecycle status shared by users and applications
type StatusType string

const (
	StatusApproved StatusType = "APPROVED"
	StatusPending  StatusType = "PENDING"
	StatusRejected StatusType = "REJECTED"
	StatusDisabled StatusType = "DISABLED"
)

// UserType separates regular users from administrators
type UserType string

const (
	UserTypeUser  UserType = "USER"
	UserTypeAdmin UserType = "ADMIN"
)

// ApplicationType separates regular client applications from admin ones
type ApplicationType string

const (
	ApplicationTypeClient ApplicationType = "CLIENT"
	ApplicationTypeAdmin  ApplicationType = "ADMIN"
)
