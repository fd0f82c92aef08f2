package token

import (
	"context"
	"time"

	"github.com/egoauth/ego/pkg/config"
	"github.com/egoauth/ego/pkg/iam"
	"github.com/egoauth/ego/pkg/iam/principal"
	"github.com/egoauth/ego/pkg/iam/scope"
	"github.com/egoauth/ego/pkg/kernel"
	"github.com/egoauth/ego/pkg/logx"
	"github.com/golang-jwt/jwt/v5"
)

// Service issues, refreshes and validates signed session tokens for both
// principal variants.
type Service struct {
	codec    *Codec
	signer   Signer
	users    principal.UserRepository
	issuer   string
	duration time.Duration

	now func() time.Time
}

// NewService creates a token service.
func NewService(signer Signer, users principal.UserRepository, cfg *config.JWTConfig) *Service {
	return &Service{
		codec:    NewCodec(signer),
		signer:   signer,
		users:    users,
		issuer:   cfg.Issuer,
		duration: cfg.Duration,
		now:      time.Now,
	}
}

// IssueUserToken signs a session token for a user carrying its current
// resolved scope strings.
func (s *Service) IssueUserToken(u *principal.User) (string, error) {
	return s.IssueUserTokenWithScopes(u, scope.Strings(u.ResolvedScopes()))
}

// IssueUserTokenWithScopes signs a session token for a user with an
// explicit scope string set.
func (s *Service) IssueUserTokenWithScopes(u *principal.User, scopeStrings []string) (string, error) {
	now := s.now()
	claims := NewUserClaims(s.issuer, u, scopeStrings, now, now.Add(s.duration))
	return s.codec.Encode(claims)
}

// IssueAppToken signs a session token for an application. Application
// tokens carry identity claims only, no scopes.
func (s *Service) IssueAppToken(a *principal.Application) (string, error) {
	now := s.now()
	claims := NewAppClaims(s.issuer, a, now, now.Add(s.duration))
	return s.codec.Encode(claims)
}

// Refresh validates the old token, recomputes the subject's *current*
// scopes, and re-signs with the remaining validity window: the new expiry
// equals the old one. Refresh extends scope currency, never lifetime.
func (s *Service) Refresh(ctx context.Context, oldToken string) (string, error) {
	claims, err := s.codec.Decode(oldToken)
	if err != nil {
		return "", err
	}

	if !claims.IsUser() {
		// Application entitlements live in the claims themselves; re-sign
		// identity with the remaining window.
		fresh := *claims
		fresh.RegisteredClaims.IssuedAt = jwt.NewNumericDate(s.now())
		return s.codec.Encode(&fresh)
	}

	user, err := s.users.FindByID(ctx, claims.UserID())
	if err != nil {
		return "", err
	}

	current := scope.Strings(user.ResolvedScopes())
	fresh := NewUserClaims(s.issuer, user, current, s.now(), claims.ExpiresAt.Time)
	logx.WithFields(logx.Fields{
		"user_id":   user.ID.String(),
		"token_md5": Digest(oldToken),
	}).Debug("session token refreshed with remaining window")
	return s.codec.Encode(fresh)
}

// Validate verifies a session token and returns its claims.
func (s *Service) Validate(tokenString string) (*Claims, error) {
	return s.codec.Decode(tokenString)
}

// AuthContext converts validated claims into the request auth context.
func (s *Service) AuthContext(claims *Claims) *kernel.AuthContext {
	if claims.IsUser() {
		id := claims.UserID()
		return &kernel.AuthContext{
			Type:   kernel.PrincipalUser,
			UserID: &id,
			Name:   claims.Context.User.Name,
			Email:  claims.Context.User.Email,
			Admin:  claims.Context.User.Type == iam.UserTypeAdmin,
			Scopes: claims.Context.Scope,
		}
	}

	id := claims.ApplicationID()
	ac := &kernel.AuthContext{
		Type:          kernel.PrincipalApplication,
		ApplicationID: &id,
		Scopes:        []string{},
	}
	if claims.Context.Application != nil {
		ac.Name = claims.Context.Application.Name
		ac.Admin = claims.Context.Application.Type == iam.ApplicationTypeAdmin
	}
	return ac
}

// PublicKeyPEM exposes the verification key material.
func (s *Service) PublicKeyPEM() (string, error) {
	return s.signer.PublicKeyPEM()
}
