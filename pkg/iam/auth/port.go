package auth

import (
	"context"

	"github.com/egoauth/ego/pkg/iam"
	"golang.org/x/oauth2"
)

// IdentityProvider is one supported OAuth2 identity source. Implementations
// share the handshake mechanics and differ only in how user info and the
// primary email are extracted. Selected from a map keyed on provider tag.
type IdentityProvider interface {
	Type() iam.ProviderType

	// AuthCodeURL builds the provider consent URL carrying the state nonce.
	AuthCodeURL(state string) string

	// Exchange swaps an authorization code for provider tokens.
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)

	// FetchIdentity resolves the token into a normalized identity. A missing
	// verified primary email yields a no-primary-email error.
	FetchIdentity(ctx context.Context, token *oauth2.Token) (*ExternalIdentity, error)
}

// StateManager pins login state to a random nonce for the lifetime of one
// handshake. Consume is one-shot: a second consume of the same nonce fails.
type StateManager interface {
	Save(ctx context.Context, state LoginState) (string, error)
	Consume(ctx context.Context, nonce string) (*LoginState, error)
}
