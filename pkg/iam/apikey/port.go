package apikey

import (
	"context"

	"github.com/egoauth/ego/pkg/kernel"
)

// APIKeyRepository defines the contract for api key persistence. Keys are
// never physically deleted by this core; the only mutation is revocation.
type APIKeyRepository interface {
	Save(ctx context.Context, key APIKey) error
	FindBySecret(ctx context.Context, secret string) (*APIKey, error)
	FindByOwner(ctx context.Context, ownerID kernel.UserID) ([]*APIKey, error)

	// Revoke flips the revoked flag for the key with the given secret.
	// The flip must be linearizable per key: of any number of concurrent
	// calls exactly one succeeds and the rest observe already-revoked.
	// Returns an invalid-api-key error when the secret is unknown or the
	// key is already revoked (distinguished in error details).
	Revoke(ctx context.Context, secret string) error
}
