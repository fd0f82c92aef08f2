package principal

import (
	"context"

	"github.com/egoauth/ego/pkg/kernel"
)

// The administration surface owns principal CRUD; this core only reads.
// Implementations must return users with permissions and groups loaded.

// UserRepository defines the contract for user lookups
type UserRepository interface {
	FindByID(ctx context.Context, id kernel.UserID) (*User, error)
	FindByName(ctx context.Context, name string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
}

// ApplicationRepository defines the contract for application lookups
type ApplicationRepository interface {
	FindByID(ctx context.Context, id kernel.ApplicationID) (*Application, error)
	FindByClientID(ctx context.Context, clientID string) (*Application, error)
}

// PolicyRepository defines the contract for policy lookups
type PolicyRepository interface {
	FindByName(ctx context.Context, name string) (*Policy, error)
}
