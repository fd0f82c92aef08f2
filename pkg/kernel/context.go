package kernel

// ============================================================================
// Context Types
// ============================================================================

// PrincipalType discriminates the two kinds of authenticated principals.
type PrincipalType string

const (
	PrincipalUser        PrincipalType = "USER"
	PrincipalApplication PrincipalType = "APPLICATION"
)

// AuthContext is the authentication context injected into each request.
type AuthContext struct {
	Type          PrincipalType  `json:"type"`
	UserID        *UserID        `json:"user_id,omitempty"`
	ApplicationID *ApplicationID `json:"application_id,omitempty"`
	Name          string         `json:"name"`
	Email         string         `json:"email,omitempty"`
	Admin         bool           `json:"admin"`
	Scopes        []string       `json:"scopes"`
}

// IsValid verifies the AuthContext carries a usable principal reference
func (ac *AuthContext) IsValid() bool {
	switch ac.Type {
	case PrincipalUser:
		return ac.UserID != nil && !ac.UserID.IsEmpty()
	case PrincipalApplication:
		return ac.ApplicationID != nil && !ac.ApplicationID.IsEmpty()
	default:
		return false
	}
}

// SubjectID returns the id of whichever principal variant is present
func (ac *AuthContext) SubjectID() string {
	if ac.UserID != nil {
		return ac.UserID.String()
	}
	if ac.ApplicationID != nil {
		return ac.ApplicationID.String()
	}
	return ""
}

// HasScope verifies the context carries a specific scope string
func (ac *AuthContext) HasScope(scope string) bool {
	for _, s := range ac.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// ============================================================================
// Context Keys
// ============================================================================

type ContextKey string

const (
	// AuthContextKey is the key under which AuthContext is stored per request
	AuthContextKey ContextKey = "auth_context"

	// RequestIDKey is the key under which the request id is stored
	RequestIDKey ContextKey = "request_id"
)
