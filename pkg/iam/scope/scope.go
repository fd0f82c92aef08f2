package scope

import (
	"net/http"
	"sort"
	"strings"

	"github.com/egoauth/ego/pkg/errx"
)

// ============================================================================
// Error Registry
// ============================================================================

var ErrRegistry = errx.NewRegistry("SCOPE")

var (
	CodeMalformedScopeName = ErrRegistry.Register("MALFORMED_SCOPE_NAME", errx.TypeValidation, http.StatusBadRequest, "Malformed scope name")
	CodeInvalidAccessLevel = ErrRegistry.Register("INVALID_ACCESS_LEVEL", errx.TypeValidation, http.StatusBadRequest, "Invalid access level")
)

// ============================================================================
// Access Levels
// ============================================================================

// AccessLevel is the ordered grant level attached to a policy.
// DENY is a negative grant: it masks READ/WRITE on the same policy.
type AccessLevel string

const (
	Read  AccessLevel = "READ"
	Write AccessLevel = "WRITE"
	Deny  AccessLevel = "DENY"
)

/// precedence orders conflict resolution: DENY > WRITE > READ.
func (l AccessLevel) precedence() int {
	switch l {
	case Deny:
		return 3
	case Write:
		return 2
	case Read:
		return 1
	default:
		return 0
	}
}

// Allows reports whether a grant at level l satisfies a request for level
// want. DENY satisfies nothing, including DENY itself.
func (l AccessLevel) Allows(want AccessLevel) bool {
	if l == Deny || want == Deny {
		return false
	}
	return l.precedence() >= want.precedence()
}

// ParseAccessLevel parses an access level string, case-insensitively.
func ParseAccessLevel(s string) (AccessLevel, error) {
	switch AccessLevel(strings.ToUpper(s)) {
	case Read:
		return Read, nil
	case Write:
		return Write, nil
	case Deny:
		return Deny, nil
	default:
		return "", ErrRegistry.New(CodeInvalidAccessLevel).WithDetail("access_level", s)
	}
}

// ============================================================================
// Scope
// ============================================================================

// Scope is a (policy, access level) pair. Two scopes address the same
// subject when their policy names match, regardless of level.
type Scope struct {
	Policy string
	Level  AccessLevel
}

// String returns the canonical "<policy>.<LEVEL>" form.
func (s Scope) String() string {
	return s.Policy + "." + string(s.Level)
}

// Parse parses a canonical "<policy>.<LEVEL>" scope name. The policy name
// may itself contain dots; the level is everything after the last one.
func Parse(name string) (Scope, error) {
	idx := strings.LastIndex(name, ".")
	if idx <= 0 || idx == len(name)-1 {
		return Scope{}, ErrRegistry.New(CodeMalformedScopeName).WithDetail("scope", name)
	}

	level, err := ParseAccessLevel(name[idx+1:])
	if err != nil {
		return Scope{}, err
	}

	return Scope{Policy: name[:idx], Level: level}, nil
}

// ParseAll parses a list of canonical scope names, failing on the first bad one.
func ParseAll(names []string) ([]Scope, error) {
	out := make([]Scope, 0, len(names))
	for _, n := range names {
		s, err := Parse(n)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// Strings returns the sorted canonical forms of a scope set.
func Strings(scopes []Scope) []string {
	out := make([]string, 0, len(scopes))
	for _, s := range scopes {
		out = append(out, s.String())
	}
	sort.Strings(out)
	return out
}

// ============================================================================
// Set Algebra
// ============================================================================

// EffectiveScopes resolves two scope sets into one entry per distinct
// policy, keeping the highest-precedence level: DENY wins outright,
// otherwise the higher of WRITE/READ. A policy present in only one input
// carries through unchanged. This models current entitlement narrowed by
// what a token was scoped to when issued.
func EffectiveScopes(a, b []Scope) []Scope {
	byPolicy := make(map[string]Scope, len(a)+len(b))
	for _, s := range append(append([]Scope{}, a...), b...) {
		current, ok := byPolicy[s.Policy]
		if !ok || s.Level.precedence() > current.Level.precedence() {
			byPolicy[s.Policy] = s
		}
	}
	return collect(byPolicy)
}

// ExplicitScopes removes DENY entries: DENY is a masking instruction, not
// a grant to expose to callers.
func ExplicitScopes(scopes []Scope) []Scope {
	out := make([]Scope, 0, len(scopes))
	for _, s := range scopes {
		if s.Level != Deny {
			out = append(out, s)
		}
	}
	sortScopes(out)
	return out
}

// MissingScopes returns every requested scope not satisfied by granted:
// policy absent, granted at a strictly lower level, or masked by DENY.
// An empty result means the request is fully satisfiable.
func MissingScopes(granted, requested []Scope) []Scope {
	byPolicy := make(map[string]Scope, len(granted))
	for _, g := range granted {
		current, ok := byPolicy[g.Policy]
		if !ok || g.Level.precedence() > current.Level.precedence() {
			byPolicy[g.Policy] = g
		}
	}

	missing := make([]Scope, 0)
	for _, r := range requested {
		g, ok := byPolicy[r.Policy]
		if !ok || !g.Level.Allows(r.Level) {
			missing = append(missing, r)
		}
	}
	sortScopes(missing)
	return missing
}

func collect(byPolicy map[string]Scope) []Scope {
	out := make([]Scope, 0, len(byPolicy))
	for _, s := range byPolicy {
		out = append(out, s)
	}
	sortScopes(out)
	return out
}

func sortScopes(scopes []Scope) {
	sort.Slice(scopes, func(i, j int) bool {
		if scopes[i].Policy != scopes[j].Policy {
			return scopes[i].Policy < scopes[j].Policy
		}
		return scopes[i].Level < scopes[j].Level
	})
}
