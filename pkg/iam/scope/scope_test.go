package scope_test

import (
	"reflect"
	"testing"

	"github.com/egoauth/ego/pkg/errx"
	"github.com/egoauth/ego/pkg/iam/scope"
)

func sc(policy string, level scope.AccessLevel) scope.Scope {
	return scope.Scope{Policy: policy, Level: level}
}

func TestEffectiveScopesDenyWins(t *testing.T) {
	got := scope.EffectiveScopes(
		[]scope.Scope{sc("StudyA", scope.Deny)},
		[]scope.Scope{sc("StudyA", scope.Write)},
	)
	want := []scope.Scope{sc("StudyA", scope.Deny)}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("EffectiveScopes = %v, want %v", got, want)
	}
}

func TestEffectiveScopesHigherLevelWins(t *testing.T) {
	got := scope.EffectiveScopes(
		[]scope.Scope{sc("StudyA", scope.Read)},
		[]scope.Scope{sc("StudyA", scope.Write)},
	)
	want := []scope.Scope{sc("StudyA", scope.Write)}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("EffectiveScopes = %v, want %v", got, want)
	}
}

func TestEffectiveScopesSingleSidedCarriesThrough(t *testing.T) {
	got := scope.EffectiveScopes(
		[]scope.Scope{sc("StudyA", scope.Read)},
		[]scope.Scope{sc("StudyB", scope.Write)},
	)
	want := []scope.Scope{sc("StudyA", scope.Read), sc("StudyB", scope.Write)}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("EffectiveScopes = %v, want %v", got, want)
	}
}

func TestEffectiveScopesOneEntryPerPolicy(t *testing.T) {
	a := []scope.Scope{sc("P1", scope.Read), sc("P2", scope.Write), sc("P3", scope.Deny)}
	b := []scope.Scope{sc("P1", scope.Write), sc("P2", scope.Read), sc("P4", scope.Read)}

	got := scope.EffectiveScopes(a, b)

	seen := make(map[string]bool)
	for _, s := range got {
		if seen[s.Policy] {
			t.Fatalf("policy %q appears more than once in %v", s.Policy, got)
		}
		seen[s.Policy] = true
	}
	for _, policy := range []string{"P1", "P2", "P3", "P4"} {
		if !seen[policy] {
			t.Fatalf("policy %q missing from %v", policy, got)
		}
	}
}

func TestExplicitScopesDropsDeny(t *testing.T) {
	got := scope.ExplicitScopes([]scope.Scope{
		sc("StudyA", scope.Deny),
		sc("StudyB", scope.Read),
		sc("StudyC", scope.Write),
	})
	want := []scope.Scope{sc("StudyB", scope.Read), sc("StudyC", scope.Write)}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ExplicitScopes = %v, want %v", got, want)
	}
}

func TestMissingScopesEmptyWhenSatisfied(t *testing.T) {
	granted := []scope.Scope{sc("StudyA", scope.Write), sc("StudyB", scope.Read)}
	requested := []scope.Scope{sc("StudyA", scope.Read), sc("StudyB", scope.Read)}

	if got := scope.MissingScopes(granted, requested); len(got) != 0 {
		t.Fatalf("MissingScopes = %v, want empty", got)
	}
}

func TestMissingScopesAbsentPolicy(t *testing.T) {
	got := scope.MissingScopes(
		[]scope.Scope{sc("StudyA", scope.Read)},
		[]scope.Scope{sc("StudyB", scope.Read)},
	)
	want := []scope.Scope{sc("StudyB", scope.Read)}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("MissingScopes = %v, want %v", got, want)
	}
}

func TestMissingScopesLowerGrantedLevel(t *testing.T) {
	got := scope.MissingScopes(
		[]scope.Scope{sc("StudyA", scope.Read)},
		[]scope.Scope{sc("StudyA", scope.Write)},
	)
	want := []scope.Scope{sc("StudyA", scope.Write)}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("MissingScopes = %v, want %v", got, want)
	}
}

func TestMissingScopesDenyMasks(t *testing.T) {
	got := scope.MissingScopes(
		[]scope.Scope{sc("StudyA", scope.Deny)},
		[]scope.Scope{sc("StudyA", scope.Read)},
	)
	want := []scope.Scope{sc("StudyA", scope.Read)}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("MissingScopes = %v, want %v", got, want)
	}
}

func TestMissingScopesDenyOverridesDirectGrant(t *testing.T) {
	// The DENY entry wins over the coexisting WRITE grant on the same policy.
	got := scope.MissingScopes(
		[]scope.Scope{sc("StudyA", scope.Write), sc("StudyA", scope.Deny)},
		[]scope.Scope{sc("StudyA", scope.Read)},
	)
	if len(got) != 1 {
		t.Fatalf("MissingScopes = %v, want one masked entry", got)
	}
}

func TestParseCanonicalForm(t *testing.T) {
	s, err := scope.Parse("StudyA.READ")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if s.Policy != "StudyA" || s.Level != scope.Read {
		t.Fatalf("Parse = %+v", s)
	}
	if s.String() != "StudyA.READ" {
		t.Fatalf("String = %q", s.String())
	}
}

func TestParsePolicyNameMayContainDots(t *testing.T) {
	s, err := scope.Parse("org.study.alpha.WRITE")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if s.Policy != "org.study.alpha" || s.Level != scope.Write {
		t.Fatalf("Parse = %+v", s)
	}
}

func TestParseRejectsMalformedNames(t *testing.T) {
	for _, name := range []string{"", "StudyA", ".READ", "StudyA.", "StudyA.SUPER"} {
		if _, err := scope.Parse(name); err == nil {
			t.Fatalf("Parse(%q) succeeded, want error", name)
		}
	}

	_, err := scope.Parse("StudyA")
	if !errx.IsCode(err, scope.CodeMalformedScopeName) {
		t.Fatalf("Parse error = %v, want malformed scope name", err)
	}
	_, err = scope.Parse("StudyA.SUPER")
	if !errx.IsCode(err, scope.CodeInvalidAccessLevel) {
		t.Fatalf("Parse error = %v, want invalid access level", err)
	}
}

func TestAllowsDenySatisfiesNothing(t *testing.T) {
	if scope.Deny.Allows(scope.Read) {
		t.Fatal("DENY must not satisfy READ")
	}
	if scope.Deny.Allows(scope.Deny) {
		t.Fatal("DENY must not satisfy DENY")
	}
	if !scope.Write.Allows(scope.Read) {
		t.Fatal("WRITE must satisfy READ")
	}
	if scope.Read.Allows(scope.Write) {
		t.Fatal("READ must not satisfy WRITE")
	}
}

func TestStudyAReadHolderCannotRequestWrite(t *testing.T) {
	granted := []scope.Scope{sc("StudyA", scope.Read)}

	missing := scope.MissingScopes(granted, []scope.Scope{sc("StudyA", scope.Write)})
	if len(missing) != 1 || missing[0].String() != "StudyA.WRITE" {
		t.Fatalf("missing = %v, want [StudyA.WRITE]", missing)
	}

	if missing := scope.MissingScopes(granted, granted); len(missing) != 0 {
		t.Fatalf("missing = %v, want empty", missing)
	}
}

func TestDenyDowngradeMasksFrozenScope(t *testing.T) {
	// A key frozen at StudyA.READ checked after the owner was downgraded to
	// DENY must yield an empty explicit scope set for that policy.
	ownerNow := []scope.Scope{sc("StudyA", scope.Deny)}
	frozen := []scope.Scope{sc("StudyA", scope.Read)}

	got := scope.ExplicitScopes(scope.EffectiveScopes(ownerNow, frozen))
	if len(got) != 0 {
		t.Fatalf("explicit scopes = %v, want empty", got)
	}
}
