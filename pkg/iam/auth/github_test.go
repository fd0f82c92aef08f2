package auth_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/egoauth/ego/pkg/config"
	"github.com/egoauth/ego/pkg/errx"
	"github.com/egoauth/ego/pkg/iam/auth"
	"golang.org/x/oauth2"
)

func newGithubServer(t *testing.T, userBody, emailsBody string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer gh-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, userBody)
	})
	mux.HandleFunc("/user/emails", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, emailsBody)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newGithubProvider(server *httptest.Server) *auth.GithubProvider {
	return auth.NewGithubProvider(&config.OAuthClientConfig{
		ClientID:     "gh-client",
		ClientSecret: "gh-secret",
		UserInfoURL:  server.URL + "/user",
		EmailURL:     server.URL + "/user/emails",
	}, 5*time.Second)
}

func TestGithubIdentityUsesVerifiedPrimaryEmail(t *testing.T) {
	server := newGithubServer(t,
		`{"id": 42, "login": "octo", "name": "Octo Cat"}`,
		`[
			{"email": "old@example.org", "primary": false, "verified": true},
			{"email": "unverified@example.org", "primary": true, "verified": false},
			{"email": "octo@example.org", "primary": true, "verified": true}
		]`)
	provider := newGithubProvider(server)

	identity, err := provider.FetchIdentity(context.Background(), &oauth2.Token{AccessToken: "gh-token"})
	if err != nil {
		t.Fatalf("fetch identity: %v", err)
	}
	if identity.Email != "octo@example.org" {
		t.Fatalf("email = %q", identity.Email)
	}
	if identity.SubjectID != "42" {
		t.Fatalf("subject = %q", identity.SubjectID)
	}
	if identity.GivenName != "Octo" || identity.FamilyName != "Cat" {
		t.Fatalf("name = %q %q", identity.GivenName, identity.FamilyName)
	}
}

func TestGithubIdentityToleratesNullName(t *testing.T) {
	server := newGithubServer(t,
		`{"id": 42, "login": "octo", "name": null}`,
		`[{"email": "octo@example.org", "primary": true, "verified": true}]`)
	provider := newGithubProvider(server)

	identity, err := provider.FetchIdentity(context.Background(), &oauth2.Token{AccessToken: "gh-token"})
	if err != nil {
		t.Fatalf("fetch identity: %v", err)
	}
	if identity.GivenName != "" || identity.FamilyName != "" {
		t.Fatalf("name = %q %q, want empty", identity.GivenName, identity.FamilyName)
	}
}

func TestGithubIdentitySingleWordName(t *testing.T) {
	server := newGithubServer(t,
		`{"id": 42, "login": "octo", "name": "Octo"}`,
		`[{"email": "octo@example.org", "primary": true, "verified": true}]`)
	provider := newGithubProvider(server)

	identity, err := provider.FetchIdentity(context.Background(), &oauth2.Token{AccessToken: "gh-token"})
	if err != nil {
		t.Fatalf("fetch identity: %v", err)
	}
	if identity.GivenName != "Octo" || identity.FamilyName != "" {
		t.Fatalf("name = %q %q", identity.GivenName, identity.FamilyName)
	}
}

func TestGithubIdentityNoPrimaryEmail(t *testing.T) {
	server := newGithubServer(t,
		`{"id": 42, "login": "octo", "name": "Octo Cat"}`,
		`[{"email": "old@example.org", "primary": false, "verified": true}]`)
	provider := newGithubProvider(server)

	_, err := provider.FetchIdentity(context.Background(), &oauth2.Token{AccessToken: "gh-token"})
	if !errx.IsCode(err, auth.CodeNoPrimaryEmail) {
		t.Fatalf("error = %v, want no primary email", err)
	}
}

func TestGithubIdentityProviderErrorIsFatal(t *testing.T) {
	server := newGithubServer(t, `{}`, `[]`)
	provider := newGithubProvider(server)

	// Wrong bearer: the user endpoint answers 401, which must surface as a
	// provider failure, not a redirectable condition.
	_, err := provider.FetchIdentity(context.Background(), &oauth2.Token{AccessToken: "wrong"})
	if !errx.IsCode(err, auth.CodeProviderFailure) {
		t.Fatalf("error = %v, want provider failure", err)
	}
}
