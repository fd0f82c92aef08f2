package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/egoauth/ego/pkg/errx"
	"github.com/egoauth/ego/pkg/iam"
	"github.com/egoauth/ego/pkg/iam/auth"
)

func TestStateRoundTrip(t *testing.T) {
	m := auth.NewInMemoryStateManager(time.Minute)

	saved := auth.LoginState{
		Provider:         iam.ProviderGithub,
		ClientID:         "portal-client",
		RedirectURI:      "https://portal.example.org/cb",
		ErrorRedirectURI: "https://portal.example.org/error",
	}
	nonce, err := m.Save(context.Background(), saved)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if nonce == "" {
		t.Fatal("empty nonce")
	}

	got, err := m.Consume(context.Background(), nonce)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if *got != saved {
		t.Fatalf("consumed state = %+v, want %+v", *got, saved)
	}
}

func TestStateConsumeIsOneShot(t *testing.T) {
	m := auth.NewInMemoryStateManager(time.Minute)

	nonce, err := m.Save(context.Background(), auth.LoginState{Provider: iam.ProviderGoogle})
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	if _, err := m.Consume(context.Background(), nonce); err != nil {
		t.Fatalf("first consume: %v", err)
	}
	if _, err := m.Consume(context.Background(), nonce); !errx.IsCode(err, auth.CodeInvalidState) {
		t.Fatalf("second consume error = %v, want invalid state", err)
	}
}

func TestStateUnknownNonceFails(t *testing.T) {
	m := auth.NewInMemoryStateManager(time.Minute)
	if _, err := m.Consume(context.Background(), "no-such-nonce"); !errx.IsCode(err, auth.CodeInvalidState) {
		t.Fatalf("consume error = %v, want invalid state", err)
	}
}

func TestStateExpires(t *testing.T) {
	m := auth.NewInMemoryStateManager(-time.Second)

	nonce, err := m.Save(context.Background(), auth.LoginState{Provider: iam.ProviderOrcid})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := m.Consume(context.Background(), nonce); !errx.IsCode(err, auth.CodeInvalidState) {
		t.Fatalf("consume error = %v, want invalid state", err)
	}
}
