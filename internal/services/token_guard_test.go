package services_test

import (
	"errors"
	"testing"

	"adwatch/internal/services"
)

func TestTokenGuard_OpenWhenUnconfigured(t *testing.T) {
	g, err := services.NewTokenGuard("")
	if err != nil {
		t.Fatal(err)
	}
	if g.Enabled() {
		t.Fatal("guard must be disabled without a token")
	}
	if err := g.Verify(""); err != nil {
		t.Fatalf("open guard rejected request: %v", err)
	}
	if err := g.Verify("anything"); err != nil {
		t.Fatalf("open guard rejected request: %v", err)
	}
}

func TestTokenGuard_VerifiesConfiguredToken(t *testing.T) {
	g, err := services.NewTokenGuard("s3cret-token")
	if err != nil {
		t.Fatal(err)
	}
	if !g.Enabled() {
		t.Fatal("guard must be enabled with a token")
	}
	if err := g.Verify("s3cret-token"); err != nil {
		t.Fatalf("correct token rejected: %v", err)
	}
	if err := g.Verify("wrong"); !errors.Is(err, services.ErrBadToken) {
		t.Fatalf("want ErrBadToken, got %v", err)
	}
	if err := g.Verify(""); !errors.Is(err, services.ErrBadToken) {
		t.Fatalf("want ErrBadToken for empty token, got %v", err)
	}
}
