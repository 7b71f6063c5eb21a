package token

import (
	"errors"
	"testing"
	"time"
)

func newTestCodec(t *testing.T) *Codec {
	t.Helper()

	c, err := NewCodec([]byte("test-secret-key-0123456789"), AlgHS256)
	if err != nil {
		t.Fatalf("NewCodec failed: %v", err)
	}
	return c
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	c := newTestCodec(t)

	tok, err := c.Issue("alice@example.com", time.Minute)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	subject, err := c.Verify(tok)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if subject != "alice@example.com" {
		t.Fatalf("unexpected subject %q", subject)
	}
}

func TestIssueProducesDistinctTokens(t *testing.T) {
	c := newTestCodec(t)

	first, err := c.Issue("alice@example.com", time.Minute)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	time.Sleep(1100 * time.Millisecond)
	second, err := c.Issue("alice@example.com", time.Minute)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	if first == second {
		t.Fatal("tokens issued at different instants must differ")
	}
}

func TestVerifyExpired(t *testing.T) {
	c := newTestCodec(t)

	tok, err := c.Issue("alice@example.com", time.Second)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	time.Sleep(1500 * time.Millisecond)

	if _, err := c.Verify(tok); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestVerifyWrongSecret(t *testing.T) {
	c := newTestCodec(t)
	other, err := NewCodec([]byte("a-completely-different-secret"), AlgHS256)
	if err != nil {
		t.Fatalf("NewCodec failed: %v", err)
	}

	tok, err := other.Issue("alice@example.com", time.Minute)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	if _, err := c.Verify(tok); !errors.Is(err, ErrSignature) {
		t.Fatalf("expected ErrSignature, got %v", err)
	}
}

func TestVerifyMalformed(t *testing.T) {
	c := newTestCodec(t)

	for _, tok := range []string{"", "not-a-token", "a.b", "a.b.c.d"} {
		if _, err := c.Verify(tok); !errors.Is(err, ErrMalformed) {
			t.Fatalf("token %q: expected ErrMalformed, got %v", tok, err)
		}
	}
}

func TestVerifyRejectsForeignAlgorithm(t *testing.T) {
	secret := []byte("shared-secret-between-codecs")
	hs512, err := NewCodec(secret, AlgHS512)
	if err != nil {
		t.Fatalf("NewCodec failed: %v", err)
	}
	hs256, err := NewCodec(secret, AlgHS256)
	if err != nil {
		t.Fatalf("NewCodec failed: %v", err)
	}

	tok, err := hs512.Issue("alice@example.com", time.Minute)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	if _, err := hs256.Verify(tok); err == nil {
		t.Fatal("expected verification to fail across signing methods")
	}
}

func TestNewCodecValidation(t *testing.T) {
	if _, err := NewCodec(nil, AlgHS256); err == nil {
		t.Fatal("expected error for empty secret")
	}
	if _, err := NewCodec([]byte("x"), Algorithm("rs256")); err == nil {
		t.Fatal("expected error for unsupported algorithm")
	}
}
