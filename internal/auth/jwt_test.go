package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func newTestTokenService(t *testing.T) *TokenService {
	t.Helper()
	ts, err := NewTokenService("test-secret-at-least-16-chars!!")
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return ts
}

func TestNewTokenService(t *testing.T) {
	if _, err := NewTokenService("short"); err == nil {
		t.Error("NewTokenService() should reject secrets shorter than 16 chars")
	}
	if _, err := NewTokenService("this-is-16-chars"); err != nil {
		t.Errorf("NewTokenService() unexpected error: %v", err)
	}
}

func TestGenerate_RoundTrip(t *testing.T) {
	ts := newTestTokenService(t)

	token, err := ts.Generate("user-123")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if strings.Count(token, ".") != 2 {
		t.Errorf("token %q is not header.payload.signature", token)
	}

	subject, err := ts.Validate(token)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if subject != "user-123" {
		t.Errorf("Validate() = %q, want %q", subject, "user-123")
	}
}

func TestGenerate_ClientSubject(t *testing.T) {
	ts := newTestTokenService(t)
	token, err := ts.GenerateWithDuration(ClientSubject("c1"), time.Hour)
	if err != nil {
		t.Fatalf("GenerateWithDuration() error = %v", err)
	}
	subject, err := ts.Validate(token)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	id, ok := ClientID(subject)
	if !ok || id != "c1" {
		t.Errorf("ClientID(%q) = %q, %v", subject, id, ok)
	}
	if _, ok := ClientID("user-1"); ok {
		t.Error("ClientID() accepted a user subject")
	}
	if _, ok := ClientID("client:"); ok {
		t.Error("ClientID() accepted an empty client ID")
	}
}

func TestValidate_Rejects(t *testing.T) {
	ts := newTestTokenService(t)

	expired, err := ts.GenerateWithDuration("user-1", -time.Minute)
	if err != nil {
		t.Fatalf("GenerateWithDuration() error = %v", err)
	}
	valid, err := ts.Generate("user-1")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	other, err := NewTokenService("a-completely-different-secret")
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	foreign, err := other.Generate("user-1")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	wrongIssuer, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "user-1",
		Issuer:    "someone-else",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("test-secret-at-least-16-chars!!"))
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}
	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject: "user-1",
		Issuer:  issuer,
	}).SignedString([]byte("test-secret-at-least-16-chars!!"))
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}

	tests := map[string]string{
		"expired":      expired,
		"tampered":     valid[:len(valid)-2] + "xx",
		"wrong secret": foreign,
		"wrong issuer": wrongIssuer,
		"no expiry":    noExpiry,
		"empty":        "",
		"garbage":      "not.a.jwt",
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := ts.Validate(token); err == nil {
				t.Errorf("Validate() accepted a %s token", name)
			}
		})
	}
}

func TestValidate_ExpiredMessage(t *testing.T) {
	ts := newTestTokenService(t)
	token, _ := ts.GenerateWithDuration("user-1", -time.Minute)
	_, err := ts.Validate(token)
	if err == nil || err.Error() != "auth: token expired" {
		t.Errorf("Validate() error = %v, want auth: token expired", err)
	}
}
