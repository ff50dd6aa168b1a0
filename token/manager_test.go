package token

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

func testManager(t *testing.T) *Manager {
	t.Helper()

	m, err := NewManager(Config{
		AccessTTL:     time.Hour,
		RefreshTTL:    7 * 24 * time.Hour,
		SigningMethod: MethodHS256,
		PrivateKey:    []byte("test-signing-secret-test-signing"),
		Issuer:        "authcore",
	})
	if err != nil {
		t.Fatalf("NewManager error: %v", err)
	}
	return m
}

func testSubject() Subject {
	return Subject{
		UserID:    "user-1",
		TenantID:  "t1",
		Handle:    "alice",
		Email:     "alice@example.com",
		FirstName: "Alice",
		LastName:  "Martin",
		Roles:     []string{"manager", "sales"},
	}
}

func TestIssuePairRoundTrip(t *testing.T) {
	m := testManager(t)

	pair, err := m.IssuePair(testSubject())
	if err != nil {
		t.Fatalf("IssuePair error: %v", err)
	}

	access, err := m.Parse(pair.Access, KindAccess)
	if err != nil {
		t.Fatalf("Parse access error: %v", err)
	}
	if access.Subject != "user-1" || access.Handle != "alice" || access.Email != "alice@example.com" {
		t.Fatalf("unexpected identity claims: %+v", access)
	}
	if len(access.Roles) != 2 || access.Roles[0] != "manager" {
		t.Fatalf("unexpected role snapshot: %v", access.Roles)
	}
	if access.ID != pair.AccessJTI {
		t.Fatalf("expected access jti %s, got %s", pair.AccessJTI, access.ID)
	}

	refresh, err := m.Parse(pair.Refresh, KindRefresh)
	if err != nil {
		t.Fatalf("Parse refresh error: %v", err)
	}
	if refresh.ID != pair.RefreshJTI {
		t.Fatalf("expected refresh jti %s, got %s", pair.RefreshJTI, refresh.ID)
	}
	if refresh.ID == access.ID {
		t.Fatal("access and refresh must carry distinct jtis")
	}
}

func TestParseRejectsWrongKind(t *testing.T) {
	m := testManager(t)

	pair, err := m.IssuePair(testSubject())
	if err != nil {
		t.Fatalf("IssuePair error: %v", err)
	}

	if _, err := m.Parse(pair.Access, KindRefresh); !errors.Is(err, ErrWrongKind) {
		t.Fatalf("expected ErrWrongKind for access token, got: %v", err)
	}
	if _, err := m.Parse(pair.Refresh, KindAccess); !errors.Is(err, ErrWrongKind) {
		t.Fatalf("expected ErrWrongKind for refresh token, got: %v", err)
	}
}

func TestParseExpired(t *testing.T) {
	m, err := NewManager(Config{
		AccessTTL:     time.Nanosecond,
		RefreshTTL:    time.Hour,
		SigningMethod: MethodHS256,
		PrivateKey:    []byte("test-signing-secret-test-signing"),
	})
	if err != nil {
		t.Fatalf("NewManager error: %v", err)
	}

	pair, err := m.IssuePair(testSubject())
	if err != nil {
		t.Fatalf("IssuePair error: %v", err)
	}

	time.Sleep(5 * time.Millisecond)
	if _, err := m.Parse(pair.Access, KindAccess); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got: %v", err)
	}
}

func TestParseMalformed(t *testing.T) {
	m := testManager(t)

	for _, tok := range []string{"", "garbage", "a.b.c"} {
		if _, err := m.Parse(tok, KindAccess); !errors.Is(err, ErrMalformed) {
			t.Fatalf("expected ErrMalformed for %q, got: %v", tok, err)
		}
	}
}

func TestParseRejectsWrongAlgorithm(t *testing.T) {
	m := testManager(t)

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}

	claims := Claims{Kind: KindAccess, RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "user-1",
		ID:        "jti-1",
		Issuer:    "authcore",
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}
	forged, err := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, claims).SignedString(priv)
	if err != nil {
		t.Fatalf("sign forged token: %v", err)
	}

	if _, err := m.Parse(forged, KindAccess); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed for wrong algorithm, got: %v", err)
	}
}

func TestParseRejectsWrongIssuer(t *testing.T) {
	m := testManager(t)

	claims := Claims{Kind: KindAccess, RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "user-1",
		ID:        "jti-1",
		Issuer:    "someone-else",
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}
	forged, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString([]byte("test-signing-secret-test-signing"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	if _, err := m.Parse(forged, KindAccess); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed for wrong issuer, got: %v", err)
	}
}

func TestParseRejectsMissingSubjectOrJTI(t *testing.T) {
	m := testManager(t)

	claims := Claims{Kind: KindAccess, RegisteredClaims: gjwt.RegisteredClaims{
		Issuer:    "authcore",
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}
	bare, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString([]byte("test-signing-secret-test-signing"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	if _, err := m.Parse(bare, KindAccess); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed for missing subject, got: %v", err)
	}
}

func TestEd25519RoundTrip(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}

	m, err := NewManager(Config{
		AccessTTL:     time.Hour,
		RefreshTTL:    24 * time.Hour,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     pub,
	})
	if err != nil {
		t.Fatalf("NewManager error: %v", err)
	}

	pair, err := m.IssuePair(testSubject())
	if err != nil {
		t.Fatalf("IssuePair error: %v", err)
	}
	if _, err := m.Parse(pair.Access, KindAccess); err != nil {
		t.Fatalf("Parse error: %v", err)
	}
}
