package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophjournal/internal/clock"
	"github.com/dmitrijs2005/gophjournal/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newIssuer(t *testing.T, clk clock.Clock) *TokenIssuer {
	t.Helper()
	iss, err := NewTokenIssuer([]byte("super-secret"), 0, clk)
	if err != nil {
		t.Fatalf("NewTokenIssuer error: %v", err)
	}
	return iss
}

func TestIssueAndParse_Success(t *testing.T) {
	t.Parallel()

	clk := clock.NewFake(t0.Add(300 * time.Millisecond))
	iss := newIssuer(t, clk)

	tok, err := iss.Issue("user-123")
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	if !tok.IssuedAt.Equal(t0) {
		t.Fatalf("issued_at: got %v want %v", tok.IssuedAt, t0)
	}
	if got := tok.ExpiresAt.Sub(tok.IssuedAt); got != 15*time.Minute {
		t.Fatalf("ttl: got %v want 15m", got)
	}
	if tok.ID == "" || tok.UserID != "user-123" {
		t.Fatalf("unexpected token: %+v", tok)
	}

	claims, err := iss.Parse(tok.Token)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if claims.Subject != "user-123" || claims.Scope != "journal" || claims.Issuer != Issuer || claims.ID != tok.ID {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if !claims.ExpiresAt.Time.Equal(tok.ExpiresAt) || !claims.IssuedAt.Time.Equal(tok.IssuedAt) {
		t.Fatalf("time claims mismatch: %+v", claims)
	}
}

func TestIssue_UniqueIDs(t *testing.T) {
	t.Parallel()

	iss := newIssuer(t, clock.NewFake(t0))
	a, _ := iss.Issue("u1")
	b, _ := iss.Issue("u1")
	if a.ID == b.ID {
		t.Fatal("expected distinct jti per token")
	}
}

func TestParse_Expired(t *testing.T) {
	t.Parallel()

	clk := clock.NewFake(t0)
	iss := newIssuer(t, clk)
	tok, err := iss.Issue("u1")
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	clk.Advance(14 * time.Minute)
	if _, err := iss.Parse(tok.Token); err != nil {
		t.Fatalf("token should still be valid: %v", err)
	}

	clk.Advance(2 * time.Minute)
	if _, err := iss.Parse(tok.Token); !errors.Is(err, common.ErrTokenExpired) {
		t.Fatalf("expected common.ErrTokenExpired, got %v", err)
	}
}

func TestParse_WrongScope(t *testing.T) {
	t.Parallel()

	iss := newIssuer(t, clock.NewFake(t0))
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   "u1",
			ExpiresAt: jwt.NewNumericDate(t0.Add(time.Hour)),
		},
		Scope: "session",
	})
	signed, err := token.SignedString([]byte("super-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := iss.Parse(signed); !errors.Is(err, common.ErrWrongScope) {
		t.Fatalf("expected common.ErrWrongScope, got %v", err)
	}
}

func TestParse_WrongSecret(t *testing.T) {
	t.Parallel()

	clk := clock.NewFake(t0)
	other, err := NewTokenIssuer([]byte("other-secret"), 0, clk)
	if err != nil {
		t.Fatalf("NewTokenIssuer error: %v", err)
	}
	tok, _ := other.Issue("u1")

	if _, err := newIssuer(t, clk).Parse(tok.Token); !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("expected common.ErrInvalidToken, got %v", err)
	}
}

func TestParse_RejectsOtherAlgorithms(t *testing.T) {
	t.Parallel()

	iss := newIssuer(t, clock.NewFake(t0))
	token := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Issuer: Issuer, Subject: "u1", ExpiresAt: jwt.NewNumericDate(t0.Add(time.Hour))},
		Scope:            "journal",
	})
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := iss.Parse(signed); !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("expected common.ErrInvalidToken, got %v", err)
	}
}

func TestParse_MalformedString(t *testing.T) {
	t.Parallel()

	if _, err := newIssuer(t, clock.NewFake(t0)).Parse("not.a.jwt"); !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("expected common.ErrInvalidToken, got %v", err)
	}
}

func TestNewTokenIssuer_EmptySecret(t *testing.T) {
	t.Parallel()

	if _, err := NewTokenIssuer(nil, 0, clock.Real{}); err == nil {
		t.Fatal("expected error for empty secret")
	}
}
