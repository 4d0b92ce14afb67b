package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

const testSecret = "this_is_a_valid_long_jwt_signing_secret_123456"

func newTestGate(t *testing.T, production bool) *Gate {
	t.Helper()
	g, err := NewGate(GateOptions{Secret: testSecret, CookieName: "token", Production: production})
	if err != nil {
		t.Fatalf("new gate: %v", err)
	}
	return g
}

func TestIssueAndAuthenticateRoundTrip(t *testing.T) {
	g := newTestGate(t, false)
	raw, issued, err := g.Issue(map[string]any{"email": "a@x.com", "role": "admin"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if got := issued.ExpiresAt.Sub(issued.IssuedAt); got != 7*24*time.Hour {
		t.Fatalf("expected 7 day lifetime, got %s", got)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "token", Value: raw})
	id, err := g.Authenticate(req)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if id.Email != "a@x.com" {
		t.Fatalf("expected email a@x.com, got %q", id.Email)
	}
	if id.Claim("role") != "admin" {
		t.Fatalf("expected caller claim to survive, got %q", id.Claim("role"))
	}
}

func TestIssueRequiresEmail(t *testing.T) {
	g := newTestGate(t, false)
	for _, payload := range []map[string]any{
		{},
		{"email": ""},
		{"email": "   "},
		{"email": 42},
		{"name": "no email"},
	} {
		if _, _, err := g.Issue(payload); !errors.Is(err, ErrValidation) {
			t.Fatalf("expected ErrValidation for %v, got %v", payload, err)
		}
	}
}

func TestIssueOverridesCallerTimestamps(t *testing.T) {
	g := newTestGate(t, false)
	raw, _, err := g.Issue(map[string]any{"email": "a@x.com", "exp": float64(1)})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := g.Parse(raw); err != nil {
		t.Fatalf("expected server exp to replace caller exp, got %v", err)
	}
}

func TestAuthenticateRejectsExpiredToken(t *testing.T) {
	g := newTestGate(t, false)
	past := time.Now().Add(-time.Hour)
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"email": "a@x.com",
		"iat":   past.Add(-7 * 24 * time.Hour).Unix(),
		"exp":   past.Unix(),
	}).SignedString(g.key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := g.Parse(raw); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated for expired token, got %v", err)
	}
}

func TestAuthenticateRejectsMissingExpiry(t *testing.T) {
	g := newTestGate(t, false)
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"email": "a@x.com"}).SignedString(g.key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := g.Parse(raw); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated without exp, got %v", err)
	}
}

func TestAuthenticateRejectsForeignSignature(t *testing.T) {
	g := newTestGate(t, false)
	other, err := NewGate(GateOptions{Secret: "another_long_secret_that_is_not_the_same_one"})
	if err != nil {
		t.Fatalf("new gate: %v", err)
	}
	raw, _, err := other.Issue(map[string]any{"email": "a@x.com"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := g.Parse(raw); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated for foreign signature, got %v", err)
	}
}

func TestAuthenticateRejectsNoneAlgorithm(t *testing.T) {
	g := newTestGate(t, false)
	raw, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"email": "a@x.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := g.Parse(raw); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated for alg=none, got %v", err)
	}
}

func TestAuthenticateMissingCookie(t *testing.T) {
	g := newTestGate(t, false)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, err := g.Authenticate(req); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestCookiePolicyByEnvironment(t *testing.T) {
	dev := newTestGate(t, false)
	rec := httptest.NewRecorder()
	dev.SetCookie(rec, "v")
	c := rec.Result().Cookies()[0]
	if c.Secure || c.SameSite != http.SameSiteLaxMode || !c.HttpOnly {
		t.Fatalf("unexpected development cookie: %+v", c)
	}

	prod := newTestGate(t, true)
	rec = httptest.NewRecorder()
	prod.SetCookie(rec, "v")
	c = rec.Result().Cookies()[0]
	if !c.Secure || c.SameSite != http.SameSiteStrictMode || !c.HttpOnly {
		t.Fatalf("unexpected production cookie: %+v", c)
	}

	cross, err := NewGate(GateOptions{Secret: testSecret, SameSite: "none"})
	if err != nil {
		t.Fatalf("new gate: %v", err)
	}
	rec = httptest.NewRecorder()
	cross.SetCookie(rec, "v")
	c = rec.Result().Cookies()[0]
	if !c.Secure || c.SameSite != http.SameSiteNoneMode {
		t.Fatalf("expected SameSite=None to force Secure: %+v", c)
	}
}

func TestClearCookieIsIdempotent(t *testing.T) {
	g := newTestGate(t, true)
	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		g.ClearCookie(rec)
		cookies := rec.Result().Cookies()
		if len(cookies) != 1 || cookies[0].MaxAge >= 0 || cookies[0].Value != "" {
			t.Fatalf("expected expired empty cookie, got %+v", cookies)
		}
	}
}

func TestDeriveSigningKeyIsStable(t *testing.T) {
	a, err := DeriveSigningKey(testSecret)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	b, _ := DeriveSigningKey(testSecret)
	if string(a) != string(b) || len(a) != 32 {
		t.Fatalf("expected stable 32 byte key")
	}
	if _, err := DeriveSigningKey(""); err == nil {
		t.Fatalf("expected empty secret to fail")
	}
}

type fakeVerifier struct {
	email string
	err   error
}

func (f fakeVerifier) VerifyEmail(ctx context.Context, idToken string) (string, error) {
	return f.email, f.err
}

func TestCheckIDToken(t *testing.T) {
	ctx := context.Background()
	if err := CheckIDToken(ctx, nil, "", "a@x.com"); err != nil {
		t.Fatalf("nil verifier should accept: %v", err)
	}
	if err := CheckIDToken(ctx, fakeVerifier{email: "A@x.com"}, "t", "a@x.com"); err != nil {
		t.Fatalf("expected case-insensitive match: %v", err)
	}
	if err := CheckIDToken(ctx, fakeVerifier{email: "b@x.com"}, "t", "a@x.com"); !errors.Is(err, ErrIDTokenMismatch) {
		t.Fatalf("expected ErrIDTokenMismatch, got %v", err)
	}
	if err := CheckIDToken(ctx, fakeVerifier{err: ErrUnauthenticated}, "t", "a@x.com"); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}
