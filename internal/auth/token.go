package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

var (
	ErrValidation      = errors.New("email is required")
	ErrUnauthenticated = errors.New("unauthenticated")
)

// DefaultTTL is the session lifetime when GateOptions.TTL is zero.
const DefaultTTL = 7 * 24 * time.Hour

// Identity is what a validated session token says about the caller.
type Identity struct {
	Email     string
	Claims    map[string]any
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Claim returns a caller-supplied claim as a string, e.g. a role hint.
func (id Identity) Claim(key string) string {
	v, _ := id.Claims[key].(string)
	return v
}

type GateOptions struct {
	Secret     string
	TTL        time.Duration
	CookieName string
	Production bool
	// SameSite overrides the environment default: "lax", "strict" or "none".
	SameSite string
}

// Gate issues and validates stateless HS256 session tokens carried in an
// HTTP-only cookie. Nothing is stored server side, so a copied token stays
// valid until it expires even after the cookie is cleared.
type Gate struct {
	key        []byte
	ttl        time.Duration
	cookieName string
	secure     bool
	sameSite   http.SameSite
	now        func() time.Time
}

func NewGate(opts GateOptions) (*Gate, error) {
	key, err := DeriveSigningKey(opts.Secret)
	if err != nil {
		return nil, err
	}
	g := &Gate{
		key:        key,
		ttl:        opts.TTL,
		cookieName: opts.CookieName,
		now:        func() time.Time { return time.Now().UTC() },
	}
	if g.ttl <= 0 {
		g.ttl = DefaultTTL
	}
	if g.cookieName == "" {
		g.cookieName = "token"
	}
	if opts.Production {
		g.secure, g.sameSite = true, http.SameSiteStrictMode
	} else {
		g.secure, g.sameSite = false, http.SameSiteLaxMode
	}
	switch strings.ToLower(strings.TrimSpace(opts.SameSite)) {
	case "":
	case "lax":
		g.sameSite = http.SameSiteLaxMode
	case "strict":
		g.sameSite = http.SameSiteStrictMode
	case "none":
		// browsers drop SameSite=None cookies without Secure
		g.sameSite, g.secure = http.SameSiteNoneMode, true
	default:
		return nil, fmt.Errorf("unsupported SameSite policy %q", opts.SameSite)
	}
	return g, nil
}

func (g *Gate) CookieName() string { return g.cookieName }

// Issue signs identity plus iat/exp. identity must carry a non-empty string
// "email"; server-side iat and exp always replace caller-supplied values.
func (g *Gate) Issue(identity map[string]any) (string, Identity, error) {
	email, _ := identity["email"].(string)
	email = strings.TrimSpace(email)
	if email == "" {
		return "", Identity{}, ErrValidation
	}
	now := g.now()
	exp := now.Add(g.ttl)

	claims := jwt.MapClaims{}
	for k, v := range identity {
		claims[k] = v
	}
	claims["email"] = email
	claims["iat"] = now.Unix()
	claims["exp"] = exp.Unix()

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.key)
	if err != nil {
		return "", Identity{}, fmt.Errorf("sign session token: %w", err)
	}
	return signed, Identity{
		Email:     email,
		Claims:    map[string]any(claims),
		IssuedAt:  time.Unix(now.Unix(), 0).UTC(),
		ExpiresAt: time.Unix(exp.Unix(), 0).UTC(),
	}, nil
}

// Parse validates a raw token string.
func (g *Gate) Parse(raw string) (Identity, error) {
	if strings.TrimSpace(raw) == "" {
		return Identity{}, ErrUnauthenticated
	}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := jwt.MapClaims{}
	tok, err := parser.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return g.key, nil
	})
	if err != nil || !tok.Valid {
		return Identity{}, ErrUnauthenticated
	}
	now := g.now().Unix()
	if !claims.VerifyExpiresAt(now, true) {
		return Identity{}, ErrUnauthenticated
	}
	email, _ := claims["email"].(string)
	if strings.TrimSpace(email) == "" {
		return Identity{}, ErrUnauthenticated
	}
	id := Identity{Email: email, Claims: map[string]any(claims)}
	if v, ok := claims["iat"].(float64); ok {
		id.IssuedAt = time.Unix(int64(v), 0).UTC()
	}
	if v, ok := claims["exp"].(float64); ok {
		id.ExpiresAt = time.Unix(int64(v), 0).UTC()
	}
	return id, nil
}

// Authenticate reads the session cookie from r and validates it.
func (g *Gate) Authenticate(r *http.Request) (Identity, error) {
	c, err := r.Cookie(g.cookieName)
	if err != nil || c.Value == "" {
		return Identity{}, ErrUnauthenticated
	}
	return g.Parse(c.Value)
}

func (g *Gate) SetCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     g.cookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   g.secure,
		SameSite: g.sameSite,
		MaxAge:   int(g.ttl.Seconds()),
	})
}

// ClearCookie expires the session cookie. It is safe to call without a
// session.
func (g *Gate) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     g.cookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   g.secure,
		SameSite: g.sameSite,
		MaxAge:   -1,
		Expires:  time.Unix(1, 0).UTC(),
	})
}
