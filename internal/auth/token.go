// Package auth verifies the identity tokens issued by the external identity
// provider and turns them into sessions.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Kerhoff/ShoppingBoT/internal/models"
)

var (
	ErrInvalidToken = errors.New("invalid identity token")
	ErrRevokedToken = errors.New("identity token has been revoked")
)

// Claims are the identity token claims. Subject is the user ID.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Session returns the session for the token's user on the given list.
func (c *Claims) Session(listID string) models.Session {
	return models.Session{UserID: c.Subject, Email: c.Email, ListID: listID}
}

// Verifier validates HS256 identity tokens and remembers logouts.
type Verifier struct {
	secret []byte
	issuer string

	mu      sync.Mutex
	revoked map[string]time.Time
	now     func() time.Time
}

// NewVerifier creates a verifier for tokens signed with secret by issuer.
func NewVerifier(secret, issuer string) *Verifier {
	return &Verifier{
		secret:  []byte(secret),
		issuer:  issuer,
		revoked: make(map[string]time.Time),
		now:     time.Now,
	}
}

// Issue signs a token for the user. The identity provider does this in
// production; it is used by development tooling and tests.
func (v *Verifier) Issue(userID, email string, ttl time.Duration) (string, error) {
	now := v.now()
	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    v.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify parses raw and checks signature, issuer, expiry, subject and
// revocation.
func (v *Verifier) Verify(raw string) (*Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrInvalidToken
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(v.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	v.mu.Lock()
	_, revoked := v.revoked[revocationKey(claims, raw)]
	v.mu.Unlock()
	if revoked {
		return nil, ErrRevokedToken
	}

	return claims, nil
}

// Revoke rejects the token until it expires. Expired revocations are
// pruned on each call.
func (v *Verifier) Revoke(claims *Claims, raw string) {
	expires := v.now()
	if claims.ExpiresAt != nil {
		expires = claims.ExpiresAt.Time
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	now := v.now()
	for key, exp := range v.revoked {
		if now.After(exp) {
			delete(v.revoked, key)
		}
	}
	v.revoked[revocationKey(claims, raw)] = expires
}

func revocationKey(claims *Claims, raw string) string {
	if claims.ID != "" {
		return "jti:" + claims.ID
	}
	return "raw:" + raw
}
