package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/danmuck/landctl/internal/registry"
	"github.com/golang-jwt/jwt/v5"
)

// JWTResolver accepts HS256 tokens whose subject is the principal. Tokens
// must carry an expiry and, when Issuer is set, a matching issuer.
type JWTResolver struct {
	Secret []byte
	Issuer string
	Now    func() time.Time
}

func (r JWTResolver) Resolve(token string) (registry.Principal, error) {
	if len(r.Secret) == 0 {
		return "", fmt.Errorf("%w: jwt secret not configured", ErrUnauthorized)
	}
	now := r.Now
	if now == nil {
		now = time.Now
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(now),
	}
	if r.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(r.Issuer))
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return r.Secret, nil
	}, opts...)
	if err != nil {
		return "", mapJWTError(err)
	}
	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return "", fmt.Errorf("%w: token has no subject", ErrUnauthorized)
	}
	if registry.Principal(subject) == registry.Anonymous {
		return "", fmt.Errorf("%w: subject %q is reserved", ErrUnauthorized, subject)
	}
	return registry.Principal(subject), nil
}

// Sign issues an HS256 token for p valid for ttl. Used by tooling and tests.
func (r JWTResolver) Sign(p registry.Principal, ttl time.Duration) (string, error) {
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	issued := now()
	claims := jwt.RegisteredClaims{
		Subject:   string(p),
		Issuer:    r.Issuer,
		IssuedAt:  jwt.NewNumericDate(issued),
		ExpiresAt: jwt.NewNumericDate(issued.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(r.Secret)
}

func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: token expired", ErrUnauthorized)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: bad signature", ErrUnauthorized)
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return fmt.Errorf("%w: issuer mismatch", ErrUnauthorized)
	default:
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
}

// Chain tries each resolver in order and returns the first principal found.
type Chain []Resolver

func (c Chain) Resolve(token string) (registry.Principal, error) {
	for _, r := range c {
		if r == nil {
			continue
		}
		if p, err := r.Resolve(token); err == nil {
			return p, nil
		}
	}
	return "", ErrUnauthorized
}
