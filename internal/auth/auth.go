// Package auth maps bearer tokens to registry principals.
//
// It does not issue tokens; identities are configured up front.
package auth

import (
	"crypto/subtle"
	"errors"
	"strings"

	"github.com/danmuck/landctl/internal/registry"
)

var ErrUnauthorized = errors.New("auth: unauthorized")

// Resolver turns a presented token into the principal it authenticates.
type Resolver interface {
	Resolve(token string) (registry.Principal, error)
}

// Credential binds one token to one principal.
type Credential struct {
	Principal registry.Principal
	Token     string
}

// StaticTokens resolves against a fixed credential list. Every comparison
// runs in constant time and every entry is checked.
type StaticTokens []Credential

func (s StaticTokens) Resolve(token string) (registry.Principal, error) {
	if token == "" {
		return "", ErrUnauthorized
	}
	var found registry.Principal
	for _, cred := range s {
		if cred.Token == "" {
			continue
		}
		if subtle.ConstantTimeCompare([]byte(cred.Token), []byte(token)) == 1 && found == "" {
			found = cred.Principal
		}
	}
	if found == "" {
		return "", ErrUnauthorized
	}
	return found, nil
}

// FuncResolver adapts a function into a Resolver.
type FuncResolver func(token string) (registry.Principal, error)

func (f FuncResolver) Resolve(token string) (registry.Principal, error) {
	return f(token)
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	const prefix = "bearer "
	header = strings.TrimSpace(header)
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}
