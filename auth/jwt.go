// Package auth implements the external identity provider port named in
// spec.md §6: bearer-token validation and claim extraction, so the rest
// of the server never sees the provider's token format. Grounded on
// a ValidateNeonToken-style JWKS-backed JWT validation
// via keyfunc) and its FirstNameFromClaims/UserIDFromClaims helpers,
// generalized from one hardcoded provider (Neon Auth) to any
// issuer/JWKS endpoint pair supplied at construction.
package auth

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	"takserver/ids"
)

// Claims is the subset of the identity provider's token this server
// cares about (spec.md §6 "extracts account id / display name claims").
type Claims struct {
	AccountID   ids.AccountId
	DisplayName string
}

// Validator validates bearer tokens from one external identity provider
// against its published JWKS.
type Validator struct {
	jwks     keyfunc.Keyfunc
	issuer   string
	fallback string
}

// NewValidator builds a Validator for the identity provider rooted at
// baseURL (its JWKS is expected at baseURL+"/.well-known/jwks.json", and
// its issuer claim is expected to equal baseURL's scheme+host).
// fallbackName is used when a token carries no usable display name.
func NewValidator(baseURL, fallbackName string) (*Validator, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("auth: identity provider base URL is not set")
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("auth: invalid base URL: %w", err)
	}
	jwks, err := keyfunc.NewDefault([]string{baseURL + "/.well-known/jwks.json"})
	if err != nil {
		return nil, fmt.Errorf("auth: fetch JWKS: %w", err)
	}
	return &Validator{
		jwks:     jwks,
		issuer:   u.Scheme + "://" + u.Host,
		fallback: fallbackName,
	}, nil
}

// Validate parses and verifies tokenString, returning the account id and
// display name claims on success.
func (v *Validator) Validate(tokenString string) (Claims, error) {
	token, err := jwt.Parse(tokenString, v.jwks.Keyfunc,
		jwt.WithIssuer(v.issuer),
		jwt.WithValidMethods([]string{"EdDSA", "RS256"}))
	if err != nil {
		return Claims{}, fmt.Errorf("auth: validate token: %w", err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return Claims{}, fmt.Errorf("auth: invalid token claims")
	}
	return Claims{
		AccountID:   accountIDFromClaims(claims),
		DisplayName: displayNameFromClaims(claims, v.fallback),
	}, nil
}

func accountIDFromClaims(claims jwt.MapClaims) ids.AccountId {
	if sub, ok := claims["sub"].(string); ok && sub != "" {
		return ids.AccountId(sub)
	}
	if id, ok := claims["id"].(string); ok && id != "" {
		return ids.AccountId(id)
	}
	return ""
}

func displayNameFromClaims(claims jwt.MapClaims, fallback string) string {
	name, _ := claims["name"].(string)
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return fallback
	}
	if parts := strings.Fields(trimmed); len(parts) > 0 {
		return parts[0]
	}
	return fallback
}
