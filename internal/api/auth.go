package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt"
)

const tokenCookieKey = "token"

var (
	ErrMissingToken    = errors.New("missing token")
	ErrIncompleteToken = errors.New("token has no subject claim")
)

type contextKey string

const identityKey contextKey = "identity"

// Identity returns the verified user identity bound to the request context
// by the auth middleware. Handlers trust this value unconditionally, so it
// is only ever set after token verification succeeds.
func Identity(ctx context.Context) (string, bool) {
	identity, ok := ctx.Value(identityKey).(string)
	return identity, ok
}

func WithIdentity(ctx context.Context, identity string) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// bearerToken extracts the token from the Authorization header, falling
// back to the token cookie. Websocket clients in browsers cannot set
// headers on the upgrade request, so the cookie path matters there.
func bearerToken(r *http.Request) (string, error) {
	if auth := r.Header.Get("Authorization"); auth != "" {
		token, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || token == "" {
			return "", ErrMissingToken
		}
		return token, nil
	}

	cookie, err := r.Cookie(tokenCookieKey)
	if err != nil || cookie.Value == "" {
		return "", ErrMissingToken
	}

	return cookie.Value, nil
}

// identityFromToken verifies the token against the configured key material
// and returns the subject claim. A structurally valid token without a
// non-empty subject is rejected.
func (s *PagesmithApp) identityFromToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.signingKey, nil
	})
	if err != nil {
		return "", fmt.Errorf("parse token: %w", err)
	}

	if !token.Valid {
		return "", fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid token claims")
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", ErrIncompleteToken
	}

	return sub, nil
}
