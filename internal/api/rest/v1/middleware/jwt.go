// Package middleware provides various middleware functionality.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

type ctxKey struct{}

// TokenValidator resolves an access token into a provider identifier.
type TokenValidator interface {
	GetProviderID(accessToken string) (string, error)
}

// TokenHandler sets object structure.
type TokenHandler struct {
	validator TokenValidator
}

// NewTokenHandler initializes a new token handler.
func NewTokenHandler(validator TokenValidator) (*TokenHandler, error) {
	if validator == nil {
		return nil, errors.New("nil token validator was found")
	}
	return &TokenHandler{validator: validator}, nil
}

// TokenHandle rejects requests without a valid bearer token and stores the provider identifier in the request context.
func (c *TokenHandler) TokenHandle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := r.Header.Get("Authorization")
		if len(tokenString) == 0 {
			http.Error(w, "Token authorization required", http.StatusUnauthorized)
			return
		}
		tokenString = strings.TrimPrefix(tokenString, "Bearer ")
		providerID, err := c.validator.GetProviderID(tokenString)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithProviderID(r.Context(), providerID)))
	})
}

// WithProviderID returns a copy of ctx carrying the authenticated provider.
func WithProviderID(ctx context.Context, providerID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, providerID)
}

// ProviderID extracts the authenticated provider from ctx.
func ProviderID(ctx context.Context) (string, bool) {
	providerID, ok := ctx.Value(ctxKey{}).(string)
	return providerID, ok && providerID != ""
}
