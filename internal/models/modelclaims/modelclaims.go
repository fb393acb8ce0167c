// Package modelclaims provides types for token authorization.

package modelclaims

import "github.com/golang-jwt/jwt"

// ProviderClaims carries the authenticated provider identifier.
type ProviderClaims struct {
	ProviderID string `json:"providerID"`
	jwt.StandardClaims
}
