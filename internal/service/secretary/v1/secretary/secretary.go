// Package secretary provides methods for issuing access tokens and hashing credentials.
package secretary

import (
	"errors"
	"fmt"
	"time"

	"github.com/danilovkiri/dk-go-maxrent/internal/config"
	"github.com/danilovkiri/dk-go-maxrent/internal/models/modelclaims"
	"github.com/golang-jwt/jwt"
	"golang.org/x/crypto/bcrypt"
)

// Secretary defines object structure and its attributes.
type Secretary struct {
	key  []byte
	ttl  time.Duration
	cost int
	now  func() time.Time
}

// NewSecretaryService initializes a secretary service with signing and hashing functionality.
func NewSecretaryService(c *config.SecretConfig) (*Secretary, error) {
	if c == nil || c.SecretKey == "" {
		return nil, errors.New("empty secret key")
	}
	ttl := c.TokenTTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Secretary{
		key:  []byte(c.SecretKey),
		ttl:  ttl,
		cost: bcrypt.DefaultCost,
		now:  time.Now,
	}, nil
}

// NewToken issues a signed access token for a provider.
func (s *Secretary) NewToken(providerID string) (string, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &modelclaims.ProviderClaims{
		ProviderID: providerID,
		StandardClaims: jwt.StandardClaims{
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(s.ttl).Unix(),
		},
	})
	return token.SignedString(s.key)
}

// ValidateToken checks the signature and expiry of an access token and returns the provider identifier.
func (s *Secretary) ValidateToken(accessToken string) (string, error) {
	token, err := jwt.ParseWithClaims(accessToken, &modelclaims.ProviderClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.key, nil
	})
	if err != nil {
		return "", err
	}
	if claims, ok := token.Claims.(*modelclaims.ProviderClaims); ok && token.Valid && claims.ProviderID != "" {
		return claims.ProviderID, nil
	}
	return "", errors.New("invalid access token")
}

// HashPassword derives a bcrypt hash of a dashboard password.
func (s *Secretary) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// ComparePassword reports whether password matches a bcrypt hash.
func (s *Secretary) ComparePassword(hash, password string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
