// Package secretary provides methods for authentication at the API boundary.
package secretary

// Secretary defines a set of methods for types implementing Secretary.
type Secretary interface {
	NewToken(providerID string) (string, error)
	ValidateToken(accessToken string) (string, error)
	HashPassword(password string) (string, error)
	ComparePassword(hash, password string) bool
}
