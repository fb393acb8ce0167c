package secretary

import (
	"testing"
	"time"

	"github.com/danilovkiri/dk-go-maxrent/internal/config"
	secretaryService "github.com/danilovkiri/dk-go-maxrent/internal/service/secretary/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var _ secretaryService.Secretary = (*Secretary)(nil)

func newSecretary(t *testing.T) *Secretary {
	t.Helper()
	s, err := NewSecretaryService(&config.SecretConfig{SecretKey: "test-key", TokenTTL: time.Minute})
	require.NoError(t, err)
	s.cost = bcrypt.MinCost
	return s
}

func TestToken_RoundTrip(t *testing.T) {
	s := newSecretary(t)
	token, err := s.NewToken("provider-1")
	require.NoError(t, err)
	id, err := s.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "provider-1", id)
}

func TestToken_Expired(t *testing.T) {
	s := newSecretary(t)
	s.now = func() time.Time { return time.Now().Add(-time.Hour) }
	token, err := s.NewToken("provider-1")
	require.NoError(t, err)
	_, err = s.ValidateToken(token)
	assert.Error(t, err)
}

func TestToken_ForeignKey(t *testing.T) {
	s := newSecretary(t)
	other, err := NewSecretaryService(&config.SecretConfig{SecretKey: "other-key"})
	require.NoError(t, err)
	token, err := other.NewToken("provider-1")
	require.NoError(t, err)
	_, err = s.ValidateToken(token)
	assert.Error(t, err)
}

func TestPassword(t *testing.T) {
	s := newSecretary(t)
	hash, err := s.HashPassword("admin123")
	require.NoError(t, err)
	assert.NotEqual(t, "admin123", hash)
	assert.True(t, s.ComparePassword(hash, "admin123"))
	assert.False(t, s.ComparePassword(hash, "admin124"))
	assert.False(t, s.ComparePassword("", ""))
}

func TestNewSecretaryService_EmptyKey(t *testing.T) {
	_, err := NewSecretaryService(&config.SecretConfig{})
	assert.Error(t, err)
}
