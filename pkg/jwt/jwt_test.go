package jwt

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

const testSecret = "test-secret-key-that-is-long-enough"

func TestGenerateAndValidateToken(t *testing.T) {
	manager := NewJWTManager(testSecret, 15*time.Minute)
	userID := uuid.New()

	token, err := manager.GenerateToken(userID, "alice")
	assert.NoError(t, err)
	assert.NotEmpty(t, token)

	claims, err := manager.ValidateToken(token)
	assert.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "chatlink-auth", claims.Issuer)
}

func TestValidateToken_Expired(t *testing.T) {
	manager := NewJWTManager(testSecret, -1*time.Minute)

	token, err := manager.GenerateToken(uuid.New(), "bob")
	assert.NoError(t, err)

	_, err = manager.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateToken_WrongSecret(t *testing.T) {
	manager := NewJWTManager(testSecret, 15*time.Minute)
	other := NewJWTManager("another-secret-key-also-long-enough", 15*time.Minute)

	token, err := manager.GenerateToken(uuid.New(), "carol")
	assert.NoError(t, err)

	_, err = other.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateToken_Garbage(t *testing.T) {
	manager := NewJWTManager(testSecret, 15*time.Minute)

	_, err := manager.ValidateToken("not-a-token")
	assert.Error(t, err)
}
