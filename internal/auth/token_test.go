package auth

import (
	"testing"
	"time"

	"github.com/digitalis/digitalis/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-that-is-long-enough"

func TestTokenManager_GenerateAndValidate(t *testing.T) {
	tm := NewTokenManager(testSecret, "digitalis", time.Hour)

	token, err := tm.GenerateToken(42, "alice", 0)
	require.NoError(t, err)

	claims, err := tm.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "42", claims.Subject)
	assert.Equal(t, models.TokenTypeWebService, claims.Type)
	assert.NotEmpty(t, claims.ID)
}

func TestTokenManager_ValidateToken_Expired(t *testing.T) {
	tm := NewTokenManager(testSecret, "digitalis", time.Hour)
	issued := time.Now().Add(-2 * time.Hour)
	tm.now = func() time.Time { return issued }

	token, err := tm.GenerateToken(42, "alice", time.Hour)
	require.NoError(t, err)

	tm.now = time.Now
	_, err = tm.ValidateToken(token)
	assert.Error(t, err)
}

func TestTokenManager_ValidateToken_WrongSecret(t *testing.T) {
	token, err := NewTokenManager(testSecret, "digitalis", time.Hour).GenerateToken(42, "alice", 0)
	require.NoError(t, err)

	_, err = NewTokenManager("another-secret-that-is-long", "digitalis", time.Hour).ValidateToken(token)
	assert.Error(t, err)
}

func TestTokenManager_ValidateToken_WrongIssuer(t *testing.T) {
	token, err := NewTokenManager(testSecret, "other-site", time.Hour).GenerateToken(42, "alice", 0)
	require.NoError(t, err)

	_, err = NewTokenManager(testSecret, "digitalis", time.Hour).ValidateToken(token)
	assert.Error(t, err)
}

func TestTokenManager_ValidateToken_RejectsOtherTokenTypes(t *testing.T) {
	tm := NewTokenManager(testSecret, "digitalis", time.Hour)
	claims := &models.TokenClaims{
		Type:   "refresh",
		UserID: 42,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "digitalis",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = tm.ValidateToken(token)
	assert.ErrorContains(t, err, "invalid token type")
}

func TestTokenManager_ValidateToken_RejectsNoneAlgorithm(t *testing.T) {
	tm := NewTokenManager(testSecret, "digitalis", time.Hour)
	claims := &models.TokenClaims{
		Type:   models.TokenTypeWebService,
		UserID: 42,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "digitalis",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = tm.ValidateToken(token)
	assert.Error(t, err)
}
