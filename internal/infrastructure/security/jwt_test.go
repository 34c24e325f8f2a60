package security

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aimarket/aimarket-go/internal/domain/identity"
)

const testSecret = "test-secret"

func TestSessionTokenRoundTrip(t *testing.T) {
	ident := &identity.Identity{
		ID:        "u1",
		Email:     "u1@example.com",
		Name:      "Ada",
		AvatarURL: "/media/avatars/u1_256px.webp",
		Provider:  "local",
	}

	token, expiresAt, err := GenerateSessionToken(ident, testSecret, time.Hour)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, time.Minute)

	claims, err := ValidateJWT(token, testSecret)
	require.NoError(t, err)

	got := IdentityFromClaims(claims)
	require.NotNil(t, got)
	assert.Equal(t, ident, got)
}

func TestValidateJWTRejectsWrongSecret(t *testing.T) {
	token, _, err := GenerateSessionToken(&identity.Identity{ID: "u1"}, testSecret, time.Hour)
	require.NoError(t, err)

	_, err = ValidateJWT(token, "other-secret")
	assert.Error(t, err)
}

func TestValidateJWTRejectsExpiredToken(t *testing.T) {
	token, _, err := GenerateSessionToken(&identity.Identity{ID: "u1"}, testSecret, -time.Minute)
	require.NoError(t, err)

	_, err = ValidateJWT(token, testSecret)
	assert.Error(t, err)
}

func TestValidateJWTRejectsUnsignedToken(t *testing.T) {
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "u1"})
	raw, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = ValidateJWT(raw, testSecret)
	assert.Error(t, err)
}

func TestIdentityFromClaimsRequiresSubject(t *testing.T) {
	assert.Nil(t, IdentityFromClaims(jwt.MapClaims{"email": "u1@example.com"}))
	assert.Nil(t, IdentityFromClaims(jwt.MapClaims{"sub": ""}))
}
