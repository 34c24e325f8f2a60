// Package security provides JWT token utilities
package security

import (
	"errors"
	"time"

	"github.com/aimarket/aimarket-go/internal/domain/identity"
	"github.com/golang-jwt/jwt/v4"
)

// ValidateJWT validates a JWT token and returns the claims
func ValidateJWT(tokenString, jwtSecret string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(jwtSecret), nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token")
}

// IdentityFromClaims extracts the signed-in identity from JWT claims
func IdentityFromClaims(claims jwt.MapClaims) *identity.Identity {
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return nil
	}

	ident := &identity.Identity{ID: sub}
	if email, ok := claims["email"].(string); ok {
		ident.Email = email
	}
	if name, ok := claims["name"].(string); ok {
		ident.Name = name
	}
	if avatar, ok := claims["avatarUrl"].(string); ok {
		ident.AvatarURL = avatar
	}
	if provider, ok := claims["provider"].(string); ok {
		ident.Provider = provider
	}
	return ident
}

// GenerateSessionToken creates a signed JWT for an authenticated identity
func GenerateSessionToken(ident *identity.Identity, jwtSecret string, ttl time.Duration) (string, time.Time, error) {
	now := time.Now().UTC()
	expiresAt := now.Add(ttl)

	claims := jwt.MapClaims{
		"sub":       ident.ID,
		"email":     ident.Email,
		"name":      ident.Name,
		"avatarUrl": ident.AvatarURL,
		"provider":  ident.Provider,
		"iat":       now.Unix(),
		"exp":       expiresAt.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	result, err := token.SignedString([]byte(jwtSecret))
	if err != nil {
		return "", time.Time{}, err
	}

	return result, expiresAt, nil
}
