package jwtutil

import (
	"errors"
	"fmt"
	"time"

	"brandreport-service/internal/apperr"
	"brandreport-service/internal/model"
	"brandreport-service/pkg/config"

	"github.com/golang-jwt/jwt/v4"
)

var cfg *config.JWTConfig

// Initialize sets the JWT configuration for the package
func Initialize(jwtConfig *config.JWTConfig) {
	cfg = jwtConfig
}

// UserClaims represents the JWT claims for user authentication.
// Authorization decisions never trust these claims directly: the scope
// resolver re-fetches the user by ID on every request, so the token is only
// a stable subject-id carrier.
type UserClaims struct {
	UserID   uint       `json:"user_id"`
	Username string     `json:"username"`
	Role     model.Role `json:"role"`
	jwt.RegisteredClaims
}

// GenerateToken creates a signed JWT token for the user
func GenerateToken(user *model.User) (string, error) {
	if cfg == nil {
		return "", errors.New("JWT configuration not provided")
	}

	claims := UserClaims{
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Duration(cfg.ExpirationHours) * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.SigningKey))
}

// ValidateToken validates and parses the JWT token. Failures are classified:
// an expired token, a token that cannot be parsed at all, and a token whose
// signature does not match are distinct error codes for the caller boundary.
func ValidateToken(tokenString string) (*UserClaims, error) {
	if cfg == nil {
		return nil, errors.New("JWT configuration not provided")
	}

	token, err := jwt.ParseWithClaims(
		tokenString,
		&UserClaims{},
		func(token *jwt.Token) (interface{}, error) {
			// Validate the signing method
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(cfg.SigningKey), nil
		},
	)

	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, apperr.TokenExpired(err)
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, apperr.TokenMalformed(err)
		default:
			return nil, apperr.TokenInvalid(err)
		}
	}

	if claims, ok := token.Claims.(*UserClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, apperr.TokenInvalid(jwt.ErrSignatureInvalid)
}
