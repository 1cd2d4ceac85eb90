package middleware

import (
	"net/http"
	"strings"

	"brandreport-service/internal/apperr"
	"brandreport-service/pkg/jwtutil"
	"brandreport-service/pkg/logger"
	"brandreport-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// AuthMiddleware validates the JWT token from the Authorization header and
// stores the claims in the request context. It authenticates only: role and
// visibility decisions are made by the scope resolver against a fresh user
// record, never from the claims themselves.
func AuthMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		log := logger.FromContext(c)

		// Get the Authorization header
		authHeader := c.Request().Header.Get("Authorization")
		if authHeader == "" {
			log.Error("Missing Authorization header")
			prometheus.RecordAuthError("missing_token")
			return c.JSON(http.StatusUnauthorized, echo.Map{
				"error": "missing authorization token",
				"code":  apperr.CodeTokenMalformed,
			})
		}

		// Check if it's a Bearer token
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			log.Error("Invalid Authorization header format")
			prometheus.RecordAuthError("invalid_auth_format")
			return c.JSON(http.StatusUnauthorized, echo.Map{
				"error": "invalid authorization format, expected Bearer token",
				"code":  apperr.CodeTokenMalformed,
			})
		}

		// Validate the token
		claims, err := jwtutil.ValidateToken(parts[1])
		if err != nil {
			code := apperr.CodeOf(err)
			log.Error("Invalid JWT token", zap.Error(err), zap.String("code", code))
			prometheus.RecordAuthError("invalid_token")
			return c.JSON(http.StatusUnauthorized, echo.Map{
				"error": "invalid or expired token",
				"code":  code,
			})
		}

		// Store the subject for handlers; the role claim is informational
		// and re-checked against the store before any authorization.
		c.Set("user_id", claims.UserID)
		c.Set("username", claims.Username)

		return next(c)
	}
}

// SubjectID returns the authenticated user id set by AuthMiddleware.
func SubjectID(c echo.Context) (uint, bool) {
	id, ok := c.Get("user_id").(uint)
	return id, ok
}
