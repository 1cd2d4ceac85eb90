package handler

import (
	"net/http"
	"time"

	"brandreport-service/internal/apperr"
	"brandreport-service/internal/model"
	"brandreport-service/pkg/jwtutil"
	"brandreport-service/pkg/logger"
	"brandreport-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Login exchanges a username/password pair for a bearer token.
func (h *Handler) Login(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.LoginCounter.Inc()

	// Parse request
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}

	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse login request", zap.Error(err))
		prometheus.RecordAuthError("invalid_request")
		return respondError(c, log, apperr.Validation("invalid request"))
	}

	if req.Username == "" || req.Password == "" {
		prometheus.RecordAuthError("incomplete_login")
		return respondError(c, log, apperr.Validation("username and password are required"))
	}

	// Find user in database - track DB operation duration
	defer prometheus.TrackDBOperation("query")(time.Now())
	user, err := h.store.FindUserByUsername(req.Username)
	if err != nil {
		log.Error("Failed to look up user", zap.Error(err))
		prometheus.RecordAuthError("db_error")
		return respondError(c, log, err)
	}

	// An unknown username and a wrong password produce the same response:
	// the login endpoint must not reveal which usernames exist.
	if user == nil {
		log.Warn("Login for unknown username", zap.String("username", req.Username))
		prometheus.RecordAuthError("user_not_found")
		return respondError(c, log, apperr.AuthFailure())
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		log.Warn("Invalid password", zap.String("username", req.Username))
		prometheus.RecordAuthError("invalid_password")
		return respondError(c, log, apperr.AuthFailure())
	}

	// Generate JWT token
	token, err := jwtutil.GenerateToken(user)
	if err != nil {
		log.Error("Failed to generate token", zap.Error(err))
		prometheus.RecordAuthError("token_generation_failed")
		return respondError(c, log, apperr.Internal(err))
	}

	prometheus.IncreaseActiveTokens()

	log.Info("User logged in",
		zap.String("username", user.Username),
		zap.String("role", string(user.Role)))

	return c.JSON(http.StatusOK, echo.Map{
		"message": "Login successful",
		"token":   token,
		"user":    user,
	})
}

// Register creates a new user. User creation is an administrative action:
// the caller must hold the admin role.
func (h *Handler) Register(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RegisterCounter.Inc()

	subjectID, err := subject(c)
	if err != nil {
		return respondError(c, log, err)
	}
	if _, err := h.resolver.AuthorizeWrite(subjectID); err != nil {
		return respondError(c, log, err)
	}

	// Parse request
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Role     string `json:"role"`
		Email    string `json:"email"`
	}

	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse registration request", zap.Error(err))
		prometheus.RecordAuthError("invalid_request")
		return respondError(c, log, apperr.Validation("invalid request"))
	}

	if req.Username == "" || req.Password == "" {
		prometheus.RecordAuthError("incomplete_registration")
		return respondError(c, log, apperr.Validation("username and password are required"))
	}

	role := model.Role(req.Role)
	if req.Role == "" {
		role = model.RoleUser
	}
	if !role.Valid() {
		return respondError(c, log, apperr.Validation("role must be admin or user"))
	}

	// Hash password
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Error("Failed to hash password", zap.Error(err))
		prometheus.RecordAuthError("password_hash_failed")
		return respondError(c, log, apperr.Internal(err))
	}

	user := model.User{
		Username: req.Username,
		Password: string(hashedPassword),
		Role:     role,
		Email:    req.Email,
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if err := h.store.CreateUser(&user); err != nil {
		prometheus.RecordAuthError("user_creation_failed")
		return respondError(c, log, err)
	}

	log.Info("User registered",
		zap.String("username", user.Username),
		zap.String("role", string(user.Role)))

	return c.JSON(http.StatusCreated, echo.Map{
		"message": "User registered successfully",
		"user":    user,
	})
}

// Verify re-resolves the token subject against the store and returns the
// fresh user record. A user deleted since the token was issued gets an
// identity failure here even though the signature still verifies.
func (h *Handler) Verify(c echo.Context) error {
	log := logger.FromContext(c)

	subjectID, err := subject(c)
	if err != nil {
		return respondError(c, log, err)
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	user, err := h.resolver.Identify(subjectID)
	if err != nil {
		return respondError(c, log, err)
	}

	return c.JSON(http.StatusOK, echo.Map{"user": user})
}
