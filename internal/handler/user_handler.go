package handler

import (
	"net/http"
	"time"

	"brandreport-service/internal/apperr"
	"brandreport-service/internal/model"
	"brandreport-service/pkg/logger"
	"brandreport-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// ListUsers returns every user account. Admin only.
func (h *Handler) ListUsers(c echo.Context) error {
	log := logger.FromContext(c)

	subjectID, err := subject(c)
	if err != nil {
		return respondError(c, log, err)
	}
	if _, err := h.resolver.AuthorizeWrite(subjectID); err != nil {
		return respondError(c, log, err)
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	users, err := h.store.ListUsers()
	if err != nil {
		return respondError(c, log, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"users": users,
		"count": len(users),
	})
}

// GetUser returns one user together with their allocated brands. Admins can
// look up anyone; a regular user only themselves.
func (h *Handler) GetUser(c echo.Context) error {
	log := logger.FromContext(c)

	subjectID, err := subject(c)
	if err != nil {
		return respondError(c, log, err)
	}

	userID, err := pathID(c, "id")
	if err != nil {
		return respondError(c, log, err)
	}

	caller, err := h.resolver.Identify(subjectID)
	if err != nil {
		return respondError(c, log, err)
	}
	if caller.Role != model.RoleAdmin && caller.ID != userID {
		return respondError(c, log, apperr.AccessDenied("cannot view other users"))
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	user, err := h.store.FindUserByID(userID)
	if err != nil {
		return respondError(c, log, err)
	}
	if user == nil {
		return respondError(c, log, apperr.NotFound("user not found"))
	}

	brands, err := h.store.BrandsForUser(userID)
	if err != nil {
		return respondError(c, log, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"user":   user,
		"brands": brands,
	})
}

// MyBrands returns the caller's own allocated brands.
func (h *Handler) MyBrands(c echo.Context) error {
	log := logger.FromContext(c)

	subjectID, err := subject(c)
	if err != nil {
		return respondError(c, log, err)
	}
	if _, err := h.resolver.Identify(subjectID); err != nil {
		return respondError(c, log, err)
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	brands, err := h.store.BrandsForUser(subjectID)
	if err != nil {
		return respondError(c, log, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"brands": brands,
		"count":  len(brands),
	})
}

// Allocate grants a user visibility of a brand. Admin only. Allocating an
// already-allocated pair is a conflict, reported by the store's unique
// index rather than a check-then-insert.
func (h *Handler) Allocate(c echo.Context) error {
	log := logger.FromContext(c)

	subjectID, err := subject(c)
	if err != nil {
		return respondError(c, log, err)
	}
	admin, err := h.resolver.AuthorizeWrite(subjectID)
	if err != nil {
		return respondError(c, log, err)
	}

	// Parse request
	var req struct {
		UserID  uint `json:"user_id"`
		BrandID uint `json:"brand_id"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse allocation request", zap.Error(err))
		return respondError(c, log, apperr.Validation("invalid request"))
	}
	if req.UserID == 0 || req.BrandID == 0 {
		return respondError(c, log, apperr.Validation("user_id and brand_id are required"))
	}

	user, err := h.store.FindUserByID(req.UserID)
	if err != nil {
		return respondError(c, log, err)
	}
	if user == nil {
		return respondError(c, log, apperr.NotFound("user not found"))
	}

	brand, err := h.store.FindBrandByID(req.BrandID)
	if err != nil {
		return respondError(c, log, err)
	}
	if brand == nil {
		return respondError(c, log, apperr.NotFound("brand not found"))
	}

	alloc := model.Allocation{
		UserID:      req.UserID,
		BrandID:     req.BrandID,
		AllocatedBy: admin.ID,
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if err := h.store.CreateAllocation(&alloc); err != nil {
		return respondError(c, log, err)
	}

	prometheus.RecordAllocationOperation("allocate")
	log.Info("Brand allocated",
		zap.Uint("user_id", req.UserID),
		zap.Uint("brand_id", req.BrandID))

	return c.JSON(http.StatusCreated, echo.Map{
		"message":    "Brand allocated successfully",
		"allocation": alloc,
	})
}

// Deallocate revokes a user's visibility of a brand. Admin only. The
// revocation takes effect on the user's next request; no token state is
// consulted.
func (h *Handler) Deallocate(c echo.Context) error {
	log := logger.FromContext(c)

	subjectID, err := subject(c)
	if err != nil {
		return respondError(c, log, err)
	}
	if _, err := h.resolver.AuthorizeWrite(subjectID); err != nil {
		return respondError(c, log, err)
	}

	userID, err := pathID(c, "user_id")
	if err != nil {
		return respondError(c, log, err)
	}
	brandID, err := pathID(c, "brand_id")
	if err != nil {
		return respondError(c, log, err)
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())
	if err := h.store.DeleteAllocation(userID, brandID); err != nil {
		return respondError(c, log, err)
	}

	prometheus.RecordAllocationOperation("deallocate")
	log.Info("Brand deallocated",
		zap.Uint("user_id", userID),
		zap.Uint("brand_id", brandID))

	return c.JSON(http.StatusOK, echo.Map{
		"message": "Brand deallocated successfully",
	})
}

// UserAllocations lists a user's allocated brands. Admin only.
func (h *Handler) UserAllocations(c echo.Context) error {
	log := logger.FromContext(c)

	subjectID, err := subject(c)
	if err != nil {
		return respondError(c, log, err)
	}
	if _, err := h.resolver.AuthorizeWrite(subjectID); err != nil {
		return respondError(c, log, err)
	}

	userID, err := pathID(c, "user_id")
	if err != nil {
		return respondError(c, log, err)
	}

	user, err := h.store.FindUserByID(userID)
	if err != nil {
		return respondError(c, log, err)
	}
	if user == nil {
		return respondError(c, log, apperr.NotFound("user not found"))
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	brands, err := h.store.BrandsForUser(userID)
	if err != nil {
		return respondError(c, log, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"user_id": userID,
		"brands":  brands,
		"count":   len(brands),
	})
}
