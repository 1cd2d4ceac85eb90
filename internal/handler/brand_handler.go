package handler

import (
	"net/http"
	"time"

	"brandreport-service/internal/apperr"
	"brandreport-service/internal/model"
	"brandreport-service/internal/scope"
	"brandreport-service/pkg/logger"
	"brandreport-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// ListBrands returns the brands visible to the caller: all brands for an
// admin, the allocated set for a regular user.
func (h *Handler) ListBrands(c echo.Context) error {
	log := logger.FromContext(c)

	subjectID, err := subject(c)
	if err != nil {
		return respondError(c, log, err)
	}

	_, sc, err := h.resolver.AuthorizeRead(subjectID, scope.Filters{})
	if err != nil {
		return respondError(c, log, err)
	}

	defer prometheus.TrackDBOperation("query")(time.Now())

	ids, all := sc.VisibleBrandIDs()
	var brands []model.Brand
	if all {
		brands, err = h.store.AllBrands()
	} else {
		brands, err = h.store.BrandsByIDs(ids)
	}
	if err != nil {
		return respondError(c, log, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"brands": brands,
		"count":  len(brands),
	})
}

// GetBrand returns one brand. This is a pointed lookup: a regular user
// asking for a brand outside their allocation set is refused, not given an
// empty result. Admins additionally see who the brand is allocated to.
func (h *Handler) GetBrand(c echo.Context) error {
	log := logger.FromContext(c)

	subjectID, err := subject(c)
	if err != nil {
		return respondError(c, log, err)
	}

	brandID, err := pathID(c, "id")
	if err != nil {
		return respondError(c, log, err)
	}

	user, _, err := h.resolver.AuthorizeBrand(subjectID, brandID, scope.Filters{})
	if err != nil {
		return respondError(c, log, err)
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	brand, err := h.store.FindBrandByID(brandID)
	if err != nil {
		return respondError(c, log, err)
	}
	if brand == nil {
		return respondError(c, log, apperr.NotFound("brand not found"))
	}

	resp := echo.Map{"brand": brand}
	if user.Role == model.RoleAdmin {
		users, err := h.store.UsersForBrand(brandID)
		if err != nil {
			return respondError(c, log, err)
		}
		resp["allocated_users"] = users
	}

	return c.JSON(http.StatusOK, resp)
}

// CreateBrand registers a new brand. Admin only.
func (h *Handler) CreateBrand(c echo.Context) error {
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
		Name           string `json:"name"`
		MasterOutletID string `json:"master_outlet_id"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse brand request", zap.Error(err))
		return respondError(c, log, apperr.Validation("invalid request"))
	}
	if req.Name == "" {
		return respondError(c, log, apperr.Validation("brand name is required"))
	}
	if req.MasterOutletID == "" {
		return respondError(c, log, apperr.Validation("master outlet id is required"))
	}

	brand := model.Brand{
		Name:           req.Name,
		MasterOutletID: req.MasterOutletID,
		CreatedBy:      admin.ID,
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if err := h.store.CreateBrand(&brand); err != nil {
		return respondError(c, log, err)
	}

	prometheus.RecordBrandOperation("create")
	log.Info("Brand created",
		zap.Uint("brand_id", brand.ID),
		zap.String("name", brand.Name))

	return c.JSON(http.StatusCreated, echo.Map{
		"message": "Brand created successfully",
		"brand":   brand,
	})
}

// UpdateBrand renames a brand or changes its master outlet id. Admin only.
func (h *Handler) UpdateBrand(c echo.Context) error {
	log := logger.FromContext(c)

	subjectID, err := subject(c)
	if err != nil {
		return respondError(c, log, err)
	}
	if _, err := h.resolver.AuthorizeWrite(subjectID); err != nil {
		return respondError(c, log, err)
	}

	brandID, err := pathID(c, "id")
	if err != nil {
		return respondError(c, log, err)
	}

	var req struct {
		Name           *string `json:"name"`
		MasterOutletID *string `json:"master_outlet_id"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse brand request", zap.Error(err))
		return respondError(c, log, apperr.Validation("invalid request"))
	}

	brand, err := h.store.FindBrandByID(brandID)
	if err != nil {
		return respondError(c, log, err)
	}
	if brand == nil {
		return respondError(c, log, apperr.NotFound("brand not found"))
	}

	if req.Name != nil {
		if *req.Name == "" {
			return respondError(c, log, apperr.Validation("brand name cannot be empty"))
		}
		brand.Name = *req.Name
	}
	if req.MasterOutletID != nil {
		brand.MasterOutletID = *req.MasterOutletID
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	if err := h.store.UpdateBrand(brand); err != nil {
		return respondError(c, log, err)
	}

	prometheus.RecordBrandOperation("update")
	log.Info("Brand updated", zap.Uint("brand_id", brand.ID))

	return c.JSON(http.StatusOK, echo.Map{
		"message": "Brand updated successfully",
		"brand":   brand,
	})
}

// DeleteBrand removes a brand together with every allocation that points at
// it, in one transaction. Login events keep their rows; they simply lose
// their brand linkage and drop out of non-admin scopes.
func (h *Handler) DeleteBrand(c echo.Context) error {
	log := logger.FromContext(c)

	subjectID, err := subject(c)
	if err != nil {
		return respondError(c, log, err)
	}
	if _, err := h.resolver.AuthorizeWrite(subjectID); err != nil {
		return respondError(c, log, err)
	}

	brandID, err := pathID(c, "id")
	if err != nil {
		return respondError(c, log, err)
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())
	if err := h.store.DeleteBrand(brandID); err != nil {
		return respondError(c, log, err)
	}

	prometheus.RecordBrandOperation("delete")
	log.Info("Brand deleted", zap.Uint("brand_id", brandID))

	return c.JSON(http.StatusOK, echo.Map{
		"message": "Brand deleted successfully",
	})
}
