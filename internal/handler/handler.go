package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"brandreport-service/internal/apperr"
	"brandreport-service/internal/model"
	"brandreport-service/internal/report"
	"brandreport-service/internal/scope"
	"brandreport-service/internal/store"
	"brandreport-service/pkg/config"
	"brandreport-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Handler holds the store, the scope resolver and the CSV exporter, and
// handles HTTP requests.
type Handler struct {
	store     store.Store
	resolver  *scope.Resolver
	exporter  *report.CSVExporter
	pageLimit int
}

// New creates a new handler instance
func New(st store.Store, cfg *config.Config) *Handler {
	return &Handler{
		store:     st,
		resolver:  scope.NewResolver(st),
		exporter:  report.NewCSVExporter(st, cfg.Export.BatchSize),
		pageLimit: cfg.Export.PageLimit,
	}
}

// httpStatus is the single place the transport-independent error codes are
// translated to HTTP statuses. Token and identity failures are 401 so client
// UIs redirect to login; role and scope failures are 403 so they show a
// permission message instead.
func httpStatus(code string) int {
	switch code {
	case apperr.CodeAuthFailure, apperr.CodeTokenInvalid, apperr.CodeTokenExpired,
		apperr.CodeTokenMalformed, apperr.CodeIdentityNotFound:
		return http.StatusUnauthorized
	case apperr.CodeInsufficientRole, apperr.CodeAccessDenied:
		return http.StatusForbidden
	case apperr.CodeNotFound:
		return http.StatusNotFound
	case apperr.CodeConflict:
		return http.StatusConflict
	case apperr.CodeValidation:
		return http.StatusBadRequest
	case apperr.CodeStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError translates a core error to its HTTP shape.
func respondError(c echo.Context, log *zap.Logger, err error) error {
	var coded *apperr.Error
	if !errors.As(err, &coded) {
		coded = apperr.Internal(err)
	}

	switch coded.Code {
	case apperr.CodeInsufficientRole:
		prometheus.RecordScopeDenial("insufficient_role")
	case apperr.CodeAccessDenied:
		prometheus.RecordScopeDenial("access_denied")
	case apperr.CodeIdentityNotFound:
		prometheus.RecordScopeDenial("identity_not_found")
	}

	status := httpStatus(coded.Code)
	if status >= http.StatusInternalServerError {
		log.Error("Request failed", zap.String("code", coded.Code), zap.Error(err))
	} else {
		log.Warn("Request rejected", zap.String("code", coded.Code), zap.String("reason", coded.Message))
	}

	return c.JSON(status, echo.Map{"error": coded.Message, "code": coded.Code})
}

// subject returns the authenticated user id placed in the context by the
// auth middleware.
func subject(c echo.Context) (uint, error) {
	id, ok := c.Get("user_id").(uint)
	if !ok {
		return 0, apperr.New(apperr.CodeTokenMalformed, "authentication required")
	}
	return id, nil
}

// parseFilters reads the optional start_date, end_date and brand_id query
// parameters shared by every read and export endpoint.
func parseFilters(c echo.Context) (scope.Filters, error) {
	var f scope.Filters

	if raw := c.QueryParam("start_date"); raw != "" {
		t, err := time.Parse(model.DateLayout, raw)
		if err != nil {
			return f, apperr.Validation("start_date must be formatted YYYY-MM-DD")
		}
		f.StartDate = &t
	}
	if raw := c.QueryParam("end_date"); raw != "" {
		t, err := time.Parse(model.DateLayout, raw)
		if err != nil {
			return f, apperr.Validation("end_date must be formatted YYYY-MM-DD")
		}
		f.EndDate = &t
	}
	if f.StartDate != nil && f.EndDate != nil && f.EndDate.Before(*f.StartDate) {
		return f, apperr.Validation("end_date must not precede start_date")
	}
	if raw := c.QueryParam("brand_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return f, apperr.Validation("brand_id must be a positive integer")
		}
		brandID := uint(id)
		f.BrandID = &brandID
	}

	return f, nil
}

// parsePage reads limit/offset, clamping limit to the configured cap so a
// large range cannot force an unbounded result set into memory.
func (h *Handler) parsePage(c echo.Context) (limit, offset int, err error) {
	limit = 500
	if raw := c.QueryParam("limit"); raw != "" {
		v, convErr := strconv.Atoi(raw)
		if convErr != nil || v < 1 {
			return 0, 0, apperr.Validation("limit must be a positive integer")
		}
		limit = v
	}
	if limit > h.pageLimit {
		limit = h.pageLimit
	}
	if raw := c.QueryParam("offset"); raw != "" {
		v, convErr := strconv.Atoi(raw)
		if convErr != nil || v < 0 {
			return 0, 0, apperr.Validation("offset must be a non-negative integer")
		}
		offset = v
	}
	return limit, offset, nil
}

// pathID parses a numeric path parameter.
func pathID(c echo.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		return 0, apperr.Validation("invalid " + name)
	}
	return uint(id), nil
}
