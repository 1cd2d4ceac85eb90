package handler

import (
	"net/http"
	"time"

	"brandreport-service/internal/model"
	"brandreport-service/internal/scope"
	"brandreport-service/pkg/logger"
	"brandreport-service/prometheus"

	"github.com/labstack/echo/v4"
)

// LoginLogs lists the login events visible to the caller, with summary
// counters computed over the same scoped set. A brand filter outside a
// regular user's allocation yields an empty page, not an error.
func (h *Handler) LoginLogs(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordReportOperation("login_logs")

	subjectID, err := subject(c)
	if err != nil {
		return respondError(c, log, err)
	}

	filters, err := parseFilters(c)
	if err != nil {
		return respondError(c, log, err)
	}
	limit, offset, err := h.parsePage(c)
	if err != nil {
		return respondError(c, log, err)
	}

	_, sc, err := h.resolver.AuthorizeRead(subjectID, filters)
	if err != nil {
		return respondError(c, log, err)
	}

	defer prometheus.TrackDBOperation("query")(time.Now())

	events, err := h.store.ListEvents(sc, limit, offset)
	if err != nil {
		return respondError(c, log, err)
	}
	summary, err := h.store.Summarize(sc)
	if err != nil {
		return respondError(c, log, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"events":  events,
		"summary": summary,
		"filters": filterEcho(filters),
		"limit":   limit,
		"offset":  offset,
	})
}

// DailySummary returns per-day aggregate counters over the caller's scope.
func (h *Handler) DailySummary(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordReportOperation("daily_summary")

	subjectID, err := subject(c)
	if err != nil {
		return respondError(c, log, err)
	}

	filters, err := parseFilters(c)
	if err != nil {
		return respondError(c, log, err)
	}

	_, sc, err := h.resolver.AuthorizeRead(subjectID, filters)
	if err != nil {
		return respondError(c, log, err)
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	days, err := h.store.DailySummaries(sc)
	if err != nil {
		return respondError(c, log, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"days":    days,
		"filters": filterEcho(filters),
	})
}

// BrandSummary returns per-brand aggregate counters over the caller's
// scope. Visible brands with no events in range appear with zero counts.
func (h *Handler) BrandSummary(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordReportOperation("brand_summary")

	subjectID, err := subject(c)
	if err != nil {
		return respondError(c, log, err)
	}

	filters, err := parseFilters(c)
	if err != nil {
		return respondError(c, log, err)
	}

	_, sc, err := h.resolver.AuthorizeRead(subjectID, filters)
	if err != nil {
		return respondError(c, log, err)
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	brands, err := h.store.BrandSummaries(sc)
	if err != nil {
		return respondError(c, log, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"brands":  brands,
		"filters": filterEcho(filters),
	})
}

// filterEcho renders the applied filters back to the caller in the same
// format they were supplied in.
func filterEcho(f scope.Filters) echo.Map {
	m := echo.Map{}
	if f.BrandID != nil {
		m["brand_id"] = *f.BrandID
	}
	if f.StartDate != nil {
		m["start_date"] = f.StartDate.Format(model.DateLayout)
	}
	if f.EndDate != nil {
		m["end_date"] = f.EndDate.Format(model.DateLayout)
	}
	return m
}
