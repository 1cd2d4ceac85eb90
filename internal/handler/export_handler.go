package handler

import (
	"fmt"
	"net/http"
	"time"

	"brandreport-service/internal/report"
	"brandreport-service/internal/scope"
	"brandreport-service/pkg/logger"
	"brandreport-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// ExportAll streams a CSV of every login event visible to the caller.
// Admins export across all brands; regular users across their allocated
// set. A scope that matches nothing yields a header-only file, not an
// error.
func (h *Handler) ExportAll(c echo.Context) error {
	log := logger.FromContext(c)

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

	return h.streamCSV(c, log, "all", "login_report", sc)
}

// ExportBrand streams a CSV for one brand. This is a pointed export: a
// regular user naming a brand outside their allocation gets an access
// denial, never a silently empty file.
func (h *Handler) ExportBrand(c echo.Context) error {
	log := logger.FromContext(c)

	subjectID, err := subject(c)
	if err != nil {
		return respondError(c, log, err)
	}

	brandID, err := pathID(c, "id")
	if err != nil {
		return respondError(c, log, err)
	}

	filters, err := parseFilters(c)
	if err != nil {
		return respondError(c, log, err)
	}

	_, sc, err := h.resolver.AuthorizeBrand(subjectID, brandID, filters)
	if err != nil {
		return respondError(c, log, err)
	}

	brand, err := h.store.FindBrandByID(brandID)
	if err != nil {
		return respondError(c, log, err)
	}
	prefix := fmt.Sprintf("brand_%d", brandID)
	if brand != nil {
		prefix = slugify(brand.Name)
	}

	return h.streamCSV(c, log, "brand", prefix, sc)
}

// ExportMine streams a CSV over the caller's own allocated brands,
// regardless of role. Admins use it to export as if they were a regular
// user with their own allocations.
func (h *Handler) ExportMine(c echo.Context) error {
	log := logger.FromContext(c)

	subjectID, err := subject(c)
	if err != nil {
		return respondError(c, log, err)
	}

	filters, err := parseFilters(c)
	if err != nil {
		return respondError(c, log, err)
	}

	_, sc, err := h.resolver.AuthorizeOwn(subjectID, filters)
	if err != nil {
		return respondError(c, log, err)
	}

	return h.streamCSV(c, log, "mine", "my_login_report", sc)
}

// streamCSV writes the scoped event set as CSV straight to the response,
// without buffering the file. Once the header row is flushed the status is
// committed; a mid-stream store failure can only truncate the body.
func (h *Handler) streamCSV(c echo.Context, log *zap.Logger, target, prefix string, sc scope.Scope) error {
	filename := report.Filename(prefix, sc)

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/csv; charset=utf-8")
	resp.Header().Set(echo.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, filename))
	resp.WriteHeader(http.StatusOK)

	start := time.Now()
	rows, err := h.exporter.Write(c.Request().Context(), resp, sc)
	if err != nil {
		// Headers are already on the wire; log and abort the stream.
		log.Error("CSV export failed mid-stream",
			zap.String("target", target),
			zap.Int64("rows_written", rows),
			zap.Error(err))
		return err
	}

	prometheus.RecordExport(target, rows, time.Since(start))
	log.Info("CSV export complete",
		zap.String("target", target),
		zap.String("filename", filename),
		zap.Int64("rows", rows))
	return nil
}

// slugify lowercases a brand name into a filename-safe token.
func slugify(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			out = append(out, r)
		case r >= 'A' && r <= 'Z':
			out = append(out, r+('a'-'A'))
		case r == ' ' || r == '-' || r == '_':
			out = append(out, '_')
		}
	}
	if len(out) == 0 {
		return "brand"
	}
	return string(out)
}
