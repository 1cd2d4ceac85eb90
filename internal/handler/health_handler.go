package handler

import (
	"net/http"
	"time"

	"brandreport-service/pkg/database"
	"brandreport-service/prometheus"

	"github.com/labstack/echo/v4"
)

var startTime = time.Now()

// HealthCheck reports process liveness and database reachability.
func HealthCheck(c echo.Context) error {
	dbStatus := "ok"
	if db := database.GetDB(); db != nil {
		sqlDB, err := db.DB()
		if err != nil || sqlDB.Ping() != nil {
			dbStatus = "unavailable"
		}
	} else {
		dbStatus = "uninitialized"
	}

	status := http.StatusOK
	if dbStatus != "ok" {
		status = http.StatusServiceUnavailable
	}

	return c.JSON(status, echo.Map{
		"status":   "ok",
		"database": dbStatus,
		"uptime":   time.Since(startTime).String(),
	})
}

// MetricsHandler exposes the Prometheus metrics endpoint.
func MetricsHandler(c echo.Context) error {
	handler := prometheus.GetPrometheusHandler()
	handler.ServeHTTP(c.Response(), c.Request())
	return nil
}
