package server

import (
	"net/http"
	"time"

	"github.com/berfenger/hanchu2mqtt/internal/core/domain"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	if s.httpLog {
		e.Use(middleware.Logger())
	}
	e.Use(middleware.Recover())

	e.GET("/healthcheck", s.HealthCheckHandler)
	e.GET("/inverter", s.InverterSnapshotHandler)
	e.GET("/battery", s.BatterySnapshotHandler)
	e.GET("/energy/:date", s.EnergyFlowHandler)

	return e
}

func (s *Server) HealthCheckHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.ActorHealthRequest{}, 10*time.Second).Result()
	if err != nil {
		return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
	}
	if response, ok := res.(domain.ActorHealthResponse); ok && response.Healthy {
		return c.String(http.StatusOK, "health_check: OK")
	}
	return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
}

func (s *Server) InverterSnapshotHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.GetInverterSnapshotRequest{}, 10*time.Second).Result()
	if err != nil {
		return c.String(http.StatusServiceUnavailable, "inverter: FAIL")
	}
	response, ok := res.(domain.GetInverterSnapshotResponse)
	if !ok || response.HasResponseError() {
		return c.String(http.StatusServiceUnavailable, "inverter: FAIL")
	}
	if response.Reading == nil {
		return c.String(http.StatusNotFound, "inverter: no data yet")
	}
	return c.JSON(http.StatusOK, map[string]any{
		"available":    response.Available,
		"last_updated": response.LastUpdated,
		"reading":      response.Reading,
	})
}

func (s *Server) BatterySnapshotHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.GetBatterySnapshotRequest{}, 10*time.Second).Result()
	if err != nil {
		return c.String(http.StatusServiceUnavailable, "battery: FAIL")
	}
	response, ok := res.(domain.GetBatterySnapshotResponse)
	if !ok {
		return c.String(http.StatusServiceUnavailable, "battery: FAIL")
	}
	if response.HasResponseError() {
		return c.String(http.StatusNotFound, "battery: not configured")
	}
	if response.Reading == nil {
		return c.String(http.StatusNotFound, "battery: no data yet")
	}
	return c.JSON(http.StatusOK, map[string]any{
		"available":    response.Available,
		"last_updated": response.LastUpdated,
		"reading":      response.Reading,
	})
}

func (s *Server) EnergyFlowHandler(c echo.Context) error {
	date := c.Param("date")
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return c.String(http.StatusBadRequest, "energy: invalid date, expected YYYY-MM-DD")
	}
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.GetEnergyFlowRequest{Date: date}, 40*time.Second).Result()
	if err != nil {
		return c.String(http.StatusServiceUnavailable, "energy: FAIL")
	}
	response, ok := res.(domain.GetEnergyFlowResponse)
	if !ok || response.HasResponseError() || response.Flow == nil {
		return c.String(http.StatusServiceUnavailable, "energy: FAIL")
	}
	return c.JSON(http.StatusOK, response.Flow)
}
