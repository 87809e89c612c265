package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/berfenger/eleven2mqtt/internal/core/domain"
	"github.com/berfenger/eleven2mqtt/internal/util/actorutil"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type deviceView struct {
	Id           string `json:"id"`
	Type         string `json:"type"`
	Name         string `json:"name"`
	SerialNumber string `json:"serial_number,omitempty"`
}

type operatingModeRequest struct {
	Mode     string         `json:"mode"`
	DeviceId string         `json:"device_id"`
	Params   map[string]any `json:"params"`
}

type operatingModeResponse struct {
	CommandId  string `json:"command_id"`
	Outcome    string `json:"outcome"`
	DeviceId   string `json:"device_id,omitempty"`
	Attempts   int    `json:"attempts"`
	LastStatus int    `json:"last_status,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	e.HideBanner = true
	if s.httpLog {
		e.Use(middleware.Logger())
	}
	e.Use(middleware.Recover())

	e.GET("/healthcheck", s.HealthCheckHandler)
	e.GET("/devices", s.DevicesHandler)
	e.POST("/devices/operating-mode", s.OperatingModeHandler)

	gatherer := s.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

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

func (s *Server) DevicesHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.GetDevicesRequest{}, 5*time.Second).Result()
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
	}
	response, ok := res.(domain.GetDevicesResponse)
	if !ok {
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "unexpected response"})
	}
	views := make([]deviceView, 0, len(response.Devices))
	for _, dev := range response.Devices {
		views = append(views, deviceView{
			Id:           dev.Id,
			Type:         dev.Type,
			Name:         dev.Name,
			SerialNumber: dev.SerialNumber,
		})
	}
	return c.JSON(http.StatusOK, views)
}

func (s *Server) OperatingModeHandler(c echo.Context) error {
	var body operatingModeRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid body"})
	}
	if strings.TrimSpace(body.Mode) == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "mode is required"})
	}

	cmd := domain.OperatingModeCommand{
		Id:            actorutil.NewCommandId(),
		Mode:          domain.ParseWorkMode(body.Mode),
		HostDeviceRef: body.DeviceId,
		Params:        body.Params,
	}
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.OperatingModeRequest{Command: cmd}, s.commandTimeout).Result()
	if err != nil {
		return c.JSON(http.StatusGatewayTimeout, errorResponse{Error: err.Error()})
	}
	response, ok := res.(domain.OperatingModeResponse)
	if !ok {
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "unexpected response"})
	}
	if response.HasResponseError() {
		return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: response.GetResponseError().Error()})
	}

	outcome := response.Outcome
	return c.JSON(outcomeStatus(outcome.Kind), operatingModeResponse{
		CommandId:  cmd.Id,
		Outcome:    outcome.Kind.String(),
		DeviceId:   outcome.DeviceId,
		Attempts:   outcome.Attempts,
		LastStatus: outcome.LastStatus,
	})
}

func outcomeStatus(kind domain.OutcomeKind) int {
	switch kind {
	case domain.OutcomeDelivered:
		return http.StatusOK
	case domain.OutcomeRetriable:
		return http.StatusBadGateway
	case domain.OutcomeUnresolvable:
		return http.StatusNotFound
	case domain.OutcomeUnknownMode:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
