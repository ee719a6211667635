package http

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/smartcity/saferoute/internal/domain"
)

// StatusClientClosedRequest is returned when the caller went away mid-request
const StatusClientClosedRequest = 499

// errorStatus maps domain errors to a status code and a stable error code
func errorStatus(err error) (int, string) {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code, "http_error"
	case errors.Is(err, domain.ErrInvalidInput):
		return fiber.StatusBadRequest, "invalid_input"
	case errors.Is(err, domain.ErrNoRouteFound):
		return fiber.StatusNotFound, "no_route_found"
	case errors.Is(err, domain.ErrIncidentSourceUnavailable):
		return fiber.StatusServiceUnavailable, "incident_source_unavailable"
	case errors.Is(err, domain.ErrProviderRequestFailed), errors.Is(err, domain.ErrGeocodingFailed):
		return fiber.StatusBadGateway, "upstream_failed"
	case errors.Is(err, context.Canceled):
		return StatusClientClosedRequest, "client_closed_request"
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout, "timeout"
	}
	return fiber.StatusInternalServerError, "internal"
}

// ErrorHandler renders every error as {error, code, message}
func ErrorHandler(c *fiber.Ctx, err error) error {
	code, kind := errorStatus(err)

	message := err.Error()
	if code == fiber.StatusInternalServerError {
		message = "Internal Server Error"
	}
	if code >= fiber.StatusInternalServerError {
		slog.Error("request failed",
			"method", c.Method(),
			"path", c.Path(),
			"status", code,
			"request_id", c.Locals("requestid"),
			"error", err,
		)
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"code":    kind,
		"message": message,
	})
}
