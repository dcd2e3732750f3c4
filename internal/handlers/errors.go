package handlers

import (
	"errors"
	"log/slog"

	"github.com/ahmetcoskunkizilkaya/enrollment-api/internal/dto"
	"github.com/ahmetcoskunkizilkaya/enrollment-api/internal/services"
	sentryfiber "github.com/getsentry/sentry-go/fiber"
	"github.com/gofiber/fiber/v2"
)

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, services.ErrBadRequest):
		return fiber.StatusBadRequest, "bad_request"
	case errors.Is(err, services.ErrUnauthorized):
		return fiber.StatusUnauthorized, "unauthorized"
	case errors.Is(err, services.ErrForbidden):
		return fiber.StatusForbidden, "forbidden"
	case errors.Is(err, services.ErrNotFound):
		return fiber.StatusNotFound, "not_found"
	case errors.Is(err, services.ErrConflict):
		return fiber.StatusConflict, "conflict"
	default:
		return fiber.StatusInternalServerError, "internal"
	}
}

// writeError logs the full error server-side and answers with the
// caller-safe message only.
func writeError(c *fiber.Ctx, action string, err error) error {
	status, code := statusFor(err)
	attrs := []any{
		"action", action,
		"status", status,
		"path", c.Path(),
		"trace_id", c.Locals("requestid"),
		"error", err.Error(),
	}

	if status >= fiber.StatusInternalServerError {
		slog.Error("request failed", attrs...)
		if hub := sentryfiber.GetHubFromContext(c); hub != nil {
			hub.CaptureException(err)
		}
	} else {
		slog.Warn("request rejected", attrs...)
	}

	return c.Status(status).JSON(dto.ErrorResponse{
		Error:   true,
		Code:    code,
		Message: services.PublicMessage(err),
	})
}

func badBody(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
		Error: true, Code: "bad_request", Message: "Invalid request body",
	})
}
