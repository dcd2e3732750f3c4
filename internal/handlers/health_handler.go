package handlers

import (
	"log/slog"
	"time"

	"github.com/ahmetcoskunkizilkaya/enrollment-api/internal/dto"
	"github.com/gofiber/fiber/v2"
)

type HealthHandler struct {
	ping func() error
}

// NewHealthHandler takes the storage ping; nil means there is no database to check.
func NewHealthHandler(ping func() error) *HealthHandler {
	return &HealthHandler{ping: ping}
}

func (h *HealthHandler) Check(c *fiber.Ctx) error {
	dbStatus := "ok"
	if h.ping == nil {
		dbStatus = "in-memory"
	} else if err := h.ping(); err != nil {
		slog.Error("database ping failed", "action", "health", "error", err)
		dbStatus = "unhealthy"
	}

	return c.JSON(dto.HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		DB:        dbStatus,
	})
}
