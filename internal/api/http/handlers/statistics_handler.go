package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/casaplus/listing-service/internal/service"
)

// StatisticsHandler serves the admin dashboard figures.
type StatisticsHandler struct {
	service *service.StatisticsService
}

// NewStatisticsHandler constructs handler.
func NewStatisticsHandler(statisticsService *service.StatisticsService) *StatisticsHandler {
	return &StatisticsHandler{service: statisticsService}
}

// Report GET /api/statistics.
func (h *StatisticsHandler) Report(c *fiber.Ctx) error {
	report, err := h.service.Report(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": report})
}
