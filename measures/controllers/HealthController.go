package controllers

import (
	"meter-reading-backend/config"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

func (mc *MeasureController) Health(c *fiber.Ctx) error {
	sqlDB, err := mc.DB.DB()
	if err == nil {
		err = sqlDB.PingContext(c.UserContext())
	}
	if err != nil {
		config.Logger.Warn("Health check failed", zap.Error(err))
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status":   "unhealthy",
			"database": "unreachable",
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status":   "healthy",
		"database": "ok",
	})
}
