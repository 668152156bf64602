package controllers

import (
	"meter-reading-backend/measures/requests"
	"meter-reading-backend/measures/services"

	"github.com/gofiber/fiber/v2"
)

func (mc *MeasureController) ConfirmMeasure(c *fiber.Ctx) error {
	var req requests.ConfirmMeasureRequest
	if err := c.BodyParser(&req); err != nil {
		return respondWithError(c, services.InvalidDataError(err))
	}

	if err := mc.MeasureService.Confirm(c.UserContext(), &req); err != nil {
		return respondWithError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(requests.ConfirmMeasureResponse{Success: true})
}
