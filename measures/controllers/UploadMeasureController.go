package controllers

import (
	"meter-reading-backend/measures/requests"
	"meter-reading-backend/measures/services"

	"github.com/gofiber/fiber/v2"
)

func (mc *MeasureController) UploadMeasure(c *fiber.Ctx) error {
	var req requests.UploadMeasureRequest
	if err := c.BodyParser(&req); err != nil {
		return respondWithError(c, services.InvalidDataError(err))
	}

	response, err := mc.MeasureService.Upload(c.UserContext(), &req)
	if err != nil {
		return respondWithError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(response)
}
