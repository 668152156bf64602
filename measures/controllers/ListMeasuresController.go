package controllers

import (
	"fmt"

	"meter-reading-backend/utils"

	"github.com/gofiber/fiber/v2"
)

func (mc *MeasureController) ListMeasures(c *fiber.Ctx) error {
	customerCode := c.Params("customer_code")

	response, err := mc.MeasureService.List(c.UserContext(), customerCode, c.Query("measure_type"))
	if err != nil {
		return respondWithError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(response)
}

// ExportMeasures streams the same listing as an Excel workbook.
func (mc *MeasureController) ExportMeasures(c *fiber.Ctx) error {
	customerCode := c.Params("customer_code")

	workbook, err := mc.MeasureService.Export(c.UserContext(), customerCode, c.Query("measure_type"))
	if err != nil {
		return respondWithError(c, err)
	}

	c.Attachment(fmt.Sprintf("measures_%s.xlsx", utils.CleanStringForFilename(customerCode)))
	c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	return c.Status(fiber.StatusOK).Send(workbook.Bytes())
}
