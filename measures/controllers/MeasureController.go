package controllers

import (
	"errors"

	"meter-reading-backend/config"
	"meter-reading-backend/measures/requests"
	"meter-reading-backend/measures/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type MeasureController struct {
	DB             *gorm.DB
	MeasureService *services.MeasureService
}

func NewMeasureController(db *gorm.DB, service *services.MeasureService) *MeasureController {
	return &MeasureController{
		DB:             db,
		MeasureService: service,
	}
}

var errorStatus = map[services.ErrorCode]int{
	services.ErrCodeInvalidData:           fiber.StatusBadRequest,
	services.ErrCodeInvalidType:           fiber.StatusBadRequest,
	services.ErrCodeDoubleReport:          fiber.StatusConflict,
	services.ErrCodeConfirmationDuplicate: fiber.StatusConflict,
	services.ErrCodeMeasureNotFound:       fiber.StatusNotFound,
	services.ErrCodeMeasuresNotFound:      fiber.StatusNotFound,
}

// respondWithError writes the {error_code, error_description} body. Anything that
// is not a MeasureError is logged and reported as a generic internal error.
func respondWithError(c *fiber.Ctx, err error) error {
	var measureErr *services.MeasureError
	if errors.As(err, &measureErr) {
		if status, ok := errorStatus[measureErr.Code]; ok {
			return c.Status(status).JSON(requests.ErrorResponse{
				ErrorCode:        string(measureErr.Code),
				ErrorDescription: measureErr.Description,
			})
		}
	}

	config.Logger.Error("Unhandled error while processing request",
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Error(err),
	)
	return c.Status(fiber.StatusInternalServerError).JSON(requests.ErrorResponse{
		ErrorCode:        string(services.ErrCodeInternal),
		ErrorDescription: "An unexpected error occurred, please try again later",
	})
}
