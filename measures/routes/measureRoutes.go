package routes

import (
	"meter-reading-backend/measures/controllers"
	"meter-reading-backend/measures/services"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

func MeasureRouterInit(
	app *fiber.App,
	db *gorm.DB,
	measureService *services.MeasureService,
) {
	measureController := controllers.NewMeasureController(db, measureService)

	app.Get("/health", measureController.Health)

	app.Post("/upload", measureController.UploadMeasure)
	app.Patch("/confirm", measureController.ConfirmMeasure)

	customerRoutes := app.Group("/:customer_code")
	customerRoutes.Get("/list", measureController.ListMeasures)
	customerRoutes.Get("/list/export", measureController.ExportMeasures)
}
