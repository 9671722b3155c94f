package route

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"library_backend/internals/features/library/holders/controller"
)

// HolderRoutes mounts /holders on r.
func HolderRoutes(r fiber.Router, db *gorm.DB) {
	ctrl := controller.NewHolderController(db)

	holders := r.Group("/holders")
	holders.Get("/", ctrl.List)
	holders.Post("/", ctrl.Create)
	holders.Get("/:id", ctrl.Get)
	holders.Put("/:id", ctrl.Update)
	holders.Patch("/:id", ctrl.Patch)
	holders.Delete("/:id", ctrl.Delete)
}
