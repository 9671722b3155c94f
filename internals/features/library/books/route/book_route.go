package route

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"library_backend/internals/features/library/books/controller"
)

// BookRoutes mounts /books on r. Checkout and return go through runner.
func BookRoutes(r fiber.Router, db *gorm.DB, runner controller.TaskRunner) {
	ctrl := controller.NewBookController(db)
	transitionCtrl := controller.NewTransitionController(runner)

	books := r.Group("/books")
	books.Get("/", ctrl.List)
	books.Post("/", ctrl.Create)
	books.Get("/:id", ctrl.Get)
	books.Put("/:id", ctrl.Update)
	books.Patch("/:id", ctrl.Patch)
	books.Delete("/:id", ctrl.Delete)

	TransitionRoutes(books, transitionCtrl)
}

// TransitionRoutes mounts checkout and return under an existing /books group.
func TransitionRoutes(books fiber.Router, ctrl *controller.TransitionController) {
	books.Post("/:id/checkout", ctrl.Checkout)
	books.Post("/:id/return", ctrl.Return)
}
