package details

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	booksController "library_backend/internals/features/library/books/controller"
	booksRoute "library_backend/internals/features/library/books/route"
	holdersRoute "library_backend/internals/features/library/holders/route"
)

// LibraryRoutes mounts /books and /holders on api.
func LibraryRoutes(api fiber.Router, db *gorm.DB, tasks booksController.TaskRunner) {
	holdersRoute.HolderRoutes(api, db)
	booksRoute.BookRoutes(api, db, tasks)
}
