// file: internals/route/index.go
package routes

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	booksController "library_backend/internals/features/library/books/controller"
	routeDetails "library_backend/internals/route/details"
)

// Deps is everything the HTTP layer needs. Nothing is read from globals.
type Deps struct {
	DB      *gorm.DB
	Tasks   booksController.TaskRunner
	Metrics prometheus.Gatherer
}

func SetupRoutes(app *fiber.App, deps Deps) {
	startTime := time.Now()

	// ===================== BASE =====================
	log.Info("setting up base routes...")
	BaseRoutes(app, deps, startTime)

	// ===================== API =====================
	log.Info("mounting library routes...")
	api := app.Group("/api")
	routeDetails.LibraryRoutes(api, deps.DB, deps.Tasks)
}
