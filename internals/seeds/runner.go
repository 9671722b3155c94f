package seeds

import (
	"gorm.io/gorm"

	library "library_backend/internals/seeds/library"
)

func RunAllSeeds(db *gorm.DB) error {
	//* Library
	return library.SeedSampleData(db)
}
