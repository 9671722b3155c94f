package library

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	model "library_backend/internals/features/library/model"
)

//go:embed data_library.json
var sampleData []byte

type BookSeed struct {
	Title         string `json:"title"`
	Author        string `json:"author"`
	PublishedYear int    `json:"published_year"`
}

type LibrarySeed struct {
	Holders []string   `json:"holders"`
	Books   []BookSeed `json:"books"`
}

// EnsureLibraryHolder creates the reserved Library holder if it is missing.
func EnsureLibraryHolder(db *gorm.DB) (model.HolderModel, error) {
	h := model.HolderModel{Name: model.LibraryHolderName}
	if err := db.Where("name = ?", h.Name).FirstOrCreate(&h).Error; err != nil {
		return model.HolderModel{}, fmt.Errorf("ensure Library holder: %w", err)
	}
	return h, nil
}

// SeedSampleData inserts the sample holders and books held by the Library.
// Rows that already exist (holders by name, books by title) are left alone.
func SeedSampleData(db *gorm.DB) error {
	var seed LibrarySeed
	if err := json.Unmarshal(sampleData, &seed); err != nil {
		return fmt.Errorf("decode sample data: %w", err)
	}

	return db.Transaction(func(tx *gorm.DB) error {
		library, err := EnsureLibraryHolder(tx)
		if err != nil {
			return err
		}
		for _, name := range seed.Holders {
			h := model.HolderModel{Name: name}
			if err := tx.Where("name = ?", name).FirstOrCreate(&h).Error; err != nil {
				return fmt.Errorf("seed holder %s: %w", name, err)
			}
		}
		for _, b := range seed.Books {
			book := model.BookModel{
				Title:         b.Title,
				Author:        b.Author,
				PublishedYear: b.PublishedYear,
				HolderID:      library.ID,
			}
			res := tx.Where("title = ?", b.Title).FirstOrCreate(&book)
			if res.Error != nil {
				return fmt.Errorf("seed book %s: %w", b.Title, res.Error)
			}
			if res.RowsAffected == 0 {
				log.Debugw("seed.skip", "book", b.Title)
			}
		}
		log.Infow("sample data seeded", "holders", len(seed.Holders)+1, "books", len(seed.Books))
		return nil
	})
}
