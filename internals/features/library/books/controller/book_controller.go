package controller

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"library_backend/internals/features/library/books/dto"
	model "library_backend/internals/features/library/model"
	helper "library_backend/internals/helpers"
)

var validate = helper.NewValidator()

var errHolderMissing = errors.New("holder missing")

type BookController struct {
	DB *gorm.DB
}

func NewBookController(db *gorm.DB) *BookController {
	return &BookController{DB: db}
}

// 🟢 GET /api/books/
func (ctrl *BookController) List(c *fiber.Ctx) error {
	var books []model.BookModel
	if err := ctrl.DB.WithContext(c.UserContext()).
		Preload("Holder").
		Order("id ASC").
		Find(&books).Error; err != nil {
		log.Errorw("books.list", "error", err)
		return helper.JsonError(c, fiber.StatusInternalServerError, err.Error())
	}
	return helper.JsonOK(c, dto.ToBookResponseList(books))
}

// 🟢 GET /api/books/:id/
func (ctrl *BookController) Get(c *fiber.Ctx) error {
	id, err := helper.ParseIDParam(c, "id", "Book")
	if err != nil {
		return helper.FromFiberError(c, err)
	}
	b, err := loadBook(ctrl.DB.WithContext(c.UserContext()), id)
	if err != nil {
		return failBook(c, id, 0, err)
	}
	return helper.JsonOK(c, dto.ToBookResponse(b))
}

// 🟢 POST /api/books/
// Without holder_id the book starts at the Library holder.
func (ctrl *BookController) Create(c *fiber.Ctx) error {
	var req dto.BookRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	req.Normalize()
	if err := validate.Struct(req); err != nil {
		return helper.JsonValidationError(c, err)
	}

	tx := ctrl.DB.WithContext(c.UserContext()).Begin()
	if tx.Error != nil {
		return helper.JsonError(c, fiber.StatusInternalServerError, tx.Error.Error())
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	holderID, err := resolveHolder(tx, req.HolderID)
	if err != nil {
		tx.Rollback()
		return failBook(c, 0, derefHolder(req.HolderID), err)
	}
	b := req.ToModel(holderID)
	if err := tx.Create(&b).Error; err != nil {
		tx.Rollback()
		return failBook(c, 0, holderID, err)
	}
	created, err := loadBook(tx, b.ID)
	if err != nil {
		tx.Rollback()
		return failBook(c, b.ID, holderID, err)
	}
	if err := tx.Commit().Error; err != nil {
		return failBook(c, b.ID, holderID, err)
	}
	log.Infow("books.created", "book_id", b.ID, "holder_id", holderID)
	return helper.JsonCreated(c, dto.ToBookResponse(created))
}

// 🟡 PUT /api/books/:id/
func (ctrl *BookController) Update(c *fiber.Ctx) error {
	id, err := helper.ParseIDParam(c, "id", "Book")
	if err != nil {
		return helper.FromFiberError(c, err)
	}
	var req dto.BookRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	req.Normalize()
	if err := validate.Struct(req); err != nil {
		return helper.JsonValidationError(c, err)
	}
	updates := map[string]any{
		"title":          req.Title,
		"author":         req.Author,
		"published_year": *req.PublishedYear,
	}
	if req.HolderID != nil {
		updates["holder_id"] = *req.HolderID
	}
	return ctrl.apply(c, id, updates, req.HolderID)
}

// 🟡 PATCH /api/books/:id/
func (ctrl *BookController) Patch(c *fiber.Ctx) error {
	id, err := helper.ParseIDParam(c, "id", "Book")
	if err != nil {
		return helper.FromFiberError(c, err)
	}
	var req dto.BookPatchRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	req.Normalize()
	if err := validate.Struct(req); err != nil {
		return helper.JsonValidationError(c, err)
	}
	return ctrl.apply(c, id, req.Updates(), req.HolderID)
}

// 🔴 DELETE /api/books/:id/
func (ctrl *BookController) Delete(c *fiber.Ctx) error {
	id, err := helper.ParseIDParam(c, "id", "Book")
	if err != nil {
		return helper.FromFiberError(c, err)
	}
	res := ctrl.DB.WithContext(c.UserContext()).Delete(&model.BookModel{}, id)
	if res.Error != nil {
		return failBook(c, id, 0, res.Error)
	}
	if res.RowsAffected == 0 {
		return failBook(c, id, 0, gorm.ErrRecordNotFound)
	}
	log.Infow("books.deleted", "book_id", id)
	return c.SendStatus(fiber.StatusNoContent)
}

func (ctrl *BookController) apply(c *fiber.Ctx, id uint, updates map[string]any, holderID *uint) error {
	tx := ctrl.DB.WithContext(c.UserContext()).Begin()
	if tx.Error != nil {
		return helper.JsonError(c, fiber.StatusInternalServerError, tx.Error.Error())
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	var b model.BookModel
	if err := tx.First(&b, id).Error; err != nil {
		tx.Rollback()
		return failBook(c, id, 0, err)
	}
	if holderID != nil {
		if _, err := resolveHolder(tx, holderID); err != nil {
			tx.Rollback()
			return failBook(c, id, *holderID, err)
		}
	}
	if len(updates) > 0 {
		if err := tx.Model(&b).Updates(updates).Error; err != nil {
			tx.Rollback()
			return failBook(c, id, derefHolder(holderID), err)
		}
	}
	updated, err := loadBook(tx, id)
	if err != nil {
		tx.Rollback()
		return failBook(c, id, 0, err)
	}
	if err := tx.Commit().Error; err != nil {
		return failBook(c, id, 0, err)
	}
	return helper.JsonOK(c, dto.ToBookResponse(updated))
}

func loadBook(db *gorm.DB, id uint) (model.BookModel, error) {
	var b model.BookModel
	err := db.Preload("Holder").First(&b, id).Error
	return b, err
}

// resolveHolder returns the holder a book should point at: the given one if it
// exists, the Library holder when none is given.
func resolveHolder(tx *gorm.DB, holderID *uint) (uint, error) {
	var h model.HolderModel
	if holderID == nil {
		if err := tx.Where("name = ?", model.LibraryHolderName).Take(&h).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return 0, fmt.Errorf("%w: %s", errHolderMissing, model.LibraryHolderName)
			}
			return 0, err
		}
		return h.ID, nil
	}
	if err := tx.Select("id").Take(&h, *holderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, errHolderMissing
		}
		return 0, err
	}
	return h.ID, nil
}

func derefHolder(id *uint) uint {
	if id == nil {
		return 0
	}
	return *id
}

func failBook(c *fiber.Ctx, bookID, holderID uint, err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return helper.JsonError(c, fiber.StatusNotFound, fmt.Sprintf("Book %d not found", bookID))
	case errors.Is(err, errHolderMissing) && holderID == 0:
		return helper.JsonError(c, fiber.StatusBadRequest, "Library holder not found")
	case errors.Is(err, errHolderMissing), helper.IsForeignKeyViolation(err):
		return helper.JsonError(c, fiber.StatusBadRequest, fmt.Sprintf("Holder %d not found", holderID))
	}
	status, msg := helper.MapPGError(err)
	if status >= 500 {
		log.Errorw("books.db_error", "book_id", bookID, "holder_id", holderID, "error", err)
	}
	return helper.JsonError(c, status, msg)
}
