package controller

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"library_backend/internals/features/library/holders/dto"
	model "library_backend/internals/features/library/model"
	helper "library_backend/internals/helpers"
)

var validate = helper.NewValidator()

type HolderController struct {
	DB *gorm.DB
}

func NewHolderController(db *gorm.DB) *HolderController {
	return &HolderController{DB: db}
}

// 🟢 GET /api/holders/
func (ctrl *HolderController) List(c *fiber.Ctx) error {
	db := ctrl.DB.WithContext(c.UserContext())

	var holders []model.HolderModel
	if err := db.Order("id ASC").Find(&holders).Error; err != nil {
		log.Errorw("holders.list", "error", err)
		return helper.JsonError(c, fiber.StatusInternalServerError, err.Error())
	}
	var books []model.BookModel
	if len(holders) > 0 {
		if err := db.Order("id ASC").Find(&books).Error; err != nil {
			log.Errorw("holders.list_books", "error", err)
			return helper.JsonError(c, fiber.StatusInternalServerError, err.Error())
		}
	}
	return helper.JsonOK(c, dto.ToHolderResponseList(holders, books))
}

// 🟢 GET /api/holders/:id/
func (ctrl *HolderController) Get(c *fiber.Ctx) error {
	id, err := helper.ParseIDParam(c, "id", "Holder")
	if err != nil {
		return helper.FromFiberError(c, err)
	}
	resp, err := ctrl.load(ctrl.DB.WithContext(c.UserContext()), id)
	if err != nil {
		return ctrl.fail(c, id, err)
	}
	return helper.JsonOK(c, resp)
}

// 🟢 POST /api/holders/
func (ctrl *HolderController) Create(c *fiber.Ctx) error {
	var req dto.HolderRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	req.Normalize()
	if err := validate.Struct(req); err != nil {
		return helper.JsonValidationError(c, err)
	}

	h := model.HolderModel{Name: req.Name}
	if err := ctrl.DB.WithContext(c.UserContext()).Create(&h).Error; err != nil {
		return ctrl.fail(c, 0, err)
	}
	log.Infow("holders.created", "holder_id", h.ID, "name", h.Name)
	return helper.JsonCreated(c, dto.ToHolderResponse(h, nil))
}

// 🟡 PUT /api/holders/:id/
func (ctrl *HolderController) Update(c *fiber.Ctx) error {
	id, err := helper.ParseIDParam(c, "id", "Holder")
	if err != nil {
		return helper.FromFiberError(c, err)
	}
	var req dto.HolderRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	req.Normalize()
	if err := validate.Struct(req); err != nil {
		return helper.JsonValidationError(c, err)
	}
	return ctrl.rename(c, id, &req.Name)
}

// 🟡 PATCH /api/holders/:id/
func (ctrl *HolderController) Patch(c *fiber.Ctx) error {
	id, err := helper.ParseIDParam(c, "id", "Holder")
	if err != nil {
		return helper.FromFiberError(c, err)
	}
	var req dto.HolderPatchRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	req.Normalize()
	if err := validate.Struct(req); err != nil {
		return helper.JsonValidationError(c, err)
	}
	return ctrl.rename(c, id, req.Name)
}

// 🔴 DELETE /api/holders/:id/
// Books held by the holder go with it (ON DELETE CASCADE).
func (ctrl *HolderController) Delete(c *fiber.Ctx) error {
	id, err := helper.ParseIDParam(c, "id", "Holder")
	if err != nil {
		return helper.FromFiberError(c, err)
	}
	res := ctrl.DB.WithContext(c.UserContext()).Delete(&model.HolderModel{}, id)
	if res.Error != nil {
		return ctrl.fail(c, id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ctrl.fail(c, id, gorm.ErrRecordNotFound)
	}
	log.Infow("holders.deleted", "holder_id", id)
	return helper.JsonMessage(c, fiber.StatusOK, "Holder deleted")
}

func (ctrl *HolderController) rename(c *fiber.Ctx, id uint, name *string) error {
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

	var h model.HolderModel
	if err := tx.First(&h, id).Error; err != nil {
		tx.Rollback()
		return ctrl.fail(c, id, err)
	}
	if name != nil && *name != h.Name {
		if err := tx.Model(&h).Update("name", *name).Error; err != nil {
			tx.Rollback()
			return ctrl.fail(c, id, err)
		}
	}
	resp, err := ctrl.load(tx, id)
	if err != nil {
		tx.Rollback()
		return ctrl.fail(c, id, err)
	}
	if err := tx.Commit().Error; err != nil {
		return ctrl.fail(c, id, err)
	}
	return helper.JsonOK(c, resp)
}

func (ctrl *HolderController) load(db *gorm.DB, id uint) (dto.HolderResponse, error) {
	var h model.HolderModel
	if err := db.First(&h, id).Error; err != nil {
		return dto.HolderResponse{}, err
	}
	var books []model.BookModel
	if err := db.Where("holder_id = ?", id).Order("id ASC").Find(&books).Error; err != nil {
		return dto.HolderResponse{}, err
	}
	return dto.ToHolderResponse(h, books), nil
}

func (ctrl *HolderController) fail(c *fiber.Ctx, id uint, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return helper.JsonError(c, fiber.StatusNotFound, fmt.Sprintf("Holder %d not found", id))
	}
	if helper.IsUniqueViolation(err) {
		return helper.JsonError(c, fiber.StatusBadRequest, "holder with this name already exists")
	}
	status, msg := helper.MapPGError(err)
	if status >= 500 {
		log.Errorw("holders.db_error", "holder_id", id, "error", err)
	}
	return helper.JsonError(c, status, msg)
}
