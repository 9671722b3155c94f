package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	model "library_backend/internals/features/library/model"
)

var _ RecordStore = (*GormStore)(nil)

// GormStore runs each unit of work in its own gorm transaction, which pins one
// pooled connection until Commit or Rollback.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Begin(ctx context.Context) (UnitOfWork, error) {
	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, fmt.Errorf("begin unit of work: %w", tx.Error)
	}
	return &gormUnit{tx: tx}, nil
}

type gormUnit struct {
	tx     *gorm.DB
	closed bool
}

// FindBookByID locks the row (SELECT ... FOR UPDATE) so a concurrent transition
// on the same book waits for this unit to finish instead of interleaving.
func (u *gormUnit) FindBookByID(ctx context.Context, id uint) (*model.BookModel, error) {
	if u.closed {
		return nil, ErrUnitClosed
	}
	var b model.BookModel
	err := u.tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&b, "id = ?", id).Error
	if err != nil {
		return nil, translate(err, "book")
	}
	return &b, nil
}

func (u *gormUnit) FindHolderByID(ctx context.Context, id uint) (*model.HolderModel, error) {
	if u.closed {
		return nil, ErrUnitClosed
	}
	var h model.HolderModel
	if err := u.tx.WithContext(ctx).First(&h, "id = ?", id).Error; err != nil {
		return nil, translate(err, "holder")
	}
	return &h, nil
}

func (u *gormUnit) FindHolderByName(ctx context.Context, name string) (*model.HolderModel, error) {
	if u.closed {
		return nil, ErrUnitClosed
	}
	var h model.HolderModel
	if err := u.tx.WithContext(ctx).Where("name = ?", name).First(&h).Error; err != nil {
		return nil, translate(err, "holder")
	}
	return &h, nil
}

// SaveBook only writes holder_id; it is the single column transitions mutate.
func (u *gormUnit) SaveBook(ctx context.Context, book *model.BookModel) error {
	if u.closed {
		return ErrUnitClosed
	}
	res := u.tx.WithContext(ctx).
		Model(&model.BookModel{}).
		Where("id = ?", book.ID).
		Update("holder_id", book.HolderID)
	if res.Error != nil {
		return fmt.Errorf("save book %d: %w", book.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("save book %d: %w", book.ID, ErrNotFound)
	}
	return nil
}

func (u *gormUnit) Commit() error {
	if u.closed {
		return ErrUnitClosed
	}
	u.closed = true
	if err := u.tx.Commit().Error; err != nil {
		return fmt.Errorf("commit unit of work: %w", err)
	}
	return nil
}

func (u *gormUnit) Rollback() error {
	if u.closed {
		return nil
	}
	u.closed = true
	if err := u.tx.Rollback().Error; err != nil && !errors.Is(err, gorm.ErrInvalidTransaction) {
		return fmt.Errorf("rollback unit of work: %w", err)
	}
	return nil
}

func translate(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("load %s: %w", what, err)
}
