// Package store is the record store consumed by the checkout/return transitions.
//
// Every transition opens its own UnitOfWork. Reads and the final SaveBook happen
// inside that unit and become visible to other callers only on Commit.
package store

import (
	"context"
	"errors"

	model "library_backend/internals/features/library/model"
)

var (
	// ErrNotFound is returned by the finders when no row matches.
	ErrNotFound = errors.New("record not found")

	// ErrUnitClosed is returned when a unit of work is used after Commit or Rollback.
	ErrUnitClosed = errors.New("unit of work already closed")
)

// RecordStore hands out independent units of work.
type RecordStore interface {
	Begin(ctx context.Context) (UnitOfWork, error)
}

// UnitOfWork is a single atomic read-modify-commit sequence.
//
// Rollback must be safe to call after Commit and more than once, so callers can
// always defer it right after Begin.
type UnitOfWork interface {
	FindBookByID(ctx context.Context, id uint) (*model.BookModel, error)
	FindHolderByID(ctx context.Context, id uint) (*model.HolderModel, error)
	FindHolderByName(ctx context.Context, name string) (*model.HolderModel, error)
	SaveBook(ctx context.Context, book *model.BookModel) error
	Commit() error
	Rollback() error
}
