// Package transitions moves books between holders: Checkout to a given holder
// and Return to the reserved Library holder.
//
// The engine keeps no state between calls. Each call opens a unit of work,
// re-reads the rows, writes, and commits; any failure rolls the unit back and
// comes out as an error Result, never as a panic or returned error.
package transitions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"

	model "library_backend/internals/features/library/model"
	"library_backend/internals/features/library/store"
)

type Engine struct {
	store store.RecordStore
}

func NewEngine(s store.RecordStore) *Engine {
	return &Engine{store: s}
}

// Checkout assigns the book to holderID. Checking a book out to its current
// holder succeeds again without error.
func (e *Engine) Checkout(ctx context.Context, bookID, holderID uint) Result {
	return e.run(ctx, "checkout", bookID, func(uow store.UnitOfWork) Result {
		book, err := uow.FindBookByID(ctx, bookID)
		if err != nil {
			return lookupFailure(err, ErrBookNotFound, fmt.Sprintf("Book %d not found", bookID))
		}
		holder, err := uow.FindHolderByID(ctx, holderID)
		if err != nil {
			return lookupFailure(err, ErrHolderNotFound, fmt.Sprintf("Holder %d not found", holderID))
		}
		return assign(ctx, uow, book, holder)
	})
}

// Return assigns the book back to the holder named "Library".
func (e *Engine) Return(ctx context.Context, bookID uint) Result {
	return e.run(ctx, "return", bookID, func(uow store.UnitOfWork) Result {
		book, err := uow.FindBookByID(ctx, bookID)
		if err != nil {
			return lookupFailure(err, ErrBookNotFound, fmt.Sprintf("Book %d not found", bookID))
		}
		library, err := uow.FindHolderByName(ctx, model.LibraryHolderName)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return Failure(KindInvariantViolation, ErrLibraryHolderMissing, "Library holder not found")
			}
			return fault(err)
		}
		return assign(ctx, uow, book, library)
	})
}

func assign(ctx context.Context, uow store.UnitOfWork, book *model.BookModel, holder *model.HolderModel) Result {
	book.HolderID = holder.ID
	if err := uow.SaveBook(ctx, book); err != nil {
		return fault(err)
	}
	return Success(book.ID, holder.ID)
}

// run owns the unit of work: it is rolled back on every path that does not
// reach a successful Commit, including a panic inside fn.
func (e *Engine) run(ctx context.Context, op string, bookID uint, fn func(store.UnitOfWork) Result) (res Result) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res = fault(fmt.Errorf("%s panicked: %v", op, r))
		}
		logResult(op, bookID, res, time.Since(start))
	}()

	uow, err := e.store.Begin(ctx)
	if err != nil {
		return fault(err)
	}
	defer func() {
		if rbErr := uow.Rollback(); rbErr != nil {
			log.Warnw("transition.rollback_failed", "op", op, "book_id", bookID, "error", rbErr)
		}
	}()

	res = fn(uow)
	if !res.OK() {
		return res
	}
	if err := uow.Commit(); err != nil {
		return fault(err)
	}
	return res
}

func lookupFailure(err, notFound error, message string) Result {
	if errors.Is(err, store.ErrNotFound) {
		return Failure(KindNotFound, notFound, message)
	}
	return fault(err)
}

func fault(err error) Result {
	return Failure(KindPersistenceFault, err, err.Error())
}

func logResult(op string, bookID uint, res Result, elapsed time.Duration) {
	switch {
	case res.OK():
		log.Debugw("transition.done", "op", op, "book_id", bookID, "holder_id", res.HolderID, "elapsed", elapsed)
	case res.Kind == KindPersistenceFault:
		log.Errorw("transition.fault", "op", op, "book_id", bookID, "error", res.Message, "elapsed", elapsed)
	default:
		log.Infow("transition.rejected", "op", op, "book_id", bookID, "kind", res.Kind.String(), "message", res.Message)
	}
}
