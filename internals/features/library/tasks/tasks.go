// Package tasks binds the transition engine to dispatcher task names.
package tasks

import (
	"context"

	"library_backend/internals/features/library/dispatch"
	"library_backend/internals/features/library/transitions"
)

const (
	TaskCheckout = "books.checkout"
	TaskReturn   = "books.return"
)

func Register(d *dispatch.Dispatcher, e *transitions.Engine) {
	d.Register(TaskCheckout, func(ctx context.Context, args dispatch.Args) transitions.Result {
		return e.Checkout(ctx, args.BookID, args.HolderID)
	})
	d.Register(TaskReturn, func(ctx context.Context, args dispatch.Args) transitions.Result {
		return e.Return(ctx, args.BookID)
	})
}
