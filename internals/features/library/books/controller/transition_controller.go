package controller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"library_backend/internals/features/library/dispatch"
	"library_backend/internals/features/library/tasks"
	"library_backend/internals/features/library/transitions"
	helper "library_backend/internals/helpers"
)

// TaskRunner runs a named task and waits for its result. *dispatch.Dispatcher
// implements it.
type TaskRunner interface {
	Call(ctx context.Context, name string, args dispatch.Args) (transitions.Result, error)
	Timeout() time.Duration
}

type TransitionController struct {
	Tasks TaskRunner
}

func NewTransitionController(r TaskRunner) *TransitionController {
	return &TransitionController{Tasks: r}
}

var (
	errHolderRequired = errors.New("holder_id is required")
	errHolderInvalid  = errors.New("holder_id must be a positive integer")
)

// 🟢 POST /api/books/:id/checkout/  body: {"holder_id": 2}
func (ctrl *TransitionController) Checkout(c *fiber.Ctx) error {
	bookID, err := helper.ParseIDParam(c, "id", "Book")
	if err != nil {
		return helper.FromFiberError(c, err)
	}
	holderID, err := parseHolderID(c.Body())
	if err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, err.Error())
	}
	return ctrl.run(c, tasks.TaskCheckout, dispatch.Args{BookID: bookID, HolderID: holderID})
}

// 🟢 POST /api/books/:id/return/
func (ctrl *TransitionController) Return(c *fiber.Ctx) error {
	bookID, err := helper.ParseIDParam(c, "id", "Book")
	if err != nil {
		return helper.FromFiberError(c, err)
	}
	return ctrl.run(c, tasks.TaskReturn, dispatch.Args{BookID: bookID})
}

func (ctrl *TransitionController) run(c *fiber.Ctx, name string, args dispatch.Args) error {
	res, err := ctrl.Tasks.Call(c.UserContext(), name, args)
	switch {
	case err == nil && res.OK():
		return c.Status(fiber.StatusOK).JSON(res)
	case err == nil:
		// not-found and missing Library both stay 400
		return c.Status(fiber.StatusBadRequest).JSON(res)
	case errors.Is(err, dispatch.ErrTimeout):
		return taskError(c, fiber.StatusRequestTimeout,
			fmt.Sprintf("task %s timed out after %s", name, ctrl.Tasks.Timeout()))
	case errors.Is(err, dispatch.ErrQueueFull), errors.Is(err, dispatch.ErrClosed):
		return taskError(c, fiber.StatusServiceUnavailable, err.Error())
	default:
		return taskError(c, fiber.StatusInternalServerError, err.Error())
	}
}

func taskError(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(transitions.Result{Status: transitions.StatusError, Message: message})
}

// parseHolderID accepts a JSON number or numeric string. Absent, null, 0, ""
// and false all mean the field is missing.
func parseHolderID(body []byte) (uint, error) {
	if len(strings.TrimSpace(string(body))) == 0 {
		return 0, errHolderRequired
	}
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return 0, errHolderRequired
	}
	switch v := payload["holder_id"].(type) {
	case nil:
		return 0, errHolderRequired
	case bool:
		if !v {
			return 0, errHolderRequired
		}
		return 0, errHolderInvalid
	case float64:
		if v == 0 {
			return 0, errHolderRequired
		}
		if v < 0 || v != math.Trunc(v) || v > math.MaxUint32 {
			return 0, errHolderInvalid
		}
		return uint(v), nil
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0, errHolderRequired
		}
		n, err := strconv.ParseUint(s, 10, 32)
		if err != nil || n == 0 {
			return 0, errHolderInvalid
		}
		return uint(n), nil
	default:
		return 0, errHolderInvalid
	}
}
