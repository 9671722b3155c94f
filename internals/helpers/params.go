package helper

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
)

// ParseIDParam reads a positive integer path parameter. Anything else never
// names a row, so it is reported as 404 the same way a missing row is.
func ParseIDParam(c *fiber.Ctx, key, what string) (uint, error) {
	raw := c.Params(key)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, fiber.NewError(fiber.StatusNotFound, what+" "+raw+" not found")
	}
	return uint(id), nil
}
