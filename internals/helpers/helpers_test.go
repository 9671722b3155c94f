package helper_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	helper "library_backend/internals/helpers"
)

func serve(t *testing.T, h fiber.Handler) (int, map[string]any) {
	t.Helper()
	app := fiber.New()
	app.Get("/", h)
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	body := map[string]any{}
	require.NoError(t, json.Unmarshal(raw, &body), string(raw))
	return resp.StatusCode, body
}

func Test_JsonError_Shape(t *testing.T) {
	status, body := serve(t, func(c *fiber.Ctx) error {
		return helper.JsonError(c, fiber.StatusNotFound, "Book 4 not found")
	})

	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, map[string]any{"error": "Book 4 not found"}, body)
}

func Test_JsonError_FallbackMessage(t *testing.T) {
	status, body := serve(t, func(c *fiber.Ctx) error {
		return helper.JsonError(c, 0, " ")
	})

	assert.Equal(t, fiber.StatusInternalServerError, status)
	assert.Equal(t, "Internal Server Error", body["error"])
}

type payload struct {
	Name string `json:"name" validate:"required"`
	Year int    `json:"published_year" validate:"gte=0"`
}

func Test_JsonValidationError_UsesJSONNames(t *testing.T) {
	err := helper.NewValidator().Struct(payload{Year: -1})
	require.Error(t, err)

	status, body := serve(t, func(c *fiber.Ctx) error {
		return helper.JsonValidationError(c, err)
	})

	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "validation failed", body["error"])
	assert.Equal(t, map[string]any{"name": "required", "published_year": "gte"}, body["fields"])
}

func Test_JsonValidationError_NonValidatorError(t *testing.T) {
	status, body := serve(t, func(c *fiber.Ctx) error {
		return helper.JsonValidationError(c, errors.New("oops"))
	})

	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "Invalid input", body["error"])
}

func Test_FromFiberError(t *testing.T) {
	status, body := serve(t, func(c *fiber.Ctx) error {
		return helper.FromFiberError(c, fmt.Errorf("wrap: %w", fiber.NewError(fiber.StatusConflict, "busy")))
	})

	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "busy", body["error"])
}

func Test_MapPGError(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"unique", &pgconn.PgError{Code: "23505"}, http.StatusBadRequest, "already exists"},
		{"fk wrapped", fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23503"}), http.StatusBadRequest, "referenced record does not exist"},
		{"not null", &pgconn.PgError{Code: "23502", ColumnName: "title"}, http.StatusBadRequest, "title is required"},
		{"other pg", &pgconn.PgError{Code: "57P01", Message: "terminating connection"}, http.StatusInternalServerError, "terminating connection"},
		{"not found", gorm.ErrRecordNotFound, http.StatusNotFound, "not found"},
		{"plain", errors.New("dial tcp: refused"), http.StatusInternalServerError, "dial tcp: refused"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, message := helper.MapPGError(tc.err)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.message, message)
		})
	}

	assert.True(t, helper.IsUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.False(t, helper.IsUniqueViolation(errors.New("x")))
	assert.True(t, helper.IsForeignKeyViolation(&pgconn.PgError{Code: "23503"}))
}
