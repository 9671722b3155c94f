package controller_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"library_backend/internals/features/library/books/route"
	"library_backend/internals/features/library/dispatch"
	model "library_backend/internals/features/library/model"
	"library_backend/internals/features/library/store"
	"library_backend/internals/features/library/tasks"
	"library_backend/internals/features/library/transitions"
	"library_backend/internals/testsupport/pgtest"
)

type crudEnv struct {
	app     *fiber.App
	db      *gorm.DB
	library model.HolderModel
	alice   model.HolderModel
}

func newCrudApp(t *testing.T) crudEnv {
	t.Helper()
	db := pgtest.Open(t)
	library := model.HolderModel{Name: model.LibraryHolderName}
	alice := model.HolderModel{Name: "Alice"}
	require.NoError(t, db.Create(&library).Error)
	require.NoError(t, db.Create(&alice).Error)

	d, err := dispatch.New(dispatch.Config{Workers: 2, Timeout: 5 * time.Second})
	require.NoError(t, err)
	tasks.Register(d, transitions.NewEngine(store.NewGormStore(db)))
	d.Start()
	t.Cleanup(func() { _ = d.Close(context.Background()) })

	app := fiber.New()
	route.BookRoutes(app.Group("/api"), db, d)
	return crudEnv{app: app, db: db, library: library, alice: alice}
}

func send(t *testing.T, app *fiber.App, method, path, body string) (int, map[string]any, []map[string]any) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) == 0 {
		return resp.StatusCode, nil, nil
	}
	if raw[0] == '[' {
		var list []map[string]any
		require.NoError(t, json.Unmarshal(raw, &list), string(raw))
		return resp.StatusCode, nil, list
	}
	obj := map[string]any{}
	require.NoError(t, json.Unmarshal(raw, &obj), string(raw))
	return resp.StatusCode, obj, nil
}

func Test_Books_CreateDefaultsToLibrary(t *testing.T) {
	e := newCrudApp(t)

	status, body, _ := send(t, e.app, http.MethodPost, "/api/books/",
		`{"title": "Moby Dick", "author": "Herman Melville", "published_year": 1851}`)

	require.Equal(t, http.StatusCreated, status, body)
	assert.Equal(t, float64(e.library.ID), body["holder_id"])
	assert.Equal(t, map[string]any{"id": float64(e.library.ID), "name": "Library"}, body["holder"])
}

func Test_Books_CreateWithHolderAndUnknownHolder(t *testing.T) {
	e := newCrudApp(t)

	status, body, _ := send(t, e.app, http.MethodPost, "/api/books",
		fmt.Sprintf(`{"title": "Emma", "author": "Jane Austen", "published_year": 1815, "holder_id": %d}`, e.alice.ID))
	require.Equal(t, http.StatusCreated, status, body)
	assert.Equal(t, float64(e.alice.ID), body["holder_id"])

	status, body, _ = send(t, e.app, http.MethodPost, "/api/books",
		`{"title": "Emma", "author": "Jane Austen", "published_year": 1815, "holder_id": 999}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Holder 999 not found", body["error"])
}

func Test_Books_CreateValidation(t *testing.T) {
	e := newCrudApp(t)

	status, body, _ := send(t, e.app, http.MethodPost, "/api/books/", `{"title": "Moby Dick"}`)

	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, map[string]any{"author": "required", "published_year": "required"}, body["fields"])
}

func Test_Books_CreateWithoutLibraryHolder(t *testing.T) {
	e := newCrudApp(t)
	require.NoError(t, e.db.Delete(&model.HolderModel{}, e.library.ID).Error)

	status, body, _ := send(t, e.app, http.MethodPost, "/api/books/",
		`{"title": "Moby Dick", "author": "Herman Melville", "published_year": 1851}`)

	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Library holder not found", body["error"])
}

func Test_Books_ListGetUpdateDelete(t *testing.T) {
	e := newCrudApp(t)
	b := model.BookModel{Title: "Dune", Author: "Frank Herbert", PublishedYear: 1965, HolderID: e.library.ID}
	require.NoError(t, e.db.Create(&b).Error)
	path := fmt.Sprintf("/api/books/%d/", b.ID)

	status, _, list := send(t, e.app, http.MethodGet, "/api/books/", "")
	require.Equal(t, http.StatusOK, status)
	require.Len(t, list, 1)
	assert.Equal(t, "Library", list[0]["holder"].(map[string]any)["name"])

	status, body, _ := send(t, e.app, http.MethodPut, path,
		`{"title": "Dune Messiah", "author": "Frank Herbert", "published_year": 1969}`)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "Dune Messiah", body["title"])
	assert.Equal(t, float64(e.library.ID), body["holder_id"], "PUT without holder_id keeps it")

	status, body, _ = send(t, e.app, http.MethodPatch, path, fmt.Sprintf(`{"holder_id": %d}`, e.alice.ID))
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "Dune Messiah", body["title"])
	assert.Equal(t, "Alice", body["holder"].(map[string]any)["name"])

	status, body, _ = send(t, e.app, http.MethodPatch, path, `{"holder_id": 4242}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Holder 4242 not found", body["error"])

	status, body, _ = send(t, e.app, http.MethodGet, path, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(e.alice.ID), body["holder_id"])

	status, body, _ = send(t, e.app, http.MethodDelete, path, "")
	assert.Equal(t, http.StatusNoContent, status)
	assert.Nil(t, body)

	status, body, _ = send(t, e.app, http.MethodGet, path, "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, fmt.Sprintf("Book %d not found", b.ID), body["error"])
}

func Test_Books_CheckoutAndReturnOverPostgres(t *testing.T) {
	e := newCrudApp(t)
	b := model.BookModel{Title: "Moby Dick", Author: "Herman Melville", PublishedYear: 1851, HolderID: e.library.ID}
	require.NoError(t, e.db.Create(&b).Error)

	status, body, _ := send(t, e.app, http.MethodPost, fmt.Sprintf("/api/books/%d/checkout/", b.ID),
		fmt.Sprintf(`{"holder_id": %d}`, e.alice.ID))
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, float64(e.alice.ID), body["holder_id"])

	status, body, _ = send(t, e.app, http.MethodPost, fmt.Sprintf("/api/books/%d/return/", b.ID), "")
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, float64(e.library.ID), body["holder_id"])
}
