package router

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wanderly/tours-api/internal/apperror"
	"github.com/wanderly/tours-api/internal/query"
	"github.com/wanderly/tours-api/internal/repository"
)

func doFailing(t *testing.T, env string, failErr error) (int, map[string]interface{}) {
	t.Helper()
	app := fiber.New(fiber.Config{ErrorHandler: errorHandler(env)})
	app.Get("/boom", func(c *fiber.Ctx) error { return failErr })

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/boom", nil))
	require.NoError(t, err)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestErrorHandlerAppError(t *testing.T) {
	code, body := doFailing(t, "production", apperror.NotFound("no such thing"))
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "fail", body["status"])
	assert.Equal(t, "no such thing", body["message"])
}

func TestErrorHandlerMissingDocument(t *testing.T) {
	code, body := doFailing(t, "production", repository.ErrNotFound)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "No document found with that ID!", body["message"])
}

func TestErrorHandlerMalformedQuery(t *testing.T) {
	code, body := doFailing(t, "production", query.ErrMalformed)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "fail", body["status"])
}

func TestErrorHandlerDuplicateKeys(t *testing.T) {
	code, body := doFailing(t, "production", repository.ErrDuplicateEmail)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "email already in use", body["message"])

	code, body = doFailing(t, "production", repository.ErrDuplicate)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Duplicate value for a field that must be unique", body["message"])
}

func TestErrorHandlerHidesInternalDetails(t *testing.T) {
	code, body := doFailing(t, "production", errors.New("pq: secret dsn"))
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "error", body["status"])
	assert.Equal(t, "Something went very wrong!", body["message"])
}

func TestErrorHandlerShowsDetailsInDevelopment(t *testing.T) {
	_, body := doFailing(t, "development", errors.New("cursor decode failed"))
	assert.Equal(t, "cursor decode failed", body["message"])
}
