package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestTranslateError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		err     error
		code    string
		status  int
		message string
	}{
		{"record not found", gorm.ErrRecordNotFound, CodeNotFound, 404, "Resource not found"},
		{"wrapped not found", fmt.Errorf("load forum: %w", gorm.ErrRecordNotFound), CodeNotFound, 404, "Resource not found"},
		{"postgres unique", &pgconn.PgError{Code: "23505", Detail: "Key (title)=(Tech) already exists."}, CodeValidation, 400, "value of field title already exists"},
		{"sqlite unique", errors.New("UNIQUE constraint failed: users.email"), CodeValidation, 400, "value of field email already exists"},
		{"gorm duplicated", gorm.ErrDuplicatedKey, CodeValidation, 400, "duplicate value"},
		{"expired token", fmt.Errorf("parse: %w", jwt.ErrTokenExpired), CodeUnauthorized, 401, "Token expired"},
		{"malformed token", jwt.ErrTokenMalformed, CodeUnauthorized, 401, "Invalid token"},
		{"app error passes through", NewForbiddenError("nope"), CodeForbidden, 403, "nope"},
		{"unknown", errors.New("disk on fire"), CodeInternal, 500, "Internal server error"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := TranslateError(tt.err)
			require.NotNil(t, got)
			assert.Equal(t, tt.code, got.Code)
			assert.Equal(t, tt.status, got.Status())
			assert.Equal(t, tt.message, got.Message)
		})
	}

	assert.Nil(t, TranslateError(nil))
}

func TestRespondWithError(t *testing.T) {
	t.Parallel()

	app := fiber.New()
	app.Get("/internal", func(c *fiber.Ctx) error {
		return RespondWithError(c, errors.New("secret connection string"))
	})
	app.Get("/notfound", func(c *fiber.Ctx) error {
		return RespondWithError(c, NewNotFoundError("Post", 7))
	})
	app.Get("/fiber", func(c *fiber.Ctx) error {
		return RespondWithError(c, fiber.NewError(fiber.StatusRequestEntityTooLarge, "too big"))
	})

	decode := func(t *testing.T, path string) (int, ErrorResponse) {
		t.Helper()
		resp, err := app.Test(httptest.NewRequest("GET", path, nil))
		require.NoError(t, err)
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		var out ErrorResponse
		require.NoError(t, json.Unmarshal(body, &out))
		assert.NotContains(t, string(body), "secret")
		return resp.StatusCode, out
	}

	status, body := decode(t, "/internal")
	assert.Equal(t, 500, status)
	assert.False(t, body.Success)
	assert.Equal(t, "Internal server error", body.Error)

	status, body = decode(t, "/notfound")
	assert.Equal(t, 404, status)
	assert.Equal(t, "Post with ID 7 not found", body.Error)
	assert.Equal(t, CodeNotFound, body.Code)

	status, body = decode(t, "/fiber")
	assert.Equal(t, 413, status)
	assert.Equal(t, "too big", body.Error)
}
