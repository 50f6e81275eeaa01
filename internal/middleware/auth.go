package middleware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
)

var (
	// ErrMissingCredential is returned when no Authorization header is present.
	ErrMissingCredential = errors.New("authorization header required")
	// ErrMalformedCredential is returned when the header is not a bearer credential.
	ErrMalformedCredential = errors.New("invalid authorization header format")
)

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
// Cookies and query parameters are never consulted.
func BearerToken(c *fiber.Ctx) (string, error) {
	header := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	if header == "" {
		return "", ErrMissingCredential
	}

	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", ErrMalformedCredential
	}
	return parts[1], nil
}
