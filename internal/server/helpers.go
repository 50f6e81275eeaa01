// Package server contains the HTTP and WebSocket handlers of the forum API.
package server

import (
	"math"
	"strconv"

	"agora/internal/models"
	"agora/internal/repository"
	"agora/internal/service"

	"github.com/gofiber/fiber/v2"
)

const (
	maxPaginationLimit = 100
	// maxPaginationOffset bounds (page-1)*limit so the offset stays representable.
	maxPaginationOffset = math.MaxInt32
)

// Pagination holds the parsed page/limit query parameters.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// Repo converts the pagination into a repository page.
func (p Pagination) Repo() repository.Page {
	return repository.Page{Limit: p.Limit, Offset: (p.Page - 1) * p.Limit}
}

// PageInfo is the pagination block of a list response.
type PageInfo struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int64 `json:"pages"`
}

// parsePagination reads page and limit. Non-numeric or out-of-range values
// are rejected rather than clamped.
func parsePagination(c *fiber.Ctx, defaultLimit int) (Pagination, error) {
	p := Pagination{Page: 1, Limit: defaultLimit}

	if raw := c.Query("page"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			return p, models.NewValidationError("page must be a positive integer")
		}
		p.Page = v
	}
	if raw := c.Query("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 || v > maxPaginationLimit {
			return p, models.NewValidationError("limit must be between 1 and " + strconv.Itoa(maxPaginationLimit))
		}
		p.Limit = v
	}
	if p.Page-1 > maxPaginationOffset/p.Limit {
		return p, models.NewValidationError("page is out of range")
	}
	return p, nil
}

// parseID reads a numeric route parameter. Malformed ids are NOT_FOUND.
func parseID(c *fiber.Ctx, param string, kind service.ResourceKind) (uint, error) {
	return service.ParseID(kind, c.Params(param))
}

func bindJSON(c *fiber.Ctx, dest any) error {
	if err := c.BodyParser(dest); err != nil {
		return models.NewValidationError("Invalid request body")
	}
	return nil
}

func respondOK(c *fiber.Ctx, status int, data any) error {
	return c.Status(status).JSON(fiber.Map{
		"success": true,
		"data":    data,
	})
}

func respondList(c *fiber.Ctx, data any, p Pagination, total int64) error {
	return c.JSON(fiber.Map{
		"success": true,
		"data":    data,
		"pagination": PageInfo{
			Page:  p.Page,
			Limit: p.Limit,
			Total: total,
			Pages: int64(math.Ceil(float64(total) / float64(p.Limit))),
		},
	})
}

func respondMessage(c *fiber.Ctx, message string) error {
	return c.JSON(fiber.Map{
		"success": true,
		"message": message,
	})
}
