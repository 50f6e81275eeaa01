// Package repository provides data access layer implementations for the application.
package repository

import (
	"errors"
	"fmt"
	"strings"

	"agora/internal/models"

	"gorm.io/gorm"
)

// Page is a limit/offset window over a listing.
type Page struct {
	Limit  int
	Offset int
}

func (p Page) apply(db *gorm.DB) *gorm.DB {
	if p.Limit > 0 {
		db = db.Limit(p.Limit)
	}
	if p.Offset > 0 {
		db = db.Offset(p.Offset)
	}
	return db
}

// storageError maps a gorm error onto the application error taxonomy,
// naming the resource when the record is missing.
func storageError(err error, resource string, id any) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewNotFoundError(resource, id)
	}
	return models.TranslateError(err)
}

// SortColumns maps API sort keys onto column names.
type SortColumns map[string]string

// Order parses a sort expression such as "-createdAt" into an ORDER BY
// clause. A leading '-' sorts descending. Unknown keys are rejected.
func (s SortColumns) Order(raw, fallback string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = fallback
	}
	dir := "ASC"
	key := raw
	if strings.HasPrefix(key, "-") {
		dir = "DESC"
		key = key[1:]
	} else if strings.HasPrefix(key, "+") {
		key = key[1:]
	}
	col, ok := s[key]
	if !ok {
		return "", models.NewValidationError(fmt.Sprintf("Invalid sort field %q", key))
	}
	return col + " " + dir, nil
}

// ForumSorts are the sort keys accepted when listing forums.
var ForumSorts = SortColumns{
	"createdAt":        "forums.created_at",
	"updatedAt":        "forums.updated_at",
	"title":            "forums.title",
	"postsCount":       "forums.posts_count",
	"subscribersCount": "forums.subscribers_count",
	"lastActivity":     "forums.last_activity",
}

// PostSorts are the sort keys accepted when listing posts.
var PostSorts = SortColumns{
	"createdAt":    "posts.created_at",
	"updatedAt":    "posts.updated_at",
	"title":        "posts.title",
	"views":        "posts.views",
	"replyCount":   "posts.reply_count",
	"lastActivity": "posts.last_activity",
	"likesCount":   "likes_count",
}
