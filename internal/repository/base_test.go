package repository

import (
	"testing"

	"agora/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestSortColumnsOrder(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		raw      string
		fallback string
		want     string
		wantErr  bool
	}{
		{name: "fallback", raw: "", fallback: "-updatedAt", want: "forums.updated_at DESC"},
		{name: "ascending", raw: "title", fallback: "-updatedAt", want: "forums.title ASC"},
		{name: "explicit plus", raw: "+postsCount", fallback: "-updatedAt", want: "forums.posts_count ASC"},
		{name: "descending", raw: "-lastActivity", fallback: "", want: "forums.last_activity DESC"},
		{name: "unknown column", raw: "password", fallback: "", wantErr: true},
		{name: "injection attempt", raw: "title; DROP TABLE forums", fallback: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ForumSorts.Order(tt.raw, tt.fallback)
			if tt.wantErr {
				requireCode(t, err, models.CodeValidation)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
