package database

import (
	"testing"

	"agora/internal/models"

	"github.com/stretchr/testify/require"
)

func TestPersistentModels_IncludesForumAggregates(t *testing.T) {
	var forum, reply bool
	for _, model := range PersistentModels() {
		switch model.(type) {
		case *models.Forum:
			forum = true
		case *models.Reply:
			reply = true
		}
	}
	require.True(t, forum, "PersistentModels should include Forum")
	require.True(t, reply, "PersistentModels should include Reply")
}
