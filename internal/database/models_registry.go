package database

import "agora/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Forum{},
		&models.ForumRule{},
		&models.ForumSubscription{},
		&models.ForumBan{},
		&models.Post{},
		&models.PostLike{},
		&models.Reply{},
		&models.ReplyLike{},
		&models.Poll{},
		&models.PollOption{},
		&models.PollVote{},
	}
}
