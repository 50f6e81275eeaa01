package cache

import (
	"fmt"
	"time"
)

const (
	UserKeyPrefix       = "user:%d"
	ForumKeyPrefix      = "forum:%d"
	ForumStatsKeyPrefix = "forum:%d:stats"
)

const (
	UserTTL       = 5 * time.Minute
	ForumTTL      = 10 * time.Minute
	ForumStatsTTL = time.Minute
)

func UserKey(userID uint) string {
	return fmt.Sprintf(UserKeyPrefix, userID)
}

func ForumKey(forumID uint) string {
	return fmt.Sprintf(ForumKeyPrefix, forumID)
}

func ForumStatsKey(forumID uint) string {
	return fmt.Sprintf(ForumStatsKeyPrefix, forumID)
}
