package models

import "time"

// ForumCategory groups forums on the index page.
type ForumCategory string

const (
	CategoryGeneral       ForumCategory = "general"
	CategoryTechnology    ForumCategory = "technology"
	CategoryGaming        ForumCategory = "gaming"
	CategorySports        ForumCategory = "sports"
	CategoryEntertainment ForumCategory = "entertainment"
	CategoryEducation     ForumCategory = "education"
	CategoryOther         ForumCategory = "other"
)

// ForumCategories lists every accepted category in display order.
var ForumCategories = []ForumCategory{
	CategoryGeneral,
	CategoryTechnology,
	CategoryGaming,
	CategorySports,
	CategoryEntertainment,
	CategoryEducation,
	CategoryOther,
}

// ForumStatus defines the visibility state of a forum.
type ForumStatus string

const (
	// ForumStatusActive accepts new posts.
	ForumStatusActive ForumStatus = "active"
	// ForumStatusArchived is read-only.
	ForumStatusArchived ForumStatus = "archived"
	// ForumStatusPrivate is hidden from the public index.
	ForumStatusPrivate ForumStatus = "private"
)

// ForumSettings toggles per-forum posting behaviour.
type ForumSettings struct {
	AllowImages          bool `json:"allowImages"`
	AllowPolls           bool `json:"allowPolls"`
	AllowAnonymousPosts  bool `json:"allowAnonymousPosts"`
	RequireModeration    bool `json:"requireModeration"`
	RestrictedToVerified bool `json:"restrictedToVerified"`
}

// DefaultForumSettings returns the settings a new forum starts with.
func DefaultForumSettings() ForumSettings {
	return ForumSettings{AllowImages: true, AllowPolls: true}
}

// Forum is a topic area that owns posts. PostsCount, LastPostID and
// LastActivity are derived from the forum's posts and are only written by
// the aggregate synchronizer.
type Forum struct {
	ID               uint          `gorm:"primaryKey" json:"id"`
	Title            string        `gorm:"size:100;not null;uniqueIndex" json:"title"`
	Description      string        `gorm:"size:500;not null" json:"description"`
	Category         ForumCategory `gorm:"type:varchar(32);not null;index" json:"category"`
	CreatorID        uint          `gorm:"not null;index" json:"creatorId"`
	Creator          *User         `gorm:"foreignKey:CreatorID" json:"creator,omitempty"`
	Moderators       []User        `gorm:"many2many:forum_moderators" json:"moderators"`
	Status           ForumStatus   `gorm:"type:varchar(16);not null;default:'active'" json:"status"`
	Rules            []ForumRule   `gorm:"foreignKey:ForumID" json:"rules"`
	PostsCount       int64         `gorm:"not null;default:0" json:"postsCount"`
	SubscribersCount int64         `gorm:"not null;default:0" json:"subscribersCount"`
	LastPostID       *uint         `gorm:"index" json:"lastPostId"`
	LastPost         *Post         `gorm:"foreignKey:LastPostID" json:"lastPost,omitempty"`
	LastActivity     time.Time     `gorm:"index" json:"lastActivity"`
	Tags             []string      `gorm:"serializer:json" json:"tags"`
	Settings         ForumSettings `gorm:"embedded;embeddedPrefix:setting_" json:"settings"`
	CreatedAt        time.Time     `json:"createdAt"`
	UpdatedAt        time.Time     `json:"updatedAt"`
}

// TableName specifies the table name for GORM.
func (Forum) TableName() string {
	return "forums"
}

// IsModerator reports whether userID is in the forum's moderator list.
// Moderators must be preloaded.
func (f *Forum) IsModerator(userID uint) bool {
	for _, m := range f.Moderators {
		if m.ID == userID {
			return true
		}
	}
	return false
}

// ForumRule is one entry in a forum's ordered rule list.
type ForumRule struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ForumID     uint      `gorm:"not null;index" json:"forumId"`
	Title       string    `gorm:"size:100;not null" json:"title"`
	Description string    `gorm:"size:500" json:"description"`
	Position    int       `gorm:"not null;default:0" json:"position"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// TableName specifies the table name for GORM.
func (ForumRule) TableName() string {
	return "forum_rules"
}

// ForumSubscription records that a user follows a forum.
type ForumSubscription struct {
	ForumID      uint      `gorm:"primaryKey;autoIncrement:false" json:"forumId"`
	UserID       uint      `gorm:"primaryKey;autoIncrement:false;index" json:"userId"`
	SubscribedAt time.Time `gorm:"not null" json:"subscribedAt"`
}

// TableName specifies the table name for GORM.
func (ForumSubscription) TableName() string {
	return "forum_subscriptions"
}

// ForumBan stops a user from posting or replying in a forum until it
// expires. A nil ExpiresAt is permanent.
type ForumBan struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	ForumID    uint       `gorm:"not null;uniqueIndex:idx_forum_bans_forum_user" json:"forumId"`
	UserID     uint       `gorm:"not null;uniqueIndex:idx_forum_bans_forum_user" json:"userId"`
	User       *User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Reason     string     `gorm:"size:500" json:"reason"`
	BannedByID uint       `gorm:"not null" json:"bannedBy"`
	BannedAt   time.Time  `gorm:"not null" json:"bannedAt"`
	ExpiresAt  *time.Time `json:"expiresAt,omitempty"`
}

// TableName specifies the table name for GORM.
func (ForumBan) TableName() string {
	return "forum_bans"
}

// ActiveAt reports whether the ban is in force at t.
func (b *ForumBan) ActiveAt(t time.Time) bool {
	return b.ExpiresAt == nil || b.ExpiresAt.After(t)
}
