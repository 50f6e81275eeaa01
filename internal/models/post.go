package models

import "time"

// PostType distinguishes regular posts from announcements and polls.
type PostType string

const (
	PostTypeNormal       PostType = "normal"
	PostTypeAnnouncement PostType = "announcement"
	PostTypePoll         PostType = "poll"
)

// PostStatus is the moderation state of a post.
type PostStatus string

const (
	// PostStatusActive is visible and open for replies.
	PostStatusActive PostStatus = "active"
	// PostStatusLocked is visible but rejects new replies.
	PostStatusLocked PostStatus = "locked"
	// PostStatusHidden is removed from listings.
	PostStatusHidden PostStatus = "hidden"
	// PostStatusModerated is awaiting moderator review.
	PostStatusModerated PostStatus = "moderated"
)

// Valid reports whether s is a known status.
func (s PostStatus) Valid() bool {
	switch s {
	case PostStatusActive, PostStatusLocked, PostStatusHidden, PostStatusModerated:
		return true
	}
	return false
}

// ModerationInfo records the last moderator action on a post.
type ModerationInfo struct {
	ModeratedByID *uint      `json:"moderatedBy,omitempty"`
	ModeratedAt   *time.Time `json:"moderatedAt,omitempty"`
	Reason        string     `gorm:"size:500" json:"reason,omitempty"`
}

// Post is a discussion thread inside a forum. ReplyCount and LastActivity
// are derived from the post's replies.
type Post struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	Title        string         `gorm:"size:200;not null" json:"title"`
	Content      string         `gorm:"type:text;not null" json:"content"`
	AuthorID     uint           `gorm:"not null;index" json:"authorId"`
	Author       *User          `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	ForumID      uint           `gorm:"not null;index" json:"forumId"`
	Forum        *Forum         `gorm:"foreignKey:ForumID" json:"forum,omitempty"`
	Type         PostType       `gorm:"type:varchar(16);not null;default:'normal'" json:"type"`
	Status       PostStatus     `gorm:"type:varchar(16);not null;default:'active';index" json:"status"`
	Tags         []string       `gorm:"serializer:json" json:"tags"`
	Views        int64          `gorm:"not null;default:0" json:"views"`
	Replies      []Reply        `gorm:"foreignKey:PostID" json:"replies,omitempty"`
	ReplyCount   int64          `gorm:"not null;default:0" json:"replyCount"`
	Poll         *Poll          `gorm:"foreignKey:PostID" json:"poll,omitempty"`
	IsEdited     bool           `gorm:"not null;default:false" json:"isEdited"`
	EditedAt     *time.Time     `json:"editedAt,omitempty"`
	LastActivity time.Time      `json:"lastActivity"`
	Moderation   ModerationInfo `gorm:"embedded;embeddedPrefix:moderation_" json:"moderation"`
	CreatedAt    time.Time      `gorm:"index" json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`

	// LikesCount is not persisted; computed at query time
	LikesCount int64 `gorm:"->;-:migration" json:"likesCount"`
	// Liked indicates whether the requesting user liked this post (computed)
	Liked bool `gorm:"->;-:migration" json:"liked"`
}

// TableName specifies the table name for GORM.
func (Post) TableName() string {
	return "posts"
}

// PostLike is a single user's like on a post.
type PostLike struct {
	PostID  uint      `gorm:"primaryKey;autoIncrement:false" json:"postId"`
	UserID  uint      `gorm:"primaryKey;autoIncrement:false;index" json:"userId"`
	LikedAt time.Time `gorm:"not null" json:"likedAt"`
}

// TableName specifies the table name for GORM.
func (PostLike) TableName() string {
	return "post_likes"
}
