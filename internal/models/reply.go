package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Reply is an answer inside a post's thread. Its ID is a UUID assigned at
// creation and never reused; Position orders replies within the post.
type Reply struct {
	ID        string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	PostID    uint       `gorm:"not null;index" json:"postId"`
	AuthorID  uint       `gorm:"not null;index" json:"authorId"`
	Author    *User      `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	Content   string     `gorm:"type:text;not null" json:"content"`
	Position  int        `gorm:"not null" json:"position"`
	IsEdited  bool       `gorm:"not null;default:false" json:"isEdited"`
	EditedAt  *time.Time `json:"editedAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`

	LikesCount int64 `gorm:"->;-:migration" json:"likesCount"`
	Liked      bool  `gorm:"->;-:migration" json:"liked"`
}

// TableName specifies the table name for GORM.
func (Reply) TableName() string {
	return "replies"
}

// BeforeCreate assigns a fresh UUID when none was set.
func (r *Reply) BeforeCreate(*gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// ReplyLike is a single user's like on a reply.
type ReplyLike struct {
	ReplyID string    `gorm:"primaryKey;type:varchar(36)" json:"replyId"`
	UserID  uint      `gorm:"primaryKey;autoIncrement:false;index" json:"userId"`
	LikedAt time.Time `gorm:"not null" json:"likedAt"`
}

// TableName specifies the table name for GORM.
func (ReplyLike) TableName() string {
	return "reply_likes"
}
