// Package models contains data structures for the application's domain models.
package models

import (
	"time"

	"gorm.io/gorm"
)

// Role is the global role of a user.
type Role string

const (
	// RoleUser is the default role granted at registration.
	RoleUser Role = "user"
	// RoleModerator may moderate any forum.
	RoleModerator Role = "moderator"
	// RoleAdmin bypasses ownership checks.
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleModerator, RoleAdmin:
		return true
	}
	return false
}

// UserPreferences holds per-user UI and notification settings.
type UserPreferences struct {
	EmailNotifications bool   `json:"emailNotifications"`
	Theme              string `gorm:"type:varchar(10);not null;default:'system'" json:"theme"`
	Language           string `gorm:"type:varchar(10);not null;default:'en'" json:"language"`
}

// UserStats are derived counters recomputed from posts and likes.
type UserStats struct {
	PostsCount    int64 `gorm:"not null;default:0" json:"postsCount"`
	LikesReceived int64 `gorm:"not null;default:0" json:"likesReceived"`
	Reputation    int64 `gorm:"not null;default:0" json:"reputation"`
}

// User represents a registered forum member.
type User struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	Username    string          `gorm:"size:30;not null;uniqueIndex" json:"username"`
	Email       string          `gorm:"size:255;not null;uniqueIndex" json:"email"`
	Password    string          `gorm:"not null" json:"-"`
	Role        Role            `gorm:"type:varchar(16);not null;default:'user';index" json:"role"`
	Bio         string          `gorm:"size:500" json:"bio"`
	Avatar      string          `json:"avatar"`
	IsVerified  bool            `gorm:"not null;default:false" json:"isVerified"`
	Preferences UserPreferences `gorm:"embedded;embeddedPrefix:pref_" json:"preferences"`
	Stats       UserStats       `gorm:"embedded;embeddedPrefix:stat_" json:"stats"`
	LastLogin   *time.Time      `json:"lastLogin,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
	DeletedAt   gorm.DeletedAt  `gorm:"index" json:"-"`
}

// TableName specifies the table name for GORM.
func (User) TableName() string {
	return "users"
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// HasRole reports whether the user's role is one of roles.
func (u *User) HasRole(roles ...Role) bool {
	if u == nil {
		return false
	}
	for _, r := range roles {
		if u.Role == r {
			return true
		}
	}
	return false
}

// Reputation is the score shown on profiles: two points per like received
// plus one per post.
func Reputation(postsCount, likesReceived int64) int64 {
	return likesReceived*2 + postsCount
}
