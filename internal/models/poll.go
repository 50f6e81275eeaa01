package models

import "time"

// Poll is attached to a post of type poll.
type Poll struct {
	ID                 uint         `gorm:"primaryKey" json:"id"`
	PostID             uint         `gorm:"not null;uniqueIndex" json:"postId"`
	Question           string       `gorm:"size:200;not null" json:"question"`
	Options            []PollOption `gorm:"foreignKey:PollID" json:"options"`
	ExpiresAt          *time.Time   `json:"expiresAt,omitempty"`
	AllowMultipleVotes bool         `gorm:"not null;default:false" json:"allowMultipleVotes"`
	CreatedAt          time.Time    `json:"createdAt"`

	TotalVotes int64 `gorm:"-" json:"totalVotes"`
}

// TableName specifies the table name for GORM.
func (Poll) TableName() string {
	return "polls"
}

// ExpiredAt reports whether voting has closed at t.
func (p *Poll) ExpiredAt(t time.Time) bool {
	return p.ExpiresAt != nil && !p.ExpiresAt.After(t)
}

// PollOption is one choice in a poll.
type PollOption struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	PollID   uint   `gorm:"not null;index" json:"pollId"`
	Text     string `gorm:"size:200;not null" json:"text"`
	Position int    `gorm:"not null;default:0" json:"position"`

	Votes      int64   `gorm:"-" json:"votes"`
	Percentage float64 `gorm:"-" json:"percentage"`
}

// TableName specifies the table name for GORM.
func (PollOption) TableName() string {
	return "poll_options"
}

// PollVote is a user's vote for one option.
type PollVote struct {
	PollID   uint      `gorm:"primaryKey;autoIncrement:false" json:"pollId"`
	OptionID uint      `gorm:"primaryKey;autoIncrement:false" json:"optionId"`
	UserID   uint      `gorm:"primaryKey;autoIncrement:false;index" json:"userId"`
	VotedAt  time.Time `gorm:"not null" json:"votedAt"`
}

// TableName specifies the table name for GORM.
func (PollVote) TableName() string {
	return "poll_votes"
}
