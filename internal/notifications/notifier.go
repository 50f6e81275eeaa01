// Package notifications fans forum activity out to websocket subscribers
// through Redis pub/sub.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"time"

	"agora/internal/middleware"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Forum activity event types.
const (
	EventPostCreated  = "post_created"
	EventPostDeleted  = "post_deleted"
	EventPostStatus   = "post_status"
	EventReplyAdded   = "reply_added"
	EventReplyDeleted = "reply_deleted"
)

const forumActivityPattern = "forum:*:activity"

// ForumEvent is the payload published for every aggregate-changing write.
type ForumEvent struct {
	Type    string    `json:"type"`
	ForumID uint      `json:"forumId"`
	PostID  uint      `json:"postId,omitempty"`
	ReplyID string    `json:"replyId,omitempty"`
	ActorID uint      `json:"actorId,omitempty"`
	Payload any       `json:"payload,omitempty"`
	At      time.Time `json:"at"`
}

// ForumActivityChannel is the Redis channel carrying a forum's events.
func ForumActivityChannel(forumID uint) string {
	return fmt.Sprintf("forum:%d:activity", forumID)
}

// Notifier provides helpers to publish notifications into Redis channels
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
// A nil client turns every publish into a no-op.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// PublishForumActivity sends ev to the forum's activity channel.
func (n *Notifier) PublishForumActivity(ctx context.Context, ev ForumEvent) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal forum event: %w", err)
	}
	return n.rdb.Publish(ctx, ForumActivityChannel(ev.ForumID), payload).Err()
}

// StartForumSubscriber subscribes to every forum activity channel and calls
// onMessage for each message until ctx is cancelled.
func (n *Notifier) StartForumSubscriber(
	ctx context.Context, onMessage func(channel string, payload string),
) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	sub := n.rdb.PSubscribe(ctx, forumActivityPattern)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe %s: %w", forumActivityPattern, err)
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							middleware.Logger.Error("panic in forum subscriber",
								zap.Any("panic", r),
								zap.ByteString("stack", debug.Stack()),
							)
						}
					}()
					onMessage(msg.Channel, msg.Payload)
				}()
			}
		}
	}()

	return nil
}
