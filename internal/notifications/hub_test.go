package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForumHub_RegisterAndBroadcast(t *testing.T) {
	hub := NewForumHub()

	a, err := hub.Register(1, 10, nil)
	require.NoError(t, err)
	b, err := hub.Register(1, 0, nil)
	require.NoError(t, err)
	other, err := hub.Register(2, 11, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, hub.ClientCount(1))
	hub.Broadcast(1, `{"type":"post_created"}`)

	assert.Equal(t, `{"type":"post_created"}`, string(<-a.Send))
	assert.Equal(t, `{"type":"post_created"}`, string(<-b.Send))
	assert.Empty(t, other.Send)

	hub.UnregisterClient(a)
	hub.UnregisterClient(a)
	assert.Equal(t, 1, hub.ClientCount(1))
	_, open := <-a.Send
	assert.False(t, open)
}

func TestForumHub_BroadcastToClosedClientDoesNotPanic(t *testing.T) {
	hub := NewForumHub()
	c, err := hub.Register(1, 0, nil)
	require.NoError(t, err)
	close(c.Send)

	assert.NotPanics(t, func() { hub.Broadcast(1, "x") })
}

func TestForumHub_FullBufferDropsMessages(t *testing.T) {
	hub := NewForumHub()
	c, err := hub.Register(1, 0, nil)
	require.NoError(t, err)

	for i := 0; i < cap(c.Send)+5; i++ {
		hub.Broadcast(1, "event")
	}
	assert.Len(t, c.Send, cap(c.Send))
}

func TestForumHub_ShutdownRejectsRegistration(t *testing.T) {
	hub := NewForumHub()
	c, err := hub.Register(3, 0, nil)
	require.NoError(t, err)

	require.NoError(t, hub.Shutdown(context.Background()))
	require.NoError(t, hub.Shutdown(context.Background()))

	_, open := <-c.Send
	assert.False(t, open)
	assert.Zero(t, hub.ClientCount(3))

	_, err = hub.Register(3, 0, nil)
	assert.ErrorIs(t, err, ErrHubClosed)
}

func TestForumHub_StartWiringForwardsRedisEvents(t *testing.T) {
	n := NewNotifier(newTestRedis(t))
	hub := NewForumHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c, err := hub.Register(5, 0, nil)
	require.NoError(t, err)
	require.NoError(t, hub.StartWiring(ctx, n))

	require.NoError(t, n.PublishForumActivity(context.Background(), ForumEvent{Type: EventPostDeleted, ForumID: 5, PostID: 9}))

	select {
	case msg := <-c.Send:
		assert.Contains(t, string(msg), `"postId":9`)
	case <-time.After(time.Second):
		t.Fatal("event not forwarded")
	}
}
