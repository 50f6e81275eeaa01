package notifications

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"agora/internal/middleware"
	"agora/internal/observability"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
)

const (
	// Max connections watching one forum
	maxConnsPerForum = 500
	// Max total connections
	maxTotalConns = 10000
)

// ErrHubClosed is returned by Register after Shutdown.
var ErrHubClosed = errors.New("hub is shut down")

// ForumHub maps forumID -> the websocket clients watching that forum.
type ForumHub struct {
	mu         sync.RWMutex
	conns      map[uint]map[*Client]struct{}
	totalConns int
	closed     bool
}

// NewForumHub creates an empty hub.
func NewForumHub() *ForumHub {
	return &ForumHub{conns: make(map[uint]map[*Client]struct{})}
}

// Name returns a human-readable identifier for this hub.
func (h *ForumHub) Name() string { return "forum activity hub" }

// Register a connection watching forumID. userID is zero for anonymous
// readers. Returns an error if limits are exceeded.
func (h *ForumHub) Register(forumID, userID uint, conn *websocket.Conn) (*Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrHubClosed
	}
	if h.totalConns >= maxTotalConns {
		return nil, errors.New("server connection limit reached")
	}

	m, ok := h.conns[forumID]
	if !ok {
		m = make(map[*Client]struct{})
		h.conns[forumID] = m
	}
	if len(m) >= maxConnsPerForum {
		return nil, errors.New("forum connection limit reached")
	}

	client := NewClient(h, conn, forumID, userID)
	m[client] = struct{}{}
	h.totalConns++
	observability.WebSocketConnectionsTotal.Inc()
	return client, nil
}

// UnregisterClient removes the client and closes its send queue.
func (h *ForumHub) UnregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	m, ok := h.conns[client.ForumID]
	if !ok {
		return
	}
	if _, exists := m[client]; !exists {
		return
	}
	delete(m, client)
	h.totalConns--
	if len(m) == 0 {
		delete(h.conns, client.ForumID)
	}
	close(client.Send)
	observability.WebSocketConnectionsTotal.Dec()
}

// Broadcast sends message to every client watching forumID.
func (h *ForumHub) Broadcast(forumID uint, message string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	clients, ok := h.conns[forumID]
	if !ok {
		return
	}
	data := []byte(message)
	for c := range clients {
		c.TrySend(data)
	}
	observability.WebSocketEventsTotal.WithLabelValues("forum_activity").Inc()
}

// ClientCount returns the number of clients watching forumID.
func (h *ForumHub) ClientCount(forumID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[forumID])
}

// StartWiring connects the Notifier to this hub: it subscribes to the
// forum activity pattern and forwards messages to the matching forum.
func (h *ForumHub) StartWiring(ctx context.Context, n *Notifier) error {
	return n.StartForumSubscriber(ctx, func(channel, payload string) {
		var forumID uint
		if _, err := fmt.Sscanf(channel, "forum:%d:activity", &forumID); err != nil {
			middleware.Logger.Warn("invalid forum activity channel", zap.String("channel", channel))
			return
		}
		h.Broadcast(forumID, payload)
	})
}

// Shutdown gracefully closes all websocket connections
func (h *ForumHub) Shutdown(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true

	for forumID, clients := range h.conns {
		for client := range clients {
			close(client.Send)
			if client.Conn == nil {
				continue
			}
			if err := client.Conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "Server shutting down")); err != nil {
				middleware.Logger.Debug("failed to write close message", zap.Uint("forum_id", forumID), zap.Error(err))
			}
			_ = client.Conn.Close()
		}
	}
	observability.WebSocketConnectionsTotal.Sub(float64(h.totalConns))
	h.conns = make(map[uint]map[*Client]struct{})
	h.totalConns = 0
	return nil
}
