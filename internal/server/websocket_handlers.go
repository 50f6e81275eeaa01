package server

import (
	"agora/internal/middleware"
	"agora/internal/models"
	"agora/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
)

const localFeedForumID = "feedForumID"

// ForumFeedUpgrade accepts only websocket upgrades for an existing forum.
// A bearer token is optional and only identifies the reader.
func (s *Server) ForumFeedUpgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return models.RespondWithError(c, fiber.ErrUpgradeRequired)
	}

	forumID, err := parseID(c, "id", service.ResourceForum)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	if _, err := s.deps.Repos.Forums.GetByID(c.UserContext(), forumID); err != nil {
		return models.RespondWithError(c, err)
	}

	if token, err := middleware.BearerToken(c); err == nil {
		if user, claims, err := s.authService.Authenticate(c.UserContext(), token); err == nil {
			attachUser(c, user, claims)
		}
	}
	c.Locals(localFeedForumID, forumID)
	return c.Next()
}

// ForumFeedHandler streams the forum's activity events to the client.
func (s *Server) ForumFeedHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		forumID, _ := conn.Locals(localFeedForumID).(uint)
		userID, _ := conn.Locals(localUserID).(uint)

		client, err := s.hub.Register(forumID, userID, conn)
		if err != nil {
			middleware.Logger.Warn("forum feed registration rejected",
				zap.Uint("forum_id", forumID),
				zap.Error(err),
			)
			_ = conn.WriteJSON(fiber.Map{"error": err.Error()})
			_ = conn.Close()
			return
		}

		middleware.Logger.Debug("forum feed connected", zap.Uint("forum_id", forumID), zap.Uint("user_id", userID))
		go client.WritePump()
		client.ReadPump()
	})
}
