package server

import (
	"agora/internal/models"
	"agora/internal/service"

	"github.com/gofiber/fiber/v2"
)

// ListUsers handles GET /api/users
// @Summary List users
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page" default(1)
// @Param limit query int false "Page size" default(20)
// @Success 200 {object} object{success=bool,data=[]models.User,pagination=PageInfo}
// @Router /users [get]
func (s *Server) ListUsers(c *fiber.Ctx) error {
	p, err := parsePagination(c, 20)
	if err != nil {
		return models.RespondWithError(c, err)
	}

	users, total, err := s.userService.ListUsers(c.UserContext(), p.Repo())
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return respondList(c, users, p, total)
}

// GetUser handles GET /api/users/:id
// @Summary Get a user profile
// @Tags users
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} object{success=bool,data=models.User}
// @Failure 404 {object} models.ErrorResponse
// @Router /users/{id} [get]
func (s *Server) GetUser(c *fiber.Ctx) error {
	id, err := parseID(c, "id", service.ResourceUser)
	if err != nil {
		return models.RespondWithError(c, err)
	}

	user, err := s.userService.GetUser(c.UserContext(), id)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return respondOK(c, fiber.StatusOK, user)
}

// UpdateProfile handles PUT /api/users/profile
// @Summary Update own profile
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.UpdateProfileInput true "Changes"
// @Success 200 {object} object{success=bool,data=models.User}
// @Router /users/profile [put]
func (s *Server) UpdateProfile(c *fiber.Ctx) error {
	var in service.UpdateProfileInput
	if err := bindJSON(c, &in); err != nil {
		return models.RespondWithError(c, err)
	}

	user, err := s.userService.UpdateProfile(c.UserContext(), currentUserID(c), in)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return respondOK(c, fiber.StatusOK, user)
}

// UpdatePreferences handles PUT /api/users/preferences
func (s *Server) UpdatePreferences(c *fiber.Ctx) error {
	var in service.PreferencesInput
	if err := bindJSON(c, &in); err != nil {
		return models.RespondWithError(c, err)
	}

	user, err := s.userService.UpdatePreferences(c.UserContext(), currentUserID(c), in)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return respondOK(c, fiber.StatusOK, user)
}

// DeleteUser handles DELETE /api/users/:id
func (s *Server) DeleteUser(c *fiber.Ctx) error {
	id, err := parseID(c, "id", service.ResourceUser)
	if err != nil {
		return models.RespondWithError(c, err)
	}

	if err := s.userService.DeleteUser(c.UserContext(), id); err != nil {
		return models.RespondWithError(c, err)
	}
	return respondMessage(c, "User deleted")
}

// UserPosts handles GET /api/users/:id/posts
func (s *Server) UserPosts(c *fiber.Ctx) error {
	id, err := parseID(c, "id", service.ResourceUser)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	p, err := parsePagination(c, 20)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	if _, err := s.userService.GetUser(c.UserContext(), id); err != nil {
		return models.RespondWithError(c, err)
	}

	posts, total, err := s.postService.ListByAuthor(c.UserContext(), id, currentUserID(c), p.Repo())
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return respondList(c, posts, p, total)
}

// FollowedForums handles GET /api/users/me/followed-forums
func (s *Server) FollowedForums(c *fiber.Ctx) error {
	forums, err := s.userService.FollowedForums(c.UserContext(), currentUserID(c))
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return respondOK(c, fiber.StatusOK, forums)
}

// ToggleFollow handles POST /api/users/forums/:forumId/follow
// @Summary Follow or unfollow a forum
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param forumId path int true "Forum ID"
// @Success 200 {object} object{success=bool,data=service.FollowResult}
// @Router /users/forums/{forumId}/follow [post]
func (s *Server) ToggleFollow(c *fiber.Ctx) error {
	forumID, err := parseID(c, "forumId", service.ResourceForum)
	if err != nil {
		return models.RespondWithError(c, err)
	}

	res, err := s.userService.ToggleFollow(c.UserContext(), currentUserID(c), forumID)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return respondOK(c, fiber.StatusOK, res)
}

// UserStats handles GET /api/users/:id/stats
func (s *Server) UserStats(c *fiber.Ctx) error {
	id, err := parseID(c, "id", service.ResourceUser)
	if err != nil {
		return models.RespondWithError(c, err)
	}

	stats, err := s.userService.Stats(c.UserContext(), id)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return respondOK(c, fiber.StatusOK, stats)
}

// UserReputation handles GET /api/users/:id/reputation
func (s *Server) UserReputation(c *fiber.Ctx) error {
	id, err := parseID(c, "id", service.ResourceUser)
	if err != nil {
		return models.RespondWithError(c, err)
	}

	rep, err := s.userService.Reputation(c.UserContext(), id)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return respondOK(c, fiber.StatusOK, rep)
}

// SetUserRole handles PUT /api/users/:id/role
// @Summary Change a user's role
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Param request body service.RoleInput true "Role"
// @Success 200 {object} object{success=bool,data=models.User}
// @Router /users/{id}/role [put]
func (s *Server) SetUserRole(c *fiber.Ctx) error {
	id, err := parseID(c, "id", service.ResourceUser)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	var in service.RoleInput
	if err := bindJSON(c, &in); err != nil {
		return models.RespondWithError(c, err)
	}

	user, err := s.userService.SetRole(c.UserContext(), currentUser(c), id, in)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return respondOK(c, fiber.StatusOK, user)
}
