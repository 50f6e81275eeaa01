package server

import (
	"agora/internal/models"
	"agora/internal/repository"
	"agora/internal/service"

	"github.com/gofiber/fiber/v2"
)

// ListForums handles GET /api/forums
// @Summary List forums
// @Tags forums
// @Produce json
// @Param category query string false "Category filter"
// @Param sort query string false "Sort, e.g. -updatedAt or title"
// @Param page query int false "Page" default(1)
// @Param limit query int false "Page size" default(10)
// @Success 200 {object} object{success=bool,data=[]models.Forum,pagination=PageInfo}
// @Failure 400 {object} models.ErrorResponse
// @Router /forums [get]
func (s *Server) ListForums(c *fiber.Ctx) error {
	p, err := parsePagination(c, 10)
	if err != nil {
		return models.RespondWithError(c, err)
	}

	forums, total, err := s.forumService.ListForums(c.UserContext(), repository.ForumFilter{
		Category: models.ForumCategory(c.Query("category")),
		Order:    c.Query("sort"),
		Page:     p.Repo(),
	})
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return respondList(c, forums, p, total)
}

// GetForum handles GET /api/forums/:id
// @Summary Get forum
// @Tags forums
// @Produce json
// @Param id path int true "Forum ID"
// @Success 200 {object} object{success=bool,data=models.Forum}
// @Failure 404 {object} models.ErrorResponse
// @Router /forums/{id} [get]
func (s *Server) GetForum(c *fiber.Ctx) error {
	id, err := parseID(c, "id", service.ResourceForum)
	if err != nil {
		return models.RespondWithError(c, err)
	}

	forum, err := s.forumService.GetForum(c.UserContext(), id)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return respondOK(c, fiber.StatusOK, forum)
}

// CreateForum handles POST /api/forums
// @Summary Create forum
// @Tags forums
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.CreateForumInput true "Forum"
// @Success 201 {object} object{success=bool,data=models.Forum}
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /forums [post]
func (s *Server) CreateForum(c *fiber.Ctx) error {
	var in service.CreateForumInput
	if err := bindJSON(c, &in); err != nil {
		return models.RespondWithError(c, err)
	}

	forum, err := s.forumService.CreateForum(c.UserContext(), currentUser(c), in)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return respondOK(c, fiber.StatusCreated, forum)
}

// UpdateForum handles PUT /api/forums/:id
// @Summary Update forum
// @Tags forums
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Forum ID"
// @Param request body service.UpdateForumInput true "Changes"
// @Success 200 {object} object{success=bool,data=models.Forum}
// @Router /forums/{id} [put]
func (s *Server) UpdateForum(c *fiber.Ctx) error {
	id, err := parseID(c, "id", service.ResourceForum)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	var in service.UpdateForumInput
	if err := bindJSON(c, &in); err != nil {
		return models.RespondWithError(c, err)
	}

	forum, err := s.forumService.UpdateForum(c.UserContext(), id, in)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return respondOK(c, fiber.StatusOK, forum)
}

// DeleteForum handles DELETE /api/forums/:id. Posts and replies of the
// forum are deleted with it.
// @Summary Delete forum
// @Tags forums
// @Produce json
// @Security BearerAuth
// @Param id path int true "Forum ID"
// @Success 200 {object} object{success=bool,message=string}
// @Router /forums/{id} [delete]
func (s *Server) DeleteForum(c *fiber.Ctx) error {
	id, err := parseID(c, "id", service.ResourceForum)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	if err := s.forumService.DeleteForum(c.UserContext(), id); err != nil {
		return models.RespondWithError(c, err)
	}
	return respondMessage(c, "Forum deleted")
}

// AddRule handles POST /api/forums/:id/rules
// @Summary Add forum rule
// @Tags forums
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Forum ID"
// @Param request body service.RuleInput true "Rule"
// @Success 201 {object} object{success=bool,data=models.ForumRule}
// @Router /forums/{id}/rules [post]
func (s *Server) AddRule(c *fiber.Ctx) error {
	id, err := parseID(c, "id", service.ResourceForum)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	var in service.RuleInput
	if err := bindJSON(c, &in); err != nil {
		return models.RespondWithError(c, err)
	}

	rule, err := s.forumService.AddRule(c.UserContext(), id, in)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return respondOK(c, fiber.StatusCreated, rule)
}

// UpdateRule handles PUT /api/forums/:id/rules/:ruleId
func (s *Server) UpdateRule(c *fiber.Ctx) error {
	id, err := parseID(c, "id", service.ResourceForum)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	ruleID, err := service.ParseID(service.ResourceForum, c.Params("ruleId"))
	if err != nil {
		return models.RespondWithError(c, models.NewNotFoundError("Rule", c.Params("ruleId")))
	}
	var in service.RuleInput
	if err := bindJSON(c, &in); err != nil {
		return models.RespondWithError(c, err)
	}

	rule, err := s.forumService.UpdateRule(c.UserContext(), id, ruleID, in)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return respondOK(c, fiber.StatusOK, rule)
}

// DeleteRule handles DELETE /api/forums/:id/rules/:ruleId
func (s *Server) DeleteRule(c *fiber.Ctx) error {
	id, err := parseID(c, "id", service.ResourceForum)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	ruleID, err := service.ParseID(service.ResourceForum, c.Params("ruleId"))
	if err != nil {
		return models.RespondWithError(c, models.NewNotFoundError("Rule", c.Params("ruleId")))
	}

	if err := s.forumService.DeleteRule(c.UserContext(), id, ruleID); err != nil {
		return models.RespondWithError(c, err)
	}
	return respondMessage(c, "Rule deleted")
}

// UpdateSettings handles PUT /api/forums/:id/settings
// @Summary Update forum settings
// @Tags forums
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Forum ID"
// @Param request body service.SettingsInput true "Settings"
// @Success 200 {object} object{success=bool,data=models.ForumSettings}
// @Router /forums/{id}/settings [put]
func (s *Server) UpdateSettings(c *fiber.Ctx) error {
	id, err := parseID(c, "id", service.ResourceForum)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	var in service.SettingsInput
	if err := bindJSON(c, &in); err != nil {
		return models.RespondWithError(c, err)
	}

	settings, err := s.forumService.UpdateSettings(c.UserContext(), id, in)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return respondOK(c, fiber.StatusOK, settings)
}

type moderatorRequest struct {
	UserID uint `json:"userId"`
}

// AddModerator handles POST /api/forums/:id/moderators
// @Summary Add forum moderator
// @Tags forums
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Forum ID"
// @Param request body moderatorRequest true "Moderator"
// @Success 200 {object} object{success=bool,data=models.Forum}
// @Router /forums/{id}/moderators [post]
func (s *Server) AddModerator(c *fiber.Ctx) error {
	id, err := parseID(c, "id", service.ResourceForum)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	var req moderatorRequest
	if err := bindJSON(c, &req); err != nil {
		return models.RespondWithError(c, err)
	}
	if req.UserID == 0 {
		return models.RespondWithError(c, models.NewValidationError("userId is required"))
	}

	forum, err := s.forumService.AddModerator(c.UserContext(), id, req.UserID)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return respondOK(c, fiber.StatusOK, forum)
}

// RemoveModerator handles DELETE /api/forums/:id/moderators/:userId
func (s *Server) RemoveModerator(c *fiber.Ctx) error {
	id, err := parseID(c, "id", service.ResourceForum)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	userID, err := parseID(c, "userId", service.ResourceUser)
	if err != nil {
		return models.RespondWithError(c, err)
	}

	if err := s.forumService.RemoveModerator(c.UserContext(), id, userID); err != nil {
		return models.RespondWithError(c, err)
	}
	return respondMessage(c, "Moderator removed")
}

// ListBans handles GET /api/forums/:id/bans
func (s *Server) ListBans(c *fiber.Ctx) error {
	id, err := parseID(c, "id", service.ResourceForum)
	if err != nil {
		return models.RespondWithError(c, err)
	}

	bans, err := s.forumService.ListBans(c.UserContext(), id, currentUser(c))
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return respondOK(c, fiber.StatusOK, bans)
}

// BanUser handles POST /api/forums/:id/bans
// @Summary Ban a user from a forum
// @Tags forums
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Forum ID"
// @Param request body service.BanInput true "Ban"
// @Success 201 {object} object{success=bool,data=models.ForumBan}
// @Failure 403 {object} models.ErrorResponse
// @Router /forums/{id}/bans [post]
func (s *Server) BanUser(c *fiber.Ctx) error {
	id, err := parseID(c, "id", service.ResourceForum)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	var in service.BanInput
	if err := bindJSON(c, &in); err != nil {
		return models.RespondWithError(c, err)
	}

	ban, err := s.forumService.BanUser(c.UserContext(), id, currentUser(c), in)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return respondOK(c, fiber.StatusCreated, ban)
}

// UnbanUser handles DELETE /api/forums/:id/bans/:userId
func (s *Server) UnbanUser(c *fiber.Ctx) error {
	id, err := parseID(c, "id", service.ResourceForum)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	userID, err := parseID(c, "userId", service.ResourceUser)
	if err != nil {
		return models.RespondWithError(c, err)
	}

	if err := s.forumService.UnbanUser(c.UserContext(), id, currentUser(c), userID); err != nil {
		return models.RespondWithError(c, err)
	}
	return respondMessage(c, "User unbanned")
}

// ForumStats handles GET /api/forums/:id/stats
// @Summary Forum statistics
// @Tags forums
// @Produce json
// @Param id path int true "Forum ID"
// @Success 200 {object} object{success=bool,data=service.ForumStats}
// @Router /forums/{id}/stats [get]
func (s *Server) ForumStats(c *fiber.Ctx) error {
	id, err := parseID(c, "id", service.ResourceForum)
	if err != nil {
		return models.RespondWithError(c, err)
	}

	stats, err := s.forumService.Stats(c.UserContext(), id)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return respondOK(c, fiber.StatusOK, stats)
}

// RecountForum handles POST /api/forums/:id/stats/recount
func (s *Server) RecountForum(c *fiber.Ctx) error {
	id, err := parseID(c, "id", service.ResourceForum)
	if err != nil {
		return models.RespondWithError(c, err)
	}

	forum, err := s.forumService.Recount(c.UserContext(), id)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return respondOK(c, fiber.StatusOK, forum)
}

// SearchForumPosts handles GET /api/forums/:id/search
// @Summary Search posts in a forum
// @Tags forums
// @Produce json
// @Param id path int true "Forum ID"
// @Param q query string true "Search text"
// @Param page query int false "Page" default(1)
// @Param limit query int false "Page size" default(20)
// @Success 200 {object} object{success=bool,data=[]models.Post,pagination=PageInfo}
// @Router /forums/{id}/search [get]
func (s *Server) SearchForumPosts(c *fiber.Ctx) error {
	id, err := parseID(c, "id", service.ResourceForum)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	p, err := parsePagination(c, 20)
	if err != nil {
		return models.RespondWithError(c, err)
	}

	posts, total, err := s.forumService.SearchPosts(c.UserContext(), id, currentUser(c), c.Query("q"), repository.PostFilter{
		Order:    c.Query("sort"),
		ViewerID: currentUserID(c),
		Page:     p.Repo(),
	})
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return respondList(c, posts, p, total)
}

// ListForumPosts handles GET /api/forums/:id/posts
// @Summary List posts in a forum
// @Tags forums
// @Produce json
// @Param id path int true "Forum ID"
// @Param sort query string false "Sort, e.g. -createdAt or -views"
// @Param page query int false "Page" default(1)
// @Param limit query int false "Page size" default(20)
// @Success 200 {object} object{success=bool,data=[]models.Post,pagination=PageInfo}
// @Router /forums/{id}/posts [get]
func (s *Server) ListForumPosts(c *fiber.Ctx) error {
	id, err := parseID(c, "id", service.ResourceForum)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	p, err := parsePagination(c, 20)
	if err != nil {
		return models.RespondWithError(c, err)
	}

	posts, total, err := s.forumService.ListPosts(c.UserContext(), id, currentUser(c), repository.PostFilter{
		Order:    c.Query("sort"),
		ViewerID: currentUserID(c),
		Page:     p.Repo(),
	})
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return respondList(c, posts, p, total)
}
