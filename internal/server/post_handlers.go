package server

import (
	"agora/internal/models"
	"agora/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreatePost handles POST /api/posts
// @Summary Create a post
// @Description Create a post in a forum. Poll posts carry a poll definition.
// @Tags posts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.CreatePostInput true "Post"
// @Success 201 {object} object{success=bool,data=models.Post}
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts [post]
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var in service.CreatePostInput
	if err := bindJSON(c, &in); err != nil {
		return models.RespondWithError(c, err)
	}

	post, err := s.postService.CreatePost(c.UserContext(), currentUser(c), in)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return respondOK(c, fiber.StatusCreated, post)
}

// GetPost handles GET /api/posts/:id. Every read counts as a view.
// @Summary Get a post
// @Tags posts
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} object{success=bool,data=models.Post}
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id} [get]
func (s *Server) GetPost(c *fiber.Ctx) error {
	id, err := parseID(c, "id", service.ResourcePost)
	if err != nil {
		return models.RespondWithError(c, err)
	}

	post, err := s.postService.GetPost(c.UserContext(), id, currentUser(c))
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return respondOK(c, fiber.StatusOK, post)
}

// UpdatePost handles PUT /api/posts/:id
// @Summary Update a post
// @Tags posts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Param request body service.UpdatePostInput true "Changes"
// @Success 200 {object} object{success=bool,data=models.Post}
// @Failure 403 {object} models.ErrorResponse
// @Router /posts/{id} [put]
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	id, err := parseID(c, "id", service.ResourcePost)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	var in service.UpdatePostInput
	if err := bindJSON(c, &in); err != nil {
		return models.RespondWithError(c, err)
	}

	post, err := s.postService.UpdatePost(c.UserContext(), id, currentUser(c), in)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return respondOK(c, fiber.StatusOK, post)
}

// DeletePost handles DELETE /api/posts/:id
// @Summary Delete a post
// @Tags posts
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 200 {object} object{success=bool,message=string}
// @Failure 403 {object} models.ErrorResponse
// @Router /posts/{id} [delete]
func (s *Server) DeletePost(c *fiber.Ctx) error {
	id, err := parseID(c, "id", service.ResourcePost)
	if err != nil {
		return models.RespondWithError(c, err)
	}

	if err := s.postService.DeletePost(c.UserContext(), id, currentUser(c)); err != nil {
		return models.RespondWithError(c, err)
	}
	return respondMessage(c, "Post deleted")
}

// SetPostStatus handles PUT /api/posts/:id/status
// @Summary Moderate a post
// @Tags posts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Param request body service.StatusInput true "Status"
// @Success 200 {object} object{success=bool,data=models.Post}
// @Router /posts/{id}/status [put]
func (s *Server) SetPostStatus(c *fiber.Ctx) error {
	id, err := parseID(c, "id", service.ResourcePost)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	var in service.StatusInput
	if err := bindJSON(c, &in); err != nil {
		return models.RespondWithError(c, err)
	}

	post, err := s.postService.SetStatus(c.UserContext(), id, currentUser(c), in)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return respondOK(c, fiber.StatusOK, post)
}

// LikePost handles POST /api/posts/:id/like
// @Summary Toggle post like
// @Tags posts
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 200 {object} object{success=bool,data=service.LikeResult}
// @Router /posts/{id}/like [post]
func (s *Server) LikePost(c *fiber.Ctx) error {
	id, err := parseID(c, "id", service.ResourcePost)
	if err != nil {
		return models.RespondWithError(c, err)
	}

	res, err := s.postService.ToggleLike(c.UserContext(), id, currentUser(c))
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return respondOK(c, fiber.StatusOK, res)
}

// GetPoll handles GET /api/posts/:id/poll
// @Summary Poll results
// @Tags polls
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} object{success=bool,data=models.Poll}
// @Router /posts/{id}/poll [get]
func (s *Server) GetPoll(c *fiber.Ctx) error {
	id, err := parseID(c, "id", service.ResourcePost)
	if err != nil {
		return models.RespondWithError(c, err)
	}

	poll, err := s.pollService.Results(c.UserContext(), id)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return respondOK(c, fiber.StatusOK, poll)
}

// VotePoll handles POST /api/posts/:id/poll/vote
// @Summary Vote in a poll
// @Tags polls
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Param request body service.VoteInput true "Options"
// @Success 200 {object} object{success=bool,data=models.Poll}
// @Failure 400 {object} models.ErrorResponse
// @Router /posts/{id}/poll/vote [post]
func (s *Server) VotePoll(c *fiber.Ctx) error {
	id, err := parseID(c, "id", service.ResourcePost)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	var in service.VoteInput
	if err := bindJSON(c, &in); err != nil {
		return models.RespondWithError(c, err)
	}

	poll, err := s.pollService.Vote(c.UserContext(), id, currentUser(c), in)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return respondOK(c, fiber.StatusOK, poll)
}
