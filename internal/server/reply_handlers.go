package server

import (
	"agora/internal/models"
	"agora/internal/service"

	"github.com/gofiber/fiber/v2"
)

// ListReplies handles GET /api/posts/:id/replies
func (s *Server) ListReplies(c *fiber.Ctx) error {
	postID, err := parseID(c, "id", service.ResourcePost)
	if err != nil {
		return models.RespondWithError(c, err)
	}

	replies, err := s.replyService.ListReplies(c.UserContext(), postID, currentUserID(c))
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return respondOK(c, fiber.StatusOK, replies)
}

// AddReply handles POST /api/posts/:id/replies
// @Summary Reply to a post
// @Tags replies
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Param request body service.ReplyInput true "Reply"
// @Success 201 {object} object{success=bool,data=models.Reply}
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/replies [post]
func (s *Server) AddReply(c *fiber.Ctx) error {
	postID, err := parseID(c, "id", service.ResourcePost)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	var in service.ReplyInput
	if err := bindJSON(c, &in); err != nil {
		return models.RespondWithError(c, err)
	}

	reply, err := s.replyService.AddReply(c.UserContext(), postID, currentUser(c), in)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return respondOK(c, fiber.StatusCreated, reply)
}

// UpdateReply handles PUT /api/posts/:postId/replies/:replyId
// @Summary Edit a reply
// @Tags replies
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param postId path int true "Post ID"
// @Param replyId path string true "Reply ID"
// @Param request body service.ReplyInput true "Reply"
// @Success 200 {object} object{success=bool,data=models.Reply}
// @Router /posts/{postId}/replies/{replyId} [put]
func (s *Server) UpdateReply(c *fiber.Ctx) error {
	postID, err := parseID(c, "postId", service.ResourcePost)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	var in service.ReplyInput
	if err := bindJSON(c, &in); err != nil {
		return models.RespondWithError(c, err)
	}

	reply, err := s.replyService.UpdateReply(c.UserContext(), postID, c.Params("replyId"), currentUser(c), in)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return respondOK(c, fiber.StatusOK, reply)
}

// DeleteReply handles DELETE /api/posts/:postId/replies/:replyId
// @Summary Delete a reply
// @Tags replies
// @Produce json
// @Security BearerAuth
// @Param postId path int true "Post ID"
// @Param replyId path string true "Reply ID"
// @Success 200 {object} object{success=bool,message=string}
// @Router /posts/{postId}/replies/{replyId} [delete]
func (s *Server) DeleteReply(c *fiber.Ctx) error {
	postID, err := parseID(c, "postId", service.ResourcePost)
	if err != nil {
		return models.RespondWithError(c, err)
	}

	if err := s.replyService.DeleteReply(c.UserContext(), postID, c.Params("replyId"), currentUser(c)); err != nil {
		return models.RespondWithError(c, err)
	}
	return respondMessage(c, "Reply deleted")
}

// LikeReply handles POST /api/posts/:postId/replies/:replyId/like
func (s *Server) LikeReply(c *fiber.Ctx) error {
	postID, err := parseID(c, "postId", service.ResourcePost)
	if err != nil {
		return models.RespondWithError(c, err)
	}

	res, err := s.replyService.ToggleLike(c.UserContext(), postID, c.Params("replyId"), currentUser(c))
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return respondOK(c, fiber.StatusOK, res)
}
