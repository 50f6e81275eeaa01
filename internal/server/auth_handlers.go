package server

import (
	"agora/internal/models"
	"agora/internal/service"

	"github.com/gofiber/fiber/v2"
)

// Register handles POST /api/auth/register
// @Summary Register
// @Description Create an account and return an access token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body service.RegisterInput true "Registration"
// @Success 201 {object} object{success=bool,data=service.AuthResult}
// @Failure 400 {object} models.ErrorResponse
// @Router /auth/register [post]
func (s *Server) Register(c *fiber.Ctx) error {
	var in service.RegisterInput
	if err := bindJSON(c, &in); err != nil {
		return models.RespondWithError(c, err)
	}

	res, err := s.authService.Register(c.UserContext(), in)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return respondOK(c, fiber.StatusCreated, res)
}

// Login handles POST /api/auth/login
// @Summary Login
// @Description Authenticate with email and password
// @Tags auth
// @Accept json
// @Produce json
// @Param request body service.LoginInput true "Credentials"
// @Success 200 {object} object{success=bool,data=service.AuthResult}
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/login [post]
func (s *Server) Login(c *fiber.Ctx) error {
	var in service.LoginInput
	if err := bindJSON(c, &in); err != nil {
		return models.RespondWithError(c, err)
	}

	res, err := s.authService.Login(c.UserContext(), in)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return respondOK(c, fiber.StatusOK, res)
}

// Me handles GET /api/auth/me
// @Summary Current user
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{success=bool,data=models.User}
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/me [get]
func (s *Server) Me(c *fiber.Ctx) error {
	return respondOK(c, fiber.StatusOK, currentUser(c))
}

// Logout handles POST /api/auth/logout. The token stays revoked until it
// would have expired.
// @Summary Logout
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{success=bool,message=string}
// @Router /auth/logout [post]
func (s *Server) Logout(c *fiber.Ctx) error {
	if err := s.authService.Logout(c.UserContext(), currentClaims(c)); err != nil {
		return models.RespondWithError(c, err)
	}
	return respondMessage(c, "Logged out")
}

// Refresh handles POST /api/auth/refresh
// @Summary Refresh token
// @Description Issue a new token and revoke the one used for this request
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{success=bool,data=service.AuthResult}
// @Router /auth/refresh [post]
func (s *Server) Refresh(c *fiber.Ctx) error {
	res, err := s.authService.Refresh(c.UserContext(), currentUser(c), currentClaims(c))
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return respondOK(c, fiber.StatusOK, res)
}
