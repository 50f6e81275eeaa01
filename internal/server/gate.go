package server

import (
	"context"
	"strconv"

	"agora/internal/auth"
	"agora/internal/middleware"
	"agora/internal/models"
	"agora/internal/observability"
	"agora/internal/service"

	"github.com/gofiber/fiber/v2"
)

const (
	localUserID = "userID"
	localUser   = "user"
	localClaims = "claims"
)

// Protect requires a valid bearer token whose user still exists. The user
// is attached to the request for later gates and handlers.
func (s *Server) Protect() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, err := middleware.BearerToken(c)
		if err != nil {
			return s.deny(c, "protect", models.NewUnauthorizedError("Not authorized to access this route"))
		}

		user, claims, err := s.authService.Authenticate(c.UserContext(), token)
		if err != nil {
			return s.deny(c, "protect", err)
		}

		attachUser(c, user, claims)
		return c.Next()
	}
}

// OptionalAuth attaches the user when a valid bearer token is present and
// otherwise lets the request through anonymously.
func (s *Server) OptionalAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, err := middleware.BearerToken(c)
		if err != nil {
			return c.Next()
		}
		if user, claims, err := s.authService.Authenticate(c.UserContext(), token); err == nil {
			attachUser(c, user, claims)
		}
		return c.Next()
	}
}

// Authorize allows only users holding one of roles. Must run after Protect.
func (s *Server) Authorize(roles ...models.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user := currentUser(c)
		if user == nil {
			return s.deny(c, "authorize", models.NewUnauthorizedError("Not authorized to access this route"))
		}
		if !user.HasRole(roles...) {
			return s.deny(c, "authorize", models.NewForbiddenError(
				"User role "+string(user.Role)+" is not authorized to access this route"))
		}
		return c.Next()
	}
}

// IsOwner allows only the owner of the resource named by the route param,
// or an admin. Must run after Protect.
func (s *Server) IsOwner(kind service.ResourceKind, param string) fiber.Handler {
	return s.isOwner(kind, "", param)
}

// IsOwnerWithin is IsOwner for a resource nested under parentParam. The
// resource only matches when it belongs to that parent.
func (s *Server) IsOwnerWithin(kind service.ResourceKind, parentParam, param string) fiber.Handler {
	return s.isOwner(kind, parentParam, param)
}

func (s *Server) isOwner(kind service.ResourceKind, parentParam, param string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ref := service.ResourceRef{ID: c.Params(param)}
		if parentParam != "" {
			ref.Parent = c.Params(parentParam)
		}
		if err := s.owners.Authorize(c.UserContext(), kind, ref, currentUser(c)); err != nil {
			return s.deny(c, "is_owner", err)
		}
		return c.Next()
	}
}

func (s *Server) deny(c *fiber.Ctx, stage string, err error) error {
	appErr := models.TranslateError(err)
	observability.GateDenials.WithLabelValues(stage, strconv.Itoa(appErr.Status())).Inc()
	return models.RespondWithError(c, appErr)
}

func attachUser(c *fiber.Ctx, user *models.User, claims *auth.Claims) {
	c.Locals(localUserID, user.ID)
	c.Locals(localUser, user)
	c.Locals(localClaims, claims)
	c.SetUserContext(context.WithValue(c.UserContext(), middleware.UserIDKey, user.ID))
}

// currentUser returns the authenticated user, or nil for anonymous requests.
func currentUser(c *fiber.Ctx) *models.User {
	user, _ := c.Locals(localUser).(*models.User)
	return user
}

func currentUserID(c *fiber.Ctx) uint {
	id, _ := c.Locals(localUserID).(uint)
	return id
}

func currentClaims(c *fiber.Ctx) *auth.Claims {
	claims, _ := c.Locals(localClaims).(*auth.Claims)
	return claims
}
