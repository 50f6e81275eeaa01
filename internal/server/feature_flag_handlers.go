package server

import "github.com/gofiber/fiber/v2"

// GetFeatureFlags returns the configured feature flags and their state for
// the current user.
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	return respondOK(c, fiber.StatusOK, fiber.Map{
		"raw":       s.featureFlags.Raw(),
		"evaluated": s.featureFlags.Snapshot(currentUserID(c)),
	})
}
