package server

import (
	"context"

	"libris/internal/models"

	"github.com/gofiber/fiber/v2"
)

// Staff access is enforced by StaffRequired on every admin route; the
// service re-checks it.

// PromoteUser handles POST /api/admin/users/:id/promote/
// @Summary Grant staff access
// @Tags admin
// @Produce json
// @Security TokenAuth
// @Param id path int true "User ID"
// @Success 200 {object} userResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /admin/users/{id}/promote/ [post]
func (s *Server) PromoteUser(c *fiber.Ctx) error {
	return s.adminUserAction(c, func(ctx context.Context, actor models.Actor, id uint) (*models.User, error) {
		return s.userService.SetRole(ctx, actor, id, true)
	})
}

// DemoteUser handles POST /api/admin/users/:id/demote/
// @Summary Revoke staff access
// @Tags admin
// @Produce json
// @Security TokenAuth
// @Param id path int true "User ID"
// @Success 200 {object} userResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /admin/users/{id}/demote/ [post]
func (s *Server) DemoteUser(c *fiber.Ctx) error {
	return s.adminUserAction(c, func(ctx context.Context, actor models.Actor, id uint) (*models.User, error) {
		return s.userService.SetRole(ctx, actor, id, false)
	})
}

// ActivateUser handles POST /api/admin/users/:id/activate/
// @Summary Allow login
// @Tags admin
// @Produce json
// @Security TokenAuth
// @Param id path int true "User ID"
// @Success 200 {object} userResponse
// @Router /admin/users/{id}/activate/ [post]
func (s *Server) ActivateUser(c *fiber.Ctx) error {
	return s.adminUserAction(c, func(ctx context.Context, actor models.Actor, id uint) (*models.User, error) {
		return s.userService.SetActive(ctx, actor, id, true)
	})
}

// DeactivateUser handles POST /api/admin/users/:id/deactivate/
// @Summary Block login and revoke the API token
// @Tags admin
// @Produce json
// @Security TokenAuth
// @Param id path int true "User ID"
// @Success 200 {object} userResponse
// @Router /admin/users/{id}/deactivate/ [post]
func (s *Server) DeactivateUser(c *fiber.Ctx) error {
	return s.adminUserAction(c, func(ctx context.Context, actor models.Actor, id uint) (*models.User, error) {
		return s.userService.SetActive(ctx, actor, id, false)
	})
}

func (s *Server) adminUserAction(c *fiber.Ctx, action func(context.Context, models.Actor, uint) (*models.User, error)) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	user, err := action(c.UserContext(), actorFrom(c), id)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(s.presentUser(c, user))
}

// GetFeatureFlags returns configured feature flags and evaluated state for current user.
// @Summary Feature flags
// @Tags admin
// @Produce json
// @Security TokenAuth
// @Success 200 {object} object{raw=map[string]string,evaluated=map[string]bool}
// @Router /admin/feature-flags/ [get]
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"raw":       s.featureFlags.Raw(),
		"evaluated": s.featureFlags.Snapshot(actorFrom(c).ID()),
	})
}

// SetFeatureFlag handles PUT /api/admin/feature-flags/:name/
// @Summary Override a feature flag until restart
// @Tags admin
// @Accept json
// @Produce json
// @Security TokenAuth
// @Param name path string true "Flag name"
// @Param request body object{value=string} true "on, off or N%"
// @Success 200 {object} object{raw=map[string]string,evaluated=map[string]bool}
// @Failure 400 {object} models.ErrorResponse
// @Router /admin/feature-flags/{name}/ [put]
func (s *Server) SetFeatureFlag(c *fiber.Ctx) error {
	p, err := bindPayload(c)
	if err != nil {
		return s.respondError(c, err)
	}
	value := p.String("value")
	if value == nil {
		return s.respondError(c, models.NewFieldError("value", "This field is required."))
	}
	if err := p.Err(); err != nil {
		return s.respondError(c, err)
	}
	if err := s.featureFlags.Set(c.Params("name"), *value); err != nil {
		return s.respondError(c, models.NewFieldError("value", err.Error()))
	}
	return s.GetFeatureFlags(c)
}
