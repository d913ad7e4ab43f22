package server

import (
	"libris/internal/service"

	"github.com/gofiber/fiber/v2"
)

// ListUsers handles GET /api/users/
// @Summary List users
// @Description Staff only
// @Tags users
// @Produce json
// @Security TokenAuth
// @Param page query int false "Page number"
// @Success 200 {object} pageResponse{results=[]userResponse}
// @Failure 401 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /users/ [get]
func (s *Server) ListUsers(c *fiber.Ctx) error {
	number, page, err := s.parsePage(c)
	if err != nil {
		return nil
	}
	users, total, err := s.userService.List(c.UserContext(), actorFrom(c), page)
	if err != nil {
		return s.respondError(c, err)
	}
	return s.paginate(c, number, total, s.presentUsers(c, users))
}

// GetUser handles GET /api/users/:ref/
// @Summary Get user
// @Description "me" addresses the caller; other ids are visible to staff only
// @Tags users
// @Produce json
// @Security TokenAuth
// @Param ref path string true "User ID or me"
// @Success 200 {object} userResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /users/{ref}/ [get]
func (s *Server) GetUser(c *fiber.Ctx) error {
	user, err := s.userService.Get(c.UserContext(), actorFrom(c), c.Params("ref"))
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(s.presentUser(c, user))
}

// CreateUser handles POST /api/users/
// @Summary Create user
// @Description Staff only; only superusers may create superusers
// @Tags users
// @Accept json,x-www-form-urlencoded
// @Produce json
// @Security TokenAuth
// @Param request body object{email=string,username=string,password=string,is_staff=bool} true "Account"
// @Success 201 {object} userResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /users/ [post]
func (s *Server) CreateUser(c *fiber.Ctx) error {
	p, err := bindPayload(c)
	if err != nil {
		return s.respondError(c, err)
	}
	in := service.AccountInput{
		Email:           p.Text("email"),
		Username:        p.Text("username"),
		Password:        p.Text("password"),
		PasswordConfirm: p.String("password_confirm"),
		FirstName:       p.Text("first_name"),
		LastName:        p.Text("last_name"),
		PhoneNumber:     p.Text("phone_number"),
	}
	if d := p.Date("birth_date"); d != nil {
		in.BirthDate = *d
	}
	if v := p.Bool("is_staff"); v != nil {
		in.IsStaff = *v
	}
	if v := p.Bool("is_superuser"); v != nil {
		in.IsSuperuser = *v
	}
	if err := p.Err(); err != nil {
		return s.respondError(c, err)
	}

	user, err := s.userService.Create(c.UserContext(), actorFrom(c), in)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(s.presentUser(c, user))
}

// UpdateUser handles PUT /api/users/:ref/
// @Summary Replace profile
// @Tags users
// @Accept json,x-www-form-urlencoded,mpfd
// @Produce json
// @Security TokenAuth
// @Param ref path string true "User ID or me"
// @Param avatar formData file false "Avatar"
// @Success 200 {object} userResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /users/{ref}/ [put]
func (s *Server) UpdateUser(c *fiber.Ctx) error {
	return s.updateUser(c, false)
}

// PatchUser handles PATCH /api/users/:ref/
// @Summary Update profile fields
// @Tags users
// @Accept json,x-www-form-urlencoded,mpfd
// @Produce json
// @Security TokenAuth
// @Param ref path string true "User ID or me"
// @Param avatar formData file false "Avatar"
// @Success 200 {object} userResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /users/{ref}/ [patch]
func (s *Server) PatchUser(c *fiber.Ctx) error {
	return s.updateUser(c, true)
}

func (s *Server) updateUser(c *fiber.Ctx, partial bool) error {
	p, err := bindPayload(c)
	if err != nil {
		return s.respondError(c, err)
	}
	in := userInput(p)
	if err := p.Err(); err != nil {
		return s.respondError(c, err)
	}
	user, err := s.userService.Update(c.UserContext(), actorFrom(c), c.Params("ref"), in, partial)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(s.presentUser(c, user))
}

// DeleteUser handles DELETE /api/users/:ref/
// @Summary Delete user
// @Description Staff only
// @Tags users
// @Security TokenAuth
// @Param ref path string true "User ID"
// @Success 204
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /users/{ref}/ [delete]
func (s *Server) DeleteUser(c *fiber.Ctx) error {
	if err := s.userService.Delete(c.UserContext(), actorFrom(c), c.Params("ref")); err != nil {
		return s.respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func userInput(p *payload) service.UserInput {
	return service.UserInput{
		Email:       p.String("email"),
		Username:    p.String("username"),
		FirstName:   p.String("first_name"),
		LastName:    p.String("last_name"),
		BirthDate:   p.Date("birth_date"),
		PhoneNumber: p.String("phone_number"),
		Address:     p.String("address"),
		Bio:         p.String("bio"),
		Avatar:      p.File("avatar"),
	}
}
