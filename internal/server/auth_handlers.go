package server

import (
	"time"

	"libris/internal/models"
	"libris/internal/service"

	"github.com/gofiber/fiber/v2"
)

type authResponse struct {
	Message string       `json:"message"`
	User    userResponse `json:"user"`
	Token   string       `json:"token"`
}

// Register handles POST /api/register/
// @Summary Register
// @Description Create an account and its API token
// @Tags auth
// @Accept json,x-www-form-urlencoded,mpfd
// @Produce json
// @Param request body object{email=string,username=string,password=string,password_confirm=string,first_name=string,last_name=string,birth_date=string} true "Registration"
// @Success 201 {object} authResponse
// @Failure 400 {object} models.ErrorResponse
// @Router /register/ [post]
func (s *Server) Register(c *fiber.Ctx) error {
	p, err := bindPayload(c)
	if err != nil {
		return s.respondError(c, err)
	}
	in := s.registerInput(p)
	if err := p.Err(); err != nil {
		return s.respondError(c, err)
	}

	user, token, err := s.authService.Register(c.UserContext(), in)
	if err != nil {
		return s.respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(authResponse{
		Message: "Registration successful.",
		User:    s.presentUser(c, user),
		Token:   token.Key,
	})
}

func (s *Server) registerInput(p *payload) service.RegisterInput {
	in := service.RegisterInput{
		Email:           p.Text("email"),
		Username:        p.Text("username"),
		Password:        p.Text("password"),
		PasswordConfirm: p.Text("password_confirm"),
		FirstName:       p.Text("first_name"),
		LastName:        p.Text("last_name"),
	}
	if d := p.Date("birth_date"); d != nil {
		in.BirthDate = *d
	}
	return in
}

// Login handles POST /api/login/
// @Summary Log in
// @Description Verify email and password, return the API token and set the session cookie
// @Tags auth
// @Accept json,x-www-form-urlencoded
// @Produce json
// @Param request body object{email=string,password=string} true "Credentials"
// @Success 200 {object} authResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /login/ [post]
func (s *Server) Login(c *fiber.Ctx) error {
	p, err := bindPayload(c)
	if err != nil {
		return s.respondError(c, err)
	}
	email, password := p.Text("email"), p.Text("password")
	if err := p.Err(); err != nil {
		return s.respondError(c, err)
	}

	user, token, err := s.authService.Login(c.UserContext(), email, password)
	if err != nil {
		return s.respondError(c, err)
	}
	if err := s.startSession(c, user); err != nil {
		return s.respondError(c, err)
	}

	return c.JSON(authResponse{
		Message: "Login successful.",
		User:    s.presentUser(c, user),
		Token:   token.Key,
	})
}

// Logout handles POST /api/logout/
// @Summary Log out
// @Description Revoke the caller's API token and end the session
// @Tags auth
// @Produce json
// @Security TokenAuth
// @Success 200 {object} object{message=string}
// @Failure 401 {object} models.ErrorResponse
// @Router /logout/ [post]
func (s *Server) Logout(c *fiber.Ctx) error {
	if err := s.authService.Logout(c.UserContext(), actorFrom(c), c.Cookies(s.config.SessionCookieName)); err != nil {
		return s.respondError(c, err)
	}
	s.clearSessionCookie(c)
	return c.JSON(fiber.Map{"message": "Logout successful."})
}

// startSession issues a session for user and sets the cookie.
func (s *Server) startSession(c *fiber.Ctx, user *models.User) error {
	value, expires, err := s.authService.StartSession(c.UserContext(), user)
	if err != nil {
		return err
	}
	c.Cookie(&fiber.Cookie{
		Name:     s.config.SessionCookieName,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HTTPOnly: true,
		Secure:   s.config.SessionCookieSecure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return nil
}

func (s *Server) clearSessionCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     s.config.SessionCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HTTPOnly: true,
		Secure:   s.config.SessionCookieSecure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}
