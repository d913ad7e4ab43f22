package server

import (
	"errors"
	"net/url"
	"strings"

	"libris/internal/models"
	"libris/internal/service"

	"github.com/gofiber/fiber/v2"
)

// Server-rendered pages. Forms post back to their own URL; failures
// re-render the form with the submitted values and per-field messages.

const homeListSize = 10

// render executes a template inside the shared layout. Errors and Values
// are always present so templates can index them unconditionally.
func (s *Server) render(c *fiber.Ctx, name string, data fiber.Map) error {
	if data == nil {
		data = fiber.Map{}
	}
	if _, ok := data["Errors"]; !ok {
		data["Errors"] = map[string][]string{}
	}
	if _, ok := data["Values"]; !ok {
		data["Values"] = map[string]string{}
	}
	data["CurrentUser"] = actorFrom(c).User
	data["CSRFToken"] = csrfTokenFrom(c)
	return c.Render(name, data, "layout")
}

// formFailure splits err into a page-level message and field messages.
// Errors that are not validation or credential failures are returned.
func formFailure(err error) (string, map[string][]string, error) {
	var appErr *models.AppError
	if !errors.As(err, &appErr) {
		return "", nil, err
	}
	switch appErr.Code {
	case models.CodeValidation:
		if len(appErr.Fields) > 0 {
			return "", appErr.Fields, nil
		}
		return appErr.Message, map[string][]string{}, nil
	case models.CodeUnauthorized, models.CodeForbidden:
		return appErr.Message, map[string][]string{}, nil
	}
	return "", nil, err
}

func formValues(p *payload, keys ...string) map[string]string {
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		out[k] = p.Text(k)
	}
	return out
}

// safeNext accepts only same-site relative paths.
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.Contains(next, `\`) {
		return pathHome
	}
	if u, err := url.Parse(next); err != nil || u.Host != "" || u.Scheme != "" {
		return pathHome
	}
	return next
}

// HomePage handles GET /. Any failure is answered as plain text.
func (s *Server) HomePage(c *fiber.Ctx) error {
	fail := func(err error) error {
		c.Status(fiber.StatusInternalServerError).Type("txt")
		return c.SendString("Error: " + err.Error())
	}

	ctx := c.UserContext()
	news, _, err := s.newsService.List(ctx, models.Actor{}, service.Page{Limit: homeListSize})
	if err != nil {
		return fail(err)
	}
	items, _, err := s.itemService.List(ctx, service.Page{Limit: homeListSize})
	if err != nil {
		return fail(err)
	}

	if err := s.render(c, "home", fiber.Map{
		"News":  s.presentNewsList(c, news),
		"Items": presentItems(items),
	}); err != nil {
		return fail(err)
	}
	return nil
}

// ItemFormPage handles GET /post/
func (s *Server) ItemFormPage(c *fiber.Ctx) error {
	return s.render(c, "item_form", nil)
}

// SubmitItemForm handles POST /post/
func (s *Server) SubmitItemForm(c *fiber.Ctx) error {
	p, err := bindPayload(c)
	if err != nil {
		return s.respondError(c, err)
	}
	values := formValues(p, "name", "description")
	in := service.ItemInput{Name: p.String("name"), Description: p.String("description")}

	if _, err := s.itemService.Submit(c.UserContext(), actorFrom(c), in); err != nil {
		message, fields, err := formFailure(err)
		if err != nil {
			return s.respondError(c, err)
		}
		return s.render(c, "item_form", fiber.Map{"Error": message, "Errors": fields, "Values": values})
	}
	return c.Redirect(pathHome, fiber.StatusFound)
}

// RegisterPage handles GET /users/register/
func (s *Server) RegisterPage(c *fiber.Ctx) error {
	return s.render(c, "register", nil)
}

// SubmitRegisterForm handles POST /users/register/. A new account is
// logged in straight away.
func (s *Server) SubmitRegisterForm(c *fiber.Ctx) error {
	p, err := bindPayload(c)
	if err != nil {
		return s.respondError(c, err)
	}
	values := formValues(p, "email", "username", "first_name", "last_name", "birth_date")
	in := s.registerInput(p)

	reject := func(err error) error {
		message, fields, err := formFailure(err)
		if err != nil {
			return s.respondError(c, err)
		}
		return s.render(c, "register", fiber.Map{"Error": message, "Errors": fields, "Values": values})
	}
	if err := p.Err(); err != nil {
		return reject(err)
	}

	user, _, err := s.authService.Register(c.UserContext(), in)
	if err != nil {
		return reject(err)
	}
	if err := s.startSession(c, user); err != nil {
		return s.respondError(c, err)
	}
	return c.Redirect(pathHome, fiber.StatusFound)
}

// LoginPage handles GET /users/login/
func (s *Server) LoginPage(c *fiber.Ctx) error {
	if actorFrom(c).Authenticated() {
		return c.Redirect(pathHome, fiber.StatusFound)
	}
	return s.render(c, "login", fiber.Map{"Next": c.Query("next")})
}

// SubmitLoginForm handles POST /users/login/
func (s *Server) SubmitLoginForm(c *fiber.Ctx) error {
	if actorFrom(c).Authenticated() {
		return c.Redirect(pathHome, fiber.StatusFound)
	}
	p, err := bindPayload(c)
	if err != nil {
		return s.respondError(c, err)
	}
	next := c.Query("next")
	if next == "" {
		next = p.Text("next")
	}

	user, err := s.authService.SignIn(c.UserContext(), p.Text("email"), p.Text("password"))
	if err != nil {
		message, fields, err := formFailure(err)
		if err != nil {
			return s.respondError(c, err)
		}
		return s.render(c, "login", fiber.Map{
			"Error":  message,
			"Errors": fields,
			"Values": formValues(p, "email"),
			"Next":   next,
		})
	}
	if err := s.startSession(c, user); err != nil {
		return s.respondError(c, err)
	}
	return c.Redirect(safeNext(next), fiber.StatusFound)
}

// ProfilePage handles GET /users/profile/
func (s *Server) ProfilePage(c *fiber.Ctx) error {
	return s.render(c, "profile", fiber.Map{"Profile": s.presentUser(c, actorFrom(c).User)})
}

// SubmitProfileForm handles POST /users/profile/ as a partial update of the
// caller's own record.
func (s *Server) SubmitProfileForm(c *fiber.Ctx) error {
	p, err := bindPayload(c)
	if err != nil {
		return s.respondError(c, err)
	}
	in := userInput(p)

	reject := func(err error) error {
		message, fields, err := formFailure(err)
		if err != nil {
			return s.respondError(c, err)
		}
		return s.render(c, "profile", fiber.Map{
			"Profile": s.presentUser(c, actorFrom(c).User),
			"Error":   message,
			"Errors":  fields,
		})
	}
	if err := p.Err(); err != nil {
		return reject(err)
	}
	if _, err := s.userService.Update(c.UserContext(), actorFrom(c), service.MeRef, in, true); err != nil {
		return reject(err)
	}
	return c.Redirect(pathProfile, fiber.StatusFound)
}

// LogoutPage handles GET /users/logout/. The API token is left alone.
func (s *Server) LogoutPage(c *fiber.Ctx) error {
	s.authService.EndSession(c.UserContext(), c.Cookies(s.config.SessionCookieName))
	s.clearSessionCookie(c)
	return c.Redirect(pathHome, fiber.StatusFound)
}
