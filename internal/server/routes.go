package server

import (
	"strings"
	"time"

	"libris/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/swagger"
)

const (
	pathHome     = "/"
	pathLogin    = "/users/login/"
	pathProfile  = "/users/profile/"
	pathRegister = "/users/register/"
)

// route is one entry of the routing table: every endpoint the server
// answers is listed in routes, with its full middleware chain.
type route struct {
	method   string
	path     string
	handlers []fiber.Handler
}

func chain(handlers ...fiber.Handler) []fiber.Handler { return handlers }

// routes returns the table in match order: literal segments such as
// /recent/ precede the /:id/ patterns they would otherwise fall into.
func (s *Server) routes() []route {
	authn := s.Authenticate()
	authed := s.AuthRequired()
	staff := s.StaffRequired()
	forms := s.HTMLFormsEnabled()
	login := s.LoginRequired()
	csrfGuard := s.CSRFProtect()
	sessionCSRF := s.SessionCSRF(csrfGuard)

	registerLimit := middleware.RateLimit(s.redis, 5, 10*time.Minute, "register")
	loginLimit := middleware.RateLimit(s.redis, 10, 5*time.Minute, "login")

	return []route{
		// Operational
		{fiber.MethodGet, "/health/live", chain(s.LivenessCheck)},
		{fiber.MethodGet, "/health/ready", chain(s.ReadinessCheck)},
		{fiber.MethodGet, "/api/metrics/dashboard", chain(monitor.New(monitor.Config{Title: "Libris Metrics Dashboard"}))},
		{fiber.MethodGet, "/api/swagger/*", chain(swagger.HandlerDefault)},

		// Auth
		{fiber.MethodPost, "/api/register/", chain(registerLimit, authn, sessionCSRF, s.Register)},
		{fiber.MethodPost, "/api/login/", chain(loginLimit, authn, sessionCSRF, s.Login)},
		{fiber.MethodPost, "/api/logout/", chain(authn, sessionCSRF, authed, s.Logout)},

		// Books
		{fiber.MethodGet, "/api/books/", chain(authn, sessionCSRF, s.ListBooks)},
		{fiber.MethodPost, "/api/books/", chain(authn, sessionCSRF, s.CreateBook)},
		{fiber.MethodGet, "/api/books/recent/", chain(authn, sessionCSRF, s.RecentBooks)},
		{fiber.MethodPost, "/api/books/:id/favorite/", chain(authn, sessionCSRF, s.FavoriteBook)},
		{fiber.MethodGet, "/api/books/:id/", chain(authn, sessionCSRF, s.GetBook)},
		{fiber.MethodPut, "/api/books/:id/", chain(authn, sessionCSRF, s.UpdateBook)},
		{fiber.MethodPatch, "/api/books/:id/", chain(authn, sessionCSRF, s.PatchBook)},
		{fiber.MethodDelete, "/api/books/:id/", chain(authn, sessionCSRF, s.DeleteBook)},

		// News
		{fiber.MethodGet, "/api/news/", chain(authn, sessionCSRF, s.ListNews)},
		{fiber.MethodPost, "/api/news/", chain(authn, sessionCSRF, s.CreateNews)},
		{fiber.MethodGet, "/api/news/:id/", chain(authn, sessionCSRF, s.GetNews)},
		{fiber.MethodPut, "/api/news/:id/", chain(authn, sessionCSRF, s.UpdateNews)},
		{fiber.MethodPatch, "/api/news/:id/", chain(authn, sessionCSRF, s.PatchNews)},
		{fiber.MethodDelete, "/api/news/:id/", chain(authn, sessionCSRF, s.DeleteNews)},

		// Items
		{fiber.MethodGet, "/api/items/", chain(authn, sessionCSRF, s.ListItems)},
		{fiber.MethodPost, "/api/items/", chain(authn, sessionCSRF, s.CreateItem)},
		{fiber.MethodGet, "/api/items/:id/", chain(authn, sessionCSRF, s.GetItem)},
		{fiber.MethodPut, "/api/items/:id/", chain(authn, sessionCSRF, s.UpdateItem)},
		{fiber.MethodPatch, "/api/items/:id/", chain(authn, sessionCSRF, s.PatchItem)},
		{fiber.MethodDelete, "/api/items/:id/", chain(authn, sessionCSRF, s.DeleteItem)},

		// Genres
		{fiber.MethodGet, "/api/genres/", chain(authn, sessionCSRF, s.ListGenres)},
		{fiber.MethodPost, "/api/genres/", chain(authn, sessionCSRF, s.CreateGenre)},
		{fiber.MethodGet, "/api/genres/:id/", chain(authn, sessionCSRF, s.GetGenre)},
		{fiber.MethodPut, "/api/genres/:id/", chain(authn, sessionCSRF, s.UpdateGenre)},
		{fiber.MethodPatch, "/api/genres/:id/", chain(authn, sessionCSRF, s.PatchGenre)},
		{fiber.MethodDelete, "/api/genres/:id/", chain(authn, sessionCSRF, s.DeleteGenre)},

		// Users
		{fiber.MethodGet, "/api/users/", chain(authn, sessionCSRF, s.ListUsers)},
		{fiber.MethodPost, "/api/users/", chain(authn, sessionCSRF, s.CreateUser)},
		{fiber.MethodGet, "/api/users/:ref/", chain(authn, sessionCSRF, s.GetUser)},
		{fiber.MethodPut, "/api/users/:ref/", chain(authn, sessionCSRF, s.UpdateUser)},
		{fiber.MethodPatch, "/api/users/:ref/", chain(authn, sessionCSRF, s.PatchUser)},
		{fiber.MethodDelete, "/api/users/:ref/", chain(authn, sessionCSRF, s.DeleteUser)},

		// Administration
		{fiber.MethodPost, "/api/admin/users/:id/promote/", chain(authn, sessionCSRF, staff, s.PromoteUser)},
		{fiber.MethodPost, "/api/admin/users/:id/demote/", chain(authn, sessionCSRF, staff, s.DemoteUser)},
		{fiber.MethodPost, "/api/admin/users/:id/activate/", chain(authn, sessionCSRF, staff, s.ActivateUser)},
		{fiber.MethodPost, "/api/admin/users/:id/deactivate/", chain(authn, sessionCSRF, staff, s.DeactivateUser)},
		{fiber.MethodGet, "/api/admin/feature-flags/", chain(authn, sessionCSRF, staff, s.GetFeatureFlags)},
		{fiber.MethodPut, "/api/admin/feature-flags/:name/", chain(authn, sessionCSRF, staff, s.SetFeatureFlag)},

		// Server-rendered pages
		{fiber.MethodGet, pathHome, chain(authn, forms, csrfGuard, s.HomePage)},
		{fiber.MethodGet, "/post/", chain(authn, forms, csrfGuard, login, s.ItemFormPage)},
		{fiber.MethodPost, "/post/", chain(authn, forms, csrfGuard, login, s.SubmitItemForm)},
		{fiber.MethodGet, pathRegister, chain(authn, forms, csrfGuard, s.RegisterPage)},
		{fiber.MethodPost, pathRegister, chain(registerLimit, authn, forms, csrfGuard, s.SubmitRegisterForm)},
		{fiber.MethodGet, pathLogin, chain(authn, forms, csrfGuard, s.LoginPage)},
		{fiber.MethodPost, pathLogin, chain(loginLimit, authn, forms, csrfGuard, s.SubmitLoginForm)},
		{fiber.MethodGet, pathProfile, chain(authn, forms, csrfGuard, login, s.ProfilePage)},
		{fiber.MethodPost, pathProfile, chain(authn, forms, csrfGuard, login, s.SubmitProfileForm)},
		{fiber.MethodGet, "/users/logout/", chain(authn, forms, csrfGuard, s.LogoutPage)},
	}
}

// SetupRoutes registers the route table, the Prometheus endpoint and the
// media file server.
func (s *Server) SetupRoutes(app *fiber.App) {
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	for _, r := range s.routes() {
		app.Add(r.method, r.path, r.handlers...)
	}

	// An absolute MEDIA_URL points at an external file host.
	if strings.HasPrefix(s.config.MediaURL, "/") {
		app.Static(strings.TrimSuffix(s.config.MediaURL, "/"), s.media.Root(), fiber.Static{
			ByteRange: true,
			MaxAge:    3600,
		})
	}
}
