package server

import (
	"errors"
	"math"
	"net/url"
	"strconv"

	"libris/internal/middleware"
	"libris/internal/models"
	"libris/internal/service"

	"github.com/gofiber/fiber/v2"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper. Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

const msgInvalidPage = "Invalid page."

// mapServiceError maps an AppError code onto its HTTP status.
func mapServiceError(err error) int {
	var appErr *models.AppError
	if !errors.As(err, &appErr) {
		return fiber.StatusInternalServerError
	}
	switch appErr.Code {
	case models.CodeValidation:
		return fiber.StatusBadRequest
	case models.CodeUnauthorized:
		return fiber.StatusUnauthorized
	case models.CodeForbidden:
		return fiber.StatusForbidden
	case models.CodeNotFound:
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}

// respondError writes err with its mapped status. Server errors are logged
// and only carry details outside production.
func (s *Server) respondError(c *fiber.Ctx, err error) error {
	status := mapServiceError(err)
	if status >= fiber.StatusInternalServerError {
		middleware.Logger.ErrorContext(c.UserContext(), "request error",
			"method", c.Method(), "path", c.Path(), "error", err)
		var appErr *models.AppError
		if !errors.As(err, &appErr) {
			err = models.NewInternalError(err)
		}
	}
	return models.RespondWithError(c, status, err, !s.config.IsProduction())
}

// parseID extracts a route parameter by name as a positive uint.
// On failure it writes a 404 JSON response and returns errResponseWritten:
// a non-numeric id can never name a stored record.
func (s *Server) parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := strconv.ParseUint(c.Params(param), 10, 64)
	if err != nil || id == 0 {
		_ = models.RespondWithError(c, fiber.StatusNotFound,
			models.NewNotFoundError("Resource", c.Params(param)))
		return 0, errResponseWritten
	}
	return uint(id), nil
}

// pageResponse is the list envelope.
type pageResponse struct {
	Count    int64   `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  any     `json:"results"`
}

// parsePage reads ?page=N (1-based). A malformed number writes the 404
// invalid-page response and returns errResponseWritten.
func (s *Server) parsePage(c *fiber.Ctx) (int, service.Page, error) {
	size := max(s.config.PageSize, 1)
	number := 1
	if raw := c.Query("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		// The offset (n-1)*size must fit in an int.
		if err != nil || n < 1 || n-1 > math.MaxInt/size {
			_ = c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": msgInvalidPage})
			return 0, service.Page{}, errResponseWritten
		}
		number = n
	}
	return number, service.Page{Limit: size, Offset: (number - 1) * size}, nil
}

// paginate writes the envelope for page number out of total rows. Pages
// past the end, other than the first, are answered with 404.
func (s *Server) paginate(c *fiber.Ctx, number int, total int64, results any) error {
	size := int64(s.config.PageSize)
	if number > 1 && int64(number-1)*size >= total {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": msgInvalidPage})
	}

	resp := pageResponse{Count: total, Results: results}
	if int64(number)*size < total {
		resp.Next = pageLink(c, number+1)
	}
	if number > 1 {
		resp.Previous = pageLink(c, number-1)
	}
	return c.JSON(resp)
}

// pageLink rebuilds the current absolute URL pointing at page. The first
// page drops the parameter.
func pageLink(c *fiber.Ctx, page int) *string {
	query, _ := url.ParseQuery(string(c.Request().URI().QueryString()))
	if query == nil {
		query = url.Values{}
	}
	if page <= 1 {
		query.Del("page")
	} else {
		query.Set("page", strconv.Itoa(page))
	}

	link := c.BaseURL() + c.Path()
	if encoded := query.Encode(); encoded != "" {
		link += "?" + encoded
	}
	return &link
}

func actorFrom(c *fiber.Ctx) models.Actor {
	actor, _ := c.Locals(localActor).(models.Actor)
	return actor
}
