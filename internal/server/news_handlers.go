package server

import (
	"libris/internal/service"

	"github.com/gofiber/fiber/v2"
)

// ListNews handles GET /api/news/
// @Summary List news
// @Description Anonymous callers see published news; users also see their own drafts; staff see everything
// @Tags news
// @Produce json
// @Param page query int false "Page number"
// @Success 200 {object} pageResponse{results=[]newsResponse}
// @Failure 404 {object} models.ErrorResponse
// @Router /news/ [get]
func (s *Server) ListNews(c *fiber.Ctx) error {
	number, page, err := s.parsePage(c)
	if err != nil {
		return nil
	}
	news, total, err := s.newsService.List(c.UserContext(), actorFrom(c), page)
	if err != nil {
		return s.respondError(c, err)
	}
	return s.paginate(c, number, total, s.presentNewsList(c, news))
}

// GetNews handles GET /api/news/:id/
// @Summary Get news
// @Tags news
// @Produce json
// @Param id path int true "News ID"
// @Success 200 {object} newsResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /news/{id}/ [get]
func (s *Server) GetNews(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	news, err := s.newsService.Get(c.UserContext(), actorFrom(c), id)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(s.presentNews(c, news))
}

// CreateNews handles POST /api/news/
// @Summary Create news
// @Tags news
// @Accept json,x-www-form-urlencoded,mpfd
// @Produce json
// @Security TokenAuth
// @Param title formData string true "Title"
// @Param content formData string true "Content"
// @Param is_published formData bool false "Published (default true)"
// @Param image formData file false "Image"
// @Success 201 {object} newsResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /news/ [post]
func (s *Server) CreateNews(c *fiber.Ctx) error {
	in, err := newsInput(c)
	if err != nil {
		return s.respondError(c, err)
	}
	news, err := s.newsService.Create(c.UserContext(), actorFrom(c), in)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(s.presentNews(c, news))
}

// UpdateNews handles PUT /api/news/:id/
// @Summary Replace news
// @Tags news
// @Accept json,x-www-form-urlencoded,mpfd
// @Produce json
// @Security TokenAuth
// @Param id path int true "News ID"
// @Success 200 {object} newsResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /news/{id}/ [put]
func (s *Server) UpdateNews(c *fiber.Ctx) error {
	return s.updateNews(c, false)
}

// PatchNews handles PATCH /api/news/:id/
// @Summary Update news fields
// @Tags news
// @Accept json,x-www-form-urlencoded,mpfd
// @Produce json
// @Security TokenAuth
// @Param id path int true "News ID"
// @Success 200 {object} newsResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /news/{id}/ [patch]
func (s *Server) PatchNews(c *fiber.Ctx) error {
	return s.updateNews(c, true)
}

func (s *Server) updateNews(c *fiber.Ctx, partial bool) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	in, err := newsInput(c)
	if err != nil {
		return s.respondError(c, err)
	}
	news, err := s.newsService.Update(c.UserContext(), actorFrom(c), id, in, partial)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(s.presentNews(c, news))
}

// DeleteNews handles DELETE /api/news/:id/
// @Summary Delete news
// @Tags news
// @Security TokenAuth
// @Param id path int true "News ID"
// @Success 204
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /news/{id}/ [delete]
func (s *Server) DeleteNews(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.newsService.Delete(c.UserContext(), actorFrom(c), id); err != nil {
		return s.respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func newsInput(c *fiber.Ctx) (service.NewsInput, error) {
	p, err := bindPayload(c)
	if err != nil {
		return service.NewsInput{}, err
	}
	in := service.NewsInput{
		Title:       p.String("title"),
		Content:     p.String("content"),
		IsPublished: p.Bool("is_published"),
		Image:       p.File("image"),
	}
	return in, p.Err()
}
