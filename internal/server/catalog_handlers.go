package server

import (
	"libris/internal/service"

	"github.com/gofiber/fiber/v2"
)

// Items and genres are public to read and writable by staff only.

// ListItems handles GET /api/items/
// @Summary List items
// @Tags items
// @Produce json
// @Param page query int false "Page number"
// @Success 200 {object} pageResponse{results=[]itemResponse}
// @Router /items/ [get]
func (s *Server) ListItems(c *fiber.Ctx) error {
	number, page, err := s.parsePage(c)
	if err != nil {
		return nil
	}
	items, total, err := s.itemService.List(c.UserContext(), page)
	if err != nil {
		return s.respondError(c, err)
	}
	return s.paginate(c, number, total, presentItems(items))
}

// GetItem handles GET /api/items/:id/
// @Summary Get item
// @Tags items
// @Produce json
// @Param id path int true "Item ID"
// @Success 200 {object} itemResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /items/{id}/ [get]
func (s *Server) GetItem(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	item, err := s.itemService.Get(c.UserContext(), id)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(presentItem(item))
}

// CreateItem handles POST /api/items/
// @Summary Create item
// @Tags items
// @Accept json,x-www-form-urlencoded
// @Produce json
// @Security TokenAuth
// @Param request body object{name=string,description=string} true "Item"
// @Success 201 {object} itemResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /items/ [post]
func (s *Server) CreateItem(c *fiber.Ctx) error {
	in, err := itemInput(c)
	if err != nil {
		return s.respondError(c, err)
	}
	item, err := s.itemService.Create(c.UserContext(), actorFrom(c), in)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(presentItem(item))
}

// UpdateItem handles PUT /api/items/:id/
// @Summary Replace item
// @Tags items
// @Accept json,x-www-form-urlencoded
// @Produce json
// @Security TokenAuth
// @Param id path int true "Item ID"
// @Success 200 {object} itemResponse
// @Router /items/{id}/ [put]
func (s *Server) UpdateItem(c *fiber.Ctx) error {
	return s.updateItem(c, false)
}

// PatchItem handles PATCH /api/items/:id/
// @Summary Update item fields
// @Tags items
// @Accept json,x-www-form-urlencoded
// @Produce json
// @Security TokenAuth
// @Param id path int true "Item ID"
// @Success 200 {object} itemResponse
// @Router /items/{id}/ [patch]
func (s *Server) PatchItem(c *fiber.Ctx) error {
	return s.updateItem(c, true)
}

func (s *Server) updateItem(c *fiber.Ctx, partial bool) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	in, err := itemInput(c)
	if err != nil {
		return s.respondError(c, err)
	}
	item, err := s.itemService.Update(c.UserContext(), actorFrom(c), id, in, partial)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(presentItem(item))
}

// DeleteItem handles DELETE /api/items/:id/
// @Summary Delete item
// @Tags items
// @Security TokenAuth
// @Param id path int true "Item ID"
// @Success 204
// @Router /items/{id}/ [delete]
func (s *Server) DeleteItem(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.itemService.Delete(c.UserContext(), actorFrom(c), id); err != nil {
		return s.respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func itemInput(c *fiber.Ctx) (service.ItemInput, error) {
	p, err := bindPayload(c)
	if err != nil {
		return service.ItemInput{}, err
	}
	in := service.ItemInput{
		Name:        p.String("name"),
		Description: p.String("description"),
	}
	return in, p.Err()
}

// ListGenres handles GET /api/genres/
// @Summary List genres
// @Tags genres
// @Produce json
// @Param page query int false "Page number"
// @Success 200 {object} pageResponse{results=[]genreResponse}
// @Router /genres/ [get]
func (s *Server) ListGenres(c *fiber.Ctx) error {
	number, page, err := s.parsePage(c)
	if err != nil {
		return nil
	}
	genres, total, err := s.genreService.List(c.UserContext(), page)
	if err != nil {
		return s.respondError(c, err)
	}
	return s.paginate(c, number, total, presentGenres(genres))
}

// GetGenre handles GET /api/genres/:id/
// @Summary Get genre
// @Tags genres
// @Produce json
// @Param id path int true "Genre ID"
// @Success 200 {object} genreResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /genres/{id}/ [get]
func (s *Server) GetGenre(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	genre, err := s.genreService.Get(c.UserContext(), id)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(presentGenre(genre))
}

// CreateGenre handles POST /api/genres/
// @Summary Create genre
// @Tags genres
// @Accept json,x-www-form-urlencoded
// @Produce json
// @Security TokenAuth
// @Param request body object{title=string} true "Genre"
// @Success 201 {object} genreResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /genres/ [post]
func (s *Server) CreateGenre(c *fiber.Ctx) error {
	in, err := genreInput(c)
	if err != nil {
		return s.respondError(c, err)
	}
	genre, err := s.genreService.Create(c.UserContext(), actorFrom(c), in)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(presentGenre(genre))
}

// UpdateGenre handles PUT /api/genres/:id/
// @Summary Replace genre
// @Tags genres
// @Accept json,x-www-form-urlencoded
// @Produce json
// @Security TokenAuth
// @Param id path int true "Genre ID"
// @Success 200 {object} genreResponse
// @Router /genres/{id}/ [put]
func (s *Server) UpdateGenre(c *fiber.Ctx) error {
	return s.updateGenre(c, false)
}

// PatchGenre handles PATCH /api/genres/:id/
// @Summary Update genre fields
// @Tags genres
// @Accept json,x-www-form-urlencoded
// @Produce json
// @Security TokenAuth
// @Param id path int true "Genre ID"
// @Success 200 {object} genreResponse
// @Router /genres/{id}/ [patch]
func (s *Server) PatchGenre(c *fiber.Ctx) error {
	return s.updateGenre(c, true)
}

func (s *Server) updateGenre(c *fiber.Ctx, partial bool) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	in, err := genreInput(c)
	if err != nil {
		return s.respondError(c, err)
	}
	genre, err := s.genreService.Update(c.UserContext(), actorFrom(c), id, in, partial)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(presentGenre(genre))
}

// DeleteGenre handles DELETE /api/genres/:id/
// @Summary Delete genre
// @Tags genres
// @Security TokenAuth
// @Param id path int true "Genre ID"
// @Success 204
// @Router /genres/{id}/ [delete]
func (s *Server) DeleteGenre(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.genreService.Delete(c.UserContext(), actorFrom(c), id); err != nil {
		return s.respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func genreInput(c *fiber.Ctx) (service.GenreInput, error) {
	p, err := bindPayload(c)
	if err != nil {
		return service.GenreInput{}, err
	}
	in := service.GenreInput{Title: p.String("title")}
	return in, p.Err()
}
