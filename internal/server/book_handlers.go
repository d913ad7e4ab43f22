package server

import (
	"libris/internal/service"

	"github.com/gofiber/fiber/v2"
)

// ListBooks handles GET /api/books/
// @Summary List books
// @Description Newest first, ten per page
// @Tags books
// @Produce json
// @Param page query int false "Page number"
// @Success 200 {object} pageResponse{results=[]bookResponse}
// @Failure 404 {object} models.ErrorResponse
// @Router /books/ [get]
func (s *Server) ListBooks(c *fiber.Ctx) error {
	number, page, err := s.parsePage(c)
	if err != nil {
		return nil
	}
	books, total, err := s.bookService.List(c.UserContext(), page)
	if err != nil {
		return s.respondError(c, err)
	}
	return s.paginate(c, number, total, s.presentBooks(c, books))
}

// RecentBooks handles GET /api/books/recent/
// @Summary Recent books
// @Description The five newest books, unpaginated
// @Tags books
// @Produce json
// @Success 200 {array} bookResponse
// @Router /books/recent/ [get]
func (s *Server) RecentBooks(c *fiber.Ctx) error {
	books, err := s.bookService.Recent(c.UserContext())
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(s.presentBooks(c, books))
}

// GetBook handles GET /api/books/:id/
// @Summary Get book
// @Tags books
// @Produce json
// @Param id path int true "Book ID"
// @Success 200 {object} bookResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /books/{id}/ [get]
func (s *Server) GetBook(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	book, err := s.bookService.Get(c.UserContext(), id)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(s.presentBook(c, book))
}

// CreateBook handles POST /api/books/
// @Summary Create book
// @Description The caller becomes the book's author
// @Tags books
// @Accept json,x-www-form-urlencoded,mpfd
// @Produce json
// @Security TokenAuth
// @Param title formData string true "Title"
// @Param year_published formData int true "Year published"
// @Param pages formData int true "Page count"
// @Param isbn formData string false "13-digit ISBN"
// @Param cover_image formData file false "Cover image"
// @Success 201 {object} bookResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /books/ [post]
func (s *Server) CreateBook(c *fiber.Ctx) error {
	in, err := bookInput(c)
	if err != nil {
		return s.respondError(c, err)
	}
	book, err := s.bookService.Create(c.UserContext(), actorFrom(c), in)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(s.presentBook(c, book))
}

// UpdateBook handles PUT /api/books/:id/
// @Summary Replace book
// @Tags books
// @Accept json,x-www-form-urlencoded,mpfd
// @Produce json
// @Security TokenAuth
// @Param id path int true "Book ID"
// @Success 200 {object} bookResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /books/{id}/ [put]
func (s *Server) UpdateBook(c *fiber.Ctx) error {
	return s.updateBook(c, false)
}

// PatchBook handles PATCH /api/books/:id/
// @Summary Update book fields
// @Tags books
// @Accept json,x-www-form-urlencoded,mpfd
// @Produce json
// @Security TokenAuth
// @Param id path int true "Book ID"
// @Success 200 {object} bookResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /books/{id}/ [patch]
func (s *Server) PatchBook(c *fiber.Ctx) error {
	return s.updateBook(c, true)
}

func (s *Server) updateBook(c *fiber.Ctx, partial bool) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	in, err := bookInput(c)
	if err != nil {
		return s.respondError(c, err)
	}
	book, err := s.bookService.Update(c.UserContext(), actorFrom(c), id, in, partial)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(s.presentBook(c, book))
}

// DeleteBook handles DELETE /api/books/:id/
// @Summary Delete book
// @Tags books
// @Security TokenAuth
// @Param id path int true "Book ID"
// @Success 204
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /books/{id}/ [delete]
func (s *Server) DeleteBook(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.bookService.Delete(c.UserContext(), actorFrom(c), id); err != nil {
		return s.respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// FavoriteBook handles POST /api/books/:id/favorite/
// @Summary Favorite book
// @Description Acknowledges the request; nothing is stored
// @Tags books
// @Produce json
// @Security TokenAuth
// @Param id path int true "Book ID"
// @Success 200 {object} object{status=string,book=int}
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /books/{id}/favorite/ [post]
func (s *Server) FavoriteBook(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	book, err := s.bookService.Favorite(c.UserContext(), actorFrom(c), id)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(fiber.Map{"status": "favorited", "book": book.ID})
}

func bookInput(c *fiber.Ctx) (service.BookInput, error) {
	p, err := bindPayload(c)
	if err != nil {
		return service.BookInput{}, err
	}
	in := service.BookInput{
		Title:         p.String("title"),
		Writer:        p.String("writer"),
		Description:   p.String("description"),
		ISBN:          p.String("isbn"),
		YearPublished: p.Int("year_published"),
		Pages:         p.Int("pages"),
		Price:         p.Int64("price"),
		AgeLimit:      p.Int("age_limit"),
		GenreIDs:      p.UintList("genres"),
		IsFree:        p.Bool("is_free"),
		IsPublic:      p.Bool("is_public"),
		Cover:         p.File("cover_image"),
	}
	return in, p.Err()
}
