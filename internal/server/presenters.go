package server

import (
	"time"

	"libris/internal/models"

	"github.com/gofiber/fiber/v2"
)

// Response shapes. Stored media paths are echoed next to an absolute *_url
// built from the request origin; both are null when nothing is stored.

type userResponse struct {
	ID          uint       `json:"id"`
	Email       string     `json:"email"`
	Username    string     `json:"username"`
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	BirthDate   *string    `json:"birth_date"`
	Avatar      *string    `json:"avatar"`
	AvatarURL   *string    `json:"avatar_url"`
	PhoneNumber string     `json:"phone_number"`
	Address     string     `json:"address"`
	Bio         string     `json:"bio"`
	IsActive    bool       `json:"is_active"`
	IsStaff     bool       `json:"is_staff"`
	DateJoined  time.Time  `json:"date_joined"`
	LastLogin   *time.Time `json:"last_login"`
}

type bookResponse struct {
	ID             uint      `json:"id"`
	Title          string    `json:"title"`
	Author         uint      `json:"author"`
	AuthorUsername string    `json:"author_username"`
	Writer         string    `json:"writer"`
	Description    string    `json:"description"`
	ISBN           *string   `json:"isbn"`
	YearPublished  int       `json:"year_published"`
	Pages          int       `json:"pages"`
	CoverImage     *string   `json:"cover_image"`
	CoverImageURL  *string   `json:"cover_image_url"`
	Price          int64     `json:"price"`
	AgeLimit       int       `json:"age_limit"`
	Genres         []uint    `json:"genres"`
	IsFree         bool      `json:"is_free"`
	IsPublic       bool      `json:"is_public"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type newsResponse struct {
	ID             uint      `json:"id"`
	Title          string    `json:"title"`
	Content        string    `json:"content"`
	Author         uint      `json:"author"`
	AuthorUsername string    `json:"author_username"`
	AuthorEmail    string    `json:"author_email"`
	Image          *string   `json:"image"`
	ImageURL       *string   `json:"image_url"`
	IsPublished    bool      `json:"is_published"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type itemResponse struct {
	ID          uint      `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

type genreResponse struct {
	ID    uint   `json:"id"`
	Title string `json:"title"`
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (s *Server) mediaURL(c *fiber.Ctx, rel string) *string {
	return s.media.URL(c.BaseURL(), rel)
}

func (s *Server) presentUser(c *fiber.Ctx, u *models.User) userResponse {
	resp := userResponse{
		ID:          u.ID,
		Email:       u.Email,
		Username:    u.Username,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Avatar:      optional(u.Avatar),
		AvatarURL:   s.mediaURL(c, u.Avatar),
		PhoneNumber: u.PhoneNumber,
		Address:     u.Address,
		Bio:         u.Bio,
		IsActive:    u.IsActive,
		IsStaff:     u.IsStaff,
		DateJoined:  u.DateJoined,
		LastLogin:   u.LastLogin,
	}
	if u.BirthDate != nil {
		d := u.BirthDate.Format(time.DateOnly)
		resp.BirthDate = &d
	}
	return resp
}

func (s *Server) presentUsers(c *fiber.Ctx, users []models.User) []userResponse {
	out := make([]userResponse, 0, len(users))
	for i := range users {
		out = append(out, s.presentUser(c, &users[i]))
	}
	return out
}

func (s *Server) presentBook(c *fiber.Ctx, b *models.Book) bookResponse {
	resp := bookResponse{
		ID:            b.ID,
		Title:         b.Title,
		Author:        b.AuthorID,
		Writer:        b.Writer,
		Description:   b.Description,
		ISBN:          b.ISBN,
		YearPublished: b.YearPublished,
		Pages:         b.Pages,
		CoverImage:    optional(b.CoverImage),
		CoverImageURL: s.mediaURL(c, b.CoverImage),
		Price:         b.Price,
		AgeLimit:      b.AgeLimit,
		Genres:        make([]uint, 0, len(b.Genres)),
		IsFree:        b.IsFree,
		IsPublic:      b.IsPublic,
		CreatedAt:     b.CreatedAt,
		UpdatedAt:     b.UpdatedAt,
	}
	if b.Author != nil {
		resp.AuthorUsername = b.Author.Username
	}
	for _, g := range b.Genres {
		resp.Genres = append(resp.Genres, g.ID)
	}
	return resp
}

func (s *Server) presentBooks(c *fiber.Ctx, books []models.Book) []bookResponse {
	out := make([]bookResponse, 0, len(books))
	for i := range books {
		out = append(out, s.presentBook(c, &books[i]))
	}
	return out
}

func (s *Server) presentNews(c *fiber.Ctx, n *models.News) newsResponse {
	resp := newsResponse{
		ID:          n.ID,
		Title:       n.Title,
		Content:     n.Content,
		Author:      n.AuthorID,
		Image:       optional(n.Image),
		ImageURL:    s.mediaURL(c, n.Image),
		IsPublished: n.IsPublished,
		CreatedAt:   n.CreatedAt,
		UpdatedAt:   n.UpdatedAt,
	}
	if n.Author != nil {
		resp.AuthorUsername = n.Author.Username
		resp.AuthorEmail = n.Author.Email
	}
	return resp
}

func (s *Server) presentNewsList(c *fiber.Ctx, news []models.News) []newsResponse {
	out := make([]newsResponse, 0, len(news))
	for i := range news {
		out = append(out, s.presentNews(c, &news[i]))
	}
	return out
}

func presentItem(i *models.Item) itemResponse {
	return itemResponse{ID: i.ID, Name: i.Name, Description: i.Description, CreatedAt: i.CreatedAt}
}

func presentItems(items []models.Item) []itemResponse {
	out := make([]itemResponse, 0, len(items))
	for i := range items {
		out = append(out, presentItem(&items[i]))
	}
	return out
}

func presentGenre(g *models.Genre) genreResponse {
	return genreResponse{ID: g.ID, Title: g.Title}
}

func presentGenres(genres []models.Genre) []genreResponse {
	out := make([]genreResponse, 0, len(genres))
	for i := range genres {
		out = append(out, presentGenre(&genres[i]))
	}
	return out
}
