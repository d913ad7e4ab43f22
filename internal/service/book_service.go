package service

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"libris/internal/models"
	"libris/internal/permission"
	"libris/internal/repository"
	"libris/internal/storage"
	"libris/internal/validation"

	"gorm.io/gorm"
)

// BookService manages the book catalogue.
type BookService struct {
	books  repository.BookRepository
	genres repository.GenreRepository
	media  *storage.Media
}

func NewBookService(db *gorm.DB, media *storage.Media) *BookService {
	return &BookService{
		books:  repository.NewBookRepository(db),
		genres: repository.NewGenreRepository(db),
		media:  media,
	}
}

// BookInput is a create or update payload. Nil fields are absent; an empty
// ISBN clears it.
type BookInput struct {
	Title         *string
	Writer        *string
	Description   *string
	ISBN          *string
	YearPublished *int
	Pages         *int
	Price         *int64
	AgeLimit      *int
	GenreIDs      *[]uint
	IsFree        *bool
	IsPublic      *bool
	Cover         *storage.Upload
}

func (s *BookService) List(ctx context.Context, page Page) ([]models.Book, int64, error) {
	return s.books.List(ctx, page)
}

func (s *BookService) Get(ctx context.Context, id uint) (*models.Book, error) {
	return s.books.GetByID(ctx, id)
}

// Recent returns the newest books, unpaginated.
func (s *BookService) Recent(ctx context.Context) ([]models.Book, error) {
	return s.books.Recent(ctx, RecentBooksLimit)
}

// Favorite acknowledges that the actor likes a book. Nothing is stored.
func (s *BookService) Favorite(ctx context.Context, actor models.Actor, id uint) (*models.Book, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	return s.books.GetByID(ctx, id)
}

func (s *BookService) Create(ctx context.Context, actor models.Actor, in BookInput) (*models.Book, error) {
	if err := authorize(permission.Can(permission.Create, actor, nil), actor); err != nil {
		return nil, err
	}

	book := &models.Book{AuthorID: actor.ID(), IsPublic: true}
	if err := s.apply(ctx, book, in, false); err != nil {
		return nil, err
	}
	if err := s.books.Create(ctx, book); err != nil {
		replaceImage(s.media, book.CoverImage, "")
		return nil, err
	}
	return s.books.GetByID(ctx, book.ID)
}

func (s *BookService) Update(ctx context.Context, actor models.Actor, id uint, in BookInput, partial bool) (*models.Book, error) {
	current, err := s.books.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	action := permission.Update
	if partial {
		action = permission.PartialUpdate
	}
	if err := authorize(permission.Can(action, actor, current), actor); err != nil {
		return nil, err
	}

	book := *current
	book.Author = nil
	if err := s.apply(ctx, &book, in, partial); err != nil {
		return nil, err
	}
	if err := s.books.Update(ctx, &book, in.GenreIDs != nil); err != nil {
		if book.CoverImage != current.CoverImage {
			replaceImage(s.media, book.CoverImage, "")
		}
		return nil, err
	}
	replaceImage(s.media, current.CoverImage, book.CoverImage)
	return s.books.GetByID(ctx, id)
}

func (s *BookService) Delete(ctx context.Context, actor models.Actor, id uint) error {
	book, err := s.books.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := authorize(permission.Can(permission.Destroy, actor, book), actor); err != nil {
		return err
	}
	if err := s.books.Delete(ctx, id); err != nil {
		return err
	}
	replaceImage(s.media, book.CoverImage, "")
	return nil
}

// apply validates in and copies it onto book. Required fields must be
// present unless partial is set.
func (s *BookService) apply(ctx context.Context, book *models.Book, in BookInput, partial bool) error {
	fe := models.FieldErrors{}

	textField(fe, "title", in.Title, !partial, 255, validation.ValidateRequiredText)
	textField(fe, "writer", in.Writer, false, 255, validation.ValidateMaxLength)

	if in.ISBN != nil {
		isbn := strings.TrimSpace(*in.ISBN)
		switch {
		case isbn == "":
		case validation.ValidateISBN(isbn) != nil:
			fe.Add("isbn", validation.ValidateISBN(isbn).Error())
		default:
			taken, err := s.books.ISBNTaken(ctx, isbn, book.ID)
			if err != nil {
				return err
			}
			if taken {
				fe.Add("isbn", models.NewDuplicateError("Book", "isbn").Fields["isbn"][0])
			}
		}
	}

	switch {
	case in.YearPublished != nil:
		if *in.YearPublished < 0 || *in.YearPublished > 9999 {
			fe.Add("year_published", "Ensure this value is between 0 and 9999.")
		}
	case !partial:
		fe.Add("year_published", msgRequired)
	}

	switch {
	case in.Pages != nil:
		if *in.Pages <= 0 {
			fe.Add("pages", "Ensure this value is greater than or equal to 1.")
		}
	case !partial:
		fe.Add("pages", msgRequired)
	}

	if in.Price != nil && *in.Price < 0 {
		fe.Add("price", "Ensure this value is greater than or equal to 0.")
	}
	if in.AgeLimit != nil {
		if err := validation.ValidateAgeLimit(*in.AgeLimit, models.AgeLimits); err != nil {
			fe.Add("age_limit", err.Error())
		}
	}

	var genres []models.Genre
	if in.GenreIDs != nil && len(*in.GenreIDs) > 0 {
		ids := slices.Compact(slices.Sorted(slices.Values(*in.GenreIDs)))
		found, err := s.genres.GetByIDs(ctx, ids)
		if err != nil {
			return err
		}
		for _, id := range ids {
			if !slices.ContainsFunc(found, func(g models.Genre) bool { return g.ID == id }) {
				fe.Add("genres", fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", id))
			}
		}
		genres = found
	}

	if err := fe.Err(); err != nil {
		return err
	}
	cover := storeImage(s.media, storage.BookCoversDir, "cover_image", in.Cover, fe)
	if err := fe.Err(); err != nil {
		return err
	}

	if in.Title != nil {
		book.Title = strings.TrimSpace(*in.Title)
	}
	if in.Writer != nil {
		book.Writer = strings.TrimSpace(*in.Writer)
	}
	if in.Description != nil {
		book.Description = *in.Description
	}
	if in.ISBN != nil {
		if isbn := strings.TrimSpace(*in.ISBN); isbn != "" {
			book.ISBN = &isbn
		} else {
			book.ISBN = nil
		}
	}
	if in.YearPublished != nil {
		book.YearPublished = *in.YearPublished
	}
	if in.Pages != nil {
		book.Pages = *in.Pages
	}
	if in.Price != nil {
		book.Price = *in.Price
	}
	if in.AgeLimit != nil {
		book.AgeLimit = *in.AgeLimit
	}
	if in.GenreIDs != nil {
		book.Genres = genres
	}
	if in.IsFree != nil {
		book.IsFree = *in.IsFree
	}
	if in.IsPublic != nil {
		book.IsPublic = *in.IsPublic
	}
	if book.IsFree {
		book.Price = 0
	}
	if cover != "" {
		book.CoverImage = cover
	}
	return nil
}
