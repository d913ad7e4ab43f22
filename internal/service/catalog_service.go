package service

import (
	"context"
	"strings"

	"libris/internal/models"
	"libris/internal/permission"
	"libris/internal/repository"
	"libris/internal/validation"

	"gorm.io/gorm"
)

// ItemService manages ownerless items. Only staff may change them.
type ItemService struct {
	items repository.ItemRepository
}

func NewItemService(db *gorm.DB) *ItemService {
	return &ItemService{items: repository.NewItemRepository(db)}
}

// ItemInput is a create or update payload. Nil fields are absent.
type ItemInput struct {
	Name        *string
	Description *string
}

func (s *ItemService) List(ctx context.Context, page Page) ([]models.Item, int64, error) {
	return s.items.List(ctx, page)
}

func (s *ItemService) Get(ctx context.Context, id uint) (*models.Item, error) {
	return s.items.GetByID(ctx, id)
}

func (s *ItemService) Create(ctx context.Context, actor models.Actor, in ItemInput) (*models.Item, error) {
	if err := authorize(permission.CanCatalog(permission.Create, actor), actor); err != nil {
		return nil, err
	}
	item := &models.Item{}
	if err := applyItem(item, in, false); err != nil {
		return nil, err
	}
	if err := s.items.Create(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// Submit creates an item from the HTML form, which any signed-in user may use.
func (s *ItemService) Submit(ctx context.Context, actor models.Actor, in ItemInput) (*models.Item, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	item := &models.Item{}
	if err := applyItem(item, in, false); err != nil {
		return nil, err
	}
	if err := s.items.Create(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *ItemService) Update(ctx context.Context, actor models.Actor, id uint, in ItemInput, partial bool) (*models.Item, error) {
	action := permission.Update
	if partial {
		action = permission.PartialUpdate
	}
	if err := authorize(permission.CanCatalog(action, actor), actor); err != nil {
		return nil, err
	}
	item, err := s.items.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := applyItem(item, in, partial); err != nil {
		return nil, err
	}
	if err := s.items.Update(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *ItemService) Delete(ctx context.Context, actor models.Actor, id uint) error {
	if err := authorize(permission.CanCatalog(permission.Destroy, actor), actor); err != nil {
		return err
	}
	return s.items.Delete(ctx, id)
}

func applyItem(item *models.Item, in ItemInput, partial bool) error {
	fe := models.FieldErrors{}
	textField(fe, "name", in.Name, !partial, 255, validation.ValidateRequiredText)
	if err := fe.Err(); err != nil {
		return err
	}
	if in.Name != nil {
		item.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		item.Description = *in.Description
	}
	return nil
}

// GenreService manages genres. Only staff may change them.
type GenreService struct {
	genres repository.GenreRepository
}

func NewGenreService(db *gorm.DB) *GenreService {
	return &GenreService{genres: repository.NewGenreRepository(db)}
}

// GenreInput is a create or update payload.
type GenreInput struct {
	Title *string
}

func (s *GenreService) List(ctx context.Context, page Page) ([]models.Genre, int64, error) {
	return s.genres.List(ctx, page)
}

func (s *GenreService) Get(ctx context.Context, id uint) (*models.Genre, error) {
	return s.genres.GetByID(ctx, id)
}

func (s *GenreService) Create(ctx context.Context, actor models.Actor, in GenreInput) (*models.Genre, error) {
	if err := authorize(permission.CanCatalog(permission.Create, actor), actor); err != nil {
		return nil, err
	}
	genre := &models.Genre{}
	if err := s.apply(ctx, genre, in, false); err != nil {
		return nil, err
	}
	if err := s.genres.Create(ctx, genre); err != nil {
		return nil, err
	}
	return genre, nil
}

func (s *GenreService) Update(ctx context.Context, actor models.Actor, id uint, in GenreInput, partial bool) (*models.Genre, error) {
	action := permission.Update
	if partial {
		action = permission.PartialUpdate
	}
	if err := authorize(permission.CanCatalog(action, actor), actor); err != nil {
		return nil, err
	}
	genre, err := s.genres.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.apply(ctx, genre, in, partial); err != nil {
		return nil, err
	}
	if err := s.genres.Update(ctx, genre); err != nil {
		return nil, err
	}
	return genre, nil
}

func (s *GenreService) Delete(ctx context.Context, actor models.Actor, id uint) error {
	if err := authorize(permission.CanCatalog(permission.Destroy, actor), actor); err != nil {
		return err
	}
	return s.genres.Delete(ctx, id)
}

func (s *GenreService) apply(ctx context.Context, genre *models.Genre, in GenreInput, partial bool) error {
	fe := models.FieldErrors{}
	textField(fe, "title", in.Title, !partial, 100, validation.ValidateRequiredText)
	if err := fe.Err(); err != nil {
		return err
	}
	if in.Title == nil {
		return nil
	}
	title := strings.TrimSpace(*in.Title)
	taken, err := s.genres.TitleTaken(ctx, title, genre.ID)
	if err != nil {
		return err
	}
	if taken {
		return models.NewDuplicateError("Genre", "title")
	}
	genre.Title = title
	return nil
}
