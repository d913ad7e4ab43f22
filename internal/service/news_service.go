package service

import (
	"context"
	"strings"

	"libris/internal/models"
	"libris/internal/permission"
	"libris/internal/repository"
	"libris/internal/storage"
	"libris/internal/validation"

	"gorm.io/gorm"
)

// NewsService manages news posts. Drafts are only visible to their author
// and staff; to everyone else they do not exist.
type NewsService struct {
	news  repository.NewsRepository
	media *storage.Media
}

func NewNewsService(db *gorm.DB, media *storage.Media) *NewsService {
	return &NewsService{news: repository.NewNewsRepository(db), media: media}
}

// NewsInput is a create or update payload. Nil fields are absent.
type NewsInput struct {
	Title       *string
	Content     *string
	IsPublished *bool
	Image       *storage.Upload
}

func visibilityFor(actor models.Actor) repository.NewsVisibility {
	return repository.NewsVisibility{Everything: actor.IsStaff(), ViewerID: actor.ID()}
}

func (s *NewsService) List(ctx context.Context, actor models.Actor, page Page) ([]models.News, int64, error) {
	return s.news.List(ctx, visibilityFor(actor), page)
}

func (s *NewsService) Get(ctx context.Context, actor models.Actor, id uint) (*models.News, error) {
	return s.news.GetVisible(ctx, id, visibilityFor(actor))
}

func (s *NewsService) Create(ctx context.Context, actor models.Actor, in NewsInput) (*models.News, error) {
	if err := authorize(permission.Can(permission.Create, actor, nil), actor); err != nil {
		return nil, err
	}

	news := &models.News{AuthorID: actor.ID(), IsPublished: true}
	if err := s.apply(news, in, false); err != nil {
		return nil, err
	}
	if err := s.news.Create(ctx, news); err != nil {
		replaceImage(s.media, news.Image, "")
		return nil, err
	}
	return s.news.GetVisible(ctx, news.ID, visibilityFor(actor))
}

func (s *NewsService) Update(ctx context.Context, actor models.Actor, id uint, in NewsInput, partial bool) (*models.News, error) {
	current, err := s.news.GetVisible(ctx, id, visibilityFor(actor))
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

	news := *current
	news.Author = nil
	if err := s.apply(&news, in, partial); err != nil {
		return nil, err
	}
	if err := s.news.Update(ctx, &news); err != nil {
		if news.Image != current.Image {
			replaceImage(s.media, news.Image, "")
		}
		return nil, err
	}
	replaceImage(s.media, current.Image, news.Image)
	return s.news.GetVisible(ctx, id, repository.NewsVisibility{Everything: true})
}

func (s *NewsService) Delete(ctx context.Context, actor models.Actor, id uint) error {
	news, err := s.news.GetVisible(ctx, id, visibilityFor(actor))
	if err != nil {
		return err
	}
	if err := authorize(permission.Can(permission.Destroy, actor, news), actor); err != nil {
		return err
	}
	if err := s.news.Delete(ctx, id); err != nil {
		return err
	}
	replaceImage(s.media, news.Image, "")
	return nil
}

func (s *NewsService) apply(news *models.News, in NewsInput, partial bool) error {
	fe := models.FieldErrors{}
	textField(fe, "title", in.Title, !partial, 255, validation.ValidateRequiredText)
	textField(fe, "content", in.Content, !partial, 0, validation.ValidateRequiredText)
	if err := fe.Err(); err != nil {
		return err
	}

	image := storeImage(s.media, storage.NewsImagesDir, "image", in.Image, fe)
	if err := fe.Err(); err != nil {
		return err
	}

	if in.Title != nil {
		news.Title = strings.TrimSpace(*in.Title)
	}
	if in.Content != nil {
		news.Content = *in.Content
	}
	if in.IsPublished != nil {
		news.IsPublished = *in.IsPublished
	}
	if image != "" {
		news.Image = image
	}
	return nil
}
