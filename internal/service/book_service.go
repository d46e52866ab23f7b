// Package service содержит персистентный шлюз книг.
package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"comic-server/internal/model"
	"comic-server/internal/repository"
)

var booksSaved = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "comic_books_saved_total",
		Help: "Total number of complete books saved, partitioned by outcome.",
	},
	[]string{"outcome"},
)

// ImageStore загружает изображение и возвращает его публичный URL.
type ImageStore interface {
	SaveBase64(ctx context.Context, dir, fileName, imageBase64 string) (string, error)
}

// BookService — персистентный шлюз: сохраняет собранную книгу целиком
// и отдает сохраненные книги.
type BookService struct {
	repo   repository.BookRepository
	store  ImageStore
	logger *zap.Logger
}

// NewBookService создает шлюз книг.
func NewBookService(repo repository.BookRepository, store ImageStore, logger *zap.Logger) *BookService {
	return &BookService{
		repo:   repo,
		store:  store,
		logger: logger.Named("BookService"),
	}
}

var fileNameSanitizer = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// SaveCompleteBook сохраняет книгу за четыре шага: создание записи книги,
// загрузка каждого изображения, строка book_images на изображение,
// обновление jsonb-списка изображений книги.
//
// Сбой загрузки отдельного изображения не прерывает сохранение: вместо URL
// хранилища в книгу записывается inline data-URL с содержимым изображения.
func (s *BookService) SaveCompleteBook(ctx context.Context, title, storyText string, images []model.GeneratedImage, progress int, status model.BookStatus) (uuid.UUID, error) {
	book := &model.Book{
		ID:           uuid.New(),
		Title:        title,
		StoryContent: storyText,
		Images:       []model.BookImageRef{},
		Metadata: map[string]any{
			"total_images": len(images),
			"ai_generated": true,
		},
		Progress: progress,
		Status:   status,
	}

	log := s.logger.With(zap.String("bookID", book.ID.String()), zap.String("title", title))
	log.Info("Saving complete book", zap.Int("images", len(images)))

	if err := s.repo.CreateBook(ctx, book); err != nil {
		booksSaved.WithLabelValues("error").Inc()
		return uuid.Nil, fmt.Errorf("%w: %v", model.ErrPersistence, err)
	}

	refs := make([]model.BookImageRef, 0, len(images))
	for _, img := range images {
		refs = append(refs, s.storeImage(ctx, log, book.ID, img))
	}

	if err := s.repo.UpdateBookImages(ctx, book.ID, refs); err != nil {
		// Книга уже создана и читаема; фиксируем сбой списка, но не откатываем.
		log.Error("Failed to update book image list", zap.Error(err))
	}

	booksSaved.WithLabelValues("success").Inc()
	log.Info("Book saved", zap.Int("images", len(refs)))
	return book.ID, nil
}

// storeImage загружает одно изображение и пишет его строку в book_images.
// При сбое загрузки возвращает ссылку с inline data-URL.
func (s *BookService) storeImage(ctx context.Context, log *zap.Logger, bookID uuid.UUID, img model.GeneratedImage) model.BookImageRef {
	fileName := fmt.Sprintf("image-%d-%s.png", img.ID, sanitizeFileName(img.Title))

	url, err := s.store.SaveBase64(ctx, bookID.String(), fileName, img.ImageBase64)
	if err != nil {
		log.Warn("Image upload failed, keeping inline content",
			zap.Int("imageID", img.ID), zap.Error(err))
		url = "data:image/png;base64," + img.ImageBase64
	}

	sizeBytes := int64(base64.StdEncoding.DecodedLen(len(img.ImageBase64)))
	row := &model.BookImage{
		BookID:      bookID,
		ImageURL:    url,
		ImageName:   fileName,
		Description: img.Prompt,
		Order:       img.ID,
		SizeBytes:   sizeBytes,
		ContentType: "image/png",
	}
	if err := s.repo.AddBookImage(ctx, row); err != nil {
		log.Warn("Failed to record book image row", zap.Int("imageID", img.ID), zap.Error(err))
	}

	return model.BookImageRef{
		ID:     img.ID,
		Title:  img.Title,
		URL:    url,
		Prompt: img.Prompt,
		Order:  img.ID,
	}
}

// GetBook возвращает книгу по ID.
func (s *BookService) GetBook(ctx context.Context, id uuid.UUID) (*model.Book, error) {
	return s.repo.GetBook(ctx, id)
}

// ListBooks возвращает все книги, новые сверху.
func (s *BookService) ListBooks(ctx context.Context) ([]model.Book, error) {
	return s.repo.ListBooks(ctx)
}

// GetBookImages возвращает строки изображений книги в порядке страниц.
func (s *BookService) GetBookImages(ctx context.Context, bookID uuid.UUID) ([]model.BookImage, error) {
	return s.repo.GetBookImages(ctx, bookID)
}

// DeleteBook удаляет книгу вместе с изображениями.
func (s *BookService) DeleteBook(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteBook(ctx, id)
}

func sanitizeFileName(name string) string {
	sanitized := fileNameSanitizer.ReplaceAllString(name, "-")
	return strings.Trim(strings.ToLower(sanitized), "-")
}
