package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"comic-server/internal/model"
)

const bookCacheKeyPrefix = "book:"

// cachedBookRepository — декоратор BookRepository с read-through кэшем
// чтения книг в Redis. Записи инвалидируют кэш.
type cachedBookRepository struct {
	inner  BookRepository
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedBookRepository оборачивает репозиторий кэшем чтения.
func NewCachedBookRepository(inner BookRepository, client *redis.Client, ttl time.Duration, logger *zap.Logger) BookRepository {
	return &cachedBookRepository{
		inner:  inner,
		client: client,
		ttl:    ttl,
		logger: logger.Named("BookCache"),
	}
}

func bookCacheKey(id uuid.UUID) string {
	return bookCacheKeyPrefix + id.String()
}

// GetBook отдает книгу из кэша; при промахе читает из базы и кэширует.
// Ошибки Redis не фатальны: чтение продолжается из базы.
func (r *cachedBookRepository) GetBook(ctx context.Context, id uuid.UUID) (*model.Book, error) {
	key := bookCacheKey(id)

	payload, err := r.client.Get(ctx, key).Bytes()
	if err == nil {
		var book model.Book
		if err := json.Unmarshal(payload, &book); err == nil {
			r.logger.Debug("Book cache hit", zap.String("bookID", id.String()))
			return &book, nil
		}
		r.logger.Warn("Failed to decode cached book, falling through", zap.String("bookID", id.String()))
	} else if !errors.Is(err, redis.Nil) {
		r.logger.Warn("Book cache read failed", zap.String("bookID", id.String()), zap.Error(err))
	}

	book, err := r.inner.GetBook(ctx, id)
	if err != nil {
		return nil, err
	}

	if encoded, err := json.Marshal(book); err == nil {
		if err := r.client.Set(ctx, key, encoded, r.ttl).Err(); err != nil {
			r.logger.Warn("Book cache write failed", zap.String("bookID", id.String()), zap.Error(err))
		}
	}
	return book, nil
}

func (r *cachedBookRepository) invalidate(ctx context.Context, id uuid.UUID) {
	if err := r.client.Del(ctx, bookCacheKey(id)).Err(); err != nil {
		r.logger.Warn("Book cache invalidation failed", zap.String("bookID", id.String()), zap.Error(err))
	}
}

func (r *cachedBookRepository) CreateBook(ctx context.Context, book *model.Book) error {
	return r.inner.CreateBook(ctx, book)
}

func (r *cachedBookRepository) UpdateBookImages(ctx context.Context, bookID uuid.UUID, images []model.BookImageRef) error {
	if err := r.inner.UpdateBookImages(ctx, bookID, images); err != nil {
		return err
	}
	r.invalidate(ctx, bookID)
	return nil
}

func (r *cachedBookRepository) AddBookImage(ctx context.Context, image *model.BookImage) error {
	return r.inner.AddBookImage(ctx, image)
}

func (r *cachedBookRepository) ListBooks(ctx context.Context) ([]model.Book, error) {
	return r.inner.ListBooks(ctx)
}

func (r *cachedBookRepository) GetBookImages(ctx context.Context, bookID uuid.UUID) ([]model.BookImage, error) {
	return r.inner.GetBookImages(ctx, bookID)
}

func (r *cachedBookRepository) DeleteBook(ctx context.Context, id uuid.UUID) error {
	if err := r.inner.DeleteBook(ctx, id); err != nil {
		return err
	}
	r.invalidate(ctx, id)
	return nil
}
