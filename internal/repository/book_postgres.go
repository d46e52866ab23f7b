package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"comic-server/internal/model"
)

const (
	createBookQuery = `
		INSERT INTO books (
			id, title, story_content, images, metadata,
			book_progress, status, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		)
	`

	updateBookImagesQuery = `
		UPDATE books SET images = $2, updated_at = NOW() WHERE id = $1
	`

	addBookImageQuery = `
		INSERT INTO book_images (
			id, book_id, image_url, image_name, image_description,
			image_order, image_size, image_type, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		)
	`

	getBookQuery = `
		SELECT id, title, story_content, images, metadata,
		       book_progress, status, created_at, updated_at
		FROM books WHERE id = $1
	`

	listBooksQuery = `
		SELECT id, title, story_content, book_progress, status, created_at, updated_at
		FROM books ORDER BY created_at DESC
	`

	getBookImagesQuery = `
		SELECT id, book_id, image_url, image_name, image_description,
		       image_order, image_size, image_type, created_at
		FROM book_images WHERE book_id = $1 ORDER BY image_order
	`

	deleteBookQuery = `DELETE FROM books WHERE id = $1`
)

// pgBookRepository — реализация BookRepository поверх PostgreSQL.
type pgBookRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewPgBookRepository создает репозиторий книг поверх пула соединений.
func NewPgBookRepository(db *pgxpool.Pool, logger *zap.Logger) BookRepository {
	return &pgBookRepository{
		db:     db,
		logger: logger.Named("PgBookRepository"),
	}
}

// CreateBook создает новую книгу. Пустые images/metadata пишутся как пустые jsonb.
func (r *pgBookRepository) CreateBook(ctx context.Context, book *model.Book) error {
	if book.ID == uuid.Nil {
		book.ID = uuid.New()
	}
	now := time.Now().UTC()
	book.CreatedAt = now
	book.UpdatedAt = now

	logFields := []zap.Field{
		zap.String("bookID", book.ID.String()),
		zap.String("title", book.Title),
		zap.String("status", string(book.Status)),
	}
	r.logger.Debug("Creating new book", logFields...)

	imagesJSON, err := marshalImages(book.Images)
	if err != nil {
		return err
	}
	metadataJSON, err := json.Marshal(book.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal book metadata: %w", err)
	}

	_, err = r.db.Exec(ctx, createBookQuery,
		book.ID,
		book.Title,
		book.StoryContent,
		imagesJSON,
		metadataJSON,
		book.Progress,
		book.Status,
		book.CreatedAt,
		book.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create book", append(logFields, zap.Error(err))...)
		return fmt.Errorf("failed to create book: %w", err)
	}

	r.logger.Info("Book created successfully", logFields...)
	return nil
}

// UpdateBookImages заменяет jsonb-список изображений книги.
func (r *pgBookRepository) UpdateBookImages(ctx context.Context, bookID uuid.UUID, images []model.BookImageRef) error {
	logFields := []zap.Field{
		zap.String("bookID", bookID.String()),
		zap.Int("images", len(images)),
	}

	imagesJSON, err := marshalImages(images)
	if err != nil {
		return err
	}

	tag, err := r.db.Exec(ctx, updateBookImagesQuery, bookID, imagesJSON)
	if err != nil {
		r.logger.Error("Failed to update book images", append(logFields, zap.Error(err))...)
		return fmt.Errorf("failed to update book images: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}

	r.logger.Info("Book images updated", logFields...)
	return nil
}

// AddBookImage добавляет отдельную строку изображения книги.
func (r *pgBookRepository) AddBookImage(ctx context.Context, image *model.BookImage) error {
	if image.ID == uuid.Nil {
		image.ID = uuid.New()
	}
	image.CreatedAt = time.Now().UTC()

	_, err := r.db.Exec(ctx, addBookImageQuery,
		image.ID,
		image.BookID,
		image.ImageURL,
		image.ImageName,
		image.Description,
		image.Order,
		image.SizeBytes,
		image.ContentType,
		image.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to add book image",
			zap.String("bookID", image.BookID.String()),
			zap.Int("order", image.Order),
			zap.Error(err))
		return fmt.Errorf("failed to add book image: %w", err)
	}
	return nil
}

// GetBook возвращает книгу по ID вместе с jsonb-полями.
func (r *pgBookRepository) GetBook(ctx context.Context, id uuid.UUID) (*model.Book, error) {
	logFields := []zap.Field{zap.String("bookID", id.String())}
	r.logger.Debug("Getting book by ID", logFields...)

	var (
		book         model.Book
		imagesJSON   []byte
		metadataJSON []byte
	)
	err := r.db.QueryRow(ctx, getBookQuery, id).Scan(
		&book.ID,
		&book.Title,
		&book.StoryContent,
		&imagesJSON,
		&metadataJSON,
		&book.Progress,
		&book.Status,
		&book.CreatedAt,
		&book.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Warn("Book not found", logFields...)
			return nil, model.ErrNotFound
		}
		r.logger.Error("Failed to get book", append(logFields, zap.Error(err))...)
		return nil, fmt.Errorf("failed to get book %s: %w", id, err)
	}

	if len(imagesJSON) > 0 {
		if err := json.Unmarshal(imagesJSON, &book.Images); err != nil {
			return nil, fmt.Errorf("failed to unmarshal book images: %w", err)
		}
	}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &book.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal book metadata: %w", err)
		}
	}
	return &book, nil
}

// ListBooks возвращает книги без jsonb-полей, новые сверху.
func (r *pgBookRepository) ListBooks(ctx context.Context) ([]model.Book, error) {
	var books []model.Book
	if err := pgxscan.Select(ctx, r.db, &books, listBooksQuery); err != nil {
		r.logger.Error("Failed to list books", zap.Error(err))
		return nil, fmt.Errorf("failed to list books: %w", err)
	}
	return books, nil
}

// GetBookImages возвращает строки изображений книги в порядке страниц.
func (r *pgBookRepository) GetBookImages(ctx context.Context, bookID uuid.UUID) ([]model.BookImage, error) {
	var images []model.BookImage
	if err := pgxscan.Select(ctx, r.db, &images, getBookImagesQuery, bookID); err != nil {
		r.logger.Error("Failed to get book images",
			zap.String("bookID", bookID.String()), zap.Error(err))
		return nil, fmt.Errorf("failed to get book images: %w", err)
	}
	return images, nil
}

// DeleteBook удаляет книгу; строки book_images удаляются каскадно.
func (r *pgBookRepository) DeleteBook(ctx context.Context, id uuid.UUID) error {
	logFields := []zap.Field{zap.String("bookID", id.String())}

	tag, err := r.db.Exec(ctx, deleteBookQuery, id)
	if err != nil {
		r.logger.Error("Failed to delete book", append(logFields, zap.Error(err))...)
		return fmt.Errorf("failed to delete book %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}

	r.logger.Info("Book deleted", logFields...)
	return nil
}

func marshalImages(images []model.BookImageRef) ([]byte, error) {
	if images == nil {
		images = []model.BookImageRef{}
	}
	payload, err := json.Marshal(images)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal book images: %w", err)
	}
	return payload, nil
}
