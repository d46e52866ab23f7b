// Package repository реализует доступ к хранилищу книг.
package repository

import (
	"context"

	"github.com/google/uuid"

	"comic-server/internal/model"
)

// BookRepository — хранилище книг и их изображений.
type BookRepository interface {
	CreateBook(ctx context.Context, book *model.Book) error
	UpdateBookImages(ctx context.Context, bookID uuid.UUID, images []model.BookImageRef) error
	AddBookImage(ctx context.Context, image *model.BookImage) error
	GetBook(ctx context.Context, id uuid.UUID) (*model.Book, error)
	ListBooks(ctx context.Context) ([]model.Book, error)
	GetBookImages(ctx context.Context, bookID uuid.UUID) ([]model.BookImage, error)
	DeleteBook(ctx context.Context, id uuid.UUID) error
}
