package model

import (
	"time"

	"github.com/google/uuid"
)

// BookStatus — статус сохраненной книги.
type BookStatus string

const (
	BookStatusDraft      BookStatus = "draft"
	BookStatusInProgress BookStatus = "in_progress"
	BookStatusCompleted  BookStatus = "completed"
	BookStatusPublished  BookStatus = "published"
)

// BookImageRef — ссылка на изображение внутри jsonb-списка книги.
type BookImageRef struct {
	ID     int    `json:"id"`
	Title  string `json:"title"`
	URL    string `json:"url"`
	Prompt string `json:"prompt"`
	Order  int    `json:"order"`
}

// Book — сохраненная книга комиксов.
type Book struct {
	ID           uuid.UUID      `json:"id" db:"id"`
	Title        string         `json:"title" db:"title"`
	StoryContent string         `json:"story_content" db:"story_content"`
	Images       []BookImageRef `json:"images" db:"-"`
	Metadata     map[string]any `json:"metadata,omitempty" db:"-"`
	Progress     int            `json:"book_progress" db:"book_progress"`
	Status       BookStatus     `json:"status" db:"status"`
	CreatedAt    time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at" db:"updated_at"`
}

// BookImage — отдельная строка таблицы book_images.
type BookImage struct {
	ID          uuid.UUID `json:"id" db:"id"`
	BookID      uuid.UUID `json:"book_id" db:"book_id"`
	ImageURL    string    `json:"image_url" db:"image_url"`
	ImageName   string    `json:"image_name" db:"image_name"`
	Description string    `json:"image_description" db:"image_description"`
	Order       int       `json:"image_order" db:"image_order"`
	SizeBytes   int64     `json:"image_size" db:"image_size"`
	ContentType string    `json:"image_type" db:"image_type"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
