//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"comic-server/internal/model"
	"comic-server/migrations"
	"comic-server/pkg/database"
	"comic-server/pkg/migration"
)

// BookRepositorySuite — интеграционные тесты репозитория книг
// против настоящего PostgreSQL в контейнере.
type BookRepositorySuite struct {
	suite.Suite
	pgContainer *postgres.PostgresContainer
	pool        *pgxpool.Pool
	repo        BookRepository
}

func (s *BookRepositorySuite) SetupSuite() {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("comics_test"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	s.Require().NoError(err)
	s.pgContainer = pgContainer

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	s.Require().NoError(err)

	pool, err := database.New(ctx, database.Config{DSN: dsn, MaxConns: 5})
	s.Require().NoError(err)
	s.pool = pool

	migrator := migration.NewMigrator(migration.Config{
		MigrationsPath: ".",
		MigrationsFS:   migrations.FS,
	}, pool)
	s.Require().NoError(migrator.Up(ctx))

	s.repo = NewPgBookRepository(pool, zap.NewNop())
}

func (s *BookRepositorySuite) TearDownSuite() {
	if s.pool != nil {
		s.pool.Close()
	}
	if s.pgContainer != nil {
		s.Require().NoError(s.pgContainer.Terminate(context.Background()))
	}
}

func (s *BookRepositorySuite) newBook(title string) *model.Book {
	return &model.Book{
		Title:        title,
		StoryContent: "Part 1: Start\nOnce upon a time.",
		Metadata:     map[string]any{"ai_generated": true},
		Progress:     100,
		Status:       model.BookStatusCompleted,
	}
}

func (s *BookRepositorySuite) TestCreateAndGetBook() {
	ctx := context.Background()

	book := s.newBook("WiFi Adventures")
	s.Require().NoError(s.repo.CreateBook(ctx, book))
	s.Require().NotEqual(uuid.Nil, book.ID)

	got, err := s.repo.GetBook(ctx, book.ID)
	s.Require().NoError(err)
	s.Equal("WiFi Adventures", got.Title)
	s.Equal(model.BookStatusCompleted, got.Status)
	s.Equal(100, got.Progress)
	s.Equal(true, got.Metadata["ai_generated"])
	s.Empty(got.Images)
}

func (s *BookRepositorySuite) TestGetBook_NotFound() {
	_, err := s.repo.GetBook(context.Background(), uuid.New())
	s.ErrorIs(err, model.ErrNotFound)
}

func (s *BookRepositorySuite) TestUpdateBookImages() {
	ctx := context.Background()

	book := s.newBook("With Images")
	s.Require().NoError(s.repo.CreateBook(ctx, book))

	refs := []model.BookImageRef{
		{ID: 1, Title: "Page 1", URL: "http://localhost/1.png", Prompt: "p1", Order: 1},
		{ID: 2, Title: "Page 2", URL: "data:image/png;base64,Zm9v", Prompt: "p2", Order: 2},
	}
	s.Require().NoError(s.repo.UpdateBookImages(ctx, book.ID, refs))

	got, err := s.repo.GetBook(ctx, book.ID)
	s.Require().NoError(err)
	s.Require().Len(got.Images, 2)
	s.Equal("Page 1", got.Images[0].Title)
	s.Equal("data:image/png;base64,Zm9v", got.Images[1].URL)
}

func (s *BookRepositorySuite) TestUpdateBookImages_NotFound() {
	err := s.repo.UpdateBookImages(context.Background(), uuid.New(), nil)
	s.ErrorIs(err, model.ErrNotFound)
}

func (s *BookRepositorySuite) TestAddAndGetBookImages() {
	ctx := context.Background()

	book := s.newBook("Rows")
	s.Require().NoError(s.repo.CreateBook(ctx, book))

	for i := 2; i >= 1; i-- {
		s.Require().NoError(s.repo.AddBookImage(ctx, &model.BookImage{
			BookID:      book.ID,
			ImageURL:    "http://localhost/x.png",
			ImageName:   "x.png",
			Description: "prompt",
			Order:       i,
			SizeBytes:   3,
			ContentType: "image/png",
		}))
	}

	images, err := s.repo.GetBookImages(ctx, book.ID)
	s.Require().NoError(err)
	s.Require().Len(images, 2)
	s.Equal(1, images[0].Order, "images must come back in page order")
	s.Equal(2, images[1].Order)
}

func (s *BookRepositorySuite) TestListBooks() {
	ctx := context.Background()

	s.Require().NoError(s.repo.CreateBook(ctx, s.newBook("List A")))
	s.Require().NoError(s.repo.CreateBook(ctx, s.newBook("List B")))

	books, err := s.repo.ListBooks(ctx)
	s.Require().NoError(err)
	s.GreaterOrEqual(len(books), 2)
}

func (s *BookRepositorySuite) TestDeleteBook_Cascades() {
	ctx := context.Background()

	book := s.newBook("Doomed")
	s.Require().NoError(s.repo.CreateBook(ctx, book))
	s.Require().NoError(s.repo.AddBookImage(ctx, &model.BookImage{
		BookID:    book.ID,
		ImageURL:  "http://localhost/x.png",
		ImageName: "x.png",
		Order:     1,
	}))

	s.Require().NoError(s.repo.DeleteBook(ctx, book.ID))

	_, err := s.repo.GetBook(ctx, book.ID)
	s.ErrorIs(err, model.ErrNotFound)

	images, err := s.repo.GetBookImages(ctx, book.ID)
	s.Require().NoError(err)
	s.Empty(images)
}

func (s *BookRepositorySuite) TestDeleteBook_NotFound() {
	s.ErrorIs(s.repo.DeleteBook(context.Background(), uuid.New()), model.ErrNotFound)
}

func TestBookRepositorySuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration tests in short mode")
	}
	suite.Run(t, new(BookRepositorySuite))
}
