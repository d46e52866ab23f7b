package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"comic-server/internal/model"
	"comic-server/internal/repository"
	"comic-server/internal/service"
	"comic-server/internal/sse"
	"comic-server/internal/stage"
)

type stubTextGenerator struct {
	response string
	err      error
}

func (s *stubTextGenerator) GenerateJSON(context.Context, string, string) (string, error) {
	return s.response, s.err
}

type stubImageGenerator struct {
	imageBase64 string
	err         error
}

func (s *stubImageGenerator) GenerateImage(context.Context, string) (string, error) {
	return s.imageBase64, s.err
}

type stubStore struct {
	url string
	err error
}

func (s *stubStore) SaveBase64(context.Context, string, string, string) (string, error) {
	return s.url, s.err
}

type stubRepo struct {
	repository.BookRepository
	book *model.Book
}

func (s *stubRepo) GetBook(_ context.Context, id uuid.UUID) (*model.Book, error) {
	if s.book == nil {
		return nil, model.ErrNotFound
	}
	return s.book, nil
}

func (s *stubRepo) ListBooks(context.Context) ([]model.Book, error) {
	if s.book == nil {
		return []model.Book{}, nil
	}
	return []model.Book{*s.book}, nil
}

func (s *stubRepo) DeleteBook(context.Context, uuid.UUID) error {
	if s.book == nil {
		return model.ErrNotFound
	}
	return nil
}

func newTestRouter(t *testing.T, text *stubTextGenerator, images *stubImageGenerator, repo repository.BookRepository) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := zap.NewNop()
	books := service.NewBookService(repo, &stubStore{url: "http://localhost/static/x.png"}, logger)
	h := NewHandler(
		stage.NewStory(text, 3, 0, logger),
		stage.NewPrompts(text, logger),
		images,
		&stubStore{url: "http://localhost/static/generated-images/img.png"},
		nil,
		books,
		logger,
	)
	return NewRouter(h, RouterConfig{AllowedOrigins: []string{"http://localhost:3000"}}, logger)
}

func storyResponseJSON() string {
	payload, _ := json.Marshal(map[string]any{
		"chapter_name": "WiFi Adventures",
		"summary":      "Waves.",
		"story_parts": []map[string]any{
			{"part_number": 1, "chapter_title": "One", "story_content": "First."},
			{"part_number": 2, "chapter_title": "Two", "story_content": "Second."},
			{"part_number": 3, "chapter_title": "Three", "story_content": "Third."},
		},
	})
	return string(payload)
}

func decodeTypes(t *testing.T, body io.Reader) []string {
	t.Helper()
	dec := sse.NewDecoder(body)
	var types []string
	for {
		msg, err := dec.Next()
		if errors.Is(err, io.EOF) {
			return types
		}
		require.NoError(t, err)
		types = append(types, msg.Type)
	}
}

func TestGenerateStory_StreamsEvents(t *testing.T) {
	router := newTestRouter(t, &stubTextGenerator{response: storyResponseJSON()}, &stubImageGenerator{}, &stubRepo{})

	req := httptest.NewRequest(http.MethodPost, "/api/story", strings.NewReader(`{"topic":"How WiFi Works"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	types := decodeTypes(t, rec.Body)
	assert.Equal(t,
		[]string{sse.TypeStatus, sse.TypeStorySummary, sse.TypeStoryPart, sse.TypeStoryPart, sse.TypeStoryPart, sse.TypeStatus, sse.TypeDone},
		types)
}

func TestGenerateStory_AIFailureEmitsErrorEvent(t *testing.T) {
	router := newTestRouter(t, &stubTextGenerator{err: errors.New("model offline")}, &stubImageGenerator{}, &stubRepo{})

	req := httptest.NewRequest(http.MethodPost, "/api/story", strings.NewReader(`{"topic":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	types := decodeTypes(t, rec.Body)
	require.NotEmpty(t, types)
	assert.Equal(t, sse.TypeError, types[len(types)-1])
}

func TestGenerateStory_BadRequest(t *testing.T) {
	router := newTestRouter(t, &stubTextGenerator{}, &stubImageGenerator{}, &stubRepo{})

	req := httptest.NewRequest(http.MethodPost, "/api/story", strings.NewReader(`{`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGenerateImagePrompts_EmptyChunk(t *testing.T) {
	router := newTestRouter(t, &stubTextGenerator{}, &stubImageGenerator{}, &stubRepo{})

	req := httptest.NewRequest(http.MethodPost, "/api/image-prompts", strings.NewReader(`{"storyPartsChunk":[]}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGenerateComicImage_Success(t *testing.T) {
	router := newTestRouter(t, &stubTextGenerator{}, &stubImageGenerator{imageBase64: "Zm9v"}, &stubRepo{})

	req := httptest.NewRequest(http.MethodPost, "/api/comic-image",
		strings.NewReader(`{"prompt":"draw a router","saveToFile":true,"filename":"r.png"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var result model.ImageResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "Zm9v", result.ImageBase64)
	assert.Equal(t, "http://localhost/static/generated-images/img.png", result.ImageURL)
}

// Временная недоступность модели транслируется в 502, чтобы потребитель
// мог подставить заглушку.
func TestGenerateComicImage_TransientMapsTo502(t *testing.T) {
	transient := fmt.Errorf("%w: upstream 502", model.ErrTransientService)
	router := newTestRouter(t, &stubTextGenerator{}, &stubImageGenerator{err: transient}, &stubRepo{})

	req := httptest.NewRequest(http.MethodPost, "/api/comic-image", strings.NewReader(`{"prompt":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestGenerateComicImage_MissingPrompt(t *testing.T) {
	router := newTestRouter(t, &stubTextGenerator{}, &stubImageGenerator{}, &stubRepo{})

	req := httptest.NewRequest(http.MethodPost, "/api/comic-image", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetBook_NotFound(t *testing.T) {
	router := newTestRouter(t, &stubTextGenerator{}, &stubImageGenerator{}, &stubRepo{})

	req := httptest.NewRequest(http.MethodGet, "/api/books/"+uuid.NewString(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetBook_InvalidID(t *testing.T) {
	router := newTestRouter(t, &stubTextGenerator{}, &stubImageGenerator{}, &stubRepo{})

	req := httptest.NewRequest(http.MethodGet, "/api/books/not-a-uuid", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListBooks(t *testing.T) {
	repo := &stubRepo{book: &model.Book{ID: uuid.New(), Title: "WiFi Adventures"}}
	router := newTestRouter(t, &stubTextGenerator{}, &stubImageGenerator{}, repo)

	req := httptest.NewRequest(http.MethodGet, "/api/books", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Books []model.Book `json:"books"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Books, 1)
	assert.Equal(t, "WiFi Adventures", resp.Books[0].Title)
}

func TestHealth(t *testing.T) {
	router := newTestRouter(t, &stubTextGenerator{}, &stubImageGenerator{}, &stubRepo{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
