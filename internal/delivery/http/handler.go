// Package http реализует HTTP-слой сервера комиксов.
package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"comic-server/internal/ai"
	"comic-server/internal/model"
	"comic-server/internal/orchestrator"
	"comic-server/internal/service"
	"comic-server/internal/sse"
	"comic-server/internal/stage"
)

// ImageGenerator — модель генерации одного изображения.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) (string, error)
}

// Handler обслуживает stage-эндпоинты, прогон пайплайна и книги.
type Handler struct {
	story   *stage.Story
	prompts *stage.Prompts
	images  ImageGenerator
	store   service.ImageStore
	orch    *orchestrator.Orchestrator
	books   *service.BookService
	logger  *zap.Logger
}

// NewHandler создает HTTP-обработчик.
func NewHandler(
	story *stage.Story,
	prompts *stage.Prompts,
	images ImageGenerator,
	store service.ImageStore,
	orch *orchestrator.Orchestrator,
	books *service.BookService,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		story:   story,
		prompts: prompts,
		images:  images,
		store:   store,
		orch:    orch,
		books:   books,
		logger:  logger.Named("HTTPHandler"),
	}
}

// GenerateStory — POST /api/story. Стримит события этапа истории.
func (h *Handler) GenerateStory(c *gin.Context) {
	var req struct {
		Topic string `json:"topic"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	enc, err := sse.NewEncoder(c.Writer)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	sink := func(event any) error { return enc.Encode(event) }

	bundle, err := h.story.Run(c.Request.Context(), req.Topic, sink)
	if err != nil {
		h.logger.Error("Story stage failed", zap.Error(err))
		enc.Encode(sse.Error(err.Error()))
		return
	}
	enc.Encode(sse.DoneWithStory(bundle.ChapterName, bundle.Summary))
}

// GenerateImagePrompts — POST /api/image-prompts. Стримит события этапа промптов
// для одного батча частей истории.
func (h *Handler) GenerateImagePrompts(c *gin.Context) {
	var req struct {
		StoryPartsChunk []model.StoryPart `json:"storyPartsChunk"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if len(req.StoryPartsChunk) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "storyPartsChunk is required"})
		return
	}

	enc, err := sse.NewEncoder(c.Writer)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	sink := func(event any) error { return enc.Encode(event) }

	if _, err := h.prompts.Run(c.Request.Context(), req.StoryPartsChunk, sink); err != nil {
		h.logger.Error("Prompt stage failed", zap.Error(err))
		enc.Encode(sse.Error(err.Error()))
		return
	}
	enc.Encode(sse.Done())
}

// GenerateComicImage — POST /api/comic-image. Генерирует одно изображение
// и опционально сохраняет его в хранилище.
func (h *Handler) GenerateComicImage(c *gin.Context) {
	var req struct {
		Prompt     string `json:"prompt"`
		SaveToFile bool   `json:"saveToFile"`
		Filename   string `json:"filename"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Prompt == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "prompt is required"})
		return
	}

	imageBase64, err := h.images.GenerateImage(c.Request.Context(), req.Prompt)
	if err != nil {
		if ai.IsTransient(err) {
			h.logger.Warn("Image service temporarily unavailable", zap.Error(err))
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("Image generation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	result := model.ImageResult{ImageBase64: imageBase64, Prompt: req.Prompt}
	if req.SaveToFile {
		fileName := req.Filename
		if fileName == "" {
			fileName = "comic-image-" + uuid.NewString() + ".png"
		}
		url, err := h.store.SaveBase64(c.Request.Context(), "generated-images", fileName, imageBase64)
		if err != nil {
			// Сохранение на диск вспомогательное: изображение уже в ответе.
			h.logger.Warn("Failed to save generated image to storage", zap.Error(err))
		} else {
			result.ImageURL = url
			result.SavedFilePath = url
		}
	}

	c.JSON(http.StatusOK, result)
}

// GenerateBook — POST /api/books/generate. Запускает полный прогон пайплайна
// и стримит все его события.
func (h *Handler) GenerateBook(c *gin.Context) {
	var req struct {
		Topic string `json:"topic"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	enc, err := sse.NewEncoder(c.Writer)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	sink := func(event any) error { return enc.Encode(event) }

	if _, err := h.orch.Generate(c.Request.Context(), req.Topic, sink); err != nil {
		switch {
		case errors.Is(err, model.ErrRunInProgress):
			enc.Encode(sse.Status("Generation for this topic is already in progress."))
		case errors.Is(err, model.ErrEmptyTopic):
			enc.Encode(sse.Error(err.Error()))
		}
		// Остальные ошибки уже отправлены оркестратором событием error.
	}
}

// ListBooks — GET /api/books.
func (h *Handler) ListBooks(c *gin.Context) {
	books, err := h.books.ListBooks(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list books"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"books": books})
}

// GetBook — GET /api/books/:id.
func (h *Handler) GetBook(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid book id"})
		return
	}

	book, err := h.books.GetBook(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "book not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get book"})
		return
	}
	c.JSON(http.StatusOK, book)
}

// GetBookImages — GET /api/books/:id/images.
func (h *Handler) GetBookImages(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid book id"})
		return
	}

	images, err := h.books.GetBookImages(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get book images"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"images": images})
}

// DeleteBook — DELETE /api/books/:id.
func (h *Handler) DeleteBook(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid book id"})
		return
	}

	if err := h.books.DeleteBook(c.Request.Context(), id); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "book not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete book"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id.String()})
}

// Health — GET /health.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
