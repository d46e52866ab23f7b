package stage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"comic-server/internal/ai"
	"comic-server/internal/model"
	"comic-server/internal/sse"
)

// ImageCaller — сервис генерации одного изображения.
type ImageCaller interface {
	Generate(ctx context.Context, prompt, filename string) (model.ImageResult, error)
}

// Images — этап последовательной генерации изображений.
// Этап никогда не прерывается из-за сбоя одного изображения:
// вместо отказавшей страницы подставляется локальная заглушка.
type Images struct {
	caller ImageCaller
	pace   time.Duration
	logger *zap.Logger
}

// NewImages создает этап изображений с паузой pace между запросами.
func NewImages(caller ImageCaller, pace time.Duration, logger *zap.Logger) *Images {
	return &Images{caller: caller, pace: pace, logger: logger.Named("ImageStage")}
}

// Run генерирует изображения строго по одному, в порядке промптов.
// Единственная причина досрочного выхода — отмена контекста.
func (s *Images) Run(ctx context.Context, prompts []model.ImagePrompt, sink EventSink) ([]model.GeneratedImage, error) {
	s.logger.Info("Starting image generation", zap.Int("total", len(prompts)))
	stageRequests.WithLabelValues("images").Inc()

	images := make([]model.GeneratedImage, 0, len(prompts))
	for i, prompt := range prompts {
		if err := ctx.Err(); err != nil {
			return images, err
		}

		if err := sink(sse.ImageProgress(i+1, len(prompts), prompt.Title)); err != nil {
			return images, err
		}

		instruction := FlattenPrompt(prompt)
		result, err := s.caller.Generate(ctx, instruction, fmt.Sprintf("comic-image-%d.png", prompt.ID))

		var img model.GeneratedImage
		switch {
		case err != nil && ctx.Err() != nil:
			return images, ctx.Err()
		case err != nil || result.ImageBase64 == "":
			img = s.substitutePlaceholder(prompt, i+1, instruction, err)
		default:
			img = model.GeneratedImage{
				ID:          prompt.ID,
				Title:       prompt.Title,
				ImageBase64: result.ImageBase64,
				ImageURL:    result.ImageURL,
				StoredPath:  result.SavedFilePath,
				Prompt:      instruction,
			}
		}

		images = append(images, img)
		if err := sink(sse.ImageResult(img)); err != nil {
			return images, err
		}

		if s.pace > 0 && i < len(prompts)-1 {
			select {
			case <-ctx.Done():
				return images, ctx.Err()
			case <-time.After(s.pace):
			}
		}
	}

	s.logger.Info("Image generation finished", zap.Int("total", len(images)))
	return images, nil
}

// substitutePlaceholder подставляет локальную заглушку вместо отказавшей страницы.
func (s *Images) substitutePlaceholder(prompt model.ImagePrompt, imageNumber int, instruction string, cause error) model.GeneratedImage {
	placeholderSubstitutions.Inc()

	promptText := "Placeholder for: " + prompt.Title
	if cause != nil {
		s.logger.Warn("Image generation failed, substituting placeholder",
			zap.Int("image_id", prompt.ID),
			zap.Bool("transient", ai.IsTransient(cause)),
			zap.Error(cause))
		if ai.IsTransient(cause) {
			promptText = instruction
		}
	} else {
		s.logger.Warn("Image service returned empty content, substituting placeholder",
			zap.Int("image_id", prompt.ID))
	}

	return model.GeneratedImage{
		ID:          prompt.ID,
		Title:       prompt.Title,
		ImageBase64: RenderPlaceholder(prompt.Title, imageNumber),
		Prompt:      promptText,
		Placeholder: true,
	}
}

// FlattenPrompt собирает единую текстовую инструкцию для графической модели
// из структурированного промпта страницы.
func FlattenPrompt(prompt model.ImagePrompt) string {
	var b strings.Builder
	b.WriteString(prompt.PromptText)
	for _, panel := range prompt.Panels {
		fmt.Fprintf(&b, " Panel %d: %s", panel.PanelNumber, panel.Description)
		if panel.TextContent != "" {
			fmt.Fprintf(&b, " Text: %q.", panel.TextContent)
		}
	}
	if prompt.ArtNotes != "" {
		b.WriteString(" Art notes: ")
		b.WriteString(prompt.ArtNotes)
	}
	return b.String()
}
