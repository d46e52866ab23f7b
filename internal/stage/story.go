// Package stage реализует три этапа пайплайна комикса:
// генерацию истории, генерацию промптов изображений и генерацию изображений.
package stage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"comic-server/internal/model"
	"comic-server/internal/sse"
)

// EventSink принимает события пайплайна для отправки потребителю.
type EventSink func(event any) error

// TextGenerator — текстовая модель в JSON-режиме.
type TextGenerator interface {
	GenerateJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Story — этап генерации истории: один вызов модели, строгая валидация,
// поштучная отправка частей.
type Story struct {
	ai        TextGenerator
	parts     int
	partDelay time.Duration
	logger    *zap.Logger
}

// NewStory создает этап истории на parts частей.
func NewStory(ai TextGenerator, parts int, partDelay time.Duration, logger *zap.Logger) *Story {
	return &Story{
		ai:        ai,
		parts:     parts,
		partDelay: partDelay,
		logger:    logger.Named("StoryStage"),
	}
}

// storyResponse — ожидаемая структура ответа модели.
type storyResponse struct {
	ChapterName string            `json:"chapter_name"`
	Summary     string            `json:"summary"`
	StoryParts  []model.StoryPart `json:"story_parts"`
}

// Run генерирует историю по теме и отправляет события по мере готовности.
// Терминальные события (done/error) отправляет вызывающая сторона.
func (s *Story) Run(ctx context.Context, topic string, sink EventSink) (*model.StoryBundle, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, model.ErrEmptyTopic
	}

	s.logger.Info("Starting story generation", zap.String("topic", topic), zap.Int("parts", s.parts))
	stageRequests.WithLabelValues("story").Inc()

	if err := sink(sse.Status("Generating your story...")); err != nil {
		return nil, err
	}

	raw, err := s.ai.GenerateJSON(ctx, storySystemPrompt(s.parts), storyUserPrompt(topic, s.parts))
	if err != nil {
		stageFailures.WithLabelValues("story").Inc()
		return nil, fmt.Errorf("story generation request failed: %w", err)
	}

	var resp storyResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		stageFailures.WithLabelValues("story").Inc()
		return nil, fmt.Errorf("%w: story response is not valid JSON: %v", model.ErrGenerationFormat, err)
	}
	if resp.StoryParts == nil {
		stageFailures.WithLabelValues("story").Inc()
		return nil, fmt.Errorf("%w: story response has no story_parts array", model.ErrGenerationFormat)
	}
	if len(resp.StoryParts) != s.parts {
		stageFailures.WithLabelValues("story").Inc()
		return nil, fmt.Errorf("%w: expected %d story parts, got %d",
			model.ErrGenerationCountMismatch, s.parts, len(resp.StoryParts))
	}
	for i, part := range resp.StoryParts {
		if part.PartNumber != i+1 {
			stageFailures.WithLabelValues("story").Inc()
			return nil, fmt.Errorf("%w: story part at position %d has part_number %d, want %d",
				model.ErrGenerationFormat, i, part.PartNumber, i+1)
		}
	}

	if err := sink(sse.StorySummary(resp.ChapterName, resp.Summary)); err != nil {
		return nil, err
	}

	for _, part := range resp.StoryParts {
		if err := sink(sse.StoryPart(part)); err != nil {
			return nil, err
		}
		if s.partDelay > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(s.partDelay):
			}
		}
	}

	if err := sink(sse.Status("Story generation complete.")); err != nil {
		return nil, err
	}

	s.logger.Info("Story generated",
		zap.String("chapter_name", resp.ChapterName),
		zap.Int("parts", len(resp.StoryParts)))

	return &model.StoryBundle{
		ChapterName: resp.ChapterName,
		Summary:     resp.Summary,
		Parts:       resp.StoryParts,
	}, nil
}

// storySystemPrompt строит системный промпт этапа истории.
func storySystemPrompt(parts int) string {
	var b strings.Builder
	b.WriteString("You are a children's comic book writer. ")
	b.WriteString("You turn any topic into a fun, educational comic book story.\n\n")
	fmt.Fprintf(&b, "Write a story split into exactly %d parts.\n", parts)
	b.WriteString("Respond with JSON only, no markdown, using exactly this structure:\n")
	b.WriteString("{\n")
	b.WriteString("  \"chapter_name\": \"short catchy chapter name\",\n")
	b.WriteString("  \"summary\": \"one paragraph summary of the whole story\",\n")
	b.WriteString("  \"story_parts\": [\n")
	for i := 1; i <= parts; i++ {
		fmt.Fprintf(&b, "    {\"part_number\": %d, \"chapter_title\": \"title of part %d\", \"story_content\": \"2-4 sentences of story text\"}", i, i)
		if i < parts {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString("  ]\n")
	b.WriteString("}\n\n")
	b.WriteString("Rules:\n")
	fmt.Fprintf(&b, "- story_parts must contain exactly %d items with part_number from 1 to %d in order.\n", parts, parts)
	b.WriteString("- Keep the language simple and friendly, suitable for children.\n")
	b.WriteString("- Each part must advance the story; the last part must conclude it.\n")
	b.WriteString("- Do not add any fields beyond the structure above.")
	return b.String()
}

func storyUserPrompt(topic string, parts int) string {
	return fmt.Sprintf("Create a %d-part comic book story about: %s", parts, topic)
}
