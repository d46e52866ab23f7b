package stage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"comic-server/internal/model"
	"comic-server/internal/schemas"
	"comic-server/internal/sse"
)

// Prompts — этап генерации промптов изображений для одного батча частей истории.
// Ответ модели валидируется строго: ровно len(batch) промптов, id которых
// взаимно однозначно соответствуют part_number частей батча.
type Prompts struct {
	ai     TextGenerator
	logger *zap.Logger
}

// NewPrompts создает этап промптов.
func NewPrompts(ai TextGenerator, logger *zap.Logger) *Prompts {
	return &Prompts{ai: ai, logger: logger.Named("PromptStage")}
}

// promptsResponse — ожидаемая структура ответа модели.
type promptsResponse struct {
	ImagePrompts []model.ImagePrompt `json:"image_prompts"`
}

// Run генерирует промпты изображений для батча частей истории.
func (p *Prompts) Run(ctx context.Context, batch []model.StoryPart, sink EventSink) ([]model.ImagePrompt, error) {
	if len(batch) == 0 {
		return nil, fmt.Errorf("%w: story parts batch is empty", model.ErrGenerationFormat)
	}

	p.logger.Info("Starting image prompt generation", zap.Int("batch_size", len(batch)))
	stageRequests.WithLabelValues("prompts").Inc()

	if err := sink(sse.Status(fmt.Sprintf("Generating image prompts for %d story parts...", len(batch)))); err != nil {
		return nil, err
	}

	systemPrompt, err := promptsSystemPrompt(len(batch))
	if err != nil {
		return nil, err
	}

	userPayload, err := json.MarshalIndent(map[string]any{"story_parts": batch}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal story parts batch: %w", err)
	}

	raw, err := p.ai.GenerateJSON(ctx, systemPrompt, string(userPayload))
	if err != nil {
		stageFailures.WithLabelValues("prompts").Inc()
		return nil, fmt.Errorf("image prompt generation request failed: %w", err)
	}

	var resp promptsResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		stageFailures.WithLabelValues("prompts").Inc()
		return nil, fmt.Errorf("%w: image prompts response is not valid JSON: %v", model.ErrGenerationFormat, err)
	}
	if resp.ImagePrompts == nil {
		stageFailures.WithLabelValues("prompts").Inc()
		return nil, fmt.Errorf("%w: response has no image_prompts array", model.ErrGenerationFormat)
	}
	if len(resp.ImagePrompts) != len(batch) {
		stageFailures.WithLabelValues("prompts").Inc()
		return nil, fmt.Errorf("%w: expected %d image prompts, got %d",
			model.ErrGenerationCountMismatch, len(batch), len(resp.ImagePrompts))
	}
	if err := validatePromptIDs(batch, resp.ImagePrompts); err != nil {
		stageFailures.WithLabelValues("prompts").Inc()
		return nil, err
	}

	if err := sink(sse.ImagePromptsChunk(resp.ImagePrompts)); err != nil {
		return nil, err
	}
	for _, item := range resp.ImagePrompts {
		if err := sink(sse.ImagePromptItem(item)); err != nil {
			return nil, err
		}
	}
	if err := sink(sse.Status("Image prompt generation complete.")); err != nil {
		return nil, err
	}

	p.logger.Info("Image prompts generated", zap.Int("count", len(resp.ImagePrompts)))
	return resp.ImagePrompts, nil
}

// validatePromptIDs проверяет взаимно однозначное соответствие id промптов
// и part_number частей батча.
func validatePromptIDs(batch []model.StoryPart, prompts []model.ImagePrompt) error {
	expected := make(map[int]bool, len(batch))
	for _, part := range batch {
		expected[part.PartNumber] = true
	}

	seen := make(map[int]bool, len(prompts))
	for _, prompt := range prompts {
		if !expected[prompt.ID] {
			return fmt.Errorf("%w: prompt id %d does not match any story part in the batch",
				model.ErrGenerationFormat, prompt.ID)
		}
		if seen[prompt.ID] {
			return fmt.Errorf("%w: duplicate prompt id %d", model.ErrGenerationFormat, prompt.ID)
		}
		seen[prompt.ID] = true
		if len(prompt.Panels) != panelsPerPrompt {
			return fmt.Errorf("%w: prompt id %d has %d panels, expected %d",
				model.ErrGenerationFormat, prompt.ID, len(prompt.Panels), panelsPerPrompt)
		}
	}
	return nil
}

const panelsPerPrompt = 3

// promptsSystemPrompt строит системный промпт этапа промптов,
// включая JSON-схему с точной кардинальностью батча.
func promptsSystemPrompt(batchSize int) (string, error) {
	schemaJSON, err := schemas.ImagePromptsJSON(batchSize)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("You are a comic book art director. ")
	b.WriteString("For every story part you receive, produce one comic page prompt for an image generation model.\n\n")
	fmt.Fprintf(&b, "You will receive exactly %d story parts. ", batchSize)
	fmt.Fprintf(&b, "Return exactly %d image prompts, one per story part.\n", batchSize)
	b.WriteString("Each prompt's id must equal the part_number of the story part it illustrates.\n")
	fmt.Fprintf(&b, "Each page has exactly %d panels. ", panelsPerPrompt)
	b.WriteString("Every panel must include the exact dialogue or caption text to render — comic pages without text are not acceptable.\n\n")
	b.WriteString("Respond with JSON only, matching this schema:\n")
	b.WriteString(schemaJSON)
	return b.String(), nil
}
