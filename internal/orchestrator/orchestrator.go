// Package orchestrator управляет полным прогоном пайплайна комикса:
// история → промпты изображений → изображения → сохранение книги.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"comic-server/internal/model"
	"comic-server/internal/sse"
	"comic-server/internal/stage"
)

// State — состояние прогона пайплайна.
type State string

const (
	StateIdle              State = "idle"
	StateStoryInProgress   State = "story_in_progress"
	StateStoryComplete     State = "story_complete"
	StatePromptsInProgress State = "prompts_in_progress"
	StatePromptsComplete   State = "prompts_complete"
	StateImagesInProgress  State = "images_in_progress"
	StateImagesComplete    State = "images_complete"
	StateSaving            State = "saving"
	StateSaved             State = "saved"
	StateFailed            State = "failed"
)

// BookSaver сохраняет собранную книгу целиком.
type BookSaver interface {
	SaveCompleteBook(ctx context.Context, title, storyText string, images []model.GeneratedImage, progress int, status model.BookStatus) (uuid.UUID, error)
}

// Result — итог одного прогона пайплайна.
type Result struct {
	Topic       string
	State       State
	ChapterName string
	Summary     string
	Parts       []model.StoryPart
	Prompts     []model.ImagePrompt
	Images      []model.GeneratedImage
	BookID      uuid.UUID
	Err         string
}

// Config — параметры оркестратора.
type Config struct {
	PromptBatchSize int
	ImagePace       time.Duration
	SaveGrace       time.Duration
}

// Orchestrator прогоняет пайплайн от темы до сохраненной книги.
// Повторная отправка темы, по которой прогон уже идет, отклоняется.
type Orchestrator struct {
	stages StageClient
	saver  BookSaver
	cfg    Config
	logger *zap.Logger

	mu           sync.Mutex
	activeTopics map[string]bool
}

// New создает оркестратор.
func New(stages StageClient, saver BookSaver, cfg Config, logger *zap.Logger) *Orchestrator {
	if cfg.PromptBatchSize <= 0 {
		cfg.PromptBatchSize = 3
	}
	return &Orchestrator{
		stages:       stages,
		saver:        saver,
		cfg:          cfg,
		logger:       logger.Named("Orchestrator"),
		activeTopics: make(map[string]bool),
	}
}

// Generate выполняет полный прогон пайплайна для темы, транслируя события в sink.
// Возвращает итог прогона; model.ErrRunInProgress — если тема уже в работе.
func (o *Orchestrator) Generate(ctx context.Context, topic string, sink stage.EventSink) (*Result, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, model.ErrEmptyTopic
	}

	o.mu.Lock()
	if o.activeTopics[topic] {
		o.mu.Unlock()
		o.logger.Info("Duplicate run rejected", zap.String("topic", topic))
		return nil, model.ErrRunInProgress
	}
	o.activeTopics[topic] = true
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		delete(o.activeTopics, topic)
		o.mu.Unlock()
	}()

	run := &Result{Topic: topic, State: StateIdle}
	o.logger.Info("Starting pipeline run", zap.String("topic", topic))

	if err := o.runStory(ctx, run, sink); err != nil {
		return o.fail(run, sink, err)
	}
	if err := o.runPrompts(ctx, run, sink); err != nil {
		return o.fail(run, sink, err)
	}
	if err := o.runImages(ctx, run, sink); err != nil {
		return o.fail(run, sink, err)
	}
	if err := o.save(ctx, run, sink); err != nil {
		return o.fail(run, sink, err)
	}

	run.State = StateSaved
	if err := sink(sse.DoneWithBook(run.BookID.String())); err != nil {
		return run, err
	}
	o.logger.Info("Pipeline run finished",
		zap.String("topic", topic),
		zap.String("book_id", run.BookID.String()))
	return run, nil
}

// fail переводит прогон в терминальное состояние failed и отправляет событие error.
func (o *Orchestrator) fail(run *Result, sink stage.EventSink, cause error) (*Result, error) {
	run.State = StateFailed
	run.Err = cause.Error()
	o.logger.Error("Pipeline run failed",
		zap.String("topic", run.Topic),
		zap.Error(cause))
	if err := sink(sse.Error(cause.Error())); err != nil {
		return run, err
	}
	return run, cause
}

// runStory выполняет этап истории, читая SSE-поток stage-эндпоинта.
func (o *Orchestrator) runStory(ctx context.Context, run *Result, sink stage.EventSink) error {
	run.State = StateStoryInProgress

	body, err := o.stages.StoryStream(ctx, run.Topic)
	if err != nil {
		return fmt.Errorf("story stage request failed: %w", err)
	}
	defer body.Close()

	terminal := false
	dec := sse.NewDecoder(body)
	for !terminal {
		msg, err := dec.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("story stream read failed: %w", err)
		}

		switch msg.Type {
		case sse.TypeStatus:
			if err := relayRaw(sink, msg.Raw); err != nil {
				return err
			}
		case sse.TypeStorySummary:
			var ev sse.StorySummaryEvent
			if err := json.Unmarshal(msg.Raw, &ev); err != nil {
				return fmt.Errorf("%w: malformed story_summary event: %v", model.ErrGenerationFormat, err)
			}
			run.ChapterName = ev.ChapterName
			run.Summary = ev.Summary
			if err := relayRaw(sink, msg.Raw); err != nil {
				return err
			}
		case sse.TypeStoryPart:
			var ev sse.StoryPartEvent
			if err := json.Unmarshal(msg.Raw, &ev); err != nil {
				return fmt.Errorf("%w: malformed story_part event: %v", model.ErrGenerationFormat, err)
			}
			run.Parts = append(run.Parts, model.StoryPart{
				PartNumber:   ev.PartNumber,
				ChapterTitle: ev.ChapterTitle,
				StoryContent: ev.StoryContent,
			})
			if err := relayRaw(sink, msg.Raw); err != nil {
				return err
			}
		case sse.TypeError:
			return streamError(msg.Raw)
		case sse.TypeDone:
			terminal = true
		}
	}
	if !terminal {
		return fmt.Errorf("story stage: %w", model.ErrStreamIncomplete)
	}
	if len(run.Parts) == 0 {
		return fmt.Errorf("%w: story stage produced no parts", model.ErrGenerationFormat)
	}

	run.State = StateStoryComplete
	return nil
}

// runPrompts выполняет этап промптов батчами фиксированного размера.
func (o *Orchestrator) runPrompts(ctx context.Context, run *Result, sink stage.EventSink) error {
	run.State = StatePromptsInProgress

	for start := 0; start < len(run.Parts); start += o.cfg.PromptBatchSize {
		end := start + o.cfg.PromptBatchSize
		if end > len(run.Parts) {
			end = len(run.Parts)
		}
		batch := run.Parts[start:end]

		prompts, err := o.readPromptsStream(ctx, batch, sink)
		if err != nil {
			return err
		}
		if len(prompts) != len(batch) {
			return fmt.Errorf("%w: batch of %d parts yielded %d prompts",
				model.ErrGenerationCountMismatch, len(batch), len(prompts))
		}
		run.Prompts = append(run.Prompts, prompts...)
	}

	run.State = StatePromptsComplete
	return nil
}

func (o *Orchestrator) readPromptsStream(ctx context.Context, batch []model.StoryPart, sink stage.EventSink) ([]model.ImagePrompt, error) {
	body, err := o.stages.ImagePromptsStream(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("prompt stage request failed: %w", err)
	}
	defer body.Close()

	var prompts []model.ImagePrompt
	terminal := false
	dec := sse.NewDecoder(body)
	for !terminal {
		msg, err := dec.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("prompt stream read failed: %w", err)
		}

		switch msg.Type {
		case sse.TypeStatus, sse.TypeImagePromptItem:
			if err := relayRaw(sink, msg.Raw); err != nil {
				return nil, err
			}
		case sse.TypeImagePromptsChunk:
			var ev sse.ImagePromptsChunkEvent
			if err := json.Unmarshal(msg.Raw, &ev); err != nil {
				return nil, fmt.Errorf("%w: malformed image_prompts_chunk event: %v", model.ErrGenerationFormat, err)
			}
			prompts = ev.Prompts
			if err := relayRaw(sink, msg.Raw); err != nil {
				return nil, err
			}
		case sse.TypeError:
			return nil, streamError(msg.Raw)
		case sse.TypeDone:
			terminal = true
		}
	}
	if !terminal {
		return nil, fmt.Errorf("prompt stage: %w", model.ErrStreamIncomplete)
	}
	return prompts, nil
}

// runImages запускает последовательную генерацию изображений.
// Этап изображений стартует ровно один раз за прогон и не падает
// из-за отдельных изображений: сбои заменяются заглушками.
func (o *Orchestrator) runImages(ctx context.Context, run *Result, sink stage.EventSink) error {
	run.State = StateImagesInProgress

	images := stage.NewImages(o.stages, o.cfg.ImagePace, o.logger)
	generated, err := images.Run(ctx, run.Prompts, sink)
	if err != nil {
		return fmt.Errorf("image stage interrupted: %w", err)
	}

	run.Images = generated
	run.State = StateImagesComplete
	return nil
}

// save собирает книгу и передает ее персистентному шлюзу.
func (o *Orchestrator) save(ctx context.Context, run *Result, sink stage.EventSink) error {
	run.State = StateSaving
	if err := sink(sse.Status("Saving your comic book...")); err != nil {
		return err
	}

	// Короткая пауза перед сохранением, чтобы потребитель успел
	// отрисовать последнее изображение.
	if o.cfg.SaveGrace > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(o.cfg.SaveGrace):
		}
	}

	title := run.ChapterName
	if title == "" {
		title = run.Topic
	}
	if runes := []rune(title); len(runes) > 100 {
		title = string(runes[:100])
	}

	storyText := model.ReconstructStory(run.Parts)
	bookID, err := o.saver.SaveCompleteBook(ctx, title, storyText, run.Images, 100, model.BookStatusCompleted)
	if err != nil {
		if errors.Is(err, model.ErrPersistence) {
			return err
		}
		return fmt.Errorf("%w: %v", model.ErrPersistence, err)
	}

	run.BookID = bookID
	return nil
}

// relayRaw передает уже сериализованное событие потребителю без изменений.
func relayRaw(sink stage.EventSink, raw json.RawMessage) error {
	return sink(raw)
}

// streamError превращает событие error в ошибку Go с исходным текстом.
func streamError(raw json.RawMessage) error {
	var ev sse.ErrorEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return fmt.Errorf("%w: malformed error event: %v", model.ErrGenerationFormat, err)
	}
	return errors.New(ev.Message)
}
