package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"comic-server/internal/model"
)

// StageClient — HTTP-клиент stage-эндпоинтов пайплайна.
// Потоковые эндпоинты возвращают тело ответа для чтения SSE-декодером.
type StageClient interface {
	StoryStream(ctx context.Context, topic string) (io.ReadCloser, error)
	ImagePromptsStream(ctx context.Context, batch []model.StoryPart) (io.ReadCloser, error)
	Generate(ctx context.Context, prompt, filename string) (model.ImageResult, error)
}

type stageClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewStageClient создает клиент stage-эндпоинтов.
// У клиента нет собственного таймаута: длительность потоков ограничивает контекст.
func NewStageClient(baseURL string, logger *zap.Logger) (StageClient, error) {
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid stage base URL: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &stageClient{
		baseURL:    baseURL,
		httpClient: &http.Client{},
		logger:     logger.Named("StageClient"),
	}, nil
}

// StoryStream запускает этап истории и возвращает SSE-поток.
func (c *stageClient) StoryStream(ctx context.Context, topic string) (io.ReadCloser, error) {
	return c.openStream(ctx, "/story", map[string]any{"topic": topic})
}

// ImagePromptsStream запускает этап промптов для батча частей и возвращает SSE-поток.
func (c *stageClient) ImagePromptsStream(ctx context.Context, batch []model.StoryPart) (io.ReadCloser, error) {
	return c.openStream(ctx, "/image-prompts", map[string]any{"storyPartsChunk": batch})
}

func (c *stageClient) openStream(ctx context.Context, path string, body map[string]any) (io.ReadCloser, error) {
	streamURL := c.baseURL + path
	log := c.logger.With(zap.String("url", streamURL))

	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("internal error marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, streamURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("internal error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	log.Debug("Opening stage stream")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Error("HTTP request for stage stream failed", zap.Error(err))
		return nil, fmt.Errorf("failed to communicate with stage endpoint: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		log.Warn("Received non-OK status for stage stream", zap.Int("status", resp.StatusCode))
		return nil, fmt.Errorf("received unexpected status %d from stage endpoint", resp.StatusCode)
	}

	return resp.Body, nil
}

// Generate вызывает эндпоинт генерации одного изображения.
func (c *stageClient) Generate(ctx context.Context, prompt, filename string) (model.ImageResult, error) {
	imageURL := c.baseURL + "/comic-image"
	log := c.logger.With(zap.String("url", imageURL))

	bodyBytes, err := json.Marshal(map[string]any{
		"prompt":     prompt,
		"saveToFile": true,
		"filename":   filename,
	})
	if err != nil {
		return model.ImageResult{}, fmt.Errorf("internal error marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, imageURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return model.ImageResult{}, fmt.Errorf("internal error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Error("HTTP request for image generation failed", zap.Error(err))
		return model.ImageResult{}, fmt.Errorf("failed to communicate with image endpoint: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.ImageResult{}, fmt.Errorf("failed to read image endpoint response: %w", err)
	}

	if resp.StatusCode == http.StatusBadGateway ||
		resp.StatusCode == http.StatusServiceUnavailable ||
		resp.StatusCode == http.StatusGatewayTimeout {
		log.Warn("Image endpoint temporarily unavailable", zap.Int("status", resp.StatusCode))
		return model.ImageResult{}, fmt.Errorf("%w: image endpoint returned status %d",
			model.ErrTransientService, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		log.Warn("Received non-OK status for image generation",
			zap.Int("status", resp.StatusCode), zap.ByteString("body", respBody))
		return model.ImageResult{}, fmt.Errorf("received unexpected status %d from image endpoint", resp.StatusCode)
	}

	var result model.ImageResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return model.ImageResult{}, fmt.Errorf("invalid image endpoint response format: %w", err)
	}

	log.Debug("Image generated", zap.Duration("took", time.Since(start)))
	return result, nil
}
