package ai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"comic-server/internal/model"
)

// ImageConfig содержит конфигурацию клиента генерации изображений.
type ImageConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Size    string
	Timeout time.Duration
}

// ImageClient вызывает модель генерации изображений и возвращает base64 PNG.
type ImageClient struct {
	client     *openai.Client
	httpClient *http.Client
	model      string
	size       string
	timeout    time.Duration
}

// NewImageClient создает клиент графической модели.
func NewImageClient(cfg ImageConfig) (*ImageClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("image model API key is not set")
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-image-1"
	}
	if cfg.Size == "" {
		cfg.Size = "1024x1536"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 180 * time.Second
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &ImageClient{
		client:     openai.NewClientWithConfig(clientConfig),
		httpClient: &http.Client{Timeout: 60 * time.Second},
		model:      cfg.Model,
		size:       cfg.Size,
		timeout:    cfg.Timeout,
	}, nil
}

// GenerateImage генерирует одно изображение по промпту и возвращает его base64.
// Если модель вернула URL вместо содержимого, изображение скачивается и кодируется.
func (c *ImageClient) GenerateImage(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	log.Info().Str("model", c.model).Str("size", c.size).Msg("Sending image generation request")

	start := time.Now()
	resp, err := c.client.CreateImage(ctx, openai.ImageRequest{
		Model:  c.model,
		Prompt: prompt,
		N:      1,
		Size:   c.size,
	})
	aiRequestDuration.WithLabelValues("image").Observe(time.Since(start).Seconds())

	if err != nil {
		aiRequestsTotal.WithLabelValues("image", "error").Inc()
		log.Error().Err(err).Msg("Image model request failed")
		if IsTransient(err) {
			return "", fmt.Errorf("%w: %v", model.ErrTransientService, err)
		}
		return "", fmt.Errorf("image generation failed: %w", err)
	}

	if len(resp.Data) == 0 {
		aiRequestsTotal.WithLabelValues("image", "empty").Inc()
		return "", errors.New("empty response from image model")
	}

	data := resp.Data[0]
	if data.B64JSON != "" {
		aiRequestsTotal.WithLabelValues("image", "success").Inc()
		return data.B64JSON, nil
	}
	if data.URL != "" {
		encoded, err := c.fetchAndEncode(ctx, data.URL)
		if err != nil {
			aiRequestsTotal.WithLabelValues("image", "fetch_error").Inc()
			return "", err
		}
		aiRequestsTotal.WithLabelValues("image", "success").Inc()
		return encoded, nil
	}

	aiRequestsTotal.WithLabelValues("image", "empty").Inc()
	return "", errors.New("image model returned neither content nor URL")
}

// fetchAndEncode скачивает изображение по URL и кодирует его в base64.
func (c *ImageClient) fetchAndEncode(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build image download request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download generated image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("image download returned status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read downloaded image: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// IsTransient сообщает, указывает ли ошибка на временную недоступность
// AI-сервиса (шлюзовые статусы 502/503/504 и их текстовые варианты).
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, model.ErrTransientService) {
		return true
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "502") ||
		strings.Contains(msg, "bad gateway") ||
		strings.Contains(msg, "service unavailable")
}
