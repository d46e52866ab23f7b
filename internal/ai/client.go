// Package ai содержит клиенты текстовой и графической моделей.
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pkoukk/tiktoken-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
)

var log = zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger()

var (
	aiRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "comic_ai_requests_total",
			Help: "Total number of AI API requests, partitioned by kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)
	aiRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "comic_ai_request_duration_seconds",
			Help:    "Duration of AI API requests.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		},
		[]string{"kind"},
	)
	aiPromptTokens = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "comic_ai_prompt_tokens_total",
			Help: "Estimated number of prompt tokens sent to the text model.",
		},
	)
)

// TextConfig содержит конфигурацию клиента текстовой модели.
type TextConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Timeout     time.Duration
	MaxAttempts int
}

// TextClient вызывает текстовую модель в JSON-режиме с повторами.
type TextClient struct {
	client      *openai.Client
	model       string
	timeout     time.Duration
	maxAttempts int
}

// NewTextClient создает клиент текстовой модели.
func NewTextClient(cfg TextConfig) (*TextClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("text model API key is not set")
	}
	if cfg.Model == "" {
		cfg.Model = "grok-3-fast"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &TextClient{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       cfg.Model,
		timeout:     cfg.Timeout,
		maxAttempts: cfg.MaxAttempts,
	}, nil
}

// GenerateJSON отправляет запрос в JSON-режиме и возвращает текст ответа.
// Невалидный JSON в ответе считается неудачной попыткой и повторяется.
func (c *TextClient) GenerateJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	aiPromptTokens.Add(float64(estimateTokens(c.model, systemPrompt) + estimateTokens(c.model, userPrompt)))

	attempts := 0
	for attempts < c.maxAttempts {
		attempts++

		log.Debug().Str("model", c.model).Int("attempt", attempts).Msg("Sending text generation request")

		start := time.Now()
		resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: c.model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: userPrompt},
			},
			Temperature: 0.7,
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
		})
		aiRequestDuration.WithLabelValues("text").Observe(time.Since(start).Seconds())

		if err != nil {
			log.Error().Err(err).Int("attempt", attempts).Msg("Text model request failed")
			aiRequestsTotal.WithLabelValues("text", "error").Inc()
			if ctx.Err() != nil || attempts >= c.maxAttempts {
				return "", fmt.Errorf("text generation failed after %d attempts: %w", attempts, err)
			}
			time.Sleep(time.Duration(attempts) * time.Second)
			continue
		}

		if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
			log.Warn().Int("attempt", attempts).Msg("Empty response from text model")
			aiRequestsTotal.WithLabelValues("text", "empty").Inc()
			if attempts >= c.maxAttempts {
				return "", errors.New("empty response from text model after retries")
			}
			time.Sleep(time.Duration(attempts) * time.Second)
			continue
		}

		content := resp.Choices[0].Message.Content

		var js json.RawMessage
		if json.Unmarshal([]byte(content), &js) != nil {
			log.Warn().Int("attempt", attempts).Msg("Text model response is not valid JSON, retrying")
			aiRequestsTotal.WithLabelValues("text", "invalid_json").Inc()
			if attempts >= c.maxAttempts {
				return "", fmt.Errorf("text model response is not valid JSON after %d attempts", attempts)
			}
			time.Sleep(time.Duration(attempts) * time.Second)
			continue
		}

		aiRequestsTotal.WithLabelValues("text", "success").Inc()
		return content, nil
	}

	return "", errors.New("failed to get a valid response from the text model")
}

// estimateTokens оценивает число токенов промпта для метрик.
// Для неизвестных моделей используется кодировка cl100k_base.
func estimateTokens(model, text string) int {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return 0
		}
	}
	return len(enc.Encode(text, nil, nil))
}
