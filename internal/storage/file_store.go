// Package storage реализует файловое хранилище изображений с публичными URL.
package storage

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"comic-server/internal/model"
)

// FileStore сохраняет изображения на диск и строит публичные URL,
// по которым их раздает HTTP-сервер.
type FileStore struct {
	basePath      string
	publicBaseURL string
	logger        *zap.Logger
}

// NewFileStore создает хранилище и директорию под ним.
func NewFileStore(basePath, publicBaseURL string, logger *zap.Logger) (*FileStore, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory %s: %w", basePath, err)
	}
	return &FileStore{
		basePath:      basePath,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		logger:        logger.Named("FileStore"),
	}, nil
}

// SaveBase64 декодирует base64-изображение и сохраняет его в поддиректорию dir.
// Возвращает публичный URL сохраненного файла.
func (s *FileStore) SaveBase64(ctx context.Context, dir, fileName, imageBase64 string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	raw, err := base64.StdEncoding.DecodeString(imageBase64)
	if err != nil {
		return "", fmt.Errorf("%w: invalid base64 content: %v", model.ErrUpload, err)
	}

	targetDir := s.basePath
	if dir != "" {
		targetDir = filepath.Join(s.basePath, dir)
		if err := os.MkdirAll(targetDir, 0o755); err != nil {
			return "", fmt.Errorf("%w: failed to create directory: %v", model.ErrUpload, err)
		}
	}

	fullPath := filepath.Join(targetDir, fileName)
	if err := os.WriteFile(fullPath, raw, 0o644); err != nil {
		return "", fmt.Errorf("%w: failed to write file: %v", model.ErrUpload, err)
	}

	publicURL := s.publicBaseURL
	if dir != "" {
		publicURL += "/" + dir
	}
	publicURL += "/" + fileName

	s.logger.Info("Image saved to storage",
		zap.String("path", fullPath),
		zap.Int("size_bytes", len(raw)),
		zap.String("public_url", publicURL))
	return publicURL, nil
}

// BasePath возвращает корневую директорию хранилища.
func (s *FileStore) BasePath() string {
	return s.basePath
}
