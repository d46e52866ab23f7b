package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"
)

// Config определяет конфигурацию сервера комиксов, загружаемую из переменных окружения.
type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	ServerPort  int    `envconfig:"SERVER_PORT" default:"8080"`

	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogEncoding string `envconfig:"LOG_ENCODING" default:"json"`

	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`

	// Текстовая модель (история и промпты изображений).
	TextAPIKey      string        `envconfig:"TEXT_API_KEY" required:"true"`
	TextBaseURL     string        `envconfig:"TEXT_BASE_URL" default:"https://api.x.ai/v1"`
	TextModel       string        `envconfig:"TEXT_MODEL" default:"grok-3-fast"`
	TextTimeout     time.Duration `envconfig:"TEXT_TIMEOUT" default:"120s"`
	TextMaxAttempts int           `envconfig:"TEXT_MAX_ATTEMPTS" default:"3"`

	// Модель генерации изображений.
	ImageAPIKey  string        `envconfig:"IMAGE_API_KEY" required:"true"`
	ImageBaseURL string        `envconfig:"IMAGE_BASE_URL" default:"https://api.openai.com/v1"`
	ImageModel   string        `envconfig:"IMAGE_MODEL" default:"gpt-image-1"`
	ImageSize    string        `envconfig:"IMAGE_SIZE" default:"1024x1536"`
	ImageTimeout time.Duration `envconfig:"IMAGE_TIMEOUT" default:"180s"`

	// Параметры пайплайна.
	StoryParts      int           `envconfig:"STORY_PARTS" default:"3"`
	PromptBatchSize int           `envconfig:"PROMPT_BATCH_SIZE" default:"3"`
	StoryPartDelay  time.Duration `envconfig:"STORY_PART_DELAY" default:"100ms"`
	ImagePace       time.Duration `envconfig:"IMAGE_PACE" default:"800ms"`
	SaveGrace       time.Duration `envconfig:"SAVE_GRACE" default:"2s"`

	// Базовый URL собственных stage-эндпоинтов для оркестратора.
	StageBaseURL string `envconfig:"STAGE_BASE_URL" default:"http://localhost:8080/api"`

	// PostgreSQL.
	DBHost     string `envconfig:"DB_HOST" default:"localhost"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"postgres"`
	DBPassword string `envconfig:"DB_PASSWORD" default:"postgres"`
	DBName     string `envconfig:"DB_NAME" default:"comics"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	DBMaxConns int32  `envconfig:"DB_MAX_CONNS" default:"10"`

	// Redis (кэш чтения книг). Пустой адрес отключает кэш.
	RedisAddr     string        `envconfig:"REDIS_ADDR" default:""`
	RedisPassword string        `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	RedisTTL      time.Duration `envconfig:"REDIS_TTL" default:"5m"`

	// Файловое хранилище изображений.
	StoragePath          string `envconfig:"STORAGE_PATH" default:"./data/book-images"`
	StoragePublicBaseURL string `envconfig:"STORAGE_PUBLIC_BASE_URL" default:"http://localhost:8080/static/book-images"`
}

// Load загружает конфигурацию из переменных окружения.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env config: %w", err)
	}
	if cfg.StoryParts <= 0 {
		return nil, fmt.Errorf("STORY_PARTS must be positive, got %d", cfg.StoryParts)
	}
	if cfg.PromptBatchSize <= 0 {
		return nil, fmt.Errorf("PROMPT_BATCH_SIZE must be positive, got %d", cfg.PromptBatchSize)
	}
	return &cfg, nil
}

// GetDSN возвращает строку подключения к PostgreSQL.
func (c *Config) GetDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

// maskedDSN возвращает DSN с замаскированным паролем для логов.
func (c *Config) maskedDSN() string {
	return fmt.Sprintf("postgres://%s:***@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

// LogSummary пишет сводку конфигурации без секретов.
func (c *Config) LogSummary(log *zap.Logger) {
	log.Info("Configuration loaded",
		zap.String("environment", c.Environment),
		zap.Int("server_port", c.ServerPort),
		zap.String("text_model", c.TextModel),
		zap.String("text_base_url", c.TextBaseURL),
		zap.String("image_model", c.ImageModel),
		zap.String("image_size", c.ImageSize),
		zap.Int("story_parts", c.StoryParts),
		zap.Int("prompt_batch_size", c.PromptBatchSize),
		zap.String("db_dsn", c.maskedDSN()),
		zap.String("redis_addr", c.RedisAddr),
		zap.String("storage_path", c.StoragePath),
		zap.String("stage_base_url", c.StageBaseURL),
	)
}
