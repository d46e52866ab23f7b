package http

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	ginprometheus "github.com/zsais/go-gin-prometheus"
	"go.uber.org/zap"

	"comic-server/internal/middleware"
)

// RouterConfig — настройки HTTP-роутера.
type RouterConfig struct {
	Environment    string
	AllowedOrigins []string
	StaticDir      string // директория хранилища изображений; пустая отключает раздачу
}

// NewRouter собирает gin-роутер со всеми маршрутами и middleware.
func NewRouter(h *Handler, cfg RouterConfig, logger *zap.Logger) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.ZapLogging(logger))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	prom := ginprometheus.NewPrometheus("gin")
	prom.Use(router)

	router.GET("/health", h.Health)

	if cfg.StaticDir != "" {
		router.Static("/static/book-images", cfg.StaticDir)
	}

	api := router.Group("/api")
	{
		api.POST("/story", h.GenerateStory)
		api.POST("/image-prompts", h.GenerateImagePrompts)
		api.POST("/comic-image", h.GenerateComicImage)

		books := api.Group("/books")
		{
			books.POST("/generate", h.GenerateBook)
			books.GET("", h.ListBooks)
			books.GET("/:id", h.GetBook)
			books.GET("/:id/images", h.GetBookImages)
			books.DELETE("/:id", h.DeleteBook)
		}
	}

	return router
}
