package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jengzang/tour-geocompare/internal/config"
	"github.com/jengzang/tour-geocompare/internal/handler"
	"github.com/jengzang/tour-geocompare/internal/middleware"
)

// Handlers groups the HTTP handlers mounted by SetupRouter
type Handlers struct {
	Tour       *handler.TourHandler
	GeoCompare *handler.GeoCompareHandler
}

// SetupRouter 设置路由
func SetupRouter(cfg *config.Config, h Handlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.Logger())

	// CORS 中间件
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Tour geo compare API is running",
		})
	})

	// API 路由组
	api := r.Group("/api/v1")
	if cfg.Auth.Enabled {
		api.Use(middleware.Auth(cfg.Auth.JWTSecret))
	}
	{
		tours := api.Group("/tours")
		{
			tours.POST("", h.Tour.CreateTour)
			tours.GET("/:id", h.Tour.GetTour)
			tours.DELETE("/:id", h.Tour.DeleteTour)
		}

		limiter := middleware.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window())
		compare := api.Group("/geocompare")
		{
			compare.POST("", middleware.RateLimit(limiter), h.GeoCompare.Start)
			compare.GET("/:id", h.GeoCompare.Status)
			compare.GET("/:id/results", h.GeoCompare.Results)
			compare.POST("/:id/cancel", h.GeoCompare.Cancel)
			compare.DELETE("/:id", h.GeoCompare.Close)
		}
	}

	return r
}
