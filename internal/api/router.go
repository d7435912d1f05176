package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yinchi/digital-hospitals/internal/config"
	"github.com/yinchi/digital-hospitals/internal/handler"
	"github.com/yinchi/digital-hospitals/internal/middleware"
	"github.com/yinchi/digital-hospitals/internal/service"
)

// SetupRouter wires the HTTP routes. The returned limiter must be stopped
// when the server shuts down.
func SetupRouter(cfg *config.Config, svc *service.BimTaskService) (*gin.Engine, *middleware.SubmitLimiter) {
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

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Runner times API is running",
		})
	})

	limiter := middleware.NewSubmitLimiter(cfg.RateLimit, time.Minute)
	auth := middleware.Auth(cfg.JWTSecret, cfg.AuthEnabled)
	bim := handler.NewBimHandler(svc)

	api := r.Group("/api/v1")
	{
		g := api.Group("/bim")
		{
			g.POST("", auth, middleware.ThrottleSubmissions(limiter), bim.Submit)
			g.GET("/query", bim.Query)
			g.GET("/latest", bim.Latest)
			g.GET("/stats", bim.Summary)
			g.GET("/tasks", bim.ListTasks)
			g.DELETE("/tasks/:id", auth, bim.CancelTask)
			g.POST("/path", auth, bim.Path)
		}
	}

	return r, limiter
}
