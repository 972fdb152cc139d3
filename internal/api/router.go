package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stridelab/runtracker-go/internal/config"
	"github.com/stridelab/runtracker-go/internal/handler"
	"github.com/stridelab/runtracker-go/internal/middleware"
)

// SetupRouter wires the HTTP control surface
func SetupRouter(cfg *config.Config, sessions *handler.SessionHandler, activities *handler.ActivityHandler, auth *handler.AuthHandler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger())

	// CORS for the mobile shell's embedded webview
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
			"message": "Run tracker core is running",
		})
	})

	api := r.Group("/api/v1")
	// Headroom for several 1 Hz sample streams from a single device
	api.Use(middleware.RateLimit(600, time.Minute))
	{
		api.POST("/auth/token", auth.Token)

		sessionGroup := api.Group("/session")
		sessionGroup.Use(middleware.Auth(cfg.JWTSecret))
		{
			sessionGroup.GET("", sessions.Live)
			sessionGroup.POST("/prepare", sessions.Prepare)
			sessionGroup.POST("/start", sessions.Start)
			sessionGroup.POST("/pause", sessions.Pause)
			sessionGroup.POST("/resume", sessions.Resume)
			sessionGroup.POST("/end", sessions.End)
			sessionGroup.POST("/discard", sessions.Discard)

			// Sample ingestion from the mobile shell's sensor callbacks
			sessionGroup.POST("/gps", sessions.IngestGPS)
			sessionGroup.POST("/sensor", sessions.IngestSensor)
			sessionGroup.POST("/accelerometer", sessions.IngestAccelerometer)
			sessionGroup.POST("/barometer", sessions.IngestBarometer)
			sessionGroup.POST("/steps", sessions.IngestSteps)
		}

		activityGroup := api.Group("/activities")
		{
			activityGroup.GET("", activities.List)
			activityGroup.GET("/:id", activities.Get)
			activityGroup.GET("/:id/readings", activities.GetReadings)
			activityGroup.GET("/:id/quality", activities.Quality)
		}
	}

	return r
}
