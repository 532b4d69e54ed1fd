package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Freeeeeet/timetable/internal/service"
)

const requestIDHeader = "X-Request-ID"

// NewRouter собирает gin engine со всеми маршрутами расписания
func NewRouter(scheduleService *service.ScheduleService, logger *zap.Logger) *gin.Engine {
	useJSONFieldNames()

	r := gin.New()
	r.Use(gin.Recovery(), requestID(), requestLogger(logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	h := NewScheduleHandler(scheduleService, logger)
	schedule := r.Group("/schedule")
	{
		schedule.POST("", h.Create)
		schedule.GET("", h.List)
		schedule.POST("/check", h.Check)
		schedule.GET("/image", h.Image)
		schedule.GET("/audit", h.Audit)
		schedule.GET("/:id", h.Get)
		schedule.PUT("/:id", h.Update)
		schedule.DELETE("/:id", h.Delete)
	}

	return r
}

// requestID берёт X-Request-ID клиента или генерирует новый
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("request_id", c.GetString("request_id")),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			logger.Error("HTTP request failed", fields...)
			return
		}
		logger.Debug("HTTP request", fields...)
	}
}
