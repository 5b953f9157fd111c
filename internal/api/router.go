package api

import (
	"regexp"
	"time"

	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/d60-Lab/ndrop/config"
	_ "github.com/d60-Lab/ndrop/docs"
	"github.com/d60-Lab/ndrop/internal/api/handler"
	"github.com/d60-Lab/ndrop/internal/api/middleware"
	"github.com/d60-Lab/ndrop/pkg/logger"
)

var joinCodePattern = regexp.MustCompile(`^[2-9A-HJ-NP-Z]{6}$`)

// NewRouter 装配中间件与路由
func NewRouter(cfg *config.Config, h *handler.Handler) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("joincode", func(fl validator.FieldLevel) bool {
			return joinCodePattern.MatchString(fl.Field().String())
		})
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	r.Use(otelgin.Middleware(cfg.Trace.ServiceName))
	r.Use(gzip.Gzip(gzip.DefaultCompression))
	r.Use(requestLog())
	r.Use(middleware.RateLimit(cfg.Server.RateLimitQPS, cfg.Server.RateLimitBurst))

	r.GET("/healthz", func(c *gin.Context) { c.JSON(200, gin.H{"status": "ok"}) })
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	v1 := r.Group("/api/v1")
	{
		v1.POST("/auth/register", h.Register)
		v1.POST("/auth/login", h.Login)
	}

	auth := v1.Group("", middleware.Auth(cfg.JWT.Secret))
	{
		auth.GET("/users/me", h.Me)
		auth.PUT("/users/me", h.UpdateProfile)

		auth.POST("/events", h.CreateEvent)
		auth.GET("/events", h.ListEvents)
		auth.GET("/events/:event_id", h.GetEvent)
		auth.POST("/events/join", h.JoinEvent)
		auth.DELETE("/events/:event_id/participation", h.LeaveEvent)
		auth.GET("/events/:event_id/participants", h.ListParticipants)
		auth.GET("/events/:event_id/slots", h.ListSlots)

		auth.POST("/events/:event_id/meetings", h.RequestMeeting)
		auth.GET("/events/:event_id/meetings", h.ListMeetings)
		auth.PATCH("/events/:event_id/meetings/:meeting_id", h.TransitionMeeting)
		auth.POST("/events/:event_id/meetings/:meeting_id/messages", h.PostMeetingMessage)
		auth.GET("/events/:event_id/meetings/:meeting_id/messages", h.ListMeetingMessages)

		auth.GET("/events/:event_id/recommendations", h.MyRecommendations)

		auth.GET("/notifications", h.ListNotifications)
		auth.POST("/notifications/:id/read", h.MarkNotificationRead)
	}

	admin := auth.Group("/admin", middleware.RequireAdmin())
	{
		admin.POST("/events/:event_id/matching/run", h.RunMatching)
		admin.GET("/events/:event_id/matching", h.LatestMatchingBatch)
	}
	// 时段维护同样仅限管理员
	auth.POST("/events/:event_id/slots", middleware.RequireAdmin(), h.AddSlots)

	return r
}

func requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
