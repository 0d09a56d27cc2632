package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/waste3d/coursemarket-api/internal/metrics"
	"github.com/waste3d/coursemarket-api/internal/middleware"
)

type RouterConfig struct {
	AllowedOrigins []string
	Sessions       middleware.SessionVerifier
	Limiter        *middleware.RateLimiter // nil - без ограничений
	PurchaseLimit  int                     // запросов на покупку в минуту на юзера
	Metrics        *metrics.Metrics
	Ready          func(ctx context.Context) error
}

type Handlers struct {
	Purchase *PurchaseHandler
	Progress *ProgressHandler
	User     *UserHandler
	Course   *CourseHandler
	Webhook  *WebhookHandler
}

func NewRouter(cfg RouterConfig, h Handlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID(), middleware.Logging(cfg.Metrics))

	config := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) == 0 {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = cfg.AllowedOrigins
		config.AllowCredentials = true
	}
	config.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	config.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	r.Use(cors.New(config))

	limit := func(key string, n int) gin.HandlerFunc {
		if cfg.Limiter == nil {
			return func(c *gin.Context) { c.Next() }
		}
		return cfg.Limiter.Limit(key, n, time.Minute)
	}

	r.GET("/health", health(cfg.Ready))
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	// провайдеры подписывают тело, сессии тут нет
	r.POST("/stripe", h.Webhook.Stripe)
	r.POST("/clerk", h.Webhook.Clerk)

	api := r.Group("/api")
	{
		course := api.Group("/course")
		{
			course.GET("/all", h.Course.List)
			course.GET("/:id", h.Course.GetOne)
		}

		user := api.Group("/user")
		user.Use(middleware.AuthMiddleware(cfg.Sessions))
		{
			user.GET("/data", h.User.GetUserData)
			user.GET("/enrolled-courses", h.User.EnrolledCourses)

			user.POST("/create-payment-intent", limit("purchase", cfg.PurchaseLimit), h.Purchase.CreatePaymentIntent)
			user.POST("/purchase", limit("purchase", cfg.PurchaseLimit), h.Purchase.Purchase)
			user.GET("/purchases/:id", h.Purchase.GetPurchase)
			user.POST("/purchases/:id/cancel", h.Purchase.CancelPurchase)

			user.POST("/add-progress", h.Progress.AddProgress)
			user.GET("/get-progress/:courseId", h.Progress.GetProgress)
		}
	}

	return r
}

func health(ready func(ctx context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if ready != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := ready(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
