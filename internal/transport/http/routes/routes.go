package routes

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/arklim/account-auth/internal/infra/config"
	"github.com/arklim/account-auth/internal/transport/http/handlers"
	"github.com/arklim/account-auth/internal/transport/http/middleware"
	"github.com/arklim/account-auth/internal/usecase"
)

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config  *config.AppConfig
	Logger  *zap.Logger
	Auth    *usecase.AuthService
	Metrics *middleware.HTTPMetrics
	// Gatherer backs /metrics; prometheus.DefaultGatherer when nil.
	Gatherer prometheus.Gatherer
	// Readiness maps dependency names to the probes run by /readyz.
	Readiness map[string]func(ctx context.Context) error
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	if deps.Config != nil && deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.EnrichContext())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))
	r.Use(deps.Metrics.Handler())

	healthOptions := make([]handlers.HealthOption, 0, len(deps.Readiness))
	for name, check := range deps.Readiness {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck(name, check))
	}
	healthHandler := handlers.NewHealthHandler(healthOptions...)

	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Readiness)

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	api := r.Group("/api/v1")
	{
		api.POST("/validator/password", handlers.NewPasswordHandler().Strength)

		if deps.Auth == nil {
			api.Any("/users/*path", unavailable)
			api.Any("/auth/*path", unavailable)
			return r
		}

		handlers.NewAuthHandler(deps.Auth).RegisterRoutes(api.Group("/auth"))

		userGroup := api.Group("/users")
		handlers.NewRegistrationHandler(deps.Auth).RegisterRoutes(userGroup)
		handlers.NewUserHandler(deps.Auth).RegisterRoutes(userGroup)
	}

	return r
}

func unavailable(c *gin.Context) {
	c.JSON(http.StatusServiceUnavailable, handlers.NewErrorResponse(c, "auth service not configured"))
}
