package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/cms-timetable/internal/middleware"
	"github.com/noah-isme/cms-timetable/internal/service"
	appErrors "github.com/noah-isme/cms-timetable/pkg/errors"
	"github.com/noah-isme/cms-timetable/pkg/logger"
	corsmiddleware "github.com/noah-isme/cms-timetable/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/cms-timetable/pkg/middleware/requestid"
	"github.com/noah-isme/cms-timetable/pkg/response"
)

// RouterConfig holds the HTTP surface settings.
type RouterConfig struct {
	APIPrefix      string
	AllowedOrigins []string
	Docs           bool
}

// Handlers groups the endpoint handlers mounted by NewRouter. Export may be
// nil when exports are disabled.
type Handlers struct {
	Auth      *AuthHandler
	Timetable *TimetableHandler
	Export    *ExportHandler
	Profile   *ProfileHandler
	Metrics   *MetricsHandler
}

// NewRouter builds the gin engine with the middleware chain and every route.
func NewRouter(cfg RouterConfig, h Handlers, tokens middleware.TokenValidator, metrics *service.MetricsService, logr *zap.Logger) *gin.Engine {
	if logr == nil {
		logr = zap.NewNop()
	}
	prefix := "/" + strings.Trim(cfg.APIPrefix, "/")
	if prefix == "/" {
		prefix = "/api/v1"
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.NoRoute(func(c *gin.Context) {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "route not found"))
	})

	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)
	if cfg.Docs {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(prefix)
	api.POST("/auth/login", h.Auth.Login)
	if h.Export != nil {
		api.GET("/export/:token", h.Export.Download)
	}

	secured := api.Group("")
	secured.Use(middleware.JWT(tokens))
	{
		timetable := secured.Group("/timetable")
		timetable.GET("", h.Timetable.Get)
		timetable.POST("/refresh", middleware.Audit(logr, "timetable.refresh"), h.Timetable.Refresh)
		timetable.GET("/today", h.Timetable.Today)
		timetable.GET("/occurrences", h.Timetable.Occurrences)
		timetable.GET("/calendar.ics", h.Timetable.Calendar)
		timetable.POST("/exports", middleware.Audit(logr, "timetable.export"), h.Timetable.Export)
		timetable.GET("/snapshots", h.Timetable.Snapshots)

		secured.GET("/profile", h.Profile.Profile)
		secured.GET("/assemblies", h.Profile.Assemblies)
		secured.GET("/system/metrics", h.Metrics.System)
	}

	r.HandleMethodNotAllowed = true
	r.NoMethod(func(c *gin.Context) {
		response.Error(c, appErrors.New("METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed, "method not allowed"))
	})
	return r
}
