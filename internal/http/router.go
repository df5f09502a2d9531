package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/markbook-backend/internal/http/handlers"
	httpMW "github.com/yungbote/markbook-backend/internal/http/middleware"
	"github.com/yungbote/markbook-backend/internal/http/response"
	"github.com/yungbote/markbook-backend/internal/observability"
	"github.com/yungbote/markbook-backend/internal/platform/logger"
)

const basePath = "/api/markbook"

type RouterConfig struct {
	Log            *logger.Logger
	Metrics        *observability.Metrics
	ServiceName    string
	AllowedOrigins []string

	SnapshotHandler *httpH.SnapshotHandler
	MarkbookHandler *httpH.MarkbookHandler
	HealthHandler   *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.NoMethod(response.MethodNotAllowed)

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "markbook"
	}
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(serviceName))
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.AllowedOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
		r.GET("/readyz", cfg.HealthHandler.Ready)
	}

	api := r.Group(basePath)
	{
		// Remote persistence
		if cfg.SnapshotHandler != nil {
			api.POST("/save", cfg.SnapshotHandler.Save)
			api.GET("/load", cfg.SnapshotHandler.Load)
			api.DELETE("/delete", cfg.SnapshotHandler.Delete)
			api.GET("/blob/*pathname", cfg.SnapshotHandler.Blob)
		}

		// Derived views
		if cfg.MarkbookHandler != nil {
			api.GET("/settings", cfg.MarkbookHandler.Settings)
			api.POST("/overview", cfg.MarkbookHandler.Overview)
			api.POST("/export/xlsx", cfg.MarkbookHandler.ExportWorkbook)
			api.POST("/import/xlsx", cfg.MarkbookHandler.ImportRoster)
			api.POST("/chart", cfg.MarkbookHandler.StudentChart)
		}
	}

	return r
}
