package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/award-ledger/internal/http/handlers"
	httpMW "github.com/yungbote/award-ledger/internal/http/middleware"
	"github.com/yungbote/award-ledger/internal/observability"
	"github.com/yungbote/award-ledger/internal/pkg/logger"
)

type RouterConfig struct {
	Logger      *logger.Logger
	Metrics     *observability.Metrics
	CORSOrigins []string
	// ServiceName enables otelgin request spans when non-empty.
	ServiceName string

	StudentHandler   *httpH.StudentHandler
	SnapshotHandler  *httpH.SnapshotHandler
	IntegrityHandler *httpH.IntegrityHandler

	HealthHandler *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
		r.Use(httpMW.AttachTraceContext())
	}
	r.Use(httpMW.AttachRequestContext())
	r.Use(httpMW.RequestLogger(cfg.Logger))
	r.Use(httpMW.Metrics(cfg.Metrics, "/metrics"))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	// Metrics
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	api := r.Group("/api")
	{
		// Students
		if cfg.StudentHandler != nil {
			api.GET("/students", cfg.StudentHandler.ListStudents)
			api.GET("/students/:id", cfg.StudentHandler.GetStudent)
			api.GET("/students/:id/progress", cfg.StudentHandler.GetProgress)
			api.POST("/students/:id/awards/:slot/classify", cfg.StudentHandler.Classify)
		}

		// Snapshot
		if cfg.SnapshotHandler != nil {
			api.GET("/snapshot", cfg.SnapshotHandler.Download)
			api.POST("/snapshot/rebuild", cfg.SnapshotHandler.Rebuild)
			api.POST("/snapshot/import", cfg.SnapshotHandler.Import)
		}

		// Integrity
		if cfg.IntegrityHandler != nil {
			api.GET("/integrity", cfg.IntegrityHandler.Check)
		}
	}

	return r
}
