package app

import (
	"fmt"
	"os"

	"github.com/yungbote/award-ledger/internal/http"
	httpH "github.com/yungbote/award-ledger/internal/http/handlers"
	"github.com/yungbote/award-ledger/internal/observability"
	"github.com/yungbote/award-ledger/internal/pkg/logger"
	"github.com/yungbote/award-ledger/internal/services"
)

type Handlers struct {
	Health    *httpH.HealthHandler
	Student   *httpH.StudentHandler
	Snapshot  *httpH.SnapshotHandler
	Integrity *httpH.IntegrityHandler
}

func wireHandlers(log *logger.Logger, awards services.AwardService, uploadDir, dataDir string) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:    httpH.NewHealthHandler(dataDirProbe(dataDir)),
		Student:   httpH.NewStudentHandler(awards),
		Snapshot:  httpH.NewSnapshotHandler(awards, uploadDir),
		Integrity: httpH.NewIntegrityHandler(awards),
	}
}

func dataDirProbe(dir string) func() error {
	return func() error {
		fi, err := os.Stat(dir)
		if err != nil {
			return err
		}
		if !fi.IsDir() {
			return fmt.Errorf("%s is not a directory", dir)
		}
		return nil
	}
}

func wireServer(log *logger.Logger, metrics *observability.Metrics, cfg *Config, handlers Handlers) *http.Server {
	serviceName := ""
	if cfg.Tracing.Enabled {
		serviceName = ServiceName
	}
	return http.NewServer(http.RouterConfig{
		Logger:           log,
		Metrics:          metrics,
		CORSOrigins:      cfg.HTTP.CORSOrigins,
		ServiceName:      serviceName,
		HealthHandler:    handlers.Health,
		StudentHandler:   handlers.Student,
		SnapshotHandler:  handlers.Snapshot,
		IntegrityHandler: handlers.Integrity,
	})
}
