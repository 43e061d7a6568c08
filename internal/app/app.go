package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/award-ledger/internal/data/summary"
	"github.com/yungbote/award-ledger/internal/http"
	"github.com/yungbote/award-ledger/internal/observability"
	"github.com/yungbote/award-ledger/internal/pkg/logger"
	"github.com/yungbote/award-ledger/internal/services"
	"github.com/yungbote/award-ledger/internal/snapshot"
	"github.com/yungbote/award-ledger/internal/store"
)

type App struct {
	Log     *logger.Logger
	Cfg     *Config
	Metrics *observability.Metrics
	Store   *store.Store
	Awards  services.AwardService
	Server  *http.Server

	shutdownTracing func(context.Context) error
}

// ServiceName names the process in traces and the otelgin middleware.
const ServiceName = "award-ledger"

// New opens storage, reloads the index from the workbook and wires the
// service and HTTP layers. It does not start serving.
func New(ctx context.Context, cfg *Config) (*App, error) {
	log, err := logger.New(cfg.Log.Mode, cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	a, err := newWithLogger(ctx, cfg, log)
	if err != nil {
		log.Sync()
		return nil, err
	}
	return a, nil
}

func newWithLogger(ctx context.Context, cfg *Config, log *logger.Logger) (*App, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	metrics := observability.NewMetrics()
	shutdownTracing := observability.InitTracing(ctx, log, observability.TracingConfig{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: ServiceName,
		Endpoint:    cfg.Tracing.Endpoint,
		Insecure:    cfg.Tracing.Insecure,
		SampleRatio: cfg.Tracing.SampleRatio,
	})

	log.Info("Opening record store...", "records", cfg.Files.Records, "db", cfg.Files.Database)
	st, err := store.New(store.Options{
		TabularPath: cfg.Files.Records,
		DBPath:      cfg.Files.Database,
		Logger:      log,
		Metrics:     metrics,
	})
	if err != nil {
		_ = shutdownTracing(ctx)
		return nil, fmt.Errorf("init store: %w", err)
	}
	if err := st.Reload(); err != nil {
		_ = st.Close()
		_ = shutdownTracing(ctx)
		return nil, fmt.Errorf("reload records: %w", err)
	}

	sum := summary.NewLoader(cfg.Files.Summary, log)
	if cfg.Startup.InitTemplates {
		if _, err := sum.EnsureTemplate(); err != nil {
			log.Warn("Could not create summary template", "error", err)
		}
	}

	codec := snapshot.NewCodec()
	awards := services.NewAwardService(services.AwardServiceOptions{
		Store:   st,
		Summary: sum,
		Codec:   codec,
		Rebuilder: snapshot.NewRebuilder(snapshot.RebuilderOptions{
			Codec:    codec,
			Target:   st,
			Logger:   log,
			Metrics:  metrics,
			Upstream: []string{cfg.Files.RawSource, cfg.Files.Summary},
		}),
		Logger:  log,
		Metrics: metrics,
	})

	if cfg.Startup.SeedFromSummary {
		if _, err := awards.SeedFromSummary(ctx); err != nil {
			log.Warn("Seeding from summary failed", "error", err)
		}
	} else if _, err := awards.LoadSummary(ctx); err != nil {
		log.Warn("Loading summary failed", "error", err)
	}
	if _, err := awards.Integrity(ctx); err != nil {
		log.Warn("Startup integrity check failed", "error", err)
	}

	if strings.EqualFold(cfg.Log.Mode, "production") {
		gin.SetMode(gin.ReleaseMode)
	}
	handlers := wireHandlers(log, awards, "", cfg.DataDir)

	return &App{
		Log:     log,
		Cfg:     cfg,
		Metrics: metrics,
		Store:   st,
		Awards:  awards,
		Server:  wireServer(log, metrics, cfg, handlers),

		shutdownTracing: shutdownTracing,
	}, nil
}

// Run serves HTTP until ctx is cancelled, then flushes the workbook once
// the server has drained.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	served := make(chan struct{})
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(served)
		a.Log.Info("HTTP server listening", "addr", a.Cfg.HTTP.Addr)
		return a.Server.Serve(gctx, a.Cfg.HTTP.Addr, a.Cfg.HTTP.ShutdownGrace())
	})
	g.Go(func() error {
		<-served
		if err := a.Awards.Flush(context.Background()); err != nil {
			a.Log.Warn("Final workbook flush failed", "error", err)
		}
		return nil
	})
	return g.Wait()
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil && a.Log != nil {
			a.Log.Warn("Closing store failed", "error", err)
		}
	}
	if a.shutdownTracing != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.shutdownTracing(ctx); err != nil && a.Log != nil {
			a.Log.Warn("Flushing traces failed", "error", err)
		}
		cancel()
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
