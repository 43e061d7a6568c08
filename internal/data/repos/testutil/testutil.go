package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"

	"github.com/yungbote/award-ledger/internal/data/db"
	"github.com/yungbote/award-ledger/internal/pkg/logger"
)

// Logger routes output through the test's log so it only shows on failure.
func Logger(tb testing.TB) *logger.Logger {
	tb.Helper()
	return logger.FromZap(zaptest.NewLogger(tb))
}

// Spans installs a recording tracer provider for the rest of the test and
// puts a no-op provider back on cleanup. Tests using it must not run in
// parallel.
func Spans(tb testing.TB) *tracetest.SpanRecorder {
	tb.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	otel.SetTracerProvider(tp)
	tb.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(noop.NewTracerProvider())
	})
	return sr
}

// SpanNames lists the names of the ended spans in end order.
func SpanNames(sr *tracetest.SpanRecorder) []string {
	var names []string
	for _, s := range sr.Ended() {
		names = append(names, s.Name())
	}
	return names
}

// DB opens a fresh SQLite file in the test's temp dir, migrated to the
// current schema and closed on cleanup.
func DB(tb testing.TB) *gorm.DB {
	tb.Helper()
	svc := SQLite(tb, filepath.Join(tb.TempDir(), "student.db"))
	return svc.DB()
}

func SQLite(tb testing.TB, path string) *db.SQLiteService {
	tb.Helper()
	svc, err := db.NewSQLiteService(path, Logger(tb))
	if err != nil {
		tb.Fatalf("failed to init test db: %v", err)
	}
	tb.Cleanup(func() {
		_ = svc.Close()
	})
	return svc
}

func Tx(tb testing.TB, db *gorm.DB) *gorm.DB {
	tb.Helper()
	tx := db.Begin()
	if tx.Error != nil {
		tb.Fatalf("begin tx: %v", tx.Error)
	}
	tb.Cleanup(func() {
		_ = tx.Rollback().Error
	})
	return tx
}
