// Package store owns the authoritative in-memory index of award records and
// mirrors every change into two backends: the tabular workbook (read back on
// restart) and the SQLite students table (write-through backup, never read
// into the index).
//
// Callers must serialize mutations; the store only guards the workbook
// read-modify-write and the bulk load sequence.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.opentelemetry.io/otel/attribute"

	"github.com/yungbote/award-ledger/internal/data/db"
	"github.com/yungbote/award-ledger/internal/data/repos/students"
	"github.com/yungbote/award-ledger/internal/data/tabular"
	"github.com/yungbote/award-ledger/internal/domain"
	"github.com/yungbote/award-ledger/internal/observability"
	"github.com/yungbote/award-ledger/internal/pkg/dbctx"
	apperr "github.com/yungbote/award-ledger/internal/pkg/errors"
	"github.com/yungbote/award-ledger/internal/pkg/logger"
)

type Options struct {
	TabularPath string
	DBPath      string
	Logger      *logger.Logger
	Metrics     *observability.Metrics
}

type Store struct {
	index map[int64]*domain.AwardRecord

	tabular *tabular.File
	dbPath  string
	sqlite  *db.SQLiteService
	repo    students.StudentRepo

	log     *logger.Logger
	metrics *observability.Metrics

	fileMu sync.Mutex
}

// New opens the relational store and makes sure a workbook exists. The
// index starts empty; call Reload to populate it from the workbook.
func New(opts Options) (*Store, error) {
	baseLog := opts.Logger
	if baseLog == nil {
		baseLog = logger.Nop()
	}
	s := &Store{
		index:   make(map[int64]*domain.AwardRecord),
		tabular: tabular.New(opts.TabularPath, baseLog),
		dbPath:  opts.DBPath,
		log:     baseLog.With("component", "RecordStore"),
		metrics: opts.Metrics,
	}
	if err := s.openRelational(); err != nil {
		return nil, err
	}
	if !s.tabular.Exists() {
		if err := s.PersistAll(); err != nil {
			s.log.Warn("Could not create workbook at startup", "error", err)
		}
	}
	return s, nil
}

func (s *Store) openRelational() error {
	svc, err := db.NewSQLiteService(s.dbPath, s.log)
	if err != nil {
		return &BackendError{Backend: BackendSQLite, Op: "open", Err: err}
	}
	s.sqlite = svc
	s.repo = students.NewStudentRepo(svc.DB(), s.log)
	return nil
}

func (s *Store) TabularPath() string { return s.tabular.Path() }
func (s *Store) DBPath() string      { return s.dbPath }

// GetOrCreate returns the record for id, creating an empty one when absent.
// name and className only apply on creation; an existing record keeps the
// values it was created with.
func (s *Store) GetOrCreate(id int64, name, className string) (*domain.AwardRecord, bool) {
	if rec, ok := s.index[id]; ok {
		return rec, false
	}
	rec := domain.NewAwardRecord(id, name, className)
	s.index[id] = rec
	s.metrics.SetRecords(len(s.index))
	return rec, true
}

func (s *Store) Get(id int64) (*domain.AwardRecord, error) {
	rec, ok := s.index[id]
	if !ok {
		return nil, fmt.Errorf("student %d: %w", id, apperr.ErrNotFound)
	}
	return rec, nil
}

// List returns the indexed records ordered by student id.
func (s *Store) List() []*domain.AwardRecord {
	out := make([]*domain.AwardRecord, 0, len(s.index))
	for _, rec := range s.index {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StudentID < out[j].StudentID })
	return out
}

func (s *Store) Len() int { return len(s.index) }

// Persist writes rec's current state to the relational row and to its
// workbook row. Failures are logged and returned in the result; the index
// is never rolled back, so the next Persist retries with current data.
func (s *Store) Persist(ctx context.Context, rec *domain.AwardRecord) PersistResult {
	ctx, span := observability.StartSpan(ctx, "store.persist", attribute.Int64("student_id", rec.StudentID))
	res := PersistResult{Relational: s.writeRelational(ctx, rec)}

	s.fileMu.Lock()
	res.Tabular = s.writeTabularLocked(rec)
	s.fileMu.Unlock()

	span.SetAttributes(
		attribute.Bool("persist.sqlite_ok", res.Relational == nil),
		attribute.Bool("persist.xlsx_ok", res.Tabular == nil),
	)
	observability.EndSpan(span, res.Err())
	return res
}

// PersistAll rewrites the whole workbook from the index.
func (s *Store) PersistAll() error {
	s.fileMu.Lock()
	defer s.fileMu.Unlock()
	return s.persistAllLocked()
}

// Reload replaces the index with the workbook's rows. The relational table
// is never consulted. A missing workbook leaves the index as it is; a
// workbook that cannot be read returns an error and also leaves it intact.
func (s *Store) Reload() error {
	s.fileMu.Lock()
	defer s.fileMu.Unlock()

	recs, err := s.tabular.ReadAll()
	if errors.Is(err, tabular.ErrMissing) {
		s.log.Warn("Workbook missing; nothing to reload", "path", s.tabular.Path())
		return nil
	}
	if err != nil {
		berr := &BackendError{Backend: BackendXLSX, Op: "reload", Err: err}
		s.log.Error("Reload from workbook failed", "op", "reload", "backend", BackendXLSX, "error", err)
		return berr
	}

	next := make(map[int64]*domain.AwardRecord, len(recs))
	for _, rec := range recs {
		if _, dup := next[rec.StudentID]; dup {
			s.log.Warn("Duplicate student row in workbook; later row wins", "student_id", rec.StudentID)
		}
		next[rec.StudentID] = rec
	}
	s.index = next
	s.metrics.SetRecords(len(s.index))
	s.log.Info("Reloaded index from workbook", "records", len(next))
	return nil
}

// ClearAndReinitialize empties the index, deletes the SQLite file and the
// workbook, and recreates both with empty contents.
func (s *Store) ClearAndReinitialize(ctx context.Context) (err error) {
	_, span := observability.StartSpan(ctx, "store.clear")
	defer func() { observability.EndSpan(span, err) }()

	s.fileMu.Lock()
	defer s.fileMu.Unlock()

	s.index = make(map[int64]*domain.AwardRecord)
	s.metrics.SetRecords(0)

	var errs []error
	if s.sqlite != nil {
		if err := s.sqlite.Close(); err != nil {
			errs = append(errs, &BackendError{Backend: BackendSQLite, Op: "close", Err: err})
		}
		s.sqlite, s.repo = nil, nil
	}
	if err := db.Remove(s.dbPath); err != nil {
		errs = append(errs, &BackendError{Backend: BackendSQLite, Op: "delete", Err: err})
	}
	if err := s.tabular.Remove(); err != nil {
		errs = append(errs, &BackendError{Backend: BackendXLSX, Op: "delete", Err: err})
	}
	if err := s.openRelational(); err != nil {
		errs = append(errs, err)
	}
	if err := s.persistAllLocked(); err != nil {
		errs = append(errs, err)
	}

	if joined := errors.Join(errs...); joined != nil {
		s.log.Error("Clear and reinitialize finished with errors", "op", "clear", "error", joined)
		return joined
	}
	s.log.Warn("Storage cleared and reinitialized", "db", s.dbPath, "workbook", s.tabular.Path())
	return nil
}

// BulkLoad installs recs into the index, upserts each into the relational
// table, then rewrites the workbook once. Storage is expected to have been
// cleared first.
func (s *Store) BulkLoad(ctx context.Context, recs []*domain.AwardRecord) (err error) {
	ctx, span := observability.StartSpan(ctx, "store.bulk_load", attribute.Int("records", len(recs)))
	defer func() { observability.EndSpan(span, err) }()

	s.fileMu.Lock()
	defer s.fileMu.Unlock()

	var errs []error
	for _, rec := range recs {
		cp := rec.Clone()
		s.index[cp.StudentID] = cp
		if err := s.writeRelational(ctx, cp); err != nil {
			errs = append(errs, err)
		}
	}
	s.metrics.SetRecords(len(s.index))
	if err := s.persistAllLocked(); err != nil {
		errs = append(errs, err)
	}
	s.log.Info("Bulk load finished", "records", len(recs), "failures", len(errs))
	return errors.Join(errs...)
}

// Import merges recs into the index, persisting each one. With overwrite
// the index is emptied first and the workbook is rewritten at the end so
// rows for students absent from recs disappear from it.
func (s *Store) Import(ctx context.Context, recs []*domain.AwardRecord, overwrite bool) error {
	if overwrite {
		s.index = make(map[int64]*domain.AwardRecord, len(recs))
	}
	var errs []error
	for _, rec := range recs {
		cp := rec.Clone()
		s.index[cp.StudentID] = cp
		if res := s.Persist(ctx, cp); !res.OK() {
			errs = append(errs, res.Err())
		}
	}
	s.metrics.SetRecords(len(s.index))
	if overwrite {
		if err := s.PersistAll(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RelationalRows reads the backup table for diagnostics. It never feeds
// the index.
func (s *Store) RelationalRows(ctx context.Context) ([]*domain.StudentRow, error) {
	if s.repo == nil {
		return nil, &BackendError{Backend: BackendSQLite, Op: "list", Err: errRelationalClosed}
	}
	return s.repo.List(dbctx.Context{Ctx: ctx})
}

// RelationalCount counts rows in the backup table.
func (s *Store) RelationalCount(ctx context.Context) (int, error) {
	if s.repo == nil {
		return 0, &BackendError{Backend: BackendSQLite, Op: "count", Err: errRelationalClosed}
	}
	n, err := s.repo.Count(dbctx.Context{Ctx: ctx})
	if err != nil {
		return 0, &BackendError{Backend: BackendSQLite, Op: "count", Err: err}
	}
	return int(n), nil
}

func (s *Store) Close() error {
	if s.sqlite == nil {
		return nil
	}
	err := s.sqlite.Close()
	s.sqlite, s.repo = nil, nil
	return err
}

var errRelationalClosed = errors.New("relational store not open")

func (s *Store) writeRelational(ctx context.Context, rec *domain.AwardRecord) error {
	err := s.upsertRow(ctx, rec)
	s.metrics.ObservePersist(BackendSQLite, err)
	if err == nil {
		return nil
	}
	s.log.Error("Relational upsert failed; mirror is stale",
		"op", "upsert",
		"backend", BackendSQLite,
		"student_id", rec.StudentID,
		"error", err,
	)
	return &BackendError{Backend: BackendSQLite, Op: "upsert", StudentID: rec.StudentID, Err: err}
}

func (s *Store) upsertRow(ctx context.Context, rec *domain.AwardRecord) error {
	if s.repo == nil {
		return errRelationalClosed
	}
	row, err := rec.ToRow()
	if err != nil {
		return err
	}
	return s.repo.Upsert(dbctx.Context{Ctx: ctx}, row)
}

func (s *Store) writeTabularLocked(rec *domain.AwardRecord) error {
	_, err := s.tabular.Upsert(rec)
	if errors.Is(err, tabular.ErrMissing) || errors.Is(err, tabular.ErrLayout) {
		s.log.Info("Workbook unusable for row update; rewriting", "student_id", rec.StudentID, "reason", err)
		return s.persistAllLocked()
	}
	s.metrics.ObservePersist(BackendXLSX, err)
	if err == nil {
		return nil
	}
	s.log.Error("Workbook row update failed; mirror is stale",
		"op", "upsert_row",
		"backend", BackendXLSX,
		"student_id", rec.StudentID,
		"error", err,
	)
	return &BackendError{Backend: BackendXLSX, Op: "upsert_row", StudentID: rec.StudentID, Err: err}
}

func (s *Store) persistAllLocked() error {
	err := s.tabular.WriteAll(s.List())
	s.metrics.ObservePersist(BackendXLSX, err)
	if err == nil {
		return nil
	}
	s.log.Error("Workbook rewrite failed; mirror is stale",
		"op", "rewrite",
		"backend", BackendXLSX,
		"records", len(s.index),
		"error", err,
	)
	return &BackendError{Backend: BackendXLSX, Op: "rewrite", Err: err}
}
