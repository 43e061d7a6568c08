package services

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/yungbote/award-ledger/internal/data/summary"
	"github.com/yungbote/award-ledger/internal/domain"
	"github.com/yungbote/award-ledger/internal/domain/classification"
	"github.com/yungbote/award-ledger/internal/observability"
	apperr "github.com/yungbote/award-ledger/internal/pkg/errors"
	"github.com/yungbote/award-ledger/internal/pkg/logger"
	"github.com/yungbote/award-ledger/internal/snapshot"
	"github.com/yungbote/award-ledger/internal/store"
)

type ClassifyRequest struct {
	StudentID int64  `json:"studentId"`
	Slot      int    `json:"slot"`
	Category  string `json:"category"`
	Name      string `json:"name"`
	ClassName string `json:"className"`
}

type ClassifyResult struct {
	Record     *domain.AwardRecord       `json:"record"`
	Transition classification.Transition `json:"transition"`
	Created    bool                      `json:"created"`
	// Warnings lists backend mirrors that failed to take the change. The
	// classification itself stands.
	Warnings []string `json:"warnings,omitempty"`
}

type Progress struct {
	StudentID int64 `json:"studentId"`
	Recorded  int   `json:"recorded"`
	Declared  int   `json:"declared"`
	// Source is "summary" when Declared came from the summary workbook and
	// "record" when it fell back to the recorded count.
	Source   string `json:"source"`
	Complete bool   `json:"complete"`
}

type ExportResult struct {
	Path       string `json:"path"`
	Records    int    `json:"records"`
	SnapshotID string `json:"snapshotId"`
	Compressed bool   `json:"compressed"`
}

type IntegrityReport struct {
	Files          map[string]bool `json:"files"`
	Students       int             `json:"students"`
	DeclaredAwards int             `json:"declaredAwards"`
	WithRecords    int             `json:"withRecords"`
	FullyRecorded  int             `json:"fullyRecorded"`
	IndexSize      int             `json:"indexSize"`
	RelationalRows int             `json:"relationalRows"`
	Problems       []string        `json:"problems,omitempty"`
}

type AwardService interface {
	Get(ctx context.Context, studentID int64) (*domain.AwardRecord, error)
	List(ctx context.Context) []*domain.AwardRecord
	Classify(ctx context.Context, req ClassifyRequest) (*ClassifyResult, error)
	Progress(ctx context.Context, studentID int64) (*Progress, error)
	Export(ctx context.Context, path string, compressed bool) (*ExportResult, error)
	WriteSnapshot(ctx context.Context, w io.Writer, compressed bool) (*ExportResult, error)
	ImportAndRebuild(ctx context.Context, path string) (snapshot.Report, error)
	ImportMerge(ctx context.Context, path string, overwrite bool) (snapshot.Report, error)
	LoadSummary(ctx context.Context) ([]domain.Student, error)
	SeedFromSummary(ctx context.Context) (int, error)
	Integrity(ctx context.Context) (*IntegrityReport, error)
	Flush(ctx context.Context) error
}

// Every method takes mu, so the store, whose mutations must be serialized
// by its caller, only ever sees one operation at a time.
type awardService struct {
	mu sync.Mutex

	store     *store.Store
	summary   *summary.Loader
	codec     *snapshot.Codec
	rebuilder *snapshot.Rebuilder
	log       *logger.Logger
	metrics   *observability.Metrics

	declared map[int64]domain.Student
}

type AwardServiceOptions struct {
	Store     *store.Store
	Summary   *summary.Loader
	Codec     *snapshot.Codec
	Rebuilder *snapshot.Rebuilder
	Logger    *logger.Logger
	Metrics   *observability.Metrics
}

func NewAwardService(opts AwardServiceOptions) AwardService {
	baseLog := opts.Logger
	if baseLog == nil {
		baseLog = logger.Nop()
	}
	codec := opts.Codec
	if codec == nil {
		codec = snapshot.NewCodec()
	}
	return &awardService{
		store:     opts.Store,
		summary:   opts.Summary,
		codec:     codec,
		rebuilder: opts.Rebuilder,
		log:       baseLog.With("service", "AwardService"),
		metrics:   opts.Metrics,
		declared:  map[int64]domain.Student{},
	}
}

func (s *awardService) Get(ctx context.Context, studentID int64) (*domain.AwardRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.store.Get(studentID)
	if err != nil {
		return nil, err
	}
	return rec.Clone(), nil
}

func (s *awardService) List(ctx context.Context) []*domain.AwardRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	recs := s.store.List()
	out := make([]*domain.AwardRecord, len(recs))
	for i, r := range recs {
		out[i] = r.Clone()
	}
	return out
}

// Classify validates the request, creates the record on first contact,
// applies the transition and persists. Validation failures never create a
// record. Backend failures are reported as warnings; the in-memory change
// is kept either way.
func (s *awardService) Classify(ctx context.Context, req ClassifyRequest) (*ClassifyResult, error) {
	if err := domain.CheckSlot(req.Slot); err != nil {
		return nil, err
	}
	category, err := domain.ParseCategory(req.Category)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	name, className := req.Name, req.ClassName
	if st, ok := s.declared[req.StudentID]; ok {
		if name == "" {
			name = st.Name
		}
		if className == "" {
			className = st.ClassName
		}
	}

	rec, created := s.store.GetOrCreate(req.StudentID, name, className)
	t, err := classification.Classify(rec, req.Slot, category)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveClassification(string(t.Kind))

	res := &ClassifyResult{Transition: t, Created: created}
	if pr := s.store.Persist(ctx, rec); !pr.OK() {
		for _, e := range []error{pr.Relational, pr.Tabular} {
			if e != nil {
				res.Warnings = append(res.Warnings, e.Error())
			}
		}
	}
	res.Record = rec.Clone()

	s.log.Info("Classified award",
		"student_id", req.StudentID,
		"slot", req.Slot,
		"previous", t.Previous,
		"label", t.NewLabel,
		"kind", t.Kind,
	)
	return res, nil
}

// Progress compares the recorded count against the declared total. The
// declared total comes from the summary when the student is listed there
// with at least one award; otherwise the recorded count stands in for it.
func (s *awardService) Progress(ctx context.Context, studentID int64) (*Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.store.Get(studentID)
	st, inSummary := s.declared[studentID]
	if err != nil && !inSummary {
		return nil, err
	}
	p := &Progress{StudentID: studentID}
	if rec != nil {
		p.Recorded = rec.RecordedAwardCount
	}
	if inSummary && st.TotalAwards() > 0 {
		p.Declared = st.TotalAwards()
		p.Source = "summary"
	} else {
		p.Declared = p.Recorded
		p.Source = "record"
	}
	p.Complete = p.Recorded >= p.Declared
	return p, nil
}

func (s *awardService) Export(ctx context.Context, path string, compressed bool) (*ExportResult, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: export path is empty", apperr.ErrInvalidArgument)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	final, doc, err := s.codec.WriteFile(path, s.store.List(), compressed)
	if err != nil {
		s.log.Error("Snapshot export failed", "path", path, "error", err)
		return nil, err
	}
	gz := snapshot.IsCompressed(final)
	s.metrics.ObserveSnapshot("export", gz)
	s.log.Info("Snapshot exported", "path", final, "records", doc.Meta.RecordCount, "snapshot_id", doc.Meta.SnapshotID)
	return &ExportResult{Path: final, Records: doc.Meta.RecordCount, SnapshotID: doc.Meta.SnapshotID, Compressed: gz}, nil
}

func (s *awardService) WriteSnapshot(ctx context.Context, w io.Writer, compressed bool) (*ExportResult, error) {
	s.mu.Lock()
	doc := s.codec.Export(s.store.List())
	s.mu.Unlock()

	if err := snapshot.Encode(w, doc, compressed); err != nil {
		return nil, err
	}
	s.metrics.ObserveSnapshot("export", compressed)
	return &ExportResult{Records: doc.Meta.RecordCount, SnapshotID: doc.Meta.SnapshotID, Compressed: compressed}, nil
}

// ImportAndRebuild is destructive; callers confirm before calling it.
func (s *awardService) ImportAndRebuild(ctx context.Context, path string) (snapshot.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rep, err := s.rebuilder.ImportAndRebuild(ctx, path)
	if err == nil {
		// the summary was deleted as part of the rebuild
		s.declared = map[int64]domain.Student{}
	}
	return rep, err
}

func (s *awardService) ImportMerge(ctx context.Context, path string, overwrite bool) (snapshot.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rebuilder.ImportMerge(ctx, path, overwrite)
}

// LoadSummary reads the summary workbook and remembers its students for
// progress and for naming records created by Classify.
func (s *awardService) LoadSummary(ctx context.Context) ([]domain.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadSummaryLocked()
}

func (s *awardService) loadSummaryLocked() ([]domain.Student, error) {
	if s.summary == nil {
		return nil, nil
	}
	students, err := s.summary.Load()
	if err != nil {
		return nil, err
	}
	next := make(map[int64]domain.Student, len(students))
	for _, st := range students {
		next[st.StudentID] = st
	}
	s.declared = next
	return students, nil
}

// SeedFromSummary creates an empty record for every summary student that
// has none yet and persists it. It returns how many were created.
func (s *awardService) SeedFromSummary(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	students, err := s.loadSummaryLocked()
	if err != nil {
		return 0, err
	}
	created := 0
	for _, st := range students {
		rec, isNew := s.store.GetOrCreate(st.StudentID, st.Name, st.ClassName)
		if !isNew {
			continue
		}
		created++
		if pr := s.store.Persist(ctx, rec); !pr.OK() {
			s.log.Warn("Seeded record not fully persisted", "student_id", st.StudentID, "error", pr.Err())
		}
	}
	s.log.Info("Seeded records from summary", "students", len(students), "created", created)
	return created, nil
}

// Integrity reports the state of the files and how far classification has
// progressed against the summary. It reads but never repairs.
func (s *awardService) Integrity(ctx context.Context) (*IntegrityReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rep := &IntegrityReport{
		Files: map[string]bool{
			"records": fileExists(s.store.TabularPath()),
			"db":      fileExists(s.store.DBPath()),
		},
		IndexSize: s.store.Len(),
	}
	if s.summary != nil {
		rep.Files["summary"] = s.summary.Exists()
	}

	students := make([]domain.Student, 0, len(s.declared))
	for _, st := range s.declared {
		students = append(students, st)
	}
	rep.Students = len(students)
	if rep.Students == 0 {
		rep.Problems = append(rep.Problems, "summary lists no students")
	}
	for _, st := range students {
		rep.DeclaredAwards += st.TotalAwards()
		rec, err := s.store.Get(st.StudentID)
		if err != nil {
			continue
		}
		rep.WithRecords++
		if rec.RecordedAwardCount == st.TotalAwards() {
			rep.FullyRecorded++
		}
	}

	n, err := s.store.RelationalCount(ctx)
	if err != nil {
		rep.Problems = append(rep.Problems, "relational store unreadable: "+err.Error())
	} else {
		rep.RelationalRows = n
		if n != rep.IndexSize {
			rep.Problems = append(rep.Problems, fmt.Sprintf("relational rows %d differ from index size %d", n, rep.IndexSize))
		}
	}
	for _, name := range []string{"summary", "records", "db"} {
		if ok, checked := rep.Files[name]; checked && !ok {
			rep.Problems = append(rep.Problems, name+" file missing")
		}
	}

	s.log.Info("Integrity check",
		"students", rep.Students,
		"declared_awards", rep.DeclaredAwards,
		"with_records", rep.WithRecords,
		"fully_recorded", rep.FullyRecorded,
		"index_size", rep.IndexSize,
		"problems", len(rep.Problems),
	)
	return rep, nil
}

// Flush rewrites the workbook from the index, healing any row writes that
// failed since the last successful persist.
func (s *awardService) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.PersistAll()
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
