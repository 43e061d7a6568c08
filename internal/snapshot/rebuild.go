package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/award-ledger/internal/domain"
	"github.com/yungbote/award-ledger/internal/observability"
	apperr "github.com/yungbote/award-ledger/internal/pkg/errors"
	"github.com/yungbote/award-ledger/internal/pkg/logger"
)

// Target is the storage a snapshot is loaded into.
type Target interface {
	ClearAndReinitialize(ctx context.Context) error
	BulkLoad(ctx context.Context, recs []*domain.AwardRecord) error
	Import(ctx context.Context, recs []*domain.AwardRecord, overwrite bool) error
}

type RebuilderOptions struct {
	Codec   *Codec
	Target  Target
	Logger  *logger.Logger
	Metrics *observability.Metrics
	// Upstream lists derived artifacts (raw source, summary workbook) that
	// a rebuild deletes before clearing storage.
	Upstream []string
}

type Rebuilder struct {
	codec    *Codec
	target   Target
	upstream []string
	log      *logger.Logger
	metrics  *observability.Metrics
}

type Report struct {
	Path       string   `json:"path"`
	Records    int      `json:"records"`
	SnapshotID string   `json:"snapshotId,omitempty"`
	Deleted    []string `json:"deleted,omitempty"`
	Overwrite  bool     `json:"overwrite,omitempty"`
}

func NewRebuilder(opts RebuilderOptions) *Rebuilder {
	codec := opts.Codec
	if codec == nil {
		codec = NewCodec()
	}
	baseLog := opts.Logger
	if baseLog == nil {
		baseLog = logger.Nop()
	}
	return &Rebuilder{
		codec:    codec,
		target:   opts.Target,
		upstream: opts.Upstream,
		log:      baseLog.With("component", "RebuildCoordinator"),
		metrics:  opts.Metrics,
	}
}

// ImportAndRebuild replaces all storage with the contents of the snapshot
// at path. The file is decoded completely before anything is touched; a
// decode failure leaves storage exactly as it was. Failures after the
// clear step wrap ErrRebuildIncomplete.
func (r *Rebuilder) ImportAndRebuild(ctx context.Context, path string) (rep Report, err error) {
	ctx, span := observability.StartSpan(ctx, "snapshot.rebuild",
		attribute.String("snapshot.path", path),
		attribute.Bool("snapshot.compressed", IsCompressed(path)),
	)
	defer func() { observability.EndSpan(span, err) }()

	recs, meta, err := r.codec.ReadFile(path)
	if err != nil {
		r.metrics.ObserveRebuild("decode_failed")
		r.log.Error("Snapshot rejected; storage untouched", "path", path, "error", err)
		return Report{}, err
	}
	if meta.MismatchedCount(len(recs)) {
		r.log.Warn("Snapshot recordCount disagrees with records", "declared", meta.RecordCount, "actual", len(recs))
	}
	r.metrics.ObserveSnapshot("import", IsCompressed(path))

	span.SetAttributes(
		attribute.Int("snapshot.records", len(recs)),
		attribute.String("snapshot.id", meta.SnapshotID),
	)
	span.AddEvent("decoded")

	rep = Report{Path: path, Records: len(recs), SnapshotID: meta.SnapshotID}
	rep.Deleted = r.deleteUpstream()
	span.AddEvent("upstream_deleted", trace.WithAttributes(attribute.Int("files", len(rep.Deleted))))

	if err := r.target.ClearAndReinitialize(ctx); err != nil {
		r.metrics.ObserveRebuild("incomplete")
		r.log.Error("Rebuild failed while clearing storage", "path", path, "error", err)
		return rep, fmt.Errorf("%w: clear: %w", apperr.ErrRebuildIncomplete, err)
	}
	span.AddEvent("cleared")
	if err := r.target.BulkLoad(ctx, recs); err != nil {
		r.metrics.ObserveRebuild("incomplete")
		r.log.Error("Rebuild failed while loading records", "path", path, "records", len(recs), "error", err)
		return rep, fmt.Errorf("%w: load: %w", apperr.ErrRebuildIncomplete, err)
	}

	r.metrics.ObserveRebuild("ok")
	r.log.Info("Rebuild complete", "path", path, "records", len(recs), "snapshot_id", meta.SnapshotID)
	return rep, nil
}

// ImportMerge loads the snapshot without clearing storage. With overwrite
// the index is replaced by the snapshot's records; otherwise they are
// merged over existing ones by student id.
func (r *Rebuilder) ImportMerge(ctx context.Context, path string, overwrite bool) (rep Report, err error) {
	ctx, span := observability.StartSpan(ctx, "snapshot.import",
		attribute.String("snapshot.path", path),
		attribute.Bool("import.overwrite", overwrite),
	)
	defer func() { observability.EndSpan(span, err) }()

	recs, meta, err := r.codec.ReadFile(path)
	if err != nil {
		r.log.Error("Snapshot rejected; storage untouched", "path", path, "error", err)
		return Report{}, err
	}
	r.metrics.ObserveSnapshot("import", IsCompressed(path))

	rep = Report{Path: path, Records: len(recs), SnapshotID: meta.SnapshotID, Overwrite: overwrite}
	if err := r.target.Import(ctx, recs, overwrite); err != nil {
		r.log.Warn("Import finished with backend errors", "path", path, "error", err)
		return rep, err
	}
	r.log.Info("Import complete", "path", path, "records", len(recs), "overwrite", overwrite)
	return rep, nil
}

func (r *Rebuilder) deleteUpstream() []string {
	var deleted []string
	for _, p := range r.upstream {
		if p == "" {
			continue
		}
		err := os.Remove(p)
		switch {
		case err == nil:
			deleted = append(deleted, p)
			r.log.Info("Deleted upstream artifact", "path", p)
		case errors.Is(err, fs.ErrNotExist):
		default:
			r.log.Warn("Could not delete upstream artifact", "path", p, "error", err)
		}
	}
	return deleted
}
