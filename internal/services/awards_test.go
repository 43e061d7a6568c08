package services

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/award-ledger/internal/data/repos/testutil"
	"github.com/yungbote/award-ledger/internal/data/summary"
	"github.com/yungbote/award-ledger/internal/domain"
	"github.com/yungbote/award-ledger/internal/domain/classification"
	"github.com/yungbote/award-ledger/internal/observability"
	apperr "github.com/yungbote/award-ledger/internal/pkg/errors"
	"github.com/yungbote/award-ledger/internal/snapshot"
	"github.com/yungbote/award-ledger/internal/store"
)

type fixture struct {
	dir     string
	store   *store.Store
	summary *summary.Loader
	svc     AwardService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	log := testutil.Logger(t)
	metrics := observability.NewMetrics()

	st, err := store.New(store.Options{
		TabularPath: filepath.Join(dir, "Student_Awards.xlsx"),
		DBPath:      filepath.Join(dir, "student.db"),
		Logger:      log,
		Metrics:     metrics,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	sum := summary.NewLoader(filepath.Join(dir, "Awards_Summary.xlsx"), log)
	codec := snapshot.NewCodec()
	rb := snapshot.NewRebuilder(snapshot.RebuilderOptions{
		Codec:    codec,
		Target:   st,
		Logger:   log,
		Metrics:  metrics,
		Upstream: []string{filepath.Join(dir, "Raw_Source.xlsx"), sum.Path()},
	})
	svc := NewAwardService(AwardServiceOptions{
		Store:     st,
		Summary:   sum,
		Codec:     codec,
		Rebuilder: rb,
		Logger:    log,
		Metrics:   metrics,
	})
	return &fixture{dir: dir, store: st, summary: sum, svc: svc}
}

func (f *fixture) writeSummary(t *testing.T, students ...domain.Student) {
	t.Helper()
	require.NoError(t, f.summary.Write(students))
	_, err := f.svc.LoadSummary(context.Background())
	require.NoError(t, err)
}

func awards(n int) []domain.Award {
	out := make([]domain.Award, n)
	for i := range out {
		out[i] = domain.Award{Name: "award"}
	}
	return out
}

func TestClassifyFirstThenReclassify(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.Classify(ctx, ClassifyRequest{StudentID: 1001, Slot: 0, Category: "National", Name: "Li", ClassName: "C1"})
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Empty(t, res.Warnings)
	assert.Equal(t, classification.KindSet, res.Transition.Kind)
	assert.Equal(t, 0.8, res.Record.AwardTotalPoints)
	assert.Equal(t, 1, res.Record.RecordedAwardCount)
	assert.Equal(t, "National", res.Record.AwardLabels[0])

	res, err = f.svc.Classify(ctx, ClassifyRequest{StudentID: 1001, Slot: 0, Category: "School"})
	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.Equal(t, classification.KindReplace, res.Transition.Kind)
	assert.InDelta(t, 0.3, res.Record.AwardTotalPoints, 1e-9)
	assert.Equal(t, 1, res.Record.RecordedAwardCount)
	assert.Equal(t, "Li", res.Record.Name)

	rows, err := f.store.RelationalRows(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.InDelta(t, 0.3, rows[0].AwardTotalPoints, 1e-9)
}

func TestClassifyRejectsBeforeCreating(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Classify(ctx, ClassifyRequest{StudentID: 1, Slot: 50, Category: "Cert"})
	assert.ErrorIs(t, err, apperr.ErrOutOfRange)
	_, err = f.svc.Classify(ctx, ClassifyRequest{StudentID: 1, Slot: -1, Category: "Cert"})
	assert.ErrorIs(t, err, apperr.ErrOutOfRange)
	_, err = f.svc.Classify(ctx, ClassifyRequest{StudentID: 1, Slot: 0, Category: "Gold"})
	assert.ErrorIs(t, err, apperr.ErrUnknownCategory)

	_, err = f.svc.Get(ctx, 1)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Empty(t, f.svc.List(ctx))
}

func TestClassifyNoneTogglesOff(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.Classify(ctx, ClassifyRequest{StudentID: 2, Slot: 4, Category: "None"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Record.RecordedAwardCount)

	res, err = f.svc.Classify(ctx, ClassifyRequest{StudentID: 2, Slot: 4, Category: "none"})
	require.NoError(t, err)
	assert.Equal(t, classification.KindToggleOff, res.Transition.Kind)
	assert.Equal(t, 0, res.Record.RecordedAwardCount)
	assert.Equal(t, "", res.Record.AwardLabels[4])
}

func TestClassifyNamesFromSummary(t *testing.T) {
	f := newFixture(t)
	f.writeSummary(t, domain.Student{StudentID: 7, Name: "Zhao", ClassName: "K7", Awards: awards(2)})

	res, err := f.svc.Classify(context.Background(), ClassifyRequest{StudentID: 7, Slot: 1, Category: "Cert"})
	require.NoError(t, err)
	assert.Equal(t, "Zhao", res.Record.Name)
	assert.Equal(t, "K7", res.Record.ClassName)
}

func TestGetReturnsCopy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Classify(ctx, ClassifyRequest{StudentID: 3, Slot: 0, Category: "Cert"})
	require.NoError(t, err)

	rec, err := f.svc.Get(ctx, 3)
	require.NoError(t, err)
	rec.AwardLabels[0] = "tampered"

	again, err := f.svc.Get(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "Cert", again.AwardLabels[0])
}

func TestProgressFallbackRule(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.writeSummary(t,
		domain.Student{StudentID: 1, Awards: awards(3)},
		domain.Student{StudentID: 2},
	)
	for _, req := range []ClassifyRequest{
		{StudentID: 1, Slot: 0, Category: "Cert"},
		{StudentID: 2, Slot: 0, Category: "School"},
		{StudentID: 2, Slot: 1, Category: "College"},
		{StudentID: 9, Slot: 0, Category: "None"},
	} {
		_, err := f.svc.Classify(ctx, req)
		require.NoError(t, err)
	}

	p, err := f.svc.Progress(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, Progress{StudentID: 1, Recorded: 1, Declared: 3, Source: "summary"}, *p)

	// listed with zero awards: fall back to the recorded count
	p, err = f.svc.Progress(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, Progress{StudentID: 2, Recorded: 2, Declared: 2, Source: "record", Complete: true}, *p)

	// not in the summary at all
	p, err = f.svc.Progress(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, "record", p.Source)
	assert.True(t, p.Complete)

	_, err = f.svc.Progress(ctx, 404)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestSeedFromSummary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Classify(ctx, ClassifyRequest{StudentID: 1, Slot: 0, Category: "Cert", Name: "Kept"})
	require.NoError(t, err)
	require.NoError(t, f.summary.Write([]domain.Student{
		{StudentID: 1, Name: "Renamed", Awards: awards(1)},
		{StudentID: 2, Name: "New", ClassName: "K2", Awards: awards(2)},
	}))

	n, err := f.svc.SeedFromSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	one, err := f.svc.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Kept", one.Name)
	two, err := f.svc.Get(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "New", two.Name)
	assert.Equal(t, 0, two.RecordedAwardCount)

	rows, err := f.store.RelationalRows(ctx)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	n, err = f.svc.SeedFromSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestExportAndRebuild(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.writeSummary(t, domain.Student{StudentID: 1, Awards: awards(1)})
	for _, req := range []ClassifyRequest{
		{StudentID: 1, Slot: 0, Category: "National"},
		{StudentID: 2, Slot: 3, Category: "ProvinceCity"},
		{StudentID: 3, Slot: 49, Category: "Cert"},
	} {
		_, err := f.svc.Classify(ctx, req)
		require.NoError(t, err)
	}
	before := f.svc.List(ctx)

	out, err := f.svc.Export(ctx, filepath.Join(t.TempDir(), "backup.json"), true)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(out.Path, ".json.gz"))
	assert.Equal(t, 3, out.Records)
	assert.NotEmpty(t, out.SnapshotID)

	_, err = f.svc.Classify(ctx, ClassifyRequest{StudentID: 4, Slot: 0, Category: "College"})
	require.NoError(t, err)

	rep, err := f.svc.ImportAndRebuild(ctx, out.Path)
	require.NoError(t, err)
	assert.Equal(t, 3, rep.Records)
	assert.Contains(t, rep.Deleted, f.summary.Path())

	after := f.svc.List(ctx)
	require.Len(t, after, 3)
	for i := range before {
		assert.Equal(t, *before[i], *after[i])
	}

	// summary was removed with the rebuild, so progress falls back
	p, err := f.svc.Progress(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "record", p.Source)
}

func TestImportMergeKeepsExisting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Classify(ctx, ClassifyRequest{StudentID: 1, Slot: 0, Category: "Cert"})
	require.NoError(t, err)
	out, err := f.svc.Export(ctx, filepath.Join(t.TempDir(), "one.json"), false)
	require.NoError(t, err)

	_, err = f.svc.Classify(ctx, ClassifyRequest{StudentID: 2, Slot: 0, Category: "Cert"})
	require.NoError(t, err)

	_, err = f.svc.ImportMerge(ctx, out.Path, false)
	require.NoError(t, err)
	assert.Len(t, f.svc.List(ctx), 2)
}

func TestWriteSnapshot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Classify(ctx, ClassifyRequest{StudentID: 5, Slot: 2, Category: "School"})
	require.NoError(t, err)

	var buf bytes.Buffer
	res, err := f.svc.WriteSnapshot(ctx, &buf, false)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Records)

	recs, _, err := snapshot.Decode(&buf, false)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "School", recs[0].AwardLabels[2])
}

func TestIntegrity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rep, err := f.svc.Integrity(ctx)
	require.NoError(t, err)
	assert.False(t, rep.Files["summary"])
	assert.True(t, rep.Files["records"])
	assert.Contains(t, rep.Problems, "summary lists no students")

	f.writeSummary(t,
		domain.Student{StudentID: 1, Awards: awards(1)},
		domain.Student{StudentID: 2, Awards: awards(2)},
		domain.Student{StudentID: 3, Awards: awards(1)},
	)
	_, err = f.svc.Classify(ctx, ClassifyRequest{StudentID: 1, Slot: 0, Category: "Cert"})
	require.NoError(t, err)
	_, err = f.svc.Classify(ctx, ClassifyRequest{StudentID: 2, Slot: 0, Category: "Cert"})
	require.NoError(t, err)

	rep, err = f.svc.Integrity(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, rep.Students)
	assert.Equal(t, 4, rep.DeclaredAwards)
	assert.Equal(t, 2, rep.WithRecords)
	assert.Equal(t, 1, rep.FullyRecorded)
	assert.Equal(t, 2, rep.IndexSize)
	assert.Equal(t, 2, rep.RelationalRows)
	assert.Empty(t, rep.Problems)
}

func TestConcurrentClassifyIsSerialized(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for slot := 0; slot < 20; slot++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			_, err := f.svc.Classify(ctx, ClassifyRequest{StudentID: 1, Slot: slot, Category: "Cert"})
			assert.NoError(t, err)
		}(slot)
	}
	wg.Wait()

	rec, err := f.svc.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 20, rec.RecordedAwardCount)
	assert.InDelta(t, 4.0, rec.CertTotalPoints, 1e-9)
}

func TestFlushRewritesWorkbook(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, id := range []int64{1, 2} {
		_, err := f.svc.Classify(ctx, ClassifyRequest{StudentID: id, Slot: 0, Category: "Cert"})
		require.NoError(t, err)
	}
	require.NoError(t, os.Remove(f.store.TabularPath()))

	require.NoError(t, f.svc.Flush(ctx))
	require.FileExists(t, f.store.TabularPath())
	require.NoError(t, f.store.Reload())
	assert.Equal(t, 2, f.store.Len())
}
