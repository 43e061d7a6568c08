package tabular

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/yungbote/award-ledger/internal/data/repos/testutil"
	"github.com/yungbote/award-ledger/internal/domain"
)

func newFile(t *testing.T) *File {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "Student_Awards.xlsx"), testutil.Logger(t))
}

func sample(id int64) *domain.AwardRecord {
	rec := domain.NewAwardRecord(id, "Name", "Class")
	rec.AwardLabels[0] = "National"
	rec.AwardLabels[3] = "None"
	rec.AwardLabels[49] = "Cert"
	rec.CertTotalPoints = 0.2
	// a value that only survives when floats are read back raw
	rec.AwardTotalPoints = 0.1 + 0.2
	rec.RecordedAwardCount = 3
	return rec
}

func TestWriteAllReadAllRoundTrip(t *testing.T) {
	f := newFile(t)
	recs := []*domain.AwardRecord{sample(3), sample(1), domain.NewAwardRecord(2, "Empty", "C")}
	require.NoError(t, f.WriteAll(recs))

	got, err := f.ReadAll()
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i := range recs {
		assert.Equal(t, *recs[i], *got[i])
	}
}

func TestWriteAllEmptyWritesHeader(t *testing.T) {
	f := newFile(t)
	require.NoError(t, f.WriteAll(nil))
	assert.True(t, f.Exists())

	got, err := f.ReadAll()
	require.NoError(t, err)
	assert.Empty(t, got)

	x, err := excelize.OpenFile(f.Path())
	require.NoError(t, err)
	defer x.Close()
	rows, err := x.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, Header(), rows[0])
	assert.Len(t, rows[0], 6+domain.LabelCapacity)
}

func TestUpsertOverwritesInPlace(t *testing.T) {
	f := newFile(t)
	require.NoError(t, f.WriteAll([]*domain.AwardRecord{sample(1), sample(2)}))

	updated := sample(1)
	updated.AwardLabels[0] = ""
	updated.AwardTotalPoints = 0
	updated.RecordedAwardCount = 2
	appended, err := f.Upsert(updated)
	require.NoError(t, err)
	assert.False(t, appended)

	got, err := f.ReadAll()
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, *updated, *got[0])
	assert.Equal(t, *sample(2), *got[1])
}

func TestUpsertAppendsUnknownStudent(t *testing.T) {
	f := newFile(t)
	require.NoError(t, f.WriteAll([]*domain.AwardRecord{sample(1)}))

	appended, err := f.Upsert(sample(9))
	require.NoError(t, err)
	assert.True(t, appended)

	got, err := f.ReadAll()
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(9), got[1].StudentID)
}

func TestUpsertMissingFile(t *testing.T) {
	f := newFile(t)
	_, err := f.Upsert(sample(1))
	assert.ErrorIs(t, err, ErrMissing)

	_, err = f.ReadAll()
	assert.ErrorIs(t, err, ErrMissing)
}

func TestUpsertRejectsForeignLayout(t *testing.T) {
	f := newFile(t)
	x := excelize.NewFile()
	_, err := x.NewSheet(SheetName)
	require.NoError(t, err)
	require.NoError(t, x.SetSheetRow(SheetName, "A1", &[]interface{}{"student_id", "awards_json"}))
	require.NoError(t, x.SaveAs(f.Path()))
	require.NoError(t, x.Close())

	_, err = f.Upsert(sample(1))
	assert.ErrorIs(t, err, ErrLayout)
}

func TestReadAllByHeaderName(t *testing.T) {
	f := newFile(t)
	x := excelize.NewFile()
	_, err := x.NewSheet(SheetName)
	require.NoError(t, err)
	// shuffled columns, missing labels past slot 2, one junk row
	require.NoError(t, x.SetSheetRow(SheetName, "A1", &[]interface{}{"name", "award_label_2", "student_id", "cert_total_points", "recorded_award_count"}))
	require.NoError(t, x.SetSheetRow(SheetName, "A2", &[]interface{}{"Zhao", "Cert", 11, 0.2, 1}))
	require.NoError(t, x.SetSheetRow(SheetName, "A3", &[]interface{}{"Junk", "", "abc", 0, 0}))
	require.NoError(t, x.SaveAs(f.Path()))
	require.NoError(t, x.Close())

	got, err := f.ReadAll()
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(11), got[0].StudentID)
	assert.Equal(t, "Zhao", got[0].Name)
	assert.Equal(t, "", got[0].ClassName)
	assert.Equal(t, "Cert", got[0].AwardLabels[1])
	assert.Equal(t, 0.2, got[0].CertTotalPoints)
	assert.Equal(t, 0.0, got[0].AwardTotalPoints)
	assert.Equal(t, 1, got[0].RecordedAwardCount)
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	f := newFile(t)
	require.NoError(t, f.WriteAll([]*domain.AwardRecord{sample(1)}))
	_, err := f.Upsert(sample(2))
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Dir(f.Path()))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Student_Awards.xlsx", entries[0].Name())
}

func TestRemove(t *testing.T) {
	f := newFile(t)
	require.NoError(t, f.Remove())
	require.NoError(t, f.WriteAll(nil))
	require.NoError(t, f.Remove())
	assert.False(t, f.Exists())
}
